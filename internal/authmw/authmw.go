// Package authmw provides HTTP middleware for authenticating API clients.
package authmw

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerToken returns middleware that validates the Authorization header
// contains a Bearer token matching the expected value. Comparison uses
// constant-time equality to prevent timing side-channel attacks.
func BearerToken(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
				return
			}

			got := []byte(auth[len("Bearer "):])

			if subtle.ConstantTimeCompare(got, expected) != 1 {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// TokenOrKey accepts either credential: requests carrying an X-Api-Key
// header are validated against key, everything else must present a Bearer
// token. Producers post signals with an API key while operators and
// dashboards use tokens.
func TokenOrKey(token, key string) func(http.Handler) http.Handler {
	bearer := BearerToken(token)
	apiKey := APIKey(key)
	return func(next http.Handler) http.Handler {
		byToken := bearer(next)
		byKey := apiKey(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Api-Key") != "" {
				byKey.ServeHTTP(w, r)
				return
			}
			byToken.ServeHTTP(w, r)
		})
	}
}

// APIKey returns middleware that validates the X-Api-Key header against the
// expected value in constant time. Signal producers (website trackers, CRM
// webhooks, dialer integrations) authenticate this way rather than with
// Bearer tokens.
func APIKey(key string) func(http.Handler) http.Handler {
	expected := []byte(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("X-Api-Key"))

			if len(got) == 0 {
				http.Error(w, `{"error":"missing api key"}`, http.StatusUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare(got, expected) != 1 {
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
