// Package netapi exposes the pulse network over HTTP: signal ingestion,
// on-demand lead analysis, trigger lookup, and network statistics.
package netapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/linnemanlabs/pulse/internal/network"
	"github.com/linnemanlabs/pulse/internal/signal"
	"github.com/linnemanlabs/pulse/internal/trigger"
)

// SignalNetwork defines the business operations netapi needs.
type SignalNetwork interface {
	Ingest(ctx context.Context, s signal.Signal) bool
	AnalyzeLeadRealtime(ctx context.Context, leadID string) (*network.LeadAnalysis, error)
	Stats() network.NetworkStats
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger   log.Logger
	net      SignalNetwork
	triggers trigger.Store
}

// New creates a new API handler.
func New(logger log.Logger, net SignalNetwork, triggers trigger.Store) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if net == nil {
		panic(xerrors.New("signal network is required"))
	}
	if triggers == nil {
		panic(xerrors.New("trigger store is required"))
	}
	return &API{
		logger:   logger,
		net:      net,
		triggers: triggers,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/signals", a.handleIngestSignals)
		r.Get("/leads/{leadID}/analysis", a.handleAnalyzeLead)
		r.Get("/leads/{leadID}/triggers", a.handleListTriggers)
		r.Get("/triggers/{id}", a.handleGetTrigger)
		r.Get("/stats", a.handleStats)
	})
}

func (a *API) handleAnalyzeLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("pulse.lead.id", leadID))

	result, err := a.net.AnalyzeLeadRealtime(r.Context(), leadID)
	if errors.Is(err, network.ErrNoData) {
		http.Error(w, `{"error":"no recent signals for lead"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		a.logger.Error(r.Context(), err, "realtime analysis failed", "lead_id", leadID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.String("pulse.lead.urgency", string(result.OverallUrgency)))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (a *API) handleGetTrigger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("pulse.trigger.id", id))

	t, ok, err := a.triggers.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get trigger", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("pulse.trigger.status", string(t.Status)))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(t)
}

func (a *API) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	list, err := a.triggers.ListByLead(r.Context(), leadID, limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list triggers", "lead_id", leadID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"lead_id":  leadID,
		"triggers": list,
	})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := a.net.Stats()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}
