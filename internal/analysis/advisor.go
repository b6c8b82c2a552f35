package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/pulse/internal/signal"
)

// TextGenerator is the advisory text-generation collaborator. Its output
// annotates insights but never affects pattern detection or scoring.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

const advisorMaxTokens = 300

// fallbackRecommendations is used whenever the generator is absent,
// errors, or misses its deadline.
var fallbackRecommendations = []string{
	"Provide immediate property recommendations",
	"Enable priority agent contact",
	"Send personalized market analysis",
}

// Advisor wraps a TextGenerator with a hard deadline so a slow or failing
// generation call can only cost the configured timeout, never the cycle.
type Advisor struct {
	gen     TextGenerator
	timeout time.Duration
	logger  log.Logger
}

// NewAdvisor creates an Advisor. A nil generator yields a static advisor
// that always falls back.
func NewAdvisor(gen TextGenerator, timeout time.Duration, logger log.Logger) *Advisor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Advisor{gen: gen, timeout: timeout, logger: logger}
}

// Annotate asks the generator for commentary on the detected patterns and
// returns recommended actions. On any failure it returns the static
// fallback list; the caller's numeric outputs are unaffected either way.
func (a *Advisor) Annotate(ctx context.Context, leadID string, patterns []signal.Pattern, signals []signal.Signal) []string {
	if a == nil || a.gen == nil {
		return fallbackRecommendations
	}

	gctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := a.gen.Generate(gctx, buildAdvisorPrompt(leadID, patterns, signals), advisorMaxTokens)
	if err != nil {
		a.logger.Warn(ctx, "advisory generation failed, using fallback", "lead_id", leadID, "error", err)
		return fallbackRecommendations
	}

	recs := parseAdvisorActions(text)
	if len(recs) == 0 {
		return fallbackRecommendations
	}
	return recs
}

func buildAdvisorPrompt(leadID string, patterns []signal.Pattern, signals []signal.Signal) string {
	names := make([]string, len(patterns))
	for i, p := range patterns {
		names[i] = string(p)
	}

	var span float64
	if len(signals) > 1 {
		span = signals[len(signals)-1].Timestamp.Sub(signals[0].Timestamp).Hours()
	}

	recent := signals
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	types := make([]string, len(recent))
	for i, s := range recent {
		types[i] = string(s.Type)
	}

	return fmt.Sprintf(`Behavioral patterns detected for lead %s: %s.
Signal summary: %d signals over %.1f hours. Recent signal types: %s.

Suggest up to three immediate engagement actions, one per line, no numbering.
Be concise and operational.`,
		leadID, strings.Join(names, ", "), len(signals), span, strings.Join(types, ", "))
}

// parseAdvisorActions splits generated text into one action per non-empty
// line, keeping at most three.
func parseAdvisorActions(text string) []string {
	var actions []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*• "))
		if line == "" {
			continue
		}
		actions = append(actions, line)
		if len(actions) == 3 {
			break
		}
	}
	return actions
}
