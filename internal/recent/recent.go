// Package recent defines the short-term signal cache used by the on-demand
// lead analysis path.
package recent

import (
	"context"

	"github.com/linnemanlabs/pulse/internal/signal"
)

// Store keeps a bounded window of each lead's latest signals so a lead can
// be analyzed on demand without waiting for the next cycle.
type Store interface {
	// Append records a signal for its lead, evicting the oldest entries
	// past the per-lead cap.
	Append(ctx context.Context, s signal.Signal) error

	// Recent returns the lead's cached signals, oldest first. An unknown
	// lead yields an empty slice, not an error.
	Recent(ctx context.Context, leadID string) ([]signal.Signal, error)
}
