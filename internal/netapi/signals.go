package netapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/pulse/internal/signal"
)

// signalBatch is the ingestion wire format. Producers post one or more
// signals per request; each is admitted or dropped independently.
type signalBatch struct {
	Signals []signalEnvelope `json:"signals"`
}

type signalEnvelope struct {
	SignalID         string         `json:"signal_id"`
	LeadID           string         `json:"lead_id"`
	Type             string         `json:"signal_type"`
	Timestamp        time.Time      `json:"timestamp"`
	InteractionValue float64        `json:"interaction_value"`
	ContextData      map[string]any `json:"context_data"`
}

func (a *API) handleIngestSignals(w http.ResponseWriter, r *http.Request) {
	var batch signalBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	var accepted []string
	var rejected, dropped int

	for _, env := range batch.Signals {
		if env.LeadID == "" {
			rejected++
			continue
		}
		typ, err := signal.ParseType(env.Type)
		if err != nil {
			a.logger.Warn(r.Context(), "rejected signal", "lead_id", env.LeadID, "signal_type", env.Type)
			rejected++
			continue
		}

		id := env.SignalID
		if id == "" {
			id = ulid.Make().String()
		}
		ts := env.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}

		s := signal.Signal{
			ID:               id,
			LeadID:           env.LeadID,
			Type:             typ,
			Timestamp:        ts,
			InteractionValue: env.InteractionValue,
			ContextData:      env.ContextData,
		}

		if !a.net.Ingest(r.Context(), s) {
			// queue full for this signal type
			dropped++
			continue
		}
		accepted = append(accepted, id)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(map[string]any{
		"accepted": accepted,
		"rejected": rejected,
		"dropped":  dropped,
	})
}
