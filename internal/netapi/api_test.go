package netapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/pulse/internal/analysis"
	"github.com/linnemanlabs/pulse/internal/network"
	"github.com/linnemanlabs/pulse/internal/signal"
	"github.com/linnemanlabs/pulse/internal/trigger"
	"github.com/linnemanlabs/pulse/internal/trigger/memstore"
)

// fakeNetwork records ingested signals and serves canned analysis results.
type fakeNetwork struct {
	mu       sync.Mutex
	ingested []signal.Signal
	reject   bool

	analysis    *network.LeadAnalysis
	analysisErr error
	stats       network.NetworkStats
}

func (f *fakeNetwork) Ingest(_ context.Context, s signal.Signal) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject {
		return false
	}
	f.ingested = append(f.ingested, s)
	return true
}

func (f *fakeNetwork) AnalyzeLeadRealtime(_ context.Context, _ string) (*network.LeadAnalysis, error) {
	if f.analysisErr != nil {
		return nil, f.analysisErr
	}
	if f.analysis == nil {
		return nil, network.ErrNoData
	}
	return f.analysis, nil
}

func (f *fakeNetwork) Stats() network.NetworkStats { return f.stats }

func (f *fakeNetwork) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ingested)
}

func newTestRouter(t *testing.T, net *fakeNetwork) (chi.Router, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	api := New(nil, net, store)
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return r, store
}

//  New / constructor

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	api := New(nil, &fakeNetwork{}, memstore.New())
	if api == nil {
		t.Fatal("New(nil, net, store) returned nil API")
	}
	if api.logger == nil {
		t.Fatal("New(nil, net, store) left logger nil; expected Nop logger")
	}
}

func TestNew_WithLogger(t *testing.T) {
	t.Parallel()

	api := New(log.Nop(), &fakeNetwork{}, memstore.New())
	if api == nil {
		t.Fatal("New(logger, net, store) returned nil API")
	}
}

func TestNew_NilNetwork_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New(nil, nil, store) did not panic; expected panic for nil network")
		}
	}()
	New(nil, nil, memstore.New())
}

func TestNew_NilStore_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New(nil, net, nil) did not panic; expected panic for nil store")
		}
	}()
	New(nil, &fakeNetwork{}, nil)
}

// Routing

func TestRegisterRoutes_SignalIngestion(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, &fakeNetwork{})

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{"POST valid batch", http.MethodPost, `{"signals":[{"lead_id":"lead-1","signal_type":"page_view","interaction_value":0.5}]}`, http.StatusAccepted},
		{"POST invalid JSON", http.MethodPost, `{bad`, http.StatusBadRequest},
		{"GET not allowed", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"PUT not allowed", http.MethodPut, "", http.StatusMethodNotAllowed},
		{"DELETE not allowed", http.MethodDelete, "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, "/api/v1/signals", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("%s /api/v1/signals = %d, want %d", tt.method, rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRegisterRoutes_NotFound(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, &fakeNetwork{})

	paths := []string{
		"/",
		"/api/v1",
		"/api/v2/signals",
		"/api/v1/triggers",
		"/api/v1/leads",
		"/api/v1/unknown",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusNotFound {
				t.Errorf("GET %s = %d, want %d", path, rec.Code, http.StatusNotFound)
			}
		})
	}
}

// Signal ingestion logic

func TestHandleIngestSignals_ValidBatch(t *testing.T) {
	t.Parallel()

	net := &fakeNetwork{}
	r, _ := newTestRouter(t, net)

	body := `{
		"signals": [
			{"lead_id": "lead-1", "signal_type": "property_view", "interaction_value": 0.8, "context_data": {"property_id": "prop-9"}},
			{"lead_id": "lead-1", "signal_type": "phone_call", "interaction_value": 1.0}
		]
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	accepted, ok := resp["accepted"].([]any)
	if !ok || len(accepted) != 2 {
		t.Fatalf("expected 2 accepted IDs, got %v", resp["accepted"])
	}
	if net.count() != 2 {
		t.Errorf("ingested = %d signals, want 2", net.count())
	}

	net.mu.Lock()
	defer net.mu.Unlock()
	first := net.ingested[0]
	if first.ID == "" {
		t.Error("expected generated signal ID for envelope without one")
	}
	if first.Timestamp.IsZero() {
		t.Error("expected ingestion to default a zero timestamp")
	}
	if first.PropertyID() != "prop-9" {
		t.Errorf("property ID = %q, want %q", first.PropertyID(), "prop-9")
	}
}

func TestHandleIngestSignals_PreservesProducerFields(t *testing.T) {
	t.Parallel()

	net := &fakeNetwork{}
	r, _ := newTestRouter(t, net)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	body := `{
		"signals": [
			{"signal_id": "sig-42", "lead_id": "lead-7", "signal_type": "email_click", "timestamp": "2026-03-01T12:00:00Z", "interaction_value": 0.6}
		]
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if net.count() != 1 {
		t.Fatalf("ingested = %d signals, want 1", net.count())
	}

	net.mu.Lock()
	defer net.mu.Unlock()
	got := net.ingested[0]
	if got.ID != "sig-42" {
		t.Errorf("signal ID = %q, want %q", got.ID, "sig-42")
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, ts)
	}
	if got.Type != signal.TypeEmailClick {
		t.Errorf("type = %q, want %q", got.Type, signal.TypeEmailClick)
	}
}

func TestHandleIngestSignals_RejectsUnknownTypeAndMissingLead(t *testing.T) {
	t.Parallel()

	net := &fakeNetwork{}
	r, _ := newTestRouter(t, net)

	body := `{
		"signals": [
			{"lead_id": "lead-1", "signal_type": "telepathy"},
			{"signal_type": "page_view"},
			{"lead_id": "lead-1", "signal_type": "page_view"}
		]
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if rejected := resp["rejected"].(float64); rejected != 2 {
		t.Errorf("rejected = %v, want 2", resp["rejected"])
	}
	accepted, ok := resp["accepted"].([]any)
	if !ok || len(accepted) != 1 {
		t.Errorf("expected 1 accepted ID, got %v", resp["accepted"])
	}
	if net.count() != 1 {
		t.Errorf("ingested = %d signals, want 1", net.count())
	}
}

func TestHandleIngestSignals_CountsQueueDrops(t *testing.T) {
	t.Parallel()

	net := &fakeNetwork{reject: true}
	r, _ := newTestRouter(t, net)

	body := `{"signals":[{"lead_id":"lead-1","signal_type":"page_view"}]}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if dropped := resp["dropped"].(float64); dropped != 1 {
		t.Errorf("dropped = %v, want 1", resp["dropped"])
	}
	if accepted, ok := resp["accepted"].([]any); ok && len(accepted) != 0 {
		t.Errorf("expected 0 accepted IDs, got %d", len(accepted))
	}
}

func TestHandleIngestSignals_EmptyBatch(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, &fakeNetwork{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals", strings.NewReader(`{"signals":[]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
}

// Lead analysis

func TestHandleAnalyzeLead_OK(t *testing.T) {
	t.Parallel()

	net := &fakeNetwork{
		analysis: &network.LeadAnalysis{
			LeadID:         "lead-9",
			AnalyzedAt:     time.Now(),
			SignalCount:    7,
			Insights:       []analysis.Insight{{ID: "ins-1", AgentType: analysis.AgentSignalDetector}},
			CombinedScore:  0.74,
			OverallUrgency: signal.UrgencyHigh,
		},
	}
	r, _ := newTestRouter(t, net)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/lead-9/analysis", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got network.LeadAnalysis
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.LeadID != "lead-9" {
		t.Errorf("lead_id = %q, want %q", got.LeadID, "lead-9")
	}
	if got.SignalCount != 7 {
		t.Errorf("signal_count = %d, want 7", got.SignalCount)
	}
	if got.OverallUrgency != signal.UrgencyHigh {
		t.Errorf("overall_urgency = %q, want %q", got.OverallUrgency, signal.UrgencyHigh)
	}
}

func TestHandleAnalyzeLead_NoData(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, &fakeNetwork{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/lead-cold/analysis", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleAnalyzeLead_InternalError(t *testing.T) {
	t.Parallel()

	net := &fakeNetwork{analysisErr: context.DeadlineExceeded}
	r, _ := newTestRouter(t, net)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/lead-1/analysis", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

// Triggers

func TestHandleGetTrigger(t *testing.T) {
	t.Parallel()

	r, store := newTestRouter(t, &fakeNetwork{})

	seed := &trigger.Trigger{
		ID:       "tr-1",
		LeadID:   "lead-1",
		Type:     signal.TriggerImmediateAlert,
		Priority: 5,
		Status:   trigger.StatusExecuted,
	}
	if err := store.Put(context.Background(), seed); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/triggers/tr-1", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got trigger.Trigger
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != "tr-1" || got.Status != trigger.StatusExecuted {
		t.Errorf("got trigger %q status %q, want tr-1 executed", got.ID, got.Status)
	}
}

func TestHandleGetTrigger_NotFound(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, &fakeNetwork{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/triggers/missing", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleListTriggers(t *testing.T) {
	t.Parallel()

	r, store := newTestRouter(t, &fakeNetwork{})

	for _, id := range []string{"tr-a", "tr-b", "tr-c"} {
		seed := &trigger.Trigger{ID: id, LeadID: "lead-5", Type: signal.TriggerPriorityFlag, Status: trigger.StatusCreated}
		if err := store.Put(context.Background(), seed); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/lead-5/triggers?limit=2", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		LeadID   string             `json:"lead_id"`
		Triggers []*trigger.Trigger `json:"triggers"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.LeadID != "lead-5" {
		t.Errorf("lead_id = %q, want %q", resp.LeadID, "lead-5")
	}
	if len(resp.Triggers) != 2 {
		t.Errorf("len(triggers) = %d, want 2 (limit)", len(resp.Triggers))
	}
}

func TestHandleListTriggers_InvalidLimit(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, &fakeNetwork{})

	for _, limit := range []string{"abc", "0", "-3"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/lead-1/triggers?limit="+limit, http.NoBody)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want %d", limit, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestHandleAnalyzeLead_SpanAttributes(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	net := &fakeNetwork{
		analysis: &network.LeadAnalysis{
			LeadID:         "lead-traced",
			OverallUrgency: signal.UrgencyCritical,
		},
	}
	r, _ := newTestRouter(t, net)

	ctx, span := tp.Tracer("test").Start(context.Background(), "GET /api/v1/leads/{leadID}/analysis")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads/lead-traced/analysis", http.NoBody).WithContext(ctx)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	span.End()

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("len(spans) = %d, want 1", len(spans))
	}

	attrs := make(map[attribute.Key]string)
	for _, kv := range spans[0].Attributes {
		attrs[kv.Key] = kv.Value.Emit()
	}
	if attrs["pulse.lead.id"] != "lead-traced" {
		t.Errorf("pulse.lead.id = %q, want %q", attrs["pulse.lead.id"], "lead-traced")
	}
	if attrs["pulse.lead.urgency"] != string(signal.UrgencyCritical) {
		t.Errorf("pulse.lead.urgency = %q, want %q", attrs["pulse.lead.urgency"], signal.UrgencyCritical)
	}
}

// Stats

func TestHandleStats(t *testing.T) {
	t.Parallel()

	net := &fakeNetwork{
		stats: network.NetworkStats{
			SignalsProcessed:  42,
			TriggersGenerated: 6,
			CyclesCompleted:   9,
			QueueDepths:       map[string]int{"page_view": 3},
		},
	}
	r, _ := newTestRouter(t, net)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got network.NetworkStats
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.SignalsProcessed != 42 {
		t.Errorf("signals_processed = %d, want 42", got.SignalsProcessed)
	}
	if got.QueueDepths["page_view"] != 3 {
		t.Errorf("queue_depths[page_view] = %d, want 3", got.QueueDepths["page_view"])
	}
}

// Fuzz

func FuzzSignalIngestion(f *testing.F) {
	net := &fakeNetwork{}
	api := New(nil, net, memstore.New())
	r := chi.NewRouter()
	api.RegisterRoutes(r)

	seeds := []struct {
		body        []byte
		contentType string
	}{
		{nil, ""},
		{[]byte(""), "application/json"},
		{[]byte("{}"), "application/json"},
		{[]byte(`{"signals":[{"lead_id":"l1","signal_type":"page_view"}]}`), "application/json"},
		{[]byte(`{"signals":[{"lead_id":"l1","signal_type":"nope"},{"signal_type":"page_view"}]}`), "application/json"},
		{[]byte("{invalid json"), "application/json"},
		{[]byte("\x00\x01\x02\xff\xfe"), "application/octet-stream"},
		{[]byte("<xml>not json</xml>"), "text/xml"},
		{[]byte(strings.Repeat("a", 10000)), "text/plain"},
	}
	for _, s := range seeds {
		f.Add(s.body, s.contentType)
	}

	f.Fuzz(func(t *testing.T, body []byte, contentType string) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/signals", strings.NewReader(string(body)))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		rec := httptest.NewRecorder()

		// Must not panic
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted && rec.Code != http.StatusBadRequest {
			t.Errorf("POST /api/v1/signals with body len=%d content-type=%q = %d, want 202 or 400",
				len(body), contentType, rec.Code)
		}
	})
}
