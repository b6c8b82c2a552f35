// Package pgstore provides a PostgreSQL implementation of trigger.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/pulse/internal/signal"
	"github.com/linnemanlabs/pulse/internal/trigger"
)

var tracer = otel.Tracer("github.com/linnemanlabs/pulse/internal/trigger/pgstore")

//go:embed schema.sql
var schema string

// Store persists triggers in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool, applies the schema, and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const triggerColumns = `id, lead_id, trigger_type, condition, payload, priority, status,
	triggered_at, expires_at, executed, executed_at, execution_result`

// Get retrieves a trigger by ID.
func (s *Store) Get(ctx context.Context, id string) (*trigger.Trigger, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + triggerColumns + ` FROM triggers WHERE id = $1`
	t, err := scanTriggerRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if t == nil {
		return nil, false, nil
	}
	return t, true, nil
}

// Put inserts or updates a trigger (upsert on id).
func (s *Store) Put(ctx context.Context, t *trigger.Trigger) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	payloadJSON, err := json.Marshal(t.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var executedAt *time.Time
	if !t.ExecutedAt.IsZero() {
		executedAt = &t.ExecutedAt
	}

	query := `INSERT INTO triggers (
		id, lead_id, trigger_type, condition, payload, priority, status,
		triggered_at, expires_at, executed, executed_at, execution_result
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	ON CONFLICT (id) DO UPDATE SET
		status           = EXCLUDED.status,
		executed         = EXCLUDED.executed,
		executed_at      = EXCLUDED.executed_at,
		execution_result = EXCLUDED.execution_result`

	_, err = s.pool.Exec(ctx, query,
		t.ID, t.LeadID, string(t.Type), t.Condition, payloadJSON, t.Priority, string(t.Status),
		t.TriggeredAt, t.ExpiresAt, t.Executed, executedAt, t.ExecutionResult,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert trigger: %w", err)
	}
	return nil
}

// ListByLead returns up to limit of the lead's most recent triggers,
// newest first. A non-positive limit means no cap.
func (s *Store) ListByLead(ctx context.Context, leadID string, limit int) ([]*trigger.Trigger, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListByLead", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + triggerColumns + ` FROM triggers WHERE lead_id = $1 ORDER BY triggered_at DESC`
	args := []any{leadID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query triggers: %w", err)
	}
	defer rows.Close()

	var out []*trigger.Trigger
	for rows.Next() {
		t, err := scanTriggerRow(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate triggers: %w", err)
	}
	return out, nil
}

// scanTriggerRow scans a single row into a trigger.Trigger.
// Returns (nil, nil) when no row is found.
func scanTriggerRow(row pgx.Row) (*trigger.Trigger, error) {
	var (
		t           trigger.Trigger
		ttype       string
		status      string
		payloadJSON []byte
		executedAt  *time.Time
	)

	err := row.Scan(
		&t.ID, &t.LeadID, &ttype, &t.Condition, &payloadJSON, &t.Priority, &status,
		&t.TriggeredAt, &t.ExpiresAt, &t.Executed, &executedAt, &t.ExecutionResult,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	t.Type = signal.TriggerType(ttype)
	t.Status = trigger.Status(status)
	if executedAt != nil {
		t.ExecutedAt = *executedAt
	}
	if err := json.Unmarshal(payloadJSON, &t.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &t, nil
}
