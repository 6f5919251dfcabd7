package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// PostgresStore implements Store against the relational trace_ledger table
// (spec.md §7, "unique on trace_id"). Grounded on the teacher's
// internal/sessions/cockroach.go: sql.Open("postgres", dsn) over the
// lib/pq driver, a pooled *sql.DB, and prepared statements reused across
// calls.
type PostgresStore struct {
	db *sql.DB

	stmtUpsert     *sql.Stmt
	stmtGet        *sql.Stmt
	stmtAppendAudit *sql.Stmt
}

// PostgresConfig configures the trace ledger's relational connection.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig mirrors the teacher's connection-pool defaults.
func DefaultPostgresConfig(dsn string) PostgresConfig {
	return PostgresConfig{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// NewPostgresStore opens a pooled connection, verifies it, ensures the
// trace_ledger/llm_audit tables exist, and prepares its statements.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("trace: postgres dsn is required")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("trace: open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace: ping database: %w", err)
	}

	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	store := &PostgresStore{db: db}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS trace_ledger (
			trace_id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			site_id TEXT NOT NULL,
			session_id TEXT,
			npc_id TEXT,
			record JSONB NOT NULL,
			policy_mode TEXT,
			status TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS trace_ledger_scope_idx ON trace_ledger (tenant_id, site_id, started_at DESC);
		CREATE TABLE IF NOT EXISTS trace_llm_audit (
			id BIGSERIAL PRIMARY KEY,
			trace_id TEXT NOT NULL REFERENCES trace_ledger (trace_id) ON DELETE CASCADE,
			record JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("trace: ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) prepareStatements() error {
	var err error
	s.stmtUpsert, err = s.db.Prepare(`
		INSERT INTO trace_ledger (trace_id, tenant_id, site_id, session_id, npc_id, record, policy_mode, status, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (trace_id) DO UPDATE SET
			record = EXCLUDED.record,
			policy_mode = EXCLUDED.policy_mode,
			status = EXCLUDED.status,
			updated_at = now()
	`)
	if err != nil {
		return fmt.Errorf("trace: prepare upsert: %w", err)
	}

	s.stmtGet, err = s.db.Prepare(`
		SELECT record FROM trace_ledger WHERE trace_id = $1 AND tenant_id = $2 AND site_id = $3
	`)
	if err != nil {
		return fmt.Errorf("trace: prepare get: %w", err)
	}

	s.stmtAppendAudit, err = s.db.Prepare(`
		INSERT INTO trace_llm_audit (trace_id, record) VALUES ($1, $2)
	`)
	if err != nil {
		return fmt.Errorf("trace: prepare append audit: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) Upsert(ctx context.Context, record domain.TraceRecord) error {
	if !record.Scope.Valid() || record.TraceID == "" {
		return fmt.Errorf("trace: scope and trace_id are required")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("trace: marshal record: %w", err)
	}
	_, err = s.stmtUpsert.ExecContext(ctx,
		record.TraceID, record.TenantID, record.SiteID, record.SessionID, record.NPCID,
		payload, string(record.PolicyMode), string(record.Status), record.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("trace: upsert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, scope domain.Scope, traceID string) (domain.TraceRecord, error) {
	var payload []byte
	err := s.stmtGet.QueryRowContext(ctx, traceID, scope.TenantID, scope.SiteID).Scan(&payload)
	if err == sql.ErrNoRows {
		return domain.TraceRecord{}, ErrNotFound
	}
	if err != nil {
		return domain.TraceRecord{}, fmt.Errorf("trace: get: %w", err)
	}
	var record domain.TraceRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return domain.TraceRecord{}, fmt.Errorf("trace: unmarshal record: %w", err)
	}
	return record, nil
}

// List runs an ad hoc filtered scan over trace_ledger. It is not on the hot
// path (only management/replay endpoints call it), so it favors a plain
// query plus in-process filtering of the JSONB payload over a dynamic SQL
// WHERE builder.
func (s *PostgresStore) List(ctx context.Context, filter domain.TraceFilter) ([]domain.TraceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record FROM trace_ledger
		WHERE tenant_id = $1 AND site_id = $2
		ORDER BY started_at DESC
		LIMIT 1000
	`, filter.TenantID, filter.SiteID)
	if err != nil {
		return nil, fmt.Errorf("trace: list: %w", err)
	}
	defer rows.Close()

	var out []domain.TraceRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("trace: scan: %w", err)
		}
		var record domain.TraceRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("trace: unmarshal record: %w", err)
		}
		if filter.SessionID != "" && record.SessionID != filter.SessionID {
			continue
		}
		if filter.NPCID != "" && record.NPCID != filter.NPCID {
			continue
		}
		if filter.PolicyMode != "" && record.PolicyMode != filter.PolicyMode {
			continue
		}
		if filter.Status != "" && record.Status != filter.Status {
			continue
		}
		if !filter.CreatedFrom.IsZero() && record.StartedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && record.StartedAt.After(filter.CreatedTo) {
			continue
		}
		out = append(out, record)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendLLMAudit(ctx context.Context, traceID string, audit domain.LLMAuditRecord) error {
	payload, err := json.Marshal(audit)
	if err != nil {
		return fmt.Errorf("trace: marshal audit: %w", err)
	}
	if _, err := s.stmtAppendAudit.ExecContext(ctx, traceID, payload); err != nil {
		return fmt.Errorf("trace: append audit: %w", err)
	}
	return nil
}
