// Package sqlite keeps the usage ledger in a local SQLite file. It is the
// default store when no PostgreSQL DSN is configured.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tidytabs/internal/models"
	"tidytabs/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS ai_usage_logs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp     DATETIME NOT NULL,
	provider_name TEXT NOT NULL,
	service_type  TEXT NOT NULL,
	model_name    TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost          REAL NOT NULL DEFAULT 0,
	request_id    TEXT
);
CREATE INDEX IF NOT EXISTS ai_usage_logs_timestamp_idx ON ai_usage_logs (timestamp DESC);
`

// Store implements store.UsageStore on database/sql.
type Store struct {
	db *sql.DB
}

var _ store.UsageStore = (*Store)(nil)

// Open opens (creating if needed) the database at path. A "sqlite://"
// prefix is accepted and ":memory:" gives a private in-memory ledger.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimPrefix(path, "sqlite://")
	if path == "" {
		return nil, fmt.Errorf("%w: empty sqlite path", store.ErrInvalidDSN)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// a second connection to :memory: would see an empty database
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to create usage schema: %w", err)
	}
	return &Store{db: db}, nil
}

// RecordUsage inserts a new AI usage log entry and sets its ID.
func (s *Store) RecordUsage(ctx context.Context, log *models.AIUsageLog) error {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}
	log.Timestamp = log.Timestamp.UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_usage_logs (
			timestamp, provider_name, service_type, model_name,
			input_tokens, output_tokens, cost, request_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.Timestamp,
		log.ProviderName,
		log.ServiceType,
		log.ModelName,
		log.InputTokens,
		log.OutputTokens,
		log.Cost,
		log.RequestID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ai_usage_log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read ai_usage_log id: %w", err)
	}
	log.ID = id
	return nil
}

// ListUsage returns AI usage logs, newest first.
func (s *Store) ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, provider_name, service_type, model_name,
		       input_tokens, output_tokens, cost, request_id
		FROM ai_usage_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ai_usage_logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AIUsageLog
	for rows.Next() {
		var (
			log   models.AIUsageLog
			reqID sql.NullString
		)
		if err := rows.Scan(
			&log.ID,
			&log.Timestamp,
			&log.ProviderName,
			&log.ServiceType,
			&log.ModelName,
			&log.InputTokens,
			&log.OutputTokens,
			&log.Cost,
			&reqID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ai_usage_log: %w", err)
		}
		if reqID.Valid {
			log.RequestID = &reqID.String
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}

// GetUsageSummary returns the total cost and token usage.
func (s *Store) GetUsageSummary(ctx context.Context) (store.UsageSummary, error) {
	var sum store.UsageSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(cost),0),
			COALESCE(SUM(input_tokens),0),
			COALESCE(SUM(output_tokens),0),
			COUNT(*)
		FROM ai_usage_logs`).Scan(&sum.TotalCost, &sum.TotalInputTokens, &sum.TotalOutputTokens, &sum.Calls)
	if err != nil {
		return store.UsageSummary{}, fmt.Errorf("failed to summarize ai_usage_logs: %w", err)
	}
	return sum, nil
}

// TotalCost returns the summed cost of every recorded call.
func (s *Store) TotalCost(ctx context.Context) (float64, error) {
	sum, err := s.GetUsageSummary(ctx)
	return sum.TotalCost, err
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
