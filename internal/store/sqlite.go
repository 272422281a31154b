package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/directory-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id              TEXT PRIMARY KEY,
	total_providers INTEGER NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS providers (
	batch_id           TEXT NOT NULL REFERENCES batches(id),
	npi                TEXT NOT NULL,
	record             TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'pending',
	requires_review    INTEGER NOT NULL DEFAULT 0,
	review_priority    INTEGER NOT NULL DEFAULT 1,
	overall_confidence REAL NOT NULL DEFAULT 0,
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (batch_id, npi)
);

CREATE TABLE IF NOT EXISTS reports (
	id           TEXT PRIMARY KEY,
	batch_id     TEXT NOT NULL REFERENCES batches(id),
	report       TEXT NOT NULL,
	generated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_providers_status ON providers(batch_id, status);
CREATE INDEX IF NOT EXISTS idx_providers_review ON providers(batch_id, requires_review, review_priority DESC);
CREATE INDEX IF NOT EXISTS idx_reports_batch_id ON reports(batch_id, generated_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateBatch(ctx context.Context, batch *model.ValidationBatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin batch insert")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (id, total_providers, created_at) VALUES (?, ?, ?)`,
		batch.BatchID, batch.TotalProviders, batch.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert batch")
	}

	for _, p := range batch.Providers {
		if err := upsertProviderTx(ctx, tx, batch.BatchID, p); err != nil {
			return err
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit batch insert")
}

func (s *SQLiteStore) GetBatch(ctx context.Context, batchID string) (*model.ValidationBatch, error) {
	var b model.ValidationBatch
	err := s.db.QueryRowContext(ctx,
		`SELECT id, total_providers, created_at FROM batches WHERE id = ?`,
		batchID,
	).Scan(&b.BatchID, &b.TotalProviders, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: batch %s", batchID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get batch %s", batchID)
	}

	providers, err := s.ListProviders(ctx, batchID, ProviderFilter{Limit: b.TotalProviders})
	if err != nil {
		return nil, err
	}
	b.Providers = providers
	return &b, nil
}

func (s *SQLiteStore) SaveProviders(ctx context.Context, batchID string, providers []*model.ProviderRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin provider save")
	}
	defer tx.Rollback()

	for _, p := range providers {
		if err := upsertProviderTx(ctx, tx, batchID, p); err != nil {
			return err
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit provider save")
}

func upsertProviderTx(ctx context.Context, tx *sql.Tx, batchID string, p *model.ProviderRecord) error {
	recordJSON, err := json.Marshal(p)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal provider %s", p.NPI)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO providers (batch_id, npi, record, status, requires_review, review_priority, overall_confidence, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (batch_id, npi) DO UPDATE SET
		   record = excluded.record, status = excluded.status,
		   requires_review = excluded.requires_review,
		   review_priority = excluded.review_priority,
		   overall_confidence = excluded.overall_confidence,
		   updated_at = excluded.updated_at`,
		batchID, p.NPI, string(recordJSON), string(p.ValidationStatus),
		boolToInt(p.RequiresManualReview), p.ReviewPriority, p.OverallConfidence,
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert provider %s", p.NPI)
}

func (s *SQLiteStore) GetProvider(ctx context.Context, batchID, npi string) (*model.ProviderRecord, error) {
	var recordJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM providers WHERE batch_id = ? AND npi = ?`,
		batchID, npi,
	).Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: provider %s in batch %s", npi, batchID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get provider %s", npi)
	}

	var p model.ProviderRecord
	if err := json.Unmarshal([]byte(recordJSON), &p); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal provider %s", npi)
	}
	return &p, nil
}

func (s *SQLiteStore) ListProviders(ctx context.Context, batchID string, filter ProviderFilter) ([]*model.ProviderRecord, error) {
	query := `SELECT record FROM providers WHERE batch_id = ?`
	args := []any{batchID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ReviewOnly {
		query += ` AND requires_review = 1`
	}
	query += ` ORDER BY review_priority DESC, npi ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list providers")
	}
	defer rows.Close()

	var providers []*model.ProviderRecord
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provider")
		}
		var p model.ProviderRecord
		if err := json.Unmarshal([]byte(recordJSON), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal provider")
		}
		providers = append(providers, &p)
	}
	return providers, eris.Wrap(rows.Err(), "sqlite: list providers iterate")
}

func (s *SQLiteStore) SaveReport(ctx context.Context, report *model.ValidationReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, batch_id, report, generated_at) VALUES (?, ?, ?, ?)`,
		report.ReportID, report.BatchID, string(reportJSON), report.GeneratedAt,
	)
	return eris.Wrap(err, "sqlite: insert report")
}

func (s *SQLiteStore) GetReport(ctx context.Context, reportID string) (*model.ValidationReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT report FROM reports WHERE id = ?`,
		reportID,
	)
	return scanReport(row, reportID)
}

func (s *SQLiteStore) LatestReport(ctx context.Context, batchID string) (*model.ValidationReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT report FROM reports WHERE batch_id = ? ORDER BY generated_at DESC LIMIT 1`,
		batchID,
	)
	return scanReport(row, batchID)
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanReport(row scannable, id string) (*model.ValidationReport, error) {
	var reportJSON string
	err := row.Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: report %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get report %s", id)
	}

	var r model.ValidationReport
	if err := json.Unmarshal([]byte(reportJSON), &r); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal report %s", id)
	}
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
