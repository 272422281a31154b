package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/directory-cli/internal/db"
	"github.com/sells-group/directory-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_batch":  `INSERT INTO batches (id, total_providers, created_at) VALUES ($1, $2, $3)`,
	"get_batch":     `SELECT id, total_providers, created_at FROM batches WHERE id = $1`,
	"get_provider":  `SELECT record FROM providers WHERE batch_id = $1 AND npi = $2`,
	"insert_report": `INSERT INTO reports (id, batch_id, report, generated_at) VALUES ($1, $2, $3, $4)`,
	"get_report":    `SELECT report FROM reports WHERE id = $1`,
	"latest_report": `SELECT report FROM reports WHERE batch_id = $1 ORDER BY generated_at DESC LIMIT 1`,
}

// providerColumns is the column order used for bulk loads and upserts.
var providerColumns = []string{
	"batch_id", "npi", "record", "status",
	"requires_review", "review_priority", "overall_confidence", "updated_at",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests to inject a
// pgxmock pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id              TEXT PRIMARY KEY,
	total_providers INTEGER NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS providers (
	batch_id           TEXT NOT NULL REFERENCES batches(id),
	npi                TEXT NOT NULL,
	record             JSONB NOT NULL,
	status             TEXT NOT NULL DEFAULT 'pending',
	requires_review    BOOLEAN NOT NULL DEFAULT false,
	review_priority    INTEGER NOT NULL DEFAULT 1,
	overall_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (batch_id, npi)
);

CREATE TABLE IF NOT EXISTS reports (
	id           TEXT PRIMARY KEY,
	batch_id     TEXT NOT NULL REFERENCES batches(id),
	report       JSONB NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_providers_status ON providers(batch_id, status);
CREATE INDEX IF NOT EXISTS idx_providers_review ON providers(batch_id, requires_review, review_priority DESC);
CREATE INDEX IF NOT EXISTS idx_reports_batch_id ON reports(batch_id, generated_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, batch *model.ValidationBatch) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO batches (id, total_providers, created_at) VALUES ($1, $2, $3)`,
		batch.BatchID, batch.TotalProviders, batch.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert batch")
	}

	rows, err := providerRows(batch.BatchID, batch.Providers)
	if err != nil {
		return err
	}
	if _, err := db.CopyFrom(ctx, s.pool, "providers", providerColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: load batch %s providers", batch.BatchID)
	}
	return nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, batchID string) (*model.ValidationBatch, error) {
	var b model.ValidationBatch
	err := s.pool.QueryRow(ctx,
		`SELECT id, total_providers, created_at FROM batches WHERE id = $1`,
		batchID,
	).Scan(&b.BatchID, &b.TotalProviders, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: batch %s", batchID)
		}
		return nil, eris.Wrapf(err, "postgres: get batch %s", batchID)
	}

	providers, err := s.ListProviders(ctx, batchID, ProviderFilter{Limit: b.TotalProviders})
	if err != nil {
		return nil, err
	}
	b.Providers = providers
	return &b, nil
}

func (s *PostgresStore) SaveProviders(ctx context.Context, batchID string, providers []*model.ProviderRecord) error {
	rows, err := providerRows(batchID, providers)
	if err != nil {
		return err
	}
	_, err = db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "providers",
		Columns:      providerColumns,
		ConflictKeys: []string{"batch_id", "npi"},
	}, rows)
	return eris.Wrapf(err, "postgres: save providers for batch %s", batchID)
}

func providerRows(batchID string, providers []*model.ProviderRecord) ([][]any, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(providers))
	for _, p := range providers {
		recordJSON, err := json.Marshal(p)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: marshal provider %s", p.NPI)
		}
		rows = append(rows, []any{
			batchID, p.NPI, recordJSON, string(p.ValidationStatus),
			p.RequiresManualReview, p.ReviewPriority, p.OverallConfidence, now,
		})
	}
	return rows, nil
}

func (s *PostgresStore) GetProvider(ctx context.Context, batchID, npi string) (*model.ProviderRecord, error) {
	var recordJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM providers WHERE batch_id = $1 AND npi = $2`,
		batchID, npi,
	).Scan(&recordJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: provider %s in batch %s", npi, batchID)
		}
		return nil, eris.Wrapf(err, "postgres: get provider %s", npi)
	}

	var p model.ProviderRecord
	if err := json.Unmarshal(recordJSON, &p); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal provider %s", npi)
	}
	return &p, nil
}

func (s *PostgresStore) ListProviders(ctx context.Context, batchID string, filter ProviderFilter) ([]*model.ProviderRecord, error) {
	query := `SELECT record FROM providers WHERE batch_id = $1`
	args := []any{batchID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.ReviewOnly {
		query += ` AND requires_review`
	}
	query += ` ORDER BY review_priority DESC, npi ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list providers")
	}
	defer rows.Close()

	var providers []*model.ProviderRecord
	for rows.Next() {
		var recordJSON []byte
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan provider")
		}
		var p model.ProviderRecord
		if err := json.Unmarshal(recordJSON, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal provider")
		}
		providers = append(providers, &p)
	}
	return providers, eris.Wrap(rows.Err(), "postgres: list providers iterate")
}

func (s *PostgresStore) SaveReport(ctx context.Context, report *model.ValidationReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (id, batch_id, report, generated_at) VALUES ($1, $2, $3, $4)`,
		report.ReportID, report.BatchID, reportJSON, report.GeneratedAt,
	)
	return eris.Wrap(err, "postgres: insert report")
}

func (s *PostgresStore) GetReport(ctx context.Context, reportID string) (*model.ValidationReport, error) {
	return s.queryReport(ctx,
		`SELECT report FROM reports WHERE id = $1`,
		reportID,
	)
}

func (s *PostgresStore) LatestReport(ctx context.Context, batchID string) (*model.ValidationReport, error) {
	return s.queryReport(ctx,
		`SELECT report FROM reports WHERE batch_id = $1 ORDER BY generated_at DESC LIMIT 1`,
		batchID,
	)
}

func (s *PostgresStore) queryReport(ctx context.Context, query, id string) (*model.ValidationReport, error) {
	var reportJSON []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(&reportJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: report %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get report %s", id)
	}

	var r model.ValidationReport
	if err := json.Unmarshal(reportJSON, &r); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal report %s", id)
	}
	return &r, nil
}
