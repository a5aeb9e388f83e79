// Package store implements the persistent run store's schema-level
// contract over PostgreSQL via bun: runs, their append-only stage
// logs, result/plot payloads, and artifact index rows. Run, result and
// plot writes use upsert semantics where a primary-key collision replaces
// the row; stage-log lines and artifact index rows are plain inserts under
// an autoincrement id, with no upsert.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Store is a bun-backed implementation of the persistent run store.
type Store struct {
	db *bun.DB
}

// New opens a connection pool against dsn. The connection is lazy:
// no network round trip happens until the first query.
func New(dsn string) *Store {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &Store{db: db}
}

// InitSchema creates every table this store owns, if not already present.
func (s *Store) InitSchema(ctx context.Context) error {
	models := []interface{}{
		(*RunModel)(nil),
		(*RunLogModel)(nil),
		(*RunResultModel)(nil),
		(*RunPlotModel)(nil),
		(*RunArtifactModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// RunModel is the `runs` table row.
type RunModel struct {
	bun.BaseModel `bun:"table:runs,alias:r"`

	RunID      string         `bun:"run_id,pk"`
	Status     string         `bun:"status"`
	Stage      string         `bun:"stage"`
	Progress   float64        `bun:"progress"`
	CreatedAt  time.Time      `bun:"created_at"`
	UpdatedAt  time.Time      `bun:"updated_at"`
	ConfigJSON map[string]any `bun:"config_json,type:jsonb"`
	ConfigHash string         `bun:"config_hash"`
	Error      string         `bun:"error,nullzero"`
}

// UpsertRun inserts or replaces a run row by run_id.
func (s *Store) UpsertRun(ctx context.Context, m *RunModel) error {
	_, err := s.db.NewInsert().Model(m).On("CONFLICT (run_id) DO UPDATE").Exec(ctx)
	return err
}

// GetRun fetches a run row by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunModel, error) {
	m := new(RunModel)
	if err := s.db.NewSelect().Model(m).Where("run_id = ?", runID).Scan(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// ListRuns returns every run row, most recently updated first.
func (s *Store) ListRuns(ctx context.Context) ([]RunModel, error) {
	var models []RunModel
	err := s.db.NewSelect().Model(&models).Order("updated_at DESC").Scan(ctx)
	return models, err
}

// RunLogModel is one `run_logs` append-only line.
type RunLogModel struct {
	bun.BaseModel `bun:"table:run_logs,alias:rl"`

	ID        int64     `bun:"id,pk,autoincrement"`
	RunID     string    `bun:"run_id"`
	Timestamp time.Time `bun:"timestamp"`
	Stage     string    `bun:"stage"`
	Message   string    `bun:"message"`
}

// AppendRunLog inserts one stage-log line. Logs are append-only: no
// upsert, every call is a fresh row.
func (s *Store) AppendRunLog(ctx context.Context, m *RunLogModel) error {
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

// ListRunLogs returns every log line for runID in append order.
func (s *Store) ListRunLogs(ctx context.Context, runID string) ([]RunLogModel, error) {
	var models []RunLogModel
	err := s.db.NewSelect().Model(&models).Where("run_id = ?", runID).Order("id ASC").Scan(ctx)
	return models, err
}

// RunResultModel is the `run_results` table row: one current result
// summary per run, replaced wholesale on each update.
type RunResultModel struct {
	bun.BaseModel `bun:"table:run_results,alias:rr"`

	RunID      string         `bun:"run_id,pk"`
	ResultJSON map[string]any `bun:"result_json,type:jsonb"`
	UpdatedAt  time.Time      `bun:"updated_at"`
}

// UpsertRunResult replaces the result row for m.RunID.
func (s *Store) UpsertRunResult(ctx context.Context, m *RunResultModel) error {
	_, err := s.db.NewInsert().Model(m).On("CONFLICT (run_id) DO UPDATE").Exec(ctx)
	return err
}

// GetRunResult fetches the result row for runID.
func (s *Store) GetRunResult(ctx context.Context, runID string) (*RunResultModel, error) {
	m := new(RunResultModel)
	if err := s.db.NewSelect().Model(m).Where("run_id = ?", runID).Scan(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// RunPlotModel is one `run_plots` row, keyed by (run_id, plot_id).
type RunPlotModel struct {
	bun.BaseModel `bun:"table:run_plots,alias:rp"`

	RunID       string         `bun:"run_id,pk"`
	PlotID      string         `bun:"plot_id,pk"`
	PayloadJSON map[string]any `bun:"payload_json,type:jsonb"`
}

// UpsertRunPlot replaces the plot row for (m.RunID, m.PlotID).
func (s *Store) UpsertRunPlot(ctx context.Context, m *RunPlotModel) error {
	_, err := s.db.NewInsert().Model(m).On("CONFLICT (run_id, plot_id) DO UPDATE").Exec(ctx)
	return err
}

// ListRunPlots returns every plot row for a run.
func (s *Store) ListRunPlots(ctx context.Context, runID string) ([]RunPlotModel, error) {
	var models []RunPlotModel
	err := s.db.NewSelect().Model(&models).Where("run_id = ?", runID).Scan(ctx)
	return models, err
}

// RunArtifactModel is one `run_artifacts` index row.
type RunArtifactModel struct {
	bun.BaseModel `bun:"table:run_artifacts,alias:ra"`

	ID           int64     `bun:"id,pk,autoincrement"`
	RunID        string    `bun:"run_id"`
	ArtifactType string    `bun:"artifact_type"`
	Path         string    `bun:"path"`
	CreatedAt    time.Time `bun:"created_at"`
}

// RecordRunArtifact indexes one written artifact.
func (s *Store) RecordRunArtifact(ctx context.Context, m *RunArtifactModel) error {
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

// ListRunArtifacts returns every indexed artifact for a run.
func (s *Store) ListRunArtifacts(ctx context.Context, runID string) ([]RunArtifactModel, error) {
	var models []RunArtifactModel
	err := s.db.NewSelect().Model(&models).Where("run_id = ?", runID).Order("id ASC").Scan(ctx)
	return models, err
}
