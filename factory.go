package numerion

import (
	"context"
	"fmt"

	"github.com/arrowlake/numerion/internal/artifacts"
	"github.com/arrowlake/numerion/internal/config"
	"github.com/arrowlake/numerion/internal/store"
)

// NewPostgresStore opens a run store against dsn and initializes its
// schema, matching the teacher's fail-fast-on-bad-schema constructor
// shape.
func NewPostgresStore(ctx context.Context, dsn string) (*store.Store, error) {
	st := store.New(dsn)
	if err := st.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("numerion: initializing run store schema: %w", err)
	}
	return st, nil
}

// NewArtifactStore creates an artifact store rooted at runsDir.
func NewArtifactStore(runsDir string) (*artifacts.Store, error) {
	return artifacts.New(runsDir)
}

// NewServiceFromConfig opens a Postgres-backed store and an artifact
// store from cfg and wires a Service over them.
func NewServiceFromConfig(ctx context.Context, cfg *config.Config) (*Service, error) {
	st, err := NewPostgresStore(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	arts, err := NewArtifactStore(cfg.RunsDir)
	if err != nil {
		return nil, err
	}
	return NewService(cfg, st, arts)
}
