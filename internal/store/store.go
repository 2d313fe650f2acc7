// Package store persists the local review history. Two backends are
// provided: SQLite for the default single-user setup and Postgres for shared
// deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/lexsuite/review-cli/internal/model"
)

// RecordFilter specifies criteria for listing history records.
type RecordFilter struct {
	Status model.ReviewStatus `json:"status,omitempty"`
	Title  string             `json:"title,omitempty"`
	Limit  int                `json:"limit,omitempty"`
	Offset int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for the review history.
type Store interface {
	CreateRecord(ctx context.Context, rec model.ReviewRecord) (*model.ReviewRecord, error)
	UpdateRecordStatus(ctx context.Context, id string, status model.ReviewStatus, errorMessage string) error
	SetRecordResult(ctx context.Context, id string, result *model.ReviewResult) error
	GetRecord(ctx context.Context, id string) (*model.ReviewRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.ReviewRecord, error)
	DeleteRecord(ctx context.Context, id string) error

	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a history backend.
type Config struct {
	Backend  string      `yaml:"backend" mapstructure:"backend"`
	Path     string      `yaml:"path" mapstructure:"path"`
	ConnStr  string      `yaml:"conn_str" mapstructure:"conn_str"`
	PoolConf *PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Open creates the configured backend and runs migrations.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "review-history.db"
		}
		s, err = NewSQLite(path)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.ConnStr, cfg.PoolConf)
	default:
		return nil, eris.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
