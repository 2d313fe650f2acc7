package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/lexsuite/review-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used history operations.
var preparedStatements = map[string]string{
	"insert_record":        `INSERT INTO review_records (id, review_id, contract_id, title, file_name, status, result, error_message, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"update_record_status": `UPDATE review_records SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
	"set_record_result":    `UPDATE review_records SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_record":           `SELECT id, review_id, contract_id, title, file_name, status, result, error_message, created_at, updated_at FROM review_records WHERE id = $1`,
	"delete_record":        `DELETE FROM review_records WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

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

const postgresMigration = `
CREATE TABLE IF NOT EXISTS review_records (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	review_id     TEXT NOT NULL,
	contract_id   TEXT NOT NULL,
	title         TEXT NOT NULL,
	file_name     TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	result        JSONB,
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_review_records_status ON review_records(status);
CREATE INDEX IF NOT EXISTS idx_review_records_title ON review_records(title);
CREATE INDEX IF NOT EXISTS idx_review_records_created_at ON review_records(created_at DESC);
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

func (s *PostgresStore) CreateRecord(ctx context.Context, rec model.ReviewRecord) (*model.ReviewRecord, error) {
	rec.ID = uuid.New().String()
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = model.ReviewPending
	}

	var resultJSON []byte
	if rec.Result != nil {
		var err error
		resultJSON, err = json.Marshal(rec.Result)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal result")
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO review_records (id, review_id, contract_id, title, file_name, status, result, error_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.ReviewID, rec.ContractID, rec.Title, rec.FileName,
		string(rec.Status), resultJSON, rec.ErrorMessage, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert record")
	}
	return &rec, nil
}

func (s *PostgresStore) UpdateRecordStatus(ctx context.Context, id string, status model.ReviewStatus, errorMessage string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE review_records SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		string(status), errorMessage, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update record status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("record not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) SetRecordResult(ctx context.Context, id string, result *model.ReviewResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE review_records SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(model.ReviewCompleted), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set record result %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("record not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.ReviewRecord, error) {
	var r model.ReviewRecord
	var status string
	var resultJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, review_id, contract_id, title, file_name, status, result, error_message, created_at, updated_at
		 FROM review_records WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.ReviewID, &r.ContractID, &r.Title, &r.FileName,
		&status, &resultJSON, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("record not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", id)
	}

	r.Status = model.ReviewStatus(status)
	if len(resultJSON) > 0 {
		r.Result = &model.ReviewResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.ReviewRecord, error) {
	query := `SELECT id, review_id, contract_id, title, file_name, status, result, error_message, created_at, updated_at
	          FROM review_records WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Title != "" {
		query += fmt.Sprintf(` AND title = $%d`, argIdx)
		args = append(args, filter.Title)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

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
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.ReviewRecord
	for rows.Next() {
		var r model.ReviewRecord
		var status string
		var resultJSON []byte

		if err := rows.Scan(&r.ID, &r.ReviewID, &r.ContractID, &r.Title, &r.FileName,
			&status, &resultJSON, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		r.Status = model.ReviewStatus(status)
		if len(resultJSON) > 0 {
			r.Result = &model.ReviewResult{}
			if err := json.Unmarshal(resultJSON, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) DeleteRecord(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM review_records WHERE id = $1`,
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete record %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("record not found: %s", id)
	}
	return nil
}
