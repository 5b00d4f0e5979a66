package publisher

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

// JobSchema creates the index_jobs table. It is idempotent.
const JobSchema = `
CREATE TABLE IF NOT EXISTS index_jobs (
    id              TEXT        PRIMARY KEY,
    docset          TEXT        NOT NULL,
    version         TEXT        NOT NULL,
    dir             TEXT        NOT NULL,
    status          TEXT        NOT NULL,
    detail          TEXT        NOT NULL DEFAULT '',
    idempotency_key TEXT        UNIQUE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

type Job struct {
	ID        string    `json:"job_id"`
	Docset    string    `json:"docset"`
	Version   string    `json:"version"`
	Dir       string    `json:"dir"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobStore records index jobs. Mark is also called by the indexing
// pipeline when a job finishes.
type JobStore interface {
	FindByIdempotencyKey(ctx context.Context, key string) (*Job, error)
	Create(ctx context.Context, job Job, idempotencyKey string) error
	Mark(ctx context.Context, id, status, detail string) error
	Get(ctx context.Context, id string) (*Job, error)
}

type PostgresJobs struct {
	db *postgres.Client
}

func NewPostgresJobs(db *postgres.Client) *PostgresJobs {
	return &PostgresJobs{db: db}
}

func (s *PostgresJobs) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, JobSchema); err != nil {
		return fmt.Errorf("creating index_jobs: %w", err)
	}
	return nil
}

const jobColumns = `id, docset, version, dir, status, detail, created_at, updated_at`

func scanJob(row *sql.Row) (*Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.Docset, &j.Version, &j.Dir, &j.Status, &j.Detail, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresJobs) FindByIdempotencyKey(ctx context.Context, key string) (*Job, error) {
	j, err := scanJob(s.db.DB.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM index_jobs WHERE idempotency_key = $1`, key))
	if err != nil {
		return nil, fmt.Errorf("querying by idempotency key: %w", err)
	}
	return j, nil
}

func (s *PostgresJobs) Create(ctx context.Context, job Job, idempotencyKey string) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO index_jobs (id, docset, version, dir, status, idempotency_key)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (idempotency_key) DO NOTHING`,
			job.ID, job.Docset, job.Version, job.Dir, job.Status, nullableString(idempotencyKey),
		)
		if err != nil {
			return fmt.Errorf("inserting job: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.New(apperrors.ErrIdempotencyConflict, http.StatusConflict, "idempotency key already in use")
		}
		return nil
	})
}

func (s *PostgresJobs) Mark(ctx context.Context, id, status, detail string) error {
	_, err := s.db.DB.ExecContext(ctx,
		`UPDATE index_jobs SET status = $1, detail = $2, updated_at = NOW() WHERE id = $3`,
		status, detail, id,
	)
	if err != nil {
		return fmt.Errorf("updating job %s: %w", id, err)
	}
	return nil
}

func (s *PostgresJobs) Get(ctx context.Context, id string) (*Job, error) {
	j, err := scanJob(s.db.DB.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM index_jobs WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("querying job: %w", err)
	}
	if j == nil {
		return nil, apperrors.Newf(apperrors.ErrEntryNotFound, http.StatusNotFound, "job %s", id)
	}
	return j, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
