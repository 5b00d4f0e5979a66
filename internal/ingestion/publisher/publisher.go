// Package publisher accepts docset publish requests, records them as index
// jobs and announces them on the docset-published topic.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

type Publisher struct {
	jobs     JobStore
	producer kafka.Publisher
	logger   *slog.Logger
}

// New returns a Publisher. jobs may be nil, in which case requests are not
// deduplicated and job status is not queryable.
func New(jobs JobStore, producer kafka.Publisher) *Publisher {
	return &Publisher{
		jobs:     jobs,
		producer: producer,
		logger:   slog.Default().With("component", "docset-publisher"),
	}
}

// Submit records a pending job and publishes a DocsetPublished event keyed
// by docset, so every version of a docset is indexed in order.
func (p *Publisher) Submit(ctx context.Context, req *ingestion.PublishRequest) (*ingestion.PublishResponse, error) {
	if p.jobs != nil && req.IdempotencyKey != "" {
		existing, err := p.jobs.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("checking idempotency key: %w", err)
		}
		if existing != nil {
			p.logger.Info("duplicate publish request",
				"idempotency_key", req.IdempotencyKey,
				"job_id", existing.ID,
			)
			return &ingestion.PublishResponse{
				JobID:   existing.ID,
				Status:  existing.Status,
				Docset:  existing.Docset,
				Version: existing.Version,
			}, nil
		}
	}

	job := Job{
		ID:      uuid.NewString(),
		Docset:  req.Docset,
		Version: req.Version,
		Dir:     req.Dir,
		Status:  ingestion.JobPending,
	}
	if p.jobs != nil {
		if err := p.jobs.Create(ctx, job, req.IdempotencyKey); err != nil {
			return nil, fmt.Errorf("recording job: %w", err)
		}
	}

	event := kafka.Event{
		Key: job.Docset,
		Value: ingestion.DocsetPublished{
			JobID:       job.ID,
			Docset:      job.Docset,
			Version:     job.Version,
			Dir:         job.Dir,
			RequestedAt: time.Now().UTC(),
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		if p.jobs == nil {
			return nil, apperrors.Newf(apperrors.ErrInternal, http.StatusServiceUnavailable, "announcing docset: %v", err)
		}
		p.logger.Error("failed to publish to kafka, job stuck in PENDING",
			"job_id", job.ID,
			"docset", job.Docset,
			"error", err,
		)
		if markErr := p.jobs.Mark(ctx, job.ID, ingestion.JobFailed, "announce failed: "+err.Error()); markErr != nil {
			p.logger.Error("failed to mark job", "job_id", job.ID, "error", markErr)
		}
		return nil, apperrors.Newf(apperrors.ErrInternal, http.StatusServiceUnavailable, "announcing docset: %v", err)
	}

	return &ingestion.PublishResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Docset:  job.Docset,
		Version: job.Version,
	}, nil
}

// Job returns the recorded state of a job.
func (p *Publisher) Job(ctx context.Context, id string) (*Job, error) {
	if p.jobs == nil {
		return nil, apperrors.New(apperrors.ErrEntryNotFound, http.StatusNotFound, "job tracking is disabled")
	}
	return p.jobs.Get(ctx, id)
}
