package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrMissingKey = errors.New("missing unique key")

	// ErrTxAborted means the transaction can no longer be used and the whole
	// batch has to be rolled back.
	ErrTxAborted = errors.New("transaction aborted")
)

// Provider is the scraping API's async job surface.
type Provider interface {
	SubmitReviewsJob(ctx context.Context, targetID string, opts JobOptions) (requestID string, err error)
	JobStatus(ctx context.Context, requestID string) (JobStatus, error)
}

// Store hands out one transaction on one dedicated connection per call.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a unit of work. Close releases the connection and must always be
// called; it rolls back if neither Commit nor Rollback ran.
type Tx interface {
	UpsertBusiness(ctx context.Context, b Business) (inserted bool, err error)
	UpsertReview(ctx context.Context, r Review) (inserted bool, err error)
	Commit() error
	Rollback() error
	Close() error
}

// Persister consumes one resolved provider payload.
type Persister interface {
	Persist(ctx context.Context, payload []map[string]any) BatchResult
}

type ReadRepository interface {
	GetBusiness(ctx context.Context, placeID string) (BusinessView, error)
	ListReviews(ctx context.Context, placeID string, limit int) (ReviewsPage, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, keys ...string) error
}
