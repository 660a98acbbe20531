package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"reviewsync/internal/adapters/observability"
	"reviewsync/internal/domain"
)

// Writer upserts records through one transaction and keeps the batch's
// counters. A failing record is recorded and skipped; only errors that leave
// the transaction unusable are returned as fatal.
type Writer struct {
	tx  domain.Tx
	log zerolog.Logger

	BusinessesInserted int
	ReviewsInserted    int
	BusinessErrors     []domain.RecordError
	ReviewErrors       []domain.RecordError
}

func NewWriter(tx domain.Tx, logger zerolog.Logger) *Writer {
	return &Writer{
		tx:             tx,
		log:            logger,
		BusinessErrors: []domain.RecordError{},
		ReviewErrors:   []domain.RecordError{},
	}
}

// UpsertBusiness returns the place id on success. Record-level failures are
// kept in BusinessErrors and returned as well; the caller only stops on
// domain.ErrTxAborted or a cancelled context.
func (w *Writer) UpsertBusiness(ctx context.Context, b domain.Business) (string, error) {
	inserted, err := w.tx.UpsertBusiness(ctx, b)
	if err != nil {
		if isFatal(err) {
			return "", err
		}
		w.log.Error().Err(err).Str("place_id", b.PlaceID).Msg("save business failed")
		w.BusinessErrors = append(w.BusinessErrors, domain.RecordError{Key: b.PlaceID, Error: err.Error()})
		observability.ObserveWrite("business", "error")
		return "", err
	}
	if inserted {
		w.BusinessesInserted++
		observability.ObserveWrite("business", "insert")
		w.log.Info().Str("place_id", b.PlaceID).Str("name", deref(b.Name)).Msg("inserted business")
	} else {
		observability.ObserveWrite("business", "update")
		w.log.Info().Str("place_id", b.PlaceID).Str("name", deref(b.Name)).Msg("updated business")
	}
	return b.PlaceID, nil
}

// UpsertReview writes r under placeID and returns the review id on success.
func (w *Writer) UpsertReview(ctx context.Context, r domain.Review, placeID string) (string, error) {
	r.BusinessPlaceID = placeID
	inserted, err := w.tx.UpsertReview(ctx, r)
	if err != nil {
		if isFatal(err) {
			return "", err
		}
		w.log.Error().Err(err).Str("review_id", r.ReviewID).Msg("save review failed")
		w.ReviewErrors = append(w.ReviewErrors, domain.RecordError{Key: r.ReviewID, Error: err.Error()})
		observability.ObserveWrite("review", "error")
		return "", err
	}
	if inserted {
		w.ReviewsInserted++
		observability.ObserveWrite("review", "insert")
		w.log.Debug().Str("review_id", r.ReviewID).Msg("inserted review")
	} else {
		observability.ObserveWrite("review", "update")
		w.log.Debug().Str("review_id", r.ReviewID).Msg("updated review")
	}
	return r.ReviewID, nil
}

func isFatal(err error) bool {
	return errors.Is(err, domain.ErrTxAborted) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
