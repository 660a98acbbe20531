package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"reviewsync/internal/adapters/observability"
	"reviewsync/internal/domain"
)

const missingPlaceIDMsg = "No place_id provided for business"

// BatchService persists resolved provider payloads, one transaction per payload.
type BatchService struct {
	store domain.Store
	cache domain.Cache
	log   zerolog.Logger
}

func NewBatchService(store domain.Store, cache domain.Cache, logger zerolog.Logger) *BatchService {
	return &BatchService{
		store: store,
		cache: cache,
		log:   logger.With().Str("component", "batch").Logger(),
	}
}

// Persist writes every business of payload and its reviews, then commits once.
// Per-record problems end up in the result's error lists; only a failure that
// breaks the transaction rolls everything back and yields an error status.
func (s *BatchService) Persist(ctx context.Context, payload []map[string]any) (res domain.BatchResult) {
	defer func() { observability.ObserveBatch(res.Status) }()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("database connection failed")
		return domain.BatchResult{Status: domain.BatchError, Message: err.Error()}
	}
	defer func() {
		if cerr := tx.Close(); cerr != nil {
			s.log.Warn().Err(cerr).Msg("release connection failed")
		}
	}()

	s.log.Info().Int("businesses", len(payload)).Msg("processing batch")

	w := NewWriter(tx, s.log)
	touched, err := s.writeAll(ctx, w, payload)
	if err == nil {
		err = tx.Commit()
	}
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error().Err(rbErr).Msg("rollback failed")
		}
		s.log.Error().Err(err).Msg("error saving data")
		return domain.BatchResult{Status: domain.BatchError, Message: err.Error()}
	}

	s.invalidate(ctx, touched)

	res = domain.BatchResult{
		Status:             domain.BatchSuccess,
		BusinessesInserted: w.BusinessesInserted,
		ReviewsInserted:    w.ReviewsInserted,
		BusinessErrors:     w.BusinessErrors,
		ReviewErrors:       w.ReviewErrors,
	}
	s.log.Info().
		Int("businesses_inserted", res.BusinessesInserted).
		Int("reviews_inserted", res.ReviewsInserted).
		Msg("results summary")
	if n := len(res.BusinessErrors); n > 0 {
		s.log.Warn().Int("count", n).Msg("business errors")
	}
	if n := len(res.ReviewErrors); n > 0 {
		s.log.Warn().Int("count", n).Msg("review errors")
	}
	return res
}

func (s *BatchService) writeAll(ctx context.Context, w *Writer, payload []map[string]any) ([]string, error) {
	var touched []string
	for _, raw := range payload {
		b := MapBusiness(raw)
		if b.PlaceID == "" {
			s.log.Error().Msg(missingPlaceIDMsg)
			w.BusinessErrors = append(w.BusinessErrors, domain.RecordError{Key: "unknown", Error: missingPlaceIDMsg})
			continue
		}
		touched = append(touched, b.PlaceID)

		// reviews are written even when the business row failed
		if _, err := w.UpsertBusiness(ctx, b); err != nil && isFatal(err) {
			return touched, fmt.Errorf("business %s: %w", b.PlaceID, err)
		}

		reviews := reviewsOf(raw)
		if len(reviews) == 0 {
			continue
		}
		s.log.Info().
			Int("reviews", len(reviews)).
			Str("place_id", b.PlaceID).
			Str("name", deref(b.Name)).
			Msg("processing reviews")
		for _, rr := range reviews {
			r := MapReview(rr, b.PlaceID)
			if r.ReviewID == "" {
				w.ReviewErrors = append(w.ReviewErrors, domain.RecordError{Key: "unknown", Error: domain.ErrMissingKey.Error()})
				continue
			}
			if _, err := w.UpsertReview(ctx, r, b.PlaceID); err != nil && isFatal(err) {
				return touched, fmt.Errorf("review %s: %w", r.ReviewID, err)
			}
		}
	}
	return touched, ctx.Err()
}

// invalidate drops cached read models of the businesses this batch touched.
func (s *BatchService) invalidate(ctx context.Context, placeIDs []string) {
	if s.cache == nil || len(placeIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(placeIDs)*(1+len(reviewPageLimits)))
	for _, id := range placeIDs {
		keys = append(keys, businessKey(id))
		for _, lim := range reviewPageLimits {
			keys = append(keys, reviewsKey(id, lim))
		}
	}
	if err := s.cache.Del(ctx, keys...); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn().Err(err).Msg("cache invalidation failed")
	}
}
