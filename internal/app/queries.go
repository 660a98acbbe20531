package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reviewsync/internal/domain"
)

// Page sizes the API hands out most; these are the review cache entries
// evicted after a batch.
var reviewPageLimits = []int{DefaultReviewPage, 100, 200}

const DefaultReviewPage = 50

func businessKey(placeID string) string { return "business:" + placeID }

func reviewsKey(placeID string, limit int) string {
	return fmt.Sprintf("reviews:%s:%d", placeID, limit)
}

type QueryService struct {
	repo     domain.ReadRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.ReadRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

func (s *QueryService) GetBusiness(ctx context.Context, placeID string) (domain.BusinessView, error) {
	key := businessKey(placeID)
	var bv domain.BusinessView
	if ok, _ := s.cache.Get(ctx, key, &bv); ok {
		return bv, nil
	}
	b, err := s.repo.GetBusiness(ctx, placeID)
	if err != nil {
		return domain.BusinessView{}, err
	}
	_ = s.cache.Set(ctx, key, b, int(s.cacheTTL.Seconds()))
	return b, nil
}

func (s *QueryService) ListReviews(ctx context.Context, placeID string, limit int) (domain.ReviewsPage, error) {
	key := reviewsKey(placeID, limit)
	var out domain.ReviewsPage
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}

	rs, err := s.repo.ListReviews(ctx, placeID, limit)
	if err != nil {
		return domain.ReviewsPage{}, err
	}

	// copy slice to avoid aliasing the repo's backing array
	copyRS := deepCopyReviewsPage(rs)

	// optional size guard
	if b, _ := json.Marshal(copyRS); len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, copyRS, int(s.cacheTTL.Seconds()))
	}
	return copyRS, nil
}

func deepCopyReviewsPage(in domain.ReviewsPage) domain.ReviewsPage {
	out := domain.ReviewsPage{Items: []domain.ReviewView{}}
	if n := len(in.Items); n > 0 {
		out.Items = make([]domain.ReviewView, n)
		copy(out.Items, in.Items)
	}
	return out
}
