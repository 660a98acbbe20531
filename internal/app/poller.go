package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"reviewsync/internal/adapters/observability"
	"reviewsync/internal/domain"
)

// SubmitPolicy decides what happens when a target exhausts its submission
// attempts.
type SubmitPolicy int

const (
	// PolicyPropagate stops the call with a *SubmitError before any polling.
	PolicyPropagate SubmitPolicy = iota
	// PolicyContinue records the target as failed and polls the jobs that were
	// accepted.
	PolicyContinue
)

func (p SubmitPolicy) String() string {
	if p == PolicyContinue {
		return "continue"
	}
	return "propagate"
}

func ParseSubmitPolicy(s string) (SubmitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "propagate":
		return PolicyPropagate, nil
	case "continue":
		return PolicyContinue, nil
	}
	return PolicyPropagate, fmt.Errorf("unknown submit policy %q", s)
}

type PollerConfig struct {
	SubmitAttempts    int
	PollInterval      time.Duration
	FetchAllRounds    int
	RecentRounds      int
	RecentLimit       int
	Language          string
	Sort              string
	OnSubmitExhausted SubmitPolicy
}

func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		SubmitAttempts: 3,
		PollInterval:   30 * time.Second,
		FetchAllRounds: 10,
		RecentRounds:   20,
		RecentLimit:    50,
		Language:       "en",
		Sort:           "newest",
	}
}

// withDefaults fills counts and strings left at zero. A zero PollInterval is
// kept: it means "poll back to back".
func (c PollerConfig) withDefaults() PollerConfig {
	d := DefaultPollerConfig()
	if c.SubmitAttempts <= 0 {
		c.SubmitAttempts = d.SubmitAttempts
	}
	if c.FetchAllRounds <= 0 {
		c.FetchAllRounds = d.FetchAllRounds
	}
	if c.RecentRounds <= 0 {
		c.RecentRounds = d.RecentRounds
	}
	if c.RecentLimit <= 0 {
		c.RecentLimit = d.RecentLimit
	}
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.Sort == "" {
		c.Sort = d.Sort
	}
	return c
}

// SubmitError is returned when a target could not be submitted in any attempt.
type SubmitError struct {
	TargetID string
	Attempts int
	Err      error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit %s: failed after %d attempts: %v", e.TargetID, e.Attempts, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// FetchReport is what one fetch call did. Abandoned holds request ids that
// were still pending when the round budget ran out; their data was never
// persisted.
type FetchReport struct {
	Submitted []string             `json:"submitted"`
	Failed    []string             `json:"failed_submissions"`
	Resolved  int                  `json:"resolved"`
	Abandoned []string             `json:"abandoned"`
	Results   []domain.BatchResult `json:"results"`
}

type Poller struct {
	provider domain.Provider
	sink     domain.Persister
	cfg      PollerConfig
	log      zerolog.Logger

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) bool
}

func NewPoller(p domain.Provider, sink domain.Persister, cfg PollerConfig, logger zerolog.Logger) *Poller {
	return &Poller{
		provider: p,
		sink:     sink,
		cfg:      cfg.withDefaults(),
		log:      logger.With().Str("component", "poller").Logger(),
		now:      time.Now,
		wait:     sleepCtx,
	}
}

// FetchAll requests up to limit newest reviews for every id and persists each
// resolved payload.
func (p *Poller) FetchAll(ctx context.Context, ids []string, limit int) (FetchReport, error) {
	opts := domain.JobOptions{Sort: p.cfg.Sort, ReviewsLimit: limit, Language: p.cfg.Language}
	return p.run(ctx, ids, opts, p.cfg.FetchAllRounds)
}

// FetchLast24h requests the reviews of id posted in the last 24 hours.
func (p *Poller) FetchLast24h(ctx context.Context, id string) (FetchReport, error) {
	cutoff := p.now().Add(-24 * time.Hour)
	opts := domain.JobOptions{
		Sort:         p.cfg.Sort,
		ReviewsLimit: p.cfg.RecentLimit,
		Language:     p.cfg.Language,
		Cutoff:       &cutoff,
	}
	return p.run(ctx, []string{id}, opts, p.cfg.RecentRounds)
}

func (p *Poller) run(ctx context.Context, ids []string, opts domain.JobOptions, rounds int) (FetchReport, error) {
	rep := FetchReport{Submitted: []string{}, Failed: []string{}, Abandoned: []string{}, Results: []domain.BatchResult{}}

	pending := make([]domain.JobHandle, 0, len(ids))
	for _, id := range ids {
		reqID, err := p.submit(ctx, id, opts)
		if err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			if p.cfg.OnSubmitExhausted == PolicyPropagate {
				return rep, err
			}
			p.log.Error().Err(err).Str("place_id", id).Msg("giving up on target")
			rep.Failed = append(rep.Failed, id)
			continue
		}
		pending = append(pending, domain.JobHandle{RequestID: reqID, TargetID: id})
		rep.Submitted = append(rep.Submitted, reqID)
	}

	var payloads [][]map[string]any
	for round := 1; round <= rounds && len(pending) > 0; round++ {
		if !p.wait(ctx, p.cfg.PollInterval) {
			return rep, ctx.Err()
		}
		still := pending[:0]
		for _, h := range pending {
			st, err := p.provider.JobStatus(ctx, h.RequestID)
			if err != nil {
				if ctx.Err() != nil {
					return rep, ctx.Err()
				}
				observability.ObserveJob("poll_error")
				p.log.Warn().Err(err).Str("request_id", h.RequestID).Int("round", round).Msg("status check failed")
				still = append(still, h)
				continue
			}
			if !st.Resolved() {
				still = append(still, h)
				continue
			}
			observability.ObserveJob("resolved")
			p.log.Info().Str("request_id", h.RequestID).Str("place_id", h.TargetID).Int("round", round).Msg("job resolved")
			payloads = append(payloads, st.Data)
			rep.Resolved++
		}
		pending = still
	}

	for _, h := range pending {
		observability.ObserveJob("abandoned")
		p.log.Warn().Str("request_id", h.RequestID).Str("place_id", h.TargetID).Int("rounds", rounds).Msg("job abandoned, still pending")
		rep.Abandoned = append(rep.Abandoned, h.RequestID)
	}

	for _, data := range payloads {
		rep.Results = append(rep.Results, p.sink.Persist(ctx, data))
	}
	return rep, nil
}

// submit tries the provider up to SubmitAttempts times, back to back.
func (p *Poller) submit(ctx context.Context, id string, opts domain.JobOptions) (string, error) {
	var last error
	for attempt := 1; attempt <= p.cfg.SubmitAttempts; attempt++ {
		reqID, err := p.provider.SubmitReviewsJob(ctx, id, opts)
		if err == nil {
			observability.ObserveJob("submitted")
			p.log.Info().Str("place_id", id).Str("request_id", reqID).Msg("job submitted")
			return reqID, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		last = err
		p.log.Warn().Err(err).Str("place_id", id).Int("attempt", attempt).Msg("submit failed")
	}
	observability.ObserveJob("submit_failed")
	return "", &SubmitError{TargetID: id, Attempts: p.cfg.SubmitAttempts, Err: last}
}

// sleepCtx waits for d or returns false early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
