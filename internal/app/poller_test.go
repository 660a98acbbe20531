package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewsync/internal/app"
	"reviewsync/internal/domain"
)

// fakeProvider resolves a job once it has been polled resolveAfter times.
// A negative resolveAfter never resolves.
type fakeProvider struct {
	mu           sync.Mutex
	submitFails  map[string]int // target -> remaining failures (-1 = always)
	resolveAfter int
	pollErrs     int // first N status calls fail
	submits      int
	polls        map[string]int
	opts         []domain.JobOptions
}

func newFakeProvider(resolveAfter int) *fakeProvider {
	return &fakeProvider{submitFails: map[string]int{}, resolveAfter: resolveAfter, polls: map[string]int{}}
}

func (f *fakeProvider) SubmitReviewsJob(ctx context.Context, targetID string, opts domain.JobOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	f.opts = append(f.opts, opts)
	if n := f.submitFails[targetID]; n != 0 {
		if n > 0 {
			f.submitFails[targetID] = n - 1
		}
		return "", errors.New("provider unavailable")
	}
	return "req-" + targetID, nil
}

func (f *fakeProvider) JobStatus(ctx context.Context, requestID string) (domain.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErrs > 0 {
		f.pollErrs--
		return domain.JobStatus{}, errors.New("timeout")
	}
	f.polls[requestID]++
	if f.resolveAfter < 0 || f.polls[requestID] < f.resolveAfter {
		return domain.JobStatus{ID: requestID, Status: domain.StatusPending}, nil
	}
	return domain.JobStatus{
		ID:     requestID,
		Status: domain.StatusSuccess,
		Data:   []map[string]any{{"place_id": requestID}},
	}, nil
}

func (f *fakeProvider) totalPolls() int {
	n := 0
	for _, v := range f.polls {
		n += v
	}
	return n
}

type fakeSink struct {
	payloads [][]map[string]any
}

func (s *fakeSink) Persist(ctx context.Context, payload []map[string]any) domain.BatchResult {
	s.payloads = append(s.payloads, payload)
	return domain.BatchResult{Status: domain.BatchSuccess, BusinessesInserted: len(payload)}
}

func testConfig() app.PollerConfig {
	cfg := app.DefaultPollerConfig()
	cfg.PollInterval = 0
	cfg.FetchAllRounds = 3
	cfg.RecentRounds = 4
	return cfg
}

func TestFetchAll_ResolvesOnSecondRound(t *testing.T) {
	prov := newFakeProvider(2)
	sink := &fakeSink{}
	p := app.NewPoller(prov, sink, testConfig(), zerolog.Nop())

	rep, err := p.FetchAll(context.Background(), []string{"p1"}, 20)
	require.NoError(t, err)

	assert.Equal(t, []string{"req-p1"}, rep.Submitted)
	assert.Equal(t, 1, rep.Resolved)
	assert.Empty(t, rep.Abandoned)
	require.Len(t, sink.payloads, 1)
	assert.Equal(t, "req-p1", sink.payloads[0][0]["place_id"])
	require.Len(t, rep.Results, 1)
	assert.True(t, rep.Results[0].OK())
	assert.Equal(t, 2, prov.polls["req-p1"])

	require.Len(t, prov.opts, 1)
	assert.Equal(t, 20, prov.opts[0].ReviewsLimit)
	assert.Equal(t, "newest", prov.opts[0].Sort)
	assert.Equal(t, "en", prov.opts[0].Language)
	assert.Nil(t, prov.opts[0].Cutoff)
}

// Jobs that outlive the round budget are dropped without an error; they are
// only reported as abandoned.
func TestFetchAll_UnresolvedJobIsAbandoned(t *testing.T) {
	prov := newFakeProvider(-1)
	sink := &fakeSink{}
	p := app.NewPoller(prov, sink, testConfig(), zerolog.Nop())

	rep, err := p.FetchAll(context.Background(), []string{"p1", "p2"}, 10)
	require.NoError(t, err)

	assert.Empty(t, sink.payloads)
	assert.Zero(t, rep.Resolved)
	assert.Equal(t, []string{"req-p1", "req-p2"}, rep.Abandoned)
	assert.Equal(t, 3, prov.polls["req-p1"])
}

func TestFetchAll_SubmitExhaustedPropagates(t *testing.T) {
	prov := newFakeProvider(1)
	prov.submitFails["p1"] = -1
	sink := &fakeSink{}
	p := app.NewPoller(prov, sink, testConfig(), zerolog.Nop())

	_, err := p.FetchAll(context.Background(), []string{"p1", "p2"}, 10)

	var se *app.SubmitError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, "p1", se.TargetID)
	assert.Equal(t, 3, se.Attempts)
	assert.Equal(t, 3, prov.submits)
	assert.Zero(t, prov.totalPolls())
	assert.Empty(t, sink.payloads)
}

func TestFetchAll_SubmitRetriesThenSucceeds(t *testing.T) {
	prov := newFakeProvider(1)
	prov.submitFails["p1"] = 2
	p := app.NewPoller(prov, &fakeSink{}, testConfig(), zerolog.Nop())

	rep, err := p.FetchAll(context.Background(), []string{"p1"}, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, prov.submits)
	assert.Equal(t, 1, rep.Resolved)
}

func TestFetchAll_ContinuePolicySkipsFailedTarget(t *testing.T) {
	prov := newFakeProvider(1)
	prov.submitFails["bad"] = -1
	sink := &fakeSink{}
	cfg := testConfig()
	cfg.OnSubmitExhausted = app.PolicyContinue
	p := app.NewPoller(prov, sink, cfg, zerolog.Nop())

	rep, err := p.FetchAll(context.Background(), []string{"bad", "good"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"bad"}, rep.Failed)
	assert.Equal(t, []string{"req-good"}, rep.Submitted)
	assert.Len(t, sink.payloads, 1)
}

func TestFetchAll_PollErrorKeepsJobPending(t *testing.T) {
	prov := newFakeProvider(1)
	prov.pollErrs = 1
	sink := &fakeSink{}
	p := app.NewPoller(prov, sink, testConfig(), zerolog.Nop())

	rep, err := p.FetchAll(context.Background(), []string{"p1"}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Resolved)
	assert.Len(t, sink.payloads, 1)
}

func TestFetchLast24h_SendsCutoff(t *testing.T) {
	prov := newFakeProvider(1)
	p := app.NewPoller(prov, &fakeSink{}, testConfig(), zerolog.Nop())

	before := time.Now().Add(-24 * time.Hour)
	rep, err := p.FetchLast24h(context.Background(), "p1")
	after := time.Now().Add(-24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Resolved)

	require.Len(t, prov.opts, 1)
	o := prov.opts[0]
	assert.Equal(t, 50, o.ReviewsLimit)
	require.NotNil(t, o.Cutoff)
	assert.False(t, o.Cutoff.Before(before), "cutoff %v before %v", o.Cutoff, before)
	assert.False(t, o.Cutoff.After(after), "cutoff %v after %v", o.Cutoff, after)
}

func TestFetchLast24h_UsesItsOwnRoundBudget(t *testing.T) {
	prov := newFakeProvider(-1)
	p := app.NewPoller(prov, &fakeSink{}, testConfig(), zerolog.Nop())

	rep, err := p.FetchLast24h(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"req-p1"}, rep.Abandoned)
	assert.Equal(t, 4, prov.polls["req-p1"])
}

func TestFetchAll_CancelledWhileWaiting(t *testing.T) {
	prov := newFakeProvider(1)
	sink := &fakeSink{}
	p := app.NewPoller(prov, sink, testConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := p.FetchAll(ctx, []string{"p1"}, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"req-p1"}, rep.Submitted)
	assert.Empty(t, sink.payloads)
}

func TestParseSubmitPolicy(t *testing.T) {
	for in, want := range map[string]app.SubmitPolicy{
		"": app.PolicyPropagate, "propagate": app.PolicyPropagate, "Continue": app.PolicyContinue,
	} {
		got, err := app.ParseSubmitPolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := app.ParseSubmitPolicy("retry-forever")
	assert.Error(t, err)
	assert.Equal(t, "continue", fmt.Sprint(app.PolicyContinue))
}
