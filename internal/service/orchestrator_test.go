package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"transcriptfetch/internal/core/domain"
	"transcriptfetch/internal/core/ports"
)

const testVideoID = "jNQXAC9IVRw"

// fakeStrategy scripts a sequence of attempt outcomes.
type fakeStrategy struct {
	name     string
	outcomes []fakeOutcome
	calls    int
}

type fakeOutcome struct {
	payload *domain.RawSubtitlePayload
	err     error
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Attempt(ctx context.Context, videoID, lang string) (*domain.RawSubtitlePayload, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.outcomes) {
		idx = len(f.outcomes) - 1
	}
	o := f.outcomes[idx]
	return o.payload, o.err
}

func jsonPayload(events string) *domain.RawSubtitlePayload {
	return &domain.RawSubtitlePayload{
		Format: domain.FormatSegmentJSON,
		Data:   []byte(`{"events":[` + events + `]}`),
	}
}

func threeSegments() *domain.RawSubtitlePayload {
	return jsonPayload(`{"tStartMs":0,"dDurationMs":1000,"segs":[{"utf8":"a"}]},` +
		`{"tStartMs":1000,"dDurationMs":1000,"segs":[{"utf8":"b"}]},` +
		`{"tStartMs":2000,"dDurationMs":1000,"segs":[{"utf8":"c"}]}`)
}

func newTestOrchestrator(strategies ...*fakeStrategy) (*Orchestrator, *[]time.Duration) {
	chain := make([]ports.Strategy, len(strategies))
	for i, s := range strategies {
		chain[i] = s
	}

	var delays []time.Duration
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := NewOrchestrator(chain, DefaultConfig(), logger)
	o.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return o, &delays
}

func TestFetchTranscriptInvalidIDNeverCallsStrategies(t *testing.T) {
	primary := &fakeStrategy{name: "primary", outcomes: []fakeOutcome{{payload: threeSegments()}}}
	o, _ := newTestOrchestrator(primary)

	_, err := o.FetchTranscript(context.Background(), "not-an-id", "en")
	var ce *domain.ClassifiedError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, domain.KindInvalidInput, ce.Kind)
	require.Equal(t, 0, primary.calls, "no strategy may run for an invalid id")
}

func TestFetchTranscriptRetriesRateLimitThenSucceeds(t *testing.T) {
	rateLimited := domain.NewClassified(domain.KindRateLimited, "status 429")
	primary := &fakeStrategy{name: "primary", outcomes: []fakeOutcome{
		{err: rateLimited},
		{err: rateLimited},
		{payload: threeSegments()},
	}}
	o, delays := newTestOrchestrator(primary)

	tr, err := o.FetchTranscript(context.Background(), testVideoID, "en")
	require.NoError(t, err)
	require.Len(t, tr.Segments, 3)
	require.Equal(t, 3, primary.calls)

	cfg := DefaultConfig()
	require.Len(t, *delays, 2, "exactly two inter-attempt delays")
	for _, d := range *delays {
		require.GreaterOrEqual(t, d, cfg.RateLimitBackoffBase)
	}
	// Exponential: second wait doubles the first.
	require.Equal(t, cfg.RateLimitBackoffBase, (*delays)[0])
	require.Equal(t, 2*cfg.RateLimitBackoffBase, (*delays)[1])
}

func TestFetchTranscriptEmptyPrimaryFallsBack(t *testing.T) {
	primary := &fakeStrategy{name: "primary", outcomes: []fakeOutcome{
		{payload: jsonPayload(``)},
	}}
	secondary := &fakeStrategy{name: "secondary", outcomes: []fakeOutcome{
		{payload: threeSegments()},
	}}
	o, _ := newTestOrchestrator(primary, secondary)

	tr, err := o.FetchTranscript(context.Background(), testVideoID, "en")
	require.NoError(t, err)
	require.Len(t, tr.Segments, 3)
	require.Equal(t, "a", tr.Segments[0].Text)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, secondary.calls)
}

func TestFetchTranscriptEmptyLastStrategyIsTerminalSuccess(t *testing.T) {
	only := &fakeStrategy{name: "only", outcomes: []fakeOutcome{
		{payload: jsonPayload(``)},
	}}
	o, _ := newTestOrchestrator(only)

	tr, err := o.FetchTranscript(context.Background(), testVideoID, "en")
	require.NoError(t, err)
	require.Empty(t, tr.Segments)
}

func TestFetchTranscriptNonRetryableSkipsToNextStrategy(t *testing.T) {
	primary := &fakeStrategy{name: "primary", outcomes: []fakeOutcome{
		{err: domain.NewClassified(domain.KindNoCaptionsForLanguage, "transcript is disabled")},
	}}
	secondary := &fakeStrategy{name: "secondary", outcomes: []fakeOutcome{
		{payload: threeSegments()},
	}}
	o, delays := newTestOrchestrator(primary, secondary)

	tr, err := o.FetchTranscript(context.Background(), testVideoID, "en")
	require.NoError(t, err)
	require.Len(t, tr.Segments, 3)
	require.Equal(t, 1, primary.calls, "non-retryable errors must not be retried")
	require.Empty(t, *delays)
}

func TestFetchTranscriptParseFailureFallsBack(t *testing.T) {
	primary := &fakeStrategy{name: "primary", outcomes: []fakeOutcome{
		{payload: &domain.RawSubtitlePayload{Format: domain.FormatCueXML, Data: []byte("not xml at all")}},
	}}
	secondary := &fakeStrategy{name: "secondary", outcomes: []fakeOutcome{
		{payload: threeSegments()},
	}}
	o, _ := newTestOrchestrator(primary, secondary)

	tr, err := o.FetchTranscript(context.Background(), testVideoID, "en")
	require.NoError(t, err)
	require.Len(t, tr.Segments, 3)
	require.Equal(t, 1, primary.calls)
}

func TestFetchTranscriptExhaustedSurfacesLastClassifiedError(t *testing.T) {
	boom := domain.NewClassified(domain.KindNoCaptionsForLanguage, "no transcript found")
	primary := &fakeStrategy{name: "primary", outcomes: []fakeOutcome{{err: errors.New("transient glitch")}}}
	secondary := &fakeStrategy{name: "secondary", outcomes: []fakeOutcome{{err: boom}}}
	o, _ := newTestOrchestrator(primary, secondary)

	_, err := o.FetchTranscript(context.Background(), testVideoID, "en")
	var ce *domain.ClassifiedError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, domain.KindNoCaptionsForLanguage, ce.Kind)
}

func TestFetchTranscriptRetryBudgets(t *testing.T) {
	transient := domain.NewClassified(domain.KindUpstreamUnavailable, "status 503")
	primary := &fakeStrategy{name: "primary", outcomes: []fakeOutcome{{err: transient}}}
	secondary := &fakeStrategy{name: "secondary", outcomes: []fakeOutcome{{err: transient}}}
	o, _ := newTestOrchestrator(primary, secondary)

	_, err := o.FetchTranscript(context.Background(), testVideoID, "en")
	require.Error(t, err)
	cfg := DefaultConfig()
	require.Equal(t, cfg.PrimaryMaxAttempts, primary.calls)
	require.Equal(t, cfg.FallbackMaxAttempts, secondary.calls)
}

func TestFetchTranscriptCancelledDuringBackoff(t *testing.T) {
	rateLimited := domain.NewClassified(domain.KindRateLimited, "status 429")
	primary := &fakeStrategy{name: "primary", outcomes: []fakeOutcome{{err: rateLimited}}}
	secondary := &fakeStrategy{name: "secondary", outcomes: []fakeOutcome{{payload: threeSegments()}}}

	o, _ := newTestOrchestrator(primary, secondary)
	ctx, cancel := context.WithCancel(context.Background())
	o.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := o.FetchTranscript(ctx, testVideoID, "en")
	var ce *domain.ClassifiedError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, domain.KindCancelled, ce.Kind)
	require.Equal(t, 0, secondary.calls, "cancellation must not start further attempts")
}

func TestFetchTranscriptDefaultsLanguage(t *testing.T) {
	var gotLang string
	primary := &fakeStrategy{name: "primary", outcomes: []fakeOutcome{{payload: threeSegments()}}}
	o, _ := newTestOrchestrator(primary)
	// Wrap to observe the language the strategy receives.
	o.strategies[0] = langSpy{inner: primary, lang: &gotLang}

	tr, err := o.FetchTranscript(context.Background(), testVideoID, "")
	require.NoError(t, err)
	require.Equal(t, domain.DefaultLanguage, gotLang)
	require.Equal(t, domain.DefaultLanguage, tr.Language)
}

type langSpy struct {
	inner *fakeStrategy
	lang  *string
}

func (s langSpy) Name() string { return s.inner.Name() }

func (s langSpy) Attempt(ctx context.Context, videoID, lang string) (*domain.RawSubtitlePayload, error) {
	*s.lang = lang
	return s.inner.Attempt(ctx, videoID, lang)
}

func TestDecide(t *testing.T) {
	o := NewOrchestrator(nil, DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name       string
		state      RetryState
		max        int
		wantAction action
		wantDelay  time.Duration
	}{
		{
			name:       "rate limited first failure",
			state:      RetryState{Attempt: 1, LastError: domain.NewClassified(domain.KindRateLimited, "429")},
			max:        5,
			wantAction: actionRetry,
			wantDelay:  3 * time.Second,
		},
		{
			name:       "rate limited backoff caps at 15s",
			state:      RetryState{Attempt: 4, LastError: domain.NewClassified(domain.KindRateLimited, "429")},
			max:        5,
			wantAction: actionRetry,
			wantDelay:  15 * time.Second,
		},
		{
			name:       "generic transient first failure",
			state:      RetryState{Attempt: 1, LastError: domain.NewClassified(domain.KindUpstreamUnavailable, "503")},
			max:        5,
			wantAction: actionRetry,
			wantDelay:  1 * time.Second,
		},
		{
			name:       "generic backoff caps at 5s",
			state:      RetryState{Attempt: 4, LastError: domain.NewClassified(domain.KindUpstreamUnavailable, "503")},
			max:        5,
			wantAction: actionRetry,
			wantDelay:  5 * time.Second,
		},
		{
			name:       "unknown is retried conservatively",
			state:      RetryState{Attempt: 1, LastError: domain.NewClassified(domain.KindUnknown, "?")},
			max:        5,
			wantAction: actionRetry,
			wantDelay:  1 * time.Second,
		},
		{
			name:       "budget exhausted",
			state:      RetryState{Attempt: 5, LastError: domain.NewClassified(domain.KindRateLimited, "429")},
			max:        5,
			wantAction: actionFallback,
		},
		{
			name:       "fatal kind never retries",
			state:      RetryState{Attempt: 1, LastError: domain.NewClassified(domain.KindInvalidInput, "bad id")},
			max:        5,
			wantAction: actionFallback,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act, delay := o.decide(tt.state, tt.max)
			if act != tt.wantAction {
				t.Fatalf("action = %v, want %v", act, tt.wantAction)
			}
			if act == actionRetry && delay != tt.wantDelay {
				t.Errorf("delay = %v, want %v", delay, tt.wantDelay)
			}
		})
	}
}

func TestFetchTranscriptSegmentsKeepParserOrder(t *testing.T) {
	primary := &fakeStrategy{name: "primary", outcomes: []fakeOutcome{{payload: threeSegments()}}}
	o, _ := newTestOrchestrator(primary)

	tr, err := o.FetchTranscript(context.Background(), testVideoID, "en")
	require.NoError(t, err)
	for i := 1; i < len(tr.Segments); i++ {
		if tr.Segments[i].OffsetSeconds < tr.Segments[i-1].OffsetSeconds {
			t.Fatalf("segments out of order at %d: %v", i, tr.Segments)
		}
	}
}

// Sanity check that the scripted error in TestFetchTranscriptExhausted…
// classifies as retryable Unknown and therefore burns the full primary
// budget before falling back.
func TestScriptedPlainErrorClassifiesUnknown(t *testing.T) {
	ce := domain.Classify(fmt.Errorf("transient glitch"))
	require.Equal(t, domain.KindUnknown, ce.Kind)
}
