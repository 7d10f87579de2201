// Package service contains the acquisition orchestrator: it sequences
// retrieval strategies, applies per-strategy retry with classified
// backoff, and converts the winning raw payload into the canonical
// transcript.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"transcriptfetch/internal/core/domain"
	"transcriptfetch/internal/core/ports"
	"transcriptfetch/internal/parser"
)

// Config holds the retry/backoff policy. Read-only after construction.
type Config struct {
	// PrimaryMaxAttempts bounds attempts against the first strategy.
	PrimaryMaxAttempts int
	// FallbackMaxAttempts bounds attempts against each later strategy.
	FallbackMaxAttempts int

	// Rate-limit class backoff: exponential from Base capped at Cap.
	RateLimitBackoffBase time.Duration
	RateLimitBackoffCap  time.Duration

	// Generic transient backoff for everything else retryable.
	GenericBackoffBase time.Duration
	GenericBackoffCap  time.Duration
}

// DefaultConfig mirrors the upstream tolerance observed in practice:
// blocking errors deserve patient waits, plain flakiness short ones.
func DefaultConfig() Config {
	return Config{
		PrimaryMaxAttempts:   5,
		FallbackMaxAttempts:  3,
		RateLimitBackoffBase: 3 * time.Second,
		RateLimitBackoffCap:  15 * time.Second,
		GenericBackoffBase:   1 * time.Second,
		GenericBackoffCap:    5 * time.Second,
	}
}

// RetryState is scoped to one strategy within one acquisition call.
type RetryState struct {
	Attempt   int
	LastError *domain.ClassifiedError
}

type action int

const (
	actionRetry action = iota
	actionFallback
)

// Orchestrator coordinates the acquisition workflow.
type Orchestrator struct {
	strategies []ports.Strategy
	cfg        Config
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates an orchestrator over the given strategy
// chain, tried strictly in order.
func NewOrchestrator(strategies []ports.Strategy, cfg Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		strategies: strategies,
		cfg:        cfg,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

// FetchTranscript retrieves the transcript for videoID in lang. It is
// the sole entry point the route/CLI layer calls. Invalid identifiers
// fail before any network activity; lang defaults to
// domain.DefaultLanguage when empty.
func (o *Orchestrator) FetchTranscript(ctx context.Context, videoID, lang string) (*domain.Transcript, error) {
	reqID := uuid.New().String()
	if lang == "" {
		lang = domain.DefaultLanguage
	}
	logger := o.logger.With(
		slog.String("request_id", reqID),
		slog.String("video_id", videoID),
		slog.String("language", lang))

	if !domain.ValidVideoID(videoID) {
		return nil, domain.NewClassified(domain.KindInvalidInput,
			"video id must be 11 characters of [A-Za-z0-9_-]")
	}

	var lastErr *domain.ClassifiedError

	for i, strat := range o.strategies {
		last := i == len(o.strategies)-1
		maxAttempts := o.cfg.FallbackMaxAttempts
		if i == 0 {
			maxAttempts = o.cfg.PrimaryMaxAttempts
		}

		state := RetryState{}
	attempts:
		for {
			state.Attempt++
			if err := ctx.Err(); err != nil {
				return nil, domain.Classify(err)
			}

			logger.Debug("attempting strategy",
				slog.String("strategy", strat.Name()), slog.Int("attempt", state.Attempt))

			payload, err := strat.Attempt(ctx, videoID, lang)
			if err != nil {
				ce := domain.Classify(err)
				if ce.Kind == domain.KindCancelled {
					return nil, ce
				}
				state.LastError = ce
				lastErr = ce

				act, delay := o.decide(state, maxAttempts)
				if act != actionRetry {
					logger.Info("strategy abandoned",
						slog.String("strategy", strat.Name()),
						slog.Int("attempts", state.Attempt),
						slog.String("kind", string(ce.Kind)))
					break attempts
				}
				logger.Warn("attempt failed, backing off",
					slog.String("strategy", strat.Name()),
					slog.Int("attempt", state.Attempt),
					slog.Duration("delay", delay),
					slog.String("kind", string(ce.Kind)))
				if err := o.sleep(ctx, delay); err != nil {
					return nil, domain.Classify(err)
				}
				continue
			}

			segments, perr := parsePayload(payload)
			if perr != nil {
				// A broken payload from one retrieval path says
				// nothing about the others.
				lastErr = domain.Classify(perr)
				logger.Info("payload did not parse, moving on",
					slog.String("strategy", strat.Name()),
					slog.String("format", string(payload.Format)))
				break attempts
			}

			if len(segments) == 0 && !last {
				// One path coming up empty does not prove the video
				// lacks captions; let the next strategy look.
				logger.Info("strategy returned no segments, falling back",
					slog.String("strategy", strat.Name()))
				break attempts
			}

			logger.Info("transcript acquired",
				slog.String("strategy", strat.Name()),
				slog.Int("segments", len(segments)),
				slog.Int("attempts", state.Attempt))
			return &domain.Transcript{
				VideoID:  videoID,
				Language: lang,
				Segments: segments,
			}, nil
		}
	}

	if lastErr == nil {
		lastErr = domain.NewClassified(domain.KindUpstreamUnavailable,
			"all retrieval strategies exhausted without a definitive failure")
	}
	return nil, lastErr
}

// decide is the pure retry decision: given the state after a failed
// attempt, either retry after a backoff delay or abandon the strategy.
// Fatal kinds never retry; retryable kinds back off exponentially with
// the rate-limit class on a slower, higher-capped schedule.
func (o *Orchestrator) decide(state RetryState, maxAttempts int) (action, time.Duration) {
	ce := state.LastError
	if ce == nil || !ce.Kind.Retryable() {
		return actionFallback, 0
	}
	if state.Attempt >= maxAttempts {
		return actionFallback, 0
	}

	base, maxDelay := o.cfg.GenericBackoffBase, o.cfg.GenericBackoffCap
	if ce.Kind == domain.KindRateLimited {
		base, maxDelay = o.cfg.RateLimitBackoffBase, o.cfg.RateLimitBackoffCap
	}

	delay := base << (state.Attempt - 1)
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	return actionRetry, delay
}

func parsePayload(payload *domain.RawSubtitlePayload) ([]domain.TranscriptSegment, error) {
	p := parser.ForFormat(payload.Format)
	if p == nil {
		return nil, domain.NewClassified(domain.KindParseFailure,
			"no parser for payload format "+string(payload.Format))
	}
	return p.Parse(payload.Data)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
