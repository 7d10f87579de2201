package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind is the closed failure taxonomy every error resolves to before
// crossing the orchestrator boundary.
type Kind string

const (
	KindInvalidInput          Kind = "invalid_input"
	KindNoCaptionsForLanguage Kind = "no_captions_for_language"
	KindRateLimited           Kind = "rate_limited"
	KindUpstreamUnavailable   Kind = "upstream_unavailable"
	KindParseFailure          Kind = "parse_failure"
	KindCancelled             Kind = "cancelled"
	KindUnknown               Kind = "unknown"
)

// Retryable reports whether the orchestrator may retry after this
// kind. Unknown is retryable with the generic backoff to stay
// conservative against unrecognized transient upstream behavior.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindUpstreamUnavailable, KindUnknown:
		return true
	}
	return false
}

// ClassifiedError carries the taxonomy kind alongside the upstream
// signal that produced it. Signal is the human-readable distinguishing
// detail surfaced to the caller; Err is the wrapped cause.
type ClassifiedError struct {
	Kind   Kind
	Signal string
	Err    error
}

func (e *ClassifiedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Signal, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Kind, e.Signal)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// NewClassified builds a ClassifiedError without a wrapped cause.
func NewClassified(kind Kind, signal string) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Signal: signal}
}

// Known upstream failure signatures, matched case-insensitively
// against error text. Order matters: the first hit wins.
var signalTable = []struct {
	substr string
	kind   Kind
}{
	{"too many requests", KindRateLimited},
	{"rate limit", KindRateLimited},
	{"429", KindRateLimited},
	{"blocked", KindRateLimited},
	{"forbidden", KindRateLimited},
	{"403", KindRateLimited},
	{"transcript is disabled", KindNoCaptionsForLanguage},
	{"no transcript found", KindNoCaptionsForLanguage},
	{"captions disabled", KindNoCaptionsForLanguage},
	{"video not found", KindInvalidInput},
}

// Classify resolves any failure to exactly one taxonomy kind. Already
// classified errors pass through unchanged.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{Kind: KindCancelled, Signal: "caller cancelled", Err: err}
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range signalTable {
		if strings.Contains(msg, sig.substr) {
			return &ClassifiedError{Kind: sig.kind, Signal: sig.substr, Err: err}
		}
	}

	// Transport-level failures are worth retrying against a flaky upstream.
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return &ClassifiedError{Kind: KindUpstreamUnavailable, Signal: "connection failure", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClassifiedError{Kind: KindUpstreamUnavailable, Signal: "timeout", Err: err}
	}

	return &ClassifiedError{Kind: KindUnknown, Signal: "unrecognized failure", Err: err}
}

// ClassifyStatus maps an HTTP response status onto the taxonomy.
// 2xx statuses map to nil.
func ClassifyStatus(code int, url string) *ClassifiedError {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests, code == http.StatusForbidden:
		return &ClassifiedError{
			Kind:   KindRateLimited,
			Signal: fmt.Sprintf("status %d from %s", code, url),
		}
	case code == http.StatusNotFound:
		return &ClassifiedError{
			Kind:   KindInvalidInput,
			Signal: fmt.Sprintf("status 404 from %s", url),
		}
	case code >= 500:
		return &ClassifiedError{
			Kind:   KindUpstreamUnavailable,
			Signal: fmt.Sprintf("status %d from %s", code, url),
		}
	default:
		return &ClassifiedError{
			Kind:   KindUnknown,
			Signal: fmt.Sprintf("status %d from %s", code, url),
		}
	}
}
