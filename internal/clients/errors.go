package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spacesedan/bluesense/internal/models"
)

var ErrEmptyTopic = errors.New("topic must not be empty")

// AuthError means an upstream rejected or could not be given credentials.
type AuthError struct {
	Service string
	Reason  string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s authentication failed: %s: %v", e.Service, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s authentication failed: %s", e.Service, e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError means the upstream throttled us. RetryAfter is zero when
// the upstream gave no hint.
type RateLimitError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit reached, retry in %s", e.Service, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("%s rate limit reached", e.Service)
}

// EmptyResultError means the search matched no usable posts. It is not a
// failure: callers render an empty state.
type EmptyResultError struct {
	Topic   string
	Skipped models.SkipCounts
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no posts found for %q", e.Topic)
}

type ScoringReason string

const (
	ReasonQuota               ScoringReason = "quota"
	ReasonUnsupportedLanguage ScoringReason = "unsupported_language"
	ReasonMalformedInput      ScoringReason = "malformed_input"
	ReasonAuth                ScoringReason = "auth"
	ReasonTimeout             ScoringReason = "timeout"
	ReasonUpstream            ScoringReason = "upstream"
)

// ScoringError is a per-post scoring failure. It never aborts a batch.
type ScoringError struct {
	Provider string
	Reason   ScoringReason
	Err      error
}

func (e *ScoringError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s scoring failed (%s): %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s scoring failed (%s)", e.Provider, e.Reason)
}

func (e *ScoringError) Unwrap() error { return e.Err }

// ScoringReasonOf extracts the reason from err, defaulting to upstream.
func ScoringReasonOf(err error) ScoringReason {
	var scoringErr *ScoringError
	if errors.As(err, &scoringErr) {
		return scoringErr.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReasonTimeout
	}
	return ReasonUpstream
}
