package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyHTTPScoringError(t *testing.T) {
	upstream := errors.New("boom")

	assert.Equal(t, ReasonQuota, classifyHTTPScoringError("openai", http.StatusTooManyRequests, upstream).Reason)
	assert.Equal(t, ReasonAuth, classifyHTTPScoringError("openai", http.StatusUnauthorized, upstream).Reason)
	assert.Equal(t, ReasonMalformedInput, classifyHTTPScoringError("gemini", http.StatusBadRequest, upstream).Reason)
	assert.Equal(t, ReasonTimeout, classifyHTTPScoringError("gemini", 0, fmt.Errorf("post: %w", context.DeadlineExceeded)).Reason)
	assert.Equal(t, ReasonUpstream, classifyHTTPScoringError("gemini", http.StatusInternalServerError, upstream).Reason)
}

func TestScoringReasonOf(t *testing.T) {
	wrapped := fmt.Errorf("post 1: %w", &ScoringError{Provider: "vader", Reason: ReasonMalformedInput})

	assert.Equal(t, ReasonMalformedInput, ScoringReasonOf(wrapped))
	assert.Equal(t, ReasonTimeout, ScoringReasonOf(context.Canceled))
	assert.Equal(t, ReasonUpstream, ScoringReasonOf(errors.New("other")))
}

func TestErrorMessages(t *testing.T) {
	assert.Contains(t, (&RateLimitError{Service: "bluesky", RetryAfter: 90e9}).Error(), "1m30s")
	assert.Contains(t, (&EmptyResultError{Topic: "cats"}).Error(), `"cats"`)
	assert.Contains(t, (&AuthError{Service: "bluesky", Reason: "bad password"}).Error(), "bad password")
}
