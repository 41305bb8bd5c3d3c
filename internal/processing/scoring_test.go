package processing

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/bluesense/internal/clients"
	"github.com/spacesedan/bluesense/internal/models"
)

type fakeScorer struct {
	delay    time.Duration
	fail     map[string]error
	panicOn  string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func (f *fakeScorer) Name() string { return "fake" }

func (f *fakeScorer) Score(ctx context.Context, text string) (models.SentimentResult, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if text == f.panicOn {
		panic("scorer blew up")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return models.SentimentResult{}, ctx.Err()
		}
	}
	if err, ok := f.fail[text]; ok {
		return models.SentimentResult{}, err
	}
	return models.NewSentimentResult(0.5, 1, "fake"), nil
}

type denyAll struct{}

func (denyAll) WaitAndReserve(context.Context) (bool, error) { return false, nil }

func makePosts(n int) []models.Post {
	posts := make([]models.Post, n)
	for i := range posts {
		posts[i] = models.Post{ID: fmt.Sprintf("post-%d", i), Text: fmt.Sprintf("text number %d", i)}
	}
	return posts
}

func TestScorePostsRespectsWorkerLimit(t *testing.T) {
	scorer := &fakeScorer{delay: 5 * time.Millisecond}
	posts := makePosts(40)

	outcome := ScorePosts(context.Background(), scorer, nil, posts, 4)

	assert.Len(t, outcome.Results, 40)
	assert.Empty(t, outcome.Failures)
	assert.LessOrEqual(t, scorer.maxSeen.Load(), int32(4))
	assert.Equal(t, "post-7", outcome.Results["post-7"].PostID)
	assert.Equal(t, "text number 7", outcome.Cleaned["post-7"])
}

func TestScorePostsIsolatesFailures(t *testing.T) {
	scorer := &fakeScorer{
		fail: map[string]error{
			"text number 1": &clients.ScoringError{Provider: "fake", Reason: clients.ReasonUnsupportedLanguage},
			"text number 2": errors.New("connection reset"),
		},
		panicOn: "text number 3",
	}
	posts := makePosts(6)
	posts[4].Text = "https://example.com/only-a-link"

	outcome := ScorePosts(context.Background(), scorer, nil, posts, 3)

	assert.Len(t, outcome.Results, 2)
	require.Len(t, outcome.Failures, 4)
	assert.Equal(t, clients.ReasonUnsupportedLanguage, clients.ScoringReasonOf(outcome.Failures["post-1"]))
	assert.Equal(t, clients.ReasonUpstream, clients.ScoringReasonOf(outcome.Failures["post-2"]))
	assert.Equal(t, clients.ReasonUpstream, clients.ScoringReasonOf(outcome.Failures["post-3"]))
	assert.Equal(t, clients.ReasonMalformedInput, clients.ScoringReasonOf(outcome.Failures["post-4"]))
	assert.Equal(t, int32(5), scorer.calls.Load(), "empty text never reaches the scorer")
}

func TestScorePostsKeepsPartialResultsOnTimeout(t *testing.T) {
	scorer := &fakeScorer{delay: 30 * time.Millisecond}
	posts := makePosts(20)

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Millisecond)
	defer cancel()

	outcome := ScorePosts(ctx, scorer, nil, posts, 2)

	assert.NotEmpty(t, outcome.Results, "posts finished before the deadline are kept")
	assert.NotEmpty(t, outcome.Failures)
	assert.Equal(t, len(posts), len(outcome.Results)+len(outcome.Failures))
	for id, err := range outcome.Failures {
		assert.Equal(t, clients.ReasonTimeout, clients.ScoringReasonOf(err), id)
	}
}

func TestScorePostsQuotaExhausted(t *testing.T) {
	scorer := &fakeScorer{}
	outcome := ScorePosts(context.Background(), scorer, denyAll{}, makePosts(3), 2)

	assert.Empty(t, outcome.Results)
	assert.Len(t, outcome.Failures, 3)
	assert.Equal(t, clients.ReasonQuota, clients.ScoringReasonOf(outcome.Failures["post-0"]))
	assert.Zero(t, scorer.calls.Load())
}
