package sentiment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/bluesense/internal/clients"
)

func TestVaderScorer(t *testing.T) {
	scorer := NewVaderScorer()
	ctx := context.Background()

	positive, err := scorer.Score(ctx, "I love this, what a wonderful and happy day")
	require.NoError(t, err)
	assert.Greater(t, positive.Score, 0.25)
	assert.Greater(t, positive.Magnitude, 0.0)
	assert.Equal(t, PROVIDER_VADER, positive.Provider)

	negative, err := scorer.Score(ctx, "This is terrible, I hate it and feel awful")
	require.NoError(t, err)
	assert.Less(t, negative.Score, -0.25)

	neutral, err := scorer.Score(ctx, "The meeting is on Tuesday")
	require.NoError(t, err)
	assert.InDelta(t, 0, neutral.Score, 0.25)
}

func TestVaderScorerFailures(t *testing.T) {
	scorer := NewVaderScorer()

	_, err := scorer.Score(context.Background(), "   ")
	var scoringErr *clients.ScoringError
	require.True(t, errors.As(err, &scoringErr))
	assert.Equal(t, clients.ReasonMalformedInput, scoringErr.Reason)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = scorer.Score(ctx, "fine")
	require.True(t, errors.As(err, &scoringErr))
	assert.Equal(t, clients.ReasonTimeout, scoringErr.Reason)
}
