package sentiment

import (
	"context"
	"errors"
	"strings"

	"github.com/jonreiter/govader"

	"github.com/spacesedan/bluesense/internal/clients"
	"github.com/spacesedan/bluesense/internal/models"
)

const PROVIDER_VADER = "vader"

var analyzer = govader.NewSentimentIntensityAnalyzer()

// VaderScorer scores text locally with the VADER lexicon. It needs no
// credentials and backs the dashboard when no cloud scorer is configured.
// Score is the compound polarity; magnitude is the share of the text that
// carried positive or negative sentiment.
type VaderScorer struct{}

func NewVaderScorer() *VaderScorer {
	return &VaderScorer{}
}

func (v *VaderScorer) Name() string { return PROVIDER_VADER }

func (v *VaderScorer) Score(ctx context.Context, text string) (models.SentimentResult, error) {
	if err := ctx.Err(); err != nil {
		return models.SentimentResult{}, &clients.ScoringError{Provider: PROVIDER_VADER, Reason: clients.ReasonTimeout, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return models.SentimentResult{}, &clients.ScoringError{Provider: PROVIDER_VADER, Reason: clients.ReasonMalformedInput, Err: errors.New("empty text")}
	}

	scores := analyzer.PolarityScores(text)
	return models.NewSentimentResult(scores.Compound, scores.Positive+scores.Negative, PROVIDER_VADER), nil
}
