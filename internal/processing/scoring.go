package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/spacesedan/bluesense/internal/clients"
	"github.com/spacesedan/bluesense/internal/models"
	"github.com/spacesedan/bluesense/internal/sentiment"
)

// Reserver gates each scoring call against the scoring quota.
type Reserver interface {
	WaitAndReserve(ctx context.Context) (bool, error)
}

type ScoreOutcome struct {
	Results  map[string]models.SentimentResult
	Failures map[string]error
	Cleaned  map[string]string
}

// ScorePosts scores every post with at most workers calls in flight.
// A failing post is recorded in Failures and never stops the others.
// Once ctx is done, posts not yet scored fail with a timeout reason and
// results gathered so far are kept.
func ScorePosts(ctx context.Context, scorer sentiment.Scorer, limiter Reserver, posts []models.Post, workers int) ScoreOutcome {
	if workers < 1 {
		workers = 1
	}

	outcome := ScoreOutcome{
		Results:  make(map[string]models.SentimentResult, len(posts)),
		Failures: make(map[string]error),
		Cleaned:  make(map[string]string, len(posts)),
	}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(workers)

	for _, post := range posts {
		cleaned := sentiment.CleanText(post.Text)
		outcome.Cleaned[post.ID] = cleaned

		g.Go(func() error {
			result, err := scoreOne(ctx, scorer, limiter, cleaned)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				outcome.Failures[post.ID] = err
				slog.Debug("[Scoring] Post could not be scored",
					slog.String("post_id", post.ID),
					slog.String("reason", string(clients.ScoringReasonOf(err))),
					slog.String("error", err.Error()))
				return nil
			}
			result.PostID = post.ID
			outcome.Results[post.ID] = result
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("[Scoring] Batch finished",
		slog.String("provider", scorer.Name()),
		slog.Int("posts", len(posts)),
		slog.Int("scored", len(outcome.Results)),
		slog.Int("failed", len(outcome.Failures)))
	return outcome
}

func scoreOne(ctx context.Context, scorer sentiment.Scorer, limiter Reserver, text string) (result models.SentimentResult, err error) {
	provider := scorer.Name()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("[Scoring] Scorer panicked", slog.Any("panic", r))
			err = &clients.ScoringError{Provider: provider, Reason: clients.ReasonUpstream, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return models.SentimentResult{}, &clients.ScoringError{Provider: provider, Reason: clients.ReasonTimeout, Err: err}
	}
	if text == "" {
		return models.SentimentResult{}, &clients.ScoringError{Provider: provider, Reason: clients.ReasonMalformedInput, Err: errors.New("no text left after cleaning")}
	}

	if limiter != nil {
		ok, err := limiter.WaitAndReserve(ctx)
		if err != nil {
			return models.SentimentResult{}, &clients.ScoringError{Provider: provider, Reason: clients.ReasonTimeout, Err: err}
		}
		if !ok {
			return models.SentimentResult{}, &clients.ScoringError{Provider: provider, Reason: clients.ReasonQuota, Err: errors.New("daily scoring quota exhausted")}
		}
	}

	result, err = scorer.Score(ctx, text)
	if err != nil {
		var scoringErr *clients.ScoringError
		if !errors.As(err, &scoringErr) {
			err = &clients.ScoringError{Provider: provider, Reason: clients.ScoringReasonOf(err), Err: err}
		}
		return models.SentimentResult{}, err
	}
	return result, nil
}
