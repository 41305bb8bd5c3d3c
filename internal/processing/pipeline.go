package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spacesedan/bluesense/config"
	"github.com/spacesedan/bluesense/internal/analysis"
	"github.com/spacesedan/bluesense/internal/clients"
	"github.com/spacesedan/bluesense/internal/models"
	"github.com/spacesedan/bluesense/internal/sentiment"
)

// ErrUnexpected is returned when a run panicked. The cause is only logged.
var ErrUnexpected = errors.New("the analysis failed unexpectedly, please try again")

// PostFetcher is satisfied by *clients.BlueskyClient.
type PostFetcher interface {
	FetchPosts(ctx context.Context, topic string, limit int) (models.FetchResult, error)
	AuthFailure() error
}

// Pipeline runs one query: fetch, score, aggregate. It holds no state
// between runs.
type Pipeline struct {
	fetcher   PostFetcher
	scorer    sentiment.Scorer
	selection sentiment.Selection
	limiter   Reserver
	limit     int
	workers   int
	opts      analysis.Options

	now func() time.Time
}

func NewPipeline(cfg *config.Config, fetcher PostFetcher, scorer sentiment.Scorer, selection sentiment.Selection, limiter Reserver) *Pipeline {
	if selection.Provider == "" {
		selection.Provider = scorer.Name()
	}
	return &Pipeline{
		fetcher:   fetcher,
		scorer:    scorer,
		selection: selection,
		limiter:   limiter,
		limit:     cfg.Bluesky.FetchLimit,
		workers:   cfg.Sentiment.Workers,
		opts:      analysis.OptionsFromConfig(cfg),
		now:       time.Now,
	}
}

func (p *Pipeline) Options() analysis.Options {
	return p.opts
}

// Run analyses topic. Zero matching posts is not an error: the returned
// set is empty. When ctx ends during scoring, posts that were not scored
// in time stay in the set as unscored.
func (p *Pipeline) Run(ctx context.Context, topic string) (set *models.AnalysisSet, err error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, clients.ErrEmptyTopic
	}

	runID := uuid.NewString()
	logger := slog.With(slog.String("run_id", runID), slog.String("topic", topic))
	start := p.now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Pipeline] Run panicked", slog.Any("panic", r))
			set, err = nil, ErrUnexpected
		}
	}()

	logger.Info("[Pipeline] Starting analysis", slog.Int("limit", p.limit))

	in := analysis.Input{
		RunID:       runID,
		Topic:       topic,
		RetrievedAt: start.UTC(),
		Limit:       p.limit,
		Provider:    p.selection.Provider,
		Degraded:    p.selection.Degraded,
	}

	fetched, err := p.fetcher.FetchPosts(ctx, topic, p.limit)
	if err != nil {
		var emptyErr *clients.EmptyResultError
		if !errors.As(err, &emptyErr) {
			logger.Warn("[Pipeline] Fetch failed", slog.String("error", err.Error()))
			return nil, fmt.Errorf("fetching posts for %q: %w", topic, err)
		}
		logger.Info("[Pipeline] No posts matched")
		fetched.Posts = nil
		fetched.Skipped = emptyErr.Skipped
	}
	in.Fetch = fetched

	if len(fetched.Posts) > 0 {
		outcome := ScorePosts(ctx, p.scorer, p.limiter, fetched.Posts, p.workers)
		in.Results = outcome.Results
		in.Failures = outcome.Failures
		in.Cleaned = outcome.Cleaned
	}

	set = analysis.Aggregate(in, p.opts)
	set.Notices = p.notices(set)

	logger.Info("[Pipeline] Analysis finished",
		slog.Int("posts", len(set.Posts)),
		slog.Int("unscored", set.UnscoredCount()),
		slog.Duration("duration", p.now().Sub(start)))
	return set, nil
}

func (p *Pipeline) notices(set *models.AnalysisSet) []models.Notice {
	var notices []models.Notice
	warn := func(format string, args ...any) {
		notices = append(notices, models.Notice{Level: models.NoticeWarning, Message: fmt.Sprintf(format, args...)})
	}
	info := func(format string, args ...any) {
		notices = append(notices, models.Notice{Level: models.NoticeInfo, Message: fmt.Sprintf(format, args...)})
	}

	if set.FetchMode == models.FetchModeUnauthenticated {
		if authErr := p.fetcher.AuthFailure(); authErr != nil {
			warn("Bluesky login failed (%v). Showing public search results instead.", authErr)
		} else {
			info("Not logged in to Bluesky: showing one page of public search results.")
		}
	}

	if p.selection.Degraded {
		warn("Cloud sentiment scoring is unavailable (%s). Scores come from the local VADER model.", p.selection.Reason)
	}

	if n := set.UnscoredCount(); n > 0 {
		warn("%d of %d posts could not be scored (%s).", n, len(set.Posts), unscoredBreakdown(set.Posts))
	}

	if n := set.Skipped.Video; n > 0 {
		info("Skipped %d posts with video.", n)
	}
	if n := set.Skipped.StarterPack; n > 0 {
		info("Skipped %d starter pack posts.", n)
	}
	if n := set.Skipped.Empty; n > 0 {
		info("Skipped %d posts without text.", n)
	}
	if n := set.Skipped.Undated; n > 0 {
		info("Skipped %d posts without a timestamp.", n)
	}
	return notices
}

// unscoredBreakdown renders "timeout: 3, quota: 2", largest first.
func unscoredBreakdown(posts []models.AnalyzedPost) string {
	counts := make(map[string]int)
	for _, p := range posts {
		if !p.Scored() {
			counts[p.ScoreError]++
		}
	}

	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool {
		if counts[reasons[i]] != counts[reasons[j]] {
			return counts[reasons[i]] > counts[reasons[j]]
		}
		return reasons[i] < reasons[j]
	})

	parts := make([]string, len(reasons))
	for i, reason := range reasons {
		parts[i] = fmt.Sprintf("%s: %d", strings.ReplaceAll(reason, "_", " "), counts[reason])
	}
	return strings.Join(parts, ", ")
}
