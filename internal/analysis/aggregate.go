package analysis

import (
	"time"

	"github.com/spacesedan/bluesense/config"
	"github.com/spacesedan/bluesense/internal/clients"
	"github.com/spacesedan/bluesense/internal/models"
)

type Options struct {
	PositiveThreshold float64
	NegativeThreshold float64
	Granularity       string
	Location          *time.Location
	TopK              int
	TopTerms          int
	HistogramBins     int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PositiveThreshold: cfg.Analysis.PositiveThreshold,
		NegativeThreshold: cfg.Analysis.NegativeThreshold,
		Granularity:       cfg.Analysis.Granularity,
		Location:          cfg.Location(),
		TopK:              cfg.Analysis.TopK,
		TopTerms:          cfg.Analysis.TopTerms,
		HistogramBins:     cfg.Analysis.HistogramBins,
	}
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

func (o Options) labeler() Labeler {
	return Labeler{Positive: o.PositiveThreshold, Negative: o.NegativeThreshold}
}

// Input is everything one query produced before aggregation.
type Input struct {
	RunID       string
	Topic       string
	RetrievedAt time.Time
	Limit       int
	Fetch       models.FetchResult
	Results     map[string]models.SentimentResult
	Failures    map[string]error
	Cleaned     map[string]string
	Provider    string
	Degraded    bool
}

// Aggregate joins fetched posts with their scores into an AnalysisSet,
// assigning a label and a time bucket to every post. Fetch order is kept.
func Aggregate(in Input, opts Options) *models.AnalysisSet {
	limit := in.Limit
	if limit < 1 || limit > config.MAX_FETCH_LIMIT {
		limit = config.MAX_FETCH_LIMIT
	}
	posts := in.Fetch.Posts
	if len(posts) > limit {
		posts = posts[:limit]
	}

	loc := opts.location()
	granularity := ChooseGranularity(posts, opts.Granularity)
	labeler := opts.labeler()

	set := &models.AnalysisSet{
		RunID:       in.RunID,
		Topic:       in.Topic,
		RetrievedAt: in.RetrievedAt,
		Limit:       limit,
		FetchMode:   in.Fetch.Mode,
		Provider:    in.Provider,
		Degraded:    in.Degraded,
		Granularity: granularity,
		Location:    loc.String(),
		Skipped:     in.Fetch.Skipped,
		Posts:       make([]models.AnalyzedPost, 0, len(posts)),
	}

	for _, post := range posts {
		analyzed := models.AnalyzedPost{
			Post:        post,
			Label:       models.LabelUnscored,
			TimeBucket:  BucketStart(post.CreatedAt, granularity, loc),
			CleanedText: in.Cleaned[post.ID],
		}

		if result, ok := in.Results[post.ID]; ok {
			result := result
			analyzed.Sentiment = &result
			analyzed.Label = labeler.Label(result.Score)
		} else if err, failed := in.Failures[post.ID]; failed {
			analyzed.ScoreError = string(clients.ScoringReasonOf(err))
		} else {
			analyzed.ScoreError = string(clients.ReasonTimeout)
		}

		set.Posts = append(set.Posts, analyzed)
	}

	return set
}

// Summarize derives every chart and list the dashboard shows.
func Summarize(set *models.AnalysisSet, opts Options) models.Aggregates {
	if set == nil {
		set = &models.AnalysisSet{}
	}
	return models.Aggregates{
		Distribution: ComputeDistribution(set.Posts),
		TopPositive:  TopPositive(set.Posts, opts.TopK),
		TopNegative:  TopNegative(set.Posts, opts.TopK),
		Timeline:     Timeline(set.Posts, set.Granularity, opts.location()),
		Trend:        FitTrend(set.Posts),
		Terms:        TermFrequency(set.Posts, opts.TopTerms),
		Histogram:    Histogram(set.Posts, opts.HistogramBins),
	}
}
