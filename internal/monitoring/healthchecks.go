package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/spacesedan/bluesense/internal/clients"
	"github.com/spacesedan/bluesense/internal/models"
	"github.com/spacesedan/bluesense/internal/sentiment"
)

const (
	HEALTHCHECK_PROBE_TEXT   = "Hello, world!"
	HEALTHCHECK_SEARCH_TOPIC = "test"
	HEALTHCHECK_TIMEOUT      = 15 * time.Second
)

type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckFailed  CheckStatus = "failed"
	CheckSkipped CheckStatus = "skipped"
)

type CheckResult struct {
	Name   string      `json:"name"`
	Status CheckStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// Fetcher is the part of *clients.BlueskyClient the connection checks use.
type Fetcher interface {
	HasCredentials() bool
	Connect(ctx context.Context) error
	AuthFailure() error
	FetchPosts(ctx context.Context, topic string, limit int) (models.FetchResult, error)
}

// CheckConnections logs in to Bluesky (skipped without credentials), runs
// one search and scores one probe sentence.
func CheckConnections(ctx context.Context, fetcher Fetcher, scorer sentiment.Scorer) []CheckResult {
	return []CheckResult{
		checkBlueskyAuth(ctx, fetcher),
		checkBlueskySearch(ctx, fetcher),
		checkScorer(ctx, scorer),
	}
}

// Failed reports whether any check that ran did not pass.
func Failed(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == CheckFailed {
			return true
		}
	}
	return false
}

func checkBlueskyAuth(ctx context.Context, fetcher Fetcher) CheckResult {
	result := CheckResult{Name: "Bluesky authentication"}
	if !fetcher.HasCredentials() {
		result.Status = CheckSkipped
		result.Detail = "no credentials provided"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, HEALTHCHECK_TIMEOUT)
	defer cancel()

	err := fetcher.Connect(ctx)
	if err == nil {
		err = fetcher.AuthFailure()
	}
	if err != nil {
		result.Status = CheckFailed
		result.Detail = err.Error()
		return result
	}
	result.Status = CheckPassed
	return result
}

func checkBlueskySearch(ctx context.Context, fetcher Fetcher) CheckResult {
	result := CheckResult{Name: "Bluesky API connection"}

	ctx, cancel := context.WithTimeout(ctx, HEALTHCHECK_TIMEOUT)
	defer cancel()

	fetched, err := fetcher.FetchPosts(ctx, HEALTHCHECK_SEARCH_TOPIC, 1)
	if err != nil {
		var emptyErr *clients.EmptyResultError
		result.Status = CheckFailed
		result.Detail = err.Error()
		if errors.As(err, &emptyErr) {
			result.Detail = "no results returned"
		}
		return result
	}
	result.Status = CheckPassed
	result.Detail = fmt.Sprintf("%s search returned %d post(s)", fetched.Mode, len(fetched.Posts))
	return result
}

func checkScorer(ctx context.Context, scorer sentiment.Scorer) CheckResult {
	result := CheckResult{Name: fmt.Sprintf("Sentiment scorer (%s)", scorer.Name())}

	sample, err := probe(ctx, scorer)
	if err != nil {
		result.Status = CheckFailed
		result.Detail = err.Error()
		return result
	}
	result.Status = CheckPassed
	result.Detail = fmt.Sprintf("sample score=%.2f magnitude=%.2f", sample.Score, sample.Magnitude)
	return result
}

func probe(ctx context.Context, scorer sentiment.Scorer) (models.SentimentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, HEALTHCHECK_TIMEOUT)
	defer cancel()
	return scorer.Score(ctx, HEALTHCHECK_PROBE_TEXT)
}

// Reserver gates billed scorer calls; *quota.Limiter satisfies it.
type Reserver interface {
	WaitAndReserve(ctx context.Context) (bool, error)
}

// MonitorScorerHealth probes the scorer right away and then every
// interval until ctx is done. The latest outcome is stored in healthy.
// With a non-nil limiter each probe takes a quota reservation first; when
// the budget is spent the probe is skipped and the last state is kept.
func MonitorScorerHealth(ctx context.Context, scorer sentiment.Scorer, limiter Reserver, interval time.Duration, healthy *atomic.Bool) {
	check := func() {
		if limiter != nil {
			ok, err := limiter.WaitAndReserve(ctx)
			if err != nil {
				return
			}
			if !ok {
				slog.Debug("[HealthCheck] Scoring quota spent, skipping probe",
					slog.String("provider", scorer.Name()))
				return
			}
		}

		_, err := probe(ctx, scorer)
		if err != nil && ctx.Err() != nil {
			return
		}
		wasHealthy := healthy.Swap(err == nil)
		switch {
		case err != nil:
			slog.Warn("[HealthCheck] Scorer is unhealthy",
				slog.String("provider", scorer.Name()),
				slog.String("error", err.Error()))
		case !wasHealthy:
			slog.Info("[HealthCheck] Scorer is healthy", slog.String("provider", scorer.Name()))
		}
	}

	check()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckQuotaStore pings the shared quota counter store.
func CheckQuotaStore(ctx context.Context, store Pinger) CheckResult {
	result := CheckResult{Name: "Valkey quota store"}

	ctx, cancel := context.WithTimeout(ctx, HEALTHCHECK_TIMEOUT)
	defer cancel()

	if err := store.Ping(ctx); err != nil {
		result.Status = CheckFailed
		result.Detail = err.Error()
		return result
	}
	result.Status = CheckPassed
	return result
}
