package sentiment

import (
	"context"
	"log/slog"

	"github.com/spacesedan/bluesense/config"
	"github.com/spacesedan/bluesense/internal/clients"
	"github.com/spacesedan/bluesense/internal/models"
)

// Scorer turns text into a signed score and a non-negative magnitude.
// Failures are *clients.ScoringError.
type Scorer interface {
	Name() string
	Score(ctx context.Context, text string) (models.SentimentResult, error)
}

// Selection describes which backend NewScorer picked and why.
type Selection struct {
	Provider string
	Degraded bool
	Reason   string
}

// NewScorer builds the configured backend. When the backend's credentials
// are absent it degrades to the local VADER scorer instead of failing.
func NewScorer(ctx context.Context, cfg *config.Config) (Scorer, Selection, error) {
	sc := cfg.Sentiment

	degrade := func(reason string) (Scorer, Selection, error) {
		slog.Warn("[Sentiment] Falling back to local VADER scoring",
			slog.String("configured_provider", sc.Provider),
			slog.String("reason", reason))
		return NewVaderScorer(), Selection{Provider: PROVIDER_VADER, Degraded: true, Reason: reason}, nil
	}

	switch sc.Provider {
	case config.PROVIDER_GOOGLE:
		if sc.CloudCredentialsPath == "" {
			return degrade("no Google Cloud credentials configured")
		}
		client, err := clients.NewLanguageClient(ctx, sc.CloudCredentialsPath, sc.CallTimeout)
		if err != nil {
			return nil, Selection{}, err
		}
		return client, Selection{Provider: client.Name()}, nil
	case config.PROVIDER_OPENAI:
		if sc.OpenAIAPIKey == "" {
			return degrade("no OpenAI API key configured")
		}
		client := clients.NewOpenAIClient(sc.OpenAIAPIKey, sc.OpenAIModel, sc.CallTimeout)
		return client, Selection{Provider: client.Name()}, nil
	case config.PROVIDER_GEMINI:
		if sc.GeminiAPIKey == "" {
			return degrade("no Gemini API key configured")
		}
		client, err := clients.NewGeminiClient(ctx, sc.GeminiAPIKey, sc.GeminiModel, sc.CallTimeout)
		if err != nil {
			return nil, Selection{}, err
		}
		return client, Selection{Provider: client.Name()}, nil
	default:
		return NewVaderScorer(), Selection{Provider: PROVIDER_VADER}, nil
	}
}
