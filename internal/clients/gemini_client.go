package clients

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/spacesedan/bluesense/internal/models"
)

const PROVIDER_GEMINI = "gemini"

type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &AuthError{Service: "gemini", Reason: "could not create client", Err: err}
	}
	if timeout <= 0 {
		timeout = SCORER_CALL_TIMEOUT
	}

	slog.Info("[GeminiClient] Gemini client initialized",
		slog.String("model", model),
		slog.Duration("timeout", timeout))
	return &GeminiClient{client: client, model: model, timeout: timeout}, nil
}

func (gc *GeminiClient) Name() string { return PROVIDER_GEMINI }

func (gc *GeminiClient) Score(ctx context.Context, text string) (models.SentimentResult, error) {
	if strings.TrimSpace(text) == "" {
		return models.SentimentResult{}, &ScoringError{Provider: PROVIDER_GEMINI, Reason: ReasonMalformedInput, Err: errors.New("empty text")}
	}

	ctx, cancel := context.WithTimeout(ctx, gc.timeout)
	defer cancel()

	result, err := gc.client.Models.GenerateContent(
		ctx,
		gc.model,
		genai.Text(text),
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: SENTIMENT_PROMPT}}},
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](0),
		},
	)
	if err != nil {
		return models.SentimentResult{}, classifyHTTPScoringError(PROVIDER_GEMINI, geminiStatus(err), err)
	}

	sentiment, err := parseSentimentJSON(result.Text(), PROVIDER_GEMINI)
	if err != nil {
		return models.SentimentResult{}, &ScoringError{Provider: PROVIDER_GEMINI, Reason: ReasonUpstream, Err: err}
	}
	return sentiment, nil
}

func geminiStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	return 0
}
