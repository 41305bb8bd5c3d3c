package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	oaoption "github.com/openai/openai-go/option"

	"github.com/spacesedan/bluesense/internal/models"
)

const PROVIDER_OPENAI = "openai"

type OpenAIClient struct {
	Client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIClient(apiKey, model string, timeout time.Duration) *OpenAIClient {
	if timeout <= 0 {
		timeout = SCORER_CALL_TIMEOUT
	}

	client := openai.NewClient(
		oaoption.WithAPIKey(apiKey),
		oaoption.WithMaxRetries(0),
	)
	slog.Info("[OpenAIClient] OpenAI client initialized",
		slog.String("model", model),
		slog.Duration("timeout", timeout))

	return &OpenAIClient{Client: client, model: model, timeout: timeout}
}

func (oc *OpenAIClient) Name() string { return PROVIDER_OPENAI }

func (oc *OpenAIClient) Score(ctx context.Context, text string) (models.SentimentResult, error) {
	if strings.TrimSpace(text) == "" {
		return models.SentimentResult{}, &ScoringError{Provider: PROVIDER_OPENAI, Reason: ReasonMalformedInput, Err: errors.New("empty text")}
	}

	ctx, cancel := context.WithTimeout(ctx, oc.timeout)
	defer cancel()

	chatCompletion, err := oc.Client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SENTIMENT_PROMPT),
			openai.UserMessage(text),
		}),
		Model:       openai.F(openai.ChatModel(oc.model)),
		Temperature: openai.Float(0),
	})
	if err != nil {
		return models.SentimentResult{}, classifyHTTPScoringError(PROVIDER_OPENAI, openAIStatus(err), err)
	}

	if len(chatCompletion.Choices) == 0 || strings.TrimSpace(chatCompletion.Choices[0].Message.Content) == "" {
		return models.SentimentResult{}, &ScoringError{Provider: PROVIDER_OPENAI, Reason: ReasonUpstream, Err: errors.New("empty completion")}
	}

	result, err := parseSentimentJSON(chatCompletion.Choices[0].Message.Content, PROVIDER_OPENAI)
	if err != nil {
		return models.SentimentResult{}, &ScoringError{Provider: PROVIDER_OPENAI, Reason: ReasonUpstream, Err: err}
	}
	return result, nil
}

func openAIStatus(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// classifyHTTPScoringError maps an HTTP status from an LLM API onto a
// scoring failure reason. status is 0 when the call never got a response.
func classifyHTTPScoringError(provider string, status int, err error) *ScoringError {
	reason := ReasonUpstream
	switch {
	case status == http.StatusTooManyRequests:
		reason = ReasonQuota
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		reason = ReasonAuth
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		reason = ReasonMalformedInput
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		reason = ReasonTimeout
	}
	return &ScoringError{Provider: provider, Reason: reason, Err: fmt.Errorf("%s request: %w", provider, err)}
}
