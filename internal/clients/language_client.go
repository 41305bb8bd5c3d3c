package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	language "cloud.google.com/go/language/apiv1"
	"cloud.google.com/go/language/apiv1/languagepb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/spacesedan/bluesense/internal/models"
)

const PROVIDER_GOOGLE = "google"

// LanguageClient scores text with Google Cloud Natural Language
// document sentiment.
type LanguageClient struct {
	client  *language.Client
	timeout time.Duration
}

// NewLanguageClient authenticates with the service account file at
// credentialsPath, or Application Default Credentials when it is empty.
func NewLanguageClient(ctx context.Context, credentialsPath string, timeout time.Duration) (*LanguageClient, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := language.NewClient(ctx, opts...)
	if err != nil {
		return nil, &AuthError{Service: "google-language", Reason: "could not create client", Err: err}
	}
	if timeout <= 0 {
		timeout = SCORER_CALL_TIMEOUT
	}

	slog.Info("[LanguageClient] Natural Language client initialized",
		slog.Duration("timeout", timeout))
	return &LanguageClient{client: client, timeout: timeout}, nil
}

func (lc *LanguageClient) Name() string { return PROVIDER_GOOGLE }

func (lc *LanguageClient) Score(ctx context.Context, text string) (models.SentimentResult, error) {
	if strings.TrimSpace(text) == "" {
		return models.SentimentResult{}, &ScoringError{Provider: PROVIDER_GOOGLE, Reason: ReasonMalformedInput, Err: errors.New("empty text")}
	}

	ctx, cancel := context.WithTimeout(ctx, lc.timeout)
	defer cancel()

	resp, err := lc.client.AnalyzeSentiment(ctx, &languagepb.AnalyzeSentimentRequest{
		Document: &languagepb.Document{
			Source: &languagepb.Document_Content{Content: text},
			Type:   languagepb.Document_PLAIN_TEXT,
		},
		EncodingType: languagepb.EncodingType_UTF8,
	})
	if err != nil {
		return models.SentimentResult{}, classifyLanguageError(err)
	}

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		slog.Debug("[LanguageClient] AnalyzeSentiment response",
			slog.String("response", protojson.Format(resp)))
	}

	sentiment := resp.GetDocumentSentiment()
	if sentiment == nil {
		return models.SentimentResult{}, &ScoringError{Provider: PROVIDER_GOOGLE, Reason: ReasonUpstream, Err: errors.New("response has no document sentiment")}
	}
	return models.NewSentimentResult(float64(sentiment.GetScore()), float64(sentiment.GetMagnitude()), PROVIDER_GOOGLE), nil
}

func (lc *LanguageClient) Close() error {
	return lc.client.Close()
}

func classifyLanguageError(err error) *ScoringError {
	reason := ReasonUpstream

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			reason = ReasonQuota
		case codes.InvalidArgument:
			if strings.Contains(strings.ToLower(st.Message()), "not supported") {
				reason = ReasonUnsupportedLanguage
			} else {
				reason = ReasonMalformedInput
			}
		case codes.Unauthenticated, codes.PermissionDenied:
			reason = ReasonAuth
		case codes.DeadlineExceeded, codes.Canceled:
			reason = ReasonTimeout
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		reason = ReasonTimeout
	}

	return &ScoringError{Provider: PROVIDER_GOOGLE, Reason: reason, Err: fmt.Errorf("analyze sentiment: %w", err)}
}
