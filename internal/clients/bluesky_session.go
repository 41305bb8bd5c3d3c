package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/spacesedan/bluesense/internal/models"
)

// sessionTokenSource turns a Bluesky app-password login into an
// oauth2.TokenSource. Wrapped in oauth2.ReuseTokenSource it is only asked
// for a new token once the access JWT has expired; it then tries
// refreshSession before falling back to a fresh createSession.
type sessionTokenSource struct {
	httpClient *http.Client
	host       string
	identifier string
	password   string

	mu         sync.Mutex
	refreshJwt string
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), SESSION_TIMEOUT)
	defer cancel()

	if s.refreshJwt != "" {
		session, err := s.call(ctx, BLUESKY_REFRESH_SESSION, nil, s.refreshJwt)
		if err == nil {
			slog.Debug("[BlueskyClient] Session refreshed", slog.String("handle", session.Handle))
			return s.token(session), nil
		}
		slog.Warn("[BlueskyClient] Session refresh failed, logging in again",
			slog.String("error", err.Error()))
		s.refreshJwt = ""
	}

	payload := models.BlueskySessionRequest{Identifier: s.identifier, Password: s.password}
	session, err := s.call(ctx, BLUESKY_CREATE_SESSION, payload, "")
	if err != nil {
		return nil, err
	}

	slog.Info("[BlueskyClient] Logged in", slog.String("handle", session.Handle))
	return s.token(session), nil
}

func (s *sessionTokenSource) token(session *models.BlueskySessionResponse) *oauth2.Token {
	s.refreshJwt = session.RefreshJwt
	return &oauth2.Token{
		AccessToken:  session.AccessJwt,
		RefreshToken: session.RefreshJwt,
		TokenType:    "Bearer",
		Expiry:       tokenExpiry(session.AccessJwt, time.Now()),
	}
}

func (s *sessionTokenSource) call(ctx context.Context, path string, payload any, bearer string) (*models.BlueskySessionResponse, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("[BlueskyClient] failed to encode session request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", USER_AGENT)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[BlueskyClient] session request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var session models.BlueskySessionResponse
		if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
			return nil, fmt.Errorf("[BlueskyClient] failed to decode session: %w", err)
		}
		if session.AccessJwt == "" {
			return nil, &AuthError{Service: "bluesky", Reason: "session response carried no access token"}
		}
		return &session, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, &AuthError{Service: "bluesky", Reason: xrpcErrorMessage(resp)}
	case http.StatusTooManyRequests:
		return nil, &RateLimitError{Service: "bluesky", RetryAfter: retryAfter(resp.Header, time.Now())}
	default:
		return nil, fmt.Errorf("[BlueskyClient] %s returned %d: %s", path, resp.StatusCode, xrpcErrorMessage(resp))
	}
}

// tokenExpiry reads the exp claim of the access JWT without verifying its
// signature; the PDS is the only party that can. Tokens signed with an
// algorithm jwt does not know still have their claims decoded.
func tokenExpiry(accessJwt string, now time.Time) time.Time {
	fallback := now.Add(SESSION_FALLBACK_TTL)

	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(accessJwt, claims)
	if err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return fallback
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	return exp.Time
}

func xrpcErrorMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(data) == 0 {
		return resp.Status
	}

	var xrpcErr models.BlueskyErrorResponse
	if err := json.Unmarshal(data, &xrpcErr); err != nil || (xrpcErr.Error == "" && xrpcErr.Message == "") {
		return getPreview(string(data))
	}
	if xrpcErr.Message == "" {
		return xrpcErr.Error
	}
	return xrpcErr.Error + ": " + xrpcErr.Message
}

func getPreview(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
