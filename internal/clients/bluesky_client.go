package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/spacesedan/bluesense/config"
	"github.com/spacesedan/bluesense/internal/models"
)

type skipReason int

const (
	keepPost skipReason = iota
	skipVideo
	skipStarterPack
	skipEmpty
	skipUndated
)

// BlueskyClient searches Bluesky posts. With credentials it logs in against
// the PDS host and pages through results; without them (or after a
// rejected login when fallback is enabled) it reads one page from the
// public AppView.
type BlueskyClient struct {
	host       string
	publicHost string
	identifier string
	password   string
	fallback   bool
	maxPages   int
	httpClient *http.Client

	mu          sync.Mutex
	connected   bool
	authed      *http.Client
	mode        models.FetchMode
	authFailure error
}

func NewBlueskyClient(cfg config.Bluesky) *BlueskyClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxPages := cfg.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}

	return &BlueskyClient{
		host:       strings.TrimRight(cfg.Host, "/"),
		publicHost: strings.TrimRight(cfg.PublicHost, "/"),
		identifier: cfg.ServiceUsername,
		password:   cfg.ServicePassword,
		fallback:   cfg.FallbackUnauthenticated,
		maxPages:   maxPages,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Connect logs in when credentials are configured. A rejected login is
// returned as *AuthError unless fallback to unauthenticated mode is allowed.
func (bc *BlueskyClient) Connect(ctx context.Context) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.connectLocked(ctx)
}

func (bc *BlueskyClient) connectLocked(ctx context.Context) error {
	bc.connected = false
	bc.authed = nil
	bc.authFailure = nil
	bc.mode = models.FetchModeUnauthenticated

	if bc.identifier == "" || bc.password == "" {
		if !bc.fallback {
			return &AuthError{Service: "bluesky", Reason: "credentials are required but not configured"}
		}
		slog.Info("[BlueskyClient] No credentials configured, using public search")
		bc.connected = true
		return nil
	}

	source := oauth2.ReuseTokenSource(nil, &sessionTokenSource{
		httpClient: bc.httpClient,
		host:       bc.host,
		identifier: bc.identifier,
		password:   bc.password,
	})

	if _, err := source.Token(); err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) && bc.fallback {
			slog.Warn("[BlueskyClient] Login rejected, falling back to public search",
				slog.String("error", err.Error()))
			bc.authFailure = err
			bc.connected = true
			return nil
		}
		return err
	}

	base := context.WithValue(context.Background(), oauth2.HTTPClient, bc.httpClient)
	bc.authed = oauth2.NewClient(base, source)
	bc.authed.Timeout = bc.httpClient.Timeout
	bc.mode = models.FetchModeAuthenticated
	bc.connected = true
	return nil
}

// Mode reports the current fetch mode. It is unauthenticated until Connect ran.
func (bc *BlueskyClient) Mode() models.FetchMode {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if bc.mode == "" {
		return models.FetchModeUnauthenticated
	}
	return bc.mode
}

// AuthFailure returns the login error that caused a fallback, if any.
func (bc *BlueskyClient) AuthFailure() error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.authFailure
}

func (bc *BlueskyClient) session(ctx context.Context) (*http.Client, string, models.FetchMode, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if !bc.connected {
		if err := bc.connectLocked(ctx); err != nil {
			return nil, "", "", err
		}
	}
	if bc.authed != nil {
		return bc.authed, bc.host, models.FetchModeAuthenticated, nil
	}
	return bc.httpClient, bc.publicHost, models.FetchModeUnauthenticated, nil
}

func (bc *BlueskyClient) reconnect(ctx context.Context) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.connectLocked(ctx)
}

// FetchPosts returns up to limit posts matching topic, in search order.
// Posts with video or starter-pack embeds, posts without text and posts
// without a usable timestamp are dropped and counted. Zero usable posts yields *EmptyResultError.
func (bc *BlueskyClient) FetchPosts(ctx context.Context, topic string, limit int) (models.FetchResult, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return models.FetchResult{}, ErrEmptyTopic
	}
	if limit < 1 || limit > config.MAX_FETCH_LIMIT {
		limit = config.MAX_FETCH_LIMIT
	}

	client, host, mode, err := bc.session(ctx)
	if err != nil {
		return models.FetchResult{}, err
	}

	result := models.FetchResult{Mode: mode}
	seen := make(map[string]struct{}, limit)
	cursor := ""
	retriedAuth := false

	for len(result.Posts) < limit {
		maxPages := bc.maxPages
		if mode == models.FetchModeUnauthenticated {
			maxPages = 1
		}
		if result.Pages >= maxPages {
			break
		}

		page, err := bc.searchPage(ctx, client, host, topic, cursor)
		if err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) && mode == models.FetchModeAuthenticated && !retriedAuth {
				slog.Warn("[BlueskyClient] Session rejected - Reconnecting and Retrying...")
				retriedAuth = true
				if err := bc.reconnect(ctx); err != nil {
					return result, err
				}
				if client, host, mode, err = bc.session(ctx); err != nil {
					return result, err
				}
				result.Mode = mode
				continue
			}
			return result, err
		}
		result.Pages++

		for _, view := range page.Posts {
			if len(result.Posts) >= limit {
				break
			}
			if _, dup := seen[view.URI]; dup {
				continue
			}
			seen[view.URI] = struct{}{}

			switch classifyPost(view) {
			case skipVideo:
				result.Skipped.Video++
			case skipStarterPack:
				result.Skipped.StarterPack++
			case skipEmpty:
				result.Skipped.Empty++
			default:
				post, ok := convertPost(view)
				if !ok {
					result.Skipped.Undated++
					continue
				}
				result.Posts = append(result.Posts, post)
			}
		}

		if page.Cursor == "" || len(page.Posts) == 0 {
			break
		}
		cursor = page.Cursor
	}

	slog.Info("[BlueskyClient] Search finished",
		slog.String("topic", topic),
		slog.String("mode", string(result.Mode)),
		slog.Int("pages", result.Pages),
		slog.Int("posts", len(result.Posts)),
		slog.Int("skipped", result.Skipped.Total()))

	if len(result.Posts) == 0 {
		return result, &EmptyResultError{Topic: topic, Skipped: result.Skipped}
	}
	return result, nil
}

func (bc *BlueskyClient) searchPage(ctx context.Context, client *http.Client, host, topic, cursor string) (*models.BlueskySearchPostsResponse, error) {
	parsedUrl, err := url.Parse(host + BLUESKY_SEARCH_POSTS)
	if err != nil {
		return nil, fmt.Errorf("[BlueskyClient] Failed to parse URL: %w", err)
	}
	queryParams := parsedUrl.Query()
	queryParams.Set("q", topic)
	queryParams.Set("limit", strconv.Itoa(BLUESKY_PAGE_SIZE))
	if cursor != "" {
		queryParams.Set("cursor", cursor)
	}
	parsedUrl.RawQuery = queryParams.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsedUrl.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[BlueskyClient] search request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var page models.BlueskySearchPostsResponse
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return nil, fmt.Errorf("[BlueskyClient] failed to decode search response: %w", err)
		}
		return &page, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &AuthError{Service: "bluesky", Reason: xrpcErrorMessage(resp)}
	case http.StatusTooManyRequests:
		slog.Warn("[BlueskyClient] 429 Too Many Requests")
		return nil, &RateLimitError{Service: "bluesky", RetryAfter: retryAfter(resp.Header, time.Now())}
	default:
		return nil, fmt.Errorf("[BlueskyClient] searchPosts returned %d: %s", resp.StatusCode, xrpcErrorMessage(resp))
	}
}

func classifyPost(view models.BlueskyPostView) skipReason {
	if hasVideo(view.Embed) {
		return skipVideo
	}
	if hasStarterPack(view.Embed) {
		return skipStarterPack
	}
	if strings.TrimSpace(view.Record.Text) == "" {
		return skipEmpty
	}
	return keepPost
}

func hasVideo(embed *models.BlueskyEmbedView) bool {
	if embed == nil {
		return false
	}
	if isVideoType(embed.Type) || hasVideo(embed.Media) {
		return true
	}
	for record := embed.Record; record != nil; record = record.Record {
		for _, nested := range record.Embeds {
			if hasVideo(&nested) {
				return true
			}
		}
	}
	return false
}

func hasStarterPack(embed *models.BlueskyEmbedView) bool {
	if embed == nil {
		return false
	}
	for record := embed.Record; record != nil; record = record.Record {
		if strings.Contains(strings.ToLower(record.Type), "starterpack") {
			return true
		}
	}
	return false
}

func isVideoType(t string) bool {
	return strings.Contains(strings.ToLower(t), "video")
}

func convertPost(view models.BlueskyPostView) (models.Post, bool) {
	createdAt, ok := postTime(view)
	if !ok {
		return models.Post{}, false
	}

	author := strings.TrimSpace(view.Author.DisplayName)
	if author == "" {
		author = view.Author.Handle
	}

	return models.Post{
		ID:           view.URI,
		CID:          view.CID,
		Author:       author,
		AuthorHandle: view.Author.Handle,
		Text:         view.Record.Text,
		CreatedAt:    createdAt,
		LikeCount:    view.LikeCount,
		RepostCount:  view.RepostCount,
		ReplyCount:   view.ReplyCount,
		Langs:        view.Record.Langs,
		URL:          postURL(view.Author.Handle, view.URI),
	}, true
}

// postTime prefers the AppView's indexedAt. The record's createdAt is set
// by the posting client and may lie anywhere in time, so it is only used
// when indexedAt is missing.
func postTime(view models.BlueskyPostView) (time.Time, bool) {
	for _, raw := range []string{view.IndexedAt, view.Record.CreatedAt} {
		if raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// postURL maps at://did/app.bsky.feed.post/<rkey> onto the bsky.app web link.
func postURL(handle, uri string) string {
	idx := strings.LastIndex(uri, "/")
	if idx < 0 || idx == len(uri)-1 {
		return ""
	}
	profile := handle
	if profile == "" {
		profile = strings.SplitN(strings.TrimPrefix(uri, "at://"), "/", 2)[0]
	}
	return fmt.Sprintf("%s/profile/%s/post/%s", BLUESKY_WEB_URL, profile, uri[idx+1:])
}

// retryAfter reads Retry-After (seconds) or the ratelimit-reset epoch the
// Bluesky PDS sends.
func retryAfter(h http.Header, now time.Time) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := h.Get("Ratelimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(epoch, 0).Sub(now); d > 0 {
				return d
			}
		}
	}
	return 0
}

func (bc *BlueskyClient) HasCredentials() bool {
	return bc.identifier != "" && bc.password != ""
}
