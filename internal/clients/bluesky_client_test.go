package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/bluesense/config"
	"github.com/spacesedan/bluesense/internal/models"
)

type fakeBluesky struct {
	t            *testing.T
	password     string
	pageSize     int
	pages        int
	rejectSearch atomic.Int32
	status       int
	delay        time.Duration
	logins       atomic.Int32
	searches     atomic.Int32
	lastAuth     atomic.Value
	posts        func(page int) []models.BlueskyPostView
}

func (f *fakeBluesky) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(BLUESKY_CREATE_SESSION, func(w http.ResponseWriter, r *http.Request) {
		var req models.BlueskySessionRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != f.password {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"AuthenticationRequired","message":"Invalid identifier or password"}`)
			return
		}
		f.logins.Add(1)
		json.NewEncoder(w).Encode(models.BlueskySessionResponse{
			AccessJwt:  signedJWT(f.t, time.Now().Add(time.Hour)),
			RefreshJwt: "refresh-token",
			Handle:     req.Identifier,
		})
	})
	mux.HandleFunc(BLUESKY_SEARCH_POSTS, func(w http.ResponseWriter, r *http.Request) {
		f.searches.Add(1)
		f.lastAuth.Store(r.Header.Get("Authorization"))

		if f.rejectSearch.Load() > 0 {
			f.rejectSearch.Add(-1)
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"ExpiredToken","message":"Token has expired"}`)
			return
		}
		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-r.Context().Done():
				return
			}
		}
		if f.status != 0 {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(f.status)
			return
		}

		page := 0
		if c := r.URL.Query().Get("cursor"); c != "" {
			page, _ = strconv.Atoi(c)
		}
		resp := models.BlueskySearchPostsResponse{Posts: f.posts(page)}
		if page+1 < f.pages {
			resp.Cursor = strconv.Itoa(page + 1)
		}
		json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func signedJWT(t *testing.T, exp time.Time) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"scope": "com.atproto.access",
		"exp":   exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func textPosts(prefix string, n int) []models.BlueskyPostView {
	views := make([]models.BlueskyPostView, 0, n)
	for i := 0; i < n; i++ {
		views = append(views, models.BlueskyPostView{
			URI:    fmt.Sprintf("at://did:plc:abc/app.bsky.feed.post/%s%d", prefix, i),
			Author: models.BlueskyProfileView{Handle: "alice.bsky.social", DisplayName: "Alice"},
			Record: models.BlueskyPostRecord{
				Text:      fmt.Sprintf("post %s %d", prefix, i),
				CreatedAt: "2024-11-05T10:00:00.000Z",
			},
			LikeCount: i,
		})
	}
	return views
}

func newTestClient(url string, username, password string, fallback bool) *BlueskyClient {
	cfg := config.Default().Bluesky
	cfg.Host = url
	cfg.PublicHost = url
	cfg.ServiceUsername = username
	cfg.ServicePassword = password
	cfg.FallbackUnauthenticated = fallback
	return NewBlueskyClient(cfg)
}

func TestFetchPostsUnauthenticatedFiltersEmbeds(t *testing.T) {
	fake := &fakeBluesky{t: t, pages: 3, posts: func(page int) []models.BlueskyPostView {
		views := textPosts("p", 3)
		views = append(views,
			models.BlueskyPostView{
				URI:    "at://did:plc:abc/app.bsky.feed.post/video",
				Record: models.BlueskyPostRecord{Text: "look at this"},
				Embed:  &models.BlueskyEmbedView{Type: "app.bsky.embed.video#view"},
			},
			models.BlueskyPostView{
				URI:    "at://did:plc:abc/app.bsky.feed.post/quoted-video",
				Record: models.BlueskyPostRecord{Text: "quoting"},
				Embed: &models.BlueskyEmbedView{
					Type: "app.bsky.embed.record#view",
					Record: &models.BlueskyEmbedRecordView{
						Type:   "app.bsky.embed.record#viewRecord",
						Embeds: []models.BlueskyEmbedView{{Type: "app.bsky.embed.video#view"}},
					},
				},
			},
			models.BlueskyPostView{
				URI:    "at://did:plc:abc/app.bsky.feed.post/pack",
				Record: models.BlueskyPostRecord{Text: "join my pack"},
				Embed: &models.BlueskyEmbedView{
					Type:   "app.bsky.embed.record#view",
					Record: &models.BlueskyEmbedRecordView{Type: "app.bsky.graph.defs#starterPackViewBasic"},
				},
			},
			models.BlueskyPostView{URI: "at://did:plc:abc/app.bsky.feed.post/blank", Record: models.BlueskyPostRecord{Text: "   "}},
		)
		return views
	}}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(server.URL, "", "", true)
	result, err := client.FetchPosts(context.Background(), "election", 100)
	require.NoError(t, err)

	assert.Equal(t, models.FetchModeUnauthenticated, result.Mode)
	assert.Equal(t, 1, result.Pages, "public search reads a single page")
	assert.Len(t, result.Posts, 3)
	assert.Equal(t, models.SkipCounts{Video: 2, StarterPack: 1, Empty: 1}, result.Skipped)
	assert.Equal(t, "", fake.lastAuth.Load())

	first := result.Posts[0]
	assert.Equal(t, "Alice", first.Author)
	assert.Equal(t, "https://bsky.app/profile/alice.bsky.social/post/p0", first.URL)
	assert.Equal(t, time.Date(2024, 11, 5, 10, 0, 0, 0, time.UTC), first.CreatedAt)
}

func TestFetchPostsAuthenticatedPaginates(t *testing.T) {
	fake := &fakeBluesky{t: t, password: "secret", pages: 3, posts: func(page int) []models.BlueskyPostView {
		return textPosts(strconv.Itoa(page)+"-", 60)
	}}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(server.URL, "alice.bsky.social", "secret", false)
	require.NoError(t, client.Connect(context.Background()))
	assert.Equal(t, models.FetchModeAuthenticated, client.Mode())

	result, err := client.FetchPosts(context.Background(), "election", 100)
	require.NoError(t, err)

	assert.Len(t, result.Posts, 100)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, int32(1), fake.logins.Load(), "token is reused across pages")
	assert.Contains(t, fake.lastAuth.Load(), "Bearer ")
}

func TestFetchPostsClampsLimit(t *testing.T) {
	fake := &fakeBluesky{t: t, password: "secret", pages: 5, posts: func(page int) []models.BlueskyPostView {
		return textPosts(strconv.Itoa(page)+"-", 100)
	}}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(server.URL, "alice.bsky.social", "secret", false)
	result, err := client.FetchPosts(context.Background(), "election", 500)
	require.NoError(t, err)
	assert.Len(t, result.Posts, 100)
}

func TestConnectInvalidCredentials(t *testing.T) {
	fake := &fakeBluesky{t: t, password: "secret", pages: 1, posts: func(int) []models.BlueskyPostView {
		return textPosts("p", 2)
	}}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	t.Run("fallback enabled", func(t *testing.T) {
		client := newTestClient(server.URL, "alice.bsky.social", "wrong", true)
		require.NoError(t, client.Connect(context.Background()))
		assert.Equal(t, models.FetchModeUnauthenticated, client.Mode())
		assert.Error(t, client.AuthFailure())

		result, err := client.FetchPosts(context.Background(), "election", 10)
		require.NoError(t, err)
		assert.Len(t, result.Posts, 2)
	})

	t.Run("fallback disabled", func(t *testing.T) {
		client := newTestClient(server.URL, "alice.bsky.social", "wrong", false)
		err := client.Connect(context.Background())

		var authErr *AuthError
		require.True(t, errors.As(err, &authErr))
		assert.Contains(t, authErr.Reason, "AuthenticationRequired")
	})

	t.Run("missing credentials required", func(t *testing.T) {
		client := newTestClient(server.URL, "", "", false)
		_, err := client.FetchPosts(context.Background(), "election", 10)

		var authErr *AuthError
		assert.True(t, errors.As(err, &authErr))
	})
}

func TestFetchPostsReconnectsOnRejectedSession(t *testing.T) {
	fake := &fakeBluesky{t: t, password: "secret", pages: 1, posts: func(int) []models.BlueskyPostView {
		return textPosts("p", 5)
	}}
	fake.rejectSearch.Store(1)
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(server.URL, "alice.bsky.social", "secret", false)
	result, err := client.FetchPosts(context.Background(), "election", 10)
	require.NoError(t, err)

	assert.Len(t, result.Posts, 5)
	assert.Equal(t, int32(2), fake.logins.Load())
	assert.Equal(t, int32(2), fake.searches.Load())
}

func TestFetchPostsRateLimited(t *testing.T) {
	fake := &fakeBluesky{t: t, status: http.StatusTooManyRequests, posts: func(int) []models.BlueskyPostView { return nil }}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(server.URL, "", "", true)
	_, err := client.FetchPosts(context.Background(), "election", 10)

	var rateErr *RateLimitError
	require.True(t, errors.As(err, &rateErr))
	assert.Equal(t, 30*time.Second, rateErr.RetryAfter)
}

func TestFetchPostsEmpty(t *testing.T) {
	fake := &fakeBluesky{t: t, pages: 1, posts: func(int) []models.BlueskyPostView {
		return []models.BlueskyPostView{{
			URI:    "at://did:plc:abc/app.bsky.feed.post/video",
			Record: models.BlueskyPostRecord{Text: "clip"},
			Embed:  &models.BlueskyEmbedView{Type: "app.bsky.embed.video#view"},
		}}
	}}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(server.URL, "", "", true)
	_, err := client.FetchPosts(context.Background(), "qwertyuiop-nonexistent", 10)

	var emptyErr *EmptyResultError
	require.True(t, errors.As(err, &emptyErr))
	assert.Equal(t, 1, emptyErr.Skipped.Video)
}

func TestFetchPostsRejectsBlankTopic(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0", "", "", true)
	_, err := client.FetchPosts(context.Background(), "  ", 10)
	assert.ErrorIs(t, err, ErrEmptyTopic)
}

func TestFetchPostsUsesIndexedAt(t *testing.T) {
	fake := &fakeBluesky{t: t, pages: 1, posts: func(int) []models.BlueskyPostView {
		return []models.BlueskyPostView{
			{
				URI:       "at://did:plc:abc/app.bsky.feed.post/imported",
				Record:    models.BlueskyPostRecord{Text: "imported from an archive", CreatedAt: "0001-01-01T00:00:00Z"},
				IndexedAt: "2026-10-17T09:15:00.000Z",
			},
			{
				URI:    "at://did:plc:abc/app.bsky.feed.post/no-index",
				Record: models.BlueskyPostRecord{Text: "only createdAt", CreatedAt: "2026-10-17T11:30:00.000Z"},
			},
			{
				URI:    "at://did:plc:abc/app.bsky.feed.post/undated",
				Record: models.BlueskyPostRecord{Text: "no timestamps at all"},
			},
		}
	}}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(server.URL, "", "", true)
	result, err := client.FetchPosts(context.Background(), "election", 10)
	require.NoError(t, err)

	require.Len(t, result.Posts, 2)
	assert.Equal(t, time.Date(2026, 10, 17, 9, 15, 0, 0, time.UTC), result.Posts[0].CreatedAt)
	assert.Equal(t, time.Date(2026, 10, 17, 11, 30, 0, 0, time.UTC), result.Posts[1].CreatedAt)
	assert.Equal(t, 1, result.Skipped.Undated)
}

func TestFetchPostsAuthenticatedRespectsTimeout(t *testing.T) {
	fake := &fakeBluesky{t: t, password: "secret", pages: 1, delay: 3 * time.Second, posts: func(int) []models.BlueskyPostView {
		return textPosts("p", 2)
	}}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	cfg := config.Default().Bluesky
	cfg.Host = server.URL
	cfg.PublicHost = server.URL
	cfg.ServiceUsername = "alice.bsky.social"
	cfg.ServicePassword = "secret"
	cfg.Timeout = 200 * time.Millisecond
	client := NewBlueskyClient(cfg)

	require.NoError(t, client.Connect(context.Background()))
	require.Equal(t, models.FetchModeAuthenticated, client.Mode())

	start := time.Now()
	_, err := client.FetchPosts(context.Background(), "election", 10)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestTokenExpiry(t *testing.T) {
	now := time.Now()
	exp := now.Add(2 * time.Hour).Truncate(time.Second)

	assert.True(t, exp.Equal(tokenExpiry(signedJWT(t, exp), now)))
	assert.True(t, now.Add(SESSION_FALLBACK_TTL).Equal(tokenExpiry("not-a-jwt", now)))
}

func TestRetryAfter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	h := http.Header{}
	h.Set("Retry-After", "12")
	assert.Equal(t, 12*time.Second, retryAfter(h, now))

	h = http.Header{}
	h.Set("Ratelimit-Reset", strconv.FormatInt(now.Add(90*time.Second).Unix(), 10))
	assert.Equal(t, 90*time.Second, retryAfter(h, now))

	assert.Zero(t, retryAfter(http.Header{}, now))
}
