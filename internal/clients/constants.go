package clients

import "time"

const (
	USER_AGENT = "bluesense/1.0 (+https://github.com/spacesedan/bluesense)"

	BLUESKY_CREATE_SESSION  = "/xrpc/com.atproto.server.createSession"
	BLUESKY_REFRESH_SESSION = "/xrpc/com.atproto.server.refreshSession"
	BLUESKY_SEARCH_POSTS    = "/xrpc/app.bsky.feed.searchPosts"
	BLUESKY_WEB_URL         = "https://bsky.app"
	BLUESKY_PAGE_SIZE       = 100

	SESSION_TIMEOUT      = 10 * time.Second
	SESSION_FALLBACK_TTL = 90 * time.Minute

	SCORER_CALL_TIMEOUT = 10 * time.Second
)
