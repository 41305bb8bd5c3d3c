package models

import "time"

type FetchMode string

const (
	FetchModeAuthenticated   FetchMode = "authenticated"
	FetchModeUnauthenticated FetchMode = "unauthenticated"
)

type Post struct {
	ID           string    `json:"id"`
	CID          string    `json:"cid"`
	Author       string    `json:"author"`
	AuthorHandle string    `json:"author_handle"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	LikeCount    int       `json:"like_count"`
	RepostCount  int       `json:"repost_count"`
	ReplyCount   int       `json:"reply_count"`
	Langs        []string  `json:"langs,omitempty"`
	URL          string    `json:"url"`
}

type SkipCounts struct {
	Video       int `json:"video"`
	StarterPack int `json:"starter_pack"`
	Empty       int `json:"empty"`
	Undated     int `json:"undated"`
}

func (s SkipCounts) Total() int {
	return s.Video + s.StarterPack + s.Empty + s.Undated
}

type FetchResult struct {
	Posts   []Post     `json:"posts"`
	Mode    FetchMode  `json:"mode"`
	Pages   int        `json:"pages"`
	Skipped SkipCounts `json:"skipped"`
}
