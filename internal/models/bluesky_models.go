package models

type BlueskySessionRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type BlueskySessionResponse struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	Handle     string `json:"handle"`
	DID        string `json:"did"`
}

type BlueskyErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type BlueskySearchPostsResponse struct {
	Cursor    string            `json:"cursor"`
	HitsTotal *int              `json:"hitsTotal,omitempty"`
	Posts     []BlueskyPostView `json:"posts"`
}

type BlueskyPostView struct {
	URI         string             `json:"uri"`
	CID         string             `json:"cid"`
	Author      BlueskyProfileView `json:"author"`
	Record      BlueskyPostRecord  `json:"record"`
	Embed       *BlueskyEmbedView  `json:"embed,omitempty"`
	ReplyCount  int                `json:"replyCount"`
	RepostCount int                `json:"repostCount"`
	LikeCount   int                `json:"likeCount"`
	QuoteCount  int                `json:"quoteCount"`
	IndexedAt   string             `json:"indexedAt"`
}

type BlueskyProfileView struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
}

type BlueskyPostRecord struct {
	Type      string   `json:"$type"`
	Text      string   `json:"text"`
	CreatedAt string   `json:"createdAt"`
	Langs     []string `json:"langs,omitempty"`
}

// BlueskyEmbedView covers the embed view variants we need to inspect:
// images/video/external at the top level, record and recordWithMedia
// through Record and Media.
type BlueskyEmbedView struct {
	Type   string                  `json:"$type"`
	Record *BlueskyEmbedRecordView `json:"record,omitempty"`
	Media  *BlueskyEmbedView       `json:"media,omitempty"`
}

type BlueskyEmbedRecordView struct {
	Type   string                  `json:"$type"`
	Embeds []BlueskyEmbedView      `json:"embeds,omitempty"`
	Record *BlueskyEmbedRecordView `json:"record,omitempty"`
}
