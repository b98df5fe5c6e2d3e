package model

import "time"

// FeedFilter selects which feed tab is being assembled.
type FeedFilter string

const (
	FeedFilterRecommend FeedFilter = "recommend"
	FeedFilterFollowing FeedFilter = "following"
	FeedFilterShort     FeedFilter = "short"
	FeedFilterPaid      FeedFilter = "paid"
	FeedFilterDefault   FeedFilter = "default"
)

// UserSummary is the slim author/repost-user projection embedded in feed
// items. Built by copier from User, it never carries credential fields.
type UserSummary struct {
	Id           string `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	ProfileImage string `json:"profile_image"`
}

// PostCounts aggregates the per-post engagement counters for one feed item.
type PostCounts struct {
	Likes     int64 `json:"likes"`
	Sparks    int64 `json:"sparks"`
	Bookmarks int64 `json:"bookmarks"`
	Replies   int64 `json:"replies"`
	Quotes    int64 `json:"quotes"`
	Views     int64 `json:"views"`
}

/*

FeedItem is one assembled feed entry

A fresh value is constructed per request: viewer specific flags (IsLiked etc.)
are never written onto a shared Post instance. A sparked post appears once per
sparking user with IsRepost set and the spark attribution filled in, plus once
for its own creation with IsRepost false.

*/

type FeedItem struct {
	Id                string       `json:"id"`
	User              *UserSummary `json:"user"`
	ContentType       ContentType  `json:"content_type"`
	TextContent       string       `json:"text_content"`
	ViewPermission    Permission   `json:"view_permission"`
	CommentPermission Permission   `json:"comment_permission"`
	IsSensitive       bool         `json:"is_sensitive"`
	IsPaid            bool         `json:"is_paid"`
	Price             *int         `json:"price,omitempty"`
	Media             []*Media     `json:"media"`
	QuotedPost        *FeedItem    `json:"quoted_post,omitempty"`
	QuotedReply       *Reply       `json:"quoted_reply,omitempty"`
	Counts            PostCounts   `json:"counts"`

	IsLiked      bool `json:"is_liked"`
	IsSparked    bool `json:"is_sparked"`
	IsBookmarked bool `json:"is_bookmarked"`

	IsRepost        bool         `json:"is_repost"`
	RepostUser      *UserSummary `json:"repost_user,omitempty"`
	RepostCreatedAt *time.Time   `json:"repost_created_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// FeedMeta carries pagination state alongside one page of items.
type FeedMeta struct {
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// FeedResponse is the wire shape of one feed page.
type FeedResponse struct {
	Data []*FeedItem `json:"data"`
	Meta FeedMeta    `json:"meta"`
}
