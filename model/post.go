package model

import (
	"time"

	"gorm.io/gorm"
)

// Enum domains for post columns. Stored as plain strings so the same values
// travel unchanged between the database and JSON payloads.
type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeVideo      ContentType = "video"
	ContentTypeShortVideo ContentType = "short_video"
	ContentTypeQuote      ContentType = "quote"
)

type Permission string

const (
	PermissionPublic    Permission = "public"
	PermissionFollowers Permission = "followers"
	PermissionMutuals   Permission = "mutuals"
)

/*

Post is a data model for a single piece of published content

Id: primary key, uuid string
UserId: author, "belongs-to" relation
CreatedAt: publication time, drives the origin activity of the feed

ViewPermission: who may see this post (public / followers / mutuals)
CommentPermission: who may reply, same domain
IsSensitive: age gated content flag
ContentType: text / video / short_video / quote
TextContent: body, max 140 chars
QuotedPostId / QuotedReplyId: optional quote references, at most one of the
two is meaningful; both are SET NULL when the referenced row is deleted
IsPaid / Price / Introduction: paid content fields
ViewsCount: denormalized view counter, incremented by the view recorder

Media: attached media rows ordered by their Order column

*/

type Post struct {
	Id                string         `json:"id" gorm:"primaryKey"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-"`
	UserId            string         `json:"user_id" gorm:"index:idx_posts_user_created,priority:1"`
	User              *User          `json:"user" gorm:"constraint:OnDelete:CASCADE;"`
	ViewPermission    Permission     `json:"view_permission" gorm:"default:'public'"`
	CommentPermission Permission     `json:"comment_permission" gorm:"default:'public'"`
	IsSensitive       bool           `json:"is_sensitive"`
	ContentType       ContentType    `json:"content_type" gorm:"index"`
	TextContent       string         `json:"text_content" gorm:"size:140"`
	QuotedPostId      *string        `json:"quoted_post_id"`
	QuotedPost        *Post          `json:"quoted_post" gorm:"constraint:OnDelete:SET NULL;"`
	QuotedReplyId     *string        `json:"quoted_reply_id"`
	QuotedReply       *Reply         `json:"quoted_reply" gorm:"constraint:OnDelete:SET NULL;"`
	IsPaid            bool           `json:"is_paid"`
	Price             *int           `json:"price"`
	Introduction      string         `json:"introduction"`
	ViewsCount        int64          `json:"views_count"`

	Media []*Media `json:"media" gorm:"constraint:OnDelete:CASCADE;"`
}

/*

Media is an attachment row of a post

FilePath: URL in the media store
FileType: mime type as uploaded
Order: 1-based position within the post

*/

type Media struct {
	Id        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	PostId    string    `json:"post_id" gorm:"index:idx_media_post_order,priority:1"`
	FilePath  string `json:"file_path"`
	FileType  string `json:"file_type"`
	Order     int    `json:"order" gorm:"column:display_order;index:idx_media_post_order,priority:2"`
}

func (Media) TableName() string {
	return "media"
}
