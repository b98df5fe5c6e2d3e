package model

import "time"

// ActionKind is the tagged variant for engagement actions sharing one table.
// Posts accept all three kinds, replies only like and spark.
type ActionKind string

const (
	ActionLike     ActionKind = "like"
	ActionSpark    ActionKind = "spark"
	ActionBookmark ActionKind = "bookmark"
)

/*

PostAction is one engagement row of (user, post, kind)

The (UserId, PostId, ActionType) triple is unique; creating a duplicate is
treated as idempotent success by the write path, never an error. CreatedAt of
a spark row is the activity time of the derived repost entry in feeds.

*/

type PostAction struct {
	Id         int64      `gorm:"primaryKey;autoIncrement"`
	UserId     string     `json:"user_id" gorm:"uniqueIndex:uniq_post_action,priority:1"`
	User       *User      `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	PostId     string     `json:"post_id" gorm:"uniqueIndex:uniq_post_action,priority:2;index:idx_post_action_kind,priority:1"`
	ActionType ActionKind `json:"action_type" gorm:"uniqueIndex:uniq_post_action,priority:3;index:idx_post_action_kind,priority:2"`
	CreatedAt  time.Time  `json:"created_at" gorm:"index"`
}

/*

ReplyAction is one engagement row of (user, reply, kind), like / spark only

Same uniqueness and idempotency rules as PostAction.

*/

type ReplyAction struct {
	Id         int64      `gorm:"primaryKey;autoIncrement"`
	UserId     string     `json:"user_id" gorm:"uniqueIndex:uniq_reply_action,priority:1"`
	User       *User      `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	ReplyId    string     `json:"reply_id" gorm:"uniqueIndex:uniq_reply_action,priority:2"`
	ActionType ActionKind `json:"action_type" gorm:"uniqueIndex:uniq_reply_action,priority:3"`
	CreatedAt  time.Time  `json:"created_at"`
}

/*

PostView records that a user has seen a post, once per (user, post)

The first row also increments the post's denormalized ViewsCount.

*/

type PostView struct {
	Id       int64     `gorm:"primaryKey;autoIncrement"`
	UserId   string    `json:"user_id" gorm:"uniqueIndex:uniq_post_view,priority:1"`
	PostId   string    `json:"post_id" gorm:"uniqueIndex:uniq_post_view,priority:2"`
	ViewedAt time.Time `json:"viewed_at"`
}
