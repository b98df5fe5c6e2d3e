package model

import (
	"time"

	"gorm.io/gorm"
)

/*

Reply is a data model for a threaded comment under a post

Id: primary key, uuid string
UserId: author
PostId: root post; every reply in a tree shares the same root post
ParentId: parent reply, nil for root level replies
Content: body, max 1000 chars

The tree is kept flat in storage. Reconstruction for rendering is a pure fold
over the flat list, see feed.BuildReplyTree.

*/

type Reply struct {
	Id        string         `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"`
	UserId    string         `json:"user_id"`
	User      *User          `json:"user" gorm:"constraint:OnDelete:CASCADE;"`
	PostId    string         `json:"post_id" gorm:"index:idx_replies_post_created,priority:1"`
	Post      *Post          `json:"post,omitempty" gorm:"constraint:OnDelete:CASCADE;"`
	ParentId  *string        `json:"parent_id" gorm:"index"`
	Content   string         `json:"content" gorm:"size:1000"`
}
