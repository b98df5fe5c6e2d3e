package feed

import (
	"gorm.io/gorm"

	"github.com/sparklabs/spark-backend/model"
)

// ActionSet holds the engagement kinds one viewer has on one target.
type ActionSet map[model.ActionKind]bool

func (s ActionSet) Has(kind model.ActionKind) bool {
	return s[kind]
}

// LoadPostActions fetches the viewer's like/spark/bookmark flags for a batch
// of posts in one query. Targets without any recorded action are simply
// absent from the result. The index is rebuilt from scratch on every request
// since actions can change between pages.
func LoadPostActions(db *gorm.DB, userId string, postIds []string) (map[string]ActionSet, error) {
	out := map[string]ActionSet{}
	if userId == "" || len(postIds) == 0 {
		return out, nil
	}
	var rows []model.PostAction
	if err := db.Where("user_id = ? AND post_id IN ?", userId, postIds).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		set := out[row.PostId]
		if set == nil {
			set = ActionSet{}
			out[row.PostId] = set
		}
		set[row.ActionType] = true
	}
	return out, nil
}

// LoadReplyActions is LoadPostActions for reply targets (like/spark only).
func LoadReplyActions(db *gorm.DB, userId string, replyIds []string) (map[string]ActionSet, error) {
	out := map[string]ActionSet{}
	if userId == "" || len(replyIds) == 0 {
		return out, nil
	}
	var rows []model.ReplyAction
	if err := db.Where("user_id = ? AND reply_id IN ?", userId, replyIds).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		set := out[row.ReplyId]
		if set == nil {
			set = ActionSet{}
			out[row.ReplyId] = set
		}
		set[row.ActionType] = true
	}
	return out, nil
}
