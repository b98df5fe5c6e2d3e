package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/sparklabs/spark-backend/feed"
	"github.com/sparklabs/spark-backend/model"
)

// actionFlags maps each kind to its response flag. "like" conjugates
// irregularly, so the names cannot be derived from the kind string.
var actionFlags = map[model.ActionKind]string{
	model.ActionLike:     "is_liked",
	model.ActionSpark:    "is_sparked",
	model.ActionBookmark: "is_bookmarked",
}

func (h *Handler) actionState(userId, postId string, kind model.ActionKind) (gin.H, error) {
	var count int64
	err := h.db.Model(&model.PostAction{}).
		Where("post_id = ? AND action_type = ?", postId, kind).
		Count(&count).Error
	if err != nil {
		return nil, err
	}

	var mine int64
	err = h.db.Model(&model.PostAction{}).
		Where("user_id = ? AND post_id = ? AND action_type = ?", userId, postId, kind).
		Count(&mine).Error
	if err != nil {
		return nil, err
	}

	return gin.H{
		actionFlags[kind]: mine > 0,
		"count":           count,
	}, nil
}

// AddPostAction records an engagement action. Duplicates return the current
// state with 200 instead of an error, the operation is idempotent.
func (h *Handler) AddPostAction(kind model.ActionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		postId := c.Param("post")

		var post model.Post
		if err := h.db.Where("id = ?", postId).First(&post).Error; err != nil {
			abortWithError(c, feed.ErrNotFound)
			return
		}
		ok, err := feed.CanView(&post, user, h.graph)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !ok {
			abortWithError(c, feed.ErrForbidden)
			return
		}

		action := model.PostAction{
			UserId:     user.Id,
			PostId:     postId,
			ActionType: kind,
			CreatedAt:  time.Now(),
		}
		err = h.db.Create(&action).Error
		if err != nil && !isUniqueViolation(err) {
			abortWithError(c, errors.Wrap(err, "create action"))
			return
		}

		state, err := h.actionState(user.Id, postId, kind)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

// RemovePostAction deletes the action row if present. Removing an action
// that was never recorded is a no-op success.
func (h *Handler) RemovePostAction(kind model.ActionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		postId := c.Param("post")

		err := h.db.
			Where("user_id = ? AND post_id = ? AND action_type = ?", user.Id, postId, kind).
			Delete(&model.PostAction{}).Error
		if err != nil {
			abortWithError(c, errors.Wrap(err, "remove action"))
			return
		}

		state, err := h.actionState(user.Id, postId, kind)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

// AddReplyAction likes or sparks a reply. Sparking a reply also publishes a
// derived quote post carrying the reply, in the same transaction, so the
// spark either fully happens or not at all.
func (h *Handler) AddReplyAction(kind model.ActionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		replyId := c.Param("reply")

		var reply model.Reply
		if err := h.db.Where("id = ?", replyId).First(&reply).Error; err != nil {
			abortWithError(c, feed.ErrNotFound)
			return
		}

		err := h.db.Transaction(func(tx *gorm.DB) error {
			action := model.ReplyAction{
				UserId:     user.Id,
				ReplyId:    replyId,
				ActionType: kind,
				CreatedAt:  time.Now(),
			}
			if err := tx.Create(&action).Error; err != nil {
				if isUniqueViolation(err) {
					// Already recorded, nothing further to derive.
					return nil
				}
				return err
			}

			if kind != model.ActionSpark {
				return nil
			}
			derived := &model.Post{
				Id:                uuid.New().String(),
				UserId:            user.Id,
				ContentType:       model.ContentTypeQuote,
				ViewPermission:    model.PermissionPublic,
				CommentPermission: model.PermissionPublic,
				QuotedPostId:      &reply.PostId,
				QuotedReplyId:     &reply.Id,
			}
			return tx.Create(derived).Error
		})
		if err != nil {
			abortWithError(c, errors.Wrap(err, "reply action"))
			return
		}

		var count int64
		if err := h.db.Model(&model.ReplyAction{}).
			Where("reply_id = ? AND action_type = ?", replyId, kind).
			Count(&count).Error; err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			actionFlags[kind]: true,
			"count":           count,
		})
	}
}

// RemoveReplyAction removes a like or spark from a reply. The derived quote
// post of a spark stays published, matching how unsparking never unpublishes
// content elsewhere.
func (h *Handler) RemoveReplyAction(kind model.ActionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		replyId := c.Param("reply")

		err := h.db.
			Where("user_id = ? AND reply_id = ? AND action_type = ?", user.Id, replyId, kind).
			Delete(&model.ReplyAction{}).Error
		if err != nil {
			abortWithError(c, errors.Wrap(err, "remove reply action"))
			return
		}

		var count int64
		if err := h.db.Model(&model.ReplyAction{}).
			Where("reply_id = ? AND action_type = ?", replyId, kind).
			Count(&count).Error; err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			actionFlags[kind]: false,
			"count":           count,
		})
	}
}

// isUniqueViolation matches duplicate-key failures across postgres and the
// sqlite driver used in tests. gorm has ErrDuplicatedKey with the dialector
// translators enabled, but string matching keeps this independent of that
// setting.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
