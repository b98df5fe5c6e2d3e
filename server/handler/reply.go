package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/sparklabs/spark-backend/feed"
	"github.com/sparklabs/spark-backend/model"
	"github.com/sparklabs/spark-backend/utils"
)

// ListReplies returns the reply tree of a post. The viewer must be able to
// see the post itself; reply visibility follows the post.
func (h *Handler) ListReplies(c *gin.Context) {
	viewer := currentUser(c)

	var post model.Post
	if err := h.db.Where("id = ?", c.Param("post")).First(&post).Error; err != nil {
		abortWithError(c, feed.ErrNotFound)
		return
	}
	ok, err := feed.CanView(&post, viewer, h.graph)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !ok {
		abortWithError(c, feed.ErrForbidden)
		return
	}

	var replies []*model.Reply
	err = h.db.Preload("User").
		Where("post_id = ?", post.Id).
		Order("created_at ASC").
		Find(&replies).Error
	if err != nil {
		abortWithError(c, errors.Wrap(err, "load replies"))
		return
	}

	viewerId := ""
	if viewer != nil {
		viewerId = viewer.Id
	}
	replyIds := lo.Map(replies, func(r *model.Reply, _ int) string { return r.Id })
	actions, err := feed.LoadReplyActions(h.db, viewerId, replyIds)
	if err != nil {
		abortWithError(c, err)
		return
	}

	tree := feed.BuildReplyTree(replies)
	annotated := lo.Map(replyIds, func(id string, _ int) gin.H {
		set := actions[id]
		return gin.H{
			"reply_id":   id,
			"is_liked":   set.Has(model.ActionLike),
			"is_sparked": set.Has(model.ActionSpark),
		}
	})

	c.JSON(http.StatusOK, gin.H{"data": tree, "viewer_actions": annotated})
}

func (h *Handler) createReply(c *gin.Context, post *model.Post, parentId *string) {
	user := currentUser(c)

	ok, err := feed.CanComment(post, user, h.graph)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !ok {
		abortWithError(c, feed.ErrForbidden)
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "content is required")
		return
	}
	if len([]rune(req.Content)) > 1000 {
		abortValidation(c, "content must be at most 1000 characters")
		return
	}

	reply := &model.Reply{
		Id:       uuid.New().String(),
		UserId:   user.Id,
		PostId:   post.Id,
		ParentId: parentId,
		Content:  req.Content,
	}
	if err := h.db.Create(reply).Error; err != nil {
		abortWithError(c, errors.Wrap(err, "create reply"))
		return
	}
	reply.User = user
	c.JSON(http.StatusCreated, gin.H{"data": reply})
}

// CreateReply adds a root level reply to a post, gated by the post's comment
// permission.
func (h *Handler) CreateReply(c *gin.Context) {
	var post model.Post
	if err := h.db.Where("id = ?", c.Param("post")).First(&post).Error; err != nil {
		abortWithError(c, feed.ErrNotFound)
		return
	}
	h.createReply(c, &post, nil)
}

// CreateNestedReply adds a reply under another reply. The root post of the
// thread gates commenting, same as a top level reply.
func (h *Handler) CreateNestedReply(c *gin.Context) {
	var parent model.Reply
	if err := h.db.Where("id = ?", c.Param("reply")).First(&parent).Error; err != nil {
		abortWithError(c, feed.ErrNotFound)
		return
	}
	var post model.Post
	if err := h.db.Where("id = ?", parent.PostId).First(&post).Error; err != nil {
		abortWithError(c, feed.ErrNotFound)
		return
	}
	h.createReply(c, &post, &parent.Id)
}

// UpdateReply lets the author edit the reply body.
func (h *Handler) UpdateReply(c *gin.Context) {
	user := currentUser(c)

	var reply model.Reply
	if err := h.db.Where("id = ?", c.Param("reply")).First(&reply).Error; err != nil {
		abortWithError(c, feed.ErrNotFound)
		return
	}
	if reply.UserId != user.Id {
		abortWithError(c, feed.ErrForbidden)
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "content is required")
		return
	}
	if len([]rune(req.Content)) > 1000 {
		abortValidation(c, "content must be at most 1000 characters")
		return
	}

	if err := h.db.Model(&reply).Update("content", req.Content).Error; err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": reply})
}

// DeleteReply soft deletes the author's reply. Children stay and are
// promoted to the root level by the tree fold.
func (h *Handler) DeleteReply(c *gin.Context) {
	user := currentUser(c)

	var reply model.Reply
	if err := h.db.Where("id = ?", c.Param("reply")).First(&reply).Error; err != nil {
		abortWithError(c, feed.ErrNotFound)
		return
	}
	if reply.UserId != user.Id {
		abortWithError(c, feed.ErrForbidden)
		return
	}

	if err := h.db.Delete(&reply).Error; err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": utils.ErrorOk, "msg": "deleted"})
}

// QuoteReply publishes a quote post that carries both the quoted reply and
// its root post, with the caller's own commentary.
func (h *Handler) QuoteReply(c *gin.Context) {
	user := currentUser(c)

	var reply model.Reply
	if err := h.db.Where("id = ?", c.Param("reply")).First(&reply).Error; err != nil {
		abortWithError(c, feed.ErrNotFound)
		return
	}

	var req struct {
		TextContent string `json:"text_content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "malformed body")
		return
	}
	if len([]rune(req.TextContent)) > 140 {
		abortValidation(c, "text_content must be at most 140 characters")
		return
	}

	post := &model.Post{
		Id:                uuid.New().String(),
		UserId:            user.Id,
		ContentType:       model.ContentTypeQuote,
		ViewPermission:    model.PermissionPublic,
		CommentPermission: model.PermissionPublic,
		TextContent:       req.TextContent,
		QuotedPostId:      &reply.PostId,
		QuotedReplyId:     &reply.Id,
	}
	if err := h.db.Create(post).Error; err != nil {
		abortWithError(c, errors.Wrap(err, "create quote post"))
		return
	}

	item, err := h.assembler.GetPost(post.Id, user)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": item})
}
