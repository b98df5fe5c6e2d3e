package handler

import (
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/sparklabs/spark-backend/feed"
	"github.com/sparklabs/spark-backend/model"
	"github.com/sparklabs/spark-backend/utils"
)

const maxMediaPerPost = 4

func validPermission(p model.Permission) bool {
	switch p {
	case model.PermissionPublic, model.PermissionFollowers, model.PermissionMutuals:
		return true
	}
	return false
}

func validContentType(t model.ContentType) bool {
	switch t {
	case model.ContentTypeText, model.ContentTypeVideo, model.ContentTypeShortVideo, model.ContentTypeQuote:
		return true
	}
	return false
}

// CreatePost creates a post with optional media attachments from a multipart
// form. Files are uploaded to the media store first; the post and its media
// rows are then inserted in one transaction. If the transaction fails the
// uploaded objects are deleted again, so a half created post never leaks
// storage.
func (h *Handler) CreatePost(c *gin.Context) {
	user := currentUser(c)

	post := &model.Post{
		Id:                uuid.New().String(),
		UserId:            user.Id,
		TextContent:       c.PostForm("text_content"),
		ContentType:       model.ContentType(c.DefaultPostForm("content_type", string(model.ContentTypeText))),
		ViewPermission:    model.Permission(c.DefaultPostForm("view_permission", string(model.PermissionPublic))),
		CommentPermission: model.Permission(c.DefaultPostForm("comment_permission", string(model.PermissionPublic))),
		IsSensitive:       c.PostForm("is_sensitive") == "true" || c.PostForm("is_sensitive") == "1",
		IsPaid:            c.PostForm("is_paid") == "true" || c.PostForm("is_paid") == "1",
		Introduction:      c.PostForm("introduction"),
	}
	if !validContentType(post.ContentType) {
		abortValidation(c, "unknown content type")
		return
	}
	if !validPermission(post.ViewPermission) || !validPermission(post.CommentPermission) {
		abortValidation(c, "unknown permission")
		return
	}
	// Quote posts may carry no commentary of their own.
	if len(post.TextContent) == 0 && c.PostForm("quoted_post_id") == "" {
		abortValidation(c, "text_content is required")
		return
	}
	if len([]rune(post.TextContent)) > 140 {
		abortValidation(c, "text_content must be at most 140 characters")
		return
	}
	if raw := c.PostForm("price"); raw != "" {
		price, err := strconv.Atoi(raw)
		if err != nil || price < 0 {
			abortValidation(c, "price must be a non-negative integer")
			return
		}
		post.Price = &price
	}
	if quoted := c.PostForm("quoted_post_id"); quoted != "" {
		var quotedPost model.Post
		if err := h.db.Where("id = ?", quoted).First(&quotedPost).Error; err != nil {
			abortValidation(c, "quoted post does not exist")
			return
		}
		post.QuotedPostId = &quotedPost.Id
		post.ContentType = model.ContentTypeQuote
	}

	var files []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil && form != nil {
		files = form.File["media[]"]
		if len(files) == 0 {
			files = form.File["media"]
		}
	}
	if len(files) > maxMediaPerPost {
		abortValidation(c, "too many media files")
		return
	}

	uploaded, mediaRows, err := h.storeMedia(post.Id, files)
	if err != nil {
		abortWithError(c, err)
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		for _, m := range mediaRows {
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for _, url := range uploaded {
			h.media.Delete(url)
		}
		abortWithError(c, errors.Wrap(err, "create post"))
		return
	}

	item, err := h.assembler.GetPost(post.Id, user)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (h *Handler) storeMedia(postId string, files []*multipart.FileHeader) (urls []string, rows []*model.Media, err error) {
	for i, header := range files {
		f, err := header.Open()
		if err != nil {
			return urls, nil, errors.Wrap(err, "open upload")
		}
		url, err := h.media.Store(f, filepath.Ext(header.Filename))
		f.Close()
		if err != nil {
			for _, u := range urls {
				h.media.Delete(u)
			}
			return nil, nil, errors.Wrap(err, "store media")
		}
		urls = append(urls, url)
		rows = append(rows, &model.Media{
			Id:       uuid.New().String(),
			PostId:   postId,
			FilePath: url,
			FileType: header.Header.Get("Content-Type"),
			Order:    i + 1,
		})
	}
	return urls, rows, nil
}

// UpdatePost lets the author change permissions, sensitivity and the body.
// Media and quote references are immutable after creation.
func (h *Handler) UpdatePost(c *gin.Context) {
	user := currentUser(c)

	var post model.Post
	if err := h.db.Where("id = ?", c.Param("post")).First(&post).Error; err != nil {
		abortWithError(c, feed.ErrNotFound)
		return
	}
	if post.UserId != user.Id {
		abortWithError(c, feed.ErrForbidden)
		return
	}

	var req struct {
		TextContent       *string           `json:"text_content"`
		ViewPermission    *model.Permission `json:"view_permission"`
		CommentPermission *model.Permission `json:"comment_permission"`
		IsSensitive       *bool             `json:"is_sensitive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "malformed body")
		return
	}

	updates := map[string]interface{}{}
	if req.TextContent != nil {
		if len(*req.TextContent) == 0 || len([]rune(*req.TextContent)) > 140 {
			abortValidation(c, "text_content must be 1-140 characters")
			return
		}
		updates["text_content"] = *req.TextContent
	}
	if req.ViewPermission != nil {
		if !validPermission(*req.ViewPermission) {
			abortValidation(c, "unknown permission")
			return
		}
		updates["view_permission"] = *req.ViewPermission
	}
	if req.CommentPermission != nil {
		if !validPermission(*req.CommentPermission) {
			abortValidation(c, "unknown permission")
			return
		}
		updates["comment_permission"] = *req.CommentPermission
	}
	if req.IsSensitive != nil {
		updates["is_sensitive"] = *req.IsSensitive
	}

	if len(updates) > 0 {
		if err := h.db.Model(&post).Updates(updates).Error; err != nil {
			abortWithError(c, err)
			return
		}
	}

	item, err := h.assembler.GetPost(post.Id, user)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

// DeletePost soft deletes the post and its dependents in one transaction.
// Media objects are removed from storage only after the commit; a failed
// delete must not orphan rows that still reference the files.
func (h *Handler) DeletePost(c *gin.Context) {
	user := currentUser(c)

	var post model.Post
	if err := h.db.Preload("Media").Where("id = ?", c.Param("post")).First(&post).Error; err != nil {
		abortWithError(c, feed.ErrNotFound)
		return
	}
	if post.UserId != user.Id {
		abortWithError(c, feed.ErrForbidden)
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.Id).Delete(&model.PostAction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.Id).Delete(&model.Media{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		abortWithError(c, errors.Wrap(err, "delete post"))
		return
	}

	for _, m := range post.Media {
		h.media.Delete(m.FilePath)
	}
	c.JSON(http.StatusOK, gin.H{"code": utils.ErrorOk, "msg": "deleted"})
}

// RecordPostView stores one view per (user, post) and bumps the denormalized
// counter on the first one. Repeats are acknowledged without effect.
func (h *Handler) RecordPostView(c *gin.Context) {
	user := currentUser(c)
	postId := c.Param("post")

	var post model.Post
	if err := h.db.Where("id = ?", postId).First(&post).Error; err != nil {
		abortWithError(c, feed.ErrNotFound)
		return
	}

	var counted bool
	err := h.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Create(&model.PostView{UserId: user.Id, PostId: postId, ViewedAt: time.Now()}).Error
		if isUniqueViolation(err) {
			// Already seen, possibly recorded by a concurrent request.
			return nil
		}
		if err != nil {
			return err
		}
		counted = true
		return tx.Model(&model.Post{}).Where("id = ?", postId).
			UpdateColumn("views_count", gorm.Expr("views_count + 1")).Error
	})
	if err != nil {
		abortWithError(c, errors.Wrap(err, "record view"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": utils.ErrorOk, "counted": counted})
}
