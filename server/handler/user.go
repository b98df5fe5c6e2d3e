package handler

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/sparklabs/spark-backend/auth"
	"github.com/sparklabs/spark-backend/feed"
	"github.com/sparklabs/spark-backend/model"
	"github.com/sparklabs/spark-backend/utils"
)

func (h *Handler) findUser(c *gin.Context) (*model.User, bool) {
	var user model.User
	if err := h.db.Where("id = ?", c.Param("user")).First(&user).Error; err != nil {
		abortWithError(c, feed.ErrNotFound)
		return nil, false
	}
	return &user, true
}

func publicUserView(u *model.User, includeBirthday bool) gin.H {
	view := gin.H{
		"id":            u.Id,
		"name":          u.Name,
		"username":      u.Username,
		"bio":           u.Bio,
		"profile_image": u.ProfileImage,
		"created_at":    u.CreatedAt,
	}
	if includeBirthday && u.BirthdayVisibility {
		view["birthday"] = u.Birthday
	}
	return view
}

// Me returns the authenticated user's own record.
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": currentUser(c)})
}

// GetUser returns a user's public profile. The birthday is only included
// when the user chose to show it.
func (h *Handler) GetUser(c *gin.Context) {
	user, ok := h.findUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": publicUserView(user, true)})
}

// GetUserProfile returns the profile plus the relationship to the viewer
// and follower/following counts.
func (h *Handler) GetUserProfile(c *gin.Context) {
	viewer := currentUser(c)
	user, ok := h.findUser(c)
	if !ok {
		return
	}

	var followerCount, followingCount int64
	if err := h.db.Model(&model.Follow{}).Where("following_id = ?", user.Id).Count(&followerCount).Error; err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.db.Model(&model.Follow{}).Where("follower_id = ?", user.Id).Count(&followingCount).Error; err != nil {
		abortWithError(c, err)
		return
	}

	isFollowing, err := h.graph.IsFollowing(viewer.Id, user.Id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	view := publicUserView(user, true)
	view["follower_count"] = followerCount
	view["following_count"] = followingCount
	view["is_following"] = isFollowing
	c.JSON(http.StatusOK, gin.H{"data": view})
}

// GetUserStats aggregates the viewer's own content statistics.
func (h *Handler) GetUserStats(c *gin.Context) {
	user := currentUser(c)

	var postCount int64
	if err := h.db.Model(&model.Post{}).Where("user_id = ?", user.Id).Count(&postCount).Error; err != nil {
		abortWithError(c, err)
		return
	}

	var totalViews int64
	err := h.db.Model(&model.Post{}).
		Where("user_id = ?", user.Id).
		Select("COALESCE(SUM(views_count), 0)").
		Scan(&totalViews).Error
	if err != nil {
		abortWithError(c, err)
		return
	}

	var followerCount int64
	if err := h.db.Model(&model.Follow{}).Where("following_id = ?", user.Id).Count(&followerCount).Error; err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"post_count":     postCount,
		"total_views":    totalViews,
		"follower_count": followerCount,
	})
}

// FollowUser creates the directed edge viewer -> user. Following yourself is
// rejected, following twice is a no-op success.
func (h *Handler) FollowUser(c *gin.Context) {
	viewer := currentUser(c)
	user, ok := h.findUser(c)
	if !ok {
		return
	}
	if user.Id == viewer.Id {
		abortValidation(c, "cannot follow yourself")
		return
	}

	edge := model.Follow{FollowerId: viewer.Id, FollowingId: user.Id, CreatedAt: time.Now()}
	if err := h.db.Create(&edge).Error; err != nil && !isUniqueViolation(err) {
		abortWithError(c, errors.Wrap(err, "create follow"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": utils.ErrorOk, "is_following": true})
}

// UnfollowUser removes the edge; removing a missing edge succeeds.
func (h *Handler) UnfollowUser(c *gin.Context) {
	viewer := currentUser(c)
	user, ok := h.findUser(c)
	if !ok {
		return
	}

	err := h.db.
		Where("follower_id = ? AND following_id = ?", viewer.Id, user.Id).
		Delete(&model.Follow{}).Error
	if err != nil {
		abortWithError(c, errors.Wrap(err, "delete follow"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": utils.ErrorOk, "is_following": false})
}

func (h *Handler) respondPostList(c *gin.Context, viewer *model.User, posts []*model.Post) {
	visible := make([]*model.FeedItem, 0, len(posts))
	for _, post := range posts {
		if feed.SensitiveBlocked(post, viewer, time.Now()) {
			continue
		}
		ok, err := feed.CanView(post, viewer, h.graph)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !ok {
			continue
		}
		item, err := h.assembler.GetPost(post.Id, viewer)
		if err != nil {
			continue
		}
		visible = append(visible, item)
	}
	c.JSON(http.StatusOK, gin.H{"data": visible})
}

// GetUserPosts lists a user's own posts newest first, filtered by what the
// viewer may see.
func (h *Handler) GetUserPosts(c *gin.Context) {
	viewer := currentUser(c)
	user, ok := h.findUser(c)
	if !ok {
		return
	}

	var posts []*model.Post
	err := h.db.
		Where("user_id = ?", user.Id).
		Order("created_at DESC").
		Limit(feed.DefaultPageSize).
		Find(&posts).Error
	if err != nil {
		abortWithError(c, errors.Wrap(err, "load user posts"))
		return
	}
	h.respondPostList(c, viewer, posts)
}

// GetLikedPosts lists the posts a user liked, newest like first.
func (h *Handler) GetLikedPosts(c *gin.Context) {
	viewer := currentUser(c)
	user, ok := h.findUser(c)
	if !ok {
		return
	}

	var actions []*model.PostAction
	err := h.db.
		Where("user_id = ? AND action_type = ?", user.Id, model.ActionLike).
		Order("created_at DESC").
		Limit(feed.DefaultPageSize).
		Find(&actions).Error
	if err != nil {
		abortWithError(c, errors.Wrap(err, "load likes"))
		return
	}

	postIds := lo.Map(actions, func(a *model.PostAction, _ int) string { return a.PostId })
	var posts []*model.Post
	if len(postIds) > 0 {
		if err := h.db.Where("id IN ?", postIds).Find(&posts).Error; err != nil {
			abortWithError(c, err)
			return
		}
	}
	byId := lo.KeyBy(posts, func(p *model.Post) string { return p.Id })
	ordered := lo.FilterMap(postIds, func(id string, _ int) (*model.Post, bool) {
		p, ok := byId[id]
		return p, ok
	})
	h.respondPostList(c, viewer, ordered)
}

// UpdateProfile changes the authenticated user's editable profile fields.
func (h *Handler) UpdateProfile(c *gin.Context) {
	user := currentUser(c)

	var req struct {
		Name               *string    `json:"name"`
		Bio                *string    `json:"bio"`
		Birthday           *time.Time `json:"birthday"`
		BirthdayVisibility *bool      `json:"birthday_visibility"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "malformed body")
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if *req.Name == "" {
			abortValidation(c, "name must not be empty")
			return
		}
		updates["name"] = *req.Name
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if req.Birthday != nil {
		updates["birthday"] = *req.Birthday
	}
	if req.BirthdayVisibility != nil {
		updates["birthday_visibility"] = *req.BirthdayVisibility
	}

	if len(updates) > 0 {
		if err := h.db.Model(user).Updates(updates).Error; err != nil {
			abortWithError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

// ChangePassword verifies the current password before setting a new one.
func (h *Handler) ChangePassword(c *gin.Context) {
	user := currentUser(c)

	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "current_password and new_password are required")
		return
	}
	if len(req.NewPassword) < 8 {
		abortValidation(c, "new password must be at least 8 characters")
		return
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"code": utils.ErrorForbidden, "msg": "wrong password"})
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.db.Model(user).Update("password_hash", hash).Error; err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": utils.ErrorOk, "msg": "password changed"})
}

// UploadProfileImage stores the uploaded avatar and replaces the previous
// one, deleting the old object after the new URL is saved.
func (h *Handler) UploadProfileImage(c *gin.Context) {
	user := currentUser(c)

	header, err := c.FormFile("image")
	if err != nil {
		abortValidation(c, "image file is required")
		return
	}
	f, err := header.Open()
	if err != nil {
		abortWithError(c, errors.Wrap(err, "open upload"))
		return
	}
	defer f.Close()

	url, err := h.media.Store(f, filepath.Ext(header.Filename))
	if err != nil {
		abortWithError(c, errors.Wrap(err, "store profile image"))
		return
	}

	previous := user.ProfileImage
	if err := h.db.Model(user).Update("profile_image", url).Error; err != nil {
		h.media.Delete(url)
		abortWithError(c, err)
		return
	}
	if previous != "" {
		h.media.Delete(previous)
	}
	c.JSON(http.StatusOK, gin.H{"profile_image": url})
}

// DeleteProfileImage clears the avatar and removes the stored object.
func (h *Handler) DeleteProfileImage(c *gin.Context) {
	user := currentUser(c)

	previous := user.ProfileImage
	if err := h.db.Model(user).Update("profile_image", "").Error; err != nil {
		abortWithError(c, err)
		return
	}
	if previous != "" {
		h.media.Delete(previous)
	}
	c.JSON(http.StatusOK, gin.H{"code": utils.ErrorOk, "msg": "deleted"})
}
