package feed

import (
	"time"

	"gorm.io/gorm"

	"github.com/sparklabs/spark-backend/model"
)

// FollowGraph is the read surface of the social graph the feed core needs.
type FollowGraph interface {
	IsFollowing(followerId, followingId string) (bool, error)
	FollowedIds(userId string) ([]string, error)
}

type gormFollowGraph struct {
	db *gorm.DB
}

// NewFollowGraph returns a FollowGraph backed by the follows table.
func NewFollowGraph(db *gorm.DB) FollowGraph {
	return &gormFollowGraph{db: db}
}

func (g *gormFollowGraph) IsFollowing(followerId, followingId string) (bool, error) {
	var count int64
	err := g.db.Model(&model.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerId, followingId).
		Count(&count).Error
	return count > 0, err
}

func (g *gormFollowGraph) FollowedIds(userId string) ([]string, error) {
	var ids []string
	err := g.db.Model(&model.Follow{}).
		Where("follower_id = ?", userId).
		Pluck("following_id", &ids).Error
	return ids, err
}

// SensitiveBlocked reports whether the sensitivity gate hides the post from
// the viewer. This gate is evaluated before the permission gate.
func SensitiveBlocked(post *model.Post, viewer *model.User, now time.Time) bool {
	if !post.IsSensitive {
		return false
	}
	return !viewer.IsAdult(now)
}

// CanView evaluates the view permission of a post against a viewer.
func CanView(post *model.Post, viewer *model.User, graph FollowGraph) (bool, error) {
	return evaluatePermission(post.ViewPermission, post.UserId, viewer, graph)
}

// CanComment is the same gate over the comment permission.
func CanComment(post *model.Post, viewer *model.User, graph FollowGraph) (bool, error) {
	return evaluatePermission(post.CommentPermission, post.UserId, viewer, graph)
}

// Unknown permission values fail closed.
func evaluatePermission(perm model.Permission, authorId string, viewer *model.User, graph FollowGraph) (bool, error) {
	switch perm {
	case model.PermissionPublic:
		return true, nil
	case model.PermissionFollowers:
		if viewer == nil {
			return false, nil
		}
		if viewer.Id == authorId {
			return true, nil
		}
		return graph.IsFollowing(viewer.Id, authorId)
	case model.PermissionMutuals:
		if viewer == nil {
			return false, nil
		}
		if viewer.Id == authorId {
			return true, nil
		}
		follows, err := graph.IsFollowing(viewer.Id, authorId)
		if err != nil || !follows {
			return false, err
		}
		return graph.IsFollowing(authorId, viewer.Id)
	default:
		return false, nil
	}
}
