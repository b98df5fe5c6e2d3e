package feed

import (
	"time"

	"gorm.io/gorm"

	"github.com/sparklabs/spark-backend/model"
)

/*

Activity is one derived, non-persisted feed event over the shape
(post, attributed user, activity time):

  - a post creation: SparkUserId empty, ActivityAt = post creation time
  - a spark: SparkUserId = the sparking user, ActivityAt = spark time

A post sparked by several users yields one activity per sparking user plus
its own creation activity; the union never conflates them.

*/

type Activity struct {
	PostId      string
	SparkUserId string
	ActivityAt  time.Time
}

// Before reports whether a orders strictly before b in the feed: newest
// first, ties broken by post id then spark attribution so that ordering is
// stable across pages even with equal timestamps.
func (a Activity) Before(b Activity) bool {
	if !a.ActivityAt.Equal(b.ActivityAt) {
		return a.ActivityAt.After(b.ActivityAt)
	}
	if a.PostId != b.PostId {
		return a.PostId > b.PostId
	}
	return a.SparkUserId > b.SparkUserId
}

// MergeActivities merges two streams that are each already ordered by
// Activity.Before into one ordered stream, keeping at most limit entries.
// An explicit merge keeps the union portable across databases and testable
// without one.
func MergeActivities(posts, sparks []Activity, limit int) []Activity {
	merged := make([]Activity, 0, min(limit, len(posts)+len(sparks)))
	i, j := 0, 0
	for len(merged) < limit && (i < len(posts) || j < len(sparks)) {
		switch {
		case i >= len(posts):
			merged = append(merged, sparks[j])
			j++
		case j >= len(sparks):
			merged = append(merged, posts[i])
			i++
		case posts[i].Before(sparks[j]):
			merged = append(merged, posts[i])
			i++
		default:
			merged = append(merged, sparks[j])
			j++
		}
	}
	return merged
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

/*

streamQuery bounds one activity stream request.

Audience nil means the public at large; otherwise it is an explicit author
set (typically followed users plus self). ContentType plus Exclude selects a
content-type restriction. Visible toggles per-viewer permission filtering of
the underlying posts; HideSensitive additionally drops sensitive posts for
non-adult or anonymous viewers.

*/

type streamQuery struct {
	Audience      []string
	ContentType   model.ContentType
	Exclude       bool
	Viewer        *model.User
	Visible       bool
	HideSensitive bool
	PaidOnly      bool
	IncludeSparks bool
	Cursor        *Cursor
	Limit         int
}

// applyPostFilters narrows a query over posts rows (aliased "posts") to the
// audience, content type and visibility of the stream.
func applyPostFilters(tx *gorm.DB, q streamQuery) *gorm.DB {
	if q.Audience != nil {
		tx = tx.Where("posts.user_id IN ?", q.Audience)
	}
	if q.ContentType != "" {
		if q.Exclude {
			tx = tx.Where("posts.content_type <> ?", q.ContentType)
		} else {
			tx = tx.Where("posts.content_type = ?", q.ContentType)
		}
	}
	if q.HideSensitive {
		tx = tx.Where("posts.is_sensitive = ?", false)
	}
	if q.PaidOnly {
		tx = tx.Where("posts.is_paid = ?", true)
	}
	if q.Visible {
		if q.Viewer == nil {
			tx = tx.Where("posts.view_permission = ?", model.PermissionPublic)
		} else {
			tx = tx.Where(`(
				posts.view_permission = 'public'
				OR posts.user_id = @viewer
				OR (posts.view_permission = 'followers' AND EXISTS (
					SELECT 1 FROM follows WHERE follows.follower_id = @viewer AND follows.following_id = posts.user_id))
				OR (posts.view_permission = 'mutuals'
					AND EXISTS (SELECT 1 FROM follows WHERE follows.follower_id = @viewer AND follows.following_id = posts.user_id)
					AND EXISTS (SELECT 1 FROM follows WHERE follows.follower_id = posts.user_id AND follows.following_id = @viewer))
			)`, map[string]interface{}{"viewer": q.Viewer.Id})
		}
	}
	return tx
}

// queryPostActivities returns up to q.Limit creation activities strictly
// after the cursor, ordered newest first.
func queryPostActivities(db *gorm.DB, q streamQuery) ([]Activity, error) {
	tx := applyPostFilters(db.Model(&model.Post{}), q)
	if c := q.Cursor; c != nil {
		// Keyset position for creation rows, whose spark key is the empty
		// string.
		tx = tx.Where(
			"posts.created_at < @t OR (posts.created_at = @t AND (posts.id < @p OR (posts.id = @p AND '' < @s)))",
			map[string]interface{}{"t": c.ActivityAt, "p": c.PostId, "s": c.SparkUserId},
		)
	}
	var rows []struct {
		Id        string
		CreatedAt time.Time
	}
	err := tx.Select("posts.id, posts.created_at").
		Order("posts.created_at DESC").Order("posts.id DESC").
		Limit(q.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	activities := make([]Activity, 0, len(rows))
	for _, row := range rows {
		activities = append(activities, Activity{PostId: row.Id, ActivityAt: row.CreatedAt})
	}
	return activities, nil
}

// querySparkActivities returns up to q.Limit spark activities strictly after
// the cursor, ordered newest first. The audience bounds the sparking users,
// while post-level filters still apply to the sparked post itself.
func querySparkActivities(db *gorm.DB, q streamQuery) ([]Activity, error) {
	tx := db.Model(&model.PostAction{}).
		Joins("JOIN posts ON posts.id = post_actions.post_id AND posts.deleted_at IS NULL").
		Where("post_actions.action_type = ?", model.ActionSpark)
	if q.Audience != nil {
		tx = tx.Where("post_actions.user_id IN ?", q.Audience)
	}
	// Reuse the post-level content/visibility filters without the audience,
	// which bounds sparking users here instead of authors.
	postFilters := q
	postFilters.Audience = nil
	tx = applyPostFilters(tx, postFilters)
	if c := q.Cursor; c != nil {
		tx = tx.Where(
			"post_actions.created_at < @t OR (post_actions.created_at = @t AND (post_actions.post_id < @p OR (post_actions.post_id = @p AND post_actions.user_id < @s)))",
			map[string]interface{}{"t": c.ActivityAt, "p": c.PostId, "s": c.SparkUserId},
		)
	}
	var rows []struct {
		PostId    string
		UserId    string
		CreatedAt time.Time
	}
	err := tx.Select("post_actions.post_id, post_actions.user_id, post_actions.created_at").
		Order("post_actions.created_at DESC").Order("post_actions.post_id DESC").Order("post_actions.user_id DESC").
		Limit(q.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	activities := make([]Activity, 0, len(rows))
	for _, row := range rows {
		activities = append(activities, Activity{PostId: row.PostId, SparkUserId: row.UserId, ActivityAt: row.CreatedAt})
	}
	return activities, nil
}

// buildActivityStream produces one page worth of ordered activities plus a
// has-more signal. Each sub-stream is fetched one row past the page size so
// the merged union can tell whether anything remains.
func buildActivityStream(db *gorm.DB, q streamQuery) ([]Activity, bool, error) {
	fetch := q
	fetch.Limit = q.Limit + 1

	posts, err := queryPostActivities(db, fetch)
	if err != nil {
		return nil, false, err
	}
	var sparks []Activity
	if q.IncludeSparks {
		sparks, err = querySparkActivities(db, fetch)
		if err != nil {
			return nil, false, err
		}
	}

	merged := MergeActivities(posts, sparks, q.Limit+1)
	hasMore := len(merged) > q.Limit
	if hasMore {
		merged = merged[:q.Limit]
	}
	return merged, hasMore, nil
}
