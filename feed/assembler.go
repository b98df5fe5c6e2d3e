package feed

import (
	"time"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/sparklabs/spark-backend/model"
	"github.com/sparklabs/spark-backend/utils/log"
)

const (
	// DefaultPageSize is the feed page size, matching the original client
	// contract.
	DefaultPageSize = 20
	maxPageSize     = 50
)

/*

Assembler joins the activity union against hydrated posts, spark users and
the viewer's action index, producing final feed pages.

All lookups for one page are issued as a constant number of queries
regardless of page size: one per activity sub-stream, one post hydration,
one spark-user hydration, three grouped count queries and one action index
batch.

*/

type Assembler struct {
	db    *gorm.DB
	graph FollowGraph
	now   func() time.Time
}

func NewAssembler(db *gorm.DB) *Assembler {
	return &Assembler{db: db, graph: NewFollowGraph(db), now: time.Now}
}

// GetFeed assembles one page of the requested feed tab.
func (a *Assembler) GetFeed(viewer *model.User, filter model.FeedFilter, cursorToken string, limit int) (*model.FeedResponse, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = DefaultPageSize
	}
	cursor, err := DecodeCursor(cursorToken)
	if err != nil {
		return nil, err
	}

	q := streamQuery{Viewer: viewer, Cursor: cursor, Limit: limit}
	switch {
	case filter == model.FeedFilterFollowing && viewer != nil:
		// Bounded audience: followed users plus self, short-form excluded,
		// sparks folded in. Audience membership stands in for visibility.
		audience, err := a.boundedAudience(viewer)
		if err != nil {
			return nil, err
		}
		q.Audience = audience
		q.ContentType = model.ContentTypeShortVideo
		q.Exclude = true
		q.IncludeSparks = true
	case filter == model.FeedFilterShort:
		// Short-form only, no repost fan-out. A signed-in viewer reads the
		// followed audience; anonymous viewers get the global public,
		// non-sensitive stream.
		if viewer != nil {
			audience, err := a.boundedAudience(viewer)
			if err != nil {
				return nil, err
			}
			q.Audience = audience
		} else {
			q.Visible = true
			q.HideSensitive = true
		}
		q.ContentType = model.ContentTypeShortVideo
	case filter == model.FeedFilterRecommend:
		q.ContentType = model.ContentTypeShortVideo
		q.Exclude = true
		q.Visible = true
		q.HideSensitive = !viewer.IsAdult(a.now())
		q.IncludeSparks = viewer != nil
	case filter == model.FeedFilterPaid:
		if viewer == nil {
			return &model.FeedResponse{Data: []*model.FeedItem{}}, nil
		}
		q.PaidOnly = true
		q.Visible = true
		q.HideSensitive = !viewer.IsAdult(a.now())
	default:
		q.ContentType = model.ContentTypeShortVideo
		q.Exclude = true
		q.Visible = true
		q.HideSensitive = !viewer.IsAdult(a.now())
	}

	activities, hasMore, err := buildActivityStream(a.db, q)
	if err != nil {
		return nil, errors.Wrap(err, "build activity stream")
	}

	items, err := a.hydrate(viewer, activities)
	if err != nil {
		return nil, err
	}

	meta := model.FeedMeta{HasMore: hasMore}
	if hasMore && len(activities) > 0 {
		last := activities[len(activities)-1]
		meta.NextCursor = Cursor{
			ActivityAt:  last.ActivityAt,
			PostId:      last.PostId,
			SparkUserId: last.SparkUserId,
		}.Encode()
	}
	return &model.FeedResponse{Data: items, Meta: meta}, nil
}

// GetPost returns one fully annotated post, enforcing the sensitivity gate
// first and the permission gate second. Nothing of a forbidden post is ever
// returned.
func (a *Assembler) GetPost(postId string, viewer *model.User) (*model.FeedItem, error) {
	var post model.Post
	err := a.preloadPost(a.db).Where("id = ?", postId).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if SensitiveBlocked(&post, viewer, a.now()) {
		return nil, errors.Wrap(ErrForbidden, "age restricted content")
	}
	ok, err := CanView(&post, viewer, a.graph)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrap(ErrForbidden, "view permission")
	}

	counts, err := a.loadCounts([]string{post.Id})
	if err != nil {
		return nil, err
	}
	viewerId := ""
	if viewer != nil {
		viewerId = viewer.Id
	}
	actions, err := LoadPostActions(a.db, viewerId, []string{post.Id})
	if err != nil {
		return nil, err
	}
	item := buildFeedItem(&post, counts[post.Id], actions[post.Id])
	return item, nil
}

func (a *Assembler) boundedAudience(viewer *model.User) ([]string, error) {
	ids, err := a.graph.FollowedIds(viewer.Id)
	if err != nil {
		return nil, errors.Wrap(err, "resolve audience")
	}
	return append(ids, viewer.Id), nil
}

func (a *Assembler) preloadPost(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("User").
		Preload("Media", func(db *gorm.DB) *gorm.DB { return db.Order("display_order ASC") }).
		Preload("QuotedPost.User").
		Preload("QuotedPost.Media").
		Preload("QuotedReply.User").
		Preload("QuotedReply.Post.User")
}

// hydrate turns one page of activities into feed items. An activity whose
// post vanished between union build and hydration is dropped, never an
// error.
func (a *Assembler) hydrate(viewer *model.User, activities []Activity) ([]*model.FeedItem, error) {
	items := make([]*model.FeedItem, 0, len(activities))
	if len(activities) == 0 {
		return items, nil
	}

	postIds := lo.Uniq(lo.Map(activities, func(act Activity, _ int) string { return act.PostId }))
	var posts []*model.Post
	if err := a.preloadPost(a.db).Where("id IN ?", postIds).Find(&posts).Error; err != nil {
		return nil, errors.Wrap(err, "hydrate posts")
	}
	postById := lo.KeyBy(posts, func(p *model.Post) string { return p.Id })

	sparkUserIds := lo.Uniq(lo.FilterMap(activities, func(act Activity, _ int) (string, bool) {
		return act.SparkUserId, act.SparkUserId != ""
	}))
	sparkUserById := map[string]*model.User{}
	if len(sparkUserIds) > 0 {
		var sparkUsers []*model.User
		if err := a.db.Where("id IN ?", sparkUserIds).Find(&sparkUsers).Error; err != nil {
			return nil, errors.Wrap(err, "hydrate spark users")
		}
		sparkUserById = lo.KeyBy(sparkUsers, func(u *model.User) string { return u.Id })
	}

	counts, err := a.loadCounts(postIds)
	if err != nil {
		return nil, err
	}

	viewerId := ""
	if viewer != nil {
		viewerId = viewer.Id
	}
	actionIdx, err := LoadPostActions(a.db, viewerId, postIds)
	if err != nil {
		return nil, err
	}

	for _, act := range activities {
		post, ok := postById[act.PostId]
		if !ok {
			// Deleted while the page was being assembled.
			log.Log.WithField("post_id", act.PostId).Debug("feed activity dropped, post gone")
			continue
		}
		item := buildFeedItem(post, counts[post.Id], actionIdx[post.Id])
		if act.SparkUserId != "" {
			sparkUser, ok := sparkUserById[act.SparkUserId]
			if !ok {
				continue
			}
			at := act.ActivityAt
			item.IsRepost = true
			item.RepostUser = summarizeUser(sparkUser)
			item.RepostCreatedAt = &at
		}
		items = append(items, item)
	}
	return items, nil
}

// loadCounts aggregates engagement counters for a batch of posts in three
// grouped queries, independent of batch size.
func (a *Assembler) loadCounts(postIds []string) (map[string]model.PostCounts, error) {
	out := make(map[string]model.PostCounts, len(postIds))
	if len(postIds) == 0 {
		return out, nil
	}

	var actionRows []struct {
		PostId     string
		ActionType model.ActionKind
		N          int64
	}
	err := a.db.Model(&model.PostAction{}).
		Select("post_id, action_type, COUNT(*) AS n").
		Where("post_id IN ?", postIds).
		Group("post_id").Group("action_type").
		Find(&actionRows).Error
	if err != nil {
		return nil, errors.Wrap(err, "count actions")
	}
	for _, row := range actionRows {
		c := out[row.PostId]
		switch row.ActionType {
		case model.ActionLike:
			c.Likes = row.N
		case model.ActionSpark:
			c.Sparks = row.N
		case model.ActionBookmark:
			c.Bookmarks = row.N
		}
		out[row.PostId] = c
	}

	var replyRows []struct {
		PostId string
		N      int64
	}
	err = a.db.Model(&model.Reply{}).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", postIds).
		Group("post_id").
		Find(&replyRows).Error
	if err != nil {
		return nil, errors.Wrap(err, "count replies")
	}
	for _, row := range replyRows {
		c := out[row.PostId]
		c.Replies = row.N
		out[row.PostId] = c
	}

	var quoteRows []struct {
		QuotedPostId string
		N            int64
	}
	err = a.db.Model(&model.Post{}).
		Select("quoted_post_id, COUNT(*) AS n").
		Where("quoted_post_id IN ?", postIds).
		Group("quoted_post_id").
		Find(&quoteRows).Error
	if err != nil {
		return nil, errors.Wrap(err, "count quotes")
	}
	for _, row := range quoteRows {
		c := out[row.QuotedPostId]
		c.Quotes = row.N
		out[row.QuotedPostId] = c
	}

	return out, nil
}

func summarizeUser(u *model.User) *model.UserSummary {
	if u == nil {
		return nil
	}
	var summary model.UserSummary
	if err := copier.Copy(&summary, u); err != nil {
		return &model.UserSummary{Id: u.Id, Name: u.Name, Username: u.Username, ProfileImage: u.ProfileImage}
	}
	return &summary
}

// buildFeedItem constructs a fresh, request-scoped item. Viewer flags live
// on the item, never on the shared Post row.
func buildFeedItem(post *model.Post, counts model.PostCounts, actions ActionSet) *model.FeedItem {
	counts.Views = post.ViewsCount
	item := &model.FeedItem{
		Id:                post.Id,
		User:              summarizeUser(post.User),
		ContentType:       post.ContentType,
		TextContent:       post.TextContent,
		ViewPermission:    post.ViewPermission,
		CommentPermission: post.CommentPermission,
		IsSensitive:       post.IsSensitive,
		IsPaid:            post.IsPaid,
		Price:             post.Price,
		Media:             post.Media,
		QuotedReply:       post.QuotedReply,
		Counts:            counts,
		IsLiked:           actions.Has(model.ActionLike),
		IsSparked:         actions.Has(model.ActionSpark),
		IsBookmarked:      actions.Has(model.ActionBookmark),
		CreatedAt:         post.CreatedAt,
	}
	created := post.CreatedAt
	item.RepostCreatedAt = &created
	if post.QuotedPost != nil {
		item.QuotedPost = buildFeedItem(post.QuotedPost, model.PostCounts{Views: post.QuotedPost.ViewsCount}, nil)
	}
	return item
}
