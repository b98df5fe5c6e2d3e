package feed

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sparklabs/spark-backend/model"
	"github.com/sparklabs/spark-backend/utils"
)

var feedEpoch = time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

func feedTime(sec int) time.Time {
	return feedEpoch.Add(time.Duration(sec) * time.Second)
}

func seedUser(t *testing.T, db *gorm.DB, id string) *model.User {
	t.Helper()
	u := &model.User{Id: id, Name: "name-" + id, Username: "handle-" + id, Email: id + "@example.com"}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedPost(t *testing.T, db *gorm.DB, post *model.Post) *model.Post {
	t.Helper()
	if post.ViewPermission == "" {
		post.ViewPermission = model.PermissionPublic
	}
	if post.CommentPermission == "" {
		post.CommentPermission = model.PermissionPublic
	}
	if post.ContentType == "" {
		post.ContentType = model.ContentTypeText
	}
	require.NoError(t, db.Create(post).Error)
	return post
}

func seedSpark(t *testing.T, db *gorm.DB, userId, postId string, at time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&model.PostAction{
		UserId:     userId,
		PostId:     postId,
		ActionType: model.ActionSpark,
		CreatedAt:  at,
	}).Error)
}

func follow(t *testing.T, db *gorm.DB, follower, following string) {
	t.Helper()
	require.NoError(t, db.Create(&model.Follow{FollowerId: follower, FollowingId: following}).Error)
}

func TestFollowingFeedSparkPrecedesOriginal(t *testing.T) {
	db := utils.CreateTempDB(t)
	a := NewAssembler(db)

	seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	follow(t, db, "bob", "alice")

	seedPost(t, db, &model.Post{Id: "p", UserId: "alice", TextContent: "hello", CreatedAt: feedTime(100)})
	seedSpark(t, db, "bob", "p", feedTime(200))

	resp, err := a.GetFeed(bob, model.FeedFilterFollowing, "", DefaultPageSize)
	require.NoError(t, err)
	require.Len(t, resp.Data, 2)

	spark := resp.Data[0]
	assert.True(t, spark.IsRepost)
	require.NotNil(t, spark.RepostUser)
	assert.Equal(t, "bob", spark.RepostUser.Id)
	require.NotNil(t, spark.RepostCreatedAt)
	assert.True(t, spark.RepostCreatedAt.Equal(feedTime(200)))

	original := resp.Data[1]
	assert.False(t, original.IsRepost)
	assert.Nil(t, original.RepostUser)
	require.NotNil(t, original.RepostCreatedAt)
	assert.True(t, original.RepostCreatedAt.Equal(feedTime(100)))

	assert.False(t, resp.Meta.HasMore)
}

func TestFollowingFeedSparkFanOut(t *testing.T) {
	db := utils.CreateTempDB(t)
	a := NewAssembler(db)

	seedUser(t, db, "author")
	seedUser(t, db, "u1")
	seedUser(t, db, "u2")
	viewer := seedUser(t, db, "viewer")
	follow(t, db, "viewer", "u1")
	follow(t, db, "viewer", "u2")

	// The author is not followed, so only the two sparks show up.
	seedPost(t, db, &model.Post{Id: "p", UserId: "author", CreatedAt: feedTime(10)})
	seedSpark(t, db, "u1", "p", feedTime(20))
	seedSpark(t, db, "u2", "p", feedTime(30))

	resp, err := a.GetFeed(viewer, model.FeedFilterFollowing, "", DefaultPageSize)
	require.NoError(t, err)
	require.Len(t, resp.Data, 2)

	assert.Equal(t, "p", resp.Data[0].Id)
	assert.Equal(t, "p", resp.Data[1].Id)
	assert.Equal(t, "u2", resp.Data[0].RepostUser.Id)
	assert.Equal(t, "u1", resp.Data[1].RepostUser.Id)
}

func TestFeedPaginationIsCompleteAndDuplicateFree(t *testing.T) {
	db := utils.CreateTempDB(t)
	a := NewAssembler(db)

	author := seedUser(t, db, "author")
	sparker := seedUser(t, db, "sparker")
	follow(t, db, "author", "sparker")

	// Seven posts and three sparks: ten activities in total.
	for i := 0; i < 7; i++ {
		seedPost(t, db, &model.Post{
			Id:        "p" + string(rune('0'+i)),
			UserId:    "author",
			CreatedAt: feedTime(100 + i*10),
		})
	}
	seedSpark(t, db, sparker.Id, "p0", feedTime(300))
	seedSpark(t, db, sparker.Id, "p1", feedTime(310))
	seedSpark(t, db, sparker.Id, "p2", feedTime(105)) // interleaved with creations

	var all []*model.FeedItem
	cursor := ""
	pages := 0
	for {
		resp, err := a.GetFeed(author, model.FeedFilterFollowing, cursor, 3)
		require.NoError(t, err)
		all = append(all, resp.Data...)
		pages++
		require.Less(t, pages, 10, "pagination must terminate")
		if !resp.Meta.HasMore {
			assert.Empty(t, resp.Meta.NextCursor)
			break
		}
		require.NotEmpty(t, resp.Meta.NextCursor)
		cursor = resp.Meta.NextCursor
	}

	require.Len(t, all, 10, "every creation and every spark exactly once")

	seen := map[string]int{}
	for _, item := range all {
		key := item.Id
		if item.IsRepost {
			key += "/spark/" + item.RepostUser.Id
		}
		seen[key]++
	}
	for key, n := range seen {
		assert.Equal(t, 1, n, "duplicate feed entry %s", key)
	}

	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		assert.False(t, cur.RepostCreatedAt.After(*prev.RepostCreatedAt),
			"page concatenation must stay in descending activity order")
	}
}

func TestShortFeedIsShortOnlyWithoutSparks(t *testing.T) {
	db := utils.CreateTempDB(t)
	a := NewAssembler(db)

	viewer := seedUser(t, db, "viewer")
	seedUser(t, db, "creator")
	follow(t, db, "viewer", "creator")

	seedPost(t, db, &model.Post{Id: "short1", UserId: "creator", ContentType: model.ContentTypeShortVideo, CreatedAt: feedTime(10)})
	seedPost(t, db, &model.Post{Id: "text1", UserId: "creator", ContentType: model.ContentTypeText, CreatedAt: feedTime(20)})
	seedSpark(t, db, "creator", "short1", feedTime(30))

	resp, err := a.GetFeed(viewer, model.FeedFilterShort, "", DefaultPageSize)
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "short1", resp.Data[0].Id)
	assert.False(t, resp.Data[0].IsRepost)
}

func TestShortFeedForAnonymousViewerIsPublicShorts(t *testing.T) {
	db := utils.CreateTempDB(t)
	a := NewAssembler(db)

	seedUser(t, db, "creator")
	seedPost(t, db, &model.Post{Id: "short-pub", UserId: "creator", ContentType: model.ContentTypeShortVideo, CreatedAt: feedTime(10)})
	seedPost(t, db, &model.Post{Id: "short-followers", UserId: "creator", ContentType: model.ContentTypeShortVideo, ViewPermission: model.PermissionFollowers, CreatedAt: feedTime(20)})
	seedPost(t, db, &model.Post{Id: "short-sensitive", UserId: "creator", ContentType: model.ContentTypeShortVideo, IsSensitive: true, CreatedAt: feedTime(30)})
	seedPost(t, db, &model.Post{Id: "text", UserId: "creator", ContentType: model.ContentTypeText, CreatedAt: feedTime(40)})

	resp, err := a.GetFeed(nil, model.FeedFilterShort, "", DefaultPageSize)
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "short-pub", resp.Data[0].Id)
}

func TestRecommendFeedForAnonymousViewer(t *testing.T) {
	db := utils.CreateTempDB(t)
	a := NewAssembler(db)

	seedUser(t, db, "author")
	seedPost(t, db, &model.Post{Id: "pub", UserId: "author", CreatedAt: feedTime(10)})
	seedPost(t, db, &model.Post{Id: "followers-only", UserId: "author", ViewPermission: model.PermissionFollowers, CreatedAt: feedTime(20)})
	seedPost(t, db, &model.Post{Id: "sensitive", UserId: "author", IsSensitive: true, CreatedAt: feedTime(30)})
	seedPost(t, db, &model.Post{Id: "short", UserId: "author", ContentType: model.ContentTypeShortVideo, CreatedAt: feedTime(40)})

	resp, err := a.GetFeed(nil, model.FeedFilterRecommend, "", DefaultPageSize)
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "pub", resp.Data[0].Id)
}

func TestRecommendFeedAdultSeesSensitive(t *testing.T) {
	db := utils.CreateTempDB(t)
	a := NewAssembler(db)

	seedUser(t, db, "author")
	adult := seedUser(t, db, "adult")
	adult.Birthday = birthdayYearsAgo(25)
	require.NoError(t, db.Save(adult).Error)

	seedPost(t, db, &model.Post{Id: "sensitive", UserId: "author", IsSensitive: true, CreatedAt: feedTime(10)})

	resp, err := a.GetFeed(adult, model.FeedFilterRecommend, "", DefaultPageSize)
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "sensitive", resp.Data[0].Id)
}

func TestFeedAnnotatesViewerActions(t *testing.T) {
	db := utils.CreateTempDB(t)
	a := NewAssembler(db)

	seedUser(t, db, "author")
	viewer := seedUser(t, db, "viewer")
	follow(t, db, "viewer", "author")

	seedPost(t, db, &model.Post{Id: "p", UserId: "author", CreatedAt: feedTime(10)})
	require.NoError(t, db.Create(&model.PostAction{UserId: "viewer", PostId: "p", ActionType: model.ActionLike, CreatedAt: feedTime(20)}).Error)
	require.NoError(t, db.Create(&model.PostAction{UserId: "viewer", PostId: "p", ActionType: model.ActionBookmark, CreatedAt: feedTime(21)}).Error)

	resp, err := a.GetFeed(viewer, model.FeedFilterFollowing, "", DefaultPageSize)
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)

	item := resp.Data[0]
	assert.True(t, item.IsLiked)
	assert.True(t, item.IsBookmarked)
	assert.False(t, item.IsSparked)
	assert.Equal(t, int64(1), item.Counts.Likes)
	assert.Equal(t, int64(1), item.Counts.Bookmarks)
	assert.Equal(t, int64(0), item.Counts.Sparks)
}

func TestHydrateDropsVanishedPost(t *testing.T) {
	db := utils.CreateTempDB(t)
	a := NewAssembler(db)

	seedUser(t, db, "author")
	seedPost(t, db, &model.Post{Id: "kept", UserId: "author", CreatedAt: feedTime(10)})

	items, err := a.hydrate(nil, []Activity{
		{PostId: "gone", ActivityAt: feedTime(20)},
		{PostId: "kept", ActivityAt: feedTime(10)},
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "kept", items[0].Id)
}

func TestGetFeedRejectsBadCursor(t *testing.T) {
	db := utils.CreateTempDB(t)
	a := NewAssembler(db)

	_, err := a.GetFeed(nil, model.FeedFilterRecommend, "not-a-cursor!", DefaultPageSize)
	assert.True(t, errors.Is(err, ErrBadCursor))
}

func TestGetPostEnforcesGates(t *testing.T) {
	db := utils.CreateTempDB(t)
	a := NewAssembler(db)

	author := seedUser(t, db, "author")
	stranger := seedUser(t, db, "stranger")
	followerUser := seedUser(t, db, "follower")
	follow(t, db, "follower", "author")

	seedPost(t, db, &model.Post{Id: "p", UserId: "author", ViewPermission: model.PermissionFollowers, CreatedAt: feedTime(10)})

	_, err := a.GetPost("missing", author)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = a.GetPost("p", stranger)
	assert.True(t, errors.Is(err, ErrForbidden))

	item, err := a.GetPost("p", author)
	require.NoError(t, err)
	assert.Equal(t, "p", item.Id)

	item, err = a.GetPost("p", followerUser)
	require.NoError(t, err)
	assert.Equal(t, "p", item.Id)
}

func TestGetPostSensitivityGateComesFirst(t *testing.T) {
	db := utils.CreateTempDB(t)
	a := NewAssembler(db)

	seedUser(t, db, "author")
	seedPost(t, db, &model.Post{Id: "p", UserId: "author", IsSensitive: true, CreatedAt: feedTime(10)})

	_, err := a.GetPost("p", nil)
	assert.True(t, errors.Is(err, ErrForbidden))

	noBirthday := &model.User{Id: "u"}
	_, err = a.GetPost("p", noBirthday)
	assert.True(t, errors.Is(err, ErrForbidden))

	adult := seedUser(t, db, "adult")
	adult.Birthday = birthdayYearsAgo(40)
	require.NoError(t, db.Save(adult).Error)
	item, err := a.GetPost("p", adult)
	require.NoError(t, err)
	assert.Equal(t, "p", item.Id)
}
