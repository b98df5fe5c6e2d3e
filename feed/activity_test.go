package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func TestActivityBeforeOrdersNewestFirst(t *testing.T) {
	newer := Activity{PostId: "a", ActivityAt: at(200)}
	older := Activity{PostId: "b", ActivityAt: at(100)}

	assert.True(t, newer.Before(older))
	assert.False(t, older.Before(newer))
}

func TestActivityBeforeTieBreaks(t *testing.T) {
	// Equal time: higher post id wins, then higher spark attribution.
	a := Activity{PostId: "b", ActivityAt: at(100)}
	b := Activity{PostId: "a", ActivityAt: at(100)}
	assert.True(t, a.Before(b))

	origin := Activity{PostId: "a", ActivityAt: at(100)}
	spark := Activity{PostId: "a", SparkUserId: "u1", ActivityAt: at(100)}
	assert.True(t, spark.Before(origin), "spark attribution as final tie-break")
}

func TestMergeActivitiesInterleaves(t *testing.T) {
	posts := []Activity{
		{PostId: "p3", ActivityAt: at(300)},
		{PostId: "p1", ActivityAt: at(100)},
	}
	sparks := []Activity{
		{PostId: "p1", SparkUserId: "u1", ActivityAt: at(400)},
		{PostId: "p2", SparkUserId: "u2", ActivityAt: at(200)},
	}

	merged := MergeActivities(posts, sparks, 10)
	assert.Equal(t, []Activity{
		{PostId: "p1", SparkUserId: "u1", ActivityAt: at(400)},
		{PostId: "p3", ActivityAt: at(300)},
		{PostId: "p2", SparkUserId: "u2", ActivityAt: at(200)},
		{PostId: "p1", ActivityAt: at(100)},
	}, merged)
}

func TestMergeActivitiesRespectsLimit(t *testing.T) {
	posts := []Activity{
		{PostId: "p3", ActivityAt: at(300)},
		{PostId: "p1", ActivityAt: at(100)},
	}
	sparks := []Activity{
		{PostId: "p2", SparkUserId: "u", ActivityAt: at(200)},
	}

	merged := MergeActivities(posts, sparks, 2)
	assert.Len(t, merged, 2)
	assert.Equal(t, "p3", merged[0].PostId)
	assert.Equal(t, "p2", merged[1].PostId)
}

func TestMergeActivitiesKeepsSparkFanOutDistinct(t *testing.T) {
	// The same post sparked by two users stays two entries, and its own
	// creation remains a third.
	posts := []Activity{
		{PostId: "p", ActivityAt: at(100)},
	}
	sparks := []Activity{
		{PostId: "p", SparkUserId: "u2", ActivityAt: at(300)},
		{PostId: "p", SparkUserId: "u1", ActivityAt: at(200)},
	}

	merged := MergeActivities(posts, sparks, 10)
	assert.Len(t, merged, 3)
	assert.Equal(t, "u2", merged[0].SparkUserId)
	assert.Equal(t, "u1", merged[1].SparkUserId)
	assert.Equal(t, "", merged[2].SparkUserId)
}

func TestMergeActivitiesEmptySides(t *testing.T) {
	sparks := []Activity{{PostId: "p", SparkUserId: "u", ActivityAt: at(100)}}

	assert.Equal(t, sparks, MergeActivities(nil, sparks, 5))
	assert.Equal(t, sparks, MergeActivities(sparks, nil, 5))
	assert.Empty(t, MergeActivities(nil, nil, 5))
}
