package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparklabs/spark-backend/model"
)

func reply(id string, parent *string, sec int64) *model.Reply {
	return &model.Reply{
		Id:        id,
		PostId:    "post",
		ParentId:  parent,
		Content:   "reply " + id,
		CreatedAt: time.Unix(sec, 0),
	}
}

func TestBuildReplyTreeNestsChildren(t *testing.T) {
	r1 := reply("r1", nil, 10)
	r2 := reply("r2", nil, 20)
	r1a := reply("r1a", &r1.Id, 30)
	r1b := reply("r1b", &r1.Id, 25)
	r1a1 := reply("r1a1", &r1a.Id, 40)

	roots := BuildReplyTree([]*model.Reply{r1a1, r2, r1b, r1, r1a})

	require.Len(t, roots, 2)
	assert.Equal(t, "r1", roots[0].Id)
	assert.Equal(t, "r2", roots[1].Id)

	require.Len(t, roots[0].Children, 2)
	assert.Equal(t, "r1b", roots[0].Children[0].Id, "siblings ordered oldest first")
	assert.Equal(t, "r1a", roots[0].Children[1].Id)

	require.Len(t, roots[0].Children[1].Children, 1)
	assert.Equal(t, "r1a1", roots[0].Children[1].Children[0].Id)
}

func TestBuildReplyTreePromotesOrphans(t *testing.T) {
	gone := "deleted-parent"
	orphan := reply("orphan", &gone, 10)
	root := reply("root", nil, 5)

	roots := BuildReplyTree([]*model.Reply{orphan, root})

	require.Len(t, roots, 2)
	assert.Equal(t, "root", roots[0].Id)
	assert.Equal(t, "orphan", roots[1].Id)
}

func TestBuildReplyTreeEmpty(t *testing.T) {
	assert.Empty(t, BuildReplyTree(nil))
}
