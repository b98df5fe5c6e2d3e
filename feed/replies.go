package feed

import (
	"sort"

	"github.com/sparklabs/spark-backend/model"
)

// ReplyNode is one reply with its children attached, for client rendering.
type ReplyNode struct {
	*model.Reply
	Children []*ReplyNode `json:"children"`
}

// BuildReplyTree reconstructs the reply tree of one post from its flat rows.
// Pure fold: no queries, no mutation of the input. Replies whose parent is
// missing (deleted mid-thread) are promoted to the root level so the thread
// stays renderable. Siblings are ordered oldest first.
func BuildReplyTree(replies []*model.Reply) []*ReplyNode {
	nodes := make(map[string]*ReplyNode, len(replies))
	for _, r := range replies {
		nodes[r.Id] = &ReplyNode{Reply: r}
	}

	var roots []*ReplyNode
	for _, r := range replies {
		node := nodes[r.Id]
		if r.ParentId == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*r.ParentId]
		if !ok {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	var sortSiblings func(list []*ReplyNode)
	sortSiblings = func(list []*ReplyNode) {
		sort.SliceStable(list, func(i, j int) bool {
			if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
				return list[i].CreatedAt.Before(list[j].CreatedAt)
			}
			return list[i].Id < list[j].Id
		})
		for _, n := range list {
			sortSiblings(n.Children)
		}
	}
	sortSiblings(roots)
	return roots
}
