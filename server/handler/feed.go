package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sparklabs/spark-backend/feed"
	"github.com/sparklabs/spark-backend/model"
)

// GetFeed serves one page of the requested feed tab. Anonymous viewers are
// allowed; tabs that need an identity fall back to the default tab or return
// an empty page inside the assembler.
func (h *Handler) GetFeed(c *gin.Context) {
	filter := model.FeedFilter(c.DefaultQuery("filter", string(model.FeedFilterDefault)))
	switch filter {
	case model.FeedFilterRecommend, model.FeedFilterFollowing, model.FeedFilterShort,
		model.FeedFilterPaid, model.FeedFilterDefault:
	default:
		abortValidation(c, "unknown feed filter")
		return
	}

	limit := feed.DefaultPageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			abortValidation(c, "limit must be an integer")
			return
		}
		limit = n
	}

	resp, err := h.assembler.GetFeed(currentUser(c), filter, c.Query("cursor"), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetPost serves one fully annotated post, gated by sensitivity and view
// permission.
func (h *Handler) GetPost(c *gin.Context) {
	item, err := h.assembler.GetPost(c.Param("post"), currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}
