// Package handler implements the REST API: feeds, posts, replies, actions,
// follows, profiles and the auth flows.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/sparklabs/spark-backend/cache"
	"github.com/sparklabs/spark-backend/feed"
	"github.com/sparklabs/spark-backend/file_store"
	"github.com/sparklabs/spark-backend/mail"
	"github.com/sparklabs/spark-backend/model"
	"github.com/sparklabs/spark-backend/server/middlewares"
	"github.com/sparklabs/spark-backend/utils"
	"github.com/sparklabs/spark-backend/utils/log"
)

type Handler struct {
	db        *gorm.DB
	codes     cache.CodeCache
	mailer    mail.Mailer
	media     file_store.MediaStore
	assembler *feed.Assembler
	graph     feed.FollowGraph
}

func NewHandler(db *gorm.DB, codes cache.CodeCache, mailer mail.Mailer, media file_store.MediaStore) *Handler {
	return &Handler{
		db:        db,
		codes:     codes,
		mailer:    mailer,
		media:     media,
		assembler: feed.NewAssembler(db),
		graph:     feed.NewFollowGraph(db),
	}
}

func currentUser(c *gin.Context) *model.User {
	return middlewares.CurrentUser(c)
}

// abortWithError maps feed sentinel errors to HTTP status codes and hides
// internal failure details behind a 500.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, feed.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": utils.ErrorNotFound, "msg": "not found"})
	case errors.Is(err, feed.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"code": utils.ErrorForbidden, "msg": "forbidden"})
	case errors.Is(err, feed.ErrBadCursor):
		c.JSON(http.StatusBadRequest, gin.H{"code": utils.ErrorValidation, "msg": "invalid cursor"})
	default:
		log.Log.WithField("path", c.FullPath()).Error(err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"code": utils.ErrorInternal, "msg": "internal error"})
	}
}

func abortValidation(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": utils.ErrorValidation, "msg": msg})
}
