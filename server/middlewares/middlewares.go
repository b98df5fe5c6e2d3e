package middlewares

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sparklabs/spark-backend/auth"
	"github.com/sparklabs/spark-backend/cache"
	"github.com/sparklabs/spark-backend/model"
	"github.com/sparklabs/spark-backend/utils"
)

// UserKey is the gin context key the authenticated user is stored under.
const UserKey = "auth_user"

// CurrentUser returns the authenticated user set by JWT or OptionalJWT, or
// nil for an anonymous request.
func CurrentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(UserKey); ok {
		if user, ok := v.(*model.User); ok {
			return user
		}
	}
	return nil
}

// TokenId returns the jti and expiry of the presented token, for logout
// revocation.
func TokenId(c *gin.Context) (id string, expiresAt time.Time) {
	if v, ok := c.Get("auth_token_id"); ok {
		id, _ = v.(string)
	}
	if v, ok := c.Get("auth_token_expiry"); ok {
		expiresAt, _ = v.(time.Time)
	}
	return id, expiresAt
}

func resolveUser(c *gin.Context, db *gorm.DB, codes cache.CodeCache) (*model.User, error) {
	header := c.GetHeader("Authorization")
	bearer, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || bearer == "" {
		return nil, nil
	}

	info, err := auth.ParseToken(bearer)
	if err != nil {
		return nil, err
	}

	revoked, err := codes.IsDenylisted(c.Request.Context(), info.TokenId)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, auth.ErrInvalidToken
	}

	var user model.User
	if err := db.Where("id = ?", info.UserId).First(&user).Error; err != nil {
		return nil, auth.ErrInvalidToken
	}

	c.Set("auth_token_id", info.TokenId)
	c.Set("auth_token_expiry", info.ExpiresAt)
	return &user, nil
}

// JWT authenticates the bearer token in the Authorization header, checks the
// revocation denylist and loads the user. Requests without a valid token are
// rejected with 401.
func JWT(db *gorm.DB, codes cache.CodeCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolveUser(c, db, codes)
		if err != nil || user == nil {
			msg := "authentication required"
			if err != nil {
				msg = err.Error()
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": utils.ErrorTokenAuthFail,
				"msg":  msg,
			})
			return
		}
		c.Set(UserKey, user)
		c.Next()
	}
}

// OptionalJWT loads the user when a valid token is presented but lets
// anonymous requests through. Feeds and public post pages use this: the
// viewer changes what is visible, not whether the endpoint answers.
func OptionalJWT(db *gorm.DB, codes cache.CodeCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolveUser(c, db, codes)
		if err == nil && user != nil {
			c.Set(UserKey, user)
		}
		c.Next()
	}
}
