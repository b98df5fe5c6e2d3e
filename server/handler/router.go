package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sparklabs/spark-backend/model"
	"github.com/sparklabs/spark-backend/server/middlewares"
)

// RegisterRoutes wires every API endpoint onto the router. Public routes get
// OptionalJWT so a logged-in viewer is recognized; everything that writes
// requires JWT.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")

	optional := api.Group("", middlewares.OptionalJWT(h.db, h.codes))
	{
		optional.GET("/posts", h.GetFeed)
		optional.GET("/posts/:post", h.GetPost)
		optional.GET("/posts/:post/replies", h.ListReplies)
		optional.GET("/users/:user", h.GetUser)
	}

	api.POST("/register/email", h.RegisterWithEmail)
	api.POST("/register/verify", h.VerifyEmailAndCompleteRegistration)
	api.POST("/login", h.Login)
	api.POST("/two-factor-challenge", h.TwoFactorChallenge)
	api.GET("/auth/google/redirect", h.GoogleRedirect)
	api.GET("/auth/google/callback", h.GoogleCallback)

	authed := api.Group("", middlewares.JWT(h.db, h.codes))
	{
		authed.GET("/user", h.Me)
		authed.POST("/logout", h.Logout)
		authed.PUT("/user/profile", h.UpdateProfile)
		authed.PUT("/user/password", h.ChangePassword)
		authed.GET("/user/stats", h.GetUserStats)
		authed.POST("/user/profile-image", h.UploadProfileImage)
		authed.DELETE("/user/profile-image", h.DeleteProfileImage)

		authed.POST("/user/email-two-factor-authentication", h.EnableEmailTwoFactor)
		authed.DELETE("/user/email-two-factor-authentication", h.DisableEmailTwoFactor)
		authed.POST("/user/two-factor-authentication", h.EnableTOTP)
		authed.DELETE("/user/two-factor-authentication", h.DisableTOTP)
		authed.GET("/user/two-factor-qr-code", h.TOTPQRCode)
		authed.GET("/user/two-factor-recovery-codes", h.RecoveryCodes)
		authed.POST("/user/two-factor-recovery-codes", h.RegenerateRecoveryCodes)
		authed.GET("/user/two-factor-secret", h.GetTOTPSecret)
		authed.POST("/user/confirmed-two-factor-authentication", h.ConfirmTOTP)

		authed.POST("/posts", h.CreatePost)
		authed.PUT("/posts/:post", h.UpdatePost)
		authed.DELETE("/posts/:post", h.DeletePost)

		authed.POST("/posts/:post/like", h.AddPostAction(model.ActionLike))
		authed.DELETE("/posts/:post/like", h.RemovePostAction(model.ActionLike))
		authed.POST("/posts/:post/spark", h.AddPostAction(model.ActionSpark))
		authed.DELETE("/posts/:post/spark", h.RemovePostAction(model.ActionSpark))
		authed.POST("/posts/:post/bookmark", h.AddPostAction(model.ActionBookmark))
		authed.DELETE("/posts/:post/bookmark", h.RemovePostAction(model.ActionBookmark))
		authed.POST("/posts/:post/view", h.RecordPostView)

		authed.POST("/posts/:post/replies", h.CreateReply)
		authed.POST("/replies/:reply/replies", h.CreateNestedReply)
		authed.PUT("/replies/:reply", h.UpdateReply)
		authed.DELETE("/replies/:reply", h.DeleteReply)
		authed.POST("/replies/:reply/like", h.AddReplyAction(model.ActionLike))
		authed.DELETE("/replies/:reply/like", h.RemoveReplyAction(model.ActionLike))
		authed.POST("/replies/:reply/spark", h.AddReplyAction(model.ActionSpark))
		authed.DELETE("/replies/:reply/spark", h.RemoveReplyAction(model.ActionSpark))
		authed.POST("/replies/:reply/quote", h.QuoteReply)

		authed.GET("/users/:user/profile", h.GetUserProfile)
		authed.GET("/users/:user/posts", h.GetUserPosts)
		authed.GET("/users/:user/likes", h.GetLikedPosts)
		authed.POST("/users/:user/follow", h.FollowUser)
		authed.DELETE("/users/:user/follow", h.UnfollowUser)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Spark server - API not found"})
	})
}
