package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/sparklabs/spark-backend/auth"
	"github.com/sparklabs/spark-backend/cache"
	"github.com/sparklabs/spark-backend/model"
	"github.com/sparklabs/spark-backend/server/middlewares"
	"github.com/sparklabs/spark-backend/utils"
	"github.com/sparklabs/spark-backend/utils/log"
)

const (
	registrationCodeTTL = 10 * time.Minute
	twoFactorCodeTTL    = 5 * time.Minute
	oauthStateTTL       = 10 * time.Minute
)

// RegisterWithEmail starts registration: a 6-digit code is cached under the
// email and mailed out. The account is only created once the code comes back.
func (h *Handler) RegisterWithEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "a valid email is required")
		return
	}

	var existing model.User
	err := h.db.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"code": utils.ErrorConflict, "msg": "email already registered"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		abortWithError(c, err)
		return
	}

	code, err := auth.GenerateEmailCode()
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.codes.SetCode(c.Request.Context(), cache.RegistrationCodeKey(req.Email), code, registrationCodeTTL); err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.mailer.Send(req.Email, "Your verification code", "Your verification code is: "+code); err != nil {
		abortWithError(c, errors.Wrap(err, "send registration mail"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": utils.ErrorOk, "msg": "verification code sent"})
}

// VerifyEmailAndCompleteRegistration checks the mailed code and creates the
// account, returning an access token. The code is single use.
func (h *Handler) VerifyEmailAndCompleteRegistration(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Code     string `json:"code" binding:"required"`
		Username string `json:"username" binding:"required"`
		Name     string `json:"name" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "email, code, username, name and password are required")
		return
	}
	if len(req.Password) < 8 {
		abortValidation(c, "password must be at least 8 characters")
		return
	}

	key := cache.RegistrationCodeKey(req.Email)
	stored, err := h.codes.GetCode(c.Request.Context(), key)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if stored == "" || stored != req.Code {
		c.JSON(http.StatusUnauthorized, gin.H{"code": utils.ErrorInvalidCode, "msg": "invalid or expired code"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	user := &model.User{
		Id:           uuid.New().String(),
		Name:         req.Name,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := h.db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"code": utils.ErrorConflict, "msg": "username or email already taken"})
			return
		}
		abortWithError(c, errors.Wrap(err, "create user"))
		return
	}

	if err := h.codes.DeleteCode(c.Request.Context(), key); err != nil {
		log.Log.Warn("delete registration code: " + err.Error())
	}

	token, err := auth.IssueToken(user.Id, time.Now())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
}

// Login checks the password. Accounts with confirmed 2FA get a challenge
// instead of a token: email accounts receive a mailed code, TOTP accounts
// answer with their authenticator.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "email and password are required")
		return
	}

	var user model.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": utils.ErrorTokenAuthFail, "msg": "wrong email or password"})
		return
	}
	if user.PasswordHash == "" {
		// Google-only account.
		c.JSON(http.StatusUnauthorized, gin.H{"code": utils.ErrorTokenAuthFail, "msg": "wrong email or password"})
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": utils.ErrorTokenAuthFail, "msg": "wrong email or password"})
		return
	}

	if user.TwoFactorConfirmedAt != nil {
		method := "totp"
		if user.EmailTwoFactorEnabled {
			method = "email"
			code, err := auth.GenerateEmailCode()
			if err != nil {
				abortWithError(c, err)
				return
			}
			if err := h.codes.SetCode(c.Request.Context(), cache.TwoFactorCodeKey(user.Id), code, twoFactorCodeTTL); err != nil {
				abortWithError(c, err)
				return
			}
			if err := h.mailer.Send(user.Email, "Your login code", "Your login code is: "+code); err != nil {
				abortWithError(c, errors.Wrap(err, "send 2fa mail"))
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"two_factor": true, "method": method})
		return
	}

	token, err := auth.IssueToken(user.Id, time.Now())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": &user})
}

// TwoFactorChallenge completes a 2FA login. It accepts, in order, the mailed
// email code, a TOTP code, or a one-time recovery code.
func (h *Handler) TwoFactorChallenge(c *gin.Context) {
	var req struct {
		Email        string `json:"email" binding:"required,email"`
		Code         string `json:"code"`
		RecoveryCode string `json:"recovery_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "email and a code are required")
		return
	}
	if req.Code == "" && req.RecoveryCode == "" {
		abortValidation(c, "email and a code are required")
		return
	}

	var user model.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": utils.ErrorInvalidCode, "msg": "invalid code"})
		return
	}

	verified := false
	if req.Code != "" && user.EmailTwoFactorEnabled {
		key := cache.TwoFactorCodeKey(user.Id)
		stored, err := h.codes.GetCode(c.Request.Context(), key)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if stored != "" && stored == req.Code {
			verified = true
			if err := h.codes.DeleteCode(c.Request.Context(), key); err != nil {
				log.Log.Warn("delete 2fa code: " + err.Error())
			}
		}
	}
	if !verified && req.Code != "" && user.TwoFactorSecret != "" {
		verified = auth.ValidateTOTP(user.TwoFactorSecret, req.Code)
	}
	if !verified && req.RecoveryCode != "" && user.TwoFactorRecoveryCodes != "" {
		remaining, ok := auth.ConsumeRecoveryCode(user.TwoFactorRecoveryCodes, req.RecoveryCode)
		if ok {
			if err := h.db.Model(&user).Update("two_factor_recovery_codes", remaining).Error; err != nil {
				abortWithError(c, err)
				return
			}
			verified = true
		}
	}
	if !verified {
		c.JSON(http.StatusUnauthorized, gin.H{"code": utils.ErrorInvalidCode, "msg": "invalid code"})
		return
	}

	token, err := auth.IssueToken(user.Id, time.Now())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": &user})
}

// Logout revokes the presented token by denylisting its jti for the
// remaining lifetime.
func (h *Handler) Logout(c *gin.Context) {
	tokenId, expiresAt := middlewares.TokenId(c)
	if tokenId != "" {
		ttl := time.Until(expiresAt)
		if err := h.codes.Denylist(c.Request.Context(), tokenId, ttl); err != nil {
			abortWithError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"code": utils.ErrorOk, "msg": "logged out"})
}

// GoogleRedirect hands the client the consent URL with a single use state.
func (h *Handler) GoogleRedirect(c *gin.Context) {
	state := uuid.New().String()
	if err := h.codes.SetCode(c.Request.Context(), "oauth:state:"+state, "1", oauthStateTTL); err != nil {
		abortWithError(c, err)
		return
	}
	url := auth.GoogleOAuthConfig().AuthCodeURL(state)
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// GoogleCallback exchanges the code, upserts the user by Google subject id
// and returns an access token. An existing account with the same email is
// linked instead of duplicated.
func (h *Handler) GoogleCallback(c *gin.Context) {
	state := c.Query("state")
	stateKey := "oauth:state:" + state
	stored, err := h.codes.GetCode(c.Request.Context(), stateKey)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if state == "" || stored == "" {
		abortValidation(c, "invalid oauth state")
		return
	}
	if err := h.codes.DeleteCode(c.Request.Context(), stateKey); err != nil {
		log.Log.Warn("delete oauth state: " + err.Error())
	}

	googleUser, err := auth.ExchangeGoogleCode(c.Request.Context(), auth.GoogleOAuthConfig(), c.Query("code"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": utils.ErrorTokenAuthFail, "msg": "google sign-in failed"})
		return
	}

	var user model.User
	err = h.db.Where("google_id = ?", googleUser.Id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && googleUser.Email != "" {
		err = h.db.Where("email = ?", googleUser.Email).First(&user).Error
		if err == nil {
			if linkErr := h.db.Model(&user).Update("google_id", googleUser.Id).Error; linkErr != nil {
				abortWithError(c, linkErr)
				return
			}
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = model.User{
			Id:           uuid.New().String(),
			Name:         googleUser.Name,
			Username:     "user_" + uuid.New().String()[:8],
			Email:        googleUser.Email,
			GoogleId:     googleUser.Id,
			ProfileImage: googleUser.Picture,
		}
		if createErr := h.db.Create(&user).Error; createErr != nil {
			abortWithError(c, errors.Wrap(createErr, "create google user"))
			return
		}
	} else if err != nil {
		abortWithError(c, err)
		return
	}

	token, err := auth.IssueToken(user.Id, time.Now())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": &user})
}
