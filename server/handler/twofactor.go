package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sparklabs/spark-backend/auth"
	"github.com/sparklabs/spark-backend/utils"
)

// EnableTOTP generates a fresh secret and stores it unconfirmed. 2FA only
// takes effect after ConfirmTOTP proves the authenticator was set up.
func (h *Handler) EnableTOTP(c *gin.Context) {
	user := currentUser(c)

	secret, url, err := auth.GenerateTOTPSecret(user.Email)
	if err != nil {
		abortWithError(c, err)
		return
	}

	updates := map[string]interface{}{
		"two_factor_secret":       secret,
		"two_factor_confirmed_at": nil,
	}
	if err := h.db.Model(user).Updates(updates).Error; err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": secret, "qr_code_url": url})
}

// TOTPQRCode re-serves the provisioning URL for the pending secret.
func (h *Handler) TOTPQRCode(c *gin.Context) {
	user := currentUser(c)
	if user.TwoFactorSecret == "" {
		c.JSON(http.StatusNotFound, gin.H{"code": utils.ErrorNotFound, "msg": "two-factor not enabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"qr_code_url": auth.TOTPProvisioningURL(user.TwoFactorSecret, user.Email)})
}

// GetTOTPSecret returns the stored secret for manual authenticator entry.
func (h *Handler) GetTOTPSecret(c *gin.Context) {
	user := currentUser(c)
	if user.TwoFactorSecret == "" {
		c.JSON(http.StatusNotFound, gin.H{"code": utils.ErrorNotFound, "msg": "two-factor not enabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": user.TwoFactorSecret})
}

// ConfirmTOTP verifies one code against the pending secret, marks 2FA
// confirmed and hands out the recovery code batch.
func (h *Handler) ConfirmTOTP(c *gin.Context) {
	user := currentUser(c)

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "code is required")
		return
	}
	if user.TwoFactorSecret == "" || !auth.ValidateTOTP(user.TwoFactorSecret, req.Code) {
		c.JSON(http.StatusUnauthorized, gin.H{"code": utils.ErrorInvalidCode, "msg": "invalid code"})
		return
	}

	codes, err := auth.GenerateRecoveryCodes()
	if err != nil {
		abortWithError(c, err)
		return
	}
	now := time.Now()
	updates := map[string]interface{}{
		"two_factor_confirmed_at":   &now,
		"two_factor_recovery_codes": strings.Join(codes, ","),
	}
	if err := h.db.Model(user).Updates(updates).Error; err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recovery_codes": codes})
}

// DisableTOTP clears the secret, the confirmation and the recovery codes.
func (h *Handler) DisableTOTP(c *gin.Context) {
	user := currentUser(c)

	updates := map[string]interface{}{
		"two_factor_secret":         "",
		"two_factor_recovery_codes": "",
		"two_factor_confirmed_at":   nil,
	}
	if user.EmailTwoFactorEnabled {
		// Email 2FA stays active; the confirmation belongs to it.
		now := time.Now()
		updates["two_factor_confirmed_at"] = &now
	}
	if err := h.db.Model(user).Updates(updates).Error; err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": utils.ErrorOk, "msg": "two-factor disabled"})
}

// RecoveryCodes returns the unused recovery codes of a confirmed setup.
func (h *Handler) RecoveryCodes(c *gin.Context) {
	user := currentUser(c)
	if user.TwoFactorConfirmedAt == nil || user.TwoFactorRecoveryCodes == "" {
		c.JSON(http.StatusNotFound, gin.H{"code": utils.ErrorNotFound, "msg": "two-factor not confirmed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recovery_codes": strings.Split(user.TwoFactorRecoveryCodes, ",")})
}

// RegenerateRecoveryCodes replaces the batch; previously issued codes stop
// working immediately.
func (h *Handler) RegenerateRecoveryCodes(c *gin.Context) {
	user := currentUser(c)
	if user.TwoFactorConfirmedAt == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": utils.ErrorNotFound, "msg": "two-factor not confirmed"})
		return
	}

	codes, err := auth.GenerateRecoveryCodes()
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.db.Model(user).Update("two_factor_recovery_codes", strings.Join(codes, ",")).Error; err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recovery_codes": codes})
}

// EnableEmailTwoFactor switches on email code 2FA. No confirmation round is
// needed, the address is already verified by registration.
func (h *Handler) EnableEmailTwoFactor(c *gin.Context) {
	user := currentUser(c)

	now := time.Now()
	updates := map[string]interface{}{
		"email_two_factor_enabled": true,
		"two_factor_confirmed_at":  &now,
	}
	if err := h.db.Model(user).Updates(updates).Error; err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": utils.ErrorOk, "email_two_factor_enabled": true})
}

// DisableEmailTwoFactor switches email 2FA off. The confirmation timestamp
// survives only if a TOTP setup still exists.
func (h *Handler) DisableEmailTwoFactor(c *gin.Context) {
	user := currentUser(c)

	updates := map[string]interface{}{
		"email_two_factor_enabled": false,
	}
	if user.TwoFactorSecret == "" {
		updates["two_factor_confirmed_at"] = nil
	}
	if err := h.db.Model(user).Updates(updates).Error; err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": utils.ErrorOk, "email_two_factor_enabled": false})
}
