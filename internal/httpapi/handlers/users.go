package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/suPer8Hu/estate-chat/internal/auth"
	"github.com/suPer8Hu/estate-chat/internal/common"
	"github.com/suPer8Hu/estate-chat/internal/models"
)

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "email and password required")
		return
	}

	var user models.User
	err := h.DB.WithContext(c.Request.Context()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusUnauthorized, 40103, "invalid credentials")
			return
		}
		h.Log.Error().Err(err).Msg("login lookup failed")
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 40103, "invalid credentials")
		return
	}

	token, err := auth.SignJWT(user.ID, user.Role, h.Cfg.JWTSecret, h.Cfg.JWTTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}

	common.OK(c, gin.H{
		"id":    user.ID,
		"email": user.Email,
		"role":  user.Role,
		"token": token,
	})
}
