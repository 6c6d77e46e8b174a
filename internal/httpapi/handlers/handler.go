package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/suPer8Hu/estate-chat/internal/config"
	"github.com/suPer8Hu/estate-chat/internal/conversation"
	"github.com/suPer8Hu/estate-chat/internal/httpapi/middleware"
	"github.com/suPer8Hu/estate-chat/internal/models"
	"github.com/suPer8Hu/estate-chat/internal/notify"
)

type Handler struct {
	DB      *gorm.DB
	Cfg     config.Config
	ConvSvc *conversation.Service
	Hub     *notify.Hub
	Log     zerolog.Logger

	upgrader websocket.Upgrader
}

func NewHandler(db *gorm.DB, cfg config.Config, svc *conversation.Service, hub *notify.Hub, log zerolog.Logger) *Handler {
	return &Handler{
		DB:       db,
		Cfg:      cfg,
		ConvSvc:  svc,
		Hub:      hub,
		Log:      log.With().Str("component", "http").Logger(),
		upgrader: newUpgrader(cfg.CORSAllowOrigins),
	}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// caller resolves the ambient identity into an explicit conversation.Caller.
// Anonymous requests yield a caller without a user id.
func (h *Handler) caller(c *gin.Context) (conversation.Caller, error) {
	uid, ok := userIDFromContext(c)
	if !ok {
		return conversation.Anonymous(), nil
	}

	id := uid
	out := conversation.Caller{UserID: &id}

	var u models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&u, uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// token outlived the profile; keep the id, drop the snapshot fields
			return out, nil
		}
		return conversation.Caller{}, err
	}
	out.Name = nonEmpty(u.Name)
	out.Email = nonEmpty(u.Email)
	out.Phone = nonEmpty(u.Phone)
	return out, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
