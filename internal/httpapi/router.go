package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/estate-chat/internal/common"
	"github.com/suPer8Hu/estate-chat/internal/config"
	"github.com/suPer8Hu/estate-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/estate-chat/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler, cfg config.Config, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(log))
	r.Use(cors.New(corsConfig(cfg.CORSAllowOrigins)))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// auth
	r.POST("/login", h.Login)

	// Conversations (anonymous allowed, bearer token optional)
	conv := r.Group("/conversations")
	conv.Use(middleware.OptionalAuth(cfg.JWTSecret))
	conv.POST("/start", h.StartConversation)
	conv.GET("/:token", h.GetConversation)
	conv.GET("/:token/messages", h.ListMessages)
	conv.POST("/:token/messages", h.SendMessage)
	conv.POST("/:token/read", h.MarkRead)
	conv.GET("/:token/ws", h.Subscribe)

	admin := conv.Group("")
	admin.Use(middleware.AuthRequired(cfg.JWTSecret), middleware.AdminRequired())
	admin.POST("/:token/close", h.CloseConversation)

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
