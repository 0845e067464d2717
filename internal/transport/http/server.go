package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/orgchat/orgchat-server/internal/auth"
	"github.com/orgchat/orgchat-server/internal/config"
	"github.com/orgchat/orgchat-server/internal/core"
	"github.com/orgchat/orgchat-server/internal/store"
)

// NewServer builds the HTTP server: health, auth, channel administration
// and the websocket endpoint.
func NewServer(hub *core.Hub, gate *auth.Gate, authService *auth.Service, jwtConfig *auth.JWTConfig, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	authHandlers := NewAuthHandlers(authService, logger)
	router.POST("/api/auth/register", authHandlers.Register)
	router.POST("/api/auth/login", authHandlers.Login)

	channelHandlers := NewChannelHandlers(st, logger)
	api := router.Group("/api", AuthMiddleware(jwtConfig, logger))
	api.GET("/channels", channelHandlers.ListChannels)
	api.POST("/channels", channelHandlers.CreateChannel)
	members := api.Group("/channels/:id/members", RequireAdmin())
	members.POST("", channelHandlers.AddMember)
	members.DELETE("", channelHandlers.RemoveMember)

	wsHandler := NewWSHandler(hub, gate, cfg.IdleTimeout, cfg.PingInterval, cfg.SocketRateLimit, logger)
	router.GET("/ws", wsHandler.Handle)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
