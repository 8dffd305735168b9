package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/reimii/meetup-server/internal/auth"
	"github.com/reimii/meetup-server/internal/config"
	"github.com/reimii/meetup-server/internal/relay"
	"github.com/reimii/meetup-server/internal/store"
)

// NewServer builds the HTTP server: REST API plus the WebSocket gateway.
func NewServer(cfg config.Config, authService *auth.Service, st store.Store, registry *relay.Registry, bridge Upstream, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(authService, st, logger)
	meetingHandlers := NewMeetingHandlers(st, logger)
	wsHandler := NewWSHandler(authService, registry, bridge, cfg.WSMessagesPerMinute, logger)
	presenceHandlers := NewPresenceHandlers(registry, wsHandler)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	authed := api.Group("")
	authed.Use(AuthMiddleware(authService, logger))
	authed.GET("/me", apiHandlers.Me)
	authed.POST("/meetings", meetingHandlers.CreateMeeting)
	authed.GET("/meetings/today", meetingHandlers.TodayMeetings)
	authed.GET("/meetings/next", meetingHandlers.NextMeeting)
	authed.GET("/presence", presenceHandlers.Presence)

	router.GET("/ws", gin.WrapH(wsHandler))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
