package http

import (
	"context"
	"time"

	"github.com/dkeye/WatchParty/internal/app"
	"github.com/dkeye/WatchParty/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	clientTokenCookie = "ct"
	clientTokenKey    = "client_token"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(clientTokenCookie)
		if token == "" {
			token = genClientToken()
			c.SetCookie(clientTokenCookie, token, 3600*24*7, "/", "", false, true)
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

func clientToken(c *gin.Context) app.ClientToken {
	return app.ClientToken(c.GetString(clientTokenKey))
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("WatchPartySessions", store))
	r.Use(ClientTokenMiddleware())

	index := func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	}
	r.Static("/static", cfg.StaticPath)
	r.GET("/", index)
	r.GET("/room/:roomID", index)

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	entry := &EntryController{Orch: orch}
	api := r.Group("/api")
	api.GET("/entry", entry.HandleView)
	api.GET("/ready", entry.HandleReady)
	api.POST("/rooms", entry.HandleCreate)
	api.POST("/rooms/join", entry.HandleJoin)

	interval := cfg.SendRateInterval
	if interval <= 0 {
		interval = time.Second
	}
	rooms := NewRoomWSController(orch, NewSendRateLimiter(cfg.SendRateLimit, interval), cfg.ReadLimit)
	r.GET("/ws/room/:roomID", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("token", c.GetString(clientTokenKey)).Msg("ws room endpoint hit")
		rooms.HandleRoom(ctx, c)
	})

	return r
}
