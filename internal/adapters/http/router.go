// Package http exposes the REST API (auth, online users) and the
// authenticated WebSocket upgrade endpoint.
package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/adapters/signal"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/auth"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/config"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/core"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/domain"
)

// UserStore is what the API needs from persistence.
type UserStore interface {
	core.UserDirectory
	CreateUser(ctx context.Context, u *domain.User) (*domain.User, error)
	SaveTwoFactor(ctx context.Context, u *domain.User) error
}

type API struct {
	Users    UserStore
	Tokens   *auth.TokenService
	Mailer   auth.Mailer
	Presence core.Presence
}

func SetupRouter(ctx context.Context, cfg *config.Config, api *API, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	authGroup := r.Group("/api/auth")
	authGroup.POST("/register", api.Register)
	authGroup.POST("/login", api.Login)
	authGroup.POST("/verify-2fa", api.VerifyTwoFactor)

	private := authGroup.Group("")
	private.Use(api.RequireAuth())
	private.POST("/toggle-2fa", api.ToggleTwoFactor)
	private.GET("/users/online", api.OnlineUsers)

	r.GET("/api/ws", api.AuthenticateHandshake(), func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	return r
}

// resolveToken validates a bearer token and loads the matching account.
func (api *API) resolveToken(c *gin.Context, token string) (*domain.User, bool) {
	login, err := api.Tokens.Verify(token)
	if err != nil {
		return nil, false
	}
	user, err := api.Users.FindByLogin(c.Request.Context(), login)
	if err != nil {
		return nil, false
	}
	return user, true
}

// RequireAuth guards the private REST endpoints.
func (api *API) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		user, ok := api.resolveToken(c, token)
		if !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set("login", user.Login)
		c.Set("user_id", int64(user.ID))
		c.Next()
	}
}

// AuthenticateHandshake guards the WebSocket upgrade. Browsers cannot
// set headers on a WebSocket request, so the token is also accepted as
// a query parameter. An unauthenticated handshake is rejected here and
// never reaches the signaling core.
func (api *API) AuthenticateHandshake() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		user, ok := api.resolveToken(c, token)
		if !ok {
			log.Warn().Str("module", "adapters.http").Msg("ws handshake rejected")
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set("login", user.Login)
		c.Set("user_id", int64(user.ID))
		c.Next()
	}
}
