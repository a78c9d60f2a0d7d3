package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/auth"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/domain"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/storage"
)

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

type userResponse struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
	Login    string        `json:"login"`
	Role     string        `json:"role"`
	Token    string        `json:"token"`
}

func (api *API) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not hash password"})
		return
	}

	user, err := domain.NewUser(req.Username, req.Login, hash, domain.RoleBase)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err = api.Users.CreateUser(c.Request.Context(), user)
	if errors.Is(err, storage.ErrLoginTaken) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User with this login already exists"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("register")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	token, err := api.Tokens.Generate(user.Login)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	c.JSON(http.StatusOK, userResponse{
		ID:       user.ID,
		Username: user.Username,
		Login:    user.Login,
		Role:     string(user.Role),
		Token:    token,
	})
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Message string  `json:"message"`
	Token   *string `json:"token"`
}

func (api *API) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := api.Users.FindByLogin(c.Request.Context(), req.Login)
	if err != nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	if user.TwoFactorEnabled {
		code := auth.GenerateTwoFactorCode(user, time.Now())
		if err := api.Users.SaveTwoFactor(c.Request.Context(), user); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("save 2fa code")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
		// Delivery failure keeps the login flow alive; the user can
		// retry and a fresh code overwrites this one.
		if err := api.Mailer.SendTwoFactorCode(user.Login, code); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Str("login", user.Login).Msg("send 2fa code")
		}
		c.JSON(http.StatusOK, loginResponse{Message: "2FA_REQUIRED"})
		return
	}

	token, err := api.Tokens.Generate(user.Login)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, loginResponse{Message: "Authentication successful", Token: &token})
}

type verifyTwoFactorRequest struct {
	Login string `json:"login" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

func (api *API) VerifyTwoFactor(c *gin.Context) {
	var req verifyTwoFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := api.Users.FindByLogin(c.Request.Context(), req.Login)
	if err != nil || !auth.TwoFactorCodeValid(user, req.Code, time.Now()) {
		c.JSON(http.StatusUnauthorized, loginResponse{Message: "Invalid 2FA code"})
		return
	}

	auth.ClearTwoFactorCode(user)
	if err := api.Users.SaveTwoFactor(c.Request.Context(), user); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("clear 2fa code")
	}

	token, err := api.Tokens.Generate(user.Login)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, loginResponse{Message: "Authentication successful", Token: &token})
}

type twoFactorResponse struct {
	Message          string `json:"message"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
}

func (api *API) ToggleTwoFactor(c *gin.Context) {
	user, err := api.Users.FindByLogin(c.Request.Context(), c.GetString("login"))
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	user.TwoFactorEnabled = !user.TwoFactorEnabled
	if !user.TwoFactorEnabled {
		auth.ClearTwoFactorCode(user)
	}
	if err := api.Users.SaveTwoFactor(c.Request.Context(), user); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("toggle 2fa")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	message := "Two-factor authentication has been disabled"
	if user.TwoFactorEnabled {
		message = "Two-factor authentication has been enabled"
	}
	c.JSON(http.StatusOK, twoFactorResponse{Message: message, TwoFactorEnabled: user.TwoFactorEnabled})
}
