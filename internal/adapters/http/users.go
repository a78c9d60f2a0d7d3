package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/domain"
)

type onlineUserResponse struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
	Login    string        `json:"login"`
	Role     string        `json:"role"`
	InCall   bool          `json:"inCall"`
}

// OnlineUsers lists everyone currently connected to the signaling
// relay, excluding the caller, enriched with stored profile data and
// the live in-call flag.
func (api *API) OnlineUsers(c *gin.Context) {
	currentLogin := c.GetString("login")

	ids := api.Presence.OnlineUserIDs()
	users, err := api.Users.FindByIDs(c.Request.Context(), ids)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("online users lookup")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	out := make([]onlineUserResponse, 0, len(users))
	for _, u := range users {
		if u.Login == currentLogin {
			continue
		}
		out = append(out, onlineUserResponse{
			ID:       u.ID,
			Username: u.Username,
			Login:    u.Login,
			Role:     string(u.Role),
			InCall:   api.Presence.InCall(u.ID),
		})
	}
	c.JSON(http.StatusOK, out)
}
