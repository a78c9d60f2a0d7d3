package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/core"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/domain"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, cancel context.CancelFunc, c *wsConn) {
	defer cancel()

	// A non-positive ping period disables pings; a nil channel never fires.
	var pings <-chan time.Time
	if ctl.pingPeriod > 0 {
		pingTicker := time.NewTicker(ctl.pingPeriod)
		defer pingTicker.Stop()
		pings = pingTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-pings:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Int64("user_id", int64(c.userID)).Msg("readPump closing")
		cancel()
		ctl.onDisconnected(c.userID, c)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Int64("user_id", int64(c.userID)).Msg("readPump read error")
				return
			}
			ctl.handleFrame(c.userID, c, data)
		}
	}
}

// handleFrame decodes one inbound envelope and dispatches it. A bad
// frame is logged and dropped; it never terminates the connection.
func (ctl *Controller) handleFrame(from domain.UserID, src core.SignalConnection, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Int64("user_id", int64(from)).Msg("bad json")
		return
	}

	to, ok := env.recipientID()
	if !ok {
		log.Warn().Str("module", "signal").Int64("user_id", int64(from)).Msg("recipient user id ('to') missing or invalid")
		ctl.sendJSON(src, errorMessage{Type: msgError, Message: "Recipient user id ('to') is missing or invalid."})
		return
	}

	dst, online := ctl.registry.Get(to)
	if !online {
		log.Warn().Str("module", "signal").Int64("to", int64(to)).Msg("recipient not online")
		ctl.sendJSON(src, errorMessage{Type: msgError, Message: "User " + to.String() + " is not online."})
		return
	}

	switch env.Type {
	case msgCallUser:
		ctl.handleCallUser(from, to, src, dst, &env)
	case msgMakeAnswer:
		ctl.handleMakeAnswer(from, to, dst, &env)
	case msgICECandidate:
		ctl.handleICECandidate(from, to, dst, &env)
	case msgHangUp:
		ctl.handleHangUp(from, to, dst)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(c core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("send dropped")
	}
}

// broadcastAll delivers v to every registered connection. Failures are
// isolated per connection and logged, never raised.
func (ctl *Controller) broadcastAll(v any) {
	ctl.broadcastExcept(0, v)
}

// broadcastExcept delivers v to every registered connection except skip.
// Zero is never a valid user id, so broadcastExcept(0, v) reaches all.
func (ctl *Controller) broadcastExcept(skip domain.UserID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("broadcast marshal")
		return
	}
	for _, snap := range ctl.registry.Snapshot() {
		if snap.ID == skip {
			continue
		}
		if err := snap.Conn.TrySend(b); err != nil {
			log.Warn().Err(err).Str("module", "signal").Int64("user_id", int64(snap.ID)).Msg("broadcast dropped")
		}
	}
}

// broadcastCallStatus announces an in-call flag change to everyone and
// mirrors it to the event sink.
func (ctl *Controller) broadcastCallStatus(id domain.UserID, inCall bool) {
	msg := callStatusChanged{Type: msgInCallStatusChanged, UserID: id, InCall: inCall}
	ctl.broadcastAll(msg)
	ctl.publish(msgInCallStatusChanged, msg)
}

func (ctl *Controller) publish(event string, payload any) {
	if ctl.events == nil {
		return
	}
	ctl.events.Publish(event, payload)
}
