package signal

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/core"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/domain"
)

// onConnected registers the connection, sends the newcomer a private
// snapshot of everyone online and announces the arrival to the rest.
func (ctl *Controller) onConnected(ctx context.Context, uid domain.UserID, conn core.SignalConnection) {
	// A reconnect while paired abandons the old call. The former peer is
	// hung up and both sides announced idle before the new connection
	// takes over; the replaced connection's close is then a stale no-op.
	if peer, ok := ctl.calls.Unpair(uid); ok {
		if peerConn, online := ctl.registry.Get(peer); online {
			ctl.sendJSON(peerConn, hangUp{Type: msgHangUp, From: uid})
		}
		ctl.broadcastCallStatus(uid, false)
		ctl.broadcastCallStatus(peer, false)
	}

	ctl.registry.Register(uid, conn)
	ctl.calls.Reset(uid)

	ids := ctl.registry.IDs()
	users, err := ctl.users.FindByIDs(ctx, ids)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("snapshot lookup")
	}
	snapshot := make([]onlineUser, 0, len(users))
	for _, u := range users {
		snapshot = append(snapshot, onlineUser{
			ID:       u.ID,
			Username: u.Username,
			InCall:   ctl.calls.InCall(u.ID),
		})
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID < snapshot[j].ID })

	ctl.sendJSON(conn, connectionSuccess{Type: msgConnectionSuccess, Users: snapshot, MyID: uid})

	username := ""
	if u, err := ctl.users.FindByID(ctx, uid); err == nil {
		username = u.Username
	}
	arrival := userConnected{Type: msgUserConnected, UserID: uid, Username: username}
	ctl.broadcastExcept(uid, arrival)
	ctl.publish(msgUserConnected, arrival)

	log.Info().Str("module", "signal").Int64("user_id", int64(uid)).Msg("connected")
}

// onDisconnected tears the user down: hang up any live call, notify the
// former peer, drop the registration and announce the departure.
//
// A connection replaced by a newer one for the same user id must not
// tear that newer connection's state down, so teardown only runs when
// conn is still the registered connection.
func (ctl *Controller) onDisconnected(uid domain.UserID, conn core.SignalConnection) {
	if cur, ok := ctl.registry.Get(uid); !ok || cur != conn {
		log.Info().Str("module", "signal").Int64("user_id", int64(uid)).Msg("stale connection closed")
		return
	}

	if peer, ok := ctl.calls.Unpair(uid); ok {
		if peerConn, online := ctl.registry.Get(peer); online {
			ctl.sendJSON(peerConn, hangUp{Type: msgHangUp, From: uid})
		}
		ctl.broadcastCallStatus(uid, false)
		ctl.broadcastCallStatus(peer, false)
	}

	ctl.registry.Unregister(uid)
	ctl.calls.Drop(uid)

	departure := userDisconnected{Type: msgUserDisconnected, UserID: uid}
	ctl.broadcastAll(departure)
	ctl.publish(msgUserDisconnected, departure)

	log.Info().Str("module", "signal").Int64("user_id", int64(uid)).Msg("disconnected")
}
