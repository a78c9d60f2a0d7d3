package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/core"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/domain"
)

// handleCallUser starts a call: it pairs caller and recipient, tells
// everyone both are now busy and forwards the SDP offer. A busy
// recipient yields exactly one call-rejected to the caller and no state
// change.
func (ctl *Controller) handleCallUser(from, to domain.UserID, src, dst core.SignalConnection, env *envelope) {
	if ctl.calls.InCall(to) {
		ctl.sendJSON(src, callRejected{Type: msgCallRejected, Reason: "User is already in a call."})
		return
	}
	if !ctl.calls.Pair(from, to) {
		// Either side may have been paired since the check above, the
		// recipient by a concurrent call-user. Report the busy side.
		reason := "User is already in a call."
		if ctl.calls.InCall(from) {
			reason = "You are already in a call."
		}
		log.Warn().Str("module", "signal").
			Int64("user_id", int64(from)).Int64("to", int64(to)).Msg("call-user refused, side already paired")
		ctl.sendJSON(src, callRejected{Type: msgCallRejected, Reason: reason})
		return
	}

	ctl.broadcastCallStatus(from, true)
	ctl.broadcastCallStatus(to, true)

	ctl.sendJSON(dst, callMade{Type: msgCallMade, Offer: env.Offer, From: from})
}

// handleMakeAnswer forwards the SDP answer, but only between users that
// are currently paired with each other. Anything else is dropped; this
// is the guard against message injection between unrelated parties.
func (ctl *Controller) handleMakeAnswer(from, to domain.UserID, dst core.SignalConnection, env *envelope) {
	if !ctl.pairedWith(from, to) {
		log.Warn().Str("module", "signal").
			Int64("user_id", int64(from)).Int64("to", int64(to)).Msg("answer from unpaired sender")
		return
	}
	ctl.sendJSON(dst, answerMade{Type: msgAnswerMade, Answer: env.Answer, From: from})
}

// handleICECandidate forwards a connectivity candidate under the same
// pairing guard as handleMakeAnswer.
func (ctl *Controller) handleICECandidate(from, to domain.UserID, dst core.SignalConnection, env *envelope) {
	if !ctl.pairedWith(from, to) {
		log.Warn().Str("module", "signal").
			Int64("user_id", int64(from)).Int64("to", int64(to)).Msg("candidate from unpaired sender")
		return
	}
	ctl.sendJSON(dst, iceCandidate{Type: msgICECandidate, Candidate: env.Candidate, From: from})
}

// handleHangUp ends the caller's call, if any, resets both sides and
// notifies the named recipient. One hang-up from either side is enough
// to tear the whole link down.
func (ctl *Controller) handleHangUp(from, to domain.UserID, dst core.SignalConnection) {
	peer, ok := ctl.calls.Unpair(from)

	ctl.broadcastCallStatus(from, false)
	if ok {
		ctl.broadcastCallStatus(peer, false)
	}

	ctl.sendJSON(dst, hangUp{Type: msgHangUp, From: from})
}

func (ctl *Controller) pairedWith(from, to domain.UserID) bool {
	peer, ok := ctl.calls.PeerOf(from)
	return ok && peer == to
}
