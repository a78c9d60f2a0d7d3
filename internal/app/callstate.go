package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/domain"
)

type callPhase int

const (
	phaseIdle callPhase = iota
	phaseInCall
)

// callRecord is the explicit per-user call state. The peer field is set
// iff phase is phaseInCall, so the boolean "in call" view and the peer
// table can never disagree.
type callRecord struct {
	phase callPhase
	peer  domain.UserID
}

// CallState tracks which users are currently in a call and with whom.
// Peer links are symmetric: pairing and unpairing always mutate both
// directions under one lock, so no caller can observe a dangling half.
type CallState struct {
	mu    sync.Mutex
	users map[domain.UserID]callRecord
}

func NewCallState() *CallState {
	return &CallState{users: make(map[domain.UserID]callRecord)}
}

// InCall reports whether id is currently in a call; false for unknown ids.
func (s *CallState) InCall(id domain.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].phase == phaseInCall
}

// Reset marks id idle and drops any peer field. In-call state can only
// be entered through Pair, so a peerless in-call record cannot exist.
func (s *CallState) Reset(id domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = callRecord{}
}

// Pair links a and b as call partners and marks both in-call, as a
// single atomic step. Returns false without touching anything if either
// side is already paired; callers must check first.
func (s *CallState) Pair(a, b domain.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users[a].phase == phaseInCall || s.users[b].phase == phaseInCall {
		return false
	}
	s.users[a] = callRecord{phase: phaseInCall, peer: b}
	s.users[b] = callRecord{phase: phaseInCall, peer: a}
	log.Info().Str("module", "app.callstate").
		Int64("user_id", int64(a)).Int64("peer_id", int64(b)).Msg("paired")
	return true
}

// Unpair removes both directions of id's peer link and resets both
// users to idle. Returns the former peer so the caller can notify it.
func (s *CallState) Unpair(id domain.UserID) (domain.UserID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.users[id]
	if rec.phase != phaseInCall {
		return 0, false
	}
	peer := rec.peer
	s.users[id] = callRecord{}
	s.users[peer] = callRecord{}
	log.Info().Str("module", "app.callstate").
		Int64("user_id", int64(id)).Int64("peer_id", int64(peer)).Msg("unpaired")
	return peer, true
}

// PeerOf returns the current call partner of id, if any.
func (s *CallState) PeerOf(id domain.UserID) (domain.UserID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.users[id]
	if rec.phase != phaseInCall {
		return 0, false
	}
	return rec.peer, true
}

// Drop forgets id entirely. Used on disconnect, after Unpair.
func (s *CallState) Drop(id domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}
