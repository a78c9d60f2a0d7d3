package core

import (
	"context"

	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/domain"
)

// Frame is a raw serialized signaling message.
type Frame []byte

// SignalConnection abstracts the per-user messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Presence is the read-only view the HTTP layer gets of the signaling
// core: who is connected right now and who is busy in a call.
type Presence interface {
	OnlineUserIDs() []domain.UserID
	InCall(domain.UserID) bool
}

// UserDirectory resolves user identifiers to stored profiles. The core
// never verifies credentials itself; it only looks profiles up to
// enrich presence messages.
type UserDirectory interface {
	FindByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	FindByIDs(ctx context.Context, ids []domain.UserID) ([]domain.User, error)
	FindByLogin(ctx context.Context, login string) (*domain.User, error)
}

// EventSink receives presence and call-state changes for out-of-process
// consumers. Implementations must not block the caller on delivery.
type EventSink interface {
	Publish(event string, payload any)
}
