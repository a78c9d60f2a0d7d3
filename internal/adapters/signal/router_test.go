package signal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/app"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/core"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	cp := make(core.Frame, len(f))
	copy(cp, f)
	c.frames = append(c.frames, cp)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) messages(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("received non-JSON frame %q: %v", f, err)
		}
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) byType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range c.messages(t) {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

type fakeDirectory struct {
	users map[domain.UserID]*domain.User
}

func (d *fakeDirectory) FindByID(_ context.Context, id domain.UserID) (*domain.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

func (d *fakeDirectory) FindByIDs(_ context.Context, ids []domain.UserID) ([]domain.User, error) {
	var out []domain.User
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (d *fakeDirectory) FindByLogin(_ context.Context, login string) (*domain.User, error) {
	for _, u := range d.users {
		if u.Login == login {
			return u, nil
		}
	}
	return nil, errors.New("user not found")
}

func newTestController() *Controller {
	dir := &fakeDirectory{users: map[domain.UserID]*domain.User{
		1: {ID: 1, Username: "alice", Login: "alice@example.com"},
		2: {ID: 2, Username: "bob", Login: "bob@example.com"},
		3: {ID: 3, Username: "carol", Login: "carol@example.com"},
	}}
	return NewController(app.NewRegistry(), app.NewCallState(), dir, nil, 0, 54*time.Second)
}

func connect(ctl *Controller, id domain.UserID) *fakeConn {
	c := &fakeConn{}
	ctl.onConnected(context.Background(), id, c)
	return c
}

func TestConnectSnapshotAndAnnounce(t *testing.T) {
	ctl := newTestController()

	c1 := connect(ctl, 1)
	c2 := connect(ctl, 2)

	// The newcomer gets a private snapshot of everyone online.
	snaps := c2.byType(t, "connection-success")
	if len(snaps) != 1 {
		t.Fatalf("expected one connection-success, got %d", len(snaps))
	}
	if snaps[0]["myId"] != float64(2) {
		t.Fatalf("myId = %v, want 2", snaps[0]["myId"])
	}
	users, ok := snaps[0]["users"].([]any)
	if !ok || len(users) != 2 {
		t.Fatalf("snapshot users = %v, want both online users", snaps[0]["users"])
	}
	first := users[0].(map[string]any)
	if first["id"] != float64(1) || first["username"] != "alice" || first["inCall"] != false {
		t.Fatalf("unexpected snapshot entry: %v", first)
	}

	// Everyone else is told about the arrival; the newcomer is not.
	arrivals := c1.byType(t, "user-connected")
	if len(arrivals) != 1 || arrivals[0]["userId"] != float64(2) || arrivals[0]["username"] != "bob" {
		t.Fatalf("unexpected arrival broadcast: %v", arrivals)
	}
	if got := c2.byType(t, "user-connected"); len(got) != 0 {
		t.Fatalf("newcomer must not receive its own arrival, got %v", got)
	}

	// Presence view matches the live connections.
	ids := ctl.OnlineUserIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 online ids, got %v", ids)
	}
}

// The full happy path of §call flow: offer, status broadcasts, answer,
// then disconnect mid-call.
func TestCallFlowScenario(t *testing.T) {
	ctl := newTestController()
	c1 := connect(ctl, 1)
	c2 := connect(ctl, 2)
	c1.reset()
	c2.reset()

	ctl.handleFrame(1, c1, []byte(`{"type":"call-user","to":2,"offer":"X"}`))

	made := c2.byType(t, "call-made")
	if len(made) != 1 || made[0]["offer"] != "X" || made[0]["from"] != float64(1) {
		t.Fatalf("unexpected call-made: %v", made)
	}
	for _, c := range []*fakeConn{c1, c2} {
		changes := c.byType(t, "user-in-call-status-changed")
		if len(changes) != 2 {
			t.Fatalf("expected 2 status broadcasts, got %v", changes)
		}
		for _, ch := range changes {
			if ch["inCall"] != true {
				t.Fatalf("expected inCall=true, got %v", ch)
			}
		}
	}
	if !ctl.InCall(1) || !ctl.InCall(2) {
		t.Fatal("both users must be in call")
	}

	// The recipient answers; `to` as a numeric string must work too.
	c1.reset()
	ctl.handleFrame(2, c2, []byte(`{"type":"make-answer","to":"1","answer":"Y"}`))
	answers := c1.byType(t, "answer-made")
	if len(answers) != 1 || answers[0]["answer"] != "Y" || answers[0]["from"] != float64(2) {
		t.Fatalf("unexpected answer-made: %v", answers)
	}

	// ICE candidates flow both ways between the paired users.
	c2.reset()
	ctl.handleFrame(1, c1, []byte(`{"type":"ice-candidate","to":2,"candidate":{"sdpMid":"0"}}`))
	cands := c2.byType(t, "ice-candidate")
	if len(cands) != 1 || cands[0]["from"] != float64(1) {
		t.Fatalf("unexpected ice-candidate: %v", cands)
	}

	// Caller disconnects mid-call: the peer gets exactly one hang-up
	// and both in-call flags flip back.
	c2.reset()
	ctl.onDisconnected(1, c1)

	hangs := c2.byType(t, "hang-up")
	if len(hangs) != 1 || hangs[0]["from"] != float64(1) {
		t.Fatalf("unexpected hang-up: %v", hangs)
	}
	changes := c2.byType(t, "user-in-call-status-changed")
	if len(changes) != 2 {
		t.Fatalf("expected status broadcasts for both parties, got %v", changes)
	}
	for _, ch := range changes {
		if ch["inCall"] != false {
			t.Fatalf("expected inCall=false, got %v", ch)
		}
	}
	if ctl.InCall(2) {
		t.Fatal("remaining peer must be idle after the disconnect")
	}
	gone := c2.byType(t, "user-disconnected")
	if len(gone) != 1 || gone[0]["userId"] != float64(1) {
		t.Fatalf("unexpected user-disconnected: %v", gone)
	}
	if len(ctl.OnlineUserIDs()) != 1 {
		t.Fatal("only user 2 should remain online")
	}
}

func TestCallUserBusyRecipient(t *testing.T) {
	ctl := newTestController()
	c1 := connect(ctl, 1)
	c2 := connect(ctl, 2)
	c3 := connect(ctl, 3)
	ctl.handleFrame(1, c1, []byte(`{"type":"call-user","to":2,"offer":"X"}`))
	c1.reset()
	c2.reset()
	c3.reset()

	ctl.handleFrame(3, c3, []byte(`{"type":"call-user","to":2,"offer":"Z"}`))

	rejected := c3.byType(t, "call-rejected")
	if len(rejected) != 1 || rejected[0]["reason"] != "User is already in a call." {
		t.Fatalf("expected exactly one call-rejected to the caller, got %v", rejected)
	}
	if got := c2.messages(t); len(got) != 0 {
		t.Fatalf("busy recipient must receive nothing, got %v", got)
	}
	if p, _ := ctl.calls.PeerOf(2); p != 1 {
		t.Fatal("existing pairing must be untouched")
	}
	if ctl.InCall(3) {
		t.Fatal("rejected caller must stay idle")
	}
}

func TestCallUserBusyCaller(t *testing.T) {
	ctl := newTestController()
	c1 := connect(ctl, 1)
	c2 := connect(ctl, 2)
	c3 := connect(ctl, 3)
	ctl.handleFrame(1, c1, []byte(`{"type":"call-user","to":2,"offer":"X"}`))
	c1.reset()
	c2.reset()
	c3.reset()

	ctl.handleFrame(1, c1, []byte(`{"type":"call-user","to":3,"offer":"W"}`))

	if got := c3.byType(t, "call-made"); len(got) != 0 {
		t.Fatalf("no offer may be forwarded for a busy caller, got %v", got)
	}
	rejected := c1.byType(t, "call-rejected")
	if len(rejected) != 1 || rejected[0]["reason"] != "You are already in a call." {
		t.Fatalf("busy caller must be rejected as the busy side, got %v", rejected)
	}
	if ctl.InCall(3) {
		t.Fatal("user 3 must stay idle")
	}
	if p, _ := ctl.calls.PeerOf(2); p != 1 {
		t.Fatal("the original pairing must be untouched")
	}
}

func TestAnswerFromUnpairedSenderDropped(t *testing.T) {
	ctl := newTestController()
	c1 := connect(ctl, 1)
	c2 := connect(ctl, 2)
	c3 := connect(ctl, 3)
	ctl.handleFrame(1, c1, []byte(`{"type":"call-user","to":2,"offer":"X"}`))
	c1.reset()
	c2.reset()

	// Carol was never part of the call.
	ctl.handleFrame(3, c3, []byte(`{"type":"make-answer","to":1,"answer":"EVIL"}`))
	if got := c1.byType(t, "answer-made"); len(got) != 0 {
		t.Fatalf("answer from an unpaired sender must not be forwarded, got %v", got)
	}

	// Paired, but with someone else than the stated recipient.
	ctl.handleFrame(2, c2, []byte(`{"type":"make-answer","to":3,"answer":"MISROUTED"}`))
	if got := c3.byType(t, "answer-made"); len(got) != 0 {
		t.Fatalf("answer to a non-peer must not be forwarded, got %v", got)
	}
}

func TestCandidateFromUnpairedSenderDropped(t *testing.T) {
	ctl := newTestController()
	c1 := connect(ctl, 1)
	c3 := connect(ctl, 3)
	c1.reset()

	ctl.handleFrame(3, c3, []byte(`{"type":"ice-candidate","to":1,"candidate":"c"}`))
	if got := c1.byType(t, "ice-candidate"); len(got) != 0 {
		t.Fatalf("candidate from an unpaired sender must not be forwarded, got %v", got)
	}
}

func TestAddressingErrors(t *testing.T) {
	ctl := newTestController()
	c1 := connect(ctl, 1)
	c1.reset()

	// Missing `to`.
	ctl.handleFrame(1, c1, []byte(`{"type":"call-user","offer":"X"}`))
	if len(c1.byType(t, "error")) != 1 {
		t.Fatal("missing 'to' must yield an error to the sender")
	}

	// Unparsable `to`.
	c1.reset()
	ctl.handleFrame(1, c1, []byte(`{"type":"call-user","to":"not-a-number"}`))
	if len(c1.byType(t, "error")) != 1 {
		t.Fatal("unparsable 'to' must yield an error to the sender")
	}

	// Recipient offline.
	c1.reset()
	ctl.handleFrame(1, c1, []byte(`{"type":"call-user","to":99,"offer":"X"}`))
	errs := c1.byType(t, "error")
	if len(errs) != 1 {
		t.Fatal("offline recipient must yield an error to the sender")
	}
	if ctl.InCall(1) {
		t.Fatal("addressing errors must not change state")
	}
}

func TestUnknownTypeSilentlyIgnored(t *testing.T) {
	ctl := newTestController()
	c1 := connect(ctl, 1)
	c2 := connect(ctl, 2)
	c1.reset()
	c2.reset()

	ctl.handleFrame(1, c1, []byte(`{"type":"dance","to":2}`))

	if got := c1.messages(t); len(got) != 0 {
		t.Fatalf("unknown type must not produce a response, got %v", got)
	}
	if got := c2.messages(t); len(got) != 0 {
		t.Fatalf("unknown type must not be forwarded, got %v", got)
	}
}

func TestMalformedFrameDropped(t *testing.T) {
	ctl := newTestController()
	c1 := connect(ctl, 1)
	c1.reset()

	ctl.handleFrame(1, c1, []byte(`{not json`))

	if got := c1.messages(t); len(got) != 0 {
		t.Fatalf("malformed frame must be dropped silently, got %v", got)
	}
	if len(ctl.OnlineUserIDs()) != 1 {
		t.Fatal("connection must survive a malformed frame")
	}
}

func TestHangUpTearsDownBothSides(t *testing.T) {
	ctl := newTestController()
	c1 := connect(ctl, 1)
	c2 := connect(ctl, 2)
	ctl.handleFrame(1, c1, []byte(`{"type":"call-user","to":2,"offer":"X"}`))
	c1.reset()
	c2.reset()

	// Only one side hangs up; both sides end idle.
	ctl.handleFrame(2, c2, []byte(`{"type":"hang-up","to":1}`))

	hangs := c1.byType(t, "hang-up")
	if len(hangs) != 1 || hangs[0]["from"] != float64(2) {
		t.Fatalf("unexpected hang-up: %v", hangs)
	}
	if ctl.InCall(1) || ctl.InCall(2) {
		t.Fatal("both users must be idle after hang-up")
	}
	if _, ok := ctl.calls.PeerOf(1); ok {
		t.Fatal("no peer link may remain")
	}
}

// A reconnect while paired abandons the call: the former peer gets a
// hang-up, both sides end idle and no half-open peer link survives.
func TestReconnectWhilePairedHangsUpPeer(t *testing.T) {
	ctl := newTestController()
	old := connect(ctl, 1)
	c2 := connect(ctl, 2)
	ctl.handleFrame(1, old, []byte(`{"type":"call-user","to":2,"offer":"X"}`))
	c2.reset()

	replacement := connect(ctl, 1)

	hangs := c2.byType(t, "hang-up")
	if len(hangs) != 1 || hangs[0]["from"] != float64(1) {
		t.Fatalf("former peer must get exactly one hang-up, got %v", hangs)
	}
	changes := c2.byType(t, "user-in-call-status-changed")
	if len(changes) != 2 {
		t.Fatalf("expected status broadcasts for both parties, got %v", changes)
	}
	for _, ch := range changes {
		if ch["inCall"] != false {
			t.Fatalf("expected inCall=false, got %v", ch)
		}
	}
	if ctl.InCall(1) || ctl.InCall(2) {
		t.Fatal("both users must be idle after the reconnect")
	}
	if _, ok := ctl.calls.PeerOf(2); ok {
		t.Fatal("no peer link may survive the reconnect")
	}

	// The replaced connection's close must not disturb the new session.
	replacement.reset()
	c2.reset()
	ctl.onDisconnected(1, old)
	if _, ok := ctl.registry.Get(1); !ok {
		t.Fatal("replacement connection must survive the stale close")
	}
	if got := c2.messages(t); len(got) != 0 {
		t.Fatalf("stale close must produce no traffic, got %v", got)
	}
}

// A connection replaced by a reconnect must not tear down its
// successor when it finally closes.
func TestStaleConnectionCloseKeepsSuccessor(t *testing.T) {
	ctl := newTestController()
	old := connect(ctl, 1)
	replacement := connect(ctl, 1)

	ctl.onDisconnected(1, old)

	if _, ok := ctl.registry.Get(1); !ok {
		t.Fatal("replacement connection must survive the stale close")
	}
	if got := replacement.byType(t, "user-disconnected"); len(got) != 0 {
		t.Fatalf("stale close must not announce a departure, got %v", got)
	}
}

// A zero ping period means pings are disabled, not a crashed pump.
func TestWritePumpPingsDisabled(t *testing.T) {
	ctl := NewController(app.NewRegistry(), app.NewCallState(), &fakeDirectory{}, nil, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &wsConn{userID: 1, send: make(chan core.Frame, 1)}
	done := make(chan struct{})
	go func() {
		ctl.writePump(ctx, func() {}, c)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writePump did not exit on a cancelled context")
	}
}
