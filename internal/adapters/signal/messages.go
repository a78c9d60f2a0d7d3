package signal

import (
	"encoding/json"
	"strconv"

	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/domain"
)

// Wire message types. The four on the left arrive from clients; the
// rest are produced by the relay.
const (
	msgCallUser     = "call-user"
	msgMakeAnswer   = "make-answer"
	msgICECandidate = "ice-candidate"
	msgHangUp       = "hang-up"

	msgConnectionSuccess   = "connection-success"
	msgUserConnected       = "user-connected"
	msgUserDisconnected    = "user-disconnected"
	msgInCallStatusChanged = "user-in-call-status-changed"
	msgCallMade            = "call-made"
	msgCallRejected        = "call-rejected"
	msgAnswerMade          = "answer-made"
	msgError               = "error"
)

// envelope is the inbound frame shape. The SDP and ICE payloads are
// opaque to the relay and forwarded verbatim.
type envelope struct {
	Type      string          `json:"type"`
	To        json.RawMessage `json:"to"`
	Offer     json.RawMessage `json:"offer"`
	Answer    json.RawMessage `json:"answer"`
	Candidate json.RawMessage `json:"candidate"`
}

// recipientID parses the `to` field, which clients send either as a
// JSON number or as a numeric string.
func (e *envelope) recipientID() (domain.UserID, bool) {
	return parseUserID(e.To)
}

func parseUserID(raw json.RawMessage) (domain.UserID, bool) {
	// json.Unmarshal treats null as a no-op success for both branches.
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return domain.UserID(n), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return domain.UserID(n), true
		}
	}
	return 0, false
}

type onlineUser struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
	InCall   bool          `json:"inCall"`
}

type connectionSuccess struct {
	Type  string        `json:"type"`
	Users []onlineUser  `json:"users"`
	MyID  domain.UserID `json:"myId"`
}

type userConnected struct {
	Type     string        `json:"type"`
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
}

type userDisconnected struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"userId"`
}

type callStatusChanged struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"userId"`
	InCall bool          `json:"inCall"`
}

type callMade struct {
	Type  string          `json:"type"`
	Offer json.RawMessage `json:"offer"`
	From  domain.UserID   `json:"from"`
}

type callRejected struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type answerMade struct {
	Type   string          `json:"type"`
	Answer json.RawMessage `json:"answer"`
	From   domain.UserID   `json:"from"`
}

type iceCandidate struct {
	Type      string          `json:"type"`
	Candidate json.RawMessage `json:"candidate"`
	From      domain.UserID   `json:"from"`
}

type hangUp struct {
	Type string        `json:"type"`
	From domain.UserID `json:"from"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
