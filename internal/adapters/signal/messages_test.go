package signal

import (
	"encoding/json"
	"testing"

	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/domain"
)

func TestParseUserID(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want domain.UserID
		ok   bool
	}{
		{"number", `42`, 42, true},
		{"numeric string", `"42"`, 42, true},
		{"large id", `9007199254740993`, 9007199254740993, true},
		{"missing", ``, 0, false},
		{"null", `null`, 0, false},
		{"word", `"bob"`, 0, false},
		{"float", `1.5`, 0, false},
		{"object", `{"id":1}`, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseUserID(json.RawMessage(tc.raw))
			if ok != tc.ok || got != tc.want {
				t.Fatalf("parseUserID(%s) = %d, %v; want %d, %v", tc.raw, got, ok, tc.want, tc.ok)
			}
		})
	}
}
