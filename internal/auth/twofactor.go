package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/domain"
)

// TwoFactorCodeTTL is how long an emailed code stays valid.
const TwoFactorCodeTTL = 15 * time.Minute

// GenerateTwoFactorCode puts a fresh 6-digit code with expiry on the
// user and returns it for delivery. The caller persists the user.
func GenerateTwoFactorCode(u *domain.User, now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		// crypto/rand only fails when the platform source is broken.
		panic(fmt.Sprintf("auth: rand: %v", err))
	}
	code := fmt.Sprintf("%06d", n.Int64())
	u.TwoFactorCode = code
	u.TwoFactorCodeExpires = now.Add(TwoFactorCodeTTL)
	return code
}

// TwoFactorCodeValid reports whether code matches the user's pending
// code and the code has not expired.
func TwoFactorCodeValid(u *domain.User, code string, now time.Time) bool {
	return u.TwoFactorCode != "" &&
		u.TwoFactorCode == code &&
		u.TwoFactorCodeExpires.After(now)
}

// ClearTwoFactorCode drops the pending code after a successful verify.
// The caller persists the user.
func ClearTwoFactorCode(u *domain.User) {
	u.TwoFactorCode = ""
	u.TwoFactorCodeExpires = time.Time{}
}
