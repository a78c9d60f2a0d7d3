// Package auth covers credentials: password hashing, bearer tokens and
// the second factor. The signaling core never imports it; it gets an
// already-authenticated user id at connection time.
package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword returns a bcrypt hash of the raw password.
func HashPassword(raw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether raw matches the stored hash.
func CheckPassword(raw, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
