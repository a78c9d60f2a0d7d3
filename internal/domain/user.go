// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"strconv"
	"time"
)

const (
	MaxUsernameLen = 36
	MaxLoginLen    = 254
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrLoginEmpty      = errors.New("login empty")
	ErrLoginTooLong    = errors.New("login too long")
)

// UserID is the numeric identifier assigned at registration.
// It is the key the signaling core routes by.
type UserID int64

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

type Role string

const (
	RoleBase  Role = "Base"
	RoleAdmin Role = "Admin"
)

type User struct {
	ID           UserID `json:"id"`
	Username     string `json:"username"`
	Login        string `json:"login"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`

	TwoFactorEnabled     bool      `json:"twoFactorEnabled"`
	TwoFactorCode        string    `json:"-"`
	TwoFactorCodeExpires time.Time `json:"-"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(username, login, passwordHash string, role Role) (*User, error) {
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	if len(login) == 0 {
		return nil, ErrLoginEmpty
	}
	if len(login) > MaxLoginLen {
		return nil, ErrLoginTooLong
	}
	return &User{
		Username:     username,
		Login:        login,
		PasswordHash: passwordHash,
		Role:         role,
	}, nil
}
