package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/domain"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrLoginTaken = errors.New("login already taken")
)

const userColumns = `id, username, login, password, role,
	two_factor_enabled, two_factor_code, two_factor_code_expires`

// CreateUser inserts a new account and returns it with the assigned id.
func (d *DB) CreateUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO users (username, login, password, role, two_factor_enabled)
		 VALUES (?, ?, ?, ?, ?)`,
		u.Username, u.Login, u.PasswordHash, string(u.Role), u.TwoFactorEnabled,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrLoginTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create user id: %w", err)
	}
	u.ID = domain.UserID(id)
	return u, nil
}

func (d *DB) FindByLogin(ctx context.Context, login string) (*domain.User, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE login = ?`, login)
	return scanUser(row)
}

func (d *DB) FindByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, int64(id))
	return scanUser(row)
}

// FindByIDs loads the given users in one query. Unknown ids are simply
// missing from the result, not an error.
func (d *DB) FindByIDs(ctx context.Context, ids []domain.UserID) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, int64(id))
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// SaveTwoFactor persists the user's 2FA flag, pending code and expiry.
func (d *DB) SaveTwoFactor(ctx context.Context, u *domain.User) error {
	var code sql.NullString
	if u.TwoFactorCode != "" {
		code = sql.NullString{String: u.TwoFactorCode, Valid: true}
	}
	var expires sql.NullInt64
	if !u.TwoFactorCodeExpires.IsZero() {
		expires = sql.NullInt64{Int64: u.TwoFactorCodeExpires.Unix(), Valid: true}
	}

	_, err := d.db.ExecContext(ctx,
		`UPDATE users SET two_factor_enabled = ?, two_factor_code = ?, two_factor_code_expires = ?
		 WHERE id = ?`,
		u.TwoFactorEnabled, code, expires, int64(u.ID),
	)
	if err != nil {
		return fmt.Errorf("save two factor: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanUser(row scannable) (*domain.User, error) {
	var (
		u       domain.User
		id      int64
		role    string
		code    sql.NullString
		expires sql.NullInt64
	)
	err := row.Scan(&id, &u.Username, &u.Login, &u.PasswordHash, &role,
		&u.TwoFactorEnabled, &code, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID = domain.UserID(id)
	u.Role = domain.Role(role)
	if code.Valid {
		u.TwoFactorCode = code.String
	}
	if expires.Valid {
		u.TwoFactorCodeExpires = time.Unix(expires.Int64, 0)
	}
	return &u, nil
}
