package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustCreate(t *testing.T, db *DB, username, login string) *domain.User {
	t.Helper()
	u, err := domain.NewUser(username, login, "hash", domain.RoleBase)
	if err != nil {
		t.Fatalf("NewUser returned error: %v", err)
	}
	u, err = db.CreateUser(context.Background(), u)
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	return u
}

func TestCreateAndFindUser(t *testing.T) {
	db := openTestDB(t)
	created := mustCreate(t, db, "alice", "alice@example.com")
	if created.ID == 0 {
		t.Fatal("expected an assigned id")
	}

	byLogin, err := db.FindByLogin(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("FindByLogin returned error: %v", err)
	}
	if byLogin.ID != created.ID || byLogin.Username != "alice" || byLogin.Role != domain.RoleBase {
		t.Fatalf("unexpected user: %+v", byLogin)
	}

	byID, err := db.FindByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if byID.Login != "alice@example.com" {
		t.Fatalf("unexpected login %q", byID.Login)
	}
}

func TestFindMissingUser(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.FindByLogin(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := db.FindByID(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateLoginRejected(t *testing.T) {
	db := openTestDB(t)
	mustCreate(t, db, "alice", "taken@example.com")

	u, _ := domain.NewUser("impostor", "taken@example.com", "hash", domain.RoleBase)
	if _, err := db.CreateUser(context.Background(), u); !errors.Is(err, ErrLoginTaken) {
		t.Fatalf("expected ErrLoginTaken, got %v", err)
	}
}

func TestFindByIDs(t *testing.T) {
	db := openTestDB(t)
	a := mustCreate(t, db, "alice", "a@example.com")
	b := mustCreate(t, db, "bob", "b@example.com")
	mustCreate(t, db, "carol", "c@example.com")

	users, err := db.FindByIDs(context.Background(), []domain.UserID{a.ID, b.ID, 1000})
	if err != nil {
		t.Fatalf("FindByIDs returned error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	users, err = db.FindByIDs(context.Background(), nil)
	if err != nil || users != nil {
		t.Fatalf("empty id list should yield nothing, got %v, %v", users, err)
	}
}

func TestSaveTwoFactor(t *testing.T) {
	db := openTestDB(t)
	u := mustCreate(t, db, "alice", "alice@example.com")

	u.TwoFactorEnabled = true
	u.TwoFactorCode = "123456"
	u.TwoFactorCodeExpires = time.Now().Add(15 * time.Minute).Truncate(time.Second)
	if err := db.SaveTwoFactor(context.Background(), u); err != nil {
		t.Fatalf("SaveTwoFactor returned error: %v", err)
	}

	loaded, err := db.FindByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if !loaded.TwoFactorEnabled || loaded.TwoFactorCode != "123456" {
		t.Fatalf("unexpected 2FA state: %+v", loaded)
	}
	if !loaded.TwoFactorCodeExpires.Equal(u.TwoFactorCodeExpires) {
		t.Fatalf("expiry = %v, want %v", loaded.TwoFactorCodeExpires, u.TwoFactorCodeExpires)
	}

	// Disabling clears the pending code.
	loaded.TwoFactorEnabled = false
	loaded.TwoFactorCode = ""
	loaded.TwoFactorCodeExpires = time.Time{}
	if err := db.SaveTwoFactor(context.Background(), loaded); err != nil {
		t.Fatalf("SaveTwoFactor returned error: %v", err)
	}
	loaded, err = db.FindByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if loaded.TwoFactorEnabled || loaded.TwoFactorCode != "" || !loaded.TwoFactorCodeExpires.IsZero() {
		t.Fatalf("expected cleared 2FA state, got %+v", loaded)
	}
}
