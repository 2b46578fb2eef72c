package account

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"voicelog/internal/config"
	"voicelog/internal/models"
	"voicelog/internal/storage"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, "  Alice@Example.com ", "hunter22")
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if user.ID == "" || user.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
	var stored string
	if err := db.QueryRow(`SELECT password_hash FROM users WHERE id = ?`, user.ID).Scan(&stored); err != nil {
		t.Fatalf("query hash: %v", err)
	}
	if stored == "hunter22" {
		t.Fatalf("password stored in plaintext")
	}

	got, err := svc.Authenticate(ctx, "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("authenticated wrong user: %s", got.ID)
	}
	if _, err := svc.Authenticate(ctx, "alice@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(openTestDB(t))
	ctx := context.Background()

	if _, err := svc.RegisterUser(ctx, "", "hunter22"); err == nil {
		t.Fatalf("expected error for empty email")
	}
	if _, err := svc.RegisterUser(ctx, "not-an-email", "hunter22"); err == nil {
		t.Fatalf("expected error for invalid email")
	}
	if _, err := svc.RegisterUser(ctx, "bob@example.com", "123"); err == nil {
		t.Fatalf("expected error for short password")
	}
	if _, err := svc.RegisterUser(ctx, "bob@example.com", "hunter22"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if _, err := svc.RegisterUser(ctx, "BOB@example.com", "hunter22"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestGetAndDeleteUser(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	user, err := svc.RegisterUser(ctx, "carol@example.com", "hunter22")
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	repo := storage.NewConversationRepository(db)
	if _, err := repo.Insert(ctx, user.ID, models.ConversationContent{Text: "[user]: hi"}); err != nil {
		t.Fatalf("insert conversation: %v", err)
	}
	if got, err := svc.GetUser(ctx, user.ID); err != nil || got.Email != user.Email {
		t.Fatalf("GetUser: %+v %v", got, err)
	}
	if err := svc.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := svc.GetUser(ctx, user.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows after delete, got %v", err)
	}
	if list, err := repo.ListByOwner(ctx, user.ID, 10); err != nil || len(list) != 0 {
		t.Fatalf("expected conversations removed with user, got %d (%v)", len(list), err)
	}
	if err := svc.DeleteUser(ctx, user.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows deleting twice, got %v", err)
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: filepath.Join(t.TempDir(), "account.db")},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}
