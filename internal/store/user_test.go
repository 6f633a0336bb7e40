package store

import (
	"testing"

	"github.com/rowanhale/pulsefit/internal/database"
	"github.com/rowanhale/pulsefit/internal/model"
)

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserStore(db)
}

func TestUserCRUD(t *testing.T) {
	us := setupUserTestDB(t)

	user, err := us.Create("rosa@example.com", "Rosa", model.RoleMember, "hash123")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Email != "rosa@example.com" {
		t.Errorf("email = %q", user.Email)
	}
	if user.Role != model.RoleMember {
		t.Errorf("role = %q, want member", user.Role)
	}
	if user.PasswordHash != "hash123" {
		t.Errorf("password hash not stored")
	}

	got, err := us.GetByID(user.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got == nil || got.Name != "Rosa" {
		t.Errorf("got = %+v", got)
	}

	byEmail, err := us.GetByEmail("rosa@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail == nil || byEmail.ID != user.ID {
		t.Errorf("byEmail = %+v", byEmail)
	}

	updated, err := us.UpdateProfile(user.ID, "Rosa M", "/avatars/rosa.png")
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Name != "Rosa M" || updated.Avatar != "/avatars/rosa.png" {
		t.Errorf("updated = %+v", updated)
	}

	promoted, err := us.UpdateRole(user.ID, model.RoleTrainer)
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	if promoted.Role != model.RoleTrainer {
		t.Errorf("role = %q, want trainer", promoted.Role)
	}

	users, err := us.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("list len = %d, want 1", len(users))
	}

	if err := us.Delete(user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	gone, err := us.GetByID(user.ID)
	if err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if gone != nil {
		t.Error("expected nil after delete")
	}
}

func TestUserGetMissing(t *testing.T) {
	us := setupUserTestDB(t)

	user, err := us.GetByID(999)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if user != nil {
		t.Error("expected nil for missing user")
	}

	user, err = us.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get missing by email: %v", err)
	}
	if user != nil {
		t.Error("expected nil for missing email")
	}
}

func TestUserDuplicateEmail(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create("dup@example.com", "One", model.RoleMember, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := us.Create("dup@example.com", "Two", model.RoleMember, ""); err == nil {
		t.Error("duplicate email accepted")
	}
}
