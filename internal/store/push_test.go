package store

import (
	"testing"

	"github.com/rowanhale/pulsefit/internal/database"
	"github.com/rowanhale/pulsefit/internal/model"
)

func setupPushTestDB(t *testing.T) (*PushStore, *UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPushStore(db), NewUserStore(db)
}

func TestPushSubscriptionUpsert(t *testing.T) {
	ps, us := setupPushTestDB(t)
	user, _ := us.Create("nia@example.com", "Nia", model.RoleMember, "")

	sub, err := ps.Upsert(user.ID, "https://push.example/ep1", "p256dh-1", "auth-1", "Pixel 9")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if sub.DeviceName != "Pixel 9" {
		t.Errorf("device name = %q", sub.DeviceName)
	}

	// Re-subscribing the same endpoint rotates keys in place.
	again, err := ps.Upsert(user.ID, "https://push.example/ep1", "p256dh-2", "auth-2", "Pixel 9")
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if again.P256dhKey != "p256dh-2" || again.AuthKey != "auth-2" {
		t.Errorf("keys not rotated: %+v", again)
	}

	subs, err := ps.ByUser(user.ID)
	if err != nil {
		t.Fatalf("by user: %v", err)
	}
	if len(subs) != 1 {
		t.Errorf("subscriptions = %d, want 1 after endpoint upsert", len(subs))
	}
}

func TestPushSubscriptionDelete(t *testing.T) {
	ps, us := setupPushTestDB(t)
	user, _ := us.Create("nia@example.com", "Nia", model.RoleMember, "")

	if _, err := ps.Upsert(user.ID, "https://push.example/ep1", "k", "a", ""); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := ps.DeleteByEndpoint("https://push.example/ep1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	sub, err := ps.GetByEndpoint("https://push.example/ep1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sub != nil {
		t.Error("expected nil after delete")
	}
}
