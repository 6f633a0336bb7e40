package store

import (
	"testing"

	"github.com/rowanhale/pulsefit/internal/database"
	"github.com/rowanhale/pulsefit/internal/face"
	"github.com/rowanhale/pulsefit/internal/model"
)

func setupFaceProfileTestDB(t *testing.T) (*FaceProfileStore, *UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewFaceProfileStore(db), NewUserStore(db)
}

func testDescriptor(axis int) face.Descriptor {
	d := make(face.Descriptor, face.DescriptorLength)
	d[axis] = 1
	return d
}

func TestFaceProfileRoundTrip(t *testing.T) {
	fs, us := setupFaceProfileTestDB(t)
	user, _ := us.Create("mia@example.com", "Mia", model.RoleMember, "")

	d := testDescriptor(3)
	d[7] = 0.25
	profile, err := fs.Create(user.ID, d, 88, "iPhone 15")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if !profile.IsActive {
		t.Error("new profile should be active")
	}
	if profile.UsageCount != 0 {
		t.Errorf("usage count = %d, want 0", profile.UsageCount)
	}
	if profile.LastUsedAt != nil {
		t.Error("last_used_at should start nil")
	}
	if len(profile.Descriptor) != face.DescriptorLength {
		t.Fatalf("descriptor length = %d", len(profile.Descriptor))
	}
	if profile.Descriptor[3] != 1 || profile.Descriptor[7] != 0.25 {
		t.Error("descriptor values lost in round trip")
	}
	if profile.DeviceInfo != "iPhone 15" {
		t.Errorf("device info = %q", profile.DeviceInfo)
	}
}

func TestFaceProfileActiveFiltering(t *testing.T) {
	fs, us := setupFaceProfileTestDB(t)
	user, _ := us.Create("mia@example.com", "Mia", model.RoleMember, "")

	p1, _ := fs.Create(user.ID, testDescriptor(0), 90, "")
	p2, _ := fs.Create(user.ID, testDescriptor(1), 91, "")

	if err := fs.Deactivate(p1.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	active, err := fs.ActiveByUser(user.ID)
	if err != nil {
		t.Fatalf("active by user: %v", err)
	}
	if len(active) != 1 || active[0].ID != p2.ID {
		t.Errorf("active = %d profiles, want only the second", len(active))
	}

	all, err := fs.ByUser(user.ID)
	if err != nil {
		t.Fatalf("by user: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all = %d profiles, want 2", len(all))
	}

	count, err := fs.CountActive(user.ID)
	if err != nil {
		t.Fatalf("count active: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	// Deactivation is soft: the row survives with its data.
	kept, err := fs.GetByID(p1.ID)
	if err != nil {
		t.Fatalf("get deactivated: %v", err)
	}
	if kept == nil || kept.IsActive {
		t.Error("deactivated profile should persist inactive")
	}
}

func TestFaceProfileIncrementUsage(t *testing.T) {
	fs, us := setupFaceProfileTestDB(t)
	user, _ := us.Create("mia@example.com", "Mia", model.RoleMember, "")
	profile, _ := fs.Create(user.ID, testDescriptor(0), 90, "")

	for i := 0; i < 3; i++ {
		if err := fs.IncrementUsage(profile.ID); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	got, err := fs.GetByID(profile.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UsageCount != 3 {
		t.Errorf("usage count = %d, want 3", got.UsageCount)
	}
	if got.LastUsedAt == nil {
		t.Error("last_used_at not stamped")
	}
}

func TestFaceProfileGetMissing(t *testing.T) {
	fs, _ := setupFaceProfileTestDB(t)

	profile, err := fs.GetByID(999)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if profile != nil {
		t.Error("expected nil for missing profile")
	}
}
