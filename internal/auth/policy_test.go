package auth

import (
	"testing"

	"github.com/rowanhale/pulsefit/internal/model"
)

func TestCanAccess(t *testing.T) {
	cases := []struct {
		role model.Role
		path string
		want bool
	}{
		// Unmatched paths default to allow.
		{model.RoleMember, "/dashboard", true},
		{model.RoleMember, "/api/shop/orders", true},
		{model.RoleClient, "/dashboard/member", true},

		// Admin prefixes.
		{model.RoleMember, "/admin", false},
		{model.RoleManager, "/admin", false},
		{model.RoleAdmin, "/admin", true},
		{model.RoleSuperAdmin, "/admin/settings", true},
		{model.RoleMember, "/api/admin/users", false},
		{model.RoleAdmin, "/api/admin/users", true},

		// Manager and trainer prefixes, and hierarchy above them.
		{model.RoleTrainer, "/api/manager/overview", false},
		{model.RoleManager, "/api/manager/overview", true},
		{model.RoleAdmin, "/api/manager/overview", true},
		{model.RoleMember, "/api/trainer/schedule", false},
		{model.RoleTrainer, "/api/trainer/schedule", true},
		{model.RoleClient, "/dashboard/trainer", false},
		{model.RoleTrainer, "/dashboard/trainer", true},

		// Prefix must match on a path boundary.
		{model.RoleMember, "/administrator", true},
		{model.RoleMember, "/api/adminish", true},

		// Unknown roles fail closed on privileged prefixes.
		{model.Role("owner"), "/admin", false},
	}

	for _, tc := range cases {
		if got := CanAccess(tc.role, tc.path); got != tc.want {
			t.Errorf("CanAccess(%q, %q) = %v, want %v", tc.role, tc.path, got, tc.want)
		}
	}
}

func TestCanAccessHierarchyMonotonic(t *testing.T) {
	// Any path a role can reach, every higher role can reach too.
	order := []model.Role{model.RoleMember, model.RoleTrainer, model.RoleManager, model.RoleAdmin, model.RoleSuperAdmin}
	paths := []string{"/admin", "/api/admin/users", "/api/manager/x", "/api/trainer/x", "/dashboard/manager", "/dashboard"}

	for _, path := range paths {
		for i := 0; i < len(order)-1; i++ {
			lower, higher := order[i], order[i+1]
			if CanAccess(lower, path) && !CanAccess(higher, path) {
				t.Errorf("%q can reach %q but %q cannot", lower, path, higher)
			}
		}
	}
}

func TestDashboardFor(t *testing.T) {
	cases := []struct {
		role model.Role
		want string
	}{
		{model.RoleMember, "/dashboard/member"},
		{model.RoleClient, "/dashboard/client"},
		{model.RoleTrainer, "/dashboard/trainer"},
		{model.RoleManager, "/dashboard/manager"},
		{model.RoleAdmin, "/dashboard/admin"},
		{model.RoleSuperAdmin, "/dashboard/admin"},
		{model.Role("owner"), "/dashboard"},
	}
	for _, tc := range cases {
		if got := DashboardFor(tc.role); got != tc.want {
			t.Errorf("DashboardFor(%q) = %q, want %q", tc.role, got, tc.want)
		}
	}
}

func TestResolveRedirect(t *testing.T) {
	cases := []struct {
		name      string
		requested string
		role      model.Role
		want      string
	}{
		{"allowed relative path", "/classes/yoga", model.RoleMember, "/classes/yoga"},
		{"privileged path allowed for the role", "/api/admin/users", model.RoleAdmin, "/api/admin/users"},
		{"privileged path denied falls back", "/admin", model.RoleMember, "/dashboard/member"},
		{"protocol-relative rejected", "//evil.com/phish", model.RoleMember, "/dashboard/member"},
		{"backslash variant rejected", "/\\evil.com", model.RoleMember, "/dashboard/member"},
		{"absolute URL rejected", "http://evil.com", model.RoleTrainer, "/dashboard/trainer"},
		{"empty rejected", "", model.RoleManager, "/dashboard/manager"},
		{"no leading slash rejected", "dashboard", model.RoleMember, "/dashboard/member"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveRedirect(tc.requested, tc.role); got != tc.want {
				t.Errorf("ResolveRedirect(%q, %q) = %q, want %q", tc.requested, tc.role, got, tc.want)
			}
		})
	}
}
