package auth

import (
	"strings"

	"github.com/rowanhale/pulsefit/internal/model"
)

// Access policy is pure path-prefix matching: the most specific matching
// prefix wins, unmatched paths default to allow. Only the explicitly
// privileged prefixes below fail closed.
type prefixRule struct {
	prefix string
	min    model.Role
}

var prefixRules = []prefixRule{
	{"/admin", model.RoleAdmin},
	{"/api/admin", model.RoleAdmin},
	{"/api/manager", model.RoleManager},
	{"/api/trainer", model.RoleTrainer},
	{"/dashboard/admin", model.RoleAdmin},
	{"/dashboard/manager", model.RoleManager},
	{"/dashboard/trainer", model.RoleTrainer},
}

// CanAccess reports whether the role may reach the given path.
func CanAccess(role model.Role, path string) bool {
	var best *prefixRule
	for i := range prefixRules {
		r := &prefixRules[i]
		if !matchesPrefix(path, r.prefix) {
			continue
		}
		if best == nil || len(r.prefix) > len(best.prefix) {
			best = r
		}
	}
	if best == nil {
		return true
	}
	return role.AtLeast(best.min)
}

func matchesPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	// "/administrator" must not match "/admin".
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// staffDashboard is the fallback landing page for roles outside the known
// set (should not happen past boundary validation, but the function is
// total regardless).
const staffDashboard = "/dashboard"

var dashboards = map[model.Role]string{
	model.RoleMember:     "/dashboard/member",
	model.RoleClient:     "/dashboard/client",
	model.RoleTrainer:    "/dashboard/trainer",
	model.RoleManager:    "/dashboard/manager",
	model.RoleAdmin:      "/dashboard/admin",
	model.RoleSuperAdmin: "/dashboard/admin",
}

// DashboardFor maps a role to its canonical landing path.
func DashboardFor(role model.Role) string {
	if path, ok := dashboards[role]; ok {
		return path
	}
	return staffDashboard
}

// ResolveRedirect returns the requested path if it is a same-origin
// relative path the role may access, otherwise the role's dashboard.
// Protocol-relative ("//evil.com") and absolute ("http://evil.com") values
// are rejected to block open redirects.
func ResolveRedirect(requested string, role model.Role) string {
	if isSafeRelativePath(requested) && CanAccess(role, requested) {
		return requested
	}
	return DashboardFor(role)
}

func isSafeRelativePath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}
	if strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	return true
}
