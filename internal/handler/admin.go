package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rowanhale/pulsefit/internal/auth"
	"github.com/rowanhale/pulsefit/internal/model"
	"github.com/rowanhale/pulsefit/internal/store"
)

// AdminHandler serves the staff-only endpoints. Route-level middleware
// enforces the role floor; role changes get an extra check here because
// granting a role above your own is never allowed.
type AdminHandler struct {
	users    *store.UserStore
	sessions *store.SessionStore
	orders   *store.OrderStore
	plans    *store.PlanStore
	profiles *store.FaceProfileStore
	logger   *slog.Logger
}

func NewAdminHandler(
	users *store.UserStore,
	sessions *store.SessionStore,
	orders *store.OrderStore,
	plans *store.PlanStore,
	profiles *store.FaceProfileStore,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		users:    users,
		sessions: sessions,
		orders:   orders,
		plans:    plans,
		profiles: profiles,
		logger:   logger,
	}
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List()
	if err != nil {
		h.logger.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// GetUser handles GET /api/admin/users/{id}: the account plus its orders
// and enrolled face profile count, for the member detail page.
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := h.users.GetByID(id)
	if err != nil {
		h.logger.Error("get user", "error", err, "user_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	orders, err := h.orders.ByUser(id)
	if err != nil {
		h.logger.Error("get user orders", "error", err, "user_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	faceProfiles, err := h.profiles.CountActive(id)
	if err != nil {
		h.logger.Error("count face profiles", "error", err, "user_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":          user,
		"orders":        orders,
		"face_profiles": faceProfiles,
	})
}

// UpdateUserRole handles PUT /api/admin/users/{id}/role.
func (h *AdminHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}

	actor, _ := auth.FromContext(r.Context())
	if !actor.Role.AtLeast(role) {
		writeError(w, http.StatusForbidden, "cannot grant a role above your own")
		return
	}

	user, err := h.users.UpdateRole(id, role)
	if err != nil {
		h.logger.Error("update role", "error", err, "user_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	// Existing custom sessions carry the old role; drop them so the next
	// request resolves with the new one.
	if err := h.sessions.DeleteByUserID(id); err != nil {
		h.logger.Error("revoke sessions after role change", "error", err, "user_id", id)
	}

	writeJSON(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/admin/users/{id}.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if id == auth.UserID(r.Context()) {
		writeError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}
	if err := h.users.Delete(id); err != nil {
		h.logger.Error("delete user", "error", err, "user_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type createPlanRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	StripePriceID string `json:"stripe_price_id"`
	PriceCents    int64  `json:"price_cents"`
	Interval      string `json:"interval"`
}

// CreatePlan handles POST /api/admin/plans.
func (h *AdminHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" || req.StripePriceID == "" || req.PriceCents <= 0 {
		writeError(w, http.StatusBadRequest, "name, stripe_price_id, and a positive price_cents are required")
		return
	}
	switch req.Interval {
	case "one_time", "monthly", "annual":
	default:
		writeError(w, http.StatusBadRequest, "interval must be one_time, monthly, or annual")
		return
	}

	plan, err := h.plans.Create(req.Name, req.Description, req.StripePriceID, req.PriceCents, req.Interval)
	if err != nil {
		h.logger.Error("create plan", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

// SetPlanActive handles PUT /api/admin/plans/{id}/active.
func (h *AdminHandler) SetPlanActive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan id")
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.plans.SetActive(id, req.Active); err != nil {
		h.logger.Error("set plan active", "error", err, "plan_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Overview handles GET /api/manager/overview: a small rollup for the
// manager dashboard.
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List()
	if err != nil {
		h.logger.Error("overview: list users", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	byRole := map[model.Role]int{}
	for _, u := range users {
		byRole[u.Role]++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_members": byRole[model.RoleMember] + byRole[model.RoleClient],
		"total_staff":   len(users) - byRole[model.RoleMember] - byRole[model.RoleClient],
		"by_role":       byRole,
	})
}
