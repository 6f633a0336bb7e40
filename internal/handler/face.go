package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rowanhale/pulsefit/internal/auth"
	"github.com/rowanhale/pulsefit/internal/face"
	"github.com/rowanhale/pulsefit/internal/store"
	ws "github.com/rowanhale/pulsefit/internal/websocket"
)

type FaceHandler struct {
	engine        *face.Engine
	scans         *face.ScanManager
	profiles      *store.FaceProfileStore
	users         *store.UserStore
	sessions      *store.SessionStore
	hub           *ws.Hub
	secureCookies bool
	logger        *slog.Logger
}

func NewFaceHandler(
	engine *face.Engine,
	scans *face.ScanManager,
	profiles *store.FaceProfileStore,
	us *store.UserStore,
	ss *store.SessionStore,
	hub *ws.Hub,
	secureCookies bool,
	logger *slog.Logger,
) *FaceHandler {
	return &FaceHandler{
		engine:        engine,
		scans:         scans,
		profiles:      profiles,
		users:         us,
		sessions:      ss,
		hub:           hub,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

type enrollRequest struct {
	Descriptor face.Descriptor `json:"descriptor"`
	Confidence int             `json:"confidence"`
	DeviceInfo string          `json:"device_info"`
}

// Enroll handles POST /api/face/profiles: direct enrollment with a
// descriptor captured client-side.
func (h *FaceHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	h.enroll(w, userID, req.Descriptor, req.Confidence, req.DeviceInfo)
}

// EnrollFromScan handles POST /api/face/profiles/from-scan: enrollment
// from a server-driven scan attempt. Low-quality captures are rejected
// here, at the enroll boundary, not inside the capture controller.
func (h *FaceHandler) EnrollFromScan(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req struct {
		ScanID     string `json:"scan_id"`
		DeviceInfo string `json:"device_info"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	scan, ok := h.scans.Get(req.ScanID)
	if !ok || scan.UserID != userID {
		writeError(w, http.StatusNotFound, "scan not found")
		return
	}
	result, err := scan.Result(r.Context())
	if err != nil {
		var ce *face.CaptureError
		if errors.As(err, &ce) {
			writeError(w, http.StatusUnprocessableEntity, "capture failed: "+string(ce.Reason))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if result.LowQuality {
		writeError(w, http.StatusUnprocessableEntity, "capture quality too low, try again with better lighting")
		return
	}

	h.enroll(w, userID, result.Descriptor, result.Confidence, req.DeviceInfo)
}

func (h *FaceHandler) enroll(w http.ResponseWriter, userID int64, descriptor face.Descriptor, confidence int, deviceInfo string) {
	profile, err := h.engine.Enroll(userID, descriptor, confidence, deviceInfo)
	if err != nil {
		var ee *face.EnrollmentError
		if errors.As(err, &ee) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":  "enrollment rejected",
				"reason": string(ee.Reason),
			})
			return
		}
		h.logger.Error("enroll face profile", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Broadcast(ws.NewMessage(ws.EntityFaceProfile, "enrolled", profile.ID, map[string]any{"user_id": userID}))
	writeJSON(w, http.StatusCreated, profile)
}

// List handles GET /api/face/profiles.
func (h *FaceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	profiles, err := h.profiles.ByUser(userID)
	if err != nil {
		h.logger.Error("list face profiles", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

// Deactivate handles DELETE /api/face/profiles/{id}. Not-found and
// not-owned answer identically so profile ids cannot be probed.
func (h *FaceHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile id")
		return
	}

	err = h.engine.Deactivate(id, userID)
	switch {
	case errors.Is(err, face.ErrProfileNotFound), errors.Is(err, face.ErrNotOwner):
		writeError(w, http.StatusNotFound, "face profile not found")
		return
	case err != nil:
		h.logger.Error("deactivate face profile", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Broadcast(ws.NewMessage(ws.EntityFaceProfile, "deactivated", id, map[string]any{"user_id": userID}))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type faceLoginRequest struct {
	Email      string          `json:"email"`
	Descriptor face.Descriptor `json:"descriptor"`
}

// Login handles POST /api/auth/face-login. Matching is scoped to the
// claimed account's profiles; the response for an unknown account and a
// failed match is identical, and never includes the score.
func (h *FaceHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req faceLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	if err := req.Descriptor.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "descriptor must be 128 numbers")
		return
	}

	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("face login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "face not recognized")
		return
	}

	match, err := h.engine.Verify(user.ID, req.Descriptor)
	if err != nil {
		h.logger.Error("face verify", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !match.Matched {
		writeError(w, http.StatusUnauthorized, "face not recognized")
		return
	}

	// Face logins ride the custom-session path: an opaque token backed by
	// the session store, carried in the same cookies as signed tokens.
	sess, err := h.sessions.Create(user.ID, user.Role)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	auth.WriteSessionCookies(w, sess.Token, user.Role, h.secureCookies)

	writeJSON(w, http.StatusOK, authResponse{
		User: &auth.ResolvedUser{
			ID:     user.ID,
			Email:  user.Email,
			Name:   user.Name,
			Role:   user.Role,
			Avatar: user.Avatar,
		},
		DashboardURL: auth.DashboardFor(user.Role),
	})
}

// StartScan handles POST /api/face/scan.
func (h *FaceHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	scan := h.scans.Begin(userID)
	writeJSON(w, http.StatusCreated, scan.Status())
}

// PushFrames handles POST /api/face/scan/{id}/frames: a batch of observed
// frames from the browser.
func (h *FaceHandler) PushFrames(w http.ResponseWriter, r *http.Request) {
	scan, ok := h.ownedScan(r)
	if !ok {
		writeError(w, http.StatusNotFound, "scan not found")
		return
	}

	var req struct {
		Frames []face.Frame `json:"frames"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	accepted := 0
	for _, f := range req.Frames {
		if scan.Push(f) {
			accepted++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": accepted, "status": scan.Status()})
}

// ScanStatus handles GET /api/face/scan/{id}.
func (h *FaceHandler) ScanStatus(w http.ResponseWriter, r *http.Request) {
	scan, ok := h.ownedScan(r)
	if !ok {
		writeError(w, http.StatusNotFound, "scan not found")
		return
	}
	writeJSON(w, http.StatusOK, scan.Status())
}

// CancelScan handles DELETE /api/face/scan/{id}. Cancellation releases
// the stream before the scan settles.
func (h *FaceHandler) CancelScan(w http.ResponseWriter, r *http.Request) {
	scan, ok := h.ownedScan(r)
	if !ok {
		writeError(w, http.StatusNotFound, "scan not found")
		return
	}
	scan.Cancel()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *FaceHandler) ownedScan(r *http.Request) (*face.Scan, bool) {
	scan, ok := h.scans.Get(r.PathValue("id"))
	if !ok || scan.UserID != auth.UserID(r.Context()) {
		return nil, false
	}
	return scan, true
}
