package account

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/royale-relay/backend/internal/httpx"
	"github.com/royale-relay/backend/internal/middleware"
	"github.com/royale-relay/backend/internal/models"
)

// Revoker invalidates a token id until its expiry.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// Handler holds account-related HTTP handlers.
type Handler struct {
	svc     *Service
	revoker Revoker
}

// NewHandler builds the account handlers. revoker may be nil, in which
// case logout is unavailable.
func NewHandler(svc *Service, revoker Revoker) *Handler {
	return &Handler{svc: svc, revoker: revoker}
}

// Mount registers the account routes on r under /api.
func (h *Handler) Mount(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Get("/user/{username}", h.Profile)
	r.With(requireAuth).Post("/user/update", h.Update)
	r.With(requireAuth).Get("/me", h.Me)
	r.With(requireAuth).Post("/logout", h.Logout)
}

// Register creates a new account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Login authenticates an account and returns a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.svc.Login(r.Context(), req)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Profile returns the public profile for {username}.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.GetProfile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.fail(w, "get profile", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": profile})
}

// Update merges allow-listed fields into the caller's own account.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req models.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	upd, err := models.DecodeProfileUpdate(req.Updates)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.svc.UpdateProfile(r.Context(), claims.AccountID, req.Username, upd)
	if err != nil {
		h.fail(w, "update profile", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": profile})
}

// Me returns the authenticated account's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	profile, err := h.svc.Me(r.Context(), claims.AccountID)
	if err != nil {
		h.fail(w, "me", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": profile})
}

// Logout revokes the presented token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if h.revoker == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "logout is not configured")
		return
	}

	if err := h.revoker.Revoke(r.Context(), claims.TokenID, claims.ExpiresAt); err != nil {
		log.Printf("logout: revoke token: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s error: %v", op, err)
	}
	httpx.WriteError(w, status, err.Error())
}
