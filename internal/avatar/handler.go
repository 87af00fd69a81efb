package avatar

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/royale-relay/backend/internal/httpx"
	"github.com/royale-relay/backend/internal/middleware"
	"github.com/royale-relay/backend/internal/models"
	"github.com/royale-relay/backend/internal/store"
)

// MaxBytes caps an uploaded avatar.
const MaxBytes = 1 << 20

var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/gif":  true,
}

// FileStore defines the interface for object storage.
type FileStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, string, error)
}

// AccountLookup resolves usernames to accounts.
type AccountLookup interface {
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
}

// Handler holds avatar HTTP handlers.
type Handler struct {
	files    FileStore
	accounts AccountLookup
}

// NewHandler builds the avatar handlers. files may be nil, in which case
// every request answers 503.
func NewHandler(files FileStore, accounts AccountLookup) *Handler {
	return &Handler{files: files, accounts: accounts}
}

// Mount registers the avatar routes on r under /api.
func (h *Handler) Mount(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.With(requireAuth).Put("/user/avatar", h.Upload)
	r.Get("/user/{username}/avatar", h.Download)
}

func objectKey(accountID string) string {
	return "avatars/" + accountID
}

// Upload stores the request body as the caller's avatar.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "avatar storage is not configured")
		return
	}
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	ct := strings.TrimSpace(strings.Split(r.Header.Get("Content-Type"), ";")[0])
	if !allowedTypes[ct] {
		httpx.WriteError(w, http.StatusBadRequest, "unsupported content type")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, "avatar too large")
			return
		}
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(data) == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "empty avatar")
		return
	}

	if err := h.files.Upload(r.Context(), objectKey(claims.AccountID), data, ct); err != nil {
		log.Printf("avatar upload error: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Download streams the avatar of {username}.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "avatar storage is not configured")
		return
	}

	acc, err := h.accounts.FindByUsername(r.Context(), chi.URLParam(r, "username"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	data, ct, err := h.files.Download(r.Context(), objectKey(acc.ID.Hex()))
	if errors.Is(err, store.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "avatar not set")
		return
	}
	if err != nil {
		log.Printf("avatar download error: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Write(data)
}
