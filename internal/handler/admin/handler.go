package admin

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mindful-chat/backend/internal/model/turn"
	"github.com/zhouzirui/mindful-chat/backend/internal/observability"
	"github.com/zhouzirui/mindful-chat/backend/pkg/utils"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
	statsWindow  = 7 * 24 * time.Hour
)

// Handler exposes moderation over stored turns. Mount behind RequireAuth and RequireAdmin.
type Handler struct {
	store turn.AdminStore
	log   *observability.Logger
	now   func() time.Time
}

func New(store turn.AdminStore, log *observability.Logger) *Handler {
	if log == nil {
		log = observability.NewNop()
	}
	return &Handler{
		store: store,
		log:   log.Named("admin"),
		now:   time.Now,
	}
}

// RegisterRoutes registers the admin routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/turns", h.handleList)
	r.Get("/turns/{id}", h.handleGet)
	r.Put("/turns/{id}", h.handleUpdateReviewFlag)
	r.Delete("/turns/{id}", h.handleDelete)
	r.Get("/stats", h.handleStats)
	r.Delete("/users/{id}/turns", h.handleDeleteOwner)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", defaultPage)
	limit := queryInt(r, "limit", defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}

	turns, total, err := h.store.List(r.Context(), page, limit)
	if err != nil {
		h.serverError(w, "list turns", err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"count":       len(turns),
		"total":       total,
		"pages":       int64(math.Ceil(float64(total) / float64(limit))),
		"currentPage": page,
		"data":        turns,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.lookupError(w, "get turn", err)
		return
	}
	respondData(w, t)
}

func (h *Handler) handleUpdateReviewFlag(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ReviewFlag json.RawMessage `json:"reviewFlag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(payload.ReviewFlag) == 0 {
		respondFailure(w, http.StatusBadRequest, "reviewFlag is required")
		return
	}

	var flag turn.ReviewFlag
	if err := json.Unmarshal(payload.ReviewFlag, &flag); err != nil {
		respondFailure(w, http.StatusBadRequest, "reviewFlag must be one of none, anxiety, depression, neutral, stress, suicidal")
		return
	}

	id := chi.URLParam(r, "id")
	updated, err := h.store.UpdateReviewFlag(r.Context(), id, flag)
	if err != nil {
		h.lookupError(w, "update review flag", err)
		return
	}
	h.log.Info("review flag updated", "turn_id", id, "review_flag", string(flag))
	respondData(w, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.lookupError(w, "delete turn", err)
		return
	}
	h.log.Info("turn deleted", "turn_id", id)
	respondData(w, map[string]any{})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context(), h.now().Add(-statsWindow))
	if err != nil {
		h.serverError(w, "stats", err)
		return
	}
	respondData(w, stats)
}

func (h *Handler) handleDeleteOwner(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "id")
	deleted, err := h.store.DeleteAllByOwner(r.Context(), owner)
	if err != nil {
		h.serverError(w, "delete owner turns", err)
		return
	}
	h.log.Info("owner turns deleted", "owner", owner, "deleted", deleted)
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"deleted": deleted,
	})
}

func (h *Handler) lookupError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, turn.ErrNotFound) {
		respondFailure(w, http.StatusNotFound, "Turn not found")
		return
	}
	if errors.Is(err, turn.ErrInvalidReviewFlag) {
		respondFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	h.serverError(w, op, err)
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.log.Error("admin request failed", "op", op, "error", err)
	respondFailure(w, http.StatusInternalServerError, "Server error")
}

func respondData(w http.ResponseWriter, data any) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func respondFailure(w http.ResponseWriter, status int, message string) {
	utils.RespondJSON(w, status, map[string]any{"success": false, "error": message})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
