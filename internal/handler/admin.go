package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"flexboard/internal/auth"
	"flexboard/internal/model"
)

// Archiver creates and lists snapshots and period resets.
type Archiver interface {
	CreateLeaderboardSnapshot(ctx context.Context, scope model.Scope, topN int) (*model.Snapshot, error)
	ResetMonthly(ctx context.Context, region string) (*model.ResetResult, error)
	ResetWeekly(ctx context.Context, region string) (*model.ResetResult, error)
	ListSnapshots(ctx context.Context, scope model.Scope, limit int) ([]*model.Snapshot, error)
	ListResets(ctx context.Context, scope model.Scope, limit int) ([]*model.Reset, error)
}

// AdminHandler exposes the manual reset and snapshot triggers.
type AdminHandler struct {
	archiver Archiver
	isAdmin  func(userID string) bool
}

// NewAdminHandler creates a new AdminHandler. isAdmin decides who may call it.
func NewAdminHandler(archiver Archiver, isAdmin func(userID string) bool) *AdminHandler {
	return &AdminHandler{archiver: archiver, isAdmin: isAdmin}
}

// RequireAdmin rejects authenticated callers that are not administrators.
// It must run after auth.RequireUser.
func (h *AdminHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserID(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "User not authenticated", CodeNotAuthenticated)
			return
		}
		if !h.isAdmin(userID) {
			log.Warn().Str("user_id", userID).Str("path", r.URL.Path).Msg("Non-admin attempted admin action")
			writeError(w, http.StatusForbidden, "Admin access required", CodeForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandleReset serves POST /admin/leaderboard/reset/{period}?region where
// period is monthly or weekly.
func (h *AdminHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	period, err := model.ParseLeaderboardType(chi.URLParam(r, "period"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	region := r.URL.Query().Get("region")
	var result *model.ResetResult
	switch period {
	case model.Monthly:
		result, err = h.archiver.ResetMonthly(r.Context(), region)
	case model.Weekly:
		result, err = h.archiver.ResetWeekly(r.Context(), region)
	default:
		writeError(w, http.StatusBadRequest, "only monthly and weekly leaderboards can be reset", CodeInvalidLeaderboardType)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	userID, _ := auth.UserID(r.Context())
	log.Info().Str("user_id", userID).Str("leaderboard_type", string(period)).Str("region", region).Msg("Manual reset triggered")
	writeJSON(w, http.StatusCreated, result)
}

// HandleSnapshot serves POST /admin/leaderboard/snapshot/{type}?region&topN.
func (h *AdminHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope, err := model.ParseScope(chi.URLParam(r, "type"), q.Get("region"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	topN, ok := intParam(q.Get("topN"), 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "topN must be a positive integer", CodeInvalidPagination)
		return
	}

	snap, err := h.archiver.CreateLeaderboardSnapshot(r.Context(), scope, topN)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}
