package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"flexboard/internal/auth"
	"flexboard/internal/model"
)

// RankingReader serves ranking pages and per-user standings.
type RankingReader interface {
	ComputeRanking(ctx context.Context, scope model.Scope, page, pageSize int) (*model.Page, error)
	GetStanding(ctx context.Context, userID string) (*model.Standing, error)
}

// HistoryReader serves a user's rank time series.
type HistoryReader interface {
	GetUserLeaderboardHistory(ctx context.Context, userID string, scope model.Scope, limit int) ([]*model.HistoryRow, error)
}

// LeaderboardHandler serves the public and per-user leaderboard queries.
type LeaderboardHandler struct {
	rankings  RankingReader
	history   HistoryReader
	snapshots Archiver
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(rankings RankingReader, history HistoryReader, snapshots Archiver) *LeaderboardHandler {
	return &LeaderboardHandler{
		rankings:  rankings,
		history:   history,
		snapshots: snapshots,
	}
}

type pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type pageResponse struct {
	Data       []model.RankedEntry `json:"data"`
	Pagination pagination          `json:"pagination"`
}

// HandleRanking serves GET /leaderboard/{type}?region&page&pageSize.
func (h *LeaderboardHandler) HandleRanking(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope, err := model.ParseScope(chi.URLParam(r, "type"), q.Get("region"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	page, ok := intParam(q.Get("page"), 1)
	if !ok {
		writeError(w, http.StatusBadRequest, "page must be a positive integer", CodeInvalidPagination)
		return
	}
	pageSize, ok := intParam(q.Get("pageSize"), 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "pageSize must be a positive integer", CodeInvalidPagination)
		return
	}

	result, err := h.rankings.ComputeRanking(r.Context(), scope, page, pageSize)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pageResponse{
		Data: result.Entries,
		Pagination: pagination{
			Page:       result.Page,
			PageSize:   result.PageSize,
			Total:      result.Total,
			TotalPages: result.TotalPages,
		},
	})
}

// HandleHistory serves GET /leaderboard/history?type&region&limit for the
// authenticated user. type defaults to global.
func (h *LeaderboardHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not authenticated", CodeNotAuthenticated)
		return
	}

	q := r.URL.Query()
	scope, err := model.ParseScope(defaultString(q.Get("type"), string(model.Global)), q.Get("region"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	limit, ok := intParam(q.Get("limit"), 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer", CodeInvalidPagination)
		return
	}

	rows, err := h.history.GetUserLeaderboardHistory(r.Context(), userID, scope, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": rows})
}

// HandleMe serves GET /leaderboard/me: the caller's rank in every scope.
func (h *LeaderboardHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not authenticated", CodeNotAuthenticated)
		return
	}

	standing, err := h.rankings.GetStanding(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, standing)
}

// HandleSnapshots serves GET /leaderboard/snapshots?type&region&limit. type
// defaults to global.
func (h *LeaderboardHandler) HandleSnapshots(w http.ResponseWriter, r *http.Request) {
	scope, limit, ok := archiveQuery(w, r, model.Global)
	if !ok {
		return
	}

	snaps, err := h.snapshots.ListSnapshots(r.Context(), scope, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": snaps})
}

// HandleResets serves GET /leaderboard/resets?type&region&limit. type
// defaults to monthly.
func (h *LeaderboardHandler) HandleResets(w http.ResponseWriter, r *http.Request) {
	scope, limit, ok := archiveQuery(w, r, model.Monthly)
	if !ok {
		return
	}

	resets, err := h.snapshots.ListResets(r.Context(), scope, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": resets})
}

func archiveQuery(w http.ResponseWriter, r *http.Request, defaultType model.LeaderboardType) (model.Scope, int, bool) {
	q := r.URL.Query()
	scope, err := model.ParseScope(defaultString(q.Get("type"), string(defaultType)), q.Get("region"))
	if err != nil {
		writeServiceError(w, r, err)
		return model.Scope{}, 0, false
	}
	limit, ok := intParam(q.Get("limit"), 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer", CodeInvalidPagination)
		return model.Scope{}, 0, false
	}
	return scope, limit, true
}

// intParam parses a positive integer query value, returning def when empty.
func intParam(s string, def int) (int, bool) {
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

