package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"flexboard/internal/model"
	"flexboard/internal/repository"
	"flexboard/internal/service"
)

// Error codes returned in the "code" field of error responses.
const (
	CodeRegionRequired         = "REGION_REQUIRED"
	CodeInvalidLeaderboardType = "INVALID_LEADERBOARD_TYPE"
	CodeInvalidPagination      = "INVALID_PAGINATION"
	CodeNotAuthenticated       = "NOT_AUTHENTICATED"
	CodeForbidden              = "FORBIDDEN"
	CodeUserNotFound           = "USER_NOT_FOUND"
	CodeAlreadyReset           = "ALREADY_RESET"
	CodeInternal               = "INTERNAL_ERROR"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Warn().Err(err).Msg("Failed to encode response")
		}
	}
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeServiceError maps a service error to its HTTP status and code.
// Unclassified errors are logged and hidden behind a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case service.IsValidation(err):
		writeError(w, http.StatusBadRequest, validationMessage(err), validationCode(err))
	case errors.Is(err, repository.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found", CodeUserNotFound)
	case errors.Is(err, repository.ErrResetExists):
		writeError(w, http.StatusConflict, "Period already reset", CodeAlreadyReset)
	default:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "Internal Server Error", CodeInternal)
	}
}

func validationCode(err error) string {
	switch {
	case errors.Is(err, model.ErrRegionRequired):
		return CodeRegionRequired
	case errors.Is(err, model.ErrInvalidLeaderboardType):
		return CodeInvalidLeaderboardType
	default:
		return CodeInvalidPagination
	}
}

func validationMessage(err error) string {
	if errors.Is(err, model.ErrRegionRequired) {
		return "Region parameter is required"
	}
	return err.Error()
}
