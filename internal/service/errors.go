package service

import (
	"errors"

	"flexboard/internal/model"
)

// Service errors.
var (
	ErrInvalidPagination = errors.New("page and pageSize must be positive and within limits")
)

// IsValidation reports whether err is a caller contract violation that must be
// rejected before any query runs.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidPagination) ||
		errors.Is(err, model.ErrRegionRequired) ||
		errors.Is(err, model.ErrInvalidLeaderboardType)
}
