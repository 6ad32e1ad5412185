package model

import (
	"errors"
	"fmt"
	"strings"
)

// Scope validation errors.
var (
	ErrInvalidLeaderboardType = errors.New("invalid leaderboard type")
	ErrRegionRequired         = errors.New("region is required for regional leaderboard")
)

// LeaderboardType names the population/time filter of a ranking.
type LeaderboardType string

// Leaderboard types.
const (
	Global   LeaderboardType = "global"
	Monthly  LeaderboardType = "monthly"
	Weekly   LeaderboardType = "weekly"
	Regional LeaderboardType = "regional"
)

// LeaderboardTypes returns all leaderboard types in display order.
func LeaderboardTypes() []LeaderboardType {
	return []LeaderboardType{Global, Monthly, Weekly, Regional}
}

// Valid reports whether t is a known leaderboard type.
func (t LeaderboardType) Valid() bool {
	switch t {
	case Global, Monthly, Weekly, Regional:
		return true
	}
	return false
}

// ParseLeaderboardType parses a leaderboard type name (case-insensitive).
func ParseLeaderboardType(s string) (LeaderboardType, error) {
	t := LeaderboardType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLeaderboardType, s)
	}
	return t, nil
}

// Scope is a leaderboard type with an optional region.
// A region on any type narrows the population to users of that region;
// Regional requires one.
type Scope struct {
	Type   LeaderboardType
	Region string
}

// NewScope builds and validates a scope.
func NewScope(t LeaderboardType, region string) (Scope, error) {
	s := Scope{Type: t, Region: strings.TrimSpace(region)}
	if err := s.Validate(); err != nil {
		return Scope{}, err
	}
	return s, nil
}

// ParseScope parses a type name and region into a validated scope.
func ParseScope(typeName, region string) (Scope, error) {
	t, err := ParseLeaderboardType(typeName)
	if err != nil {
		return Scope{}, err
	}
	return NewScope(t, region)
}

// Validate checks the scope contract.
func (s Scope) Validate() error {
	if !s.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLeaderboardType, s.Type)
	}
	if s.Type == Regional && s.Region == "" {
		return ErrRegionRequired
	}
	return nil
}

// Key returns the subscription topic key: "type" or "type:region".
func (s Scope) Key() string {
	if s.Region == "" {
		return string(s.Type)
	}
	return string(s.Type) + ":" + s.Region
}

// RegionPtr returns the region as a nullable value for storage.
func (s Scope) RegionPtr() *string {
	if s.Region == "" {
		return nil
	}
	r := s.Region
	return &r
}

func (s Scope) String() string {
	return s.Key()
}
