// Package api provides the HTTP/JSON API for battleships sessions.
package api

import (
	"github.com/yourusername/bsengine/pkg/engine"
	"github.com/yourusername/bsengine/pkg/game"
)

// ============================================================================
// Request Types
// ============================================================================

// CreateSessionRequest is the request body for starting a session.
// Without a fleet the server's default board and fleet are used.
type CreateSessionRequest struct {
	Fleet *game.FleetSpec `json:"fleet,omitempty" validate:"omitempty"`
}

// StateRequest sets one square.
type StateRequest struct {
	X     int    `json:"x" validate:"gte=0"`
	Y     int    `json:"y" validate:"gte=0"`
	State string `json:"state" validate:"required,oneof=open miss hit"` // "open", "miss" or "hit"
}

// SquareRequest names one square.
type SquareRequest struct {
	X int `json:"x" validate:"gte=0"`
	Y int `json:"y" validate:"gte=0"`
}

// SinkRequest sinks a ship at a rotation and anchor.
type SinkRequest struct {
	Ship     string `json:"ship" validate:"required"`
	Rotation int    `json:"rotation"` // Quarter turns clockwise
	X        int    `json:"x" validate:"gte=0"`
	Y        int    `json:"y" validate:"gte=0"`
}

// RaiseRequest reverts a sink.
type RaiseRequest struct {
	Ship string `json:"ship" validate:"required"`
}

// ImportRequest creates a session from a record in text format.
type ImportRequest struct {
	Record string `json:"record" validate:"required"`
}

// ============================================================================
// Response Types
// ============================================================================

// SessionResponse is a snapshot of a session.
type SessionResponse = game.View

// SessionListResponse lists known sessions.
type SessionListResponse struct {
	Sessions []string `json:"sessions"`
}

// CycleResponse reports the state a square moved to.
type CycleResponse struct {
	Square  engine.Square      `json:"square"`
	State   engine.SquareState `json:"state"`
	StateID string             `json:"state_id"`
}

// SinkResponse reports whether a sink was accepted.
type SinkResponse struct {
	Sunk    bool   `json:"sunk"`
	StateID string `json:"state_id"`
}

// TargetsResponse lists recommended squares, best first.
type TargetsResponse struct {
	RankBy  string          `json:"rank_by"`
	Targets []engine.Target `json:"targets"`
}

// ErrorResponse is returned when an error occurs.
type ErrorResponse struct {
	Error   string `json:"error"`             // Error message
	Code    string `json:"code,omitempty"`    // Error code
	Details string `json:"details,omitempty"` // Additional details
}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status   string     `json:"status"`         // "ok" or "error"
	Version  string     `json:"version"`        // Server version
	Ready    bool       `json:"ready"`          // Whether sessions can be served
	Sessions int        `json:"sessions"`       // Known sessions
	Pool     *PoolStats `json:"pool,omitempty"` // Worker pool statistics
}

// ShipProbabilityResponse is the probability matrix of one ship, indexed [x][y].
type ShipProbabilityResponse struct {
	Ship        string      `json:"ship"`
	Probability [][]float64 `json:"probability"`
}
