// Package record provides import/export of battleships game records.
//
// A record is the board size, the fleet, and the sequence of actions applied
// to the board. Replaying the actions onto a fresh board reproduces the game.
package record

import (
	"fmt"
	"strings"

	"github.com/yourusername/bsengine/pkg/engine"
)

// Record is a complete game record.
type Record struct {
	// Metadata
	Event   string // Event name
	Date    string // Game date (YYYY-MM-DD format)
	Place   string // Location
	Comment string // General comments
	State   string // State ID of the final board, if known

	Width   int
	Height  int
	Ships   []ShipEntry
	Actions []Action
}

// ShipEntry is a named ship of the fleet.
type ShipEntry struct {
	Name    string
	Squares []engine.Square
}

// ActionType represents the type of a recorded action.
type ActionType int

const (
	ActionMiss  ActionType = iota // Square marked as a miss
	ActionHit                     // Square marked as a hit
	ActionOpen                    // Square reset to open
	ActionSink                    // Ship sunk
	ActionRaise                   // Sink reverted
)

var actionNames = [...]string{"miss", "hit", "open", "sink", "raise"}

// String returns the keyword used for the action in record files.
func (t ActionType) String() string {
	if t >= 0 && int(t) < len(actionNames) {
		return actionNames[t]
	}
	return fmt.Sprintf("ActionType(%d)", int(t))
}

// ParseActionType parses an action keyword.
func ParseActionType(s string) (ActionType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range actionNames {
		if s == name {
			return ActionType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// ActionForState returns the action that sets a square to state.
func ActionForState(state engine.SquareState) (ActionType, bool) {
	switch state {
	case engine.Miss:
		return ActionMiss, true
	case engine.Hit:
		return ActionHit, true
	case engine.Open:
		return ActionOpen, true
	}
	return 0, false
}

// State returns the square state set by a miss, hit or open action.
func (t ActionType) State() (engine.SquareState, bool) {
	switch t {
	case ActionMiss:
		return engine.Miss, true
	case ActionHit:
		return engine.Hit, true
	case ActionOpen:
		return engine.Open, true
	}
	return engine.Open, false
}

// Action represents a single recorded action.
type Action struct {
	Type     ActionType
	Square   engine.Square // Target square, or sink anchor
	Ship     string        // Ship name (for ActionSink and ActionRaise)
	Rotation int           // Quarter turns clockwise (for ActionSink)
}

// NewRecord creates an empty record for a board of the given size.
func NewRecord(width, height int) *Record {
	return &Record{
		Width:   width,
		Height:  height,
		Ships:   make([]ShipEntry, 0),
		Actions: make([]Action, 0),
	}
}

// AddShip adds a named ship to the fleet.
func (r *Record) AddShip(name string, ship *engine.Ship) {
	r.Ships = append(r.Ships, ShipEntry{Name: name, Squares: ship.Squares()})
}

// AddState adds a miss, hit or open action.
func (r *Record) AddState(x, y int, state engine.SquareState) error {
	t, ok := ActionForState(state)
	if !ok {
		return fmt.Errorf("no action sets a square to %v", state)
	}
	r.Actions = append(r.Actions, Action{Type: t, Square: engine.Square{X: x, Y: y}})
	return nil
}

// AddSink adds a sink action.
func (r *Record) AddSink(name string, rotation, x, y int) {
	r.Actions = append(r.Actions, Action{
		Type:     ActionSink,
		Ship:     name,
		Rotation: rotation,
		Square:   engine.Square{X: x, Y: y},
	})
}

// AddRaise adds a raise action.
func (r *Record) AddRaise(name string) {
	r.Actions = append(r.Actions, Action{
		Type: ActionRaise,
		Ship: name,
	})
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := *r
	out.Ships = make([]ShipEntry, len(r.Ships))
	for i, s := range r.Ships {
		out.Ships[i] = ShipEntry{Name: s.Name, Squares: append([]engine.Square(nil), s.Squares...)}
	}
	out.Actions = append(make([]Action, 0, len(r.Actions)), r.Actions...)
	return &out
}
