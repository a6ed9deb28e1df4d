package engine

import (
	"fmt"
	"strings"
)

// SquareState is the observed state of a square on the board.
type SquareState uint8

const (
	Open SquareState = iota // Untouched
	Miss                    // Confirmed empty
	Hit                     // Confirmed occupied
	Sunk                    // Occupied by a sunken ship
)

// NumSquareStates is the number of distinct square states.
const NumSquareStates = 4

// String returns the lowercase name of the state.
func (s SquareState) String() string {
	switch s {
	case Open:
		return "open"
	case Miss:
		return "miss"
	case Hit:
		return "hit"
	case Sunk:
		return "sunk"
	}
	return fmt.Sprintf("SquareState(%d)", uint8(s))
}

// Valid reports whether s is one of the four known states.
func (s SquareState) Valid() bool {
	return s < NumSquareStates
}

// Occupiable reports whether a ship that is still afloat may cover a square in this state.
func (s SquareState) Occupiable() bool {
	return s == Open || s == Hit
}

// ParseSquareState parses a state name, case-insensitively.
func ParseSquareState(name string) (SquareState, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "open", "o", ".":
		return Open, nil
	case "miss", "m":
		return Miss, nil
	case "hit", "h", "x":
		return Hit, nil
	case "sunk", "s", "#":
		return Sunk, nil
	}
	return Open, fmt.Errorf("unknown square state %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s SquareState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid square state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SquareState) UnmarshalText(text []byte) error {
	v, err := ParseSquareState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Symbol returns a one-character rendering of the state for text boards.
func (s SquareState) Symbol() byte {
	switch s {
	case Miss:
		return 'o'
	case Hit:
		return 'x'
	case Sunk:
		return '#'
	}
	return '.'
}
