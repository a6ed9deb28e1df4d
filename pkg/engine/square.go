// Package engine provides the placement-probability engine for battleships.
package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Square is a single board coordinate.
// X is the column, Y is the row. Squares are compared X first, then Y.
type Square struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Compare returns -1, 0 or +1 ordering a before, equal to, or after b.
func Compare(a, b Square) int {
	switch {
	case a.X < b.X:
		return -1
	case a.X > b.X:
		return 1
	case a.Y < b.Y:
		return -1
	case a.Y > b.Y:
		return 1
	}
	return 0
}

// Less reports whether s sorts before o.
func (s Square) Less(o Square) bool {
	return Compare(s, o) < 0
}

// Offset shifts the square in place
func (s *Square) Offset(dx, dy int) {
	s.X += dx
	s.Y += dy
}

// Translate returns a copy of s shifted by (dx, dy).
func (s Square) Translate(dx, dy int) Square {
	return Square{s.X + dx, s.Y + dy}
}

func (s Square) String() string {
	return fmt.Sprintf("(%d,%d)", s.X, s.Y)
}

// ParseSquare parses "x,y" (optionally wrapped in parentheses).
func ParseSquare(s string) (Square, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")

	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Square{}, fmt.Errorf("square %q should be in format 'x,y'", s)
	}
	x, errX := strconv.Atoi(strings.TrimSpace(parts[0]))
	y, errY := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errX != nil || errY != nil {
		return Square{}, fmt.Errorf("square %q has non-integer coordinates", s)
	}
	return Square{x, y}, nil
}
