package engine

import (
	"fmt"
	"slices"
	"strings"
)

// Ship is the geometry of a single ship: a set of squares.
//
// Squares are kept sorted and unique. bottomRight holds the component-wise
// maximum of all squares and only ever grows, since ships are never shrunk.
type Ship struct {
	squares     []Square
	bottomRight Square
}

// NewShip creates a ship from the given squares. Duplicates are ignored.
func NewShip(squares ...Square) *Ship {
	s := &Ship{squares: make([]Square, 0, len(squares))}
	for _, sq := range squares {
		s.AddSquare(sq.X, sq.Y)
	}
	return s
}

// AddSquare adds a square to the ship. Adding an existing square is a no-op.
func (s *Ship) AddSquare(x, y int) {
	sq := Square{x, y}
	i, found := slices.BinarySearchFunc(s.squares, sq, Compare)
	if found {
		return
	}
	s.squares = slices.Insert(s.squares, i, sq)

	if len(s.squares) == 1 {
		s.bottomRight = sq
		return
	}
	if x > s.bottomRight.X {
		s.bottomRight.Offset(x-s.bottomRight.X, 0)
	}
	if y > s.bottomRight.Y {
		s.bottomRight.Offset(0, y-s.bottomRight.Y)
	}
}

// NumSquares returns the number of squares in the ship.
func (s *Ship) NumSquares() int {
	return len(s.squares)
}

// Squares returns a sorted copy of the ship's squares.
func (s *Ship) Squares() []Square {
	return slices.Clone(s.squares)
}

// Contains reports whether the ship occupies sq.
func (s *Ship) Contains(sq Square) bool {
	_, found := slices.BinarySearchFunc(s.squares, sq, Compare)
	return found
}

// BottomRight returns the bottom right corner of the rectangle containing the ship.
// After Normalize it gives the ship's extent minus one in each direction.
func (s *Ship) BottomRight() Square {
	return s.bottomRight
}

// Move translates every square of the ship by (dx, dy).
// Ordering is preserved since every square receives the same offset.
func (s *Ship) Move(dx, dy int) {
	for i := range s.squares {
		s.squares[i].Offset(dx, dy)
	}
	s.bottomRight.Offset(dx, dy)
}

// Normalize shifts the ship so its minimum X and minimum Y are both 0.
func (s *Ship) Normalize() {
	if len(s.squares) == 0 {
		return
	}
	minX, minY := s.squares[0].X, s.squares[0].Y
	for _, sq := range s.squares[1:] {
		minX = min(minX, sq.X)
		minY = min(minY, sq.Y)
	}
	s.Move(-minX, -minY)
}

// Clone returns a deep copy of the ship.
func (s *Ship) Clone() *Ship {
	return &Ship{
		squares:     slices.Clone(s.squares),
		bottomRight: s.bottomRight,
	}
}

// RotateClockwise returns a new normalized ship rotated by times quarter turns.
// Negative values rotate anticlockwise. The receiver is not modified.
func (s *Ship) RotateClockwise(times int) *Ship {
	times = ((times % 4) + 4) % 4

	cells := slices.Clone(s.squares)
	for t := 0; t < times; t++ {
		for i, sq := range cells {
			cells[i] = Square{sq.Y, -sq.X}
		}
	}

	rotated := NewShip(cells...)
	rotated.Normalize()
	return rotated
}

// String draws the ship as rows of '#' and '.' characters.
func (s *Ship) String() string {
	if len(s.squares) == 0 {
		return ""
	}
	n := s.Clone()
	n.Normalize()
	br := n.BottomRight()

	var sb strings.Builder
	for y := 0; y <= br.Y; y++ {
		for x := 0; x <= br.X; x++ {
			if n.Contains(Square{x, y}) {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		if y < br.Y {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// ParseShape builds a ship from ASCII art. 'x', 'X', '#' and 'o' mark
// occupied squares; any other character is empty. Rows are separated by
// newlines or '/'. The column is X and the row is Y.
func ParseShape(art string) (*Ship, error) {
	art = strings.ReplaceAll(art, "/", "\n")
	ship := NewShip()
	for y, row := range strings.Split(strings.Trim(art, "\n"), "\n") {
		for x, ch := range strings.TrimRight(row, " \t\r") {
			switch ch {
			case 'x', 'X', '#', 'o':
				ship.AddSquare(x, y)
			}
		}
	}
	if ship.NumSquares() == 0 {
		return nil, fmt.Errorf("shape %q has no squares", art)
	}
	ship.Normalize()
	return ship, nil
}
