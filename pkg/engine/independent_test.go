package engine

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

func domino() *Ship {
	return NewShip(Square{0, 0}, Square{0, 1})
}

// quad is four squares with one detached corner
//
//	x x .
//	x . .
//	. . x
func quad() *Ship {
	return NewShip(Square{0, 0}, Square{0, 1}, Square{1, 0}, Square{2, 2})
}

func newTestBoard(t *testing.T, width, height int, ships ...*Ship) *IndependentBoard {
	t.Helper()
	b, err := NewIndependentBoard(width, height)
	if err != nil {
		t.Fatalf("NewIndependentBoard(%d, %d) error: %v", width, height, err)
	}
	for _, s := range ships {
		if err := b.AddShip(s); err != nil {
			t.Fatalf("AddShip error: %v", err)
		}
	}
	return b
}

// bruteForceCounts re-enumerates every placement of ship from scratch.
func bruteForceCounts(b *IndependentBoard, ship *Ship) ([][]int, int) {
	counts := newMatrix[int](b.Width(), b.Height())
	if b.IsSunk(ship) {
		return counts, 0
	}
	states := b.StatesMatrix()
	total := 0
	for r := 0; r < 4; r++ {
		rotated := ship.RotateClockwise(r)
		for ax := 0; ax < b.Width(); ax++ {
			for ay := 0; ay < b.Height(); ay++ {
				fits := true
				for _, sq := range rotated.Squares() {
					x, y := sq.X+ax, sq.Y+ay
					if x >= b.Width() || y >= b.Height() || !states[x][y].Occupiable() {
						fits = false
						break
					}
				}
				if !fits {
					continue
				}
				for _, sq := range rotated.Squares() {
					counts[sq.X+ax][sq.Y+ay]++
				}
				total++
			}
		}
	}
	return counts, total
}

// checkCounters verifies the running counters against the active flags.
func checkCounters(t *testing.T, b *IndependentBoard) {
	t.Helper()
	for idx, st := range b.stats {
		want := newMatrix[int](b.width, b.height)
		total := 0
		for _, id := range st.placements {
			p := b.placements[id]
			if p.ship != idx {
				t.Fatalf("placement %d owned by ship %d, listed under ship %d", id, p.ship, idx)
			}
			if !p.active {
				continue
			}
			total++
			for _, sq := range p.squares {
				want[sq.X][sq.Y]++
			}
		}
		if !reflect.DeepEqual(st.counts, want) {
			t.Fatalf("ship %d counts = %v, want %v", idx, st.counts, want)
		}
		if st.total != total {
			t.Fatalf("ship %d total = %d, want %d", idx, st.total, total)
		}
	}
}

func TestNewIndependentBoardInvalid(t *testing.T) {
	tests := []struct{ width, height int }{
		{0, 3}, {3, 0}, {-1, 2}, {0, 0},
		{MaxDimension + 1, 1}, {1, MaxDimension + 1},
		{1, math.MaxInt}, {math.MaxInt, math.MaxInt},
	}
	for _, tc := range tests {
		_, err := NewIndependentBoard(tc.width, tc.height)
		if !errors.Is(err, ErrInvalidDimensions) {
			t.Errorf("NewIndependentBoard(%d, %d) error = %v, want ErrInvalidDimensions", tc.width, tc.height, err)
		}
	}

	b, err := NewIndependentBoard(MaxDimension, 1)
	if err != nil {
		t.Fatalf("NewIndependentBoard(%d, 1) error: %v", MaxDimension, err)
	}
	if b.Width() != MaxDimension {
		t.Errorf("Width() = %d, want %d", b.Width(), MaxDimension)
	}
}

func TestNewIndependentBoard(t *testing.T) {
	b := newTestBoard(t, 4, 2)
	if b.Width() != 4 || b.Height() != 2 {
		t.Errorf("size = %dx%d, want 4x2", b.Width(), b.Height())
	}
	for x, col := range b.StatesMatrix() {
		for y, st := range col {
			if st != Open {
				t.Errorf("state (%d,%d) = %v, want open", x, y, st)
			}
		}
	}
}

func TestShipMatrixTromino(t *testing.T) {
	ship := tromino()
	b := newTestBoard(t, 3, 3, ship)

	got, err := b.ShipMatrix(ship)
	if err != nil {
		t.Fatalf("ShipMatrix error: %v", err)
	}
	want := [][]int{{3, 6, 3}, {6, 12, 6}, {3, 6, 3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ShipMatrix = %v, want %v", got, want)
	}

	total, _ := b.Total(ship)
	if total != 16 {
		t.Errorf("Total = %d, want 16", total)
	}
	if b.NumPlacements() != 16 {
		t.Errorf("NumPlacements = %d, want 16", b.NumPlacements())
	}
}

func TestShipsMatrixThreeShips(t *testing.T) {
	b := newTestBoard(t, 3, 3, tromino(), domino(), quad())

	want := [][]int{{9, 14, 9}, {14, 20, 14}, {9, 14, 9}}
	if got := b.ShipsMatrix(); !reflect.DeepEqual(got, want) {
		t.Errorf("ShipsMatrix = %v, want %v", got, want)
	}
}

func TestShipsMatrixNoShips(t *testing.T) {
	b := newTestBoard(t, 2, 3)
	want := [][]int{{0, 0, 0}, {0, 0, 0}}
	if got := b.ShipsMatrix(); !reflect.DeepEqual(got, want) {
		t.Errorf("ShipsMatrix = %v, want %v", got, want)
	}
}

func TestShipProbabilityMatrix(t *testing.T) {
	ship := tromino()
	b := newTestBoard(t, 3, 3, ship)

	got, err := b.ShipProbabilityMatrix(ship)
	if err != nil {
		t.Fatalf("ShipProbabilityMatrix error: %v", err)
	}
	want := [][]float64{
		{3.0 / 16, 6.0 / 16, 3.0 / 16},
		{6.0 / 16, 12.0 / 16, 6.0 / 16},
		{3.0 / 16, 6.0 / 16, 3.0 / 16},
	}
	for x := range want {
		if !floats.EqualApprox(got[x], want[x], 1e-12) {
			t.Errorf("ShipProbabilityMatrix[%d] = %v, want %v", x, got[x], want[x])
		}
	}
}

func TestProbabilityMatrixIndependence(t *testing.T) {
	ships := []*Ship{tromino(), domino(), quad()}
	b := newTestBoard(t, 3, 3, ships...)

	combined := b.ProbabilityMatrix()
	for x := 0; x < 3; x++ {
		for y := 0; y < 3; y++ {
			missAll := 1.0
			for _, s := range ships {
				p, _ := b.ShipProbabilityMatrix(s)
				missAll *= 1 - p[x][y]
			}
			if !scalar.EqualWithinAbs(combined[x][y], 1-missAll, 1e-12) {
				t.Errorf("ProbabilityMatrix[%d][%d] = %f, want %f", x, y, combined[x][y], 1-missAll)
			}
		}
	}
}

func TestAllMissZeroesProbability(t *testing.T) {
	b := newTestBoard(t, 3, 3, tromino(), domino(), quad())

	for x := 0; x < 3; x++ {
		for y := 0; y < 3; y++ {
			if err := b.SetState(x, y, Miss); err != nil {
				t.Fatalf("SetState(%d, %d, Miss) error: %v", x, y, err)
			}
		}
	}

	for x, col := range b.ProbabilityMatrix() {
		for y, p := range col {
			if p != 0 {
				t.Errorf("ProbabilityMatrix[%d][%d] = %f, want 0", x, y, p)
			}
		}
	}
	for _, s := range b.Ships() {
		if total, _ := b.Total(s); total != 0 {
			t.Errorf("Total = %d, want 0", total)
		}
	}
	checkCounters(t, b)
}

func TestMissThenOpenRoundTrip(t *testing.T) {
	b := newTestBoard(t, 3, 3, tromino(), domino(), quad())
	counts := b.ShipsMatrix()
	probs := b.ProbabilityMatrix()

	for x := 0; x < 3; x++ {
		for y := 0; y < 3; y++ {
			if err := b.SetState(x, y, Miss); err != nil {
				t.Fatalf("SetState Miss error: %v", err)
			}
			if reflect.DeepEqual(b.ShipsMatrix(), counts) {
				t.Errorf("Miss at (%d,%d) did not change ShipsMatrix", x, y)
			}
			if err := b.SetState(x, y, Open); err != nil {
				t.Fatalf("SetState Open error: %v", err)
			}
			if got := b.ShipsMatrix(); !reflect.DeepEqual(got, counts) {
				t.Errorf("after Miss/Open at (%d,%d) ShipsMatrix = %v, want %v", x, y, got, counts)
			}
			if got := b.ProbabilityMatrix(); !reflect.DeepEqual(got, probs) {
				t.Errorf("after Miss/Open at (%d,%d) ProbabilityMatrix = %v, want %v", x, y, got, probs)
			}
		}
	}
}

func TestHitKeepsPlacements(t *testing.T) {
	b := newTestBoard(t, 3, 3, tromino())
	before := b.ShipsMatrix()

	if err := b.SetState(1, 1, Hit); err != nil {
		t.Fatalf("SetState Hit error: %v", err)
	}
	if got := b.ShipsMatrix(); !reflect.DeepEqual(got, before) {
		t.Errorf("ShipsMatrix after Hit = %v, want %v", got, before)
	}

	// Miss -> Hit restores placements through the square
	if err := b.SetState(1, 1, Miss); err != nil {
		t.Fatalf("SetState Miss error: %v", err)
	}
	if err := b.SetState(1, 1, Hit); err != nil {
		t.Fatalf("SetState Hit error: %v", err)
	}
	if got := b.ShipsMatrix(); !reflect.DeepEqual(got, before) {
		t.Errorf("ShipsMatrix after Miss/Hit = %v, want %v", got, before)
	}
	if st, _ := b.State(1, 1); st != Hit {
		t.Errorf("State(1,1) = %v, want hit", st)
	}
}

func TestMissTwoSquaresThenOpenOne(t *testing.T) {
	ship := tromino()
	b := newTestBoard(t, 3, 3, ship)

	b.SetState(0, 0, Miss)
	b.SetState(1, 1, Miss)
	b.SetState(0, 0, Open)

	want, wantTotal := bruteForceCounts(b, ship)
	got, _ := b.ShipMatrix(ship)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ShipMatrix = %v, want %v", got, want)
	}
	if total, _ := b.Total(ship); total != wantTotal {
		t.Errorf("Total = %d, want %d", total, wantTotal)
	}
}

func TestSetStateErrors(t *testing.T) {
	ship := tromino()
	b := newTestBoard(t, 3, 3, ship)
	for _, sq := range []Square{{0, 0}, {0, 1}, {1, 0}} {
		b.SetState(sq.X, sq.Y, Hit)
	}
	if ok, _ := b.Sink(ship, 0, 0, 0); !ok {
		t.Fatal("Sink failed")
	}

	states := b.StatesMatrix()
	counts := b.ShipsMatrix()

	tests := []struct {
		name    string
		x, y    int
		state   SquareState
		wantErr error
	}{
		{"left of board", -1, 0, Miss, ErrOutOfBounds},
		{"below board", 0, 3, Miss, ErrOutOfBounds},
		{"right of board", 3, 2, Open, ErrOutOfBounds},
		{"sunk target", 2, 2, Sunk, ErrIllegalTargetState},
		{"unknown target", 2, 2, SquareState(9), ErrIllegalTargetState},
		{"change sunk square", 0, 0, Open, ErrIllegalTargetState},
		{"miss sunk square", 0, 1, Miss, ErrIllegalTargetState},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := b.SetState(tc.x, tc.y, tc.state)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("SetState error = %v, want %v", err, tc.wantErr)
			}
			if !reflect.DeepEqual(b.StatesMatrix(), states) {
				t.Error("failed SetState changed the board states")
			}
			if !reflect.DeepEqual(b.ShipsMatrix(), counts) {
				t.Error("failed SetState changed the counts")
			}
		})
	}
}

func TestSetStateSameStateNoop(t *testing.T) {
	b := newTestBoard(t, 3, 3, tromino())
	b.SetState(1, 1, Miss)
	before := b.ShipsMatrix()

	if err := b.SetState(1, 1, Miss); err != nil {
		t.Fatalf("SetState error: %v", err)
	}
	if got := b.ShipsMatrix(); !reflect.DeepEqual(got, before) {
		t.Errorf("repeated Miss changed counts: %v, want %v", got, before)
	}
	checkCounters(t, b)
}

func TestStateOutOfBounds(t *testing.T) {
	b := newTestBoard(t, 2, 2)
	if _, err := b.State(2, 0); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("State(2,0) error = %v, want ErrOutOfBounds", err)
	}
}

func TestSinkTromino(t *testing.T) {
	ship := tromino()
	b := newTestBoard(t, 3, 3, ship)

	hits := []Square{{0, 0}, {0, 1}, {1, 0}}
	for _, sq := range hits {
		if err := b.SetState(sq.X, sq.Y, Hit); err != nil {
			t.Fatalf("SetState Hit error: %v", err)
		}
	}

	ok, err := b.Sink(ship, 0, 0, 0)
	if err != nil || !ok {
		t.Fatalf("Sink = %v, %v, want true, nil", ok, err)
	}

	for _, sq := range hits {
		if st, _ := b.State(sq.X, sq.Y); st != Sunk {
			t.Errorf("State%v = %v, want sunk", sq, st)
		}
	}
	for x, col := range b.ShipsMatrix() {
		for y, c := range col {
			if c != 0 {
				t.Errorf("ShipsMatrix[%d][%d] = %d, want 0", x, y, c)
			}
		}
	}
	if total, _ := b.Total(ship); total != 0 {
		t.Errorf("Total = %d, want 0", total)
	}
	if !b.IsSunk(ship) {
		t.Error("IsSunk = false, want true")
	}
	squares, ok := b.SunkSquares(ship)
	if !ok || !reflect.DeepEqual(squares, hits) {
		t.Errorf("SunkSquares = %v, %v, want %v, true", squares, ok, hits)
	}
	checkCounters(t, b)
}

func TestSinkRotated(t *testing.T) {
	ship := tromino()
	b := newTestBoard(t, 3, 3, ship)

	// Rotation 2 is (0,1) (1,0) (1,1); anchored at (1,1)
	for _, sq := range []Square{{1, 2}, {2, 1}, {2, 2}} {
		b.SetState(sq.X, sq.Y, Hit)
	}
	ok, err := b.Sink(ship, 2, 1, 1)
	if err != nil || !ok {
		t.Fatalf("Sink = %v, %v, want true, nil", ok, err)
	}
	if st, _ := b.State(2, 2); st != Sunk {
		t.Errorf("State(2,2) = %v, want sunk", st)
	}
}

func TestSinkDisablesOtherShips(t *testing.T) {
	tri, dom := tromino(), domino()
	b := newTestBoard(t, 3, 3, tri, dom)

	for _, sq := range []Square{{0, 0}, {0, 1}, {1, 0}} {
		b.SetState(sq.X, sq.Y, Hit)
	}
	if ok, _ := b.Sink(tri, 0, 0, 0); !ok {
		t.Fatal("Sink failed")
	}

	want, wantTotal := bruteForceCounts(b, dom)
	got, _ := b.ShipMatrix(dom)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("domino ShipMatrix = %v, want %v", got, want)
	}
	if total, _ := b.Total(dom); total != wantTotal {
		t.Errorf("domino Total = %d, want %d", total, wantTotal)
	}
	checkCounters(t, b)
}

func TestSinkRejected(t *testing.T) {
	ship := tromino()
	b := newTestBoard(t, 3, 3, ship)
	b.SetState(0, 0, Hit)
	b.SetState(0, 1, Hit)

	states := b.StatesMatrix()
	counts := b.ShipsMatrix()

	tests := []struct {
		name           string
		rotation, x, y int
	}{
		{"one square open", 0, 0, 0},
		{"off the board", 0, 2, 2},
		{"negative anchor", 0, -1, 0},
		{"wrong rotation", 1, 0, 0},
	}

	for _, tc := range tests {
		ok, err := b.Sink(ship, tc.rotation, tc.x, tc.y)
		if err != nil || ok {
			t.Errorf("%s: Sink = %v, %v, want false, nil", tc.name, ok, err)
		}
		if !reflect.DeepEqual(b.StatesMatrix(), states) || !reflect.DeepEqual(b.ShipsMatrix(), counts) {
			t.Errorf("%s: rejected Sink changed the board", tc.name)
		}
	}
	if b.IsSunk(ship) {
		t.Error("IsSunk = true after rejected sinks")
	}
}

func TestSinkTwiceRejected(t *testing.T) {
	ship := domino()
	b := newTestBoard(t, 3, 3, ship)
	for _, sq := range []Square{{0, 0}, {0, 1}, {2, 0}, {2, 1}} {
		b.SetState(sq.X, sq.Y, Hit)
	}
	if ok, _ := b.Sink(ship, 0, 0, 0); !ok {
		t.Fatal("first Sink failed")
	}
	if ok, _ := b.Sink(ship, 0, 2, 0); ok {
		t.Error("second Sink of a sunk ship succeeded")
	}
	if st, _ := b.State(2, 0); st != Hit {
		t.Errorf("State(2,0) = %v, want hit", st)
	}
}

func TestSinkUnknownShip(t *testing.T) {
	b := newTestBoard(t, 3, 3, tromino())
	ok, err := b.Sink(domino(), 0, 0, 0)
	if ok || !errors.Is(err, ErrUnknownShip) {
		t.Errorf("Sink(unknown) = %v, %v, want false, ErrUnknownShip", ok, err)
	}
}

func TestSinkThenRaiseRoundTrip(t *testing.T) {
	ship := tromino()
	b := newTestBoard(t, 4, 4, ship)
	for _, sq := range []Square{{1, 1}, {1, 2}, {2, 1}} {
		b.SetState(sq.X, sq.Y, Hit)
	}
	before, _ := b.ShipMatrix(ship)
	beforeTotal, _ := b.Total(ship)

	if ok, _ := b.Sink(ship, 0, 1, 1); !ok {
		t.Fatal("Sink failed")
	}
	if err := b.Raise(ship); err != nil {
		t.Fatalf("Raise error: %v", err)
	}

	got, _ := b.ShipMatrix(ship)
	if !reflect.DeepEqual(got, before) {
		t.Errorf("ShipMatrix after Raise = %v, want %v", got, before)
	}
	if total, _ := b.Total(ship); total != beforeTotal {
		t.Errorf("Total after Raise = %d, want %d", total, beforeTotal)
	}
	for _, sq := range []Square{{1, 1}, {1, 2}, {2, 1}} {
		if st, _ := b.State(sq.X, sq.Y); st != Hit {
			t.Errorf("State%v = %v, want hit", sq, st)
		}
	}
	if b.IsSunk(ship) {
		t.Error("IsSunk = true after Raise")
	}
	checkCounters(t, b)
}

func TestRaiseLeavesOtherShipsDisabled(t *testing.T) {
	tri, dom := tromino(), domino()
	b := newTestBoard(t, 3, 3, tri, dom)
	for _, sq := range []Square{{0, 0}, {0, 1}, {1, 0}} {
		b.SetState(sq.X, sq.Y, Hit)
	}
	before, _ := b.ShipMatrix(dom)

	b.Sink(tri, 0, 0, 0)
	afterSink, _ := b.ShipMatrix(dom)
	if err := b.Raise(tri); err != nil {
		t.Fatalf("Raise error: %v", err)
	}

	got, _ := b.ShipMatrix(dom)
	if !reflect.DeepEqual(got, afterSink) {
		t.Errorf("domino ShipMatrix after Raise = %v, want unchanged %v", got, afterSink)
	}
	if reflect.DeepEqual(got, before) {
		t.Error("domino placements were restored by Raise")
	}
	checkCounters(t, b)

	// Touching the squares again re-evaluates the domino
	for _, sq := range []Square{{0, 0}, {0, 1}, {1, 0}} {
		b.SetState(sq.X, sq.Y, Open)
		b.SetState(sq.X, sq.Y, Hit)
	}
	got, _ = b.ShipMatrix(dom)
	if !reflect.DeepEqual(got, before) {
		t.Errorf("domino ShipMatrix after re-touch = %v, want %v", got, before)
	}
}

func TestRaiseErrors(t *testing.T) {
	ship := tromino()
	b := newTestBoard(t, 3, 3, ship)

	if err := b.Raise(ship); !errors.Is(err, ErrUnknownSunkShip) {
		t.Errorf("Raise(not sunk) error = %v, want ErrUnknownSunkShip", err)
	}
	if err := b.Raise(domino()); !errors.Is(err, ErrUnknownShip) {
		t.Errorf("Raise(unknown) error = %v, want ErrUnknownShip", err)
	}
}

func TestAddShipErrors(t *testing.T) {
	ship := tromino()
	b := newTestBoard(t, 3, 3, ship)

	if err := b.AddShip(ship); !errors.Is(err, ErrDuplicateShip) {
		t.Errorf("AddShip(duplicate) error = %v, want ErrDuplicateShip", err)
	}
	if err := b.AddShip(nil); !errors.Is(err, ErrUnknownShip) {
		t.Errorf("AddShip(nil) error = %v, want ErrUnknownShip", err)
	}
	if err := b.AddShip(NewShip()); !errors.Is(err, ErrEmptyShip) {
		t.Errorf("AddShip(empty) error = %v, want ErrEmptyShip", err)
	}
	if len(b.Ships()) != 1 {
		t.Errorf("len(Ships()) = %d, want 1", len(b.Ships()))
	}
}

func TestAddShipOnMarkedBoard(t *testing.T) {
	b := newTestBoard(t, 3, 3)
	b.SetState(1, 1, Miss)

	ship := tromino()
	if err := b.AddShip(ship); err != nil {
		t.Fatalf("AddShip error: %v", err)
	}
	if b.NumPlacements() != 16 {
		t.Errorf("NumPlacements = %d, want 16", b.NumPlacements())
	}
	want, wantTotal := bruteForceCounts(b, ship)
	got, _ := b.ShipMatrix(ship)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ShipMatrix = %v, want %v", got, want)
	}
	if total, _ := b.Total(ship); total != wantTotal {
		t.Errorf("Total = %d, want %d", total, wantTotal)
	}

	// Placements recorded while inactive come back once the square opens
	b.SetState(1, 1, Open)
	if total, _ := b.Total(ship); total != 16 {
		t.Errorf("Total after Open = %d, want 16", total)
	}
}

func TestAddShipIgnoresLaterChanges(t *testing.T) {
	ship := domino()
	b := newTestBoard(t, 3, 3, ship)
	before, _ := b.ShipMatrix(ship)

	ship.AddSquare(0, 2)
	ship.Move(4, 4)

	b.SetState(1, 1, Miss)
	b.SetState(1, 1, Open)
	got, _ := b.ShipMatrix(ship)
	if !reflect.DeepEqual(got, before) {
		t.Errorf("ShipMatrix = %v, want %v", got, before)
	}
	for _, sq := range []Square{{0, 0}, {0, 1}} {
		b.SetState(sq.X, sq.Y, Hit)
	}
	if ok, _ := b.Sink(ship, 0, 0, 0); !ok {
		t.Error("Sink with registered geometry failed")
	}
}

func TestCheckConfig(t *testing.T) {
	b := newTestBoard(t, 3, 3)
	b.SetState(1, 1, Miss)
	b.SetState(2, 2, Hit)

	tests := []struct {
		name    string
		squares []Square
		want    bool
	}{
		{"open squares", []Square{{0, 0}, {0, 1}}, true},
		{"hit square", []Square{{2, 2}, {2, 1}}, true},
		{"miss square", []Square{{1, 1}, {1, 0}}, false},
		{"off the board", []Square{{2, 2}, {3, 2}}, false},
		{"negative", []Square{{-1, 0}}, false},
		{"empty", nil, true},
	}
	for _, tc := range tests {
		if got := b.CheckConfig(tc.squares); got != tc.want {
			t.Errorf("%s: CheckConfig(%v) = %v, want %v", tc.name, tc.squares, got, tc.want)
		}
	}

	// (1,0) (1,1) (2,0) covers the miss
	if b.CheckPlacement(tromino(), 1, 0) {
		t.Error("CheckPlacement over a miss = true, want false")
	}
	if !b.CheckPlacement(tromino(), 0, 0) {
		t.Error("CheckPlacement(0,0) = false, want true")
	}
	if b.CheckPlacement(tromino(), 2, 0) {
		t.Error("CheckPlacement off the board = true, want false")
	}
	if b.CheckPlacement(nil, 0, 0) {
		t.Error("CheckPlacement(nil) = true, want false")
	}
}

func TestMatricesAreCopies(t *testing.T) {
	ship := tromino()
	b := newTestBoard(t, 3, 3, ship)

	counts := b.ShipsMatrix()
	counts[1][1] = 99
	shipCounts, _ := b.ShipMatrix(ship)
	shipCounts[0][0] = 99
	probs := b.ProbabilityMatrix()
	probs[1][1] = 99
	states := b.StatesMatrix()
	states[0][0] = Miss

	if got := b.ShipsMatrix()[1][1]; got != 12 {
		t.Errorf("ShipsMatrix[1][1] = %d after mutating a copy, want 12", got)
	}
	if got, _ := b.ShipMatrix(ship); got[0][0] != 3 {
		t.Errorf("ShipMatrix[0][0] = %d after mutating a copy, want 3", got[0][0])
	}
	if got := b.ProbabilityMatrix()[1][1]; got != 0.75 {
		t.Errorf("ProbabilityMatrix[1][1] = %f after mutating a copy, want 0.75", got)
	}
	if st, _ := b.State(0, 0); st != Open {
		t.Errorf("State(0,0) = %v after mutating a copy, want open", st)
	}
}

func TestUnknownShipQueries(t *testing.T) {
	b := newTestBoard(t, 3, 3, tromino())
	other := domino()

	if _, err := b.ShipMatrix(other); !errors.Is(err, ErrUnknownShip) {
		t.Errorf("ShipMatrix error = %v, want ErrUnknownShip", err)
	}
	if _, err := b.ShipProbabilityMatrix(other); !errors.Is(err, ErrUnknownShip) {
		t.Errorf("ShipProbabilityMatrix error = %v, want ErrUnknownShip", err)
	}
	if _, err := b.Total(other); !errors.Is(err, ErrUnknownShip) {
		t.Errorf("Total error = %v, want ErrUnknownShip", err)
	}
	if _, err := b.NumShipPlacements(other); !errors.Is(err, ErrUnknownShip) {
		t.Errorf("NumShipPlacements error = %v, want ErrUnknownShip", err)
	}
	if b.IsSunk(other) {
		t.Error("IsSunk(unknown) = true")
	}
}

// TestRandomOperationsMatchBruteForce applies random misses, hits, opens and
// sinks and compares every ship against a full re-enumeration.
func TestRandomOperationsMatchBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ships := []*Ship{
		tromino(),
		domino(),
		NewShip(Square{0, 0}, Square{0, 1}, Square{0, 2}),
		NewShip(Square{0, 0}, Square{1, 0}, Square{1, 1}, Square{2, 1}),
	}
	b := newTestBoard(t, 6, 5, ships...)

	for step := 0; step < 400; step++ {
		x, y := rng.Intn(b.Width()), rng.Intn(b.Height())
		switch op := rng.Intn(10); {
		case op < 4:
			b.SetState(x, y, Miss)
		case op < 7:
			b.SetState(x, y, Hit)
		case op < 9:
			b.SetState(x, y, Open)
		default:
			ship := ships[rng.Intn(len(ships))]
			b.Sink(ship, rng.Intn(4), x, y)
		}

		checkCounters(t, b)
		for i, s := range ships {
			want, wantTotal := bruteForceCounts(b, s)
			got, _ := b.ShipMatrix(s)
			total, _ := b.Total(s)
			if !reflect.DeepEqual(got, want) || total != wantTotal {
				t.Fatalf("step %d: ship %d counts = %v (total %d), want %v (total %d)",
					step, i, got, total, want, wantTotal)
			}
		}
	}
}

// TestRandomOperationsWithRaise includes raises, after which only the
// counter/flag agreement is guaranteed.
func TestRandomOperationsWithRaise(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ships := []*Ship{tromino(), domino(), quad()}
	b := newTestBoard(t, 5, 5, ships...)

	for step := 0; step < 400; step++ {
		ship := ships[rng.Intn(len(ships))]
		x, y := rng.Intn(b.Width()), rng.Intn(b.Height())
		switch op := rng.Intn(8); op {
		case 0, 1:
			b.SetState(x, y, Miss)
		case 2, 3:
			b.SetState(x, y, Hit)
		case 4:
			b.SetState(x, y, Open)
		case 5:
			rotation := rng.Intn(4)
			for _, sq := range b.footprint(b.shipIndex[ship], rotation, x, y) {
				b.SetState(sq.X, sq.Y, Hit)
			}
			b.Sink(ship, rotation, x, y)
		default:
			b.Raise(ship)
		}
		checkCounters(t, b)

		for _, s := range ships {
			counts, _ := b.ShipMatrix(s)
			total, _ := b.Total(s)
			for cx := range counts {
				for cy, c := range counts[cx] {
					if c < 0 || c > total {
						t.Fatalf("step %d: count %d at (%d,%d) outside [0, %d]", step, c, cx, cy, total)
					}
				}
			}
		}
	}
}

func BenchmarkSetState(b *testing.B) {
	board, _ := NewIndependentBoard(10, 10)
	for _, n := range []int{5, 4, 3, 3, 2} {
		ship := NewShip()
		for j := 0; j < n; j++ {
			ship.AddSquare(0, j)
		}
		board.AddShip(ship)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x, y := i%10, (i/10)%10
		board.SetState(x, y, Miss)
		board.SetState(x, y, Open)
	}
}
