package engine

import (
	"fmt"
	"slices"
	"time"
)

// IndependentBoard is a Board that counts placements independently for each ship.
//
// Every geometrically possible placement (rotation and anchor) of every ship
// is enumerated once, in AddShip, and kept for the lifetime of the board.
// Placements are only switched on and off afterwards. A reverse index from
// square to covering placements lets a single square change touch only the
// placements that cover it.
//
// The combined probability treats each ship as independent of the others:
//
//	P(A or B) = P(A) + P(B) - P(A)P(B)
//
// This ignores that placing one ship rules out placements of another, so the
// combined probability is an approximation. ShipsMatrix is an exact count.
//
// IndependentBoard is not safe for concurrent use. Callers must serialize
// all access, e.g. with a single mutex per board.
type IndependentBoard struct {
	width  int
	height int

	board [][]SquareState

	ships     []*Ship
	shipIndex map[*Ship]int
	shapes    []*Ship // normalized geometry captured at registration
	stats     []shipStats

	placements []placement
	covering   [][][]int // [x][y] -> ids of placements covering the square

	sunk map[int][]Square // ship index -> squares it was sunk on
}

// placement is one rotation and anchor of a registered ship.
type placement struct {
	squares []Square
	ship    int
	active  bool
}

// shipStats holds the running counters of one ship.
type shipStats struct {
	counts     [][]int // active placements covering each square
	total      int     // active placements
	placements []int   // ids of every placement owned by the ship
}

// MaxDimension is the largest accepted board width or height.
const MaxDimension = 256

// NewIndependentBoard creates a board with the given width and height.
// All squares start Open.
func NewIndependentBoard(width, height int) (*IndependentBoard, error) {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("new board %dx%d: %w", width, height, ErrInvalidDimensions)
	}

	b := &IndependentBoard{
		width:     width,
		height:    height,
		board:     newMatrix[SquareState](width, height),
		shipIndex: make(map[*Ship]int),
		covering:  newMatrix[[]int](width, height),
		sunk:      make(map[int][]Square),
	}
	return b, nil
}

// Width returns the horizontal size of the board.
func (b *IndependentBoard) Width() int {
	return b.width
}

// Height returns the vertical size of the board.
func (b *IndependentBoard) Height() int {
	return b.height
}

func (b *IndependentBoard) inBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

// State returns the state of the square at (x, y).
func (b *IndependentBoard) State(x, y int) (SquareState, error) {
	if !b.inBounds(x, y) {
		return Open, fmt.Errorf("state of (%d,%d): %w", x, y, ErrOutOfBounds)
	}
	return b.board[x][y], nil
}

// StatesMatrix returns a copy of all square states.
func (b *IndependentBoard) StatesMatrix() [][]SquareState {
	return copyMatrix(b.board)
}

// Ships returns the registered ships in registration order.
func (b *IndependentBoard) Ships() []*Ship {
	return slices.Clone(b.ships)
}

// NumPlacements returns the number of placements enumerated so far, active or not.
func (b *IndependentBoard) NumPlacements() int {
	return len(b.placements)
}

// AddShip registers a ship and enumerates its placements in all four rotations.
//
// Placements that conflict with the current board are still recorded, just
// inactive. The ship's geometry is captured here; later changes to ship have
// no effect on this board.
func (b *IndependentBoard) AddShip(ship *Ship) error {
	if ship == nil {
		return fmt.Errorf("add nil ship: %w", ErrUnknownShip)
	}
	if _, ok := b.shipIndex[ship]; ok {
		return ErrDuplicateShip
	}
	if ship.NumSquares() == 0 {
		return ErrEmptyShip
	}
	defer observe("add_ship", time.Now())

	shape := ship.Clone()
	shape.Normalize()

	idx := len(b.ships)
	b.ships = append(b.ships, ship)
	b.shipIndex[ship] = idx
	b.shapes = append(b.shapes, shape)
	b.stats = append(b.stats, shipStats{counts: newMatrix[int](b.width, b.height)})

	created := 0
	for rotation := 0; rotation < 4; rotation++ {
		rotated := shape.RotateClockwise(rotation)
		extent := rotated.BottomRight()
		squares := rotated.Squares()

		for x := 0; x+extent.X < b.width; x++ {
			for y := 0; y+extent.Y < b.height; y++ {
				b.addPlacement(idx, squares, x, y)
				created++
			}
		}
	}
	placementsRegistered.Add(float64(created))
	return nil
}

// addPlacement records squares anchored at (x, y) as a new placement of ship idx.
func (b *IndependentBoard) addPlacement(idx int, squares []Square, x, y int) {
	id := len(b.placements)

	abs := make([]Square, len(squares))
	for i, sq := range squares {
		abs[i] = sq.Translate(x, y)
	}

	b.placements = append(b.placements, placement{squares: abs, ship: idx})
	b.stats[idx].placements = append(b.stats[idx].placements, id)

	for _, sq := range abs {
		b.covering[sq.X][sq.Y] = append(b.covering[sq.X][sq.Y], id)
	}

	if b.CheckConfig(abs) {
		b.enable(id)
	}
}

// CheckConfig reports whether every square is on the board and Open or Hit.
func (b *IndependentBoard) CheckConfig(squares []Square) bool {
	for _, sq := range squares {
		if !b.inBounds(sq.X, sq.Y) || !b.board[sq.X][sq.Y].Occupiable() {
			return false
		}
	}
	return true
}

// CheckPlacement reports whether ship, as given, fits the board when moved by (x, y).
func (b *IndependentBoard) CheckPlacement(ship *Ship, x, y int) bool {
	if ship == nil {
		return false
	}
	squares := ship.Squares()
	for i := range squares {
		squares[i].Offset(x, y)
	}
	return b.CheckConfig(squares)
}

// enable switches a placement on and adds it to its ship's counters.
func (b *IndependentBoard) enable(id int) {
	p := &b.placements[id]
	p.active = true

	st := &b.stats[p.ship]
	for _, sq := range p.squares {
		st.counts[sq.X][sq.Y]++
	}
	st.total++
}

// disable switches a placement off and removes it from its ship's counters.
func (b *IndependentBoard) disable(id int) {
	p := &b.placements[id]
	p.active = false

	st := &b.stats[p.ship]
	for _, sq := range p.squares {
		st.counts[sq.X][sq.Y]--
	}
	st.total--
}

// disableAt switches off every active placement covering (x, y).
func (b *IndependentBoard) disableAt(x, y int) int {
	n := 0
	for _, id := range b.covering[x][y] {
		if b.placements[id].active {
			b.disable(id)
			n++
		}
	}
	return n
}

// enableAt switches on every inactive placement covering (x, y) that now fits.
func (b *IndependentBoard) enableAt(x, y int) int {
	n := 0
	for _, id := range b.covering[x][y] {
		p := &b.placements[id]
		if p.active || b.isSunk(p.ship) {
			continue
		}
		if b.CheckConfig(p.squares) {
			b.enable(id)
			n++
		}
	}
	return n
}

func (b *IndependentBoard) isSunk(idx int) bool {
	_, ok := b.sunk[idx]
	return ok
}

// SetState changes the state of the square at (x, y) to Open, Miss or Hit.
//
// Sunk squares can only be changed through Raise, and Sunk can only be set
// through Sink. Requesting the current state is a no-op.
func (b *IndependentBoard) SetState(x, y int, state SquareState) error {
	if !b.inBounds(x, y) {
		return fmt.Errorf("set state of (%d,%d): %w", x, y, ErrOutOfBounds)
	}
	if !state.Valid() || state == Sunk {
		return fmt.Errorf("set state of (%d,%d) to %v: %w", x, y, state, ErrIllegalTargetState)
	}
	current := b.board[x][y]
	if current == Sunk {
		return fmt.Errorf("set state of sunk square (%d,%d): %w", x, y, ErrIllegalTargetState)
	}
	if current == state {
		return nil
	}
	defer observe("set_state", time.Now())
	stateChangesTotal.WithLabelValues(state.String()).Inc()

	switch state {
	case Miss:
		// A miss can only remove placements
		b.board[x][y] = Miss
		if n := b.disableAt(x, y); n > 0 {
			placementTogglesTotal.WithLabelValues("disable").Add(float64(n))
		}
	case Open, Hit:
		// Evaluate against Open so the square never sees the state it is moving to
		b.board[x][y] = Open
		if n := b.enableAt(x, y); n > 0 {
			placementTogglesTotal.WithLabelValues("enable").Add(float64(n))
		}
		b.board[x][y] = state
	}
	return nil
}

// footprint returns the squares ship idx occupies when rotated and anchored at (x, y).
func (b *IndependentBoard) footprint(idx, rotation, x, y int) []Square {
	squares := b.shapes[idx].RotateClockwise(rotation).Squares()
	for i := range squares {
		squares[i].Offset(x, y)
	}
	return squares
}

// Sink marks ship as sunk, rotated by rotation quarter turns and anchored at (x, y).
//
// Every square of the footprint must be Hit, otherwise Sink returns false and
// the board is unchanged. A ship that is already sunk must be raised first.
// On success the squares become Sunk, placements of any ship covering them
// are switched off, and the sunk ship stops contributing to every matrix.
func (b *IndependentBoard) Sink(ship *Ship, rotation, x, y int) (bool, error) {
	idx, ok := b.shipIndex[ship]
	if !ok {
		return false, ErrUnknownShip
	}
	if b.isSunk(idx) {
		sinkTotal.WithLabelValues("sink", "rejected").Inc()
		return false, nil
	}

	squares := b.footprint(idx, rotation, x, y)
	for _, sq := range squares {
		if !b.inBounds(sq.X, sq.Y) || b.board[sq.X][sq.Y] != Hit {
			sinkTotal.WithLabelValues("sink", "rejected").Inc()
			return false, nil
		}
	}
	defer observe("sink", time.Now())

	for _, sq := range squares {
		b.board[sq.X][sq.Y] = Sunk
	}
	disabled := 0
	for _, sq := range squares {
		disabled += b.disableAt(sq.X, sq.Y)
	}
	b.sunk[idx] = squares

	st := &b.stats[idx]
	for _, id := range st.placements {
		if b.placements[id].active {
			b.placements[id].active = false
			disabled++
		}
	}
	for col := range st.counts {
		clear(st.counts[col])
	}
	st.total = 0

	placementTogglesTotal.WithLabelValues("disable").Add(float64(disabled))
	sinkTotal.WithLabelValues("sink", "ok").Inc()
	return true, nil
}

// Raise reverts a Sink: the ship's squares go back to Hit and its placements
// are re-evaluated.
//
// Placements of other ships that were switched off by the Sink stay off until
// a later SetState touches one of their squares.
func (b *IndependentBoard) Raise(ship *Ship) error {
	idx, ok := b.shipIndex[ship]
	if !ok {
		return ErrUnknownShip
	}
	squares, ok := b.sunk[idx]
	if !ok {
		sinkTotal.WithLabelValues("raise", "rejected").Inc()
		return ErrUnknownSunkShip
	}
	defer observe("raise", time.Now())

	for _, sq := range squares {
		b.board[sq.X][sq.Y] = Hit
	}
	delete(b.sunk, idx)

	enabled := 0
	for _, id := range b.stats[idx].placements {
		p := &b.placements[id]
		if !p.active && b.CheckConfig(p.squares) {
			b.enable(id)
			enabled++
		}
	}

	placementTogglesTotal.WithLabelValues("enable").Add(float64(enabled))
	sinkTotal.WithLabelValues("raise", "ok").Inc()
	return nil
}

// IsSunk reports whether ship is currently sunk on this board.
func (b *IndependentBoard) IsSunk(ship *Ship) bool {
	idx, ok := b.shipIndex[ship]
	return ok && b.isSunk(idx)
}

// SunkSquares returns the squares ship was sunk on, if it is sunk.
func (b *IndependentBoard) SunkSquares(ship *Ship) ([]Square, bool) {
	idx, ok := b.shipIndex[ship]
	if !ok {
		return nil, false
	}
	squares, ok := b.sunk[idx]
	return slices.Clone(squares), ok
}

// Total returns the number of active placements of ship.
func (b *IndependentBoard) Total(ship *Ship) (int, error) {
	idx, ok := b.shipIndex[ship]
	if !ok {
		return 0, ErrUnknownShip
	}
	return b.stats[idx].total, nil
}

// NumShipPlacements returns the number of placements enumerated for ship, active or not.
func (b *IndependentBoard) NumShipPlacements(ship *Ship) (int, error) {
	idx, ok := b.shipIndex[ship]
	if !ok {
		return 0, ErrUnknownShip
	}
	return len(b.stats[idx].placements), nil
}

// ShipsMatrix returns, for each square, the number of active placements of all ships covering it.
func (b *IndependentBoard) ShipsMatrix() [][]int {
	mats := make([][][]int, len(b.stats))
	for i := range b.stats {
		mats[i] = b.stats[i].counts
	}
	return foldMatrices(b.width, b.height, mats, 0, sumInts)
}

// ShipMatrix returns, for each square, the number of active placements of ship covering it.
func (b *IndependentBoard) ShipMatrix(ship *Ship) ([][]int, error) {
	idx, ok := b.shipIndex[ship]
	if !ok {
		return nil, ErrUnknownShip
	}
	return copyMatrix(b.stats[idx].counts), nil
}

// ShipProbabilityMatrix returns, for each square, the fraction of ship's
// active placements that cover it. A ship with no active placements is all zeros.
func (b *IndependentBoard) ShipProbabilityMatrix(ship *Ship) ([][]float64, error) {
	idx, ok := b.shipIndex[ship]
	if !ok {
		return nil, ErrUnknownShip
	}
	st := b.stats[idx]
	return probabilityOf(st.counts, st.total), nil
}

// ProbabilityMatrix returns, for each square, the probability that any ship
// covers it, combining ships as independent events.
func (b *IndependentBoard) ProbabilityMatrix() [][]float64 {
	mats := make([][][]float64, len(b.stats))
	for i, st := range b.stats {
		mats[i] = probabilityOf(st.counts, st.total)
	}
	return foldMatrices(b.width, b.height, mats, 0.0, unionIndependent)
}

// observe records the duration of an update operation.
func observe(operation string, start time.Time) {
	updateDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

var _ Board = (*IndependentBoard)(nil)
