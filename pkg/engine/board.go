package engine

// Board is a game board that tracks square states and ship placement statistics.
//
// All matrices are indexed [x][y] and are copies owned by the caller.
type Board interface {
	// Width returns the horizontal size of the board.
	Width() int
	// Height returns the vertical size of the board.
	Height() int

	// State returns the state of the square at (x, y).
	State(x, y int) (SquareState, error)
	// StatesMatrix returns a snapshot of every square state.
	StatesMatrix() [][]SquareState

	// AddShip registers a ship and enumerates all of its placements.
	AddShip(ship *Ship) error
	// Ships returns the registered ships in registration order.
	Ships() []*Ship

	// SetState changes the state of a square to Open, Miss or Hit.
	SetState(x, y int, state SquareState) error
	// Sink marks the ship as sunk at the given rotation and anchor.
	// It returns false, leaving the board as it was, when the footprint is not fully Hit.
	Sink(ship *Ship, rotation, x, y int) (bool, error)
	// Raise reverts a previous Sink.
	Raise(ship *Ship) error

	// ShipsMatrix returns the number of active placements of all ships covering each square.
	ShipsMatrix() [][]int
	// ShipMatrix returns the number of active placements of one ship covering each square.
	ShipMatrix(ship *Ship) ([][]int, error)
	// ProbabilityMatrix returns the probability that any ship occupies each square.
	ProbabilityMatrix() [][]float64
	// ShipProbabilityMatrix returns the probability that the ship occupies each square.
	ShipProbabilityMatrix(ship *Ship) ([][]float64, error)
}
