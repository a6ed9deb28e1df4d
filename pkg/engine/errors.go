package engine

import "errors"

// Errors returned by Board implementations. Failing calls never mutate the board.
var (
	ErrInvalidDimensions  = errors.New("board width/height must be between 1 and 256")
	ErrOutOfBounds        = errors.New("square is outside the board")
	ErrIllegalTargetState = errors.New("illegal target state")
	ErrUnknownShip        = errors.New("ship is not on this board")
	ErrUnknownSunkShip    = errors.New("ship has not been sunk")
	ErrDuplicateShip      = errors.New("ship is already on this board")
	ErrEmptyShip          = errors.New("ship has no squares")
)
