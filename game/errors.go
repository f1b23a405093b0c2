package game

import "errors"

// Simulation errors
var (
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidBoard     = errors.New("invalid board dimensions")
	ErrBoardFull        = errors.New("no free cell left for food")
)
