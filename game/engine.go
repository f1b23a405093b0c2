package game

import (
	"fmt"
	"math/rand/v2"
)

// foodRetryFactor bounds random food placement at width*height*foodRetryFactor draws.
const foodRetryFactor = 2

// MinWidth is the narrowest board the starting body fits on.
const MinWidth = 3

// Board is the complete simulation state of one match.
type Board struct {
	width  int
	height int
	body   *Body
	food   Point
	tick   uint64
	reason Reason
	rng    *rand.Rand
}

// NewBoard creates a board with the starting body on the middle row and food
// in the centre cell. seed drives every later food placement.
func NewBoard(width, height int, seed uint64) (*Board, error) {
	if width < MinWidth || height < 1 {
		return nil, fmt.Errorf("%w: %dx%d (minimum %dx1)", ErrInvalidBoard, width, height, MinWidth)
	}

	return &Board{
		width:  width,
		height: height,
		body:   NewBody(height / 2),
		food:   Pt(width/2, height/2),
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Width returns the board width.
func (b *Board) Width() int { return b.width }

// Height returns the board height.
func (b *Board) Height() int { return b.height }

// Body returns the snake. Callers must not move it.
func (b *Board) Body() *Body { return b.body }

// Food returns the current food cell.
func (b *Board) Food() Point { return b.food }

// Tick returns the number of simulated steps.
func (b *Board) Tick() uint64 { return b.tick }

// Reason returns why the match ended, or ReasonNone while running.
func (b *Board) Reason() Reason { return b.reason }

// Over reports whether a terminal state was reached.
func (b *Board) Over() bool { return b.reason != ReasonNone }

// State returns the coarse match state.
func (b *Board) State() State {
	if b.Over() {
		return StateOver
	}
	return StateRunning
}

// Cells returns the board area.
func (b *Board) Cells() int { return b.width * b.height }

// SetFood moves the food to p.
func (b *Board) SetFood(p Point) { b.food = p }

// Step advances the simulation one tick in dir. Checks run in a fixed order:
// winner, out of bounds, self collision, and the first one to fire decides
// the reason. New food is only drawn while the match is still running.
// A terminal board is left untouched.
func (b *Board) Step(dir Direction) (Reason, error) {
	if b.Over() {
		return b.reason, nil
	}

	b.tick++
	grew := b.body.Move(dir, b.food)

	switch {
	case b.body.Len() >= b.Cells():
		b.reason = ReasonWinner
	case OutOfBounds(b.body.Head(), b.width, b.height):
		b.reason = ReasonOutOfBounds
	case b.body.SelfColliding():
		b.reason = ReasonSelfCollision
	}

	if grew && !b.Over() {
		food, err := PlaceFood(b.body, b.width, b.height, b.rng)
		if err != nil {
			return b.reason, err
		}
		b.food = food
	}

	return b.reason, nil
}

// OutOfBounds reports whether p lies outside a width x height board.
func OutOfBounds(p Point, width, height int) bool {
	return p.X < 0 || p.Y < 0 || p.X >= width || p.Y >= height
}

// PlaceFood draws uniformly random cells until one is free of the body.
// It gives up with ErrBoardFull after width*height*2 draws.
func PlaceFood(body *Body, width, height int, rng *rand.Rand) (Point, error) {
	limit := width * height * foodRetryFactor
	for retries := 0; retries <= limit; retries++ {
		p := Pt(rng.IntN(width), rng.IntN(height))
		if !body.Contains(p) {
			return p, nil
		}
	}
	return Point{}, fmt.Errorf("%w after %d draws on %dx%d board", ErrBoardFull, limit, width, height)
}
