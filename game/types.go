// Package game implements the snake simulation for a single match.
//
// Everything in this package is pure logic over one board and is not safe
// for concurrent use; the match actor in package core is its only caller.
package game

import (
	"fmt"
	"strings"
)

// Point is a cell on the board.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pt is shorthand for constructing a Point.
func Pt(x, y int) Point {
	return Point{X: x, Y: y}
}

// String returns the string representation of Point.
func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Direction is one of the four headings a snake can travel in.
type Direction uint8

// The numeric values double as the wire encoding.
const (
	North Direction = iota
	East
	South
	West
)

// Directions lists every direction in tally order.
var Directions = [...]Direction{North, East, South, West}

// Apply returns p moved one cell in direction d.
func (d Direction) Apply(p Point) Point {
	switch d {
	case North:
		return Point{X: p.X, Y: p.Y - 1}
	case South:
		return Point{X: p.X, Y: p.Y + 1}
	case East:
		return Point{X: p.X + 1, Y: p.Y}
	case West:
		return Point{X: p.X - 1, Y: p.Y}
	default:
		return p
	}
}

// Valid reports whether d is one of the four known directions.
func (d Direction) Valid() bool {
	return d <= West
}

// String returns the string representation of Direction.
func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(d))
	}
}

// MarshalText encodes the direction by name.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, uint8(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText decodes a direction name.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDirection accepts a direction name, its first letter, or a WASD key.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "n", "w", "up":
		return North, nil
	case "east", "e", "d", "right":
		return East, nil
	case "south", "s", "down":
		return South, nil
	case "west", "a", "left":
		return West, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// DirectionFromWire converts the numeric wire value, rejecting anything out of range.
func DirectionFromWire(v int) (Direction, error) {
	if v < int(North) || v > int(West) {
		return 0, fmt.Errorf("%w: %d (0=north, 1=east, 2=south, 3=west)", ErrInvalidDirection, v)
	}
	return Direction(v), nil
}

// State is the coarse match state.
type State uint8

const (
	// StateRunning means ticks still advance the simulation
	StateRunning State = iota

	// StateOver is terminal
	StateOver
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateOver:
		return "over"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reason explains why a match ended.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonOutOfBounds
	ReasonSelfCollision
	ReasonWinner
)

// String returns the string representation of Reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonOutOfBounds:
		return "out_of_bounds"
	case ReasonSelfCollision:
		return "self_collision"
	case ReasonWinner:
		return "winner"
	default:
		return "unknown"
	}
}

// MarshalText encodes the reason by name.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
