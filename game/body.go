package game

import (
	"github.com/gammazero/deque"
)

// Body is the snake, head first.
type Body struct {
	heading Direction
	cells   deque.Deque[Point]
}

// NewBody creates the starting three-cell body on row y heading East.
func NewBody(y int) *Body {
	return NewBodyFrom(East, Pt(2, y), Pt(1, y), Pt(0, y))
}

// NewBodyFrom builds a body from explicit cells, head first.
func NewBodyFrom(heading Direction, cells ...Point) *Body {
	if len(cells) == 0 {
		panic("game: body must not be empty")
	}
	b := &Body{heading: heading}
	b.cells.Grow(len(cells))
	for _, c := range cells {
		b.cells.PushBack(c)
	}
	return b
}

// Head returns the front cell.
func (b *Body) Head() Point {
	return b.cells.Front()
}

// Heading returns the direction of the last move.
func (b *Body) Heading() Direction {
	return b.heading
}

// Len returns the number of cells.
func (b *Body) Len() int {
	return b.cells.Len()
}

// Move pushes a new head one cell in dir. The tail is dropped unless the new
// head lands on food, in which case the body grows and Move returns true.
func (b *Body) Move(dir Direction, food Point) bool {
	b.heading = dir
	next := dir.Apply(b.Head())
	b.cells.PushFront(next)
	if next == food {
		return true
	}
	b.cells.PopBack()
	return false
}

// SelfColliding reports whether the head shares a cell with any other segment.
func (b *Body) SelfColliding() bool {
	head := b.Head()
	for i := 1; i < b.cells.Len(); i++ {
		if b.cells.At(i) == head {
			return true
		}
	}
	return false
}

// Contains reports whether p is occupied by any segment.
func (b *Body) Contains(p Point) bool {
	return b.cells.Index(func(c Point) bool { return c == p }) >= 0
}

// Cells returns a copy of the body, head first.
func (b *Body) Cells() []Point {
	out := make([]Point, b.cells.Len())
	for i := range out {
		out[i] = b.cells.At(i)
	}
	return out
}
