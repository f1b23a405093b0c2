// Package render draws match snapshots as ASCII for terminal clients.
package render

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/najoast/snakepit/game"
	"github.com/najoast/snakepit/protocol"
)

const (
	emptyCell = "-"
	foodCell  = "*"
)

// World writes the board one row per line. Body cells show their column
// index, food is "*" and empty cells are "-". Body cells off the board are
// not drawn.
func World(w io.Writer, s *protocol.Snapshot) error {
	if s == nil {
		return fmt.Errorf("render: nil snapshot")
	}

	bw := bufio.NewWriter(w)

	reason := s.Reason
	if reason == "" {
		reason = "none"
	}
	fmt.Fprintf(bw, "Head Point: %v Direction: %s\n", s.Head(), s.DirectionName)
	fmt.Fprintf(bw, "Game Over Reason: %s\n", reason)
	fmt.Fprintf(bw, "Food: %v\n", s.Food)

	body := make(map[game.Point]struct{}, len(s.Body))
	for _, p := range s.Body {
		body[p] = struct{}{}
	}

	for y := 0; y < s.Height; y++ {
		fmt.Fprintf(bw, "%d\t|", y)
		for x := 0; x < s.Width; x++ {
			p := game.Pt(x, y)
			switch {
			case contains(body, p):
				bw.WriteString(strconv.Itoa(x))
			case p == s.Food:
				bw.WriteString(foodCell)
			default:
				bw.WriteString(emptyCell)
			}
		}
		bw.WriteString("|\n")
	}
	fmt.Fprintf(bw, "%v\n", s.Body)

	return bw.Flush()
}

func contains(set map[game.Point]struct{}, p game.Point) bool {
	_, ok := set[p]
	return ok
}
