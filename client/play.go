package client

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/najoast/snakepit/game"
	"github.com/najoast/snakepit/protocol"
	"github.com/najoast/snakepit/render"
)

// PlayConfig configures the text client.
type PlayConfig struct {
	Width        int
	Height       int
	TickPeriod   time.Duration
	PollInterval time.Duration
}

// DefaultPlayConfig matches the classic client: a 10x10 board ticking every
// 500ms, redrawn every 100ms.
func DefaultPlayConfig() PlayConfig {
	return PlayConfig{
		Width:        10,
		Height:       10,
		TickPeriod:   500 * time.Millisecond,
		PollInterval: 100 * time.Millisecond,
	}
}

// DefaultAddr is where the server listens for gRPC out of the box.
const DefaultAddr = "127.0.0.1:50051"

// ParseFlags reads -addr, -size and -tick for the text client.
func ParseFlags(fs *flag.FlagSet, args []string) (string, PlayConfig, error) {
	cfg := DefaultPlayConfig()
	addr := fs.String("addr", DefaultAddr, "Match server gRPC address")
	size := fs.Int("size", cfg.Width, "Board width and height")
	fs.DurationVar(&cfg.TickPeriod, "tick", cfg.TickPeriod, "Time between moves")
	if err := fs.Parse(args); err != nil {
		return "", PlayConfig{}, err
	}
	if *size < game.MinWidth {
		return "", PlayConfig{}, fmt.Errorf("size must be at least %d, got %d", game.MinWidth, *size)
	}
	if cfg.TickPeriod <= 0 {
		return "", PlayConfig{}, fmt.Errorf("tick must be positive, got %v", cfg.TickPeriod)
	}
	cfg.Width, cfg.Height = *size, *size
	return *addr, cfg, nil
}

// input is one parsed line from the player.
type input struct {
	dir  game.Direction
	quit bool
}

// parseInput maps WASD to directions and q or e to quit. ok is false for
// anything else.
func parseInput(line string) (in input, ok bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "q", "e":
		return input{quit: true}, true
	case "w", "a", "s", "d":
		dir, err := game.ParseDirection(line)
		if err != nil {
			return input{}, false
		}
		return input{dir: dir}, true
	default:
		return input{}, false
	}
}

// screen serialises writes from the poller and the input loop.
type screen struct {
	mu  sync.Mutex
	out io.Writer
}

func (s *screen) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *screen) world(snap *protocol.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := render.World(s.out, snap); err != nil {
		fmt.Fprintf(s.out, "render: %v\n", err)
	}
}

// Play creates a match, joins and starts it, then redraws the board while
// reading WASD moves from in until the player quits or in is exhausted.
func (c *Client) Play(ctx context.Context, cfg PlayConfig, in io.Reader, out io.Writer) error {
	scr := &screen{out: out}

	scr.printf("Creating match\n")
	matchID, err := c.CreateMatch(ctx, cfg.Width, cfg.Height, cfg.TickPeriod.Milliseconds())
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}

	scr.printf("Joining match %s\n", matchID)
	joined, err := c.JoinMatch(ctx, matchID)
	if err != nil {
		return fmt.Errorf("join match: %w", err)
	}
	playerID := joined.PlayerID

	scr.printf("Starting match as %s\n", playerID)
	if err := c.StartMatch(ctx, matchID, playerID); err != nil {
		return fmt.Errorf("start match: %w", err)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.poll(pollCtx, scr, matchID, playerID, cfg.PollInterval)
	}()

	err = c.readMoves(ctx, scr, in, matchID, playerID)
	cancel()
	wg.Wait()
	return err
}

// poll redraws the board until the match ends or a status call fails.
func (c *Client) poll(ctx context.Context, scr *screen, matchID, playerID string, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPlayConfig().PollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap, err := c.GetStatus(ctx, matchID, playerID)
		if err != nil {
			if ctx.Err() == nil {
				scr.printf("Polling stopped: %v\n", err)
			}
			return
		}
		scr.world(snap)
		if snap.Over() {
			scr.printf("Match over: %s\n", snap.Reason)
			return
		}
	}
}

func (c *Client) readMoves(ctx context.Context, scr *screen, in io.Reader, matchID, playerID string) error {
	scanner := bufio.NewScanner(in)
	for {
		scr.printf("What direction do you want to move? (WASD) q=exit\n")
		if !scanner.Scan() {
			return scanner.Err()
		}

		move, ok := parseInput(scanner.Text())
		if !ok {
			continue
		}
		if move.quit {
			return nil
		}

		snap, err := c.SubmitDirection(ctx, matchID, playerID, move.dir)
		if err != nil {
			scr.printf("Error: %v\n", err)
			continue
		}
		scr.world(snap)
	}
}
