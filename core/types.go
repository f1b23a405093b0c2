package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/najoast/snakepit/game"
)

// MatchID identifies a match in the Directory.
type MatchID string

// MatchConfig describes a match. It is immutable once the match is created.
type MatchConfig struct {
	// Width of the board in cells
	Width int `json:"width"`

	// Height of the board in cells
	Height int `json:"height"`

	// TickPeriod is the time between simulation steps
	TickPeriod time.Duration `json:"tick_period"`

	// Seed drives food placement; zero picks a random seed
	Seed uint64 `json:"seed,omitempty"`
}

// Validate checks the config against the board limits. maxCells <= 0 disables
// the area limit.
func (c MatchConfig) Validate(maxCells int) error {
	if c.Width < game.MinWidth || c.Height < 1 {
		return fmt.Errorf("%w: %dx%d (minimum %dx1)", ErrInvalidConfig, c.Width, c.Height, game.MinWidth)
	}
	if maxCells > 0 && c.Width*c.Height > maxCells {
		return fmt.Errorf("%w: %dx%d exceeds %d cells", ErrInvalidConfig, c.Width, c.Height, maxCells)
	}
	if c.TickPeriod <= 0 {
		return fmt.Errorf("%w: tick period must be positive, got %s", ErrInvalidConfig, c.TickPeriod)
	}
	return nil
}

// JoinReply is returned to a player who joins a match.
type JoinReply struct {
	PlayerID string `json:"player_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Options tunes the actors created by a Directory.
type Options struct {
	// MailboxSize bounds each actor's command queue
	MailboxSize int

	// StartGrace delays the first tick after a match is started
	StartGrace time.Duration

	// CallTimeout bounds each Directory round trip; zero means no limit
	CallTimeout time.Duration

	// Logger receives actor and directory logs
	Logger *log.Logger

	// Debug enables per-command and per-tick logging
	Debug bool
}

// DefaultOptions returns the options used by the server out of the box.
func DefaultOptions() Options {
	return Options{
		MailboxSize: 32,
		StartGrace:  3 * time.Second,
		CallTimeout: 5 * time.Second,
		Logger:      log.New(os.Stdout, "[CORE] ", log.LstdFlags),
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MailboxSize <= 0 {
		o.MailboxSize = def.MailboxSize
	}
	if o.StartGrace < 0 {
		o.StartGrace = 0
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard, "", 0)
	}
	return o
}

// MatchInfo is a point-in-time summary of a match for listings.
type MatchInfo struct {
	ID                MatchID       `json:"id"`
	Width             int           `json:"width"`
	Height            int           `json:"height"`
	TickPeriod        time.Duration `json:"tick_period"`
	CreatedAt         time.Time     `json:"created_at"`
	Started           bool          `json:"started"`
	Retired           bool          `json:"retired"`
	RetiredAt         time.Time     `json:"retired_at,omitempty"`
	Players           int           `json:"players"`
	MessagesProcessed uint64        `json:"messages_processed"`
	MailboxLen        int           `json:"mailbox_len"`
	TickProducers     int           `json:"tick_producers"`
}
