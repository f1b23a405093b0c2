package core

import (
	"github.com/najoast/snakepit/game"
)

// Snapshot is an immutable read model of a match. The same pointer is handed
// to every reader until the match changes, so callers must not modify it.
type Snapshot struct {
	Version   uint64         `json:"version"`
	Tick      uint64         `json:"tick"`
	State     game.State     `json:"state"`
	Reason    game.Reason    `json:"reason,omitempty"`
	Direction game.Direction `json:"direction"`
	Players   int            `json:"players"`
	Body      []game.Point   `json:"body"`
	Food      game.Point     `json:"food"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
}

// Over reports whether the match has ended.
func (s *Snapshot) Over() bool {
	return s.State == game.StateOver
}

// Head returns the first body cell.
func (s *Snapshot) Head() game.Point {
	if len(s.Body) == 0 {
		return game.Point{}
	}
	return s.Body[0]
}

// match aggregates everything one actor owns.
type match struct {
	id      MatchID
	cfg     MatchConfig
	board   *game.Board
	votes   *game.Votes
	players map[string]struct{}
	started bool

	// version is bumped on every mutation; the cache is valid while
	// cachedVersion equals it
	version       uint64
	cachedVersion uint64
	cached        *Snapshot
}

func newMatch(id MatchID, cfg MatchConfig) (*match, error) {
	board, err := game.NewBoard(cfg.Width, cfg.Height, cfg.Seed)
	if err != nil {
		return nil, err
	}
	return &match{
		id:      id,
		cfg:     cfg,
		board:   board,
		votes:   game.NewVotes(),
		players: make(map[string]struct{}),
		version: 1,
	}, nil
}

func (m *match) touch() {
	m.version++
}

func (m *match) hasPlayer(player string) bool {
	_, ok := m.players[player]
	return ok
}

// snapshot returns the cached snapshot if nothing changed since it was built.
func (m *match) snapshot() *Snapshot {
	if m.cached != nil && m.cachedVersion == m.version {
		return m.cached
	}

	m.cached = &Snapshot{
		Version:   m.version,
		Tick:      m.board.Tick(),
		State:     m.board.State(),
		Reason:    m.board.Reason(),
		Direction: m.votes.ResolveOr(m.board.Body().Heading()),
		Players:   len(m.players),
		Body:      m.board.Body().Cells(),
		Food:      m.board.Food(),
		Width:     m.board.Width(),
		Height:    m.board.Height(),
	}
	m.cachedVersion = m.version
	return m.cached
}
