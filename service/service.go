// Package service exposes the match Directory as a gRPC service.
package service

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/najoast/snakepit/config"
	"github.com/najoast/snakepit/core"
	"github.com/najoast/snakepit/game"
	"github.com/najoast/snakepit/protocol"
)

// Defaults fill in the fields a CreateMatch request leaves at zero.
type Defaults struct {
	Width      int
	Height     int
	TickPeriod time.Duration

	// MaxCells caps width*height; zero means no cap
	MaxCells int
}

// DefaultsFromConfig reads the new-match defaults from the match section.
func DefaultsFromConfig(cfg config.MatchConfig) Defaults {
	return Defaults{
		Width:      cfg.DefaultWidth,
		Height:     cfg.DefaultHeight,
		TickPeriod: cfg.DefaultTick,
		MaxCells:   cfg.MaxCells,
	}
}

// MatchService implements MatchServer on top of a core.Directory.
type MatchService struct {
	dir      *core.Directory
	defaults atomic.Pointer[Defaults]
}

// NewMatchService creates the service.
func NewMatchService(dir *core.Directory, defaults Defaults) *MatchService {
	s := &MatchService{dir: dir}
	s.SetDefaults(defaults)
	return s
}

// SetDefaults replaces the defaults for matches created from now on.
func (s *MatchService) SetDefaults(d Defaults) {
	s.defaults.Store(&d)
}

// Defaults returns the current defaults.
func (s *MatchService) Defaults() Defaults {
	return *s.defaults.Load()
}

// Directory returns the underlying match directory.
func (s *MatchService) Directory() *core.Directory {
	return s.dir
}

// MatchConfig resolves a create request against the defaults and validates it.
func (s *MatchService) MatchConfig(width, height int, tickMillis int64) (core.MatchConfig, error) {
	def := s.Defaults()

	if width < 0 || height < 0 || tickMillis < 0 {
		return core.MatchConfig{}, invalidArgument("width, height and tick must not be negative")
	}

	cfg := core.MatchConfig{
		Width:      width,
		Height:     height,
		TickPeriod: time.Duration(tickMillis) * time.Millisecond,
	}
	if cfg.Width == 0 {
		cfg.Width = def.Width
	}
	if cfg.Height == 0 {
		cfg.Height = def.Height
	}
	if cfg.TickPeriod == 0 {
		cfg.TickPeriod = def.TickPeriod
	}

	if err := cfg.Validate(def.MaxCells); err != nil {
		return core.MatchConfig{}, statusError(err)
	}
	return cfg, nil
}

// CreateMatch creates a match and returns its ID.
func (s *MatchService) CreateMatch(ctx context.Context, req *protocol.CreateMatchRequest) (*protocol.CreateMatchResponse, error) {
	cfg, err := s.MatchConfig(req.Width, req.Height, req.TickPeriodMillis)
	if err != nil {
		return nil, err
	}

	id, err := s.dir.Create(ctx, cfg)
	if err != nil {
		return nil, statusError(err)
	}
	return &protocol.CreateMatchResponse{MatchID: string(id)}, nil
}

// JoinMatch adds a player to a match.
func (s *MatchService) JoinMatch(ctx context.Context, req *protocol.JoinMatchRequest) (*protocol.JoinMatchResponse, error) {
	id, err := matchID(req.MatchID)
	if err != nil {
		return nil, err
	}

	jr, err := s.dir.Join(ctx, id)
	if err != nil {
		return nil, statusError(err)
	}
	return &protocol.JoinMatchResponse{
		PlayerID: jr.PlayerID,
		Width:    jr.Width,
		Height:   jr.Height,
	}, nil
}

// StartMatch starts the match clock.
func (s *MatchService) StartMatch(ctx context.Context, req *protocol.StartMatchRequest) (*protocol.StartMatchResponse, error) {
	id, err := matchID(req.MatchID)
	if err != nil {
		return nil, err
	}

	if err := s.dir.Start(ctx, id, req.PlayerID); err != nil {
		return nil, statusError(err)
	}
	return &protocol.StartMatchResponse{}, nil
}

// SubmitDirection records a direction vote.
func (s *MatchService) SubmitDirection(ctx context.Context, req *protocol.SubmitDirectionRequest) (*protocol.SubmitDirectionResponse, error) {
	id, err := matchID(req.MatchID)
	if err != nil {
		return nil, err
	}
	dir, err := game.DirectionFromWire(req.Direction)
	if err != nil {
		return nil, statusError(err)
	}

	snap, err := s.dir.Update(ctx, id, req.PlayerID, dir)
	if err != nil {
		return nil, statusError(err)
	}
	return &protocol.SubmitDirectionResponse{Snapshot: protocol.FromSnapshot(snap)}, nil
}

// GetStatus returns the current match snapshot.
func (s *MatchService) GetStatus(ctx context.Context, req *protocol.GetStatusRequest) (*protocol.GetStatusResponse, error) {
	id, err := matchID(req.MatchID)
	if err != nil {
		return nil, err
	}

	snap, err := s.dir.Status(ctx, id, req.PlayerID)
	if err != nil {
		return nil, statusError(err)
	}
	return &protocol.GetStatusResponse{Snapshot: protocol.FromSnapshot(snap)}, nil
}

// ListMatches summarises every registered match.
func (s *MatchService) ListMatches(ctx context.Context, req *protocol.ListMatchesRequest) (*protocol.ListMatchesResponse, error) {
	infos := s.dir.List()
	resp := &protocol.ListMatchesResponse{Matches: make([]protocol.MatchSummary, 0, len(infos))}
	for _, info := range infos {
		resp.Matches = append(resp.Matches, protocol.FromMatchInfo(info))
	}
	return resp, nil
}

func matchID(s string) (core.MatchID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalidArgument("match_id is required")
	}
	return core.MatchID(s), nil
}
