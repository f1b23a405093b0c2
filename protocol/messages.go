package protocol

import (
	"time"

	"github.com/najoast/snakepit/core"
	"github.com/najoast/snakepit/game"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "snakepit.v1.MatchService"

// Full method names of the match service.
const (
	MethodCreateMatch     = "/" + ServiceName + "/CreateMatch"
	MethodJoinMatch       = "/" + ServiceName + "/JoinMatch"
	MethodStartMatch      = "/" + ServiceName + "/StartMatch"
	MethodSubmitDirection = "/" + ServiceName + "/SubmitDirection"
	MethodGetStatus       = "/" + ServiceName + "/GetStatus"
	MethodListMatches     = "/" + ServiceName + "/ListMatches"
)

// CreateMatchRequest asks for a new match. Zero fields fall back to the
// server defaults.
type CreateMatchRequest struct {
	Width            int   `json:"width,omitempty"`
	Height           int   `json:"height,omitempty"`
	TickPeriodMillis int64 `json:"tick_period_ms,omitempty"`
}

// CreateMatchResponse carries the ID of the new match.
type CreateMatchResponse struct {
	MatchID string `json:"match_id"`
}

// JoinMatchRequest adds a player to a match.
type JoinMatchRequest struct {
	MatchID string `json:"match_id"`
}

// JoinMatchResponse identifies the new player and the board size.
type JoinMatchResponse struct {
	PlayerID string `json:"player_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// StartMatchRequest starts the match clock.
type StartMatchRequest struct {
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
}

// StartMatchResponse is empty.
type StartMatchResponse struct{}

// SubmitDirectionRequest records a direction vote. Direction uses the wire
// values 0=north, 1=east, 2=south, 3=west.
type SubmitDirectionRequest struct {
	MatchID   string `json:"match_id"`
	PlayerID  string `json:"player_id"`
	Direction int    `json:"direction"`
}

// SubmitDirectionResponse returns the match right after the vote.
type SubmitDirectionResponse struct {
	Snapshot *Snapshot `json:"snapshot"`
}

// GetStatusRequest reads the current match state.
type GetStatusRequest struct {
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
}

// GetStatusResponse returns the current match state.
type GetStatusResponse struct {
	Snapshot *Snapshot `json:"snapshot"`
}

// ListMatchesRequest is empty.
type ListMatchesRequest struct{}

// ListMatchesResponse summarises every registered match.
type ListMatchesResponse struct {
	Matches []MatchSummary `json:"matches"`
}

// Snapshot is the wire form of a match snapshot.
type Snapshot struct {
	Version       uint64       `json:"version"`
	Tick          uint64       `json:"tick"`
	State         string       `json:"state"`
	Reason        string       `json:"reason,omitempty"`
	Direction     int          `json:"direction"`
	DirectionName string       `json:"direction_name"`
	Players       int          `json:"players"`
	Body          []game.Point `json:"body"`
	Food          game.Point   `json:"food"`
	Width         int          `json:"width"`
	Height        int          `json:"height"`
}

// Over reports whether the match has ended.
func (s *Snapshot) Over() bool {
	return s.State == game.StateOver.String()
}

// Head returns the first body cell.
func (s *Snapshot) Head() game.Point {
	if len(s.Body) == 0 {
		return game.Point{}
	}
	return s.Body[0]
}

// Heading decodes the wire direction.
func (s *Snapshot) Heading() (game.Direction, error) {
	return game.DirectionFromWire(s.Direction)
}

// FromSnapshot converts a core snapshot to its wire form.
func FromSnapshot(s *core.Snapshot) *Snapshot {
	if s == nil {
		return nil
	}
	return &Snapshot{
		Version:       s.Version,
		Tick:          s.Tick,
		State:         s.State.String(),
		Reason:        s.Reason.String(),
		Direction:     int(s.Direction),
		DirectionName: s.Direction.String(),
		Players:       s.Players,
		Body:          s.Body,
		Food:          s.Food,
		Width:         s.Width,
		Height:        s.Height,
	}
}

// MatchSummary is the wire form of core.MatchInfo.
type MatchSummary struct {
	MatchID           string    `json:"match_id"`
	Width             int       `json:"width"`
	Height            int       `json:"height"`
	TickPeriodMillis  int64     `json:"tick_period_ms"`
	CreatedAt         time.Time `json:"created_at"`
	Started           bool      `json:"started"`
	Retired           bool      `json:"retired"`
	Players           int       `json:"players"`
	MessagesProcessed uint64    `json:"messages_processed"`
}

// FromMatchInfo converts a directory listing entry to its wire form.
func FromMatchInfo(info core.MatchInfo) MatchSummary {
	return MatchSummary{
		MatchID:           string(info.ID),
		Width:             info.Width,
		Height:            info.Height,
		TickPeriodMillis:  info.TickPeriod.Milliseconds(),
		CreatedAt:         info.CreatedAt,
		Started:           info.Started,
		Retired:           info.Retired,
		Players:           info.Players,
		MessagesProcessed: info.MessagesProcessed,
	}
}
