package core

import (
	"errors"
	"fmt"
)

// Error kinds reported by the Directory. Use errors.Is to test for them.
var (
	ErrNotFound      = errors.New("match not found")
	ErrNotJoined     = errors.New("player has not joined the match")
	ErrInternal      = errors.New("match is unavailable")
	ErrInvalidConfig = errors.New("invalid match config")
)

// MatchError records the operation and identifiers behind a failure.
type MatchError struct {
	Op       string
	MatchID  MatchID
	PlayerID string
	Err      error
}

func (e *MatchError) Error() string {
	if e.PlayerID != "" {
		return fmt.Sprintf("%s match %s player %s: %v", e.Op, e.MatchID, e.PlayerID, e.Err)
	}
	return fmt.Sprintf("%s match %s: %v", e.Op, e.MatchID, e.Err)
}

func (e *MatchError) Unwrap() error {
	return e.Err
}
