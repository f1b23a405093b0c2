package core

import (
	"github.com/najoast/snakepit/game"
)

// command is a message in an actor's mailbox. Every command except tick
// carries a buffered reply channel that the actor writes at most once.
type command interface {
	name() string
}

type result struct {
	snap *Snapshot
	err  error
}

type joinCmd struct {
	reply chan JoinReply
}

type startCmd struct {
	player string
	reply  chan error
}

type updateCmd struct {
	player string
	dir    game.Direction
	reply  chan result
}

type statusCmd struct {
	player string
	reply  chan result
}

type tickCmd struct{}

func (joinCmd) name() string   { return "join" }
func (startCmd) name() string  { return "start" }
func (updateCmd) name() string { return "update" }
func (statusCmd) name() string { return "status" }
func (tickCmd) name() string   { return "tick" }
