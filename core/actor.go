package core

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/google/uuid"
)

// mailbox is the sending side of an actor's queue. Handles hold it strongly;
// tick producers only hold a weak pointer so they never keep a match alive.
type mailbox struct {
	ch chan command
}

// actorStats are written by the actor and read by the Directory.
type actorStats struct {
	messagesProcessed atomic.Uint64
	lastMessageAt     atomic.Int64
	tickProducers     atomic.Int32
	players           atomic.Int32
	started           atomic.Bool
	retiredAt         atomic.Int64

	// final is the terminal snapshot, stored before the actor exits
	final atomic.Pointer[Snapshot]
}

// handle is the Directory's reference to one match actor.
type handle struct {
	id        MatchID
	cfg       MatchConfig
	box       *mailbox
	done      chan struct{}
	stop      func()
	members   *sync.Map
	stats     *actorStats
	createdAt time.Time
}

// actor owns a match and processes its mailbox one command at a time.
type actor struct {
	m       *match
	inbox   <-chan command
	box     weak.Pointer[mailbox]
	done    chan struct{}
	quit    <-chan struct{}
	members *sync.Map
	stats   *actorStats
	grace   time.Duration
	logger  *log.Logger
	debug   bool
}

// spawn creates the match and starts its actor goroutine.
func spawn(id MatchID, cfg MatchConfig, opts Options) (*handle, error) {
	m, err := newMatch(id, cfg)
	if err != nil {
		return nil, err
	}

	box := &mailbox{ch: make(chan command, opts.MailboxSize)}
	quit := make(chan struct{})
	stop := sync.OnceFunc(func() { close(quit) })

	h := &handle{
		id:        id,
		cfg:       cfg,
		box:       box,
		done:      make(chan struct{}),
		stop:      stop,
		members:   &sync.Map{},
		stats:     &actorStats{},
		createdAt: time.Now(),
	}

	a := &actor{
		m:       m,
		inbox:   box.ch,
		box:     weak.Make(box),
		done:    h.done,
		quit:    quit,
		members: h.members,
		stats:   h.stats,
		grace:   opts.StartGrace,
		logger:  opts.Logger,
		debug:   opts.Debug,
	}

	// once nothing holds the mailbox any more, the actor has no callers left
	runtime.AddCleanup(box, func(stop func()) { stop() }, stop)

	go a.run()
	return h, nil
}

// run is the actor's receive loop.
func (a *actor) run() {
	defer close(a.done)
	defer a.stats.retiredAt.Store(time.Now().UnixNano())
	defer func() {
		if r := recover(); r != nil {
			a.logger.Printf("match %s actor crashed: %v", a.m.id, r)
		}
	}()

	for {
		select {
		case cmd := <-a.inbox:
			a.stats.messagesProcessed.Add(1)
			a.stats.lastMessageAt.Store(time.Now().UnixNano())
			if !a.process(cmd) {
				return
			}

		case <-a.quit:
			a.debugf("match %s actor stopped", a.m.id)
			return
		}
	}
}

// process handles one command and reports whether the actor keeps running.
func (a *actor) process(cmd command) bool {
	a.debugf("match %s: %s", a.m.id, cmd.name())

	switch c := cmd.(type) {
	case joinCmd:
		c.reply <- a.join()

	case startCmd:
		c.reply <- a.start(c.player)

	case updateCmd:
		if !a.m.hasPlayer(c.player) {
			c.reply <- result{err: ErrNotJoined}
			break
		}
		if a.m.votes.Record(c.player, c.dir) {
			a.m.touch()
		}
		c.reply <- result{snap: a.m.snapshot()}

	case statusCmd:
		if !a.m.hasPlayer(c.player) {
			c.reply <- result{err: ErrNotJoined}
			break
		}
		c.reply <- result{snap: a.m.snapshot()}

	case tickCmd:
		return a.tick()

	default:
		a.logger.Printf("match %s: unknown command %T", a.m.id, cmd)
	}

	return true
}

func (a *actor) join() JoinReply {
	player := uuid.NewString()
	a.m.players[player] = struct{}{}
	a.m.touch()

	// publish membership only after the actor's own set has it
	a.members.Store(player, struct{}{})
	a.stats.players.Add(1)

	return JoinReply{
		PlayerID: player,
		Width:    a.m.cfg.Width,
		Height:   a.m.cfg.Height,
	}
}

func (a *actor) start(player string) error {
	if !a.m.hasPlayer(player) {
		return ErrNotJoined
	}
	if a.m.started {
		a.debugf("match %s already started", a.m.id)
		return nil
	}

	a.m.started = true
	a.stats.started.Store(true)
	a.stats.tickProducers.Add(1)
	go produceTicks(a.box, a.m.cfg.TickPeriod, a.grace, a.done, a.quit)

	a.logger.Printf("match %s started by player %s", a.m.id, player)
	return nil
}

// tick advances the simulation. It returns false once the match is over,
// which makes this the last command the actor accepts.
func (a *actor) tick() bool {
	snap, err := a.m.tick()
	if err != nil {
		a.logger.Printf("match %s halted: %v", a.m.id, err)
		return false
	}
	if snap.Over() {
		a.stats.final.Store(snap)
		a.logger.Printf("match %s over after %d ticks: %s", a.m.id, snap.Tick, snap.Reason)
		return false
	}
	a.debugf("match %s tick %d heading %s", a.m.id, snap.Tick, snap.Direction)
	return true
}

func (a *actor) debugf(format string, args ...any) {
	if a.debug {
		a.logger.Printf(format, args...)
	}
}

// tick steps the board in the voted direction. A finished match is left
// alone and keeps returning the same snapshot.
func (m *match) tick() (*Snapshot, error) {
	if m.board.Over() {
		return m.snapshot(), nil
	}

	dir := m.votes.ResolveOr(m.board.Body().Heading())
	_, err := m.board.Step(dir)
	m.touch()
	if err != nil {
		return nil, fmt.Errorf("step %d: %w", m.board.Tick(), err)
	}
	return m.snapshot(), nil
}

// send enqueues cmd, blocking while the mailbox is full.
func (h *handle) send(ctx context.Context, cmd command) error {
	select {
	case h.box.ch <- cmd:
		return nil
	case <-h.done:
		return ErrInternal
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrInternal, ctx.Err())
	}
}

// await waits for the single reply to a command. An actor that exits without
// replying yields ErrInternal.
func await[T any](ctx context.Context, h *handle, reply <-chan T) (T, error) {
	var zero T

	select {
	case v := <-reply:
		return v, nil
	case <-h.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrInternal
		}
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %w", ErrInternal, ctx.Err())
	}
}

func (h *handle) isMember(player string) bool {
	_, ok := h.members.Load(player)
	return ok
}

// final returns the snapshot a finished match ended with, or nil.
func (h *handle) final() *Snapshot {
	return h.stats.final.Load()
}

func (h *handle) retired() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *handle) info() MatchInfo {
	info := MatchInfo{
		ID:                h.id,
		Width:             h.cfg.Width,
		Height:            h.cfg.Height,
		TickPeriod:        h.cfg.TickPeriod,
		CreatedAt:         h.createdAt,
		Started:           h.stats.started.Load(),
		Retired:           h.retired(),
		Players:           int(h.stats.players.Load()),
		MessagesProcessed: h.stats.messagesProcessed.Load(),
		MailboxLen:        len(h.box.ch),
		TickProducers:     int(h.stats.tickProducers.Load()),
	}
	if info.Retired {
		info.RetiredAt = time.Unix(0, h.stats.retiredAt.Load())
	}
	return info
}
