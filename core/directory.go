package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/najoast/snakepit/game"
)

const tracerName = "github.com/najoast/snakepit/core"

// ErrClosed is returned by Create after the Directory has been closed.
var ErrClosed = errors.New("directory closed")

// Directory maps match IDs to running match actors. It is safe for
// concurrent use; its lock only guards the map and is never held while
// talking to an actor.
type Directory struct {
	mu      sync.RWMutex
	matches map[MatchID]*handle
	opts    Options
	closed  bool

	tracer trace.Tracer
}

// NewDirectory creates an empty Directory.
func NewDirectory(opts Options) *Directory {
	return &Directory{
		matches: make(map[MatchID]*handle),
		opts:    opts.withDefaults(),
		tracer:  otel.Tracer(tracerName),
	}
}

// Create starts a new match actor and registers it. A zero TickPeriod is
// rejected; a zero Seed is replaced with a random one.
func (d *Directory) Create(ctx context.Context, cfg MatchConfig) (MatchID, error) {
	_, span := d.tracer.Start(ctx, "Directory.Create", trace.WithAttributes(
		attribute.Int("match.width", cfg.Width),
		attribute.Int("match.height", cfg.Height),
		attribute.Int64("match.tick_ms", cfg.TickPeriod.Milliseconds()),
	))
	defer span.End()

	if err := cfg.Validate(0); err != nil {
		return "", d.fail(span, &MatchError{Op: "create", Err: err})
	}
	if cfg.Seed == 0 {
		seed, err := newSeed()
		if err != nil {
			return "", d.fail(span, &MatchError{Op: "create", Err: err})
		}
		cfg.Seed = seed
	}

	d.mu.RLock()
	opts := d.opts
	d.mu.RUnlock()

	id := newMatchID()
	h, err := spawn(id, cfg, opts)
	if err != nil {
		return "", d.fail(span, &MatchError{Op: "create", MatchID: id, Err: fmt.Errorf("%w: %w", ErrInvalidConfig, err)})
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		h.stop()
		return "", d.fail(span, &MatchError{Op: "create", MatchID: id, Err: ErrClosed})
	}
	d.matches[id] = h
	d.mu.Unlock()

	span.SetAttributes(attribute.String("match.id", string(id)))
	opts.Logger.Printf("match %s created (%dx%d, tick %s)", id, cfg.Width, cfg.Height, cfg.TickPeriod)
	return id, nil
}

// Join adds a new player to the match.
func (d *Directory) Join(ctx context.Context, id MatchID) (JoinReply, error) {
	ctx, span := d.startSpan(ctx, "Directory.Join", id, "")
	defer span.End()

	h, err := d.lookup(id)
	if err != nil {
		return JoinReply{}, d.fail(span, &MatchError{Op: "join", MatchID: id, Err: err})
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	reply := make(chan JoinReply, 1)
	if err := h.send(ctx, joinCmd{reply: reply}); err != nil {
		return JoinReply{}, d.fail(span, &MatchError{Op: "join", MatchID: id, Err: err})
	}
	jr, err := await(ctx, h, reply)
	if err != nil {
		return JoinReply{}, d.fail(span, &MatchError{Op: "join", MatchID: id, Err: err})
	}

	span.SetAttributes(attribute.String("player.id", jr.PlayerID))
	return jr, nil
}

// Start begins ticking the match. Starting a started match is a no-op.
func (d *Directory) Start(ctx context.Context, id MatchID, player string) error {
	ctx, span := d.startSpan(ctx, "Directory.Start", id, player)
	defer span.End()

	h, err := d.member(id, player)
	if err != nil {
		return d.fail(span, &MatchError{Op: "start", MatchID: id, PlayerID: player, Err: err})
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	reply := make(chan error, 1)
	if err := h.send(ctx, startCmd{player: player, reply: reply}); err != nil {
		return d.fail(span, &MatchError{Op: "start", MatchID: id, PlayerID: player, Err: err})
	}
	res, err := await(ctx, h, reply)
	if err == nil {
		err = res
	}
	if err != nil {
		return d.fail(span, &MatchError{Op: "start", MatchID: id, PlayerID: player, Err: err})
	}
	return nil
}

// Update records the player's direction vote and returns the resulting
// snapshot without waiting for the next tick.
func (d *Directory) Update(ctx context.Context, id MatchID, player string, dir game.Direction) (*Snapshot, error) {
	ctx, span := d.startSpan(ctx, "Directory.Update", id, player)
	defer span.End()
	span.SetAttributes(attribute.String("match.direction", dir.String()))

	if !dir.Valid() {
		return nil, d.fail(span, &MatchError{Op: "update", MatchID: id, PlayerID: player, Err: game.ErrInvalidDirection})
	}

	h, err := d.member(id, player)
	if err != nil {
		return nil, d.fail(span, &MatchError{Op: "update", MatchID: id, PlayerID: player, Err: err})
	}

	return d.call(ctx, span, h, "update", player, func(reply chan result) command {
		return updateCmd{player: player, dir: dir, reply: reply}
	})
}

// Status returns the current snapshot of the match. A match that ran to its
// end keeps answering with its final snapshot after the actor has exited.
func (d *Directory) Status(ctx context.Context, id MatchID, player string) (*Snapshot, error) {
	ctx, span := d.startSpan(ctx, "Directory.Status", id, player)
	defer span.End()

	h, err := d.member(id, player)
	if err != nil {
		return nil, d.fail(span, &MatchError{Op: "status", MatchID: id, PlayerID: player, Err: err})
	}
	if snap := h.final(); snap != nil {
		return d.finalSnapshot(span, snap), nil
	}

	snap, err := d.call(ctx, span, h, "status", player, func(reply chan result) command {
		return statusCmd{player: player, reply: reply}
	})
	if errors.Is(err, ErrInternal) {
		// the request raced the last tick
		if final := h.final(); final != nil {
			return d.finalSnapshot(span, final), nil
		}
	}
	return snap, err
}

func (d *Directory) finalSnapshot(span trace.Span, snap *Snapshot) *Snapshot {
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(
		attribute.Bool("match.over", true),
		attribute.String("match.reason", snap.Reason.String()),
		attribute.Int64("snapshot.version", int64(snap.Version)),
		attribute.Int64("snapshot.tick", int64(snap.Tick)),
	)
	return snap
}

// call performs a snapshot round trip with the actor.
func (d *Directory) call(ctx context.Context, span trace.Span, h *handle, op, player string, mk func(chan result) command) (*Snapshot, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	reply := make(chan result, 1)
	if err := h.send(ctx, mk(reply)); err != nil {
		return nil, d.fail(span, &MatchError{Op: op, MatchID: h.id, PlayerID: player, Err: err})
	}
	res, err := await(ctx, h, reply)
	if err == nil {
		err = res.err
	}
	if err != nil {
		return nil, d.fail(span, &MatchError{Op: op, MatchID: h.id, PlayerID: player, Err: err})
	}

	span.SetAttributes(
		attribute.Int64("snapshot.version", int64(res.snap.Version)),
		attribute.Int64("snapshot.tick", int64(res.snap.Tick)),
	)
	return res.snap, nil
}

// Len returns the number of registered matches, retired ones included.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.matches)
}

// List returns a summary of every registered match, oldest first.
func (d *Directory) List() []MatchInfo {
	d.mu.RLock()
	infos := make([]MatchInfo, 0, len(d.matches))
	for _, h := range d.matches {
		infos = append(infos, h.info())
	}
	d.mu.RUnlock()

	slices.SortFunc(infos, func(a, b MatchInfo) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return infos
}

// Reap drops matches whose actor retired more than olderThan ago and returns
// how many were removed.
func (d *Directory) Reap(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	d.mu.Lock()
	var reaped []MatchID
	for id, h := range d.matches {
		if !h.retired() {
			continue
		}
		if time.Unix(0, h.stats.retiredAt.Load()).After(cutoff) {
			continue
		}
		delete(d.matches, id)
		reaped = append(reaped, id)
	}
	logger := d.opts.Logger
	d.mu.Unlock()

	for _, id := range reaped {
		logger.Printf("match %s reaped", id)
	}
	return len(reaped)
}

// RunJanitor calls Reap every interval until ctx is cancelled. A
// non-positive retain disables reaping.
func (d *Directory) RunJanitor(ctx context.Context, interval, retain time.Duration) {
	if retain <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Reap(retain)
		}
	}
}

// Reconfigure replaces the options used for matches created from now on.
func (d *Directory) Reconfigure(opts Options) {
	d.mu.Lock()
	d.opts = opts.withDefaults()
	d.mu.Unlock()
}

// Close stops every actor and waits for them to exit or ctx to expire.
// Matches created after Close fail with ErrClosed.
func (d *Directory) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	handles := make([]*handle, 0, len(d.matches))
	for _, h := range d.matches {
		handles = append(handles, h)
	}
	logger := d.opts.Logger
	d.mu.Unlock()

	for _, h := range handles {
		h.stop()
	}
	for _, h := range handles {
		select {
		case <-h.done:
		case <-ctx.Done():
			return fmt.Errorf("close directory: %w", ctx.Err())
		}
	}

	logger.Printf("directory closed, %d matches stopped", len(handles))
	return nil
}

func (d *Directory) lookup(id MatchID) (*handle, error) {
	d.mu.RLock()
	h, ok := d.matches[id]
	d.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return h, nil
}

// member looks up the match and checks the player against the member index
// the actor publishes, so unknown players never reach the mailbox.
func (d *Directory) member(id MatchID, player string) (*handle, error) {
	h, err := d.lookup(id)
	if err != nil {
		return nil, err
	}
	if !h.isMember(player) {
		return nil, ErrNotJoined
	}
	return h, nil
}

func (d *Directory) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	d.mu.RLock()
	timeout := d.opts.CallTimeout
	d.mu.RUnlock()

	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (d *Directory) startSpan(ctx context.Context, name string, id MatchID, player string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("match.id", string(id))}
	if player != "" {
		attrs = append(attrs, attribute.String("player.id", player))
	}
	return d.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (d *Directory) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
