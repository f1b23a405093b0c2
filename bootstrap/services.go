package bootstrap

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/najoast/snakepit/config"
	"github.com/najoast/snakepit/core"
)

// MatchOptions derives actor options from the match section of cfg.
func MatchOptions(cfg *config.Config, logger *log.Logger) core.Options {
	return core.Options{
		MailboxSize: cfg.Match.MailboxSize,
		StartGrace:  cfg.Match.StartGrace,
		CallTimeout: cfg.Match.CallTimeout,
		Logger:      logger,
		Debug:       cfg.IsDebugEnabled(),
	}
}

// DirectoryService owns the match directory: it runs the janitor that reaps
// finished matches and stops every actor on shutdown.
type DirectoryService struct {
	dir    *core.Directory
	logger *log.Logger

	mu           sync.Mutex
	reapAfter    time.Duration
	reapInterval time.Duration
	cancel       context.CancelFunc
	janitorDone  chan struct{}
	running      bool
	stopped      bool
}

// NewDirectoryService wraps dir, reaping with the settings in cfg.
func NewDirectoryService(dir *core.Directory, cfg config.MatchConfig, logger *log.Logger) *DirectoryService {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &DirectoryService{
		dir:          dir,
		logger:       logger,
		reapAfter:    cfg.ReapAfter,
		reapInterval: cfg.ReapInterval,
	}
}

// Name returns the service name
func (s *DirectoryService) Name() string {
	return "match-directory"
}

// Directory returns the wrapped directory
func (s *DirectoryService) Directory() *core.Directory {
	return s.dir
}

// Start launches the janitor. The janitor outlives ctx and runs until Stop.
func (s *DirectoryService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.stopped = false
	s.startJanitor()
	return nil
}

// Stop halts the janitor and every match actor.
func (s *DirectoryService) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.running = false
	s.stopped = true
	s.stopJanitor()
	s.mu.Unlock()

	return s.dir.Close(ctx)
}

// Health reports how many matches are registered.
func (s *DirectoryService) Health(ctx context.Context) (HealthStatus, error) {
	s.mu.Lock()
	running, stopped, reapAfter := s.running, s.stopped, s.reapAfter
	s.mu.Unlock()

	st := HealthStatus{
		State:     HealthHealthy,
		Message:   "accepting matches",
		LastCheck: time.Now(),
		Data: map[string]any{
			"matches":    s.dir.Len(),
			"reap_after": reapAfter.String(),
		},
	}
	switch {
	case stopped:
		st.State = HealthStopped
		st.Message = "closed"
	case !running:
		st.State = HealthStarting
		st.Message = "not started"
	}
	return st, nil
}

// Reconfigure applies a reloaded configuration: new matches get the new actor
// options and the janitor restarts if its schedule changed.
func (s *DirectoryService) Reconfigure(cfg *config.Config, logger *log.Logger) {
	s.dir.Reconfigure(MatchOptions(cfg, logger))

	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Match.ReapAfter == s.reapAfter && cfg.Match.ReapInterval == s.reapInterval {
		return
	}
	s.reapAfter = cfg.Match.ReapAfter
	s.reapInterval = cfg.Match.ReapInterval
	if !s.running {
		return
	}
	s.stopJanitor()
	s.startJanitor()
}

// startJanitor runs with s.mu held.
func (s *DirectoryService) startJanitor() {
	if s.cancel != nil || s.reapAfter <= 0 || s.reapInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.janitorDone = done

	go func(interval, retain time.Duration) {
		defer close(done)
		s.dir.RunJanitor(ctx, interval, retain)
	}(s.reapInterval, s.reapAfter)

	s.logger.Printf("janitor reaping finished matches after %v, every %v", s.reapAfter, s.reapInterval)
}

// stopJanitor runs with s.mu held.
func (s *DirectoryService) stopJanitor() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.janitorDone
	s.cancel = nil
	s.janitorDone = nil
}

// WatcherService runs a config.Watcher under the lifecycle manager.
type WatcherService struct {
	watcher *config.Watcher
}

// NewWatcherService wraps w.
func NewWatcherService(w *config.Watcher) *WatcherService {
	return &WatcherService{watcher: w}
}

// Name returns the service name
func (s *WatcherService) Name() string {
	return "config-watcher"
}

// Start begins watching the file
func (s *WatcherService) Start(ctx context.Context) error {
	return s.watcher.Start()
}

// Stop stops watching the file
func (s *WatcherService) Stop(ctx context.Context) error {
	return s.watcher.Stop()
}

// Health reports the watched file
func (s *WatcherService) Health(ctx context.Context) (HealthStatus, error) {
	return HealthStatus{
		State:     HealthHealthy,
		Message:   "watching",
		LastCheck: time.Now(),
		Data: map[string]any{
			"file": s.watcher.File(),
		},
	}, nil
}
