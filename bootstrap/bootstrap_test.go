package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/najoast/snakepit/config"
	"github.com/najoast/snakepit/core"
)

// TestService is a simple service implementation for testing
type TestService struct {
	name     string
	startErr error
	stopErr  error
	log      *callLog

	started bool
	stopped bool
}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (s *TestService) Name() string {
	return s.name
}

func (s *TestService) Start(ctx context.Context) error {
	s.log.add("start " + s.name)
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *TestService) Stop(ctx context.Context) error {
	s.log.add("stop " + s.name)
	s.stopped = true
	return s.stopErr
}

func (s *TestService) Health(ctx context.Context) (HealthStatus, error) {
	if s.started && !s.stopped {
		return HealthStatus{
			State:   HealthHealthy,
			Message: "Service is running",
		}, nil
	}
	return HealthStatus{
		State:   HealthUnhealthy,
		Message: "Service is not running",
	}, nil
}

func equalCalls(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLifecycleManager(t *testing.T) {
	lm := NewLifecycleManager(nil)
	testService := &TestService{name: "test"}

	if err := lm.Register("test", testService); err != nil {
		t.Fatalf("Failed to register service: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := lm.Start(ctx); err != nil {
		t.Fatalf("Failed to start services: %v", err)
	}
	if !testService.started {
		t.Error("Test service should be started")
	}

	health, err := lm.Health(ctx)
	if err != nil {
		t.Fatalf("Failed to get health status: %v", err)
	}
	if health["test"].State != HealthHealthy {
		t.Errorf("Expected healthy state, got %v", health["test"].State)
	}

	if err := lm.Register("late", &TestService{name: "late"}); err == nil {
		t.Error("Expected registration after start to fail")
	}

	if err := lm.Stop(ctx); err != nil {
		t.Fatalf("Failed to stop services: %v", err)
	}
	if !testService.stopped {
		t.Error("Test service should be stopped")
	}
}

func TestStartOrder(t *testing.T) {
	calls := &callLog{}
	lm := NewLifecycleManager(nil)

	// registered out of order on purpose
	lm.Register("http", &TestService{name: "http", log: calls}, "directory")
	lm.Register("grpc", &TestService{name: "grpc", log: calls}, "directory")
	lm.Register("directory", &TestService{name: "directory", log: calls})

	ctx := context.Background()
	if err := lm.Start(ctx); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	if err := lm.Stop(ctx); err != nil {
		t.Fatalf("Failed to stop: %v", err)
	}

	want := []string{
		"start directory", "start http", "start grpc",
		"stop grpc", "stop http", "stop directory",
	}
	if got := calls.get(); !equalCalls(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestStartFailureRollsBack(t *testing.T) {
	calls := &callLog{}
	boom := errors.New("address in use")
	lm := NewLifecycleManager(nil)

	lm.Register("directory", &TestService{name: "directory", log: calls})
	lm.Register("grpc", &TestService{name: "grpc", log: calls, startErr: boom}, "directory")

	err := lm.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Expected %v, got %v", boom, err)
	}
	var appErr *ApplicationError
	if !errors.As(err, &appErr) || appErr.Service != "grpc" || appErr.Operation != "start" {
		t.Errorf("Expected an ApplicationError for grpc, got %#v", err)
	}

	want := []string{"start directory", "start grpc", "stop directory"}
	if got := calls.get(); !equalCalls(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if err := lm.Register("retry", &TestService{name: "retry"}); err != nil {
		t.Errorf("Expected the manager to stay unstarted after rollback, got %v", err)
	}
}

func TestStopCollectsErrors(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	lm := NewLifecycleManager(nil)
	lm.Register("a", &TestService{name: "a", stopErr: first})
	lm.Register("b", &TestService{name: "b", stopErr: second})

	ctx := context.Background()
	if err := lm.Start(ctx); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	err := lm.Stop(ctx)
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Errorf("Expected both stop errors, got %v", err)
	}
}

func TestDependencyErrors(t *testing.T) {
	tests := []struct {
		name     string
		register func(lm *DefaultLifecycleManager)
	}{
		{"missing dependency", func(lm *DefaultLifecycleManager) {
			lm.Register("a", &TestService{name: "a"}, "ghost")
		}},
		{"cycle", func(lm *DefaultLifecycleManager) {
			lm.Register("a", &TestService{name: "a"}, "b")
			lm.Register("b", &TestService{name: "b"}, "a")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lm := NewLifecycleManager(nil)
			tt.register(lm)
			if err := lm.Start(context.Background()); err == nil {
				t.Error("Expected start to fail")
			}
		})
	}

	lm := NewLifecycleManager(nil)
	if err := lm.Register("", &TestService{}); err == nil {
		t.Error("Expected an empty name to be rejected")
	}
	lm.Register("a", &TestService{name: "a"})
	if err := lm.Register("a", &TestService{name: "a"}); err == nil {
		t.Error("Expected a duplicate name to be rejected")
	}
	if health, _ := lm.Health(context.Background()); len(health) != 1 {
		t.Errorf("Expected service a to be registered once, got %v", health)
	}
}

func TestLifecycleEvents(t *testing.T) {
	lm := NewLifecycleManager(nil)

	seen := make(chan string, 32)
	lm.AddListener(func(e LifecycleEvent) { seen <- e.Type })
	lm.AddListener(func(LifecycleEvent) { panic("listener bug") })
	lm.Register("a", &TestService{name: "a"})

	if err := lm.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}

	// listeners run concurrently, so only the set of events is fixed
	want := map[string]bool{
		"service.registered": false,
		"lifecycle.starting": false,
		"service.starting":   false,
		"service.started":    false,
		"lifecycle.started":  false,
	}
	remaining := len(want)
	deadline := time.After(2 * time.Second)
	for remaining > 0 {
		select {
		case typ := <-seen:
			if got, ok := want[typ]; ok && !got {
				want[typ] = true
				remaining--
			}
		case <-deadline:
			t.Fatalf("Expected every start event, got %v", want)
		}
	}
}

// blockingService stops only when release is closed.
type blockingService struct {
	TestService
	stopping chan struct{}
	release  chan struct{}
}

func (s *blockingService) Stop(ctx context.Context) error {
	close(s.stopping)
	<-s.release
	return s.TestService.Stop(ctx)
}

func TestHealthDuringStop(t *testing.T) {
	lm := NewLifecycleManager(nil)
	svc := &blockingService{
		TestService: TestService{name: "slow"},
		stopping:    make(chan struct{}),
		release:     make(chan struct{}),
	}
	lm.Register("slow", svc)
	if err := lm.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}

	stopped := make(chan error, 1)
	go func() { stopped <- lm.Stop(context.Background()) }()
	<-svc.stopping

	health := make(chan map[string]HealthStatus, 1)
	go func() {
		h, _ := lm.Health(context.Background())
		health <- h
	}()

	select {
	case h := <-health:
		if _, ok := h["slow"]; !ok {
			t.Errorf("Expected health for slow, got %v", h)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Health blocked behind Stop")
	}

	close(svc.release)
	if err := <-stopped; err != nil {
		t.Fatalf("Failed to stop: %v", err)
	}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name     string
		statuses map[string]HealthStatus
		want     HealthState
	}{
		{"none", nil, HealthHealthy},
		{"all healthy", map[string]HealthStatus{"a": {State: HealthHealthy}, "b": {State: HealthHealthy}}, HealthHealthy},
		{"one starting", map[string]HealthStatus{"a": {State: HealthHealthy}, "b": {State: HealthStarting}}, HealthStarting},
		{"worst wins", map[string]HealthStatus{"a": {State: HealthStopped}, "b": {State: HealthCritical}, "c": {State: HealthUnhealthy}}, HealthCritical},
		{"unknown name", map[string]HealthStatus{"a": {State: "weird"}}, HealthUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overall(tt.statuses); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestApplicationRun(t *testing.T) {
	calls := &callLog{}
	app, err := NewApplicationBuilder().
		WithConfig(config.DefaultConfig()).
		WithService("a", &TestService{name: "a", log: calls}).
		WithService("b", &TestService{name: "b", log: calls}, "a").
		Build()
	if err != nil {
		t.Fatalf("Failed to build application: %v", err)
	}
	app.signals = nil

	ready := make(chan struct{})
	var once sync.Once
	app.LifecycleManager().AddListener(func(e LifecycleEvent) {
		if e.Type == "lifecycle.started" {
			once.Do(func() { close(ready) })
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("Application did not start")
	}

	if err := app.Run(context.Background()); err == nil {
		t.Error("Expected a second Run to fail")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	want := []string{"start a", "start b", "stop b", "stop a"}
	if got := calls.get(); !equalCalls(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Errorf("Expected a second Shutdown to be a no-op, got %v", err)
	}
}

func TestApplicationBuilder(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.App.Name = "built-pit"

	app, err := NewApplicationBuilder().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Failed to build application: %v", err)
	}
	if app.Config().App.Name != "built-pit" {
		t.Errorf("Expected built-pit, got %s", app.Config().App.Name)
	}
	if app.LifecycleManager() == nil {
		t.Error("Application should have a lifecycle manager")
	}

	bad := config.DefaultConfig()
	bad.Match.MailboxSize = 0
	if _, err := NewApplicationBuilder().WithConfig(bad).Build(); !errors.Is(err, config.ErrInvalidMailboxSize) {
		t.Errorf("Expected %v, got %v", config.ErrInvalidMailboxSize, err)
	}

	_, err = NewApplicationBuilder().
		WithService("a", &TestService{name: "a"}).
		WithService("a", &TestService{name: "a"}).
		Build()
	if err == nil {
		t.Error("Expected duplicate services to fail the build")
	}
}

func TestDirectoryServiceReaps(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Match.StartGrace = 0

	dir := core.NewDirectory(MatchOptions(cfg, nil))
	svc := NewDirectoryService(dir, cfg.Match, nil)

	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	defer svc.Stop(ctx)

	id, err := dir.Create(ctx, core.MatchConfig{Width: 3, Height: 1, TickPeriod: 5 * time.Millisecond, Seed: 1})
	if err != nil {
		t.Fatalf("Failed to create match: %v", err)
	}
	joined, err := dir.Join(ctx, id)
	if err != nil {
		t.Fatalf("Failed to join: %v", err)
	}
	if err := dir.Start(ctx, id, joined.PlayerID); err != nil {
		t.Fatalf("Failed to start match: %v", err)
	}

	// reaping is off by default, so turn it on through a reload
	cfg.Match.ReapAfter = time.Millisecond
	cfg.Match.ReapInterval = 5 * time.Millisecond
	svc.Reconfigure(cfg, nil)

	deadline := time.Now().Add(2 * time.Second)
	for dir.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected the finished match to be reaped")
		}
		time.Sleep(5 * time.Millisecond)
	}

	health, _ := svc.Health(ctx)
	if health.State != HealthHealthy || health.Data["matches"] != 0 {
		t.Errorf("Unexpected health: %+v", health)
	}
}

func TestDirectoryServiceStop(t *testing.T) {
	cfg := config.DefaultConfig()
	dir := core.NewDirectory(MatchOptions(cfg, nil))
	svc := NewDirectoryService(dir, cfg.Match, nil)

	ctx := context.Background()
	svc.Start(ctx)
	if err := svc.Stop(ctx); err != nil {
		t.Fatalf("Failed to stop: %v", err)
	}

	if _, err := dir.Create(ctx, core.MatchConfig{Width: 10, Height: 10, TickPeriod: time.Second}); !errors.Is(err, core.ErrClosed) {
		t.Errorf("Expected %v, got %v", core.ErrClosed, err)
	}
	health, _ := svc.Health(ctx)
	if health.State != HealthStopped {
		t.Errorf("Expected stopped, got %s", health.State)
	}
}

func TestWatcherService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snakepit.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: info\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	w, err := config.NewWatcher(path, config.NewLoader())
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}

	svc := NewWatcherService(w)
	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	health, _ := svc.Health(ctx)
	if health.Data["file"] != filepath.Clean(path) {
		t.Errorf("Expected %s, got %v", path, health.Data["file"])
	}
	if err := svc.Stop(ctx); err != nil {
		t.Errorf("Failed to stop: %v", err)
	}
}
