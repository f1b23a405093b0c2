// Package app assembles the match server from its configuration and runs it
// under the bootstrap lifecycle manager.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/najoast/snakepit/bootstrap"
	"github.com/najoast/snakepit/config"
	"github.com/najoast/snakepit/core"
	"github.com/najoast/snakepit/service"
	"github.com/najoast/snakepit/telemetry"
	"github.com/najoast/snakepit/web"
)

// Flags holds the server command line.
type Flags struct {
	// ConfigFile is a YAML or JSON file; empty means defaults and environment
	ConfigFile string
}

// ParseFlags parses the server command line.
func ParseFlags(fs *flag.FlagSet, args []string) (Flags, error) {
	var f Flags
	fs.StringVar(&f.ConfigFile, "config", "", "Path to a YAML or JSON config file (watched for changes)")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	if fs.NArg() > 0 {
		return Flags{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return f, nil
}

// Server is the assembled process: the directory, its gRPC and HTTP fronts,
// and the services that keep them running.
type Server struct {
	App       *bootstrap.DefaultApplication
	Directory *bootstrap.DirectoryService
	Matches   *service.MatchService
	GRPC      *service.Server
	HTTP      *web.Server

	cfg     *config.Config
	logOut  io.Writer
	closers []func(context.Context) error
}

// New wires a Server from cfg. When watcher is not nil it is registered as a
// service and reloads are applied to new matches. Logs go to out.
func New(ctx context.Context, cfg *config.Config, watcher *config.Watcher, out io.Writer) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	debug := cfg.IsDebugEnabled()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.App.Version)
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	coreLogger := newLogger(out, "[CORE] ")
	dir := core.NewDirectory(bootstrap.MatchOptions(cfg, coreLogger))
	dirSvc := bootstrap.NewDirectoryService(dir, cfg.Match, coreLogger)
	matches := service.NewMatchService(dir, service.DefaultsFromConfig(cfg.Match))

	grpcServer := service.NewServer(cfg.Server.GRPCAddress, matches, service.ServerOptions{
		Logger: newLogger(out, "[RPC] "),
		Debug:  debug,
	})
	httpServer := web.NewServer(cfg.Server.HTTPAddress, matches, web.Options{
		Logger: newLogger(out, "[WEB] "),
		Debug:  debug,
	})

	appLogger := newLogger(out, "[APP] ")
	builder := bootstrap.NewApplicationBuilder().
		WithConfig(cfg).
		WithLogger(appLogger).
		WithService(dirSvc.Name(), dirSvc).
		WithService(grpcServer.Name(), grpcServer, dirSvc.Name()).
		WithService(httpServer.Name(), httpServer, dirSvc.Name())

	s := &Server{
		Directory: dirSvc,
		Matches:   matches,
		GRPC:      grpcServer,
		HTTP:      httpServer,
		cfg:       cfg,
		logOut:    out,
		closers:   []func(context.Context) error{shutdownTelemetry},
	}

	if watcher != nil {
		watcher.OnConfigChange(s.applyReload)
		watchSvc := bootstrap.NewWatcherService(watcher)
		builder.WithService(watchSvc.Name(), watchSvc, dirSvc.Name())
	}

	s.App, err = builder.Build()
	if err != nil {
		shutdownTelemetry(ctx)
		return nil, err
	}

	lm := s.App.LifecycleManager()
	lm.AddListener(logEvents(appLogger, debug))
	httpServer.SetHealthSource(lm)
	return s, nil
}

// logEvents logs lifecycle transitions; per-service events only when debug is
// on, since the lifecycle manager already logs each start and stop.
func logEvents(logger *log.Logger, debug bool) func(bootstrap.LifecycleEvent) {
	return func(e bootstrap.LifecycleEvent) {
		switch {
		case strings.HasPrefix(e.Type, "lifecycle."):
			if order, ok := e.Data["order"]; ok {
				logger.Printf("%s %v", e.Type, order)
				return
			}
			logger.Printf("%s", e.Type)
		case debug && e.Error != nil:
			logger.Printf("%s %s: %v", e.Type, e.Service, e.Error)
		case debug:
			logger.Printf("%s %s", e.Type, e.Service)
		}
	}
}

// Run runs until ctx is done or the process is signalled, then flushes
// telemetry.
func (s *Server) Run(ctx context.Context) error {
	err := s.App.Run(ctx)
	for _, closer := range s.closers {
		if cerr := closer(context.WithoutCancel(ctx)); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	return err
}

// applyReload carries a reloaded config into the running server. Listener
// addresses and telemetry only change on restart.
func (s *Server) applyReload(oldCfg, newCfg *config.Config) {
	logger := newLogger(s.logOut, "[CONFIG] ")

	s.Directory.Reconfigure(newCfg, newLogger(s.logOut, "[CORE] "))
	s.Matches.SetDefaults(service.DefaultsFromConfig(newCfg.Match))

	if oldCfg.Log.Level != newCfg.Log.Level {
		logger.Printf("log level %s -> %s (applies to new matches)", oldCfg.Log.Level, newCfg.Log.Level)
	}
	if oldCfg.Server != newCfg.Server || oldCfg.Telemetry != newCfg.Telemetry || oldCfg.Log.Output != newCfg.Log.Output {
		logger.Printf("server, telemetry and log output changes take effect after a restart")
	}
	logger.Printf("match defaults now %dx%d every %v",
		newCfg.Match.DefaultWidth, newCfg.Match.DefaultHeight, newCfg.Match.DefaultTick)
}

// Run loads the configuration named by flags and serves until ctx is done.
func Run(ctx context.Context, flags Flags) error {
	loader := config.NewLoader()

	var (
		cfg     *config.Config
		watcher *config.Watcher
		err     error
	)
	if flags.ConfigFile != "" {
		watcher, err = config.NewWatcher(flags.ConfigFile, loader)
		if err != nil {
			return err
		}
		cfg = watcher.GetConfig()
	} else {
		cfg, err = loader.AutoLoad()
		if err != nil {
			return err
		}
	}

	out, closeOut, err := OpenLogOutput(cfg.Log.Output)
	if err != nil {
		return err
	}
	defer closeOut()

	if watcher != nil {
		watcher.SetLogger(newLogger(out, "[CONFIG] "))
	}

	s, err := New(ctx, cfg, watcher, out)
	if err != nil {
		if watcher != nil {
			watcher.Stop()
		}
		return err
	}
	return s.Run(ctx)
}

// OpenLogOutput resolves log.output: stdout, stderr or a file appended to.
func OpenLogOutput(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }
	switch output {
	case "", "stdout":
		return os.Stdout, noop, nil
	case "stderr":
		return os.Stderr, noop, nil
	}

	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, noop, fmt.Errorf("open log output: %w", err)
	}
	return f, f.Close, nil
}

func newLogger(out io.Writer, prefix string) *log.Logger {
	return log.New(out, prefix, log.LstdFlags)
}
