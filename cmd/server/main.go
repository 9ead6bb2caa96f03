package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	backend "github.com/lyric-companion/backend"
	"github.com/lyric-companion/backend/internal/config"
	"github.com/lyric-companion/backend/internal/db"
	"github.com/lyric-companion/backend/internal/files"
	"github.com/lyric-companion/backend/internal/logging"
	"github.com/lyric-companion/backend/internal/metrics"
	"github.com/lyric-companion/backend/internal/repository"
	"github.com/lyric-companion/backend/internal/server"
	"github.com/lyric-companion/backend/internal/session"
	"github.com/lyric-companion/backend/internal/state"
	"github.com/lyric-companion/backend/internal/ws"
)

// Extra time given to closing sessions once the shutdown timeout is spent.
// Each one needs at most a close frame and one audit write.
const hubDrainGrace = 6 * time.Second

var (
	configFile = flag.String("config", config.DefaultPath, "Path to configuration file")
	noBrowser  = flag.Bool("no-browser", false, "Do not open the client in a browser")
	version    = "dev"
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *noBrowser {
		cfg.Server.OpenBrowser = false
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Starting companion server", zap.String("version", version))

	// Bind before anything else: a second instance only opens the browser
	// at the one already running.
	ln, err := net.Listen("tcp", cfg.Server.Address())
	if err != nil {
		if isAddrInUse(err) {
			logger.Warn("Server address already in use, opening the running instance",
				zap.String("address", cfg.Server.Address()))
			if cfg.Server.OpenBrowser {
				openBrowser(cfg.Server.BaseURL()+"/", logger)
			}
			return
		}
		logger.Fatal("Failed to listen", zap.String("address", cfg.Server.Address()), zap.Error(err))
	}

	if err := run(cfg, ln, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server exited")
}

func run(cfg *config.Config, ln net.Listener, logger *zap.Logger) error {
	// The shutdown token: cancelled by SIGINT/SIGTERM or POST /api/shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, shutdown := context.WithCancel(ctx)
	defer shutdown()

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return err
	}
	// Left open if sessions are still writing their records at exit; the next
	// start repairs whatever they could not finish.
	closeDB := true
	defer func() {
		if closeDB {
			_ = db.CloseDB()
		}
	}()

	sessions := session.NewManager(repository.NewConnectionRepository(database), session.Config{})
	if n, err := sessions.Recover(ctx); err != nil {
		logger.Warn("Failed to close stale connection records", zap.Error(err))
	} else if n > 0 {
		logger.Info("Closed stale connection records", zap.Int64("count", n))
	}

	store := state.NewStore()
	collector := metrics.New(version, func() float64 { return float64(store.Version()) })

	hub := ws.NewHub(store,
		ws.WithLogger(logger),
		ws.WithRecorder(sessions),
		ws.WithObserver(collector),
		ws.WithConfig(ws.Config{
			MaxMessageSize: cfg.Server.MaxMessageBytes,
			CheckOrigin:    server.OriginChecker(cfg.Server.CORSAllowedOrigins),
		}),
	)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	options, err := config.NewClientOptions(cfg)
	if err != nil {
		return err
	}
	if _, err := os.Stat(*configFile); err == nil {
		go func() {
			err := config.Watch(ctx, *configFile, logger, func(next *config.Config) {
				if err := options.Update(next); err != nil {
					logger.Error("Failed to apply client options", zap.Error(err))
				}
			})
			if err != nil {
				logger.Warn("Config watcher stopped", zap.Error(err))
			}
		}()
	}

	srv, err := server.New(cfg.Server, server.Deps{
		Hub:      hub,
		Sessions: sessions,
		Content:  files.NewContentStore(cfg.Files.ContentDirectory),
		Text:     files.NewTextStore(cfg.Files.EditDirectory),
		Options:  options,
		Metrics:  collector,
		Shutdown: shutdown,
		Version:  version,
		License:  backend.License,
	}, logger)
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	if cfg.Server.OpenBrowser {
		go openBrowserAfter(ctx, time.Second, cfg.Server.BaseURL()+"/", logger)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case runErr = <-serveErr:
		shutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if !waitForHub(shutdownCtx, hubDone, hubDrainGrace) {
		logger.Warn("Timed out waiting for state sessions to close, leaving database open")
		closeDB = false
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// waitForHub reports whether done closed before ctx expired plus grace.
func waitForHub(ctx context.Context, done <-chan struct{}, grace time.Duration) bool {
	select {
	case <-done:
		return true
	case <-ctx.Done():
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
