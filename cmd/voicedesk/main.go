// Command voicedesk runs the audio manager: a loopback HTTP daemon that
// serializes spoken audio and alert tones from multiple assistant windows
// onto the machine's single output device.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voicedesk/voicedesk/internal/api"
	"github.com/voicedesk/voicedesk/internal/config"
	"github.com/voicedesk/voicedesk/internal/observe"
	"github.com/voicedesk/voicedesk/internal/playback"
	"github.com/voicedesk/voicedesk/internal/service"
)

// version is stamped by the release build; the default marks dev builds.
var version = "0.1.0"

// shutdownTimeout bounds graceful teardown, in-flight playback included.
const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (optional)")
	port := flag.Int("port", 0, "HTTP port (overrides config and "+config.EnvPort+")")
	hotkeyName := flag.String("hotkey", "", "pause modifier key: fn, ctrl, option, command, shift")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	// ── Load configuration: defaults < file < env < flags ─────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicedesk: %v\n", err)
		return 1
	}
	if err := config.ApplyEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "voicedesk: %v\n", err)
		return 1
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *hotkeyName != "" {
		cfg.Hotkey = *hotkeyName
	}
	if *debug {
		cfg.LogLevel = config.LogDebug
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "voicedesk: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.LogLevel))
	slog.Info("voicedesk starting",
		"version", version,
		"port", cfg.Port,
		"hotkey", cfg.Hotkey,
		"log_level", cfg.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voicedesk",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Output device ─────────────────────────────────────────────────────────
	device, err := playback.NewPortAudioDevice()
	if err != nil {
		slog.Error("failed to open audio subsystem", "err", err)
		return 1
	}
	defer device.Close()

	// ── Service + HTTP surface ────────────────────────────────────────────────
	svc := service.New(cfg, device)
	defer svc.Close()

	server := api.NewServer(svc, version)
	httpServer := &http.Server{
		Addr:              net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Port)),
		Handler:           server.Handler(observe.DefaultMetrics()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Bind before writing the PID file so a port collision exits early
	// with a diagnostic and no stale state.
	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		slog.Error("failed to bind", "addr", httpServer.Addr, "err", err)
		return 1
	}

	if err := writePIDFile(cfg.PIDFile); err != nil {
		slog.Warn("could not write PID file", "path", cfg.PIDFile, "err", err)
	}
	defer removePIDFile(cfg.PIDFile)

	slog.Info("listening", "addr", httpServer.Addr)

	// ── Run until signalled ───────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := svc.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		// In-flight playback gets the same grace, then the buffer is
		// aborted so the worker can exit.
		for svc.GetStatus().Playing && shutdownCtx.Err() == nil {
			time.Sleep(50 * time.Millisecond)
		}
		svc.StopPlayback()
		return err
	})

	if err := g.Wait(); err != nil {
		slog.Error("service error", "err", err)
		return 1
	}
	slog.Info("shutdown complete")
	return 0
}

// writePIDFile records the process id at path, creating parent directories
// as needed. Best effort; the daemon runs without it.
func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// removePIDFile deletes the PID file on clean exit.
func removePIDFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not remove PID file", "path", path, "err", err)
	}
}

// newLogger builds the stderr text logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
