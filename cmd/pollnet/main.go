// Command pollnet is a frame-stepped demo host for the pollnet bridge. It
// drives every socket from a single ticking loop, the way a game or script
// engine would, and never blocks on the network.
package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/spf13/cobra"

	"github.com/whisper/pollnet/internal/log"
	"github.com/whisper/pollnet/internal/metrics"
	"github.com/whisper/pollnet/internal/pollnet"
)

var logger = log.NewLogger("pollnet-cli")

var (
	tickInterval time.Duration
	metricsAddr  string
	logLevel     string

	// ready is written by the host loop and read by the readiness probe.
	ready atomic.Bool
)

func main() {
	command := &cobra.Command{
		Use:   "pollnet",
		Short: "Frame-stepped WebSocket host built on pollnet",
	}
	command.PersistentFlags().DurationVar(&tickInterval, "tick", 16*time.Millisecond, "host frame interval")
	command.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics, /live and /ready on this address")
	command.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides POLLNET_LOG_LEVEL)")

	command.AddCommand(newListenCommand(), newConnectCommand())

	if err := command.Execute(); err != nil {
		logger.Fatal(err)
	}
}

// newContext builds a Context from POLLNET_* variables and command flags and
// starts the metrics endpoint if requested.
func newContext() (*pollnet.Context, error) {
	config := pollnet.ConfigFromEnv(pollnet.DefaultConfig())
	if logLevel != "" {
		config.LogLevel = logLevel
	}

	ctx, err := pollnet.New(config)
	if err != nil {
		return nil, err
	}

	logger.Infof("pollnet host starting")
	logger.Infof("  tick:           %s", tickInterval)
	logger.Infof("  event_queue:    %d", config.WS.EventQueue)
	logger.Infof("  command_queue:  %d", config.WS.CommandQueue)
	logger.Infof("  ping_interval:  %s", config.WS.PingInterval)
	logger.Infof("  shutdown_grace: %s", config.Reactor.ShutdownGrace)

	if metricsAddr != "" {
		go serveAdmin(metricsAddr)
	}
	return ctx, nil
}

// serveAdmin exposes /metrics plus /live and /ready probes. Readiness follows
// the host loop's view of its main socket.
func serveAdmin(addr string) {
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))
	health.AddReadinessCheck("socket-open", func() error {
		if !ready.Load() {
			return errors.New("socket not open")
		}
		return nil
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/live", health.LiveEndpoint)
	mux.HandleFunc("/ready", health.ReadyEndpoint)

	logger.Infof("admin endpoints listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("admin server error: %v", err)
	}
}

// runLoop calls frame once per tick until it returns false or the process
// receives SIGINT/SIGTERM, then shuts the context down.
func runLoop(ctx *pollnet.Context, frame func() bool) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	defer func() {
		start := time.Now()
		ctx.Shutdown()
		logger.Infof("pollnet host stopped in %s", time.Since(start).Round(time.Millisecond))
	}()

	for {
		select {
		case sig := <-sigCh:
			logger.Infof("received signal %v, shutting down", sig)
			return
		case <-ticker.C:
			if !frame() {
				return
			}
		}
	}
}
