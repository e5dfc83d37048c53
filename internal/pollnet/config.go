package pollnet

import (
	"os"
	"strconv"
	"time"

	"github.com/whisper/pollnet/internal/reactor"
	"github.com/whisper/pollnet/internal/ws"
)

// Config holds everything a Context needs: transport tuning, reactor sizing
// and the log level.
type Config struct {
	WS       ws.Config
	Reactor  reactor.Config
	LogLevel string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		WS:       ws.DefaultConfig(),
		Reactor:  reactor.DefaultConfig(),
		LogLevel: "info",
	}
}

// ConfigFromEnv applies POLLNET_* environment overrides on top of base.
// Malformed values are ignored.
//
//	POLLNET_LOG_LEVEL         logrus level name
//	POLLNET_COMMAND_QUEUE     host -> task queue depth
//	POLLNET_EVENT_QUEUE       task -> host queue depth
//	POLLNET_DIAL_TIMEOUT      duration
//	POLLNET_HANDSHAKE_TIMEOUT duration
//	POLLNET_WRITE_TIMEOUT     duration
//	POLLNET_PING_INTERVAL     duration, 0 disables
//	POLLNET_PING_TIMEOUT      duration
//	POLLNET_REUSE_PORT        bool
//	POLLNET_MAX_TASKS         reactor pool size, 0 = unbounded
//	POLLNET_SHUTDOWN_GRACE    duration
func ConfigFromEnv(base Config) Config {
	config := base

	if v := os.Getenv("POLLNET_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	envInt("POLLNET_COMMAND_QUEUE", &config.WS.CommandQueue)
	envInt("POLLNET_EVENT_QUEUE", &config.WS.EventQueue)
	envDuration("POLLNET_DIAL_TIMEOUT", &config.WS.DialTimeout)
	envDuration("POLLNET_HANDSHAKE_TIMEOUT", &config.WS.HandshakeTimeout)
	envDuration("POLLNET_WRITE_TIMEOUT", &config.WS.WriteTimeout)
	envDuration("POLLNET_PING_INTERVAL", &config.WS.PingInterval)
	envDuration("POLLNET_PING_TIMEOUT", &config.WS.PingTimeout)
	if v := os.Getenv("POLLNET_REUSE_PORT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.WS.ReusePort = b
		}
	}
	envInt("POLLNET_MAX_TASKS", &config.Reactor.MaxTasks)
	envDuration("POLLNET_SHUTDOWN_GRACE", &config.Reactor.ShutdownGrace)

	return config
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			*dst = d
		}
	}
}
