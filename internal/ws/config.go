package ws

import "time"

// Config holds tunable parameters shared by every connection task.
type Config struct {
	DialTimeout      time.Duration // outbound TCP connect + handshake
	HandshakeTimeout time.Duration // inbound upgrade request read timeout
	WriteTimeout     time.Duration // per-frame write deadline
	PingInterval     time.Duration // keepalive ping period; 0 disables
	PingTimeout      time.Duration // extra silence tolerated after a ping
	ReusePort        bool          // set SO_REUSEPORT on listeners
	CommandQueue     int           // host -> task queue depth per socket
	EventQueue       int           // task -> host queue depth per socket
}

// DefaultConfig returns a Config with sensible defaults. Keepalive pings are
// off; peers that never answer are found by the transport's own errors.
func DefaultConfig() Config {
	return Config{
		DialTimeout:      10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     0,
		PingTimeout:      10 * time.Second,
		ReusePort:        false,
		CommandQueue:     64,
		EventQueue:       64,
	}
}
