package ws

import (
	"fmt"
	"time"

	"github.com/gobwas/ws"
)

// keepalive sends protocol-level pings on a fixed interval and declares the
// peer dead when nothing has been read for Interval + Timeout.
type keepalive struct {
	interval time.Duration
	timeout  time.Duration
	ticker   *time.Ticker
	lastRead time.Time
}

func newKeepalive(config Config) *keepalive {
	k := &keepalive{
		interval: config.PingInterval,
		timeout:  config.PingTimeout,
		lastRead: time.Now(),
	}
	if k.interval > 0 {
		k.ticker = time.NewTicker(k.interval)
	}
	return k
}

// C returns the tick channel, or nil when pings are disabled so the select
// case never fires.
func (k *keepalive) C() <-chan time.Time {
	if k.ticker == nil {
		return nil
	}
	return k.ticker.C
}

// Touch records inbound activity. Any frame proves the connection is alive.
func (k *keepalive) Touch() {
	k.lastRead = time.Now()
}

// Check pings the peer, or returns an error when the peer has been silent too
// long or the ping cannot be written.
func (k *keepalive) Check(c *Connection, now time.Time) error {
	deadline := k.interval + k.timeout
	if silent := now.Sub(k.lastRead); silent > deadline {
		return fmt.Errorf("ws: keepalive timeout, last activity %s ago", silent.Round(time.Millisecond))
	}
	if err := c.WritePing(); err != nil {
		return fmt.Errorf("ws: keepalive ping: %w", err)
	}
	return nil
}

func (k *keepalive) Stop() {
	if k.ticker != nil {
		k.ticker.Stop()
	}
}

// WritePing sends a WebSocket protocol-level ping frame (opcode 0x9). Peers
// answer with a pong, which the read loop counts as activity.
func (c *Connection) WritePing() error {
	return c.writeControl(ws.NewPingFrame(nil))
}
