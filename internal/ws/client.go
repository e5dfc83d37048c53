package ws

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/gobwas/ws"

	"github.com/whisper/pollnet/internal/log"
	"github.com/whisper/pollnet/internal/metrics"
	"github.com/whisper/pollnet/internal/protocol"
)

// RunClient dials url and drives the connection until it ends. A dial
// failure is reported as a single Error message. The event channel is
// closed when RunClient returns.
func RunClient(ctx context.Context, url string, ch *protocol.ReactorChannels, config Config) {
	defer ch.Close()
	logger := log.NewLogger("ws").WithField("url", url)

	dialer := ws.Dialer{Timeout: config.DialTimeout}
	start := time.Now()
	conn, br, _, err := dialer.Dial(ctx, url)
	if err != nil {
		logger.Debugf("ws: dial failed: %v", err)
		ch.Emit(protocol.Error(fmt.Errorf("ws: dial %s: %w", url, err)))
		return
	}
	metrics.DialLatency.Observe(time.Since(start).Seconds())

	c := newConnection(conn, drainReader(br), ws.StateClientSide, config)
	defer c.Close()
	logger = logger.WithField("conn", c.ID)
	logger.Debugf("ws: connected to %s", conn.RemoteAddr())

	if !ch.Emit(protocol.Connect(conn.RemoteAddr().String())) {
		return
	}
	serve(ctx, c, ch, config, logger)
}

// drainReader returns the bytes the dialer buffered past the handshake
// response and recycles the reader.
func drainReader(br *bufio.Reader) []byte {
	if br == nil {
		return nil
	}
	defer ws.PutReader(br)
	n := br.Buffered()
	if n == 0 {
		return nil
	}
	prefix := make([]byte, n)
	_, _ = br.Read(prefix)
	return prefix
}
