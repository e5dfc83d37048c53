package ws

import (
	"context"
	"fmt"

	"github.com/gobwas/ws"
	"github.com/sirupsen/logrus"

	"github.com/whisper/pollnet/internal/metrics"
	"github.com/whisper/pollnet/internal/protocol"
)

// serve runs the steady-state loop of a connected socket: a select over host
// commands, host hangup, inbound frames, keepalive ticks and reactor
// shutdown. Go's select picks uniformly among ready cases, so neither the
// host nor the network can starve the other. It emits at most one terminal
// message and returns; the caller closes the transport.
func serve(ctx context.Context, c *Connection, ch *protocol.ReactorChannels, config Config, logger *logrus.Entry) {
	frames := make(chan inbound, 1)
	stop := make(chan struct{})
	defer close(stop)
	go c.readLoop(frames, stop)

	ka := newKeepalive(config)
	defer ka.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.WriteClose(ws.StatusGoingAway, "")
			return

		case <-ch.Hangup():
			logger.Debug("ws: host closed socket")
			_ = c.WriteClose(ws.StatusNormalClosure, "")
			return

		case cmd := <-ch.Commands():
			if cmd.Kind == protocol.CommandDisconnect {
				_ = c.WriteClose(ws.StatusNormalClosure, "")
				ch.Emit(protocol.Disconnect())
				return
			}
			if err := writeCommand(c, cmd); err != nil {
				logger.Debugf("ws: write failed: %v", err)
				ch.Emit(protocol.Error(fmt.Errorf("ws: write: %w", err)))
				return
			}
			metrics.MessagesTotal.WithLabelValues("out", cmd.Kind.String()).Inc()

		case in := <-frames:
			ka.Touch()
			if len(in.reply) > 0 {
				if err := c.WriteRaw(in.reply); err != nil && in.err == nil {
					ch.Emit(protocol.Error(fmt.Errorf("ws: write control reply: %w", err)))
					return
				}
			}
			if in.err != nil {
				if isOrderlyClose(in.err) {
					logger.Debugf("ws: peer closed: %v", in.err)
					ch.Emit(protocol.Disconnect())
				} else {
					logger.Debugf("ws: read failed: %v", in.err)
					ch.Emit(protocol.Error(fmt.Errorf("ws: read: %w", in.err)))
				}
				return
			}
			if !in.isMsg {
				continue
			}
			if !forward(ch, in) {
				return
			}

		case now := <-ka.C():
			if err := ka.Check(c, now); err != nil {
				logger.Debugf("%v", err)
				ch.Emit(protocol.Error(err))
				return
			}
		}
	}
}

// forward offers a data frame to the host. A full event queue drops the
// frame: a host that polls slower than the peer sends only sees a subset.
func forward(ch *protocol.ReactorChannels, in inbound) bool {
	msg := protocol.Binary(in.data)
	if in.op == ws.OpText {
		msg = protocol.Text(in.data)
	}

	alive, dropped := ch.Offer(msg)
	if dropped {
		metrics.DroppedTotal.WithLabelValues("in").Inc()
	} else if alive {
		metrics.MessagesTotal.WithLabelValues("in", msg.Kind.String()).Inc()
	}
	return alive
}

func writeCommand(c *Connection, cmd protocol.Command) error {
	switch cmd.Kind {
	case protocol.CommandText:
		return c.WriteMessage(ws.OpText, cmd.Data)
	case protocol.CommandBinary:
		return c.WriteMessage(ws.OpBinary, cmd.Data)
	}
	return fmt.Errorf("ws: unknown command %d", cmd.Kind)
}
