// Package pollnet is a polling bridge between a synchronous, frame-stepped
// host and WebSocket connections driven by a background reactor. Every call
// returns immediately (UpdateBlocking is the one opt-in exception); network
// activity is observed by calling Update once per tick per socket.
//
// A Context and every handle it issues belong to the host thread. Only the
// per-socket channel halves cross into the reactor.
package pollnet

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/whisper/pollnet/internal/arena"
	"github.com/whisper/pollnet/internal/log"
	"github.com/whisper/pollnet/internal/metrics"
	"github.com/whisper/pollnet/internal/protocol"
	"github.com/whisper/pollnet/internal/reactor"
	"github.com/whisper/pollnet/internal/ws"
)

// Handle identifies one socket. The zero value is never valid.
type Handle = arena.Handle

// InvalidHandle is the reserved handle that never refers to a socket.
const InvalidHandle = arena.Null

// Context owns the socket arena and the reactor that runs every connection.
type Context struct {
	config  Config
	sockets *arena.Arena[*Socket]
	reactor *reactor.Reactor
	logger  *logrus.Entry
}

// New starts a reactor and returns an empty Context.
func New(config Config) (*Context, error) {
	if err := log.SetLevel(config.LogLevel); err != nil {
		return nil, err
	}
	r, err := reactor.New(config.Reactor)
	if err != nil {
		return nil, err
	}
	return &Context{
		config:  config,
		sockets: arena.New[*Socket](),
		reactor: r,
		logger:  log.NewLogger("pollnet"),
	}, nil
}

// OpenWS starts connecting to a ws:// or wss:// URL. It always returns a
// fresh handle in the Opening state; a bad URL or refused connection shows
// up later as StatusError.
func (c *Context) OpenWS(url string) Handle {
	return c.start("ws-client", url, func(ctx context.Context, ch *protocol.ReactorChannels) {
		ws.RunClient(ctx, url, ch, c.config.WS)
	})
}

// ListenWS starts a WebSocket listener on addr ("host:port"; port 0 picks a
// free port, readable through Addr once open). Each accepted connection is
// announced by StatusOpenNewClient and gets its own handle.
func (c *Context) ListenWS(addr string) Handle {
	return c.start("ws-listener", addr, func(ctx context.Context, ch *protocol.ReactorChannels) {
		ws.RunServer(ctx, addr, ch, c.reactor, c.config.WS)
	})
}

func (c *Context) start(kind, addr string, run func(context.Context, *protocol.ReactorChannels)) Handle {
	host, task := protocol.NewPair(c.config.WS.CommandQueue, c.config.WS.EventQueue)
	s := newSocket(host, addr)
	h := c.insert(s)

	err := c.reactor.Go(kind+"-"+s.ID, func(ctx context.Context) {
		run(ctx, task)
	})
	if err != nil {
		if errors.Is(err, reactor.ErrStopped) {
			c.logger.Debugf("pollnet: %s %s refused, reactor stopped", kind, addr)
		} else {
			c.logger.Warnf("pollnet: cannot start %s %s: %v", kind, addr, err)
		}
		s.finish(StatusError, []byte(err.Error()))
		return h
	}

	c.logger.WithFields(logrus.Fields{"socket": s.ID, "addr": addr}).Debugf("pollnet: %s %s", kind, h)
	return h
}

// Update takes at most one pending message for h without blocking and
// returns the resulting status.
func (c *Context) Update(h Handle) Status {
	return c.update(h, false)
}

// UpdateBlocking waits for the next message for h. It returns immediately
// for invalid handles and terminal sockets.
func (c *Context) UpdateBlocking(h Handle) Status {
	return c.update(h, true)
}

func (c *Context) update(h Handle, blocking bool) Status {
	s, ok := c.sockets.Get(h)
	if !ok {
		return StatusInvalidHandle
	}
	if s.io == nil {
		return s.status
	}

	var (
		msg      protocol.Message
		received bool
		open     bool
	)
	if blocking {
		msg, open = s.io.Recv()
		received = open
	} else {
		msg, received, open = s.io.TryRecv()
	}

	switch {
	case !open:
		// The task ended without a terminal message (shutdown or a panic).
		s.finish(StatusClosed, nil)
	case !received:
		if s.status.Open() {
			s.status = StatusOpenNoData
			s.data = nil
		}
	default:
		s.apply(msg, c.insert)
	}
	return s.status
}

// Status returns h's current status without polling.
func (c *Context) Status(h Handle) Status {
	s, ok := c.sockets.Get(h)
	if !ok {
		return StatusInvalidHandle
	}
	return s.status
}

// Send queues a text frame. It never blocks and reports whether the frame
// was queued; false means the socket is terminal, unknown, or its command
// queue is full.
func (c *Context) Send(h Handle, text string) bool {
	return c.send(h, protocol.SendText(text))
}

// SendBinary queues a binary frame. data is copied. See Send.
func (c *Context) SendBinary(h Handle, data []byte) bool {
	return c.send(h, protocol.SendBinary(data))
}

func (c *Context) send(h Handle, cmd protocol.Command) bool {
	s, ok := c.sockets.Get(h)
	if !ok || s.io == nil {
		return false
	}
	if !s.io.TrySend(cmd) {
		metrics.DroppedTotal.WithLabelValues("out").Inc()
		c.logger.WithField("socket", s.ID).Debug("pollnet: command queue full, frame dropped")
		return false
	}
	return true
}

// Close asks the socket's task to disconnect and forgets h immediately. It
// does not wait for the task. Closing an unknown handle is a no-op.
func (c *Context) Close(h Handle) {
	s, ok := c.sockets.Remove(h)
	if !ok {
		return
	}
	metrics.SocketsOpen.Dec()
	if s.io != nil {
		s.io.TrySend(protocol.Hangup())
	}
	s.finish(StatusClosed, nil)
}

// CloseAll closes every socket.
func (c *Context) CloseAll() {
	for _, h := range c.sockets.Handles() {
		c.Close(h)
	}
}

// Shutdown closes every socket and stops the reactor, waiting at most the
// configured grace period. Every handle is invalid afterwards, and later
// opens return handles that are already in StatusError.
func (c *Context) Shutdown() {
	c.CloseAll()
	if err := c.reactor.Shutdown(); err != nil {
		c.logger.Warnf("pollnet: %v", err)
	}
}

// Data returns the payload held by h: the last frame while OpenHasData, or
// the error text while Error. The slice must not be modified.
func (c *Context) Data(h Handle) []byte {
	s, ok := c.sockets.Get(h)
	if !ok {
		return nil
	}
	return s.data
}

// DataSize returns len(Data(h)).
func (c *Context) DataSize(h Handle) int {
	return len(c.Data(h))
}

// CopyData copies h's payload into dst and returns the payload size. When dst
// is too small nothing is written; the return value is the size needed.
func (c *Context) CopyData(h Handle, dst []byte) int {
	data := c.Data(h)
	if len(dst) < len(data) {
		return len(data)
	}
	return copy(dst, data)
}

// ClearData discards h's payload.
func (c *Context) ClearData(h Handle) {
	if s, ok := c.sockets.Get(h); ok {
		s.data = nil
	}
}

// ConnectedClient returns the handle of the client accepted by the last
// Update of listener h. It is InvalidHandle unless h's status is
// OpenNewClient.
func (c *Context) ConnectedClient(h Handle) Handle {
	s, ok := c.sockets.Get(h)
	if !ok || s.status != StatusOpenNewClient {
		return InvalidHandle
	}
	return s.lastClient
}

// Addr returns the socket's address: the bound address of an open listener,
// the peer address of a connected socket, or the URL or address the socket
// was opened with until it connects.
func (c *Context) Addr(h Handle) string {
	s, ok := c.sockets.Get(h)
	if !ok {
		return ""
	}
	return s.addr
}

// Valid reports whether h refers to a tracked socket.
func (c *Context) Valid(h Handle) bool {
	return c.sockets.Contains(h)
}

// Len returns the number of tracked sockets.
func (c *Context) Len() int {
	return c.sockets.Len()
}

func (c *Context) insert(s *Socket) Handle {
	metrics.SocketsOpen.Inc()
	return c.sockets.Insert(s)
}
