// Package ws runs the reactor tasks that own WebSocket transports: outbound
// clients, listeners, and the connections a listener accepts. Each task
// reports to its host record through a protocol channel pair and never
// touches host state directly.
package ws

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/sirupsen/logrus"

	"github.com/whisper/pollnet/internal/log"
	"github.com/whisper/pollnet/internal/protocol"
	"github.com/whisper/pollnet/internal/reactor"
)

// Spawner schedules tasks on the reactor. *reactor.Reactor implements it.
type Spawner interface {
	Go(name string, task reactor.Task) error
}

// Server is a listening socket. It accepts HTTP upgrade requests on any path
// and hands each upgraded connection to its own task.
type Server struct {
	config     Config
	addr       string
	ch         *protocol.ReactorChannels
	spawner    Spawner
	httpServer *http.Server
	upgraded   chan *Connection // upgraded connections waiting for the task loop
	serveErr   chan error
	done       chan struct{}
	logger     *logrus.Entry
}

// RunServer binds addr and runs the accept loop until the host closes the
// socket, the reactor shuts down, or serving fails. A bind failure is
// reported as a single Error message. The event channel is closed when
// RunServer returns; accepted connections keep running on their own.
func RunServer(ctx context.Context, addr string, ch *protocol.ReactorChannels, spawner Spawner, config Config) {
	defer ch.Close()

	s := &Server{
		config:   config,
		addr:     addr,
		ch:       ch,
		spawner:  spawner,
		upgraded: make(chan *Connection),
		serveErr: make(chan error, 1),
		done:     make(chan struct{}),
		logger:   log.NewLogger("ws").WithField("listen", addr),
	}

	ln, err := listen(ctx, addr, config)
	if err != nil {
		s.logger.Debugf("ws: listen failed: %v", err)
		ch.Emit(protocol.Error(fmt.Errorf("ws: listen %s: %w", addr, err)))
		return
	}

	s.httpServer = &http.Server{
		Handler:           http.HandlerFunc(s.handleUpgrade),
		ReadHeaderTimeout: config.HandshakeTimeout,
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.serveErr <- err
		}
	}()
	defer s.stop()

	s.logger.Debugf("ws: listening on %s", ln.Addr())
	if !ch.Emit(protocol.Connect(ln.Addr().String())) {
		return
	}
	s.loop(ctx)
}

func (s *Server) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case <-s.ch.Hangup():
			s.logger.Debug("ws: host closed listener")
			return

		case cmd := <-s.ch.Commands():
			if cmd.Kind == protocol.CommandDisconnect {
				s.ch.Emit(protocol.Disconnect())
				return
			}
			// Listeners carry no frames of their own.
			s.logger.Debugf("ws: listener ignores %s command", cmd.Kind)

		case c := <-s.upgraded:
			if !s.accept(c) {
				return
			}

		case err := <-s.serveErr:
			s.ch.Emit(protocol.Error(fmt.Errorf("ws: serve %s: %w", s.addr, err)))
			return
		}
	}
}

// accept gives c its own channel pair and task and reports it to the host.
// It returns false once the host has hung up on the listener.
func (s *Server) accept(c *Connection) bool {
	peer := c.Conn.RemoteAddr().String()
	host, task := protocol.NewPair(s.config.CommandQueue, s.config.EventQueue)

	err := s.spawner.Go("ws-accepted-"+c.ID, func(ctx context.Context) {
		runAccepted(ctx, c, task, s.config, s.logger.WithField("conn", c.ID))
	})
	if err != nil {
		s.logger.Warnf("ws: cannot schedule connection from %s: %v", peer, err)
		c.Close()
		return true
	}

	if !s.ch.Emit(protocol.NewClient(host, peer)) {
		host.Close()
		return false
	}
	s.logger.Debugf("ws: accepted %s conn=%s", peer, c.ID)
	return true
}

// handleUpgrade upgrades an HTTP request to a WebSocket connection using the
// gobwas/ws zero-copy upgrader and passes it to the listener task.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, rw, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Debugf("ws: upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}

	c := newConnection(conn, bufferedBytes(rw), ws.StateServerSide, s.config)
	select {
	case s.upgraded <- c:
	case <-s.done:
		c.Close()
	}
}

// stop closes the listener. Hijacked connections are not tracked by the HTTP
// server and stay open.
func (s *Server) stop() {
	close(s.done)
	if err := s.httpServer.Close(); err != nil {
		s.logger.Debugf("ws: http close: %v", err)
	}
}

func runAccepted(ctx context.Context, c *Connection, ch *protocol.ReactorChannels, config Config, logger *logrus.Entry) {
	defer ch.Close()
	defer c.Close()

	if !ch.Emit(protocol.Connect(c.Conn.RemoteAddr().String())) {
		return
	}
	serve(ctx, c, ch, config, logger)
}

func bufferedBytes(rw *bufio.ReadWriter) []byte {
	if rw == nil || rw.Reader == nil {
		return nil
	}
	n := rw.Reader.Buffered()
	if n == 0 {
		return nil
	}
	prefix := make([]byte, n)
	_, _ = rw.Reader.Read(prefix)
	return prefix
}

func listen(ctx context.Context, addr string, config Config) (net.Listener, error) {
	lc := net.ListenConfig{Control: listenControl(config)}
	return lc.Listen(ctx, "tcp", addr)
}
