package ws

import (
	"bytes"
	"errors"
	"io"
	"net"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/valyala/bytebufferpool"
)

// Connection is one WebSocket transport owned by exactly one task. Only the
// owning task writes to it; the reader goroutine hands control frame replies
// back to the task instead of writing them itself.
type Connection struct {
	ID        string    // connection ID (UUID), used in logs
	Conn      net.Conn  // underlying TCP connection
	State     ws.State  // client or server side; decides masking
	CreatedAt time.Time // when the handshake completed

	src          io.Reader // Conn, preceded by any bytes read during the handshake
	writeTimeout time.Duration
}

// inbound is the result of one read: a data message, a control frame reply
// that must be written, a terminal error, or a combination.
type inbound struct {
	op    ws.OpCode
	data  []byte
	isMsg bool
	reply []byte
	err   error
}

func newConnection(conn net.Conn, prefix []byte, state ws.State, config Config) *Connection {
	var src io.Reader = conn
	if len(prefix) > 0 {
		src = io.MultiReader(bytes.NewReader(prefix), conn)
	}
	return &Connection{
		ID:           uuid.New().String(),
		Conn:         conn,
		State:        state,
		CreatedAt:    time.Now(),
		src:          src,
		writeTimeout: config.WriteTimeout,
	}
}

// WriteMessage sends one data frame with the given opcode.
func (c *Connection) WriteMessage(op ws.OpCode, data []byte) error {
	c.setWriteDeadline()
	defer c.clearWriteDeadline()
	return wsutil.WriteMessage(c.Conn, c.State, op, data)
}

// WriteRaw writes an already encoded frame, such as a reply produced by the
// control frame handler.
func (c *Connection) WriteRaw(frame []byte) error {
	c.setWriteDeadline()
	defer c.clearWriteDeadline()
	_, err := c.Conn.Write(frame)
	return err
}

// WriteClose sends a close frame. Errors are returned but the caller is
// expected to drop the connection either way.
func (c *Connection) WriteClose(code ws.StatusCode, reason string) error {
	return c.writeControl(ws.NewCloseFrame(ws.NewCloseFrameBody(code, reason)))
}

func (c *Connection) writeControl(frame ws.Frame) error {
	if c.State.ClientSide() {
		frame = ws.MaskFrameInPlace(frame)
	}
	c.setWriteDeadline()
	defer c.clearWriteDeadline()
	return ws.WriteFrame(c.Conn, frame)
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

func (c *Connection) setWriteDeadline() {
	if c.writeTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
}

func (c *Connection) clearWriteDeadline() {
	if c.writeTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Time{})
	}
}

// ReadMessage reads until it has a complete data message, a control frame
// that needs a reply, or an error. Ping, pong and close frames are handled
// by wsutil's control handler; whatever it would have written is returned
// in reply for the owning task to send.
func (c *Connection) ReadMessage() inbound {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	control := wsutil.ControlFrameHandler(buf, c.State)
	rd := wsutil.Reader{
		Source:          c.src,
		State:           c.State,
		CheckUTF8:       true,
		SkipHeaderCheck: false,
		OnIntermediate:  control,
	}

	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return inbound{reply: takeBytes(buf), err: err}
		}

		if hdr.OpCode.IsControl() {
			if err := control(hdr, &rd); err != nil {
				return inbound{reply: takeBytes(buf), err: err}
			}
			if buf.Len() > 0 {
				return inbound{reply: takeBytes(buf)}
			}
			continue
		}

		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := rd.Discard(); err != nil {
				return inbound{reply: takeBytes(buf), err: err}
			}
			continue
		}

		data, err := io.ReadAll(&rd)
		return inbound{op: hdr.OpCode, data: data, isMsg: err == nil, reply: takeBytes(buf), err: err}
	}
}

// readLoop feeds inbound results to the owning task until a read fails or
// the task stops listening.
func (c *Connection) readLoop(out chan<- inbound, stop <-chan struct{}) {
	for {
		in := c.ReadMessage()
		select {
		case out <- in:
		case <-stop:
			return
		}
		if in.err != nil {
			return
		}
	}
}

func takeBytes(buf *bytebufferpool.ByteBuffer) []byte {
	if buf.Len() == 0 {
		return nil
	}
	out := make([]byte, buf.Len())
	copy(out, buf.B)
	buf.Reset()
	return out
}

// isOrderlyClose reports whether err ends the connection without a fault:
// a close frame from the peer, EOF, or a connection we closed ourselves.
func isOrderlyClose(err error) bool {
	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
