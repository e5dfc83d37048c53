package pollnet

import (
	"github.com/google/uuid"

	"github.com/whisper/pollnet/internal/arena"
	"github.com/whisper/pollnet/internal/protocol"
)

// Socket is the host-side record of one endpoint. io is non-nil exactly
// while the status is Opening or one of the Open states.
type Socket struct {
	ID         string // for logs only
	status     Status
	io         *protocol.HostChannels
	data       []byte
	lastClient arena.Handle
	addr       string
}

func newSocket(io *protocol.HostChannels, addr string) *Socket {
	return &Socket{
		ID:     uuid.New().String(),
		status: StatusOpening,
		io:     io,
		addr:   addr,
	}
}

// finish moves the socket to a terminal status and drops its channel half,
// which tells the task (if still running) to exit. Events still queued are
// discarded, including accepted clients the host never saw.
func (s *Socket) finish(status Status, data []byte) {
	if s.io != nil {
		s.io.Discard()
		s.io = nil
	}
	s.status = status
	s.data = data
}

// apply folds one message into the record. It returns the handle of a newly
// accepted client's record when msg is NewClient; insert creates that record.
func (s *Socket) apply(msg protocol.Message, insert func(*Socket) arena.Handle) {
	switch msg.Kind {
	case protocol.KindConnect:
		if s.status == StatusOpening {
			s.status = StatusOpenNoData
		}
		if msg.Addr != "" {
			s.addr = msg.Addr
		}

	case protocol.KindText, protocol.KindBinary:
		s.status = StatusOpenHasData
		s.data = msg.Data

	case protocol.KindNewClient:
		child := newSocket(msg.Client, msg.Addr)
		s.lastClient = insert(child)
		s.status = StatusOpenNewClient
		s.data = nil

	case protocol.KindDisconnect:
		s.finish(StatusClosed, nil)

	case protocol.KindError:
		s.finish(StatusError, msg.Data)
	}
}
