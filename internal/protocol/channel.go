package protocol

// Default queue depths for NewPair callers that have no configuration.
const (
	DefaultCommandQueue = 64
	DefaultEventQueue   = 64
)

// HostChannels is the host's half of a socket's channel pair. It must only
// be used from the host thread.
type HostChannels struct {
	commands chan<- Command
	events   <-chan Message
	hangup   chan struct{}
	closed   bool
}

// ReactorChannels is the task's half of a socket's channel pair. It must only
// be used from the task that owns the socket's transport.
type ReactorChannels struct {
	commands <-chan Command
	events   chan<- Message
	hangup   <-chan struct{}
}

// NewPair creates the two halves of a socket's channel pair. Non-positive
// sizes fall back to the defaults.
func NewPair(commandQueue, eventQueue int) (*HostChannels, *ReactorChannels) {
	if commandQueue <= 0 {
		commandQueue = DefaultCommandQueue
	}
	if eventQueue <= 0 {
		eventQueue = DefaultEventQueue
	}

	commands := make(chan Command, commandQueue)
	events := make(chan Message, eventQueue)
	hangup := make(chan struct{})

	host := &HostChannels{commands: commands, events: events, hangup: hangup}
	task := &ReactorChannels{commands: commands, events: events, hangup: hangup}
	return host, task
}

// TrySend queues cmd without blocking. It returns false when the command
// queue is full or the host half is already closed.
func (h *HostChannels) TrySend(cmd Command) bool {
	if h.closed {
		return false
	}
	select {
	case h.commands <- cmd:
		return true
	default:
		return false
	}
}

// TryRecv takes the next event if one is pending. open is false once the
// task has finished and every event has been drained.
func (h *HostChannels) TryRecv() (msg Message, received bool, open bool) {
	select {
	case msg, ok := <-h.events:
		if !ok {
			return Message{}, false, false
		}
		return msg, true, true
	default:
		return Message{}, false, true
	}
}

// Recv blocks until the next event arrives. ok is false when the task has
// finished and every event has been drained.
func (h *HostChannels) Recv() (Message, bool) {
	msg, ok := <-h.events
	return msg, ok
}

// Close drops the host half. The task observes the hangup on its next select
// and exits. Close is idempotent.
func (h *HostChannels) Close() {
	if h.closed {
		return
	}
	h.closed = true
	close(h.hangup)
}

// Discard closes h and hands its remaining events to a goroutine that drains
// them until the task finishes. Accepted clients still queued in NewClient
// messages are discarded the same way, so their tasks exit instead of
// holding a connection nobody will poll. h must not be used afterwards.
func (h *HostChannels) Discard() {
	h.Close()
	go func(events <-chan Message) {
		for msg := range events {
			if msg.Kind == KindNewClient && msg.Client != nil {
				msg.Client.Discard()
			}
		}
	}(h.events)
}

// Closed reports whether Close has been called.
func (h *HostChannels) Closed() bool {
	return h.closed
}

// Commands returns the channel of host commands.
func (r *ReactorChannels) Commands() <-chan Command {
	return r.commands
}

// Hangup returns a channel that is closed when the host drops its half.
func (r *ReactorChannels) Hangup() <-chan struct{} {
	return r.hangup
}

// Emit delivers msg, waiting for queue space if necessary. It returns false
// if the host hung up first; msg is then discarded.
func (r *ReactorChannels) Emit(msg Message) bool {
	select {
	case <-r.hangup:
		return false
	default:
	}

	select {
	case r.events <- msg:
		return true
	case <-r.hangup:
		return false
	}
}

// Offer delivers msg only if the event queue has room; otherwise msg is
// dropped and dropped is true. alive is false once the host has hung up.
func (r *ReactorChannels) Offer(msg Message) (alive bool, dropped bool) {
	select {
	case <-r.hangup:
		return false, false
	default:
	}

	select {
	case r.events <- msg:
		return true, false
	default:
		return true, true
	}
}

// Close ends the event stream. The host sees the socket as closed once it has
// drained any pending events. It must be called exactly once, by the task.
func (r *ReactorChannels) Close() {
	close(r.events)
}
