// Package protocol defines the events and commands exchanged between a
// socket's host-side record and the reactor task that drives its transport,
// and the channel pair that carries them. Events flow task -> host, commands
// flow host -> task; each direction has exactly one producer and one
// consumer.
package protocol

// ---------------------------------------------------------------------------
// Events (task -> host)
// ---------------------------------------------------------------------------

// Kind discriminates the Message union.
type Kind uint8

const (
	KindConnect Kind = iota
	KindDisconnect
	KindText
	KindBinary
	KindError
	KindNewClient
)

var kindNames = [...]string{
	KindConnect:    "connect",
	KindDisconnect: "disconnect",
	KindText:       "text",
	KindBinary:     "binary",
	KindError:      "error",
	KindNewClient:  "new_client",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Terminal reports whether a message of this kind ends the socket.
func (k Kind) Terminal() bool {
	return k == KindDisconnect || k == KindError
}

// Message is one event emitted by a reactor task. Which fields are set
// depends on Kind:
//
//	Connect     Addr (endpoint address, may be empty)
//	Disconnect  nothing
//	Text        Data (UTF-8 payload)
//	Binary      Data
//	Error       Data (error text)
//	NewClient   Client, Addr (peer address)
type Message struct {
	Kind   Kind
	Data   []byte
	Addr   string
	Client *HostChannels
}

// Connect reports that the transport is established. For a listener addr is
// the bound local address; for connections it is the peer address.
func Connect(addr string) Message {
	return Message{Kind: KindConnect, Addr: addr}
}

// Disconnect reports an orderly close by either side.
func Disconnect() Message {
	return Message{Kind: KindDisconnect}
}

// Text carries one text frame.
func Text(data []byte) Message {
	return Message{Kind: KindText, Data: data}
}

// Binary carries one binary frame.
func Binary(data []byte) Message {
	return Message{Kind: KindBinary, Data: data}
}

// Error reports a setup or transport failure. The socket is finished.
func Error(err error) Message {
	return Message{Kind: KindError, Data: []byte(err.Error())}
}

// NewClient hands the host side of an accepted connection to the listener's
// record.
func NewClient(client *HostChannels, peer string) Message {
	return Message{Kind: KindNewClient, Client: client, Addr: peer}
}

// ---------------------------------------------------------------------------
// Commands (host -> task)
// ---------------------------------------------------------------------------

// CommandKind discriminates Command.
type CommandKind uint8

const (
	CommandText CommandKind = iota
	CommandBinary
	CommandDisconnect
)

func (k CommandKind) String() string {
	switch k {
	case CommandText:
		return "text"
	case CommandBinary:
		return "binary"
	case CommandDisconnect:
		return "disconnect"
	}
	return "unknown"
}

// Command is a request from the host to a task.
type Command struct {
	Kind CommandKind
	Data []byte
}

// SendText builds a text frame command.
func SendText(s string) Command {
	return Command{Kind: CommandText, Data: []byte(s)}
}

// SendBinary builds a binary frame command. The payload is copied so the
// caller may reuse its buffer.
func SendBinary(b []byte) Command {
	data := make([]byte, len(b))
	copy(data, b)
	return Command{Kind: CommandBinary, Data: data}
}

// Hangup asks the task to close its transport gracefully.
func Hangup() Command {
	return Command{Kind: CommandDisconnect}
}
