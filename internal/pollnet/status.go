package pollnet

// Status summarizes a socket's condition to the host. The numeric values are
// part of the C ABI and must not change.
type Status uint32

const (
	StatusInvalidHandle Status = iota
	StatusError
	StatusClosed
	StatusOpening
	StatusOpenNoData
	StatusOpenHasData
	StatusOpenNewClient
)

var statusNames = [...]string{
	StatusInvalidHandle: "invalid_handle",
	StatusError:         "error",
	StatusClosed:        "closed",
	StatusOpening:       "opening",
	StatusOpenNoData:    "open_no_data",
	StatusOpenHasData:   "open_has_data",
	StatusOpenNewClient: "open_new_client",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Open reports whether s is one of the connected states.
func (s Status) Open() bool {
	return s == StatusOpenNoData || s == StatusOpenHasData || s == StatusOpenNewClient
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusInvalidHandle || s == StatusError || s == StatusClosed
}
