package pollnet

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pollUntil updates h once per millisecond until it reports want. Reaching a
// different terminal status fails the test.
func pollUntil(t *testing.T, c *Context, h Handle, want Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st := c.Update(h)
		if st == want {
			return
		}
		if st.Terminal() {
			t.Fatalf("%s ended in %s (%s) while waiting for %s", h, st, c.Data(h), want)
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("%s never reached %s, last status %s", h, want, c.Status(h))
}

// listen opens a listener on a free loopback port and returns it with its
// ws:// URL.
func listen(t *testing.T, c *Context) (Handle, string) {
	t.Helper()
	l := c.ListenWS("127.0.0.1:0")
	assert.Equal(t, StatusOpening, c.Status(l))
	pollUntil(t, c, l, StatusOpenNoData)
	return l, "ws://" + c.Addr(l)
}

// accept waits for the listener to report a new client and returns it.
func accept(t *testing.T, c *Context, l Handle) Handle {
	t.Helper()
	pollUntil(t, c, l, StatusOpenNewClient)
	h := c.ConnectedClient(l)
	require.NotEqual(t, InvalidHandle, h)
	return h
}

// ---------------------------------------------------------------------------
// End-to-end round trip
// ---------------------------------------------------------------------------

func TestRoundTripBinary(t *testing.T) {
	c := newContext(t)
	l, url := listen(t, c)

	client := c.OpenWS(url)
	assert.Equal(t, StatusOpening, c.Status(client))
	pollUntil(t, c, client, StatusOpenNoData)

	server := accept(t, c, l)
	pollUntil(t, c, server, StatusOpenNoData)

	payload := []byte{0x00, 0x7f, 0x80, 0xfe, 0xff}
	require.True(t, c.SendBinary(client, payload))
	pollUntil(t, c, server, StatusOpenHasData)

	got := make([]byte, c.DataSize(server))
	require.Equal(t, len(payload), c.CopyData(server, got))
	assert.Equal(t, payload, got)
}

func TestRoundTripText(t *testing.T) {
	c := newContext(t)
	l, url := listen(t, c)

	client := c.OpenWS(url)
	pollUntil(t, c, client, StatusOpenNoData)
	server := accept(t, c, l)
	pollUntil(t, c, server, StatusOpenNoData)

	require.True(t, c.Send(server, "hello from the server"))
	pollUntil(t, c, client, StatusOpenHasData)
	assert.Equal(t, "hello from the server", string(c.Data(client)))
}

func TestPeerCloseReportsClosed(t *testing.T) {
	c := newContext(t)
	l, url := listen(t, c)

	client := c.OpenWS(url)
	pollUntil(t, c, client, StatusOpenNoData)
	server := accept(t, c, l)
	pollUntil(t, c, server, StatusOpenNoData)

	c.Close(client)
	assert.Equal(t, StatusInvalidHandle, c.Status(client))
	pollUntil(t, c, server, StatusClosed)
}

// ---------------------------------------------------------------------------
// Fan-out: one listener, two clients
// ---------------------------------------------------------------------------

func TestFanOut(t *testing.T) {
	c := newContext(t)
	l, url := listen(t, c)

	a := c.OpenWS(url)
	b := c.OpenWS(url)
	pollUntil(t, c, a, StatusOpenNoData)
	pollUntil(t, c, b, StatusOpenNoData)

	first := accept(t, c, l)
	second := accept(t, c, l)
	require.NotEqual(t, first, second)
	for _, h := range []Handle{l, a, b} {
		assert.NotEqual(t, h, first)
		assert.NotEqual(t, h, second)
	}

	pollUntil(t, c, first, StatusOpenNoData)
	pollUntil(t, c, second, StatusOpenNoData)

	c.Close(first)
	assert.Equal(t, StatusInvalidHandle, c.Status(first))
	assert.Equal(t, StatusOpenNoData, c.Update(second))

	// The survivor still carries traffic.
	require.True(t, c.Send(second, "still here"))
	deadline := time.Now().Add(5 * time.Second)
	var got [][]byte
	for time.Now().Before(deadline) && len(got) == 0 {
		for _, h := range []Handle{a, b} {
			if c.Update(h) == StatusOpenHasData {
				got = append(got, c.Data(h))
			}
		}
		time.Sleep(time.Millisecond)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "still here", string(got[0]))
}

// ---------------------------------------------------------------------------
// Lossy buffering under a slow poller
// ---------------------------------------------------------------------------

func TestSlowPollerSeesOrderedSubset(t *testing.T) {
	c := newContext(t, func(config *Config) {
		config.WS.EventQueue = 2
	})
	l, url := listen(t, c)

	client := c.OpenWS(url)
	pollUntil(t, c, client, StatusOpenNoData)
	server := accept(t, c, l)
	pollUntil(t, c, server, StatusOpenNoData)

	const n = 40
	var sent [][]byte
	for i := 0; i < n; i++ {
		payload := bytes.Repeat([]byte{byte(i)}, 16)
		if c.SendBinary(client, payload) {
			sent = append(sent, payload)
		}
	}
	require.NotEmpty(t, sent)

	var seen [][]byte
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if c.Update(server) == StatusOpenHasData {
			seen = append(seen, append([]byte(nil), c.Data(server)...))
		}
		time.Sleep(5 * time.Millisecond)
	}

	assert.LessOrEqual(t, len(seen), len(sent))
	// Every observed payload is byte-identical to a sent one and order is kept.
	next := 0
	for _, got := range seen {
		found := false
		for next < len(sent) {
			candidate := sent[next]
			next++
			if bytes.Equal(candidate, got) {
				found = true
				break
			}
		}
		require.True(t, found, "payload %v was not sent or arrived out of order", got)
	}
	assert.NotEqual(t, StatusError, c.Status(server))
}

// ---------------------------------------------------------------------------
// Setup failures surface as Error, never as a failed call
// ---------------------------------------------------------------------------

func TestOpenBadURL(t *testing.T) {
	c := newContext(t)

	h := c.OpenWS("definitely not a url")
	require.NotEqual(t, InvalidHandle, h)
	assert.Equal(t, StatusOpening, c.Status(h))

	pollUntil(t, c, h, StatusError)
	assert.Contains(t, string(c.Data(h)), "dial")
}

func TestOpenRefused(t *testing.T) {
	c := newContext(t)
	l, url := listen(t, c)
	c.Close(l)
	time.Sleep(100 * time.Millisecond)

	h := c.OpenWS(url)
	pollUntil(t, c, h, StatusError)
}

func TestListenBindFailure(t *testing.T) {
	c := newContext(t)
	l, _ := listen(t, c)

	dup := c.ListenWS(c.Addr(l))
	pollUntil(t, c, dup, StatusError)
	assert.Contains(t, string(c.Data(dup)), "listen")

	assert.Equal(t, StatusOpenNoData, c.Update(l))
}

// ---------------------------------------------------------------------------
// Shutdown
// ---------------------------------------------------------------------------

func TestShutdownLiveness(t *testing.T) {
	grace := 200 * time.Millisecond
	config := DefaultConfig()
	config.LogLevel = "warn"
	config.Reactor.ShutdownGrace = grace
	c, err := New(config)
	require.NoError(t, err)

	l, url := listen(t, c)
	client := c.OpenWS(url)
	pollUntil(t, c, client, StatusOpenNoData)
	server := accept(t, c, l)
	pollUntil(t, c, server, StatusOpenNoData)
	pending := c.OpenWS("ws://10.255.255.1:9/")

	start := time.Now()
	c.Shutdown()
	assert.Less(t, time.Since(start), grace+time.Second)

	for _, h := range []Handle{l, client, server, pending} {
		assert.Equal(t, StatusInvalidHandle, c.Status(h))
		assert.Equal(t, StatusInvalidHandle, c.Update(h))
	}
	assert.Equal(t, 0, c.Len())

	late := c.OpenWS(url)
	assert.Equal(t, StatusError, c.Status(late))
	assert.Contains(t, string(c.Data(late)), "stopped")

	c.Shutdown()
}

func TestCloseListenerReleasesUnpolledClient(t *testing.T) {
	c := newContext(t)
	l, url := listen(t, c)

	client := c.OpenWS(url)
	pollUntil(t, c, client, StatusOpenNoData)

	// The listener is never polled again, so its NewClient stays queued.
	c.Close(l)

	pollUntil(t, c, client, StatusClosed)
}
