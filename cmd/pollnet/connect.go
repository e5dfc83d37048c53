package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/eapache/queue"
	"github.com/spf13/cobra"

	"github.com/whisper/pollnet/internal/pollnet"
)

func newConnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "connect URL",
		Short: "Connect to a WebSocket server, send stdin lines and print replies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext()
			if err != nil {
				return err
			}
			return runClient(ctx, args[0], os.Stdin, cmd.OutOrStdout())
		},
	}
}

// runClient sends each input line as a text frame and prints every payload
// received. Input is read on its own goroutine; the host loop only drains
// the line channel without blocking. Lines the bridge refuses (full command
// queue) wait in a backlog and are retried on the next tick, in order.
func runClient(ctx *pollnet.Context, url string, in io.Reader, out io.Writer) error {
	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	h := ctx.OpenWS(url)
	backlog := queue.New()
	inputDone := false
	var failure error

	runLoop(ctx, func() bool {
		switch ctx.Update(h) {
		case pollnet.StatusOpening:
			return true
		case pollnet.StatusOpenNoData:
			ready.Store(true)
		case pollnet.StatusOpenHasData:
			ready.Store(true)
			fmt.Fprintf(out, "%s\n", ctx.Data(h))
		case pollnet.StatusError:
			ready.Store(false)
			failure = fmt.Errorf("connect %s: %s", url, ctx.Data(h))
			return false
		case pollnet.StatusClosed:
			ready.Store(false)
			logger.Infof("server closed the connection")
			return false
		}

	drain:
		for !inputDone {
			select {
			case line, ok := <-lines:
				if !ok {
					inputDone = true
					break drain
				}
				backlog.Add(line)
			default:
				break drain
			}
		}

		for backlog.Length() > 0 {
			if !ctx.Send(h, backlog.Peek().(string)) {
				logger.Debugf("send queue full, %d line(s) waiting", backlog.Length())
				break
			}
			backlog.Remove()
		}

		// Keep reading replies after stdin ends; a signal or the peer ends the loop.
		return true
	})
	return failure
}
