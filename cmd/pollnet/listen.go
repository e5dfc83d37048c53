package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/whisper/pollnet/internal/pollnet"
)

func newListenCommand() *cobra.Command {
	var broadcast bool
	command := &cobra.Command{
		Use:   "listen ADDR",
		Short: "Accept WebSocket clients and echo every frame back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext()
			if err != nil {
				return err
			}
			return runEcho(ctx, args[0], broadcast)
		},
	}
	command.Flags().BoolVar(&broadcast, "broadcast", false, "relay each frame to every client instead of echoing")
	return command
}

// runEcho is the host side of an echo server. Frames are echoed as binary:
// the bridge's status model does not distinguish text from binary payloads.
func runEcho(ctx *pollnet.Context, addr string, broadcast bool) error {
	listener := ctx.ListenWS(addr)
	clients := make(map[pollnet.Handle]struct{})
	announced := false
	var failure error

	runLoop(ctx, func() bool {
		switch ctx.Update(listener) {
		case pollnet.StatusOpenNoData:
			if !announced {
				announced = true
				ready.Store(true)
				logger.Infof("listening on %s", ctx.Addr(listener))
			}
		case pollnet.StatusOpenNewClient:
			h := ctx.ConnectedClient(listener)
			clients[h] = struct{}{}
			logger.Infof("client %s connected from %s (total=%d)", h, ctx.Addr(h), len(clients))
		case pollnet.StatusError:
			ready.Store(false)
			failure = fmt.Errorf("listen %s: %s", addr, ctx.Data(listener))
			return false
		case pollnet.StatusClosed:
			ready.Store(false)
			return false
		}

		for h := range clients {
			switch ctx.Update(h) {
			case pollnet.StatusOpenHasData:
				data := ctx.Data(h)
				if !broadcast {
					ctx.SendBinary(h, data)
					continue
				}
				for other := range clients {
					ctx.SendBinary(other, data)
				}
			case pollnet.StatusError:
				logger.Infof("client %s failed: %s", h, ctx.Data(h))
				ctx.Close(h)
				delete(clients, h)
			case pollnet.StatusClosed:
				logger.Infof("client %s disconnected (total=%d)", h, len(clients)-1)
				ctx.Close(h)
				delete(clients, h)
			}
		}
		return true
	})
	return failure
}
