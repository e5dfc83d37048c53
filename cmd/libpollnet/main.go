// Command libpollnet builds the pollnet C ABI as a shared library:
//
//	go build -buildmode=c-shared -o libpollnet.so ./cmd/libpollnet
//
// The context returned by pollnet_init is an opaque cgo handle, not a
// pointer into Go memory. Socket handles are the u64 encoding of
// pollnet.Handle and statuses the integer values of pollnet.Status. Every
// function except pollnet_init and pollnet_shutdown is cheap enough to call
// on every host tick, and none of them blocks except
// pollnet_update_blocking.
package main

/*
#include <stdbool.h>
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"github.com/whisper/pollnet/internal/log"
	"github.com/whisper/pollnet/internal/pollnet"
)

var (
	logger    = log.NewLogger("libpollnet")
	libraries = newRegistry()
)

// library wraps a Context with the C-owned scratch buffer handed out by
// pollnet_unsafe_get_data_ptr.
type library struct {
	ctx     *pollnet.Context
	scratch unsafe.Pointer
}

func (l *library) freeScratch() {
	if l.scratch != nil {
		C.free(l.scratch)
		l.scratch = nil
	}
}

func lookup(ctx C.uintptr_t) *library {
	if ctx == 0 {
		return nil
	}
	return libraries.get(uintptr(ctx))
}

//export pollnet_init
func pollnet_init() C.uintptr_t {
	ctx, err := pollnet.New(pollnet.ConfigFromEnv(pollnet.DefaultConfig()))
	if err != nil {
		logger.Errorf("pollnet: init failed: %v", err)
		return 0
	}
	return C.uintptr_t(libraries.add(&library{ctx: ctx}))
}

//export pollnet_shutdown
func pollnet_shutdown(ctx C.uintptr_t) {
	lib := libraries.remove(uintptr(ctx))
	if lib == nil {
		return
	}
	lib.ctx.Shutdown()
	lib.freeScratch()
}

//export pollnet_open_ws
func pollnet_open_ws(ctx C.uintptr_t, url *C.char) C.uint64_t {
	lib := lookup(ctx)
	if lib == nil || url == nil {
		return C.uint64_t(pollnet.InvalidHandle)
	}
	return C.uint64_t(lib.ctx.OpenWS(C.GoString(url)))
}

//export pollnet_listen_ws
func pollnet_listen_ws(ctx C.uintptr_t, addr *C.char) C.uint64_t {
	lib := lookup(ctx)
	if lib == nil || addr == nil {
		return C.uint64_t(pollnet.InvalidHandle)
	}
	return C.uint64_t(lib.ctx.ListenWS(C.GoString(addr)))
}

//export pollnet_close
func pollnet_close(ctx C.uintptr_t, handle C.uint64_t) {
	if lib := lookup(ctx); lib != nil {
		lib.ctx.Close(pollnet.Handle(handle))
	}
}

//export pollnet_close_all
func pollnet_close_all(ctx C.uintptr_t) {
	if lib := lookup(ctx); lib != nil {
		lib.ctx.CloseAll()
	}
}

//export pollnet_status
func pollnet_status(ctx C.uintptr_t, handle C.uint64_t) C.uint32_t {
	lib := lookup(ctx)
	if lib == nil {
		return C.uint32_t(pollnet.StatusInvalidHandle)
	}
	return C.uint32_t(lib.ctx.Status(pollnet.Handle(handle)))
}

//export pollnet_send
func pollnet_send(ctx C.uintptr_t, handle C.uint64_t, msg *C.char) {
	lib := lookup(ctx)
	if lib == nil || msg == nil {
		return
	}
	lib.ctx.Send(pollnet.Handle(handle), C.GoString(msg))
}

//export pollnet_send_binary
func pollnet_send_binary(ctx C.uintptr_t, handle C.uint64_t, msg *C.uint8_t, msgsize C.uint32_t) {
	lib := lookup(ctx)
	if lib == nil || (msg == nil && msgsize > 0) {
		return
	}
	n, ok := payloadLen(uint32(msgsize))
	if !ok {
		logger.Warnf("pollnet: send_binary of %d bytes rejected", uint32(msgsize))
		return
	}
	lib.ctx.SendBinary(pollnet.Handle(handle), C.GoBytes(unsafe.Pointer(msg), C.int(n)))
}

//export pollnet_update
func pollnet_update(ctx C.uintptr_t, handle C.uint64_t) C.uint32_t {
	lib := lookup(ctx)
	if lib == nil {
		return C.uint32_t(pollnet.StatusInvalidHandle)
	}
	return C.uint32_t(lib.ctx.Update(pollnet.Handle(handle)))
}

//export pollnet_update_blocking
func pollnet_update_blocking(ctx C.uintptr_t, handle C.uint64_t) C.uint32_t {
	lib := lookup(ctx)
	if lib == nil {
		return C.uint32_t(pollnet.StatusInvalidHandle)
	}
	return C.uint32_t(lib.ctx.UpdateBlocking(pollnet.Handle(handle)))
}

//export pollnet_get_data_size
func pollnet_get_data_size(ctx C.uintptr_t, handle C.uint64_t) C.uint32_t {
	lib := lookup(ctx)
	if lib == nil {
		return 0
	}
	return C.uint32_t(lib.ctx.DataSize(pollnet.Handle(handle)))
}

// pollnet_get_data copies the socket's payload into dest and returns its
// size. If dest_size is smaller than the payload nothing is written and the
// return value is the size required.
//
//export pollnet_get_data
func pollnet_get_data(ctx C.uintptr_t, handle C.uint64_t, dest *C.uint8_t, destSize C.uint32_t) C.uint32_t {
	lib := lookup(ctx)
	if lib == nil {
		return 0
	}
	h := pollnet.Handle(handle)
	size := lib.ctx.DataSize(h)
	if dest == nil || int(destSize) < size {
		return C.uint32_t(size)
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(dest)), int(destSize))
	return C.uint32_t(lib.ctx.CopyData(h, dst))
}

// pollnet_unsafe_get_data_ptr returns a pointer to a copy of the payload in
// library-owned C memory, or NULL when there is none. The pointer is valid
// until the next pollnet_unsafe_get_data_ptr, pollnet_clear_data or
// pollnet_shutdown on the same context.
//
//export pollnet_unsafe_get_data_ptr
func pollnet_unsafe_get_data_ptr(ctx C.uintptr_t, handle C.uint64_t) unsafe.Pointer {
	lib := lookup(ctx)
	if lib == nil {
		return nil
	}
	lib.freeScratch()
	data := lib.ctx.Data(pollnet.Handle(handle))
	if len(data) == 0 {
		return nil
	}
	lib.scratch = C.CBytes(data)
	return lib.scratch
}

//export pollnet_clear_data
func pollnet_clear_data(ctx C.uintptr_t, handle C.uint64_t) {
	lib := lookup(ctx)
	if lib == nil {
		return
	}
	lib.freeScratch()
	lib.ctx.ClearData(pollnet.Handle(handle))
}

//export pollnet_get_connected_client_handle
func pollnet_get_connected_client_handle(ctx C.uintptr_t, handle C.uint64_t) C.uint64_t {
	lib := lookup(ctx)
	if lib == nil {
		return C.uint64_t(pollnet.InvalidHandle)
	}
	return C.uint64_t(lib.ctx.ConnectedClient(pollnet.Handle(handle)))
}

//export pollnet_handle_is_valid
func pollnet_handle_is_valid(handle C.uint64_t) C.bool {
	return C.bool(pollnet.Handle(handle) != pollnet.InvalidHandle)
}

//export pollnet_invalid_handle
func pollnet_invalid_handle() C.uint64_t {
	return C.uint64_t(pollnet.InvalidHandle)
}

func main() {}
