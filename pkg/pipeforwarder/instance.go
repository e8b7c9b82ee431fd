//go:build windows

package pipeforwarder

import (
	"io"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Instance is a single named-pipe server handle. The listener creates
// instances and hands each one to exactly one caller on accept; once
// handed off, the listener never touches it again. Go has no linear
// types, so this "move-only" discipline (spec.md §9) is enforced by
// convention rather than the compiler: the listener drops its local
// variable the moment AcceptNext returns one, and nothing else in this
// package retains a reference to it afterward.
type Instance struct {
	handle windows.Handle
	path   string

	closeOnce sync.Once
}

func createInstance(path string, cfg PipeConfig, first bool) (*Instance, error) {
	path16, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, &ListenerError{Kind: ErrFatal, Path: path, Err: err}
	}

	openMode := uint32(windows.PIPE_ACCESS_DUPLEX)
	if first {
		openMode |= windows.FILE_FLAG_FIRST_PIPE_INSTANCE
	}
	pipeMode := uint32(windows.PIPE_TYPE_BYTE | windows.PIPE_READMODE_BYTE | windows.PIPE_WAIT | windows.PIPE_REJECT_REMOTE_CLIENTS)

	var sa *windows.SecurityAttributes
	if first && len(cfg.SecurityDescriptor) > 0 {
		sa = &windows.SecurityAttributes{
			Length:             uint32(unsafe.Sizeof(windows.SecurityAttributes{})),
			SecurityDescriptor: &cfg.SecurityDescriptor[0],
		}
	}

	h, err := windows.CreateNamedPipe(
		path16,
		openMode,
		pipeMode,
		windows.PIPE_UNLIMITED_INSTANCES,
		cfg.outputBufferSize(),
		cfg.inputBufferSize(),
		0,
		sa,
	)
	if err != nil {
		if err == windows.ERROR_ACCESS_DENIED { //nolint:errorlint // err is Errno
			return nil, &ListenerError{Kind: ErrAddrInUse, Path: path, Err: err}
		}
		return nil, &ListenerError{Kind: ErrTransient, Path: path, Err: err}
	}

	return &Instance{handle: h, path: path}, nil
}

// connect blocks until a client connects to this instance, or the handle
// is closed from another goroutine (used by Shutdown to abort a pending
// instance). The pipe is opened without FILE_FLAG_OVERLAPPED, so
// ConnectNamedPipe/ReadFile/WriteFile are synchronous OS calls; each
// instance is serviced by its own goroutine (the accept loop's call here,
// the bridge's two copy goroutines once handed off), so blocking here
// costs a parked goroutine, not a stalled reactor.
func (inst *Instance) connect() error {
	err := windows.ConnectNamedPipe(inst.handle, nil)
	if err == nil || err == windows.ERROR_PIPE_CONNECTED { //nolint:errorlint // err is Errno
		return nil
	}
	return err
}

func (inst *Instance) Read(p []byte) (int, error) {
	var n uint32
	err := windows.ReadFile(inst.handle, p, &n, nil)
	if err != nil {
		if err == windows.ERROR_BROKEN_PIPE { //nolint:errorlint // err is Errno
			return int(n), io.EOF
		}
		return int(n), err
	}
	return int(n), nil
}

func (inst *Instance) Write(p []byte) (int, error) {
	var n uint32
	err := windows.WriteFile(inst.handle, p, &n, nil)
	return int(n), err
}

// Flush implements bridge.PipeSide.
func (inst *Instance) Flush() error {
	return windows.FlushFileBuffers(inst.handle)
}

// Disconnect implements bridge.PipeSide.
func (inst *Instance) Disconnect() error {
	return windows.DisconnectNamedPipe(inst.handle)
}

// Close implements bridge.PipeSide. Safe to call more than once.
func (inst *Instance) Close() error {
	var err error
	inst.closeOnce.Do(func() {
		err = windows.Close(inst.handle)
	})
	return err
}
