//go:build windows

// Package pipeforwarder implements the named-pipe server side of the
// forwarder: a Listener that keeps a pipe name continuously listenable
// across client connects, and an Instance type for the connected byte
// stream of a single client.
//
// The teacher (go-winio) drives its listener with FILE_FLAG_OVERLAPPED
// handles, an IOCP completion port, and a worker pool that waits on
// completions (listenerWorker/listenerRoutine in pipe.go), backed by
// generated NT syscall bindings (ntCreateNamedPipeFile,
// rtlDosPathNameToNtPathName) this package doesn't have access to. This
// package instead opens every instance without FILE_FLAG_OVERLAPPED and
// gives each blocking call — ConnectNamedPipe, ReadFile, WriteFile — its
// own goroutine; the Go scheduler parks the goroutine for the duration
// of the syscall, which gets the same "no busy polling" property the
// teacher's IOCP reactor provides, without needing IOCP plumbing this
// package can't verify compiles.
package pipeforwarder
