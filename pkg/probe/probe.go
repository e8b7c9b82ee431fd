//go:build windows

// Package probe implements the readiness check external callers (warm
// scripts, doctor commands) use to verify a forwarder is listening on
// its named pipe without driving a full HTTP request through it.
//
// Grounded on the teacher's tryDialPipe/DialPipe pattern in pipe.go:
// probe uses the same public CreateFile-with-SECURITY_SQOS_PRESENT dial
// the listener's preflight uses, fronted by a WaitNamedPipe call the
// teacher's own DialPipe never needed (the teacher dials against a
// listener it expects to already exist; the probe dials against one
// that may still be starting).
package probe

import (
	"bufio"
	"fmt"
	"net"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/substratehq/forwarder/internal/fs"
	"github.com/substratehq/forwarder/pkg/pipename"
)

// WaitNamedPipe has no binding in golang.org/x/sys/windows — the teacher
// avoids it entirely in favor of its own retry-dial loop (pipe.go:
// "We do not use WaitNamedPipe") — so it's resolved the way other
// examples in the pack do for syscalls x/sys/windows doesn't cover:
// a lazy DLL proc lookup, not a hand-generated mkwinsyscall binding.
var (
	kernel32          = syscall.NewLazyDLL("kernel32.dll")
	procWaitNamedPipe = kernel32.NewProc("WaitNamedPipeW")
)

func waitNamedPipe(name *uint16, timeoutMs uint32) error {
	r1, _, e1 := procWaitNamedPipe.Call(uintptr(unsafe.Pointer(name)), uintptr(timeoutMs))
	if r1 == 0 {
		return e1
	}
	return nil
}

// ExitCode mirrors spec.md §4.7's CLI contract.
type ExitCode int

const (
	ExitOK            ExitCode = 0
	ExitNoServer      ExitCode = 2
	ExitStatusNoMatch ExitCode = 3
)

// Options configures a single readiness check.
type Options struct {
	// Deadline bounds the WaitNamedPipe wait for a pending server
	// instance. The client open and any HTTP exchange are not counted
	// against it.
	Deadline time.Duration

	// ConnectTimeout (default 2s) is passed to the connection's
	// SetDeadline before the HTTP exchange. handleConn's deadline methods
	// do nothing, so it bounds neither the client open (a single
	// CreateFile call that does not wait) nor the HTTP write and
	// status-line read.
	ConnectTimeout time.Duration

	// HTTPRequest, if non-empty, is written verbatim (CRLF-terminated by
	// the caller) after connecting, and only the response status line is
	// read back — not the body unless ReadBody is set, per spec.md §4.7's
	// header/body read quirk note. Example:
	// "GET /health HTTP/1.1\r\nHost: localhost\r\n\r\n".
	HTTPRequest string

	// ExpectStatus, if nonzero, is compared against the parsed numeric
	// status code from HTTPRequest's response; mismatch is ExitStatusNoMatch.
	ExpectStatus int

	// ReadBody opts into also returning, in Result.Body, whatever response
	// bytes after the status line are already buffered; the rest of the
	// response is not read. For the historical body-reading probe variant
	// (spec.md §9 Open
	// Question). Ignored unless HTTPRequest is set. Decided to keep as an
	// opt-in rather than drop entirely: DESIGN.md records the reasoning.
	ReadBody bool
}

func (o Options) connectTimeout() time.Duration {
	if o.ConnectTimeout <= 0 {
		return 2 * time.Second
	}
	return o.ConnectTimeout
}

// Result reports what a probe observed.
type Result struct {
	Exit       ExitCode
	StatusLine string
	StatusCode int
	Body       []byte
}

// Probe waits for a server instance on the named pipe identified by
// rawPath (any spelling pipename.Name accepts), opens a client
// connection, and — if opts.HTTPRequest is set — sends it and reads back
// only the status line, per the canonical status-line-only contract.
func Probe(rawPath string, opts Options) (Result, error) {
	path := pipename.Canonical(rawPath)
	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = 8 * time.Second
	}

	path16, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return Result{Exit: ExitNoServer}, fmt.Errorf("probe: invalid pipe path %q: %w", path, err)
	}

	// WaitNamedPipe takes milliseconds as a DWORD; the deadline is
	// truncated to whole milliseconds and a zero result is raised to 1, so
	// a sub-millisecond deadline is never passed as 0.
	timeoutMs := uint32(deadline / time.Millisecond)
	if timeoutMs == 0 {
		timeoutMs = 1
	}
	if err := waitNamedPipe(path16, timeoutMs); err != nil {
		return Result{Exit: ExitNoServer}, fmt.Errorf("probe: WaitNamedPipe %q: %w", path, err)
	}

	h, err := fs.CreateFile(path,
		fs.GENERIC_READ|fs.GENERIC_WRITE,
		fs.FILE_SHARE_NONE,
		nil,
		fs.OPEN_EXISTING,
		fs.SECURITY_SQOS_PRESENT|fs.SECURITY_ANONYMOUS,
		fs.NullHandle,
	)
	if err != nil {
		return Result{Exit: ExitNoServer}, fmt.Errorf("probe: open %q: %w", path, err)
	}
	defer windows.Close(h)

	if opts.HTTPRequest == "" {
		return Result{Exit: ExitOK}, nil
	}

	return probeHTTP(h, opts)
}

func probeHTTP(h windows.Handle, opts Options) (Result, error) {
	conn := &handleConn{h: h}
	_ = conn.SetDeadline(time.Now().Add(opts.connectTimeout()))

	if _, err := conn.Write([]byte(opts.HTTPRequest)); err != nil {
		return Result{Exit: ExitNoServer}, fmt.Errorf("probe: write request: %w", err)
	}

	r := bufio.NewReader(conn)
	statusLine, err := r.ReadString('\n')
	if err != nil {
		return Result{Exit: ExitNoServer}, fmt.Errorf("probe: read status line: %w", err)
	}

	code, err := parseStatusCode(statusLine)
	if err != nil {
		return Result{Exit: ExitStatusNoMatch, StatusLine: statusLine}, err
	}

	res := Result{Exit: ExitOK, StatusLine: statusLine, StatusCode: code}
	if opts.ExpectStatus != 0 && code != opts.ExpectStatus {
		res.Exit = ExitStatusNoMatch
	}

	if opts.ReadBody {
		// Opt-in only: the canonical probe stops at the status line.
		// Draining whatever the peer already buffered is best-effort and
		// not expected to capture a chunked or content-length body in
		// full.
		body := make([]byte, r.Buffered())
		_, _ = r.Read(body)
		res.Body = body
	}

	return res, nil
}

func parseStatusCode(statusLine string) (int, error) {
	var proto string
	var code int
	n, err := fmt.Sscanf(statusLine, "%s %d", &proto, &code)
	if err != nil || n != 2 {
		return 0, fmt.Errorf("probe: malformed status line %q", statusLine)
	}
	return code, nil
}

// handleConn adapts a raw pipe client handle to net.Conn for bufio use,
// mirroring the subset of the teacher's win32File that a short-lived,
// non-overlapped probe connection actually needs. Its deadline methods
// are no-ops: reads and writes on the handle are not time-limited.
type handleConn struct {
	h windows.Handle
}

func (c *handleConn) Read(p []byte) (int, error) {
	var n uint32
	err := windows.ReadFile(c.h, p, &n, nil)
	return int(n), err
}

func (c *handleConn) Write(p []byte) (int, error) {
	var n uint32
	err := windows.WriteFile(c.h, p, &n, nil)
	return int(n), err
}

func (c *handleConn) Close() error                       { return windows.Close(c.h) }
func (c *handleConn) LocalAddr() net.Addr                { return pipeAddr{} }
func (c *handleConn) RemoteAddr() net.Addr               { return pipeAddr{} }
func (c *handleConn) SetDeadline(t time.Time) error      { return nil }
func (c *handleConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *handleConn) SetWriteDeadline(t time.Time) error { return nil }

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }
