package downstream

import (
	"context"
	"io"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// socatPath is the binary used to bridge a Unix domain socket into a pair
// of pipes this process can read and write directly, since Go's stdlib
// dialer cannot reach into a Linux guest's filesystem namespace from a
// Windows host process. Spec.md §4.4 leaves the uds transport
// implementation-defined; this follows the helper-process pattern used by
// ralphschuler-tut's socat wrappers.
const socatPath = "socat"

// wslPath is the launcher used to run the helper inside a WSL distro from
// the Windows host, per spec.md §4.4.
const wslPath = "wsl.exe"

// stopGrace bounds how long a helper process is given to exit cleanly
// after SIGTERM before it's killed outright, mirroring
// ralphschuler-tut's child.stop.
const stopGrace = 2 * time.Second

// UDSConnector spawns a socat helper process per session, wired
// UNIX-CONNECT:<path> on one side and this process's stdio on the other.
// When Distro is non-empty the helper runs inside that WSL distro via
// `wsl.exe -d <distro> -- socat ...`, since the target socket lives in the
// guest's filesystem namespace, not the host's.
type UDSConnector struct {
	Path   string
	Distro string

	// lookPath is overridable in tests.
	lookPath func(string) (string, error)
}

// NewUDSConnector builds a connector for the given Unix domain socket
// path, which is resolved inside the helper process, not by this one.
func NewUDSConnector(path, distro string) *UDSConnector {
	return &UDSConnector{Path: path, Distro: distro, lookPath: exec.LookPath}
}

func (c *UDSConnector) Connect(ctx context.Context) (ByteStream, error) {
	name, args := c.command()
	if lp := c.lookPath; lp != nil {
		if _, err := lp(name); err != nil {
			return nil, errors.Wrapf(err, "downstream uds: %s not found in PATH", name)
		}
	}

	cmd := exec.CommandContext(ctx, name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "downstream uds: open stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "downstream uds: open stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "downstream uds: start socat for %s", c.Path)
	}

	return &helperStream{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		distro: c.Distro,
		path:   c.Path,
	}, nil
}

func (c *UDSConnector) Target() string { return "uds:" + c.Path }

func (c *UDSConnector) Close() error { return nil }

// command builds the argv for the socat helper, routing through wsl.exe
// when a distro is configured.
func (c *UDSConnector) command() (string, []string) {
	socatArgs := []string{"-", "UNIX-CONNECT:" + c.Path}
	if c.Distro == "" {
		return socatPath, socatArgs
	}
	return wslPath, append([]string{"-d", c.Distro, "--", socatPath}, socatArgs...)
}

// helperStream adapts a socat child process's stdio into a ByteStream.
type helperStream struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	// distro and path are only used by stop, to reach into the guest and
	// kill the in-guest socat when the host-visible process is wsl.exe
	// rather than socat itself.
	distro string
	path   string
}

func (h *helperStream) Read(p []byte) (int, error)  { return h.stdout.Read(p) }
func (h *helperStream) Write(p []byte) (int, error) { return h.stdin.Write(p) }

// CloseWrite closes the helper's stdin, which propagates as EOF to the
// uds peer through socat; the helper process is expected to exit on its
// own once both directions have drained, per spec.md §4.5's flush+close
// ordering.
func (h *helperStream) CloseWrite() error {
	return h.stdin.Close()
}

func (h *helperStream) Close() error {
	_ = h.stdin.Close()
	_ = h.stdout.Close()
	return h.stop(stopGrace)
}

// stop sends SIGTERM and escalates to Kill after grace, mirroring
// ralphschuler-tut's child.stop. On Windows, (*os.Process).Signal only
// implements os.Kill — any other signal, including SIGTERM, is silently
// dropped by the runtime (os/exec_windows.go's signal() special-cases
// only Kill) — so there the helper is killed outright instead of waiting
// out a grace period for a signal that was never delivered.
//
// When the helper was launched through wsl.exe (h.distro set), the
// process this kills is the host-side launcher; the in-guest socat it
// spawned is asked to exit via a best-effort pkill inside the same
// distro first, since killing wsl.exe alone does not guarantee the
// guest-side process dies with it.
func (h *helperStream) stop(grace time.Duration) error {
	if h.cmd == nil || h.cmd.Process == nil {
		return nil
	}

	if h.distro != "" {
		_ = killGuestSocat(h.distro, h.path)
	}

	if runtime.GOOS == "windows" {
		_ = h.cmd.Process.Kill()
	} else {
		_ = h.cmd.Process.Signal(syscall.SIGTERM)
	}

	done := make(chan error, 1)
	go func() { done <- h.cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(grace):
		_ = h.cmd.Process.Kill()
		return <-done
	}
}

// killGuestSocat best-effort terminates the in-guest socat process
// relaying path, from outside the wsl.exe launcher that started it.
func killGuestSocat(distro, path string) error {
	return exec.Command(wslPath, "-d", distro, "--", "pkill", "-f", "socat.*"+path).Run()
}
