package downstream

import (
	"errors"
	"os/exec"
	"testing"
	"time"
)

func TestUDSConnectorCommandDirect(t *testing.T) {
	c := NewUDSConnector("/run/substrate.sock", "")
	name, args := c.command()
	if name != socatPath {
		t.Fatalf("name = %q, want %q", name, socatPath)
	}
	want := []string{"-", "UNIX-CONNECT:/run/substrate.sock"}
	if len(args) != len(want) {
		t.Fatalf("args = %v", args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestUDSConnectorCommandViaDistro(t *testing.T) {
	c := NewUDSConnector("/run/substrate.sock", "Ubuntu")
	name, args := c.command()
	if name != wslPath {
		t.Fatalf("name = %q, want %q", name, wslPath)
	}
	want := []string{"-d", "Ubuntu", "--", socatPath, "-", "UNIX-CONNECT:/run/substrate.sock"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestUDSConnectorMissingBinaryFails(t *testing.T) {
	c := NewUDSConnector("/run/substrate.sock", "")
	c.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	_, err := c.Connect(nil) //nolint:staticcheck // context unused before the lookPath failure
	if err == nil {
		t.Fatalf("expected an error when socat is not in PATH")
	}
}

func TestHelperStreamEchoesThroughCat(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	cmd := exec.Command("cat")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.Fatalf("StdinPipe: %v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatalf("StdoutPipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	h := &helperStream{cmd: cmd, stdin: stdin, stdout: stdout}
	defer h.Close()

	if _, err := h.Write([]byte("ping")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := h.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "ping" {
		t.Errorf("got %q, want %q", buf, "ping")
	}
}

func TestHelperStreamStopKillsUnresponsiveProcess(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h := &helperStream{cmd: cmd}
	// The exit status is not checked: a process ended by SIGTERM or Kill
	// reports a non-nil Wait error. What matters is that it is gone.
	_ = h.stop(50 * time.Millisecond)
	if cmd.ProcessState == nil {
		t.Fatalf("expected the helper process to have exited after stop")
	}
}
