//go:build windows

package probe

import (
	"testing"
	"time"
)

func TestParseStatusCodeOK(t *testing.T) {
	code, err := parseStatusCode("HTTP/1.1 200 OK\r\n")
	if err != nil {
		t.Fatalf("parseStatusCode: %v", err)
	}
	if code != 200 {
		t.Fatalf("code = %d, want 200", code)
	}
}

func TestParseStatusCodeMalformed(t *testing.T) {
	if _, err := parseStatusCode("not a status line"); err == nil {
		t.Fatalf("expected an error for a malformed status line")
	}
}

func TestProbeNoServerReturnsExitNoServer(t *testing.T) {
	res, err := Probe(`\\.\pipe\substrate-forwarder-probe-test-no-server`, Options{Deadline: 50 * time.Millisecond})
	if err == nil {
		t.Fatalf("expected an error dialing a pipe with no server")
	}
	if res.Exit != ExitNoServer {
		t.Fatalf("Exit = %v, want ExitNoServer", res.Exit)
	}
}
