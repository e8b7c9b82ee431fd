//go:build windows

// substrate-warm is the readiness-probe CLI: it waits for a forwarder's
// named pipe to accept a connection (and, optionally, checks an HTTP
// status line through it) and exits with the code spec.md §4.7 defines,
// for use by warm scripts and doctor commands.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/substratehq/forwarder/pkg/probe"
)

func main() {
	os.Exit(run())
}

func run() int {
	app := kingpin.New("substrate-warm", "Readiness probe for substrate-forwarder's named pipe.")

	pipeFlag := app.Flag("pipe", "Named pipe path or bare name.").Default("substrate-agent").String()
	deadline := app.Flag("deadline", "How long to wait for a listening server.").Default("8s").Duration()
	httpCheck := app.Flag("http", "Send this HTTP/1.1 request line+headers (CRLF-joined) and read back the status line.").String()
	expectStatus := app.Flag("expect-status", "Expected numeric HTTP status; 0 disables the check.").Default("0").Int()
	readBody := app.Flag("read-body", "Also drain whatever body bytes are already buffered (historical, non-canonical).").Bool()

	if _, err := app.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return int(probe.ExitNoServer)
	}

	res, err := probe.Probe(*pipeFlag, probe.Options{
		Deadline:     *deadline,
		HTTPRequest:  normalizeRequestLines(*httpCheck),
		ExpectStatus: *expectStatus,
		ReadBody:     *readBody,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "substrate-warm:", err)
		return int(res.Exit)
	}

	if res.StatusLine != "" {
		fmt.Print(res.StatusLine)
	}
	return int(res.Exit)
}

// normalizeRequestLines turns a \n-separated --http flag value into a
// proper CRLF-terminated HTTP/1.1 request, since most shells make typing
// literal \r\n painful.
func normalizeRequestLines(s string) string {
	if s == "" {
		return ""
	}
	out := ""
	for _, line := range splitLines(s) {
		out += line + "\r\n"
	}
	return out + "\r\n"
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, trimCR(s[start:i]))
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, trimCR(s[start:]))
	}
	return lines
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}
