// Package pipename normalizes the various spellings operators and scripts
// use for a Windows named pipe path into the one canonical form the
// forwarder's listener and readiness probe both key off of.
package pipename

import "strings"

// DefaultName is the pipe name used when none is configured, matching the
// default in spec.md's ForwarderConfig precedence table.
const DefaultName = "substrate-agent"

// marker is the case-insensitive separator every accepted spelling shares:
// "\\.\pipe\", ".\pipe\", "\pipe\", or "/pipe/" with mixed slashes.
const marker = "pipe"

// Canonical returns the full `\\.\pipe\<name>` path for path, tolerating
// forward slashes, surrounding quotes, and mixed casing in the `pipe`
// marker segment. If path does not contain a `pipe` segment, the whole
// (trimmed) string is treated as a bare name.
func Canonical(path string) string {
	return `\\.\pipe\` + Name(path)
}

// Name extracts the `<name>` segment from path: the substring after the
// last `\pipe\` (or `/pipe/`, mixed) marker, tolerant of surrounding quotes
// and casing. If no marker is found, the trimmed input is returned as-is
// (the "bare name" fallback).
func Name(path string) string {
	s := strings.Trim(strings.TrimSpace(path), `"'`)
	s = strings.ReplaceAll(s, "/", `\`)

	lower := strings.ToLower(s)
	idx := strings.LastIndex(lower, `\`+marker+`\`)
	if idx < 0 {
		// Tolerate a path that ends exactly in "\pipe" with nothing after it,
		// and a bare name with no marker at all.
		return strings.Trim(s, `\`)
	}
	return s[idx+len(marker)+2:]
}
