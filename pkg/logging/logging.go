// Package logging wires up the structured JSON logger used by
// cmd/substrate-forwarder (cmd/substrate-warm does not log through it).
//
// The teacher logs through logrus via pkg/etwlogrus, a Hook whose Fire
// builds a logrus.Fields map from an entry's Data and ships it to ETW.
// This package keeps the same logrus.Entry-based API and field-building
// convention (see bridge.Run and supervisor.Shutdown, which call
// log.WithFields the same way Hook.Fire assembles event data) but routes
// output to a rotating JSON file via lumberjack.v2 instead of an ETW
// provider, since a background Windows service has no console and no ETW
// session guaranteed to be collecting.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the rotating file sink. Rotation is by size
// (lumberjack's MaxSize, 10 MiB); there is no time-based rotation. At
// most 5 rotated backups are kept (MaxBackups), and backups older than
// one day are removed (MaxAge).
type Options struct {
	// Dir is the directory log files are written under. Created if
	// missing.
	Dir string
	// Filename is the base name of the active log file, e.g.
	// "forwarder.log".
	Filename string
	// AlsoStderr additionally writes every entry to os.Stderr, for
	// interactive (non-service) runs.
	AlsoStderr bool
}

// New builds a logrus.Logger configured with a JSONFormatter and a
// lumberjack-backed rotating writer, and returns its base Entry (so
// callers always attach fields via WithFields rather than logging
// through the bare Logger).
func New(opts Options) (*logrus.Entry, func() error, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.Dir + string(os.PathSeparator) + opts.Filename,
		MaxAge:     1,  // days a rotated backup is kept before removal
		MaxSize:    10, // MiB; spec.md §6's "soft cap ~10 MiB each"
		MaxBackups: 5,
		Compress:   false,
	}

	var out io.Writer = rotator
	if opts.AlsoStderr {
		out = io.MultiWriter(rotator, os.Stderr)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(out)
	logger.SetLevel(logrus.InfoLevel)

	return logrus.NewEntry(logger), rotator.Close, nil
}
