//go:build windows

package pipeforwarder

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sys/windows"

	"github.com/substratehq/forwarder/internal/fs"
)

var errAlreadyOwned = errors.New("a pipe server is already listening on this path")

// tryDialPipe repeatedly attempts to open path as a client until ctx is
// done, retrying on ERROR_PIPE_BUSY. Grounded on the teacher's
// tryDialPipe in pipe.go, adapted to the kept internal/fs.CreateFile
// wrapper instead of the teacher's mkwinsyscall-generated binding.
func tryDialPipe(ctx context.Context, path string) (windows.Handle, error) {
	for {
		select {
		case <-ctx.Done():
			return fs.NullHandle, ctx.Err()
		default:
			h, err := fs.CreateFile(path,
				fs.GENERIC_READ|fs.GENERIC_WRITE,
				fs.FILE_SHARE_NONE,
				nil,
				fs.OPEN_EXISTING,
				fs.SECURITY_SQOS_PRESENT|fs.SECURITY_ANONYMOUS,
				fs.NullHandle,
			)
			if err == nil {
				return h, nil
			}
			if err != windows.ERROR_PIPE_BUSY { //nolint:errorlint // err is Errno
				return fs.NullHandle, &os.PathError{Op: "open", Path: path, Err: err}
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// preflight converts the otherwise-opaque ACCESS_DENIED a competing
// forwarder instance would cause on CreateNamedPipe into a diagnosable
// AddrInUse, by trying to open the pipe as a client for a short deadline
// before ever attempting to create the first instance (spec.md §4.3 step
// 1).
func preflight(path string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	h, err := tryDialPipe(ctx, path)
	if err == nil {
		windows.Close(h)
		return &ListenerError{Kind: ErrAddrInUse, Path: path, Err: errAlreadyOwned}
	}
	// Any other outcome is not reported here: ERROR_FILE_NOT_FOUND means the
	// name doesn't exist yet, and a timeout means every existing instance
	// stayed busy (ERROR_PIPE_BUSY) until the deadline. In the latter case
	// an owner does exist; the first-instance create then fails with
	// ACCESS_DENIED, which createInstance reports as AddrInUse.
	return nil
}
