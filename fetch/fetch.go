package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pithecene-io/stainfetch/types"
)

// Backend obtains bytes for a task's source locator and writes them to
// the task's destination path, returning the number of bytes written.
//
// A backend is selected once per run and never mixed within a single
// task's retries. Implementations classify every failure with one of
// the package sentinels so the orchestrator can decide retry policy
// without inspecting transport details.
type Backend interface {
	Fetch(ctx context.Context, task *types.ChannelTask) (int64, error)
	// Name identifies the backend in logs and metrics dimensions.
	Name() string
}

// DestExists reports whether the task's destination already holds a
// non-zero-size file, along with its size. Used by the orchestrator's
// skip-existing short-circuit; the backend is not involved.
func DestExists(task *types.ChannelTask) (bool, int64) {
	info, err := os.Stat(task.DestPath)
	if err != nil || info.IsDir() {
		return false, 0
	}
	return info.Size() > 0, info.Size()
}

// createDest creates the destination file, making parent directories
// on demand. Failures are classified as permanent i/o.
func createDest(destPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, newError(ErrIO, "mkdir", destPath, err)
	}
	f, err := os.Create(destPath)
	if err != nil {
		return nil, newError(ErrIO, "create", destPath, err)
	}
	return f, nil
}

// writeDest streams r into the destination file, returning bytes
// written. On a write failure the partial file is removed so a later
// skip-existing check does not mistake it for a finished download.
func writeDest(destPath string, r io.Reader) (int64, error) {
	f, err := createDest(destPath)
	if err != nil {
		return 0, err
	}
	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()

	if copyErr == nil && closeErr != nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(destPath)
		return 0, newError(ErrIO, "write", destPath, copyErr)
	}
	return n, nil
}

// validateRemoteTask checks that the task carries a remote locator.
func validateRemoteTask(task *types.ChannelTask) error {
	if task.SourceURL == "" {
		return newError(ErrIO, "fetch", task.DestPath,
			fmt.Errorf("task %s/%s has no source URL", task.Key, task.Channel))
	}
	return nil
}
