package fetch

import (
	"context"
	"fmt"
	"os"

	"github.com/pithecene-io/stainfetch/iox"
	"github.com/pithecene-io/stainfetch/types"
)

// LocalBackend copies task bytes from a pre-staged archive on the
// local filesystem.
//
// There is no transient classification for this strategy. A missing
// source file is permanent-not-found; read and write failures are
// permanent-io. Retrying a local copy cannot succeed without external
// intervention.
type LocalBackend struct{}

// NewLocalBackend creates a local-copy backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{}
}

// Name implements Backend.
func (b *LocalBackend) Name() string { return "local" }

// Fetch implements Backend.
func (b *LocalBackend) Fetch(ctx context.Context, task *types.ChannelTask) (int64, error) {
	if task.SourcePath == "" {
		return 0, newError(ErrIO, "copy", task.DestPath,
			fmt.Errorf("task %s/%s has no source path", task.Key, task.Channel))
	}
	if err := ctx.Err(); err != nil {
		return 0, newError(ErrIO, "copy", task.SourcePath, err)
	}

	src, err := os.Open(task.SourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, newError(ErrNotFound, "open", task.SourcePath, err)
		}
		return 0, newError(ErrIO, "open", task.SourcePath, err)
	}
	defer iox.DiscardClose(src)

	return writeDest(task.DestPath, src)
}
