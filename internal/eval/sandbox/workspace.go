package sandbox

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	appErr "github.com/AmrMustafa282/skillify-analysis/pkg/errors"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/logger"

	"go.uber.org/zap"
)

// prepareWorkspace creates the per-task directory and writes all task files
// into it. File names must be plain names, never paths.
func prepareWorkspace(root, taskID string, files map[string]string) (string, error) {
	dir := filepath.Join(root, taskID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", appErr.Wrapf(err, appErr.WorkspaceFailed, "create workspace %s", dir)
	}
	for name, content := range files {
		if name == "" || filepath.Base(name) != name {
			return "", appErr.ValidationError("files", "file name must not contain path separators")
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return "", appErr.Wrapf(err, appErr.WorkspaceFailed, "write workspace file %s", name)
		}
	}
	return dir, nil
}

// removeWorkspace deletes the task directory. Failures are logged and
// returned as a message so callers can record them without failing the run.
func removeWorkspace(ctx context.Context, dir string) string {
	if dir == "" {
		return ""
	}
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn(ctx, "workspace cleanup failed",
			zap.String("dir", dir),
			zap.Error(err))
		return err.Error()
	}
	return ""
}

// limitedBuffer keeps at most max bytes but counts everything written, so
// the caller can tell how much output the task actually produced.
type limitedBuffer struct {
	buf   bytes.Buffer
	max   int64
	total int64
}

func newLimitedBuffer(max int64) *limitedBuffer {
	return &limitedBuffer{max: max}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	b.total += int64(n)
	if remain := b.max - int64(b.buf.Len()); remain > 0 {
		if int64(len(p)) > remain {
			p = p[:remain]
		}
		b.buf.Write(p)
	}
	return n, nil
}

func (b *limitedBuffer) String() string { return b.buf.String() }

// TotalKB reports the attempted output size rounded up to whole kilobytes.
func (b *limitedBuffer) TotalKB() int64 {
	return (b.total + 1023) / 1024
}
