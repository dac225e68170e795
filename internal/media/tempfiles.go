package media

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/vidfriends/videotube/internal/logging"
)

// RemoveLocal deletes the given local files, skipping empty paths and files
// that are already gone. Other failures are logged.
func RemoveLocal(ctx context.Context, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.FromContext(ctx).Warn("remove local file", zap.String("path", p), zap.Error(err))
		}
	}
}
