package dzn

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch re-runs TranscodeDir whenever srcDir changes, until ctx is done.
// Bursts of events are coalesced by the settle delay.
func Watch(ctx context.Context, srcDir, dstDir string, workers int, settle time.Duration, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(srcDir); err != nil {
		return err
	}
	if settle <= 0 {
		settle = 250 * time.Millisecond
	}

	run := func() {
		n, err := TranscodeDir(ctx, srcDir, dstDir, workers, log)
		if err != nil {
			log.Error("transcode failed", zap.String("src", srcDir), zap.Error(err))
			return
		}
		log.Info("instances transcoded", zap.String("src", srcDir), zap.String("dst", dstDir), zap.Int("count", n))
	}
	run()

	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(settle)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		case <-timer.C:
			run()
		}
	}
}
