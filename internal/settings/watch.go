package settings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDelay = 200 * time.Millisecond

// fileSum returns the hex SHA-256 of the file at path, or "" when it cannot
// be read.
func fileSum(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Watch reloads the file whenever its content changes until ctx is
// cancelled. The parent directory is watched so editors that replace the
// file on save are picked up. cb, if non-nil, is called after every
// successful reload.
func (f *File) Watch(ctx context.Context, logger *slog.Logger, cb func(Values)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(f.path)
	if err := w.Add(dir); err != nil {
		return err
	}
	name := filepath.Clean(f.path)
	logger.Info("settings: watching", slog.String("path", name))

	lastSum := fileSum(f.path)

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time
	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(reloadDelay)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(reloadDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("settings: stopped")
			return nil

		case <-reloadCh:
			sum := fileSum(f.path)
			if sum == lastSum {
				continue
			}
			lastSum = sum
			if err := f.Reload(); err != nil {
				logger.Warn("settings: reload failed", slog.String("error", err.Error()))
				continue
			}
			v := f.Values()
			logger.Info("settings: reloaded", slog.String("validation_mode", string(v.ValidationMode)))
			if cb != nil {
				cb(v)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("settings: watch error", slog.String("error", watchErr.Error()))
		}
	}
}
