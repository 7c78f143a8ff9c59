package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// UploadFunc handles one stable folder. Its boolean reports success, which is
// logged; either way the folder is considered handled and never retried.
type UploadFunc func(ctx context.Context, folder string) bool

// Watcher polls a directory for new folders, waits for each to stabilize,
// and hands stable folders to the upload callback exactly once.
type Watcher struct {
	dir          string
	callback     UploadFunc
	stabilizer   *Stabilizer
	pollInterval time.Duration
	registry     *Registry
	runID        string
}

// Options configures a Watcher. Dir and Callback are required.
type Options struct {
	Dir      string
	Callback UploadFunc

	// PollInterval is the pause between directory scans. Defaults to 5s.
	PollInterval time.Duration

	// StabilityWait is how long a folder must be unchanged before it is
	// handed to the callback. Defaults to 2s.
	StabilityWait time.Duration
}

// New returns a watcher for the given directory.
func New(opts Options) *Watcher {
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Watcher{
		dir:          opts.Dir,
		callback:     opts.Callback,
		stabilizer:   NewStabilizer(opts.StabilityWait),
		pollInterval: pollInterval,
		registry:     NewRegistry(),
		runID:        uuid.NewString(),
	}
}

// Registry exposes the folder registry, mainly for tests and status display.
func (w *Watcher) Registry() *Registry {
	return w.registry
}

// Run watches until the context is cancelled. A missing or non-directory
// watch path is fatal; transient scan errors only end the current tick.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("watch directory does not exist: %s", w.dir)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch path is not a directory: %s", w.dir)
	}

	slog.Info("starting watcher", "dir", w.dir, "poll_interval", w.pollInterval, "run_id", w.runID)

	for {
		w.Tick(ctx)

		if err := sleepContext(ctx, w.pollInterval); err != nil {
			slog.Info("watcher stopped", "run_id", w.runID, "processed", w.registry.ProcessedCount())
			return nil
		}
	}
}

// Tick performs one scan cycle: every unclaimed folder is claimed, checked
// for stability, and either handed to the callback (then marked processed) or
// released for the next cycle.
func (w *Watcher) Tick(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		slog.Error("error scanning directory", "dir", w.dir, "error", err)
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()

		if !w.registry.Claim(name) {
			continue
		}

		w.handleFolder(ctx, filepath.Join(w.dir, name))

		if ctx.Err() != nil {
			return
		}
	}
}

func (w *Watcher) handleFolder(ctx context.Context, folder string) {
	name := filepath.Base(folder)
	slog.Info("new folder detected", "folder", name)

	if !w.stabilizer.IsStable(ctx, folder) {
		slog.Warn("folder is still being written, will retry", "folder", name)
		w.registry.Release(name)
		return
	}

	slog.Info("folder is stable, uploading", "folder", name)

	if w.callback(ctx, folder) {
		slog.Info("successfully uploaded", "folder", name)
	} else {
		slog.Warn("upload failed", "folder", name)
	}
	w.registry.Complete(name)
}
