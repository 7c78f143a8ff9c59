// Package watcher monitors a directory for new report folders and hands
// stable ones to an upload callback. It polls rather than using filesystem
// notifications so it behaves the same on local disks and network shares.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Snapshot captures a folder's contents at one instant: how many regular
// files it holds, their combined size, and each file's individual size.
type Snapshot struct {
	FileCount int
	TotalSize int64
	Files     map[string]int64
}

// Equal reports whether two snapshots describe identical folder contents.
func (s Snapshot) Equal(other Snapshot) bool {
	if s.FileCount != other.FileCount || s.TotalSize != other.TotalSize {
		return false
	}
	if len(s.Files) != len(other.Files) {
		return false
	}
	for name, size := range s.Files {
		if otherSize, ok := other.Files[name]; !ok || otherSize != size {
			return false
		}
	}
	return true
}

// TakeSnapshot records the folder's current state. Unreadable entries are
// skipped rather than failing the snapshot; a folder mid-extraction often has
// transient files.
func TakeSnapshot(folder string) Snapshot {
	snap := Snapshot{Files: make(map[string]int64)}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return snap
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := os.Stat(filepath.Join(folder, entry.Name()))
		if err != nil {
			continue
		}
		snap.FileCount++
		snap.TotalSize += info.Size()
		snap.Files[entry.Name()] = info.Size()
	}

	return snap
}

// Stabilizer decides whether a folder has stopped changing. It compares two
// snapshots taken a fixed interval apart; a folder still being extracted or
// copied will differ between them.
type Stabilizer struct {
	// Wait is how long to pause between the two snapshots.
	Wait time.Duration

	// Sleep is the pause implementation. Tests substitute an instant one.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewStabilizer returns a stabilizer with the given wait, defaulting to 2s.
func NewStabilizer(wait time.Duration) *Stabilizer {
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &Stabilizer{Wait: wait, Sleep: sleepContext}
}

// IsStable reports whether the folder's contents were unchanged across the
// wait interval. A missing or unreadable folder is never stable.
func (s *Stabilizer) IsStable(ctx context.Context, folder string) bool {
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return false
	}

	before := TakeSnapshot(folder)

	if err := s.Sleep(ctx, s.Wait); err != nil {
		return false
	}

	after := TakeSnapshot(folder)
	stable := before.Equal(after)
	if !stable {
		slog.Debug("folder contents changed during stability window",
			"folder", filepath.Base(folder),
			"before_files", before.FileCount, "after_files", after.FileCount)
	}
	return stable
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
