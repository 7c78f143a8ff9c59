package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/caostack/pngx-cao/internal/pngx"
	"github.com/caostack/pngx-cao/internal/printer"
)

// BatchStats counts the outcome of a batch run.
type BatchStats struct {
	Uploaded int
	Updated  int
	Skipped  int
	Failed   int
}

// ProcessBatch ingests every folder under originalsDir, or just the named
// folder when folderFilter is non-empty. Upload receipts are collected and,
// outside dry-run mode, fed to a single post-batch permission pass.
func (c *Controller) ProcessBatch(ctx context.Context, originalsDir, folderFilter string) (BatchStats, error) {
	var stats BatchStats

	if _, err := os.Stat(originalsDir); err != nil {
		return stats, fmt.Errorf("directory not found: %s", originalsDir)
	}

	var folders []string
	if folderFilter != "" {
		folder := filepath.Join(originalsDir, folderFilter)
		info, err := os.Stat(folder)
		if err != nil || !info.IsDir() {
			return stats, fmt.Errorf("folder not found: %s", folder)
		}
		folders = []string{folder}
	} else {
		entries, err := os.ReadDir(originalsDir)
		if err != nil {
			return stats, fmt.Errorf("failed to list %s: %w", originalsDir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				folders = append(folders, filepath.Join(originalsDir, entry.Name()))
			}
		}
	}

	if len(folders) == 0 {
		printer.Warning("No folders found in %s\n", originalsDir)
		return stats, nil
	}
	sort.Strings(folders)

	printer.Header("Found %d folder(s) to process\n", len(folders))
	shown := folders
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for _, folder := range shown {
		printer.Printf("  %-40s Ready\n", filepath.Base(folder))
	}
	if len(folders) > 10 {
		printer.Printf("  %-40s and %d more\n", "...", len(folders)-10)
	}

	var receipts []pngx.UploadReceipt
	for _, folder := range folders {
		result := c.ProcessFolder(ctx, folder)

		switch result.Outcome {
		case OutcomeUploaded:
			stats.Uploaded++
		case OutcomeUpdated:
			stats.Updated++
		case OutcomeSkipped:
			stats.Skipped++
		case OutcomeFailed:
			stats.Failed++
		}
		if result.Receipt != nil {
			receipts = append(receipts, *result.Receipt)
		}
	}

	if len(receipts) > 0 && !c.dryRun {
		printer.Bold("\nUpdating document permissions...\n")
		permStats := c.client.UpdateDocumentPermissionsBatch(ctx, receipts)
		printer.Info("  Updated: %d | Not found: %d | Failed: %d\n",
			permStats.Updated, permStats.NotFound, permStats.Failed)
	}

	printer.Header("\nUpload Summary\n")
	printer.Printf("  %-12s %d\n", "Uploaded", stats.Uploaded)
	printer.Printf("  %-12s %d\n", "Updated", stats.Updated)
	printer.Printf("  %-12s %d\n", "Failed", stats.Failed)
	printer.Printf("  %-12s %d\n", "Skipped", stats.Skipped)

	return stats, nil
}
