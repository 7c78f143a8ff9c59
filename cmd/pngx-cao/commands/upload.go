package commands

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/caostack/pngx-cao/internal/ingest"
	"github.com/caostack/pngx-cao/internal/pngx"
	"github.com/caostack/pngx-cao/internal/printer"
	"github.com/caostack/pngx-cao/internal/watcher"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload report folders to the document server",
	Long: `Upload report folders to the document server.

Each folder holds one PDF plus an optional JSON metadata sidecar with the
same base name. The sidecar's actors, countries, industries and motivations
become tags; its type becomes the document type.`,
}

var (
	uploadBatchFlags     connectionFlags
	uploadBatchFolder    string
	uploadBatchDryRun    bool
	uploadBatchDupPolicy string
)

var uploadBatchCmd = &cobra.Command{
	Use:   "batch [ORIGINALS_DIR]",
	Short: "Upload every report folder in a directory",
	Long: `Upload every report folder under ORIGINALS_DIR (default: the
configured originals directory).

Examples:
  # Upload everything under ./originals
  pngx-cao upload batch ./originals

  # Upload one folder by name
  pngx-cao upload batch ./originals --folder CSIT-14004

  # Preview without uploading
  pngx-cao upload batch ./originals --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUploadBatch,
}

var (
	uploadFolderFlags     connectionFlags
	uploadFolderDryRun    bool
	uploadFolderDupPolicy string
)

var uploadFolderCmd = &cobra.Command{
	Use:   "folder FOLDER_PATH",
	Short: "Upload a single report folder",
	Long: `Upload a single report folder.

Examples:
  pngx-cao upload folder ./originals/CSIT-14004`,
	Args: cobra.ExactArgs(1),
	RunE: runUploadFolder,
}

var (
	uploadWatchFlags         connectionFlags
	uploadWatchPollInterval  time.Duration
	uploadWatchStabilityWait time.Duration
	uploadWatchDupPolicy     string
)

var uploadWatchCmd = &cobra.Command{
	Use:   "watch [WATCH_DIR]",
	Short: "Watch a directory and upload new folders as they appear",
	Long: `Watch a directory and upload new report folders as they appear.

The watcher polls the directory; a new folder is uploaded only after its
contents have stopped changing for the stability window, so half-extracted
archives are left alone. Each folder is handled at most once per run.

Examples:
  # Watch the configured originals directory
  pngx-cao upload watch

  # Watch a specific directory with a longer stability window
  pngx-cao upload watch /srv/incoming --stability-wait 10s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUploadWatch,
}

func init() {
	uploadBatchCmd.Flags().StringVar(&uploadBatchFolder, "folder", "", "Process only this specific folder by name")
	uploadBatchCmd.Flags().BoolVar(&uploadBatchDryRun, "dry-run", false, "Process folders but do not actually upload")
	uploadBatchCmd.Flags().StringVar(&uploadBatchDupPolicy, "duplicate-handling", "", "How to handle duplicates: skip, replace, or update-metadata")
	uploadBatchFlags.register(uploadBatchCmd)

	uploadFolderCmd.Flags().BoolVar(&uploadFolderDryRun, "dry-run", false, "Process folder but do not actually upload")
	uploadFolderCmd.Flags().StringVar(&uploadFolderDupPolicy, "duplicate-handling", "", "How to handle duplicates: skip, replace, or update-metadata")
	uploadFolderFlags.register(uploadFolderCmd)

	uploadWatchCmd.Flags().DurationVar(&uploadWatchPollInterval, "poll-interval", 5*time.Second, "Time between directory scans")
	uploadWatchCmd.Flags().DurationVar(&uploadWatchStabilityWait, "stability-wait", 2*time.Second, "How long a folder must be unchanged before uploading")
	uploadWatchCmd.Flags().StringVar(&uploadWatchDupPolicy, "duplicate-handling", "", "How to handle duplicates: skip, replace, or update-metadata")
	uploadWatchFlags.register(uploadWatchCmd)

	uploadCmd.AddCommand(uploadBatchCmd)
	uploadCmd.AddCommand(uploadFolderCmd)
	uploadCmd.AddCommand(uploadWatchCmd)
	rootCmd.AddCommand(uploadCmd)
}

// resolvePolicy prefers the flag over the configured default.
func resolvePolicy(flagValue, configured string) ingest.DuplicatePolicy {
	if flagValue != "" {
		return ingest.ParseDuplicatePolicy(flagValue)
	}
	return ingest.ParseDuplicatePolicy(configured)
}

func runUploadBatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, cfg, err := uploadBatchFlags.newClient()
	if err != nil {
		return connectionError(err)
	}

	originalsDir := cfg.OriginalsDir
	if len(args) > 0 {
		originalsDir = args[0]
	}

	policy := resolvePolicy(uploadBatchDupPolicy, cfg.DuplicateHandling)
	printer.Dim("Duplicate handling: %s\n", policy)
	if uploadBatchDryRun {
		printer.Step("DRY RUN - nothing will be uploaded\n")
	}

	controller := ingest.NewController(client, policy, uploadBatchDryRun)
	stats, err := controller.ProcessBatch(ctx, originalsDir, uploadBatchFolder)
	if err != nil {
		return printer.Error("batch upload failed", err.Error(), nil)
	}

	if stats.Failed > 0 {
		return printer.Error(
			"some folders failed",
			"One or more folders could not be uploaded; see messages above.",
			nil,
		)
	}
	return nil
}

func runUploadFolder(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	folderPath := args[0]

	info, err := os.Stat(folderPath)
	if err != nil || !info.IsDir() {
		return printer.Error(
			"folder not found",
			"The path does not exist or is not a directory: "+folderPath,
			nil,
		)
	}

	client, cfg, err := uploadFolderFlags.newClient()
	if err != nil {
		return connectionError(err)
	}

	policy := resolvePolicy(uploadFolderDupPolicy, cfg.DuplicateHandling)
	if uploadFolderDryRun {
		printer.Step("DRY RUN - nothing will be uploaded\n")
	}

	controller := ingest.NewController(client, policy, uploadFolderDryRun)
	result := controller.ProcessFolder(ctx, folderPath)

	switch result.Outcome {
	case ingest.OutcomeFailed:
		return printer.Error("upload failed", "Folder could not be uploaded: "+result.Reason, nil)
	case ingest.OutcomeUploaded, ingest.OutcomeUpdated:
		if result.Receipt != nil && !uploadFolderDryRun {
			printer.Bold("\nUpdating document permissions...\n")
			stats := client.UpdateDocumentPermissionsBatch(ctx, []pngx.UploadReceipt{*result.Receipt})
			printer.Info("  Updated: %d | Not found: %d | Failed: %d\n",
				stats.Updated, stats.NotFound, stats.Failed)
		}
	}
	return nil
}

func runUploadWatch(cmd *cobra.Command, args []string) error {
	client, cfg, err := uploadWatchFlags.newClient()
	if err != nil {
		return connectionError(err)
	}

	watchDir := cfg.OriginalsDir
	if len(args) > 0 {
		watchDir = args[0]
	}

	policy := resolvePolicy(uploadWatchDupPolicy, cfg.DuplicateHandling)
	printer.Dim("Duplicate handling: %s\n", policy)
	printer.Info("Watching %s (poll %s, stability %s). Press Ctrl+C to stop.\n",
		watchDir, uploadWatchPollInterval, uploadWatchStabilityWait)

	controller := ingest.NewController(client, policy, false)

	w := watcher.New(watcher.Options{
		Dir:           watchDir,
		PollInterval:  uploadWatchPollInterval,
		StabilityWait: uploadWatchStabilityWait,
		Callback: func(ctx context.Context, folder string) bool {
			result := controller.ProcessFolder(ctx, folder)
			if result.Receipt != nil {
				stats := client.UpdateDocumentPermissionsBatch(ctx, []pngx.UploadReceipt{*result.Receipt})
				printer.Info("  Permissions - Updated: %d | Not found: %d | Failed: %d\n",
					stats.Updated, stats.NotFound, stats.Failed)
			}
			return result.Outcome != ingest.OutcomeFailed
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		return printer.Error("watcher failed", err.Error(), []string{
			"Check that the directory exists: " + filepath.Clean(watchDir),
		})
	}

	printer.Success("Watcher stopped. Processed %d folder(s).\n", w.Registry().ProcessedCount())
	return nil
}
