package ingest

import (
	"context"
	"crypto/md5" // #nosec G501 -- not used for security, only serial number derivation
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caostack/pngx-cao/internal/pngx"
	"github.com/caostack/pngx-cao/internal/printer"
	"github.com/caostack/pngx-cao/internal/tagid"
	"github.com/caostack/pngx-cao/internal/taxonomy"
)

// DuplicatePolicy controls what happens when an upload's title already exists
// on the server.
type DuplicatePolicy string

const (
	// DuplicateSkip leaves the existing document untouched.
	DuplicateSkip DuplicatePolicy = "skip"

	// DuplicateReplace deletes the existing document, purges the trash, and
	// uploads the new file.
	DuplicateReplace DuplicatePolicy = "replace"

	// DuplicateUpdateMetadata patches the existing document's tags, date and
	// type without re-uploading the file.
	DuplicateUpdateMetadata DuplicatePolicy = "update-metadata"
)

// ParseDuplicatePolicy maps a configuration string to a policy, falling back
// to skip for anything unrecognized.
func ParseDuplicatePolicy(s string) DuplicatePolicy {
	switch DuplicatePolicy(strings.TrimSpace(strings.ToLower(s))) {
	case DuplicateReplace:
		return DuplicateReplace
	case DuplicateUpdateMetadata:
		return DuplicateUpdateMetadata
	default:
		return DuplicateSkip
	}
}

// Outcome classifies what happened to one folder.
type Outcome string

const (
	OutcomeUploaded Outcome = "uploaded"
	OutcomeUpdated  Outcome = "updated"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Result describes the processing of one folder.
type Result struct {
	Outcome    Outcome
	Reason     string
	DocumentID int
	Receipt    *pngx.UploadReceipt
}

// Controller processes report folders into document uploads.
type Controller struct {
	client    *pngx.Client
	policy    DuplicatePolicy
	actorDef  taxonomy.Definition
	dryRun    bool
}

// NewController returns a controller using the given duplicate policy. The
// actor taxonomy definition supplies the root under which new actor group
// tags are created.
func NewController(client *pngx.Client, policy DuplicatePolicy, dryRun bool) *Controller {
	actorDef, ok := taxonomy.Find(taxonomy.Defaults(), "actor")
	if !ok {
		// The built-in table always contains it; this guards custom builds.
		actorDef = taxonomy.Definition{Name: "actor", RootID: 5, ChildColor: "#8338ec"}
	}
	return &Controller{client: client, policy: policy, actorDef: actorDef, dryRun: dryRun}
}

// ArchiveSerial derives a stable archive serial number from a report's base
// filename: the first 7 hex digits of its MD5 digest, as an integer. The same
// file always maps to the same serial, so re-ingesting is idempotent.
func ArchiveSerial(baseName string) int {
	sum := md5.Sum([]byte(baseName)) // #nosec G401 -- identifier derivation, not cryptography
	digest := hex.EncodeToString(sum[:])
	n, _ := strconv.ParseInt(digest[:7], 16, 64)
	return int(n)
}

// findPDF returns the first PDF in the folder by listing order, warning when
// there is more than one.
func findPDF(folder string) (string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return "", fmt.Errorf("failed to read folder: %w", err)
	}

	var pdfs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			pdfs = append(pdfs, entry.Name())
		}
	}

	if len(pdfs) == 0 {
		return "", nil
	}
	if len(pdfs) > 1 {
		printer.Warning("Multiple PDFs found, using %s\n", pdfs[0])
	}
	return filepath.Join(folder, pdfs[0]), nil
}

// ProcessFolder ingests one report folder: locates the PDF, reads its
// metadata sidecar, resolves tags and document type, applies the duplicate
// policy, and uploads. Every exit path is classified in the returned Result;
// the error return is reserved for conditions the caller might branch on.
func (c *Controller) ProcessFolder(ctx context.Context, folder string) Result {
	printer.Bold("\nProcessing: %s\n", filepath.Base(folder))

	pdfPath, err := findPDF(folder)
	if err != nil {
		printer.Failure("%v\n", err)
		return Result{Outcome: OutcomeFailed, Reason: "unreadable_folder"}
	}
	if pdfPath == "" {
		printer.Warning("No PDF file found\n")
		return Result{Outcome: OutcomeFailed, Reason: "no_pdf"}
	}

	baseName := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))

	info, err := os.Stat(pdfPath)
	if err != nil {
		printer.Failure("Failed to stat PDF: %v\n", err)
		return Result{Outcome: OutcomeFailed, Reason: "unreadable_file"}
	}
	if info.Size() == 0 {
		printer.Warning("PDF file is empty (0 bytes), skipping\n")
		slog.Warn("skipping empty PDF file", "path", pdfPath)
		return Result{Outcome: OutcomeSkipped, Reason: "empty_file"}
	}

	jsonPath := filepath.Join(folder, baseName+".json")
	if _, err := os.Stat(jsonPath); err != nil {
		printer.Warning("No metadata JSON found, uploading without metadata\n")
		if c.dryRun {
			return Result{Outcome: OutcomeSkipped, Reason: "dry_run"}
		}
		receipt, err := c.client.UploadDocument(ctx, pngx.UploadRequest{FilePath: pdfPath, Title: baseName})
		if err != nil {
			printer.Failure("Upload failed: %v\n", err)
			return Result{Outcome: OutcomeFailed, Reason: "upload_error"}
		}
		printer.Success("Upload successful\n")
		return Result{Outcome: OutcomeUploaded, Receipt: receipt}
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		printer.Failure("Error reading JSON: %v\n", err)
		return Result{Outcome: OutcomeFailed, Reason: "unreadable_metadata"}
	}
	extracted, err := ExtractMetadata(data)
	if err != nil {
		printer.Failure("Error parsing JSON: %v\n", err)
		return Result{Outcome: OutcomeFailed, Reason: "malformed_metadata"}
	}

	title := extracted.Title
	if extracted.URL != "" {
		title = title + " - " + extracted.URL
	}

	printer.Bold("  Title: ")
	printer.Info("%s\n", extracted.Title)
	printer.Bold("  Date: ")
	printer.Info("%s\n", extracted.CreatedDate)
	printer.Bold("  Type: ")
	printer.Info("%s\n", extracted.TypeSlug)
	printer.Bold("  Tags: ")
	printer.Info("%d tags\n", len(extracted.TagNames))

	if c.dryRun {
		printer.Step("DRY RUN - Would upload with above metadata\n")
		return Result{Outcome: OutcomeSkipped, Reason: "dry_run"}
	}

	documentTypeID := 0
	if extracted.TypeSlug != "" {
		documentTypeID, err = c.client.GetOrCreateDocumentType(ctx, extracted.TypeSlug)
		if err != nil {
			slog.Error("error creating document type", "slug", extracted.TypeSlug, "error", err)
			documentTypeID = 0
		}
	}

	tagIDs := c.resolveTags(ctx, extracted)

	serial := ArchiveSerial(baseName)

	existing, err := c.client.GetDocumentByTitle(ctx, title)
	if err != nil {
		slog.Error("duplicate check failed", "title", title, "error", err)
		printer.Failure("Duplicate check failed: %v\n", err)
		return Result{Outcome: OutcomeFailed, Reason: "duplicate_check_error"}
	}
	if existing != nil {
		switch c.policy {
		case DuplicateSkip:
			printer.Warning("Duplicate found (ID: %d), skipping\n", existing.ID)
			return Result{Outcome: OutcomeSkipped, Reason: "duplicate", DocumentID: existing.ID}

		case DuplicateReplace:
			printer.Warning("Duplicate found (ID: %d), replacing...\n", existing.ID)
			if err := c.client.DeleteDocument(ctx, existing.ID); err != nil {
				printer.Failure("Failed to delete duplicate: %v\n", err)
				return Result{Outcome: OutcomeFailed, Reason: "delete_error", DocumentID: existing.ID}
			}
			printer.Info("    Deleted old document\n")
			if err := c.client.EmptyTrash(ctx); err != nil {
				printer.Failure("Failed to empty trash: %v\n", err)
				return Result{Outcome: OutcomeFailed, Reason: "trash_error", DocumentID: existing.ID}
			}
			printer.Info("    Emptied trash\n")

		case DuplicateUpdateMetadata:
			printer.Warning("Duplicate found (ID: %d), updating metadata...\n", existing.ID)
			fields := map[string]any{
				"tags":         tagIDs,
				"created_date": extracted.CreatedDate,
			}
			if documentTypeID != 0 {
				fields["document_type"] = documentTypeID
			}
			if _, err := c.client.UpdateDocument(ctx, existing.ID, fields); err != nil {
				printer.Failure("Failed to update metadata: %v\n", err)
				slog.Error("error updating document", "id", existing.ID, "error", err)
				return Result{Outcome: OutcomeFailed, Reason: "update_error", DocumentID: existing.ID}
			}
			printer.Success("Metadata updated\n")
			return Result{
				Outcome:    OutcomeUpdated,
				DocumentID: existing.ID,
				Receipt:    &pngx.UploadReceipt{SearchTerm: title, Title: title},
			}
		}
	}

	receipt, err := c.client.UploadDocument(ctx, pngx.UploadRequest{
		FilePath:            pdfPath,
		Title:               title,
		CreatedDate:         extracted.CreatedDate,
		TagIDs:              tagIDs,
		DocumentTypeID:      documentTypeID,
		ArchiveSerialNumber: serial,
	})
	if err != nil {
		printer.Failure("Upload failed: %v\n", err)
		slog.Error("error uploading document", "path", pdfPath, "error", err)
		return Result{Outcome: OutcomeFailed, Reason: "upload_error"}
	}
	printer.Success("Upload successful\n")
	return Result{Outcome: OutcomeUploaded, Receipt: receipt}
}

// resolveTags turns the extracted tag names into server tag IDs, creating
// tags as needed. Actor tags are parented under their group tag, which is in
// turn created under the actor root when missing; the actor inherits the
// group's color. Tag failures are logged and the tag dropped rather than
// failing the document.
func (c *Controller) resolveTags(ctx context.Context, extracted *Extracted) []int {
	var tagIDs []int
	for _, name := range extracted.TagNames {
		opts := pngx.GetOrCreateOptions{}

		if extracted.IsActor(name) {
			opts.Actor = true
			if group := tagid.GroupKey(name); group != "" {
				groupID, color, err := c.ensureGroupTag(ctx, group)
				if err != nil {
					slog.Warn("failed to resolve group tag", "group", group, "actor", name, "error", err)
				} else {
					opts.ParentID = &groupID
					opts.Color = color
					slog.Debug("inheriting color from group tag", "group", group, "color", color)
				}
			}
		}

		id, err := c.client.GetOrCreateTag(ctx, name, opts)
		if err != nil {
			slog.Error("error processing tag", "name", name, "error", err)
			continue
		}
		tagIDs = append(tagIDs, id)
	}
	return tagIDs
}

// ensureGroupTag finds or creates the actor group tag and returns its ID and
// color. A new group tag is created under the actor taxonomy root; when even
// the root is missing the group is created parentless rather than failing.
func (c *Controller) ensureGroupTag(ctx context.Context, group string) (int, string, error) {
	tag, err := c.client.GetTagByName(ctx, group, false)
	if err != nil {
		return 0, "", err
	}
	if tag != nil {
		return tag.ID, tag.Color, nil
	}

	slog.Info("group tag not found, creating under actor root", "group", group)

	var parentID *int
	root, err := c.client.GetTagByID(ctx, c.actorDef.RootID)
	if err != nil {
		return 0, "", err
	}
	if root != nil {
		parentID = &root.ID
	} else {
		named, err := c.client.GetTagByName(ctx, c.actorDef.Name, false)
		if err != nil {
			return 0, "", err
		}
		if named != nil {
			parentID = &named.ID
		} else {
			slog.Warn("actor root tag not found, creating group tag without parent",
				"expected_id", c.actorDef.RootID)
		}
	}

	created, err := c.client.CreateTag(ctx, pngx.TagOptions{
		Name:              group,
		Color:             c.actorDef.ChildColor,
		MatchingAlgorithm: pngx.MatchNone,
		Parent:            parentID,
	})
	if err != nil {
		return 0, "", err
	}
	slog.Info("created group tag", "group", group, "id", created.ID)
	return created.ID, created.Color, nil
}
