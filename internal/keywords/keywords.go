// Package keywords edits the parenthetical keyword annotations carried on
// actor tag names, e.g. turning "HYPER BASALISK" into
// "HYPER BASALISK (inactive, merged)".
package keywords

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caostack/pngx-cao/internal/pngx"
	"github.com/caostack/pngx-cao/internal/printer"
	"github.com/caostack/pngx-cao/internal/tagid"
)

// ErrTagNotFound is returned when the named tag does not exist on the server,
// even after annotation-aware matching.
var ErrTagNotFound = errors.New("tag not found")

// Change records a rename performed (or previewed, in dry-run mode).
type Change struct {
	OldName string
	NewName string
	TagID   int
}

// Stats counts the outcome of a CSV keyword run.
type Stats struct {
	Updated  int
	Skipped  int
	NotFound int
	Failed   int
}

// Service edits keyword annotations on tags.
type Service struct {
	client *pngx.Client
}

func NewService(client *pngx.Client) *Service {
	return &Service{client: client}
}

// UpdateTagKeywords adds and removes keywords on the named tag. The input
// name may carry its own annotation; only its base is used to locate the tag,
// and the stored tag's own keywords are the starting set. Returns nil when
// the resulting name is identical to the stored one, and ErrTagNotFound when
// the tag does not exist. In dry-run mode the change is computed and shown
// but not applied.
func (s *Service) UpdateTagKeywords(ctx context.Context, tagName string, add, remove []string, dryRun bool) (*Change, error) {
	base, _ := tagid.Parse(tagName)

	tag, err := s.client.GetTagByName(ctx, base, true)
	if err != nil {
		return nil, fmt.Errorf("failed to look up tag %q: %w", base, err)
	}
	if tag == nil {
		return nil, fmt.Errorf("%w: %s", ErrTagNotFound, base)
	}

	currentBase, kw := tagid.Parse(tag.Name)
	for _, k := range add {
		if k = strings.TrimSpace(k); k != "" {
			kw[k] = struct{}{}
		}
	}
	for _, k := range remove {
		delete(kw, strings.TrimSpace(k))
	}

	newName := tagid.Build(currentBase, kw)
	if newName == tag.Name {
		printer.Dim("  No change needed for: %s\n", tag.Name)
		return nil, nil
	}

	printer.Info("  %s → %s\n", tag.Name, newName)

	if !dryRun {
		if _, err := s.client.UpdateTag(ctx, tag.ID, map[string]any{"name": newName}); err != nil {
			return nil, fmt.Errorf("failed to rename tag %d: %w", tag.ID, err)
		}
		printer.Success("Updated tag ID %d\n", tag.ID)
	}

	return &Change{OldName: tag.Name, NewName: newName, TagID: tag.ID}, nil
}

// AddFromCSV adds keywords to many tags from a CSV file with Name and
// Keywords columns. Rows with an empty name or no keywords are skipped;
// missing tags and update failures are counted per row without stopping the
// run.
func (s *Service) AddFromCSV(ctx context.Context, path string, dryRun bool) (Stats, error) {
	printer.Header("\nProcessing keywords from CSV: %s\n", path)

	var stats Stats

	f, err := os.Open(path)
	if err != nil {
		return stats, fmt.Errorf("failed to read CSV file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		printer.Warning("No rows found in CSV file\n")
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("failed to read CSV file: %w", err)
	}

	nameCol, keywordsCol := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case "Name":
			nameCol = i
		case "Keywords":
			keywordsCol = i
		}
	}
	if nameCol < 0 || keywordsCol < 0 {
		return stats, fmt.Errorf("CSV file must have Name and Keywords columns")
	}

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read CSV file: %w", err)
		}
		rows++

		var name, keywordsField string
		if nameCol < len(record) {
			name = strings.TrimSpace(record[nameCol])
		}
		if keywordsCol < len(record) {
			keywordsField = strings.TrimSpace(record[keywordsCol])
		}

		if name == "" {
			printer.Warning("Skipping row with empty Name\n")
			stats.Skipped++
			continue
		}
		if keywordsField == "" {
			printer.Warning("Skipping %s: no keywords specified\n", name)
			stats.Skipped++
			continue
		}

		var toAdd []string
		for _, k := range strings.Split(keywordsField, ",") {
			if k = strings.TrimSpace(k); k != "" {
				toAdd = append(toAdd, k)
			}
		}

		change, err := s.UpdateTagKeywords(ctx, name, toAdd, nil, dryRun)
		switch {
		case errors.Is(err, ErrTagNotFound):
			slog.Error("tag not found", "name", name)
			stats.NotFound++
		case err != nil:
			slog.Error("failed to update tag keywords", "name", name, "error", err)
			stats.Failed++
		case change != nil:
			stats.Updated++
		default:
			stats.Skipped++
		}
	}

	if rows == 0 {
		printer.Warning("No rows found in CSV file\n")
	}

	return stats, nil
}
