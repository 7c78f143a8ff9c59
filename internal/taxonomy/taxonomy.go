package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/caostack/pngx-cao/internal/pngx"
	"github.com/caostack/pngx-cao/internal/printer"
	"github.com/caostack/pngx-cao/internal/refdata"
)

// Stats counts the outcome of a synchronization run.
type Stats struct {
	Created int
	Skipped int
	Failed  int
	Total   int
}

func (s *Stats) add(other Stats) {
	s.Created += other.Created
	s.Skipped += other.Skipped
	s.Failed += other.Failed
	s.Total += other.Total
}

// Service creates and synchronizes taxonomy tag hierarchies.
type Service struct {
	client *pngx.Client
	defs   []Definition
}

// NewService returns a service using the given definitions. Pass
// Defaults() unless an override file is in play.
func NewService(client *pngx.Client, defs []Definition) *Service {
	return &Service{client: client, defs: defs}
}

// Definitions returns the definitions this service synchronizes.
func (s *Service) Definitions() []Definition {
	return s.defs
}

// EnsureRoot resolves the taxonomy's root tag, creating it when absent, and
// returns its ID. Resolution order: the configured ID (accepted only when the
// stored name matches), then a by-name search, then creation. The root is
// created with no matching rule so it never auto-assigns to documents.
func (s *Service) EnsureRoot(ctx context.Context, def Definition) (int, error) {
	tag, err := s.client.GetTagByID(ctx, def.RootID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up root tag %d: %w", def.RootID, err)
	}
	if tag != nil && strings.EqualFold(tag.Name, def.Name) {
		printer.Success("Root tag '%s' found with ID %d\n", def.Name, tag.ID)
		return tag.ID, nil
	}

	tag, err = s.client.GetTagByName(ctx, def.Name, false)
	if err != nil {
		return 0, fmt.Errorf("failed to search for root tag %q: %w", def.Name, err)
	}
	if tag != nil {
		printer.Success("Root tag '%s' found with ID %d\n", def.Name, tag.ID)
		return tag.ID, nil
	}

	printer.Info("  Creating root tag '%s'...\n", def.Name)
	created, err := s.client.CreateTag(ctx, pngx.TagOptions{
		Name:              def.Name,
		Color:             def.RootColor,
		MatchingAlgorithm: pngx.MatchNone,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create root tag %q: %w", def.Name, err)
	}
	printer.Success("Created root tag '%s' (ID: %d)\n", def.Name, created.ID)
	return created.ID, nil
}

// SyncFlat synchronizes a two-tier taxonomy: every CSV value becomes a child
// of the root tag. Existing tags (matched by upper-cased name against the
// pre-fetched index) are skipped; creation failures are counted and logged
// but do not stop the run.
func (s *Service) SyncFlat(ctx context.Context, def Definition, dataDir string, existing map[string]pngx.Tag) Stats {
	printer.Header("\nProcessing taxonomy: %s\n", def.Name)
	printer.Dim("%s\n", def.Description)

	rootID, err := s.EnsureRoot(ctx, def)
	if err != nil {
		printer.Failure("Failed to resolve root tag for '%s': %v\n", def.Name, err)
		return Stats{}
	}

	csvPath := filepath.Join(dataDir, def.CSVFile)
	if _, err := os.Stat(csvPath); err != nil {
		printer.Failure("CSV file not found: %s\n", csvPath)
		return Stats{}
	}

	values, err := refdata.ReadValues(csvPath)
	if err != nil {
		printer.Failure("Failed to read %s: %v\n", csvPath, err)
		return Stats{}
	}
	if len(values) == 0 {
		printer.Warning("No values found in CSV\n")
		return Stats{}
	}
	printer.Info("  Found %d values in CSV\n", len(values))

	stats := Stats{Total: len(values)}
	for _, value := range values {
		if _, ok := existing[strings.ToUpper(value)]; ok {
			stats.Skipped++
			continue
		}

		_, err := s.client.CreateTag(ctx, pngx.TagOptions{
			Name:              value,
			Color:             def.ChildColor,
			MatchingAlgorithm: pngx.MatchLiteral,
			Parent:            &rootID,
			Match:             value,
		})
		if err != nil {
			slog.Error("failed to create tag", "name", value, "error", err)
			stats.Failed++
			continue
		}
		stats.Created++
	}

	return stats
}

// SyncGrouped synchronizes a three-tier taxonomy: CSV values are grouped by
// their trailing word, each group becomes a tag under the root, and each
// value becomes a leaf under its group. A group's leaves inherit the group's
// palette color; a failed group creation skips that group's leaves but not
// the other groups.
func (s *Service) SyncGrouped(ctx context.Context, def Definition, dataDir string, existing map[string]pngx.Tag) Stats {
	printer.Header("\nProcessing taxonomy: %s\n", def.Name)
	printer.Dim("%s\n", def.Description)

	rootID, err := s.EnsureRoot(ctx, def)
	if err != nil {
		printer.Failure("Failed to resolve root tag for '%s': %v\n", def.Name, err)
		return Stats{}
	}

	csvPath := filepath.Join(dataDir, def.CSVFile)
	if _, err := os.Stat(csvPath); err != nil {
		printer.Failure("CSV file not found: %s\n", csvPath)
		return Stats{}
	}

	byGroup, err := refdata.ReadActorsByGroup(csvPath)
	if err != nil {
		printer.Failure("Failed to read %s: %v\n", csvPath, err)
		return Stats{}
	}
	if len(byGroup) == 0 {
		printer.Warning("No actors found in CSV\n")
		return Stats{}
	}

	leafCount := 0
	for _, members := range byGroup {
		leafCount += len(members)
	}
	printer.Info("  Found %d actors in %d animal groups\n", leafCount, len(byGroup))

	groups := make([]string, 0, len(byGroup))
	for group := range byGroup {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	stats := Stats{Total: len(byGroup) + leafCount}
	for idx, group := range groups {
		groupColor := GroupColor(idx)

		var groupID int
		if tag, ok := existing[strings.ToUpper(group)]; ok {
			groupID = tag.ID
			stats.Skipped++
		} else {
			created, err := s.client.CreateTag(ctx, pngx.TagOptions{
				Name:              group,
				Color:             groupColor,
				MatchingAlgorithm: pngx.MatchLiteral,
				Parent:            &rootID,
				Match:             group,
			})
			if err != nil {
				slog.Error("failed to create group tag", "name", group, "error", err)
				stats.Failed++
				continue
			}
			groupID = created.ID
			stats.Created++
		}

		members := append([]string(nil), byGroup[group]...)
		sort.Strings(members)
		for _, member := range members {
			if _, ok := existing[strings.ToUpper(member)]; ok {
				stats.Skipped++
				continue
			}

			_, err := s.client.CreateTag(ctx, pngx.TagOptions{
				Name:              member,
				Color:             groupColor,
				MatchingAlgorithm: pngx.MatchLiteral,
				Parent:            &groupID,
				Match:             member,
			})
			if err != nil {
				slog.Error("failed to create actor tag", "name", member, "error", err)
				stats.Failed++
				continue
			}
			stats.Created++
		}
	}

	return stats
}

// SyncAll synchronizes either one named taxonomy or all of them, fetching the
// existing tag index once up front. An unknown filter yields zero stats.
func (s *Service) SyncAll(ctx context.Context, filter string, dataDir string) (Stats, error) {
	printer.Bold("\nFetching existing tags...\n")
	existing, err := s.client.ListAllTags(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to fetch existing tags: %w", err)
	}
	printer.Info("Found %d existing tags\n", len(existing))

	var toProcess []Definition
	if filter == "all" || filter == "" {
		toProcess = s.defs
	} else if def, ok := Find(s.defs, filter); ok {
		toProcess = []Definition{def}
	} else {
		names := make([]string, len(s.defs))
		for i, def := range s.defs {
			names[i] = def.Name
		}
		printer.Failure("Unknown taxonomy '%s'. Choose from: %s, all\n", filter, strings.Join(names, ", "))
		return Stats{}, nil
	}

	var overall Stats
	for _, def := range toProcess {
		var stats Stats
		if def.Grouped {
			stats = s.SyncGrouped(ctx, def, dataDir, existing)
		} else {
			stats = s.SyncFlat(ctx, def, dataDir, existing)
		}
		overall.add(stats)

		printer.Info("  Created: %d | Skipped: %d | Failed: %d\n", stats.Created, stats.Skipped, stats.Failed)
	}

	return overall, nil
}
