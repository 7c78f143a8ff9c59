package taxonomy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/caostack/pngx-cao/internal/pngx"
)

// RemoteCount describes how one taxonomy is populated on the server.
type RemoteCount struct {
	Taxonomy string
	Count    int
	Samples  []string
}

// RemoteStatus fetches every tag from the server and categorizes them by
// taxonomy, following parent links up to each taxonomy's root. Tags that
// belong to no known taxonomy are counted separately. Returns the per-taxonomy
// counts in definition order, the uncategorized count, and the total.
func (s *Service) RemoteStatus(ctx context.Context) ([]RemoteCount, int, int, error) {
	all, err := s.client.ListAllTags(ctx)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to fetch tags from server: %w", err)
	}

	byID := make(map[int]pngx.Tag, len(all))
	for _, tag := range all {
		byID[tag.ID] = tag
	}

	rootNames := make(map[string]string)
	for _, def := range s.defs {
		for _, variant := range nameVariants(def.Name) {
			rootNames[variant] = def.Name
		}
	}

	counts := make(map[string][]string)
	uncategorized := 0

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tag := all[name]
		taxonomy := categorize(tag, byID, rootNames)
		if taxonomy == "" {
			uncategorized++
			continue
		}
		counts[taxonomy] = append(counts[taxonomy], tag.Name)
	}

	result := make([]RemoteCount, 0, len(s.defs))
	for _, def := range s.defs {
		tags := counts[def.Name]
		samples := tags
		if len(samples) > 3 {
			samples = samples[:3]
		}
		result = append(result, RemoteCount{
			Taxonomy: def.Name,
			Count:    len(tags),
			Samples:  samples,
		})
	}

	return result, uncategorized, len(all), nil
}

// categorize walks the tag's ancestry until it reaches a taxonomy root or
// runs out of parents. The tag itself may be the root. A cycle guard bounds
// the walk in case the server ever returns inconsistent parent links.
func categorize(tag pngx.Tag, byID map[int]pngx.Tag, rootNames map[string]string) string {
	if name, ok := rootNames[strings.ToUpper(tag.Name)]; ok {
		return name
	}

	seen := make(map[int]bool)
	current := tag
	for current.Parent != nil {
		parent, ok := byID[*current.Parent]
		if !ok || seen[parent.ID] {
			return ""
		}
		seen[parent.ID] = true
		if name, ok := rootNames[strings.ToUpper(parent.Name)]; ok {
			return name
		}
		current = parent
	}
	return ""
}

// nameVariants returns the upper-cased spellings a taxonomy root may carry on
// the server: the name itself plus underscores and spaces swapped, so
// "targeted_countries" also matches a root tag named "TARGETED COUNTRIES".
func nameVariants(name string) []string {
	upper := strings.ToUpper(name)
	variants := []string{upper}
	if spaced := strings.ReplaceAll(upper, "_", " "); spaced != upper {
		variants = append(variants, spaced)
	}
	if scored := strings.ReplaceAll(upper, " ", "_"); scored != upper {
		variants = append(variants, scored)
	}
	return variants
}
