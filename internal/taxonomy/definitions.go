// Package taxonomy synchronizes hierarchical tag taxonomies to the document
// service from CSV reference data. Each taxonomy has a fixed root tag and a
// set of children read from a CSV file; the actor taxonomy adds an
// intermediate grouping tier between root and leaves.
package taxonomy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definition describes one taxonomy: where its reference data lives and how
// its tag hierarchy is rooted and colored.
type Definition struct {
	// Name is the taxonomy identifier and the name of its root tag.
	Name string `yaml:"name"`

	// CSVFile is the reference data file, relative to the data directory.
	CSVFile string `yaml:"csv_file"`

	// RootID is the expected tag ID of the root. Root resolution checks this
	// ID first but falls back to a by-name search, so a service where the
	// root landed on a different ID still works.
	RootID int `yaml:"root_id"`

	// RootColor is used when the root tag has to be created.
	RootColor string `yaml:"root_color"`

	// ChildColor is the color for leaf tags. Grouped taxonomies ignore it;
	// their leaves inherit the group tag's palette color.
	ChildColor string `yaml:"child_color"`

	// Description is shown when the taxonomy is processed.
	Description string `yaml:"description"`

	// Grouped enables the three-tier hierarchy (root, group, leaf) where the
	// group is derived from the last word of each leaf name.
	Grouped bool `yaml:"grouped"`
}

// palette holds the colors assigned to group tags. Groups are colored by
// their index in the sorted group list, modulo the palette length, so the
// same reference data always yields the same colors.
var palette = []string{
	"#ec3838", "#3a86ff", "#d6ad9a", "#855469", "#8cb1a3",
	"#ffbe0b", "#5c0209", "#857263", "#2a9d8f", "#e76f51",
	"#4ebedd", "#06d6a0", "#ef476f", "#ffd60a", "#073b4c",
	"#7a11b2", "#7209b7", "#f72585", "#4361ee", "#3f37c9",
	"#526267", "#7209b7", "#560bad", "#b5179e", "#f72585",
	"#b96806", "#4361ee", "#3a0ca3", "#7209b7", "#10002b",
	"#e0aaff", "#c77dff", "#9d4edd", "#7b2cbf", "#5a189a",
	"#240046", "#10002b", "#ff9e00", "#ff9100", "#ff8500",
	"#ff7900", "#ff6d00", "#06ffa5", "#00f5d4", "#00bbf9",
	"#00f5d4", "#00d9ff", "#00bbf9", "#0077b6", "#023e8a",
}

// GroupColor returns the palette color for the group at the given sorted
// index.
func GroupColor(sortedIndex int) string {
	return palette[sortedIndex%len(palette)]
}

// Defaults returns the built-in taxonomy definitions in processing order.
func Defaults() []Definition {
	return []Definition{
		{
			Name:        "actor",
			CSVFile:     "actors.csv",
			RootID:      5,
			RootColor:   "#dd00ff",
			ChildColor:  "#8338ec",
			Description: "Threat actor names organized by animal type (tier hierarchy: Animal → Individual Actor)",
			Grouped:     true,
		},
		{
			Name:        "motivations",
			CSVFile:     "motivations.csv",
			RootID:      200,
			RootColor:   "#39e67b",
			ChildColor:  "#09a25b",
			Description: "What drives the threat actors",
		},
		{
			Name:        "targeted_countries",
			CSVFile:     "targeted_countries.csv",
			RootID:      310,
			RootColor:   "#f3fb07",
			ChildColor:  "#778307",
			Description: "Geographic regions and countries",
		},
		{
			Name:        "targeted_industries",
			CSVFile:     "targeted_industries.csv",
			RootID:      400,
			RootColor:   "#068bff",
			ChildColor:  "#0540a0",
			Description: "Industry sectors and verticals",
		},
	}
}

// definitionsFile is the on-disk shape of a taxonomy override file.
type definitionsFile struct {
	Taxonomies []Definition `yaml:"taxonomies"`
}

// LoadDefinitions returns the taxonomy definitions, reading an override file
// when path is non-empty. The override file replaces the built-in set
// entirely rather than merging with it.
func LoadDefinitions(path string) ([]Definition, error) {
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy definitions: %w", err)
	}

	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy definitions: %w", err)
	}
	if len(file.Taxonomies) == 0 {
		return nil, fmt.Errorf("taxonomy definitions file %s defines no taxonomies", path)
	}

	seen := make(map[string]bool)
	for i, def := range file.Taxonomies {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("taxonomy %d: %w", i, err)
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("duplicate taxonomy name %q", def.Name)
		}
		seen[def.Name] = true
	}

	return file.Taxonomies, nil
}

// Validate checks that a definition is complete enough to synchronize.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("taxonomy name cannot be empty")
	}
	if strings.TrimSpace(d.CSVFile) == "" {
		return fmt.Errorf("taxonomy %q: csv_file cannot be empty", d.Name)
	}
	if d.RootID <= 0 {
		return fmt.Errorf("taxonomy %q: root_id must be positive", d.Name)
	}
	if d.RootColor == "" {
		return fmt.Errorf("taxonomy %q: root_color cannot be empty", d.Name)
	}
	if !d.Grouped && d.ChildColor == "" {
		return fmt.Errorf("taxonomy %q: child_color cannot be empty", d.Name)
	}
	return nil
}

// Find returns the definition with the given name from defs, or false when
// absent.
func Find(defs []Definition, name string) (Definition, bool) {
	for _, def := range defs {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}
