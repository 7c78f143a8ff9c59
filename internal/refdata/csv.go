// Package refdata reads the CSV reference files that drive taxonomy creation.
package refdata

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/caostack/pngx-cao/internal/tagid"
)

// ReadValues reads tag values from the first column of a CSV file.
//
// Two layouts are supported: a multi-column file whose header names a "Name"
// column (the header row is skipped), and a plain single-column list where
// every row, including the first, is data.
func ReadValues(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var values []string

	header := records[0]
	hasHeader := len(header) > 1 && strings.Contains(header[0], "Name")
	if !hasHeader {
		if v := strings.TrimSpace(header[0]); v != "" {
			values = append(values, v)
		}
	}

	for _, row := range records[1:] {
		if len(row) == 0 {
			continue
		}
		if v := strings.TrimSpace(row[0]); v != "" {
			values = append(values, v)
		}
	}

	return values, nil
}

// ReadActorsByGroup reads actor names from a CSV file (header skipped) and
// groups them by their group key, the upper-cased last token of the name.
// Single-token names carry no group and are dropped.
func ReadActorsByGroup(path string) (map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file %s: %w", path, err)
	}

	byGroup := make(map[string][]string)
	for i, row := range records {
		if i == 0 || len(row) == 0 {
			continue // header
		}
		name := strings.TrimSpace(row[0])
		if name == "" {
			continue
		}
		group := tagid.GroupKey(name)
		if group == "" {
			continue
		}
		byGroup[group] = append(byGroup[group], name)
	}

	return byGroup, nil
}

// GroupsFromNames extracts the set of group keys present in a list of tag
// names. Names without a derivable group are ignored.
func GroupsFromNames(names []string) map[string]struct{} {
	groups := make(map[string]struct{})
	for _, name := range names {
		if g := tagid.GroupKey(name); g != "" {
			groups[g] = struct{}{}
		}
	}
	return groups
}
