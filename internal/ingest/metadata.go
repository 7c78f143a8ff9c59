// Package ingest uploads report folders to the document service. Each folder
// holds one PDF and an optional JSON metadata sidecar describing the report's
// title, type, date, and tag assignments.
package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// flexEntry is a metadata list entry that may be a bare string or an object
// carrying the value under "value" or "name". The feed is not consistent
// about which shape it uses, so both are accepted.
type flexEntry struct {
	Value string
}

func (e *flexEntry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Value = s
		return nil
	}

	var obj struct {
		Value string `json:"value"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("entry must be a string or an object: %w", err)
	}
	if obj.Value != "" {
		e.Value = obj.Value
	} else {
		e.Value = obj.Name
	}
	return nil
}

// rawMetadata is the on-disk shape of a report's JSON sidecar.
type rawMetadata struct {
	Name             string `json:"name"`
	URL              string `json:"url"`
	ShortDescription string `json:"short_description"`
	Type             *struct {
		Slug string `json:"slug"`
	} `json:"type"`
	CreatedDate *json.Number `json:"created_date"`
	Actors      []struct {
		Name string `json:"name"`
	} `json:"actors"`
	TargetIndustries []flexEntry `json:"target_industries"`
	TargetCountries  []flexEntry `json:"target_countries"`
	Motivations      []flexEntry `json:"motivations"`
}

// Extracted holds the fields pulled from a report's metadata sidecar, ready
// for tag resolution and upload.
type Extracted struct {
	Title            string
	URL              string
	Description      string
	TypeSlug         string
	CreatedDate      string // YYYY-MM-DD, empty when absent or unparseable
	CreatedTimestamp int64

	// TagNames lists every tag to assign, in sidecar order. ActorNames marks
	// the subset that came from the actors section and therefore gets actor
	// handling (group parent, literal matching, annotation-aware lookup).
	TagNames   []string
	ActorNames map[string]struct{}
}

// IsActor reports whether the named tag came from the actors section.
func (e *Extracted) IsActor(name string) bool {
	_, ok := e.ActorNames[name]
	return ok
}

// ExtractMetadata parses a report's JSON sidecar. Unknown fields are ignored
// and a bad created_date is logged and dropped rather than failing the whole
// document.
func ExtractMetadata(data []byte) (*Extracted, error) {
	var raw rawMetadata
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	extracted := &Extracted{
		Title:       raw.Name,
		URL:         raw.URL,
		Description: raw.ShortDescription,
		ActorNames:  make(map[string]struct{}),
	}

	if raw.Type != nil {
		extracted.TypeSlug = raw.Type.Slug
	}

	if raw.CreatedDate != nil {
		if ts, err := raw.CreatedDate.Int64(); err == nil {
			extracted.CreatedTimestamp = ts
			extracted.CreatedDate = time.Unix(ts, 0).UTC().Format("2006-01-02")
		} else if f, ferr := raw.CreatedDate.Float64(); ferr == nil {
			extracted.CreatedTimestamp = int64(f)
			extracted.CreatedDate = time.Unix(int64(f), 0).UTC().Format("2006-01-02")
		} else {
			slog.Warn("error parsing created_date", "value", raw.CreatedDate.String(), "error", err)
		}
	}

	for _, actor := range raw.Actors {
		if actor.Name == "" {
			continue
		}
		extracted.TagNames = append(extracted.TagNames, actor.Name)
		extracted.ActorNames[actor.Name] = struct{}{}
	}
	for _, entry := range raw.TargetIndustries {
		if entry.Value != "" {
			extracted.TagNames = append(extracted.TagNames, entry.Value)
		}
	}
	for _, entry := range raw.TargetCountries {
		if entry.Value != "" {
			extracted.TagNames = append(extracted.TagNames, entry.Value)
		}
	}
	for _, entry := range raw.Motivations {
		if entry.Value != "" {
			extracted.TagNames = append(extracted.TagNames, entry.Value)
		}
	}

	return extracted, nil
}
