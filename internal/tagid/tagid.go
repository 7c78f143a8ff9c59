// Package tagid resolves the logical identity of a tag whose stored name may
// carry keyword annotations in a trailing parenthesis group, such as
// "HYPER BASALISK (inactive, merged)". The base name is the identity; the
// annotations are orthogonal status markers.
//
// Annotation handling is opt-in. Reference data like country names can contain
// literal parentheses ("Falkland Islands(Malvinas)") that must never be
// stripped, so every entry point takes an explicit annotation-aware flag or is
// documented as actor-only.
package tagid

import (
	"sort"
	"strings"
)

// Normalize strips the annotation suffix from a tag name: everything from the
// first opening parenthesis onward is removed and surrounding whitespace is
// trimmed. Names without parentheses are returned trimmed. Normalize is
// idempotent.
func Normalize(name string) string {
	if i := strings.IndexByte(name, '('); i >= 0 {
		return strings.TrimSpace(name[:i])
	}
	return strings.TrimSpace(name)
}

// Parse splits a tag name into its base name and the set of keywords held in
// the first parenthesis group. Keywords are comma-separated; entries are
// trimmed and empty entries dropped. Anything after the first group is
// discarded, consistent with Normalize.
func Parse(name string) (string, map[string]struct{}) {
	keywords := make(map[string]struct{})

	i := strings.IndexByte(name, '(')
	if i < 0 {
		return strings.TrimSpace(name), keywords
	}

	base := strings.TrimSpace(name[:i])

	rest := name[i+1:]
	if j := strings.IndexByte(rest, ')'); j >= 0 {
		rest = rest[:j]
	}
	for _, kw := range strings.Split(rest, ",") {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			keywords[kw] = struct{}{}
		}
	}

	return base, keywords
}

// Build assembles a tag name from a base name and a keyword set. Keywords are
// listed in ascending lexical order inside a single trailing parenthesis
// group, so the output is deterministic regardless of insertion order. An
// empty set yields the bare base name.
func Build(base string, keywords map[string]struct{}) string {
	if len(keywords) == 0 {
		return base
	}

	sorted := make([]string, 0, len(keywords))
	for kw := range keywords {
		sorted = append(sorted, kw)
	}
	sort.Strings(sorted)

	return base + " (" + strings.Join(sorted, ", ") + ")"
}

// MatchIndex finds the candidate that carries the same logical identity as the
// requested name. It first looks for an exact case-insensitive match. If none
// exists and annotationAware is true, it compares normalized upper-cased forms
// so that "HYPER BASALISK" still resolves against "HYPER BASALISK (inactive)".
// Returns the index of the first match, or -1.
//
// annotationAware must stay false for taxonomies where parentheses are part of
// the literal name (countries, industries, motivations, group parents).
func MatchIndex(requested string, candidates []string, annotationAware bool) int {
	for i, c := range candidates {
		if strings.EqualFold(requested, c) {
			return i
		}
	}

	if !annotationAware {
		return -1
	}

	want := strings.ToUpper(Normalize(requested))
	for i, c := range candidates {
		if strings.ToUpper(Normalize(c)) == want {
			return i
		}
	}
	return -1
}

// GroupKey derives the group a name belongs to: the last whitespace-delimited
// token of its normalized form, upper-cased. Single-token names have no group
// and yield "".
func GroupKey(name string) string {
	parts := strings.Fields(Normalize(name))
	if len(parts) < 2 {
		return ""
	}
	return strings.ToUpper(parts[len(parts)-1])
}
