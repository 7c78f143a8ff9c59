package tagid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no annotation",
			input:    "HYPER BASALISK",
			expected: "HYPER BASALISK",
		},
		{
			name:     "single keyword",
			input:    "HYPER BASALISK (inactive)",
			expected: "HYPER BASALISK",
		},
		{
			name:     "no space before parenthesis",
			input:    "HYPER BASALISK(inactive)",
			expected: "HYPER BASALISK",
		},
		{
			name:     "multiple keywords",
			input:    "HYPER BASALISK (inactive, merged)",
			expected: "HYPER BASALISK",
		},
		{
			name:     "surrounding whitespace",
			input:    "  HYPER BASALISK  ",
			expected: "HYPER BASALISK",
		},
		{
			name:     "country with literal parentheses still stripped",
			input:    "Falkland Islands(Malvinas)",
			expected: "Falkland Islands",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"HYPER BASALISK (inactive)",
		"MYSTIC UNICORN",
		"  padded  ",
	}
	for _, input := range inputs {
		once := Normalize(input)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		expectedBase string
		expectedKWs  []string
	}{
		{
			name:         "no keywords",
			input:        "HYPER BASALISK",
			expectedBase: "HYPER BASALISK",
		},
		{
			name:         "one keyword",
			input:        "HYPER BASALISK (inactive)",
			expectedBase: "HYPER BASALISK",
			expectedKWs:  []string{"inactive"},
		},
		{
			name:         "multiple keywords with spaces",
			input:        "HYPER BASALISK (inactive,  merged )",
			expectedBase: "HYPER BASALISK",
			expectedKWs:  []string{"inactive", "merged"},
		},
		{
			name:         "empty entries dropped",
			input:        "HYPER BASALISK (inactive,, ,merged)",
			expectedBase: "HYPER BASALISK",
			expectedKWs:  []string{"inactive", "merged"},
		},
		{
			name:         "only first group considered",
			input:        "HYPER BASALISK (inactive) (merged)",
			expectedBase: "HYPER BASALISK",
			expectedKWs:  []string{"inactive"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, kws := Parse(tt.input)
			assert.Equal(t, tt.expectedBase, base)
			require.Len(t, kws, len(tt.expectedKWs))
			for _, kw := range tt.expectedKWs {
				assert.Contains(t, kws, kw)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	t.Run("empty set yields bare base", func(t *testing.T) {
		assert.Equal(t, "HYPER BASALISK", Build("HYPER BASALISK", nil))
		assert.Equal(t, "HYPER BASALISK", Build("HYPER BASALISK", map[string]struct{}{}))
	})

	t.Run("keywords sorted ascending", func(t *testing.T) {
		kws := map[string]struct{}{
			"merged":   {},
			"inactive": {},
			"archived": {},
		}
		assert.Equal(t, "HYPER BASALISK (archived, inactive, merged)", Build("HYPER BASALISK", kws))
	})
}

func TestParseBuildRoundTrip(t *testing.T) {
	names := []string{
		"HYPER BASALISK",
		"HYPER BASALISK (inactive)",
		"HYPER BASALISK (inactive, merged)",
	}
	for _, name := range names {
		base, kws := Parse(name)
		assert.Equal(t, name, Build(base, kws))
	}
}

func TestMatchIndex(t *testing.T) {
	candidates := []string{
		"MOTIVATIONS",
		"HYPER BASALISK (inactive, merged)",
		"Falkland Islands(Malvinas)",
		"MYSTIC UNICORN",
	}

	tests := []struct {
		name           string
		requested      string
		annotationMode bool
		expected       int
	}{
		{
			name:           "exact match case-insensitive",
			requested:      "mystic unicorn",
			annotationMode: false,
			expected:       3,
		},
		{
			name:           "annotated tag found by base name",
			requested:      "HYPER BASALISK",
			annotationMode: true,
			expected:       1,
		},
		{
			name:           "base-name fallback disabled without annotation mode",
			requested:      "HYPER BASALISK",
			annotationMode: false,
			expected:       -1,
		},
		{
			name:           "country parentheses require exact match",
			requested:      "Falkland Islands(Malvinas)",
			annotationMode: false,
			expected:       2,
		},
		{
			name:           "no match",
			requested:      "COSMIC DRAGON",
			annotationMode: true,
			expected:       -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MatchIndex(tt.requested, candidates, tt.annotationMode))
		})
	}
}

func TestGroupKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "two word actor",
			input:    "MYSTIC UNICORN",
			expected: "UNICORN",
		},
		{
			name:     "three word actor",
			input:    "COSMIC GOLDEN GRIFFIN",
			expected: "GRIFFIN",
		},
		{
			name:     "annotation ignored",
			input:    "HYPER BASALISK (inactive)",
			expected: "BASALISK",
		},
		{
			name:     "lower case normalized",
			input:    "mystic unicorn",
			expected: "UNICORN",
		},
		{
			name:     "single word has no group",
			input:    "UNICORN",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GroupKey(tt.input))
		})
	}
}
