package refdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadValues(t *testing.T) {
	t.Run("multi-column file with Name header skips header row", func(t *testing.T) {
		path := writeCSV(t, "Name,Region\nEspionage,Global\nCriminal,Global\n")

		values, err := ReadValues(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"Espionage", "Criminal"}, values)
	})

	t.Run("single-column file keeps first row", func(t *testing.T) {
		path := writeCSV(t, "Espionage\nCriminal\nHacktivism\n")

		values, err := ReadValues(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"Espionage", "Criminal", "Hacktivism"}, values)
	})

	t.Run("multi-column without Name header keeps first row", func(t *testing.T) {
		path := writeCSV(t, "Espionage,extra\nCriminal,extra\n")

		values, err := ReadValues(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"Espionage", "Criminal"}, values)
	})

	t.Run("blank and whitespace rows dropped", func(t *testing.T) {
		path := writeCSV(t, "Espionage\n  \nCriminal\n")

		values, err := ReadValues(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"Espionage", "Criminal"}, values)
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeCSV(t, "")

		values, err := ReadValues(path)
		require.NoError(t, err)
		assert.Empty(t, values)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadValues(filepath.Join(t.TempDir(), "absent.csv"))
		assert.Error(t, err)
	})
}

func TestReadActorsByGroup(t *testing.T) {
	t.Run("groups by trailing animal word", func(t *testing.T) {
		path := writeCSV(t, "Name\nMYSTIC UNICORN\nCOSMIC UNICORN\nGOLDEN GRIFFIN\n")

		byGroup, err := ReadActorsByGroup(path)
		require.NoError(t, err)
		require.Len(t, byGroup, 2)
		assert.ElementsMatch(t, []string{"MYSTIC UNICORN", "COSMIC UNICORN"}, byGroup["UNICORN"])
		assert.Equal(t, []string{"GOLDEN GRIFFIN"}, byGroup["GRIFFIN"])
	})

	t.Run("single-token names dropped", func(t *testing.T) {
		path := writeCSV(t, "Name\nUNICORN\nMYSTIC UNICORN\n")

		byGroup, err := ReadActorsByGroup(path)
		require.NoError(t, err)
		require.Len(t, byGroup, 1)
		assert.Equal(t, []string{"MYSTIC UNICORN"}, byGroup["UNICORN"])
	})

	t.Run("annotated actor grouped by base name", func(t *testing.T) {
		path := writeCSV(t, "Name\nHYPER BASALISK (inactive)\n")

		byGroup, err := ReadActorsByGroup(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"HYPER BASALISK (inactive)"}, byGroup["BASALISK"])
	})

	t.Run("header row always skipped", func(t *testing.T) {
		// The first row is treated as a header even in single-column actor
		// files, matching the reference data layout.
		path := writeCSV(t, "ACTOR NAME\nMYSTIC UNICORN\n")

		byGroup, err := ReadActorsByGroup(path)
		require.NoError(t, err)
		require.Len(t, byGroup, 1)
		assert.Equal(t, []string{"MYSTIC UNICORN"}, byGroup["UNICORN"])
	})
}

func TestGroupsFromNames(t *testing.T) {
	groups := GroupsFromNames([]string{
		"MYSTIC UNICORN",
		"COSMIC UNICORN",
		"GOLDEN GRIFFIN",
		"SOLO",
	})
	assert.Len(t, groups, 2)
	assert.Contains(t, groups, "UNICORN")
	assert.Contains(t, groups, "GRIFFIN")
}
