package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeNote(t *testing.T, dir, id, title, transcript string) {
	t.Helper()
	content := "---\nid: " + id + "\ntitle: " + title + "\n---\n\n## Transcript\n\n" + transcript + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".md"), []byte(content), 0o644))
}

func TestRootHasSubcommands(t *testing.T) {
	root := NewRootCmd()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"index", "search", "stats", "serve", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "murmur")
}

func TestSearchRequiresQuery(t *testing.T) {
	dir := t.TempDir()
	_, err := runCLI(t, "--notes-dir", dir, "search")
	assert.Error(t, err)
}

func TestIndexThenSearch(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "note-1", "Bike repair", "the rear brake cable needs replacing before winter")
	writeNote(t, dir, "note-2", "Dinner plan", "lasagna on Friday with the neighbours")

	out, err := runCLI(t, "--notes-dir", dir, "index")
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 2 of 2 notes")

	out, err = runCLI(t, "--notes-dir", dir, "search", "--keyword", "brake")
	require.NoError(t, err)
	assert.Contains(t, out, "Bike repair")
	assert.NotContains(t, out, "Dinner plan")

	// Semantic search with the transcript text itself pins the right note first.
	out, err = runCLI(t, "--notes-dir", dir,
		"search", "the rear brake cable needs replacing before winter")
	require.NoError(t, err)
	assert.Contains(t, out, "note-1")
}

func TestIndexIsIncrementalAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "note-1", "One", "stable content")

	out, err := runCLI(t, "--notes-dir", dir, "index")
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 1 of 1 notes")

	out, err = runCLI(t, "--notes-dir", dir, "index")
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 0 of 1 notes (1 unchanged)")
}

func TestStatsCommand(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "note-1", "One", "some words to index")

	_, err := runCLI(t, "--notes-dir", dir, "index")
	require.NoError(t, err)

	out, err := runCLI(t, "--notes-dir", dir, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "vector index")
	assert.Contains(t, out, "recordings")
	assert.Contains(t, out, "idle")
}
