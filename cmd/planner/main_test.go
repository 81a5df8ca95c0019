package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--color=false"))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestParseCommand(t *testing.T) {
	t.Setenv("SEED_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	path := filepath.Join(t.TempDir(), "stats.txt")
	require.NoError(t, os.WriteFile(path, []byte("Troop Attack 150%\nTroop Attack Blessing 12%"), 0o644))

	out := run(t, "parse", path)
	assert.Contains(t, out, "150%")
	assert.Contains(t, out, "12%")
	assert.Contains(t, out, "Found 2 of 22 attributes")
}

func TestScoreCommand(t *testing.T) {
	t.Setenv("SEED_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	path := filepath.Join(t.TempDir(), "stats.txt")
	require.NoError(t, os.WriteFile(path, []byte("Troop Attack 10000\nTroop Attack Blessing 1"), 0o644))

	out := run(t, "score", path, "--role", "cavalry", "--multiplier", "2")
	assert.Contains(t, out, "attack sum (cavalry)")
	assert.Contains(t, out, "1.2")
}

func TestKPTCommand(t *testing.T) {
	out := run(t, "kpt", "--kills", "300", "--losses", "50", "--wounded", "40", "--survivors", "10")
	assert.Equal(t, "3\n", out)
}

func TestIsImage(t *testing.T) {
	assert.True(t, isImage("shot.PNG"))
	assert.True(t, isImage("a/b.jpeg"))
	assert.False(t, isImage("stats.txt"))
}
