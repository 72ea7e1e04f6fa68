package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	SomeField string `json:"some_field"`
}

func TestWriteReadJson(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	written := &testConfig{SomeField: "devlinkd.sock"}
	require.NoError(t, WriteJson(path, written))

	read := &testConfig{}
	_, err := ReadJson(path, read)
	require.NoError(t, err)
	assert.Equal(t, written, read)
}

func TestWriteJsonCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.json")

	require.NoError(t, WriteJson(path, &testConfig{SomeField: "x"}))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestWriteJsonLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	require.NoError(t, WriteJson(path, &testConfig{SomeField: "x"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "config.json", entries[0].Name())
}

func TestReadJsonMissingFile(t *testing.T) {
	_, err := ReadJson(filepath.Join(t.TempDir(), "missing.json"), &testConfig{})
	assert.Error(t, err)
}
