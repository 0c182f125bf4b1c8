package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	testDir := t.TempDir()

	c1, err := ReadOrCreate(testDir)
	assert.NoError(t, err)
	assert.NotNil(t, c1)
	assert.Equal(t, Default(), c1)

	c1.Workers = 2
	c1.IndexBin = "/opt/fast-mlst/main"
	c1.Format = FormatYAML

	err = Save(testDir, c1)
	assert.NoError(t, err)

	c2, err := ReadOrCreate(testDir)
	assert.NoError(t, err)
	assert.NotNil(t, c2)
	assert.Equal(t, c1.Workers, c2.Workers)
	assert.Equal(t, c1.IndexBin, c2.IndexBin)
	assert.Equal(t, c1.Format, c2.Format)
	assert.Equal(t, c1.BinSize, c2.BinSize)
}

func TestReadOrCreate_PartialFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte("workers: 4\nformat: yml\n"), 0600))

	c, err := ReadOrCreate(dir)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Workers)
	assert.Equal(t, FormatYAML, c.Format)
	assert.Equal(t, Default().IndexBin, c.IndexBin)
	assert.Equal(t, Default().BinSize, c.BinSize)
}

func TestReadOrCreate_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "workers: [\n"},
		{"negative workers", "workers: -1\n"},
		{"bad bin size", "bin_size: 2\n"},
		{"tiny bin size", "bin_size: 0.00000000001\n"},
		{"bad format", "format: xml\n"},
		{"empty bin", "index_bin: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(tt.content), 0600))
			_, err := ReadOrCreate(dir)
			assert.Error(t, err)
		})
	}
}

func TestReadOrCreate_EmptyDir(t *testing.T) {
	_, err := ReadOrCreate("")
	assert.Error(t, err)
	assert.Error(t, Save("", Default()))
	assert.Error(t, Save(t.TempDir(), nil))
}

func TestGetOrCreateHomeDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	dir, created, err := GetOrCreateHomeDir("belong-test")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, ".belong-test", filepath.Base(dir))

	_, created, err = GetOrCreateHomeDir(".belong-test")
	require.NoError(t, err)
	assert.False(t, created)

	_, _, err = GetOrCreateHomeDir("")
	assert.Error(t, err)
}
