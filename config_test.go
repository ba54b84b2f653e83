package hnswdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marekgalovic/hnswdb/index"
	"github.com/marekgalovic/hnswdb/index/space"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "hnswdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
name: glove
dimension: 100
space: cosine
m: 12
efConstruction: 300
ef: 50
keepPruned: false
seed: 7
loadMode: mapped
`)
	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "glove", config.Name)
	assert.Equal(t, 100, config.Dimension)
	assert.Equal(t, space.CosineKind, config.SpaceKind())
	assert.Equal(t, index.LoadMapped, config.IndexLoadMode())
	assert.Equal(t, 12, config.M)
	assert.False(t, config.KeepPruned)
	assert.Equal(t, "index", config.Basename)
	assert.Equal(t, "Heuristic", config.Algorithm)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, os.IsNotExist(err))

	_, err = LoadConfig(writeConfig(t, "dimension: 4\nunknownField: 1\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "space: cosine\n"))
	assert.ErrorIs(t, err, index.ErrInvalidConfig)

	_, err = LoadConfig(writeConfig(t, "dimension: 4\nspace: hamming\n"))
	assert.ErrorIs(t, err, index.ErrInvalidConfig)

	_, err = LoadConfig(writeConfig(t, "dimension: 4\nalgorithm: random\n"))
	assert.ErrorIs(t, err, index.ErrInvalidConfig)

	_, err = LoadConfig(writeConfig(t, "dimension: 4\nloadMode: lazy\n"))
	assert.ErrorIs(t, err, index.ErrInvalidConfig)
}

func TestConfigIndexOptions(t *testing.T) {
	config := NewConfig()
	config.Dimension = 8
	config.M = 6
	config.Ef = 40
	config.Seed = 1
	config.MaxElements = 3
	require.NoError(t, config.Validate())

	idx, err := index.NewHnsw[float32](config.Dimension, space.NewEuclidean[float32](), config.IndexOptions()...)
	require.NoError(t, err)
	defer idx.Close()

	assert.Contains(t, idx.String(), "m: 6")
	assert.Contains(t, idx.String(), "ef: 40")
	assert.Contains(t, idx.String(), "mMax0: 12")

	for i := 0; i < 3; i++ {
		_, err := idx.Insert(make([]float32, 8), uint64(i))
		require.NoError(t, err)
	}
	_, err = idx.Insert(make([]float32, 8), 3)
	assert.ErrorIs(t, err, index.ErrCapacityExceeded)
}
