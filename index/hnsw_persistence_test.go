package index

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marekgalovic/hnswdb/index/space"
	"github.com/marekgalovic/hnswdb/math"
	"github.com/marekgalovic/hnswdb/storage"
)

func hnswIsSame[T space.Element](a, b *Hnsw[T]) error {
	if a.Len() != b.Len() {
		return errors.New("Length missmatch")
	}
	if a.dim != b.dim {
		return errors.New("Dimension missmatch")
	}
	if a.config.String() != b.config.String() {
		return errors.New("Config missmatch")
	}
	if a.getEntrypoint().id != b.getEntrypoint().id {
		return errors.New("Entrypoint missmatch")
	}

	for id := uint64(0); id < uint64(a.Len()); id++ {
		vertex, otherVertex := a.vertex(id), b.vertex(id)
		if otherVertex == nil {
			return errors.New("Other vertex does not exist")
		}
		if vertex.externalId != otherVertex.externalId {
			return errors.New("Other vertex external id does not match")
		}
		if vertex.level != otherVertex.level {
			return errors.New("Other vertex level does not match")
		}

		vector, otherVector := a.points.Get(id), b.points.Get(id)
		if len(vector) != len(otherVector) {
			return errors.New("Other vertex vector size does not match")
		}
		for j := range vector {
			if vector[j] != otherVector[j] {
				return errors.New("Other vector value does not match")
			}
		}

		for l := 0; l <= vertex.level; l++ {
			edges, _ := vertex.getEdges(l)
			otherEdges, _ := otherVertex.getEdges(l)
			if len(edges) != len(otherEdges) {
				return errors.New("Edges count does not match")
			}
			for j := range edges {
				if edges[j] != otherEdges[j] {
					return errors.New("Edge does not match")
				}
			}
		}
	}
	return nil
}

func buildTestIndex(t *testing.T, n int, options ...HnswOption) (*Hnsw[float32], [][]float32) {
	index := newTestHnsw(t, DIM, options...)
	vectors := randomVectors(100, n, DIM)
	insertAll(t, index, vectors)
	return index, vectors
}

func assertSameSearchResults(t *testing.T, expected, actual *Hnsw[float32]) {
	for _, query := range randomVectors(101, 20, DIM) {
		a, err := expected.Search(context.Background(), query, 10, 50)
		require.NoError(t, err)
		b, err := actual.Search(context.Background(), query, 10, 50)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestHnswFileDumpLoad(t *testing.T) {
	index, _ := buildTestIndex(t, 500)

	modes := []LoadMode{LoadResident, LoadAuto}
	if storage.CanMap() {
		modes = append(modes, LoadMapped)
	}
	for _, compress := range []bool{false, true} {
		dir := t.TempDir()
		basename, err := index.FileDumpWithOptions(DumpFull, dir, "index", DumpOptions{CompressGraph: compress})
		require.NoError(t, err)
		assert.Equal(t, "index", basename)
		assert.FileExists(t, GraphPath(dir, "index"))
		assert.FileExists(t, DataPath(dir, "index"))

		for _, mode := range modes {
			t.Run(mode.String(), func(t *testing.T) {
				loaded, err := Load[float32](dir, "index", LoadOptions[float32]{Mode: mode})
				require.NoError(t, err)
				defer loaded.Close()

				assert.NoError(t, hnswIsSame(index, loaded))
				assert.NoError(t, loaded.CheckInvariants())
				assertSameSearchResults(t, index, loaded)

				if mode != LoadAuto {
					_, mapped := loaded.points.Mapped()
					assert.Equal(t, mode == LoadMapped, mapped)
				}
			})
		}
	}
}

func TestHnswGraphStreamHeader(t *testing.T) {
	index, _ := buildTestIndex(t, 10)
	dir := t.TempDir()

	_, err := index.FileDump(DumpFull, dir, "plain")
	require.NoError(t, err)
	_, err = index.FileDumpWithOptions(DumpFull, dir, "compressed", DumpOptions{CompressGraph: true})
	require.NoError(t, err)

	plain, err := os.ReadFile(GraphPath(dir, "plain"))
	require.NoError(t, err)
	assert.Equal(t, "HNSWGRPH", string(plain[:8]))
	assert.Equal(t, GraphVersion, binary.BigEndian.Uint32(plain[8:]))
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(plain[12:]))
	assert.Equal(t, uint32(DIM), binary.BigEndian.Uint32(plain[16:]))
	assert.Equal(t, uint8(space.EuclideanKind), plain[20])
	assert.Equal(t, uint8(space.Float32Element), plain[21])

	compressed, err := os.ReadFile(GraphPath(dir, "compressed"))
	require.NoError(t, err)
	assert.Equal(t, "HNSWGRPH", string(compressed[:8]))
	assert.Equal(t, graphFlagZstd, binary.BigEndian.Uint32(compressed[12:]))
}

func TestHnswLoadedIndexAcceptsInserts(t *testing.T) {
	index, vectors := buildTestIndex(t, 200)
	dir := t.TempDir()
	_, err := index.FileDump(DumpFull, dir, "index")
	require.NoError(t, err)

	mode := LoadResident
	if storage.CanMap() {
		mode = LoadMapped
	}
	loaded, err := Load[float32](dir, "index", LoadOptions[float32]{Mode: mode})
	require.NoError(t, err)
	defer loaded.Close()

	extra := randomVectors(102, 100, DIM)
	for i, vec := range extra {
		id, err := loaded.Insert(vec, uint64(len(vectors)+i))
		require.NoError(t, err)
		assert.Equal(t, uint64(len(vectors)+i), id)
	}
	assert.Equal(t, 300, loaded.Len())
	assert.NoError(t, loaded.CheckInvariants())

	result, err := loaded.Search(context.Background(), extra[50], 1, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(vectors)+50), result[0].Id)
}

func TestHnswOverwriteSafety(t *testing.T) {
	if !storage.CanMap() {
		t.Skip("memory mapping not supported")
	}
	index, _ := buildTestIndex(t, 300)
	dir := t.TempDir()

	_, err := index.FileDump(DumpFull, dir, "index")
	require.NoError(t, err)

	mapped, err := Load[float32](dir, "index", LoadOptions[float32]{Mode: LoadMapped})
	require.NoError(t, err)
	defer mapped.Close()

	basename, err := mapped.FileDump(DumpFull, dir, "index")
	require.NoError(t, err)
	assert.NotEqual(t, "index", basename)
	assert.True(t, strings.HasPrefix(basename, "index-"))
	assert.Len(t, basename, len("index-")+8)

	// The live mapping still serves the original artifact.
	assertSameSearchResults(t, index, mapped)
	assert.NoError(t, hnswIsSame(index, mapped))

	for _, name := range []string{"index", basename} {
		loaded, err := Load[float32](dir, name, LoadOptions[float32]{Mode: LoadResident})
		require.NoError(t, err)
		assert.NoError(t, hnswIsSame(index, loaded))
	}

	// Graph only dumps never touch the data file and keep the name.
	basename, err = mapped.FileDump(DumpGraphOnly, dir, "index")
	require.NoError(t, err)
	assert.Equal(t, "index", basename)
}

func TestHnswOverwriteResident(t *testing.T) {
	index, _ := buildTestIndex(t, 50)
	dir := t.TempDir()

	_, err := index.FileDump(DumpFull, dir, "index")
	require.NoError(t, err)
	loaded, err := Load[float32](dir, "index", LoadOptions[float32]{Mode: LoadResident})
	require.NoError(t, err)

	basename, err := loaded.FileDump(DumpFull, dir, "index")
	require.NoError(t, err)
	assert.Equal(t, "index", basename)
}

func TestHnswGraphOnlyDump(t *testing.T) {
	vectors := randomVectors(103, 150, DIM)
	small := newTestHnsw(t, DIM)
	insertAll(t, small, vectors[:100])
	big := newTestHnsw(t, DIM)
	insertAll(t, big, vectors)

	dir := t.TempDir()
	_, err := big.FileDump(DumpFull, dir, "shared")
	require.NoError(t, err)
	basename, err := small.FileDump(DumpGraphOnly, dir, "small")
	require.NoError(t, err)
	assert.Equal(t, "small", basename)
	assert.NoFileExists(t, DataPath(dir, "small"))

	_, err = Load[float32](dir, "small", LoadOptions[float32]{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	modes := []LoadMode{LoadResident}
	if storage.CanMap() {
		modes = append(modes, LoadMapped)
	}
	for _, mode := range modes {
		loaded, err := Load[float32](dir, "small", LoadOptions[float32]{Mode: mode, DataBasename: "shared"})
		require.NoError(t, err)
		assert.Equal(t, 100, loaded.Len())
		assert.NoError(t, hnswIsSame(small, loaded))
		assertSameSearchResults(t, small, loaded)
		require.NoError(t, loaded.Close())
	}

	// The shared data file must cover every vertex of the graph.
	_, err = small.FileDump(DumpFull, dir, "tiny")
	require.NoError(t, err)
	_, err = Load[float32](dir, "shared", LoadOptions[float32]{DataBasename: "tiny"})
	assert.ErrorIs(t, err, ErrFormat)
}

func TestHnswDumpLoadEmpty(t *testing.T) {
	index := newTestHnsw(t, 4)
	dir := t.TempDir()

	_, err := index.FileDump(DumpFull, dir, "empty")
	require.NoError(t, err)

	loaded, err := Load[float32](dir, "empty", LoadOptions[float32]{})
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
	assert.Equal(t, -1, loaded.MaxLevel())

	result, err := loaded.Search(context.Background(), []float32{1, 2, 3, 4}, 3, 10)
	require.NoError(t, err)
	assert.Empty(t, result)

	_, err = loaded.Insert([]float32{1, 2, 3, 4}, 9)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
	assert.NoError(t, loaded.CheckInvariants())
}

func TestHnswLoadOptions(t *testing.T) {
	index, _ := buildTestIndex(t, 50, HnswM(8), HnswHeuristicKeepPruned(false))
	dir := t.TempDir()
	_, err := index.FileDump(DumpFull, dir, "index")
	require.NoError(t, err)

	loaded, err := Load[float32](dir, "index", LoadOptions[float32]{
		Options: []HnswOption{HnswEf(77), HnswM(3), HnswName("loaded"), HnswWorkers(2)},
	})
	require.NoError(t, err)

	assert.Equal(t, 77, loaded.config.ef)
	assert.Equal(t, 2, loaded.config.workers)
	assert.Equal(t, "loaded", loaded.config.name)
	assert.Equal(t, 8, loaded.config.m)
	assert.Equal(t, 16, loaded.config.mMax0)
	assert.False(t, loaded.config.heuristicKeepPruned)
	assert.Equal(t, HnswSearchHeuristic, loaded.config.searchAlgorithm)

	_, err = Load[float32](dir, "index", LoadOptions[float32]{Options: []HnswOption{HnswMaxElements(10)}})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestHnswCustomSpace(t *testing.T) {
	chebyshev := space.NewFunc[float32]("chebyshev", func(a, b []float32) float32 {
		var result float32
		for i := range a {
			result = math.Max(result, math.Abs(a[i]-b[i]))
		}
		return result
	})

	index, err := NewHnsw[float32](DIM, chebyshev, HnswSeed(1))
	require.NoError(t, err)
	insertAll(t, index, randomVectors(104, 200, DIM))

	dir := t.TempDir()
	_, err = index.FileDump(DumpFull, dir, "custom")
	require.NoError(t, err)

	_, err = Load[float32](dir, "custom", LoadOptions[float32]{})
	assert.ErrorIs(t, err, ErrCustomSpace)

	loaded, err := Load[float32](dir, "custom", LoadOptions[float32]{Space: chebyshev})
	require.NoError(t, err)
	assert.NoError(t, hnswIsSame(index, loaded))
	assertSameSearchResults(t, index, loaded)
}

func TestHnswLoadSpaceMismatch(t *testing.T) {
	index, _ := buildTestIndex(t, 20)
	dir := t.TempDir()
	_, err := index.FileDump(DumpFull, dir, "index")
	require.NoError(t, err)

	_, err = Load[float32](dir, "index", LoadOptions[float32]{Space: space.NewCosine[float32]()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestHnswLoadErrors(t *testing.T) {
	index, _ := buildTestIndex(t, 100)
	dir := t.TempDir()
	_, err := index.FileDump(DumpFull, dir, "index")
	require.NoError(t, err)
	graph, err := os.ReadFile(GraphPath(dir, "index"))
	require.NoError(t, err)

	writeGraph := func(t *testing.T, name string, data []byte) {
		require.NoError(t, os.WriteFile(GraphPath(dir, name), data, 0644))
	}

	t.Run("missing", func(t *testing.T) {
		_, err := Load[float32](dir, "missing", LoadOptions[float32]{})
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("bad magic", func(t *testing.T) {
		corrupted := append([]byte(nil), graph...)
		copy(corrupted, "NOTAGRPH")
		writeGraph(t, "magic", corrupted)
		_, err := Load[float32](dir, "magic", LoadOptions[float32]{DataBasename: "index"})
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("bad version", func(t *testing.T) {
		corrupted := append([]byte(nil), graph...)
		binary.BigEndian.PutUint32(corrupted[8:], 42)
		writeGraph(t, "version", corrupted)
		_, err := Load[float32](dir, "version", LoadOptions[float32]{DataBasename: "index"})
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("truncated", func(t *testing.T) {
		for _, size := range []int{4, 20, len(graph) / 2, len(graph) - 1} {
			writeGraph(t, "truncated", graph[:size])
			_, err := Load[float32](dir, "truncated", LoadOptions[float32]{DataBasename: "index"})
			assert.ErrorIs(t, err, ErrFormat, "size %d", size)
		}
	})

	t.Run("dangling edge", func(t *testing.T) {
		// header, dimension and tags, config, count, entrypoint, vertex 0 and its edge count
		offset := 16 + 6 + 30 + 8 + 12 + 12 + 4
		corrupted := append([]byte(nil), graph...)
		require.NotZero(t, binary.BigEndian.Uint32(corrupted[offset-4:]))
		binary.BigEndian.PutUint64(corrupted[offset:], 1000)
		writeGraph(t, "dangling", corrupted)
		_, err := Load[float32](dir, "dangling", LoadOptions[float32]{DataBasename: "index"})
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("oversized counts", func(t *testing.T) {
		// header, dimension and tags, then m, mMax, mMax0 inside the config block
		configOffset := 16 + 6
		countOffset := configOffset + 30
		edgesOffset := countOffset + 8 + 12 + 12
		cases := map[string]func([]byte){
			"mMax0":      func(b []byte) { binary.BigEndian.PutUint32(b[configOffset+24:], 1<<30) },
			"m":          func(b []byte) { binary.BigEndian.PutUint32(b[configOffset+16:], 1<<30) },
			"node count": func(b []byte) { binary.BigEndian.PutUint64(b[countOffset:], 1<<40) },
			"edge count": func(b []byte) { binary.BigEndian.PutUint32(b[edgesOffset:], ^uint32(0)) },
		}
		for name, patch := range cases {
			corrupted := append([]byte(nil), graph...)
			patch(corrupted)
			writeGraph(t, "oversized", corrupted)
			_, err := Load[float32](dir, "oversized", LoadOptions[float32]{DataBasename: "index"})
			assert.ErrorIs(t, err, ErrFormat, name)
		}
	})

	t.Run("data count overflow", func(t *testing.T) {
		data, err := os.ReadFile(DataPath(dir, "index"))
		require.NoError(t, err)
		binary.LittleEndian.PutUint64(data[24:], 1<<62)
		require.NoError(t, os.WriteFile(DataPath(dir, "overflow"), data, 0644))

		for _, mode := range []LoadMode{LoadResident, LoadMapped, LoadAuto} {
			_, err = Load[float32](dir, "index", LoadOptions[float32]{DataBasename: "overflow", Mode: mode})
			assert.ErrorIs(t, err, ErrFormat, mode.String())
		}
	})

	t.Run("element mismatch", func(t *testing.T) {
		_, err := Load[float64](dir, "index", LoadOptions[float64]{})
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("corrupted data", func(t *testing.T) {
		data, err := os.ReadFile(DataPath(dir, "index"))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(DataPath(dir, "broken"), data[:len(data)/2], 0644))

		_, err = Load[float32](dir, "index", LoadOptions[float32]{DataBasename: "broken", Mode: LoadResident})
		assert.ErrorIs(t, err, ErrFormat)
		if storage.CanMap() {
			_, err = Load[float32](dir, "index", LoadOptions[float32]{DataBasename: "broken", Mode: LoadMapped})
			assert.ErrorIs(t, err, ErrFormat)
		}
	})
}

func TestHnswFileDumpErrors(t *testing.T) {
	index, _ := buildTestIndex(t, 10)

	_, err := index.FileDump(DumpFull, t.TempDir(), "")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = index.FileDump(DumpMode(7), t.TempDir(), "index")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = index.FileDump(DumpFull, "/nonexistent/directory", "index")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseLoadMode(t *testing.T) {
	for _, mode := range []LoadMode{LoadResident, LoadMapped, LoadAuto} {
		parsed, err := ParseLoadMode(mode.String())
		require.NoError(t, err)
		assert.Equal(t, mode, parsed)
	}
	_, err := ParseLoadMode("swap")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
