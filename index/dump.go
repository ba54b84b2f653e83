package index

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/mem"
	log "github.com/sirupsen/logrus"

	"github.com/marekgalovic/hnswdb/index/space"
	"github.com/marekgalovic/hnswdb/metrics"
	"github.com/marekgalovic/hnswdb/storage"
	"github.com/marekgalovic/hnswdb/utils"
)

const (
	GraphFileSuffix string = ".hnsw.graph"
	DataFileSuffix  string = ".hnsw.data"
)

func GraphPath(dir, basename string) string {
	return filepath.Join(dir, basename+GraphFileSuffix)
}

func DataPath(dir, basename string) string {
	return filepath.Join(dir, basename+DataFileSuffix)
}

type DumpMode int

const (
	// DumpFull writes both the graph and the data file.
	DumpFull DumpMode = iota
	// DumpGraphOnly writes the graph for deployments sharing one data file.
	DumpGraphOnly
)

func (m DumpMode) String() string {
	switch m {
	case DumpFull:
		return "full"
	case DumpGraphOnly:
		return "graph-only"
	}
	return fmt.Sprintf("DumpMode(%d)", int(m))
}

type LoadMode int

const (
	LoadResident LoadMode = iota
	LoadMapped
	// LoadAuto maps the data file when it exceeds half of the available memory.
	LoadAuto
)

func (m LoadMode) String() string {
	switch m {
	case LoadResident:
		return "resident"
	case LoadMapped:
		return "mapped"
	case LoadAuto:
		return "auto"
	}
	return fmt.Sprintf("LoadMode(%d)", int(m))
}

func ParseLoadMode(name string) (LoadMode, error) {
	for _, mode := range []LoadMode{LoadResident, LoadMapped, LoadAuto} {
		if mode.String() == name {
			return mode, nil
		}
	}
	return LoadResident, fmt.Errorf("%w: unknown load mode %q", ErrInvalidConfig, name)
}

type DumpOptions struct {
	CompressGraph bool
}

type LoadOptions[T space.Element] struct {
	Mode LoadMode
	// DataBasename selects a data file other than <basename>.hnsw.data in the same directory.
	DataBasename string
	// Space is required for indexes built with a custom space.
	Space space.Space[T]
	// Options override runtime settings. Graph shaping parameters always come from the dump.
	Options []HnswOption
}

// FileDump writes the index under dir and returns the basename actually used.
// When the data file that would be written is the one this index is mapped
// from, a fresh basename is chosen instead of overwriting it.
// Inserts must not run concurrently with a dump.
func (this *Hnsw[T]) FileDump(mode DumpMode, dir, basename string) (string, error) {
	return this.FileDumpWithOptions(mode, dir, basename, DumpOptions{})
}

func (this *Hnsw[T]) FileDumpWithOptions(mode DumpMode, dir, basename string, options DumpOptions) (string, error) {
	basename, err := this.fileDump(mode, dir, basename, options)
	this.metrics.Dump(err)
	return basename, err
}

func (this *Hnsw[T]) fileDump(mode DumpMode, dir, basename string, options DumpOptions) (string, error) {
	if basename == "" {
		return "", fmt.Errorf("%w: empty basename", ErrInvalidConfig)
	}
	if mode != DumpFull && mode != DumpGraphOnly {
		return "", fmt.Errorf("%w: unknown dump mode %s", ErrInvalidConfig, mode)
	}

	if mode == DumpFull {
		for this.mapsFile(DataPath(dir, basename)) {
			renamed := fmt.Sprintf("%s-%s", basename, utils.UniqueSuffix())
			this.log.Warnf("%s is mapped by this index, dumping to %s instead", DataPath(dir, basename), renamed)
			basename = renamed
		}
	}

	count := this.vertices.Len()
	if points := this.points.Len(); points != count {
		return "", fmt.Errorf("Index has %d points and %d vertices, inserts must not run during a dump", points, count)
	}

	if err := writeFile(GraphPath(dir, basename), func(w io.Writer) error {
		return this.saveGraph(w, count, options.CompressGraph)
	}); err != nil {
		return "", err
	}
	if mode == DumpFull {
		if err := writeFile(DataPath(dir, basename), func(w io.Writer) error {
			return storage.WriteData[T](w, this.points, count)
		}); err != nil {
			return "", err
		}
	}

	this.log.Infof("Dumped %d vertices to %s (%s)", count, filepath.Join(dir, basename), mode)
	return basename, nil
}

func (this *Hnsw[T]) mapsFile(path string) bool {
	mapped, ok := this.points.Mapped()
	return ok && sameFile(mapped, path)
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA == nil && errB == nil && absA == absB {
		return true
	}
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("Write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads an index dumped with FileDump. On any error no index is returned
// and every resource opened on the way is released.
func Load[T space.Element](dir, basename string, options LoadOptions[T]) (*Hnsw[T], error) {
	settings := defaultHnswConfig()
	for _, option := range options.Options {
		option.apply(settings)
	}
	logger := log.WithFields(log.Fields{"index": settings.name})

	index, err := load[T](dir, basename, options, logger)
	metrics.ForIndex(settings.name).Load(err)
	if err != nil {
		return nil, err
	}
	index.log.Infof("Loaded %s from %s", index, filepath.Join(dir, basename))
	return index, nil
}

func load[T space.Element](dir, basename string, options LoadOptions[T], logger *log.Entry) (*Hnsw[T], error) {
	graphFile, err := os.Open(GraphPath(dir, basename))
	if err != nil {
		return nil, err
	}
	defer graphFile.Close()

	graph, err := readGraph(bufio.NewReader(graphFile))
	if err != nil {
		return nil, err
	}
	if want := space.ElementTypeOf[T](); graph.elementType != want {
		return nil, fmt.Errorf("%w: graph holds %s elements, expected %s", ErrFormat, graph.elementType, want)
	}

	config := graph.config
	if err := config.applyRuntime(options.Options); err != nil {
		return nil, err
	}

	s := options.Space
	if s == nil {
		if graph.kind == space.CustomKind {
			return nil, ErrCustomSpace
		}
		if s, err = space.FromKind[T](graph.kind); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
	} else if graph.kind != space.CustomKind && s.Kind() != graph.kind {
		return nil, fmt.Errorf("%w: index was built with %s space, got %s", ErrInvalidConfig, graph.kind, s.Kind())
	}

	count := uint64(len(graph.vertices))
	limit := pointsLimit(config)
	if count > limit {
		return nil, ErrCapacityExceeded
	}

	dataBasename := basename
	if options.DataBasename != "" {
		dataBasename = options.DataBasename
	}
	dataPath := DataPath(dir, dataBasename)
	mode := resolveLoadMode(options.Mode, dataPath, logger)

	points, err := openPoints[T](mode, dataPath, graph.dim, count, limit, logger)
	if err != nil {
		return nil, err
	}

	index := newHnsw[T](graph.dim, s, config, points)
	for _, vertex := range graph.vertices {
		if err := index.vertices.Set(vertex.id, []*hnswVertex{vertex}); err != nil {
			points.Close()
			return nil, err
		}
	}
	index.entrypoint = graph.entrypoint
	index.len.Store(count)
	index.metrics.SetVertices(count)
	return index, nil
}

func resolveLoadMode(mode LoadMode, dataPath string, logger *log.Entry) LoadMode {
	if mode != LoadAuto {
		return mode
	}
	info, err := os.Stat(dataPath)
	if err != nil {
		return LoadResident
	}
	memory, err := mem.VirtualMemory()
	if err != nil {
		logger.Warnf("Unable to read available memory, mapping data: %v", err)
		return LoadMapped
	}
	if uint64(info.Size()) > memory.Available/2 {
		logger.Debugf("Data file is %d bytes with %d bytes available, mapping it", info.Size(), memory.Available)
		return LoadMapped
	}
	return LoadResident
}

func openPoints[T space.Element](mode LoadMode, path string, dim int, count, limit uint64, logger *log.Entry) (storage.Points[T], error) {
	if mode == LoadMapped && !storage.CanMap() {
		logger.Warn("Memory mapping is not supported on this host, loading data resident")
		mode = LoadResident
	}

	if mode == LoadMapped {
		points, err := storage.OpenMapped[T](path, dim, limit)
		if err != nil {
			return nil, err
		}
		if points.Len() < count {
			points.Close()
			return nil, fmt.Errorf("%w: data holds %d points, graph has %d vertices", ErrFormat, points.Len(), count)
		}
		points.Truncate(count)
		return points, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	points, err := storage.ReadData[T](f, dim, int64(count), limit)
	if err != nil {
		return nil, err
	}
	return points, nil
}
