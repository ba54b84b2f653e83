package index

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	goMath "math"

	"github.com/klauspost/compress/zstd"

	"github.com/marekgalovic/hnswdb/index/space"
)

// Graph stream layout, big endian:
//
//	magic[8] "HNSWGRPH" | version u32 | flags u32 | body
//
// The body is zstd compressed when graphFlagZstd is set and holds the
// dimension, space kind, element type, config, node count, entrypoint and
// then for every node in internal id order its external id, level and per
// level edge lists of (id, distance) pairs.
const (
	GraphVersion  uint32 = 1
	graphFlagZstd uint32 = 1 << 0
)

var graphMagic = [8]byte{'H', 'N', 'S', 'W', 'G', 'R', 'P', 'H'}

type graphData struct {
	dim         int
	kind        space.Kind
	elementType space.ElementType
	config      *hnswConfig
	vertices    []*hnswVertex
	entrypoint  *hnswVertex
}

func (this *Hnsw[T]) saveGraph(w io.Writer, count uint64, compress bool) error {
	var flags uint32
	if compress {
		flags |= graphFlagZstd
	}
	if _, err := w.Write(graphMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, []uint32{GraphVersion, flags}); err != nil {
		return err
	}

	var encoder *zstd.Encoder
	body := w
	if compress {
		var err error
		if encoder, err = zstd.NewWriter(w); err != nil {
			return err
		}
		body = encoder
	}
	bw := bufio.NewWriterSize(body, 1<<20)

	if err := this.saveGraphBody(bw, count); err != nil {
		if encoder != nil {
			encoder.Close()
		}
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if encoder != nil {
		return encoder.Close()
	}
	return nil
}

func (this *Hnsw[T]) saveGraphBody(w io.Writer, count uint64) error {
	if err := binary.Write(w, binary.BigEndian, uint32(this.dim)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, []uint8{uint8(this.space.Kind()), uint8(space.ElementTypeOf[T]())}); err != nil {
		return err
	}
	if err := this.config.save(w); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, count); err != nil {
		return err
	}

	entrypointId, entrypointLevel := InvalidId, int32(-1)
	if entrypoint := this.getEntrypoint(); entrypoint != nil {
		entrypointId, entrypointLevel = entrypoint.id, int32(entrypoint.level)
	}
	if err := binary.Write(w, binary.BigEndian, entrypointId); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, entrypointLevel); err != nil {
		return err
	}

	buf := make([]byte, 12)
	for id := uint64(0); id < count; id++ {
		vertex := this.vertex(id)
		if vertex == nil {
			return fmt.Errorf("Vertex %d is missing", id)
		}
		if err := binary.Write(w, binary.BigEndian, vertex.externalId); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, int32(vertex.level)); err != nil {
			return err
		}
		for l := 0; l <= vertex.level; l++ {
			edges, _ := vertex.getEdges(l)
			if err := binary.Write(w, binary.BigEndian, uint32(len(edges))); err != nil {
				return err
			}
			for _, edge := range edges {
				binary.BigEndian.PutUint64(buf, edge.id)
				binary.BigEndian.PutUint32(buf[8:], goMath.Float32bits(edge.distance))
				if _, err := w.Write(buf); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func formatErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrFormat, what, err)
}

// readGraph parses and validates a whole graph stream. Nothing is shared with
// a live index until it returns successfully.
func readGraph(r io.Reader) (*graphData, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, formatErr("graph header", err)
	}
	if !bytes.Equal(magic[:], graphMagic[:]) {
		return nil, fmt.Errorf("%w: bad graph magic %q", ErrFormat, magic[:])
	}
	header := make([]uint32, 2)
	if err := binary.Read(r, binary.BigEndian, header); err != nil {
		return nil, formatErr("graph header", err)
	}
	if header[0] != GraphVersion {
		return nil, fmt.Errorf("%w: unsupported graph version %d", ErrFormat, header[0])
	}
	if header[1]&^graphFlagZstd != 0 {
		return nil, fmt.Errorf("%w: unknown graph flags %x", ErrFormat, header[1])
	}

	body := r
	if header[1]&graphFlagZstd != 0 {
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, formatErr("graph body", err)
		}
		defer decoder.Close()
		body = decoder
	}
	return readGraphBody(bufio.NewReaderSize(body, 1<<20))
}

func readGraphBody(r io.Reader) (*graphData, error) {
	var dim uint32
	if err := binary.Read(r, binary.BigEndian, &dim); err != nil {
		return nil, formatErr("dimension", err)
	}
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero dimension", ErrFormat)
	}
	tags := make([]uint8, 2)
	if err := binary.Read(r, binary.BigEndian, tags); err != nil {
		return nil, formatErr("space", err)
	}

	config := defaultHnswConfig()
	if err := config.load(r); err != nil {
		return nil, formatErr("config", err)
	}

	var count uint64
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, formatErr("node count", err)
	}
	if count > maxInternalIds {
		return nil, fmt.Errorf("%w: node count %d out of range", ErrFormat, count)
	}
	var entrypointId uint64
	var entrypointLevel int32
	if err := binary.Read(r, binary.BigEndian, &entrypointId); err != nil {
		return nil, formatErr("entrypoint", err)
	}
	if err := binary.Read(r, binary.BigEndian, &entrypointLevel); err != nil {
		return nil, formatErr("entrypoint", err)
	}

	graph := &graphData{
		dim:         int(dim),
		kind:        space.Kind(tags[0]),
		elementType: space.ElementType(tags[1]),
		config:      config,
		vertices:    make([]*hnswVertex, 0, int(min(count, 1<<20))),
	}

	var externalId uint64
	var level int32
	var edgesCount uint32
	buf := make([]byte, 12)
	for id := uint64(0); id < count; id++ {
		if err := binary.Read(r, binary.BigEndian, &externalId); err != nil {
			return nil, formatErr(fmt.Sprintf("vertex %d", id), err)
		}
		if err := binary.Read(r, binary.BigEndian, &level); err != nil {
			return nil, formatErr(fmt.Sprintf("vertex %d", id), err)
		}
		if level < 0 || int(level) > maxLevelCap {
			return nil, fmt.Errorf("%w: vertex %d has level %d", ErrFormat, id, level)
		}

		vertex := newHnswVertex(id, externalId, int(level))
		for l := 0; l <= vertex.level; l++ {
			if err := binary.Read(r, binary.BigEndian, &edgesCount); err != nil {
				return nil, formatErr(fmt.Sprintf("edges of vertex %d", id), err)
			}
			if int(edgesCount) > config.maxNeighbors(l) {
				return nil, fmt.Errorf("%w: vertex %d has %d edges at level %d", ErrFormat, id, edgesCount, l)
			}
			// Grown as entries arrive so a corrupt count cannot force a large allocation.
			edges := make([]hnswEdge, 0, min(int(edgesCount), 64))
			for i := uint32(0); i < edgesCount; i++ {
				if _, err := io.ReadFull(r, buf); err != nil {
					return nil, formatErr(fmt.Sprintf("edges of vertex %d", id), err)
				}
				edges = append(edges, hnswEdge{
					id:       binary.BigEndian.Uint64(buf),
					distance: goMath.Float32frombits(binary.BigEndian.Uint32(buf[8:])),
				})
			}
			vertex.edges[l] = edges
		}
		graph.vertices = append(graph.vertices, vertex)
	}

	if err := graph.validate(entrypointId, int(entrypointLevel)); err != nil {
		return nil, err
	}
	return graph, nil
}

func (this *graphData) validate(entrypointId uint64, entrypointLevel int) error {
	count := uint64(len(this.vertices))
	if count == 0 {
		if entrypointId != InvalidId {
			return fmt.Errorf("%w: entrypoint %d in an empty graph", ErrFormat, entrypointId)
		}
		return nil
	}
	if entrypointId >= count {
		return fmt.Errorf("%w: entrypoint %d out of range", ErrFormat, entrypointId)
	}
	this.entrypoint = this.vertices[entrypointId]
	if this.entrypoint.level != entrypointLevel {
		return fmt.Errorf("%w: entrypoint level %d, vertex level %d", ErrFormat, entrypointLevel, this.entrypoint.level)
	}

	for _, vertex := range this.vertices {
		for l, edges := range vertex.edges {
			for _, edge := range edges {
				if edge.id >= count || edge.id == vertex.id {
					return fmt.Errorf("%w: vertex %d has invalid edge %d", ErrFormat, vertex.id, edge.id)
				}
				if this.vertices[edge.id].level < l {
					return fmt.Errorf("%w: edge %d -> %d above level of its target", ErrFormat, vertex.id, edge.id)
				}
			}
		}
	}
	return nil
}
