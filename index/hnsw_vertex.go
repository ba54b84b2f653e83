package index

import (
	"sort"
	"sync"
)

type hnswEdge struct {
	id       uint64
	distance float32
}

func edgeLess(a, b hnswEdge) bool {
	if a.distance == b.distance {
		return a.id < b.id
	}
	return a.distance < b.distance
}

type hnswVertex struct {
	id         uint64
	externalId uint64
	level      int

	// Per level adjacency ordered by (distance, id), guarded by edgeMutexes.
	// versions change on every mutation so pruning can detect concurrent writers.
	edges       [][]hnswEdge
	versions    []uint64
	edgeMutexes []sync.RWMutex
}

func newHnswVertex(id, externalId uint64, level int) *hnswVertex {
	return &hnswVertex{
		id:          id,
		externalId:  externalId,
		level:       level,
		edges:       make([][]hnswEdge, level+1),
		versions:    make([]uint64, level+1),
		edgeMutexes: make([]sync.RWMutex, level+1),
	}
}

func (this *hnswVertex) Id() uint64 {
	return this.id
}

func (this *hnswVertex) ExternalId() uint64 {
	return this.externalId
}

func (this *hnswVertex) Level() int {
	return this.level
}

func (this *hnswVertex) edgesCount(level int) int {
	this.edgeMutexes[level].RLock()
	defer this.edgeMutexes[level].RUnlock()

	return len(this.edges[level])
}

// getEdges returns a copy of the edge list together with its version.
func (this *hnswVertex) getEdges(level int) ([]hnswEdge, uint64) {
	this.edgeMutexes[level].RLock()
	defer this.edgeMutexes[level].RUnlock()

	edges := make([]hnswEdge, len(this.edges[level]))
	copy(edges, this.edges[level])
	return edges, this.versions[level]
}

// The *Locked methods require the caller to hold the write lock of level.

func (this *hnswVertex) addEdgeLocked(level int, edge hnswEdge) {
	edges := this.edges[level]
	for _, e := range edges {
		if e.id == edge.id {
			return
		}
	}
	pos := sort.Search(len(edges), func(i int) bool {
		return edgeLess(edge, edges[i])
	})
	edges = append(edges, hnswEdge{})
	copy(edges[pos+1:], edges[pos:])
	edges[pos] = edge

	this.edges[level] = edges
	this.versions[level]++
}

func (this *hnswVertex) removeEdgeLocked(level int, id uint64) {
	edges := this.edges[level]
	for i, e := range edges {
		if e.id == id {
			this.edges[level] = append(edges[:i:i], edges[i+1:]...)
			this.versions[level]++
			return
		}
	}
}

func (this *hnswVertex) setEdgesLocked(level int, edges []hnswEdge) {
	this.edges[level] = edges
	this.versions[level]++
}

func (this *hnswVertex) hasEdge(level int, id uint64) bool {
	this.edgeMutexes[level].RLock()
	defer this.edgeMutexes[level].RUnlock()

	for _, e := range this.edges[level] {
		if e.id == id {
			return true
		}
	}
	return false
}

// lockVertices write-locks level of every distinct vertex in ascending id
// order and returns the matching unlock function.
func lockVertices(level int, vertices ...*hnswVertex) func() {
	sorted := make([]*hnswVertex, 0, len(vertices))
	seen := make(map[uint64]struct{}, len(vertices))
	for _, v := range vertices {
		if _, exists := seen[v.id]; exists {
			continue
		}
		seen[v.id] = struct{}{}
		sorted = append(sorted, v)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].id < sorted[j].id
	})

	for _, v := range sorted {
		v.edgeMutexes[level].Lock()
	}
	return func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			sorted[i].edgeMutexes[level].Unlock()
		}
	}
}
