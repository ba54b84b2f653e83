package index

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	log "github.com/sirupsen/logrus"

	"github.com/marekgalovic/hnswdb/index/space"
	"github.com/marekgalovic/hnswdb/math"
	"github.com/marekgalovic/hnswdb/metrics"
	"github.com/marekgalovic/hnswdb/storage"
	"github.com/marekgalovic/hnswdb/utils"
)

// Visited sets are 32-bit bitmaps, so internal ids stay below 2^32.
const maxInternalIds uint64 = 1 << 32

const vertexChunkLen int = 4096

type Hnsw[T space.Element] struct {
	dim     int
	space   space.Space[T]
	config  *hnswConfig
	log     *log.Entry
	metrics *metrics.Index
	rnd     *math.Random

	points   storage.Points[T]
	vertices *storage.Arena[*hnswVertex]
	len      atomic.Uint64

	entrypointMu sync.RWMutex
	entrypoint   *hnswVertex
	// Held for the whole insertion of a vertex that may become the new entrypoint.
	promoteMu sync.Mutex
}

func NewHnsw[T space.Element](dim int, space space.Space[T], options ...HnswOption) (*Hnsw[T], error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, dim)
	}
	if space == nil {
		return nil, fmt.Errorf("%w: space is required", ErrInvalidConfig)
	}
	config, err := newHnswConfig(options)
	if err != nil {
		return nil, err
	}

	index := newHnsw[T](dim, space, config, storage.NewMemoryPoints[T](dim, pointsLimit(config)))
	index.log.Infof("Created %s", index)
	return index, nil
}

func newHnsw[T space.Element](dim int, space space.Space[T], config *hnswConfig, points storage.Points[T]) *Hnsw[T] {
	return &Hnsw[T]{
		dim:      dim,
		space:    space,
		config:   config,
		log:      log.WithFields(log.Fields{"index": config.name}),
		metrics:  metrics.ForIndex(config.name),
		rnd:      math.NewRandom(config.seed),
		points:   points,
		vertices: storage.NewArena[*hnswVertex](1, vertexChunkLen, 0),
	}
}

func pointsLimit(config *hnswConfig) uint64 {
	if config.maxElements > 0 && config.maxElements < maxInternalIds {
		return config.maxElements
	}
	return maxInternalIds
}

func (this *Hnsw[T]) String() string {
	return fmt.Sprintf("HNSW(dim: %d, element: %s, space: %v, len: %d, config={%s})", this.dim, space.ElementTypeOf[T](), this.space, this.Len(), this.config)
}

func (this *Hnsw[T]) Len() int {
	return int(this.len.Load())
}

func (this *Hnsw[T]) Dimension() int {
	return this.dim
}

func (this *Hnsw[T]) Space() space.Space[T] {
	return this.space
}

// MaxLevel is the level of the entrypoint, -1 for an empty index.
func (this *Hnsw[T]) MaxLevel() int {
	if entrypoint := this.getEntrypoint(); entrypoint != nil {
		return entrypoint.level
	}
	return -1
}

// Get returns the stored vector and the external id of an internal id.
func (this *Hnsw[T]) Get(internalId uint64) ([]T, uint64, error) {
	vertex := this.vertex(internalId)
	if vertex == nil {
		return nil, InvalidId, ErrItemNotFound
	}
	return this.points.Get(internalId), vertex.externalId, nil
}

// Close releases the data mapping of a loaded index.
func (this *Hnsw[T]) Close() error {
	return this.points.Close()
}

func (this *Hnsw[T]) RandomLevel() int {
	level := math.Floor(float32(this.rnd.Exponential(float64(this.config.levelMultiplier))))
	return math.MinInt(level, maxLevelCap)
}

func (this *Hnsw[T]) Insert(vector []T, id uint64) (uint64, error) {
	return this.InsertWithLevel(vector, id, this.RandomLevel())
}

// InsertWithLevel inserts a vector at a caller chosen level instead of a sampled one.
func (this *Hnsw[T]) InsertWithLevel(vector []T, id uint64, level int) (uint64, error) {
	internalId, err := this.insert(vector, id, level)
	this.metrics.Insert(err)
	return internalId, err
}

func (this *Hnsw[T]) insert(value []T, id uint64, level int) (uint64, error) {
	if len(value) != this.dim {
		return InvalidId, fmt.Errorf("%w: vector has %d components, index has %d", ErrDimensionMismatch, len(value), this.dim)
	}
	if level < 0 || level > maxLevelCap {
		return InvalidId, fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidLevel, level, maxLevelCap)
	}

	internalId, err := this.points.Append(value)
	if err != nil {
		return InvalidId, err
	}
	vertex := newHnswVertex(internalId, id, level)
	if err := this.vertices.Set(internalId, []*hnswVertex{vertex}); err != nil {
		return InvalidId, err
	}
	vector := this.points.Get(internalId)

	entrypoint := this.getEntrypoint()
	if entrypoint == nil {
		if this.setFirstEntrypoint(vertex) {
			this.len.Add(1)
			return internalId, nil
		}
		entrypoint = this.getEntrypoint()
	}
	if level > entrypoint.level {
		this.promoteMu.Lock()
		defer this.promoteMu.Unlock()
		entrypoint = this.getEntrypoint()
	}

	current := entrypoint
	minDistance := this.space.Distance(vector, this.points.Get(current.id))
	for l := entrypoint.level; l > level; l-- {
		current, minDistance = this.greedyClosestNeighbor(vector, current, minDistance, l)
	}

	seeds := []hnswEdge{{id: current.id, distance: minDistance}}
	for l := math.MinInt(level, entrypoint.level); l >= 0; l-- {
		candidates := this.searchLevel(vector, seeds, this.config.efConstruction, l, internalId)
		selected := this.selectNeighbors(vector, candidates, this.config.targetNeighbors(l), l, this.config.heuristicExtendCandidates, internalId)

		for _, edge := range selected {
			neighbor := this.vertex(edge.id)
			this.link(vertex, neighbor, edge.distance, l)
			this.pruneNeighbors(neighbor, l)
		}
		this.pruneNeighbors(vertex, l)

		if len(candidates) > 0 {
			seeds = candidates
		}
	}

	if level > entrypoint.level {
		this.entrypointMu.Lock()
		if level > this.entrypoint.level {
			this.entrypoint = vertex
			this.log.Debugf("Entrypoint moved to %d at level %d", internalId, level)
		}
		this.entrypointMu.Unlock()
	}

	this.len.Add(1)
	return internalId, nil
}

func (this *Hnsw[T]) Search(ctx context.Context, query []T, k, ef int) (SearchResult, error) {
	startAt := time.Now()
	result, err := this.search(ctx, query, k, ef)
	this.metrics.Search(time.Since(startAt).Seconds(), err)
	return result, err
}

func (this *Hnsw[T]) search(ctx context.Context, query []T, k, ef int) (SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(query) != this.dim {
		return nil, fmt.Errorf("%w: query has %d components, index has %d", ErrDimensionMismatch, len(query), this.dim)
	}
	if k <= 0 {
		return SearchResult{}, nil
	}
	if ef <= 0 {
		ef = this.config.ef
	}
	ef = math.MaxInt(ef, k)

	entrypoint := this.getEntrypoint()
	if entrypoint == nil {
		return SearchResult{}, nil
	}

	minDistance := this.space.Distance(query, this.points.Get(entrypoint.id))
	for l := entrypoint.level; l > 0; l-- {
		entrypoint, minDistance = this.greedyClosestNeighbor(query, entrypoint, minDistance, l)
	}

	candidates := this.searchLevel(query, []hnswEdge{{id: entrypoint.id, distance: minDistance}}, ef, 0, InvalidId)

	n := math.MinInt(k, len(candidates))
	result := make(SearchResult, n)
	for i := 0; i < n; i++ {
		result[i] = Neighbour{
			Id:         this.vertex(candidates[i].id).externalId,
			InternalId: candidates[i].id,
			Distance:   candidates[i].distance,
		}
	}
	return result, nil
}

func (this *Hnsw[T]) vertex(id uint64) *hnswVertex {
	if slot := this.vertices.Get(id); slot != nil {
		return slot[0]
	}
	return nil
}

func (this *Hnsw[T]) getEntrypoint() *hnswVertex {
	this.entrypointMu.RLock()
	defer this.entrypointMu.RUnlock()

	return this.entrypoint
}

func (this *Hnsw[T]) setFirstEntrypoint(vertex *hnswVertex) bool {
	this.entrypointMu.Lock()
	defer this.entrypointMu.Unlock()

	if this.entrypoint != nil {
		return false
	}
	this.entrypoint = vertex
	this.log.Debugf("Entrypoint set to %d at level %d", vertex.id, vertex.level)
	return true
}

func (this *Hnsw[T]) greedyClosestNeighbor(query []T, entrypoint *hnswVertex, minDistance float32, level int) (*hnswVertex, float32) {
	for {
		var closestNeighbor uint64 = InvalidId

		entrypoint.edgeMutexes[level].RLock()
		for _, edge := range entrypoint.edges[level] {
			if distance := this.space.Distance(query, this.points.Get(edge.id)); distance < minDistance {
				minDistance = distance
				closestNeighbor = edge.id
			}
		}
		entrypoint.edgeMutexes[level].RUnlock()

		if closestNeighbor == InvalidId {
			break
		}
		entrypoint = this.vertex(closestNeighbor)
	}

	return entrypoint, minDistance
}

// searchLevel runs a beam search of width ef at level starting from seeds and
// returns up to ef vertices ordered by (distance, id). exclude is never visited.
func (this *Hnsw[T]) searchLevel(query []T, seeds []hnswEdge, ef, level int, exclude uint64) []hnswEdge {
	visited := roaring.New()
	if exclude != InvalidId {
		visited.Add(uint32(exclude))
	}

	candidateVertices := utils.NewMinPriorityQueue[*hnswVertex]()
	resultVertices := utils.NewMaxPriorityQueue[*hnswVertex]()
	for _, seed := range seeds {
		if !visited.CheckedAdd(uint32(seed.id)) {
			continue
		}
		pqItem := utils.NewPriorityQueueItem(seed.distance, seed.id, this.vertex(seed.id))
		candidateVertices.Push(pqItem)
		resultVertices.Push(pqItem)
		if resultVertices.Len() > ef {
			resultVertices.Pop()
		}
	}

	for candidateVertices.Len() > 0 {
		candidateItem := candidateVertices.Pop()
		if candidateItem.Priority() > resultVertices.Peek().Priority() {
			break
		}

		candidate := candidateItem.Value()
		candidate.edgeMutexes[level].RLock()
		for _, edge := range candidate.edges[level] {
			if !visited.CheckedAdd(uint32(edge.id)) {
				continue
			}

			distance := this.space.Distance(query, this.points.Get(edge.id))
			if (resultVertices.Len() < ef) || (distance < resultVertices.Peek().Priority()) {
				pqItem := utils.NewPriorityQueueItem(distance, edge.id, this.vertex(edge.id))
				candidateVertices.Push(pqItem)
				resultVertices.Push(pqItem)

				if resultVertices.Len() > ef {
					resultVertices.Pop()
				}
			}
		}
		candidate.edgeMutexes[level].RUnlock()
	}

	return sortedEdges(resultVertices)
}

// sortedEdges drains a max queue into an ascending slice.
func sortedEdges(queue utils.PriorityQueue[*hnswVertex]) []hnswEdge {
	edges := make([]hnswEdge, queue.Len())
	for i := len(edges) - 1; i >= 0; i-- {
		item := queue.Pop()
		edges[i] = hnswEdge{id: item.Key(), distance: item.Priority()}
	}
	return edges
}

func sortEdges(edges []hnswEdge) {
	sort.Slice(edges, func(i, j int) bool {
		return edgeLess(edges[i], edges[j])
	})
}

// selectNeighbors picks at most k of the ascending candidates with the
// configured algorithm.
func (this *Hnsw[T]) selectNeighbors(query []T, candidates []hnswEdge, k, level int, extendCandidates bool, exclude uint64) []hnswEdge {
	switch this.config.searchAlgorithm {
	case HnswSearchHeuristic:
		return this.selectNeighborsHeuristic(query, candidates, k, level, extendCandidates, this.config.heuristicKeepPruned, exclude)
	default:
		return selectNearest(candidates, k)
	}
}

func selectNearest(candidates []hnswEdge, k int) []hnswEdge {
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return append([]hnswEdge(nil), candidates...)
}

// selectNeighborsHeuristic admits a candidate only if it is closer to the
// query than to every neighbor admitted before it.
func (this *Hnsw[T]) selectNeighborsHeuristic(query []T, candidates []hnswEdge, k, level int, extendCandidates, keepPruned bool, exclude uint64) []hnswEdge {
	if extendCandidates {
		candidates = this.extendCandidates(query, candidates, level, exclude)
	}

	result := make([]hnswEdge, 0, k)
	pruned := make([]hnswEdge, 0)
	for _, candidate := range candidates {
		if len(result) >= k {
			break
		}

		vector := this.points.Get(candidate.id)
		diverse := true
		for _, selected := range result {
			if this.space.Distance(vector, this.points.Get(selected.id)) <= candidate.distance {
				diverse = false
				break
			}
		}

		if diverse {
			result = append(result, candidate)
		} else {
			pruned = append(pruned, candidate)
		}
	}

	if keepPruned && len(result) < k && len(pruned) > 0 {
		for _, candidate := range pruned {
			if len(result) >= k {
				break
			}
			result = append(result, candidate)
		}
		sortEdges(result)
	}

	return result
}

// extendCandidates adds the neighbors of every candidate at level.
func (this *Hnsw[T]) extendCandidates(query []T, candidates []hnswEdge, level int, exclude uint64) []hnswEdge {
	seen := roaring.New()
	if exclude != InvalidId {
		seen.Add(uint32(exclude))
	}
	for _, candidate := range candidates {
		seen.Add(uint32(candidate.id))
	}

	extended := append([]hnswEdge(nil), candidates...)
	for _, candidate := range candidates {
		edges, _ := this.vertex(candidate.id).getEdges(level)
		for _, edge := range edges {
			if !seen.CheckedAdd(uint32(edge.id)) {
				continue
			}
			extended = append(extended, hnswEdge{
				id:       edge.id,
				distance: this.space.Distance(query, this.points.Get(edge.id)),
			})
		}
	}
	sortEdges(extended)

	return extended
}

func (this *Hnsw[T]) link(a, b *hnswVertex, distance float32, level int) {
	if a.id == b.id {
		panic("Self loop")
	}

	unlock := lockVertices(level, a, b)
	a.addEdgeLocked(level, hnswEdge{id: b.id, distance: distance})
	b.addEdgeLocked(level, hnswEdge{id: a.id, distance: distance})
	unlock()
}

// pruneNeighbors shrinks the edges of vertex at level back to the degree bound.
// Selection runs on a snapshot without locks and is committed only if the edge
// list is unchanged; dropped neighbors lose their back-edge in the same
// critical section.
func (this *Hnsw[T]) pruneNeighbors(vertex *hnswVertex, level int) {
	bound := this.config.maxNeighbors(level)
	vector := this.points.Get(vertex.id)

	for {
		edges, version := vertex.getEdges(level)
		if len(edges) <= bound {
			return
		}

		kept := this.selectNeighbors(vector, edges, bound, level, false, vertex.id)
		keptIds := make(map[uint64]struct{}, len(kept))
		for _, edge := range kept {
			keptIds[edge.id] = struct{}{}
		}
		locked := make([]*hnswVertex, 0, len(edges)-len(kept)+1)
		locked = append(locked, vertex)
		for _, edge := range edges {
			if _, exists := keptIds[edge.id]; !exists {
				locked = append(locked, this.vertex(edge.id))
			}
		}

		unlock := lockVertices(level, locked...)
		if vertex.versions[level] != version {
			unlock()
			continue
		}
		vertex.setEdgesLocked(level, kept)
		for _, dropped := range locked[1:] {
			dropped.removeEdgeLocked(level, vertex.id)
		}
		unlock()
		return
	}
}

type HnswStats struct {
	Len              int
	MaxLevel         int
	VerticesPerLevel []int
	EdgesPerLevel    []int
}

func (this HnswStats) AvgDegree(level int) float64 {
	if level >= len(this.VerticesPerLevel) || this.VerticesPerLevel[level] == 0 {
		return 0
	}
	return float64(this.EdgesPerLevel[level]) / float64(this.VerticesPerLevel[level])
}

func (this *Hnsw[T]) Stats() HnswStats {
	stats := HnswStats{
		Len:              this.Len(),
		MaxLevel:         this.MaxLevel(),
		VerticesPerLevel: make([]int, maxLevelCap+1),
		EdgesPerLevel:    make([]int, maxLevelCap+1),
	}
	for id := uint64(0); id < this.vertices.Len(); id++ {
		vertex := this.vertex(id)
		if vertex == nil {
			continue
		}
		for l := 0; l <= vertex.level; l++ {
			stats.VerticesPerLevel[l]++
			stats.EdgesPerLevel[l] += vertex.edgesCount(l)
		}
	}
	levels := math.MaxInt(stats.MaxLevel+1, 0)
	stats.VerticesPerLevel = stats.VerticesPerLevel[:levels]
	stats.EdgesPerLevel = stats.EdgesPerLevel[:levels]
	return stats
}

// CheckInvariants verifies edge symmetry, degree bounds, edge ordering and
// that the entrypoint sits at the highest level. The index must be quiescent.
func (this *Hnsw[T]) CheckInvariants() error {
	maxLevel := -1
	for id := uint64(0); id < this.vertices.Len(); id++ {
		vertex := this.vertex(id)
		if vertex == nil {
			return fmt.Errorf("vertex %d is missing", id)
		}
		maxLevel = math.MaxInt(maxLevel, vertex.level)

		for l := 0; l <= vertex.level; l++ {
			edges, _ := vertex.getEdges(l)
			if bound := this.config.maxNeighbors(l); len(edges) > bound {
				return fmt.Errorf("vertex %d has %d edges at level %d, bound is %d", id, len(edges), l, bound)
			}
			for i, edge := range edges {
				if edge.id == id {
					return fmt.Errorf("vertex %d links to itself at level %d", id, l)
				}
				if i > 0 && !edgeLess(edges[i-1], edge) {
					return fmt.Errorf("edges of vertex %d at level %d are not ordered", id, l)
				}
				neighbor := this.vertex(edge.id)
				if neighbor == nil {
					return fmt.Errorf("vertex %d links to missing vertex %d", id, edge.id)
				}
				if neighbor.level < l {
					return fmt.Errorf("vertex %d links to vertex %d above its level %d", id, edge.id, neighbor.level)
				}
				if !neighbor.hasEdge(l, id) {
					return fmt.Errorf("edge %d -> %d at level %d is not symmetric", id, edge.id, l)
				}
			}
		}
	}

	if entrypoint := this.getEntrypoint(); entrypoint != nil && entrypoint.level != maxLevel {
		return fmt.Errorf("entrypoint %d is at level %d, highest level is %d", entrypoint.id, entrypoint.level, maxLevel)
	}
	return nil
}
