package index

import (
	"context"

	"github.com/marekgalovic/hnswdb/index/space"
)

// AnnT is the narrow surface embedders build on.
type AnnT[T space.Element] interface {
	InsertData(vector []T, id uint64) error
	ParallelInsertData(items []InsertItem[T]) error
	SearchNeighbours(vector []T, k, ef int) ([]Neighbour, error)
	ParallelSearchNeighbours(vectors [][]T, k, ef int) ([][]Neighbour, error)
	FileDump(mode DumpMode, dir, basename string) (string, error)
}

var _ AnnT[float32] = (*Hnsw[float32])(nil)

func (this *Hnsw[T]) InsertData(vector []T, id uint64) error {
	_, err := this.Insert(vector, id)
	return err
}

func (this *Hnsw[T]) ParallelInsertData(items []InsertItem[T]) error {
	_, err := this.ParallelInsert(items)
	return err
}

func (this *Hnsw[T]) SearchNeighbours(vector []T, k, ef int) ([]Neighbour, error) {
	return this.Search(context.Background(), vector, k, ef)
}

func (this *Hnsw[T]) ParallelSearchNeighbours(vectors [][]T, k, ef int) ([][]Neighbour, error) {
	results, err := this.ParallelSearch(context.Background(), vectors, k, ef)
	neighbours := make([][]Neighbour, len(results))
	for i, result := range results {
		neighbours[i] = result
	}
	return neighbours, err
}
