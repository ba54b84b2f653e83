package index

import (
	"context"

	"github.com/marekgalovic/hnswdb/index/space"
	"github.com/marekgalovic/hnswdb/utils"
)

type InsertItem[T space.Element] struct {
	Vector []T
	Id     uint64
}

// ParallelInsert inserts items on the configured number of workers. Ids are
// returned in input order with InvalidId at failed positions, whose errors are
// reported through a *BatchError. A failing item never stops the others.
func (this *Hnsw[T]) ParallelInsert(items []InsertItem[T]) ([]uint64, error) {
	ids := make([]uint64, len(items))
	errs := utils.ParallelFor(len(items), this.config.workers, func(i int) error {
		id, err := this.Insert(items[i].Vector, items[i].Id)
		ids[i] = id
		return err
	})

	if err := newBatchError(errs); err != nil {
		this.log.Warnf("Parallel insert: %v", err)
		return ids, err
	}
	return ids, nil
}

// ParallelSearch answers every query independently. Failed positions hold nil.
func (this *Hnsw[T]) ParallelSearch(ctx context.Context, queries [][]T, k, ef int) ([]SearchResult, error) {
	results := make([]SearchResult, len(queries))
	errs := utils.ParallelFor(len(queries), this.config.workers, func(i int) error {
		result, err := this.Search(ctx, queries[i], k, ef)
		results[i] = result
		return err
	})

	return results, newBatchError(errs)
}
