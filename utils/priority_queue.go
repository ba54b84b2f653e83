package utils

import (
	"container/heap"
)

// PriorityQueue orders items by priority and breaks ties by key, so that
// items with equal priority come out in ascending key order from a min queue
// and descending key order from a max queue.
type PriorityQueue[V any] interface {
	Len() int
	Push(*PriorityQueueItem[V])
	Pop() *PriorityQueueItem[V]
	Peek() *PriorityQueueItem[V]
	ToSlice() []*PriorityQueueItem[V]
}

type priorityQueue[V any] struct {
	queue heap.Interface
}

type PriorityQueueItem[V any] struct {
	priority float32
	key      uint64
	value    V
}

func NewPriorityQueueItem[V any](priority float32, key uint64, value V) *PriorityQueueItem[V] {
	return &PriorityQueueItem[V]{priority, key, value}
}

func NewMinPriorityQueue[V any](items ...*PriorityQueueItem[V]) PriorityQueue[V] {
	queue := make(minPriorityQueue[V], 0, len(items))
	return initializePriorityQueue[V](&queue, items...)
}

func NewMaxPriorityQueue[V any](items ...*PriorityQueueItem[V]) PriorityQueue[V] {
	queue := make(maxPriorityQueue[V], 0, len(items))
	return initializePriorityQueue[V](&queue, items...)
}

func initializePriorityQueue[V any](queue heap.Interface, items ...*PriorityQueueItem[V]) PriorityQueue[V] {
	heap.Init(queue)
	pq := &priorityQueue[V]{
		queue: queue,
	}

	for _, item := range items {
		pq.Push(item)
	}

	return pq
}

// Item
func (item *PriorityQueueItem[V]) Priority() float32 {
	return item.priority
}

func (item *PriorityQueueItem[V]) Key() uint64 {
	return item.key
}

func (item *PriorityQueueItem[V]) Value() V {
	return item.value
}

// Priority Queue
func (pq *priorityQueue[V]) Len() int {
	return pq.queue.Len()
}

func (pq *priorityQueue[V]) Push(item *PriorityQueueItem[V]) {
	heap.Push(pq.queue, item)
}

func (pq *priorityQueue[V]) Pop() *PriorityQueueItem[V] {
	if pq.Len() == 0 {
		panic("Empty priority queue")
	}

	return heap.Pop(pq.queue).(*PriorityQueueItem[V])
}

func (pq *priorityQueue[V]) Peek() *PriorityQueueItem[V] {
	if pq.Len() == 0 {
		panic("Empty priority queue")
	}

	return pq.ToSlice()[0]
}

func (pq *priorityQueue[V]) ToSlice() []*PriorityQueueItem[V] {
	switch queue := pq.queue.(type) {
	case *minPriorityQueue[V]:
		return *queue
	case *maxPriorityQueue[V]:
		return *queue
	default:
		panic("Invalid queue type")
	}
}

type minPriorityQueue[V any] []*PriorityQueueItem[V]

type maxPriorityQueue[V any] []*PriorityQueueItem[V]

func (pq minPriorityQueue[V]) Len() int { return len(pq) }

func (pq minPriorityQueue[V]) Less(i, j int) bool {
	if pq[i].priority == pq[j].priority {
		return pq[i].key < pq[j].key
	}
	return pq[i].priority < pq[j].priority
}

func (pq minPriorityQueue[V]) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *minPriorityQueue[V]) Pop() interface{} {
	queue := *pq
	item := queue[len(queue)-1]
	queue[len(queue)-1] = nil
	*pq = queue[0 : len(queue)-1]
	return item
}

func (pq *minPriorityQueue[V]) Push(val interface{}) {
	*pq = append(*pq, val.(*PriorityQueueItem[V]))
}

func (pq maxPriorityQueue[V]) Len() int { return len(pq) }

func (pq maxPriorityQueue[V]) Less(i, j int) bool {
	if pq[i].priority == pq[j].priority {
		return pq[i].key > pq[j].key
	}
	return pq[i].priority > pq[j].priority
}

func (pq maxPriorityQueue[V]) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *maxPriorityQueue[V]) Pop() interface{} {
	queue := *pq
	item := queue[len(queue)-1]
	queue[len(queue)-1] = nil
	*pq = queue[0 : len(queue)-1]
	return item
}

func (pq *maxPriorityQueue[V]) Push(val interface{}) {
	*pq = append(*pq, val.(*PriorityQueueItem[V]))
}
