package index

type Neighbour struct {
	Id         uint64
	InternalId uint64
	Distance   float32
}

// SearchResult is ordered by ascending distance, ties by internal id.
type SearchResult []Neighbour

func (this SearchResult) Len() int {
	return len(this)
}

func (this SearchResult) Swap(i, j int) {
	this[i], this[j] = this[j], this[i]
}

func (this SearchResult) Less(i, j int) bool {
	if this[i].Distance == this[j].Distance {
		return this[i].InternalId < this[j].InternalId
	}
	return this[i].Distance < this[j].Distance
}

func (this SearchResult) Ids() []uint64 {
	ids := make([]uint64, len(this))
	for i, n := range this {
		ids[i] = n.Id
	}
	return ids
}
