package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hnswdb_inserts_total",
			Help: "Total number of insertions, labeled by outcome",
		},
		[]string{"index", "status"},
	)

	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hnswdb_searches_total",
			Help: "Total number of searches, labeled by outcome",
		},
		[]string{"index", "status"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hnswdb_search_duration_seconds",
			Help:    "Duration of single searches in seconds",
			Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"index"},
	)

	Vertices = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hnswdb_vertices",
			Help: "Number of vertices in the graph",
		},
		[]string{"index"},
	)

	PersistenceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hnswdb_persistence_operations_total",
			Help: "Dump and load operations, labeled by outcome",
		},
		[]string{"index", "operation", "status"},
	)
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Index binds the collectors to one index name.
type Index struct {
	inserts       *prometheus.CounterVec
	searches      *prometheus.CounterVec
	searchLatency prometheus.Observer
	vertices      prometheus.Gauge
	persistence   *prometheus.CounterVec
}

func ForIndex(name string) *Index {
	labels := prometheus.Labels{"index": name}
	return &Index{
		inserts:       InsertsTotal.MustCurryWith(labels),
		searches:      SearchesTotal.MustCurryWith(labels),
		searchLatency: SearchDuration.With(labels),
		vertices:      Vertices.With(labels),
		persistence:   PersistenceTotal.MustCurryWith(labels),
	}
}

func (this *Index) Insert(err error) {
	this.inserts.WithLabelValues(status(err)).Inc()
	if err == nil {
		this.vertices.Inc()
	}
}

func (this *Index) Search(seconds float64, err error) {
	this.searches.WithLabelValues(status(err)).Inc()
	if err == nil {
		this.searchLatency.Observe(seconds)
	}
}

func (this *Index) SetVertices(n uint64) {
	this.vertices.Set(float64(n))
}

func (this *Index) Dump(err error) {
	this.persistence.WithLabelValues("dump", status(err)).Inc()
}

func (this *Index) Load(err error) {
	this.persistence.WithLabelValues("load", status(err)).Inc()
}
