package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	InsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splitdb_inserts_total",
			Help: "Total number of insert operations per index",
		},
		[]string{"index"},
	)

	SplitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splitdb_splits_total",
			Help: "Total number of node or bucket splits per index",
		},
		[]string{"index"},
	)

	DirectoryDoublings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "splitdb_directory_doublings_total",
			Help: "Total number of hash directory doublings",
		},
	)
)

func Init() {
	prometheus.MustRegister(InsertsTotal, SplitsTotal, DirectoryDoublings)
}
