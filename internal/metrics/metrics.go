// Package metrics exposes counters for the import pipeline. Everything is
// registered on the default registry; Serve publishes it when an address is
// configured.
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RowsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "import",
		Name:      "rows_processed_total",
		Help:      "Catalog rows that completed all requested stages.",
	})
	RowsAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "import",
		Name:      "rows_abandoned_total",
		Help:      "Catalog rows abandoned after a stage failure or a sub-threshold detection.",
	})
	RowsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "import",
		Name:      "rows_skipped_total",
		Help:      "Catalog rows skipped before any stage ran.",
	})
	Fetches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "import",
		Name:      "fetches_total",
		Help:      "Origin downloads attempted.",
	})
	FetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "import",
		Name:      "fetch_failures_total",
		Help:      "Origin downloads that failed.",
	})
	Publishes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "import",
		Name:      "publishes_total",
		Help:      "Objects uploaded to the object store.",
	})
	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "import",
		Name:      "publish_failures_total",
		Help:      "Object store uploads that failed.",
	})
	DetectCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "import",
		Name:      "detect_cache_hits_total",
		Help:      "Detections answered from side-car metadata.",
	})
	DetectCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "import",
		Name:      "detect_cache_misses_total",
		Help:      "Detections that required an inference service call.",
	})
	TagsRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "import",
		Name:      "tags_registered_total",
		Help:      "Distinct tags assigned an identifier this run.",
	})
	BatchFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "import",
		Name:      "batch_flushes_total",
		Help:      "Bulk loader batches flushed.",
	})
)

// Serve exposes /metrics on addr in the background. A no-op when addr is
// empty.
func Serve(addr string) {
	if addr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Printf("Metrics listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Metrics listener failed: %v", err)
		}
	}()
}
