package query

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hostel",
		Subsystem: "query_cache",
		Name:      "hits_total",
		Help:      "Reads served from a fresh cache entry.",
	}, []string{"resource"})

	cacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hostel",
		Subsystem: "query_cache",
		Name:      "misses_total",
		Help:      "Reads that went to the upstream API.",
	}, []string{"resource"})

	cacheCoalesced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hostel",
		Subsystem: "query_cache",
		Name:      "coalesced_total",
		Help:      "Reads that joined an in-flight fetch for the same key.",
	}, []string{"resource"})

	cacheErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hostel",
		Subsystem: "query_cache",
		Name:      "fetch_errors_total",
		Help:      "Upstream fetches that failed.",
	}, []string{"resource"})

	cacheDiscarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hostel",
		Subsystem: "query_cache",
		Name:      "discarded_total",
		Help:      "Fetch results dropped because the resource was invalidated mid-flight.",
	}, []string{"resource"})

	cacheInvalidations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hostel",
		Subsystem: "query_cache",
		Name:      "invalidations_total",
		Help:      "Resource invalidations by origin.",
	}, []string{"resource", "origin"})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses, cacheCoalesced, cacheErrors, cacheDiscarded, cacheInvalidations)
}
