// Package metrics holds the prometheus collectors of the persistence substrate
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared by the collectors below
const (
	Ok   = "ok"
	Fail = "fail"
	Hit  = "hit"
	Miss = "miss"
)

var (
	DBStatementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazaar_db_statements_total",
		Help: "Statements executed through the pool manager, after retries.",
	}, []string{"op", "outcome"})

	DBRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazaar_db_retries_total",
		Help: "Statement retries scheduled, by fault classification.",
	}, []string{"fault"})

	DBPoolExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazaar_db_pool_exhausted_total",
		Help: "Statements rejected because the pool wait queue was full.",
	})

	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazaar_cache_requests_total",
		Help: "Cache facade calls by operation and result (hit, miss, ok, fail).",
	}, []string{"op", "result"})

	CacheInvalidatedKeysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazaar_cache_invalidated_keys_total",
		Help: "Keys removed by prefix invalidation.",
	})

	StorageWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazaar_storage_writes_total",
		Help: "Binary object writes by provider and outcome.",
	}, []string{"provider", "outcome"})

	StorageWriteBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bazaar_storage_write_bytes",
		Help:    "Size of binary objects written.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8), // 1KB to ~16MB
	}, []string{"provider"})
)
