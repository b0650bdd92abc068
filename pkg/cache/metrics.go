package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Labels: category (the first key component, e.g. b2Data)
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "renewapi",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Cache lookups answered from memory",
	}, []string{"category"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "renewapi",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Cache lookups that found nothing or a stale entry",
	}, []string{"category"})

	// Labels: category, reason (expired, invalidated, cleared)
	cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "renewapi",
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Cache entries removed",
	}, []string{"category", "reason"})
)
