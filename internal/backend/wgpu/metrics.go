package wgpu

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	poolHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flare_wgpu_pool_hits_total",
		Help: "Total number of successful device block pool retrievals",
	})

	poolMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flare_wgpu_pool_misses_total",
		Help: "Total number of device block pool misses (new allocations)",
	})

	poolFreeBlocks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flare_wgpu_pool_free_blocks",
		Help: "Current number of free blocks held by the pool",
	})

	poolOutstandingBlocks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flare_wgpu_pool_outstanding_blocks",
		Help: "Current number of blocks attached to live residency records",
	})

	residentArrays = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flare_wgpu_resident_arrays",
		Help: "Current number of registered array handles",
	})

	programsCompiled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flare_wgpu_programs_compiled_total",
		Help: "Total number of device programs compiled (cache misses)",
	})
)
