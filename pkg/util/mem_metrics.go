package util

import (
	"github.com/prometheus/client_golang/prometheus"
)

type memCollector struct {
	inUseDesc *prometheus.Desc
	totalDesc *prometheus.Desc
}

// NewMemCollector exposes the tagged allocator counters as prometheus
// metrics, labeled by tag.
func NewMemCollector() prometheus.Collector {
	return &memCollector{
		inUseDesc: prometheus.NewDesc(
			"filesort_mem_in_use_bytes",
			"Bytes currently allocated through the tagged allocator.",
			[]string{"tag"}, nil),
		totalDesc: prometheus.NewDesc(
			"filesort_mem_total_bytes",
			"Cumulative bytes allocated through the tagged allocator.",
			[]string{"tag"}, nil),
	}
}

func (c *memCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inUseDesc
	ch <- c.totalDesc
}

func (c *memCollector) Collect(ch chan<- prometheus.Metric) {
	metrics := GetMemMetrics()
	for tag := MemTag(0); tag < MemNumTags; tag++ {
		ch <- prometheus.MustNewConstMetric(
			c.inUseDesc,
			prometheus.GaugeValue,
			float64(metrics[tag].InUseBytes),
			tag.String())
		ch <- prometheus.MustNewConstMetric(
			c.totalDesc,
			prometheus.CounterValue,
			float64(metrics[tag].TotalBytes),
			tag.String())
	}
}
