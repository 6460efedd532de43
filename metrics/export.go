package metrics

import (
	"fmt"
	"strings"
	"time"
)

// exportWindow is the fixed request window the exposition text reports over.
const exportWindow = time.Hour

// ExportText serializes the current aggregates in a Prometheus-style
// exposition format: two comment lines (HELP, TYPE) followed by a
// name/value line per metric family. External scrapers match on the metric
// name prefix, so the names below must never change once published.
func (s *Store) ExportText() string {
	var b strings.Builder

	requests := s.RequestStats(exportWindow)
	writeMetric(&b, "hubmirror_http_requests_total", "counter",
		"Total number of HTTP requests",
		fmt.Sprintf("%d", requests.TotalRequests))
	writeMetric(&b, "hubmirror_http_request_duration_seconds", "gauge",
		"Average HTTP request duration",
		fmt.Sprintf("%.4f", requests.AvgResponseTime))
	writeMetric(&b, "hubmirror_http_bytes_transferred_total", "counter",
		"Total bytes transferred",
		fmt.Sprintf("%d", requests.TotalBytesTransferred))

	system := s.SystemStats()
	writeMetric(&b, "hubmirror_system_cpu_percent", "gauge",
		"CPU usage percentage",
		fmt.Sprintf("%.2f", system.CPUPercent))
	writeMetric(&b, "hubmirror_system_memory_percent", "gauge",
		"Memory usage percentage",
		fmt.Sprintf("%.2f", system.MemoryPercent))
	writeMetric(&b, "hubmirror_system_disk_usage_percent", "gauge",
		"Disk usage percentage",
		fmt.Sprintf("%.2f", system.DiskUsagePercent))

	cache := s.CacheStats()
	writeMetric(&b, "hubmirror_cache_requests_total", "counter",
		"Total cache requests",
		fmt.Sprintf("%d", cache.TotalRequests))
	writeMetric(&b, "hubmirror_cache_hits_total", "counter",
		"Total cache hits",
		fmt.Sprintf("%d", cache.Hits))
	writeMetric(&b, "hubmirror_cache_misses_total", "counter",
		"Total cache misses",
		fmt.Sprintf("%d", cache.Misses))
	writeMetric(&b, "hubmirror_cache_hit_rate_percent", "gauge",
		"Cache hit rate percentage",
		fmt.Sprintf("%.2f", cache.HitRatePercent))

	return strings.TrimRight(b.String(), "\n")
}

func writeMetric(b *strings.Builder, name, kind, help, value string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(b, "%s %s\n", name, value)
}
