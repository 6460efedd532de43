// Package metrics collects request, system and cache metrics for the mirror.
//
// All state lives in memory and resets on process restart. A single Store
// instance is created by the composition root and shared by the HTTP layer,
// the background sampler and the proxy layer.
package metrics

import (
	"sync"
	"time"
)

const (
	// DefaultRequestHistorySize bounds the per-request history buffer.
	DefaultRequestHistorySize = 10000

	// DefaultSystemHistorySize bounds the system snapshot buffer. Snapshots
	// arrive on a timer rather than per request, so far fewer are kept.
	DefaultSystemHistorySize = 1000

	// Per-endpoint response time lists are trimmed to the most recent
	// responseTimeKeep entries once they exceed responseTimeTrimAt.
	responseTimeTrimAt = 1000
	responseTimeKeep   = 500

	// systemStatsWindow is how many recent snapshots CPU and memory
	// percentages are averaged over.
	systemStatsWindow = 10
)

// RequestMetric describes one completed HTTP request.
type RequestMetric struct {
	Method        string
	Path          string
	StatusCode    int
	ResponseTime  float64 // seconds
	BytesSent     int64
	BytesReceived int64
	Timestamp     time.Time
}

// Endpoint returns the aggregation key for this request.
func (m RequestMetric) Endpoint() string {
	return m.Method + " " + m.Path
}

// SystemSnapshot is one periodic host resource sample. Disk and network
// byte fields are per-interval deltas, not cumulative counters.
type SystemSnapshot struct {
	CPUPercent           float64
	MemoryPercent        float64
	DiskUsagePercent     float64
	DiskReadBytes        uint64
	DiskWriteBytes       uint64
	NetworkBytesSent     uint64
	NetworkBytesReceived uint64
	Timestamp            time.Time
}

// EndpointStats aggregates requests sharing a method+path key.
type EndpointStats struct {
	Count           int64   `json:"count"`
	AvgResponseTime float64 `json:"avg_time"`
	Bytes           int64   `json:"bytes"`
}

// RequestStatsResult holds request statistics for a time window.
type RequestStatsResult struct {
	TotalRequests         int                      `json:"total_requests"`
	AvgResponseTime       float64                  `json:"avg_response_time"`
	TotalBytesTransferred int64                    `json:"total_bytes_transferred"`
	StatusCodes           map[int]int              `json:"status_codes"`
	Endpoints             map[string]EndpointStats `json:"endpoints"`
}

// SystemStatsResult holds the most recent system readings. CPU and memory
// are averages over the last few snapshots; the rest comes from the latest
// snapshot verbatim.
type SystemStatsResult struct {
	CPUPercent           float64 `json:"cpu_percent"`
	MemoryPercent        float64 `json:"memory_percent"`
	DiskUsagePercent     float64 `json:"disk_usage_percent"`
	DiskReadBytes        uint64  `json:"disk_read_bytes"`
	DiskWriteBytes       uint64  `json:"disk_write_bytes"`
	NetworkBytesSent     uint64  `json:"network_bytes_sent"`
	NetworkBytesReceived uint64  `json:"network_bytes_received"`
}

// CacheStatsResult holds cache hit/miss tallies.
type CacheStatsResult struct {
	TotalRequests  int64   `json:"total_requests"`
	Hits           int64   `json:"cache_hits"`
	Misses         int64   `json:"cache_misses"`
	HitRatePercent float64 `json:"hit_rate_percent"`
}

// StoreConfig configures a Store. Zero values select defaults.
type StoreConfig struct {
	// RequestHistorySize is the maximum number of request metrics kept.
	RequestHistorySize int

	// SystemHistorySize is the maximum number of system snapshots kept.
	SystemHistorySize int
}

// Store is a concurrency-safe in-memory metrics store. A single mutex
// guards all state; operations are O(history size) at worst, so holding
// the lock for the duration of a snapshot is acceptable.
type Store struct {
	maxRequestHistory int
	maxSystemHistory  int

	mu               sync.Mutex
	requestHistory   []RequestMetric
	requestCounts    map[string]int64
	responseTimes    map[string][]float64
	bytesTransferred map[string]int64

	systemHistory []SystemSnapshot

	cacheHits   int64
	cacheMisses int64
	cacheTotal  int64

	now func() time.Time
}

// NewStore creates a metrics store with the given configuration.
func NewStore(cfg StoreConfig) *Store {
	if cfg.RequestHistorySize <= 0 {
		cfg.RequestHistorySize = DefaultRequestHistorySize
	}
	if cfg.SystemHistorySize <= 0 {
		cfg.SystemHistorySize = DefaultSystemHistorySize
	}
	return &Store{
		maxRequestHistory: cfg.RequestHistorySize,
		maxSystemHistory:  cfg.SystemHistorySize,
		requestCounts:     make(map[string]int64),
		responseTimes:     make(map[string][]float64),
		bytesTransferred:  make(map[string]int64),
		now:               time.Now,
	}
}

// RecordRequest appends a request metric to the bounded history and updates
// the per-endpoint aggregates. The oldest entry is discarded once the
// history is full.
func (s *Store) RecordRequest(m RequestMetric) {
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requestHistory = append(s.requestHistory, m)
	if len(s.requestHistory) > s.maxRequestHistory {
		s.requestHistory = s.requestHistory[len(s.requestHistory)-s.maxRequestHistory:]
	}

	endpoint := m.Endpoint()
	s.requestCounts[endpoint]++

	times := append(s.responseTimes[endpoint], m.ResponseTime)
	if len(times) > responseTimeTrimAt {
		times = times[len(times)-responseTimeKeep:]
	}
	s.responseTimes[endpoint] = times

	s.bytesTransferred[endpoint] += m.BytesSent + m.BytesReceived
}

// RecordCacheHit increments the hit and total counters.
func (s *Store) RecordCacheHit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheHits++
	s.cacheTotal++
}

// RecordCacheMiss increments the miss and total counters.
func (s *Store) RecordCacheMiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheMisses++
	s.cacheTotal++
}

// AppendSystemSnapshot appends a snapshot to the bounded system history.
func (s *Store) AppendSystemSnapshot(snap SystemSnapshot) {
	if snap.Timestamp.IsZero() {
		snap.Timestamp = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.systemHistory = append(s.systemHistory, snap)
	if len(s.systemHistory) > s.maxSystemHistory {
		s.systemHistory = s.systemHistory[len(s.systemHistory)-s.maxSystemHistory:]
	}
}

// RequestStats computes request statistics over the given trailing window.
// An empty window yields a zero-valued result with empty maps.
func (s *Store) RequestStats(window time.Duration) RequestStatsResult {
	cutoff := s.now().Add(-window)

	// Snapshot matching entries under the lock, aggregate outside it.
	s.mu.Lock()
	recent := make([]RequestMetric, 0, len(s.requestHistory))
	for _, m := range s.requestHistory {
		if !m.Timestamp.Before(cutoff) {
			recent = append(recent, m)
		}
	}
	s.mu.Unlock()

	result := RequestStatsResult{
		StatusCodes: make(map[int]int),
		Endpoints:   make(map[string]EndpointStats),
	}

	if len(recent) == 0 {
		return result
	}

	var totalTime float64
	for _, m := range recent {
		totalTime += m.ResponseTime
		result.TotalBytesTransferred += m.BytesSent + m.BytesReceived
		result.StatusCodes[m.StatusCode]++

		es := result.Endpoints[m.Endpoint()]
		es.Count++
		es.Bytes += m.BytesSent + m.BytesReceived
		// Accumulate; divided into a mean below.
		es.AvgResponseTime += m.ResponseTime
		result.Endpoints[m.Endpoint()] = es
	}

	result.TotalRequests = len(recent)
	result.AvgResponseTime = totalTime / float64(len(recent))

	for endpoint, es := range result.Endpoints {
		es.AvgResponseTime /= float64(es.Count)
		result.Endpoints[endpoint] = es
	}

	return result
}

// SystemStats returns the latest system readings. CPU and memory are
// averaged over the most recent snapshots to smooth out spikes; disk and
// network deltas come from the latest snapshot. With no history it returns
// a zero-valued result.
func (s *Store) SystemStats() SystemStatsResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.systemHistory) == 0 {
		return SystemStatsResult{}
	}

	latest := s.systemHistory[len(s.systemHistory)-1]

	recent := s.systemHistory
	if len(recent) > systemStatsWindow {
		recent = recent[len(recent)-systemStatsWindow:]
	}

	var cpu, mem float64
	for _, snap := range recent {
		cpu += snap.CPUPercent
		mem += snap.MemoryPercent
	}

	return SystemStatsResult{
		CPUPercent:           cpu / float64(len(recent)),
		MemoryPercent:        mem / float64(len(recent)),
		DiskUsagePercent:     latest.DiskUsagePercent,
		DiskReadBytes:        latest.DiskReadBytes,
		DiskWriteBytes:       latest.DiskWriteBytes,
		NetworkBytesSent:     latest.NetworkBytesSent,
		NetworkBytesReceived: latest.NetworkBytesReceived,
	}
}

// CacheStats returns the running cache hit/miss tallies. The hit rate is
// zero when no cache requests have been recorded.
func (s *Store) CacheStats() CacheStatsResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := CacheStatsResult{
		TotalRequests: s.cacheTotal,
		Hits:          s.cacheHits,
		Misses:        s.cacheMisses,
	}
	if s.cacheTotal > 0 {
		result.HitRatePercent = float64(s.cacheHits) / float64(s.cacheTotal) * 100
	}
	return result
}
