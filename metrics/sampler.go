package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	gopsnet "github.com/shirou/gopsutil/v4/net"
)

// SamplerConfig holds sampler configuration.
type SamplerConfig struct {
	// Interval between samples. Default is 5 seconds.
	Interval time.Duration

	// ErrorRetry is how long to wait after a failed sample before trying
	// again. Default is 10 seconds.
	ErrorRetry time.Duration

	// DiskPath is the mount point used for the disk usage percentage.
	// Default is "/".
	DiskPath string

	// Logger for sampling events.
	Logger *slog.Logger
}

// systemProbe reads raw host metrics. Disk and network counters are
// cumulative since boot; the sampler converts them to deltas.
type systemProbe interface {
	CPUPercent() (float64, error)
	MemoryPercent() (float64, error)
	DiskUsagePercent(path string) (float64, error)
	DiskIOCounters() (readBytes, writeBytes uint64, err error)
	NetIOCounters() (bytesSent, bytesRecv uint64, err error)
}

// Sampler periodically samples host resources into a Store. Sampling
// failures are logged and retried on a longer interval; they never stop
// the sampler or the host process.
type Sampler struct {
	config SamplerConfig
	store  *Store
	probe  systemProbe
	logger *slog.Logger

	lastDiskRead    uint64
	lastDiskWrite   uint64
	lastNetSent     uint64
	lastNetRecv     uint64
	hasDiskBaseline bool
	hasNetBaseline  bool

	mu      sync.Mutex
	running bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSampler creates a sampler writing snapshots into the given store.
func NewSampler(store *Store, cfg SamplerConfig) *Sampler {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.ErrorRetry == 0 {
		cfg.ErrorRetry = 10 * time.Second
	}
	if cfg.DiskPath == "" {
		cfg.DiskPath = "/"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Sampler{
		config: cfg,
		store:  store,
		probe:  gopsutilProbe{},
		logger: cfg.Logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins background sampling.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// Stop stops background sampling and waits for the sampling goroutine to
// exit.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
}

func (s *Sampler) run(ctx context.Context) {
	defer close(s.doneCh)

	// Sample immediately on start, then on the configured interval.
	delay := s.sampleOnce()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-timer.C:
			timer.Reset(s.sampleOnce())
		}
	}
}

// sampleOnce takes one sample and returns the delay until the next one.
func (s *Sampler) sampleOnce() time.Duration {
	snap, err := s.collect()
	if err != nil {
		s.logger.Error("failed to sample system metrics", "error", err)
		return s.config.ErrorRetry
	}

	s.store.AppendSystemSnapshot(snap)
	return s.config.Interval
}

// SampleOnce takes a single sample outside the background loop. Intended
// for tests and one-shot tooling.
func (s *Sampler) SampleOnce() error {
	snap, err := s.collect()
	if err != nil {
		return err
	}
	s.store.AppendSystemSnapshot(snap)
	return nil
}

func (s *Sampler) collect() (SystemSnapshot, error) {
	cpuPct, err := s.probe.CPUPercent()
	if err != nil {
		return SystemSnapshot{}, fmt.Errorf("reading cpu: %w", err)
	}

	memPct, err := s.probe.MemoryPercent()
	if err != nil {
		return SystemSnapshot{}, fmt.Errorf("reading memory: %w", err)
	}

	diskPct, err := s.probe.DiskUsagePercent(s.config.DiskPath)
	if err != nil {
		return SystemSnapshot{}, fmt.Errorf("reading disk usage: %w", err)
	}

	diskRead, diskWrite, err := s.probe.DiskIOCounters()
	if err != nil {
		return SystemSnapshot{}, fmt.Errorf("reading disk io: %w", err)
	}

	netSent, netRecv, err := s.probe.NetIOCounters()
	if err != nil {
		return SystemSnapshot{}, fmt.Errorf("reading network io: %w", err)
	}

	snap := SystemSnapshot{
		CPUPercent:       cpuPct,
		MemoryPercent:    memPct,
		DiskUsagePercent: diskPct,
	}

	// The first reading has no baseline, so deltas stay zero. Counters can
	// also reset under us on reboot or interface churn.
	if s.hasDiskBaseline {
		snap.DiskReadBytes = counterDelta(diskRead, s.lastDiskRead)
		snap.DiskWriteBytes = counterDelta(diskWrite, s.lastDiskWrite)
	}
	s.lastDiskRead = diskRead
	s.lastDiskWrite = diskWrite
	s.hasDiskBaseline = true

	if s.hasNetBaseline {
		snap.NetworkBytesSent = counterDelta(netSent, s.lastNetSent)
		snap.NetworkBytesReceived = counterDelta(netRecv, s.lastNetRecv)
	}
	s.lastNetSent = netSent
	s.lastNetRecv = netRecv
	s.hasNetBaseline = true

	return snap, nil
}

func counterDelta(current, previous uint64) uint64 {
	if current < previous {
		return 0
	}
	return current - previous
}

// gopsutilProbe reads host metrics via gopsutil.
type gopsutilProbe struct{}

func (gopsutilProbe) CPUPercent() (float64, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, nil
	}
	return percents[0], nil
}

func (gopsutilProbe) MemoryPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

func (gopsutilProbe) DiskUsagePercent(path string) (float64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.UsedPercent, nil
}

func (gopsutilProbe) DiskIOCounters() (uint64, uint64, error) {
	counters, err := disk.IOCounters()
	if err != nil {
		return 0, 0, err
	}
	var readBytes, writeBytes uint64
	for _, c := range counters {
		readBytes += c.ReadBytes
		writeBytes += c.WriteBytes
	}
	return readBytes, writeBytes, nil
}

func (gopsutilProbe) NetIOCounters() (uint64, uint64, error) {
	counters, err := gopsnet.IOCounters(false)
	if err != nil {
		return 0, 0, err
	}
	if len(counters) == 0 {
		return 0, 0, nil
	}
	return counters[0].BytesSent, counters[0].BytesRecv, nil
}
