package profiler

import (
	"log"
	"runtime"
	"sync"
	"time"
)

// Stats is a cumulative snapshot of the engine's tick and dispatch counters.
type Stats struct {
	// Ticks is the number of ticks received.
	Ticks uint64
	// Dispatches is the number of dispatches completed, failed ones included.
	Dispatches uint64
	// Failures is the number of dispatches that completed with an error.
	Failures uint64
	// Elements is the total number of slots dispatched.
	Elements uint64
	// LastDispatch is the duration of the most recent dispatch.
	LastDispatch time.Duration
	// MaxDispatch is the longest dispatch seen.
	MaxDispatch time.Duration
}

// Profiler tracks tick rate, dispatch timing and memory statistics for performance monitoring.
// When logging is enabled it outputs stats to the log at a configurable interval.
type Profiler struct {
	mu *sync.Mutex

	totals Stats

	tickCount      int
	dispatchCount  int
	dispatchTime   time.Duration
	maxDispatch    time.Duration
	elementCount   int
	lastTime       time.Time
	updateInterval time.Duration
	logging        bool

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler with the provided options applied.
// Update interval defaults to 1 second and logging is off.
//
// Parameters:
//   - options: variadic list of ProfilerBuilderOption functions to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		lastTime:       time.Now(),
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// SetLogging turns periodic logging on or off.
//
// Parameters:
//   - enabled: whether Tick logs stats
func (p *Profiler) SetLogging(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logging = enabled
}

// RecordDispatch should be called once per completed dispatch.
//
// Parameters:
//   - elements: the number of slots dispatched
//   - d: the dispatch duration
//   - err: the dispatch error, nil on success
func (p *Profiler) RecordDispatch(elements int, d time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totals.Dispatches++
	p.totals.Elements += uint64(elements)
	p.totals.LastDispatch = d
	p.totals.MaxDispatch = max(p.totals.MaxDispatch, d)
	if err != nil {
		p.totals.Failures++
	}

	p.dispatchCount++
	p.dispatchTime += d
	p.maxDispatch = max(p.maxDispatch, d)
	p.elementCount += elements
}

// Stats returns the cumulative counters.
//
// Returns:
//   - Stats: a snapshot of the counters
func (p *Profiler) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totals
}

// Tick should be called once per engine tick to track tick timing.
// Logs performance statistics when logging is enabled and the update interval has elapsed.
// Statistics include: tick rate, dispatch rate, average and max dispatch time, slots per dispatch,
// heap usage, allocation rate and GC count/pause times.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totals.Ticks++
	p.tickCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}

	logged := false
	if p.logging {
		tps := float64(p.tickCount) / elapsed.Seconds()
		dps := float64(p.dispatchCount) / elapsed.Seconds()
		var avgDispatchUs, slotsPerDispatch float64
		if p.dispatchCount > 0 {
			avgDispatchUs = float64(p.dispatchTime.Microseconds()) / float64(p.dispatchCount)
			slotsPerDispatch = float64(p.elementCount) / float64(p.dispatchCount)
		}

		runtime.ReadMemStats(&p.memStats)
		allocMB := float64(p.memStats.Alloc) / 1024 / 1024

		allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
		allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

		// PauseNs is a circular buffer of the last 256 GC pauses
		gcCount := p.memStats.NumGC
		var maxPauseUs uint64
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}

		log.Printf("[Profiler] Ticks: %.2f/s | Dispatches: %.2f/s | Dispatch: %.1f µs avg, %d µs max | Slots: %.1f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (max: %d µs)",
			tps, dps, avgDispatchUs, p.maxDispatch.Microseconds(), slotsPerDispatch, allocMB, allocRateMB, gcCount, maxPauseUs)

		p.lastGCCount = gcCount
		p.lastTotalAlloc = p.memStats.TotalAlloc
		logged = true
	}

	p.tickCount = 0
	p.dispatchCount = 0
	p.dispatchTime = 0
	p.maxDispatch = 0
	p.elementCount = 0
	p.lastTime = currentTime
	return logged
}
