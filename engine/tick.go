package engine

import (
	"sync"
	"time"
)

// TickSource delivers frame ticks to an engine's Run loop. Each value on Ticks is the elapsed time
// in seconds since the previous value. The engine starts the source when animations are registered
// and stops it when none are left.
type TickSource interface {
	// Ticks returns the channel ticks are delivered on.
	//
	// Returns:
	//   - <-chan float32: the tick channel, values are seconds
	Ticks() <-chan float32

	// Start starts delivering ticks. Calling Start on a running source does nothing.
	Start()

	// Stop stops delivering ticks. Time spent stopped is not reported by the next tick.
	Stop()

	// Running reports whether the source is started.
	//
	// Returns:
	//   - bool: true while started
	Running() bool

	// SetRate changes the tick rate. Sources without a rate ignore it.
	//
	// Parameters:
	//   - hz: ticks per second, values <= 0 select 60
	SetRate(hz float64)
}

// tickerSource is a TickSource driven by a time.Ticker.
type tickerSource struct {
	mu *sync.Mutex

	ticks   chan float32
	rate    time.Duration
	ticker  *time.Ticker
	stop    chan struct{}
	running bool
}

var _ TickSource = &tickerSource{}

// NewTickerSource creates a TickSource ticking at a fixed rate. When the consumer falls behind,
// pending ticks are coalesced into one carrying the summed time.
//
// Parameters:
//   - hz: ticks per second, values <= 0 select 60
//
// Returns:
//   - TickSource: the new, stopped tick source
func NewTickerSource(hz float64) TickSource {
	return &tickerSource{
		mu:    &sync.Mutex{},
		ticks: make(chan float32, 1),
		rate:  rateToInterval(hz),
	}
}

func (s *tickerSource) Ticks() <-chan float32 {
	return s.ticks
}

func (s *tickerSource) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.ticker = time.NewTicker(s.rate)
	s.stop = make(chan struct{})
	go s.pump(s.ticker, s.stop)
}

func (s *tickerSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.ticker.Stop()
	close(s.stop)
	select {
	case <-s.ticks:
	default:
	}
}

func (s *tickerSource) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *tickerSource) SetRate(hz float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rate = rateToInterval(hz)
	if s.running {
		s.ticker.Reset(s.rate)
	}
}

// pump forwards ticker ticks as elapsed seconds until stop is closed.
func (s *tickerSource) pump(ticker *time.Ticker, stop chan struct{}) {
	lastTick := time.Now()
	var pending float32
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			pending += float32(now.Sub(lastTick).Seconds())
			lastTick = now
			if !s.send(stop, pending) {
				continue
			}
			pending = 0
		}
	}
}

// send delivers dt unless stop has been closed. It runs under the lock so nothing is pushed after
// Stop has drained the channel.
func (s *tickerSource) send(stop chan struct{}, dt float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-stop:
		return false
	default:
	}
	select {
	case s.ticks <- dt:
		return true
	default:
		return false
	}
}

// manualTickSource is a TickSource whose ticks are issued by the caller.
type manualTickSource struct {
	mu *sync.Mutex

	ticks   chan float32
	running bool
}

// ManualTickSource is a TickSource driven by explicit Tick calls, for tests and headless tools.
type ManualTickSource interface {
	TickSource

	// Tick delivers a tick of dt seconds if the source is running. Ticks issued faster than they are
	// consumed are coalesced.
	//
	// Parameters:
	//   - dt: the elapsed time in seconds
	//
	// Returns:
	//   - bool: false if the source is stopped and the tick was dropped
	Tick(dt float32) bool
}

var _ ManualTickSource = &manualTickSource{}

// NewManualTickSource creates a stopped ManualTickSource.
//
// Returns:
//   - ManualTickSource: the new tick source
func NewManualTickSource() ManualTickSource {
	return &manualTickSource{
		mu:    &sync.Mutex{},
		ticks: make(chan float32, 1),
	}
}

func (s *manualTickSource) Ticks() <-chan float32 {
	return s.ticks
}

func (s *manualTickSource) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
}

func (s *manualTickSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	select {
	case <-s.ticks:
	default:
	}
}

func (s *manualTickSource) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *manualTickSource) SetRate(hz float64) {}

func (s *manualTickSource) Tick(dt float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}
	// Fold any unconsumed tick into this one.
	select {
	case queued := <-s.ticks:
		dt += queued
	default:
	}
	s.ticks <- dt
	return true
}

func rateToInterval(hz float64) time.Duration {
	if hz <= 0 {
		hz = 60
	}
	return time.Duration(float64(time.Second) / hz)
}
