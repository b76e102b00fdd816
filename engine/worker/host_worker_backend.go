package worker

import (
	"log"
	"runtime"
	"sync"
	"time"

	pool "github.com/Carmen-Shannon/automation/tools/worker"
)

const (
	defaultChunkSize    = 256
	hostTaskQueueSize   = 256
	hostPoolIdleTimeout = 1 * time.Second
)

type hostWorkerBackend struct {
	mu sync.Mutex

	pool      pool.DynamicWorkerPool
	chunkSize int

	// announced holds the labels of jobs whose fallback diagnostic has been logged.
	announced map[string]bool
}

var _ WorkerBackend = &hostWorkerBackend{}

// newHostWorkerBackend creates the host backend. Elements of a job are split into chunks of chunkSize
// and fanned out over a pool of at most workers goroutines.
func newHostWorkerBackend(workers, chunkSize int) *hostWorkerBackend {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &hostWorkerBackend{
		pool:      pool.NewDynamicWorkerPool(workers, hostTaskQueueSize, hostPoolIdleTimeout),
		chunkSize: chunkSize,
		announced: make(map[string]bool),
	}
}

func (b *hostWorkerBackend) Type() BackendType {
	return BackendTypeHost
}

func (b *hostWorkerBackend) Prepare(job *Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.announced[job.Label] {
		b.announced[job.Label] = true
		log.Printf("[Worker] accelerator not available, using fallback function for %s", job.Label)
	}
	return nil
}

func (b *hostWorkerBackend) Dispatch(seq uint64, jobs []*Job, done chan<- Completion) (Completion, bool) {
	start := time.Now()
	elements := 0

	// Jobs run in order; chunks of one job run concurrently and the WaitGroup is the barrier
	// between jobs, since pool.Wait blocks until the workers idle out.
	for _, job := range jobs {
		n := job.Extent()
		if n == 0 {
			continue
		}
		elements += n

		if n <= b.chunkSize {
			job.Fallback(0, n)
			continue
		}

		var wg sync.WaitGroup
		id := 0
		for lo := 0; lo < n; lo += b.chunkSize {
			hi := min(lo+b.chunkSize, n)
			wg.Add(1)
			fallback := job.Fallback
			b.pool.SubmitTask(pool.Task{
				ID: id,
				Do: func() (any, error) {
					defer wg.Done()
					fallback(lo, hi)
					return nil, nil
				},
			})
			id++
		}
		wg.Wait()
	}

	return Completion{Dispatch: seq, Duration: time.Since(start), Elements: elements}, true
}

func (b *hostWorkerBackend) Finish(c Completion) {}

func (b *hostWorkerBackend) Release() {
	b.pool.Stop()
}
