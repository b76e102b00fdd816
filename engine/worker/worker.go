package worker

import (
	"log"
	"sync"
)

// worker is the implementation of the Worker interface.
type worker struct {
	mu *sync.Mutex

	backend     WorkerBackend
	backendType BackendType

	forceFallbackAdapter bool
	hostWorkers          int
	chunkSize            int
	// newHost builds the backend the worker falls back to.
	newHost func() WorkerBackend

	jobs        []*Job
	completions chan Completion
	seq         uint64
	inFlight    bool
}

// Worker runs a fixed list of jobs as one batch per Process call, on the accelerator when one is
// available and on the host otherwise.
//
// At most one dispatch is in flight at a time. The owner of the jobs' buffer sources must not touch
// them between a Process call that returned false and the matching Finish.
type Worker interface {
	// AddJob validates a job and prepares it on the backend. Jobs run in the order they were added.
	// If the accelerator cannot prepare the job, the worker switches to the host backend for every job.
	//
	// Parameters:
	//   - job: the job to add
	//
	// Returns:
	//   - error: an error if the job is invalid
	AddJob(job Job) error

	// Jobs returns a copy of the registered jobs.
	//
	// Returns:
	//   - []Job: the jobs in dispatch order
	Jobs() []Job

	// Process dispatches every job whose primary binding has a nonzero extent.
	// On the host backend the work is done before returning, and the completion is returned with true.
	// On the accelerator Process returns false and the completion arrives later on Completions,
	// after which the caller must pass it to Finish.
	//
	// Returns:
	//   - Completion: the completion of a synchronous dispatch
	//   - bool: true if the dispatch completed synchronously
	Process() (Completion, bool)

	// Completions returns the channel asynchronous completions are delivered on.
	//
	// Returns:
	//   - <-chan Completion: the completion channel
	Completions() <-chan Completion

	// Finish copies the results of an asynchronous dispatch into the jobs' buffer sources and
	// allows the next dispatch. It must be called on the goroutine that owns the buffer sources.
	//
	// Parameters:
	//   - c: the completion received from Completions
	Finish(c Completion)

	// InFlight reports whether an asynchronous dispatch has not been finished yet.
	//
	// Returns:
	//   - bool: true while a dispatch is in flight
	InFlight() bool

	// BackendType returns the backend jobs are dispatched on.
	//
	// Returns:
	//   - BackendType: the backend type
	BackendType() BackendType

	// Release waits for any in-flight dispatch and releases the backend.
	Release()
}

var _ Worker = &worker{}

// NewWorker creates a new Worker with the provided options applied. Without WithBackend, the
// WebGPU backend is tried first unless the host backend was requested, falling back to the host
// backend if no adapter or device can be acquired.
//
// Parameters:
//   - options: variadic list of WorkerBuilderOption functions to configure the worker
//
// Returns:
//   - Worker: the newly created worker
func NewWorker(options ...WorkerBuilderOption) Worker {
	w := &worker{
		mu:          &sync.Mutex{},
		backendType: BackendTypeWGPU,
		chunkSize:   defaultChunkSize,
		completions: make(chan Completion, 1),
	}
	w.newHost = func() WorkerBackend {
		return newHostWorkerBackend(w.hostWorkers, w.chunkSize)
	}
	for _, opt := range options {
		opt(w)
	}

	if w.backend == nil && w.backendType == BackendTypeWGPU {
		b, err := newWGPUWorkerBackend(w.forceFallbackAdapter)
		if err != nil {
			log.Printf("[Worker] webgpu unavailable: %v", err)
		} else {
			w.backend = b
		}
	}
	if w.backend == nil {
		w.backend = w.newHost()
	}
	w.backendType = w.backend.Type()
	return w
}

func (w *worker) AddJob(job Job) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := job.Validate(); err != nil {
		return err
	}
	j := &job
	if err := w.backend.Prepare(j); err != nil {
		if w.backend.Type() == BackendTypeHost {
			return err
		}
		log.Printf("[Worker] failed to prepare %s on the accelerator, switching to host: %v", job.Label, err)
		w.switchToHost()
		if err := w.backend.Prepare(j); err != nil {
			return err
		}
	}
	w.jobs = append(w.jobs, j)
	return nil
}

// switchToHost releases the current backend and prepares every registered job on a host backend.
func (w *worker) switchToHost() {
	w.backend.Release()
	w.backend = w.newHost()
	w.backendType = BackendTypeHost
	for _, j := range w.jobs {
		if err := w.backend.Prepare(j); err != nil {
			log.Printf("[Worker] failed to prepare %s on the host: %v", j.Label, err)
		}
	}
}

func (w *worker) Jobs() []Job {
	w.mu.Lock()
	defer w.mu.Unlock()

	jobs := make([]Job, len(w.jobs))
	for i, j := range w.jobs {
		jobs[i] = *j
	}
	return jobs
}

func (w *worker) Process() (Completion, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.inFlight {
		log.Printf("[Worker] Process called while dispatch %d is in flight", w.seq)
		return Completion{}, false
	}

	w.seq++
	c, done := w.backend.Dispatch(w.seq, w.jobs, w.completions)
	if !done {
		w.inFlight = true
	}
	return c, done
}

func (w *worker) Completions() <-chan Completion {
	return w.completions
}

func (w *worker) Finish(c Completion) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.backend.Finish(c)
	w.inFlight = false
}

func (w *worker) InFlight() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight
}

func (w *worker) BackendType() BackendType {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.backendType
}

func (w *worker) Release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.backend.Release()
}
