package worker

import "time"

// BackendType identifies where a Worker executes its jobs.
type BackendType int

const (
	BackendTypeHost BackendType = iota
	BackendTypeWGPU
)

func (b BackendType) String() string {
	switch b {
	case BackendTypeHost:
		return "host"
	case BackendTypeWGPU:
		return "wgpu"
	default:
		return "unknown"
	}
}

// Completion reports the end of one dispatch.
type Completion struct {
	// Dispatch is the sequence number of the dispatch, starting at 1.
	Dispatch uint64
	// Err is non-nil when the dispatch failed. Slot contents are then unchanged.
	Err error
	// Duration is the time between submission and completion.
	Duration time.Duration
	// Elements is the total number of elements dispatched across all jobs.
	Elements int
}

// WorkerBackend is the capability a Worker dispatches through.
type WorkerBackend interface {
	// Type returns the backend type.
	//
	// Returns:
	//   - BackendType: the backend type
	Type() BackendType

	// Prepare creates whatever per-job state the backend needs. It is called once per job, when the job is added.
	//
	// Parameters:
	//   - job: the job to prepare
	//
	// Returns:
	//   - error: an error if the job cannot run on this backend
	Prepare(job *Job) error

	// Dispatch runs every job with a nonzero extent. A synchronous backend finishes the work and
	// returns its Completion with true. An asynchronous backend returns false and later sends exactly
	// one Completion on done.
	//
	// Parameters:
	//   - seq: the dispatch sequence number to report
	//   - jobs: the jobs to run, in order
	//   - done: the channel the completion is delivered on
	//
	// Returns:
	//   - Completion: the completion of a synchronous dispatch
	//   - bool: true if the dispatch completed before returning
	Dispatch(seq uint64, jobs []*Job, done chan<- Completion) (Completion, bool)

	// Finish applies the results of an asynchronous dispatch to the host memory of the job bindings.
	// It must be called on the goroutine that owns the buffer sources, once per Completion.
	//
	// Parameters:
	//   - c: the completion received from the done channel
	Finish(c Completion)

	// Release releases the backend's resources.
	Release()
}
