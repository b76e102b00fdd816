package worker

// WorkerBuilderOption is a functional option for configuring a Worker.
type WorkerBuilderOption func(*worker)

// WithBackend sets the backend directly, skipping backend selection.
//
// Parameters:
//   - backend: the backend to dispatch on
//
// Returns:
//   - WorkerBuilderOption: a function that applies the backend option to a worker
func WithBackend(backend WorkerBackend) WorkerBuilderOption {
	return func(w *worker) {
		w.backend = backend
	}
}

// WithBackendType sets the preferred backend. BackendTypeWGPU still falls back to the host when no
// accelerator is available.
//
// Parameters:
//   - t: the preferred backend type
//
// Returns:
//   - WorkerBuilderOption: a function that applies the backend type option to a worker
func WithBackendType(t BackendType) WorkerBuilderOption {
	return func(w *worker) {
		w.backendType = t
	}
}

// WithForceHost selects the host backend without probing for an accelerator when force is true.
//
// Parameters:
//   - force: whether to skip the accelerator
//
// Returns:
//   - WorkerBuilderOption: a function that applies the option to a worker
func WithForceHost(force bool) WorkerBuilderOption {
	return func(w *worker) {
		if force {
			w.backendType = BackendTypeHost
		}
	}
}

// WithForceFallbackAdapter requests the software fallback adapter from WebGPU.
//
// Parameters:
//   - force: whether to request the fallback adapter
//
// Returns:
//   - WorkerBuilderOption: a function that applies the option to a worker
func WithForceFallbackAdapter(force bool) WorkerBuilderOption {
	return func(w *worker) {
		w.forceFallbackAdapter = force
	}
}

// WithHostWorkers sets the maximum number of goroutines the host backend fans chunks out to.
// Values below 1 select GOMAXPROCS.
//
// Parameters:
//   - n: the number of host workers
//
// Returns:
//   - WorkerBuilderOption: a function that applies the option to a worker
func WithHostWorkers(n int) WorkerBuilderOption {
	return func(w *worker) {
		w.hostWorkers = n
	}
}

// WithChunkSize sets the number of elements one host task processes. Values below 1 are ignored.
//
// Parameters:
//   - n: the chunk size
//
// Returns:
//   - WorkerBuilderOption: a function that applies the option to a worker
func WithChunkSize(n int) WorkerBuilderOption {
	return func(w *worker) {
		if n > 0 {
			w.chunkSize = n
		}
	}
}
