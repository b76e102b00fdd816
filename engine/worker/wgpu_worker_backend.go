package worker

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-anim/engine/worker/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
)

// maxPollRounds bounds how long a readback may wait for its map callbacks.
const maxPollRounds = 1024

// wgpuJob is the device-side state of one Job.
type wgpuJob struct {
	job      *Job
	pipeline *wgpu.ComputePipeline
	layout   *wgpu.BindGroupLayout
	provider bind_group_provider.BindGroupProvider
	bindings []resolvedBinding
}

// resolvedBinding is a job binding matched against the kernel's bind group layout.
type resolvedBinding struct {
	index    int
	uniform  bool
	readBack bool
	source   BufferSource
}

// pendingReadback is a readback buffer waiting to be mapped and copied into its source.
type pendingReadback struct {
	buf    *wgpu.Buffer
	source BufferSource
	size   uint64
	mapped bool
}

type wgpuWorkerBackend struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	jobs map[*Job]*wgpuJob

	// pending is owned by the await goroutine between Submit and the Completion send,
	// and by Finish afterwards.
	pending  []*pendingReadback
	inFlight sync.WaitGroup
}

var _ WorkerBackend = &wgpuWorkerBackend{}

// newWGPUWorkerBackend acquires an adapter and device. Any failure, including a panic from the
// native library, is returned as an error so the caller can fall back to the host backend.
func newWGPUWorkerBackend(forceFallbackAdapter bool) (b *wgpuWorkerBackend, err error) {
	defer func() {
		if r := recover(); r != nil {
			b = nil
			err = fmt.Errorf("webgpu initialization panicked: %v", r)
		}
	}()

	b = &wgpuWorkerBackend{
		mu:       &sync.Mutex{},
		instance: wgpu.CreateInstance(nil),
		jobs:     make(map[*Job]*wgpuJob),
	}
	if b.instance == nil {
		return nil, errors.New("failed to create webgpu instance")
	}

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
	})
	if err != nil {
		b.instance.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Animation Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		a.Release()
		b.instance.Release()
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	return b, nil
}

func (b *wgpuWorkerBackend) Type() BackendType {
	return BackendTypeWGPU
}

func (b *wgpuWorkerBackend) Prepare(job *Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if job.Shader == nil {
		return fmt.Errorf("job %s has no shader", job.Label)
	}
	computeShader := job.Shader

	descriptor := computeShader.BindGroupLayoutDescriptor(0)
	if len(descriptor.Entries) != len(job.Bindings) {
		return fmt.Errorf("job %s binds %d buffers, shader %s declares %d", job.Label, len(job.Bindings), computeShader.Key(), len(descriptor.Entries))
	}

	bindings := make([]resolvedBinding, 0, len(job.Bindings))
	for _, binding := range job.Bindings {
		index, ok := computeShader.BindGroupFromVarName(0, binding.Name)
		if !ok {
			return fmt.Errorf("job %s: shader %s declares no variable %s", job.Label, computeShader.Key(), binding.Name)
		}
		rb := resolvedBinding{index: index, source: binding.Source}
		for _, entry := range descriptor.Entries {
			if int(entry.Binding) != index {
				continue
			}
			switch entry.Buffer.Type {
			case wgpu.BufferBindingTypeUniform:
				rb.uniform = true
			case wgpu.BufferBindingTypeStorage:
				rb.readBack = true
			}
		}
		bindings = append(bindings, rb)
	}

	s, err := b.device.CreateShaderModule(computeShader.Module())
	if err != nil {
		return fmt.Errorf("failed to create shader module %s: %w", computeShader.Key(), err)
	}

	bgl, err := b.device.CreateBindGroupLayout(&descriptor)
	if err != nil {
		s.Release()
		return fmt.Errorf("failed to create bind group layout for %s: %w", job.Label, err)
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            job.Label,
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		s.Release()
		bgl.Release()
		return err
	}
	defer layout.Release()

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  job.Label + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	s.Release()
	if err != nil {
		bgl.Release()
		return err
	}

	b.jobs[job] = &wgpuJob{
		job:      job,
		pipeline: created,
		layout:   bgl,
		provider: bind_group_provider.NewBindGroupProvider(job.Label),
		bindings: bindings,
	}
	log.Printf("[Worker] prepared %s pipeline: %v", job.Label, computeShader)
	return nil
}

func (b *wgpuWorkerBackend) Dispatch(seq uint64, jobs []*Job, done chan<- Completion) (Completion, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	fail := func(err error) (Completion, bool) {
		log.Printf("[Worker] dispatch %d failed: %v", seq, err)
		b.pending = nil
		done <- Completion{Dispatch: seq, Err: err, Duration: time.Since(start)}
		return Completion{}, false
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return fail(err)
	}
	defer encoder.Release()

	var staged []bind_group_provider.BindGroupProvider
	elements := 0
	for _, job := range jobs {
		n := job.Extent()
		if n == 0 {
			continue
		}
		wj, ok := b.jobs[job]
		if !ok {
			return fail(fmt.Errorf("job %s was not prepared", job.Label))
		}
		if err := b.initBindGroup(wj); err != nil {
			return fail(err)
		}

		for _, rb := range wj.bindings {
			size := rb.source.Extent() * rb.source.ElementSize()
			if size == 0 {
				continue
			}
			wj.provider.Stage(rb.index, rb.source.Bytes()[:size])
		}
		staged = append(staged, wj.provider)

		pass := encoder.BeginComputePass(nil)
		pass.SetPipeline(wj.pipeline)
		pass.SetBindGroup(0, wj.provider.BindGroup(), nil)
		pass.DispatchWorkgroups(job.WorkgroupCount(), 1, 1)
		pass.End()

		for _, rb := range wj.bindings {
			if !rb.readBack {
				continue
			}
			size := uint64(rb.source.Extent() * rb.source.ElementSize())
			if size == 0 {
				continue
			}
			slot, _ := wj.provider.Slot(rb.index)
			encoder.CopyBufferToBuffer(slot.Buffer, 0, slot.Readback, 0, size)
			b.pending = append(b.pending, &pendingReadback{buf: slot.Readback, source: rb.source, size: size})
		}
		elements += n
	}

	// Queue writes are ordered before the submission below.
	for _, p := range staged {
		p.Flush(func(buf *wgpu.Buffer, offset uint64, data []byte) {
			b.queue.WriteBuffer(buf, offset, data)
		})
	}

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fail(err)
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	b.inFlight.Add(1)
	go b.await(seq, start, elements, b.pending, done)
	return Completion{}, false
}

// initBindGroup (re)creates the job's device buffers whenever a source was reallocated or resized,
// and the bind group whenever any buffer changed.
func (b *wgpuWorkerBackend) initBindGroup(wj *wgpuJob) error {
	rebuild := wj.provider.BindGroup() == nil
	for _, rb := range wj.bindings {
		size := uint64(rb.source.Capacity() * rb.source.ElementSize())
		if !wj.provider.Stale(rb.index, rb.source.Generation(), size) {
			continue
		}

		usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
		if rb.uniform {
			usage = wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
		}
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: rb.source.Label(),
			Size:  size,
			Usage: usage,
		})
		if err != nil {
			return fmt.Errorf("failed to create buffer %s: %w", rb.source.Label(), err)
		}
		slot := bind_group_provider.Slot{Buffer: buf, Generation: rb.source.Generation(), Size: size}

		if rb.readBack {
			slot.Readback, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: rb.source.Label() + " Readback",
				Size:  size,
				Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
			})
			if err != nil {
				buf.Release()
				return fmt.Errorf("failed to create readback buffer %s: %w", rb.source.Label(), err)
			}
		}
		wj.provider.Replace(rb.index, slot)
		rebuild = true
	}
	if !rebuild {
		return nil
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(wj.bindings))
	for _, rb := range wj.bindings {
		slot, _ := wj.provider.Slot(rb.index)
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(rb.index),
			Buffer:  slot.Buffer,
			Offset:  0,
			Size:    wgpu.WholeSize,
		})
	}
	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   wj.provider.Label(),
		Layout:  wj.layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("failed to create bind group for %s: %w", wj.job.Label, err)
	}
	wj.provider.SetBindGroup(bg)
	return nil
}

// await maps every readback buffer of a submission and delivers the completion once all map
// callbacks have fired. The mapped bytes are copied into the sources by Finish.
func (b *wgpuWorkerBackend) await(seq uint64, start time.Time, elements int, pending []*pendingReadback, done chan<- Completion) {
	defer b.inFlight.Done()

	var mapErr error
	remaining := len(pending)
	for _, p := range pending {
		err := p.buf.MapAsync(wgpu.MapModeRead, 0, p.size, func(status wgpu.BufferMapAsyncStatus) {
			remaining--
			if status == wgpu.BufferMapAsyncStatusSuccess {
				p.mapped = true
			} else if mapErr == nil {
				mapErr = fmt.Errorf("failed to map %s readback: status %v", p.source.Label(), status)
			}
		})
		if err != nil {
			remaining--
			if mapErr == nil {
				mapErr = fmt.Errorf("failed to map %s readback: %w", p.source.Label(), err)
			}
		}
	}

	for round := 0; remaining > 0; round++ {
		if round == maxPollRounds {
			mapErr = errors.Join(mapErr, fmt.Errorf("readback did not complete after %d polls", maxPollRounds))
			break
		}
		b.device.Poll(true, nil)
	}

	if mapErr != nil {
		log.Printf("[Worker] dispatch %d failed: %v", seq, mapErr)
	}
	done <- Completion{Dispatch: seq, Err: mapErr, Duration: time.Since(start), Elements: elements}
}

func (b *wgpuWorkerBackend) Finish(c Completion) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range b.pending {
		if !p.mapped {
			continue
		}
		if c.Err == nil {
			copy(p.source.Bytes()[:p.size], p.buf.GetMappedRange(0, uint(p.size)))
		}
		p.buf.Unmap()
	}
	b.pending = nil
}

func (b *wgpuWorkerBackend) Release() {
	b.inFlight.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range b.pending {
		if p.mapped {
			p.buf.Unmap()
		}
	}
	b.pending = nil

	for job, wj := range b.jobs {
		wj.provider.Release()
		wj.pipeline.Release()
		wj.layout.Release()
		delete(b.jobs, job)
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
