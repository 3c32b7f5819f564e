// Package wgpu implements the GPU backend: a dispatcher that compiles tensor
// operations into WGSL compute programs, schedules them against a persistent
// device context, pools fixed-shape device buffers, and reconciles host and
// device data residency per array handle.
package wgpu

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/flare-ml/flare/internal/envconfig"
	"github.com/rs/zerolog"
)

// apiVersion is the device API level this context provides. Constructing a
// context fails when FLARE_MIN_DEVICE_VERSION asks for more.
const apiVersion = 1

// Context owns the underlying WebGPU instance, adapter, device and queue.
// It provides the raw primitives the pool, the program cache and the
// dispatcher build on: buffer allocation, host/device transfers, program
// compilation and a completion barrier.
//
// A Context is used from a single logical thread; it is not reentrant.
type Context struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	adapterInfo wgpu.AdapterInfo
	flags       envconfig.Flags
	log         zerolog.Logger

	// Pass-timing bracket, allocated on first timed dispatch. Only present
	// when the adapter supports timestamp queries and the flag asks for
	// per-program timing.
	timestamps bool
	tsQuery    *wgpu.QuerySet
	tsResolve  *wgpu.Buffer

	disposed bool
}

// NewContext acquires the device and queue. Returns an error if WebGPU is
// unavailable or the adapter does not meet the required API version.
func NewContext(log zerolog.Logger) (ctx *Context, err error) {
	// The native library panics instead of erroring when absent.
	defer func() {
		if r := recover(); r != nil {
			ctx = nil
			err = fmt.Errorf("wgpu: native library not available: %v", r)
		}
	}()

	flags := envconfig.Get()
	if flags.MinDeviceVersion > apiVersion {
		return nil, fmt.Errorf("wgpu: device API version %d required, this context provides %d",
			flags.MinDeviceVersion, apiVersion)
	}

	instance := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("wgpu: failed to request adapter: %w", adapterErr)
	}

	adapterInfo := adapter.GetInfo()

	timestamps := flags.DisjointTimer > 0 && adapter.HasFeature(wgpu.FeatureNameTimestampQuery)
	var deviceDesc *wgpu.DeviceDescriptor
	if timestamps {
		deviceDesc = &wgpu.DeviceDescriptor{
			RequiredFeatures: []wgpu.FeatureName{wgpu.FeatureNameTimestampQuery},
		}
	}
	device, deviceErr := adapter.RequestDevice(deviceDesc)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("wgpu: failed to request device: %w", deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("wgpu: failed to get queue")
	}

	log.Debug().
		Str("adapter", adapterInfo.Name).
		Str("vendor", adapterInfo.VendorName).
		Msg("device context created")
	if flags.ForceSyncReads {
		log.Info().Msg("asynchronous reads disabled, downloads use the blocking path")
	}
	if flags.DisjointTimer <= 0 {
		log.Info().Msg("per-program timing disabled, timer scopes use whole-scope wall clock")
	} else if !timestamps {
		log.Info().Msg("adapter lacks timestamp queries, per-program timing uses completion barriers")
	}

	return &Context{
		instance:    instance,
		adapter:     adapter,
		device:      device,
		queue:       queue,
		adapterInfo: adapterInfo,
		flags:       flags,
		log:         log,
		timestamps:  timestamps,
	}, nil
}

// AdapterInfo returns information about the GPU adapter.
func (c *Context) AdapterInfo() wgpu.AdapterInfo { return c.adapterInfo }

// Flags returns the environment flags the context was constructed with.
func (c *Context) Flags() envconfig.Flags { return c.flags }

// CreateStorageBuffer allocates an uninitialized storage buffer of size
// bytes on the device.
func (c *Context) CreateStorageBuffer(size uint64) (*wgpu.Buffer, error) {
	if c.disposed {
		return nil, fmt.Errorf("wgpu: context is disposed")
	}
	return c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  alignUp(size, 4),
	})
}

// CreateStagingBuffer allocates a readback buffer of size bytes.
func (c *Context) CreateStagingBuffer(size uint64) (*wgpu.Buffer, error) {
	if c.disposed {
		return nil, fmt.Errorf("wgpu: context is disposed")
	}
	return c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  alignUp(size, 4),
	})
}

// Upload writes host bytes into a previously allocated device region, so
// pooled blocks are refilled without reallocation.
func (c *Context) Upload(dst *wgpu.Buffer, data []byte) error {
	if c.disposed {
		return fmt.Errorf("wgpu: context is disposed")
	}
	if dst == nil {
		return fmt.Errorf("wgpu: upload into unallocated region")
	}
	if err := c.queue.WriteBuffer(dst, 0, data); err != nil {
		return fmt.Errorf("wgpu: upload: %w", err)
	}
	return nil
}

// DownloadSync blocks until queued device work retires and returns size
// bytes of the buffer's contents.
func (c *Context) DownloadSync(src *wgpu.Buffer, size uint64) ([]byte, error) {
	if c.disposed {
		return nil, fmt.Errorf("wgpu: context is disposed")
	}

	aligned := alignUp(size, 4)
	staging, err := c.CreateStagingBuffer(aligned)
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	encoder, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("wgpu: download encoder: %w", err)
	}
	defer encoder.Release()
	if err := encoder.CopyBufferToBuffer(src, 0, staging, 0, aligned); err != nil {
		return nil, fmt.Errorf("wgpu: download copy: %w", err)
	}
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("wgpu: download finish: %w", err)
	}
	c.queue.Submit(cmd)
	cmd.Release()

	// The map callback fires during a device poll, never synchronously; it
	// only records the status, and the mapped range is read after the wait.
	var status wgpu.BufferMapAsyncStatus
	err = staging.MapAsync(wgpu.MapModeRead, 0, aligned, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: failed to map staging buffer: %w", err)
	}
	c.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("wgpu: staging map status %v", status)
	}

	out := make([]byte, size)
	copy(out, staging.GetMappedRange(0, uint(aligned)))
	staging.Unmap()
	return out, nil
}

// downloadResult carries one asynchronous read completion.
type downloadResult struct {
	data []byte
	err  error
}

// DownloadAsync is the non-blocking download variant: it returns immediately
// with a channel that yields once the device signals retirement. When
// FLARE_FORCE_SYNC_READS is set the read degrades to the blocking path and
// the channel is filled before returning.
func (c *Context) DownloadAsync(src *wgpu.Buffer, size uint64) <-chan downloadResult {
	ch := make(chan downloadResult, 1)
	if c.flags.ForceSyncReads {
		data, err := c.DownloadSync(src, size)
		ch <- downloadResult{data: data, err: err}
		return ch
	}
	go func() {
		data, err := c.DownloadSync(src, size)
		ch <- downloadResult{data: data, err: err}
	}()
	return ch
}

// CopyBuffer enqueues a device-to-device copy of size bytes.
func (c *Context) CopyBuffer(src, dst *wgpu.Buffer, size uint64) error {
	if c.disposed {
		return fmt.Errorf("wgpu: context is disposed")
	}
	encoder, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("wgpu: copy encoder: %w", err)
	}
	defer encoder.Release()
	if err := encoder.CopyBufferToBuffer(src, 0, dst, 0, alignUp(size, 4)); err != nil {
		return fmt.Errorf("wgpu: buffer copy: %w", err)
	}
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("wgpu: copy finish: %w", err)
	}
	c.queue.Submit(cmd)
	cmd.Release()
	return nil
}

// RunBarrier blocks until all previously queued device work retires. It is
// pure ordering: no data moves.
func (c *Context) RunBarrier() {
	if c.disposed {
		return
	}
	c.device.Poll(true, nil)
}

// TimestampsEnabled reports whether compute passes can be bracketed with
// device timestamp queries.
func (c *Context) TimestampsEnabled() bool { return c.timestamps }

func (c *Context) ensureTimingQueries() error {
	if c.tsQuery != nil {
		return nil
	}
	query, err := c.device.CreateQuerySet(&wgpu.QuerySetDescriptor{
		Label: "pass-timing",
		Type:  wgpu.QueryTypeTimestamp,
		Count: 2,
	})
	if err != nil {
		return fmt.Errorf("wgpu: timing query set: %w", err)
	}
	resolve, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageQueryResolve | wgpu.BufferUsageCopySrc,
		Size:  16,
	})
	if err != nil {
		query.Release()
		return fmt.Errorf("wgpu: timing resolve buffer: %w", err)
	}
	c.tsQuery = query
	c.tsResolve = resolve
	return nil
}

// PassTimestamps returns the query bracket to attach to one compute pass:
// query 0 at pass start, query 1 at pass end.
func (c *Context) PassTimestamps() (*wgpu.ComputePassTimestampWrites, error) {
	if !c.timestamps {
		return nil, fmt.Errorf("wgpu: timestamp queries unavailable on this adapter")
	}
	if err := c.ensureTimingQueries(); err != nil {
		return nil, err
	}
	return &wgpu.ComputePassTimestampWrites{
		QuerySet:                  c.tsQuery,
		BeginningOfPassWriteIndex: 0,
		EndOfPassWriteIndex:       1,
	}, nil
}

// ResolveTimestamps records resolution of the pass bracket into encoder.
// Must run after the bracketed pass has ended, inside the same submission.
func (c *Context) ResolveTimestamps(encoder *wgpu.CommandEncoder) error {
	if c.tsQuery == nil {
		return fmt.Errorf("wgpu: no timestamp bracket pending")
	}
	if err := encoder.ResolveQuerySet(c.tsQuery, 0, 2, c.tsResolve, 0); err != nil {
		return fmt.Errorf("wgpu: resolve timing queries: %w", err)
	}
	return nil
}

// ReadTimestamps downloads the resolved bracket and returns the device-side
// elapsed time of the pass. Resolved timestamps are nanosecond ticks.
func (c *Context) ReadTimestamps() (time.Duration, error) {
	data, err := c.DownloadSync(c.tsResolve, 16)
	if err != nil {
		return 0, err
	}
	begin := binary.LittleEndian.Uint64(data[0:8])
	end := binary.LittleEndian.Uint64(data[8:16])
	if end <= begin {
		return 0, nil
	}
	return time.Duration(end - begin), nil //nolint:gosec // G115: tick delta fits a Duration
}

// Dispose releases all device-level resources. Idempotent.
func (c *Context) Dispose() {
	if c.disposed {
		return
	}
	c.disposed = true

	if c.tsResolve != nil {
		c.tsResolve.Release()
		c.tsResolve = nil
	}
	if c.tsQuery != nil {
		c.tsQuery.Release()
		c.tsQuery = nil
	}
	if c.queue != nil {
		c.queue.Release()
		c.queue = nil
	}
	if c.device != nil {
		c.device.Release()
		c.device = nil
	}
	if c.adapter != nil {
		c.adapter.Release()
		c.adapter = nil
	}
	if c.instance != nil {
		c.instance.Release()
		c.instance = nil
	}
	c.log.Debug().Msg("device context disposed")
}

// Disposed reports whether the context has been torn down.
func (c *Context) Disposed() bool { return c.disposed }

// IsAvailable checks whether a WebGPU adapter can be acquired.
func IsAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

func alignUp(n, to uint64) uint64 {
	return (n + to - 1) &^ (to - 1)
}
