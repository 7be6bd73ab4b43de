//go:build gpu

package cl

/*
#cgo LDFLAGS: -lOpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <CL/cl.h>
*/
import "C"

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"unsafe"
)

// Runtime owns the OpenCL context of the selected device.
type Runtime struct {
	platformID C.cl_platform_id
	deviceID   C.cl_device_id
	context    C.cl_context
	Platform   PlatformInfo
	Device     DeviceInfo
}

// InitOpenCL selects a device (GPU preferred, then CPU) and creates a context.
func InitOpenCL() (*Runtime, error) {
	records, err := enumeratePlatformRecords()
	if err != nil {
		return nil, err
	}

	var (
		chosenPlatform platformRecord
		chosenDevice   *deviceRecord
	)
	for _, want := range []DeviceType{DeviceTypeGPU, DeviceTypeCPU, ""} {
		for _, platform := range records {
			for i := range platform.devices {
				if want == "" || platform.devices[i].info.Type == want {
					chosenPlatform = platform
					chosenDevice = &platform.devices[i]
					break
				}
			}
			if chosenDevice != nil {
				break
			}
		}
		if chosenDevice != nil {
			break
		}
	}
	if chosenDevice == nil {
		return nil, ErrNoDevices
	}

	var status C.cl_int
	context := C.clCreateContext(nil, 1, &chosenDevice.id, nil, nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateContext", status)
	}

	slog.Debug("OpenCL context created", "platform", chosenPlatform.info.Name, "device", chosenDevice.info.Name)

	return &Runtime{
		platformID: chosenPlatform.id,
		deviceID:   chosenDevice.id,
		context:    context,
		Platform:   chosenPlatform.info,
		Device:     chosenDevice.info,
	}, nil
}

// Close releases the context. Queues and buffers must be released first.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	if r.context != nil {
		C.clReleaseContext(r.context)
		r.context = nil
	}
}

// NewQueue creates a command queue on the runtime's device. The returned
// queue holds one reference.
func (r *Runtime) NewQueue(props QueueProperties) (*Queue, error) {
	var status C.cl_int
	q := C.clCreateCommandQueue(r.context, r.deviceID, C.cl_command_queue_properties(props), &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateCommandQueue", status)
	}
	queue := &Queue{queue: q}
	queue.refs.Store(1)
	return queue, nil
}

// NewBuffer allocates a read-write device buffer of size bytes.
func (r *Runtime) NewBuffer(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, NewStatusError("clCreateBuffer", StatusInvalidValue)
	}
	var status C.cl_int
	mem := C.clCreateBuffer(r.context, C.CL_MEM_READ_WRITE, C.size_t(size), nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateBuffer", status)
	}
	return &Buffer{mem: mem, size: size}, nil
}

// Buffer is a device memory object.
type Buffer struct {
	mem  C.cl_mem
	size int
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() int { return b.size }

// Release frees the device memory.
func (b *Buffer) Release() {
	if b != nil && b.mem != nil {
		C.clReleaseMemObject(b.mem)
		b.mem = nil
	}
}

// Queue is a reference-counted command queue that retains the events of
// the commands enqueued through it until GC is called.
type Queue struct {
	queue  C.cl_command_queue
	refs   atomic.Int32
	events []*Event
}

// Retain adds a reference.
func (q *Queue) Retain() { q.refs.Add(1) }

// Release drops a reference; the last one releases the queue and its
// retained events.
func (q *Queue) Release() {
	if q.refs.Add(-1) > 0 {
		return
	}
	q.GC()
	if q.queue != nil {
		C.clReleaseCommandQueue(q.queue)
		q.queue = nil
	}
}

// Properties queries CL_QUEUE_PROPERTIES.
func (q *Queue) Properties() (QueueProperties, error) {
	var props C.cl_command_queue_properties
	status := C.clGetCommandQueueInfo(q.queue, C.CL_QUEUE_PROPERTIES,
		C.size_t(unsafe.Sizeof(props)), unsafe.Pointer(&props), nil)
	if status != C.CL_SUCCESS {
		return 0, statusError("clGetCommandQueueInfo(properties)", status)
	}
	return QueueProperties(props), nil
}

// Events returns the events retained since the last GC, in enqueue order.
func (q *Queue) Events() []ProfiledEvent {
	out := make([]ProfiledEvent, len(q.events))
	for i, e := range q.events {
		out[i] = e
	}
	return out
}

// GC releases the retained events.
func (q *Queue) GC() {
	for _, e := range q.events {
		e.release()
	}
	q.events = nil
}

// Finish blocks until every enqueued command has completed.
func (q *Queue) Finish() error {
	if status := C.clFinish(q.queue); status != C.CL_SUCCESS {
		return statusError("clFinish", status)
	}
	return nil
}

// EnqueueWriteBuffer copies data into b and blocks until the copy is done.
func (q *Queue) EnqueueWriteBuffer(b *Buffer, data []byte) (*Event, error) {
	if len(data) == 0 || len(data) > b.size {
		return nil, NewStatusError("clEnqueueWriteBuffer", StatusInvalidValue)
	}
	var ev C.cl_event
	status := C.clEnqueueWriteBuffer(q.queue, b.mem, C.CL_TRUE, 0, C.size_t(len(data)),
		unsafe.Pointer(&data[0]), 0, nil, &ev)
	if status != C.CL_SUCCESS {
		return nil, statusError("clEnqueueWriteBuffer", status)
	}
	return q.retain(ev), nil
}

// EnqueueReadBuffer copies b into data and blocks until the copy is done.
func (q *Queue) EnqueueReadBuffer(b *Buffer, data []byte) (*Event, error) {
	if len(data) == 0 || len(data) > b.size {
		return nil, NewStatusError("clEnqueueReadBuffer", StatusInvalidValue)
	}
	var ev C.cl_event
	status := C.clEnqueueReadBuffer(q.queue, b.mem, C.CL_TRUE, 0, C.size_t(len(data)),
		unsafe.Pointer(&data[0]), 0, nil, &ev)
	if status != C.CL_SUCCESS {
		return nil, statusError("clEnqueueReadBuffer", status)
	}
	return q.retain(ev), nil
}

// EnqueueMarker enqueues a marker that completes after all previous commands.
func (q *Queue) EnqueueMarker() (*Event, error) {
	var ev C.cl_event
	status := C.clEnqueueMarkerWithWaitList(q.queue, 0, nil, &ev)
	if status != C.CL_SUCCESS {
		return nil, statusError("clEnqueueMarkerWithWaitList", status)
	}
	return q.retain(ev), nil
}

func (q *Queue) retain(ev C.cl_event) *Event {
	e := &Event{event: ev}
	q.events = append(q.events, e)
	return e
}

// Event wraps a cl_event owned by the queue that produced it.
type Event struct {
	event C.cl_event
	name  string
}

// SetName gives the event a display name.
func (e *Event) SetName(name string) { e.name = name }

// Name returns the explicit name, or the command type name.
func (e *Event) Name() string {
	if e.name != "" {
		return e.name
	}
	ct, err := e.CommandType()
	if err != nil {
		return CommandType(0).String()
	}
	return ct.String()
}

// CommandType queries CL_EVENT_COMMAND_TYPE.
func (e *Event) CommandType() (CommandType, error) {
	var ct C.cl_command_type
	status := C.clGetEventInfo(e.event, C.CL_EVENT_COMMAND_TYPE,
		C.size_t(unsafe.Sizeof(ct)), unsafe.Pointer(&ct), nil)
	if status != C.CL_SUCCESS {
		return 0, statusError("clGetEventInfo(command type)", status)
	}
	return CommandType(ct), nil
}

// Timestamps reads the four profiling counters. The queue must have been
// created with QueueProfilingEnable and the command must have completed.
func (e *Event) Timestamps() (Timestamps, error) {
	var ts Timestamps
	params := []struct {
		param C.cl_profiling_info
		dst   *uint64
		op    string
	}{
		{C.CL_PROFILING_COMMAND_QUEUED, &ts.Queued, "clGetEventProfilingInfo(queued)"},
		{C.CL_PROFILING_COMMAND_SUBMIT, &ts.Submit, "clGetEventProfilingInfo(submit)"},
		{C.CL_PROFILING_COMMAND_START, &ts.Start, "clGetEventProfilingInfo(start)"},
		{C.CL_PROFILING_COMMAND_END, &ts.End, "clGetEventProfilingInfo(end)"},
	}
	for _, p := range params {
		var v C.cl_ulong
		status := C.clGetEventProfilingInfo(e.event, p.param,
			C.size_t(unsafe.Sizeof(v)), unsafe.Pointer(&v), nil)
		if status != C.CL_SUCCESS {
			return Timestamps{}, statusError(p.op, status)
		}
		*p.dst = uint64(v)
	}
	return ts, nil
}

func (e *Event) release() {
	if e.event != nil {
		C.clReleaseEvent(e.event)
		e.event = nil
	}
}

// EnumeratePlatforms returns discovered platforms with their devices.
func EnumeratePlatforms() ([]PlatformInfo, error) {
	records, err := enumeratePlatformRecords()
	if err != nil {
		return nil, err
	}

	out := make([]PlatformInfo, len(records))
	for i, platform := range records {
		out[i] = platform.info
	}
	return out, nil
}

type platformRecord struct {
	id      C.cl_platform_id
	info    PlatformInfo
	devices []deviceRecord
}

type deviceRecord struct {
	id   C.cl_device_id
	info DeviceInfo
}

func enumeratePlatformRecords() ([]platformRecord, error) {
	var count C.cl_uint
	status := C.clGetPlatformIDs(0, nil, &count)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(count)", status)
	}
	if count == 0 {
		return nil, nil
	}

	platformIDs := make([]C.cl_platform_id, int(count))
	status = C.clGetPlatformIDs(count, &platformIDs[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(list)", status)
	}

	records := make([]platformRecord, 0, int(count))
	for _, pid := range platformIDs {
		rec := platformRecord{id: pid}
		for _, field := range []struct {
			param C.cl_platform_info
			dst   *string
		}{
			{C.CL_PLATFORM_NAME, &rec.info.Name},
			{C.CL_PLATFORM_VENDOR, &rec.info.Vendor},
			{C.CL_PLATFORM_VERSION, &rec.info.Version},
		} {
			v, err := getPlatformString(pid, field.param)
			if err != nil {
				return nil, err
			}
			*field.dst = v
		}

		devices, err := enumerateDevices(pid)
		if err != nil && !errors.Is(err, ErrNoDevices) {
			return nil, err
		}
		rec.devices = devices
		rec.info.Devices = make([]DeviceInfo, len(devices))
		for i, device := range devices {
			rec.info.Devices[i] = device.info
		}

		records = append(records, rec)
	}

	return records, nil
}

func enumerateDevices(platform C.cl_platform_id) ([]deviceRecord, error) {
	var count C.cl_uint
	status := C.clGetDeviceIDs(platform, C.CL_DEVICE_TYPE_ALL, 0, nil, &count)
	if status == C.CL_DEVICE_NOT_FOUND || (status == C.CL_SUCCESS && count == 0) {
		return nil, ErrNoDevices
	}
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(count)", status)
	}

	deviceIDs := make([]C.cl_device_id, int(count))
	status = C.clGetDeviceIDs(platform, C.CL_DEVICE_TYPE_ALL, count, &deviceIDs[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(list)", status)
	}

	devices := make([]deviceRecord, 0, int(count))
	for _, id := range deviceIDs {
		info, err := buildDeviceInfo(id)
		if err != nil {
			return nil, err
		}
		devices = append(devices, deviceRecord{id: id, info: info})
	}

	return devices, nil
}

func buildDeviceInfo(id C.cl_device_id) (DeviceInfo, error) {
	var info DeviceInfo
	var err error
	if info.Name, err = getDeviceString(id, C.CL_DEVICE_NAME); err != nil {
		return DeviceInfo{}, err
	}
	if info.Vendor, err = getDeviceString(id, C.CL_DEVICE_VENDOR); err != nil {
		return DeviceInfo{}, err
	}
	if info.Version, err = getDeviceString(id, C.CL_DEVICE_VERSION); err != nil {
		return DeviceInfo{}, err
	}

	var rawType C.cl_device_type
	if err := getDeviceScalar(id, C.CL_DEVICE_TYPE, unsafe.Pointer(&rawType), unsafe.Sizeof(rawType), "type"); err != nil {
		return DeviceInfo{}, err
	}
	info.Type = mapDeviceType(rawType)

	var computeUnits C.cl_uint
	if err := getDeviceScalar(id, C.CL_DEVICE_MAX_COMPUTE_UNITS, unsafe.Pointer(&computeUnits), unsafe.Sizeof(computeUnits), "computeUnits"); err != nil {
		return DeviceInfo{}, err
	}
	info.MaxComputeUnits = uint32(computeUnits)

	var memSize C.cl_ulong
	if err := getDeviceScalar(id, C.CL_DEVICE_GLOBAL_MEM_SIZE, unsafe.Pointer(&memSize), unsafe.Sizeof(memSize), "globalMemSize"); err != nil {
		return DeviceInfo{}, err
	}
	info.GlobalMemSize = uint64(memSize)

	var resolution C.size_t
	if err := getDeviceScalar(id, C.CL_DEVICE_PROFILING_TIMER_RESOLUTION, unsafe.Pointer(&resolution), unsafe.Sizeof(resolution), "timerResolution"); err != nil {
		return DeviceInfo{}, err
	}
	info.TimerResolutionNano = uint64(resolution)

	return info, nil
}

func getDeviceScalar(id C.cl_device_id, param C.cl_device_info, dst unsafe.Pointer, size uintptr, what string) error {
	status := C.clGetDeviceInfo(id, param, C.size_t(size), dst, nil)
	if status != C.CL_SUCCESS {
		return statusError("clGetDeviceInfo("+what+")", status)
	}
	return nil
}

func getPlatformString(id C.cl_platform_id, param C.cl_platform_info) (string, error) {
	var size C.size_t
	status := C.clGetPlatformInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetPlatformInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(value)", status)
	}

	return trimNull(buf), nil
}

func getDeviceString(id C.cl_device_id, param C.cl_device_info) (string, error) {
	var size C.size_t
	status := C.clGetDeviceInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(value)", status)
	}

	return trimNull(buf), nil
}

func trimNull(buf []byte) string {
	if len(buf) > 0 && buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf)
}

func mapDeviceType(dt C.cl_device_type) DeviceType {
	switch {
	case dt&C.CL_DEVICE_TYPE_GPU != 0:
		return DeviceTypeGPU
	case dt&C.CL_DEVICE_TYPE_CPU != 0:
		return DeviceTypeCPU
	case dt&C.CL_DEVICE_TYPE_ACCELERATOR != 0:
		return DeviceTypeAccelerator
	case dt&C.CL_DEVICE_TYPE_DEFAULT != 0:
		return DeviceTypeDefault
	default:
		return DeviceTypeUnknown
	}
}

func statusError(op string, status C.cl_int) error {
	return NewStatusError(op, int32(status))
}
