package cl

import (
	"errors"
	"fmt"
)

// OpenCL status codes the rest of the module needs to recognise.
const (
	StatusSuccess                   int32 = 0
	StatusDeviceNotFound            int32 = -1
	StatusProfilingInfoNotAvailable int32 = -7
	StatusInvalidValue              int32 = -30
	StatusInvalidCommandQueue       int32 = -36
	StatusInvalidEvent              int32 = -58
	StatusInvalidOperation          int32 = -59
)

var statusNames = map[int32]string{
	0:   "CL_SUCCESS",
	-1:  "CL_DEVICE_NOT_FOUND",
	-2:  "CL_DEVICE_NOT_AVAILABLE",
	-3:  "CL_COMPILER_NOT_AVAILABLE",
	-4:  "CL_MEM_OBJECT_ALLOCATION_FAILURE",
	-5:  "CL_OUT_OF_RESOURCES",
	-6:  "CL_OUT_OF_HOST_MEMORY",
	-7:  "CL_PROFILING_INFO_NOT_AVAILABLE",
	-8:  "CL_MEM_COPY_OVERLAP",
	-9:  "CL_IMAGE_FORMAT_MISMATCH",
	-10: "CL_IMAGE_FORMAT_NOT_SUPPORTED",
	-11: "CL_BUILD_PROGRAM_FAILURE",
	-12: "CL_MAP_FAILURE",
	-30: "CL_INVALID_VALUE",
	-31: "CL_INVALID_DEVICE_TYPE",
	-32: "CL_INVALID_PLATFORM",
	-33: "CL_INVALID_DEVICE",
	-34: "CL_INVALID_CONTEXT",
	-35: "CL_INVALID_QUEUE_PROPERTIES",
	-36: "CL_INVALID_COMMAND_QUEUE",
	-37: "CL_INVALID_HOST_PTR",
	-38: "CL_INVALID_MEM_OBJECT",
	-40: "CL_INVALID_IMAGE_SIZE",
	-48: "CL_INVALID_KERNEL",
	-54: "CL_INVALID_WORK_GROUP_SIZE",
	-57: "CL_INVALID_EVENT_WAIT_LIST",
	-58: "CL_INVALID_EVENT",
	-59: "CL_INVALID_OPERATION",
	-61: "CL_INVALID_BUFFER_SIZE",
}

// StatusName returns the symbolic name of an OpenCL status code.
func StatusName(code int32) string {
	if name, ok := statusNames[code]; ok {
		return name
	}
	return "CL_UNKNOWN_ERROR"
}

// ErrProfilingInfoNotAvailable is matched by any StatusError carrying
// CL_PROFILING_INFO_NOT_AVAILABLE. Some platforms report it for specific
// command types even on profiling-enabled queues.
var ErrProfilingInfoNotAvailable = errors.New("cl: profiling info not available")

// ErrNotBuilt indicates the binary was built without GPU support.
var ErrNotBuilt = fmt.Errorf("opencl support requires building with '-tags gpu'")

// ErrNoDevices indicates that no usable OpenCL devices were found.
var ErrNoDevices = errors.New("no OpenCL devices found")

// StatusError is a failed OpenCL call.
type StatusError struct {
	Op   string
	Code int32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, StatusName(e.Code), e.Code)
}

func (e *StatusError) Is(target error) bool {
	if target == ErrProfilingInfoNotAvailable {
		return e.Code == StatusProfilingInfoNotAvailable
	}
	t, ok := target.(*StatusError)
	return ok && t.Code == e.Code
}

// NewStatusError builds the error returned for a non-success status.
func NewStatusError(op string, code int32) error {
	return &StatusError{Op: op, Code: code}
}
