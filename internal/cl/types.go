package cl

// DeviceType describes the class of an OpenCL device.
type DeviceType string

const (
	DeviceTypeGPU         DeviceType = "GPU"
	DeviceTypeCPU         DeviceType = "CPU"
	DeviceTypeAccelerator DeviceType = "Accelerator"
	DeviceTypeDefault     DeviceType = "Default"
	DeviceTypeUnknown     DeviceType = "Unknown"
)

// DeviceInfo captures metadata about an OpenCL device.
type DeviceInfo struct {
	Name                string
	Vendor              string
	Version             string
	Type                DeviceType
	MaxComputeUnits     uint32
	GlobalMemSize       uint64
	TimerResolutionNano uint64
}

// PlatformInfo captures metadata about an OpenCL platform and its devices.
type PlatformInfo struct {
	Name    string
	Vendor  string
	Version string
	Devices []DeviceInfo
}

// QueueProperties is the cl_command_queue_properties bitfield.
type QueueProperties uint64

const (
	QueueOutOfOrderExecModeEnable QueueProperties = 1 << 0
	QueueProfilingEnable          QueueProperties = 1 << 1
)

// Has reports whether every bit of flag is set.
func (p QueueProperties) Has(flag QueueProperties) bool {
	return p&flag == flag
}

// Timestamps holds the four device counters of a completed command, in
// nanoseconds.
type Timestamps struct {
	Queued uint64 `json:"queued"`
	Submit uint64 `json:"submit"`
	Start  uint64 `json:"start"`
	End    uint64 `json:"end"`
}

// Duration is End-Start, or zero when the command used no device time.
func (t Timestamps) Duration() uint64 {
	if t.End <= t.Start {
		return 0
	}
	return t.End - t.Start
}

// ProfiledEvent is an event whose profiling counters can be read once the
// command it tracks has completed.
type ProfiledEvent interface {
	// Name returns the explicit name given to the event, or the name of
	// its command type when none was set.
	Name() string
	CommandType() (CommandType, error)
	Timestamps() (Timestamps, error)
}
