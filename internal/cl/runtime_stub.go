//go:build !gpu

package cl

// Runtime is a placeholder when GPU support is not compiled.
type Runtime struct {
	Platform PlatformInfo
	Device   DeviceInfo
}

// InitOpenCL returns an error when GPU support is not compiled in.
func InitOpenCL() (*Runtime, error) {
	return nil, ErrNotBuilt
}

// Close is a no-op without GPU support.
func (r *Runtime) Close() {}

// NewQueue returns ErrNotBuilt.
func (r *Runtime) NewQueue(QueueProperties) (*Queue, error) {
	return nil, ErrNotBuilt
}

// NewBuffer returns ErrNotBuilt.
func (r *Runtime) NewBuffer(int) (*Buffer, error) {
	return nil, ErrNotBuilt
}

// EnumeratePlatforms returns an error when GPU support is not compiled in.
func EnumeratePlatforms() ([]PlatformInfo, error) {
	return nil, ErrNotBuilt
}

// Buffer is a placeholder when GPU support is not compiled.
type Buffer struct{}

func (b *Buffer) Size() int { return 0 }

func (b *Buffer) Release() {}

// Queue is a placeholder when GPU support is not compiled.
type Queue struct{}

func (q *Queue) Retain() {}

func (q *Queue) Release() {}

func (q *Queue) Properties() (QueueProperties, error) {
	return 0, ErrNotBuilt
}

func (q *Queue) Events() []ProfiledEvent { return nil }

func (q *Queue) GC() {}

func (q *Queue) Finish() error { return ErrNotBuilt }

func (q *Queue) EnqueueMarker() (*Event, error) {
	return nil, ErrNotBuilt
}

func (q *Queue) EnqueueWriteBuffer(*Buffer, []byte) (*Event, error) {
	return nil, ErrNotBuilt
}

func (q *Queue) EnqueueReadBuffer(*Buffer, []byte) (*Event, error) {
	return nil, ErrNotBuilt
}

// Event is a placeholder when GPU support is not compiled.
type Event struct {
	name string
}

func (e *Event) SetName(name string) { e.name = name }

func (e *Event) Name() string { return e.name }

func (e *Event) CommandType() (CommandType, error) {
	return 0, ErrNotBuilt
}

func (e *Event) Timestamps() (Timestamps, error) {
	return Timestamps{}, ErrNotBuilt
}
