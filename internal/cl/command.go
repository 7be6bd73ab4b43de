package cl

import "fmt"

// CommandType is the cl_command_type of the command an event tracks.
type CommandType uint32

// Values match the OpenCL headers (up to 2.0).
const (
	CommandNDRangeKernel     CommandType = 0x11F0
	CommandTask              CommandType = 0x11F1
	CommandNativeKernel      CommandType = 0x11F2
	CommandReadBuffer        CommandType = 0x11F3
	CommandWriteBuffer       CommandType = 0x11F4
	CommandCopyBuffer        CommandType = 0x11F5
	CommandReadImage         CommandType = 0x11F6
	CommandWriteImage        CommandType = 0x11F7
	CommandCopyImage         CommandType = 0x11F8
	CommandCopyImageToBuffer CommandType = 0x11F9
	CommandCopyBufferToImage CommandType = 0x11FA
	CommandMapBuffer         CommandType = 0x11FB
	CommandMapImage          CommandType = 0x11FC
	CommandUnmapMemObject    CommandType = 0x11FD
	CommandMarker            CommandType = 0x11FE
	CommandAcquireGLObjects  CommandType = 0x11FF
	CommandReleaseGLObjects  CommandType = 0x1200
	CommandReadBufferRect    CommandType = 0x1201
	CommandWriteBufferRect   CommandType = 0x1202
	CommandCopyBufferRect    CommandType = 0x1203
	CommandUser              CommandType = 0x1204
	CommandBarrier           CommandType = 0x1205
	CommandMigrateMemObjects CommandType = 0x1206
	CommandFillBuffer        CommandType = 0x1207
	CommandFillImage         CommandType = 0x1208
	CommandSVMFree           CommandType = 0x1209
	CommandSVMMemcpy         CommandType = 0x120A
	CommandSVMMemfill        CommandType = 0x120B
	CommandSVMMap            CommandType = 0x120C
	CommandSVMUnmap          CommandType = 0x120D
)

var commandNames = map[CommandType]string{
	CommandNDRangeKernel:     "NDRANGE_KERNEL",
	CommandTask:              "TASK",
	CommandNativeKernel:      "NATIVE_KERNEL",
	CommandReadBuffer:        "READ_BUFFER",
	CommandWriteBuffer:       "WRITE_BUFFER",
	CommandCopyBuffer:        "COPY_BUFFER",
	CommandReadImage:         "READ_IMAGE",
	CommandWriteImage:        "WRITE_IMAGE",
	CommandCopyImage:         "COPY_IMAGE",
	CommandCopyImageToBuffer: "COPY_IMAGE_TO_BUFFER",
	CommandCopyBufferToImage: "COPY_BUFFER_TO_IMAGE",
	CommandMapBuffer:         "MAP_BUFFER",
	CommandMapImage:          "MAP_IMAGE",
	CommandUnmapMemObject:    "UNMAP_MEM_OBJECT",
	CommandMarker:            "MARKER",
	CommandAcquireGLObjects:  "ACQUIRE_GL_OBJECTS",
	CommandReleaseGLObjects:  "RELEASE_GL_OBJECTS",
	CommandReadBufferRect:    "READ_BUFFER_RECT",
	CommandWriteBufferRect:   "WRITE_BUFFER_RECT",
	CommandCopyBufferRect:    "COPY_BUFFER_RECT",
	CommandUser:              "USER",
	CommandBarrier:           "BARRIER",
	CommandMigrateMemObjects: "MIGRATE_MEM_OBJECTS",
	CommandFillBuffer:        "FILL_BUFFER",
	CommandFillImage:         "FILL_IMAGE",
	CommandSVMFree:           "SVM_FREE",
	CommandSVMMemcpy:         "SVM_MEMCPY",
	CommandSVMMemfill:        "SVM_MEMFILL",
	CommandSVMMap:            "SVM_MAP",
	CommandSVMUnmap:          "SVM_UNMAP",
}

// String returns the name used for events that were never given one.
func (c CommandType) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseCommandType is the inverse of String. It also accepts the numeric
// form ("0x11F0" or "4592").
func ParseCommandType(s string) (CommandType, error) {
	for ct, name := range commandNames {
		if name == s {
			return ct, nil
		}
	}
	var v uint32
	if _, err := fmt.Sscan(s, &v); err == nil {
		return CommandType(v), nil
	}
	return 0, fmt.Errorf("unknown command type %q", s)
}

// MarshalText encodes the command type by name so traces stay readable.
func (c CommandType) MarshalText() ([]byte, error) {
	if name, ok := commandNames[c]; ok {
		return []byte(name), nil
	}
	return []byte(fmt.Sprintf("%d", uint32(c))), nil
}

// UnmarshalText accepts what MarshalText produces.
func (c *CommandType) UnmarshalText(text []byte) error {
	ct, err := ParseCommandType(string(text))
	if err != nil {
		return err
	}
	*c = ct
	return nil
}
