package cl

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTypeString(t *testing.T) {
	tests := []struct {
		ct   CommandType
		want string
	}{
		{CommandNDRangeKernel, "NDRANGE_KERNEL"},
		{CommandReadBuffer, "READ_BUFFER"},
		{CommandWriteBuffer, "WRITE_BUFFER"},
		{CommandMarker, "MARKER"},
		{CommandSVMMemfill, "SVM_MEMFILL"},
		{CommandType(0), "UNKNOWN"},
		{CommandType(0xFFFF), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ct.String(), "CommandType(%#x)", uint32(tt.ct))
	}
}

func TestCommandTypeTextRoundTrip(t *testing.T) {
	for _, ct := range []CommandType{CommandCopyBuffer, CommandFillImage, CommandType(42)} {
		text, err := ct.MarshalText()
		require.NoError(t, err, "MarshalText(%d)", ct)

		var back CommandType
		require.NoError(t, back.UnmarshalText(text), "UnmarshalText(%q)", text)
		assert.Equal(t, ct, back)
	}
}

func TestParseCommandTypeNumeric(t *testing.T) {
	ct, err := ParseCommandType("0x11F0")
	require.NoError(t, err)
	assert.Equal(t, CommandNDRangeKernel, ct)

	_, err = ParseCommandType("NOT_A_COMMAND")
	assert.Error(t, err, "Expected error for unknown command name")
}

func TestStatusErrorMatchesProfilingUnavailable(t *testing.T) {
	err := fmt.Errorf("read counters: %w", NewStatusError("clGetEventProfilingInfo(start)", StatusProfilingInfoNotAvailable))

	assert.ErrorIs(t, err, ErrProfilingInfoNotAvailable)
	assert.EqualError(t, err, "read counters: clGetEventProfilingInfo(start): CL_PROFILING_INFO_NOT_AVAILABLE (-7)")

	// Other codes match only themselves
	other := NewStatusError("clFinish", StatusInvalidCommandQueue)
	assert.False(t, errors.Is(other, ErrProfilingInfoNotAvailable))
	assert.ErrorIs(t, other, &StatusError{Code: StatusInvalidCommandQueue})
}

func TestQueuePropertiesHas(t *testing.T) {
	props := QueueProfilingEnable | QueueOutOfOrderExecModeEnable
	assert.True(t, props.Has(QueueProfilingEnable))
	assert.False(t, QueueOutOfOrderExecModeEnable.Has(QueueProfilingEnable), "Out-of-order alone must not report profiling")
}

func TestTimestampsDuration(t *testing.T) {
	assert.Equal(t, uint64(15), Timestamps{Start: 10, End: 25}.Duration())
	assert.Equal(t, uint64(0), Timestamps{Start: 25, End: 10}.Duration(), "Inverted interval")
}
