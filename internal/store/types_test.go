package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/clprof/internal/cl"
	"github.com/cwbudde/clprof/internal/prof"
)

type testEvent struct {
	name       string
	start, end uint64
}

func (e testEvent) Name() string { return e.name }

func (e testEvent) CommandType() (cl.CommandType, error) { return cl.CommandNDRangeKernel, nil }

func (e testEvent) Timestamps() (cl.Timestamps, error) {
	return cl.Timestamps{Queued: e.start, Submit: e.start, Start: e.start, End: e.end}, nil
}

type testQueue struct {
	events []cl.ProfiledEvent
}

func (q *testQueue) Properties() (cl.QueueProperties, error) { return cl.QueueProfilingEnable, nil }
func (q *testQueue) Events() []cl.ProfiledEvent              { return q.events }
func (q *testQueue) GC()                                     { q.events = nil }
func (q *testQueue) Retain()                                 {}
func (q *testQueue) Release()                                {}

func TestNewReport(t *testing.T) {
	s := prof.NewSession()
	s.RegisterQueue("q1", &testQueue{events: []cl.ProfiledEvent{testEvent{"write", 0, 100}}})
	s.RegisterQueue("q2", &testQueue{events: []cl.ProfiledEvent{testEvent{"read", 50, 150}}})
	require.NoError(t, s.Compute())

	report := NewReport("id-1", "bench", s)
	require.NoError(t, report.Validate(), "Report from a computed session must validate")

	assert.Equal(t, uint64(200), report.Total)
	assert.Equal(t, uint64(150), report.Effective)
	// Aggregates are kept in name order
	assert.Equal(t, "read", report.Aggregates[0].EventName)
	require.Len(t, report.Overlaps, 1)
	assert.Equal(t, "write", report.Overlaps[0].Event1Name)
	assert.Contains(t, report.Summary, "Aggregate times by event")
	assert.False(t, report.Created.IsZero(), "Expected creation time")
}

func TestReport_JSONSerialization(t *testing.T) {
	data, err := json.Marshal(createTestReport("json"))
	require.NoError(t, err)
	for _, key := range []string{`"numEvents":2`, `"effective":150`, `"event1Name":"write"`} {
		assert.Contains(t, string(data), key)
	}
}

func TestReport_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Report)
		field  string
	}{
		{"valid", func(*Report) {}, ""},
		{"empty id", func(r *Report) { r.ID = "" }, "ID"},
		{"zero created", func(r *Report) { r.Created = time.Time{} }, "Created"},
		{"effective above total", func(r *Report) { r.Effective = 300 }, "Effective"},
		{"aggregate mismatch", func(r *Report) { r.Aggregates[0].AbsoluteTime = 1 }, "Aggregates"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := createTestReport("r")
			tt.modify(report)
			err := report.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestReportToInfo(t *testing.T) {
	report := createTestReport("info")
	info := report.ToInfo()
	assert.Equal(t, report.ID, info.ID)
	assert.Equal(t, report.Name, info.Name)
	assert.Equal(t, report.NumEvents, info.NumEvents)
	assert.Equal(t, uint64(200), info.Total)
	assert.Equal(t, uint64(150), info.Effective)
}
