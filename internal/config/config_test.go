package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/clprof/internal/prof"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clprof.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, prof.DefaultExportOptions(), c.ExportOptions())
	assert.Equal(t, prof.DefaultAggSort, c.AggSort())
	assert.Equal(t, prof.DefaultOverlapSort, c.OverlapSort())
	assert.Equal(t, ":8080", c.Server.Addr)
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
server:
  addr: "127.0.0.1:9999"
export:
  separator: ","
  zero_start: false
summary:
  agg_sort: name-asc
`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "json", c.LogFormat)
	assert.Equal(t, "./data", c.DataDir)
	assert.Equal(t, "127.0.0.1:9999", c.Server.Addr)

	opts := c.ExportOptions()
	assert.Equal(t, ",", opts.Separator)
	assert.Equal(t, "\n", opts.Newline)
	assert.False(t, opts.ZeroStart)

	assert.Equal(t, prof.AggSort{Key: prof.AggByName, Order: prof.Asc}, c.AggSort())
	assert.Equal(t, prof.DefaultOverlapSort, c.OverlapSort())
}

func TestLoadQuotedDelimiters(t *testing.T) {
	path := writeConfig(t, `
export:
  separator: "\t"
  newline: "\r\n"
  queue_delim: "'"
  event_name_delim: "\""
`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, prof.ExportOptions{
		Separator:      "\t",
		Newline:        "\r\n",
		QueueDelim:     "'",
		EventNameDelim: "\"",
		ZeroStart:      true,
	}, c.ExportOptions())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"log level", "log_level: loud\n", "log_level"},
		{"log format", "log_format: xml\n", "log_format"},
		{"empty separator", "export:\n  separator: \"\"\n", "export.separator"},
		{"agg sort", "summary:\n  agg_sort: size-desc\n", "summary.agg_sort"},
		{"overlap sort", "summary:\n  overlap_sort: duration-up\n", "summary.overlap_sort"},
		{"empty addr", "server:\n  addr: \"\"\n", "server.addr"},
		{"bad yaml", "log_level: [\n", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	c := Default()
	c.LogLevel = "x"
	c.DataDir = ""
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "data_dir")
}

func TestLoadOrDefault(t *testing.T) {
	c, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	_, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSortFallbacks(t *testing.T) {
	c := Default()
	c.Summary.AggSort = "bogus"
	c.Summary.OverlapSort = "bogus"
	assert.Equal(t, prof.DefaultAggSort, c.AggSort())
	assert.Equal(t, prof.DefaultOverlapSort, c.OverlapSort())
}
