package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
engine:
  threads: 4
  processes: 2
  process: 1
  addresses: ["10.0.0.1:2101", "10.0.0.2:2101"]
  poll_interval: 5ms
source:
  name: words
  type: kafka
  config:
    bootstrap_servers: localhost:9092
    topic: words
sink:
  type: badger
  config:
    path: /tmp/out
status_addr: ":8080"
log_level: debug
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Engine.Threads)
	assert.Equal(t, 0, s.Engine.Processes)
	assert.Equal(t, time.Millisecond, s.Engine.PollInterval)
	assert.Equal(t, "info", s.LogLevel)
	assert.Empty(t, s.StatusAddr)
	assert.False(t, s.Version)
	require.NoError(t, s.Engine.Validate())
}

func TestLoadFileThenFlags(t *testing.T) {
	path := writeFile(t, "wireflow.yaml", sampleYAML)

	s, err := Load([]string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, 4, s.Engine.Threads)
	assert.Equal(t, 2, s.Engine.Processes)
	assert.Equal(t, 1, s.Engine.Process)
	assert.Equal(t, []string{"10.0.0.1:2101", "10.0.0.2:2101"}, s.Engine.Addresses)
	assert.Equal(t, 5*time.Millisecond, s.Engine.PollInterval)
	assert.Equal(t, "kafka", s.Source.ConnectionType)
	assert.Equal(t, "words", s.Source.Config["topic"])
	assert.Equal(t, "badger", s.Sink.ConnectionType)
	assert.Equal(t, ":8080", s.StatusAddr)
	assert.Equal(t, "debug", s.LogLevel)

	s, err = Load([]string{"--config", path, "-w", "8", "--process", "0", "--log-level", "warn"})
	require.NoError(t, err)
	assert.Equal(t, 8, s.Engine.Threads)
	assert.Equal(t, 0, s.Engine.Process)
	assert.Equal(t, 2, s.Engine.Processes)
	assert.Equal(t, "warn", s.LogLevel)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "wireflow.json", `{"engine": {"threads": 2}, "development": true}`)
	s, err := Load([]string{"--config", path, "--version"})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Engine.Threads)
	assert.True(t, s.Development)
	assert.True(t, s.Version)
}

func TestLoadInputOutputShortcuts(t *testing.T) {
	path := writeFile(t, "wireflow.yaml", sampleYAML)
	s, err := Load([]string{"--config", path, "--input", "words.txt", "--output", "counts.tsv"})
	require.NoError(t, err)
	assert.Equal(t, "file", s.Source.ConnectionType)
	assert.Equal(t, "words.txt", s.Source.Config["file_path"])
	assert.Equal(t, "file", s.Sink.ConnectionType)
	assert.Equal(t, "counts.tsv", s.Sink.Config["file_path"])
}

func TestLoadErrors(t *testing.T) {
	_, err := Load([]string{"--config", writeFile(t, "wireflow.toml", "a = 1")})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	_, err = Load([]string{"--threads", "many"})
	assert.Error(t, err)

	var usage bytes.Buffer
	_, err = load([]string{"--help"}, &usage)
	assert.ErrorIs(t, err, ErrHelp)
	assert.Contains(t, usage.String(), "--threads")
}
