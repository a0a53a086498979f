package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/compass/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input    string
		expected config.LogLevel
	}{
		{"off", config.LogLevelOff},
		{"NONE", config.LogLevelOff},
		{"error", config.LogLevelError},
		{" Debug ", config.LogLevelDebug},
		{"warn", config.LogLevelError},
		{"", config.LogLevelError},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, config.ParseLogLevel(tt.input))
		})
	}

	assert.Equal(t, "error", config.LogLevel(99).String())
	assert.Equal(t, "debug", config.LogLevelDebug.String())
	assert.Equal(t, "off", config.LogLevelOff.String())
}

func TestNewLogger_File(t *testing.T) {
	t.Parallel()
	logPath := filepath.Join(t.TempDir(), "nested", "compass.log")

	logger, err := config.NewLogger(config.LogLevelDebug, logPath)
	require.NoError(t, err)
	assert.Equal(t, logPath, logger.Path())

	logger.Debug("switching to %s", "0x89")
	logger.Component("chainsync").Error("switch failed: %d", 4001)
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close(), "closing twice is harmless")

	// #nosec G304 -- test file
	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[DEBUG] switching to 0x89")
	assert.Contains(t, lines[1], "[ERROR] chainsync: switch failed: 4001")
}

func TestNewLogger_Disabled(t *testing.T) {
	t.Parallel()

	logger, err := config.NewLogger(config.LogLevelOff, filepath.Join(t.TempDir(), "x.log"))
	require.NoError(t, err)
	logger.Error("dropped")
	assert.Empty(t, logger.Path())

	logger, err = config.NewLogger(config.LogLevelDebug, "")
	require.NoError(t, err)
	logger.Debug("dropped")
	require.NoError(t, logger.Close())
}

func TestNewLogger_InvalidPath(t *testing.T) {
	t.Parallel()
	_, err := config.NewLogger(config.LogLevelDebug, "/proc/nonexistent/test.log")
	assert.Error(t, err)
}

func TestLogger_LevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := config.NewWriterLogger(config.LogLevelError, &buf)

	logger.Debug("hidden")
	logger.Error("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	logger.SetLevel(config.LogLevelDebug)
	assert.Equal(t, config.LogLevelDebug, logger.Level())
	logger.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")

	logger.SetLevel(config.LogLevelOff)
	logger.Error("silenced")
	assert.NotContains(t, buf.String(), "silenced")
}

func TestLogger_Writer(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := config.NewWriterLogger(config.LogLevelDebug, &buf)

	n, err := logger.Writer(config.LogLevelDebug).Write([]byte("  from writer \n"))
	require.NoError(t, err)
	assert.Equal(t, 15, n)
	assert.Contains(t, buf.String(), "[DEBUG] from writer\n")
}

func TestNullLogger(t *testing.T) {
	t.Parallel()
	logger := config.NullLogger()
	assert.Equal(t, config.LogLevelOff, logger.Level())
	logger.Debug("x")
	logger.Component("dispatch").Error("y")
	assert.NoError(t, logger.Close())
}

// syncBuffer guards a bytes.Buffer for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func TestLogger_Concurrent(t *testing.T) {
	t.Parallel()
	out := &syncBuffer{}
	logger := config.NewWriterLogger(config.LogLevelDebug, out)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.Component("worker").Debug("line %d", i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, strings.Count(out.buf.String(), "\n"))
}
