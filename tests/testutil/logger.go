package testutil

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/credbox/internal/logging"
)

// TestLogger captures log output for validation in tests.
//
// It satisfies logging.Sink, so it can be handed to credbox.WithLogger and
// the vault backends. Tests then check that keys and values were redacted.
//
// Example usage:
//
//	logger := NewTestLoggerWithDebug(t, true)
//	store, _ := credbox.New(v, credbox.WithLogger(logger))
//	...
//	logger.AssertNotContains(t, "password123")
type TestLogger struct {
	buffer *bytes.Buffer
	debug  bool
	mu     sync.Mutex
}

var _ logging.Sink = (*TestLogger)(nil)

// NewTestLogger creates a TestLogger that drops Debug lines.
func NewTestLogger(t *testing.T) *TestLogger {
	t.Helper()
	return NewTestLoggerWithDebug(t, false)
}

// NewTestLoggerWithDebug creates a TestLogger that captures Debug lines when
// debug is true.
func NewTestLoggerWithDebug(t *testing.T, debug bool) *TestLogger {
	t.Helper()

	return &TestLogger{
		buffer: &bytes.Buffer{},
		debug:  debug,
	}
}

func (l *TestLogger) write(marker, format string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.buffer, "%s %s\n", marker, fmt.Sprintf(format, args...))
}

// Info logs an informational message.
func (l *TestLogger) Info(format string, args ...interface{}) {
	l.write("✓", format, args)
}

// Warn logs a warning message.
func (l *TestLogger) Warn(format string, args ...interface{}) {
	l.write("⚠", format, args)
}

// Error logs an error message.
func (l *TestLogger) Error(format string, args ...interface{}) {
	l.write("✗", format, args)
}

// Debug logs a debug message if debug mode is enabled.
func (l *TestLogger) Debug(format string, args ...interface{}) {
	if l.debug {
		l.write("[DEBUG]", format, args)
	}
}

// GetOutput returns the captured log output as a string.
func (l *TestLogger) GetOutput() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.buffer.String()
}

// Clear clears the captured log output.
func (l *TestLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buffer.Reset()
}

// AssertContains asserts that the log output contains the specified substring.
func (l *TestLogger) AssertContains(t *testing.T, substr string) {
	t.Helper()
	assert.Contains(t, l.GetOutput(), substr, "Expected log output to contain %q", substr)
}

// AssertNotContains asserts that the log output does NOT contain the specified substring.
func (l *TestLogger) AssertNotContains(t *testing.T, substr string) {
	t.Helper()
	assert.NotContains(t, l.GetOutput(), substr, "Expected log output to NOT contain %q", substr)
}

// AssertRedacted asserts that secretValue is absent and a [REDACTED]
// marker is present.
func (l *TestLogger) AssertRedacted(t *testing.T, secretValue string) {
	t.Helper()
	AssertSecretRedacted(t, l.GetOutput(), secretValue)
}

// AssertLogCount asserts that a specific log level appears a certain number of times.
//
// Levels are "info", "warn", "error" and "debug".
func (l *TestLogger) AssertLogCount(t *testing.T, level string, count int) {
	t.Helper()

	var marker string
	switch level {
	case "info":
		marker = "✓"
	case "warn":
		marker = "⚠"
	case "error":
		marker = "✗"
	case "debug":
		marker = "[DEBUG]"
	default:
		t.Fatalf("Unknown log level: %s", level)
	}

	actual := strings.Count(l.GetOutput(), marker)
	assert.Equal(t, count, actual, "Expected %d %s log messages, got %d", count, level, actual)
}

// Lines returns the non-empty log lines.
func (l *TestLogger) Lines() []string {
	var result []string
	for _, line := range strings.Split(l.GetOutput(), "\n") {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result
}
