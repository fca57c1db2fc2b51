package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"Debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},        // Default
		{"invalid", slog.LevelInfo}, // Default for unknown
		{"trace", slog.LevelInfo},   // Unknown level defaults to info
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			result := parseLevel(tc.input)
			if result != tc.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tc.input, result, tc.expected)
			}
		})
	}
}

func TestNewLogger_Formats(t *testing.T) {
	testCases := []string{"json", "text", "JSON", "TEXT", "", "invalid"}

	for _, format := range testCases {
		t.Run(format, func(t *testing.T) {
			// Should not panic
			logger := NewLogger(format, "info", false)
			if logger == nil {
				t.Error("NewLogger returned nil")
			}
		})
	}
}

func TestNewLogger_Levels(t *testing.T) {
	testCases := []string{"debug", "info", "warn", "error", "", "invalid"}

	for _, level := range testCases {
		t.Run(level, func(t *testing.T) {
			// Should not panic
			logger := NewLogger("json", level, false)
			if logger == nil {
				t.Error("NewLogger returned nil")
			}
		})
	}
}

func TestNewLoggerWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLoggerWithWriter(&buf, "json", "info")
	logger.Info("test message", "key", "value")

	output := buf.String()

	// JSON format should contain JSON syntax
	if !strings.Contains(output, "{") || !strings.Contains(output, "}") {
		t.Errorf("Expected JSON format, got: %s", output)
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected message in output, got: %s", output)
	}
	if !strings.Contains(output, `"key"`) {
		t.Errorf("Expected key in output, got: %s", output)
	}
	if !strings.Contains(output, `"value"`) {
		t.Errorf("Expected value in output, got: %s", output)
	}
}

func TestNewLoggerWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLoggerWithWriter(&buf, "text", "info")
	logger.Info("test message", "key", "value")

	output := buf.String()

	// Text format should contain readable log
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected message in output, got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("Expected key=value in output, got: %s", output)
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	t.Run("debug_logs_all", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(&buf, "text", "debug")

		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")
		logger.Error("error msg")

		output := buf.String()
		if !strings.Contains(output, "debug msg") {
			t.Error("Debug level should log debug messages")
		}
		if !strings.Contains(output, "info msg") {
			t.Error("Debug level should log info messages")
		}
		if !strings.Contains(output, "warn msg") {
			t.Error("Debug level should log warn messages")
		}
		if !strings.Contains(output, "error msg") {
			t.Error("Debug level should log error messages")
		}
	})

	t.Run("info_filters_debug", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(&buf, "text", "info")

		logger.Debug("debug msg")
		logger.Info("info msg")

		output := buf.String()
		if strings.Contains(output, "debug msg") {
			t.Error("Info level should not log debug messages")
		}
		if !strings.Contains(output, "info msg") {
			t.Error("Info level should log info messages")
		}
	})

	t.Run("error_filters_warn", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(&buf, "text", "error")

		logger.Warn("warn msg")
		logger.Error("error msg")

		output := buf.String()
		if strings.Contains(output, "warn msg") {
			t.Error("Error level should not log warn messages")
		}
		if !strings.Contains(output, "error msg") {
			t.Error("Error level should log error messages")
		}
	})
}

func TestNewLoggerWithWriter_DefaultFormat(t *testing.T) {
	var buf bytes.Buffer

	// Invalid format should default to text
	logger := NewLoggerWithWriter(&buf, "invalid", "info")
	logger.Info("test message")

	output := buf.String()

	// Text format uses key=value, not JSON
	if strings.HasPrefix(strings.TrimSpace(output), "{") {
		t.Error("Default format should be text, not JSON")
	}
}

func TestSetDefault(t *testing.T) {
	// Save original default logger to restore later
	originalDefault := slog.Default()
	defer slog.SetDefault(originalDefault)

	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "text", "info")

	// Should not panic
	SetDefault(logger)

	// Verify it was set
	slog.Info("from default logger")
	if !strings.Contains(buf.String(), "from default logger") {
		t.Error("SetDefault did not set the default logger")
	}
}

func TestNewLoggerWithWriter_EmptyStrings(t *testing.T) {
	var buf bytes.Buffer

	// Empty format and level should use defaults
	logger := NewLoggerWithWriter(&buf, "", "")
	if logger == nil {
		t.Error("NewLoggerWithWriter returned nil")
	}

	logger.Info("test message")
	if !strings.Contains(buf.String(), "test message") {
		t.Error("Logger with empty strings should still work")
	}
}

// OutputBuffer tests

func TestNewOutputBuffer(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "text", "debug")

	b := NewOutputBuffer(logger, false)
	if b == nil {
		t.Fatal("NewOutputBuffer returned nil")
	}
	if len(b.buffer) != MaxBufferedLines {
		t.Errorf("buffer length = %d, want %d", len(b.buffer), MaxBufferedLines)
	}
}

func TestOutputBuffer_HandleLine(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "text", "debug")

	b := NewOutputBuffer(logger, true)

	b.HandleLine("test line")

	// Line should be in buffer
	lines := b.RecentLines(1)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	if lines[0] != "test line" {
		t.Errorf("Line = %q, want %q", lines[0], "test line")
	}
}

func TestOutputBuffer_HandleLine_Truncation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "text", "debug")

	b := NewOutputBuffer(logger, true)

	// Create a line longer than MaxLineLength
	longLine := strings.Repeat("x", MaxLineLength+100)
	b.HandleLine(longLine)

	lines := b.RecentLines(1)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}

	// Line should be truncated
	if len(lines[0]) > MaxLineLength+20 { // +20 for "(truncated)"
		t.Errorf("Line should be truncated, got length %d", len(lines[0]))
	}
	if !strings.HasSuffix(lines[0], "...(truncated)") {
		t.Error("Truncated line should end with '...(truncated)'")
	}
}

func TestOutputBuffer_CircularBuffer(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "text", "debug")

	b := NewOutputBuffer(logger, false)

	// Add more lines than buffer size
	for i := 0; i < MaxBufferedLines+50; i++ {
		b.HandleLine(strings.Repeat("x", i))
	}

	// Should only have MaxBufferedLines
	lines := b.RecentLines(MaxBufferedLines + 10)
	if len(lines) > MaxBufferedLines {
		t.Errorf("Got %d lines, max should be %d", len(lines), MaxBufferedLines)
	}
	if b.Len() != MaxBufferedLines {
		t.Errorf("Len() = %d, want %d", b.Len(), MaxBufferedLines)
	}
}

func TestOutputBuffer_RecentLines(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "text", "debug")

	b := NewOutputBuffer(logger, false)

	// Add 5 lines
	for i := 0; i < 5; i++ {
		b.HandleLine("line" + string(rune('0'+i)))
	}

	// Request 3 most recent
	lines := b.RecentLines(3)
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}

	// Should be last 3 lines, oldest first
	if lines[0] != "line2" || lines[1] != "line3" || lines[2] != "line4" {
		t.Errorf("Unexpected lines: %v", lines)
	}
}

func TestOutputBuffer_RecentLines_Empty(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "text", "debug")

	b := NewOutputBuffer(logger, false)

	lines := b.RecentLines(10)
	if len(lines) != 0 {
		t.Errorf("Expected 0 lines for empty buffer, got %d", len(lines))
	}
}

func TestClassifyLine(t *testing.T) {
	testCases := []struct {
		line     string
		expected slog.Level
	}{
		// Error patterns - should be Warn
		{"[stderr] anything at all", slog.LevelWarn},
		{"Error: could not open device", slog.LevelWarn},
		{"decode failed for stem 3", slog.LevelWarn},
		{"cannot open layout file", slog.LevelWarn},

		// Audio backend trouble - should be Warn
		{"ALSA xrun detected", slog.LevelWarn},
		{"buffer underrun", slog.LevelWarn},
		{"capture overrun", slog.LevelWarn},

		// Ordinary engine chatter - should be Debug
		{"loaded 12 stems", slog.LevelDebug},
		{"OSC server listening on 9009", slog.LevelDebug},
		{"some random output", slog.LevelDebug},
	}

	for _, tc := range testCases {
		t.Run(tc.line[:min(20, len(tc.line))], func(t *testing.T) {
			level := classifyLine(tc.line)
			if level != tc.expected {
				t.Errorf("classifyLine(%q) = %v, want %v", tc.line, level, tc.expected)
			}
		})
	}
}

func TestOutputBuffer_VerboseLogging(t *testing.T) {
	t.Run("verbose_true", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(&buf, "text", "debug")
		b := NewOutputBuffer(logger, true)

		b.HandleLine("ordinary engine line")

		if !strings.Contains(buf.String(), "ordinary engine line") {
			t.Error("Verbose mode should log debug lines")
		}
	})

	t.Run("verbose_false", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(&buf, "text", "debug")
		b := NewOutputBuffer(logger, false)

		b.HandleLine("ordinary engine line")

		if strings.Contains(buf.String(), "ordinary engine line") {
			t.Error("Non-verbose mode should not log debug lines")
		}
	})

	t.Run("verbose_false_logs_errors", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(&buf, "text", "debug")
		b := NewOutputBuffer(logger, false)

		b.HandleLine("engine error: device lost")

		if !strings.Contains(buf.String(), "device lost") {
			t.Error("Non-verbose mode should still log errors")
		}
	})
}

func TestOutputBuffer_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "text", "debug")
	b := NewOutputBuffer(logger, false)

	// Concurrent access should not panic
	done := make(chan bool)

	// Writer goroutine
	go func() {
		for i := 0; i < 100; i++ {
			b.HandleLine("concurrent line")
		}
		done <- true
	}()

	// Reader goroutine
	go func() {
		for i := 0; i < 100; i++ {
			_ = b.RecentLines(10)
			_ = b.Len()
		}
		done <- true
	}()

	<-done
	<-done
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
