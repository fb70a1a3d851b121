package events_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeview/settingsync/internal/config"
	"github.com/tradeview/settingsync/internal/events"
)

func TestNewLogger(t *testing.T) {
	cfg := &config.LogConfig{
		Level:  "debug",
		Format: "json",
		File:   "",
	}

	logger, err := events.NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestLoggerWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.InfoLevel, "json", &buf)

	logger.WithField("setting_key", "theme").Info("change queued")

	output := buf.String()
	assert.Contains(t, output, `"setting_key":"theme"`)
	assert.Contains(t, output, `"msg":"change queued"`)
	assert.Contains(t, output, `"level":"info"`)
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.InfoLevel, "json", &buf)

	logger.WithFields(map[string]interface{}{
		"device_id": "d1",
		"pending":   3,
	}).Info("drain started")

	output := buf.String()
	assert.Contains(t, output, `"device_id":"d1"`)
	assert.Contains(t, output, `"pending":3`)
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.WarnLevel, "json", &buf)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")

	output := buf.String()
	assert.NotContains(t, output, "dropped")
	assert.Contains(t, output, "kept")
}

func TestLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.InfoLevel, "text", &buf)

	logger.WithField("count", 2).Info("queue persisted")

	output := buf.String()
	assert.Contains(t, output, "[INFO]")
	assert.Contains(t, output, "queue persisted")
	assert.Contains(t, output, "count=2")
}

func TestLoggerSharedOutputLock(t *testing.T) {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.InfoLevel, "json", &buf)

	// Derived loggers share the parent's output and must not interleave.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			logger.WithField("worker", "a").Info("tick")
		}
	}()
	for i := 0; i < 50; i++ {
		logger.WithField("worker", "b").Info("tock")
	}
	<-done

	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	assert.Equal(t, 100, lines)
}
