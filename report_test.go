package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedReport(level Level) (*DefaultReport, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewDefaultReport(zap.New(core), level), logs
}

func TestReportLevelFilter(t *testing.T) {
	r, logs := newObservedReport(LevelWarning)

	r.Debug("debug", nil)
	r.Info("info", nil)
	r.Warn("warn", Fields{"k": "v"})
	r.Error("error", nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, map[string]any{"k": "v"}, entries[0].ContextMap())
	assert.Equal(t, "error", entries[1].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, LevelWarning, r.Level())
}

func TestReportCritical(t *testing.T) {
	r, logs := newObservedReport(LevelDebug)

	r.Critical("disk full", Fields{"mount": "/data"})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, map[string]any{"severity": "CRITICAL", "mount": "/data"}, entries[0].ContextMap())
}

func TestReportFieldsSorted(t *testing.T) {
	r, logs := newObservedReport(LevelDebug)

	r.Info("sorted", Fields{"b": 1, "c": 2, "a": 3})

	entries := logs.All()
	require.Len(t, entries, 1)
	var keys []string
	for _, f := range entries[0].Context {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestNilLoggerReportDiscards(t *testing.T) {
	r := NewDefaultReport(nil, LevelDebug)
	assert.NotPanics(t, func() {
		r.Critical("nobody listens", Fields{"x": 1})
	})
}

func TestReportLogEvaluation(t *testing.T) {
	threshold := 0.8
	tests := []struct {
		name      string
		value     float64
		threshold *float64
		want      string
	}{
		{name: "below threshold", value: 0.5, threshold: &threshold, want: "FAIL"},
		{name: "at threshold", value: 0.8, threshold: &threshold, want: "PASS"},
		{name: "above threshold", value: 0.95, threshold: &threshold, want: "PASS"},
		{name: "no threshold", value: 0.1, want: "PASS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, logs := newObservedReport(LevelInfo)
			assert.Equal(t, tt.want, r.LogEvaluation("accuracy", tt.value, tt.threshold, Fields{"run": "r1"}))

			entries := logs.All()
			require.Len(t, entries, 1)
			ctxMap := entries[0].ContextMap()
			assert.Equal(t, tt.want, ctxMap["status"])
			assert.Equal(t, "accuracy", ctxMap["metric_name"])
			assert.Equal(t, tt.value, ctxMap["value"])
			assert.Equal(t, "r1", ctxMap["run"])
			if tt.threshold == nil {
				assert.NotContains(t, ctxMap, "threshold")
			} else {
				assert.Equal(t, *tt.threshold, ctxMap["threshold"])
			}
		})
	}
}

func TestReportLogLLMCall(t *testing.T) {
	r, logs := newObservedReport(LevelInfo)

	r.LogLLMCall(LLMCall{
		Model:            "small-model",
		PromptTokens:     120,
		CompletionTokens: 30,
		ResponseTime:     0.42,
		Success:          true,
	}, Fields{"request_id": "req-1"})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "LLM call completed", entries[0].Message)
	ctxMap := entries[0].ContextMap()
	assert.Equal(t, "small-model", ctxMap["model"])
	assert.Equal(t, int64(120), ctxMap["prompt_tokens"])
	assert.Equal(t, int64(30), ctxMap["completion_tokens"])
	assert.Equal(t, 0.42, ctxMap["response_time"])
	assert.Equal(t, true, ctxMap["success"])
	assert.Equal(t, "req-1", ctxMap["request_id"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":    LevelDebug,
		"INFO":     LevelInfo,
		"Warning":  LevelWarning,
		"warn":     LevelWarning,
		" error ":  LevelError,
		"CRITICAL": LevelCritical,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "WARNING", LevelWarning.String())
	assert.Equal(t, "CRITICAL", LevelCritical.String())
	assert.Equal(t, "Level(35)", Level(35).String())
}
