package instrument

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Report is the capability set of the report role. Log must not fail
// for well formed input.
type Report interface {
	Log(message string, level Level, fields Fields)
}

// Fields is the open key/value set attached to a report line.
type Fields map[string]any

// Level is the severity of a report line.
type Level int

const (
	LevelDebug    Level = 10
	LevelInfo     Level = 20
	LevelWarning  Level = 30
	LevelError    Level = 40
	LevelCritical Level = 50
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel parses a level name, case insensitively. WARN is accepted
// as an alias of WARNING.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARNING", "WARN":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "CRITICAL":
		return LevelCritical, nil
	}
	return LevelInfo, fmt.Errorf("unknown report level %q", s)
}

func (l Level) zapLevel() zapcore.Level {
	switch {
	case l < LevelInfo:
		return zapcore.DebugLevel
	case l < LevelWarning:
		return zapcore.InfoLevel
	case l < LevelError:
		return zapcore.WarnLevel
	default:
		// CRITICAL stays at error level; DPanic and above would panic
		// or exit under some logger configurations.
		return zapcore.ErrorLevel
	}
}

// DefaultReport writes report lines to a zap logger, dropping lines
// below its minimum level.
type DefaultReport struct {
	logger *zap.Logger
	level  Level
}

// NewDefaultReport creates a report on logger. A nil logger discards
// every line.
func NewDefaultReport(logger *zap.Logger, level Level) *DefaultReport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultReport{logger: logger, level: level}
}

// Level returns the minimum level written.
func (r *DefaultReport) Level() Level {
	return r.level
}

// Log writes message with fields in sorted key order.
func (r *DefaultReport) Log(message string, level Level, fields Fields) {
	if level < r.level {
		return
	}
	ce := r.logger.Check(level.zapLevel(), message)
	if ce == nil {
		return
	}

	zf := make([]zap.Field, 0, len(fields)+1)
	if level >= LevelCritical {
		zf = append(zf, zap.String("severity", LevelCritical.String()))
	}
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	ce.Write(zf...)
}

func (r *DefaultReport) Debug(message string, fields Fields)    { r.Log(message, LevelDebug, fields) }
func (r *DefaultReport) Info(message string, fields Fields)     { r.Log(message, LevelInfo, fields) }
func (r *DefaultReport) Warn(message string, fields Fields)     { r.Log(message, LevelWarning, fields) }
func (r *DefaultReport) Error(message string, fields Fields)    { r.Log(message, LevelError, fields) }
func (r *DefaultReport) Critical(message string, fields Fields) { r.Log(message, LevelCritical, fields) }

// LLMCall describes one completed call to a language model.
type LLMCall struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	ResponseTime     float64
	Success          bool
}

// LogLLMCall writes an info line describing call.
func (r *DefaultReport) LogLLMCall(call LLMCall, extra Fields) {
	fields := Fields{
		"model":             call.Model,
		"prompt_tokens":     call.PromptTokens,
		"completion_tokens": call.CompletionTokens,
		"response_time":     call.ResponseTime,
		"success":           call.Success,
	}
	maps.Copy(fields, extra)
	r.Info("LLM call completed", fields)
}

// LogEvaluation writes an info line with the value of an evaluation
// metric. The status is FAIL when a threshold is given and value is
// below it, PASS otherwise. It returns the status.
func (r *DefaultReport) LogEvaluation(metric string, value float64, threshold *float64, extra Fields) string {
	status := "PASS"
	if threshold != nil && value < *threshold {
		status = "FAIL"
	}
	fields := Fields{
		"metric_name": metric,
		"value":       value,
		"status":      status,
	}
	if threshold != nil {
		fields["threshold"] = *threshold
	}
	maps.Copy(fields, extra)
	r.Info(fmt.Sprintf("Evaluation result: %s = %.4f", metric, value), fields)
	return status
}
