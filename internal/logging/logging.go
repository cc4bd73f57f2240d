// Package logging provides structured, leveled logging.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// sink is shared by a logger and every logger derived from it, so writes from
// concurrent workflow runs never interleave within a line.
type sink struct {
	mu       sync.Mutex
	output   io.Writer
	minLevel Level
}

// Logger writes one line per entry: LEVEL TIMESTAMP [component] message key=value ...
type Logger struct {
	sink      *sink
	component string
	traceID   string
}

// New creates a new Logger writing to stdout at info level.
func New() *Logger {
	return &Logger{
		sink: &sink{output: os.Stdout, minLevel: LevelInfo},
	}
}

// ParseLevel converts a config string to a Level. Unknown values map to info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{sink: l.sink, component: component, traceID: l.traceID}
}

// WithTraceID returns a new logger tagged with the given trace ID (the run ID).
func (l *Logger) WithTraceID(traceID string) *Logger {
	return &Logger{sink: l.sink, component: l.component, traceID: traceID}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs in key order.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return " " + strings.Join(parts, " ")
}

func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if levelPriority[level] < levelPriority[l.sink.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	merged := map[string]interface{}{}
	if len(fields) > 0 && fields[0] != nil {
		for k, v := range fields[0] {
			merged[k] = v
		}
	}
	if l.traceID != "" {
		merged["run"] = l.traceID
	}
	fieldStr := formatFields(merged)

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.sink.output.Write([]byte(line))
}

// Agent logs agent activity (status updates, completion).
func (l *Logger) Agent(msg string, fields ...map[string]interface{}) {
	f := map[string]interface{}{}
	if len(fields) > 0 && fields[0] != nil {
		for k, v := range fields[0] {
			f[k] = v
		}
	}
	f["agent_event"] = true
	l.Info(msg, f)
}

// ToolCall logs a tool invocation. items is the number of commands or files.
func (l *Logger) ToolCall(tool string, items int) {
	// Args are not logged; file contents and commands may carry user data.
	l.Info("tool_call", map[string]interface{}{
		"tool":  tool,
		"items": items,
	})
}

// ToolResult logs a tool result. softErr marks results fed back to the agent as errors.
func (l *Logger) ToolResult(tool string, duration time.Duration, softErr bool) {
	fields := map[string]interface{}{
		"tool":     tool,
		"duration": duration.String(),
	}
	if softErr {
		fields["soft_error"] = true
		l.Warn("tool_result", fields)
		return
	}
	l.Debug("tool_result", fields)
}

// StepStart logs the start of a durable step.
func (l *Logger) StepStart(stepID string) {
	l.Debug("step_start", map[string]interface{}{
		"step": stepID,
	})
}

// StepComplete logs a durable step whose output was committed.
func (l *Logger) StepComplete(stepID string, duration time.Duration) {
	l.Info("step_complete", map[string]interface{}{
		"step":     stepID,
		"duration": duration.String(),
	})
}

// StepReplayed logs a durable step answered from its checkpoint.
func (l *Logger) StepReplayed(stepID string) {
	l.Info("step_replayed", map[string]interface{}{
		"step": stepID,
	})
}

// StepFailed logs a durable step that returned an error (nothing committed).
func (l *Logger) StepFailed(stepID string, err error) {
	l.Error("step_failed", map[string]interface{}{
		"step":  stepID,
		"error": err.Error(),
	})
}

// WorkflowStart logs the start of a workflow run.
func (l *Logger) WorkflowStart(workflow, projectID string) {
	l.Info("workflow_start", map[string]interface{}{
		"workflow": workflow,
		"project":  projectID,
	})
}

// WorkflowComplete logs the end of a workflow run.
func (l *Logger) WorkflowComplete(workflow string, duration time.Duration, status string) {
	l.Info("workflow_complete", map[string]interface{}{
		"workflow": workflow,
		"duration": duration.String(),
		"status":   status,
	})
}
