// Package logging provides structured, standards-compliant logging.
package logging

import (
	"fmt"
	"io"
	"os"
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

// Logger provides structured logging to stdout.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	runID     string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		runID:     l.runID,
	}
}

// WithRunID returns a new logger tagged with a workflow run ID.
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		runID:     runID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// ParseLevel converts a config string to a Level, defaulting to INFO.
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

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry in traditional format: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}
	if l.runID != "" {
		fieldStr = " run=" + l.runID + fieldStr
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// RunStart logs the start of a workflow run.
func (l *Logger) RunStart(goal string) {
	l.Info("run_start", map[string]interface{}{
		"goal": goal,
	})
}

// RunComplete logs the completion of a workflow run.
func (l *Logger) RunComplete(goal string, duration time.Duration, status string) {
	l.Info("run_complete", map[string]interface{}{
		"goal":     goal,
		"duration": duration.String(),
		"status":   status,
	})
}

// NodeStart logs the start of a tree node execution.
func (l *Logger) NodeStart(nodeID, kind string) {
	l.Debug("node_start", map[string]interface{}{
		"node": nodeID,
		"kind": kind,
	})
}

// NodeComplete logs the completion of a tree node execution.
func (l *Logger) NodeComplete(nodeID, kind string, duration time.Duration, status string) {
	l.Debug("node_complete", map[string]interface{}{
		"node":     nodeID,
		"kind":     kind,
		"duration": duration.String(),
		"status":   status,
	})
}

// AgentResult logs the outcome of one agent invocation.
func (l *Logger) AgentResult(nodeID string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"node":     nodeID,
		"duration": duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Error("agent_error", fields)
	} else {
		l.Debug("agent_result", fields)
	}
}

// GateResult logs a quality-gate verdict.
func (l *Logger) GateResult(gate, nodeID string, passed bool, duration time.Duration) {
	fields := map[string]interface{}{
		"gate":     gate,
		"node":     nodeID,
		"passed":   passed,
		"duration": duration.String(),
	}
	if passed {
		l.Debug("gate_result", fields)
	} else {
		l.Warn("gate_failed", fields)
	}
}

// FactWritten logs a working-memory write.
func (l *Logger) FactWritten(key, nodeID string, ttl time.Duration) {
	// Fact values never reach the log; they may carry sensitive material.
	l.Debug("fact_written", map[string]interface{}{
		"key":  key,
		"node": nodeID,
		"ttl":  ttl.String(),
	})
}

// EpisodeRecorded logs the persistence of an episodic record.
func (l *Logger) EpisodeRecorded(episodeID, outcome string) {
	l.Info("episode_recorded", map[string]interface{}{
		"episode": episodeID,
		"outcome": outcome,
	})
}
