// Package debug writes component-tagged diagnostic lines when debugging is
// switched on, either at build time, through the DEBUG environment variable,
// or by opening a debug log file.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EnableDebug turns debug output on at build time:
// go build -ldflags "-X github.com/standardbeagle/spanidx/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// QuietMode suppresses all debug output, e.g. when stdout carries JSON.
var QuietMode = false

var state struct {
	sync.Mutex
	out  io.Writer
	file *os.File
	// forced is set while a debug log file is open.
	forced bool
}

// SetQuietMode enables or disables quiet mode.
func SetQuietMode(enabled bool) {
	state.Lock()
	QuietMode = enabled
	state.Unlock()
}

// SetDebugOutput sets the writer debug lines go to. Nil disables output.
func SetDebugOutput(w io.Writer) {
	state.Lock()
	state.out = w
	state.Unlock()
}

// InitDebugLogFile opens a timestamped log under the temp directory, routes
// debug output to it and switches debugging on. It returns the log path.
func InitDebugLogFile() (string, error) {
	dir := filepath.Join(os.TempDir(), "spanidx-debug-logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}
	path := filepath.Join(dir, "debug-"+time.Now().Format("2006-01-02T150405")+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	state.Lock()
	defer state.Unlock()
	if state.file != nil {
		_ = state.file.Close()
	}
	state.file, state.out, state.forced = f, f, true
	return path, nil
}

// CloseDebugLog closes the log opened by InitDebugLogFile, if any.
func CloseDebugLog() error {
	state.Lock()
	defer state.Unlock()
	if state.file == nil {
		return nil
	}
	err := state.file.Close()
	state.file, state.out, state.forced = nil, nil, false
	return err
}

// IsDebugEnabled reports whether debug lines are written.
func IsDebugEnabled() bool {
	state.Lock()
	quiet, forced := QuietMode, state.forced
	state.Unlock()
	switch {
	case quiet:
		return false
	case forced, EnableDebug == "true":
		return true
	}
	v := os.Getenv("DEBUG")
	return v == "1" || v == "true"
}

func write(prefix, format string, args []any) {
	if !IsDebugEnabled() {
		return
	}
	state.Lock()
	defer state.Unlock()
	if state.out != nil {
		fmt.Fprintf(state.out, prefix+format, args...)
	}
}

// Printf writes an untagged debug line.
func Printf(format string, args ...any) {
	write("[DEBUG] ", format, args)
}

// Log writes a debug line tagged with component. Format should end in "\n".
func Log(component, format string, args ...any) {
	write("[DEBUG:"+component+"] ", format, args)
}

// LogIndexing logs upload pipeline events.
func LogIndexing(format string, args ...any) {
	Log("INDEX", format, args...)
}

// LogQuery logs read-side events.
func LogQuery(format string, args ...any) {
	Log("QUERY", format, args...)
}

// LogStore logs document store events.
func LogStore(format string, args ...any) {
	Log("STORE", format, args...)
}

// Fatal writes msg to the debug output, unless quiet, and returns it as an
// error. Callers decide whether to exit.
func Fatal(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	state.Lock()
	if state.out != nil && !QuietMode {
		fmt.Fprintf(state.out, "[FATAL] %s", msg)
	}
	state.Unlock()
	return fmt.Errorf("fatal error: %s", msg)
}
