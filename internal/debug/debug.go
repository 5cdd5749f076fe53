package debug

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	clog "github.com/charmbracelet/log"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (session bound, media saved)
	LevelLive    = 2 // Live info (user actions, recording events)
	LevelVerbose = 3 // Verbose (bind details, state transitions)
	LevelTrace   = 4 // Trace (GPIO, very low level)
)

var (
	level  atomic.Int32
	logger atomic.Pointer[clog.Logger]
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (session bound, photos and videos saved)
// 2 = live info (user actions, recording events)
// 3 = verbose (bind details, state transitions, config)
// 4 = trace (GPIO, very low level)
func Init(debugLevel int) {
	level.Store(int32(debugLevel))
	if debugLevel > LevelOff {
		logger.Store(newLogger(os.Stdout))
	} else {
		logger.Store(nil)
	}
}

func newLogger(w io.Writer) *clog.Logger {
	return clog.NewWithOptions(w, clog.Options{
		Prefix:          "CamGo",
		ReportTimestamp: true,
		TimeFormat:      "2006/01/02 15:04:05.000000",
		Level:           clog.DebugLevel,
	})
}

// SetOutput redirects debug output to w (e.g. stdout plus the web status stream).
// It is a no-op while debug output is disabled.
func SetOutput(w io.Writer) {
	if logger.Load() == nil {
		return
	}
	logger.Store(newLogger(w))
}

// Level returns the current debug level.
func Level() int {
	return int(level.Load())
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return Level() >= minLevel
}

func active(minLevel int) *clog.Logger {
	if Level() < minLevel {
		return nil
	}
	return logger.Load()
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if l := active(LevelInfo); l != nil {
		l.Infof(format, args...)
	}
}

// Summary prints an important summary (level 1).
func Summary(title string) {
	if l := active(LevelInfo); l != nil {
		l.Info("═══════════════════════════════════════")
		l.Info("  " + title)
		l.Info("═══════════════════════════════════════")
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if l := active(LevelInfo); l != nil {
		l.Info(name, "value", value)
	}
}

// Warn prints a non-fatal problem (level 1).
func Warn(format string, args ...interface{}) {
	if l := active(LevelInfo); l != nil {
		l.Warnf(format, args...)
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if l := active(LevelLive); l != nil {
		l.Infof(format, args...)
	}
}

// Event prints a structured live event, e.g. Event("recording started", "id", id).
func Event(msg string, keyvals ...interface{}) {
	if l := active(LevelLive); l != nil {
		l.Info(msg, keyvals...)
	}
}

// Action prints a user action entering the session (level 2).
func Action(name string) {
	if l := active(LevelLive); l != nil {
		l.Info("user action", "action", name)
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if l := active(LevelVerbose); l != nil {
		l.Debugf(format, args...)
	}
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if l := active(LevelVerbose); l != nil {
		l.Debugf("%s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if l := active(LevelVerbose); l != nil {
		l.Debug("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		l.Debug("  " + name)
		l.Debug("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if l := active(LevelVerbose); l != nil {
		l.Debugf("Step %d: %s", num, description)
	}
}

// Transition prints a state machine transition (level 3).
func Transition(component string, from, to fmt.Stringer) {
	if l := active(LevelVerbose); l != nil {
		l.Debug("transition", "component", component, "from", from.String(), "to", to.String())
	}
}

// Elapsed prints how long an operation took (level 3).
func Elapsed(op string, start time.Time) {
	if l := active(LevelVerbose); l != nil {
		l.Debug(op, "elapsed", time.Since(start))
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace, GPIO).
func Trace(format string, args ...interface{}) {
	if l := active(LevelTrace); l != nil {
		l.Debugf("[TRACE] "+format, args...)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if l := active(LevelTrace); l != nil {
		l.Debug("gpio", "op", operation, "pin", pin, "value", value)
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if l := active(LevelInfo); l != nil {
		l.Error(err)
	}
}

// Fmt is a helper function that returns a formatted string
// only if debug is enabled (to avoid unnecessary allocations).
func Fmt(format string, args ...interface{}) string {
	if Level() > 0 {
		return fmt.Sprintf(format, args...)
	}
	return ""
}
