package debug

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (mount identity, init result)
	LevelLive    = 2 // Live info (slews, gotos, stops)
	LevelVerbose = 3 // Verbose (calibration details, status polls)
	LevelTrace   = 4 // Trace (protocol frames, very low level)
)

var (
	level  int
	logger *logrus.Logger
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (mount identity, init result)
// 2 = live info (motion commands per axis)
// 3 = verbose (calibration constants, status polling)
// 4 = trace (every request/response frame on the wire)
func Init(debugLevel int) {
	level = debugLevel
	if level <= LevelOff {
		logger = nil
		return
	}

	logger = logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000000",
	})
	logger.SetLevel(logrusLevel(level))
}

func logrusLevel(l int) logrus.Level {
	switch {
	case l >= LevelTrace:
		return logrus.TraceLevel
	case l >= LevelLive:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// SetOutput redirects debug output (e.g. to also feed the web log stream).
func SetOutput(w io.Writer) {
	if logger != nil {
		logger.SetOutput(w)
	}
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Infof(format, args...)
	}
}

// Summary prints an important summary banner.
func Summary(title string) {
	if level >= LevelInfo && logger != nil {
		logger.Info("═══════════════════════════════════════")
		logger.Infof("  %s", title)
		logger.Info("═══════════════════════════════════════")
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.WithField("value", value).Infof("  %s", name)
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive && logger != nil {
		logger.Debugf(format, args...)
	}
}

// Axis prints a level 2 message tagged with the axis it concerns.
func Axis(axis fmt.Stringer, format string, args ...interface{}) {
	if level >= LevelLive && logger != nil {
		logger.WithField("axis", axis.String()).Debugf(format, args...)
	}
}

// Shot prints a camera trigger event (level 2).
func Shot(trigger string) {
	if level >= LevelLive && logger != nil {
		logger.WithField("trigger", trigger).Debug("shot")
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Debugf(format, args...)
	}
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Debugf("%s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if level >= LevelVerbose && logger != nil {
		logger.Debug("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Debugf("  %s", name)
		logger.Debug("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if level >= LevelVerbose && logger != nil {
		logger.Debugf("Step %d: %s", num, description)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message.
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Tracef(format, args...)
	}
}

// Wire prints a protocol frame as it crosses the serial line (level 4).
// dir is "tx" or "rx".
func Wire(dir string, axis fmt.Stringer, frame string) {
	if level >= LevelTrace && logger != nil {
		logger.WithFields(logrus.Fields{
			"dir":  dir,
			"axis": axis.String(),
		}).Tracef("%q", frame)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.WithField("pin", pin).Tracef("GPIO %s %v", operation, value)
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo && logger != nil {
		logger.Error(err)
	}
}

// Warn prints a non-fatal problem (level 1+).
func Warn(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Warnf(format, args...)
	}
}
