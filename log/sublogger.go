package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	timestampFormat = "02/01/2006 15:04:05"
	spacer          = " | "

	defaultLevels = "INFO|WARN|ERROR"
)

var mu sync.RWMutex

func init() {
	Global = registerNewSubLogger("FCS")
	ConfigMgr = registerNewSubLogger("CONFIG")
	DatabaseMgr = registerNewSubLogger("DATABASE")
	SupervisorMgr = registerNewSubLogger("SUPERVISOR")
	WorkerMgr = registerNewSubLogger("WORKER")
	WatchdogMgr = registerNewSubLogger("WATCHDOG")
	TaskQueue = registerNewSubLogger("TASKQUEUE")
	RESTSys = registerNewSubLogger("REST")
}

func registerNewSubLogger(name string) *SubLogger {
	sl := &SubLogger{
		name:   strings.ToUpper(name),
		levels: splitLevel(defaultLevels),
		output: os.Stdout,
	}
	subLoggers[sl.name] = sl
	return sl
}

func splitLevel(level string) Levels {
	var l Levels
	for _, v := range strings.Split(strings.ToUpper(level), "|") {
		switch v {
		case "DEBUG":
			l.Debug = true
		case "INFO":
			l.Info = true
		case "WARN":
			l.Warn = true
		case "ERROR":
			l.Error = true
		}
	}
	return l
}

// SetLevel adjusts the enabled levels for every registered sub logger.
// Accepted inputs are single levels ("debug") which enable that level and
// everything more severe, or explicit pipe-delimited sets ("INFO|ERROR")
func SetLevel(level string) error {
	expanded, err := expandLevel(level)
	if err != nil {
		return err
	}
	mu.Lock()
	for _, sl := range subLoggers {
		sl.levels = splitLevel(expanded)
	}
	mu.Unlock()
	return nil
}

func expandLevel(level string) (string, error) {
	if strings.Contains(level, "|") {
		return level, nil
	}
	switch strings.ToUpper(level) {
	case "DEBUG":
		return "DEBUG|INFO|WARN|ERROR", nil
	case "INFO":
		return "INFO|WARN|ERROR", nil
	case "WARN":
		return "WARN|ERROR", nil
	case "ERROR":
		return "ERROR", nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownLevel, level)
	}
}

// SetOutput redirects all sub logger output, primarily for tests
func SetOutput(w io.Writer) {
	mu.Lock()
	for _, sl := range subLoggers {
		sl.output = w
	}
	mu.Unlock()
}
