package log

import (
	"errors"
	"fmt"
	"time"
)

var errUnknownLevel = errors.New("unknown log level")

func (sl *SubLogger) stage(header, data string) {
	fmt.Fprintf(sl.output, "%s%s%s%s%s%s\n",
		time.Now().Format(timestampFormat),
		spacer,
		header,
		spacer,
		sl.name+spacer,
		data)
}

// Info takes a pointer subLogger struct and string and logs at info level
func Info(sl *SubLogger, data string) {
	mu.RLock()
	defer mu.RUnlock()
	if !sl.levels.Info {
		return
	}
	sl.stage("[INFO]", data)
}

// Infoln takes a pointer subLogger struct and interface and logs at info level
func Infoln(sl *SubLogger, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if !sl.levels.Info {
		return
	}
	sl.stage("[INFO]", fmt.Sprint(v...))
}

// Infof takes a pointer subLogger struct, string and interface formats and
// logs at info level
func Infof(sl *SubLogger, data string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if !sl.levels.Info {
		return
	}
	sl.stage("[INFO]", fmt.Sprintf(data, v...))
}

// Debug takes a pointer subLogger struct and string and logs at debug level
func Debug(sl *SubLogger, data string) {
	mu.RLock()
	defer mu.RUnlock()
	if !sl.levels.Debug {
		return
	}
	sl.stage("[DEBUG]", data)
}

// Debugln takes a pointer subLogger struct and interface and logs at debug
// level
func Debugln(sl *SubLogger, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if !sl.levels.Debug {
		return
	}
	sl.stage("[DEBUG]", fmt.Sprint(v...))
}

// Debugf takes a pointer subLogger struct, string and interface formats and
// logs at debug level
func Debugf(sl *SubLogger, data string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if !sl.levels.Debug {
		return
	}
	sl.stage("[DEBUG]", fmt.Sprintf(data, v...))
}

// Warn takes a pointer subLogger struct and string and logs at warn level
func Warn(sl *SubLogger, data string) {
	mu.RLock()
	defer mu.RUnlock()
	if !sl.levels.Warn {
		return
	}
	sl.stage("[WARN]", data)
}

// Warnln takes a pointer subLogger struct and interface and logs at warn level
func Warnln(sl *SubLogger, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if !sl.levels.Warn {
		return
	}
	sl.stage("[WARN]", fmt.Sprint(v...))
}

// Warnf takes a pointer subLogger struct, string and interface formats and
// logs at warn level
func Warnf(sl *SubLogger, data string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if !sl.levels.Warn {
		return
	}
	sl.stage("[WARN]", fmt.Sprintf(data, v...))
}

// Error takes a pointer subLogger struct and string and logs at error level
func Error(sl *SubLogger, data string) {
	mu.RLock()
	defer mu.RUnlock()
	if !sl.levels.Error {
		return
	}
	sl.stage("[ERROR]", data)
}

// Errorln takes a pointer subLogger struct and interface and logs at error
// level
func Errorln(sl *SubLogger, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if !sl.levels.Error {
		return
	}
	sl.stage("[ERROR]", fmt.Sprint(v...))
}

// Errorf takes a pointer subLogger struct, string and interface formats and
// logs at error level
func Errorf(sl *SubLogger, data string, v ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if !sl.levels.Error {
		return
	}
	sl.stage("[ERROR]", fmt.Sprintf(data, v...))
}
