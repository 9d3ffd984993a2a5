package log

import "io"

// Global vars related to the logger package
var (
	subLoggers = map[string]*SubLogger{}

	Global        *SubLogger
	ConfigMgr     *SubLogger
	DatabaseMgr   *SubLogger
	SupervisorMgr *SubLogger
	WorkerMgr     *SubLogger
	WatchdogMgr   *SubLogger
	TaskQueue     *SubLogger
	RESTSys       *SubLogger
)

// Levels flags for each sub logger type
type Levels struct {
	Info, Debug, Warn, Error bool
}

// SubLogger defines a sub logger that can be configured independently of the
// others, e.g. so database tracing can be enabled without drowning out the
// supervisor's output
type SubLogger struct {
	name   string
	levels Levels
	output io.Writer
}
