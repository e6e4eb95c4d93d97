package logger

import (
	"time"
)

// LogClosure defers building an expensive log string until the line is
// actually formatted.
type LogClosure func() string

func (c LogClosure) String() string {
	return c()
}

// NewLogClosure wraps c so it can be passed as a %s argument.
func NewLogClosure(c func() string) LogClosure {
	return LogClosure(c)
}

// LogAndMeasureExecutionTime logs the start of functionName at debug level
// and returns a function that logs its end along with the elapsed time.
func LogAndMeasureExecutionTime(log *Logger, functionName string) (onEnd func()) {
	start := time.Now()
	log.Debugf("%s start", functionName)
	return func() {
		log.Debugf("%s end. Took: %s", functionName, time.Since(start))
	}
}
