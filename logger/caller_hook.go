package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// loggerPackages are skipped when resolving the caller of a log line.
var loggerPackages = []string{
	"sirupsen/logrus",
	"fundingwatch/logger.",
}

// callerHook points the entry's caller at the first frame outside logrus
// and the Log/Entry wrappers in this package.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 24)
	n := runtime.Callers(4, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !isLoggerFrame(frame.Function) {
			f := frame
			entry.Caller = &f
			return nil
		}
		if !more {
			return nil
		}
	}
}

func isLoggerFrame(fn string) bool {
	if fn == "" {
		return true
	}
	for _, p := range loggerPackages {
		if strings.Contains(fn, p) {
			return true
		}
	}
	return false
}
