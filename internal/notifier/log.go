package notifier

import (
	"context"

	"fundingwatch/logger"
)

// Log writes digests to the application log.
type Log struct {
	log *logger.Log
}

func NewLog(log *logger.Log) *Log {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Log{log: log}
}

func (l *Log) Name() string { return "log" }

func (l *Log) Deliver(_ context.Context, message string) error {
	l.log.WithComponent("notifier").WithFields(logger.Fields{"digest": PlainText(message)}).Info("funding digest")
	return nil
}
