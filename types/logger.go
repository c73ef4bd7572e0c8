package types

import (
	"go.uber.org/zap"
)

// Logger is handed to every component. Named returns a child logger whose
// entries carry the component name.
type Logger interface {
	Error(msg string, fields ...zap.Field)
	ErrorWithErrStack(msg string, err error, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Named(component string) Logger
}

type LoggerCreator func(config interface{}) (Logger, error)
