package dns

import (
	"fmt"

	"github.com/go-logr/logr"
)

// HTTPLogger routes an HTTP client's internal Errorf/Warnf/Debugf messages
// to logr.
type HTTPLogger struct {
	Log logr.Logger
}

func (l HTTPLogger) Errorf(format string, v ...interface{}) {
	l.Log.Error(fmt.Errorf(format, v...), "http client")
}

func (l HTTPLogger) Warnf(format string, v ...interface{}) {
	l.Log.Info(fmt.Sprintf(format, v...), "level", "warn")
}

func (l HTTPLogger) Debugf(format string, v ...interface{}) {
	l.Log.V(2).Info(fmt.Sprintf(format, v...))
}
