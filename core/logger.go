package core

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

var loggerInstance Logger = *NewDevelopmentLogger() // default to development logger

// SetLogger sets the global logger instance
func SetLogger(logger Logger) {
	loggerInstance = logger
}

// GetLogger retrieves the global logger instance
func GetLogger() *Logger {
	return &loggerInstance
}

// Logger routes leveled messages to a handler function. Components hold
// a derived logger with bound attributes (see With) rather than the
// global instance.
type Logger struct {
	handlerFunc func(level string, msg string, attrs map[string]interface{})
	attrs       map[string]interface{}
}

func NewLogger(handler func(level string, msg string, attrs map[string]interface{})) *Logger {
	return &Logger{
		handlerFunc: handler,
		attrs:       make(map[string]interface{}),
	}
}

// NewDevelopmentLogger creates a logger with line-oriented console output.
func NewDevelopmentLogger() *Logger {
	handler := func(level string, msg string, attrs map[string]interface{}) {
		var b strings.Builder
		b.WriteString(time.Now().Format(time.RFC3339))
		b.WriteString(" [")
		b.WriteString(level)
		b.WriteString("] ")
		b.WriteString(msg)
		if len(attrs) > 0 {
			keys := make([]string, 0, len(attrs))
			for k := range attrs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			b.WriteString(" |")
			for _, k := range keys {
				fmt.Fprintf(&b, " %s=%v", k, attrs[k])
			}
		}
		b.WriteByte('\n')
		if level == "FATAL" || level == "ERROR" {
			fmt.Fprint(os.Stderr, b.String())
		} else {
			fmt.Print(b.String())
		}
		if level == "FATAL" {
			os.Exit(1)
		}
	}
	return NewLogger(handler)
}

func (l *Logger) log(level string, msg string, args ...interface{}) {
	if l.handlerFunc == nil {
		return
	}
	if len(args) > 0 {
		// slog-style key-value pairs: even count, string keys.
		if isKeyValuePairs(args) {
			attrs := make(map[string]interface{}, len(l.attrs)+len(args)/2)
			for k, v := range l.attrs {
				attrs[k] = v
			}
			for i := 0; i < len(args)-1; i += 2 {
				key, _ := args[i].(string)
				attrs[key] = args[i+1]
			}
			l.handlerFunc(level, msg, attrs)
			return
		}
		msg = fmt.Sprintf(msg, args...)
	}
	l.handlerFunc(level, msg, l.attrs)
}

func isKeyValuePairs(args []interface{}) bool {
	if len(args)%2 != 0 {
		return false
	}
	for i := 0; i < len(args); i += 2 {
		if _, ok := args[i].(string); !ok {
			return false
		}
	}
	return true
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args...) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.log("DEBUG", format, args...) }

func (l *Logger) Info(msg string, args ...interface{}) { l.log("INFO", msg, args...) }

func (l *Logger) Infof(format string, args ...interface{}) { l.log("INFO", format, args...) }

func (l *Logger) Warn(msg string, args ...interface{}) { l.log("WARN", msg, args...) }

func (l *Logger) Warnf(format string, args ...interface{}) { l.log("WARN", format, args...) }

func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args...) }

func (l *Logger) Errorf(format string, args ...interface{}) { l.log("ERROR", format, args...) }

func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("FATAL", msg, args...) }

func (l *Logger) Fatalf(format string, args ...interface{}) { l.log("FATAL", format, args...) }

// With returns a derived logger that includes attrs on every line.
func (l *Logger) With(attrs map[string]interface{}) *Logger {
	combined := make(map[string]interface{}, len(l.attrs)+len(attrs))
	for k, v := range l.attrs {
		combined[k] = v
	}
	for k, v := range attrs {
		combined[k] = v
	}
	return &Logger{
		handlerFunc: l.handlerFunc,
		attrs:       combined,
	}
}
