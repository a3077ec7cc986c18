package utils

import (
	"fmt"
	"strings"

	"k8s.io/klog/v2"
)

// Logger is the structured logger used across depdex. keysAndValues are
// alternating key/value pairs, as in klog's structured calls.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(err error, msg string, keysAndValues ...interface{})
}

// debugLevel is the klog verbosity at which Debug messages are emitted.
const debugLevel klog.Level = 4

// KlogLogger writes through k8s.io/klog/v2.
type KlogLogger struct {
	name string
}

// NewKlogLogger returns a Logger that tags every record with component=name.
func NewKlogLogger(name string) *KlogLogger {
	return &KlogLogger{name: name}
}

func (l *KlogLogger) kv(keysAndValues []interface{}) []interface{} {
	if l.name == "" {
		return keysAndValues
	}
	return append([]interface{}{"component", l.name}, keysAndValues...)
}

func (l *KlogLogger) Debug(msg string, keysAndValues ...interface{}) {
	klog.V(debugLevel).InfoSDepth(1, msg, l.kv(keysAndValues)...)
}

func (l *KlogLogger) Info(msg string, keysAndValues ...interface{}) {
	klog.InfoSDepth(1, msg, l.kv(keysAndValues)...)
}

// Warn has no structured klog counterpart, so pairs are rendered inline.
func (l *KlogLogger) Warn(msg string, keysAndValues ...interface{}) {
	klog.WarningDepth(1, formatPairs(msg, l.kv(keysAndValues)))
}

func (l *KlogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	klog.ErrorSDepth(1, err, msg, l.kv(keysAndValues)...)
}

func formatPairs(msg string, keysAndValues []interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q", msg)
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, " %v=%q", keysAndValues[i], fmt.Sprint(keysAndValues[i+1]))
		} else {
			fmt.Fprintf(&b, " %v=<missing>", keysAndValues[i])
		}
	}
	return b.String()
}

type SilentLogger struct{}

func (l *SilentLogger) Debug(msg string, keysAndValues ...interface{})            {}
func (l *SilentLogger) Info(msg string, keysAndValues ...interface{})             {}
func (l *SilentLogger) Warn(msg string, keysAndValues ...interface{})             {}
func (l *SilentLogger) Error(err error, msg string, keysAndValues ...interface{}) {}
