package framework

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// Logger is the minimal logging interface used for debug output. Both *CapturingLogger and
// ldlog's level loggers satisfy it.
type Logger interface {
	Printf(message string, args ...interface{})
}

type nullLogger struct{}

func (nullLogger) Printf(string, ...interface{}) {}

func NullLogger() Logger { return nullLogger{} }

// CapturedMessage is one line of a test's debug output.
type CapturedMessage struct {
	Time    time.Time
	Message string
}

type CapturedOutput []CapturedMessage

// CapturingLogger buffers timestamped messages, so that a test's debug output can be shown
// only if the test fails. It is safe for concurrent use by the test and by the handlers of
// its mock endpoints.
type CapturingLogger struct {
	output []CapturedMessage
	lock   sync.Mutex
}

func (l *CapturingLogger) Printf(message string, args ...interface{}) {
	l.append(fmt.Sprintf(message, args...))
}

// Println makes CapturingLogger an ldlog.BaseLogger.
func (l *CapturingLogger) Println(values ...interface{}) {
	l.append(strings.TrimSuffix(fmt.Sprintln(values...), "\n"))
}

func (l *CapturingLogger) append(message string) {
	l.lock.Lock()
	l.output = append(l.output, CapturedMessage{Time: time.Now(), Message: message})
	l.lock.Unlock()
}

// Loggers returns ldlog.Loggers that write every level, debug included, into this logger
// with prefix ahead of the level name. It lets an in-process service share a test's
// debug output.
func (l *CapturingLogger) Loggers(prefix string) ldlog.Loggers {
	loggers := ldlog.NewDefaultLoggers()
	loggers.SetBaseLogger(l)
	loggers.SetMinLevel(ldlog.Debug)
	if prefix != "" {
		loggers.SetPrefix(prefix)
	}
	return loggers
}

func (l *CapturingLogger) Output() CapturedOutput {
	l.lock.Lock()
	ret := append([]CapturedMessage(nil), l.output...)
	l.lock.Unlock()
	return ret
}

// Dump writes each message on its own line as "<prefix>[<timestamp>] <message>".
func (output CapturedOutput) Dump(dest io.Writer, prefix string) {
	for _, m := range output {
		fmt.Fprintf(dest, "%s[%s] %s\n", prefix, m.Time.Format(timestampFormat), m.Message)
	}
}

// Contains reports whether any message includes substr.
func (output CapturedOutput) Contains(substr string) bool {
	for _, m := range output {
		if strings.Contains(m.Message, substr) {
			return true
		}
	}
	return false
}
