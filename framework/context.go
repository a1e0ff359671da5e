package framework

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
)

type environment struct {
	results    Results
	testLogger TestLogger
	filter     Filter
	config     interface{}
}

// Context is the state of one test or subtest. It plays the role of *testing.T for tests
// that run outside of the Go test runner.
type Context struct {
	env         *environment
	id          TestID
	debugLogger CapturingLogger
	deferred    []func()
	failed      bool
	skipped     bool
	skipReason  string
	errors      []error
	namespace   string
	commands    []string
	lock        sync.Mutex
}

// Run runs action as the root test. config is made available to every test through Config.
func Run(
	filter func(TestID) bool,
	testLogger TestLogger,
	config interface{},
	action func(*Context),
) Results {
	if testLogger == nil {
		testLogger = nullTestLogger{}
	}
	env := &environment{
		filter:     filter,
		testLogger: testLogger,
		config:     config,
	}
	c := &Context{env: env}
	c.run(action)
	return env.results
}

func (c *Context) run(action func(*Context)) {
	defer func() {
		if r := recover(); r != nil {
			c.recordPanic(r)
		}
		result := TestResult{TestID: c.id, Errors: c.errors, Skipped: c.skipped, Namespace: c.Namespace()}
		c.env.results.Tests = append(c.env.results.Tests, result)
		if c.failed {
			c.env.results.Failures = append(c.env.results.Failures, result)
		}
	}()
	defer c.runDeferred()

	action(c)
}

func (c *Context) recordPanic(r interface{}) {
	if c.skipped {
		return
	}
	c.failed = true
	var addError error
	if _, ok := r.(*Context); ok {
		if len(c.errors) == 0 {
			addError = errors.New("test failed with no failure message")
		}
	} else {
		addError = fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))
	}
	if addError != nil {
		c.errors = append(c.errors, addError)
		c.env.testLogger.TestError(c.id, addError)
	}
}

func (c *Context) runDeferred() {
	for i := len(c.deferred) - 1; i >= 0; i-- {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.recordPanic(r)
				}
			}()
			c.deferred[i]()
		}()
	}
	c.deferred = nil
}

func (c *Context) ID() TestID {
	return c.id
}

// Config returns the value that was passed to Run.
func (c *Context) Config() interface{} {
	return c.env.config
}

func (c *Context) Run(name string, action func(*Context)) {
	id := TestID{Path: append(append([]string(nil), c.id.Path...), name)}

	c.env.testLogger.TestStarted(id)
	if c.env.filter != nil && !c.env.filter(id) {
		c.env.testLogger.TestSkipped(id, "excluded by filter parameters")
		return
	}
	c1 := &Context{
		id:  id,
		env: c.env,
	}
	c1.run(action)
	if c1.skipped {
		c.env.testLogger.TestSkipped(id, c1.skipReason)
	} else {
		c.env.testLogger.TestFinished(id, c1.outcome())
	}
}

// Defer schedules fn to run when the current test exits, in reverse order of scheduling.
// A failure inside fn is recorded against the test.
func (c *Context) Defer(fn func()) {
	c.deferred = append(c.deferred, fn)
}

func (c *Context) Errorf(format string, args ...interface{}) {
	c.failed = true
	err := fmt.Errorf(format, args...)
	c.errors = append(c.errors, err)
	c.env.testLogger.TestError(c.id, reformatError(err))
}

func (c *Context) FailNow() {
	panic(c)
}

func (c *Context) Failed() bool {
	return c.failed
}

func (c *Context) Skip() {
	c.skipped = true
	panic(c)
}

func (c *Context) SkipWithReason(reason string) {
	c.skipReason = reason
	c.Skip()
}

func (c *Context) Debug(message string, args ...interface{}) {
	c.debugLogger.Printf(message, args...)
}

func (c *Context) DebugLogger() Logger {
	return &c.debugLogger
}

// DebugLoggers returns leveled loggers that write into this test's debug output.
func (c *Context) DebugLoggers(prefix string) ldlog.Loggers {
	return c.debugLogger.Loggers(prefix)
}

// SetNamespace records the certname namespace that this test writes records under, so that
// a failure report can point at them.
func (c *Context) SetNamespace(namespace string) {
	c.lock.Lock()
	c.namespace = namespace
	c.lock.Unlock()
}

func (c *Context) Namespace() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.namespace
}

// NoteCommand records the id of a command that the service accepted from this test. It may
// be called from several goroutines.
func (c *Context) NoteCommand(id string) {
	c.lock.Lock()
	c.commands = append(c.commands, id)
	c.lock.Unlock()
}

func (c *Context) outcome() TestOutcome {
	c.lock.Lock()
	defer c.lock.Unlock()
	return TestOutcome{
		Failed:      c.failed,
		Namespace:   c.namespace,
		Commands:    append([]string(nil), c.commands...),
		DebugOutput: c.debugLogger.Output(),
	}
}

// reformatError drops blank lines and the "Error Trace" block from testify failure
// messages.
func reformatError(err error) error {
	var kept []string
	inTrace := false
	for _, line := range strings.Split(err.Error(), "\n") {
		label, _, hasLabel := strings.Cut(strings.TrimPrefix(line, "\t"), "\t")
		label = strings.TrimSpace(label)
		if hasLabel && label == "Error Trace:" {
			inTrace = true
			continue
		}
		if inTrace && hasLabel && label == "" {
			continue
		}
		inTrace = false
		if strings.TrimSpace(line) != "" {
			kept = append(kept, strings.TrimSpace(line))
		}
	}
	return errors.New(strings.Join(kept, "\n"))
}
