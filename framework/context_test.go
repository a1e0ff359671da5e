package framework

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTestLogger struct {
	events []string
}

func (r *recordingTestLogger) TestStarted(id TestID) {
	r.events = append(r.events, "start "+id.String())
}

func (r *recordingTestLogger) TestError(id TestID, err error) {
	r.events = append(r.events, "error "+id.String()+": "+strings.Split(err.Error(), "\n")[0])
}

func (r *recordingTestLogger) TestFinished(id TestID, outcome TestOutcome) {
	if outcome.Failed {
		r.events = append(r.events, "failed "+id.String())
	} else {
		r.events = append(r.events, "passed "+id.String())
	}
}

func (r *recordingTestLogger) TestSkipped(id TestID, reason string) {
	r.events = append(r.events, "skipped "+id.String()+" ("+reason+")")
}

func TestRunRecordsPassFailAndSkip(t *testing.T) {
	logger := &recordingTestLogger{}
	results := Run(nil, logger, nil, func(c *Context) {
		c.Run("passes", func(c *Context) {})
		c.Run("fails", func(c *Context) {
			assert.Equal(c, 1, 2)
			c.Errorf("second problem")
		})
		c.Run("stops", func(c *Context) {
			require.Fail(c, "stop here")
			c.Errorf("not reached")
		})
		c.Run("skips", func(c *Context) { c.SkipWithReason("no capability") })
	})

	assert.False(t, results.OK())
	require.Len(t, results.Failures, 2)
	assert.Equal(t, "fails", results.Failures[0].TestID.String())
	assert.Len(t, results.Failures[0].Errors, 2)
	assert.Equal(t, "stops", results.Failures[1].TestID.String())
	assert.Len(t, results.Failures[1].Errors, 1)
	assert.Equal(t, 1, results.Skipped())

	assert.Contains(t, logger.events, "passed passes")
	assert.Contains(t, logger.events, "failed fails")
	assert.Contains(t, logger.events, "skipped skips (no capability)")
}

func TestRunRecordsUnexpectedPanic(t *testing.T) {
	results := Run(nil, nil, nil, func(c *Context) {
		c.Run("panics", func(c *Context) { panic("boom") })
	})
	require.Len(t, results.Failures, 1)
	assert.Contains(t, results.Failures[0].Errors[0].Error(), "unexpected panic in test: boom")
}

func TestFilterExcludesTests(t *testing.T) {
	var filters RegexFilters
	require.NoError(t, filters.MustNotMatch.Set("^group/b$"))
	ran := map[string]bool{}

	Run(filters.AsFilter, nil, nil, func(c *Context) {
		c.Run("group", func(c *Context) {
			for _, name := range []string{"a", "b", "c"} {
				c.Run(name, func(c *Context) { ran[c.ID().String()] = true })
			}
		})
	})

	assert.Equal(t, map[string]bool{"group/a": true, "group/c": true}, ran)
}

func TestSubtestIDsDoNotShareStorage(t *testing.T) {
	var ids []string
	Run(nil, nil, nil, func(c *Context) {
		c.Run("parent", func(c *Context) {
			c.Run("one", func(c *Context) { ids = append(ids, c.ID().String()) })
			c.Run("two", func(c *Context) { ids = append(ids, c.ID().String()) })
		})
	})
	assert.Equal(t, []string{"parent/one", "parent/two"}, ids)
}

func TestDeferRunsInReverseOrderEvenAfterFailure(t *testing.T) {
	var order []string
	results := Run(nil, nil, nil, func(c *Context) {
		c.Run("test", func(c *Context) {
			c.Defer(func() { order = append(order, "first") })
			c.Defer(func() { order = append(order, "second") })
			c.FailNow()
		})
	})
	assert.Equal(t, []string{"second", "first"}, order)
	assert.False(t, results.OK())
}

func TestFailureInDeferIsRecorded(t *testing.T) {
	results := Run(nil, nil, nil, func(c *Context) {
		c.Run("test", func(c *Context) {
			c.Defer(func() { c.Errorf("cleanup failed") })
		})
	})
	require.Len(t, results.Failures, 1)
	assert.EqualError(t, results.Failures[0].Errors[0], "cleanup failed")
}

func TestConfigIsVisibleToEveryTest(t *testing.T) {
	type suiteConfig struct{ name string }
	var seen interface{}
	Run(nil, nil, suiteConfig{"x"}, func(c *Context) {
		c.Run("nested", func(c *Context) { seen = c.Config() })
	})
	assert.Equal(t, suiteConfig{"x"}, seen)
}

func TestReformatErrorDropsTrace(t *testing.T) {
	err := errors.New("\n\tError Trace:\t/src/a.go:10\n\t            \t/src/b.go:20\n" +
		"\tError:      \tNot equal: \n\t            \texpected: 1\n\t            \tactual  : 2\n")
	lines := strings.Split(reformatError(err).Error(), "\n")
	assert.Equal(t, []string{"Error:      \tNot equal:", "expected: 1", "actual  : 2"}, lines)
}

func TestCapturingLoggerServesLeveledLoggers(t *testing.T) {
	var base CapturingLogger
	loggers := base.Loggers("[refservice]")
	loggers.Debugf("Processed command %d", 3)
	loggers.Warn("callback failed")

	out := base.Output()
	require.Len(t, out, 2)
	assert.Contains(t, out[0].Message, "DEBUG")
	assert.Contains(t, out[0].Message, "[refservice]")
	assert.Contains(t, out[0].Message, "Processed command 3")
	assert.Contains(t, out[1].Message, "callback failed")
	assert.True(t, out.Contains("callback failed"))
	assert.False(t, out.Contains("not logged"))
}

func TestOutcomeCarriesNamespaceAndCommands(t *testing.T) {
	logger := &outcomeRecorder{}
	Run(nil, logger, nil, func(c *Context) {
		c.Run("submits", func(c *Context) {
			c.SetNamespace("abc.contract.test")
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					c.NoteCommand("id")
				}()
			}
			wg.Wait()
			c.DebugLoggers("").Info("submitted")
			c.Run("child", func(c *Context) { c.NoteCommand("child-id") })
			c.Errorf("failed")
		})
	})

	require.Len(t, logger.outcomes, 2)
	child, parent := logger.outcomes[0], logger.outcomes[1]
	assert.Equal(t, []string{"child-id"}, child.Commands)
	assert.Empty(t, child.Namespace)
	assert.True(t, parent.Failed)
	assert.Equal(t, "abc.contract.test", parent.Namespace)
	assert.Len(t, parent.Commands, 10)
	assert.True(t, parent.DebugOutput.Contains("submitted"))
}

type outcomeRecorder struct {
	nullTestLogger
	outcomes []TestOutcome
}

func (r *outcomeRecorder) TestFinished(_ TestID, outcome TestOutcome) {
	r.outcomes = append(r.outcomes, outcome)
}
