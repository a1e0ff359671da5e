package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/cmdhub/command-contract-tests/framework"
)

var (
	failedColor  = color.New(color.FgRed, color.Bold)
	skippedColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
)

// ConsoleTestLogger prints each test as it starts, with errors and, for a failed test, the
// namespace and command ids it used.
type ConsoleTestLogger struct {
	Output               io.Writer
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool
}

func (c *ConsoleTestLogger) TestStarted(id framework.TestID) {
	fmt.Fprintf(c.Output, "[%s]\n", id)
}

func (c *ConsoleTestLogger) TestError(id framework.TestID, err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		errorColor.Fprintf(c.Output, "  %s\n", line)
	}
}

func (c *ConsoleTestLogger) TestFinished(id framework.TestID, outcome framework.TestOutcome) {
	if outcome.Failed {
		failedColor.Fprintf(c.Output, "  FAILED: %s\n", id)
		if outcome.Namespace != "" {
			fmt.Fprintf(c.Output, "    namespace: %s\n", outcome.Namespace)
		}
		if len(outcome.Commands) > 0 {
			fmt.Fprintf(c.Output, "    commands: %s\n", strings.Join(outcome.Commands, ", "))
		}
	}
	if len(outcome.DebugOutput) > 0 &&
		((outcome.Failed && c.DebugOutputOnFailure) || (!outcome.Failed && c.DebugOutputOnSuccess)) {
		outcome.DebugOutput.Dump(c.Output, "    DEBUG ")
	}
}

func (c *ConsoleTestLogger) TestSkipped(id framework.TestID, reason string) {
	if reason == "" {
		skippedColor.Fprintf(c.Output, "  SKIPPED: %s\n", id)
	} else {
		skippedColor.Fprintf(c.Output, "  SKIPPED: %s (%s)\n", id, reason)
	}
}
