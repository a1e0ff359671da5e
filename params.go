package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cmdhub/command-contract-tests/framework"
	"github.com/cmdhub/command-contract-tests/framework/poll"

	"github.com/alessio/shellescape"
)

type commandParams struct {
	serviceURL       string
	port             int
	host             string
	filters          framework.RegexFilters
	scenariosFile    string
	pollAttempts     int
	pollInterval     time.Duration
	stopServiceAtEnd bool
	debug            bool
	debugAll         bool
}

func (c *commandParams) Read(args []string, errOut io.Writer) bool {
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&c.serviceURL, "url", "", "test service URL")
	fs.StringVar(&c.host, "host", defaultHost, "external hostname of the test harness")
	fs.IntVar(&c.port, "port", defaultPort, "port that the test harness will listen on")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.StringVar(&c.scenariosFile, "scenarios", "", "YAML file of paging scenarios to run instead of the defaults")
	fs.IntVar(&c.pollAttempts, "poll-attempts", poll.DefaultAttempts, "how many times to check for a submitted command")
	fs.DurationVar(&c.pollInterval, "poll-interval", poll.DefaultInterval, "delay between checks for a submitted command")
	fs.BoolVar(&c.stopServiceAtEnd, "stop-service-at-end", false, "tell test service to exit after the test run")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")

	if err := fs.Parse(args[1:]); err != nil {
		return false
	}
	if c.serviceURL == "" {
		fmt.Fprintln(errOut, "-url is required")
		fs.Usage()
		return false
	}
	return true
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}

// rerunCommand builds a command line that runs only the given failed tests.
func rerunCommand(program string, c commandParams, failures []framework.TestResult) string {
	var b commandBuilder
	b.add(program, "-url", c.serviceURL)
	if c.host != defaultHost {
		b.add("-host", c.host)
	}
	if c.port != defaultPort {
		b.add("-port", strconv.Itoa(c.port))
	}
	if c.scenariosFile != "" {
		b.add("-scenarios", c.scenariosFile)
	}
	ids := make([]framework.TestID, 0, len(failures))
	for _, f := range failures {
		ids = append(ids, f.TestID)
	}
	for _, pattern := range framework.RerunFilters(ids).MustMatch.Patterns() {
		b.add("-run", pattern)
	}
	return b.String()
}
