package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/cmdhub/command-contract-tests/cmdtests"
	"github.com/cmdhub/command-contract-tests/framework"
	"github.com/cmdhub/command-contract-tests/framework/paging"
)

const (
	defaultHost        = "localhost"
	defaultPort        = 8111
	statusQueryTimeout = time.Second * 10
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var params commandParams
	if !params.Read(args, stderr) {
		return 2
	}

	config := cmdtests.SuiteConfig{
		PollAttempts: params.pollAttempts,
		PollInterval: params.pollInterval,
	}
	if params.scenariosFile != "" {
		scenarios, err := readScenarios(params.scenariosFile)
		if err != nil {
			fmt.Fprintf(stderr, "Invalid scenarios file: %s\n", err)
			return 1
		}
		config.Scenarios = scenarios
	}

	mainDebugLogger := framework.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(stdout, "", log.LstdFlags)
	}

	harness, err := framework.NewTestHarness(
		params.serviceURL,
		params.host,
		params.port,
		statusQueryTimeout,
		mainDebugLogger,
		stdout,
	)
	if err != nil {
		fmt.Fprintf(stderr, "Test service error: %s\n", err)
		return 1
	}
	defer harness.Close()

	fmt.Fprintln(stdout)
	framework.PrintFilterDescription(stdout, harness, params.filters, cmdtests.AllCapabilities)

	fmt.Fprintln(stdout, "Running test suite")

	testLogger := &ConsoleTestLogger{
		Output:               stdout,
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}

	results := cmdtests.RunTestSuite(harness, params.filters.AsFilter, testLogger, config)

	fmt.Fprintln(stdout)
	framework.PrintResults(stdout, results)

	if params.stopServiceAtEnd {
		fmt.Fprintln(stdout, "Stopping test service")
		if err := harness.StopService(); err != nil {
			fmt.Fprintf(stderr, "Failed to stop test service: %s\n", err)
		}
	}

	if !results.OK() {
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "To run only the failed tests:")
		fmt.Fprintf(stdout, "  %s\n", rerunCommand(args[0], params, results.Failures))
		return 1
	}
	return 0
}

func readScenarios(path string) ([]paging.Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return paging.LoadScenarios(f)
}
