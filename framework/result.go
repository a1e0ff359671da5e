package framework

import (
	"fmt"
	"io"
	"strings"
)

type Results struct {
	Tests    []TestResult
	Failures []TestResult
}

type TestResult struct {
	TestID  TestID
	Errors  []error
	Skipped bool
	// Namespace is the certname namespace the test wrote under, if it set one.
	Namespace string
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Skipped counts the tests that were skipped after they started, such as for a missing
// capability. Tests excluded by a filter are never started.
func (r Results) Skipped() int {
	n := 0
	for _, t := range r.Tests {
		if t.Skipped {
			n++
		}
	}
	return n
}

type TestID struct {
	Path []string
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}

type TestFailure struct {
	ID  TestID
	Err error
}

func (f TestFailure) Error() string {
	return fmt.Sprintf("[%s]: %s", f.ID, f.Err)
}

// PrintResults writes a summary of the run, listing every failed test with its errors.
func PrintResults(out io.Writer, results Results) {
	if results.OK() {
		fmt.Fprintf(out, "All tests passed (%d run, %d skipped)\n", countRun(results), results.Skipped())
		return
	}
	fmt.Fprintf(out, "FAILED TESTS (%d of %d):\n", len(results.Failures), countRun(results))
	for _, f := range results.Failures {
		fmt.Fprintf(out, "* %s\n", f.TestID)
		if f.Namespace != "" {
			fmt.Fprintf(out, "    (records under certname namespace %s)\n", f.Namespace)
		}
		for _, err := range f.Errors {
			for _, line := range strings.Split(reformatError(err).Error(), "\n") {
				fmt.Fprintf(out, "    %s\n", line)
			}
		}
	}
}

// countRun excludes the unnamed root test.
func countRun(results Results) int {
	n := 0
	for _, t := range results.Tests {
		if len(t.TestID.Path) > 0 && !t.Skipped {
			n++
		}
	}
	return n
}
