package framework

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Filter decides whether a test runs. Run consults it for every test, and a test whose
// parent was filtered out is never reached.
type Filter func(TestID) bool

// RegexFilters selects tests by full name. A test runs if it matches some MustMatch pattern
// (or there are none) and no MustNotMatch pattern. Both lists can be set from repeated
// command-line flags.
type RegexFilters struct {
	MustMatch    RegexList
	MustNotMatch RegexList
}

func (r RegexFilters) AsFilter(id TestID) bool {
	name := id.String()
	if r.MustMatch.IsDefined() && !r.MustMatch.AnyMatch(name) {
		return false
	}
	return !r.MustNotMatch.AnyMatch(name)
}

// RerunFilters returns filters that select exactly the given tests and everything beneath
// them. Each test's ancestors are matched by exact name, since a subtest only runs if its
// parents do, so their other subtests stay excluded.
func RerunFilters(ids []TestID) RegexFilters {
	var r RegexFilters
	for _, id := range ids {
		if len(id.Path) == 0 {
			continue
		}
		var names []string
		for i := range id.Path {
			names = append(names, regexp.QuoteMeta(TestID{Path: id.Path[:i+1]}.String()))
		}
		r.MustMatch.add(regexp.MustCompile("^(" + strings.Join(names, "|") + ")$"))
		r.MustMatch.add(regexp.MustCompile("^" + names[len(names)-1] + "/"))
	}
	return r
}

// RegexList is a flag.Value that accumulates patterns.
type RegexList struct {
	patterns []*regexp.Regexp
}

func (r RegexList) String() string {
	quoted := make([]string, 0, len(r.patterns))
	for _, p := range r.Patterns() {
		quoted = append(quoted, fmt.Sprintf("%q", p))
	}
	return strings.Join(quoted, " or ")
}

// Set is called by the command line parser.
func (r *RegexList) Set(value string) error {
	rx, err := regexp.Compile(value)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	r.add(rx)
	return nil
}

func (r *RegexList) add(rx *regexp.Regexp) {
	r.patterns = append(r.patterns, rx)
}

// Patterns returns the source of each pattern, in the order added.
func (r RegexList) Patterns() []string {
	ret := make([]string, 0, len(r.patterns))
	for _, p := range r.patterns {
		ret = append(ret, p.String())
	}
	return ret
}

func (r RegexList) IsDefined() bool {
	return len(r.patterns) != 0
}

func (r RegexList) AnyMatch(s string) bool {
	for _, p := range r.patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// PrintFilterDescription explains which tests may be skipped, either because of the filters
// or because the service lacks some of allCapabilities.
func PrintFilterDescription(out io.Writer, harness *TestHarness, filters RegexFilters, allCapabilities []string) {
	if filters.MustMatch.IsDefined() || filters.MustNotMatch.IsDefined() {
		fmt.Fprintln(out, "Some tests will be skipped based on the filter criteria for this test run:")
		if filters.MustMatch.IsDefined() {
			fmt.Fprintf(out, "  skip any not matching %s\n", filters.MustMatch)
		}
		if filters.MustNotMatch.IsDefined() {
			fmt.Fprintf(out, "  skip any matching %s\n", filters.MustNotMatch)
		}
		fmt.Fprintln(out)
	}

	if missing := harness.MissingCapabilities(allCapabilities); len(missing) > 0 {
		fmt.Fprintln(out, "Some tests may be skipped because the test service does not support the following capabilities:")
		fmt.Fprintf(out, "  %s\n", strings.Join(missing, ", "))
		fmt.Fprintln(out)
	}
}
