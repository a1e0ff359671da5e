package framework

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintResultsWhenAllPass(t *testing.T) {
	results := Run(nil, nil, nil, func(c *Context) {
		c.Run("a", func(c *Context) {})
		c.Run("b", func(c *Context) { c.Skip() })
	})

	var out strings.Builder
	PrintResults(&out, results)
	assert.Equal(t, "All tests passed (1 run, 1 skipped)\n", out.String())
}

func TestPrintResultsListsFailures(t *testing.T) {
	results := Run(nil, nil, nil, func(c *Context) {
		c.Run("group", func(c *Context) {
			c.Run("ok", func(c *Context) {})
			c.Run("broken", func(c *Context) {
				c.Errorf("first line\nsecond line")
			})
		})
	})

	var out strings.Builder
	PrintResults(&out, results)
	assert.Equal(t, "FAILED TESTS (1 of 3):\n"+
		"* group/broken\n"+
		"    first line\n"+
		"    second line\n", out.String())
}

func TestTestFailureIncludesID(t *testing.T) {
	f := TestFailure{ID: TestID{Path: []string{"a", "b"}}, Err: errors.New("bad")}
	assert.Equal(t, "[a/b]: bad", f.Error())
}

func TestPrintFilterDescription(t *testing.T) {
	h := startHarness(t, newFakeService())
	var filters RegexFilters
	require.NoError(t, filters.MustMatch.Set("^paging"))
	require.NoError(t, filters.MustNotMatch.Set("total"))

	var out strings.Builder
	PrintFilterDescription(&out, h, filters, []string{"callbacks", "gzip", "query-post"})

	assert.Contains(t, out.String(), `skip any not matching "^paging"`)
	assert.Contains(t, out.String(), `skip any matching "total"`)
	assert.Contains(t, out.String(), "  gzip, query-post\n")
	assert.NotContains(t, out.String(), "callbacks,")
}

func TestPrintFilterDescriptionIsSilentWithNothingToSkip(t *testing.T) {
	h := startHarness(t, newFakeService())
	var out strings.Builder
	PrintFilterDescription(&out, h, RegexFilters{}, []string{"callbacks"})
	assert.Empty(t, out.String())
}
