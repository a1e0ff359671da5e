package cmdtests

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/cmdhub/command-contract-tests/framework/paging"
	"github.com/cmdhub/command-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedConcurrency = 8

func DoPagingTests(t *T) {
	for _, scenario := range t.config.Scenarios {
		scenario := scenario
		t.Run(scenario.Name, func(t *T) {
			if scenario.Method == http.MethodPost {
				t.RequireCapability(servicedef.CapabilityQueryPost)
			}
			if scenario.IncludeTotal {
				t.RequireCapability(servicedef.CapabilityIncludeTotal)
			}
			doPagingScenario(t, scenario)
		})
	}

	t.Run("malformed query is rejected", func(t *T) {
		_, err := paging.FetchPage(t.harness.Client(), nil, paging.PageRequest{
			Method: http.MethodGet,
			Path:   servicedef.RecordsPath,
			Query:  []interface{}{"frobnicate", "certname"},
			Limit:  1,
		})
		var statusErr *paging.UnexpectedStatusError
		require.True(t, errors.As(err, &statusErr), "expected an error status, got: %v", err)
		assert.Equal(t, http.StatusBadRequest, statusErr.Status)
	})

	t.Run("offset past the end is empty", func(t *T) {
		seedRecords(t, 2)
		page, err := paging.FetchPage(t.harness.Client(), nil, paging.PageRequest{
			Method: http.MethodGet,
			Path:   servicedef.RecordsPath,
			Query:  t.NamespaceTerm(),
			Limit:  5,
			Offset: 2,
		})
		require.NoError(t, err)
		assert.Empty(t, page.Records)
	})
}

func doPagingScenario(t *T, scenario paging.Scenario) {
	seedRecords(t, scenario.Total)

	cfg := scenario.Config
	if cfg.Query == nil {
		cfg.Query = t.NamespaceTerm()
	} else {
		cfg.Query = []interface{}{"and", t.NamespaceTerm(), cfg.Query}
	}
	if scenario.Query != nil {
		matched := countMatching(t, cfg.Query, scenario.Total)
		require.Equal(t, scenario.Total, matched,
			"scenario %q: its query matches %d of the %d seeded records, and total must count only those",
			scenario.Name, matched, scenario.Total)
	}
	t.Debug("walking %s %s with query %v", cfg.Method, cfg.Path, cfg.Query)

	values := paging.Walk(t, t.harness.Client(), cfg)
	records, err := decodeRecords(values)
	require.NoError(t, err)
	require.Len(t, records, scenario.Total, "walk did not return every matching record")

	seen := make(map[string]bool)
	for _, r := range records {
		assert.False(t, seen[r.UUID], "record %s appeared on more than one page", r.UUID)
		seen[r.UUID] = true
	}
}

// countMatching returns how many visible records match term, looking no further than
// seeded+1 of them.
func countMatching(t *T, term interface{}, seeded int) int {
	page, err := paging.FetchPage(t.harness.Client(), nil, paging.PageRequest{
		Method: http.MethodGet,
		Path:   servicedef.RecordsPath,
		Query:  term,
		Limit:  seeded + 1,
	})
	require.NoError(t, err, "could not count records matching %v", term)
	return len(page.Records)
}

// seedRecords submits count commands under the test's namespace and waits until all of
// them are visible. Each is a testCommand of testCommandVersion, with certname node<i> in
// the namespace.
func seedRecords(t *T, count int) {
	var g errgroup.Group
	g.SetLimit(seedConcurrency)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			certname := t.Certname(fmt.Sprintf("node%d", i))
			_, err := t.harness.SubmitCommand(t.NewCommand(certname), factsPayload(certname, i), t.DebugLogger())
			return err
		})
	}
	require.NoError(t, g.Wait(), "could not seed records")
	if count > 0 {
		t.AwaitRecords(t.NamespaceTerm(), count)
	}
}
