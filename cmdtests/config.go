package cmdtests

import (
	"net/http"
	"time"

	"github.com/cmdhub/command-contract-tests/framework/paging"
	"github.com/cmdhub/command-contract-tests/framework/poll"
	"github.com/cmdhub/command-contract-tests/servicedef"
)

const (
	awaitCallbackTimeout = time.Second * 10
	testCommand          = "replace facts"
	testCommandVersion   = 5
)

// AllCapabilities lists every optional capability the suite knows how to test.
var AllCapabilities = []string{
	servicedef.CapabilityCallbacks,
	servicedef.CapabilityQueryPost,
	servicedef.CapabilityGzip,
	servicedef.CapabilityIncludeTotal,
}

// SuiteConfig holds the settings that apply to every test in a run.
type SuiteConfig struct {
	// Scenarios are the paged walks run by the "paging" group. When empty, DefaultScenarios
	// is used.
	Scenarios []paging.Scenario

	// PollAttempts and PollInterval bound the wait for a submitted command to become
	// visible as a record.
	PollAttempts int
	PollInterval time.Duration
}

func (c SuiteConfig) withDefaults() SuiteConfig {
	if len(c.Scenarios) == 0 {
		c.Scenarios = DefaultScenarios()
	}
	if c.PollAttempts <= 0 {
		c.PollAttempts = poll.DefaultAttempts
	}
	if c.PollInterval <= 0 {
		c.PollInterval = poll.DefaultInterval
	}
	return c
}

// DefaultScenarios covers both submission styles with and without a total count.
func DefaultScenarios() []paging.Scenario {
	var ret []paging.Scenario
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		for _, includeTotal := range []bool{false, true} {
			name := method
			if includeTotal {
				name += " with total"
			}
			ret = append(ret, paging.Scenario{
				Name: name,
				Config: paging.Config{
					Method:       method,
					Path:         servicedef.RecordsPath,
					Limit:        10,
					Total:        25,
					IncludeTotal: includeTotal,
				},
			})
		}
	}
	return ret
}
