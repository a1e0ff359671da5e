package paging

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/cmdhub/command-contract-tests/servicedef"
)

// Config describes a complete paginated walk.
type Config struct {
	Method       string                 `yaml:"method"`
	Path         string                 `yaml:"path"`
	Query        interface{}            `yaml:"query"`
	Params       map[string]interface{} `yaml:"params"`
	Limit        int                    `yaml:"limit"`
	Total        int                    `yaml:"total"`
	IncludeTotal bool                   `yaml:"include_total"`

	// Builder overrides DefaultRequestBuilder.
	Builder RequestBuilder `yaml:"-"`
}

// Scenario is a named Config read from a scenario file.
//
// The suite seeds Total records for each scenario, all with the same command and version,
// and walks them with Query narrowed to the test's own records. A Query that filters on
// those fields must still match every seeded record, or the scenario fails before walking.
type Scenario struct {
	Name   string `yaml:"name"`
	Config `yaml:",inline"`
}

// MalformedRequestError means a paging configuration was rejected before any request was
// made.
type MalformedRequestError struct {
	Reason string
}

func (e *MalformedRequestError) Error() string {
	return "malformed paging request: " + e.Reason
}

func malformed(format string, args ...interface{}) error {
	return &MalformedRequestError{Reason: fmt.Sprintf(format, args...)}
}

var reservedParams = []string{
	servicedef.ParamQuery,
	servicedef.ParamLimit,
	servicedef.ParamOffset,
	servicedef.ParamIncludeTotal,
}

// Validate checks the configuration without issuing any request.
func (c Config) Validate() error {
	if c.Method != http.MethodGet && c.Method != http.MethodPost {
		return malformed("method must be GET or POST, not %q", c.Method)
	}
	if c.Path == "" {
		return malformed("path is required")
	}
	if c.Limit < 1 {
		return malformed("limit must be at least 1, not %d", c.Limit)
	}
	if c.Total < 0 {
		return malformed("total must not be negative, not %d", c.Total)
	}
	for _, p := range reservedParams {
		if _, ok := c.Params[p]; ok {
			return malformed("params must not set %q; it is controlled by the walk", p)
		}
	}
	return nil
}

// PageCount is ceil(Total / Limit).
func (c Config) PageCount() int {
	return (c.Total + c.Limit - 1) / c.Limit
}

// Pages returns the request for every page of the walk, in order.
func (c Config) Pages() []PageRequest {
	n := c.PageCount()
	ret := make([]PageRequest, 0, n)
	for i := 0; i < n; i++ {
		ret = append(ret, PageRequest{
			Method:       c.Method,
			Path:         c.Path,
			Query:        c.Query,
			Params:       c.Params,
			Limit:        c.Limit,
			Offset:       i * c.Limit,
			IncludeTotal: c.IncludeTotal,
		})
	}
	return ret
}

// LoadScenarios reads a YAML list of scenarios. Unknown fields and invalid configurations
// are reported as a *MalformedRequestError. A scenario's total counts the seeded records
// that its query matches; see Scenario.
func LoadScenarios(r io.Reader) ([]Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var scenarios []Scenario
	if err := dec.Decode(&scenarios); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, malformed("%s", err)
	}
	for i, s := range scenarios {
		if s.Name == "" {
			return nil, malformed("scenario %d has no name", i)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
	}
	return scenarios, nil
}
