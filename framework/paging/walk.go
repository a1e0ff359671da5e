// Package paging drives a paginated query API from the first page to the last while checking
// the invariants every page must satisfy.
package paging

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/cmdhub/command-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// UnexpectedStatusError is returned for any response whose status is not 200. Its message
// includes the response body.
type UnexpectedStatusError struct {
	Status int
	Body   string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected response status %d: %s", e.Status, e.Body)
}

// Page is one decoded response.
type Page struct {
	Request PageRequest
	Header  http.Header
	Records []ldvalue.Value
}

// TotalCount returns the parsed total-count header and whether it was present.
func (p Page) TotalCount() (int, bool, error) {
	values := p.Header.Values(servicedef.TotalCountHeader)
	if len(values) == 0 {
		return 0, false, nil
	}
	n, err := strconv.Atoi(values[0])
	if err != nil {
		return 0, true, fmt.Errorf("malformed %s header %q", servicedef.TotalCountHeader, values[0])
	}
	return n, true, nil
}

// FetchPage issues a single page request and decodes the JSON array it returns.
func FetchPage(doer Doer, build RequestBuilder, pr PageRequest) (Page, error) {
	if build == nil {
		build = DefaultRequestBuilder
	}
	req, err := build(pr)
	if err != nil {
		return Page{}, err
	}
	resp, err := doer.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Page{}, &UnexpectedStatusError{Status: resp.StatusCode, Body: string(body)}
	}
	value := ldvalue.Parse(body)
	if value.Type() != ldvalue.ArrayType {
		return Page{}, fmt.Errorf("expected a JSON array but got: %s", string(body))
	}
	page := Page{Request: pr, Header: resp.Header}
	for i := 0; i < value.Count(); i++ {
		page.Records = append(page.Records, value.GetByIndex(i))
	}
	return page, nil
}

type helper interface {
	Helper()
}

// Walk requests every page described by cfg and returns all records in page order. It fails
// the test immediately if cfg is malformed, if any response is not a 200 JSON array, if a
// page holds more than cfg.Limit records, or if the total-count header does not match
// cfg.IncludeTotal and cfg.Total.
func Walk(t require.TestingT, doer Doer, cfg Config) []ldvalue.Value {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	require.NoError(t, cfg.Validate())

	var results []ldvalue.Value
	for _, pr := range cfg.Pages() {
		page, err := FetchPage(doer, cfg.Builder, pr)
		require.NoError(t, err, "page at offset %d", pr.Offset)
		CheckPage(t, page, cfg)
		results = append(results, page.Records...)
	}
	return results
}

// CheckPage applies the per-page assertions of Walk to a single page.
func CheckPage(t require.TestingT, page Page, cfg Config) {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	offset := page.Request.Offset
	assert.LessOrEqual(t, len(page.Records), cfg.Limit,
		"page at offset %d has more records than the limit", offset)

	total, present, err := page.TotalCount()
	require.NoError(t, err)
	if cfg.IncludeTotal {
		if assert.True(t, present, "page at offset %d has no %s header", offset, servicedef.TotalCountHeader) {
			assert.Equal(t, cfg.Total, total, "page at offset %d reported the wrong total", offset)
		}
	} else {
		assert.False(t, present, "page at offset %d has a %s header although include_total was not set",
			offset, servicedef.TotalCountHeader)
	}
}
