package paging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"

	"github.com/cmdhub/command-contract-tests/servicedef"
)

// Doer performs one HTTP round trip. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// HandlerDoer returns a Doer that delivers requests directly to an in-process handler.
func HandlerDoer(handler http.Handler) Doer {
	return httphelpers.ClientFromHandler(handler)
}

// PageRequest is the state of one page request. A new PageRequest is derived for each page
// of a walk by advancing Offset by Limit.
type PageRequest struct {
	Method       string
	Path         string
	Query        interface{}
	Params       map[string]interface{}
	Limit        int
	Offset       int
	IncludeTotal bool
}

// RequestBuilder turns a PageRequest into an HTTP request.
type RequestBuilder func(PageRequest) (*http.Request, error)

// DefaultRequestBuilder sends GET requests with every term as a URL parameter (the query
// term JSON-encoded), and POST requests with every term in a JSON object body.
func DefaultRequestBuilder(pr PageRequest) (*http.Request, error) {
	switch pr.Method {
	case http.MethodGet:
		return buildGet(pr)
	case http.MethodPost:
		return buildPost(pr)
	default:
		return nil, fmt.Errorf("unsupported paging method %q", pr.Method)
	}
}

func buildGet(pr PageRequest) (*http.Request, error) {
	values := make(url.Values)
	for k, v := range pr.Params {
		if s, ok := v.(string); ok {
			values.Set(k, s)
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", k, err)
		}
		values.Set(k, string(data))
	}
	if pr.Query != nil {
		data, err := json.Marshal(pr.Query)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		values.Set(servicedef.ParamQuery, string(data))
	}
	values.Set(servicedef.ParamLimit, strconv.Itoa(pr.Limit))
	values.Set(servicedef.ParamOffset, strconv.Itoa(pr.Offset))
	if pr.IncludeTotal {
		values.Set(servicedef.ParamIncludeTotal, "true")
	}

	req, err := http.NewRequest(http.MethodGet, pr.Path+"?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func buildPost(pr PageRequest) (*http.Request, error) {
	body := make(map[string]interface{}, len(pr.Params)+4)
	for k, v := range pr.Params {
		body[k] = v
	}
	if pr.Query != nil {
		body[servicedef.ParamQuery] = pr.Query
	}
	body[servicedef.ParamLimit] = pr.Limit
	body[servicedef.ParamOffset] = pr.Offset
	if pr.IncludeTotal {
		body[servicedef.ParamIncludeTotal] = true
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, pr.Path, bytes.NewBuffer(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
