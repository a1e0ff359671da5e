// Package servicedef describes the HTTP surface shared by the contract test harness and any
// command service it tests.
package servicedef

import "gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

const (
	CommandsPath = "/commands"
	RecordsPath  = "/query/records"

	// TotalCountHeader carries the full result count when include_total is requested.
	TotalCountHeader = "X-Records"
)

// Command submission parameters, sent as URL query parameters on a POST to CommandsPath.
// The request body is the command payload; Content-Encoding names its compression.
const (
	ParamCommand           = "command"
	ParamVersion           = "version"
	ParamCertname          = "certname"
	ParamProducerTimestamp = "producer-timestamp"
	ParamCallback          = "callback"
)

// Paging parameters understood by query endpoints.
const (
	ParamQuery        = "query"
	ParamLimit        = "limit"
	ParamOffset       = "offset"
	ParamIncludeTotal = "include_total"
)

// Capabilities a service can report in its StatusResponse.
const (
	CapabilityCallbacks    = "callbacks"
	CapabilityQueryPost    = "query-post"
	CapabilityGzip         = "gzip"
	CapabilityIncludeTotal = "include-total"
)

// StatusResponse is returned by a GET request to the service's base URL.
type StatusResponse struct {
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
}

// CommandParams describes one command submission.
type CommandParams struct {
	Command           string `json:"command"`
	Version           int    `json:"version"`
	Certname          string `json:"certname"`
	ProducerTimestamp string `json:"producer_timestamp,omitempty"`
	Callback          string `json:"callback,omitempty"`
	Compression       string `json:"compression,omitempty"`
}

// CommandResponse is the body of a successful command submission.
type CommandResponse struct {
	UUID string `json:"uuid"`
}

// Record is one element of a RecordsPath query result.
type Record struct {
	ID                int           `json:"id"`
	UUID              string        `json:"uuid"`
	Command           string        `json:"command"`
	Version           int           `json:"version"`
	Certname          string        `json:"certname"`
	ProducerTimestamp string        `json:"producer_timestamp"`
	Payload           ldvalue.Value `json:"payload"`
	Received          string        `json:"received"`
}

// CallbackNotice is POSTed to a command's callback URL once the command has been processed.
type CallbackNotice struct {
	UUID     string `json:"uuid"`
	Command  string `json:"command"`
	Certname string `json:"certname"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

const (
	CallbackStatusProcessed = "processed"
	CallbackStatusFailed    = "failed"
)
