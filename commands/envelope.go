// Package commands accepts command submissions over HTTP and hands them, one permit at a
// time, to an enqueue operation.
package commands

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/cmdhub/command-contract-tests/servicedef"
)

// CompressionGzip is the only Content-Encoding accepted for command payloads.
const CompressionGzip = "gzip"

// Request is a decoded command submission. Payload is the unread request body.
type Request struct {
	ID                string
	Command           string
	Version           int
	Certname          string
	ProducerTimestamp string
	Compression       string
	Callback          string
	Payload           io.Reader
}

// BadRequestError means a submission could not be decoded into a Request.
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string {
	return "bad command request: " + e.Reason
}

func badRequest(format string, args ...interface{}) error {
	return &BadRequestError{Reason: fmt.Sprintf(format, args...)}
}

// DecodeRequest reads the command envelope from the URL parameters and the Content-Encoding
// header. The body is left unread as the Payload.
func DecodeRequest(r *http.Request) (Request, error) {
	params := r.URL.Query()
	req := Request{
		Command:           params.Get(servicedef.ParamCommand),
		Certname:          params.Get(servicedef.ParamCertname),
		ProducerTimestamp: params.Get(servicedef.ParamProducerTimestamp),
		Callback:          params.Get(servicedef.ParamCallback),
		Payload:           r.Body,
	}
	if req.Command == "" {
		return Request{}, badRequest("missing %q parameter", servicedef.ParamCommand)
	}
	if req.Certname == "" {
		return Request{}, badRequest("missing %q parameter", servicedef.ParamCertname)
	}
	rawVersion := params.Get(servicedef.ParamVersion)
	version, err := strconv.Atoi(rawVersion)
	if err != nil {
		return Request{}, badRequest("%q parameter must be an integer, not %q", servicedef.ParamVersion, rawVersion)
	}
	req.Version = version

	switch encoding := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding"))); encoding {
	case "", "identity":
	case CompressionGzip:
		req.Compression = CompressionGzip
	default:
		return Request{}, badRequest("unsupported Content-Encoding %q", encoding)
	}
	if req.Payload == nil {
		req.Payload = http.NoBody
	}
	return req, nil
}
