package commands

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequestReadsEnvelope(t *testing.T) {
	r := httptest.NewRequest("POST",
		"/commands?command=replace+facts&version=5&certname=a.example.com&producer-timestamp=2024-01-02T03:04:05Z&callback=http://h/cb",
		strings.NewReader(`{"values":{}}`))
	r.Header.Set("Content-Encoding", "gzip")

	req, err := DecodeRequest(r)
	require.NoError(t, err)

	assert.Equal(t, "replace facts", req.Command)
	assert.Equal(t, 5, req.Version)
	assert.Equal(t, "a.example.com", req.Certname)
	assert.Equal(t, "2024-01-02T03:04:05Z", req.ProducerTimestamp)
	assert.Equal(t, "http://h/cb", req.Callback)
	assert.Equal(t, CompressionGzip, req.Compression)
	assert.Empty(t, req.ID)
	payload, err := io.ReadAll(req.Payload)
	require.NoError(t, err)
	assert.Equal(t, `{"values":{}}`, string(payload))
}

func TestDecodeRequestAllowsOptionalFieldsToBeOmitted(t *testing.T) {
	r := httptest.NewRequest("POST", "/commands?command=deactivate+node&version=3&certname=b", nil)

	req, err := DecodeRequest(r)
	require.NoError(t, err)
	assert.Empty(t, req.ProducerTimestamp)
	assert.Empty(t, req.Callback)
	assert.Empty(t, req.Compression)
	assert.NotNil(t, req.Payload)
}

func TestDecodeRequestRejectsBadEnvelopes(t *testing.T) {
	for name, target := range map[string]string{
		"missing command":     "/commands?version=1&certname=a",
		"missing certname":    "/commands?command=c&version=1",
		"missing version":     "/commands?command=c&certname=a",
		"non-integer version": "/commands?command=c&version=five&certname=a",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRequest(httptest.NewRequest("POST", target, nil))
			var badErr *BadRequestError
			assert.True(t, errors.As(err, &badErr), "got %v", err)
		})
	}
}

func TestDecodeRequestRejectsUnknownEncoding(t *testing.T) {
	r := httptest.NewRequest("POST", "/commands?command=c&version=1&certname=a", nil)
	r.Header.Set("Content-Encoding", "br")

	_, err := DecodeRequest(r)
	var badErr *BadRequestError
	require.True(t, errors.As(err, &badErr))
	assert.Contains(t, badErr.Reason, "br")
}
