package cmdtests

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRecord(t *testing.T) {
	valid := `{"id":1,"uuid":"u","command":"replace facts","version":5,"certname":"a",
		"producer_timestamp":"","payload":{"x":1},"received":"2026-01-01T00:00:00Z"}`
	assert.NoError(t, validateRecord([]byte(valid)))

	assert.Error(t, validateRecord([]byte(`{"uuid":"u"}`)))
	assert.Error(t, validateRecord([]byte(`{"uuid":"u","command":"c","version":"5","certname":"a","payload":1,"received":"r"}`)))
	assert.Error(t, validateRecord([]byte(`[]`)))
	assert.ErrorContains(t, validateRecord([]byte(`{`)), "not JSON")
}

func TestValidateCallbackNotice(t *testing.T) {
	assert.NoError(t, validateCallbackNotice([]byte(`{"uuid":"u","status":"processed"}`)))
	assert.NoError(t, validateCallbackNotice([]byte(`{"uuid":"u","status":"failed","error":"bad payload"}`)))

	assert.Error(t, validateCallbackNotice([]byte(`{"uuid":"u","status":"failed"}`)))
	assert.Error(t, validateCallbackNotice([]byte(`{"uuid":"u","status":"done"}`)))
	assert.Error(t, validateCallbackNotice([]byte(`{"status":"processed"}`)))
}
