package cmdtests

import (
	"github.com/cmdhub/command-contract-tests/commands"
	"github.com/cmdhub/command-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
)

func DoGzipTests(t *T) {
	t.RequireCapability(servicedef.CapabilityGzip)

	t.Run("compressed payload is stored decompressed", func(t *T) {
		certname := t.Certname("")
		payload := factsPayload(certname, 7)
		params := t.NewCommand(certname)
		params.Compression = commands.CompressionGzip

		resp := t.Submit(params, gzipPayload(t, payload))

		record := t.AwaitRecords([]interface{}{"=", "uuid", resp.UUID}, 1)[0]
		assert.JSONEq(t, string(payload), record.Payload.JSONString())
	})

	t.Run("identity encoding", func(t *T) {
		certname := t.Certname("")
		payload := factsPayload(certname, 8)
		params := t.NewCommand(certname)
		params.Compression = "identity"

		resp := t.Submit(params, payload)

		record := t.AwaitRecords([]interface{}{"=", "uuid", resp.UUID}, 1)[0]
		assert.JSONEq(t, string(payload), record.Payload.JSONString())
	})
}
