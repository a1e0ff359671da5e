package cmdtests

import (
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/cmdhub/command-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const concurrentSubmissions = 20

func DoSubmissionTests(t *T) {
	t.Run("accepted command becomes a record", func(t *T) {
		certname := t.Certname("")
		params := t.NewCommand(certname)
		params.ProducerTimestamp = "2026-01-02T03:04:05.000Z"
		payload := factsPayload(certname, 1)

		resp := t.Submit(params, payload)

		records := t.AwaitRecords([]interface{}{"=", "uuid", resp.UUID}, 1)
		record := records[0]
		assert.Equal(t, resp.UUID, record.UUID)
		assert.Equal(t, params.Command, record.Command)
		assert.Equal(t, params.Version, record.Version)
		assert.Equal(t, certname, record.Certname)
		assert.Equal(t, params.ProducerTimestamp, record.ProducerTimestamp)
		assert.JSONEq(t, string(payload), record.Payload.JSONString())
	})

	t.Run("each submission gets its own uuid", func(t *T) {
		certname := t.Certname("")
		first := t.Submit(t.NewCommand(certname), factsPayload(certname, 1))
		second := t.Submit(t.NewCommand(certname), factsPayload(certname, 1))
		assert.NotEqual(t, first.UUID, second.UUID)

		records := t.AwaitRecords([]interface{}{"=", "certname", certname}, 2)
		RecordFor(t, records, first.UUID)
		RecordFor(t, records, second.UUID)
	})

	t.Run("rejected", func(t *T) {
		for name, mutate := range map[string]func(*servicedef.CommandParams){
			"missing command":      func(p *servicedef.CommandParams) { p.Command = "" },
			"missing certname":     func(p *servicedef.CommandParams) { p.Certname = "" },
			"unsupported encoding": func(p *servicedef.CommandParams) { p.Compression = "br" },
		} {
			mutate := mutate
			t.Run(name, func(t *T) {
				params := t.NewCommand(t.Certname(""))
				mutate(&params)
				body := t.SubmitExpectingRejection(params, factsPayload(params.Certname, 0), http.StatusBadRequest)
				assert.NotEmpty(t, body, "rejection should explain what was wrong")
			})
		}
	})

	t.Run("concurrent submissions", func(t *T) {
		ids := make([]string, concurrentSubmissions)
		var g errgroup.Group
		for i := 0; i < concurrentSubmissions; i++ {
			i := i
			g.Go(func() error {
				certname := t.Certname(fmt.Sprintf("node%d", i))
				resp, err := t.harness.SubmitCommand(t.NewCommand(certname), factsPayload(certname, i), t.DebugLogger())
				if err != nil {
					return fmt.Errorf("submission %d: %w", i, err)
				}
				ids[i] = resp.UUID
				return nil
			})
		}
		require.NoError(t, g.Wait())

		records := t.AwaitRecords(t.NamespaceTerm(), concurrentSubmissions)
		seen := make(map[string]bool)
		for _, id := range ids {
			assert.False(t, seen[id], "uuid %s was returned twice", id)
			seen[id] = true
			RecordFor(t, records, id)
		}
	})
}
