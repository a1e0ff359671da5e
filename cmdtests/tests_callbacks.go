package cmdtests

import (
	"errors"
	"net/http"

	"github.com/cmdhub/command-contract-tests/framework/paging"
	"github.com/cmdhub/command-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func DoCallbackTests(t *T) {
	t.RequireCapability(servicedef.CapabilityCallbacks)

	t.Run("notice for each processed command", func(t *T) {
		var ids []string
		for i := 0; i < 3; i++ {
			certname := t.Certname("")
			params := t.NewCommand(certname)
			params.Callback = t.Callbacks().NextURL()
			ids = append(ids, t.Submit(params, factsPayload(certname, i)).UUID)
		}
		for _, id := range ids {
			notice, err := t.Callbacks().AwaitNotice(awaitCallbackTimeout)
			require.NoError(t, err)
			assert.Equal(t, id, notice.UUID)
			assert.Equal(t, servicedef.CallbackStatusProcessed, notice.Status)
			assert.Equal(t, testCommand, notice.Command)
			assert.Equal(t, t.Certname(""), notice.Certname)
			assert.Empty(t, notice.Error)
		}
	})

	t.Run("command is visible by the time of its notice", func(t *T) {
		certname := t.Certname("")
		params := t.NewCommand(certname)
		params.Callback = t.Callbacks().NextURL()
		resp := t.Submit(params, factsPayload(certname, 0))

		_, err := t.Callbacks().AwaitNotice(awaitCallbackTimeout)
		require.NoError(t, err)

		page, err := paging.FetchPage(t.harness.Client(), nil, paging.PageRequest{
			Method: http.MethodGet,
			Path:   servicedef.RecordsPath,
			Query:  []interface{}{"=", "uuid", resp.UUID},
			Limit:  1,
		})
		require.NoError(t, err)
		assert.Len(t, page.Records, 1)
	})

	t.Run("unprocessable payload", func(t *T) {
		certname := t.Certname("")
		params := t.NewCommand(certname)
		params.Callback = t.Callbacks().NextURL()
		resp, err := t.harness.SubmitCommand(params, []byte("{not json"), t.DebugLogger())

		var statusErr *paging.UnexpectedStatusError
		if errors.As(err, &statusErr) {
			assert.Equal(t, http.StatusBadRequest, statusErr.Status)
			return
		}
		require.NoError(t, err)

		notice, err := t.Callbacks().AwaitNotice(awaitCallbackTimeout)
		require.NoError(t, err)
		assert.Equal(t, resp.UUID, notice.UUID)
		assert.Equal(t, servicedef.CallbackStatusFailed, notice.Status)
		assert.NotEmpty(t, notice.Error)
	})
}
