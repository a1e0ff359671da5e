package cmdtests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/cmdhub/command-contract-tests/framework"
	"github.com/cmdhub/command-contract-tests/framework/paging"
	"github.com/cmdhub/command-contract-tests/framework/poll"
	"github.com/cmdhub/command-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// T represents a test or subtest in the command service suite.
//
// It implements the same basic functionality as Go's testing.T, but in an environment that is
// outside of the Go test runner. Those features are provided by the lower-level framework
// package. T adds the operations that are specific to a command service, such as submitting
// a command and waiting for it to become visible as a record.
//
// To make test assertions, pass the *T to the assert and require packages as if it were a
// *testing.T. Most of the domain methods also fail the test immediately if the service
// responds in an unexpected way.
type T struct {
	context   *framework.Context
	harness   *framework.TestHarness
	config    SuiteConfig
	namespace string
	callbacks *CallbackReceiver
}

func newTestScope(context *framework.Context, harness *framework.TestHarness, config SuiteConfig) *T {
	t := &T{
		context:   context,
		harness:   harness,
		config:    config,
		namespace: uuid.NewString() + ".contract.test",
	}
	context.SetNamespace(t.namespace)
	return t
}

func (t *T) close() {
	if t.callbacks != nil {
		t.callbacks.Close()
	}
}

// Errorf is called by assertions to log a test failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.context.Errorf(format, args...)
}

// FailNow is called by assertions when a test should fail and immediately exit.
func (t *T) FailNow() {
	t.context.FailNow()
}

// Run runs a subtest. The subtest gets its own certname namespace and callback endpoint.
func (t *T) Run(name string, action func(*T)) {
	var t1 *T
	t.context.Run(name, func(c *framework.Context) {
		t1 = newTestScope(c, t.harness, t.config)
		action(t1)
	})
	if t1 != nil {
		t1.close()
	}
}

// Debug logs some debug output for the test. The output is passed to the test logger when
// the test finishes.
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

func (t *T) DebugLogger() framework.Logger {
	return t.context.DebugLogger()
}

// Defer schedules fn to run when the test exits.
func (t *T) Defer(fn func()) {
	t.context.Defer(fn)
}

// RequireCapability skips this test if the service did not declare the capability.
func (t *T) RequireCapability(capability string) {
	if !t.harness.TestServiceHasCapability(capability) {
		t.context.SkipWithReason(fmt.Sprintf("test service does not have capability %q", capability))
	}
}

// Certname returns a certname that is unique to this test, suffixed with name. Records
// submitted under it are not visible to any other test.
func (t *T) Certname(name string) string {
	if name == "" {
		return t.namespace
	}
	return name + "." + t.namespace
}

// NamespaceTerm matches every record submitted with a certname from Certname.
func (t *T) NamespaceTerm() []interface{} {
	return []interface{}{"~", "certname", "%" + t.namespace}
}

// NewCommand returns parameters for a valid command under certname.
func (t *T) NewCommand(certname string) servicedef.CommandParams {
	return servicedef.CommandParams{
		Command:  testCommand,
		Version:  testCommandVersion,
		Certname: certname,
	}
}

// Submit sends a command and fails the test if the service does not accept it.
func (t *T) Submit(params servicedef.CommandParams, payload []byte) servicedef.CommandResponse {
	resp, err := t.harness.SubmitCommand(params, payload, t.DebugLogger())
	require.NoError(t, err, "command %q for %s was not accepted", params.Command, params.Certname)
	require.NotEmpty(t, resp.UUID, "service accepted the command without returning a uuid")
	t.context.NoteCommand(resp.UUID)
	return resp
}

// SubmitExpectingRejection sends a command and fails the test unless the service rejects it
// with the given status.
func (t *T) SubmitExpectingRejection(params servicedef.CommandParams, payload []byte, status int) string {
	_, err := t.harness.SubmitCommand(params, payload, t.DebugLogger())
	var statusErr *paging.UnexpectedStatusError
	require.True(t, errors.As(err, &statusErr), "expected the command to be rejected, got: %v", err)
	assert.Equal(t, status, statusErr.Status, "wrong status for rejected command")
	return statusErr.Body
}

// Callbacks returns the receiver for this test's callback notices, creating its endpoint on
// first use.
func (t *T) Callbacks() *CallbackReceiver {
	if t.callbacks == nil {
		t.callbacks = newCallbackReceiver(t.harness, t.DebugLogger())
	}
	return t.callbacks
}

// AwaitRecords polls the records endpoint until term matches at least count records, and
// fails the test if it never does or if it matches more than count.
func (t *T) AwaitRecords(term interface{}, count int) []servicedef.Record {
	fetch := func() ([]servicedef.Record, error) {
		page, err := paging.FetchPage(t.harness.Client(), nil, paging.PageRequest{
			Method: http.MethodGet,
			Path:   servicedef.RecordsPath,
			Query:  term,
			Limit:  count + 1,
		})
		if err != nil {
			return nil, err
		}
		if len(page.Records) < count {
			return nil, fmt.Errorf("%d of %d records visible", len(page.Records), count)
		}
		return decodeRecords(page.Records)
	}
	records, err := poll.Until(context.Background(), t.config.PollAttempts, t.config.PollInterval, fetch)
	require.NoError(t, err, "records matching %v never became visible", term)
	require.Len(t, records, count, "query %v matched too many records", term)
	return records
}

// RecordFor returns the record with the given uuid, or fails the test.
func RecordFor(t require.TestingT, records []servicedef.Record, id string) servicedef.Record {
	for _, r := range records {
		if r.UUID == id {
			return r
		}
	}
	require.Fail(t, "no record has uuid "+id)
	return servicedef.Record{}
}

func decodeRecords(values []ldvalue.Value) ([]servicedef.Record, error) {
	ret := make([]servicedef.Record, 0, len(values))
	for _, v := range values {
		raw := []byte(v.JSONString())
		if err := validateRecord(raw); err != nil {
			return nil, err
		}
		var r servicedef.Record
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("malformed record %s: %w", raw, err)
		}
		ret = append(ret, r)
	}
	return ret, nil
}
