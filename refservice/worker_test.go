package refservice

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlogtest"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/cmdhub/command-contract-tests/framework/instrument"
	"github.com/cmdhub/command-contract-tests/queue"
	"github.com/cmdhub/command-contract-tests/servicedef"
)

func gzipped(t *testing.T, s string) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func startWorker(t *testing.T, w *Worker) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)
}

func TestWorkerStoresGzipPayloadAndNotifiesCallback(t *testing.T) {
	store := openTestStore(t)
	callbackHandler, callbacks := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(200))
	callbackServer := httptest.NewServer(callbackHandler)
	defer callbackServer.Close()

	commandCh := make(chan queue.Entry, 1)
	w := NewWorker(store, commandCh, ldlog.NewDisabledLoggers())
	startWorker(t, w)

	commandCh <- queue.Entry{
		ID:          "u1",
		Command:     "replace facts",
		Version:     5,
		Certname:    "a.example.com",
		Compression: "gzip",
		Callback:    callbackServer.URL + "/done",
		Payload:     gzipped(t, `{"values":{"kernel":"Linux"}}`),
	}

	select {
	case info := <-callbacks:
		assert.Equal(t, "/done", info.Request.URL.Path)
		var notice servicedef.CallbackNotice
		require.NoError(t, json.Unmarshal(info.Body, &notice))
		assert.Equal(t, servicedef.CallbackNotice{
			UUID: "u1", Command: "replace facts", Certname: "a.example.com",
			Status: servicedef.CallbackStatusProcessed,
		}, notice)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}

	records, _, err := store.Query(context.Background(), ldvalue.Null(), nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Linux", records[0].Payload.GetByKey("values").GetByKey("kernel").StringValue())
}

func TestWorkerReportsProcessFailureToCallback(t *testing.T) {
	store := openTestStore(t)
	callbackHandler, callbacks := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(204))
	callbackServer := httptest.NewServer(callbackHandler)
	defer callbackServer.Close()

	commandCh := make(chan queue.Entry, 1)
	mockLog := ldlogtest.NewMockLog()
	w := NewWorker(store, commandCh, mockLog.Loggers)

	instrument.Intercept(func(sc *instrument.Scope) {
		instrument.Replace(sc, w.Process, func(ProcessArgs) error { return errors.New("constraint violated") })
		startWorker(t, w)
		commandCh <- queue.Entry{ID: "u2", Command: "c", Certname: "b", Callback: callbackServer.URL, Payload: []byte("{}")}

		select {
		case info := <-callbacks:
			var notice servicedef.CallbackNotice
			require.NoError(t, json.Unmarshal(info.Body, &notice))
			assert.Equal(t, servicedef.CallbackStatusFailed, notice.Status)
			assert.Equal(t, "constraint violated", notice.Error)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for callback")
		}
	})
	assert.True(t, mockLog.HasMessageMatch(ldlog.Error, "constraint violated"))
}

func TestWorkerRejectsCorruptGzip(t *testing.T) {
	store := openTestStore(t)
	commandCh := make(chan queue.Entry, 1)
	w := NewWorker(store, commandCh, ldlog.NewDisabledLoggers())

	instrument.Intercept(func(sc *instrument.Scope) {
		rec := instrument.Record(sc, w.Process)
		w.handle(context.Background(), queue.Entry{ID: "u3", Compression: "gzip", Payload: []byte("plain")})
		assert.Equal(t, 0, rec.Count())
	})
}

func TestWorkerStopsWhenChannelCloses(t *testing.T) {
	commandCh := make(chan queue.Entry)
	w := NewWorker(openTestStore(t), commandCh, ldlog.NewDisabledLoggers())
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()
	close(commandCh)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
