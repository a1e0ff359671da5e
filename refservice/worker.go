package refservice

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"

	"github.com/cmdhub/command-contract-tests/commands"
	"github.com/cmdhub/command-contract-tests/framework/instrument"
	"github.com/cmdhub/command-contract-tests/queue"
	"github.com/cmdhub/command-contract-tests/servicedef"
)

const callbackTimeout = time.Second * 10

// ProcessArgs is what the process step receives for one command.
type ProcessArgs struct {
	Context context.Context
	Entry   queue.Entry
	Payload []byte
}

// ProcessFunc applies one decoded command.
type ProcessFunc = func(ProcessArgs) error

type doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Worker takes entries from the command channel, decodes their payloads, processes them,
// and notifies their callback URLs.
type Worker struct {
	// Process stores the command. Tests substitute it through an instrument.Scope.
	Process *instrument.Slot[ProcessFunc]

	commands <-chan queue.Entry
	client   doer
	loggers  ldlog.Loggers
}

func NewWorker(store *Store, commandCh <-chan queue.Entry, loggers ldlog.Loggers) *Worker {
	return &Worker{
		Process:  instrument.NewSlot(StoreProcess(store)),
		commands: commandCh,
		client:   &http.Client{Timeout: callbackTimeout},
		loggers:  loggers,
	}
}

// StoreProcess is the default process step: it inserts the command into store.
func StoreProcess(store *Store) ProcessFunc {
	return func(args ProcessArgs) error {
		_, err := store.Insert(args.Context, args.Entry, args.Payload)
		return err
	}
}

// Run handles entries until ctx is done or the command channel is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-w.commands:
			if !ok {
				return
			}
			w.handle(ctx, entry)
		}
	}
}

func (w *Worker) handle(ctx context.Context, entry queue.Entry) {
	notice := servicedef.CallbackNotice{
		UUID:     entry.ID,
		Command:  entry.Command,
		Certname: entry.Certname,
		Status:   servicedef.CallbackStatusProcessed,
	}
	payload, err := decodePayload(entry)
	if err == nil {
		err = w.Process.Load()(ProcessArgs{Context: ctx, Entry: entry, Payload: payload})
	}
	if err != nil {
		w.loggers.Errorf("Command %s (%q for %s) failed: %s", entry.ID, entry.Command, entry.Certname, err)
		notice.Status = servicedef.CallbackStatusFailed
		notice.Error = err.Error()
	} else {
		w.loggers.Debugf("Processed command %s", entry.ID)
	}

	if entry.Callback != "" {
		if err := w.notify(ctx, entry.Callback, notice); err != nil {
			w.loggers.Warnf("Callback for command %s to %s failed: %s", entry.ID, entry.Callback, err)
		}
	}
}

func decodePayload(entry queue.Entry) ([]byte, error) {
	switch entry.Compression {
	case "":
		return entry.Payload, nil
	case commands.CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(entry.Payload))
		if err != nil {
			return nil, fmt.Errorf("payload is not valid gzip: %w", err)
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("payload is not valid gzip: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", entry.Compression)
	}
}

func (w *Worker) notify(ctx context.Context, url string, notice servicedef.CallbackNotice) error {
	data, _ := json.Marshal(notice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned HTTP status %d", resp.StatusCode)
	}
	return nil
}
