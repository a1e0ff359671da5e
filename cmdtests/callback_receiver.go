package cmdtests

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cmdhub/command-contract-tests/framework"
	"github.com/cmdhub/command-contract-tests/servicedef"
)

// CallbackReceiver is a mock endpoint for callback notices. Each command gets its own
// callback URL ending in a sequence number, and notices are delivered in that order no
// matter what order the service sends them in.
type CallbackReceiver struct {
	endpoint *framework.MockEndpoint
	notices  *framework.SequencedQueue[servicedef.CallbackNotice]
	errors   chan error
	lastSeq  int
	logger   framework.Logger
	lock     sync.Mutex
}

func newCallbackReceiver(harness *framework.TestHarness, logger framework.Logger) *CallbackReceiver {
	c := &CallbackReceiver{
		notices: framework.NewSequencedQueue[servicedef.CallbackNotice](100),
		errors:  make(chan error, 100),
		logger:  logger,
	}
	c.endpoint = harness.NewMockEndpoint(c, "callback receiver", logger)
	return c
}

// NextURL reserves the next sequence number and returns its callback URL.
func (c *CallbackReceiver) NextURL() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.lastSeq++
	return fmt.Sprintf("%s/%d", c.endpoint.BaseURL(), c.lastSeq)
}

func (c *CallbackReceiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/"))
	if err != nil || seq < 1 {
		c.sendError(fmt.Errorf("callback request had invalid path %q", r.URL.Path))
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		c.sendError(fmt.Errorf("callback request used method %s instead of POST", r.Method))
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		c.sendError(fmt.Errorf("error reading callback request body: %w", err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := validateCallbackNotice(data); err != nil {
		c.sendError(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var notice servicedef.CallbackNotice
	if err := json.Unmarshal(data, &notice); err != nil {
		c.sendError(fmt.Errorf("malformed callback notice: %s", string(data)))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	c.logger.Printf("Received callback %d: %s", seq, string(data))
	c.notices.Accept(seq, notice)
	w.WriteHeader(http.StatusAccepted)
}

func (c *CallbackReceiver) sendError(err error) {
	c.logger.Printf("Error: %s", err)
	select {
	case c.errors <- err:
	default:
	}
}

func (c *CallbackReceiver) Close() {
	c.endpoint.Close()
	c.notices.Close()
}

// AwaitNotice waits for the next notice in sequence order.
func (c *CallbackReceiver) AwaitNotice(timeout time.Duration) (servicedef.CallbackNotice, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case notice, ok := <-c.notices.C:
		if !ok {
			return servicedef.CallbackNotice{}, errors.New("callback endpoint was already closed")
		}
		return notice, nil
	case err := <-c.errors:
		return servicedef.CallbackNotice{}, err
	case <-deadline.C:
		return servicedef.CallbackNotice{}, errors.New("timed out waiting for a callback from the test service")
	}
}
