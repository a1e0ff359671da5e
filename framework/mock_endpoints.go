package framework

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
)

const mockEndpointBufferSize = 100

// ErrEndpointClosed is returned by AwaitRequest once the endpoint has been closed and every
// request it received has been consumed.
var ErrEndpointClosed = errors.New("mock endpoint was closed")

// MockEndpoint is a path on the harness's listener that the service under test can call,
// such as a command's callback URL.
//
// Every request is delivered to the endpoint's handler with its URL rewritten to the subpath
// below BaseURL, and recorded as a ReceivedRequest for AwaitRequest. A request's Context is
// cancelled when the endpoint is closed.
type MockEndpoint struct {
	owner       *TestHarness
	id          string
	description string
	handler     http.Handler
	received    chan ReceivedRequest
	count       int
	ctx         context.Context
	cancel      context.CancelFunc
	closed      bool
	logger      Logger
	lock        sync.Mutex
}

// ReceivedRequest is one request the service made to a MockEndpoint.
type ReceivedRequest struct {
	// Seq numbers requests to the endpoint in arrival order, starting at 1.
	Seq     int
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
	Context context.Context
}

// NewMockEndpoint registers an endpoint under a new base path. A nil logger uses the
// harness's logger.
func (h *TestHarness) NewMockEndpoint(handler http.Handler, description string, logger Logger) *MockEndpoint {
	if logger == nil {
		logger = h.logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &MockEndpoint{
		owner:       h,
		description: description,
		handler:     handler,
		received:    make(chan ReceivedRequest, mockEndpointBufferSize),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
	h.lock.Lock()
	h.lastEndpointID++
	e.id = strconv.Itoa(h.lastEndpointID)
	h.endpoints[e.id] = e
	h.lock.Unlock()
	return e
}

// BaseURL returns the URL at which the service can reach this endpoint.
func (e *MockEndpoint) BaseURL() string {
	return e.owner.testHarnessExternalBaseURL + endpointPathPrefix + e.id
}

// Requests returns how many requests the endpoint has accepted.
func (e *MockEndpoint) Requests() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.count
}

// AwaitRequest waits for the next request to the endpoint.
func (e *MockEndpoint) AwaitRequest(ctx context.Context) (ReceivedRequest, error) {
	select {
	case r, ok := <-e.received:
		if !ok {
			return ReceivedRequest{}, ErrEndpointClosed
		}
		return r, nil
	case <-ctx.Done():
		return ReceivedRequest{}, fmt.Errorf("waiting for a request to %s: %w", e.description, ctx.Err())
	}
}

// Close unregisters the endpoint and cancels the Context of every request still being
// handled. Later requests get a 404.
func (e *MockEndpoint) Close() {
	e.owner.lock.Lock()
	delete(e.owner.endpoints, e.id)
	e.owner.lock.Unlock()

	e.lock.Lock()
	defer e.lock.Unlock()
	if !e.closed {
		e.closed = true
		e.cancel()
		close(e.received)
	}
}

func (e *MockEndpoint) serve(w http.ResponseWriter, req *http.Request, subpath string) {
	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		e.logger.Printf("Error reading request body for %s: %s", e.description, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	stop := context.AfterFunc(e.ctx, cancel)
	defer stop()

	e.lock.Lock()
	if e.closed {
		e.lock.Unlock()
		w.WriteHeader(http.StatusNotFound)
		return
	}
	e.count++
	received := ReceivedRequest{
		Seq:     e.count,
		Method:  req.Method,
		Path:    subpath,
		Headers: req.Header,
		Body:    body,
		Context: ctx,
	}
	select {
	case e.received <- received:
	default:
		e.logger.Printf("Dropped request %d to %s: buffer full", received.Seq, e.description)
	}
	e.lock.Unlock()

	rewritten := *req.URL
	rewritten.Path = subpath
	forwarded := req.WithContext(ctx)
	forwarded.URL = &rewritten
	forwarded.Body = io.NopCloser(bytes.NewReader(body))
	e.handler.ServeHTTP(w, forwarded)
}
