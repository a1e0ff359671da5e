package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const endpointPathPrefix = "/endpoints/"

// TestHarness is the connection between the tests and the service under test. It knows the
// service's base URL and capabilities, and runs an HTTP listener for the mock endpoints that
// the service calls back to.
type TestHarness struct {
	testServiceBaseURL         string
	testHarnessExternalBaseURL string
	testServiceInfo            TestServiceInfo
	client                     *http.Client
	server                     *http.Server
	endpoints                  map[string]*MockEndpoint
	lastEndpointID             int
	logger                     Logger
	lock                       sync.Mutex
}

// NewTestHarness creates a TestHarness, and verifies that the test service is responding by
// querying its status resource. It also starts an HTTP listener on the specified port to
// receive callback requests; port 0 picks any free port.
func NewTestHarness(
	testServiceBaseURL string,
	testHarnessExternalHostname string,
	testHarnessPort int,
	statusQueryTimeout time.Duration,
	debugLogger Logger,
	startupOutput io.Writer,
) (*TestHarness, error) {
	if debugLogger == nil {
		debugLogger = NullLogger()
	}
	if startupOutput == nil {
		startupOutput = io.Discard
	}

	h := &TestHarness{
		testServiceBaseURL: strings.TrimSuffix(testServiceBaseURL, "/"),
		client:             &http.Client{Timeout: time.Second * 30},
		endpoints:          make(map[string]*MockEndpoint),
		logger:             debugLogger,
	}

	testServiceInfo, err := queryTestServiceInfo(h.client, h.testServiceBaseURL, statusQueryTimeout, startupOutput)
	if err != nil {
		return nil, err
	}
	h.testServiceInfo = testServiceInfo

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", testHarnessPort))
	if err != nil {
		return nil, fmt.Errorf("could not start callback listener: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	h.testHarnessExternalBaseURL = fmt.Sprintf("http://%s:%d", testHarnessExternalHostname, port)
	h.server = &http.Server{Handler: http.HandlerFunc(h.serveHTTP), ReadHeaderTimeout: time.Second * 10}
	go func() {
		if err := h.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Printf("Callback listener stopped: %s", err)
		}
	}()

	return h, nil
}

func (h *TestHarness) TestServiceInfo() TestServiceInfo {
	return h.testServiceInfo
}

func (h *TestHarness) TestServiceHasCapability(desired string) bool {
	for _, capability := range h.testServiceInfo.Capabilities {
		if capability == desired {
			return true
		}
	}
	return false
}

// MissingCapabilities returns the members of capabilities that the service did not declare.
func (h *TestHarness) MissingCapabilities(capabilities []string) []string {
	var missing []string
	for _, c := range capabilities {
		if !h.TestServiceHasCapability(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// ExternalBaseURL is the base URL at which the service can reach the harness's listener.
func (h *TestHarness) ExternalBaseURL() string {
	return h.testHarnessExternalBaseURL
}

// Close stops the callback listener.
func (h *TestHarness) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	return h.server.Shutdown(ctx)
}

// Client returns an HTTP client for the service under test. Requests with a relative URL
// are sent relative to the service's base URL.
func (h *TestHarness) Client() *ServiceClient {
	base, _ := url.Parse(h.testServiceBaseURL + "/")
	return &ServiceClient{base: base, client: h.client, logger: h.logger}
}

// ServiceClient sends requests to the service under test.
type ServiceClient struct {
	base   *url.URL
	client *http.Client
	logger Logger
}

func (c *ServiceClient) Do(req *http.Request) (*http.Response, error) {
	if !req.URL.IsAbs() {
		req.URL = c.base.ResolveReference(&url.URL{
			Path:     strings.TrimPrefix(req.URL.Path, "/"),
			RawQuery: req.URL.RawQuery,
		})
		req.Host = ""
	}
	c.logger.Printf("%s %s", req.Method, req.URL)
	return c.client.Do(req)
}

func (h *TestHarness) serveHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method == "HEAD" {
		w.WriteHeader(200) // we use this to test whether our own listener is active yet
		return
	}

	if !strings.HasPrefix(req.URL.Path, endpointPathPrefix) {
		h.logger.Printf("Received request for unrecognized URL path %s", req.URL.Path)
		w.WriteHeader(404)
		return
	}
	path := strings.TrimPrefix(req.URL.Path, endpointPathPrefix)
	var endpointID string
	slashPos := strings.Index(path, "/")
	if slashPos >= 0 {
		endpointID = path[0:slashPos]
		path = path[slashPos:]
	} else {
		endpointID = path
		path = ""
	}

	h.lock.Lock()
	e := h.endpoints[endpointID]
	h.lock.Unlock()
	if e == nil {
		h.logger.Printf("Received request for unrecognized endpoint %s", req.URL.Path)
		w.WriteHeader(404)
		return
	}

	e.serve(w, req, path)
}
