package refservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/cmdhub/command-contract-tests/commands"
	"github.com/cmdhub/command-contract-tests/queue"
	"github.com/cmdhub/command-contract-tests/servicedef"
)

const (
	defaultCommandBuffer = 100
	serviceDescription   = "reference command service"
)

// Capabilities are the optional behaviors this service supports.
var Capabilities = []string{
	servicedef.CapabilityCallbacks,
	servicedef.CapabilityQueryPost,
	servicedef.CapabilityGzip,
	servicedef.CapabilityIncludeTotal,
}

type ServerOptions struct {
	// Permits bounds concurrent enqueue operations. Zero means commands.DefaultPermits.
	Permits int
	// CommandBuffer is the capacity of the channel between the App and the Worker.
	CommandBuffer int
	Loggers       ldlog.Loggers
}

// Server routes the service's HTTP API.
type Server struct {
	app       *commands.App
	store     *Store
	worker    *Worker
	commandCh chan queue.Entry
	stopCh    chan struct{}
	stopOnce  sync.Once
	mux       *http.ServeMux
	loggers   ldlog.Loggers
}

// NewServer builds a Server that accepts commands into q and stores processed commands in
// store.
func NewServer(store *Store, q queue.Queue, opts ServerOptions) *Server {
	if opts.CommandBuffer <= 0 {
		opts.CommandBuffer = defaultCommandBuffer
	}
	commandCh := make(chan queue.Entry, opts.CommandBuffer)
	s := &Server{
		app: commands.BuildApp(q, commandCh,
			commands.WithPermits(commands.NewPermitPool(opts.Permits)),
			commands.WithLoggers(opts.Loggers)),
		store:     store,
		worker:    NewWorker(store, commandCh, opts.Loggers),
		commandCh: commandCh,
		stopCh:    make(chan struct{}),
		mux:       http.NewServeMux(),
		loggers:   opts.Loggers,
	}
	s.mux.HandleFunc("/", s.serveRoot)
	s.mux.Handle(servicedef.CommandsPath, s.app)
	s.mux.HandleFunc(servicedef.RecordsPath, s.serveRecords)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start runs the worker until ctx is done.
func (s *Server) Start(ctx context.Context) {
	go s.worker.Run(ctx)
}

func (s *Server) App() *commands.App { return s.app }

func (s *Server) Worker() *Worker { return s.worker }

// StopRequested is closed when a client asks the service to exit.
func (s *Server) StopRequested() <-chan struct{} {
	return s.stopCh
}

func (s *Server) serveRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, servicedef.StatusResponse{
			Description:  serviceDescription,
			Capabilities: Capabilities,
		})
	case http.MethodDelete:
		s.loggers.Info("Received request to stop service")
		s.stopOnce.Do(func() { close(s.stopCh) })
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type recordsParams struct {
	query        ldvalue.Value
	order        []OrderBy
	limit        int
	offset       int
	includeTotal bool
}

func (s *Server) serveRecords(w http.ResponseWriter, r *http.Request) {
	var params recordsParams
	var err error
	switch r.Method {
	case http.MethodGet:
		params, err = recordsParamsFromURL(r)
	case http.MethodPost:
		params, err = recordsParamsFromBody(r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, total, err := s.store.Query(r.Context(), params.query, params.order, params.limit, params.offset)
	if err != nil {
		var queryErr *QueryError
		if errors.As(err, &queryErr) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.loggers.Errorf("Records query failed: %s", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if params.includeTotal {
		w.Header().Set(servicedef.TotalCountHeader, strconv.Itoa(total))
	}
	writeJSON(w, http.StatusOK, records)
}

func recordsParamsFromURL(r *http.Request) (recordsParams, error) {
	values := r.URL.Query()
	p := recordsParams{query: ldvalue.Null()}
	for k := range values {
		switch k {
		case servicedef.ParamQuery, servicedef.ParamLimit, servicedef.ParamOffset,
			servicedef.ParamIncludeTotal, paramOrderBy:
		default:
			return p, fmt.Errorf("unsupported parameter %q", k)
		}
	}
	var err error
	if raw := values.Get(servicedef.ParamQuery); raw != "" {
		if p.query, err = parseJSONParam(servicedef.ParamQuery, raw); err != nil {
			return p, err
		}
	}
	if raw := values.Get(paramOrderBy); raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.order); err != nil {
			return p, fmt.Errorf("%q must be a JSON array of {field, order}: %w", paramOrderBy, err)
		}
	}
	if p.limit, err = intParam(servicedef.ParamLimit, values.Get(servicedef.ParamLimit)); err != nil {
		return p, err
	}
	if p.offset, err = intParam(servicedef.ParamOffset, values.Get(servicedef.ParamOffset)); err != nil {
		return p, err
	}
	switch values.Get(servicedef.ParamIncludeTotal) {
	case "", "false":
	case "true":
		p.includeTotal = true
	default:
		return p, fmt.Errorf("%q must be true or false", servicedef.ParamIncludeTotal)
	}
	return p, nil
}

const paramOrderBy = "order_by"

type recordsBody struct {
	Query        json.RawMessage `json:"query"`
	OrderBy      []OrderBy       `json:"order_by"`
	Limit        *int            `json:"limit"`
	Offset       *int            `json:"offset"`
	IncludeTotal bool            `json:"include_total"`
}

func recordsParamsFromBody(r *http.Request) (recordsParams, error) {
	p := recordsParams{query: ldvalue.Null()}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var body recordsBody
	if err := dec.Decode(&body); err != nil {
		return p, fmt.Errorf("malformed request body: %w", err)
	}
	if len(body.Query) > 0 {
		p.query = ldvalue.Parse(body.Query)
	}
	p.order = body.OrderBy
	if body.Limit != nil {
		if *body.Limit < 0 {
			return p, fmt.Errorf("%q must not be negative", servicedef.ParamLimit)
		}
		p.limit = *body.Limit
	}
	if body.Offset != nil {
		if *body.Offset < 0 {
			return p, fmt.Errorf("%q must not be negative", servicedef.ParamOffset)
		}
		p.offset = *body.Offset
	}
	p.includeTotal = body.IncludeTotal
	return p, nil
}

func parseJSONParam(name, raw string) (ldvalue.Value, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return ldvalue.Null(), fmt.Errorf("%q must be JSON: %w", name, err)
	}
	return ldvalue.CopyArbitraryValue(v), nil
}

func intParam(name, raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%q must be a non-negative integer, not %q", name, raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	data, _ := json.Marshal(value)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
