package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"

	"github.com/cmdhub/command-contract-tests/framework/instrument"
	"github.com/cmdhub/command-contract-tests/queue"
	"github.com/cmdhub/command-contract-tests/servicedef"
)

// EnqueueArgs is everything the enqueue operation receives for one submission.
type EnqueueArgs struct {
	Context  context.Context
	Request  Request
	Permit   *Permit
	Accepted func(queue.Entry)
}

// EnqueueFunc hands a decoded submission to the command queue. It owns the permit and must
// release it.
type EnqueueFunc = func(EnqueueArgs) error

// App is an http.Handler that accepts command submissions.
type App struct {
	// Enqueue is called once per accepted submission. Tests substitute it through an
	// instrument.Scope.
	Enqueue *instrument.Slot[EnqueueFunc]

	permits *PermitPool
	loggers ldlog.Loggers
}

// Option configures an App in BuildApp.
type Option func(*App)

// WithPermits shares an existing pool instead of creating one with DefaultPermits.
func WithPermits(pool *PermitPool) Option {
	return func(a *App) { a.permits = pool }
}

// WithLoggers sets the loggers for submission handling. The default
// discards everything.
func WithLoggers(loggers ldlog.Loggers) Option {
	return func(a *App) { a.loggers = loggers }
}

// BuildApp returns an App whose enqueue operation is DefaultEnqueue(q, commandCh).
func BuildApp(q queue.Queue, commandCh chan<- queue.Entry, opts ...Option) *App {
	a := &App{
		Enqueue: instrument.NewSlot(DefaultEnqueue(q, commandCh)),
		loggers: ldlog.NewDisabledLoggers(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.permits == nil {
		a.permits = NewPermitPool(DefaultPermits)
	}
	return a
}

// Permits returns the pool that bounds concurrent submissions.
func (a *App) Permits() *PermitPool {
	return a.permits
}

// Accepted is the notifier passed to the enqueue operation. It does nothing.
func Accepted(queue.Entry) {}

// ServeHTTP handles one command submission.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := DecodeRequest(r)
	if err != nil {
		a.loggers.Warnf("Rejected command submission: %s", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.ID = uuid.NewString()

	permit, err := a.permits.Acquire(r.Context())
	if err != nil {
		a.loggers.Warnf("Gave up waiting for a permit for command %s: %s", req.ID, err)
		http.Error(w, "no capacity to accept the command", http.StatusServiceUnavailable)
		return
	}
	defer permit.Release()

	a.loggers.Debugf("Enqueuing %q v%d for %s as %s", req.Command, req.Version, req.Certname, req.ID)
	err = a.Enqueue.Load()(EnqueueArgs{
		Context:  ContextWithApp(r.Context(), a),
		Request:  req,
		Permit:   permit,
		Accepted: Accepted,
	})
	if err != nil {
		a.loggers.Errorf("Failed to enqueue command %s: %s", req.ID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data, _ := json.Marshal(servicedef.CommandResponse{UUID: req.ID})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// DefaultEnqueue reads the payload, stores the entry in q, releases the permit, and then
// passes the entry to commandCh, blocking while the channel is full. A nil commandCh skips
// that last step.
func DefaultEnqueue(q queue.Queue, commandCh chan<- queue.Entry) EnqueueFunc {
	return func(args EnqueueArgs) error {
		ctx := args.Context
		if ctx == nil {
			ctx = context.Background()
		}
		req := args.Request
		var payload []byte
		if req.Payload != nil {
			data, err := io.ReadAll(req.Payload)
			if err != nil {
				return fmt.Errorf("reading payload of command %s: %w", req.ID, err)
			}
			payload = data
		}
		entry := queue.Entry{
			ID:                req.ID,
			Command:           req.Command,
			Version:           req.Version,
			Certname:          req.Certname,
			ProducerTimestamp: req.ProducerTimestamp,
			Compression:       req.Compression,
			Callback:          req.Callback,
			Payload:           payload,
			Received:          time.Now().UTC(),
		}
		if err := q.Store(ctx, entry); err != nil {
			return fmt.Errorf("storing command %s: %w", req.ID, err)
		}
		args.Permit.Release()

		if commandCh != nil {
			select {
			case commandCh <- entry:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if args.Accepted != nil {
			args.Accepted(entry)
		}
		return nil
	}
}

type appContextKey struct{}

// ContextWithApp returns a copy of ctx that carries app.
func ContextWithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appContextKey{}, app)
}

// AppFromContext returns the App stored by ContextWithApp.
func AppFromContext(ctx context.Context) (*App, error) {
	if app, ok := ctx.Value(appContextKey{}).(*App); ok && app != nil {
		return app, nil
	}
	return nil, errNoApp
}

var errNoApp = errors.New("no command app in context")
