package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"

	"github.com/cmdhub/command-contract-tests/queue"
	"github.com/cmdhub/command-contract-tests/refservice"
)

const shutdownTimeout = time.Second * 5

type serveOptions struct {
	Listen   string
	Database string
	Queue    string
	RedisURL string
	NATSURL  string
	Permits  int
	Verbose  bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refservice",
		Short: "Reference command service for the command contract tests",
	}
	cmd.AddCommand(newServeCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept commands over HTTP and serve paged record queries",
		Long: `Start the reference command service.

Commands are accepted at /commands, stored in the selected queue, processed into a
SQLite database, and served at /query/records.

Example:
  refservice serve --listen :8000 --db ./records.db
  refservice serve --queue redis --redis-url redis://localhost:6379/0`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.Listen, "listen", ":8000", "address to listen on")
	cmd.Flags().StringVar(&opts.Database, "db", ":memory:", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Queue, "queue", "memory", "command queue (memory|redis|nats)")
	cmd.Flags().StringVar(&opts.RedisURL, "redis-url", "", "Redis URL for --queue redis")
	cmd.Flags().StringVar(&opts.NATSURL, "nats-url", "", "NATS URL for --queue nats")
	cmd.Flags().IntVar(&opts.Permits, "permits", 0, "maximum concurrent enqueue operations (default 100)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log debug output")
	return cmd
}

func makeLoggers(output io.Writer, verbose bool) ldlog.Loggers {
	loggers := ldlog.NewDefaultLoggers()
	loggers.SetBaseLogger(log.New(output, "[refservice] ", log.LstdFlags))
	if verbose {
		loggers.SetMinLevel(ldlog.Debug)
	}
	return loggers
}

func buildQueue(opts *serveOptions) (queue.Queue, func() error, error) {
	switch opts.Queue {
	case "memory", "":
		return queue.NewMemoryQueue(), func() error { return nil }, nil
	case "redis":
		q, err := queue.NewRedisQueue(opts.RedisURL, "")
		if err != nil {
			return nil, nil, err
		}
		return q, q.Close, nil
	case "nats":
		q, err := queue.NewNATSQueue(opts.NATSURL, "")
		if err != nil {
			return nil, nil, err
		}
		return q, q.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown queue %q: must be memory, redis, or nats", opts.Queue)
}

func serve(ctx context.Context, opts *serveOptions, output io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	loggers := makeLoggers(output, opts.Verbose)

	store, err := refservice.Open(opts.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	q, closeQueue, err := buildQueue(opts)
	if err != nil {
		return err
	}
	defer func() { _ = closeQueue() }()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server := refservice.NewServer(store, q, refservice.ServerOptions{Permits: opts.Permits, Loggers: loggers})
	server.Start(ctx)

	listener, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", opts.Listen, err)
	}
	httpServer := &http.Server{Handler: server, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.Serve(listener) }()
	loggers.Infof("Listening on %s with %s queue", listener.Addr(), opts.Queue)

	select {
	case <-ctx.Done():
	case <-server.StopRequested():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	loggers.Info("Shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return httpServer.Shutdown(shutdownCtx)
}
