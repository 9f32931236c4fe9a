package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/heinrichuk/pmoai/internal/api"
	"github.com/heinrichuk/pmoai/internal/assistant"
	"github.com/heinrichuk/pmoai/internal/config"
	"github.com/heinrichuk/pmoai/internal/query"
	"github.com/heinrichuk/pmoai/internal/seed"
	"github.com/heinrichuk/pmoai/internal/server"
	"github.com/heinrichuk/pmoai/internal/snapshot"
	"github.com/heinrichuk/pmoai/internal/storage"
	"github.com/heinrichuk/pmoai/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Transport string
	Addr      string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (with MCP at /mcp) or an MCP server on stdio",
		Long: `Loads the sample portfolio, starts the snapshot scheduler and serves it.

With --transport http the JSON API and the streamable MCP endpoint share one
listener. With --transport stdio only the MCP tools are served, over stdin and
stdout; logs go to stderr.

Example:
  pmoai serve --addr :8000
  pmoai serve --transport stdio --data-dir ~/.pmoai`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if opts.Transport != "" {
				cfg.Server.Transport = opts.Transport
			}
			if opts.Addr != "" {
				cfg.Server.Addr = opts.Addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runServe(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&opts.Transport, "transport", "", "transport: http or stdio (overrides config)")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "HTTP listen address (overrides config)")

	return cmd
}

// app is every long-lived component the serve command wires together.
type app struct {
	archive   *storage.Archive
	scheduler *snapshot.Scheduler
	query     *query.Service
	assistant *assistant.Gateway
}

// newMCP builds an MCP server with its own focus session.
func (a *app) newMCP() *mcp.Server {
	return server.New(a.query, a.scheduler, a.assistant)
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	st := store.New(logger)
	if err := st.Load(seed.Bundle(time.Now().Round(0))); err != nil {
		return nil, fmt.Errorf("load seed data: %w", err)
	}

	archive, err := storage.OpenArchive(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open snapshot archive: %w", err)
	}

	cadence := snapshot.Cadence{Every: cfg.Snapshots.Interval, At: cfg.Snapshots.At}
	if err := cadence.Validate(); err != nil {
		archive.Close()
		return nil, err
	}
	sched := snapshot.NewScheduler(st, archive, cadence, logger, snapshot.WithQueueSize(cfg.Snapshots.QueueSize))

	completer, err := assistant.NewCompleter(ctx, cfg.Assistant)
	if err != nil {
		archive.Close()
		return nil, err
	}
	if completer == nil {
		logger.Warn("no completion service configured, assistant will use fallback answers",
			zap.String("provider", cfg.Assistant.Provider))
	}
	gw := assistant.NewGateway(completer, st, cfg.Assistant.Timeout, logger)

	q := query.NewService(st, archive, logger)

	return &app{
		archive:   archive,
		scheduler: sched,
		query:     q,
		assistant: gw,
	}, nil
}

func (a *app) close() {
	a.scheduler.Stop()
	a.archive.Close()
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	a.scheduler.Start()

	switch cfg.Server.Transport {
	case config.TransportStdio:
		logger.Info("pmoai MCP server starting (stdio)")
		if err := a.newMCP().Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	default:
		return serveHTTP(ctx, cfg.Server.Addr, a, logger)
	}
}

func serveHTTP(ctx context.Context, addr string, a *app, logger *zap.Logger) error {
	// Called once per new MCP session, so focus never leaks between clients.
	mcpHandler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return a.newMCP()
	}, nil)
	srv := api.NewServer(a.query, a.scheduler, a.assistant, logger, api.WithMCP(mcpHandler))
	httpServer := srv.HTTPServer(addr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("pmoai listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
