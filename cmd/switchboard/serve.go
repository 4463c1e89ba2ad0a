package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/switchboard/internal/activity"
	"github.com/HendryAvila/switchboard/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		Long: `Serves the MCP tools, prompts and resources on stdin/stdout until stdin
closes or the process is interrupted. SIGHUP reloads the profile and rule
files. With metrics_addr set, Prometheus metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Record file activity under the project root while serving")
	return cmd
}

func (a *app) serve(ctx context.Context, watch bool) error {
	c, err := a.build()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	stdio := mcpserver.NewStdioServer(server.New(c))
	stdio.SetErrorLogger(zap.NewStdLog(a.log.Named("mcp")))
	g.Go(func() error {
		// The session ends when the host closes stdin.
		defer cancel()
		err := stdio.Listen(ctx, os.Stdin, os.Stdout)
		if err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("mcp transport: %w", err)
	})

	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				if err := c.ReloadProfiles(); err != nil {
					a.log.Warn("profile reload failed", zap.Error(err))
				}
			}
		}
	})

	if addr := c.Config.MetricsAddr; addr != "" {
		g.Go(func() error {
			if err := c.Metrics.Serve(ctx, addr, a.log.Named("metrics")); err != nil {
				return fmt.Errorf("metrics endpoint: %w", err)
			}
			return nil
		})
	}

	if watch {
		w, err := newWatcher(c, a.log)
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(ctx) })
	}

	a.log.Info("switchboard serving",
		zap.String("version", server.Version),
		zap.String("data_dir", c.Config.DataDir),
		zap.Strings("profiles", c.Registry.IDs()))
	return g.Wait()
}

// newWatcher creates a file activity watcher over the project root,
// checking changed files with the quality gate when it is enabled.
func newWatcher(c *server.Components, log *zap.Logger) (*activity.Watcher, error) {
	var checker activity.Checker
	if c.Quality != nil {
		checker = c.Quality
	}
	w, err := activity.New(activity.Config{
		Root:     c.ProjectRoot,
		Exclude:  c.Config.Watch.Exclude,
		Debounce: c.Config.Watch.Debounce,
		Profile:  c.Config.Watch.Profile,
	}, c.Store, checker, log.Named("watcher"))
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return w, nil
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Record file activity under the project root until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.build()
			if err != nil {
				return err
			}
			defer c.Close()

			w, err := newWatcher(c, a.log)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl-C to stop)\n", c.ProjectRoot)
			return w.Run(ctx)
		},
	}
}
