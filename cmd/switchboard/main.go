// switchboard: specialist dispatch and project-plan tracking.
//
// Routes requests to specialist profiles, assembles their context from
// project memory and validates each request against the active plan
// before it is acted on.
//
// Usage:
//
//	switchboard serve                  # Start MCP server (stdio transport)
//	switchboard route "<request>"      # Show which profile a request goes to
//	switchboard plan show              # Show the active plan
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HendryAvila/switchboard/internal/config"
	"github.com/HendryAvila/switchboard/internal/logging"
	"github.com/HendryAvila/switchboard/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the state shared by every command: flags, the loaded
// config and the logger.
type app struct {
	configPath string
	verbose    bool
	jsonOut    bool

	cfg config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}

	root := &cobra.Command{
		Use:   "switchboard",
		Short: "Route requests to specialist profiles and keep work on plan",
		Long: `switchboard decides which specialist profile should handle a request,
assembles that specialist's context from project memory, and validates the
request against the active project plan and its constraints.

Run "switchboard serve" to expose it to an AI coding tool over MCP:

  {
    "mcpServers": {
      "switchboard": {
        "command": "switchboard",
        "args": ["serve"]
      }
    }
  }`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path := a.configPath
			if path == "" {
				path = config.DefaultPath()
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if a.verbose {
				cfg.LogLevel = "debug"
			}
			log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: <data dir>/switchboard.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "Print results as JSON")

	root.AddCommand(
		newServeCmd(a),
		newRouteCmd(a),
		newAssembleCmd(a),
		newValidateCmd(a),
		newDispatchCmd(a),
		newPlanCmd(a),
		newQueryCmd(a),
		newActivityCmd(a),
		newWatchCmd(a),
		newSeedRulesCmd(a),
		newVersionCmd(),
	)
	return root
}

// build wires the core from the loaded config. The caller must Close it.
func (a *app) build() (*server.Components, error) {
	return server.Build(a.cfg, a.log)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "switchboard v%s\n", server.Version)
		},
	}
}

// writeJSON prints v indented.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
