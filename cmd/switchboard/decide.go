package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HendryAvila/switchboard/internal/dispatch"
	"github.com/HendryAvila/switchboard/internal/router"
	"github.com/HendryAvila/switchboard/internal/server"
	"github.com/HendryAvila/switchboard/internal/tools"
	"github.com/HendryAvila/switchboard/internal/tracker"
)

// cliSource tags verdicts and activity produced from the command line.
const cliSource = "cli"

func newRouteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "route <request>",
		Short: "Show which specialist profile a request routes to, recording it as activity",
		Example: `  switchboard route "visualize sales with a streamlit dashboard"
  switchboard route --json "train a random forest"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withComponents(func(c *server.Components) error {
				text := strings.Join(args, " ")
				res := c.Router.Route(text)
				if _, err := c.Store.AppendActivity(cmd.Context(), tools.RouteActivity(text, res)); err != nil {
					a.log.Warn("record route activity failed", zap.Error(err))
				}
				if a.jsonOut {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				printRoute(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
}

func printRoute(w io.Writer, res router.Result) {
	primary := res.Primary
	if res.Fallback {
		primary += " (fallback)"
	}
	fmt.Fprintf(w, "Primary:   %s\n", primary)
	if len(res.Secondary) > 0 {
		fmt.Fprintf(w, "Secondary: %s\n", strings.Join(res.Secondary, ", "))
	}
	fmt.Fprintf(w, "Rationale: %s\n", res.Rationale)

	ids := make([]string, 0, len(res.Scores))
	for id, score := range res.Scores {
		if score > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if res.Scores[ids[i]] != res.Scores[ids[j]] {
			return res.Scores[ids[i]] > res.Scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids {
		fmt.Fprintf(w, "  %-24s %d\n", id, res.Scores[id])
	}
}

func newAssembleCmd(a *app) *cobra.Command {
	var profile string
	cmd := &cobra.Command{
		Use:   "assemble <request>",
		Short: "Print the context bundle a specialist would receive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.build()
			if err != nil {
				return err
			}
			defer c.Close()

			text := strings.Join(args, " ")
			if profile == "" {
				profile = c.Router.Route(text).Primary
			}
			b, err := c.Assembler.Assemble(cmd.Context(), profile, text)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), b)
			}
			prompt, err := b.Render()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), prompt)
			return nil
		},
	}
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Profile to assemble for (default: the routed profile)")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <request>",
		Short: "Check a request against the active plan and its constraints",
		Long: `Prints allow, warn or block with the reasons. Exits non-zero only on
errors, not on a block verdict.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.build()
			if err != nil {
				return err
			}
			defer c.Close()

			v := c.Tracker.ValidateActive(cmd.Context(), cliSource, strings.Join(args, " "))
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), v)
			}
			printVerdict(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func printVerdict(w io.Writer, v tracker.Verdict) {
	fmt.Fprintf(w, "Verdict: %s\n", strings.ToUpper(string(v.Level)))
	for _, r := range v.Reasons {
		fmt.Fprintf(w, "  - %s\n", r)
	}
}

func newDispatchCmd(a *app) *cobra.Command {
	var profile string
	cmd := &cobra.Command{
		Use:   "dispatch <request>",
		Short: "Route, assemble and validate a request, recording it as activity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.build()
			if err != nil {
				return err
			}
			defer c.Close()

			out, err := c.Dispatcher.Dispatch(cmd.Context(), dispatch.Request{
				Text:    strings.Join(args, " "),
				Profile: profile,
				Source:  cliSource,
			})
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			printRoute(w, out.Route)
			printVerdict(w, out.Verdict)
			if out.Verdict.Level != tracker.Block {
				fmt.Fprintf(w, "\n%s\n", out.Prompt)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Override the routed profile")
	return cmd
}
