package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/profiles"
	"github.com/HendryAvila/switchboard/internal/server"
)

const dateLayout = "2006-01-02"

func newQueryCmd(a *app) *cobra.Command {
	var (
		kind, planID, from, to string
		limit                  int
	)
	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Search project memory, most relevant first",
		Long: `Searches plans, decisions, reflections and constraints. Results are ranked
by a relevance score that decays with age and favours decisions and
constraints over reflections.`,
		Example: `  switchboard query interpretability
  switchboard query --type decision --from 2026-01-01`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := memory.Criteria{Text: strings.Join(args, " "), PlanID: planID, Limit: limit}
			if kind != "" {
				k, err := memory.ParseKind(kind)
				if err != nil {
					return err
				}
				c.Kind = k
			}
			var err error
			if c.DateFrom, err = parseDate(from, false); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			if c.DateTo, err = parseDate(to, true); err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			return a.withComponents(func(sc *server.Components) error {
				recs, err := sc.Store.Query(cmd.Context(), c)
				if err != nil {
					return err
				}
				if a.jsonOut {
					if recs == nil {
						recs = []memory.Record{}
					}
					return writeJSON(cmd.OutOrStdout(), recs)
				}
				if len(recs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No memories found.")
					return nil
				}
				for _, r := range recs {
					fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s  %s  %s\n",
						r.Kind, r.CreatedAt.Format(dateLayout), r.Title(), memory.Truncate(r.Summary(), 80))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "type", "t", "", "Record type: plan, decision, reflection or constraint")
	cmd.Flags().StringVar(&planID, "plan", "", "Only records of this plan")
	cmd.Flags().StringVar(&from, "from", "", "Created on or after (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "Created on or before (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Max results (default: query_limit from config)")
	return cmd
}

// parseDate accepts a date or an RFC 3339 timestamp. A bare date used as
// an upper bound covers the whole day.
func parseDate(s string, upper bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not YYYY-MM-DD or RFC 3339", s)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func newActivityCmd(a *app) *cobra.Command {
	var (
		f      memory.ActivityFilter
		source string
	)
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent activity, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.Source = memory.ActivitySource(source)
			return a.withComponents(func(c *server.Components) error {
				entries := c.Store.RecentActivity(f)
				if a.jsonOut {
					if entries == nil {
						entries = []memory.ActivityEntry{}
					}
					return writeJSON(cmd.OutOrStdout(), entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No activity recorded yet.")
					return nil
				}
				for _, e := range entries {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s %-22s %s\n",
						e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Source, e.Profile, e.Action)
					if e.Quality != nil && !e.Quality.Passed {
						fmt.Fprintf(cmd.OutOrStdout(), "    quality: %s\n", e.Quality.Summary())
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Profile, "profile", "", "Only entries of this profile")
	cmd.Flags().StringVar(&f.PlanID, "plan", "", "Only entries of this plan")
	cmd.Flags().StringVar(&source, "source", "", "Only entries from this source: route, file, progress or manual")
	cmd.Flags().IntVarP(&f.Limit, "limit", "n", 20, "Max entries")
	return cmd
}

func newSeedRulesCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed-rules",
		Short: "Write the built-in routing rules to the rules file",
		Long: `Writes the default keyword and pattern rules for every built-in profile to
rules_file. The file is also created on first start; use --force to reset
an edited file to the defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.cfg.ProfilePaths().RulesFile
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := profiles.SaveRules(path, profiles.DefaultRules()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default rules to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing rules file")
	return cmd
}
