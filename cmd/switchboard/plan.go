package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/memtools"
	"github.com/HendryAvila/switchboard/internal/plans"
	"github.com/HendryAvila/switchboard/internal/server"
	"github.com/HendryAvila/switchboard/internal/templates"
)

func newPlanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Create, inspect and advance project plans",
	}
	cmd.AddCommand(
		newPlanCreateCmd(a),
		newPlanProgressCmd(a),
		newPlanShowCmd(a),
		newPlanStatusCmd(a),
		newPlanUseCmd(a),
		newPlanListCmd(a),
	)
	return cmd
}

// withComponents builds the core, runs fn and closes it.
func (a *app) withComponents(fn func(c *server.Components) error) error {
	c, err := a.build()
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func newPlanCreateCmd(a *app) *cobra.Command {
	var (
		file   string
		title  string
		phases []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a plan from a YAML file or from flags",
		Example: `  switchboard plan create --file plan.yaml
  switchboard plan create --title "Demand Forecast" \
      --phase "Data Analysis: Load data, EDA" \
      --phase "Modeling: Train model"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := planInput(file, title, phases)
			if err != nil {
				return err
			}
			return a.withComponents(func(c *server.Components) error {
				p, err := c.Store.CreatePlan(cmd.Context(), in)
				if err != nil {
					return err
				}
				if a.jsonOut {
					return writeJSON(cmd.OutOrStdout(), p)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created plan %q (%s) with %d phases\n", p.Title, p.ID, len(p.Phases))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML (or JSON) plan definition; - reads stdin")
	cmd.Flags().StringVar(&title, "title", "", "Plan title")
	cmd.Flags().StringArrayVar(&phases, "phase", nil, `Phase as "Name: task, task"; repeat in order`)
	return cmd
}

// planInput reads a plan definition from file, or builds one from the
// title and phase flags.
func planInput(file, title string, phaseFlags []string) (memory.PlanInput, error) {
	var in memory.PlanInput
	if file != "" {
		var (
			data []byte
			err  error
		)
		if file == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(file)
		}
		if err != nil {
			return in, fmt.Errorf("reading plan: %w", err)
		}
		if err := yaml.Unmarshal(data, &in); err != nil {
			return in, fmt.Errorf("parsing plan %s: %w", file, err)
		}
	}
	if title != "" {
		in.Title = title
	}
	for _, f := range phaseFlags {
		name, tasks, ok := strings.Cut(f, ":")
		if !ok {
			return in, fmt.Errorf("phase %q: want \"Name: task, task\"", f)
		}
		spec := plans.PhaseSpec{Name: strings.TrimSpace(name)}
		for _, t := range strings.Split(tasks, ",") {
			if t = strings.TrimSpace(t); t != "" {
				spec.Tasks = append(spec.Tasks, t)
			}
		}
		in.Phases = append(in.Phases, spec)
	}
	if in.Title == "" && len(in.Phases) == 0 {
		return in, errors.New("pass --file, or --title with at least one --phase")
	}
	return in, nil
}

// planOrActive loads the plan named by id, or the active plan.
func planOrActive(ctx context.Context, store *memory.Store, id string) (*plans.Plan, error) {
	if id != "" {
		return store.GetPlan(ctx, id)
	}
	p, err := store.ActivePlan(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.New("no active plan: pass --plan or create one with \"switchboard plan create\"")
	}
	return p, nil
}

func newPlanProgressCmd(a *app) *cobra.Command {
	var planID string
	cmd := &cobra.Command{
		Use:   "progress <task>...",
		Short: "Record completed tasks on a plan",
		Long: `Marks tasks of the active phase completed. A phase completes once all of its
tasks are done, and the next phase becomes active. Tasks of later phases
are reported as not yet reachable.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withComponents(func(c *server.Components) error {
				p, err := planOrActive(cmd.Context(), c.Store, planID)
				if err != nil {
					return err
				}
				res, err := c.Store.UpdateProgress(cmd.Context(), p.ID, args)
				if err != nil {
					return err
				}
				if res.Progress.Changed() {
					if _, err := c.Store.AppendActivity(cmd.Context(), memory.ActivityEntry{
						Profile: memtools.ProgressProfile,
						Action:  memtools.ProgressAction(res.Progress),
						PlanID:  p.ID,
						Source:  memory.SourceProgress,
					}); err != nil {
						a.log.Warn("record progress activity failed", zap.Error(err))
					}
				}
				if a.jsonOut {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				printProgress(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&planID, "plan", "", "Plan id (default: the active plan)")
	return cmd
}

func printProgress(w io.Writer, res *memory.ProgressResult) {
	pr := res.Progress
	if !pr.Changed() {
		fmt.Fprintln(w, "No change.")
	}
	if len(pr.Merged) > 0 {
		fmt.Fprintf(w, "Recorded:          %s\n", strings.Join(pr.Merged, ", "))
	}
	if len(pr.Ignored) > 0 {
		fmt.Fprintf(w, "Not yet reachable: %s\n", strings.Join(pr.Ignored, ", "))
	}
	if len(pr.Advanced) > 0 {
		fmt.Fprintf(w, "Phases completed:  %s\n", strings.Join(pr.Advanced, ", "))
	}
	fmt.Fprintf(w, "Overall:           %.0f%%\n", res.Percent)
	if pr.PlanCompleted {
		fmt.Fprintln(w, "The plan is now completed.")
	} else if ph := plans.ActivePhase(res.Plan); ph != nil {
		fmt.Fprintf(w, "Active phase:      %s (%d/%d tasks)\n", ph.Name, len(ph.CompletedTasks), len(ph.Tasks))
	}
}

func newPlanShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [plan-id]",
		Short: "Show a plan (default: the active plan)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			return a.withComponents(func(c *server.Components) error {
				p, err := planOrActive(cmd.Context(), c.Store, id)
				if err != nil {
					return err
				}
				if a.jsonOut {
					pm, err := c.Store.PlanMemory(cmd.Context(), p.ID)
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), pm)
				}
				report, err := c.Renderer.Render(templates.PlanReport, templates.NewPlanData(p))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}

func newPlanStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "status <plan-id> <active|completed|cancelled>",
		Short:     "Change a plan's lifecycle status",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(plans.StatusActive), string(plans.StatusCompleted), string(plans.StatusCancelled)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withComponents(func(c *server.Components) error {
				p, err := c.Store.SetPlanStatus(cmd.Context(), args[0], plans.Status(args[1]))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Plan %q (%s) is now %s.\n", p.Title, p.ID, p.Status)
				return nil
			})
		},
	}
}

func newPlanUseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "use <plan-id>",
		Short: "Make an active plan the one requests are validated against",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withComponents(func(c *server.Components) error {
				if err := c.Store.SetCurrentPlan(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Current plan is now %s.\n", args[0])
				return nil
			})
		},
	}
}

func newPlanListCmd(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plans, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withComponents(func(c *server.Components) error {
				list, err := c.Store.ListPlans(cmd.Context(), plans.Status(status))
				if err != nil {
					return err
				}
				if a.jsonOut {
					if list == nil {
						list = []*plans.Plan{}
					}
					return writeJSON(cmd.OutOrStdout(), list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No plans found.")
					return nil
				}
				active, err := c.Store.ActivePlan(cmd.Context())
				if err != nil {
					return err
				}
				for _, p := range list {
					marker := ""
					if active != nil && active.ID == p.ID {
						marker = "  <- active"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s %3.0f%%  %s%s\n", p.ID, p.Status, plans.Percent(p), p.Title, marker)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status: active, completed or cancelled")
	return cmd
}
