package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/routewarden/routewarden/pkg/apply"
	"github.com/routewarden/routewarden/pkg/cli"
	"github.com/routewarden/routewarden/pkg/engine"
	"github.com/routewarden/routewarden/pkg/route"
	"github.com/routewarden/routewarden/pkg/validate"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the route changes the profile implies",
	Long: `Resolve the profile and diff it against the live route table.

The plan shows only what would change: routes already present are
no-ops, and routes not installed by routewarden are never deleted.
Routes whose interface or domain cannot be resolved are flagged and
excluded; they do not abort the preview.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prof, err := requireProfile()
		if err != nil {
			return err
		}

		ctx, cancel := sessionContext()
		defer cancel()

		res := <-engine.Go(ctx, func(ctx context.Context) (*engine.PreviewResult, error) {
			return eng.Preview(ctx, prof)
		})
		if res.Err != nil {
			return res.Err
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(res.Value)
		}
		printPreview(res.Value)
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the profile's routes to the live table",
	Long: `Compute the plan and execute it against the OS route table.

Without -x this is identical to preview. With -x:
  1. the pre-apply table is captured as a snapshot
  2. operations run in order (adds before deletes, default-route
     replacement sequenced add-new-then-delete-old)
  3. any failure rolls the table back to the snapshot automatically
  4. the applied routes are re-read and validated

Examples:
  routewarden -p office apply        # Dry-run
  routewarden -p office apply -x     # Execute`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prof, err := requireProfile()
		if err != nil {
			return err
		}

		ctx, cancel := sessionContext()
		defer cancel()

		if !executeMode {
			res := <-engine.Go(ctx, func(ctx context.Context) (*engine.PreviewResult, error) {
				return eng.Preview(ctx, prof)
			})
			if res.Err != nil {
				return res.Err
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(res.Value)
			}
			printPreview(res.Value)
			printDryRunNotice()
			return nil
		}

		res := <-engine.Go(ctx, func(ctx context.Context) (*engine.ApplyResult, error) {
			return eng.Apply(ctx, prof)
		})
		result, applyErr := res.Value, res.Err

		if jsonOutput && result != nil {
			if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
				return err
			}
			return applyErr
		}

		if result != nil {
			printPreview(result.Preview)
			if result.Report != nil {
				printApplyReport(result.Report)
			}
			if result.Validation != nil {
				printValidationSummary(result.Validation)
			}
		}
		return applyErr
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <snapshot-id>",
	Short: "Restore the route table from a snapshot",
	Long: `Restore the persistent route table to a stored snapshot.

The restore computes a plan treating the snapshot as the desired state
and executes it through the same path as a forward apply, with the same
ordering guarantees. Without -x, shows the restore plan only.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		ctx, cancel := sessionContext()
		defer cancel()

		if !executeMode {
			res := <-engine.Go(ctx, func(ctx context.Context) (*route.Plan, error) {
				return eng.PreviewRestore(ctx, id)
			})
			if res.Err != nil {
				return res.Err
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(res.Value)
			}
			fmt.Printf("Restore plan for snapshot %s:\n", cli.Bold(id))
			printPlan(res.Value)
			printDryRunNotice()
			return nil
		}

		res := <-engine.Go(ctx, func(ctx context.Context) (*apply.RestoreReport, error) {
			return eng.Rollback(ctx, id)
		})
		report, rbErr := res.Value, res.Err

		if jsonOutput && report != nil {
			if err := json.NewEncoder(os.Stdout).Encode(report); err != nil {
				return err
			}
			return rbErr
		}

		if report != nil {
			printOperationResults(report.Results)
			if report.Success {
				fmt.Println("\n" + cli.Green("Snapshot restored successfully."))
			}
		}
		if rbErr != nil {
			fmt.Fprintln(os.Stderr, cli.Red("ROLLBACK FAILED — the route table may be in an undefined state."))
			fmt.Fprintln(os.Stderr, "Inspect the live table and restore manually or retry with a different snapshot.")
		}
		return rbErr
	},
}

var validateTrace bool

func init() {
	validateCmd.Flags().BoolVar(&validateTrace, "trace", false, "Probe each destination with a bounded hop trace")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the profile's routes against the live table",
	Long: `Verify each resolved route of the profile.

Table check: a route is verified when a live entry matches destination,
mask, gateway, and interface. With --trace, each destination is also
probed with a bounded hop trace; a route can be present in the table yet
unreachable, and the two signals are reported separately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prof, err := requireProfile()
		if err != nil {
			return err
		}

		opts := validate.Options{Trace: validateTrace, Probe: validate.DefaultProbeOptions()}
		if userSettings.ProbeMaxHops > 0 {
			opts.Probe.MaxHops = userSettings.ProbeMaxHops
		}
		if userSettings.ProbeTimeoutMS > 0 {
			opts.Probe.HopTimeout = time.Duration(userSettings.ProbeTimeoutMS) * time.Millisecond
		}

		ctx, cancel := sessionContext()
		defer cancel()

		res := <-engine.Go(ctx, func(ctx context.Context) (*validate.Report, error) {
			report, _, err := eng.Validate(ctx, prof, opts)
			return report, err
		})
		if res.Err != nil {
			return res.Err
		}
		report := res.Value

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(report)
		}

		t := cli.NewTable("STATUS", "DESTINATION", "IN TABLE", "FIRST HOP", "LATENCY", "DETAIL")
		for _, r := range report.Results {
			inTable := "no"
			if r.TablePresent {
				inTable = "yes"
			}
			latency := ""
			if r.Latency > 0 {
				latency = r.Latency.Round(time.Millisecond).String()
			}
			t.Row(colorStatus(r.Status), r.Dest, inTable, r.FirstHop, latency, r.Detail)
		}
		t.Flush()

		counts := report.Counts()
		fmt.Printf("\n%d verified, %d missing, %d unreachable (%s)\n",
			counts[validate.StatusVerified], counts[validate.StatusMissing],
			counts[validate.StatusUnreachable], report.Duration.Round(time.Millisecond))

		if counts[validate.StatusMissing] > 0 || counts[validate.StatusUnreachable] > 0 {
			return fmt.Errorf("%d route(s) failed validation", counts[validate.StatusMissing]+counts[validate.StatusUnreachable])
		}
		return nil
	},
}

func colorStatus(s validate.Status) string {
	switch s {
	case validate.StatusVerified:
		return cli.Green(string(s))
	case validate.StatusMissing:
		return cli.Red(string(s))
	default:
		return cli.Yellow(string(s))
	}
}

// ============================================================================
// Rendering
// ============================================================================

func printPreview(pv *engine.PreviewResult) {
	for _, w := range pv.Warnings {
		fmt.Println(cli.Yellow("WARNING: ") + w)
	}
	for _, s := range pv.Skipped {
		fmt.Printf("%s %s: %v\n", cli.Yellow("SKIPPED"), s.Spec.Key(), s.Err)
	}
	if len(pv.Warnings) > 0 || len(pv.Skipped) > 0 {
		fmt.Println()
	}

	fmt.Printf("Plan for profile %s:\n", cli.Bold(pv.Profile))
	printPlan(pv.Plan)
}

func printPlan(plan *route.Plan) {
	if plan.IsEmpty() {
		fmt.Println("  No changes — live table already matches.")
		return
	}

	t := cli.NewTable("ACTION", "DESTINATION", "GATEWAY", "METRIC").WithPrefix("  ")
	for _, row := range plan.Rows() {
		switch row.Action {
		case "add":
			t.Row(cli.Green("add"), row.Dest, row.New.Gateway, fmt.Sprintf("%d", row.New.Metric))
		case "modify":
			t.Row(cli.Yellow("modify"), row.Dest,
				fmt.Sprintf("%s -> %s", row.Old.Gateway, row.New.Gateway),
				fmt.Sprintf("%d -> %d", row.Old.Metric, row.New.Metric))
		default:
			t.Row(cli.Red("delete"), row.Dest, row.Old.Gateway, fmt.Sprintf("%d", row.Old.Metric))
		}
	}
	t.Flush()
	fmt.Printf("\n%d to add, %d to delete (state %s)\n",
		len(plan.Adds()), len(plan.Deletes()), plan.Fingerprint[:12])
}

func printApplyReport(report *apply.Report) {
	fmt.Println()
	printOperationResults(report.Results)

	if report.SnapshotID != "" {
		fmt.Printf("\nPre-apply snapshot: %s\n", report.SnapshotID)
	}
	if report.Success {
		fmt.Println(cli.Green("Changes applied successfully."))
		return
	}
	if report.Rollback != nil {
		if report.Rollback.Restored {
			fmt.Println(cli.Yellow("Apply failed — pre-apply state restored automatically."))
		} else {
			fmt.Println(cli.Red("Apply failed AND rollback failed — manual intervention required."))
			fmt.Printf("Snapshot %s is preserved; retry with: routewarden rollback %s -x\n",
				report.Rollback.SnapshotID, report.Rollback.SnapshotID)
		}
	}
}

func printOperationResults(results []apply.OperationResult) {
	for _, r := range results {
		switch {
		case !r.Ok():
			fmt.Printf("  %s %s: %s\n", cli.Red("FAIL"), r.Op.String(), r.Error)
		case r.Outcome == "applied":
			fmt.Printf("  %s %s\n", cli.Green("OK"), r.Op.String())
		default:
			fmt.Printf("  %s %s (%s)\n", cli.Dim("noop"), r.Op.String(), r.Outcome)
		}
	}
}

func printValidationSummary(report *validate.Report) {
	counts := report.Counts()
	total := len(report.Results)
	if counts[validate.StatusVerified] == total {
		fmt.Printf("Validation: %s (%d/%d routes in table)\n", cli.Green("ok"), total, total)
		return
	}
	fmt.Printf("Validation: %s (%d/%d verified, %d missing)\n",
		cli.Yellow("degraded"), counts[validate.StatusVerified], total, counts[validate.StatusMissing])
}
