package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/routewarden/routewarden/pkg/audit"
	"github.com/routewarden/routewarden/pkg/cli"
)

var (
	auditProfile   string
	auditUser      string
	auditOperation string
	auditLast      string
	auditLimit     int
	auditFailures  bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View audit logs",
	Long: `View audit logs of route changes.

Every apply, rollback, and validation session is logged with:
  - Timestamp and duration
  - User who ran the session
  - Profile and snapshot involved
  - Per-route operations and outcomes
  - Success/failure status and whether a rollback ran

Examples:
  routewarden audit --last 24h
  routewarden audit --operation apply --failed
  routewarden audit --user alice --limit 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.Filter{
			Profile:     auditProfile,
			User:        auditUser,
			Operation:   auditOperation,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
		}

		if auditLast != "" {
			duration, err := time.ParseDuration(auditLast)
			if err != nil {
				return fmt.Errorf("invalid duration: %s", auditLast)
			}
			filter.StartTime = time.Now().Add(-duration)
		}

		events, err := audit.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(events)
		}

		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tUSER\tPROFILE\tOPERATION\tOPS\tSTATUS")
		fmt.Fprintln(w, "---------\t----\t-------\t---------\t---\t------")

		for _, event := range events {
			status := cli.Green("ok")
			switch {
			case event.RolledBack:
				status = cli.Yellow("rolled-back")
			case !event.Success:
				status = cli.Red("failed")
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				event.Timestamp.Format("2006-01-02 15:04:05"),
				event.User,
				event.Profile,
				event.Operation,
				len(event.Operations),
				status)
		}
		return w.Flush()
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditProfile, "profile-name", "", "Filter by profile")
	auditCmd.Flags().StringVar(&auditUser, "user", "", "Filter by user")
	auditCmd.Flags().StringVar(&auditOperation, "operation", "", "Filter by operation (apply, rollback, validate)")
	auditCmd.Flags().StringVar(&auditLast, "last", "", "Only events within duration (e.g. 24h)")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum events to show")
	auditCmd.Flags().BoolVar(&auditFailures, "failed", false, "Only failed events")
}
