package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/routewarden/routewarden/pkg/cli"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage route table snapshots",
	Long: `Manage stored snapshots of the persistent route table.

Every apply captures a snapshot automatically before mutating anything;
this command manages those captures plus any taken manually.

Examples:
  routewarden snapshot create
  routewarden snapshot list
  routewarden snapshot show 3f1c...
  routewarden snapshot prune --keep 10`,
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Capture the current route table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := sessionContext()
		defer cancel()

		snap, err := eng.Snapshots().Capture(ctx)
		if err != nil {
			return fmt.Errorf("capturing snapshot: %w", err)
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(snap)
		}
		fmt.Printf("Snapshot %s captured (%d entries)\n", cli.Bold(snap.ID), len(snap.Entries))
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		metas, err := eng.Snapshots().List()
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(metas)
		}
		if len(metas) == 0 {
			fmt.Println("No snapshots stored")
			return nil
		}
		t := cli.NewTable("ID", "CREATED", "ENTRIES")
		for _, m := range metas {
			t.Row(m.ID, m.CreatedAt.Format("2006-01-02 15:04:05"), fmt.Sprintf("%d", m.Entries))
		}
		t.Flush()
		return nil
	},
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show <snapshot-id>",
	Short: "Show a snapshot's entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := eng.Snapshots().Load(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(snap)
		}
		fmt.Printf("Snapshot %s, captured %s\n\n", cli.Bold(snap.ID), snap.CreatedAt.Format("2006-01-02 15:04:05"))
		t := cli.NewTable("DESTINATION", "GATEWAY", "IFINDEX", "METRIC", "PROTO")
		for _, e := range snap.Entries {
			t.Row(e.Dest, e.Gateway, fmt.Sprintf("%d", e.IfIndex), fmt.Sprintf("%d", e.Metric), fmt.Sprintf("%d", e.Protocol))
		}
		t.Flush()
		return nil
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <snapshot-id>",
	Short: "Delete a stored snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := eng.Snapshots().Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Snapshot %s deleted\n", args[0])
		return nil
	},
}

var snapshotPruneKeep int

var snapshotPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old snapshots beyond the retention count",
	RunE: func(cmd *cobra.Command, args []string) error {
		keep := snapshotPruneKeep
		if keep <= 0 {
			keep = userSettings.GetSnapshotKeep()
		}
		removed, err := eng.Snapshots().Prune(keep)
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d snapshot(s), kept the newest %d\n", removed, keep)
		return nil
	},
}

func init() {
	snapshotPruneCmd.Flags().IntVar(&snapshotPruneKeep, "keep", 0, "Snapshots to retain (default from settings)")
	snapshotCmd.AddCommand(snapshotCreateCmd, snapshotListCmd, snapshotShowCmd, snapshotDeleteCmd, snapshotPruneCmd)
}
