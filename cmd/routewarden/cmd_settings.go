package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/routewarden/routewarden/pkg/cli"
	"github.com/routewarden/routewarden/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.routewarden/settings.json.

Settings provide defaults for flags and tunables:
  - profile:            Used when -p is not specified
  - snapshot-keep:      Retention count for snapshot prune
  - dns-timeout-ms:     Bound on one domain lookup
  - probe-max-hops:     Hop limit for validate --trace

Examples:
  routewarden settings show
  routewarden settings set profile office
  routewarden settings set snapshot-keep 20
  routewarden settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Printf("Settings file: %s\n\n", settings.DefaultSettingsPath())

		t := cli.NewTable("SETTING", "VALUE")

		printSetting := func(name, value string) {
			if value == "" || value == "0" {
				value = "(not set)"
			}
			t.Row(name, value)
		}

		printSetting("profile", s.DefaultProfile)
		printSetting("profiles-dir", s.ProfilesDir)
		printSetting("snapshots-dir", s.SnapshotsDir)
		printSetting("snapshot-keep", strconv.Itoa(s.SnapshotKeep))
		printSetting("audit-log", s.AuditLogPath)
		printSetting("audit-max-size-mb", strconv.Itoa(s.AuditMaxSizeMB))
		printSetting("audit-max-backups", strconv.Itoa(s.AuditMaxBackups))
		printSetting("dns-timeout-ms", strconv.Itoa(s.DNSTimeoutMS))
		printSetting("probe-max-hops", strconv.Itoa(s.ProbeMaxHops))
		printSetting("probe-timeout-ms", strconv.Itoa(s.ProbeTimeoutMS))

		t.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Long: `Set a persistent setting value.

Available settings:
  profile           - Default profile name (-p flag default)
  profiles-dir      - Profile storage directory
  snapshots-dir     - Snapshot storage directory
  snapshot-keep     - Snapshots retained by prune
  audit-log         - Audit log path
  audit-max-size-mb - Audit log size before rotation
  audit-max-backups - Rotated audit files kept
  dns-timeout-ms    - Domain lookup bound
  probe-max-hops    - Trace hop limit
  probe-timeout-ms  - Per-hop probe bound

Examples:
  routewarden settings set profile office
  routewarden settings set snapshot-keep 20`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			s = &settings.Settings{}
		}
		if err := s.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset all settings to defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &settings.Settings{}
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("Settings cleared")
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsClearCmd)
}
