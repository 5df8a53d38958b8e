// Routewarden - Persistent Route Manager
//
// A CLI tool for managing persistent IPv4 routes declaratively:
//   - Profiles describe the desired route set (JSON/YAML/CSV import)
//   - Dry-run by default (preview the plan, require -x to execute)
//   - Pre-apply snapshots with automatic rollback on failure
//   - Post-apply validation (table check + optional hop trace)
//   - Audit logging of all changes
//
// Usage:
//
//	routewarden [-p <profile>] <verb> [args] [-x]
//
// Examples:
//
//	routewarden -p office preview             # Show what would change
//	routewarden -p office apply               # Same as preview (dry-run)
//	routewarden -p office apply -x            # Execute with snapshot + rollback
//	routewarden -p office validate --trace    # Check table + probe reachability
//	routewarden snapshot list                 # List stored snapshots
//	routewarden rollback <snapshot-id> -x     # Restore a snapshot
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/routewarden/routewarden/pkg/audit"
	"github.com/routewarden/routewarden/pkg/cli"
	"github.com/routewarden/routewarden/pkg/engine"
	"github.com/routewarden/routewarden/pkg/osroute"
	"github.com/routewarden/routewarden/pkg/profile"
	"github.com/routewarden/routewarden/pkg/resolve"
	"github.com/routewarden/routewarden/pkg/settings"
	"github.com/routewarden/routewarden/pkg/snapshot"
	"github.com/routewarden/routewarden/pkg/util"
	"github.com/routewarden/routewarden/pkg/validate"
	"github.com/routewarden/routewarden/pkg/version"
)

var (
	// Context flags
	profileName string // -p, --profile

	// Option flags
	executeMode bool
	verbose     bool
	jsonOutput  bool

	// Global state
	userSettings *settings.Settings
	profiles     *profile.FileStore
	eng          *engine.Engine
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.Red("Error: ")+err.Error())
		os.Exit(exitCode(err))
	}
}

// exitCode maps error classes to distinct exit statuses so scripts can
// tell a rejected plan from a degraded host.
func exitCode(err error) int {
	switch {
	case errors.Is(err, util.ErrRollbackFailed):
		return 4
	case errors.Is(err, util.ErrPermissionDenied):
		return 3
	case errors.Is(err, util.ErrBusy):
		return 2
	default:
		return 1
	}
}

var rootCmd = &cobra.Command{
	Use:               "routewarden",
	Short:             "Persistent Route Manager",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Routewarden manages persistent IPv4 routes from declarative profiles.

A profile lists the routes a host should carry; routewarden diffs it
against the live table and applies the minimal change set. Write
commands preview changes by default — use -x to execute.

  routewarden -p <profile> <verb> [args] [-x]`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isSettingsOrHelp(cmd) {
			return nil
		}

		// Load user settings
		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}

		if profileName == "" {
			profileName = userSettings.DefaultProfile
		}

		// Quiet by default, verbose on -v
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}

		profiles, err = profile.NewFileStore(userSettings.GetProfilesDir())
		if err != nil {
			return fmt.Errorf("initializing profile store: %w", err)
		}

		table := osroute.NewTable()
		snapshots, err := snapshot.NewManager(userSettings.GetSnapshotsDir(), table)
		if err != nil {
			return fmt.Errorf("initializing snapshot store: %w", err)
		}

		resolver := resolve.New(osroute.NewInterfaces())
		if userSettings.DNSTimeoutMS > 0 {
			resolver.WithDNSTimeout(time.Duration(userSettings.DNSTimeoutMS) * time.Millisecond)
		}

		eng = engine.New(engine.Config{
			Table:     table,
			Resolver:  resolver,
			Snapshots: snapshots,
			Validator: validate.NewValidator(table, &validate.ICMPProber{}),
		})

		// Initialize audit logger
		maxSize := int64(userSettings.AuditMaxSizeMB)
		if maxSize <= 0 {
			maxSize = 10
		}
		maxBackups := userSettings.AuditMaxBackups
		if maxBackups <= 0 {
			maxBackups = 10
		}
		auditLogger, err := audit.NewFileLogger(userSettings.GetAuditLogPath(), audit.RotationConfig{
			MaxSize:    maxSize * 1024 * 1024,
			MaxBackups: maxBackups,
		})
		if err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
		} else {
			audit.SetDefaultLogger(auditLogger)
		}

		return nil
	},
}

// isSettingsOrHelp reports commands that must run without host state.
func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "settings", "version", "help", "completion":
			return true
		}
	}
	return false
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "Profile name (or set default via: routewarden settings set profile <name>)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "JSON output")

	for _, cmd := range []*cobra.Command{applyCmd, rollbackCmd} {
		cmd.Flags().BoolVarP(&executeMode, "execute", "x", false, "Execute changes (default is dry-run)")
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "plan", Title: "Plan & Apply:"},
		&cobra.Group{ID: "state", Title: "State Management:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{previewCmd, applyCmd, rollbackCmd, validateCmd} {
		cmd.GroupID = "plan"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{snapshotCmd, profileCmd, interfacesCmd} {
		cmd.GroupID = "state"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{auditCmd, settingsCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version.Version == "dev" {
			fmt.Println("routewarden dev build (use 'make build' for version info)")
		} else {
			fmt.Printf("routewarden %s (%s)\n", version.Version, version.GitCommit)
		}
	},
}

// ============================================================================
// Session Helpers
// ============================================================================

// sessionContext returns a context cancelled on SIGINT/SIGTERM. Sessions
// run on background workers; the interactive flow just waits on the
// result channel while the signal watcher stays responsive.
func sessionContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// requireProfile loads the selected profile and re-validates it. A stored
// profile that fails validation never reaches the engine.
func requireProfile() (*profile.Profile, error) {
	if profileName == "" {
		return nil, fmt.Errorf("profile required: use -p <profile> flag or set a default via settings")
	}
	p, err := profiles.Load(profileName)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", profileName, err)
	}
	return p, nil
}

// printDryRunNotice reminds that nothing was changed.
func printDryRunNotice() {
	if !executeMode {
		fmt.Println("\n" + cli.Yellow("DRY-RUN: No changes applied. Use -x to execute."))
	}
}
