package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/routewarden/routewarden/pkg/cli"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage route profiles",
	Long: `Manage stored route profiles.

A profile is the declarative list of routes a host should carry.
Profiles are stored as JSON; import and export also speak YAML and CSV,
chosen by file extension.

Examples:
  routewarden profile list
  routewarden profile show office
  routewarden profile import routes.yaml --name office
  routewarden profile export office backup.csv`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := profiles.List()
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(names)
		}
		if len(names) == 0 {
			fmt.Println("No profiles stored")
			return nil
		}
		for _, name := range names {
			marker := " "
			if name == userSettings.DefaultProfile {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, name)
		}
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a profile's routes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := profileName
		if len(args) > 0 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("profile required: provide as argument or use -p")
		}
		p, err := profiles.Load(name)
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(p)
		}

		fmt.Printf("Profile %s (%d routes, modified %s)\n\n",
			cli.Bold(p.Name), len(p.Routes), p.LastModified.Format("2006-01-02 15:04:05"))

		t := cli.NewTable("", "TARGET", "GATEWAY", "INTERFACE", "METRIC", "GROUP", "DESCRIPTION")
		for _, r := range p.Routes {
			enabled := cli.Green("on")
			if !r.Enabled {
				enabled = cli.Dim("off")
			}
			metric := ""
			if r.Metric > 0 {
				metric = fmt.Sprintf("%d", r.Metric)
			}
			dest := r.Target
			if !r.IsDomain() {
				if d, err := r.DestinationCIDR(); err == nil {
					dest = d
				}
			}
			t.Row(enabled, dest, r.Gateway, r.Interface, metric, r.Group, r.Description)
		}
		t.Flush()

		for _, w := range p.Warnings() {
			fmt.Println("\n" + cli.Yellow("WARNING: ") + w)
		}
		return nil
	},
}

var profileImportName string

var profileImportCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import a profile from JSON, YAML, or CSV",
	Long: `Import a profile from a file. The format is chosen by extension
(.json, .yaml/.yml, .csv). The imported profile is validated before it
is stored; a malformed route rejects the whole import.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		name := profileImportName
		if name == "" {
			base := filepath.Base(path)
			name = strings.TrimSuffix(base, filepath.Ext(base))
		}

		p, err := profiles.Import(path, name)
		if err != nil {
			return err
		}
		fmt.Printf("Profile %s imported (%d routes)\n", cli.Bold(p.Name), len(p.Routes))
		for _, w := range p.Warnings() {
			fmt.Println(cli.Yellow("WARNING: ") + w)
		}
		return nil
	},
}

var profileExportCmd = &cobra.Command{
	Use:   "export <name> <path>",
	Short: "Export a profile to JSON, YAML, or CSV",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := profiles.Export(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Profile %s exported to %s\n", args[0], args[1])
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := profiles.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Profile %s deleted\n", args[0])
		return nil
	},
}

func init() {
	profileImportCmd.Flags().StringVar(&profileImportName, "name", "", "Profile name (default derived from the file name)")
	profileCmd.AddCommand(profileListCmd, profileShowCmd, profileImportCmd, profileExportCmd, profileDeleteCmd)
}
