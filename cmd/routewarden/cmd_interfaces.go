package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/routewarden/routewarden/pkg/cli"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List live network interfaces",
	Long: `List the host's network interfaces with their indices and IPv4
addresses. Profile routes reference interfaces by name; this shows what
those names currently resolve to.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ifaces, err := eng.Resolver().ListInterfaces()
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(ifaces)
		}

		t := cli.NewTable("NAME", "INDEX", "STATE", "ADDRESSES")
		for _, i := range ifaces {
			state := cli.Green("up")
			if !i.Up {
				state = cli.Red("down")
			}
			t.Row(i.Name, fmt.Sprintf("%d", i.Index), state, strings.Join(i.Addresses, ", "))
		}
		t.Flush()
		return nil
	},
}
