package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/cli"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Inspect the device inventory",
}

var deviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List inventory devices as consolidated chassis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		inv, err := a.inventory()
		if err != nil {
			return err
		}

		table := cli.NewTable("CHASSIS", "ROLE", "HOST", "VARIANTS")
		for _, c := range inv.Chassis() {
			table.Row(c.Name, c.Info.Role, c.Info.Host, strings.Join(c.Variants, ","))
		}
		table.Flush()
		return nil
	},
}

var deviceCheckCmd = &cobra.Command{
	Use:   "check [device...]",
	Short: "Probe device reachability over TCP",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		inv, err := a.inventory()
		if err != nil {
			return err
		}

		names := args
		if len(names) == 0 {
			names = inv.Names()
		}

		table := cli.NewTable("DEVICE", "ADDRESS", "REACHABLE")
		for _, name := range names {
			info, ok := inv.Get(name)
			if !ok {
				table.Row(name, "-", "not in inventory")
				continue
			}
			state := "no"
			if inv.Reachable(name, a.cfg.ConnectTimeout()) {
				state = "yes"
			}
			table.Row(name, info.Addr(), state)
		}
		table.Flush()
		return nil
	},
}

func init() {
	deviceCmd.AddCommand(deviceListCmd, deviceCheckCmd)
	rootCmd.AddCommand(deviceCmd)
}
