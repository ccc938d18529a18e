package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/cli"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/deploy"
)

var bdCmd = &cobra.Command{
	Use:   "bd",
	Short: "Inspect bridge domains",
}

var bdListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all known bridge domains",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		db, err := a.store()
		if err != nil {
			return err
		}
		list, err := db.ListBridgeDomains(cmd.Context())
		if err != nil {
			return err
		}

		table := cli.NewTable("NAME", "USER", "VLAN", "TYPE", "SCOPE", "STATUS", "ASSIGNED TO")
		for _, sum := range list {
			table.Row(sum.Name, sum.Username, strconv.Itoa(sum.VlanID),
				string(sum.Type), string(sum.Scope), sum.DeploymentStatus, sum.AssignedTo)
		}
		table.Flush()
		if len(list) == 0 {
			fmt.Println("no bridge domains; run 'dnaasctl discover' first")
		}
		return nil
	},
}

var bdShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one bridge domain with its member interfaces",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		db, err := a.store()
		if err != nil {
			return err
		}
		rec, _, err := db.GetBridgeDomain(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Name:      %s\n", rec.Name)
		fmt.Printf("User:      %s\n", rec.Username)
		fmt.Printf("VLAN:      %d\n", rec.VlanID)
		if rec.OuterVlan > 0 {
			fmt.Printf("QinQ:      outer %d inner %d\n", rec.OuterVlan, rec.InnerVlan)
		}
		fmt.Printf("Type:      %s\n", rec.Type)
		fmt.Printf("Topology:  %s\n", rec.Topology)
		fmt.Printf("Scope:     %s\n", rec.Scope)
		if len(rec.Consolidation.OriginalNames) > 1 {
			fmt.Printf("Merged:    %v\n", rec.Consolidation.OriginalNames)
		}
		fmt.Println()

		table := cli.NewTable("DEVICE", "INTERFACE", "TYPE", "VLAN", "ADMIN", "OPER", "L2")
		for _, i := range rec.Interfaces {
			l2 := "no"
			if i.L2Service {
				l2 = "yes"
			}
			table.Row(i.Device, i.Name, string(i.Type), strconv.Itoa(i.VlanID),
				i.AdminStatus, i.OperStatus, l2)
		}
		table.Flush()
		return nil
	},
}

var bdConfigCmd = &cobra.Command{
	Use:   "config <name>",
	Short: "Render the full command set that realizes a bridge domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		db, err := a.store()
		if err != nil {
			return err
		}
		rec, _, err := db.GetBridgeDomain(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		plan, err := deploy.BuildPlan(rec)
		if err != nil {
			return err
		}
		for _, dev := range plan.Devices() {
			fmt.Printf("%s:\n", dev)
			for _, c := range plan[dev] {
				fmt.Printf("  %s\n", c)
			}
		}
		return nil
	},
}

func init() {
	bdCmd.AddCommand(bdListCmd, bdShowCmd, bdConfigCmd)
	rootCmd.AddCommand(bdCmd)
}
