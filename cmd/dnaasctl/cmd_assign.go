package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/cli"
)

var flagAssignReason string

var assignCmd = &cobra.Command{
	Use:   "assign <bridge-domain>",
	Short: "Take an exclusive hold on a bridge domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ws, err := a.workspace()
		if err != nil {
			return err
		}
		who, err := actingUser()
		if err != nil {
			return err
		}

		if _, err := ws.Assign(cmd.Context(), who, args[0], flagAssignReason); err != nil {
			return err
		}
		fmt.Printf("%s assigned to %s\n", args[0], who)
		return nil
	},
}

var releaseCmd = &cobra.Command{
	Use:   "release <bridge-domain>",
	Short: "Release a held bridge domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ws, err := a.workspace()
		if err != nil {
			return err
		}
		who, err := actingUser()
		if err != nil {
			return err
		}

		if err := ws.Release(cmd.Context(), who, args[0]); err != nil {
			return err
		}
		fmt.Printf("%s released\n", args[0])
		return nil
	},
}

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "List the bridge domains you hold",
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
		who, err := actingUser()
		if err != nil {
			return err
		}

		list, err := db.ListAssignedTo(cmd.Context(), who)
		if err != nil {
			return err
		}
		table := cli.NewTable("NAME", "VLAN", "TYPE", "STATUS")
		for _, sum := range list {
			table.Row(sum.Name, strconv.Itoa(sum.VlanID), string(sum.Type), sum.DeploymentStatus)
		}
		table.Flush()
		if len(list) == 0 {
			fmt.Printf("nothing assigned to %s\n", who)
		}
		return nil
	},
}

func init() {
	assignCmd.Flags().StringVar(&flagAssignReason, "reason", "", "why you need this bridge domain")
	rootCmd.AddCommand(assignCmd, releaseCmd, mineCmd)
}
