package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/audit"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/cli"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/discovery"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scan the fleet and consolidate bridge domains into the database",
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
		exec, err := a.executor()
		if err != nil {
			return err
		}
		db, err := a.store()
		if err != nil {
			return err
		}
		who, err := actingUser()
		if err != nil {
			return err
		}

		engine := discovery.New(inv, exec, db, a.cfg.GlobalVLANs)
		report, err := engine.FullScan(cmd.Context())
		logErr := a.auditLog().Log(audit.NewEvent(who, audit.ActionDiscover, "").
			WithDetail("devices", strconv.Itoa(inv.Len())).WithError(err))
		if logErr != nil {
			util.Warnf("audit log write failed: %v", logErr)
		}
		if err != nil {
			return err
		}

		table := cli.NewTable("NAME", "USER", "VLAN", "TYPE", "TOPOLOGY", "DEVICES")
		for _, rec := range report.Records {
			table.Row(rec.Name, rec.Username, strconv.Itoa(rec.VlanID),
				string(rec.Type), string(rec.Topology), strconv.Itoa(len(rec.Devices())))
		}
		table.Flush()

		fmt.Printf("\n%d bridge domains from %d devices", len(report.Records), len(report.DevicesScanned))
		if len(report.DevicesFailed) > 0 {
			fmt.Printf(" (%d unreachable: %v)", len(report.DevicesFailed), report.DevicesFailed)
		}
		if report.StaleMarked > 0 {
			fmt.Printf(", %d marked stale", report.StaleMarked)
		}
		fmt.Println()

		for _, w := range report.Warnings {
			util.Warnf("%s", w)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
