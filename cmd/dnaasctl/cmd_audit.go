package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/audit"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/cli"
)

var (
	flagAuditUser   string
	flagAuditAction string
	flagAuditBD     string
	flagAuditLimit  int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the change-attribution log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		events, err := a.auditLog().Query(audit.Filter{
			User:         flagAuditUser,
			Action:       audit.Action(flagAuditAction),
			BridgeDomain: flagAuditBD,
			Limit:        flagAuditLimit,
		})
		if err != nil {
			return err
		}

		table := cli.NewTable("TIME", "USER", "ACTION", "BRIDGE DOMAIN", "OK", "DETAIL")
		for _, ev := range events {
			ok := "yes"
			detail := ""
			if !ev.Success {
				ok = "no"
				detail = ev.Error
			}
			table.Row(ev.Timestamp.Format("2006-01-02 15:04:05"), ev.User,
				string(ev.Action), ev.BridgeDomain, ok, detail)
		}
		table.Flush()
		if len(events) == 0 {
			fmt.Println("no matching audit events")
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().StringVar(&flagAuditUser, "by", "", "filter by user")
	auditCmd.Flags().StringVar(&flagAuditAction, "action", "", "filter by action (assign, release, edit, deploy, discover, drift_resolve)")
	auditCmd.Flags().StringVar(&flagAuditBD, "bd", "", "filter by bridge domain")
	auditCmd.Flags().IntVar(&flagAuditLimit, "limit", 50, "max events to show")
	rootCmd.AddCommand(auditCmd)
}
