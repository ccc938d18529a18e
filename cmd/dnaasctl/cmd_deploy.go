package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/deploy"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/discovery"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/workspace"
)

var (
	flagDryRun    bool
	flagAddIf     []string
	flagRemoveIf  []string
	flagSetVlan   []string
	flagMoveIf    []string
	flagNoConfirm bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy <bridge-domain>",
	Short: "Push a bridge domain to the fleet (commit-check everywhere, then commit)",
	Long: `Deploy validates the full command plan with "commit check" on every
member device before committing anywhere. A device that reports no
configuration changes has drifted: its live config already differs from
the database, and the deployment stops unless you choose otherwise.

Interface references use DEVICE:INTERFACE, e.g.
DNAAS-LEAF-B15:ge100-0/0/31.`,
	Args: cobra.ExactArgs(1),
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
		db, err := a.store()
		if err != nil {
			return err
		}
		exec, err := a.executor()
		if err != nil {
			return err
		}
		inv, err := a.inventory()
		if err != nil {
			return err
		}
		who, err := actingUser()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		sess, err := ws.StartEdit(ctx, who, args[0])
		if err != nil {
			return err
		}
		if err := stageFlags(ws, sess); err != nil {
			return err
		}
		rec, _, err := db.GetBridgeDomain(ctx, args[0])
		if err != nil {
			return err
		}

		o := deploy.New(exec, db, a.auditLog())
		o.SetSyncer(deploy.NewSyncer(discovery.New(inv, exec, db, a.cfg.GlobalVLANs), db))
		o.SetPolicy(workspace.Policy{Admins: a.cfg.Admins, UserVLANs: a.cfg.UserVLANs})
		if !flagNoConfirm {
			o.SetResolver(promptResolver)
		}

		out, err := o.Deploy(ctx, rec, sess.Changes, deploy.Options{
			User:      who,
			SessionID: sess.ID,
			DryRun:    flagDryRun,
		})
		if err != nil {
			if out != nil && len(out.RollbackPlan) > 0 {
				fmt.Fprintln(os.Stderr, "\nmanual rollback plan for devices that committed:")
				for _, dev := range out.RollbackPlan.Devices() {
					fmt.Fprintf(os.Stderr, "%s:\n", dev)
					for _, c := range out.RollbackPlan[dev] {
						fmt.Fprintf(os.Stderr, "  %s\n", c)
					}
				}
			}
			return err
		}

		switch {
		case out.NoOp:
			fmt.Println("nothing to deploy")
		case out.DryRun:
			for _, dev := range out.Plan.Devices() {
				fmt.Printf("%s:\n", dev)
				for _, c := range out.Plan[dev] {
					fmt.Printf("  %s\n", c)
				}
			}
		default:
			fmt.Printf("deployed %s to %d devices (deployment %d)\n",
				args[0], len(out.Plan), out.DeploymentID)
			if len(out.Skipped) > 0 {
				fmt.Printf("skipped (drift): %v\n", out.Skipped)
			}
		}
		return nil
	},
}

// stageFlags turns --add/--remove values into session changes.
func stageFlags(ws *workspace.Manager, sess *workspace.EditSession) error {
	for _, ref := range flagAddIf {
		dev, iface, err := splitRef(ref)
		if err != nil {
			return err
		}
		if err := ws.AddChange(sess, workspace.Change{
			Op: workspace.OpAddInterface, Device: dev, Interface: iface,
		}); err != nil {
			return err
		}
	}
	for _, ref := range flagRemoveIf {
		dev, iface, err := splitRef(ref)
		if err != nil {
			return err
		}
		if err := ws.AddChange(sess, workspace.Change{
			Op: workspace.OpRemoveInterface, Device: dev, Interface: iface,
		}); err != nil {
			return err
		}
	}
	for _, spec := range flagSetVlan {
		ref, vlanStr, ok := strings.Cut(spec, "=")
		if !ok {
			return fmt.Errorf("bad --set-vlan value %q, want DEVICE:INTERFACE=VLAN", spec)
		}
		dev, iface, err := splitRef(ref)
		if err != nil {
			return err
		}
		vlan, err := strconv.Atoi(vlanStr)
		if err != nil {
			return fmt.Errorf("bad VLAN in %q: %w", spec, err)
		}
		if err := ws.AddChange(sess, workspace.Change{
			Op: workspace.OpModifyVLAN, Device: dev, Interface: iface, VlanID: vlan,
		}); err != nil {
			return err
		}
	}
	for _, spec := range flagMoveIf {
		from, to, ok := strings.Cut(spec, "=")
		if !ok {
			return fmt.Errorf("bad --move value %q, want SRC:IF=DST:IF", spec)
		}
		srcDev, srcIf, err := splitRef(from)
		if err != nil {
			return err
		}
		dstDev, dstIf, err := splitRef(to)
		if err != nil {
			return err
		}
		if err := ws.AddChange(sess, workspace.Change{
			Op: workspace.OpMoveInterface,
			Device: srcDev, Interface: srcIf,
			ToDevice: dstDev, ToInterface: dstIf,
		}); err != nil {
			return err
		}
	}
	return nil
}

// splitRef parses DEVICE:INTERFACE. Interface names carry slashes, so the
// separator is a colon.
func splitRef(ref string) (string, string, error) {
	dev, iface, ok := strings.Cut(ref, ":")
	if !ok || dev == "" || iface == "" {
		return "", "", fmt.Errorf("bad interface reference %q, want DEVICE:INTERFACE", ref)
	}
	return dev, iface, nil
}

// promptResolver asks the operator what to do about drift. Without a
// terminal the answer is always abort.
func promptResolver(ctx context.Context, d deploy.Drift) deploy.Resolution {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return deploy.ResolutionAbort
	}

	fmt.Fprintf(os.Stderr, "\n%s already carries configuration for %s:\n%s\n", d.Device, d.BridgeDomain, d.Output)
	fmt.Fprint(os.Stderr, "resolve: [s]ync from device / s[k]ip device / [o]verride / [a]bort (default): ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return deploy.ResolutionAbort
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "s", "sync":
		return deploy.ResolutionSync
	case "k", "skip":
		return deploy.ResolutionSkip
	case "o", "override":
		return deploy.ResolutionOverride
	default:
		return deploy.ResolutionAbort
	}
}

func init() {
	deployCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "render the command plan without touching devices")
	deployCmd.Flags().StringArrayVar(&flagAddIf, "add", nil, "interface to add (DEVICE:INTERFACE, repeatable)")
	deployCmd.Flags().StringArrayVar(&flagRemoveIf, "remove", nil, "interface to remove (DEVICE:INTERFACE, repeatable)")
	deployCmd.Flags().StringArrayVar(&flagSetVlan, "set-vlan", nil, "re-tag a member (DEVICE:INTERFACE=VLAN, repeatable)")
	deployCmd.Flags().StringArrayVar(&flagMoveIf, "move", nil, "move a member (SRC:IF=DST:IF, repeatable)")
	deployCmd.Flags().BoolVar(&flagNoConfirm, "no-input", false, "never prompt; abort on drift")
	rootCmd.AddCommand(deployCmd)
}
