package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/bd"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/device"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/dnos"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/inventory"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/store"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

// The three captures a full scan takes from every device.
const (
	cmdShowBridgeDomains = "show network-services bridge-domain | no-more"
	cmdShowInterfaces    = "show interfaces | no-more"
	cmdShowConfig        = "show config | fl"
)

// Report summarizes one scan.
type Report struct {
	Records        []*bd.BridgeDomain
	DevicesScanned []string
	DevicesFailed  []string
	Warnings       []string
	StaleMarked    int
}

// Engine runs discovery scans and persists the consolidated records.
type Engine struct {
	inv         *inventory.Inventory
	exec        *device.Executor
	db          *store.Store
	globalVLANs string
}

// New creates a discovery engine. db may be nil for scan-only use.
func New(inv *inventory.Inventory, exec *device.Executor, db *store.Store, globalVLANs string) *Engine {
	return &Engine{inv: inv, exec: exec, db: db, globalVLANs: globalVLANs}
}

func (e *Engine) deviceRole(name string) string {
	if info, ok := e.inv.Get(name); ok {
		return info.Role
	}
	return ""
}

// FullScan queries every inventory device, consolidates the fragments,
// persists each record in its own transaction, and marks records no scan
// observed as stale. Unreachable devices degrade the scan, never fail it;
// their names land in the report and in each record's discovery metadata.
func (e *Engine) FullScan(ctx context.Context) (*Report, error) {
	plan := device.Plan{}
	for _, name := range e.inv.Names() {
		plan[name] = []string{cmdShowBridgeDomains, cmdShowInterfaces, cmdShowConfig}
	}

	results := e.exec.ExecuteParallel(ctx, plan, device.ModeQuery)

	report := &Report{}
	var fragments []Fragment
	for _, name := range plan.Devices() {
		res := results[name]
		if res.Status != device.StatusOK {
			if res.Cancelled {
				return nil, res.Err
			}
			util.WithDevice(name).Warnf("scan failed: %v", res.Err)
			report.DevicesFailed = append(report.DevicesFailed, name)
			continue
		}
		report.DevicesScanned = append(report.DevicesScanned, name)

		frags, table, warns := parseDevice(name, res.Outputs)
		fragments = append(fragments, frags...)
		for _, w := range warns {
			report.Warnings = append(report.Warnings, name+": "+w.String())
		}

		if e.db != nil {
			if err := e.db.ReplaceDeviceInterfaces(ctx, name, inventoryRows(table)); err != nil {
				util.WithDevice(name).Errorf("refreshing interface inventory: %v", err)
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("%s: interface inventory not refreshed: %v", name, err))
			}
		}
	}
	if len(report.DevicesScanned) == 0 {
		return nil, fmt.Errorf("scan reached no devices: %w", util.ErrConnectivity)
	}

	report.Records = Consolidate(fragments, Options{
		GlobalVLANs: e.globalVLANs,
		DeviceRole:  e.deviceRole,
	})

	meta := bd.DiscoveryMetadata{
		DiscoveredAt:   time.Now().UTC(),
		DevicesScanned: report.DevicesScanned,
		DevicesFailed:  report.DevicesFailed,
		Warnings:       report.Warnings,
	}
	for _, rec := range report.Records {
		rec.Discovery = meta
	}

	if e.db != nil {
		var seen []string
		for _, rec := range report.Records {
			if _, err := e.db.UpsertBridgeDomain(ctx, rec); err != nil {
				// one failed record must not lose the rest of the scan
				util.Errorf("persisting %s: %v", rec.Name, err)
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("persist %s: %v", rec.Name, err))
				continue
			}
			seen = append(seen, rec.Name)
		}
		// Stale marking only when the whole fleet answered; a partial scan
		// cannot distinguish "gone" from "unreachable".
		if len(report.DevicesFailed) == 0 {
			n, err := e.db.MarkStale(ctx, seen)
			if err != nil {
				return nil, err
			}
			report.StaleMarked = n
		}
	}

	util.Infof("scan complete: %d records from %d devices (%d unreachable)",
		len(report.Records), len(report.DevicesScanned), len(report.DevicesFailed))
	return report, nil
}

// TargetedScan re-reads one bridge domain from one device. Used by drift
// resolution to refresh a single fragment without a fleet-wide scan.
func (e *Engine) TargetedScan(ctx context.Context, deviceName, bdName string) (Fragment, error) {
	cmds := []string{
		"show network-services bridge-domain " + bdName,
		cmdShowInterfaces,
		cmdShowConfig,
	}
	res := e.exec.Execute(ctx, deviceName, cmds, device.ModeQuery)
	if res.Status != device.StatusOK {
		return Fragment{}, res.Err
	}

	frags, _, _ := parseDevice(deviceName, res.Outputs)
	for _, f := range frags {
		if f.Name == bdName {
			return f, nil
		}
	}
	return Fragment{}, fmt.Errorf("bridge domain %s not on %s: %w", bdName, deviceName, util.ErrNotFound)
}

// inventoryRows converts a parsed interface table into inventory rows for
// the store.
func inventoryRows(table []dnos.InterfaceStatus) []store.DeviceInterface {
	rows := make([]store.DeviceInterface, 0, len(table))
	for _, r := range table {
		rows = append(rows, store.DeviceInterface{
			Name:      r.Name,
			Admin:     r.Admin,
			Oper:      r.Oper,
			VlanID:    r.VlanID,
			L2Service: r.L2,
		})
	}
	return rows
}

// parseDevice turns one device's captures into fragments plus the full
// interface table. Outputs arrive in command order: bridge-domain listing,
// interface table, config.
func parseDevice(deviceName string, outputs []device.CommandOutput) ([]Fragment, []dnos.InterfaceStatus, []dnos.ParseWarning) {
	byCmd := make(map[string]string, len(outputs))
	for _, o := range outputs {
		byCmd[o.Command] = o.Output
	}
	var bdOut string
	for cmd, out := range byCmd {
		if strings.HasPrefix(cmd, "show network-services bridge-domain") {
			bdOut = out
		}
	}

	entries, warns := dnos.ParseBridgeDomainList(bdOut)
	table, w2 := dnos.ParseInterfaceTable(byCmd[cmdShowInterfaces])
	cfg, w3 := dnos.ParseConfig(byCmd[cmdShowConfig])
	warns = append(append(warns, w2...), w3...)

	status := make(map[string]dnos.InterfaceStatus, len(table))
	for _, row := range table {
		status[row.Name] = row
	}

	var frags []Fragment
	for _, entry := range entries {
		f := Fragment{
			Device:     deviceName,
			Name:       entry.Name,
			AdminState: entry.AdminState,
		}
		for _, ifname := range entry.Interfaces {
			member := bd.Interface{
				Device: deviceName,
				Name:   ifname,
				Type:   bd.TypeOfInterface(ifname),
			}
			if row, ok := status[ifname]; ok {
				member.AdminStatus = row.Admin
				member.OperStatus = row.Oper
				member.VlanID = row.VlanID
				member.L2Service = row.L2
			}
			if v, ok := cfg.VlanIDs[ifname]; ok {
				// A sub-interface whose name suffix disagrees with its
				// configured vlan-id is misconfigured on the device.
				if _, vlans := bd.SplitInterfaceName(ifname); len(vlans) > 0 && vlans[len(vlans)-1] != v {
					warns = append(warns, dnos.ParseWarning{
						Line:   ifname,
						Reason: fmt.Sprintf("vlan-id %d disagrees with name suffix %d", v, vlans[len(vlans)-1]),
					})
				}
				member.VlanID = v
			}
			if cfg.L2Service[ifname] {
				member.L2Service = true
			}
			if tags, ok := cfg.VlanTags[ifname]; ok {
				member.OuterVlan = tags.Outer
				member.InnerVlan = tags.Inner
			}
			if member.VlanID == 0 {
				if _, vlans := bd.SplitInterfaceName(ifname); len(vlans) > 0 {
					member.VlanID = vlans[len(vlans)-1]
				}
			}
			f.Interfaces = append(f.Interfaces, member)
		}
		f.RawConfig = configLinesFor(cfg, entry)
		frags = append(frags, f)
	}
	return frags, table, warns
}

// configLinesFor selects the accepted config lines that mention the bridge
// domain or one of its member interfaces, in the order the device printed
// them.
func configLinesFor(cfg *dnos.Config, entry dnos.BridgeDomainEntry) []string {
	members := make(map[string]bool, len(entry.Interfaces))
	for _, name := range entry.Interfaces {
		members[name] = true
	}
	var out []string
	for _, line := range cfg.Lines {
		for _, f := range strings.Fields(line) {
			if f == entry.Name || members[f] {
				out = append(out, line)
				break
			}
		}
	}
	return out
}
