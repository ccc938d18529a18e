package deploy

import (
	"fmt"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/bd"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/device"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/workspace"
)

// PlanChanges renders the per-device command lists that realize an edit
// session's staged changes against the stored record. Only devices a
// change touches appear in the plan; unchanged member devices are never
// contacted.
//
// Change targets name the bare port ("ge100-0/0/31"); the planner appends
// the service tag suffix exactly once. An input that already carries a
// VLAN suffix is rejected outright.
func PlanChanges(rec *bd.BridgeDomain, changes []workspace.Change) (device.Plan, error) {
	var v util.ValidationBuilder
	v.Add(rec.Name != "", "bridge domain without a name")
	switch rec.Type {
	case bd.TypeSingleTagged:
		if err := util.ValidateVLANID(rec.VlanID); err != nil {
			v.AddErrorf("%v", err)
		}
	case bd.TypeQinQSingle, bd.TypeQinQRange:
		if err := util.ValidateVLANID(rec.OuterVlan); err != nil {
			v.AddErrorf("outer tag: %v", err)
		}
	default:
		v.AddErrorf("cannot plan type %q", rec.Type)
	}
	if err := v.Build(); err != nil {
		return nil, err
	}

	plan := device.Plan{}
	claimed := make(map[string]bool)
	claim := func(dev, iface string) error {
		base, _ := bd.SplitInterfaceName(iface)
		key := dev + "/" + base
		if claimed[key] {
			return &util.ValidationError{Errors: []string{
				fmt.Sprintf("interface %s claimed twice in one session", key),
			}}
		}
		claimed[key] = true
		return nil
	}

	for _, c := range changes {
		switch c.Op {
		case workspace.OpAddInterface:
			if err := rejectSuffixed(c.Device, c.Interface); err != nil {
				return nil, err
			}
			if err := claim(c.Device, c.Interface); err != nil {
				return nil, err
			}
			plan[c.Device] = append(plan[c.Device], addCommands(rec, c)...)

		case workspace.OpRemoveInterface:
			member, ok := workspace.FindMember(rec, c.Device, c.Interface)
			if !ok {
				return nil, &util.ValidationError{Errors: []string{
					fmt.Sprintf("%s/%s is not a member of %s", c.Device, c.Interface, rec.Name),
				}}
			}
			if err := claim(c.Device, member.Name); err != nil {
				return nil, err
			}
			plan[c.Device] = append(plan[c.Device], removeCommands(rec, member.Name)...)

		case workspace.OpModifyVLAN:
			if rec.Type != bd.TypeSingleTagged {
				return nil, &util.ValidationError{Errors: []string{
					fmt.Sprintf("cannot modify the vlan-id of a %s service", rec.Type),
				}}
			}
			member, ok := workspace.FindMember(rec, c.Device, c.Interface)
			if !ok {
				return nil, &util.ValidationError{Errors: []string{
					fmt.Sprintf("%s/%s is not a member of %s", c.Device, c.Interface, rec.Name),
				}}
			}
			if err := claim(c.Device, member.Name); err != nil {
				return nil, err
			}
			base, _ := bd.SplitInterfaceName(member.Name)
			next := fmt.Sprintf("%s.%d", base, c.VlanID)
			cmds := removeCommands(rec, member.Name)
			cmds = append(cmds,
				fmt.Sprintf("network-services bridge-domain instance %s interface %s", rec.Name, next),
				fmt.Sprintf("interfaces %s l2-service enabled", next),
				fmt.Sprintf("interfaces %s vlan-id %d", next, c.VlanID),
			)
			plan[c.Device] = append(plan[c.Device], cmds...)

		case workspace.OpMoveInterface:
			member, ok := workspace.FindMember(rec, c.Device, c.Interface)
			if !ok {
				return nil, &util.ValidationError{Errors: []string{
					fmt.Sprintf("%s/%s is not a member of %s", c.Device, c.Interface, rec.Name),
				}}
			}
			if err := rejectSuffixed(c.ToDevice, c.ToInterface); err != nil {
				return nil, err
			}
			if err := claim(c.Device, member.Name); err != nil {
				return nil, err
			}
			if err := claim(c.ToDevice, c.ToInterface); err != nil {
				return nil, err
			}
			plan[c.Device] = append(plan[c.Device], removeCommands(rec, member.Name)...)
			plan[c.ToDevice] = append(plan[c.ToDevice], addCommands(rec, workspace.Change{
				Op: workspace.OpAddInterface, Device: c.ToDevice, Interface: c.ToInterface,
				OuterVlan: member.OuterVlan, InnerVlan: member.InnerVlan,
			})...)

		default:
			return nil, &util.ValidationError{Errors: []string{
				fmt.Sprintf("unknown change op %q", c.Op),
			}}
		}
	}
	return plan, nil
}

// rejectSuffixed enforces the suffix-once rule at the input boundary:
// change targets are bare port names, the planner owns the suffix.
func rejectSuffixed(dev, iface string) error {
	if _, vlans := bd.SplitInterfaceName(iface); len(vlans) > 0 {
		return &util.ValidationError{Errors: []string{
			fmt.Sprintf("%s/%s already carries a VLAN suffix; name the bare port", dev, iface),
		}}
	}
	return nil
}

func addCommands(rec *bd.BridgeDomain, c workspace.Change) []string {
	name := workspace.MemberName(rec, c)
	switch rec.Type {
	case bd.TypeQinQSingle, bd.TypeQinQRange:
		outer := rec.OuterVlan
		inner := c.InnerVlan
		if c.OuterVlan != 0 {
			outer = c.OuterVlan
		}
		if inner == 0 {
			inner = rec.InnerVlan
		}
		return []string{
			fmt.Sprintf("network-services bridge-domain instance %s interface %s", rec.Name, name),
			fmt.Sprintf("interfaces %s l2-service enabled", name),
			fmt.Sprintf("interfaces %s vlan-tags outer-tag %d inner-tag %d", name, outer, inner),
		}
	default:
		return []string{
			fmt.Sprintf("network-services bridge-domain instance %s interface %s", rec.Name, name),
			fmt.Sprintf("interfaces %s l2-service enabled", name),
			fmt.Sprintf("interfaces %s vlan-id %d", name, rec.VlanID),
		}
	}
}

// removeCommands detaches a member and deletes its sub-interface. Deleting
// the sub-interface drops its vlan-id and l2-service lines with it.
func removeCommands(rec *bd.BridgeDomain, name string) []string {
	return []string{
		fmt.Sprintf("no network-services bridge-domain instance %s interface %s", rec.Name, name),
		fmt.Sprintf("no interfaces %s", name),
	}
}

// Outstanding filters a change list down to the changes the stored record
// does not already satisfy. After a drift sync folds device reality into
// the record, changes the device already carries drop out; an emptied list
// means there is nothing left to push.
func Outstanding(rec *bd.BridgeDomain, changes []workspace.Change) []workspace.Change {
	var out []workspace.Change
	for _, c := range changes {
		switch c.Op {
		case workspace.OpAddInterface:
			if _, ok := workspace.FindMember(rec, c.Device, c.Interface); ok {
				continue
			}
		case workspace.OpRemoveInterface:
			if _, ok := workspace.FindMember(rec, c.Device, c.Interface); !ok {
				continue
			}
		case workspace.OpModifyVLAN:
			if m, ok := workspace.FindMember(rec, c.Device, c.Interface); ok && memberVlan(m) == c.VlanID {
				continue
			}
		case workspace.OpMoveInterface:
			_, srcPresent := workspace.FindMember(rec, c.Device, c.Interface)
			_, dstPresent := workspace.FindMember(rec, c.ToDevice, c.ToInterface)
			if !srcPresent && dstPresent {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// memberVlan reads a member's service tag, falling back to the name
// suffix for records discovered before the vlan-id column existed.
func memberVlan(m bd.Interface) int {
	if m.VlanID != 0 {
		return m.VlanID
	}
	if _, vlans := bd.SplitInterfaceName(m.Name); len(vlans) > 0 {
		return vlans[len(vlans)-1]
	}
	return 0
}
