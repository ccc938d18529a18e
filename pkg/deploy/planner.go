// Package deploy turns desired bridge-domain state into DNOS command
// plans and pushes them to the fleet with a two-phase commit-check /
// commit sequence.
package deploy

import (
	"fmt"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/bd"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/device"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

// BuildPlan renders the per-device command lists that realize a bridge
// domain. All commands are global-configuration-mode statements; the plan
// never contains mode transitions, prompts answers, or show commands.
//
// Sub-interface names are suffixed exactly once: a bare port gains the
// service VLAN suffix, an already-suffixed member is used as-is, and a
// member suffixed with a different VLAN is a conflict.
func BuildPlan(rec *bd.BridgeDomain) (device.Plan, error) {
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
	for _, member := range rec.Interfaces {
		var cmds []string
		var err error
		switch rec.Type {
		case bd.TypeSingleTagged:
			cmds, err = singleTaggedCommands(rec, member)
		default:
			cmds, err = qinqCommands(rec, member)
		}
		if err != nil {
			return nil, err
		}

		claim := member.Device + "/" + memberName(member, rec)
		if claimed[claim] {
			return nil, &util.ValidationError{Errors: []string{
				fmt.Sprintf("interface %s claimed twice", claim),
			}}
		}
		claimed[claim] = true

		plan[member.Device] = append(plan[member.Device], cmds...)
	}
	return plan, nil
}

// memberName resolves the on-device sub-interface name for a member,
// applying the suffix-once rule for single-tagged services.
func memberName(member bd.Interface, rec *bd.BridgeDomain) string {
	if rec.Type != bd.TypeSingleTagged {
		return member.Name
	}
	if _, vlans := bd.SplitInterfaceName(member.Name); len(vlans) > 0 {
		return member.Name
	}
	return fmt.Sprintf("%s.%d", member.Name, rec.VlanID)
}

func singleTaggedCommands(rec *bd.BridgeDomain, member bd.Interface) ([]string, error) {
	base, vlans := bd.SplitInterfaceName(member.Name)
	name := member.Name
	switch {
	case len(vlans) == 0:
		name = fmt.Sprintf("%s.%d", base, rec.VlanID)
	case vlans[len(vlans)-1] != rec.VlanID:
		return nil, &util.ValidationError{Errors: []string{
			fmt.Sprintf("%s/%s carries VLAN %d, service VLAN is %d",
				member.Device, member.Name, vlans[len(vlans)-1], rec.VlanID),
		}}
	}

	return []string{
		fmt.Sprintf("network-services bridge-domain instance %s interface %s", rec.Name, name),
		fmt.Sprintf("interfaces %s l2-service enabled", name),
		fmt.Sprintf("interfaces %s vlan-id %d", name, rec.VlanID),
	}, nil
}

func qinqCommands(rec *bd.BridgeDomain, member bd.Interface) ([]string, error) {
	inner := member.InnerVlan
	if inner == 0 {
		inner = rec.InnerVlan
	}
	if err := util.ValidateVLANID(inner); err != nil {
		return nil, &util.ValidationError{Errors: []string{
			fmt.Sprintf("%s/%s inner tag: %v", member.Device, member.Name, err),
		}}
	}

	return []string{
		fmt.Sprintf("network-services bridge-domain instance %s interface %s", rec.Name, member.Name),
		fmt.Sprintf("interfaces %s l2-service enabled", member.Name),
		fmt.Sprintf("interfaces %s vlan-tags outer-tag %d inner-tag %d", member.Name, rec.OuterVlan, inner),
	}, nil
}

// RollbackPlan renders the inverse of a deployment plan: every statement
// "no"-prefixed, per device in reverse order of application.
func RollbackPlan(plan device.Plan) device.Plan {
	inverse := device.Plan{}
	for dev, cmds := range plan {
		out := make([]string, 0, len(cmds))
		for i := len(cmds) - 1; i >= 0; i-- {
			out = append(out, "no "+cmds[i])
		}
		inverse[dev] = out
	}
	return inverse
}
