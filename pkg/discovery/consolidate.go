// Package discovery scans the fleet for bridge domains and consolidates
// per-device fragments into canonical records.
package discovery

import (
	"sort"
	"strings"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/bd"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

// Fragment is one bridge domain as a single device reports it. The same
// logical service appears as one fragment per member device, often under
// different names ("g_visaev_v253_Spirent" on one leaf,
// "g_visaev_v253_to_Spirent" on another).
type Fragment struct {
	Device     string
	Name       string
	AdminState string
	Interfaces []bd.Interface
	RawConfig  []string
}

// Options tunes consolidation.
type Options struct {
	// GlobalVLANs is the range spec of globally scoped VLAN ids.
	GlobalVLANs string
	// DeviceRole maps a device name to its fabric role ("leaf", "spine",
	// "superspine"). Nil means every device is unknown.
	DeviceRole func(device string) string
}

func memberRole(role string) bd.InterfaceRole {
	switch role {
	case "leaf":
		return bd.RoleAccess
	case "spine", "superspine":
		return bd.RoleDownlink
	default:
		return bd.RoleUnknown
	}
}

// Consolidate merges fragments into canonical bridge-domain records.
// Fragments sharing a (username, vlan) consolidation key become one record
// under the canonical "g_<user>_v<vlan>" name; fragments with no key stand
// alone under their observed name. Deterministic: output order and content
// are stable under fragment reordering.
func Consolidate(fragments []Fragment, opts Options) []*bd.BridgeDomain {
	sorted := make([]Fragment, len(fragments))
	copy(sorted, fragments)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Device != sorted[j].Device {
			return sorted[i].Device < sorted[j].Device
		}
		return sorted[i].Name < sorted[j].Name
	})

	groups := make(map[string][]Fragment)
	var order []string
	for _, f := range sorted {
		parts := bd.ParseName(f.Name)
		key := bd.ConsolidationKey(parts.Username, parts.VlanID)
		if key == "" {
			// no convention match; the fragment stands alone per device
			key = "standalone:" + f.Device + ":" + f.Name
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], f)
	}
	sort.Strings(order)

	var out []*bd.BridgeDomain
	for _, key := range order {
		out = append(out, merge(key, groups[key], opts))
	}
	return out
}

func merge(key string, frags []Fragment, opts Options) *bd.BridgeDomain {
	first := bd.ParseName(frags[0].Name)

	rec := &bd.BridgeDomain{
		Name:       frags[0].Name,
		Username:   first.Username,
		VlanID:     first.VlanID,
		AdminState: frags[0].AdminState,
	}
	if rec.Username != "" && rec.VlanID > 0 {
		rec.Name = bd.CanonicalName(rec.Username, rec.VlanID)
	}

	seen := make(map[string]bool)
	names := make(map[string]bool)
	for _, f := range frags {
		names[f.Name] = true
		rec.RawCLIConfig = append(rec.RawCLIConfig, f.RawConfig...)
		for _, i := range f.Interfaces {
			id := i.Device + "/" + i.Name
			if seen[id] {
				continue
			}
			seen[id] = true
			if i.Role == "" || i.Role == bd.RoleUnknown {
				if opts.DeviceRole != nil {
					i.Role = memberRole(opts.DeviceRole(i.Device))
				} else {
					i.Role = bd.RoleUnknown
				}
			}
			rec.Interfaces = append(rec.Interfaces, i)
		}
	}
	sort.Slice(rec.Interfaces, func(i, j int) bool {
		if rec.Interfaces[i].Device != rec.Interfaces[j].Device {
			return rec.Interfaces[i].Device < rec.Interfaces[j].Device
		}
		return rec.Interfaces[i].Name < rec.Interfaces[j].Name
	})

	var originals []string
	for name := range names {
		originals = append(originals, name)
	}
	sort.Strings(originals)
	rec.Consolidation = bd.ConsolidationInfo{
		OriginalNames: originals,
		Key:           strings.TrimPrefix(key, "standalone:"),
		Count:         len(frags),
	}

	cls := bd.Classify(rec.VlanID, rec.Interfaces)
	rec.Type = cls.Type
	if rec.OuterVlan == 0 {
		for _, i := range rec.Interfaces {
			if i.OuterVlan > 0 {
				rec.OuterVlan = i.OuterVlan
				rec.InnerVlan = i.InnerVlan
				break
			}
		}
	}

	rec.Scope = scopeOf(first, rec.VlanID, opts.GlobalVLANs)
	rec.Topology = topologyOf(rec.Interfaces)
	return rec
}

func scopeOf(parts bd.NameParts, vlan int, globalVLANs string) bd.Scope {
	if parts.Scope == bd.ScopeLocal {
		return bd.ScopeLocal
	}
	if vlan > 0 {
		if in, err := util.RangeContains(globalVLANs, vlan); err == nil && in {
			return bd.ScopeGlobal
		}
	}
	if parts.Scope == bd.ScopeGlobal {
		return bd.ScopeGlobal
	}
	return bd.ScopeUnknown
}

// topologyOf types the service by its access sites: exactly two devices
// carrying access-role members is point-to-point, anything else is
// point-to-multipoint. Two access ports on the same leaf are still one
// site.
func topologyOf(members []bd.Interface) bd.TopologyType {
	sites := make(map[string]bool)
	for _, m := range members {
		if m.Role == bd.RoleAccess {
			sites[m.Device] = true
		}
	}
	if len(sites) == 2 {
		return bd.TopologyP2P
	}
	return bd.TopologyP2MP
}
