// Package bd defines the canonical bridge-domain records and the pure
// DNAAS classification logic.
//
// Everything here is a closed, typed shape: discovery and deployment pass
// these records around instead of free-form maps, so metadata can never
// leak into device configuration payloads.
package bd

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// DNAASType classifies a bridge domain by its tagging model.
type DNAASType string

const (
	TypeSingleTagged DNAASType = "single_tagged" // 4A: one vlan-id per member, l2-service enabled
	TypeQinQSingle   DNAASType = "qinq_single"   // constant outer tag, single inner value
	TypeQinQRange    DNAASType = "qinq_range"    // constant outer tag, inner values vary
	TypeUnknown      DNAASType = "unknown"
)

// TopologyType describes how many sites a bridge domain spans.
type TopologyType string

const (
	TopologyP2P     TopologyType = "p2p"
	TopologyP2MP    TopologyType = "p2mp"
	TopologyUnknown TopologyType = "unknown"
)

// Scope separates globally numbered services from device-local ones.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeLocal   Scope = "local"
	ScopeUnknown Scope = "unknown"
)

// InterfaceType distinguishes the member interface forms.
type InterfaceType string

const (
	IfTypePhysical     InterfaceType = "physical"
	IfTypeSubinterface InterfaceType = "subinterface"
	IfTypeBundle       InterfaceType = "bundle"
)

// InterfaceRole describes which side of the fabric an interface faces.
type InterfaceRole string

const (
	RoleAccess   InterfaceRole = "access"
	RoleUplink   InterfaceRole = "uplink"
	RoleDownlink InterfaceRole = "downlink"
	RoleUnknown  InterfaceRole = "unknown"
)

// Interface is one bridge-domain member on one device.
type Interface struct {
	Device      string        `json:"device"`
	Name        string        `json:"name"`
	Type        InterfaceType `json:"type"`
	Role        InterfaceRole `json:"role"`
	AdminStatus string        `json:"admin_status,omitempty"`
	OperStatus  string        `json:"oper_status,omitempty"`
	VlanID      int           `json:"vlan_id,omitempty"`
	OuterVlan   int           `json:"outer_vlan,omitempty"`
	InnerVlan   int           `json:"inner_vlan,omitempty"`
	L2Service   bool          `json:"l2_service_enabled"`
}

// ConsolidationInfo records how per-device fragments merged into one
// canonical record.
type ConsolidationInfo struct {
	OriginalNames []string `json:"original_names"`
	Key           string   `json:"consolidation_key"`
	Count         int      `json:"consolidated_count"`
}

// DiscoveryMetadata records the scan that produced a record.
type DiscoveryMetadata struct {
	DiscoveredAt   time.Time `json:"discovered_at"`
	DevicesScanned []string  `json:"devices_scanned,omitempty"`
	DevicesFailed  []string  `json:"devices_failed,omitempty"`
	Warnings       []string  `json:"warnings,omitempty"`
}

// BridgeDomain is the canonical record: one per (username, vlan) pair.
type BridgeDomain struct {
	Name          string            `json:"name"`
	Username      string            `json:"username,omitempty"`
	VlanID        int               `json:"vlan_id,omitempty"`
	OuterVlan     int               `json:"outer_vlan,omitempty"`
	InnerVlan     int               `json:"inner_vlan,omitempty"`
	Type          DNAASType         `json:"dnaas_type"`
	Topology      TopologyType      `json:"topology_type"`
	Scope         Scope             `json:"scope"`
	AdminState    string            `json:"admin_state,omitempty"`
	Interfaces    []Interface       `json:"interfaces"`
	Consolidation ConsolidationInfo `json:"consolidation_info"`
	RawCLIConfig  []string          `json:"raw_cli_config,omitempty"`
	Discovery     DiscoveryMetadata `json:"discovery_metadata"`
}

// Devices returns the distinct member devices, sorted.
func (b *BridgeDomain) Devices() []string {
	seen := make(map[string]bool)
	var out []string
	for _, i := range b.Interfaces {
		if !seen[i.Device] {
			seen[i.Device] = true
			out = append(out, i.Device)
		}
	}
	sort.Strings(out)
	return out
}

// FindInterface returns the member with the given device and name.
func (b *BridgeDomain) FindInterface(device, name string) (Interface, bool) {
	for _, i := range b.Interfaces {
		if i.Device == device && i.Name == name {
			return i, true
		}
	}
	return Interface{}, false
}

// SplitInterfaceName splits a sub-interface name into its base and VLAN
// suffixes. "ge100-0/0/29.251" -> ("ge100-0/0/29", [251]);
// "ge100-0/0/29.100.200" -> ("ge100-0/0/29", [100, 200]).
// Non-numeric suffixes are part of the base.
func SplitInterfaceName(name string) (base string, vlans []int) {
	base = name
	for {
		i := strings.LastIndex(base, ".")
		if i < 0 {
			break
		}
		v, err := strconv.Atoi(base[i+1:])
		if err != nil {
			break
		}
		vlans = append([]int{v}, vlans...)
		base = base[:i]
	}
	return base, vlans
}

// TypeOfInterface derives the interface type from its name.
func TypeOfInterface(name string) InterfaceType {
	base, vlans := SplitInterfaceName(name)
	if len(vlans) > 0 {
		return IfTypeSubinterface
	}
	if strings.HasPrefix(base, "bundle-") {
		return IfTypeBundle
	}
	return IfTypePhysical
}
