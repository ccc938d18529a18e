package discovery

import (
	"reflect"
	"testing"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/bd"
)

func leafRole(string) string { return "leaf" }

func member(device, name string, vlan int) bd.Interface {
	return bd.Interface{
		Device:    device,
		Name:      name,
		Type:      bd.TypeOfInterface(name),
		VlanID:    vlan,
		L2Service: true,
	}
}

func TestConsolidateMergesAcrossDevices(t *testing.T) {
	// The same service under three naming-convention variants on three
	// leaves must collapse into one canonical record.
	fragments := []Fragment{
		{
			Device: "DNAAS-LEAF-B16", Name: "visaev_253_test",
			Interfaces: []bd.Interface{member("DNAAS-LEAF-B16", "ge100-0/0/7.253", 253)},
		},
		{
			Device: "DNAAS-LEAF-B14", Name: "g_visaev_v253_Spirent", AdminState: "enabled",
			Interfaces: []bd.Interface{
				member("DNAAS-LEAF-B14", "ge100-0/0/29.253", 253),
				member("DNAAS-LEAF-B14", "ge100-0/0/30.253", 253),
			},
		},
		{
			Device: "DNAAS-LEAF-B15", Name: "g_visaev_v253_to_Spirent",
			Interfaces: []bd.Interface{member("DNAAS-LEAF-B15", "ge100-0/0/1.253", 253)},
		},
	}

	records := Consolidate(fragments, Options{GlobalVLANs: "100-999", DeviceRole: leafRole})
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.Name != "g_visaev_v253" {
		t.Errorf("name = %q, want canonical g_visaev_v253", rec.Name)
	}
	if rec.Username != "visaev" || rec.VlanID != 253 {
		t.Errorf("identity = (%q, %d)", rec.Username, rec.VlanID)
	}
	if rec.Type != bd.TypeSingleTagged {
		t.Errorf("type = %q, want single_tagged", rec.Type)
	}
	if rec.Scope != bd.ScopeGlobal {
		t.Errorf("scope = %q, want global", rec.Scope)
	}
	if rec.Topology != bd.TopologyP2MP {
		t.Errorf("topology = %q, want p2mp for 4 access endpoints", rec.Topology)
	}
	if len(rec.Interfaces) != 4 {
		t.Errorf("interfaces = %d, want 4", len(rec.Interfaces))
	}

	wantOriginals := []string{"g_visaev_v253_Spirent", "g_visaev_v253_to_Spirent", "visaev_253_test"}
	if !reflect.DeepEqual(rec.Consolidation.OriginalNames, wantOriginals) {
		t.Errorf("originals = %v, want %v", rec.Consolidation.OriginalNames, wantOriginals)
	}
	if rec.Consolidation.Key != "visaev_v253" || rec.Consolidation.Count != 3 {
		t.Errorf("consolidation = %+v", rec.Consolidation)
	}
}

func TestConsolidateIsOrderStable(t *testing.T) {
	a := Fragment{
		Device: "DNAAS-LEAF-B14", Name: "g_visaev_v253_Spirent",
		Interfaces: []bd.Interface{member("DNAAS-LEAF-B14", "ge100-0/0/29.253", 253)},
	}
	b := Fragment{
		Device: "DNAAS-LEAF-B15", Name: "g_visaev_v253_to_Spirent",
		Interfaces: []bd.Interface{member("DNAAS-LEAF-B15", "ge100-0/0/1.253", 253)},
	}

	opts := Options{GlobalVLANs: "100-999", DeviceRole: leafRole}
	fwd := Consolidate([]Fragment{a, b}, opts)
	rev := Consolidate([]Fragment{b, a}, opts)
	if !reflect.DeepEqual(fwd, rev) {
		t.Errorf("consolidation depends on fragment order:\nfwd = %+v\nrev = %+v", fwd[0], rev[0])
	}
}

func TestConsolidateP2P(t *testing.T) {
	fragments := []Fragment{
		{
			Device: "DNAAS-LEAF-B14", Name: "g_visaev_v251",
			Interfaces: []bd.Interface{member("DNAAS-LEAF-B14", "ge100-0/0/29.251", 251)},
		},
		{
			Device: "DNAAS-LEAF-B15", Name: "g_visaev_v251",
			Interfaces: []bd.Interface{member("DNAAS-LEAF-B15", "ge100-0/0/31.251", 251)},
		},
	}

	records := Consolidate(fragments, Options{GlobalVLANs: "100-999", DeviceRole: leafRole})
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Topology != bd.TopologyP2P {
		t.Errorf("topology = %q, want p2p for exactly 2 access endpoints", records[0].Topology)
	}
}

func TestConsolidateTopologyCountsDevicesNotPorts(t *testing.T) {
	// Two access ports on the same leaf are one site: the service is
	// p2mp, not p2p.
	fragments := []Fragment{
		{
			Device: "DNAAS-LEAF-B14", Name: "g_visaev_v251",
			Interfaces: []bd.Interface{
				member("DNAAS-LEAF-B14", "ge100-0/0/29.251", 251),
				member("DNAAS-LEAF-B14", "ge100-0/0/30.251", 251),
			},
		},
	}

	records := Consolidate(fragments, Options{GlobalVLANs: "100-999", DeviceRole: leafRole})
	if records[0].Topology != bd.TopologyP2MP {
		t.Errorf("topology = %q, want p2mp for two ports on one device", records[0].Topology)
	}
}

func TestConsolidateStandaloneFragment(t *testing.T) {
	// A name outside every convention stands alone under its own name.
	fragments := []Fragment{
		{
			Device: "DNAAS-LEAF-B14", Name: "MGMT-OOB",
			Interfaces: []bd.Interface{member("DNAAS-LEAF-B14", "ge100-0/0/5", 0)},
		},
	}

	records := Consolidate(fragments, Options{GlobalVLANs: "100-999", DeviceRole: leafRole})
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Name != "MGMT-OOB" {
		t.Errorf("name = %q, want observed name kept", rec.Name)
	}
	if rec.Type != bd.TypeUnknown || rec.Scope != bd.ScopeUnknown {
		t.Errorf("record = type %q scope %q, want unknown/unknown", rec.Type, rec.Scope)
	}
}

func TestConsolidateLocalScope(t *testing.T) {
	fragments := []Fragment{
		{
			Device: "DNAAS-LEAF-B14", Name: "l_visaev_lab",
			Interfaces: []bd.Interface{member("DNAAS-LEAF-B14", "ge100-0/0/10.50", 50)},
		},
	}

	records := Consolidate(fragments, Options{GlobalVLANs: "100-999", DeviceRole: leafRole})
	if records[0].Scope != bd.ScopeLocal {
		t.Errorf("scope = %q, want local for l_ prefix", records[0].Scope)
	}
}

func TestConsolidateQinQ(t *testing.T) {
	qinq := func(device, name string, outer, inner int) bd.Interface {
		return bd.Interface{
			Device: device, Name: name, Type: bd.TypeOfInterface(name),
			OuterVlan: outer, InnerVlan: inner,
		}
	}
	fragments := []Fragment{
		{
			Device: "DNAAS-LEAF-B14", Name: "g_oren_v400",
			Interfaces: []bd.Interface{
				qinq("DNAAS-LEAF-B14", "ge100-0/0/3.400.10", 400, 10),
				qinq("DNAAS-LEAF-B14", "ge100-0/0/3.400.20", 400, 20),
			},
		},
	}

	records := Consolidate(fragments, Options{GlobalVLANs: "100-999", DeviceRole: leafRole})
	rec := records[0]
	if rec.Type != bd.TypeQinQRange {
		t.Errorf("type = %q, want qinq_range", rec.Type)
	}
	if rec.OuterVlan != 400 {
		t.Errorf("outer vlan = %d, want 400", rec.OuterVlan)
	}
}
