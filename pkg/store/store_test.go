package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/bd"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleBD() *bd.BridgeDomain {
	return &bd.BridgeDomain{
		Name:     "g_visaev_v253",
		Username: "visaev",
		VlanID:   253,
		Type:     bd.TypeSingleTagged,
		Topology: bd.TopologyP2P,
		Scope:    bd.ScopeGlobal,
		Interfaces: []bd.Interface{
			{Device: "DNAAS-LEAF-B14", Name: "ge100-0/0/29.253", Type: bd.IfTypeSubinterface, Role: bd.RoleAccess, VlanID: 253, L2Service: true},
			{Device: "DNAAS-LEAF-B15", Name: "ge100-0/0/31.253", Type: bd.IfTypeSubinterface, Role: bd.RoleAccess, VlanID: 253, L2Service: true},
		},
		Consolidation: bd.ConsolidationInfo{
			OriginalNames: []string{"g_visaev_v253_Spirent", "g_visaev_v253_to_Spirent"},
			Key:           "visaev_v253",
			Count:         2,
		},
	}
}

func TestUpsertAndGetBridgeDomain(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	in := sampleBD()
	id, err := s.UpsertBridgeDomain(ctx, in)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if id == 0 {
		t.Fatal("id = 0")
	}

	got, gotID, err := s.GetBridgeDomain(ctx, "g_visaev_v253")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotID != id {
		t.Errorf("id = %d, want %d", gotID, id)
	}
	if got.Username != "visaev" || got.VlanID != 253 || got.Type != bd.TypeSingleTagged {
		t.Errorf("record = %+v", got)
	}
	if !reflect.DeepEqual(got.Interfaces, in.Interfaces) {
		t.Errorf("interfaces = %+v\nwant %+v", got.Interfaces, in.Interfaces)
	}
}

func TestUpsertReplacesInterfaces(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	in := sampleBD()
	first, err := s.UpsertBridgeDomain(ctx, in)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	in.Interfaces = in.Interfaces[:1]
	second, err := s.UpsertBridgeDomain(ctx, in)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second != first {
		t.Errorf("upsert created a new row: %d then %d", first, second)
	}

	got, _, err := s.GetBridgeDomain(ctx, in.Name)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Interfaces) != 1 {
		t.Errorf("interfaces not replaced: %+v", got.Interfaces)
	}
}

func TestGetBridgeDomainNotFound(t *testing.T) {
	s := openTest(t)
	_, _, err := s.GetBridgeDomain(context.Background(), "g_nobody_v999")
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListBridgeDomainsShowsHolder(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	id, err := s.UpsertBridgeDomain(ctx, sampleBD())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := s.AcquireAssignment(ctx, id, "visaev", "lab testing"); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	list, err := s.ListBridgeDomains(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d rows, want 1", len(list))
	}
	if list[0].AssignedTo != "visaev" {
		t.Errorf("assigned_to = %q, want visaev", list[0].AssignedTo)
	}

	mine, err := s.ListAssignedTo(ctx, "visaev")
	if err != nil {
		t.Fatalf("list assigned: %v", err)
	}
	if len(mine) != 1 || mine[0].Name != "g_visaev_v253" {
		t.Errorf("assigned list = %+v", mine)
	}
}

func TestAcquireAssignmentExclusive(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	id, err := s.UpsertBridgeDomain(ctx, sampleBD())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	first, err := s.AcquireAssignment(ctx, id, "visaev", "testing")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	// Second user is rejected while the hold is active.
	if _, err := s.AcquireAssignment(ctx, id, "oren", "also testing"); !errors.Is(err, util.ErrAlreadyAssigned) {
		t.Fatalf("err = %v, want ErrAlreadyAssigned", err)
	}

	// Re-acquiring one's own hold is a no-op.
	again, err := s.AcquireAssignment(ctx, id, "visaev", "still testing")
	if err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("re-acquire created a new row: %d then %d", first.ID, again.ID)
	}

	if err := s.ReleaseAssignment(ctx, id); err != nil {
		t.Fatalf("release: %v", err)
	}

	// After release the next user can acquire.
	if _, err := s.AcquireAssignment(ctx, id, "oren", "my turn"); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}

	// History keeps the released row.
	hist, err := s.AssignmentHistory(ctx, id)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 {
		t.Errorf("history rows = %d, want 2", len(hist))
	}
}

func TestReleaseWithoutHold(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	id, err := s.UpsertBridgeDomain(ctx, sampleBD())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.ReleaseAssignment(ctx, id); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeploymentLifecycle(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	id, err := s.UpsertBridgeDomain(ctx, sampleBD())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	plan := map[string][]string{
		"DNAAS-LEAF-B14": {"network-services bridge-domain instance g_visaev_v253 interface ge100-0/0/29.253"},
	}
	d, err := s.CreateDeployment(ctx, id, "sess-1", plan)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.Stage != StagePlanned {
		t.Errorf("stage = %q, want planned", d.Stage)
	}

	if err := s.SetDeploymentStage(ctx, d.ID, StageCheckOK, map[string]string{"DNAAS-LEAF-B14": "would_change"}); err != nil {
		t.Fatalf("check_ok: %v", err)
	}
	got, err := s.GetDeployment(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Stage != StageCheckOK || got.EndedAt != "" {
		t.Errorf("mid-flight deployment = %+v", got)
	}
	if !reflect.DeepEqual(got.Plan, plan) {
		t.Errorf("plan = %+v, want %+v", got.Plan, plan)
	}

	if err := s.SetDeploymentStage(ctx, d.ID, StageCommitted, map[string]string{"DNAAS-LEAF-B14": "ok"}); err != nil {
		t.Fatalf("committed: %v", err)
	}
	got, err = s.GetDeployment(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Stage != StageCommitted || got.EndedAt == "" {
		t.Errorf("terminal deployment missing ended_at: %+v", got)
	}
}

func TestDriftEvents(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	id, err := s.UpsertBridgeDomain(ctx, sampleBD())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	d, err := s.CreateDeployment(ctx, id, "sess-1", nil)
	if err != nil {
		t.Fatalf("create deployment: %v", err)
	}

	ev := &DriftEvent{
		DeploymentID: d.ID,
		Kind:         DriftInterfaceConfigured,
		Device:       "DNAAS-LEAF-B14",
		Interface:    "ge100-0/0/29.253",
		Source:       "commit_check",
		Expected:     "absent",
		Observed:     "vlan-id 253",
	}
	if err := s.AddDriftEvent(ctx, ev); err != nil {
		t.Fatalf("add: %v", err)
	}
	if ev.ID == 0 || ev.Severity != "warning" {
		t.Errorf("event after add = %+v", ev)
	}

	events, err := s.ListDriftEvents(ctx, d.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 || events[0].Kind != DriftInterfaceConfigured {
		t.Errorf("events = %+v", events)
	}
}

func TestMarkStale(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	keep := sampleBD()
	if _, err := s.UpsertBridgeDomain(ctx, keep); err != nil {
		t.Fatalf("upsert keep: %v", err)
	}
	gone := sampleBD()
	gone.Name = "g_oren_v100"
	gone.Username = "oren"
	gone.VlanID = 100
	if _, err := s.UpsertBridgeDomain(ctx, gone); err != nil {
		t.Fatalf("upsert gone: %v", err)
	}

	n, err := s.MarkStale(ctx, []string{"g_visaev_v253"})
	if err != nil {
		t.Fatalf("mark stale: %v", err)
	}
	if n != 1 {
		t.Errorf("flagged %d, want 1", n)
	}

	list, err := s.ListBridgeDomains(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	statuses := make(map[string]string)
	for _, sum := range list {
		statuses[sum.Name] = sum.DeploymentStatus
	}
	if statuses["g_oren_v100"] != "stale" || statuses["g_visaev_v253"] == "stale" {
		t.Errorf("statuses = %v", statuses)
	}

	// A later scan that sees the record again revives it via upsert.
	if _, err := s.UpsertBridgeDomain(ctx, gone); err != nil {
		t.Fatalf("revive: %v", err)
	}
	list, err = s.ListBridgeDomains(ctx)
	if err != nil {
		t.Fatalf("list after revive: %v", err)
	}
	for _, sum := range list {
		if sum.Name == "g_oren_v100" && sum.DeploymentStatus != "discovered" {
			t.Errorf("revived status = %q, want discovered", sum.DeploymentStatus)
		}
	}
}

func TestDeviceInterfaceInventory(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	rows := []DeviceInterface{
		{Name: "ge100-0/0/29", Admin: "enabled", Oper: "up"},
		{Name: "ge100-0/0/29.251", Admin: "enabled", Oper: "up", VlanID: 251, L2Service: true},
		{Name: "bundle-60000", Admin: "enabled", Oper: "up"},
	}
	if err := s.ReplaceDeviceInterfaces(ctx, "DNAAS-LEAF-B14", rows); err != nil {
		t.Fatalf("replace: %v", err)
	}

	tests := []struct {
		name    string
		iface   string
		present bool
	}{
		{"exact physical", "ge100-0/0/29", true},
		{"exact sub-interface", "ge100-0/0/29.251", true},
		{"bare port with only sub-interfaces stored", "ge100-0/0/29", true},
		{"suffixed lookup of bare port", "bundle-60000.300", true},
		{"unknown port", "ge100-0/0/99", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			present, scanned, err := s.KnownInterface(ctx, "DNAAS-LEAF-B14", tt.iface)
			if err != nil {
				t.Fatalf("known: %v", err)
			}
			if !scanned {
				t.Fatal("scanned = false for an inventoried device")
			}
			if present != tt.present {
				t.Errorf("present = %v, want %v", present, tt.present)
			}
		})
	}

	// A device no scan has seen cannot be judged.
	if _, scanned, err := s.KnownInterface(ctx, "DNAAS-LEAF-B99", "ge100-0/0/1"); err != nil || scanned {
		t.Errorf("scanned = %v err = %v, want unscanned", scanned, err)
	}

	// A refresh replaces the inventory wholesale.
	if err := s.ReplaceDeviceInterfaces(ctx, "DNAAS-LEAF-B14", rows[:1]); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	list, err := s.ListDeviceInterfaces(ctx, "DNAAS-LEAF-B14")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "ge100-0/0/29" {
		t.Errorf("inventory after refresh = %+v", list)
	}
}
