package deploy

import (
	"errors"
	"reflect"
	"testing"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/bd"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/device"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

func singleTaggedRecord() *bd.BridgeDomain {
	return &bd.BridgeDomain{
		Name:     "g_visaev_v253",
		Username: "visaev",
		VlanID:   253,
		Type:     bd.TypeSingleTagged,
		Interfaces: []bd.Interface{
			{Device: "DNAAS-LEAF-B14", Name: "ge100-0/0/29"},      // bare: gains the suffix
			{Device: "DNAAS-LEAF-B15", Name: "ge100-0/0/31.253"},  // already suffixed: used as-is
		},
	}
}

func TestBuildPlanSingleTagged(t *testing.T) {
	plan, err := BuildPlan(singleTaggedRecord())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	want := device.Plan{
		"DNAAS-LEAF-B14": {
			"network-services bridge-domain instance g_visaev_v253 interface ge100-0/0/29.253",
			"interfaces ge100-0/0/29.253 l2-service enabled",
			"interfaces ge100-0/0/29.253 vlan-id 253",
		},
		"DNAAS-LEAF-B15": {
			"network-services bridge-domain instance g_visaev_v253 interface ge100-0/0/31.253",
			"interfaces ge100-0/0/31.253 l2-service enabled",
			"interfaces ge100-0/0/31.253 vlan-id 253",
		},
	}
	if !reflect.DeepEqual(plan, want) {
		t.Errorf("plan = %v\nwant %v", plan, want)
	}
}

func TestBuildPlanSuffixOnce(t *testing.T) {
	// Planning twice from the same record must not stack suffixes.
	rec := singleTaggedRecord()
	first, err := BuildPlan(rec)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	second, err := BuildPlan(rec)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("replanning changed the plan:\n%v\n%v", first, second)
	}
}

func TestBuildPlanVlanConflict(t *testing.T) {
	rec := singleTaggedRecord()
	rec.Interfaces = append(rec.Interfaces,
		bd.Interface{Device: "DNAAS-LEAF-B16", Name: "ge100-0/0/7.100"})

	_, err := BuildPlan(rec)
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("err = %v, want validation error for mismatched suffix", err)
	}
}

func TestBuildPlanDuplicateClaim(t *testing.T) {
	rec := singleTaggedRecord()
	// bare name and its suffixed form resolve to the same sub-interface
	rec.Interfaces = append(rec.Interfaces,
		bd.Interface{Device: "DNAAS-LEAF-B14", Name: "ge100-0/0/29.253"})

	_, err := BuildPlan(rec)
	if !errors.Is(err, util.ErrValidation) {
		t.Fatalf("err = %v, want validation error for duplicate claim", err)
	}
}

func TestBuildPlanQinQ(t *testing.T) {
	rec := &bd.BridgeDomain{
		Name:      "g_oren_v400",
		Username:  "oren",
		OuterVlan: 400,
		Type:      bd.TypeQinQSingle,
		Interfaces: []bd.Interface{
			{Device: "DNAAS-LEAF-B14", Name: "ge100-0/0/3.400.10", InnerVlan: 10},
		},
	}

	plan, err := BuildPlan(rec)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []string{
		"network-services bridge-domain instance g_oren_v400 interface ge100-0/0/3.400.10",
		"interfaces ge100-0/0/3.400.10 l2-service enabled",
		"interfaces ge100-0/0/3.400.10 vlan-tags outer-tag 400 inner-tag 10",
	}
	if !reflect.DeepEqual(plan["DNAAS-LEAF-B14"], want) {
		t.Errorf("plan = %v\nwant %v", plan["DNAAS-LEAF-B14"], want)
	}
}

func TestBuildPlanRejectsUnknownType(t *testing.T) {
	rec := singleTaggedRecord()
	rec.Type = bd.TypeUnknown
	if _, err := BuildPlan(rec); !errors.Is(err, util.ErrValidation) {
		t.Fatalf("err = %v, want validation error for unknown type", err)
	}
}

func TestBuildPlanEmptyRecord(t *testing.T) {
	rec := singleTaggedRecord()
	rec.Interfaces = nil
	plan, err := BuildPlan(rec)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(plan) != 0 {
		t.Errorf("plan = %v, want empty", plan)
	}
}

func TestRollbackPlan(t *testing.T) {
	plan := device.Plan{
		"DNAAS-LEAF-B14": {
			"network-services bridge-domain instance g_visaev_v253 interface ge100-0/0/29.253",
			"interfaces ge100-0/0/29.253 l2-service enabled",
			"interfaces ge100-0/0/29.253 vlan-id 253",
		},
	}

	want := device.Plan{
		"DNAAS-LEAF-B14": {
			"no interfaces ge100-0/0/29.253 vlan-id 253",
			"no interfaces ge100-0/0/29.253 l2-service enabled",
			"no network-services bridge-domain instance g_visaev_v253 interface ge100-0/0/29.253",
		},
	}
	if got := RollbackPlan(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("rollback = %v\nwant %v", got, want)
	}
}
