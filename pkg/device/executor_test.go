package device_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/internal/testutil"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/device"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/inventory"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

func testInventory() *inventory.Inventory {
	return inventory.NewStatic(
		inventory.DeviceInfo{Name: "DNAAS-LEAF-B14", Host: "10.0.0.14", Username: "u", Password: "p"},
		inventory.DeviceInfo{Name: "DNAAS-LEAF-B15", Host: "10.0.0.15", Username: "u", Password: "p"},
	)
}

func newTestExecutor(fleet *testutil.FakeFleet) *device.Executor {
	e := device.New(testInventory(), device.Config{Parallelism: 4})
	e.SetDialFunc(fleet.Dial)
	return e
}

func TestExecuteQuery(t *testing.T) {
	fleet := testutil.NewFakeFleet()
	fleet.Script("DNAAS-LEAF-B14", "show interfaces | no-more", testutil.ShowInterfacesB14)

	e := newTestExecutor(fleet)
	res := e.Execute(context.Background(), "DNAAS-LEAF-B14", []string{"show interfaces | no-more"}, device.ModeQuery)

	if res.Status != device.StatusOK {
		t.Fatalf("status = %q, err = %v", res.Status, res.Err)
	}
	if len(res.Outputs) != 1 || res.Outputs[0].Output != testutil.ShowInterfacesB14 {
		t.Errorf("outputs = %+v", res.Outputs)
	}

	shells := fleet.ShellsFor("DNAAS-LEAF-B14")
	if len(shells) != 1 {
		t.Fatalf("opened %d shells, want 1", len(shells))
	}
	if !shells[0].Closed {
		t.Error("shell not closed after operation")
	}
}

func TestExecuteQueryDeviceError(t *testing.T) {
	fleet := testutil.NewFakeFleet()
	fleet.Script("DNAAS-LEAF-B14", "show foo", "ERROR: unknown command")

	e := newTestExecutor(fleet)
	res := e.Execute(context.Background(), "DNAAS-LEAF-B14", []string{"show foo"}, device.ModeQuery)

	if res.Status != device.StatusError {
		t.Fatalf("status = %q, want error", res.Status)
	}
	if !errors.Is(res.Err, util.ErrProtocol) {
		t.Errorf("err = %v, want ErrProtocol", res.Err)
	}
}

func TestExecuteDryRun(t *testing.T) {
	fleet := testutil.NewFakeFleet()
	e := newTestExecutor(fleet)

	cmds := []string{"interfaces ge100-0/0/31.251 vlan-id 251"}
	res := e.Execute(context.Background(), "DNAAS-LEAF-B15", cmds, device.ModeDryRun)

	if res.Status != device.StatusOK {
		t.Fatalf("status = %q", res.Status)
	}
	if len(res.Outputs) != 1 || res.Outputs[0].Command != cmds[0] {
		t.Errorf("outputs = %+v", res.Outputs)
	}
	if len(fleet.Opened) != 0 {
		t.Error("dry-run must not dial")
	}
}

func TestCommitCheckWouldChange(t *testing.T) {
	fleet := testutil.NewFakeFleet()
	fleet.Script("DNAAS-LEAF-B15", "commit check", testutil.CommitCheckOK)

	e := newTestExecutor(fleet)
	cmds := []string{
		"network-services bridge-domain instance g_visaev_v251 interface ge100-0/0/31.251",
		"interfaces ge100-0/0/31.251 l2-service enabled",
		"interfaces ge100-0/0/31.251 vlan-id 251",
	}
	res := e.Execute(context.Background(), "DNAAS-LEAF-B15", cmds, device.ModeCommitCheck)

	if res.Status != device.StatusWouldChange {
		t.Fatalf("status = %q, err = %v", res.Status, res.Err)
	}

	want := append(append([]string{"configure"}, cmds...), "commit check", "exit")
	sent := fleet.ShellsFor("DNAAS-LEAF-B15")[0].SentCommands()
	if !reflect.DeepEqual(sent, want) {
		t.Errorf("sent = %v\nwant = %v", sent, want)
	}
}

func TestCommitCheckNoChangeIsDriftSignal(t *testing.T) {
	fleet := testutil.NewFakeFleet()
	fleet.Script("DNAAS-LEAF-B15", "commit check", testutil.CommitCheckNoChange)

	e := newTestExecutor(fleet)
	res := e.Execute(context.Background(), "DNAAS-LEAF-B15",
		[]string{"interfaces ge100-0/0/31.251 vlan-id 251"}, device.ModeCommitCheck)

	if res.Status != device.StatusNoChange {
		t.Fatalf("status = %q, want no_change", res.Status)
	}
	if res.Err != nil {
		t.Errorf("no-change is a signal, not an error: %v", res.Err)
	}

	// The session must still leave configuration mode.
	sent := fleet.ShellsFor("DNAAS-LEAF-B15")[0].SentCommands()
	if sent[len(sent)-1] != "exit" {
		t.Errorf("session left in config mode: %v", sent)
	}
}

func TestCommitCheckDeviceErrorRollsBack(t *testing.T) {
	fleet := testutil.NewFakeFleet()
	fleet.Script("DNAAS-LEAF-B15", "interfaces ge100-0/0/31.251 vlan-id 251", "ERROR: invalid-value")

	e := newTestExecutor(fleet)
	res := e.Execute(context.Background(), "DNAAS-LEAF-B15",
		[]string{"interfaces ge100-0/0/31.251 vlan-id 251"}, device.ModeCommitCheck)

	if res.Status != device.StatusError {
		t.Fatalf("status = %q", res.Status)
	}
	if !errors.Is(res.Err, util.ErrProtocol) {
		t.Errorf("err = %v, want ErrProtocol", res.Err)
	}

	sent := fleet.ShellsFor("DNAAS-LEAF-B15")[0].SentCommands()
	if !reflect.DeepEqual(sent[len(sent)-2:], []string{"rollback", "exit"}) {
		t.Errorf("expected rollback+exit tail, sent = %v", sent)
	}
}

func TestCommitSendsCommitAndExit(t *testing.T) {
	fleet := testutil.NewFakeFleet()
	fleet.Script("DNAAS-LEAF-B15", "commit and-exit", testutil.CommitOK)

	e := newTestExecutor(fleet)
	cmds := []string{"interfaces ge100-0/0/31.251 vlan-id 251"}
	res := e.Execute(context.Background(), "DNAAS-LEAF-B15", cmds, device.ModeCommit)

	if res.Status != device.StatusOK {
		t.Fatalf("status = %q, err = %v", res.Status, res.Err)
	}
	want := []string{"configure", cmds[0], "commit and-exit"}
	sent := fleet.ShellsFor("DNAAS-LEAF-B15")[0].SentCommands()
	if !reflect.DeepEqual(sent, want) {
		t.Errorf("sent = %v, want %v", sent, want)
	}
}

func TestExecuteParallelIndependentFailures(t *testing.T) {
	fleet := testutil.NewFakeFleet()
	fleet.Script("DNAAS-LEAF-B14", "show interfaces | no-more", testutil.ShowInterfacesB14)
	fleet.DialErr["DNAAS-LEAF-B15"] = errors.New("connection refused")

	e := newTestExecutor(fleet)
	plan := device.Plan{
		"DNAAS-LEAF-B14": {"show interfaces | no-more"},
		"DNAAS-LEAF-B15": {"show interfaces | no-more"},
	}
	results := e.ExecuteParallel(context.Background(), plan, device.ModeQuery)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results["DNAAS-LEAF-B14"].Status != device.StatusOK {
		t.Errorf("B14 = %q, want ok", results["DNAAS-LEAF-B14"].Status)
	}
	if results["DNAAS-LEAF-B15"].Status != device.StatusError {
		t.Errorf("B15 = %q, want error", results["DNAAS-LEAF-B15"].Status)
	}
	if !errors.Is(results["DNAAS-LEAF-B15"].Err, util.ErrConnectivity) {
		t.Errorf("B15 err = %v, want ErrConnectivity", results["DNAAS-LEAF-B15"].Err)
	}
}

func TestExecuteCancelled(t *testing.T) {
	fleet := testutil.NewFakeFleet()
	e := newTestExecutor(fleet)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := e.Execute(ctx, "DNAAS-LEAF-B14", []string{"show interfaces | no-more"}, device.ModeQuery)
	if !res.Cancelled || res.Status != device.StatusCancelled {
		t.Errorf("result = %+v, want cancelled", res)
	}
	if !errors.Is(res.Err, util.ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", res.Err)
	}
}

func TestUnknownDeviceIsValidationError(t *testing.T) {
	fleet := testutil.NewFakeFleet()
	e := newTestExecutor(fleet)

	res := e.Execute(context.Background(), "NOPE", []string{"show interfaces"}, device.ModeQuery)
	if res.Status != device.StatusError || !errors.Is(res.Err, util.ErrValidation) {
		t.Errorf("result = %+v, want validation error", res)
	}
}
