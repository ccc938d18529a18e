package deploy

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/audit"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/bd"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/device"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/store"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/workspace"
)

// Orchestrator runs the two-phase deployment: every device must pass
// "commit check" before any device commits, and the command lists that
// passed the check are the ones committed, verbatim.
type Orchestrator struct {
	exec    *device.Executor
	db      *store.Store
	log     audit.Logger
	resolve Resolver
	syncer  *Syncer
	policy  *workspace.Policy
}

// New creates an orchestrator. A nil audit logger disables attribution;
// the default drift resolver aborts.
func New(exec *device.Executor, db *store.Store, log audit.Logger) *Orchestrator {
	if log == nil {
		log = audit.NopLogger{}
	}
	return &Orchestrator{exec: exec, db: db, log: log, resolve: AbortResolver}
}

// SetResolver installs an interactive drift resolver.
func (o *Orchestrator) SetResolver(r Resolver) {
	if r != nil {
		o.resolve = r
	}
}

// SetSyncer enables the sync drift resolution. Without one, sync answers
// degrade to abort.
func (o *Orchestrator) SetSyncer(s *Syncer) {
	o.syncer = s
}

// SetPolicy installs the VLAN-range policy checked on every deployment
// initiation. Without one, only the assignment layer's checks apply.
func (o *Orchestrator) SetPolicy(p workspace.Policy) {
	o.policy = &p
}

// Options tunes one deployment.
type Options struct {
	User      string
	SessionID string // edit-session id; generated when empty
	DryRun    bool
}

// Outcome reports what one deployment did.
type Outcome struct {
	Stage   string
	Plan    device.Plan
	Results map[string]*device.Result
	Drifted []string // devices that reported no_change on commit check
	Skipped []string // devices dropped from the commit phase
	// RollbackPlan is the "no"-prefixed inverse for devices that committed
	// before a peer failed. It is reported for the operator, never
	// auto-executed.
	RollbackPlan device.Plan
	DeploymentID int64
	DryRun       bool
	NoOp         bool
}

// Deploy pushes an edit session's staged changes to the fleet. rec is the
// stored record the changes were staged against; only the devices a
// change touches are planned and contacted.
//
// An empty or already-satisfied change list returns immediately without
// touching any device. Dry runs render the plan and stop. Otherwise the
// deployment record tracks the stages planned -> check_ok -> committed,
// ending in failed or aborted on the way out.
func (o *Orchestrator) Deploy(ctx context.Context, rec *bd.BridgeDomain, changes []workspace.Change, opts Options) (*Outcome, error) {
	if err := o.validate(ctx, rec, changes, opts.User); err != nil {
		return nil, err
	}

	remaining := Outstanding(rec, changes)
	plan, err := PlanChanges(rec, remaining)
	if err != nil {
		return nil, err
	}
	desired, err := workspace.ApplyChanges(rec, remaining)
	if err != nil {
		return nil, err
	}

	if len(plan) == 0 {
		util.Infof("deploy %s: nothing to do", rec.Name)
		return &Outcome{Stage: "no_op", NoOp: true}, nil
	}
	if opts.DryRun {
		results := o.exec.ExecuteParallel(ctx, plan, device.ModeDryRun)
		return &Outcome{Stage: "dry_run", Plan: plan, Results: results, DryRun: true}, nil
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	bdID, err := o.ensureRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	dep, err := o.db.CreateDeployment(ctx, bdID, sessionID, plan)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Plan: plan, DeploymentID: dep.ID}
	ev := audit.NewEvent(opts.User, audit.ActionDeploy, rec.Name).WithSession(sessionID)

	err = o.run(ctx, rec, changes, desired, plan, dep, out)
	o.auditLog(ev.WithDetail("stage", out.Stage).WithError(err))
	return out, err
}

// validate rejects a session before any device is contacted: every
// referenced device must be in the inventory, add targets must exist on
// their device per the last scan, and the acting user's VLAN policy must
// admit every tag the session touches.
func (o *Orchestrator) validate(ctx context.Context, rec *bd.BridgeDomain, changes []workspace.Change, user string) error {
	var v util.ValidationBuilder
	for _, c := range changes {
		devices := []string{c.Device}
		if c.Op == workspace.OpMoveInterface {
			devices = append(devices, c.ToDevice)
		}
		for _, dev := range devices {
			if !o.exec.HasDevice(dev) {
				v.AddErrorf("device %s not in inventory", dev)
			}
		}

		if o.policy != nil {
			vlan := rec.VlanID
			if c.Op == workspace.OpModifyVLAN {
				vlan = c.VlanID
			}
			if err := o.policy.CanModifyVLAN(user, vlan); err != nil {
				return err
			}
		}

		// The interface inventory only constrains devices a scan has seen;
		// an uninventoried device cannot be judged.
		var dev, iface string
		switch c.Op {
		case workspace.OpAddInterface:
			dev, iface = c.Device, c.Interface
		case workspace.OpMoveInterface:
			dev, iface = c.ToDevice, c.ToInterface
		default:
			continue
		}
		present, scanned, err := o.db.KnownInterface(ctx, dev, iface)
		if err != nil {
			return err
		}
		if scanned && !present {
			v.AddErrorf("%s has no interface %s", dev, iface)
		}
	}
	return v.Build()
}

// ensureRecord resolves the stored row id, creating the record for a
// first-time deployment.
func (o *Orchestrator) ensureRecord(ctx context.Context, rec *bd.BridgeDomain) (int64, error) {
	_, id, err := o.db.GetBridgeDomain(ctx, rec.Name)
	if errors.Is(err, util.ErrNotFound) {
		return o.db.UpsertBridgeDomain(ctx, rec)
	}
	return id, err
}

func (o *Orchestrator) run(ctx context.Context, rec *bd.BridgeDomain, changes []workspace.Change, desired *bd.BridgeDomain, plan device.Plan, dep *store.Deployment, out *Outcome) error {
	// Phase one: commit check everywhere. One sync-replan retry is
	// allowed; drift that survives a sync aborts.
	synced := false
	for {
		if len(plan) == 0 {
			// a sync folded every staged change into the record already
			break
		}

		checkResults := o.exec.ExecuteParallel(ctx, plan, device.ModeCommitCheck)
		out.Results = checkResults

		if err := firstFailure(checkResults); err != nil {
			o.finish(ctx, dep, store.StageFailed, checkResults, out)
			return err
		}

		drifted := driftedDevices(checkResults)
		out.Drifted = appendUnique(out.Drifted, drifted...)
		if len(drifted) == 0 {
			break
		}

		resynced, commitPlan, err := o.resolveDrift(ctx, rec, plan, dep, drifted, checkResults, out, synced)
		if err != nil {
			o.finish(ctx, dep, store.StageAborted, checkResults, out)
			return err
		}
		if resynced != nil {
			// replan the still-outstanding changes against the refreshed
			// record and re-check
			rec = resynced
			remaining := Outstanding(rec, changes)
			if len(remaining) == 0 {
				plan = device.Plan{}
				desired = rec
			} else {
				plan, err = PlanChanges(rec, remaining)
				if err == nil {
					desired, err = workspace.ApplyChanges(rec, remaining)
				}
				if err != nil {
					o.finish(ctx, dep, store.StageAborted, checkResults, out)
					return err
				}
			}
			out.Plan = plan
			synced = true
			continue
		}
		plan = commitPlan
		break
	}

	if err := o.db.SetDeploymentStage(ctx, dep.ID, store.StageCheckOK, resultStages(out.Results)); err != nil {
		return err
	}

	// Every device may have been skipped or synced away; the database
	// still records the desired state as reality.
	if len(plan) == 0 {
		return o.success(ctx, desired, dep, out)
	}

	// Phase two: commit the exact command lists that passed the check.
	commitResults := o.exec.ExecuteParallel(ctx, plan, device.ModeCommit)
	out.Results = commitResults

	if err := firstFailure(commitResults); err != nil {
		out.RollbackPlan = partialRollback(plan, commitResults)
		o.finish(ctx, dep, store.StageFailed, commitResults, out)
		if len(out.RollbackPlan) > 0 {
			util.Errorf("commit failed after %d devices committed; rollback plan prepared, not executed",
				len(out.RollbackPlan))
		}
		return fmt.Errorf("commit failed: %w", err)
	}

	return o.success(ctx, desired, dep, out)
}

// resolveDrift records drift events and asks the resolver what to do.
// Returns a refreshed record when the answer is sync, or the plan with
// skipped devices removed otherwise.
func (o *Orchestrator) resolveDrift(ctx context.Context, rec *bd.BridgeDomain, plan device.Plan, dep *store.Deployment, drifted []string, results map[string]*device.Result, out *Outcome, alreadySynced bool) (*bd.BridgeDomain, device.Plan, error) {
	commitPlan := device.Plan{}
	for dev, cmds := range plan {
		commitPlan[dev] = cmds
	}

	for _, dev := range drifted {
		output := lastOutput(results[dev])
		if err := o.db.AddDriftEvent(ctx, &store.DriftEvent{
			DeploymentID: dep.ID,
			Kind:         store.DriftInterfaceConfigured,
			Device:       dev,
			Source:       "commit_check",
			Expected:     "configuration change",
			Observed:     output,
		}); err != nil {
			return nil, nil, err
		}

		resolution := o.resolve(ctx, Drift{Device: dev, BridgeDomain: rec.Name, Output: output})
		util.WithDevice(dev).Infof("drift on %s resolved as %s", rec.Name, resolution)

		switch resolution {
		case ResolutionSync:
			if o.syncer == nil || alreadySynced {
				return nil, nil, driftAbort(dev, rec.Name)
			}
			refreshed, err := o.syncer.Sync(ctx, rec, dev)
			if err != nil {
				return nil, nil, err
			}
			return refreshed, nil, nil
		case ResolutionSkip:
			delete(commitPlan, dev)
			out.Skipped = appendUnique(out.Skipped, dev)
		case ResolutionOverride:
			// device already carries the config; nothing to commit there
			delete(commitPlan, dev)
		default:
			return nil, nil, driftAbort(dev, rec.Name)
		}
	}
	return nil, commitPlan, nil
}

// partialRollback builds the undo plan for devices that committed before
// a peer failed. Executing it is the operator's call.
func partialRollback(plan device.Plan, results map[string]*device.Result) device.Plan {
	undo := device.Plan{}
	for dev, res := range results {
		if res.Status == device.StatusOK {
			undo[dev] = plan[dev]
		}
	}
	if len(undo) == 0 {
		return nil
	}
	return RollbackPlan(undo)
}

func (o *Orchestrator) success(ctx context.Context, desired *bd.BridgeDomain, dep *store.Deployment, out *Outcome) error {
	// The desired state is now reality; persist it as such.
	id, err := o.db.UpsertBridgeDomain(ctx, desired)
	if err != nil {
		return err
	}
	if err := o.db.SetDeploymentStatus(ctx, id, "deployed"); err != nil {
		return err
	}
	o.finish(ctx, dep, store.StageCommitted, out.Results, out)
	util.Infof("deployed %s to %d devices", desired.Name, len(out.Plan))
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, dep *store.Deployment, stage string, results map[string]*device.Result, out *Outcome) {
	out.Stage = stage
	if err := o.db.SetDeploymentStage(ctx, dep.ID, stage, resultStages(results)); err != nil {
		util.Errorf("recording deployment stage %s: %v", stage, err)
	}
}

func sortedDevices(results map[string]*device.Result) []string {
	out := make([]string, 0, len(results))
	for dev := range results {
		out = append(out, dev)
	}
	sort.Strings(out)
	return out
}

func firstFailure(results map[string]*device.Result) error {
	for _, dev := range sortedDevices(results) {
		res := results[dev]
		if res.Status == device.StatusError || res.Status == device.StatusCancelled {
			return res.Err
		}
	}
	return nil
}

func driftedDevices(results map[string]*device.Result) []string {
	var out []string
	for _, dev := range sortedDevices(results) {
		if results[dev].Status == device.StatusNoChange {
			out = append(out, dev)
		}
	}
	return out
}

func resultStages(results map[string]*device.Result) map[string]string {
	out := make(map[string]string, len(results))
	for dev, res := range results {
		out[dev] = string(res.Status)
	}
	return out
}

func lastOutput(res *device.Result) string {
	if res == nil || len(res.Outputs) == 0 {
		return ""
	}
	return res.Outputs[len(res.Outputs)-1].Output
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		dup := false
		for _, have := range list {
			if have == item {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, item)
		}
	}
	return list
}

func driftAbort(dev, bdName string) error {
	return fmt.Errorf("%s already carries %s config, deployment aborted: %w", dev, bdName, util.ErrDrift)
}

func (o *Orchestrator) auditLog(ev *audit.Event) {
	if err := o.log.Log(ev); err != nil {
		util.Warnf("audit log write failed: %v", err)
	}
}
