package deploy

import (
	"context"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/bd"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/discovery"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/store"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

// Resolution is the operator's answer to detected drift.
type Resolution string

const (
	// ResolutionSync re-reads the device and folds reality into the
	// database, then replans.
	ResolutionSync Resolution = "sync"
	// ResolutionSkip drops the drifted device from the commit phase.
	ResolutionSkip Resolution = "skip"
	// ResolutionOverride commits anyway, treating the device state as
	// already correct.
	ResolutionOverride Resolution = "override"
	// ResolutionAbort stops the deployment with nothing committed.
	ResolutionAbort Resolution = "abort"
)

// Drift describes one detected divergence for the resolver.
type Drift struct {
	Device       string
	BridgeDomain string
	Output       string // the commit-check output that signalled it
}

// Resolver decides how to handle drift. The CLI supplies an interactive
// one; non-interactive runs abort, which is the safe default.
type Resolver func(ctx context.Context, d Drift) Resolution

// AbortResolver always aborts.
func AbortResolver(context.Context, Drift) Resolution { return ResolutionAbort }

// Syncer refreshes one device's view of a bridge domain into the store.
type Syncer struct {
	scan *discovery.Engine
	db   *store.Store
}

// NewSyncer creates a syncer over the discovery engine and store.
func NewSyncer(scan *discovery.Engine, db *store.Store) *Syncer {
	return &Syncer{scan: scan, db: db}
}

// Sync re-reads the bridge domain from the drifted device, merges the
// fresh fragment into the stored record, reclassifies, and persists.
// Returns the refreshed record for replanning. The device may hold the
// service under any of its consolidated names, so every original name is
// tried after the canonical one.
func (s *Syncer) Sync(ctx context.Context, rec *bd.BridgeDomain, deviceName string) (*bd.BridgeDomain, error) {
	names := append([]string{rec.Name}, rec.Consolidation.OriginalNames...)

	var frag discovery.Fragment
	var err error
	for _, name := range names {
		frag, err = s.scan.TargetedScan(ctx, deviceName, name)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	// Replace the device's members with what it actually reports.
	merged := *rec
	merged.Interfaces = nil
	for _, i := range rec.Interfaces {
		if i.Device != deviceName {
			merged.Interfaces = append(merged.Interfaces, i)
		}
	}
	merged.Interfaces = append(merged.Interfaces, frag.Interfaces...)

	cls := bd.Classify(merged.VlanID, merged.Interfaces)
	merged.Type = cls.Type

	if _, err := s.db.UpsertBridgeDomain(ctx, &merged); err != nil {
		return nil, err
	}
	util.WithDevice(deviceName).Infof("synced %s from device (%d members)", rec.Name, len(frag.Interfaces))
	return &merged, nil
}
