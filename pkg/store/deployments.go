package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

// Deployment stages. A deployment moves planned -> check_ok -> committed,
// or ends in failed / aborted.
const (
	StagePlanned   = "planned"
	StageCheckOK   = "check_ok"
	StageCommitted = "committed"
	StageFailed    = "failed"
	StageAborted   = "aborted"
)

// Deployment records one push of a bridge domain to the fleet.
type Deployment struct {
	ID             int64
	BridgeDomainID int64
	SessionID      string
	Stage          string
	Plan           map[string][]string
	StartedAt      string
	EndedAt        string
}

// Drift event kinds.
const (
	DriftInterfaceConfigured = "interface_already_configured"
	DriftBridgeDomainExists  = "bridge_domain_already_exists"
	DriftVlanConflict        = "vlan_conflict"
	DriftConfigMismatch      = "configuration_mismatch"
)

// DriftEvent is one detected divergence between the database and a device.
type DriftEvent struct {
	ID           int64
	DeploymentID int64
	Kind         string
	Device       string
	Interface    string
	Source       string // commit_check | scan
	Severity     string // warning | error
	Expected     string
	Observed     string
	CreatedAt    string
}

// CreateDeployment opens a deployment record in the planned stage.
func (s *Store) CreateDeployment(ctx context.Context, bdID int64, sessionID string, plan map[string][]string) (*Deployment, error) {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, persistErr("marshal plan", err)
	}
	d := &Deployment{
		BridgeDomainID: bdID,
		SessionID:      sessionID,
		Stage:          StagePlanned,
		Plan:           plan,
		StartedAt:      now(),
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO deployments (bridge_domain_id, session_id, stage, plan, started_at)
		VALUES (?, ?, 'planned', ?, ?)`,
		bdID, sessionID, string(planJSON), d.StartedAt)
	if err != nil {
		return nil, persistErr("create deployment", err)
	}
	d.ID, err = res.LastInsertId()
	if err != nil {
		return nil, persistErr("create deployment", err)
	}
	return d, nil
}

func terminalStage(stage string) bool {
	return stage == StageCommitted || stage == StageFailed || stage == StageAborted
}

// SetDeploymentStage advances a deployment, recording per-device results
// and stamping ended_at on terminal stages.
func (s *Store) SetDeploymentStage(ctx context.Context, id int64, stage string, perDevice map[string]string) error {
	resultsJSON := "{}"
	if perDevice != nil {
		b, err := json.Marshal(perDevice)
		if err != nil {
			return persistErr("marshal results", err)
		}
		resultsJSON = string(b)
	}

	var err error
	if terminalStage(stage) {
		_, err = s.db.ExecContext(ctx, `
			UPDATE deployments SET stage = ?, per_device_results = ?, ended_at = ?
			WHERE id = ?`, stage, resultsJSON, now(), id)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE deployments SET stage = ?, per_device_results = ?
			WHERE id = ?`, stage, resultsJSON, id)
	}
	return persistErr("set deployment stage", err)
}

// GetDeployment fetches one deployment by id.
func (s *Store) GetDeployment(ctx context.Context, id int64) (*Deployment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, bridge_domain_id, session_id, stage, COALESCE(plan, '{}'),
		       started_at, COALESCE(ended_at, '')
		FROM deployments WHERE id = ?`, id)

	var d Deployment
	var planJSON string
	err := row.Scan(&d.ID, &d.BridgeDomainID, &d.SessionID, &d.Stage,
		&planJSON, &d.StartedAt, &d.EndedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("deployment %d: %w", id, util.ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("select deployment", err)
	}
	if err := json.Unmarshal([]byte(planJSON), &d.Plan); err != nil {
		return nil, persistErr("unmarshal plan", err)
	}
	return &d, nil
}

// AddDriftEvent records a detected divergence.
func (s *Store) AddDriftEvent(ctx context.Context, e *DriftEvent) error {
	if e.Severity == "" {
		e.Severity = "warning"
	}
	e.CreatedAt = now()

	var depID interface{}
	if e.DeploymentID != 0 {
		depID = e.DeploymentID
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO drift_events
			(deployment_id, kind, device_name, interface_name,
			 detection_source, severity, expected, observed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		depID, e.Kind, e.Device, e.Interface,
		e.Source, e.Severity, e.Expected, e.Observed, e.CreatedAt)
	if err != nil {
		return persistErr("add drift event", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return persistErr("add drift event", err)
	}
	return nil
}

// ListDriftEvents returns the drift events for a deployment, oldest first.
func (s *Store) ListDriftEvents(ctx context.Context, deploymentID int64) ([]DriftEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(deployment_id, 0), kind, device_name,
		       COALESCE(interface_name, ''), detection_source, severity,
		       COALESCE(expected, ''), COALESCE(observed, ''), created_at
		FROM drift_events
		WHERE deployment_id = ?
		ORDER BY id`, deploymentID)
	if err != nil {
		return nil, persistErr("list drift events", err)
	}
	defer rows.Close()

	var out []DriftEvent
	for rows.Next() {
		var e DriftEvent
		if err := rows.Scan(&e.ID, &e.DeploymentID, &e.Kind, &e.Device,
			&e.Interface, &e.Source, &e.Severity,
			&e.Expected, &e.Observed, &e.CreatedAt); err != nil {
			return nil, persistErr("scan drift event", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
