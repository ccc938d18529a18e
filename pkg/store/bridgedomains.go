package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/bd"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

// Summary is the list-view projection of a bridge domain.
type Summary struct {
	ID               int64
	Name             string
	Username         string
	VlanID           int
	Type             bd.DNAASType
	Topology         bd.TopologyType
	Scope            bd.Scope
	DeploymentStatus string
	AssignedTo       string // empty when unassigned
}

// UpsertBridgeDomain writes one canonical record and its member
// interfaces atomically, keyed by canonical name. Returns the row id.
func (s *Store) UpsertBridgeDomain(ctx context.Context, b *bd.BridgeDomain) (int64, error) {
	configData, err := json.Marshal(b)
	if err != nil {
		return 0, persistErr("marshal bridge domain", err)
	}
	rawCLI, _ := json.Marshal(b.RawCLIConfig)
	discovery, _ := json.Marshal(b.Discovery)

	var id int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT id FROM bridge_domains WHERE name = ?`, b.Name)
		switch err := row.Scan(&id); err {
		case nil:
			_, err2 := tx.ExecContext(ctx, `
				UPDATE bridge_domains SET
					username = ?, vlan_id = ?, outer_vlan = ?, inner_vlan = ?,
					topology_type = ?, dnaas_type = ?, scope = ?,
					configuration_data = ?, raw_cli_config = ?, discovery_data = ?,
					deployment_status = 'discovered', updated_at = ?
				WHERE id = ?`,
				b.Username, b.VlanID, b.OuterVlan, b.InnerVlan,
				string(b.Topology), string(b.Type), string(b.Scope),
				string(configData), string(rawCLI), string(discovery),
				now(), id)
			if err2 != nil {
				return persistErr("update bridge domain", err2)
			}
		case sql.ErrNoRows:
			res, err2 := tx.ExecContext(ctx, `
				INSERT INTO bridge_domains
					(name, username, vlan_id, outer_vlan, inner_vlan,
					 topology_type, dnaas_type, scope,
					 configuration_data, raw_cli_config, discovery_data,
					 created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				b.Name, b.Username, b.VlanID, b.OuterVlan, b.InnerVlan,
				string(b.Topology), string(b.Type), string(b.Scope),
				string(configData), string(rawCLI), string(discovery),
				now(), now())
			if err2 != nil {
				return persistErr("insert bridge domain", err2)
			}
			id, err2 = res.LastInsertId()
			if err2 != nil {
				return persistErr("insert bridge domain", err2)
			}
		default:
			return persistErr("select bridge domain", err)
		}

		// Replace the member set wholesale; partial interface rows without
		// a parent are impossible inside the transaction.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM bridge_domain_interfaces WHERE bridge_domain_id = ?`, id); err != nil {
			return persistErr("clear interfaces", err)
		}
		for _, iface := range b.Interfaces {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO bridge_domain_interfaces
					(bridge_domain_id, device_name, interface_name, interface_type,
					 interface_role, vlan_id, outer_vlan, inner_vlan,
					 admin_status, oper_status, l2_service_enabled, discovered_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, iface.Device, iface.Name, string(iface.Type),
				string(iface.Role), iface.VlanID, iface.OuterVlan, iface.InnerVlan,
				iface.AdminStatus, iface.OperStatus, iface.L2Service, now()); err != nil {
				return persistErr("insert interface", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetBridgeDomain fetches the full canonical record with interfaces.
func (s *Store) GetBridgeDomain(ctx context.Context, name string) (*bd.BridgeDomain, int64, error) {
	var id int64
	var configData string
	row := s.db.QueryRowContext(ctx,
		`SELECT id, configuration_data FROM bridge_domains WHERE name = ?`, name)
	if err := row.Scan(&id, &configData); err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, fmt.Errorf("bridge domain %s: %w", name, util.ErrNotFound)
		}
		return nil, 0, persistErr("select bridge domain", err)
	}

	var b bd.BridgeDomain
	if err := json.Unmarshal([]byte(configData), &b); err != nil {
		return nil, 0, persistErr("unmarshal bridge domain", err)
	}

	// Interface rows are authoritative; the blob may predate an
	// interface-level update.
	ifaces, err := s.interfacesFor(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	b.Interfaces = ifaces
	return &b, id, nil
}

func (s *Store) interfacesFor(ctx context.Context, bdID int64) ([]bd.Interface, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_name, interface_name, interface_type, interface_role,
		       vlan_id, outer_vlan, inner_vlan, admin_status, oper_status,
		       l2_service_enabled
		FROM bridge_domain_interfaces
		WHERE bridge_domain_id = ?
		ORDER BY device_name, interface_name`, bdID)
	if err != nil {
		return nil, persistErr("select interfaces", err)
	}
	defer rows.Close()

	var out []bd.Interface
	for rows.Next() {
		var i bd.Interface
		var ifType, role string
		if err := rows.Scan(&i.Device, &i.Name, &ifType, &role,
			&i.VlanID, &i.OuterVlan, &i.InnerVlan,
			&i.AdminStatus, &i.OperStatus, &i.L2Service); err != nil {
			return nil, persistErr("scan interface", err)
		}
		i.Type = bd.InterfaceType(ifType)
		i.Role = bd.InterfaceRole(role)
		out = append(out, i)
	}
	return out, rows.Err()
}

const summarySelect = `
	SELECT b.id, b.name, COALESCE(b.username, ''), COALESCE(b.vlan_id, 0),
	       COALESCE(b.dnaas_type, ''), COALESCE(b.topology_type, ''),
	       COALESCE(b.scope, ''), b.deployment_status,
	       COALESCE(a.user_id, '')
	FROM bridge_domains b
	LEFT JOIN assignments a
	       ON a.bridge_domain_id = b.id AND a.status = 'assigned'`

func scanSummaries(rows *sql.Rows) ([]Summary, error) {
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var sum Summary
		var dtype, topo, scope string
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Username, &sum.VlanID,
			&dtype, &topo, &scope, &sum.DeploymentStatus, &sum.AssignedTo); err != nil {
			return nil, persistErr("scan summary", err)
		}
		sum.Type = bd.DNAASType(dtype)
		sum.Topology = bd.TopologyType(topo)
		sum.Scope = bd.Scope(scope)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// ListBridgeDomains returns all bridge domains with their active holder.
func (s *Store) ListBridgeDomains(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, summarySelect+` ORDER BY b.name`)
	if err != nil {
		return nil, persistErr("list bridge domains", err)
	}
	return scanSummaries(rows)
}

// ListAssignedTo returns the bridge domains a user currently holds.
func (s *Store) ListAssignedTo(ctx context.Context, user string) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		summarySelect+` WHERE a.user_id = ? ORDER BY b.name`, user)
	if err != nil {
		return nil, persistErr("list assigned", err)
	}
	return scanSummaries(rows)
}

// SetDeploymentStatus updates the denormalized status column, stamping
// deployed_at when the status is "deployed".
func (s *Store) SetDeploymentStatus(ctx context.Context, bdID int64, status string) error {
	var err error
	if status == "deployed" {
		_, err = s.db.ExecContext(ctx, `
			UPDATE bridge_domains SET deployment_status = ?, deployed_at = ?, updated_at = ?
			WHERE id = ?`, status, now(), now(), bdID)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE bridge_domains SET deployment_status = ?, updated_at = ?
			WHERE id = ?`, status, now(), bdID)
	}
	return persistErr("set deployment status", err)
}

// MarkStale flags every bridge domain not in seen as stale. Stale records
// are never deleted; a later scan that finds them again revives them.
// Returns the number of rows flagged.
func (s *Store) MarkStale(ctx context.Context, seen []string) (int, error) {
	seenSet := make(map[string]bool, len(seen))
	for _, name := range seen {
		seenSet[name] = true
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM bridge_domains WHERE deployment_status != 'stale'`)
	if err != nil {
		return 0, persistErr("list for stale marking", err)
	}
	type cand struct {
		id   int64
		name string
	}
	var stale []cand
	for rows.Next() {
		var c cand
		if err := rows.Scan(&c.id, &c.name); err != nil {
			rows.Close()
			return 0, persistErr("scan for stale marking", err)
		}
		if !seenSet[c.name] {
			stale = append(stale, c)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, persistErr("list for stale marking", err)
	}

	for _, c := range stale {
		if err := s.SetDeploymentStatus(ctx, c.id, "stale"); err != nil {
			return 0, err
		}
		util.Warnf("bridge domain %s no longer observed; marked stale", c.name)
	}
	return len(stale), nil
}
