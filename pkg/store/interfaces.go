package store

import (
	"context"
	"database/sql"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/bd"
)

// DeviceInterface is one row of a device's interface inventory, refreshed
// on every full scan. The deploy planner validates change targets against
// it before any device is contacted.
type DeviceInterface struct {
	Name      string
	Admin     string
	Oper      string
	VlanID    int
	L2Service bool
}

// ReplaceDeviceInterfaces swaps one device's interface inventory for the
// rows a scan just captured. Atomic per device: a failed refresh leaves
// the previous inventory in place.
func (s *Store) ReplaceDeviceInterfaces(ctx context.Context, device string, rows []DeviceInterface) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM device_interfaces WHERE device_name = ?`, device); err != nil {
			return err
		}
		ts := now()
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO device_interfaces
					(device_name, interface_name, admin_status, oper_status, vlan_id, l2_service_enabled, scanned_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				device, r.Name, r.Admin, r.Oper, r.VlanID, r.L2Service, ts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return persistErr("replacing interface inventory for "+device, err)
	}
	return nil
}

// KnownInterface reports whether the named interface (or a sub-interface
// of it) exists on the device per the last scan. scanned is false when the
// device has never been inventoried, in which case present is meaningless
// and callers should not reject on it.
func (s *Store) KnownInterface(ctx context.Context, device, iface string) (present, scanned bool, err error) {
	var n int
	if err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM device_interfaces WHERE device_name = ?`, device).Scan(&n); err != nil {
		return false, false, persistErr("querying interface inventory", err)
	}
	if n == 0 {
		return false, false, nil
	}

	base, _ := bd.SplitInterfaceName(iface)
	if err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM device_interfaces
		WHERE device_name = ?
		  AND (interface_name = ? OR interface_name = ? OR interface_name LIKE ?)`,
		device, iface, base, base+".%").Scan(&n); err != nil {
		return false, true, persistErr("querying interface inventory", err)
	}
	return n > 0, true, nil
}

// ListDeviceInterfaces returns one device's inventory, sorted by name.
func (s *Store) ListDeviceInterfaces(ctx context.Context, device string) ([]DeviceInterface, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT interface_name, admin_status, oper_status, COALESCE(vlan_id, 0), l2_service_enabled
		FROM device_interfaces WHERE device_name = ? ORDER BY interface_name`, device)
	if err != nil {
		return nil, persistErr("listing interface inventory", err)
	}
	defer rows.Close()

	var out []DeviceInterface
	for rows.Next() {
		var r DeviceInterface
		if err := rows.Scan(&r.Name, &r.Admin, &r.Oper, &r.VlanID, &r.L2Service); err != nil {
			return nil, persistErr("listing interface inventory", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
