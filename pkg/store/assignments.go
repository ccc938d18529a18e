package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

// Assignment is one exclusive hold of a bridge domain by a user.
type Assignment struct {
	ID             int64
	BridgeDomainID int64
	UserID         string
	Reason         string
	Status         string // assigned | released
	AssignedAt     string
	ReleasedAt     string
}

// AcquireAssignment grants user an exclusive hold on the bridge domain.
// Exactly one active assignment per bridge domain is enforced by a partial
// unique index; a second acquisition reports ErrAlreadyAssigned with the
// current holder, and re-acquiring one's own hold is a no-op.
func (s *Store) AcquireAssignment(ctx context.Context, bdID int64, user, reason string) (*Assignment, error) {
	a := &Assignment{
		BridgeDomainID: bdID,
		UserID:         user,
		Reason:         reason,
		Status:         "assigned",
		AssignedAt:     now(),
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments (bridge_domain_id, user_id, reason, status, assigned_at)
		VALUES (?, ?, ?, 'assigned', ?)`,
		bdID, user, reason, a.AssignedAt)
	if err != nil {
		if isUniqueViolation(err) {
			holder, herr := s.ActiveAssignment(ctx, bdID)
			if herr == nil && holder != nil {
				if holder.UserID == user {
					return holder, nil
				}
				return nil, fmt.Errorf("held by %s since %s: %w",
					holder.UserID, holder.AssignedAt, util.ErrAlreadyAssigned)
			}
			return nil, util.ErrAlreadyAssigned
		}
		return nil, persistErr("acquire assignment", err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return nil, persistErr("acquire assignment", err)
	}
	return a, nil
}

// ReleaseAssignment releases the active hold on a bridge domain. The row
// is retained as history with status "released".
func (s *Store) ReleaseAssignment(ctx context.Context, bdID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE assignments SET status = 'released', released_at = ?
		WHERE bridge_domain_id = ? AND status = 'assigned'`,
		now(), bdID)
	if err != nil {
		return persistErr("release assignment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("release assignment", err)
	}
	if n == 0 {
		return fmt.Errorf("no active assignment for bridge domain %d: %w", bdID, util.ErrNotFound)
	}
	return nil
}

// ActiveAssignment returns the current hold on a bridge domain, or nil
// when unassigned.
func (s *Store) ActiveAssignment(ctx context.Context, bdID int64) (*Assignment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, bridge_domain_id, user_id, COALESCE(reason, ''), status, assigned_at
		FROM assignments
		WHERE bridge_domain_id = ? AND status = 'assigned'`, bdID)

	var a Assignment
	err := row.Scan(&a.ID, &a.BridgeDomainID, &a.UserID, &a.Reason, &a.Status, &a.AssignedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("select assignment", err)
	}
	return &a, nil
}

// AssignmentHistory returns every assignment row for a bridge domain,
// newest first.
func (s *Store) AssignmentHistory(ctx context.Context, bdID int64) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bridge_domain_id, user_id, COALESCE(reason, ''), status,
		       assigned_at, COALESCE(released_at, '')
		FROM assignments
		WHERE bridge_domain_id = ?
		ORDER BY id DESC`, bdID)
	if err != nil {
		return nil, persistErr("assignment history", err)
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.BridgeDomainID, &a.UserID, &a.Reason,
			&a.Status, &a.AssignedAt, &a.ReleasedAt); err != nil {
			return nil, persistErr("scan assignment", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
