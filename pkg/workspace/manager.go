package workspace

import (
	"context"
	"fmt"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/audit"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/bd"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/store"
	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

// Manager ties assignments, edit sessions, and policy together over the
// store. All mutations are attributed through the audit logger.
type Manager struct {
	db     *store.Store
	policy Policy
	log    audit.Logger
}

// NewManager creates a workspace manager. A nil audit logger disables
// attribution logging.
func NewManager(db *store.Store, policy Policy, log audit.Logger) *Manager {
	if log == nil {
		log = audit.NopLogger{}
	}
	return &Manager{db: db, policy: policy, log: log}
}

// Assign grants user an exclusive hold on the named bridge domain.
// Policy is checked against the bridge domain's service VLAN; a second
// user's attempt reports who holds it and since when.
func (m *Manager) Assign(ctx context.Context, user, bdName, reason string) (*store.Assignment, error) {
	rec, id, err := m.db.GetBridgeDomain(ctx, bdName)
	if err != nil {
		return nil, err
	}
	if err := m.policy.CanModifyVLAN(user, rec.VlanID); err != nil {
		m.audit(audit.NewEvent(user, audit.ActionAssign, bdName).WithError(err))
		return nil, err
	}

	a, err := m.db.AcquireAssignment(ctx, id, user, reason)
	m.audit(audit.NewEvent(user, audit.ActionAssign, bdName).
		WithDetail("reason", reason).WithError(err))
	if err != nil {
		return nil, err
	}
	util.WithUser(user).Infof("assigned %s", bdName)
	return a, nil
}

// Release drops the active hold on a bridge domain. Only the holder (or
// an admin) may release it.
func (m *Manager) Release(ctx context.Context, user, bdName string) error {
	_, id, err := m.db.GetBridgeDomain(ctx, bdName)
	if err != nil {
		return err
	}
	holder, err := m.db.ActiveAssignment(ctx, id)
	if err != nil {
		return err
	}
	if holder == nil {
		return fmt.Errorf("%s is not assigned: %w", bdName, util.ErrNotFound)
	}
	if holder.UserID != user && !m.policy.IsAdmin(user) {
		err := &util.PermissionError{
			User:   user,
			Action: "release",
			Target: bdName,
			Reason: "held by " + holder.UserID,
		}
		m.audit(audit.NewEvent(user, audit.ActionRelease, bdName).WithError(err))
		return err
	}

	err = m.db.ReleaseAssignment(ctx, id)
	m.audit(audit.NewEvent(user, audit.ActionRelease, bdName).WithError(err))
	if err != nil {
		return err
	}
	util.WithUser(user).Infof("released %s", bdName)
	return nil
}

// StartEdit opens an edit session against a bridge domain the user holds.
func (m *Manager) StartEdit(ctx context.Context, user, bdName string) (*EditSession, error) {
	_, id, err := m.db.GetBridgeDomain(ctx, bdName)
	if err != nil {
		return nil, err
	}
	holder, err := m.db.ActiveAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if holder == nil || (holder.UserID != user && !m.policy.IsAdmin(user)) {
		reason := "not assigned to you"
		if holder == nil {
			reason = "not assigned; assign it first"
		}
		err := &util.PermissionError{User: user, Action: "edit", Target: bdName, Reason: reason}
		m.audit(audit.NewEvent(user, audit.ActionEdit, bdName).WithError(err))
		return nil, err
	}

	sess := newSession(user, bdName, id)
	m.audit(audit.NewEvent(user, audit.ActionEdit, bdName).
		WithSession(sess.ID).WithDetail("event", "session_started"))
	return sess, nil
}

// AddChange validates and stages one change on the session. Staged changes
// touch no device until the session is deployed.
func (m *Manager) AddChange(sess *EditSession, c Change) error {
	if err := validateChange(c); err != nil {
		return err
	}
	// Adding an interface twice in one session is almost always a typo.
	if c.Op == OpAddInterface {
		for _, prev := range sess.Changes {
			if prev.Op == OpAddInterface && prev.Device == c.Device && prev.Interface == c.Interface {
				return &util.ValidationError{Errors: []string{
					fmt.Sprintf("%s/%s already staged in this session", c.Device, c.Interface),
				}}
			}
		}
	}
	sess.Changes = append(sess.Changes, c)
	m.audit(audit.NewEvent(sess.User, audit.ActionEdit, sess.BridgeDomain).
		WithSession(sess.ID).WithDevice(c.Device).WithInterface(c.Interface).
		WithDetail("op", string(c.Op)))
	return nil
}

// Apply folds the session's staged changes into a copy of the stored
// record, returning the desired end state for the deploy planner. The
// stored record itself is untouched until deployment succeeds.
func (m *Manager) Apply(ctx context.Context, sess *EditSession) (*bd.BridgeDomain, error) {
	rec, _, err := m.db.GetBridgeDomain(ctx, sess.BridgeDomain)
	if err != nil {
		return nil, err
	}
	return ApplyChanges(rec, sess.Changes)
}

// ApplyChanges folds a change list into a copy of base and returns the
// desired end state. base is never mutated.
func ApplyChanges(base *bd.BridgeDomain, changes []Change) (*bd.BridgeDomain, error) {
	rec := &bd.BridgeDomain{}
	*rec = *base
	rec.Interfaces = append([]bd.Interface(nil), base.Interfaces...)

	for _, c := range changes {
		switch c.Op {
		case OpAddInterface:
			if _, dup := FindMember(rec, c.Device, c.Interface); dup {
				return nil, &util.ValidationError{Errors: []string{
					fmt.Sprintf("%s/%s is already a member", c.Device, c.Interface),
				}}
			}
			name := MemberName(rec, c)
			rec.Interfaces = append(rec.Interfaces, bd.Interface{
				Device:    c.Device,
				Name:      name,
				Type:      bd.TypeOfInterface(name),
				VlanID:    rec.VlanID,
				OuterVlan: tagOr(c.OuterVlan, rec.OuterVlan),
				InnerVlan: tagOr(c.InnerVlan, rec.InnerVlan),
				L2Service: true,
			})
		case OpRemoveInterface:
			if err := removeMember(rec, c.Device, c.Interface); err != nil {
				return nil, err
			}
		case OpModifyVLAN:
			idx, err := memberIndex(rec, c.Device, c.Interface)
			if err != nil {
				return nil, err
			}
			base, _ := bd.SplitInterfaceName(rec.Interfaces[idx].Name)
			rec.Interfaces[idx].Name = fmt.Sprintf("%s.%d", base, c.VlanID)
			rec.Interfaces[idx].VlanID = c.VlanID
		case OpMoveInterface:
			idx, err := memberIndex(rec, c.Device, c.Interface)
			if err != nil {
				return nil, err
			}
			member := rec.Interfaces[idx]
			rec.Interfaces = append(rec.Interfaces[:idx], rec.Interfaces[idx+1:]...)
			member.Device = c.ToDevice
			member.Name = MemberName(rec, Change{
				Op: OpAddInterface, Device: c.ToDevice, Interface: c.ToInterface,
				OuterVlan: member.OuterVlan, InnerVlan: member.InnerVlan,
			})
			member.Type = bd.TypeOfInterface(member.Name)
			rec.Interfaces = append(rec.Interfaces, member)
		}
	}
	return rec, nil
}

// MemberName resolves the on-device sub-interface name a change creates:
// the bare port name gains the service tag suffix exactly once.
func MemberName(rec *bd.BridgeDomain, c Change) string {
	if _, vlans := bd.SplitInterfaceName(c.Interface); len(vlans) > 0 {
		return c.Interface
	}
	switch rec.Type {
	case bd.TypeQinQSingle, bd.TypeQinQRange:
		return fmt.Sprintf("%s.%d.%d", c.Interface,
			tagOr(c.OuterVlan, rec.OuterVlan), tagOr(c.InnerVlan, rec.InnerVlan))
	default:
		return fmt.Sprintf("%s.%d", c.Interface, rec.VlanID)
	}
}

func tagOr(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

// FindMember locates a member by its exact name or by its base port name,
// so "ge100-0/0/31" matches the stored member "ge100-0/0/31.253" on the
// same device.
func FindMember(rec *bd.BridgeDomain, device, iface string) (bd.Interface, bool) {
	if m, ok := rec.FindInterface(device, iface); ok {
		return m, true
	}
	base, _ := bd.SplitInterfaceName(iface)
	for _, m := range rec.Interfaces {
		if m.Device != device {
			continue
		}
		if mb, _ := bd.SplitInterfaceName(m.Name); mb == base {
			return m, true
		}
	}
	return bd.Interface{}, false
}

func memberIndex(rec *bd.BridgeDomain, device, iface string) (int, error) {
	for i := range rec.Interfaces {
		if rec.Interfaces[i].Device == device && rec.Interfaces[i].Name == iface {
			return i, nil
		}
	}
	base, _ := bd.SplitInterfaceName(iface)
	for i := range rec.Interfaces {
		if rec.Interfaces[i].Device != device {
			continue
		}
		if mb, _ := bd.SplitInterfaceName(rec.Interfaces[i].Name); mb == base {
			return i, nil
		}
	}
	return 0, memberNotFound(device, iface)
}

func removeMember(rec *bd.BridgeDomain, device, iface string) error {
	idx, err := memberIndex(rec, device, iface)
	if err != nil {
		return err
	}
	rec.Interfaces = append(rec.Interfaces[:idx], rec.Interfaces[idx+1:]...)
	return nil
}

func memberNotFound(device, iface string) error {
	return fmt.Errorf("%s/%s is not a member: %w", device, iface, util.ErrNotFound)
}

func (m *Manager) audit(ev *audit.Event) {
	if err := m.log.Log(ev); err != nil {
		util.Warnf("audit log write failed: %v", err)
	}
}
