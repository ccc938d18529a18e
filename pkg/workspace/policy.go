// Package workspace implements the assignment and edit-session layer:
// who holds a bridge domain, and what changes they have staged against it.
package workspace

import (
	"fmt"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

// Policy decides which bridge domains a user may hold and modify.
// Admins bypass the VLAN-range check entirely; everyone else is confined
// to their configured VLAN range.
type Policy struct {
	Admins    []string
	UserVLANs map[string]string // user -> range spec, e.g. "251-299,400"
}

// IsAdmin reports whether a user has admin privileges.
func (p Policy) IsAdmin(user string) bool {
	for _, a := range p.Admins {
		if a == user {
			return true
		}
	}
	return false
}

// CanModifyVLAN checks a user against their permitted VLAN range.
func (p Policy) CanModifyVLAN(user string, vlan int) error {
	if p.IsAdmin(user) {
		return nil
	}
	spec, ok := p.UserVLANs[user]
	if !ok {
		return &util.PermissionError{
			User:   user,
			Action: "modify",
			Target: fmt.Sprintf("VLAN %d", vlan),
			Reason: "no VLAN range configured",
		}
	}
	in, err := util.RangeContains(spec, vlan)
	if err != nil {
		return fmt.Errorf("VLAN range for %s: %w", user, err)
	}
	if !in {
		return &util.PermissionError{
			User:   user,
			Action: "modify",
			Target: fmt.Sprintf("VLAN %d", vlan),
			Reason: fmt.Sprintf("outside permitted range %s", spec),
		}
	}
	return nil
}
