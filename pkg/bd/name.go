package bd

import (
	"fmt"
	"regexp"
	"strconv"
)

// NameParts is what a bridge-domain name encodes under the DNAAS naming
// conventions.
type NameParts struct {
	Username string
	VlanID   int // 0 when the name carries no VLAN
	Scope    Scope
}

var (
	// g_<user>_v<vlan>[_<descriptor>...]
	globalNameRe = regexp.MustCompile(`^g_([A-Za-z][A-Za-z0-9]*)_v(\d+)(?:_.*)?$`)
	// l_<user>[_<descriptor>...]
	localNameRe = regexp.MustCompile(`^l_([A-Za-z][A-Za-z0-9]*)(?:_.*)?$`)
	// <user>_<vlan>[_<descriptor>...]
	bareNameRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9]*)_(\d+)(?:_.*)?$`)
)

// ParseName extracts (username, vlan) from the naming conventions:
// "g_visaev_v253_Spirent", "l_visaev_lab", "visaev_253_test".
// Names outside every convention yield empty parts with ScopeUnknown.
func ParseName(name string) NameParts {
	if m := globalNameRe.FindStringSubmatch(name); m != nil {
		vlan, _ := strconv.Atoi(m[2])
		return NameParts{Username: m[1], VlanID: vlan, Scope: ScopeGlobal}
	}
	if m := localNameRe.FindStringSubmatch(name); m != nil {
		return NameParts{Username: m[1], Scope: ScopeLocal}
	}
	if m := bareNameRe.FindStringSubmatch(name); m != nil {
		vlan, _ := strconv.Atoi(m[2])
		return NameParts{Username: m[1], VlanID: vlan, Scope: ScopeUnknown}
	}
	return NameParts{Scope: ScopeUnknown}
}

// ConsolidationKey computes the merge key for per-device fragments.
// Fragments sharing a key describe the same logical service:
//
//	user + vlan  -> "<user>_v<vlan>"
//	vlan only    -> "unknown_user_v<vlan>"
//	user only    -> "<user>_no_vlan"
//	neither      -> "" (no consolidation; fragment stands alone)
func ConsolidationKey(username string, vlan int) string {
	switch {
	case username != "" && vlan > 0:
		return fmt.Sprintf("%s_v%d", username, vlan)
	case vlan > 0:
		return fmt.Sprintf("unknown_user_v%d", vlan)
	case username != "":
		return username + "_no_vlan"
	default:
		return ""
	}
}

// CanonicalName formats the canonical global-scope name for a
// (username, vlan) pair.
func CanonicalName(username string, vlan int) string {
	return fmt.Sprintf("g_%s_v%d", username, vlan)
}
