package inventory

import "regexp"

// NameParts is the structure encoded in a DNAAS device name:
// DNAAS-<ROLE>-<ROW><RACK>[-NCCx].
type NameParts struct {
	Role    string // "leaf", "spine", "superspine"
	Row     string // "B"
	Rack    string // "14"
	Variant string // "NCC0" / "NCC1" for superspine routing engines
}

var deviceNameRe = regexp.MustCompile(`^DNAAS-(LEAF|SPINE|SUPERSPINE)-([A-Z])(\d+)(?:-(NCC\d))?$`)

var roleNames = map[string]string{
	"LEAF":       "leaf",
	"SPINE":      "spine",
	"SUPERSPINE": "superspine",
}

// ParseDeviceName extracts role, row, rack, and NCC variant from a DNAAS
// device name. Names outside the convention return ok=false; they are
// still valid inventory entries, just without derived attributes.
func ParseDeviceName(name string) (NameParts, bool) {
	m := deviceNameRe.FindStringSubmatch(name)
	if m == nil {
		return NameParts{}, false
	}
	return NameParts{
		Role:    roleNames[m[1]],
		Row:     m[2],
		Rack:    m[3],
		Variant: m[4],
	}, true
}
