// Package dnos parses DNOS CLI output into structured records.
//
// Three output families are understood: the bridge-domain listing
// ("show network-services bridge-domain"), the tabular interface listing
// ("show interfaces | no-more"), and flattened running configuration
// ("show config | fl"). Parsers are tolerant of blank lines, banners, and
// pagination artifacts, and strict about the configuration grammar: a line
// that starts like a known statement but does not parse yields a
// ParseWarning, never a silent drop.
package dnos

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseWarning reports a line the parser recognized but could not accept.
type ParseWarning struct {
	Line   string
	Reason string
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("%s: %q", w.Reason, w.Line)
}

// cleanLines splits raw CLI capture into lines, dropping pager artifacts
// (--More-- with its backspace erasure), carriage returns, and trailing
// whitespace. Blank lines are preserved; block parsers rely on them.
func cleanLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.ReplaceAll(line, "\r", "")
		line = strings.ReplaceAll(line, "\x08", "")
		if idx := strings.Index(line, "--More--"); idx >= 0 {
			line = line[:idx] + line[idx+len("--More--"):]
		}
		lines = append(lines, strings.TrimRight(line, " \t"))
	}
	return lines
}

// BridgeDomainEntry is one bridge domain as reported by
// "show network-services bridge-domain".
type BridgeDomainEntry struct {
	Name       string
	AdminState string
	Interfaces []string
}

// ParseBridgeDomainList parses the block-form bridge-domain listing:
//
//	Bridge Domain: g_visaev_v253_Spirent
//	  Admin State: enabled
//	  Interfaces:
//	    ge100-0/0/29.253
//
// Works for the full listing and for the single-domain form.
func ParseBridgeDomainList(output string) ([]BridgeDomainEntry, []ParseWarning) {
	var entries []BridgeDomainEntry
	var warnings []ParseWarning
	var cur *BridgeDomainEntry
	inInterfaces := false

	for _, line := range cleanLines(output) {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			inInterfaces = false
		case strings.HasPrefix(trimmed, "Bridge Domain:"):
			if cur != nil {
				entries = append(entries, *cur)
			}
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, "Bridge Domain:"))
			cur = &BridgeDomainEntry{Name: name}
			inInterfaces = false
			if name == "" {
				warnings = append(warnings, ParseWarning{Line: line, Reason: "bridge domain without name"})
			}
		case cur == nil:
			// banner or column noise before the first block
		case strings.HasPrefix(trimmed, "Admin State:"):
			cur.AdminState = strings.TrimSpace(strings.TrimPrefix(trimmed, "Admin State:"))
		case trimmed == "Interfaces:":
			inInterfaces = true
		case inInterfaces:
			cur.Interfaces = append(cur.Interfaces, trimmed)
		}
	}
	if cur != nil {
		entries = append(entries, *cur)
	}
	return entries, warnings
}

// InterfaceStatus is one row of "show interfaces | no-more".
type InterfaceStatus struct {
	Name   string
	Admin  string
	Oper   string
	VlanID int // 0 when the row carries no VLAN
	L2     bool
}

// ParseInterfaceTable parses the pipe-delimited interface table. Column
// positions are taken from the header row, so column-width variation and
// extra columns are harmless. Rows whose interface cell carries "(L2)" are
// L2 sub-interfaces; their VLAN comes from the VLAN column when present,
// else from the sub-interface name suffix.
func ParseInterfaceTable(output string) ([]InterfaceStatus, []ParseWarning) {
	var rows []InterfaceStatus
	var warnings []ParseWarning
	cols := map[string]int{}

	for _, line := range cleanLines(output) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "+") {
			continue
		}
		if !strings.HasPrefix(trimmed, "|") {
			continue // banner
		}

		cells := splitTableRow(trimmed)
		if len(cols) == 0 {
			for i, c := range cells {
				cols[strings.ToLower(c)] = i
			}
			if _, ok := cols["interface"]; !ok {
				cols = map[string]int{}
				warnings = append(warnings, ParseWarning{Line: line, Reason: "table header without Interface column"})
			}
			continue
		}

		cell := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(cells) {
				return ""
			}
			return cells[i]
		}

		name := cell("interface")
		if name == "" {
			continue
		}
		st := InterfaceStatus{
			Admin: cell("admin"),
			Oper:  cell("operational"),
		}
		if strings.Contains(name, "(L2)") {
			st.L2 = true
			name = strings.TrimSpace(strings.ReplaceAll(name, "(L2)", ""))
		}
		st.Name = name

		if v := cell("vlan"); v != "" {
			vlan, err := strconv.Atoi(v)
			if err != nil {
				warnings = append(warnings, ParseWarning{Line: line, Reason: "unparsable VLAN column"})
			} else {
				st.VlanID = vlan
			}
		}
		if st.VlanID == 0 {
			if _, vlans := splitNameVlans(name); len(vlans) > 0 {
				st.VlanID = vlans[len(vlans)-1]
			}
		}
		rows = append(rows, st)
	}
	return rows, warnings
}

func splitTableRow(line string) []string {
	line = strings.Trim(line, "|")
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// splitNameVlans mirrors bd.SplitInterfaceName without importing it; the
// parser stays dependency-free below the model layer.
func splitNameVlans(name string) (string, []int) {
	var vlans []int
	for {
		i := strings.LastIndex(name, ".")
		if i < 0 {
			break
		}
		v, err := strconv.Atoi(name[i+1:])
		if err != nil {
			break
		}
		vlans = append([]int{v}, vlans...)
		name = name[:i]
	}
	return name, vlans
}
