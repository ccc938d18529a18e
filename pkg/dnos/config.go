package dnos

import (
	"sort"
	"strconv"
	"strings"
)

// VlanTags is a QinQ outer/inner tag pair from a vlan-tags statement.
type VlanTags struct {
	Outer int
	Inner int
}

// ConfigBD is one bridge-domain instance as seen in flattened config.
type ConfigBD struct {
	Name       string
	AdminState string
	Interfaces []string
}

// Config is the structured form of "show config | fl" output, restricted
// to the statements the bridge-domain core cares about.
type Config struct {
	BridgeDomains map[string]*ConfigBD
	VlanIDs       map[string]int      // interface -> vlan-id
	L2Service     map[string]bool     // interface -> l2-service enabled
	VlanTags      map[string]VlanTags // interface -> outer/inner tags
	Lines         []string            // accepted statements, in observed order
}

// BridgeDomainNames returns the configured bridge-domain names, sorted.
func (c *Config) BridgeDomainNames() []string {
	names := make([]string, 0, len(c.BridgeDomains))
	for name := range c.BridgeDomains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseConfig parses flattened CLI configuration. Grammar:
//
//	network-services bridge-domain instance <bd> [admin-state <s>] [interface <if>]
//	interfaces <if> vlan-id <v>
//	interfaces <if> l2-service <enabled|disabled>
//	interfaces <if> vlan-tags outer-tag <o> inner-tag <i>
//
// Lines with other leading keywords are ignored; lines that start like one
// of the statements above but do not parse produce a ParseWarning.
func ParseConfig(output string) (*Config, []ParseWarning) {
	cfg := &Config{
		BridgeDomains: make(map[string]*ConfigBD),
		VlanIDs:       make(map[string]int),
		L2Service:     make(map[string]bool),
		VlanTags:      make(map[string]VlanTags),
	}
	var warnings []ParseWarning

	warn := func(line, reason string) {
		warnings = append(warnings, ParseWarning{Line: line, Reason: reason})
	}

	for _, line := range cleanLines(output) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		fields := strings.Fields(trimmed)

		switch {
		case strings.HasPrefix(trimmed, "network-services bridge-domain"):
			// network-services bridge-domain instance <bd> ...
			if len(fields) < 4 || fields[2] != "instance" {
				warn(trimmed, "malformed bridge-domain statement")
				continue
			}
			name := fields[3]
			b := cfg.BridgeDomains[name]
			if b == nil {
				b = &ConfigBD{Name: name}
				cfg.BridgeDomains[name] = b
			}
			rest := fields[4:]
			ok := true
			for len(rest) >= 2 {
				switch rest[0] {
				case "admin-state":
					b.AdminState = rest[1]
				case "interface":
					b.Interfaces = append(b.Interfaces, rest[1])
				default:
					warn(trimmed, "unknown bridge-domain attribute "+rest[0])
					ok = false
				}
				rest = rest[2:]
			}
			if len(rest) == 1 {
				warn(trimmed, "dangling bridge-domain attribute "+rest[0])
				ok = false
			}
			if ok {
				cfg.Lines = append(cfg.Lines, trimmed)
			}

		case strings.HasPrefix(trimmed, "interfaces "):
			if len(fields) < 3 {
				warn(trimmed, "malformed interfaces statement")
				continue
			}
			ifname := fields[1]
			switch fields[2] {
			case "vlan-id":
				if len(fields) != 4 {
					warn(trimmed, "malformed vlan-id statement")
					continue
				}
				vlan, err := strconv.Atoi(fields[3])
				if err != nil {
					warn(trimmed, "non-numeric vlan-id")
					continue
				}
				cfg.VlanIDs[ifname] = vlan
			case "l2-service":
				if len(fields) != 4 || (fields[3] != "enabled" && fields[3] != "disabled") {
					warn(trimmed, "malformed l2-service statement")
					continue
				}
				cfg.L2Service[ifname] = fields[3] == "enabled"
			case "vlan-tags":
				// interfaces <if> vlan-tags outer-tag <o> inner-tag <i>
				if len(fields) != 7 || fields[3] != "outer-tag" || fields[5] != "inner-tag" {
					warn(trimmed, "malformed vlan-tags statement")
					continue
				}
				outer, err1 := strconv.Atoi(fields[4])
				inner, err2 := strconv.Atoi(fields[6])
				if err1 != nil || err2 != nil {
					warn(trimmed, "non-numeric vlan tag")
					continue
				}
				cfg.VlanTags[ifname] = VlanTags{Outer: outer, Inner: inner}
			default:
				warn(trimmed, "unknown interfaces attribute "+fields[2])
				continue
			}
			cfg.Lines = append(cfg.Lines, trimmed)
		}
	}

	return cfg, warnings
}
