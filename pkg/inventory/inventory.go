// Package inventory loads the device inventory and answers reachability
// questions about the fleet.
//
// The inventory is read once at startup and immutable afterwards. A load
// failure is fatal to the process; an unreachable device is a warning.
package inventory

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/visaev-dn/SD-DNAAS-v1-sub004/pkg/util"
)

// DeviceInfo is the connection record for one device.
type DeviceInfo struct {
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port,omitempty"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role,omitempty"`
}

// Addr returns "host:port", defaulting the port to 22.
func (d DeviceInfo) Addr() string {
	port := d.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", d.Host, port)
}

type inventoryFile struct {
	Devices []DeviceInfo `yaml:"devices"`
}

// Inventory holds the loaded fleet, read-only after Load.
type Inventory struct {
	devices map[string]DeviceInfo
	order   []string
}

// Load reads and validates the inventory file. Passwords of the form
// "env:VAR" are resolved from the environment; "prompt" is left for the
// caller to fill in interactively.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory %s: %w", path, err)
	}

	var file inventoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing inventory %s: %w", path, err)
	}

	inv := &Inventory{devices: make(map[string]DeviceInfo)}
	var v util.ValidationBuilder
	for _, d := range file.Devices {
		v.Add(d.Name != "", "device with empty name")
		v.Add(d.Host != "", fmt.Sprintf("device %s has no host", d.Name))
		v.Add(d.Username != "", fmt.Sprintf("device %s has no username", d.Name))
		if _, dup := inv.devices[d.Name]; dup {
			v.AddErrorf("duplicate device name %s", d.Name)
			continue
		}

		if env, ok := strings.CutPrefix(d.Password, "env:"); ok {
			d.Password = os.Getenv(env)
			if d.Password == "" {
				util.Warnf("inventory: device %s password env %s is empty", d.Name, env)
			}
		}
		if d.Role == "" {
			if parts, ok := ParseDeviceName(d.Name); ok {
				d.Role = parts.Role
			}
		}

		inv.devices[d.Name] = d
		inv.order = append(inv.order, d.Name)
	}
	if err := v.Build(); err != nil {
		return nil, fmt.Errorf("inventory %s: %w", path, err)
	}
	if len(inv.devices) == 0 {
		return nil, fmt.Errorf("inventory %s: no devices", path)
	}

	util.Infof("loaded %d devices from %s", len(inv.devices), path)
	return inv, nil
}

// NewStatic builds an inventory from in-memory records. Used by tests and
// by callers that already hold connection info.
func NewStatic(devices ...DeviceInfo) *Inventory {
	inv := &Inventory{devices: make(map[string]DeviceInfo)}
	for _, d := range devices {
		if _, dup := inv.devices[d.Name]; dup {
			continue
		}
		inv.devices[d.Name] = d
		inv.order = append(inv.order, d.Name)
	}
	return inv
}

// Get returns the connection record for a device.
func (i *Inventory) Get(name string) (DeviceInfo, bool) {
	d, ok := i.devices[name]
	return d, ok
}

// Names returns all device names in inventory order.
func (i *Inventory) Names() []string {
	out := make([]string, len(i.order))
	copy(out, i.order)
	return out
}

// Len returns the number of devices.
func (i *Inventory) Len() int {
	return len(i.devices)
}

// Chassis consolidates superspine NCC variants into logical chassis
// entries. Non-superspine devices pass through as single-variant chassis.
type Chassis struct {
	Name     string
	Variants []string
	Info     DeviceInfo
}

// Chassis returns the consolidated chassis view of the fleet, sorted by
// name. DNAAS-SUPERSPINE-D04-NCC0/-NCC1 collapse into DNAAS-SUPERSPINE-D04
// with both variants retained; the first variant's connection info is used
// (the NCCs share a management address).
func (i *Inventory) Chassis() []Chassis {
	byName := make(map[string]*Chassis)
	var order []string

	for _, name := range i.order {
		info := i.devices[name]
		logical := name
		variant := ""
		if parts, ok := ParseDeviceName(name); ok && parts.Variant != "" {
			logical = strings.TrimSuffix(name, "-"+parts.Variant)
			variant = parts.Variant
		}

		c, ok := byName[logical]
		if !ok {
			c = &Chassis{Name: logical, Info: info}
			byName[logical] = c
			order = append(order, logical)
		}
		if variant != "" {
			c.Variants = append(c.Variants, variant)
		}
	}

	sort.Strings(order)
	out := make([]Chassis, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out
}
