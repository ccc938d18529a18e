package inventory

import (
	"net"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeInventory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleInventory = `
devices:
  - name: DNAAS-LEAF-B14
    host: 10.0.0.14
    username: dnroot
    password: secret
  - name: DNAAS-LEAF-B15
    host: 10.0.0.15
    username: dnroot
    password: env:DNAAS_TEST_PW
  - name: DNAAS-SUPERSPINE-D04-NCC0
    host: 10.0.1.4
    username: dnroot
    password: secret
  - name: DNAAS-SUPERSPINE-D04-NCC1
    host: 10.0.1.4
    username: dnroot
    password: secret
`

func TestLoad(t *testing.T) {
	t.Setenv("DNAAS_TEST_PW", "from-env")

	inv, err := Load(writeInventory(t, sampleInventory))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if inv.Len() != 4 {
		t.Fatalf("Len = %d, want 4", inv.Len())
	}

	d, ok := inv.Get("DNAAS-LEAF-B14")
	if !ok {
		t.Fatal("DNAAS-LEAF-B14 not found")
	}
	if d.Role != "leaf" {
		t.Errorf("role = %q, want leaf (derived from name)", d.Role)
	}
	if d.Addr() != "10.0.0.14:22" {
		t.Errorf("Addr = %q", d.Addr())
	}

	d, _ = inv.Get("DNAAS-LEAF-B15")
	if d.Password != "from-env" {
		t.Errorf("env password not resolved, got %q", d.Password)
	}
}

func TestLoadRejectsBadInventory(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing file is an error", ""},
		{"empty devices", "devices: []\n"},
		{"duplicate name", `
devices:
  - {name: A, host: h, username: u, password: p}
  - {name: A, host: h, username: u, password: p}
`},
		{"no host", `
devices:
  - {name: A, username: u, password: p}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing.yaml")
			if tt.content != "" {
				path = writeInventory(t, tt.content)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseDeviceName(t *testing.T) {
	tests := []struct {
		name string
		want NameParts
		ok   bool
	}{
		{"DNAAS-LEAF-B14", NameParts{Role: "leaf", Row: "B", Rack: "14"}, true},
		{"DNAAS-SPINE-C02", NameParts{Role: "spine", Row: "C", Rack: "02"}, true},
		{"DNAAS-SUPERSPINE-D04-NCC0", NameParts{Role: "superspine", Row: "D", Rack: "04", Variant: "NCC0"}, true},
		{"DNAAS-SUPERSPINE-D04-NCC1", NameParts{Role: "superspine", Row: "D", Rack: "04", Variant: "NCC1"}, true},
		{"DNAAS-SUPERSPINE-D04", NameParts{Role: "superspine", Row: "D", Rack: "04"}, true},
		{"some-router", NameParts{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDeviceName(tt.name)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestChassisConsolidation(t *testing.T) {
	inv, err := Load(writeInventory(t, sampleInventory))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	chassis := inv.Chassis()
	if len(chassis) != 3 {
		t.Fatalf("got %d chassis, want 3", len(chassis))
	}

	var superspine *Chassis
	for i := range chassis {
		if chassis[i].Name == "DNAAS-SUPERSPINE-D04" {
			superspine = &chassis[i]
		}
		if chassis[i].Name == "DNAAS-SUPERSPINE-D04-NCC0" || chassis[i].Name == "DNAAS-SUPERSPINE-D04-NCC1" {
			t.Errorf("NCC variant %s leaked into chassis list", chassis[i].Name)
		}
	}
	if superspine == nil {
		t.Fatal("consolidated superspine chassis not found")
	}
	if !reflect.DeepEqual(superspine.Variants, []string{"NCC0", "NCC1"}) {
		t.Errorf("variants = %v, want [NCC0 NCC1]", superspine.Variants)
	}
	if superspine.Info.Host != "10.0.1.4" {
		t.Errorf("chassis host = %q", superspine.Info.Host)
	}
}

func TestReachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())

	inv, err := Load(writeInventory(t, `
devices:
  - name: UP
    host: 127.0.0.1
    port: `+portStr+`
    username: u
    password: p
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !inv.Reachable("UP", time.Second) {
		t.Error("listening device reported unreachable")
	}
	if inv.Reachable("MISSING", time.Second) {
		t.Error("unknown device reported reachable")
	}
}
