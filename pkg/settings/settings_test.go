package settings

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	s, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if s.Parallelism != DefaultParallelism {
		t.Errorf("Parallelism = %d, want %d", s.Parallelism, DefaultParallelism)
	}
	if s.GlobalVLANs != DefaultGlobalVLANs {
		t.Errorf("GlobalVLANs = %q, want %q", s.GlobalVLANs, DefaultGlobalVLANs)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s := &Settings{
		InventoryPath: "/srv/dnaas/inventory.yaml",
		Parallelism:   4,
		GlobalVLANs:   "200-499",
		Admins:        []string{"admin"},
		UserVLANs:     map[string]string{"visaev": "251-253"},
	}
	if err := s.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if got.InventoryPath != s.InventoryPath {
		t.Errorf("InventoryPath = %q, want %q", got.InventoryPath, s.InventoryPath)
	}
	if got.Parallelism != 4 {
		t.Errorf("Parallelism = %d, want 4", got.Parallelism)
	}
	if got.UserVLANs["visaev"] != "251-253" {
		t.Errorf("UserVLANs[visaev] = %q", got.UserVLANs["visaev"])
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("DNAAS_PARALLELISM", "3")
	t.Setenv("DNAAS_GLOBAL_VLANS", "100-199")

	s, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if s.Parallelism != 3 {
		t.Errorf("Parallelism = %d, want 3", s.Parallelism)
	}
	if s.GlobalVLANs != "100-199" {
		t.Errorf("GlobalVLANs = %q, want 100-199", s.GlobalVLANs)
	}
}
