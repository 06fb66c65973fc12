package freight

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogNormalize(t *testing.T) {
	cat, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		term string
		want string
	}{
		{"reefer", "reefer"},
		{"REEFER", "reefer"},
		{"refrigerated", "reefer"},
		{"Temp Controlled", "reefer"},
		{"van", "dry_van"},
		{"Dry Van", "dry_van"},
		{"flat", "flatbed"},
		{"drop deck", "step_deck"},
	}
	for _, tc := range cases {
		got, ok := cat.Normalize(tc.term)
		if !ok {
			t.Fatalf("Normalize(%q) should match", tc.term)
		}
		if got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.term, got, tc.want)
		}
	}

	if _, ok := cat.Normalize("spaceship"); ok {
		t.Fatal("unknown equipment should not match")
	}
	if _, ok := cat.Normalize(""); ok {
		t.Fatal("empty term should not match")
	}
}

func TestLoadFromFile(t *testing.T) {
	content := []byte(`equipment:
  conestoga:
    display: Conestoga
    aliases: ["rolling tarp"]
`)
	path := filepath.Join(t.TempDir(), "equipment.yaml")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := cat.Normalize("rolling tarp"); !ok || got != "conestoga" {
		t.Fatalf("Normalize(rolling tarp) = %q, %v", got, ok)
	}
	if cat.Display("conestoga") != "Conestoga" {
		t.Fatalf("unexpected display: %q", cat.Display("conestoga"))
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cat, err := Load("/nonexistent/equipment.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, ok := cat.Normalize("reefer"); !ok {
		t.Fatal("fallback catalog should still resolve reefer")
	}
}
