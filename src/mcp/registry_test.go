package mcp

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegistryProbeOrder(t *testing.T) {
	repo := t.TempDir()
	work := t.TempDir()
	fallback := t.TempDir()
	override := t.TempDir()

	mustMkdir(t, filepath.Join(repo, "providers", "courses"))
	mustMkdir(t, filepath.Join(work, "providers", "courses"))
	mustMkdir(t, filepath.Join(work, "providers", "notices"))
	mustMkdir(t, filepath.Join(fallback, "meals"))

	env := map[string]string{"CAMPUS_PROVIDER_LIBRARY_ROOT": override}
	reg, err := NewRegistry([]ProviderSpec{
		{Name: "courses"},
		{Name: "notices"},
		{Name: "meals"},
		{Name: "library"},
		{Name: "locations", Command: "/usr/bin/env", Args: []string{"true"}},
	}, RegistryOptions{
		RepoRoot:    repo,
		WorkDir:     work,
		FallbackDir: fallback,
		LookupEnv: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	cases := map[string]string{
		"courses": filepath.Join(repo, "providers", "courses"),
		"notices": filepath.Join(work, "providers", "notices"),
		"meals":   filepath.Join(fallback, "meals"),
		"library": override,
	}
	for name, want := range cases {
		p, ok := reg.Lookup(name)
		if !ok || !p.Available || p.Root != want {
			t.Fatalf("%s: got %+v, want root %s", name, p, want)
		}
		if p.Command != filepath.Join(want, "server") {
			t.Fatalf("%s: default command %q", name, p.Command)
		}
	}

	loc, _ := reg.Lookup("Locations")
	if loc.Available {
		t.Fatalf("locations should be unavailable: %+v", loc)
	}
	if len(loc.Candidates) != 3 {
		t.Fatalf("unexpected candidates %v", loc.Candidates)
	}
	if got := reg.Available(); len(got) != 4 || got[0] != "courses" {
		t.Fatalf("unexpected available set %v", got)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	if _, err := NewRegistry([]ProviderSpec{{Name: "meals"}, {Name: "MEALS"}}, RegistryOptions{LookupEnv: noEnv}); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if _, err := NewRegistry([]ProviderSpec{{Name: " "}}, RegistryOptions{LookupEnv: noEnv}); err == nil {
		t.Fatalf("expected empty name error")
	}
}

func TestEnvOverrideKey(t *testing.T) {
	if got := envOverrideKey("campus-map"); got != "CAMPUS_PROVIDER_CAMPUS_MAP_ROOT" {
		t.Fatalf("unexpected key %q", got)
	}
}

func mustMkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}
