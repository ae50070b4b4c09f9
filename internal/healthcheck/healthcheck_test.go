package healthcheck

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/l3aro/go-liveness/internal/config"
	"github.com/l3aro/go-liveness/pkg/ast"
	"github.com/l3aro/go-liveness/pkg/cache"
	"github.com/l3aro/go-liveness/pkg/cfg"
	"github.com/l3aro/go-liveness/pkg/render"
)

func stubLookPath(t *testing.T, path string, err error) {
	t.Helper()
	orig := lookPath
	lookPath = func(string) (string, error) { return path, err }
	t.Cleanup(func() { lookPath = orig })
}

func TestCheckWithNilConfig(t *testing.T) {
	_, err := Check(nil, "")
	if err == nil {
		t.Error("Expected error for nil config, got nil")
	}
}

func TestCheckDefaults(t *testing.T) {
	stubLookPath(t, "/usr/bin/dot", nil)

	c := config.DefaultConfig()
	c.CacheDir = t.TempDir()

	result, err := Check(c, "")
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}

	if result.EffectiveScope != "defaults" {
		t.Errorf("EffectiveScope = %q, want defaults", result.EffectiveScope)
	}
	if result.Config.Status != StatusReady {
		t.Errorf("Config.Status = %q, want ready", result.Config.Status)
	}
	if result.Cache.Status != StatusMissing {
		t.Errorf("Cache.Status = %q, want missing", result.Cache.Status)
	}
	if result.Graphviz.Status != StatusReady || result.Graphviz.Detail != "/usr/bin/dot" {
		t.Errorf("Graphviz = %+v, want ready at /usr/bin/dot", result.Graphviz)
	}
	if !result.Healthy() {
		t.Error("Healthy() = false, want true with only a missing cache")
	}
}

func TestCheckInvalidConfig(t *testing.T) {
	stubLookPath(t, "", errors.New("not found"))

	c := config.DefaultConfig()
	c.CacheDir = t.TempDir()
	c.Strategy = "random"

	result, err := Check(c, "")
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	if result.Config.Status != StatusError || result.Config.Error == "" {
		t.Errorf("Config = %+v, want error", result.Config)
	}
	if result.Graphviz.Status != StatusMissing {
		t.Errorf("Graphviz.Status = %q, want missing", result.Graphviz.Status)
	}
	if result.Healthy() {
		t.Error("Healthy() = true, want false")
	}
}

func TestCheckCache(t *testing.T) {
	dir := t.TempDir()

	rc, err := cache.Open(dir, 10)
	if err != nil {
		t.Fatal(err)
	}
	g := cfg.MustBuild(&ast.Program{})
	if err := rc.Put(cache.Key{Source: "x"}, render.NewReport("x", g, nil)); err != nil {
		t.Fatal(err)
	}
	if err := rc.Flush(); err != nil {
		t.Fatal(err)
	}

	status := checkCache(dir, 10)
	if status.Status != StatusReady {
		t.Fatalf("Status = %q (%s), want ready", status.Status, status.Error)
	}
	want := filepath.Join(dir, cache.FileName) + " (1 reports)"
	if status.Detail != want {
		t.Errorf("Detail = %q, want %q", status.Detail, want)
	}

	if err := os.WriteFile(filepath.Join(dir, cache.FileName), []byte("not msgpack"), 0644); err != nil {
		t.Fatal(err)
	}
	if status := checkCache(dir, 10); status.Status != StatusError {
		t.Errorf("Status = %q for a corrupt cache, want error", status.Status)
	}
}

func TestScopeFromPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{"empty path", "", "defaults"},
		{"global path", filepath.Join(home, ".glv", "config.yaml"), "global"},
		{"project path", "/project/.glv/config.yaml", "project"},
		{"relative project path", ".glv/config.yaml", "project"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scopeFromPath(tt.path); got != tt.expected {
				t.Errorf("scopeFromPath(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}
