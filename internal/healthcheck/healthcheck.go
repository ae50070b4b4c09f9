// Package healthcheck inspects a glv setup: the effective configuration, the
// report cache and the Graphviz renderer used for DOT output.
package healthcheck

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/l3aro/go-liveness/internal/config"
	"github.com/l3aro/go-liveness/pkg/cache"
)

// Status values reported for each component.
const (
	StatusReady   = "ready"
	StatusMissing = "missing"
	StatusError   = "error"
)

// ComponentStatus represents the health of one component.
type ComponentStatus struct {
	Name   string
	Detail string
	Status string // "ready", "missing" or "error"
	Error  string
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	EffectivePath  string
	EffectiveScope string // "global", "project" or "defaults"
	Config         ComponentStatus
	Cache          ComponentStatus
	Graphviz       ComponentStatus
}

// Healthy reports whether no component is in error. Missing optional
// components do not count.
func (r *HealthCheckResult) Healthy() bool {
	for _, c := range r.Components() {
		if c.Status == StatusError {
			return false
		}
	}
	return true
}

// Components returns the component statuses in display order.
func (r *HealthCheckResult) Components() []ComponentStatus {
	return []ComponentStatus{r.Config, r.Cache, r.Graphviz}
}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// Check performs a health check against the given config.
// effectivePath is the config file in use, empty when only defaults apply.
func Check(cfg *config.Config, effectivePath string) (*HealthCheckResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	return &HealthCheckResult{
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
		Config:         checkConfig(cfg),
		Cache:          checkCache(cfg.CacheDir, cfg.CacheSize),
		Graphviz:       checkGraphviz(),
	}, nil
}

// scopeFromPath determines "global" or "project" scope from a config file path.
func scopeFromPath(path string) string {
	if path == "" {
		return "defaults"
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, config.Dir)
		if strings.HasPrefix(path, globalDir) {
			return "global"
		}
	}

	return "project"
}

func checkConfig(cfg *config.Config) ComponentStatus {
	status := ComponentStatus{
		Name:   "Config",
		Detail: fmt.Sprintf("order=%s strategy=%s format=%s workers=%d", cfg.Order, cfg.Strategy, cfg.Format, cfg.Workers),
	}
	if err := cfg.Validate(); err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}
	status.Status = StatusReady
	return status
}

// checkCache opens the report cache read-only. A cache that was never written
// is reported as missing.
func checkCache(dir string, size int) ComponentStatus {
	path := filepath.Join(dir, cache.FileName)
	status := ComponentStatus{Name: "Cache", Detail: path}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			status.Status = StatusMissing
			status.Error = "no reports cached yet"
			return status
		}
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}

	rc, err := cache.Open(dir, size)
	if err != nil {
		status.Status = StatusError
		status.Error = err.Error()
		return status
	}
	status.Status = StatusReady
	status.Detail = fmt.Sprintf("%s (%d reports)", path, rc.Stats().Length)
	return status
}

// checkGraphviz looks for the dot binary that renders DOT output.
func checkGraphviz() ComponentStatus {
	status := ComponentStatus{Name: "Graphviz"}
	path, err := lookPath("dot")
	if err != nil {
		status.Status = StatusMissing
		status.Error = "dot not found in PATH; install Graphviz to render glv dot output"
		return status
	}
	status.Status = StatusReady
	status.Detail = path
	return status
}
