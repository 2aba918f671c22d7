package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FindWorkspaceRoot walks upward from the working directory looking for a
// .cogito directory. Falls back to the working directory itself.
func FindWorkspaceRoot() (string, error) {
	if ws := os.Getenv("COGITO_WORKSPACE"); ws != "" {
		return ws, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	for d := dir; ; d = filepath.Dir(d) {
		if info, err := os.Stat(filepath.Join(d, ".cogito")); err == nil && info.IsDir() {
			return d, nil
		}
		if filepath.Dir(d) == d {
			break
		}
	}
	return dir, nil
}

// applyEnvOverrides honors COGITO_* environment variables over file config.
func (c *Config) applyEnvOverrides() {
	if ws := os.Getenv("COGITO_WORKSPACE"); ws != "" {
		c.Workspace = ws
	}
	if ep := os.Getenv("COGITO_SWARM_ENDPOINT"); ep != "" {
		c.Swarm.Endpoint = ep
	}
	if dbg := os.Getenv("COGITO_DEBUG"); dbg != "" {
		v, err := strconv.ParseBool(strings.TrimSpace(dbg))
		if err == nil {
			c.Logging.DebugMode = v
		}
	}
	if th := os.Getenv("COGITO_ROUTER_THRESHOLD"); th != "" {
		if v, err := strconv.ParseFloat(th, 64); err == nil {
			c.Router.Threshold = v
		}
	}
}
