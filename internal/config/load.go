package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces every ${VAR} occurrence in s with the environment
// variable's value, or the empty string if VAR is unset.
func expandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := m[2 : len(m)-1]
		return os.Getenv(name)
	})
}

// walkExpand recursively expands ${VAR} references found in any string
// value reachable from v (maps, slices, or a bare string).
func walkExpand(v any) any {
	switch t := v.(type) {
	case string:
		return expandEnv(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = walkExpand(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = walkExpand(val)
		}
		return out
	default:
		return v
	}
}

// deepMerge overlays override onto base, recursing into nested maps;
// scalar and slice values in override replace the base value outright.
func deepMerge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if baseVal, ok := out[k]; ok {
			baseMap, baseIsMap := baseVal.(map[string]any)
			overrideMap, overrideIsMap := v.(map[string]any)
			if baseIsMap && overrideIsMap {
				out[k] = deepMerge(baseMap, overrideMap)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func localPath(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + ".local" + ext
}

// readYAMLMap reads a YAML file into a generic map, applying ${VAR}
// expansion across every string value before returning it.
func readYAMLMap(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	expanded := walkExpand(m)
	expandedMap, _ := expanded.(map[string]any)
	return expandedMap, nil
}

// Load reads the base config at path, deep-merges an optional sibling
// config.local.yaml (named "<base>.local.<ext>") over it with local
// values winning, applies ${VAR} expansion, decodes into Config, fills
// unset fields from Default(), and validates the result.
//
// A missing base config file is a fatal, load-time configuration error:
// there is no sensible fallback for a host that doesn't know which
// provider or channels to start.
func Load(path string) (*Config, error) {
	base, err := readYAMLMap(path)
	if err != nil {
		return nil, fmt.Errorf("config: loading %s: %w", path, err)
	}
	if base == nil {
		base = map[string]any{}
	}

	local, err := readYAMLMap(localPath(path))
	if err == nil {
		base = deepMerge(base, local)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: loading local overlay: %w", err)
	}

	merged, err := yaml.Marshal(base)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(merged, cfg); err != nil {
		return nil, fmt.Errorf("config: decoding merged config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Watch reloads the configuration at path (and its local overlay)
// whenever either file changes on disk, invoking onChange with the
// freshly loaded Config. A reload that fails to load or validate is
// soft: it is logged and the previously loaded configuration is kept.
// Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, p := range []string{path, localPath(path)} {
		dir := filepath.Dir(p)
		if err := watcher.Add(dir); err != nil {
			slog.Warn("config: cannot watch directory", "dir", dir, "error", err)
		}
	}

	const debounce = 250 * time.Millisecond
	var timer *time.Timer
	reload := func() {
		cfg, err := Load(path)
		if err != nil {
			slog.Error("config: hot-reload failed, keeping previous config", "error", err)
			return
		}
		slog.Info("config: reloaded", "path", path)
		onChange(cfg)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			base := filepath.Base(path)
			localBase := filepath.Base(localPath(path))
			name := filepath.Base(ev.Name)
			if name != base && name != localBase {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config: watcher error", "error", err)
		}
	}
}
