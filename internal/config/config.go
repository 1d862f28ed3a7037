// config.go — Daemon configuration.
// Loaded from an optional hoptrace.yaml, overridable via HOPTRACE_* env vars,
// with programmatic defaults. Chain-timing values live here because the
// await windows and awaited-type set are policy, not contract.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Policy  PolicyConfig  `koanf:"policy"`
	Logging LoggingConfig `koanf:"logging"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	// Path is the SQLite database path; ":memory:" keeps the log ephemeral.
	Path       string `koanf:"path"`
	MaxRecords int    `koanf:"max_records"`
}

// PolicyConfig holds the chain lifecycle tunables, in milliseconds.
type PolicyConfig struct {
	FinalizeGraceMs int      `koanf:"finalize_grace_ms"`
	NoisyFinalizeMs int      `koanf:"noisy_finalize_ms"`
	AwaitWindowMs   int      `koanf:"await_window_ms"`
	AwaitExtendedMs int      `koanf:"await_extended_ms"`
	IdleTimeoutMs   int      `koanf:"idle_timeout_ms"`
	AwaitedTypes    []string `koanf:"awaited_types"`
}

type LoggingConfig struct {
	// Development switches zap to its development config (console encoder,
	// debug level).
	Development bool `koanf:"development"`
}

// Load reads configuration from path (optional) and HOPTRACE_ env vars.
// A missing config file is fine; env vars and defaults apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	if err := k.Load(env.Provider("HOPTRACE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "HOPTRACE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		"server.port":              8474,
		"storage.path":             "hoptrace.db",
		"storage.max_records":      500,
		"policy.finalize_grace_ms": 250,
		"policy.noisy_finalize_ms": 500,
		"policy.await_window_ms":   2000,
		"policy.await_extended_ms": 5000,
		"policy.idle_timeout_ms":   120000,
		"policy.awaited_types":     []string{"main_frame", "sub_frame"},
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}
}

// Durations converts the millisecond policy knobs to time.Durations.
func (p PolicyConfig) Durations() (grace, noisy, await, awaitExt, idle time.Duration) {
	return time.Duration(p.FinalizeGraceMs) * time.Millisecond,
		time.Duration(p.NoisyFinalizeMs) * time.Millisecond,
		time.Duration(p.AwaitWindowMs) * time.Millisecond,
		time.Duration(p.AwaitExtendedMs) * time.Millisecond,
		time.Duration(p.IdleTimeoutMs) * time.Millisecond
}
