// Package config loads runtime options for skein executors and checkpoint
// stores from YAML, with environment variable overrides.
//
// Precedence: defaults, then the YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// RedisOptions configures the Redis checkpoint backend.
type RedisOptions struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Options holds the tunables consumed by graph executors and checkpoint
// stores.
type Options struct {
	// MaxSteps is the default cycle-guard budget per run.
	MaxSteps int `yaml:"max_steps"`
	// CheckpointDir is the base directory for the file checkpoint store.
	CheckpointDir string `yaml:"checkpoint_dir"`
	// Redis configures the Redis checkpoint store.
	Redis RedisOptions `yaml:"redis"`
}

// Defaults returns the built-in option values.
func Defaults() Options {
	return Options{
		MaxSteps:      25,
		CheckpointDir: "checkpoints",
		Redis: RedisOptions{
			Addr:      "localhost:6379",
			KeyPrefix: "skein",
		},
	}
}

// Load reads options from a YAML file, then applies environment overrides.
// A missing file is not an error: defaults plus environment apply.
func Load(path string) (Options, error) {
	opts := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return opts, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &opts); err != nil {
				return opts, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&opts)

	if opts.MaxSteps <= 0 {
		return opts, fmt.Errorf("config: max_steps must be positive, got %d", opts.MaxSteps)
	}
	return opts, nil
}

// applyEnv overrides scalar options from SKEIN_* environment variables.
func applyEnv(opts *Options) {
	if v := os.Getenv("SKEIN_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.MaxSteps = n
		}
	}
	if v := os.Getenv("SKEIN_CHECKPOINT_DIR"); v != "" {
		opts.CheckpointDir = v
	}
	if v := os.Getenv("SKEIN_REDIS_ADDR"); v != "" {
		opts.Redis.Addr = v
	}
	if v := os.Getenv("SKEIN_REDIS_PASSWORD"); v != "" {
		opts.Redis.Password = v
	}
	if v := os.Getenv("SKEIN_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Redis.DB = n
		}
	}
	if v := os.Getenv("SKEIN_REDIS_KEY_PREFIX"); v != "" {
		opts.Redis.KeyPrefix = v
	}
}
