// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

package config

import (
	"errors"
	"path/filepath"
	"strings"

	inkerr "github.com/inkstone-dev/inkstone/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the top-level Inkstone configuration.
type Config struct {
	DataDir     string            `mapstructure:"data_dir"`
	Verbose     bool              `mapstructure:"verbose"`
	History     HistoryConfig     `mapstructure:"history"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
}

// HistoryConfig controls the undo/redo engine.
type HistoryConfig struct {
	MaxHistory      int    `mapstructure:"max_history"`
	AutoMerge       bool   `mapstructure:"auto_merge"`
	PersistencePath string `mapstructure:"persistence_path"`
}

// VectorStoreConfig controls the vector store manager and its backend.
type VectorStoreConfig struct {
	Backend          string `mapstructure:"backend"`
	AutoSwitch       bool   `mapstructure:"auto_switch"`
	LockPath         string `mapstructure:"lock_path"`
	PersistDirectory string `mapstructure:"persist_directory"`
	Collection       string `mapstructure:"collection"`
	Dimensions       int    `mapstructure:"dimensions"`
}

// SetDefaults registers the default value for every configuration key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "")
	v.SetDefault("verbose", false)

	v.SetDefault("history.max_history", 1000)
	v.SetDefault("history.auto_merge", true)
	v.SetDefault("history.persistence_path", "")

	v.SetDefault("vector_store.backend", "sqlite")
	v.SetDefault("vector_store.auto_switch", true)
	v.SetDefault("vector_store.lock_path", "vector_store.lock")
	v.SetDefault("vector_store.persist_directory", "./vectorstore")
	v.SetDefault("vector_store.collection", "novel_embeddings")
	v.SetDefault("vector_store.dimensions", 768)
}

// SetupEnv enables environment variable overrides with the INKSTONE_
// prefix, e.g. INKSTONE_VECTOR_STORE_BACKEND=qdrant.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("INKSTONE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper unmarshals and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, inkerr.Errorf(inkerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, inkerr.Errorf(inkerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix INKSTONE_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, inkerr.Errorf(inkerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateHistory()...)
	errs = append(errs, c.validateVectorStore()...)

	return errs
}

func (c *Config) validateHistory() []error {
	var errs []error

	if c.History.MaxHistory <= 0 {
		errs = append(errs, inkerr.Errorf(inkerr.CodeConfigValidateInvalidValue,
			"config: history.max_history must be greater than 0, got %d",
			c.History.MaxHistory,
		))
	}

	return errs
}

func (c *Config) validateVectorStore() []error {
	var errs []error

	// An unknown backend name is not rejected here: the store manager
	// decides at runtime whether auto_switch falls back to the local
	// reference backend.
	if c.VectorStore.Backend == "" {
		errs = append(errs, inkerr.Errorf(inkerr.CodeConfigValidateInvalidValue,
			"config: vector_store.backend must not be empty"))
	}

	if c.VectorStore.Collection == "" {
		errs = append(errs, inkerr.Errorf(inkerr.CodeConfigValidateInvalidValue,
			"config: vector_store.collection must not be empty"))
	}

	if c.VectorStore.PersistDirectory == "" {
		errs = append(errs, inkerr.Errorf(inkerr.CodeConfigValidateInvalidValue,
			"config: vector_store.persist_directory must not be empty"))
	}

	if c.VectorStore.LockPath == "" {
		errs = append(errs, inkerr.Errorf(inkerr.CodeConfigValidateInvalidValue,
			"config: vector_store.lock_path must not be empty"))
	}

	if c.VectorStore.Dimensions <= 0 {
		errs = append(errs, inkerr.Errorf(inkerr.CodeConfigValidateInvalidValue,
			"config: vector_store.dimensions must be greater than 0, got %d",
			c.VectorStore.Dimensions,
		))
	}

	return errs
}

// --- Path resolution ---

// resolve anchors a relative path under the data directory. Absolute
// paths and empty values pass through unchanged, as does everything
// when no data directory is configured.
func (c *Config) resolve(path string) string {
	if path == "" || c.DataDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// HistoryStatePath returns the history persistence path resolved
// against the data directory. Empty means history stays in memory.
func (c *Config) HistoryStatePath() string {
	return c.resolve(c.History.PersistencePath)
}

// VectorStoreDir returns the vector store persist directory resolved
// against the data directory.
func (c *Config) VectorStoreDir() string {
	return c.resolve(c.VectorStore.PersistDirectory)
}

// VectorStoreLockPath returns the cross-process lock file path
// resolved against the data directory.
func (c *Config) VectorStoreLockPath() string {
	return c.resolve(c.VectorStore.LockPath)
}
