package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// connectionConfig mirrors the teacher's database.Config: a struct of
// connection fields, loadable from a YAML file and overridable by CLI
// flags (SPEC_FULL.md §1 "Configuration").
type connectionConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DbName   string `yaml:"db_name"`
	Socket   string `yaml:"socket"`
	StateDB  string `yaml:"state_db"`
}

// loadConnectionConfig reads a YAML connection file the way the
// teacher's database.ParseGeneratorConfig reads a generator config
// file; an empty path yields the zero value rather than an error.
func loadConnectionConfig(path string) (connectionConfig, error) {
	if path == "" {
		return connectionConfig{}, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return connectionConfig{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg connectionConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return connectionConfig{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// mergeConnectionConfig overlays override's non-zero fields onto base,
// the same precedence rule as the teacher's MergeGeneratorConfig: a
// config file supplies defaults, CLI flags win when set.
func mergeConnectionConfig(base, override connectionConfig) connectionConfig {
	result := base
	if override.Type != "" {
		result.Type = override.Type
	}
	if override.Host != "" {
		result.Host = override.Host
	}
	if override.Port != 0 {
		result.Port = override.Port
	}
	if override.User != "" {
		result.User = override.User
	}
	if override.Password != "" {
		result.Password = override.Password
	}
	if override.DbName != "" {
		result.DbName = override.DbName
	}
	if override.Socket != "" {
		result.Socket = override.Socket
	}
	if override.StateDB != "" {
		result.StateDB = override.StateDB
	}
	return result
}
