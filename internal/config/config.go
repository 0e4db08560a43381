// Package config loads ptyd's optional YAML configuration file. A missing
// file is not an error; every field has a usable default.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the daemon and CLI defaults read from the config file.
type Config struct {
	Shell              string `yaml:"shell"`
	SocketRoot         string `yaml:"socket_root"`
	ScrollbackCapacity int    `yaml:"scrollback_capacity"`
	PollIntervalMillis int    `yaml:"poll_interval_millis"`
	LogLevel           string `yaml:"log_level"`
}

// Default returns the built-in configuration, used whenever no config
// file is present or a field is left unset in one that is.
func Default() Config {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	return Config{
		Shell:              shell,
		ScrollbackCapacity: 1024 * 1024,
		PollIntervalMillis: 100,
		LogLevel:           "info",
	}
}

// Path returns the config file location: $XDG_CONFIG_HOME/ptyd/config.yaml,
// falling back to $HOME/.config/ptyd/config.yaml.
func Path() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ptyd", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "ptyd", "config.yaml")
}

// Load reads the config file at Path(), overlaying it onto Default().
// A missing file yields the defaults unchanged.
func Load() (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
