package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds server settings. Precedence: defaults < YAML file <
// environment (INVDASH_*) < command-line flags.
type Config struct {
	Port        int    `yaml:"port"`
	DBPath      string `yaml:"db_path"`
	CompanyName string `yaml:"company_name"`
}

// LoadConfig reads the optional YAML config file and .env, then applies
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	// Missing .env is fine; a present but unreadable one is not.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:        8080,
		DBPath:      "invdash.db",
		CompanyName: "Inv_Dash",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("INVDASH_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("INVDASH_PORT: %w", err)
		}
		cfg.Port = p
	}
	if v := os.Getenv("INVDASH_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("INVDASH_COMPANY_NAME"); v != "" {
		cfg.CompanyName = v
	}

	return cfg, nil
}
