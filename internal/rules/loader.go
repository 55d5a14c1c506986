package rules

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML rule file, decodes it strictly and validates it.
// The raw bytes are returned alongside so callers can snapshot exactly
// what was loaded. KnownFields(true) turns typos into load errors
// instead of silently ignored keys.
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read rules file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}

	return cfg, data, nil
}

// Parse decodes and validates a rule set from raw YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Hash generates a deterministic SHA-256 over the canonical JSON form
// of the config. Struct (not map) marshalling keeps field order stable,
// so identical rule sets always hash identically.
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// Save validates yamlText and writes it to path. Used by the rules API
// so an invalid rule set can never land on disk.
func Save(path string, yamlText []byte) (*Config, error) {
	cfg, err := Parse(yamlText)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, yamlText, 0o644); err != nil {
		return nil, fmt.Errorf("write rules file: %w", err)
	}

	return cfg, nil
}
