package multistore

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/jrhy/iavl/persist"
)

// Config names the sub-stores and where they are kept.
//
//	stores: [acc, bank, staking]
//	cache_size: 50000
//	backend:
//	  type: leveldb
//	  path: /var/lib/app/state
type Config struct {
	Stores    []string              `yaml:"stores"`
	CacheSize int                   `yaml:"cache_size,omitempty"`
	Backend   persist.BackendConfig `yaml:"backend"`
}

// ParseConfig decodes a YAML configuration, rejecting unknown fields.
func ParseConfig(buf []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := validateNames(cfg.Stores); err != nil {
		return nil, err
	}
	if cfg.CacheSize < 0 {
		return nil, errors.Errorf("negative cache_size %d", cfg.CacheSize)
	}
	return &cfg, nil
}

// LoadConfig reads and parses the YAML configuration at path.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return ParseConfig(buf)
}
