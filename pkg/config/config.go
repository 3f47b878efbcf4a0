package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	BPTree  BPTreeConfig  `yaml:"bptree"`
	Hash    HashConfig    `yaml:"hash"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

type BPTreeConfig struct {
	Order int `yaml:"order"` // max keys a node holds before splitting
}

type HashConfig struct {
	BucketCapacity int `yaml:"bucket_capacity"`
	GlobalDepth    int `yaml:"global_depth"`
	MaxLocalDepth  int `yaml:"max_local_depth"`
	MaxResident    int `yaml:"max_resident"` // 0 keeps every bucket in memory
}

type StorageConfig struct {
	Path string `yaml:"path"` // empty runs fully in memory
}

type LogConfig struct {
	Dir       string `yaml:"dir"` // empty logs to stderr
	Level     string `yaml:"level"`
	MaxSize   int    `yaml:"max_size"` // MB
	MaxBackup int    `yaml:"max_backups"`
	MaxAge    int    `yaml:"max_age"` // days
}

// Load reads the yaml config at configPath, overlaying it on defaults.
// With an empty path the default locations are probed and a missing file
// is not an error.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		BPTree: BPTreeConfig{
			Order: 3,
		},
		Hash: HashConfig{
			BucketCapacity: 2,
			GlobalDepth:    0,
			MaxLocalDepth:  20,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSize:   100,
			MaxBackup: 10,
			MaxAge:    30,
		},
	}

	if configPath == "" {
		for _, p := range []string{"configs/splitdb.yaml", "splitdb.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, err
				}
				break
			}
		}
		return cfg, cfg.validate()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.BPTree.Order < 2 {
		return fmt.Errorf("bptree.order must be >= 2, got %d", c.BPTree.Order)
	}
	if c.Hash.BucketCapacity < 1 {
		return fmt.Errorf("hash.bucket_capacity must be >= 1, got %d", c.Hash.BucketCapacity)
	}
	if c.Hash.GlobalDepth < 0 {
		return fmt.Errorf("hash.global_depth must be >= 0, got %d", c.Hash.GlobalDepth)
	}
	if c.Hash.MaxLocalDepth < 1 || c.Hash.MaxLocalDepth > 30 {
		return fmt.Errorf("hash.max_local_depth must be in [1,30], got %d", c.Hash.MaxLocalDepth)
	}
	if c.Hash.GlobalDepth > c.Hash.MaxLocalDepth {
		return fmt.Errorf("hash.global_depth %d exceeds max_local_depth %d",
			c.Hash.GlobalDepth, c.Hash.MaxLocalDepth)
	}
	return nil
}
