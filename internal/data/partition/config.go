package partition

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the partition topology, usually read from PARTITIONS_FILE.
type Config struct {
	Catalog        string              `yaml:"catalog"`
	DefaultDataset string              `yaml:"default_dataset"`
	Partitions     []PartitionConfig   `yaml:"partitions"`
	Datasets       map[string][]string `yaml:"datasets"`
}

type PartitionConfig struct {
	Name         string `yaml:"name"`
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// LoadConfig reads a YAML topology file. ${VAR} references in DSNs are
// expanded from the environment so credentials stay out of the file.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read partitions file: %w", err)
	}
	return ParseConfig(raw)
}

func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse partitions file: %w", err)
	}
	for i := range cfg.Partitions {
		cfg.Partitions[i].Name = strings.TrimSpace(cfg.Partitions[i].Name)
		cfg.Partitions[i].DSN = os.ExpandEnv(cfg.Partitions[i].DSN)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SingleConfig is the one-partition topology used when no file is configured.
func SingleConfig(driver, dsn string) Config {
	return Config{
		Catalog:        "default",
		DefaultDataset: "default",
		Partitions:     []PartitionConfig{{Name: "default", Driver: driver, DSN: dsn}},
		Datasets:       map[string][]string{"default": {"default"}},
	}
}

func (c Config) Validate() error {
	if len(c.Partitions) == 0 {
		return fmt.Errorf("partition config: no partitions")
	}
	known := make(map[string]struct{}, len(c.Partitions))
	for _, p := range c.Partitions {
		if p.Name == "" {
			return fmt.Errorf("partition config: partition without name")
		}
		if _, dup := known[p.Name]; dup {
			return fmt.Errorf("partition config: duplicate partition %q", p.Name)
		}
		if strings.TrimSpace(p.DSN) == "" {
			return fmt.Errorf("partition config: partition %q has no dsn", p.Name)
		}
		known[p.Name] = struct{}{}
	}
	if _, ok := known[c.Catalog]; !ok {
		return fmt.Errorf("partition config: catalog partition %q not declared", c.Catalog)
	}
	for key, names := range c.Datasets {
		if len(names) == 0 {
			return fmt.Errorf("partition config: dataset %q maps to no partitions", key)
		}
		for _, n := range names {
			if _, ok := known[n]; !ok {
				return fmt.Errorf("partition config: dataset %q references unknown partition %q", key, n)
			}
		}
	}
	if c.DefaultDataset != "" {
		if _, ok := c.Datasets[c.DefaultDataset]; !ok {
			return fmt.Errorf("partition config: default dataset %q not declared", c.DefaultDataset)
		}
	}
	return nil
}
