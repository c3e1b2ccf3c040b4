package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/itsatony/go-promptml"
)

// storeFileConfig is the YAML config file accepted by the store command
//
//	driver: postgres
//	dsn: postgres://localhost/promptml?sslmode=disable
//	postgres:
//	  table_prefix: app_
//	  auto_migrate: true
//	cache:
//	  ttl: 1m
//	  max_entries: 500
type storeFileConfig struct {
	Driver   string                   `yaml:"driver"`
	DSN      string                   `yaml:"dsn"`
	Postgres *promptml.PostgresConfig `yaml:"postgres"`
	Cache    *promptml.CacheConfig    `yaml:"cache"`
}

// loadStoreFileConfig reads path, returning an empty config for ""
func loadStoreFileConfig(path string) (*storeFileConfig, error) {
	cfg := &storeFileConfig{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// stringList is a repeatable string flag
type stringList []string

func (l *stringList) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

func (l *stringList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

// parseMeta turns key=value entries into a map
func parseMeta(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, MetaSeparator)
		if !ok || key == "" {
			return nil, errors.New(ErrMsgInvalidMeta)
		}
		meta[key] = value
	}
	return meta, nil
}
