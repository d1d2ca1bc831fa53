// Package config holds the process configuration, loaded the way this
// codebase's teacher lineage loads it: a single YAML file named by an
// environment variable and defaulted with creasty/defaults. The structs
// carry go-playground/validator tags, but New does not run a validator.
package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/creasty/defaults"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"anoncreds/pkg/logger"
)

// Log holds the logging configuration.
type Log struct {
	Level      string `yaml:"level"`
	FolderPath string `yaml:"folder_path"`
}

// OTEL holds the opentelemetry exporter configuration.
type OTEL struct {
	Addr    string `yaml:"addr" validate:"required"`
	Timeout int64  `yaml:"timeout" default:"10"`
}

// Common holds configuration shared by every command in cmd/.
type Common struct {
	Production bool `yaml:"production"`
	Log        Log  `yaml:"log"`
	Tracing    OTEL `yaml:"tracing" validate:"required"`
}

// APIServer holds the demo HTTP command surface's listen configuration.
type APIServer struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Store holds configuration for the record store. When Mongo.URI is set,
// cmd/anoncreds connects a MongoStore; otherwise it falls back to the
// in-memory reference store.
type Store struct {
	// SnapshotPath is parsed from the config file but nothing reads it:
	// the in-memory store keeps no snapshot and is not persisted.
	SnapshotPath string `yaml:"snapshot_path"`
	Mongo        Mongo  `yaml:"mongo" validate:"omitempty"`
}

// Mongo holds connection configuration for a go.mongodb.org/mongo-driver
// backed Store.
type Mongo struct {
	URI string `yaml:"uri"`
}

// Revocation holds configuration for the tails-file accessor.
type Revocation struct {
	TailsPath string `yaml:"tails_path"`
}

// Cfg is the root configuration structure.
type Cfg struct {
	Common     Common     `yaml:"common"`
	APIServer  APIServer  `yaml:"api_server" validate:"omitempty"`
	Store      Store      `yaml:"store" validate:"omitempty"`
	Revocation Revocation `yaml:"revocation" validate:"omitempty"`
}

type envVars struct {
	ConfigYAML string `envconfig:"ANONCREDS_CONFIG_YAML" required:"true"`
}

// New parses the config file named by the ANONCREDS_CONFIG_YAML environment
// variable.
func New(ctx context.Context) (*Cfg, error) {
	log := logger.NewSimple("config")
	log.Info("reading environment variable")

	env := envVars{}
	if err := envconfig.Process("", &env); err != nil {
		return nil, err
	}

	cfg := &Cfg{}
	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}

	configFile, err := os.ReadFile(filepath.Clean(env.ConfigYAML))
	if err != nil {
		return nil, err
	}

	fileInfo, err := os.Stat(env.ConfigYAML)
	if err != nil {
		return nil, err
	}
	if fileInfo.IsDir() {
		return nil, errors.New("config path is a directory")
	}

	if err := yaml.Unmarshal(configFile, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
