// Package config loads the application configuration from config.yml with
// environment overrides.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort    = 16181
	defaultDataDir = "data"
)

// Load reads the first existing path (default "config.yml"), applies PORT and
// GTFS_DATA_DIR environment overrides and validates the result. A missing
// config file is not an error; defaults apply.
func Load(paths ...string) (AppConfig, error) {
	_ = godotenv.Load()

	if len(paths) == 0 {
		paths = []string{"config.yml"}
	}

	cfg := AppConfig{
		Server: ServerConfig{Port: defaultPort},
		GTFS:   GTFSConfig{DataDir: defaultDataDir},
	}

	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, err
	}
	if data != nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, err
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("GTFS_DATA_DIR"); v != "" {
		cfg.GTFS.DataDir = v
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}
	if cfg.GTFS.DataDir == "" {
		cfg.GTFS.DataDir = defaultDataDir
	}

	v := validator.New()
	if err := v.Struct(cfg.Server); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
