// Package config loads process configuration.
//
// Environment settings are parsed into structs with `env` tags using
// github.com/caarlos0/env/v11. The default .env file is read on first use via
// github.com/joho/godotenv, and LoadEnv reads extra files explicitly. Each
// config type is parsed once per process and served from a cache afterwards;
// ResetCache and ForceReloadConfig exist for tests.
//
//	type Config struct {
//	    Backend string `env:"BACKEND" envDefault:"memory"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
// Structured documents such as the handler manifest are read with LoadYAML,
// which decodes strictly with gopkg.in/yaml.v3:
//
//	var m Manifest
//	if err := config.LoadYAML("handlers.yaml", &m); err != nil {
//	    return err
//	}
package config
