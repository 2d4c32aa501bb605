package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/August26/proxyscan/internal/model"
)

const envPrefix = "PROXYSCAN_"

// Load builds a Config from defaults, then the TOML file at path (if any),
// then environment variables. Variables already present in the process
// environment win over those read from envFile. Missing envFile is not an
// error; a missing TOML file is.
func Load(path, envFile string) (model.Config, error) {
	cfg := model.DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = m
		case errors.Is(err, fs.ErrNotExist):
		default:
			return cfg, fmt.Errorf("read env file %s: %w", envFile, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			return v, true
		}
		v, ok := dotenv[envPrefix+key]
		return v, ok
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *model.Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = n
		return nil
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = b
		return nil
	}

	str("ENDPOINT", &cfg.Endpoint)
	str("INPUT", &cfg.InputFile)
	str("FORMAT", &cfg.OutputFormat)
	str("UPSTREAM_PROXY", &cfg.UpstreamProxy)
	str("GEOIP_DB", &cfg.GeoIPDB)
	str("GEOIP_ASN_DB", &cfg.GeoASNDB)

	return errors.Join(
		integer("TIMEOUT", &cfg.TimeoutSeconds),
		integer("CONCURRENCY", &cfg.Concurrency),
		boolean("SHOW_FAILURES", &cfg.ShowFailures),
		boolean("VERBOSE", &cfg.Verbose),
	)
}

// Validate clamps soft limits and rejects settings the scan cannot run with.
func Validate(cfg *model.Config) error {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.TimeoutSeconds < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", cfg.TimeoutSeconds)
	}
	switch cfg.OutputFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported format %q (want text or json)", cfg.OutputFormat)
	}
	if cfg.Endpoint == "" {
		return errors.New("endpoint must not be empty")
	}
	return nil
}
