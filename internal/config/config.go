// Package config loads hemocount settings from an optional TOML file and
// HEMOCOUNT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HEMOCOUNT_"

// Config is the full runtime configuration.
type Config struct {
	LogLevel      string        `toml:"log_level"`
	Storage       Storage       `toml:"storage"`
	Blob          Blob          `toml:"blob"`
	Analytics     Analytics     `toml:"analytics"`
	Observability Observability `toml:"observability"`
	Defaults      Defaults      `toml:"defaults"`
}

// Storage selects the preference store.
type Storage struct {
	Driver      string `toml:"driver"` // memory|sqlite|postgres
	SQLitePath  string `toml:"sqlite_path"`
	PostgresDSN string `toml:"postgres_dsn"`
}

// Blob selects the export artifact store.
type Blob struct {
	Driver string `toml:"driver"` // fs|s3|memory
	FSRoot string `toml:"fs_root"`
	S3     S3     `toml:"s3"`
}

// S3 configures the S3 / MinIO blob driver.
type S3 struct {
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	PathStyle bool   `toml:"path_style"`
}

// Analytics toggles usage event counting.
type Analytics struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// Observability sends recompute spans and timings to files. Empty paths
// disable each exporter.
type Observability struct {
	TraceFile   string `toml:"trace_file"`   // JSON lines, appended
	MetricsFile string `toml:"metrics_file"` // JSON stats, rewritten on exit
}

// Defaults seeds the calculation form.
type Defaults struct {
	DilutionFactor      int     `toml:"dilution_factor"`
	VolumePerWell       float64 `toml:"volume_per_well_ul"`
	CellsPerWell        float64 `toml:"cells_per_well"`
	Wells               int     `toml:"wells"`
	ExtraWells          int     `toml:"extra_wells"`
	UseViable           bool    `toml:"use_viable"`
	DispersionThreshold float64 `toml:"dispersion_threshold"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Storage:  Storage{Driver: "sqlite", SQLitePath: "hemocount.db"},
		Blob:     Blob{Driver: "fs", FSRoot: "./exports"},
		Analytics: Analytics{
			Enabled:   true,
			Namespace: "hemocount",
		},
		Defaults: Defaults{
			DilutionFactor:      2,
			VolumePerWell:       100,
			CellsPerWell:        10000,
			Wells:               24,
			ExtraWells:          2,
			UseViable:           true,
			DispersionThreshold: 0.2,
		},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides. A missing file is an error; an empty path is not.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	boolean := func(name string, dst *bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = b
	}

	str("LOG_LEVEL", &cfg.LogLevel)
	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("SQLITE_PATH", &cfg.Storage.SQLitePath)
	str("POSTGRES_DSN", &cfg.Storage.PostgresDSN)
	str("BLOB_DRIVER", &cfg.Blob.Driver)
	str("BLOB_FS_ROOT", &cfg.Blob.FSRoot)
	str("BLOB_S3_BUCKET", &cfg.Blob.S3.Bucket)
	str("BLOB_S3_REGION", &cfg.Blob.S3.Region)
	str("BLOB_S3_ENDPOINT", &cfg.Blob.S3.Endpoint)
	boolean("BLOB_S3_PATH_STYLE", &cfg.Blob.S3.PathStyle)
	boolean("ANALYTICS_ENABLED", &cfg.Analytics.Enabled)
	str("TRACE_FILE", &cfg.Observability.TraceFile)
	str("METRICS_FILE", &cfg.Observability.MetricsFile)
	return errors.Join(errs...)
}

// Validate rejects unknown drivers and nonsensical defaults.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "", "memory", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case "", "fs", "s3", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	if c.Blob.Driver == "s3" && c.Blob.S3.Bucket == "" {
		errs = append(errs, errors.New("blob.s3.bucket required for s3 driver"))
	}
	if c.Defaults.DilutionFactor < 1 {
		errs = append(errs, fmt.Errorf("defaults.dilution_factor must be positive, got %d", c.Defaults.DilutionFactor))
	}
	if c.Defaults.Wells < 0 || c.Defaults.ExtraWells < 0 || c.Defaults.VolumePerWell < 0 || c.Defaults.CellsPerWell < 0 {
		errs = append(errs, errors.New("defaults must not be negative"))
	}
	if c.Defaults.DispersionThreshold < 0 {
		errs = append(errs, errors.New("defaults.dispersion_threshold must not be negative"))
	}
	return errors.Join(errs...)
}
