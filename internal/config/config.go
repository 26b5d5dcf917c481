// Package config loads pkgindex settings from a YAML file and PKGINDEX_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pkgindex/pkgindex/internal/fetch"
	"github.com/pkgindex/pkgindex/internal/observability/logging"
	"github.com/pkgindex/pkgindex/internal/observability/otel"
	"github.com/pkgindex/pkgindex/internal/signing"
	"github.com/pkgindex/pkgindex/internal/store"
)

// Config is the full pkgindex configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Lists     ListsConfig     `mapstructure:"lists"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Signing   SigningConfig   `mapstructure:"signing"`
	Log       LogConfig       `mapstructure:"log"`
	Otel      OtelConfig      `mapstructure:"otel"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Debug  bool   `mapstructure:"debug"`
}

// ListsConfig locates the external package lists.
type ListsConfig struct {
	PackageListURL       string `mapstructure:"package_list_url"`
	DenyListURL          string `mapstructure:"deny_list_url"`
	CustomCollectionsURL string `mapstructure:"custom_collections_url"`
}

type FetchConfig struct {
	Timeout                 time.Duration `mapstructure:"timeout"`
	MaxRetries              int           `mapstructure:"max_retries"`
	UserAgent               string        `mapstructure:"user_agent"`
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_threshold"`
}

type ReconcileConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// SigningConfig points at PEM files. CertificateChain holds the leaf first.
type SigningConfig struct {
	PrivateKey       string   `mapstructure:"private_key"`
	CertificateChain string   `mapstructure:"certificate_chain"`
	TrustedRoots     []string `mapstructure:"trusted_roots"`
	Revocation       string   `mapstructure:"revocation"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

type OtelConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Defaults are applied beneath file and environment values.
func Defaults() map[string]any {
	lc := logging.DefaultConfig()
	oc := otel.DefaultConfig()
	return map[string]any{
		"database.driver":                 store.DriverSQLite,
		"database.dsn":                    "pkgindex.db",
		"database.debug":                  false,
		"lists.package_list_url":          "https://raw.githubusercontent.com/SwiftPackageIndex/PackageList/main/packages.json",
		"lists.deny_list_url":             "https://raw.githubusercontent.com/SwiftPackageIndex/PackageList/main/denylist.json",
		"lists.custom_collections_url":    "https://raw.githubusercontent.com/SwiftPackageIndex/PackageList/main/custom-package-collections.json",
		"fetch.timeout":                   fetch.DefaultTimeout,
		"fetch.max_retries":               0,
		"fetch.user_agent":                "",
		"fetch.circuit_breaker_threshold": 5,
		"reconcile.concurrency":           4,
		"signing.private_key":             "",
		"signing.certificate_chain":       "",
		"signing.trusted_roots":           []string{},
		"signing.revocation":              string(signing.RevocationBestEffort),
		"log.format":                      lc.Format,
		"log.level":                       lc.Level,
		"log.output":                      lc.Output,
		"otel.enabled":                    oc.Enabled,
		"otel.endpoint":                   oc.Endpoint,
		"otel.protocol":                   oc.Protocol,
		"otel.insecure":                   oc.Insecure,
		"otel.service_name":               oc.ServiceName,
		"otel.sample_ratio":               oc.SampleRatio,
	}
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported %q", c.Database.Driver))
	}
	if c.Database.Driver == store.DriverPostgres && c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn: required for postgres"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch.timeout: must be positive"))
	}
	if c.Fetch.MaxRetries < 0 {
		errs = append(errs, errors.New("fetch.max_retries: must not be negative"))
	}
	if c.Reconcile.Concurrency < 1 {
		errs = append(errs, errors.New("reconcile.concurrency: must be at least 1"))
	}
	if _, err := signing.ParseRevocationPolicy(c.Signing.Revocation); err != nil {
		errs = append(errs, fmt.Errorf("signing.revocation: %w", err))
	}
	switch c.Log.Format {
	case logging.FormatPretty, logging.FormatJSONL:
	default:
		errs = append(errs, fmt.Errorf("log.format: unsupported %q", c.Log.Format))
	}
	if err := c.OtelConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) StoreConfig() store.Config {
	return store.Config{Driver: c.Database.Driver, DSN: c.Database.DSN, Debug: c.Database.Debug}
}

func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{Format: c.Log.Format, Level: c.Log.Level, Output: c.Log.Output}
}

func (c *Config) OtelConfig() otel.Config {
	return otel.Config{
		Enabled:     c.Otel.Enabled,
		Endpoint:    c.Otel.Endpoint,
		Protocol:    c.Otel.Protocol,
		Insecure:    c.Otel.Insecure,
		ServiceName: c.Otel.ServiceName,
		SampleRatio: c.Otel.SampleRatio,
	}
}
