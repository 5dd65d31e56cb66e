// Package config loads the settings the license check needs from the
// environment and, optionally, a YAML file.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/LerianStudio/lib-licensing/licensing"
	"github.com/LerianStudio/lib-licensing/licensing/license"
	"github.com/LerianStudio/lib-licensing/licensing/log"
	"github.com/LerianStudio/lib-licensing/licensing/opentelemetry"
	libzap "github.com/LerianStudio/lib-licensing/licensing/zap"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvPackageName    = "LICENSE_PACKAGE_NAME"
	EnvProductVersion = "LICENSE_PRODUCT_VERSION"
	EnvKeys           = "LICENSE_KEYS"
	EnvKeysFile       = "LICENSE_KEYS_FILE"
	EnvPublicKeyFile  = "LICENSE_PUBLIC_KEY_FILE"
	EnvDebuggable     = "LICENSE_DEBUGGABLE"
	EnvEnvironment    = "ENV_NAME"
	EnvLogLevel       = "LOG_LEVEL"
	EnvTelemetry      = "ENABLE_TELEMETRY"
	EnvOTelEndpoint   = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvServiceName    = "OTEL_RESOURCE_SERVICE_NAME"

	// DefaultServiceName names the service in exported telemetry.
	DefaultServiceName = "licensecheck"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid license configuration")

// Config holds the license check settings.
type Config struct {
	PackageName    string `yaml:"packageName" env:"LICENSE_PACKAGE_NAME"`
	ProductVersion string `yaml:"productVersion" env:"LICENSE_PRODUCT_VERSION"`
	Keys           string `yaml:"keys" env:"LICENSE_KEYS"`
	KeysFile       string `yaml:"keysFile" env:"LICENSE_KEYS_FILE"`
	PublicKeyFile  string `yaml:"publicKeyFile" env:"LICENSE_PUBLIC_KEY_FILE"`
	Debuggable     bool   `yaml:"debuggable" env:"LICENSE_DEBUGGABLE"`
	Environment    string `yaml:"environment" env:"ENV_NAME"`
	LogLevel       string `yaml:"logLevel" env:"LOG_LEVEL"`

	EnableTelemetry bool   `yaml:"enableTelemetry" env:"ENABLE_TELEMETRY"`
	OTelEndpoint    string `yaml:"otelEndpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName     string `yaml:"serviceName" env:"OTEL_RESOURCE_SERVICE_NAME"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		ProductVersion: license.DefaultProductVersion,
		Environment:    string(libzap.EnvironmentProduction),
		ServiceName:    DefaultServiceName,
	}
}

// Load reads the configuration from environment variables on top of Defaults.
func Load() (Config, error) {
	cfg := Defaults()

	if err := licensing.SetConfigFromEnvVars(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return cfg, cfg.Validate()
}

// LoadFile reads the YAML document at path, then applies environment overrides.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}

	if err := licensing.SetConfigFromEnvVars(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks field shapes. An empty PackageName is allowed here because
// hosts usually supply it at call time.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ProductVersion) == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidConfig, EnvProductVersion)
	}

	switch libzap.Environment(c.Environment) {
	case libzap.EnvironmentProduction, libzap.EnvironmentStaging, libzap.EnvironmentDevelopment, libzap.EnvironmentLocal:
	default:
		return fmt.Errorf("%w: %s %q is not a known environment", ErrInvalidConfig, EnvEnvironment, c.Environment)
	}

	if strings.TrimSpace(c.LogLevel) != "" {
		if _, err := log.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvLogLevel, err)
		}
	}

	if c.EnableTelemetry && strings.TrimSpace(c.OTelEndpoint) == "" {
		return fmt.Errorf("%w: %s is required when %s is set", ErrInvalidConfig, EnvOTelEndpoint, EnvTelemetry)
	}

	return nil
}

// KeyStore returns the store described by the configuration: the inline Keys
// list when set, otherwise KeysFile, otherwise an empty store.
func (c Config) KeyStore() license.KeyStore {
	if keys := license.SplitKeys(c.Keys); len(keys) > 0 {
		return license.StaticKeys(keys)
	}

	if strings.TrimSpace(c.KeysFile) != "" {
		return license.FileKeyStore{Path: c.KeysFile}
	}

	return license.StaticKeys(nil)
}

// VerifierOptions translates the configuration into license.Options.
func (c Config) VerifierOptions() ([]license.Option, error) {
	opts := []license.Option{license.WithProductVersion(c.ProductVersion)}

	if strings.TrimSpace(c.PublicKeyFile) != "" {
		data, err := os.ReadFile(c.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}

		opts = append(opts, license.WithPublicKeyPEM(data))
	}

	return opts, nil
}

// Logger builds the zap logger for the configured environment and level.
func (c Config) Logger() (*libzap.Logger, error) {
	level := ""

	if strings.TrimSpace(c.LogLevel) != "" {
		parsed, err := log.ParseLevel(c.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvLogLevel, err)
		}

		level = parsed.String()
	}

	return libzap.New(libzap.Config{
		Environment: libzap.Environment(c.Environment),
		Level:       level,
	})
}

// Telemetry initializes the OpenTelemetry providers described by the
// configuration. serviceVersion is reported as the service.version resource.
func (c Config) Telemetry(ctx context.Context, logger log.Logger, serviceVersion string) (*opentelemetry.Telemetry, error) {
	return opentelemetry.InitializeTelemetry(ctx, &opentelemetry.TelemetryConfig{
		LibraryName:               opentelemetry.LibraryName,
		ServiceName:               c.ServiceName,
		ServiceVersion:            serviceVersion,
		DeploymentEnv:             c.Environment,
		CollectorExporterEndpoint: c.OTelEndpoint,
		EnableTelemetry:           c.EnableTelemetry,
		Logger:                    logger,
	})
}
