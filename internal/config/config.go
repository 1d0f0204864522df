package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the endpoints and credentials used by a publish run.
type Config struct {
	// LoginURL is the platform endpoint that exchanges credentials for a token.
	LoginURL string `yaml:"login_url"`
	// UploadURL is the platform endpoint receiving the model archive.
	UploadURL string `yaml:"upload_url"`
	// TrackingURI locates the tracking store: a local mlruns directory or a tracking server URL.
	TrackingURI string `yaml:"tracking_uri"`
	// Email is the platform account email.
	Email string `yaml:"email,omitempty"`
	// Password is the platform account password. It is never written back to disk.
	Password string `yaml:"-"`
	// S3 configures access to s3:// artifact locations.
	S3 S3Config `yaml:"s3"`
}

// S3Config holds object storage settings for artifact locations on S3-compatible storage.
type S3Config struct {
	// Endpoint is host[:port] of the storage service, without scheme.
	Endpoint string `yaml:"endpoint"`
	// Region is the bucket region.
	Region string `yaml:"region"`
	// AccessKey is the access key id.
	AccessKey string `yaml:"access_key,omitempty"`
	// SecretKey is the secret access key.
	SecretKey string `yaml:"-"`
	// UseSSL enables HTTPS towards Endpoint.
	UseSSL bool `yaml:"use_ssl"`
}

const (
	// DefaultConfigFilename is the default filename for publisher settings.
	DefaultConfigFilename = "shippedbrain.yaml"

	// DefaultLoginURL is the platform login endpoint.
	DefaultLoginURL = "https://api.shippedbrain.com/api/v0/login"

	// DefaultUploadURL is the platform upload endpoint.
	DefaultUploadURL = "https://api.shippedbrain.com/api/v0/upload"

	// DefaultTrackingURI is the tracking library's default local store.
	DefaultTrackingURI = "mlruns"

	// DefaultS3Endpoint is used for s3:// artifacts when no endpoint is configured.
	DefaultS3Endpoint = "s3.amazonaws.com"

	// DefaultS3Region is used for s3:// artifacts when no region is configured.
	DefaultS3Region = "us-east-1"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// Environment variables read by ApplyEnv.
const (
	EnvEmail         = "SHIPPED_BRAIN_EMAIL"
	EnvPassword      = "SHIPPED_BRAIN_PASSWORD"
	EnvLoginURL      = "SHIPPED_BRAIN_LOGIN_URL"
	EnvUploadURL     = "SHIPPED_BRAIN_UPLOAD_URL"
	EnvTrackingURI   = "MLFLOW_TRACKING_URI"
	EnvS3EndpointURL = "MLFLOW_S3_ENDPOINT_URL"
	EnvAWSAccessKey  = "AWS_ACCESS_KEY_ID"
	EnvAWSSecretKey  = "AWS_SECRET_ACCESS_KEY"
	EnvAWSRegion     = "AWS_DEFAULT_REGION"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errAbsoluteURLRequired is returned when an endpoint is not an absolute http(s) URL.
	errAbsoluteURLRequired = errors.New("absolute http(s) URL required")
)

// Default returns settings pointing at the public platform and the local tracking store.
func Default() *Config {
	return &Config{
		LoginURL:    DefaultLoginURL,
		UploadURL:   DefaultUploadURL,
		TrackingURI: DefaultTrackingURI,
		S3: S3Config{
			Endpoint: DefaultS3Endpoint,
			Region:   DefaultS3Region,
			UseSSL:   true,
		},
	}
}

// Load reads settings from path, applies environment overrides and validates the result.
// A missing file is not an error when path is empty or the default filename.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	ApplyEnv(cfg)

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile reads settings from path on top of the defaults, ignoring the environment.
// A missing file is not an error when path is empty or the default filename.
func LoadFile(path string) (*Config, error) {
	optional := path == "" || path == DefaultConfigFilename
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && optional:
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	return cfg, nil
}

// Save writes settings to the provided path. Secrets are not persisted.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// ApplyEnv overrides settings with values from the process environment.
func ApplyEnv(cfg *Config) {
	setFromEnv(&cfg.Email, EnvEmail)
	setSecretFromEnv(&cfg.Password, EnvPassword)
	setFromEnv(&cfg.LoginURL, EnvLoginURL)
	setFromEnv(&cfg.UploadURL, EnvUploadURL)
	setFromEnv(&cfg.TrackingURI, EnvTrackingURI)
	setFromEnv(&cfg.S3.AccessKey, EnvAWSAccessKey)
	setSecretFromEnv(&cfg.S3.SecretKey, EnvAWSSecretKey)
	setFromEnv(&cfg.S3.Region, EnvAWSRegion)

	// The tracking library takes a full URL here, the storage client wants host[:port].
	if raw := strings.TrimSpace(os.Getenv(EnvS3EndpointURL)); raw != "" {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			cfg.S3.Endpoint = u.Host
			cfg.S3.UseSSL = u.Scheme == "https"
		} else {
			cfg.S3.Endpoint = raw
		}
	}
}

// Validate checks the provided settings and fills in defaults for empty fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.LoginURL == "" {
		cfg.LoginURL = DefaultLoginURL
	}

	if cfg.UploadURL == "" {
		cfg.UploadURL = DefaultUploadURL
	}

	if cfg.TrackingURI == "" {
		cfg.TrackingURI = DefaultTrackingURI
	}

	if cfg.S3.Endpoint == "" {
		cfg.S3.Endpoint = DefaultS3Endpoint
	}

	if cfg.S3.Region == "" {
		cfg.S3.Region = DefaultS3Region
	}

	if err := validateURL(cfg.LoginURL); err != nil {
		return fmt.Errorf("invalid login URL: %w", err)
	}

	if err := validateURL(cfg.UploadURL); err != nil {
		return fmt.Errorf("invalid upload URL: %w", err)
	}

	if strings.Contains(cfg.S3.Endpoint, "://") {
		return fmt.Errorf("s3 endpoint must not include scheme: %q", cfg.S3.Endpoint)
	}

	return nil
}

func validateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return err
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q: %w", raw, errAbsoluteURLRequired)
	}

	return nil
}

func setFromEnv(dst *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dst = value
	}
}

// setSecretFromEnv keeps the value byte for byte, surrounding spaces included.
func setSecretFromEnv(dst *string, key string) {
	if value := os.Getenv(key); strings.TrimSpace(value) != "" {
		*dst = value
	}
}
