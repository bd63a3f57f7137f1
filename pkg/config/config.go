// Package config provides configuration management for the application
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hixichen/client-secret-rotator/pkg/constants"
	"github.com/hixichen/client-secret-rotator/pkg/scheduler"
)

// Store types understood by StoreConfig.Type.
const (
	StoreTypeFile       = "file"
	StoreTypeKubernetes = "kubernetes"
	StoreTypeS3         = "s3"
	StoreTypeGCS        = "gcs"
	StoreTypeAzure      = "azure"
	StoreTypeOCI        = "oci"
)

// Config holds the daemon configuration. The Apple credentials themselves are
// read from the environment by LoadSecretConfig, not from this file.
type Config struct {
	Rotation RotationConfig `mapstructure:"rotation"`
	Store    StoreConfig    `mapstructure:"store"`
	Lock     LockConfig     `mapstructure:"lock"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Server   ServerConfig   `mapstructure:"server"`

	// EnvFile is an optional dotenv file merged under the process environment
	// before the Apple credentials are read.
	EnvFile string `mapstructure:"envFile"`
}

// RotationConfig holds rotation policy settings.
type RotationConfig struct {
	// DailyAt is the local time of day ("HH:MM") of the scheduled check.
	DailyAt string `mapstructure:"dailyAt"`
	// RefreshThreshold rotates secrets expiring sooner than this (default: "168h").
	RefreshThreshold string `mapstructure:"refreshThreshold"`
	// RestartDelay is how long to wait after persisting before exiting (default: "2s").
	RestartDelay string `mapstructure:"restartDelay"`
	// SecretKey is the environment key the client secret is stored under.
	SecretKey string `mapstructure:"secretKey"`
	// RunAtStartup runs a check as soon as the daemon starts (default: true).
	RunAtStartup bool `mapstructure:"runAtStartup"`
	// Restart exits the process after a successful rotation (default: true).
	Restart bool `mapstructure:"restart"`
}

// StoreConfig selects and configures the environment store.
type StoreConfig struct {
	Type       string            `mapstructure:"type"`
	File       *FileConfig       `mapstructure:"file,omitempty"`
	Kubernetes *KubernetesConfig `mapstructure:"kubernetes,omitempty"`
	S3         *S3Config         `mapstructure:"s3,omitempty"`
	GCS        *GCSConfig        `mapstructure:"gcs,omitempty"`
	Azure      *AzureConfig      `mapstructure:"azure,omitempty"`
	OCI        *OCIConfig        `mapstructure:"oci,omitempty"`
}

// FileConfig holds settings for a local dotenv file.
type FileConfig struct {
	// Path defaults to HOST_ENV_FILE_PATH.
	Path string `mapstructure:"path"`
}

// KubernetesConfig holds settings for a Secret-backed store.
type KubernetesConfig struct {
	Namespace  string `mapstructure:"namespace"`
	SecretName string `mapstructure:"secretName"`
}

// S3Config holds S3 store configuration.
type S3Config struct {
	Bucket         string `mapstructure:"bucket"`
	Key            string `mapstructure:"key"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint,omitempty"`
	ForcePathStyle bool   `mapstructure:"forcePathStyle,omitempty"`
	UseIRSA        bool   `mapstructure:"useIRSA,omitempty"`
}

// GCSConfig holds GCS store configuration.
type GCSConfig struct {
	Bucket              string `mapstructure:"bucket"`
	Object              string `mapstructure:"object"`
	Project             string `mapstructure:"project"`
	UseWorkloadIdentity bool   `mapstructure:"useWorkloadIdentity,omitempty"`
	CredentialsFile     string `mapstructure:"credentialsFile,omitempty"`
}

// AzureConfig holds Azure Blob Storage store configuration.
type AzureConfig struct {
	StorageAccount     string `mapstructure:"storageAccount"`
	Container          string `mapstructure:"container"`
	Blob               string `mapstructure:"blob"`
	UseManagedIdentity bool   `mapstructure:"useManagedIdentity,omitempty"`
	TenantID           string `mapstructure:"tenantId,omitempty"`
	ClientID           string `mapstructure:"clientId,omitempty"`
	ClientSecret       string `mapstructure:"clientSecret,omitempty"`
	ServiceURL         string `mapstructure:"serviceUrl,omitempty"`
}

// OCIConfig holds OCI Object Storage store configuration.
type OCIConfig struct {
	Bucket               string `mapstructure:"bucket"`
	Namespace            string `mapstructure:"namespace"`
	Object               string `mapstructure:"object"`
	Region               string `mapstructure:"region,omitempty"`
	UseInstancePrincipal bool   `mapstructure:"useInstancePrincipal,omitempty"`
	UserID               string `mapstructure:"userId,omitempty"`
	Fingerprint          string `mapstructure:"fingerprint,omitempty"`
	KeyFile              string `mapstructure:"keyFile,omitempty"`
	TenancyID            string `mapstructure:"tenancyId,omitempty"`
}

// LockConfig configures the cross-replica rotation lock. Without a redis
// address only the in-process guard is used.
type LockConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
	TTL      string `mapstructure:"ttl"`
}

// NotifyConfig configures rotation event delivery.
type NotifyConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig holds kafka producer settings. Disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// ServerConfig holds probe and metrics listener settings.
type ServerConfig struct {
	ProbeAddr string `mapstructure:"probeAddr"`
}

// LoadConfig loads the configuration from a file. An empty path uses defaults
// and environment overrides only.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Store.Type == StoreTypeFile {
		if config.Store.File == nil {
			config.Store.File = &FileConfig{}
		}
		if config.Store.File.Path == "" {
			config.Store.File.Path = v.GetString(constants.EnvHostEnvFilePath)
		}
	}

	if err := config.Rotation.validate(); err != nil {
		return nil, fmt.Errorf("invalid rotation config: %w", err)
	}
	if err := config.Store.validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}

	return &config, nil
}

// StoreConfigured reports whether the store has a write-back location. Only
// the file store can lack one, when neither store.file.path nor
// HOST_ENV_FILE_PATH is set.
func (c *Config) StoreConfigured() bool {
	if c.Store.Type != StoreTypeFile {
		return true
	}
	return c.Store.File != nil && c.Store.File.Path != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rotation.dailyAt", constants.DefaultDailyAt)
	v.SetDefault("rotation.refreshThreshold", "168h")
	v.SetDefault("rotation.restartDelay", "2s")
	v.SetDefault("rotation.secretKey", constants.DefaultSecretKey)
	v.SetDefault("rotation.runAtStartup", true)
	v.SetDefault("rotation.restart", true)
	v.SetDefault("store.type", StoreTypeFile)
	v.SetDefault("lock.redis.key", constants.DefaultLockKey)
	v.SetDefault("lock.redis.ttl", "1m")
	v.SetDefault("notify.kafka.topic", "client-secret-rotations")
	v.SetDefault("server.probeAddr", ":8081")
}

// validate validates RotationConfig fields.
func (c *RotationConfig) validate() error {
	if _, err := scheduler.ParseTimeOfDay(c.DailyAt); err != nil {
		return fmt.Errorf("dailyAt: %w", err)
	}
	if d, err := time.ParseDuration(c.RefreshThreshold); err != nil || d <= 0 {
		return fmt.Errorf("refreshThreshold %q must be a positive duration", c.RefreshThreshold)
	}
	if d, err := time.ParseDuration(c.RestartDelay); err != nil || d < 0 {
		return fmt.Errorf("restartDelay %q must be a non-negative duration", c.RestartDelay)
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secretKey is required")
	}
	return nil
}

// validate validates StoreConfig fields.
func (c *StoreConfig) validate() error {
	switch c.Type {
	case StoreTypeFile:
		// A missing path disables rotation instead of failing; see StoreConfigured.
	case StoreTypeKubernetes:
		if c.Kubernetes == nil || c.Kubernetes.SecretName == "" {
			return fmt.Errorf("kubernetes store requires store.kubernetes.secretName")
		}
	case StoreTypeS3:
		if c.S3 == nil {
			return fmt.Errorf("s3 configuration is required")
		}
	case StoreTypeGCS:
		if c.GCS == nil {
			return fmt.Errorf("gcs configuration is required")
		}
	case StoreTypeAzure:
		if c.Azure == nil {
			return fmt.Errorf("azure configuration is required")
		}
	case StoreTypeOCI:
		if c.OCI == nil {
			return fmt.Errorf("oci configuration is required")
		}
	default:
		return fmt.Errorf("unsupported store type: %q", c.Type)
	}
	return nil
}

// RefreshThresholdDuration returns the parsed refresh threshold.
func (c *RotationConfig) RefreshThresholdDuration() time.Duration {
	d, _ := time.ParseDuration(c.RefreshThreshold)
	return d
}

// RestartDelayDuration returns the parsed restart delay.
func (c *RotationConfig) RestartDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.RestartDelay)
	return d
}

// TTLDuration returns the parsed lock TTL, one minute when unset or invalid.
func (c *RedisConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}
