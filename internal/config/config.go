package config

import (
	"alcyxob/upload-broker/internal/domain"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	// BaseURL is the externally reachable origin used to build local-upload links,
	// e.g. "https://api.example.com". Empty yields host-relative links.
	BaseURL        string        `mapstructure:"base_url"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig selects the transaction store.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // mongo | postgres | memory
	URI    string `mapstructure:"uri"`    // mongo
	Name   string `mapstructure:"name"`   // mongo
	DSN    string `mapstructure:"dsn"`    // postgres
}

// StorageConfig selects the active backend and holds settings for every variant.
// Only the section for Backend needs to be filled in.
type StorageConfig struct {
	Backend     domain.Backend `mapstructure:"backend"`
	GrantTTL    time.Duration  `mapstructure:"grant_ttl"`
	CallTimeout time.Duration  `mapstructure:"call_timeout"`
	Local       LocalConfig    `mapstructure:"local"`
	S3          S3Config       `mapstructure:"s3"`
	GCS         GCSConfig      `mapstructure:"gcs"`
	Azure       AzureConfig    `mapstructure:"azure"`
	Minio       MinioConfig    `mapstructure:"minio"`
}

type LocalConfig struct {
	Root string `mapstructure:"root"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"` // Empty for AWS; set for S3-compatible services
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type GCSConfig struct {
	BucketName      string `mapstructure:"bucket_name"`
	CredentialsFile string `mapstructure:"credentials_file"` // Empty uses Application Default Credentials
	GoogleAccessID  string `mapstructure:"google_access_id"` // Optional explicit signer
	PrivateKeyFile  string `mapstructure:"private_key_file"`
}

type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	ServiceURL  string `mapstructure:"service_url"` // Defaults to https://{account}.blob.core.windows.net/
}

type MinioConfig struct {
	Endpoint   string `mapstructure:"endpoint"` // host:port, no scheme
	Region     string `mapstructure:"region"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // json | text
}

// LoadConfig reads configuration from an optional .env file, an optional
// config.yaml under path, and environment variables, in increasing precedence.
func LoadConfig(path string) (config Config, err error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// storage.s3.bucket_name -> STORAGE_S3_BUCKET_NAME
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	return config, config.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m") // Local uploads stream through the server
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "upload_broker")
	v.SetDefault("database.dsn", "")

	v.SetDefault("storage.backend", string(domain.BackendLocal))
	v.SetDefault("storage.grant_ttl", "15m")
	v.SetDefault("storage.call_timeout", "10s")
	v.SetDefault("storage.local.root", "./media")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.minio.region", "us-east-1")
	v.SetDefault("storage.minio.use_ssl", true)

	// Env-only keys must be registered for AutomaticEnv to reach them through Unmarshal.
	for _, key := range []string{
		"jwt.secret",
		"storage.s3.endpoint", "storage.s3.access_key_id", "storage.s3.secret_access_key",
		"storage.s3.bucket_name", "storage.s3.use_path_style",
		"storage.gcs.bucket_name", "storage.gcs.credentials_file",
		"storage.gcs.google_access_id", "storage.gcs.private_key_file",
		"storage.azure.account_name", "storage.azure.account_key",
		"storage.azure.container", "storage.azure.service_url",
		"storage.minio.endpoint", "storage.minio.access_key", "storage.minio.secret_key",
		"storage.minio.bucket_name",
	} {
		_ = v.BindEnv(key)
	}

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate rejects settings the server cannot start with. Missing credentials for
// the selected backend are not an error here: the backend reports itself unavailable.
func (c Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if !c.Storage.Backend.Valid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of aws, gcs, azure, minio, local", c.Storage.Backend))
	}
	switch c.Database.Driver {
	case "mongo", "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not one of mongo, postgres, memory", c.Database.Driver))
	}
	if c.Storage.GrantTTL <= 0 {
		errs = append(errs, errors.New("storage.grant_ttl must be positive"))
	}
	if c.Storage.CallTimeout <= 0 {
		errs = append(errs, errors.New("storage.call_timeout must be positive"))
	}
	return errors.Join(errs...)
}
