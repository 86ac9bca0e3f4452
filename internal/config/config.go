// Package config loads the process configuration once at startup and
// hands out a single immutable value. Components receive what they
// need through constructors; there are no mutable process-wide
// singletons.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete, immutable process configuration.
type Config struct {
	Host string
	Port int

	// UploadPassword is the shared secret gating upload, list, and
	// delete. UploadPasswordHash, when set, is a bcrypt hash used
	// instead of the plaintext value.
	UploadPassword     string
	UploadPasswordHash string

	StorageDir string
	BaseURL    string

	MaxFileSize       int64
	AllowedExtensions []string
	BlockedExtensions []string

	// PublicRead toggles unauthenticated access to stored files.
	PublicRead bool

	LogLevel  string
	LogFormat string

	// StorageBackend selects "disk" or "s3".
	StorageBackend string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string

	RateLimit  int
	RateWindow time.Duration
}

// defaultBlockedExtensions mirrors the executable formats the store
// refuses regardless of the allow-list.
var defaultBlockedExtensions = []string{
	".exe", ".dll", ".bat", ".cmd", ".sh", ".ps1",
	".msi", ".scr", ".com", ".vbs", ".vbe", ".wsf",
	".jar", ".war", ".ear",
}

// Load reads configuration from the environment, applying defaults
// for anything unset.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8008)
	v.SetDefault("upload_password", "")
	v.SetDefault("upload_password_hash", "")
	v.SetDefault("storage_dir", defaultStorageDir())
	v.SetDefault("base_url", "http://localhost:8008")
	v.SetDefault("max_file_size", int64(500*1024*1024))
	v.SetDefault("allowed_extensions", "")
	v.SetDefault("blocked_extensions", strings.Join(defaultBlockedExtensions, ","))
	v.SetDefault("public_read", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("storage_backend", "disk")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("rate_limit", 120)
	v.SetDefault("rate_window", "1m")

	cfg := Config{
		Host:               v.GetString("host"),
		Port:               v.GetInt("port"),
		UploadPassword:     v.GetString("upload_password"),
		UploadPasswordHash: v.GetString("upload_password_hash"),
		StorageDir:         v.GetString("storage_dir"),
		BaseURL:            strings.TrimRight(v.GetString("base_url"), "/"),
		MaxFileSize:        v.GetInt64("max_file_size"),
		AllowedExtensions:  splitExtensions(v.GetString("allowed_extensions")),
		BlockedExtensions:  splitExtensions(v.GetString("blocked_extensions")),
		PublicRead:         v.GetBool("public_read"),
		LogLevel:           v.GetString("log_level"),
		LogFormat:          v.GetString("log_format"),
		StorageBackend:     strings.ToLower(v.GetString("storage_backend")),
		S3Endpoint:         v.GetString("s3_endpoint"),
		S3AccessKey:        v.GetString("s3_access_key"),
		S3SecretKey:        v.GetString("s3_secret_key"),
		S3Bucket:           v.GetString("s3_bucket"),
		RateLimit:          v.GetInt("rate_limit"),
		RateWindow:         v.GetDuration("rate_window"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.UploadPassword == "" && c.UploadPasswordHash == "" {
		return errors.New("no upload password configured: set UPLOAD_PASSWORD or UPLOAD_PASSWORD_HASH")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	switch c.StorageBackend {
	case "disk":
	case "s3":
		if c.S3Endpoint == "" || c.S3AccessKey == "" || c.S3SecretKey == "" || c.S3Bucket == "" {
			return errors.New("s3 backend selected but S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY, or S3_BUCKET is missing")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.StorageBackend)
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func defaultStorageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data/file-server"
	}
	return filepath.Join(home, "data", "file-server")
}

func splitExtensions(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	exts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, ".") {
			p = "." + p
		}
		exts = append(exts, p)
	}
	return exts
}
