package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("UPLOAD_PASSWORD", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want 0.0.0.0", cfg.Host)
	}
	if cfg.Port != 8008 {
		t.Errorf("Port = %d, want 8008", cfg.Port)
	}
	if cfg.MaxFileSize != 500*1024*1024 {
		t.Errorf("MaxFileSize = %d, want 500 MiB", cfg.MaxFileSize)
	}
	if !cfg.PublicRead {
		t.Error("PublicRead default should be true")
	}
	if cfg.StorageBackend != "disk" {
		t.Errorf("StorageBackend = %q, want disk", cfg.StorageBackend)
	}
	if cfg.RateLimit != 120 || cfg.RateWindow != time.Minute {
		t.Errorf("rate defaults = %d/%s, want 120/1m", cfg.RateLimit, cfg.RateWindow)
	}
	if len(cfg.AllowedExtensions) != 0 {
		t.Errorf("AllowedExtensions default = %v, want empty", cfg.AllowedExtensions)
	}
	if len(cfg.BlockedExtensions) == 0 {
		t.Error("BlockedExtensions default is empty; executables should be blocked")
	}
	if cfg.Addr() != "0.0.0.0:8008" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("UPLOAD_PASSWORD", "secret")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_FILE_SIZE", "1048576")
	t.Setenv("PUBLIC_READ", "false")
	t.Setenv("BASE_URL", "https://files.example.com/")
	t.Setenv("ALLOWED_EXTENSIONS", "pdf, .TXT ,png")
	t.Setenv("RATE_WINDOW", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Host != "127.0.0.1" || cfg.Port != 9090 {
		t.Errorf("addr = %s, want 127.0.0.1:9090", cfg.Addr())
	}
	if cfg.MaxFileSize != 1048576 {
		t.Errorf("MaxFileSize = %d, want 1048576", cfg.MaxFileSize)
	}
	if cfg.PublicRead {
		t.Error("PublicRead = true, want false")
	}
	if cfg.BaseURL != "https://files.example.com" {
		t.Errorf("BaseURL = %q, trailing slash not trimmed", cfg.BaseURL)
	}
	want := []string{".pdf", ".txt", ".png"}
	if !reflect.DeepEqual(cfg.AllowedExtensions, want) {
		t.Errorf("AllowedExtensions = %v, want %v", cfg.AllowedExtensions, want)
	}
	if cfg.RateWindow != 30*time.Second {
		t.Errorf("RateWindow = %s, want 30s", cfg.RateWindow)
	}
}

func TestLoad_RequiresPassword(t *testing.T) {
	t.Setenv("UPLOAD_PASSWORD", "")
	t.Setenv("UPLOAD_PASSWORD_HASH", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded with no password configured")
	}
}

func TestLoad_HashAloneSuffices(t *testing.T) {
	t.Setenv("UPLOAD_PASSWORD", "")
	t.Setenv("UPLOAD_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuv")

	if _, err := Load(); err != nil {
		t.Fatalf("Load with hash only: %v", err)
	}
}

func TestLoad_ValidatesS3Backend(t *testing.T) {
	t.Setenv("UPLOAD_PASSWORD", "secret")
	t.Setenv("STORAGE_BACKEND", "s3")

	if _, err := Load(); err == nil {
		t.Fatal("s3 backend accepted without credentials")
	}

	t.Setenv("S3_ENDPOINT", "localhost:9000")
	t.Setenv("S3_ACCESS_KEY", "minioadmin")
	t.Setenv("S3_SECRET_KEY", "minioadmin")
	t.Setenv("S3_BUCKET", "files")

	if _, err := Load(); err != nil {
		t.Fatalf("complete s3 config rejected: %v", err)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("UPLOAD_PASSWORD", "secret")

	t.Run("port out of range", func(t *testing.T) {
		t.Setenv("PORT", "70000")
		if _, err := Load(); err == nil {
			t.Error("port 70000 accepted")
		}
	})
	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "tape")
		if _, err := Load(); err == nil {
			t.Error("backend tape accepted")
		}
	})
}

func TestSplitExtensions(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"  ", nil},
		{"pdf", []string{".pdf"}},
		{".exe,.sh", []string{".exe", ".sh"}},
		{"PDF, png ,, .Txt", []string{".pdf", ".png", ".txt"}},
	}
	for _, tt := range tests {
		if got := splitExtensions(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitExtensions(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
