package config

import (
	"slices"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty app name", func(c *Config) { c.App.Name = "" }},
		{"bad environment", func(c *Config) { c.App.Environment = "staging" }},
		{"relative store url", func(c *Config) { c.App.StoreURL = "localhost:3000" }},
		{"unknown storage mode", func(c *Config) { c.Media.StorageMode = "ftp" }},
		{"file mode without root", func(c *Config) {
			c.Media.StorageMode = StorageModeFile
			c.Media.MediaRoot = ""
		}},
		{"s3 mode without bucket", func(c *Config) {
			c.Media.StorageMode = StorageModeS3
			c.S3.AccessKey = "k"
			c.S3.SecretKey = "s"
			c.S3.Bucket = ""
		}},
		{"s3 mode without credentials", func(c *Config) { c.Media.StorageMode = StorageModeS3 }},
		{"zero upload limit", func(c *Config) { c.Media.MaxUploadBytes = 0 }},
		{"zero max width", func(c *Config) { c.Media.MaxImageWidth = 0 }},
		{"no thumbnail sizes", func(c *Config) { c.Media.ThumbnailSizes = nil }},
		{"thumbnail larger than max width", func(c *Config) { c.Media.ThumbnailSizes = []int{9999} }},
		{"zero variant workers", func(c *Config) { c.Media.VariantWorkers = 0 }},
		{"bad token namespace", func(c *Config) { c.Media.TokenNamespace = "not-a-uuid" }},
		{"privileged port", func(c *Config) { c.HTTP.Port = 80 }},
		{"zero read timeout", func(c *Config) { c.HTTP.Timeouts.Read = 0 }},
		{"zero rate limit", func(c *Config) { c.Limiter.RPS = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error, got nil")
			}
		})
	}
}

func TestGetEnvAsIntSlice(t *testing.T) {
	fallback := []int{100, 300}

	tests := []struct {
		name  string
		value string
		set   bool
		want  []int
	}{
		{"unset uses fallback", "", false, fallback},
		{"parses and sorts", "600, 100 ,300", true, []int{100, 300, 600}},
		{"garbage uses fallback", "100,abc", true, fallback},
		{"negative uses fallback", "100,-5", true, fallback},
		{"empty string uses fallback", "", true, fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const key = "TEST_THUMBNAIL_SIZES"
			if tt.set {
				t.Setenv(key, tt.value)
			}

			if got := getEnvAsIntSlice(key, fallback); !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
