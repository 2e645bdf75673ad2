package auditexport

import (
	"errors"
	"fmt"
	"time"

	"github.com/sellora/sellora/internal/pkg/env"
)

// Config holds audit export configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads audit export configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("AUDIT_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("AUDIT_S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("AUDIT_S3_REGION", "us-west-001"),
		BucketName:      env.GetEnv("AUDIT_S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("AUDIT_S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("AUDIT_EXPORT_ENABLED", "false") == "true",
	}

	// Validate required fields if the export is enabled
	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("AUDIT_S3_ACCESS_KEY_ID is required when audit export is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("AUDIT_S3_SECRET_ACCESS_KEY is required when audit export is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("AUDIT_S3_BUCKET_NAME is required when audit export is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if the audit export is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// GetObjectKey generates the S3 object key for one month's billing events
func (c *Config) GetObjectKey(month time.Time) string {
	// Format: billing-events/YYYY/billing-events-YYYY-MM.jsonl
	return fmt.Sprintf("billing-events/%04d/billing-events-%04d-%02d.jsonl",
		month.Year(), month.Year(), int(month.Month()))
}

// GetBucketName returns the bucket name as configured
func (c *Config) GetBucketName() string {
	return c.BucketName
}
