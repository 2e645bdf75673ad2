package auditexport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sellora/sellora/app/models"
	"github.com/sellora/sellora/internal/pkg/cache"
	"gorm.io/gorm"
)

// Exporter writes closed-month batches of the billing audit log to an
// S3-compatible bucket as JSON lines. Each month exports exactly once; the
// claim is held in the cache.
type Exporter struct {
	db       *gorm.DB
	s3Client *s3.Client
	cfg      *Config
}

// NewExporter creates an exporter. When the config is disabled the exporter
// is inert and Enabled reports false.
func NewExporter(db *gorm.DB, cfg *Config) (*Exporter, error) {
	e := &Exporter{db: db, cfg: cfg}
	if !cfg.IsEnabled() {
		return e, nil
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	e.s3Client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible services (e.g. Backblaze B2) need path-style URLs
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	log.Infof("[AuditExport] Initialized S3 client for bucket: %s", cfg.GetBucketName())
	return e, nil
}

// Enabled reports whether the exporter is configured to run.
func (e *Exporter) Enabled() bool {
	return e.cfg != nil && e.cfg.IsEnabled() && e.s3Client != nil
}

// ExportClosedMonths exports the most recently closed month unless it was
// already exported.
func (e *Exporter) ExportClosedMonths(ctx context.Context) error {
	if !e.Enabled() {
		return nil
	}

	now := time.Now().UTC()
	lastMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)

	claimKey := fmt.Sprintf("auditexport:%04d-%02d", lastMonth.Year(), int(lastMonth.Month()))
	claimed, err := cache.SetNX(claimKey, time.Now().Unix(), 35*24*time.Hour)
	if err != nil {
		return fmt.Errorf("export claim failed: %w", err)
	}
	if !claimed {
		return nil
	}

	return e.ExportMonth(ctx, lastMonth)
}

// ExportMonth uploads all billing events created within the given month.
func (e *Exporter) ExportMonth(ctx context.Context, month time.Time) error {
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var events []models.BillingEvent
	if err := e.db.Where("created_at >= ? AND created_at < ?", start, end).
		Order("id ASC").
		Find(&events).Error; err != nil {
		return fmt.Errorf("failed to load billing events: %w", err)
	}
	if len(events) == 0 {
		log.Infof("[AuditExport] No billing events for %s, skipping", start.Format("2006-01"))
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return fmt.Errorf("failed to encode billing event %d: %w", events[i].ID, err)
		}
	}

	objectKey := e.cfg.GetObjectKey(start)
	_, err := e.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(e.cfg.GetBucketName()),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentType:   aws.String("application/x-ndjson"),
		ContentLength: aws.Int64(int64(buf.Len())),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}

	log.Infof("[AuditExport] Exported %d billing events to s3://%s/%s",
		len(events), e.cfg.GetBucketName(), objectKey)
	return nil
}
