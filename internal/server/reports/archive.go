// Package reports encodes weekly run reports and archives them in an
// S3-compatible bucket.
package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/dmitrijs2005/omnivore/internal/server/services"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Options locate the bucket. An empty Bucket disables archiving.
type Options struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
	URLValidity  time.Duration
}

// Document is the archived form of a run.
type Document struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Report      *services.BatchReport `json:"report"`
}

// Encode renders the report as indented JSON.
func Encode(report *services.BatchReport, at time.Time) ([]byte, error) {
	return json.MarshalIndent(Document{GeneratedAt: at.UTC(), Report: report}, "", "  ")
}

// Key names the object of a run started at t.
func Key(t time.Time, dryRun bool) string {
	t = t.UTC()
	kind := "run"
	if dryRun {
		kind = "dry-run"
	}
	return fmt.Sprintf("weekly/%d/%02d/%02d/%s-%s.json", t.Year(), t.Month(), t.Day(), kind, uuid.NewString())
}

// Archiver uploads reports and hands out temporary links to them.
type Archiver struct {
	opts   Options
	logger logging.Logger
}

func NewArchiver(opts Options, logger logging.Logger) *Archiver {
	if opts.URLValidity <= 0 {
		opts.URLValidity = 24 * time.Hour
	}
	return &Archiver{opts: opts, logger: logger.With("module", "reports")}
}

// Enabled reports whether a bucket is configured.
func (a *Archiver) Enabled() bool {
	return a.opts.Bucket != ""
}

func (a *Archiver) client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(a.opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			a.opts.AccessKey,
			a.opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if a.opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(a.opts.BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Archive uploads the report and returns its key and a presigned GET URL.
func (a *Archiver) Archive(ctx context.Context, report *services.BatchReport, at time.Time) (string, string, error) {
	body, err := Encode(report, at)
	if err != nil {
		return "", "", err
	}

	client, err := a.client(ctx)
	if err != nil {
		return "", "", err
	}

	bucket := a.opts.Bucket
	key := Key(at, report.DryRun)
	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", "", fmt.Errorf("upload report: %w", err)
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(a.opts.URLValidity))
	if err != nil {
		return key, "", fmt.Errorf("presign report: %w", err)
	}

	a.logger.Info(ctx, "report archived", "bucket", bucket, "key", key)
	return key, req.URL, nil
}
