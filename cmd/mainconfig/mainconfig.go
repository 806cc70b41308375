package mainconfig

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kiteletz/BlueskyBot63ar/internal/bluesky"
	"github.com/kiteletz/BlueskyBot63ar/internal/bot"
	appconfig "github.com/kiteletz/BlueskyBot63ar/internal/config"
	"github.com/kiteletz/BlueskyBot63ar/internal/observability/metrics"
	"github.com/kiteletz/BlueskyBot63ar/internal/table"
)

// LoadAWSConfig centralizes AWS SDK initialization so the CLI and the Lambda
// share the same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return config.LoadDefaultConfig(ctx, loaders...)
}

// NewS3Client builds the S3 client used for s3:// tables and images. With an
// endpoint override (LocalStack, MinIO) requests use path-style addressing.
func NewS3Client(awsCfg aws.Config, cfg *appconfig.Config) *s3.Client {
	endpoint := strings.TrimSpace(cfg.AWSEndpointOverride)
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

// NewBot builds the Bluesky client, the remote table backends and the bot
// shared by both binaries. It does not log in.
func NewBot(ctx context.Context, cfg *appconfig.Config, logger *slog.Logger, m *metrics.BotMetrics) (*bot.Bot, error) {
	client, err := bluesky.New(bluesky.Config{
		BaseURL:  cfg.BlueskyPDSURL,
		Handle:   cfg.BlueskyHandle,
		Password: cfg.BlueskyPAT,
		Timeout:  cfg.HTTPTimeout,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: aws: %w", bot.ErrConfig, err)
	}
	deps := bot.Deps{
		Config:  cfg,
		Client:  client,
		S3:      NewS3Client(awsCfg, cfg),
		Metrics: m,
		Logger:  logger,
	}
	if strings.TrimSpace(cfg.GoogleCredentials) != "" {
		sheets, err := table.NewGoogleSheets(ctx, cfg.GoogleCredentials)
		if err != nil {
			return nil, fmt.Errorf("%w: google sheets: %w", bot.ErrConfig, err)
		}
		deps.Sheets = sheets
	}
	return bot.New(deps)
}
