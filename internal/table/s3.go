package table

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by the s3 backend.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type s3Store struct {
	api    S3API
	bucket string
	key    string
	codec  codec
	logger *slog.Logger
}

func (s *s3Store) Location() string { return "s3://" + s.bucket + "/" + s.key }

func (s *s3Store) Read(ctx context.Context) (*Sheet, error) {
	resp, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.Location())
		}
		return nil, fmt.Errorf("table: s3 get %s: %w", s.Location(), err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("table: s3 read %s: %w", s.Location(), err)
	}
	return s.codec.decode(data)
}

func (s *s3Store) Write(ctx context.Context, sheet *Sheet) error {
	data, err := s.codec.encode(sheet)
	if err != nil {
		return err
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(s.codec.contentType()),
	})
	if err != nil {
		return fmt.Errorf("table: s3 put %s: %w", s.Location(), err)
	}
	s.logger.Debug("table rewritten", "location", s.Location(), "rows", len(sheet.Rows))
	return nil
}
