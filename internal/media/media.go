// Package media loads images referenced by queue entries from the local
// filesystem or S3.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MaxImageBytes is the largest blob the Bluesky PDS accepts for post images.
const MaxImageBytes = 1_000_000

var (
	// ErrNotFound is returned when the referenced image does not exist.
	ErrNotFound = errors.New("media: image not found")
	// ErrTooLarge is returned for images over MaxImageBytes.
	ErrTooLarge = errors.New("media: image too large")
	// ErrNotImage is returned when the content is not a recognised image type.
	ErrNotImage = errors.New("media: not an image")
)

// Image is a resolved image ready for upload.
type Image struct {
	Ref      string
	Data     []byte
	MimeType string
}

// S3API is the subset of the S3 client used to fetch images.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Resolver loads image references. Plain paths are read from disk relative to
// BaseDir; s3://bucket/key references need S3.
type Resolver struct {
	BaseDir string
	S3      S3API
}

// Resolve loads and validates the image at ref.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Image, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrNotFound)
	}
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(ref, "s3://") {
		data, err = r.readS3(ctx, ref)
	} else {
		data, err = r.readFile(ref)
	}
	if err != nil {
		return nil, err
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, ref, len(data))
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: %s detected as %s", ErrNotImage, ref, mimeType)
	}
	return &Image{Ref: ref, Data: data, MimeType: mimeType}, nil
}

func (r *Resolver) readFile(ref string) ([]byte, error) {
	p := ref
	if r.BaseDir != "" && !filepath.IsAbs(p) {
		p = filepath.Join(r.BaseDir, p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("media: read %s: %w", p, err)
	}
	return data, nil
}

func (r *Resolver) readS3(ctx context.Context, ref string) ([]byte, error) {
	if r.S3 == nil {
		return nil, fmt.Errorf("media: %s needs an S3 client", ref)
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(ref, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("media: malformed s3 reference %q", ref)
	}
	resp, err := r.S3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("media: s3 get %s: %w", ref, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("media: s3 read %s: %w", ref, err)
	}
	return data, nil
}
