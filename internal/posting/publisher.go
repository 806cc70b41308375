// Package posting publishes queued entries to Bluesky.
package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiteletz/BlueskyBot63ar/internal/bluesky"
	"github.com/kiteletz/BlueskyBot63ar/internal/media"
	"github.com/kiteletz/BlueskyBot63ar/internal/observability/metrics"
	"github.com/kiteletz/BlueskyBot63ar/internal/queue"
	"github.com/kiteletz/BlueskyBot63ar/internal/richtext"
)

var (
	// ErrPublish marks a failed remote publish; the entry stays queued.
	ErrPublish = errors.New("posting: publish failed")
	// ErrPersist marks a publish whose queue removal could not be saved.
	ErrPersist = errors.New("posting: published but queue not updated")
)

// API is the part of the Bluesky client used for publishing.
type API interface {
	UploadBlob(ctx context.Context, data []byte, mimeType string) (*bluesky.Blob, error)
	CreatePost(ctx context.Context, record bluesky.PostRecord) (*bluesky.StrongRef, error)
}

// ImageResolver loads an image reference.
type ImageResolver interface {
	Resolve(ctx context.Context, ref string) (*media.Image, error)
}

// Publisher turns text, hashtags and image references into a post.
type Publisher struct {
	api     API
	images  ImageResolver
	metrics *metrics.BotMetrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewPublisher(api API, images ImageResolver, m *metrics.BotMetrics, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{api: api, images: images, metrics: m, logger: logger, now: time.Now}
}

// Compose builds the annotated post text and facets without publishing.
func Compose(text string, hashtags []string, logger *slog.Logger) bluesky.AnnotatedPost {
	full := richtext.ComposeText(text, hashtags)
	return bluesky.AnnotatedPost{
		Text:   full,
		Facets: richtext.HashtagFacets(full, hashtags, logger),
	}
}

// Publish posts text with hashtag facets and up to queue.MaxImages images.
// Images that cannot be resolved are skipped; if none resolve the post goes
// out as plain text. Any failure talking to Bluesky returns ErrPublish.
func (p *Publisher) Publish(ctx context.Context, text string, hashtags, imageRefs []string) (*bluesky.StrongRef, error) {
	post := Compose(text, hashtags, p.logger)
	p.logger.Info("composed post", "text", post.Text, "facets", len(post.Facets))

	if len(imageRefs) > queue.MaxImages {
		imageRefs = imageRefs[:queue.MaxImages]
	}
	for _, ref := range imageRefs {
		img, err := p.images.Resolve(ctx, ref)
		if err != nil {
			p.logger.Warn("skipping image", "ref", ref, "error", err)
			p.metrics.ObserveImageSkipped()
			continue
		}
		blob, err := p.api.UploadBlob(ctx, img.Data, img.MimeType)
		if err != nil {
			return nil, fmt.Errorf("%w: upload %s: %w", ErrPublish, ref, err)
		}
		post.Images = append(post.Images, *blob)
	}
	if len(imageRefs) > 0 && len(post.Images) == 0 {
		p.logger.Warn("no images resolved, posting text only", "requested", len(imageRefs))
	}

	ref, err := p.api.CreatePost(ctx, post.Record(p.now()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublish, err)
	}
	p.logger.Info("posted", "uri", ref.URI, "images", len(post.Images), "text", truncate(post.Text, 50))
	return ref, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
