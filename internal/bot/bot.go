// Package bot wires the post and reply passes to their stores and the
// Bluesky client. The CLI and the Lambda both drive it.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kiteletz/BlueskyBot63ar/internal/bluesky"
	"github.com/kiteletz/BlueskyBot63ar/internal/config"
	"github.com/kiteletz/BlueskyBot63ar/internal/media"
	"github.com/kiteletz/BlueskyBot63ar/internal/observability/metrics"
	"github.com/kiteletz/BlueskyBot63ar/internal/posting"
	"github.com/kiteletz/BlueskyBot63ar/internal/queue"
	"github.com/kiteletz/BlueskyBot63ar/internal/reply"
	"github.com/kiteletz/BlueskyBot63ar/internal/replyrules"
	"github.com/kiteletz/BlueskyBot63ar/internal/table"
)

// ErrConfig marks configuration problems that no retry will fix.
var ErrConfig = errors.New("bot: invalid configuration")

// Client is the Bluesky surface the bot needs.
type Client interface {
	posting.API
	reply.API
	Login(ctx context.Context) (*bluesky.Session, error)
	GetProfile(ctx context.Context, actor string) (*bluesky.Profile, error)
	Handle() string
	Session() *bluesky.Session
}

// S3API covers both table and image access.
type S3API interface {
	table.S3API
	media.S3API
}

// Deps are the collaborators built by the entry points.
type Deps struct {
	Config  *config.Config
	Client  Client
	S3      S3API
	Sheets  table.SheetsAPI
	Metrics *metrics.BotMetrics
	Logger  *slog.Logger
}

// Bot runs one task per invocation.
type Bot struct {
	cfg     *config.Config
	client  Client
	tables  table.Options
	images  *media.Resolver
	metrics *metrics.BotMetrics
	logger  *slog.Logger
	dryRun  bool
}

func New(deps Deps) (*Bot, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("%w: config required", ErrConfig)
	}
	if deps.Client == nil {
		return nil, fmt.Errorf("%w: bluesky client required", ErrConfig)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{
		cfg:     deps.Config,
		client:  deps.Client,
		tables:  table.Options{S3: deps.S3, Sheets: deps.Sheets, Logger: logger},
		images:  &media.Resolver{S3: deps.S3},
		metrics: deps.Metrics,
		logger:  logger,
	}
	return b, nil
}

// WithDryRun makes the passes log instead of publishing.
func (b *Bot) WithDryRun(dryRun bool) *Bot {
	b.dryRun = dryRun
	return b
}

// Login opens the Bluesky session. Failures wrap bluesky.ErrAuth.
func (b *Bot) Login(ctx context.Context) error {
	session, err := b.client.Login(ctx)
	if err != nil {
		return err
	}
	b.logger.Info("logged in", "handle", session.Handle, "did", session.DID)
	return nil
}

// Post publishes the first queued entry and removes it from the queue.
func (b *Bot) Post(ctx context.Context) (*posting.Result, error) {
	store, err := table.Open(b.cfg.QueueSource, b.tables)
	if err != nil {
		return nil, fmt.Errorf("%w: queue: %w", ErrConfig, err)
	}
	q := queue.New(store, nil, b.logger)
	publisher := posting.NewPublisher(b.client, b.images, b.metrics, b.logger)
	return posting.NewRunner(q, publisher, b.metrics, b.logger).WithDryRun(b.dryRun).Run(ctx)
}

// Reply answers the bot's recent qualifying posts.
func (b *Bot) Reply(ctx context.Context) (*reply.Summary, error) {
	store, err := table.Open(b.cfg.ReplySource, b.tables)
	if err != nil {
		return nil, fmt.Errorf("%w: reply table: %w", ErrConfig, err)
	}
	rules, err := replyrules.Load(ctx, store, b.logger)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		b.logger.Info("no reply rules, skipping reply pass", "location", store.Location())
		return &reply.Summary{Skipped: map[string]int{}}, nil
	}

	self := reply.Identity{Handle: b.client.Handle()}
	if session := b.client.Session(); session != nil {
		self.Handle = session.Handle
		self.DID = session.DID
	}
	runner := reply.NewRunner(b.client, rules, self, reply.Options{
		Window:        b.cfg.ReplyWindow,
		MinLikes:      b.cfg.ReplyMinLikes,
		FeedPageSize:  b.cfg.FeedPageSize,
		FeedMaxPages:  b.cfg.FeedMaxPages,
		FeedFilter:    b.cfg.FeedFilter,
		LikesPageSize: b.cfg.LikesPageSize,
		DryRun:        b.dryRun,
	}, b.metrics, b.logger)
	return runner.Run(ctx)
}

// WhoAmI returns the profile of the logged-in account.
func (b *Bot) WhoAmI(ctx context.Context) (*bluesky.Profile, error) {
	actor := b.client.Handle()
	if session := b.client.Session(); session != nil && session.DID != "" {
		actor = session.DID
	}
	return b.client.GetProfile(ctx, actor)
}

// PushMetrics sends the run's counters to the configured Pushgateway, if any.
func (b *Bot) PushMetrics(ctx context.Context, task string) {
	if b.cfg.MetricsPushgatewayURL == "" || b.metrics == nil {
		return
	}
	if err := b.metrics.Push(ctx, b.cfg.MetricsPushgatewayURL, b.cfg.MetricsJob, task); err != nil {
		b.logger.Warn("failed to push metrics", "task", task, "error", err)
	}
}

// IsFatal reports whether err should fail the process: bad credentials or
// configuration. Everything else is logged and the run ends normally so the
// scheduler keeps going.
func IsFatal(err error) bool {
	return errors.Is(err, bluesky.ErrMissingCredentials) ||
		errors.Is(err, bluesky.ErrAuth) ||
		errors.Is(err, ErrConfig)
}
