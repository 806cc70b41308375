// Package reply answers the bot's own popular posts with canned replies.
package reply

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiteletz/BlueskyBot63ar/internal/bluesky"
	"github.com/kiteletz/BlueskyBot63ar/internal/observability/metrics"
	"github.com/kiteletz/BlueskyBot63ar/internal/replyrules"
	"github.com/kiteletz/BlueskyBot63ar/internal/richtext"
)

// Skip reasons, also used as metric labels.
const (
	SkipNotOwn      = "not_own"
	SkipTooOld      = "too_old"
	SkipBadDate     = "bad_date"
	SkipLowLikes    = "low_likes"
	SkipLikesError  = "likes_error"
	SkipReplied     = "already_replied"
	SkipThreadError = "thread_error"
	SkipNoRule      = "no_rule"
)

// API is the part of the Bluesky client used by the reply pass.
type API interface {
	GetAuthorFeed(ctx context.Context, params bluesky.AuthorFeedParams) (*bluesky.AuthorFeed, error)
	GetLikes(ctx context.Context, uri string, limit int, cursor string) (*bluesky.Likes, error)
	GetPostThread(ctx context.Context, uri string) (*bluesky.ThreadViewPost, error)
	CreatePost(ctx context.Context, record bluesky.PostRecord) (*bluesky.StrongRef, error)
}

// Identity is the bot account. Either field matching a reply author counts.
type Identity struct {
	Handle string
	DID    string
}

func (id Identity) matches(author bluesky.ProfileViewBasic) bool {
	return (id.Handle != "" && author.Handle == id.Handle) || (id.DID != "" && author.DID == id.DID)
}

// Options tunes the reply pass.
type Options struct {
	Window        time.Duration
	MinLikes      int
	FeedPageSize  int
	FeedMaxPages  int
	FeedFilter    string
	LikesPageSize int
	DryRun        bool
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = 10 * 24 * time.Hour
	}
	if o.FeedPageSize <= 0 {
		o.FeedPageSize = 100
	}
	if o.FeedMaxPages <= 0 {
		o.FeedMaxPages = 1
	}
	if o.LikesPageSize <= 0 {
		o.LikesPageSize = 20
	}
	return o
}

// Summary counts what a reply pass did.
type Summary struct {
	Candidates int
	Replied    int
	Failed     int
	Skipped    map[string]int
}

// Runner performs one reply pass over the bot's recent posts.
type Runner struct {
	api     API
	rules   replyrules.Rules
	self    Identity
	opts    Options
	metrics *metrics.BotMetrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewRunner(api API, rules replyrules.Rules, self Identity, opts Options, m *metrics.BotMetrics, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		api:     api,
		rules:   rules,
		self:    self,
		opts:    opts.withDefaults(),
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Run fetches recent posts and replies to each one that passes the filters.
// Only a feed fetch failure aborts the pass; per-post failures are logged
// and counted.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	cutoff := r.now().Add(-r.opts.Window)
	posts, err := r.recentPosts(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Candidates: len(posts), Skipped: map[string]int{}}
	r.logger.Info("reply candidates fetched", "posts", len(posts), "since", cutoff.UTC().Format(time.RFC3339))

	for i, post := range posts {
		log := r.logger.With("post", i+1, "uri", post.URI)
		reason, err := r.handle(ctx, log, post, cutoff)
		switch {
		case err != nil:
			summary.Failed++
			r.metrics.ObserveReply("failed")
			log.Error("reply failed", "error", err)
		case reason != "":
			summary.Skipped[reason]++
			r.metrics.ObserveReplySkip(reason)
		default:
			summary.Replied++
		}
	}
	r.logger.Info("reply pass complete",
		"candidates", summary.Candidates, "replied", summary.Replied,
		"failed", summary.Failed, "skipped", summary.Skipped)
	return summary, nil
}

// handle runs the filter pipeline for one post. It returns a skip reason, or
// "" once a reply was sent.
func (r *Runner) handle(ctx context.Context, log *slog.Logger, post bluesky.PostView, cutoff time.Time) (string, error) {
	created, err := post.CreatedAt()
	if err != nil {
		log.Warn("skipping post with unreadable timestamp", "created_at", post.Record.CreatedAt)
		return SkipBadDate, nil
	}
	if created.Before(cutoff) {
		log.Debug("skipping post outside window", "created_at", post.Record.CreatedAt)
		return SkipTooOld, nil
	}

	if r.opts.MinLikes > 0 {
		likes, err := r.countLikes(ctx, post.URI, r.opts.MinLikes)
		if err != nil {
			log.Warn("skipping post, likes unavailable", "error", err)
			return SkipLikesError, nil
		}
		log.Info("post likes", "likes", likes)
		if likes < r.opts.MinLikes {
			log.Info("skipping post with too few likes", "likes", likes, "min_likes", r.opts.MinLikes)
			return SkipLowLikes, nil
		}
	}

	replied, err := r.hasReplied(ctx, post.URI)
	if err != nil {
		log.Warn("skipping post, thread unavailable", "error", err)
		return SkipThreadError, nil
	}
	if replied {
		log.Info("skipping post, already replied", "handle", r.self.Handle)
		return SkipReplied, nil
	}

	key := ExtractKey(post.Record.Text)
	rule, ok := r.rules.Lookup(key)
	if !ok {
		log.Info("no reply rule for post", "key", key)
		return SkipNoRule, nil
	}

	text := richtext.ComposeText(rule.Text, rule.Hashtags)
	reply := bluesky.ThreadedReply{
		Text:   text,
		Facets: richtext.HashtagFacets(text, rule.Hashtags, log),
		Parent: post.Ref(),
		Root:   post.Ref(),
	}
	if r.opts.DryRun {
		log.Info("dry run: would reply", "key", key, "reply", text)
		r.metrics.ObserveReply("dry_run")
		return "", nil
	}
	ref, err := r.api.CreatePost(ctx, reply.Record(r.now()))
	if err != nil {
		return "", fmt.Errorf("reply: publish: %w", err)
	}
	r.metrics.ObserveReply("sent")
	log.Info("replied", "key", key, "reply", text, "reply_uri", ref.URI)
	return "", nil
}

// recentPosts pages through the bot's feed until a page reaches past cutoff,
// the feed ends, or FeedMaxPages pages were read. Reposts and posts by other
// authors are dropped.
func (r *Runner) recentPosts(ctx context.Context, cutoff time.Time) ([]bluesky.PostView, error) {
	var (
		posts  []bluesky.PostView
		cursor string
	)
	for page := 0; page < r.opts.FeedMaxPages; page++ {
		feed, err := r.api.GetAuthorFeed(ctx, bluesky.AuthorFeedParams{
			Actor:  r.self.Handle,
			Limit:  r.opts.FeedPageSize,
			Cursor: cursor,
			Filter: r.opts.FeedFilter,
		})
		if err != nil {
			return nil, fmt.Errorf("reply: fetch feed: %w", err)
		}
		reachedCutoff := false
		for _, item := range feed.Feed {
			if len(item.Reason) > 0 || !r.self.matches(item.Post.Author) {
				r.metrics.ObserveReplySkip(SkipNotOwn)
				continue
			}
			posts = append(posts, item.Post)
			if created, err := item.Post.CreatedAt(); err == nil && created.Before(cutoff) {
				reachedCutoff = true
			}
		}
		if reachedCutoff || feed.Cursor == "" {
			break
		}
		cursor = feed.Cursor
	}
	return posts, nil
}

// countLikes counts likes on uri, stopping once atLeast is reached.
func (r *Runner) countLikes(ctx context.Context, uri string, atLeast int) (int, error) {
	count := 0
	cursor := ""
	for {
		page, err := r.api.GetLikes(ctx, uri, r.opts.LikesPageSize, cursor)
		if err != nil {
			return count, err
		}
		count += len(page.Likes)
		if count >= atLeast || page.Cursor == "" || len(page.Likes) == 0 {
			return count, nil
		}
		cursor = page.Cursor
	}
}

// hasReplied reports whether the bot already has a direct reply under uri.
func (r *Runner) hasReplied(ctx context.Context, uri string) (bool, error) {
	thread, err := r.api.GetPostThread(ctx, uri)
	if err != nil {
		return false, err
	}
	for _, reply := range thread.Replies {
		if reply.Post != nil && r.self.matches(reply.Post.Author) {
			return true, nil
		}
	}
	return false, nil
}
