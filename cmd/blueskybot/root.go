package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kiteletz/BlueskyBot63ar/cmd/mainconfig"
	"github.com/kiteletz/BlueskyBot63ar/internal/bluesky"
	"github.com/kiteletz/BlueskyBot63ar/internal/bot"
	appconfig "github.com/kiteletz/BlueskyBot63ar/internal/config"
	"github.com/kiteletz/BlueskyBot63ar/internal/observability/metrics"
	"github.com/kiteletz/BlueskyBot63ar/internal/posting"
	"github.com/kiteletz/BlueskyBot63ar/internal/queue"
	"github.com/kiteletz/BlueskyBot63ar/internal/reply"
	"github.com/kiteletz/BlueskyBot63ar/pkg/logging"
)

type options struct {
	envFile     string
	logLevel    string
	queueSource string
	replySource string
	dryRun      bool
}

// botFactory builds the bot for a command; tests replace it.
type botFactory func(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, m *metrics.BotMetrics, dryRun bool) (runner, error)

// runner is what the commands need from *bot.Bot.
type runner interface {
	Login(ctx context.Context) error
	Post(ctx context.Context) (*posting.Result, error)
	Reply(ctx context.Context) (*reply.Summary, error)
	WhoAmI(ctx context.Context) (*bluesky.Profile, error)
	PushMetrics(ctx context.Context, task string)
}

func defaultFactory(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, m *metrics.BotMetrics, dryRun bool) (runner, error) {
	b, err := mainconfig.NewBot(ctx, cfg, logger.Logger, m)
	if err != nil {
		return nil, err
	}
	return b.WithDryRun(dryRun), nil
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(defaultFactory)
}

func newRootCmdWith(factory botFactory) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "blueskybot",
		Short:         "Posts queued content to Bluesky and answers popular posts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&opts.queueSource, "queue", "", "post queue location (overrides QUEUE_SOURCE)")
	root.PersistentFlags().StringVar(&opts.replySource, "replies", "", "reply table location (overrides REPLY_SOURCE)")
	root.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "log what would be posted without publishing or editing tables")

	root.AddCommand(newPostCmd(opts, factory))
	root.AddCommand(newReplyCmd(opts, factory))
	root.AddCommand(newWhoAmICmd(opts, factory))
	return root
}

// session is one command invocation: config, a run-scoped logger and the bot.
type session struct {
	cfg    *appconfig.Config
	logger *logging.Logger
	bot    runner
}

func start(ctx context.Context, opts *options, factory botFactory, task string) (*session, error) {
	if opts.envFile != "" {
		// A missing .env is normal in deployed environments.
		_ = godotenv.Load(opts.envFile)
	}
	cfg := appconfig.Load()
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.queueSource != "" {
		cfg.QueueSource = opts.queueSource
	}
	if opts.replySource != "" {
		cfg.ReplySource = opts.replySource
	}

	logger := logging.NewWithFile(cfg.LogLevel, cfg.LogFile).With("run_id", uuid.NewString(), "task", task)
	if !cfg.HasCredentials() {
		logger.Error("BLUESKY_HANDLE and BLUESKY_PAT must be set")
		logger.Close()
		return nil, fmt.Errorf("%w: missing Bluesky credentials", bot.ErrConfig)
	}

	b, err := factory(ctx, cfg, logger, metrics.NewBotMetrics(), opts.dryRun)
	if err != nil {
		logger.Error("failed to initialise bot", "error", err)
		logger.Close()
		return nil, err
	}
	if err := b.Login(ctx); err != nil {
		logger.Error("login failed", "error", err)
		logger.Close()
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, bot: b}, nil
}

func (s *session) finish(ctx context.Context, task string) {
	s.bot.PushMetrics(ctx, task)
	s.logger.Close()
}

// outcome maps a task error to the process result: fatal errors fail the
// command, anything else has already been logged and exits cleanly.
func (s *session) outcome(err error) error {
	if err == nil {
		return nil
	}
	if bot.IsFatal(err) {
		return err
	}
	if errors.Is(err, queue.ErrEmpty) {
		s.logger.Info("post queue is empty, nothing to do")
		return nil
	}
	s.logger.Error("run finished with errors", "error", err)
	return nil
}

func newPostCmd(opts *options, factory botFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "post",
		Short: "Publish the next queued post and remove it from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := start(ctx, opts, factory, "post")
			if err != nil {
				return err
			}
			defer s.finish(ctx, "post")

			result, err := s.bot.Post(ctx)
			if err == nil {
				if result.DryRun {
					fmt.Fprintf(cmd.OutOrStdout(), "dry run: %s\n", result.Entry.Text)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "posted %s\n", result.Post.URI)
				}
			}
			return s.outcome(err)
		},
	}
}

func newReplyCmd(opts *options, factory botFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "reply",
		Short: "Reply to recent posts that earned likes and match a reply rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := start(ctx, opts, factory, "reply")
			if err != nil {
				return err
			}
			defer s.finish(ctx, "reply")

			summary, err := s.bot.Reply(ctx)
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "checked %d posts, replied %d, failed %d\n",
					summary.Candidates, summary.Replied, summary.Failed)
			}
			return s.outcome(err)
		},
	}
}

func newWhoAmICmd(opts *options, factory botFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Log in and print the account profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := start(ctx, opts, factory, "whoami")
			if err != nil {
				return err
			}
			defer s.logger.Close()

			p, err := s.bot.WhoAmI(ctx)
			if err != nil {
				return s.outcome(err)
			}
			name := strings.TrimSpace(p.DisplayName)
			if name == "" {
				name = p.Handle
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (@%s)\n", name, p.Handle)
			return nil
		},
	}
}
