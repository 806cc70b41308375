package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"

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

// invocation selects the task. EventBridge schedules either send it as the
// constant input or wrap it in the event detail.
type invocation struct {
	Task   string `json:"task"`
	DryRun bool   `json:"dry_run"`
}

// response is returned to the caller and shows up in the Lambda console.
type response struct {
	Task    string `json:"task"`
	Status  string `json:"status"`
	PostURI string `json:"post_uri,omitempty"`
	Replied int    `json:"replied,omitempty"`
	Error   string `json:"error,omitempty"`
}

type runner interface {
	Login(ctx context.Context) error
	Post(ctx context.Context) (*posting.Result, error)
	Reply(ctx context.Context) (*reply.Summary, error)
	PushMetrics(ctx context.Context, task string)
}

type factory func(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, dryRun bool) (runner, error)

func main() {
	cfg := appconfig.Load()
	lambda.Start(func(ctx context.Context, raw json.RawMessage) (response, error) {
		return handle(ctx, cfg, newRunner, raw)
	})
}

func newRunner(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, dryRun bool) (runner, error) {
	b, err := mainconfig.NewBot(ctx, cfg, logger.Logger, metrics.NewBotMetrics())
	if err != nil {
		return nil, err
	}
	return b.WithDryRun(dryRun), nil
}

func parseInvocation(raw json.RawMessage) (invocation, error) {
	var inv invocation
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &inv); err != nil {
			return invocation{}, fmt.Errorf("decode event: %w", err)
		}
	}
	if inv.Task == "" && len(raw) > 0 {
		var evt events.CloudWatchEvent
		if err := json.Unmarshal(raw, &evt); err == nil && len(evt.Detail) > 0 {
			if err := json.Unmarshal(evt.Detail, &inv); err != nil {
				return invocation{}, fmt.Errorf("decode event detail: %w", err)
			}
		}
	}
	inv.Task = strings.ToLower(strings.TrimSpace(inv.Task))
	if inv.Task == "" {
		inv.Task = "post"
	}
	return inv, nil
}

// handle runs one task. Only credential and configuration failures are
// returned as errors, so the scheduler's retries are not spent on an empty
// queue or a flaky upstream.
func handle(ctx context.Context, cfg *appconfig.Config, build factory, raw json.RawMessage) (response, error) {
	inv, err := parseInvocation(raw)
	if err != nil {
		return response{Status: "error", Error: err.Error()}, err
	}
	resp := response{Task: inv.Task}

	// stdout only: Lambda ships it to CloudWatch and the filesystem is read-only.
	logger := logging.New(cfg.LogLevel).With("run_id", uuid.NewString(), "task", inv.Task)
	if inv.Task != "post" && inv.Task != "reply" {
		err := fmt.Errorf("%w: unknown task %q", bot.ErrConfig, inv.Task)
		logger.Error("rejecting invocation", "error", err)
		resp.Status, resp.Error = "error", err.Error()
		return resp, err
	}
	if !cfg.HasCredentials() {
		err := bluesky.ErrMissingCredentials
		logger.Error("BLUESKY_HANDLE and BLUESKY_PAT must be set")
		resp.Status, resp.Error = "error", err.Error()
		return resp, err
	}

	b, err := build(ctx, cfg, logger, inv.DryRun)
	if err == nil {
		err = b.Login(ctx)
	}
	if err != nil {
		logger.Error("bot unavailable", "error", err)
		resp.Status, resp.Error = "error", err.Error()
		return resp, err
	}
	defer b.PushMetrics(ctx, inv.Task)

	switch inv.Task {
	case "post":
		var result *posting.Result
		result, err = b.Post(ctx)
		if result != nil && result.Post != nil {
			resp.PostURI = result.Post.URI
		}
	case "reply":
		var summary *reply.Summary
		summary, err = b.Reply(ctx)
		if summary != nil {
			resp.Replied = summary.Replied
		}
	}

	switch {
	case err == nil:
		resp.Status = "ok"
		if inv.DryRun {
			resp.Status = "dry_run"
		}
		return resp, nil
	case errors.Is(err, queue.ErrEmpty):
		logger.Info("post queue is empty, nothing to do")
		resp.Status = "empty"
		return resp, nil
	case bot.IsFatal(err):
		logger.Error("task failed", "error", err)
		resp.Status, resp.Error = "error", err.Error()
		return resp, err
	default:
		logger.Error("task finished with errors", "error", err)
		resp.Status, resp.Error = "degraded", err.Error()
		return resp, nil
	}
}
