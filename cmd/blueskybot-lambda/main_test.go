package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiteletz/BlueskyBot63ar/internal/bluesky"
	"github.com/kiteletz/BlueskyBot63ar/internal/bot"
	appconfig "github.com/kiteletz/BlueskyBot63ar/internal/config"
	"github.com/kiteletz/BlueskyBot63ar/internal/posting"
	"github.com/kiteletz/BlueskyBot63ar/internal/queue"
	"github.com/kiteletz/BlueskyBot63ar/internal/reply"
	"github.com/kiteletz/BlueskyBot63ar/pkg/logging"
)

type fakeRunner struct {
	loginErr error
	postErr  error
	dryRun   bool
	posts    int
	replies  int
	pushed   []string
}

func (f *fakeRunner) Login(context.Context) error { return f.loginErr }

func (f *fakeRunner) Post(context.Context) (*posting.Result, error) {
	f.posts++
	if f.postErr != nil {
		return nil, f.postErr
	}
	return &posting.Result{Post: &bluesky.StrongRef{URI: "at://post/1"}}, nil
}

func (f *fakeRunner) Reply(context.Context) (*reply.Summary, error) {
	f.replies++
	return &reply.Summary{Replied: 3}, nil
}

func (f *fakeRunner) PushMetrics(_ context.Context, task string) { f.pushed = append(f.pushed, task) }

func testConfig() *appconfig.Config {
	return &appconfig.Config{LogLevel: "error", BlueskyHandle: "bot.bsky.social", BlueskyPAT: "app-pass"}
}

func factoryFor(fake *fakeRunner) factory {
	return func(_ context.Context, _ *appconfig.Config, _ *logging.Logger, dryRun bool) (runner, error) {
		fake.dryRun = dryRun
		return fake, nil
	}
}

func TestParseInvocation(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want invocation
	}{
		{name: "empty defaults to post", raw: ``, want: invocation{Task: "post"}},
		{name: "constant input", raw: `{"task":"Reply","dry_run":true}`, want: invocation{Task: "reply", DryRun: true}},
		{name: "eventbridge detail", raw: `{"detail-type":"Scheduled Event","source":"aws.events","detail":{"task":"reply"}}`, want: invocation{Task: "reply"}},
		{name: "scheduled event without detail", raw: `{"detail-type":"Scheduled Event","detail":{}}`, want: invocation{Task: "post"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseInvocation(json.RawMessage(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHandlePost(t *testing.T) {
	fake := &fakeRunner{}
	resp, err := handle(context.Background(), testConfig(), factoryFor(fake), json.RawMessage(`{"task":"post"}`))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "at://post/1", resp.PostURI)
	assert.Equal(t, []string{"post"}, fake.pushed)
}

func TestHandleReplyDryRun(t *testing.T) {
	fake := &fakeRunner{}
	resp, err := handle(context.Background(), testConfig(), factoryFor(fake), json.RawMessage(`{"task":"reply","dry_run":true}`))
	require.NoError(t, err)
	assert.True(t, fake.dryRun)
	assert.Equal(t, 1, fake.replies)
	assert.Equal(t, "dry_run", resp.Status)
	assert.Equal(t, 3, resp.Replied)
}

func TestHandleEmptyQueue(t *testing.T) {
	fake := &fakeRunner{postErr: queue.ErrEmpty}
	resp, err := handle(context.Background(), testConfig(), factoryFor(fake), nil)
	require.NoError(t, err)
	assert.Equal(t, "empty", resp.Status)
}

func TestHandleNonFatalFailure(t *testing.T) {
	fake := &fakeRunner{postErr: fmt.Errorf("%w: 503", posting.ErrPublish)}
	resp, err := handle(context.Background(), testConfig(), factoryFor(fake), nil)
	require.NoError(t, err)
	assert.Equal(t, "degraded", resp.Status)
}

func TestHandleFatalFailures(t *testing.T) {
	_, err := handle(context.Background(), testConfig(), factoryFor(&fakeRunner{loginErr: bluesky.ErrAuth}), nil)
	assert.ErrorIs(t, err, bluesky.ErrAuth)

	_, err = handle(context.Background(), testConfig(), factoryFor(&fakeRunner{}), json.RawMessage(`{"task":"delete"}`))
	assert.ErrorIs(t, err, bot.ErrConfig)

	cfg := testConfig()
	cfg.BlueskyPAT = ""
	fake := &fakeRunner{}
	_, err = handle(context.Background(), cfg, factoryFor(fake), nil)
	assert.ErrorIs(t, err, bluesky.ErrMissingCredentials)
	assert.Zero(t, fake.posts)
}

func TestHandleFactoryError(t *testing.T) {
	build := func(context.Context, *appconfig.Config, *logging.Logger, bool) (runner, error) {
		return nil, errors.New("aws unavailable")
	}
	resp, err := handle(context.Background(), testConfig(), build, nil)
	assert.Error(t, err)
	assert.Equal(t, "error", resp.Status)
}
