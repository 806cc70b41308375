package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiteletz/BlueskyBot63ar/internal/bluesky"
	"github.com/kiteletz/BlueskyBot63ar/internal/bot"
	appconfig "github.com/kiteletz/BlueskyBot63ar/internal/config"
	"github.com/kiteletz/BlueskyBot63ar/internal/observability/metrics"
	"github.com/kiteletz/BlueskyBot63ar/internal/posting"
	"github.com/kiteletz/BlueskyBot63ar/internal/queue"
	"github.com/kiteletz/BlueskyBot63ar/internal/reply"
	"github.com/kiteletz/BlueskyBot63ar/pkg/logging"
)

type fakeRunner struct {
	loginErr error
	postErr  error
	replyErr error
	dryRun   bool
	pushed   []string
	cfg      *appconfig.Config
}

func (f *fakeRunner) Login(context.Context) error { return f.loginErr }

func (f *fakeRunner) Post(context.Context) (*posting.Result, error) {
	if f.postErr != nil {
		return nil, f.postErr
	}
	result := &posting.Result{Entry: queue.Entry{Text: "hello"}, DryRun: f.dryRun}
	if !f.dryRun {
		result.Post = &bluesky.StrongRef{URI: "at://did:plc:bot/app.bsky.feed.post/1"}
	}
	return result, nil
}

func (f *fakeRunner) Reply(context.Context) (*reply.Summary, error) {
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	return &reply.Summary{Candidates: 4, Replied: 2, Failed: 1}, nil
}

func (f *fakeRunner) WhoAmI(context.Context) (*bluesky.Profile, error) {
	return &bluesky.Profile{Handle: "bot.bsky.social", DisplayName: "Bot"}, nil
}

func (f *fakeRunner) PushMetrics(_ context.Context, task string) {
	f.pushed = append(f.pushed, task)
}

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BLUESKY_HANDLE", "bot.bsky.social")
	t.Setenv("BLUESKY_PAT", "app-pass")
	t.Setenv("LOG_FILE", filepath.Join(t.TempDir(), "bot.log"))
}

func execute(t *testing.T, fake *fakeRunner, args ...string) (string, error) {
	t.Helper()
	factory := func(_ context.Context, cfg *appconfig.Config, _ *logging.Logger, _ *metrics.BotMetrics, dryRun bool) (runner, error) {
		fake.dryRun = dryRun
		fake.cfg = cfg
		return fake, nil
	}
	cmd := newRootCmdWith(factory)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestPostCommand(t *testing.T) {
	setupEnv(t)
	fake := &fakeRunner{}

	out, err := execute(t, fake, "post", "--queue", "queue.csv")
	require.NoError(t, err)
	assert.Contains(t, out, "posted at://did:plc:bot/app.bsky.feed.post/1")
	assert.Equal(t, "queue.csv", fake.cfg.QueueSource)
	assert.Equal(t, []string{"post"}, fake.pushed)
}

func TestPostCommandDryRun(t *testing.T) {
	setupEnv(t)
	fake := &fakeRunner{}

	out, err := execute(t, fake, "post", "--dry-run")
	require.NoError(t, err)
	assert.True(t, fake.dryRun)
	assert.Contains(t, out, "dry run: hello")
}

func TestPostCommandEmptyQueueExitsCleanly(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, &fakeRunner{postErr: queue.ErrEmpty}, "post")
	assert.NoError(t, err)
}

func TestPostCommandPublishErrorIsLoggedNotFatal(t *testing.T) {
	setupEnv(t)
	fake := &fakeRunner{postErr: fmt.Errorf("%w: 502", posting.ErrPublish)}
	_, err := execute(t, fake, "post")
	assert.NoError(t, err)
	assert.Equal(t, []string{"post"}, fake.pushed)
}

func TestLoginFailureFailsCommand(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, &fakeRunner{loginErr: fmt.Errorf("%w: bad password", bluesky.ErrAuth)}, "reply")
	assert.ErrorIs(t, err, bluesky.ErrAuth)
}

func TestMissingCredentialsFailsCommand(t *testing.T) {
	setupEnv(t)
	t.Setenv("BLUESKY_PAT", "")
	_, err := execute(t, &fakeRunner{}, "post")
	assert.ErrorIs(t, err, bot.ErrConfig)
}

func TestReplyCommand(t *testing.T) {
	setupEnv(t)
	out, err := execute(t, &fakeRunner{}, "reply", "--replies", "gsheet://abc/replies")
	require.NoError(t, err)
	assert.Contains(t, out, "checked 4 posts, replied 2, failed 1")
}

func TestReplyCommandFeedErrorNotFatal(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, &fakeRunner{replyErr: errors.New("feed down")}, "reply")
	assert.NoError(t, err)
}

func TestWhoAmICommand(t *testing.T) {
	setupEnv(t)
	out, err := execute(t, &fakeRunner{}, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Bot (@bot.bsky.social)\n", out)
}
