package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBotMetricsObserve(t *testing.T) {
	m := NewBotMetrics()
	m.ObservePost("published")
	m.ObservePost("published")
	m.ObserveReply("failed")
	m.ObserveReplySkip("low_likes")
	m.ObserveImageSkipped()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.postsTotal.WithLabelValues("published")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.repliesTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replySkips.WithLabelValues("low_likes")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.imagesSkipped))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := map[string]dto.MetricType{}
	for _, mf := range families {
		names[mf.GetName()] = mf.GetType()
	}
	assert.Equal(t, dto.MetricType_COUNTER, names["blueskybot_posts_total"])
	assert.Contains(t, names, "blueskybot_images_skipped_total")
}

func TestBotMetricsNilSafe(t *testing.T) {
	var m *BotMetrics
	m.ObservePost("published")
	m.ObserveReply("sent")
	m.ObserveReplySkip("no_rule")
	m.ObserveImageSkipped()
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.Push(context.Background(), "http://unused", "job", "post"))
}

func TestBotMetricsPush(t *testing.T) {
	var gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := NewBotMetrics()
	m.ObservePost("published")
	require.NoError(t, m.Push(context.Background(), server.URL, "blueskybot", "post"))
	assert.Equal(t, "/metrics/job/blueskybot/task/post", gotPath)
	assert.NotEmpty(t, gotBody)

	assert.NoError(t, m.Push(context.Background(), "", "blueskybot", "post"))
}

func TestBotMetricsPushFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := NewBotMetrics().Push(context.Background(), server.URL, "blueskybot", "reply")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "metrics: push"))
}
