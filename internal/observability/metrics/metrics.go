package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// BotMetrics exposes counters for the post and reply passes. A run is short
// lived, so the values are pushed to a Pushgateway once at exit rather than
// scraped.
type BotMetrics struct {
	registry      *prometheus.Registry
	postsTotal    *prometheus.CounterVec
	repliesTotal  *prometheus.CounterVec
	replySkips    *prometheus.CounterVec
	imagesSkipped prometheus.Counter
}

func NewBotMetrics() *BotMetrics {
	m := &BotMetrics{
		registry: prometheus.NewRegistry(),
		postsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blueskybot",
			Name:      "posts_total",
			Help:      "Queued posts processed, by outcome",
		}, []string{"status"}),
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blueskybot",
			Name:      "replies_total",
			Help:      "Replies attempted, by outcome",
		}, []string{"status"}),
		replySkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blueskybot",
			Name:      "reply_skips_total",
			Help:      "Candidate posts skipped by the reply pass, by reason",
		}, []string{"reason"}),
		imagesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blueskybot",
			Name:      "images_skipped_total",
			Help:      "Queued images that could not be resolved or uploaded",
		}),
	}
	m.registry.MustRegister(m.postsTotal, m.repliesTotal, m.replySkips, m.imagesSkipped)
	return m
}

// Registry returns the registry holding the bot's collectors.
func (m *BotMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *BotMetrics) ObservePost(status string) {
	if m == nil {
		return
	}
	m.postsTotal.WithLabelValues(status).Inc()
}

func (m *BotMetrics) ObserveReply(status string) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(status).Inc()
}

func (m *BotMetrics) ObserveReplySkip(reason string) {
	if m == nil {
		return
	}
	m.replySkips.WithLabelValues(reason).Inc()
}

func (m *BotMetrics) ObserveImageSkipped() {
	if m == nil {
		return
	}
	m.imagesSkipped.Inc()
}

// Push sends the current values to the Pushgateway at url under job, grouped
// by task. An empty url is a no-op.
func (m *BotMetrics) Push(ctx context.Context, url, job, task string) error {
	if m == nil || url == "" {
		return nil
	}
	pusher := push.New(url, job).
		Gatherer(m.registry).
		Grouping("task", task)
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", url, err)
	}
	return nil
}
