// Package observability provides metrics and tracing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AssistantOutcomes counts assistant answers by source (blocked, canned, generated, fallback).
	AssistantOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tdh_assistant_answers_total",
		Help: "Total number of assistant answers by source",
	}, []string{"source"})

	// AssistantLatency records the duration of generator calls.
	AssistantLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tdh_assistant_generation_seconds",
		Help:    "Latency of upstream text generation calls in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
	})

	// LikeToggles counts like toggles by resulting state.
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tdh_like_toggles_total",
		Help: "Total number of like toggles by resulting state",
	}, []string{"state"})

	// AccountTransitions counts moderation decisions by target status.
	AccountTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tdh_account_transitions_total",
		Help: "Total number of account status transitions",
	}, []string{"target"})

	// ModerationDenials counts requests stopped by the moderation gate.
	ModerationDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tdh_moderation_denials_total",
		Help: "Total number of requests denied by the moderation gate",
	}, []string{"reason"})

	// WebSocketBackpressureDrops counts realtime messages dropped because a client buffer was full.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tdh_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// MediaOperations counts media store operations by backend, operation and result.
	MediaOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tdh_media_operations_total",
		Help: "Total number of media store operations",
	}, []string{"backend", "operation", "result"})
)
