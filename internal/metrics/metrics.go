package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Workflow metrics
	TurnsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_turns_started_total",
			Help: "Total number of conversation turns started",
		},
	)

	TurnsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_turns_completed_total",
			Help: "Total number of conversation turns completed",
		},
		[]string{"outcome"},
	)

	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_turn_duration_seconds",
			Help:    "Conversation turn duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_node_duration_seconds",
			Help:    "Workflow node execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	NodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_node_errors_total",
			Help: "Total node-boundary failures recorded in workflow state",
		},
		[]string{"step", "error_type"},
	)

	// Reasoning capability metrics
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_llm_calls_total",
			Help: "Total reasoning capability calls",
		},
		[]string{"step", "status"},
	)

	// Checkpoint store metrics
	CheckpointHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_checkpoint_hits_total",
			Help: "Checkpoint lookups that found a prior conversation",
		},
	)

	CheckpointMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_checkpoint_misses_total",
			Help: "Checkpoint lookups that found nothing",
		},
	)

	CheckpointEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_checkpoint_evictions_total",
			Help: "Checkpoints dropped by TTL or size-cap eviction",
		},
	)

	CheckpointStoreSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_checkpoint_store_size",
			Help: "Number of live checkpoints in the in-memory store",
		},
	)

	// Conflict metrics
	ConflictsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_conflicts_detected_total",
			Help: "Conflicts detected per type",
		},
		[]string{"type"},
	)
)
