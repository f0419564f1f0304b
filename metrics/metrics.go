// Package metrics exposes prometheus collectors for the download pipeline,
// the browser worker and the LLM relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "novel_splitter"

var (
	ChaptersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "chapters_total",
			Help:      "Chapters processed by result (downloaded, skipped, failed)",
		},
		[]string{"platform", "result"},
	)

	NovelsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "novels_total",
			Help:      "Novels processed by terminal state",
		},
		[]string{"platform", "status"},
	)

	ChapterAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "chapter_attempts",
			Help:      "Attempts needed per chapter",
			Buckets:   []float64{1, 2, 3},
		},
		[]string{"platform"},
	)

	BrowserFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "browser",
			Name:      "fetch_duration_seconds",
			Help:      "Time from window creation to harvested HTML",
			Buckets:   []float64{1, 2, 5, 10, 15, 30, 45},
		},
		[]string{"result"},
	)

	LLMChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "chunks_total",
			Help:      "Delta chunks relayed from the completion stream",
		},
	)

	LLMStreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "streams_total",
			Help:      "Completion streams by outcome",
		},
		[]string{"result"},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "commands_total",
			Help:      "UI commands handled",
		},
		[]string{"command", "status"},
	)
)
