// Package events carries fire-and-forget notifications from long-running
// flows to whoever is watching: the SSE stream of the command server, a
// terminal, or a test recorder.
package events

import (
	"log/slog"
	"sync"

	"github.com/Hooolee/novel-splitter/logger"
	"github.com/Hooolee/novel-splitter/model"
)

const (
	DownloadProgress = "download-progress"
	AiAnalysis       = "ai-analysis"
	AiAnalysisStatus = "ai-analysis-status"
)

// Emitter must not block the caller for long; emissions are never retried.
type Emitter interface {
	Emit(name string, payload any)
}

type EmitterFunc func(name string, payload any)

func (f EmitterFunc) Emit(name string, payload any) {
	f(name, payload)
}

func Progress(e Emitter, message, status string) {
	e.Emit(DownloadProgress, model.ProgressEvent{Message: message, Status: status})
}

func AiStatus(e Emitter, message, status string) {
	e.Emit(AiAnalysisStatus, model.ProgressEvent{Message: message, Status: status})
}

func AiChunk(e Emitter, chunk string) {
	e.Emit(AiAnalysis, model.ChunkEvent{Chunk: chunk})
}

// LogEmitter writes every event to slog. The CLI uses it in place of a UI.
type LogEmitter struct {
	Logger *slog.Logger
}

func (e LogEmitter) Emit(name string, payload any) {
	l := logger.OrDefault(e.Logger)
	switch p := payload.(type) {
	case model.ProgressEvent:
		l.Info(p.Message, "event", name, "status", p.Status)
	case model.ChunkEvent:
		l.Debug("chunk", "event", name, "chunk", p.Chunk)
	default:
		l.Info("event", "event", name, "payload", payload)
	}
}

type Record struct {
	Name    string
	Payload any
}

// Recorder keeps every emission in order.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

func (r *Recorder) Emit(name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{Name: name, Payload: payload})
}

func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Progress returns the download-progress payloads, optionally only those
// with the given statuses.
func (r *Recorder) Progress(statuses ...string) []model.ProgressEvent {
	var out []model.ProgressEvent
	for _, rec := range r.Records() {
		p, ok := rec.Payload.(model.ProgressEvent)
		if !ok || rec.Name != DownloadProgress {
			continue
		}
		if len(statuses) == 0 {
			out = append(out, p)
			continue
		}
		for _, s := range statuses {
			if p.Status == s {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// Multi fans one emission out to several emitters.
type Multi []Emitter

func (m Multi) Emit(name string, payload any) {
	for _, e := range m {
		e.Emit(name, payload)
	}
}
