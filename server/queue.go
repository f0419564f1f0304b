package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Hooolee/novel-splitter/apperr"
)

type task struct {
	id   string
	name string
	run  func(ctx context.Context) error
}

// Queue runs download tasks one at a time in submission order. Downloads
// share the browser worker, so they must never overlap.
type Queue struct {
	tasks  chan task
	logger *slog.Logger

	mu      sync.Mutex
	pending int
}

func NewQueue(size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{tasks: make(chan task, size), logger: logger}
}

func newTaskId() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Submit enqueues run and returns its task id without waiting.
func (q *Queue) Submit(name string, run func(ctx context.Context) error) (string, error) {
	t := task{id: newTaskId(), name: name, run: run}
	q.mu.Lock()
	q.pending++
	q.mu.Unlock()
	select {
	case q.tasks <- t:
		q.logger.Info("server: task queued", "task", t.id, "name", name)
		return t.id, nil
	default:
		q.mu.Lock()
		q.pending--
		q.mu.Unlock()
		return "", apperr.New(apperr.KindInput, fmt.Sprintf("任务队列已满 (%d)", cap(q.tasks)))
	}
}

// Pending counts queued and running tasks.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Run executes tasks until ctx is done.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.tasks:
			q.exec(ctx, t)
		}
	}
}

func (q *Queue) exec(ctx context.Context, t task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("server: task panicked", "task", t.id, "name", t.name, "panic", r)
		}
		q.mu.Lock()
		q.pending--
		q.mu.Unlock()
	}()
	log := q.logger.With("task", t.id, "name", t.name)
	log.Info("server: task started")
	if err := t.run(ctx); err != nil {
		log.Warn("server: task failed", "error", err)
		return
	}
	log.Info("server: task finished")
}
