package dispatch

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/songledger/songledger/pkg/queue"
)

// Worker runs tasks one at a time, in submission order, on its own goroutine.
//
// Dispatch never blocks. Stop closes the queue and waits until every task
// submitted before Stop has run.
type Worker struct {
	name   string
	logger zerolog.Logger

	tasks    *queue.FIFO[Task]
	done     chan struct{}
	stopOnce sync.Once
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger sets the logger used for panics and dropped tasks.
func WithWorkerLogger(l zerolog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = l
	}
}

// NewWorker starts a worker goroutine and returns its handle.
func NewWorker(name string, opts ...WorkerOption) *Worker {
	w := &Worker{
		name:   name,
		logger: log.Logger,
		tasks:  queue.New[Task](),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With().Str("component", "dispatch").Str("worker", name).Logger()

	go w.loop()
	return w
}

// Name returns the name the worker was created with.
func (w *Worker) Name() string { return w.name }

// Dispatch enqueues task. Tasks submitted after Stop are dropped with a warning.
func (w *Worker) Dispatch(task Task) {
	if task == nil {
		return
	}
	if !w.tasks.Push(task) {
		w.logger.Warn().Msg("Worker stopped, dropping task")
	}
}

// Stop drains the queue and joins the goroutine. Safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.tasks.Close()
	})
	<-w.done
}

// Pending returns the number of tasks not yet started.
func (w *Worker) Pending() int {
	return w.tasks.Len()
}

func (w *Worker) loop() {
	defer close(w.done)
	w.logger.Debug().Msg("Worker started")
	for {
		task, ok := w.tasks.Pop()
		if !ok {
			w.logger.Debug().Msg("Worker drained")
			return
		}
		runTask(w.logger, task)
	}
}
