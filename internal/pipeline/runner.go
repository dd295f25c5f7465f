package pipeline

import (
	"context"
	"log"
	"runtime/debug"
)

// Runner executes background units of work with per-task panic isolation.
// A fixed worker pool drains a buffered queue; when the queue is full the
// task runs on its own goroutine so ingestion never blocks on scheduling.
type Runner struct {
	tasks  chan func(context.Context)
	logger *log.Logger
}

// NewRunner constructs and starts a runner.
func NewRunner(workers, queueSize int, logger *log.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = log.Default()
	}
	r := &Runner{
		tasks:  make(chan func(context.Context), queueSize),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		go r.worker()
	}
	return r
}

// Go schedules a task. Tasks are detached: they carry their own background
// context and are never cancelled once scheduled.
func (r *Runner) Go(task func(context.Context)) {
	if r == nil || task == nil {
		return
	}
	select {
	case r.tasks <- task:
	default:
		go r.run(task)
	}
}

func (r *Runner) worker() {
	for task := range r.tasks {
		r.run(task)
	}
}

func (r *Runner) run(task func(context.Context)) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Printf("pipeline: recovered task panic: %v\n%s", rec, debug.Stack())
		}
	}()
	task(context.Background())
}
