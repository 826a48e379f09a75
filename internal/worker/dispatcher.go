package worker

import (
	"errors"
	"time"
)

// ErrDispatcherBusy is returned when the job queue is full; callers surface
// it as a retryable condition rather than queueing unboundedly.
var ErrDispatcherBusy = errors.New("job queue full")

// Config bounds the dispatcher's worker pool and queue.
type Config struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinWorkers <= 0 {
		c.MinWorkers = 1
	}
	if c.MaxWorkers < c.MinWorkers {
		c.MaxWorkers = c.MinWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 16
	}
	return c
}

// Dispatcher feeds queued tasks to a bounded worker pool. Asynchronous jobs
// go through here; synchronous requests run the Runner inline instead.
type Dispatcher struct {
	pool  *taskPool
	queue chan Task
}

func NewDispatcher(cfg Config, runner *Runner) *Dispatcher {
	cfg = cfg.withDefaults()
	d := &Dispatcher{
		pool:  newTaskPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.IdleTimeout, runner),
		queue: make(chan Task, cfg.QueueSize),
	}
	for i := 0; i < cfg.MinWorkers; i++ {
		d.pool.spawnWorker()
	}
	go d.run()
	return d
}

// Enqueue hands a task to the dispatcher without blocking. A full queue
// returns ErrDispatcherBusy.
func (d *Dispatcher) Enqueue(task Task) error {
	select {
	case d.queue <- task:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

func (d *Dispatcher) run() {
	for task := range d.queue {
		ch := d.pool.acquire()
		ch <- envelope{task: task}
	}
}
