package worker

import (
	"context"
	"sync"
	"time"
)

// envelope carries either a task or a stop signal to a worker goroutine.
type envelope struct {
	task Task
	stop bool
}

type workerMeta struct {
	ch        chan envelope
	lastUsed  time.Time
	enqueued  bool // is in the idle queue
	discarded bool // is targeted as delete
}

// taskPool keeps between min and max worker goroutines alive, retiring
// workers that sit idle past the expiry.
type taskPool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	idle     []*workerMeta
	metadata map[chan envelope]*workerMeta
	min      int
	max      int
	running  int
	expiry   time.Duration
	runner   *Runner
}

const defaultWorkerIdle = 30 * time.Second

func newTaskPool(minWorkers, maxWorkers int, idle time.Duration, runner *Runner) *taskPool {
	if idle <= 0 {
		idle = defaultWorkerIdle
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	p := &taskPool{
		metadata: make(map[chan envelope]*workerMeta),
		min:      minWorkers,
		max:      maxWorkers,
		expiry:   idle,
		runner:   runner,
	}
	p.cond = sync.NewCond(&p.mu)
	go p.purgeStaleWorkers()
	return p
}

// spawnWorker adds a new worker if the pool has room.
func (p *taskPool) spawnWorker() {
	p.mu.Lock()
	if p.running >= p.max {
		p.mu.Unlock()
		return
	}
	ch := make(chan envelope)
	p.metadata[ch] = &workerMeta{ch: ch}
	p.running++
	p.mu.Unlock()
	go p.workerLoop(ch)
}

// acquire returns an idle worker channel, spawning one when under the cap,
// otherwise waiting for a release.
func (p *taskPool) acquire() chan envelope {
	for {
		p.mu.Lock()
		if meta := p.popIdleLocked(); meta != nil {
			p.mu.Unlock()
			return meta.ch
		}
		if p.running < p.max {
			ch := make(chan envelope)
			p.metadata[ch] = &workerMeta{ch: ch}
			p.running++
			p.mu.Unlock()
			go p.workerLoop(ch)
			continue
		}
		p.cond.Wait()
		p.mu.Unlock()
	}
}

// release puts a worker back into the idle queue.
func (p *taskPool) release(ch chan envelope) {
	p.mu.Lock()
	meta, ok := p.metadata[ch]
	if !ok || meta.discarded || meta.enqueued {
		p.mu.Unlock()
		return
	}
	meta.enqueued = true
	meta.lastUsed = time.Now()
	p.idle = append(p.idle, meta)
	p.mu.Unlock()
	p.cond.Signal()
}

// retire removes a worker from the pool accounting.
func (p *taskPool) retire(ch chan envelope) {
	p.mu.Lock()
	if meta, ok := p.metadata[ch]; ok {
		delete(p.metadata, ch)
		meta.discarded = true
		if p.running > 0 {
			p.running--
		}
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *taskPool) popIdleLocked() *workerMeta {
	for len(p.idle) > 0 {
		meta := p.idle[0]
		p.idle = p.idle[1:]
		if meta.discarded {
			continue
		}
		meta.enqueued = false
		return meta
	}
	return nil
}

// workerLoop enlists the worker as idle, then runs tasks handed to it until
// a stop envelope arrives.
func (p *taskPool) workerLoop(ch chan envelope) {
	p.release(ch)
	for env := range ch {
		if env.stop {
			p.retire(ch)
			return
		}
		p.runner.Run(context.Background(), env.task)
		p.release(ch)
	}
}

// purgeStaleWorkers periodically retires workers idle past the expiry.
func (p *taskPool) purgeStaleWorkers() {
	ticker := time.NewTicker(p.expiry)
	defer ticker.Stop()
	for {
		<-ticker.C
		p.shutdownExpired()
	}
}

func (p *taskPool) shutdownExpired() {
	var stale []*workerMeta
	now := time.Now()

	p.mu.Lock()
	if len(p.idle) == 0 || p.running <= p.min {
		p.mu.Unlock()
		return
	}
	remaining := p.idle[:0]
	for _, meta := range p.idle {
		if meta.discarded {
			continue
		}
		if now.Sub(meta.lastUsed) >= p.expiry && p.running-len(stale) > p.min {
			meta.discarded = true
			meta.enqueued = false
			stale = append(stale, meta)
			continue
		}
		remaining = append(remaining, meta)
	}
	p.idle = remaining
	p.mu.Unlock()

	for _, meta := range stale {
		meta.ch <- envelope{stop: true}
	}
}
