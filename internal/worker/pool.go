package worker

import (
	"context"
	"sync"
	"time"
)

type workerMeta struct {
	ch        chan Job
	lastUsed  time.Time
	idle      bool // sitting in the idle list
	discarded bool // retired, must not be handed out
}

// jobChannelPool hands out idle worker channels, growing up to max and
// shrinking back to min after workers sit idle for expiry.
type jobChannelPool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	ctx      context.Context
	idle     []*workerMeta
	metadata map[chan Job]*workerMeta
	min      int
	max      int
	running  int
	nextID   int
	expiry   time.Duration
}

const defaultWorkerIdle = 30 * time.Second

func newJobChannelPool(ctx context.Context, minWorkers, maxWorkers int, idle time.Duration) *jobChannelPool {
	if idle <= 0 {
		idle = defaultWorkerIdle
	}
	if minWorkers < 1 {
		minWorkers = 1
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	p := &jobChannelPool{
		ctx:      ctx,
		metadata: make(map[chan Job]*workerMeta),
		min:      minWorkers,
		max:      maxWorkers,
		expiry:   idle,
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < minWorkers; i++ {
		p.mu.Lock()
		meta := p.spawnLocked()
		p.mu.Unlock()
		p.release(meta.ch)
	}
	go p.purgeStaleWorkers()
	return p
}

// spawnLocked starts a worker; p.mu must be held.
func (p *jobChannelPool) spawnLocked() *workerMeta {
	p.nextID++
	w := newWorker(p.nextID, p)
	meta := &workerMeta{ch: w.jobChannel}
	p.metadata[w.jobChannel] = meta
	p.running++
	w.Start(p.ctx)
	return meta
}

// acquire returns an idle worker, spawning one if allowed, else waits.
func (p *jobChannelPool) acquire() chan Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if meta := p.popIdleLocked(); meta != nil {
			return meta.ch
		}
		if p.running < p.max {
			return p.spawnLocked().ch
		}
		p.cond.Wait()
	}
}

// release puts a worker back in the idle list.
func (p *jobChannelPool) release(ch chan Job) {
	p.mu.Lock()
	meta, ok := p.metadata[ch]
	if !ok || meta.discarded || meta.idle {
		p.mu.Unlock()
		return
	}
	meta.idle = true
	meta.lastUsed = time.Now()
	p.idle = append(p.idle, meta)
	p.mu.Unlock()
	p.cond.Signal()
}

func (p *jobChannelPool) popIdleLocked() *workerMeta {
	for len(p.idle) > 0 {
		meta := p.idle[0]
		p.idle = p.idle[1:]
		if meta.discarded {
			continue
		}
		meta.idle = false
		return meta
	}
	return nil
}

func (p *jobChannelPool) purgeStaleWorkers() {
	ticker := time.NewTicker(p.expiry)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			p.shutdownAll()
			return
		case <-ticker.C:
			p.shutdownExpired()
		}
	}
}

// shutdownExpired retires idle workers past expiry while keeping min alive.
func (p *jobChannelPool) shutdownExpired() {
	var stale []*workerMeta
	now := time.Now()

	p.mu.Lock()
	remaining := p.idle[:0]
	for _, meta := range p.idle {
		if meta.discarded {
			continue
		}
		if now.Sub(meta.lastUsed) >= p.expiry && p.running > p.min {
			p.retireLocked(meta)
			stale = append(stale, meta)
			continue
		}
		remaining = append(remaining, meta)
	}
	p.idle = remaining
	p.mu.Unlock()

	for _, meta := range stale {
		select {
		case meta.ch <- Job{}:
		case <-p.ctx.Done():
		}
	}
}

// shutdownAll forgets idle workers; they exit on their own once ctx is done.
func (p *jobChannelPool) shutdownAll() {
	p.mu.Lock()
	for _, meta := range p.idle {
		if !meta.discarded {
			p.retireLocked(meta)
		}
	}
	p.idle = nil
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *jobChannelPool) retireLocked(meta *workerMeta) {
	meta.discarded = true
	meta.idle = false
	delete(p.metadata, meta.ch)
	if p.running > 0 {
		p.running--
	}
}

func (p *jobChannelPool) size() (running, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running, len(p.idle)
}
