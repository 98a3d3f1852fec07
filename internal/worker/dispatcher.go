package worker

import (
	"container/list"
	"context"
	"sync"
	"time"

	"aifiles/internal/logging"
)

type DispatcherConfig struct {
	MinWorkers        int
	MaxWorkers        int
	QueueSize         int
	WorkerIdleTimeout time.Duration
}

type keyQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher feeds jobs to the worker pool, rotating between keys so one
// busy client cannot starve the others.
type Dispatcher struct {
	pool     *jobChannelPool
	jobQueue chan Job
	ctx      context.Context
	cancel   context.CancelFunc

	mu        sync.Mutex
	stopped   bool
	queues    map[string]*keyQueue
	ready     *list.List // keys with pending jobs, front is next
	positions map[string]*list.Element
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		pool:      newJobChannelPool(ctx, cfg.MinWorkers, cfg.MaxWorkers, cfg.WorkerIdleTimeout),
		jobQueue:  make(chan Job, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		queues:    make(map[string]*keyQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
	}
	go d.run()
	return d
}

// Submit queues a job without blocking; a full queue yields ErrDispatcherBusy.
func (d *Dispatcher) Submit(job Job) (*Ticket, error) {
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		return nil, ErrDispatcherStopped
	}
	job.ticket = newTicket(job.ID)
	select {
	case d.jobQueue <- job:
		return job.ticket, nil
	default:
		return nil, ErrDispatcherBusy
	}
}

// Stop cancels running jobs' context and retires the workers.
// Jobs still queued finish with ErrDispatcherStopped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()
	d.cancel()
}

func (d *Dispatcher) run() {
	for {
		if d.ctx.Err() != nil {
			d.drain()
			return
		}
		// dispatch one job of the key at the front of the ready list
		if !d.dispatchOne() {
			select {
			case job := <-d.jobQueue:
				d.enqueueJob(job)
			case <-d.ctx.Done():
			}
			continue
		}
		select {
		case job := <-d.jobQueue:
			d.enqueueJob(job)
		default:
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.Key]
	if q == nil {
		q = &keyQueue{}
		d.queues[job.Key] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[job.Key] = d.ready.PushBack(job.Key)
}

// dispatchOne hands the next job of the front key to a worker.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	key := elem.Value.(string)
	q := d.queues[key]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, key)
		delete(d.queues, key)
	} else {
		d.ready.MoveToBack(elem)
	}
	d.mu.Unlock()

	workerChan := d.pool.acquire()
	select {
	case workerChan <- job:
		logging.Debugf("[dispatcher] job %s (key %q) assigned", job.ID, key)
	case <-d.ctx.Done():
		job.ticket.finish(ErrDispatcherStopped)
	}
	return true
}

// drain fails every job that never reached a worker.
func (d *Dispatcher) drain() {
	d.mu.Lock()
	for key, q := range d.queues {
		for _, job := range q.jobs {
			job.ticket.finish(ErrDispatcherStopped)
		}
		delete(d.queues, key)
	}
	d.ready.Init()
	d.positions = make(map[string]*list.Element)
	d.mu.Unlock()
	for {
		select {
		case job := <-d.jobQueue:
			job.ticket.finish(ErrDispatcherStopped)
		default:
			return
		}
	}
}
