package worker

import (
	"context"
	"fmt"

	"aifiles/internal/logging"
)

type Worker struct {
	id         int
	pool       *jobChannelPool
	jobChannel chan Job
}

func newWorker(id int, pool *jobChannelPool) *Worker {
	return &Worker{
		id:         id,
		pool:       pool,
		jobChannel: make(chan Job),
	}
}

// Start runs jobs until ctx ends or a nil-Run job (the retire signal) arrives.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-w.jobChannel:
				if job.Run == nil {
					logging.Debugf("[worker-%d] retired", w.id)
					return
				}
				err := w.run(ctx, job)
				logging.Debugf("[worker-%d] job %s done (err=%v)", w.id, job.ID, err)
				if job.ticket != nil {
					job.ticket.finish(err)
				}
				w.pool.release(w.jobChannel)
			}
		}
	}()
}

func (w *Worker) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return job.Run(ctx)
}
