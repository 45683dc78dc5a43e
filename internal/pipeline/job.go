package pipeline

import (
	"context"
)

// Job is a pipeline run executing in the background.
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}

	report Report
	err    error
}

// Start runs p.Run(path) on its own goroutine. onDone, when not nil, is called
// exactly once with the outcome before Wait returns.
func (p *Pipeline) Start(ctx context.Context, path string, onDone func(Report, error)) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(j.done)
		defer cancel()

		j.report, j.err = p.Run(ctx, path)
		if onDone != nil {
			onDone(j.report, j.err)
		}
	}()

	return j
}

// Cancel asks the job to stop. Decryption stops between tokens.
func (j *Job) Cancel() {
	j.cancel()
}

func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finished and returns its outcome.
func (j *Job) Wait() (Report, error) {
	<-j.done
	return j.report, j.err
}
