package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/siesta/internal/output"
	"github.com/tanq16/siesta/internal/session"
)

// SessionRunner is satisfied by *session.Runner.
type SessionRunner interface {
	Run(ctx context.Context, req session.Request) session.Outcome
}

type Options struct {
	Workers  int
	Display  *output.Manager
	Uploader session.Uploader
}

type job struct {
	index int
	req   session.Request
}

// Run executes requests on a pool of workers and returns their outcomes in
// request order.
func Run(ctx context.Context, runner SessionRunner, reqs []session.Request, opts Options) []session.Outcome {
	display := opts.Display
	if display == nil {
		display = output.NewManager()
	}
	for _, req := range reqs {
		display.Register(req.TaskID, req.URL)
	}
	display.StartDisplay()
	defer display.StopDisplay()

	jobCh := make(chan job, len(reqs))
	for i, req := range reqs {
		jobCh <- job{index: i, req: req}
	}
	close(jobCh)

	outcomes := make([]session.Outcome, len(reqs))
	var wg sync.WaitGroup
	for range max(opts.Workers, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processJobs(ctx, runner, jobCh, outcomes, display, opts.Uploader)
		}()
	}
	wg.Wait()
	return outcomes
}

func processJobs(ctx context.Context, runner SessionRunner, jobCh <-chan job, outcomes []session.Outcome, display *output.Manager, uploader session.Uploader) {
	for j := range jobCh {
		id := j.req.TaskID
		if ctx.Err() != nil {
			outcomes[j.index] = session.Outcome{TaskID: id, URL: j.req.URL, Status: session.StatusCancelled, Err: session.ErrCancelled}
			display.ReportError(id, session.ErrCancelled)
			continue
		}
		display.SetMessage(id, fmt.Sprintf("Starting %s", j.req.URL))
		out := runner.Run(ctx, j.req)
		if out.Status == session.StatusCompleted && uploader != nil {
			if err := uploader.Upload(ctx, out); err != nil {
				log.Error().Str("op", "scheduler/upload").Str("task", id).Err(err).Msg("upload failed")
				out.Status = session.StatusFailed
				out.Success = false
				out.Err = fmt.Errorf("upload failed: %w", err)
			}
		}
		outcomes[j.index] = out
		if out.Success {
			display.Complete(id, fmt.Sprintf("Downloaded %s %s (%d files, %s)", out.Kind, out.ContentID, len(out.Files), out.Quality))
		} else {
			display.ReportError(id, out.Err)
		}
	}
}
