package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

type Line struct {
	Stream Stream
	Text   string
}

type Result struct {
	ExitCode  int
	Success   bool
	Cancelled bool
	// StreamErrs holds the first output drain failure and any non-exit
	// wait error. They do not affect Success.
	StreamErrs []error
}

const (
	DefaultPollInterval = time.Second
	maxLineSize         = 1 << 20
)

// Supervisor runs one external process at a time per Run call. The zero
// value uses DefaultPollInterval and never escalates to SIGKILL.
type Supervisor struct {
	PollInterval time.Duration
	// KillGrace is how long to wait after the termination signal before
	// killing the process. Zero disables escalation.
	KillGrace time.Duration
}

// Run starts argv and streams its output lines to onLine until the process
// exits. Cancelling ctx sends the process a termination signal; Run still
// waits for it to exit. Lines from one stream arrive in order; the two
// streams are not ordered relative to each other.
func (s *Supervisor) Run(ctx context.Context, argv []string, onLine func(Line)) (Result, error) {
	if len(argv) == 0 {
		return Result{}, errors.New("empty command")
	}
	poll := s.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	configure(cmd)
	log.Debug().Str("op", "supervisor/run").Msgf("executing command: %s", cmd.String())

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("error creating stdout pipe: %v", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("error creating stderr pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		log.Error().Str("op", "supervisor/run").Err(err).Msg("error starting process")
		return Result{}, fmt.Errorf("error starting %s: %w", argv[0], err)
	}

	if onLine == nil {
		onLine = func(Line) {}
	}

	var streams errgroup.Group
	for _, src := range []struct {
		r      io.Reader
		stream Stream
	}{{stdout, Stdout}, {stderr, Stderr}} {
		streams.Go(func() error {
			if err := drain(src.r, src.stream, onLine); err != nil {
				log.Warn().Str("op", "supervisor/drain").Str("stream", src.stream.String()).Err(err).Msg("output drain failed")
				return fmt.Errorf("%s: %w", src.stream, err)
			}
			return nil
		})
	}

	// exited is closed once the process has been reaped. Wait must not run
	// before both drains are done reading.
	exited := make(chan struct{})
	var streamErr error
	var cancelled bool
	var g errgroup.Group
	g.Go(func() error {
		defer close(exited)
		streamErr = streams.Wait()
		return cmd.Wait()
	})
	g.Go(func() error {
		cancelled = s.watch(ctx, cmd, poll, exited)
		return nil
	})
	waitErr := g.Wait()

	res := Result{Cancelled: cancelled, ExitCode: cmd.ProcessState.ExitCode()}
	if streamErr != nil {
		res.StreamErrs = append(res.StreamErrs, streamErr)
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		log.Error().Str("op", "supervisor/run").Err(waitErr).Msg("error waiting for process")
		res.StreamErrs = append(res.StreamErrs, waitErr)
	}
	res.Success = res.ExitCode == 0 && !cancelled
	log.Debug().Str("op", "supervisor/run").Int("exit", res.ExitCode).Bool("cancelled", cancelled).Msg("process finished")
	return res, nil
}

// watch polls ctx until the process has exited. On cancellation it sends
// the termination signal once and, if KillGrace is set, kills the process
// when it outlives the grace period.
func (s *Supervisor) watch(ctx context.Context, cmd *exec.Cmd, poll time.Duration, exited <-chan struct{}) bool {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-exited:
			return false
		case <-ticker.C:
			if ctx.Err() == nil {
				continue
			}
			log.Info().Str("op", "supervisor/watch").Int("pid", cmd.Process.Pid).Msg("cancellation requested, terminating process")
			if err := terminate(cmd.Process); err != nil {
				log.Warn().Str("op", "supervisor/watch").Err(err).Msg("error signalling process")
			}
			if s.KillGrace <= 0 {
				return true
			}
			select {
			case <-exited:
			case <-time.After(s.KillGrace):
				log.Warn().Str("op", "supervisor/watch").Int("pid", cmd.Process.Pid).Msg("process ignored termination, killing")
				kill(cmd.Process)
			}
			return true
		}
	}
}

func drain(r io.Reader, stream Stream, onLine func(Line)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.ToValidUTF8(scanner.Text(), "\uFFFD"))
		if line != "" {
			onLine(Line{Stream: stream, Text: line})
		}
	}
	if err := scanner.Err(); err != nil {
		// keep the pipe empty so the process never blocks on a full buffer
		io.Copy(io.Discard, r)
		return err
	}
	return nil
}
