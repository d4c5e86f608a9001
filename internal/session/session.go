package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/siesta/internal/classify"
	"github.com/tanq16/siesta/internal/metrics"
	"github.com/tanq16/siesta/internal/progress"
	"github.com/tanq16/siesta/internal/settings"
	"github.com/tanq16/siesta/internal/supervisor"
)

// DirPrefix starts the name of every session directory.
const DirPrefix = "tidal_ng_"

type Request struct {
	UserID    string
	TaskID    string
	URL       string
	Overrides map[string]any
}

// Uploader hands a completed outcome to the next stage.
type Uploader interface {
	Upload(ctx context.Context, out Outcome) error
}

// Runner executes download sessions against one settings store. Sessions
// share the settings file, so Run admits one session at a time and later
// callers wait for the active one to finish.
type Runner struct {
	Store      *settings.Store
	Supervisor *supervisor.Supervisor
	Classifier *classify.Classifier
	Reporter   progress.Reporter
	// BaseDir holds per-user session directories.
	BaseDir string
	// FFmpegPath is forced into the overlay when set.
	FFmpegPath string
	// Command builds the downloader argv for a URL and session directory.
	Command func(url, dir string) []string

	mu  sync.Mutex
	now func() time.Time
}

// CommandTemplate expands "{url}" and "{dir}" in each argument.
func CommandTemplate(args []string) func(url, dir string) []string {
	return func(url, dir string) []string {
		out := make([]string, len(args))
		r := strings.NewReplacer("{url}", url, "{dir}", dir)
		for i, a := range args {
			out[i] = r.Replace(a)
		}
		return out
	}
}

type session struct {
	req    Request
	log    zerolog.Logger
	phase  Phase
	state  *progress.State
	report progress.Reporter
}

func (s *session) enter(p Phase) {
	s.log.Debug().Str("from", s.phase.String()).Str("to", p.String()).Msg("session phase")
	s.phase = p
}

func (s *session) stage(stage progress.Stage, msg string) {
	if s.state.SetStage(stage, msg) {
		s.publish(s.state.Snapshot())
	}
}

// publish hands snap to the reporter. A panicking reporter loses the update
// but never the session.
func (s *session) publish(snap progress.Snapshot) {
	defer s.recoverReporter()
	s.report.Update(s.req.TaskID, snap)
}

func (s *session) publishLine(text string) {
	sink, ok := s.report.(progress.LineSink)
	if !ok {
		return
	}
	defer s.recoverReporter()
	sink.AddStreamLine(s.req.TaskID, text)
}

func (s *session) recoverReporter() {
	if p := recover(); p != nil {
		s.log.Error().Interface("panic", p).Msg("progress reporter panicked, update dropped")
	}
}

// Run executes one download session and always returns an outcome. The
// settings file is restored to its prior content before Run returns, on
// every path.
func (r *Runner) Run(ctx context.Context, req Request) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	now := r.now
	if now == nil {
		now = time.Now
	}
	if req.TaskID == "" {
		req.TaskID = uuid.NewString()
	}
	reporter := r.Reporter
	if reporter == nil {
		reporter = progress.Discard
	}
	s := &session{
		req:    req,
		log:    log.With().Str("op", "session/run").Str("task", req.TaskID).Logger(),
		state:  progress.NewState(),
		report: reporter,
	}
	start := now()
	out := r.run(ctx, s, now)
	out.TaskID, out.UserID, out.URL = req.TaskID, req.UserID, req.URL
	out.ContentID = ContentID(req.URL)
	out.Duration = now().Sub(start)
	out.Success = out.Status == StatusCompleted
	s.enter(PhaseDone)

	if !out.Success && out.Dir != "" {
		if err := os.RemoveAll(out.Dir); err != nil {
			s.log.Warn().Err(err).Str("dir", out.Dir).Msg("could not remove session directory")
		}
	}
	switch out.Status {
	case StatusCompleted:
		s.stage(progress.StageCompleted, "Download complete!")
	case StatusCancelled:
		s.stage(progress.StageCancelled, "Download cancelled")
	default:
		s.stage(progress.StageError, "Error: "+progress.Truncate(out.Reason(), progress.MaxMessage))
	}
	metrics.SessionsTotal.WithLabelValues(out.Status.String()).Inc()
	metrics.SessionDuration.WithLabelValues(out.Status.String()).Observe(out.Duration.Seconds())
	s.log.Info().Str("status", out.Status.String()).Str("kind", string(out.Kind)).Int("files", len(out.Files)).
		Dur("duration", out.Duration).Msgf("session finished for %s", req.URL)
	return out
}

func (r *Runner) run(ctx context.Context, s *session, now func() time.Time) (out Outcome) {
	out.Quality = settings.AudioLossless
	defer func() {
		if p := recover(); p != nil {
			s.log.Error().Interface("panic", p).Bytes("stack", debug.Stack()).Msg("session panicked")
			out.Status = StatusFailed
			out.Err = fmt.Errorf("internal error: %v", p)
		}
	}()

	snap, err := r.Store.Snapshot()
	if err != nil {
		return failed(out, err)
	}
	switch snap.Source {
	case settings.SourceMissing:
		s.log.Info().Msg("no settings file, session starts from defaults")
	case settings.SourceCorrupt:
		s.log.Warn().Msg("settings file is corrupt, session starts from defaults")
	}
	if snap.Record.QualityAudio.Valid() {
		out.Quality = snap.Record.QualityAudio
	}
	s.enter(PhaseSnapshotted)

	dir, err := r.makeDir(s.req.UserID, now())
	if err != nil {
		return failed(out, err)
	}
	out.Dir = dir
	overlay, err := Overlay(snap.Record, dir, r.FFmpegPath, s.req.Overrides)
	if err != nil {
		return failed(out, err)
	}
	if err := r.Store.WriteOverlay(overlay); err != nil {
		// The overlay may be partly in place; restore anyway.
		if rerr := r.Store.RestoreSnapshot(snap); rerr != nil {
			out.RestoreErr = rerr
		}
		return failed(out, fmt.Errorf("error writing session settings: %w", err))
	}
	defer func() {
		if err := r.Store.RestoreSnapshot(snap); err != nil {
			s.log.Error().Err(err).Msg("could not restore settings")
			out.RestoreErr = err
		}
		s.enter(PhaseRestored)
	}()
	s.enter(PhaseOverlayApplied)

	s.enter(PhaseRunning)
	s.stage(progress.StageDownloading, "Starting download...")
	res, err := r.Supervisor.Run(ctx, r.Command(s.req.URL, dir), func(l supervisor.Line) {
		r.onLine(s, l)
	})
	if err != nil {
		return failed(out, err)
	}
	if res.Cancelled || ctx.Err() != nil {
		out.Status = StatusCancelled
		out.Err = ErrCancelled
		return out
	}
	if !res.Success {
		s.log.Warn().Int("exit", res.ExitCode).Msg("downloader exited with failure")
		return failed(out, ErrProcessFailed)
	}

	s.enter(PhaseClassifying)
	s.stage(progress.StageProcessing, "Processing files...")
	cres, err := r.Classifier.Classify(ctx, dir)
	out.Files = cres.Files
	if err != nil {
		if ctx.Err() != nil {
			out.Status = StatusCancelled
			out.Err = ErrCancelled
			return out
		}
		return failed(out, err)
	}
	out.Kind = cres.Kind
	out.Metadata = cres.Items
	out.Status = StatusCompleted
	return out
}

func failed(out Outcome, err error) Outcome {
	out.Status = StatusFailed
	out.Err = err
	return out
}

func (r *Runner) onLine(s *session, l supervisor.Line) {
	events := progress.Translate(l.Text)
	changed := false
	for _, ev := range events {
		metrics.ProgressEvents.WithLabelValues(ev.Kind.String()).Inc()
		if s.state.Apply(ev) {
			changed = true
		}
	}
	if len(events) == 0 && l.Stream == supervisor.Stderr {
		changed = s.state.Apply(progress.Warning(l.Text))
	}
	s.log.Trace().Str("stream", l.Stream.String()).Msg(l.Text)
	s.publishLine(l.Text)
	if changed {
		s.publish(s.state.Snapshot())
	}
}

func (r *Runner) makeDir(user string, t time.Time) (string, error) {
	if user == "" {
		user = "anonymous"
	}
	user = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(user)
	name := fmt.Sprintf("%s%d-%s", DirPrefix, t.Unix(), uuid.NewString()[:8])
	dir := filepath.Join(r.BaseDir, user, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating session directory: %w", err)
	}
	return dir, nil
}

// CleanupStale removes leftover session directories under base.
func CleanupStale(base string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(base, "*", DirPrefix+"*"))
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, m := range matches {
		if err := os.RemoveAll(m); err != nil {
			errs = append(errs, err)
			continue
		}
		log.Info().Str("op", "session/cleanup").Str("dir", m).Msg("removed session directory")
		removed++
	}
	return removed, errors.Join(errs...)
}
