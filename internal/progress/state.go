package progress

import "sync"

// Snapshot is a point-in-time copy of State. Percent is -1 and Total is 0
// until the downloader reports them.
type Snapshot struct {
	Stage   Stage
	Message string
	Percent int
	Done    int
	Total   int
}

func (s Snapshot) HasPercent() bool { return s.Percent >= 0 }
func (s Snapshot) HasItems() bool   { return s.Total > 0 }

// State holds the progress of one session. It is written by the output
// drains and read by reporters, so every access goes through mu.
type State struct {
	mu   sync.Mutex
	snap Snapshot
}

func NewState() *State {
	return &State{snap: Snapshot{Stage: StagePreparing, Percent: -1}}
}

// Apply folds ev into the state and reports whether anything changed.
func (s *State) Apply(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.snap
	switch ev.Kind {
	case EventStage:
		s.snap.Stage = ev.Stage
		s.snap.Message = ev.Message
	case EventPercent:
		s.snap.Percent = max(0, min(ev.Percent, 100))
	case EventItems:
		if ev.Total > 0 {
			s.snap.Done = ev.Done
			s.snap.Total = ev.Total
		}
	}
	return s.snap != prev
}

func (s *State) SetStage(stage Stage, message string) bool {
	return s.Apply(Event{Kind: EventStage, Stage: stage, Message: message})
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Reporter receives progress updates for a session. Implementations must be
// safe for concurrent use; calls may arrive from both output streams.
type Reporter interface {
	Update(taskID string, snap Snapshot)
}

// LineSink is implemented by reporters that also show raw downloader output.
type LineSink interface {
	AddStreamLine(taskID, line string)
}

type ReporterFunc func(taskID string, snap Snapshot)

func (f ReporterFunc) Update(taskID string, snap Snapshot) { f(taskID, snap) }

// Discard drops every update.
var Discard Reporter = ReporterFunc(func(string, Snapshot) {})
