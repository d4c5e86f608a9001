package session

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tanq16/siesta/internal/classify"
	"github.com/tanq16/siesta/internal/settings"
)

type Status int

const (
	StatusCompleted Status = iota
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "completed":
		*s = StatusCompleted
	case "failed":
		*s = StatusFailed
	case "cancelled":
		*s = StatusCancelled
	default:
		return fmt.Errorf("unknown status %q", b)
	}
	return nil
}

// Phase tracks where a session is in its lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSnapshotted
	PhaseOverlayApplied
	PhaseRunning
	PhaseClassifying
	PhaseRestored
	PhaseDone
)

func (p Phase) String() string {
	return [...]string{"idle", "snapshotted", "overlay-applied", "running", "classifying", "restored", "done"}[p]
}

var (
	ErrProcessFailed = errors.New("download process failed")
	ErrCancelled     = errors.New("download cancelled")
)

// Outcome is the terminal record of one session.
type Outcome struct {
	TaskID    string
	UserID    string
	URL       string
	ContentID string
	Success   bool
	Status    Status
	Kind      classify.Kind
	Files     []string
	Metadata  []classify.Metadata
	Err       error
	Quality   settings.AudioQuality
	Duration  time.Duration
	// Dir is the session directory. It is already removed for failed and
	// cancelled sessions; for completed ones the caller calls Cleanup.
	Dir string
	// RestoreErr is set when the settings file could not be put back.
	RestoreErr error
}

func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Cleanup removes the session directory and everything in it.
func (o Outcome) Cleanup() error {
	if o.Dir == "" {
		return nil
	}
	return os.RemoveAll(o.Dir)
}
