package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/tanq16/siesta/internal/output"
	"github.com/tanq16/siesta/internal/session"
)

type fakeRunner struct {
	mu   sync.Mutex
	seen []string
}

func (f *fakeRunner) Run(_ context.Context, req session.Request) session.Outcome {
	f.mu.Lock()
	f.seen = append(f.seen, req.URL)
	f.mu.Unlock()
	if strings.Contains(req.URL, "broken") {
		return session.Outcome{TaskID: req.TaskID, Status: session.StatusFailed, Err: session.ErrProcessFailed}
	}
	return session.Outcome{TaskID: req.TaskID, URL: req.URL, Status: session.StatusCompleted, Success: true}
}

type fakeUploader struct {
	fail bool
	n    int
	mu   sync.Mutex
}

func (u *fakeUploader) Upload(context.Context, session.Outcome) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.n++
	if u.fail {
		return errors.New("chat unavailable")
	}
	return nil
}

func quietDisplay() *output.Manager {
	m := output.NewManager()
	m.SetPlain(true)
	return m
}

func TestRunKeepsRequestOrder(t *testing.T) {
	reqs := []session.Request{
		{TaskID: "1", URL: "https://tidal.com/track/1"},
		{TaskID: "2", URL: "https://tidal.com/track/broken"},
		{TaskID: "3", URL: "https://tidal.com/track/3"},
	}
	r := &fakeRunner{}
	up := &fakeUploader{}
	outs := Run(context.Background(), r, reqs, Options{Workers: 2, Display: quietDisplay(), Uploader: up})
	if len(outs) != 3 || len(r.seen) != 3 {
		t.Fatalf("want 3 outcomes and 3 runs, got %d and %d", len(outs), len(r.seen))
	}
	for i, out := range outs {
		if out.TaskID != reqs[i].TaskID {
			t.Fatalf("outcome %d: want task %s, got %s", i, reqs[i].TaskID, out.TaskID)
		}
	}
	if outs[1].Status != session.StatusFailed || outs[0].Status != session.StatusCompleted {
		t.Fatalf("unexpected statuses %s %s", outs[0].Status, outs[1].Status)
	}
	if up.n != 2 {
		t.Fatalf("uploads: want 2, got %d", up.n)
	}
}

func TestRunUploadFailureFailsOutcome(t *testing.T) {
	reqs := []session.Request{{TaskID: "1", URL: "https://tidal.com/track/1"}}
	outs := Run(context.Background(), &fakeRunner{}, reqs, Options{Display: quietDisplay(), Uploader: &fakeUploader{fail: true}})
	if outs[0].Status != session.StatusFailed || !strings.Contains(outs[0].Reason(), "upload failed") {
		t.Fatalf("want failed upload outcome, got %s %q", outs[0].Status, outs[0].Reason())
	}
}

func TestRunSkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &fakeRunner{}
	outs := Run(ctx, r, []session.Request{{TaskID: "1", URL: "u"}}, Options{Display: quietDisplay()})
	if outs[0].Status != session.StatusCancelled || len(r.seen) != 0 {
		t.Fatalf("want cancelled without running, got %s (%d runs)", outs[0].Status, len(r.seen))
	}
}

func TestLoadBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	doc := `
user: "42"
options:
  quality: HIGH
downloads:
  - url: https://tidal.com/browse/album/1
  - url: https://tidal.com/browse/track/2
    user: "7"
    options:
      quality: LOSSLESS
      lyrics: false
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	reqs, err := LoadBatch(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("want 2 requests, got %d", len(reqs))
	}
	if reqs[0].UserID != "42" || reqs[0].Overrides["quality"] != "HIGH" {
		t.Fatalf("first request did not inherit defaults: %+v", reqs[0])
	}
	if reqs[1].UserID != "7" || reqs[1].Overrides["quality"] != "LOSSLESS" || reqs[1].Overrides["lyrics"] != false {
		t.Fatalf("second request overrides lost: %+v", reqs[1])
	}
	if reqs[0].TaskID == "" || reqs[0].TaskID == reqs[1].TaskID {
		t.Fatalf("task ids not unique")
	}
}

func TestLoadBatchRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	if err := os.WriteFile(path, []byte("downloads: []\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadBatch(path); err == nil {
		t.Fatalf("expected error for empty batch")
	}
}
