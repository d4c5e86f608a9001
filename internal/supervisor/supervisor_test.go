package supervisor

import (
	"context"
	"reflect"
	"runtime"
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu     sync.Mutex
	stdout []string
	stderr []string
}

func (c *collector) add(l Line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l.Stream == Stderr {
		c.stderr = append(c.stderr, l.Text)
		return
	}
	c.stdout = append(c.stdout, l.Text)
}

func shell(t *testing.T, script string) []string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	return []string{"/bin/sh", "-c", script}
}

func TestRunStreamsBothOutputs(t *testing.T) {
	s := &Supervisor{PollInterval: 20 * time.Millisecond}
	var c collector
	res, err := s.Run(context.Background(), shell(t, "printf 'one\\n  two  \\n\\n'; echo oops >&2"), c.add)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Success || res.ExitCode != 0 || res.Cancelled {
		t.Fatalf("unexpected result %+v", res)
	}
	if want := []string{"one", "two"}; !reflect.DeepEqual(c.stdout, want) {
		t.Fatalf("stdout: want %v, got %v", want, c.stdout)
	}
	if want := []string{"oops"}; !reflect.DeepEqual(c.stderr, want) {
		t.Fatalf("stderr: want %v, got %v", want, c.stderr)
	}
}

func TestRunReportsExitCode(t *testing.T) {
	s := &Supervisor{PollInterval: 20 * time.Millisecond}
	res, err := s.Run(context.Background(), shell(t, "echo partial; exit 3"), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Success || res.ExitCode != 3 {
		t.Fatalf("want failed exit 3, got %+v", res)
	}
}

func TestRunReplacesInvalidUTF8(t *testing.T) {
	s := &Supervisor{PollInterval: 20 * time.Millisecond}
	var c collector
	if _, err := s.Run(context.Background(), shell(t, "printf '\\377ok\\n'"), c.add); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(c.stdout) != 1 || c.stdout[0] != "\uFFFDok" {
		t.Fatalf("want replacement rune, got %q", c.stdout)
	}
}

func TestRunStartFailure(t *testing.T) {
	s := &Supervisor{}
	if _, err := s.Run(context.Background(), []string{"/nonexistent/downloader"}, nil); err == nil {
		t.Fatalf("expected start error")
	}
	if _, err := s.Run(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected error for empty command")
	}
}

func TestRunCancelTerminatesProcess(t *testing.T) {
	s := &Supervisor{PollInterval: 20 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	start := time.Now()
	res, err := s.Run(ctx, shell(t, "echo started; exec sleep 30"), func(l Line) {
		once.Do(cancel)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Fatalf("cancellation took too long: %s", time.Since(start))
	}
	if !res.Cancelled || res.Success {
		t.Fatalf("want cancelled result, got %+v", res)
	}
}

func TestRunKillsAfterGrace(t *testing.T) {
	s := &Supervisor{PollInterval: 20 * time.Millisecond, KillGrace: 200 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	res, err := s.Run(ctx, shell(t, "trap '' TERM; echo ready; while :; do sleep 0.1; done"), func(l Line) {
		once.Do(cancel)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Cancelled || res.ExitCode == 0 {
		t.Fatalf("want killed process, got %+v", res)
	}
}

func TestRunCancelAfterOutputClosed(t *testing.T) {
	s := &Supervisor{PollInterval: 20 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(300*time.Millisecond, cancel)
	start := time.Now()
	res, err := s.Run(ctx, shell(t, "exec >/dev/null 2>&1; sleep 30"), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("cancellation ignored once output closed, took %s", elapsed)
	}
	if !res.Cancelled || res.Success {
		t.Fatalf("want cancelled result, got %+v", res)
	}
}
