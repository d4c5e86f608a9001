package output

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/siesta/internal/progress"
)

type TaskOutput struct {
	ID            string
	URL           string
	Status        string
	Message       string
	// ProgressLines holds the progress bar and item count; StreamLines is
	// the tail of raw downloader output.
	ProgressLines []string
	StreamLines   []string
	Complete      bool
	StartTime     time.Time
	LastUpdated   time.Time
	Error         error
	Index         int
}

type ErrorReport struct {
	TaskURL string
	Error   error
	Time    time.Time
}

// Manager renders the live state of every registered task. It implements
// progress.Reporter so sessions can feed it directly.
type Manager struct {
	outputs     map[string]*TaskOutput
	mutex       sync.RWMutex
	numLines    int
	maxStreams  int // stream lines kept per task
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	taskCount   int
	displayWg   sync.WaitGroup
	// plain disables redrawing; updates are logged instead.
	plain bool
}

func NewManager() *Manager {
	return &Manager{
		outputs:     make(map[string]*TaskOutput),
		maxStreams:  5,
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
		plain:       !IsTerminal(),
	}
}

func (m *Manager) SetPlain(plain bool) {
	m.plain = plain
}

func (m *Manager) Register(taskID, url string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.taskCount++
	m.outputs[taskID] = &TaskOutput{
		ID:          taskID,
		URL:         url,
		Status:      "pending",
		StreamLines: []string{},
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
		Index:       m.taskCount,
	}
}

func (m *Manager) SetMessage(taskID, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[taskID]; exists {
		info.Message = message
		info.LastUpdated = time.Now()
	}
}

// Update maps a progress snapshot onto the task's status line and progress bar.
func (m *Manager) Update(taskID string, snap progress.Snapshot) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	info, exists := m.outputs[taskID]
	if !exists || info.Complete {
		return
	}
	switch snap.Stage {
	case progress.StageError, progress.StageWarning:
		info.Status = "warning"
	case progress.StagePreparing:
		info.Status = "pending"
	default:
		info.Status = "active"
	}
	if snap.Message != "" {
		info.Message = snap.Message
	}
	var lines []string
	if snap.HasPercent() {
		lines = append(lines, PrintProgressBar(int64(snap.Percent), 100, 30))
	}
	if snap.HasItems() {
		lines = append(lines, fmt.Sprintf("%d/%d items", snap.Done, snap.Total))
	}
	info.ProgressLines = lines
	info.LastUpdated = time.Now()
	if m.plain {
		log.Info().Str("op", "output/update").Str("task", taskID).Str("stage", string(snap.Stage)).
			Int("percent", snap.Percent).Int("done", snap.Done).Int("total", snap.Total).Msg(snap.Message)
	}
}

// AddStreamLine keeps the last few raw output lines of a running task.
func (m *Manager) AddStreamLine(taskID, line string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[taskID]; exists && !info.Complete {
		if m.plain {
			log.Debug().Str("op", "output/stream").Str("task", taskID).Msg(line)
			return
		}
		info.StreamLines = append(info.StreamLines, wrapText(line, 2+4)...)
		if len(info.StreamLines) > m.maxStreams {
			info.StreamLines = info.StreamLines[len(info.StreamLines)-m.maxStreams:]
		}
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) Complete(taskID, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[taskID]; exists {
		info.ProgressLines = nil
		info.StreamLines = nil
		if message == "" {
			info.Message = fmt.Sprintf("Completed %s", info.URL)
		} else {
			info.Message = message
		}
		info.Complete = true
		info.Status = "success"
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) ReportError(taskID string, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[taskID]; exists {
		info.Complete = true
		info.Status = "error"
		info.Error = err
		info.Message = fmt.Sprintf("Failed %s", info.URL)
		info.ProgressLines = nil
		info.StreamLines = nil
		info.LastUpdated = time.Now()
		m.errors = append(m.errors, ErrorReport{TaskURL: info.URL, Error: err, Time: time.Now()})
	}
}

// Counts returns the number of succeeded, failed and total tasks.
func (m *Manager) Counts() (success, failures, total int) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, info := range m.outputs {
		switch info.Status {
		case "success":
			success++
		case "error":
			failures++
		}
	}
	return success, failures, len(m.outputs)
}

func (m *Manager) GetStatusIndicator(status string) string {
	switch status {
	case "success", "pass":
		return successStyle.Render(StyleSymbols["pass"])
	case "error", "fail":
		return errorStyle.Render(StyleSymbols["fail"])
	case "warning":
		return warningStyle.Render(StyleSymbols["warning"])
	case "pending":
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func (m *Manager) sortTasks() (active, pending, completed []*TaskOutput) {
	var all []*TaskOutput
	for _, info := range m.outputs {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Index < all[j].Index
	})
	for _, t := range all {
		if t.Complete {
			completed = append(completed, t)
		} else if t.Status == "pending" && t.Message == "" {
			pending = append(pending, t)
		} else {
			active = append(active, t)
		}
	}
	return active, pending, completed
}

func styleMessage(status, message string) string {
	switch status {
	case "success":
		return successStyle.Render(message)
	case "error":
		return errorStyle.Render(message)
	case "warning":
		return warningStyle.Render(message)
	default:
		return pendingStyle.Render(message)
	}
}

func (m *Manager) updateDisplay() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	availableLines := getTerminalHeight() - 3
	if m.numLines > 0 {
		fmt.Printf("\033[%dA\033[J", m.numLines)
	}

	lineCount := 0
	active, pending, completed := m.sortTasks()
	totalNeeded := len(completed)
	for _, t := range append(active, pending...) {
		totalNeeded += 1 + len(t.ProgressLines) + len(t.StreamLines)
	}
	if totalNeeded > availableLines {
		maxCompleted := max(availableLines-(totalNeeded-len(completed)), 0)
		if len(completed) > maxCompleted {
			completed = completed[len(completed)-maxCompleted:]
		}
	}

	indent := strings.Repeat(" ", 2+4)
	printTask := func(t *TaskOutput, elapsed time.Duration, message string) {
		fmt.Printf("%s%s %s %s\n", strings.Repeat(" ", 2), m.GetStatusIndicator(t.Status), debugStyle.Render(elapsed.String()), message)
		lineCount++
		for _, line := range append(slices.Clone(t.ProgressLines), t.StreamLines...) {
			if lineCount >= availableLines {
				break
			}
			fmt.Printf("%s%s\n", indent, streamStyle.Render(line))
			lineCount++
		}
	}
	for _, t := range active {
		if lineCount >= availableLines {
			break
		}
		printTask(t, time.Since(t.StartTime).Round(time.Second), styleMessage(t.Status, t.Message))
	}
	for _, t := range pending {
		if lineCount >= availableLines {
			break
		}
		printTask(t, 0, pendingStyle.Render("Waiting..."))
	}
	if len(completed) > 10 && lineCount < availableLines {
		fmt.Println(infoStyle.Render(fmt.Sprintf("%s%d tasks completed with varying hidden status ...", strings.Repeat(" ", 2), len(completed)-8)))
		completed = completed[len(completed)-8:]
		lineCount++
	}
	for _, t := range completed {
		if lineCount >= availableLines {
			break
		}
		printTask(t, t.LastUpdated.Sub(t.StartTime).Round(time.Second), styleMessage(t.Status, t.Message))
	}
	m.numLines = lineCount
}

func (m *Manager) StartDisplay() {
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !m.plain {
					m.updateDisplay()
				}
			case <-m.doneCh:
				if !m.plain {
					m.updateDisplay()
				}
				m.ShowSummary()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
}

func (m *Manager) displayErrors() {
	if len(m.errors) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(strings.Repeat(" ", 2) + errorStyle.Bold(true).Render("Errors:"))
	for i, err := range m.errors {
		fmt.Printf("%s%s %s %s\n",
			strings.Repeat(" ", 2+2),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", err.Time.Format("15:04:05"))),
			errorStyle.Render(fmt.Sprintf("URL: %s", err.TaskURL)))
		fmt.Printf("%s%s\n", strings.Repeat(" ", 2+4), errorStyle.Render(fmt.Sprintf("Error: %v", err.Error)))
	}
}

func (m *Manager) ShowSummary() {
	success, failures, total := m.Counts()
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	fmt.Println()
	fmt.Println(strings.Repeat(" ", 2) + success2Style.Render(fmt.Sprintf("Completed %d of %d", success, total)))
	if failures > 0 {
		fmt.Println(strings.Repeat(" ", 2) + errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, total)))
	}
	m.displayErrors()
	fmt.Println()
}
