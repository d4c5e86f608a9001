package progress

import (
	"regexp"
	"strconv"
	"strings"
)

type Stage string

const (
	StagePreparing   Stage = "preparing"
	StageDownloading Stage = "downloading"
	StageProcessing  Stage = "processing"
	StageConverting  Stage = "converting"
	StageExtracting  Stage = "extracting"
	StageCompleted   Stage = "completed"
	StageError       Stage = "error"
	StageWarning     Stage = "warning"
	StageCancelled   Stage = "cancelled"
)

type EventKind int

const (
	EventStage EventKind = iota
	EventPercent
	EventItems
)

func (k EventKind) String() string {
	switch k {
	case EventStage:
		return "stage"
	case EventPercent:
		return "percent"
	case EventItems:
		return "items"
	}
	return "unknown"
}

type Event struct {
	Kind    EventKind
	Stage   Stage
	Message string
	Percent int
	Done    int
	Total   int
}

// MaxMessage bounds the text carried by error and warning stage events.
const MaxMessage = 50

type stageRule struct {
	keywords []string
	stage    Stage
	message  string
}

// Rules are evaluated in order; the first rule with a matching keyword wins.
var stageRules = []stageRule{
	{[]string{"Downloading", "Download"}, StageDownloading, "Downloading..."},
	{[]string{"Processing", "Process"}, StageProcessing, "Processing..."},
	{[]string{"Converting", "Convert"}, StageConverting, "Converting..."},
	{[]string{"Extracting", "Extract"}, StageExtracting, "Extracting..."},
	{[]string{"Complete", "Finished", "Success"}, StageCompleted, "Download complete!"},
	{[]string{"Error", "Failed"}, StageError, ""},
}

var (
	percentPattern = regexp.MustCompile(`(\d+)%`)
	itemsPattern   = regexp.MustCompile(`(\d+)/(\d+)`)
)

// Translate turns one line of downloader output into progress events. It
// has no side effects. A line may produce a stage event, a percent event
// and an items event, in that order.
func Translate(line string) []Event {
	var events []Event
	if ev, ok := matchStage(line); ok {
		events = append(events, ev)
	}
	if m := percentPattern.FindStringSubmatch(line); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			events = append(events, Event{Kind: EventPercent, Percent: min(n, 100)})
		}
	}
	if m := itemsPattern.FindStringSubmatch(line); m != nil {
		done, err1 := strconv.Atoi(m[1])
		total, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil && total > 0 {
			events = append(events, Event{Kind: EventItems, Done: done, Total: total})
		}
	}
	return events
}

func matchStage(line string) (Event, bool) {
	for _, rule := range stageRules {
		for _, kw := range rule.keywords {
			if !strings.Contains(line, kw) {
				continue
			}
			msg := rule.message
			if rule.stage == StageError {
				msg = "Error: " + Truncate(line, MaxMessage)
			}
			return Event{Kind: EventStage, Stage: rule.stage, Message: msg}, true
		}
	}
	return Event{}, false
}

// Warning builds the stage event used for stderr lines that match no rule.
func Warning(line string) Event {
	return Event{Kind: EventStage, Stage: StageWarning, Message: "Warning: " + Truncate(line, MaxMessage)}
}

// Truncate cuts s to n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
