package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/vinayprograms/codeagent/internal/logging"
)

// Progress types the coding agent is instructed to emit. Other values are
// accepted as-is.
const (
	TypeAnalyzing  = "analyzing"
	TypePlanning   = "planning"
	TypeInstalling = "installing"
	TypeCreating   = "creating"
	TypeUpdating   = "updating"
	TypeTesting    = "testing"
	TypeComplete   = "complete"
)

// StatusComplete is the current status once the task summary is seen.
const StatusComplete = "complete"

var (
	statusPattern  = regexp.MustCompile(`<status type="(\w+)">([\s\S]*?)</status>`)
	summaryPattern = regexp.MustCompile(`<task_summary>([\s\S]*?)</task_summary>`)
)

// ParseStatusTags returns every status tag in content, in document order.
func ParseStatusTags(content string, now time.Time) []ProgressStatus {
	matches := statusPattern.FindAllStringSubmatch(content, -1)
	statuses := make([]ProgressStatus, 0, len(matches))
	for _, m := range matches {
		statuses = append(statuses, ProgressStatus{
			Type:      m[1],
			Message:   strings.TrimSpace(m[2]),
			Timestamp: now,
		})
	}
	return statuses
}

// ExtractTaskSummary returns the trimmed body of the first task_summary tag.
func ExtractTaskSummary(content string) (string, bool) {
	m := summaryPattern.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// Tracker updates run state from each agent turn.
type Tracker struct {
	logger *logging.Logger
	now    func() time.Time
}

// NewTracker creates a tracker.
func NewTracker(logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.New()
	}
	return &Tracker{logger: logger, now: time.Now}
}

// OnResponse records status tags from text and, when text carries a non-empty
// task summary, stores the whole text as the run summary. It never fails: a
// panic while parsing is logged and the turn proceeds.
func (t *Tracker) OnResponse(ctx context.Context, st *State, text string) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("Error processing AI response", map[string]interface{}{
				"error": fmt.Sprint(r),
			})
		}
	}()

	if text == "" || st == nil {
		return
	}

	if statuses := ParseStatusTags(text, t.now()); len(statuses) > 0 {
		st.Progress = append(st.Progress, statuses...)
		latest := statuses[len(statuses)-1]
		st.CurrentStatus = fmt.Sprintf("%s: %s", latest.Type, latest.Message)
		t.logger.Agent(fmt.Sprintf("Status: %s - %s", latest.Type, latest.Message))
	}

	if summary, ok := ExtractTaskSummary(text); ok && summary != "" {
		st.Summary = text
		st.CurrentStatus = StatusComplete
		t.logger.Agent("Task completed with summary")
	}
}
