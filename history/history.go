// Package history records the worst severity observed during a run.
package history

import (
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("bibtex.history")

// Level is an ordered severity. A run's level only increases.
type Level int

const (
	Spotless Level = iota
	WarningIssued
	ErrorIssued
	FatalError
	Aborted
)

var levelNames = map[Level]string{
	Spotless:      "spotless",
	WarningIssued: "warning issued",
	ErrorIssued:   "error issued",
	FatalError:    "fatal error",
	Aborted:       "aborted",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Message is one diagnostic recorded during a run.
type Message struct {
	Level Level
	Text  string
}

func (m Message) String() string {
	if m.Level == WarningIssued {
		return "Warning--" + m.Text
	}
	return m.Text
}

// ---------------------------------------------------------------------------
// Tracker
// ---------------------------------------------------------------------------

// Tracker holds the run's severity and its diagnostics.
type Tracker struct {
	level    Level
	warnings int
	errors   int
	messages []Message
}

// New returns a spotless tracker.
func New() *Tracker {
	return &Tracker{}
}

// Note raises the level to l if l is worse than the current level.
func (t *Tracker) Note(l Level) {
	if l > t.level {
		t.level = l
	}
}

// Level returns the worst level noted so far.
func (t *Tracker) Level() Level {
	return t.level
}

// Warn records a warning.
func (t *Tracker) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warning(msg)
	t.warnings++
	t.record(WarningIssued, msg)
}

// Error records a recoverable error.
func (t *Tracker) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Error(msg)
	t.errors++
	t.record(ErrorIssued, msg)
}

// Fatal records a fatal condition. The caller is expected to unwind.
func (t *Tracker) Fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Critical(msg)
	t.record(FatalError, msg)
}

// Abort records that the host cancelled the run.
func (t *Tracker) Abort(reason string) {
	log.Notice("run aborted", "reason", reason)
	t.record(Aborted, reason)
}

// Info records an informational message without changing the level.
func (t *Tracker) Info(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Info(msg)
	t.messages = append(t.messages, Message{Level: Spotless, Text: msg})
}

func (t *Tracker) record(l Level, msg string) {
	t.messages = append(t.messages, Message{Level: l, Text: msg})
	t.Note(l)
}

// Warnings returns how many warnings were recorded.
func (t *Tracker) Warnings() int { return t.warnings }

// Errors returns how many errors were recorded.
func (t *Tracker) Errors() int { return t.errors }

// Messages returns every recorded diagnostic in order.
func (t *Tracker) Messages() []Message {
	return t.messages
}

// Replay records a previously captured message, as if it had just happened.
func (t *Tracker) Replay(m Message) {
	switch m.Level {
	case WarningIssued:
		t.Warn("%s", m.Text)
	case ErrorIssued:
		t.Error("%s", m.Text)
	case FatalError:
		t.Fatal("%s", m.Text)
	default:
		t.Info("%s", m.Text)
	}
}

// Reset returns the tracker to spotless.
func (t *Tracker) Reset() {
	t.level = Spotless
	t.warnings = 0
	t.errors = 0
	t.messages = nil
}
