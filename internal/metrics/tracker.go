// Package metrics implements the local typing tracker that feeds the race:
// given the target passage and the input typed so far, it derives the
// progress snapshot the peers exchange.
package metrics

import (
	"math"
	"time"

	"github.com/iamovi/KeysAndFingers/pkg/types"
)

// MinAccuracyToFinish blocks spammers from completing by mashing through
// the text: full-length input alone is not a finish.
const MinAccuracyToFinish = 70

// Tracker compares input-so-far against a fixed target text. It is not
// goroutine safe; the match loop is its only writer.
type Tracker struct {
	text      []rune
	input     []rune
	startedAt time.Time
	now       func() time.Time
}

// NewTracker starts tracking against text. The clock starts on the first
// keystroke, not on construction.
func NewTracker(text string) *Tracker {
	return &Tracker{text: []rune(text), now: time.Now}
}

// SetClock replaces the time source. Tests only.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

// SetInput records the full input typed so far.
func (t *Tracker) SetInput(input string) {
	t.input = []rune(input)
	if t.startedAt.IsZero() && len(t.input) > 0 {
		t.startedAt = t.now()
	}
}

// Reset clears input and the clock for a rematch on a new passage.
func (t *Tracker) Reset(text string) {
	t.text = []rune(text)
	t.input = nil
	t.startedAt = time.Time{}
}

// Snapshot derives the current PlayerProgress. FinishTime is left nil; the
// state machine stamps it when it accepts the finish.
func (t *Tracker) Snapshot() types.PlayerProgress {
	correct, incorrect := 0, 0
	for i, r := range t.input {
		if i < len(t.text) && t.text[i] == r {
			correct++
		} else {
			incorrect++
		}
	}

	accuracy := 100
	if attempts := correct + incorrect; attempts > 0 {
		accuracy = int(math.Round(float64(correct) / float64(attempts) * 100))
	}

	progress := 0
	if len(t.text) > 0 {
		progress = int(math.Round(float64(len(t.input)) / float64(len(t.text)) * 100))
		if progress > 100 {
			progress = 100
		}
	}

	var elapsed float64
	if !t.startedAt.IsZero() {
		elapsed = t.now().Sub(t.startedAt).Seconds()
	}

	wpm := 0
	if elapsed > 0 {
		wpm = int(math.Round(float64(correct) / 5 / (elapsed / 60)))
	}

	finished := len(t.input) >= len(t.text) && len(t.input) > 0 && accuracy >= MinAccuracyToFinish

	return types.PlayerProgress{
		Progress:       progress,
		WPM:            wpm,
		Accuracy:       accuracy,
		CorrectChars:   correct,
		IncorrectChars: incorrect,
		ElapsedTime:    elapsed,
		Finished:       finished,
	}
}
