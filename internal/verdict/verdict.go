// Package verdict decides a race between two independently-reported metric
// snapshots. Both clients run the same comparison over the same two
// snapshots, so they reach the same verdict without a referee.
package verdict

import (
	"math"

	"github.com/iamovi/KeysAndFingers/pkg/types"
)

// AccuracyFloor is the minimum accuracy for a finish to count. A player who
// mashes through the full text below this floor reports Finished but is not
// a legitimate finisher.
const AccuracyFloor = 70

// Outcome is the result of Compare, from self's point of view.
type Outcome int

const (
	Loss Outcome = -1
	Draw Outcome = 0
	Win  Outcome = 1
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Loss:
		return "loss"
	default:
		return "draw"
	}
}

// Invert flips an outcome to the opponent's point of view.
func (o Outcome) Invert() Outcome { return -o }

// Legitimate reports whether p finished at or above the accuracy floor.
func Legitimate(p types.PlayerProgress) bool {
	return p.Finished && p.Accuracy >= AccuracyFloor
}

// Compare ranks self against other. Priority order:
//
//  1. two legitimate finishers: earlier finish time, then wpm, then accuracy
//  2. one legitimate finisher beats anything else outright
//  3. two illegitimate finishers: higher accuracy only
//  4. any finisher beats a non-finisher
//  5. mid-race (neither finished): wpm, then accuracy, then correct chars
//
// Rule 2 defeats reaching the end of the text on random input; rule 3 keeps
// the double-spam case deterministic instead of a silent draw.
func Compare(self, other types.PlayerProgress) Outcome {
	selfLegit, otherLegit := Legitimate(self), Legitimate(other)

	switch {
	case selfLegit && otherLegit:
		if o := cmp(finishMillis(other), finishMillis(self)); o != Draw {
			return o // earlier finish wins
		}
		if o := cmp(int64(self.WPM), int64(other.WPM)); o != Draw {
			return o
		}
		return cmp(int64(self.Accuracy), int64(other.Accuracy))

	case selfLegit:
		return Win
	case otherLegit:
		return Loss
	}

	switch {
	case self.Finished && other.Finished:
		return cmp(int64(self.Accuracy), int64(other.Accuracy))
	case self.Finished:
		return Win
	case other.Finished:
		return Loss
	}

	// Mid-race ranking, for live display only. Never a final verdict.
	if o := cmp(int64(self.WPM), int64(other.WPM)); o != Draw {
		return o
	}
	if o := cmp(int64(self.Accuracy), int64(other.Accuracy)); o != Draw {
		return o
	}
	return cmp(int64(self.CorrectChars), int64(other.CorrectChars))
}

func cmp(a, b int64) Outcome {
	switch {
	case a > b:
		return Win
	case a < b:
		return Loss
	default:
		return Draw
	}
}

func finishMillis(p types.PlayerProgress) int64 {
	// Finished implies a finish time; guard anyway so a malformed peer
	// snapshot ranks last rather than first.
	if p.FinishTime == nil {
		return math.MaxInt64
	}
	return *p.FinishTime
}
