// Package texts provides the race passages, bucketed by difficulty.
package texts

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// Difficulty selects a passage bucket.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

var ErrNoPassages = errors.New("no passages for difficulty")

// ParseDifficulty maps a wire string onto a known bucket, defaulting to
// Medium for anything unrecognized.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(s) {
	case Easy, Medium, Hard:
		return Difficulty(s)
	default:
		return Medium
	}
}

// Provider hands out random passages, never repeating the immediately
// preceding passage for the same difficulty.
type Provider struct {
	mu   sync.Mutex
	rng  *rand.Rand
	last map[Difficulty]int
}

// NewProvider seeds from the clock.
func NewProvider() *Provider {
	return NewSeededProvider(time.Now().UnixNano())
}

// NewSeededProvider takes an explicit seed so tests are reproducible.
func NewSeededProvider(seed int64) *Provider {
	return &Provider{
		rng:  rand.New(rand.NewSource(seed)),
		last: make(map[Difficulty]int),
	}
}

// Random returns a passage for the difficulty.
func (p *Provider) Random(d Difficulty) (string, error) {
	bucket := passages[d]
	if len(bucket) == 0 {
		return "", ErrNoPassages
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(bucket) == 1 {
		p.last[d] = 0
		return bucket[0], nil
	}

	last, seen := p.last[d]
	idx := p.rng.Intn(len(bucket))
	for seen && idx == last {
		idx = p.rng.Intn(len(bucket))
	}
	p.last[d] = idx
	return bucket[idx], nil
}

// Count reports how many passages a difficulty holds.
func Count(d Difficulty) int { return len(passages[d]) }
