// Package decay implements the forgetting-curve model that ages personalized
// dictionary entries. A stored frequency is a (level, count) pair packed into
// one byte of headroom: observations raise the count and eventually the
// level, elapsed time lowers the count back toward zero. Entries that decay
// to nothing become prunable by the next compaction pass.
package decay

import "time"

// Tuning constants for the curve. The multiplier between levels and the
// halflife are carried over from the original tuning; treat them as
// configuration, not values to re-derive.
const (
	MaxLevel = 3

	// CountsPerLevel observations at one level promote the entry to the next.
	CountsPerLevel = 64

	// DefaultHalflife is the elapsed time that steps the count down once.
	DefaultHalflife = 300 * time.Hour

	// InvalidDivisor accelerates decay for words never confirmed as real
	// words, so typos age out quickly.
	InvalidDivisor = 4
)

// Params tunes a decay curve. Zero values fall back to the defaults.
type Params struct {
	Halflife       time.Duration
	MaxLevel       int
	CountsPerLevel int
	InvalidDivisor int
}

func (p Params) withDefaults() Params {
	if p.Halflife <= 0 {
		p.Halflife = DefaultHalflife
	}
	if p.MaxLevel <= 0 {
		p.MaxLevel = MaxLevel
	}
	if p.CountsPerLevel <= 0 {
		p.CountsPerLevel = CountsPerLevel
	}
	if p.InvalidDivisor <= 0 {
		p.InvalidDivisor = InvalidDivisor
	}
	return p
}

// Entry is the decayed state of one unigram or bigram.
type Entry struct {
	Level int
	Count int
}

// Freq maps the entry onto the one-byte frequency the search engine ranks
// with. Level dominates; count breaks ties within a level.
func (e Entry) Freq(p Params) int {
	p = p.withDefaults()
	if e.Level <= 0 && e.Count <= 0 {
		return 0
	}
	span := 255 / (p.MaxLevel + 1)
	f := e.Level*span + e.Count*span/p.CountsPerLevel
	if f > 255 {
		f = 255
	}
	if f < 1 {
		// alive entries always outrank absent ones
		f = 1
	}
	return f
}

// IsAlive reports whether the entry still contributes suggestions.
func (e Entry) IsAlive() bool {
	return e.Level > 0 || e.Count > 0
}

// Observe reinforces the entry with one more observation. Valid observations
// climb the curve; invalid ones (the word was typed but never confirmed
// against any dictionary) only tick the count at level zero.
func Observe(e Entry, isValid bool, p Params) Entry {
	p = p.withDefaults()
	if !isValid && e.Level == 0 {
		if e.Count < p.CountsPerLevel-1 {
			e.Count++
		}
		return e
	}
	e.Count++
	if e.Count >= p.CountsPerLevel {
		if e.Level < p.MaxLevel {
			e.Level++
		}
		e.Count = 0
	}
	return e
}

// Elapse applies the time-based side of the curve: every halflife the count
// steps down, and an exhausted count demotes the level. Invalid entries use
// the accelerated divisor.
func Elapse(e Entry, elapsed time.Duration, isValid bool, p Params) Entry {
	p = p.withDefaults()
	halflife := p.Halflife
	if !isValid {
		halflife /= time.Duration(p.InvalidDivisor)
	}
	if halflife <= 0 || elapsed <= 0 {
		return e
	}
	steps := int(elapsed / halflife)
	for i := 0; i < steps && e.IsAlive(); i++ {
		if e.Count > 0 {
			e.Count--
			continue
		}
		if e.Level > 0 {
			e.Level--
			e.Count = p.CountsPerLevel - 1
		}
	}
	return e
}

// NextFrequency is the engine-facing contract: given the stored one-byte
// frequency's decay state, the number of new observations, validity and the
// elapsed time since the last observation, produce the new state.
func NextFrequency(e Entry, observed int, isValid bool, elapsed time.Duration, p Params) Entry {
	e = Elapse(e, elapsed, isValid, p)
	for i := 0; i < observed; i++ {
		e = Observe(e, isValid, p)
	}
	return e
}
