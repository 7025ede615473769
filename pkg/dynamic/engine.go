// Package dynamic mutates an existing binary trie buffer in place: word
// insertion, deletion, bigram and shortcut updates, and the compaction pass
// that reclaims space left behind by deleted and moved groups.
//
// Every mutation is expressed as appends to the tail of the body plus
// fixed-width flag and address patches on existing bytes. Bytes are never
// shifted, so a crash mid-mutation leaves a readable dictionary: either the
// patch landed and the appended material is reachable, or it did not and the
// appended material is dead slack for the next GC.
package dynamic

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/lexidict/pkg/decay"
	"github.com/bastiangx/lexidict/pkg/format"
)

// ErrBusy is returned when a large task (bulk load, GC) holds the engine and
// a mutation cannot be accepted.
var ErrBusy = errors.New("dynamic: engine busy with large task")

// Options tunes engine policy.
type Options struct {
	// GCEntryThreshold triggers compaction once the number of physical
	// terminal writes since the last GC exceeds it. Zero means 16384.
	GCEntryThreshold int

	// Decay tunes the forgetting curve applied to decayed inserts.
	Decay decay.Params
}

func (o Options) withDefaults() Options {
	if o.GCEntryThreshold <= 0 {
		o.GCEntryThreshold = 16384
	}
	return o
}

// WordProperty carries the optional attributes of an insert.
type WordProperty struct {
	NotAWord    bool
	Blacklisted bool
	Shortcuts   []format.Shortcut
}

// Engine performs dynamic updates on one dynamic-generation dictionary.
// It is not safe for concurrent use; the facilitator serializes all access
// through the per-dictionary task queue.
type Engine struct {
	dict *format.Dictionary
	opts Options

	// physical terminal writes since the last GC, the GC trigger metric
	writesSinceGC int
	busy          bool
}

// NewEngine wraps a dynamic dictionary. Static dictionaries are rejected.
func NewEngine(d *format.Dictionary, opts Options) (*Engine, error) {
	if !d.Options().SupportsDynamicUpdate || d.Tables == nil {
		return nil, format.ErrUnsupportedVersion
	}
	return &Engine{dict: d, opts: opts.withDefaults()}, nil
}

// Dict returns the underlying dictionary.
func (e *Engine) Dict() *format.Dictionary {
	return e.dict
}

// SetBusy flags the engine as running a large task. While set, mutations
// fail fast with ErrBusy instead of queueing behind the task.
func (e *Engine) SetBusy(busy bool) {
	e.busy = busy
}

// InsertWord inserts or updates word with the given unigram frequency.
// The four divergence cases from the walk each resolve with appends plus
// address patches only.
func (e *Engine) InsertWord(word string, freq int, prop WordProperty) error {
	if e.busy {
		return ErrBusy
	}
	if word == "" {
		return format.ErrNotFound
	}
	e.maybeCompact()
	if err := e.insert([]rune(word), freq, prop); err != nil {
		return err
	}
	e.writesSinceGC++
	return nil
}

// DeleteWord marks word's terminal deleted. Space is reclaimed by the next
// GC, not here.
func (e *Engine) DeleteWord(word string) error {
	if e.busy {
		return ErrBusy
	}
	n, err := e.dict.FindWordPosition(word)
	if err != nil {
		return err
	}
	if n.Status == format.StatusDeleted {
		return format.ErrNotFound
	}
	return e.dict.MarkDeleted(&n)
}

// AddBigram records or updates the (prev -> next) bigram with the given
// frequency. Both words must already be terminals.
func (e *Engine) AddBigram(prev, next string, freq int) error {
	if e.busy {
		return ErrBusy
	}
	pn, err := e.dict.FindWordPosition(prev)
	if err != nil {
		return err
	}
	nn, err := e.dict.FindWordPosition(next)
	if err != nil {
		return err
	}
	var ts int64
	if e.dict.Options().HasTimestamps {
		ts = time.Now().Unix()
	}
	e.dict.Tables.AddBigram(pn.TerminalID, nn.TerminalID, freq, ts, 0, 0)
	return e.dict.SetAttributeFlags(&pn, true, false)
}

// AddShortcut records a shortcut target on word's terminal.
func (e *Engine) AddShortcut(word, target string, freq int) error {
	if e.busy {
		return ErrBusy
	}
	n, err := e.dict.FindWordPosition(word)
	if err != nil {
		return err
	}
	e.dict.Tables.AddShortcut(n.TerminalID, target, freq)
	return e.dict.SetAttributeFlags(&n, false, true)
}

// ObserveWord applies one decayed observation to word, inserting it at the
// curve's entry frequency when absent. This is the user-history path.
func (e *Engine) ObserveWord(word string, isValid bool, now time.Time) error {
	if e.busy {
		return ErrBusy
	}
	e.maybeCompact()
	n, err := e.dict.FindWordPosition(word)
	if errors.Is(err, format.ErrNotFound) {
		entry := decay.Observe(decay.Entry{}, isValid, e.opts.Decay)
		if err := e.insert([]rune(word), entry.Freq(e.opts.Decay), WordProperty{NotAWord: !isValid}); err != nil {
			return err
		}
		n, err = e.dict.FindWordPosition(word)
		if err != nil {
			return err
		}
		e.dict.Tables.SetDecayEntry(n.TerminalID, entry.Freq(e.opts.Decay), entry.Level, entry.Count, now.Unix())
		e.writesSinceGC++
		return nil
	}
	if err != nil {
		return err
	}

	_, level, count, ts := e.dict.Tables.DecayEntry(n.TerminalID)
	elapsed := time.Duration(0)
	if ts > 0 {
		elapsed = now.Sub(time.Unix(ts, 0))
	}
	entry := decay.NextFrequency(decay.Entry{Level: level, Count: count}, 1, isValid, elapsed, e.opts.Decay)
	e.dict.Tables.SetDecayEntry(n.TerminalID, entry.Freq(e.opts.Decay), entry.Level, entry.Count, now.Unix())
	return nil
}

// ObserveBigram applies one decayed observation to the (prev -> next) bigram.
func (e *Engine) ObserveBigram(prev, next string, isValid bool, now time.Time) error {
	if e.busy {
		return ErrBusy
	}
	pn, err := e.dict.FindWordPosition(prev)
	if err != nil {
		return err
	}
	nn, err := e.dict.FindWordPosition(next)
	if err != nil {
		return err
	}

	var existing *format.Bigram
	for _, bg := range e.dict.Tables.Bigrams(pn.TerminalID) {
		if bg.TargetID == nn.TerminalID {
			b := bg
			existing = &b
			break
		}
	}
	entry := decay.Entry{}
	elapsed := time.Duration(0)
	if existing != nil {
		entry = decay.Entry{Level: existing.Level, Count: existing.Count}
		if existing.Timestamp > 0 {
			elapsed = now.Sub(time.Unix(existing.Timestamp, 0))
		}
	}
	entry = decay.NextFrequency(entry, 1, isValid, elapsed, e.opts.Decay)
	e.dict.Tables.AddBigram(pn.TerminalID, nn.TerminalID,
		entry.Freq(e.opts.Decay), now.Unix(), entry.Level, entry.Count)
	return e.dict.SetAttributeFlags(&pn, true, false)
}

// DecaySweep ages every stored entry against now, without observations.
// Entries that decay to nothing become not-a-word so GC can drop them.
func (e *Engine) DecaySweep(now time.Time) error {
	if e.busy {
		return ErrBusy
	}
	var sweepErr error
	err := e.dict.Iterate(func(we format.WordEntry) bool {
		n := we.Node
		if n.Status != format.StatusLive || n.TerminalID < 0 {
			return true
		}
		_, level, count, ts := e.dict.Tables.DecayEntry(n.TerminalID)
		if ts == 0 {
			return true
		}
		entry := decay.NextFrequency(decay.Entry{Level: level, Count: count}, 0,
			!n.NotAWord, now.Sub(time.Unix(ts, 0)), e.opts.Decay)
		e.dict.Tables.SetDecayEntry(n.TerminalID, entry.Freq(e.opts.Decay), entry.Level, entry.Count, ts)
		if !entry.IsAlive() {
			if err := e.dict.MarkDeleted(&n); err != nil {
				sweepErr = err
				return false
			}
			log.Debugf("decayed out %q", we.Word)
		}
		return true
	})
	if err != nil {
		return err
	}
	return sweepErr
}

// NeedsGC reports whether enough physical entries were written since the
// last compaction to cross the policy threshold. Every write may leave moved
// or superseded groups behind, so the write count bounds the slack in the
// body.
func (e *Engine) NeedsGC() bool {
	return e.writesSinceGC > e.opts.GCEntryThreshold
}

// maybeCompact runs GC before a mutation once the write count crosses the
// threshold, so the body cannot grow unboundedly in a session that never
// flushes. A failed compaction leaves the slack for the next attempt.
func (e *Engine) maybeCompact() {
	if !e.NeedsGC() {
		return
	}
	if err := e.Compact(); err != nil {
		log.Warnf("gc before insert: %v", err)
	}
}
