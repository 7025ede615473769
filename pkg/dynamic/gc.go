package dynamic

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/charmbracelet/log"

	"github.com/bastiangx/lexidict/pkg/format"
)

// Compact rewrites the whole dictionary, dropping deleted terminals and
// moved-away slack and re-linking the remaining content contiguously.
// Terminal ids are renumbered, so bigram targets are resolved to surface
// forms first and re-bound after the rewrite. The engine is flagged busy for
// the duration; large mutations arriving meanwhile fail fast with ErrBusy.
func (e *Engine) Compact() error {
	e.busy = true
	defer func() { e.busy = false }()

	d := e.dict
	live := roaring.New()
	var specs []format.WordSpec

	err := d.Iterate(func(we format.WordEntry) bool {
		n := we.Node
		if n.Status != format.StatusLive {
			return true
		}
		live.Add(uint32(n.TerminalID))
		freq, level, count, ts := d.Tables.DecayEntry(n.TerminalID)
		spec := format.WordSpec{
			Word:        we.Word,
			Freq:        freq,
			NotAWord:    n.NotAWord,
			Blacklisted: n.Blacklisted,
			Level:       level,
			Count:       count,
			Timestamp:   ts,
			Shortcuts:   d.Tables.Shortcuts(n.TerminalID),
		}
		specs = append(specs, spec)
		return true
	})
	if err != nil {
		return err
	}

	// second pass binds bigrams, now that the live set is known: targets that
	// were deleted or never survived drop out here
	for i := range specs {
		n, err := d.FindWordPosition(specs[i].Word)
		if err != nil {
			continue
		}
		for _, bg := range d.Tables.Bigrams(n.TerminalID) {
			if !live.Contains(uint32(bg.TargetID)) {
				continue
			}
			pos := d.Tables.NodePos(bg.TargetID)
			target, err := d.WordAt(pos)
			if err != nil {
				log.Warnf("gc: unresolvable bigram target id %d: %v", bg.TargetID, err)
				continue
			}
			specs[i].Bigrams = append(specs[i].Bigrams, format.WordBigram{
				Target:    target,
				Freq:      bg.Freq,
				Timestamp: bg.Timestamp,
				Level:     bg.Level,
				Count:     bg.Count,
			})
		}
	}

	rebuilt, err := format.Build(d.Options(), d.Header.Locale(), specs)
	if err != nil {
		return err
	}
	// the dictionary keeps its identity: header attributes carry over
	rebuilt.Header = d.Header

	before := d.Body.Len()
	e.dict = rebuilt
	e.writesSinceGC = 0
	log.Debugf("gc: %d words, body %d -> %d bytes", len(specs), before, rebuilt.Body.Len())
	return nil
}

// Flush persists the dictionary to path, compacting first when the entry
// count crossed the GC threshold. The write goes to a temporary name and is
// renamed into place.
func (e *Engine) Flush(path string) error {
	if e.NeedsGC() {
		if err := e.Compact(); err != nil {
			return err
		}
	}
	return format.Save(e.dict, path)
}
