package dict

import (
	"errors"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"

	"github.com/bastiangx/lexidict/pkg/dynamic"
	"github.com/bastiangx/lexidict/pkg/format"
	"github.com/bastiangx/lexidict/pkg/search"
)

var errClosed = errors.New("dict: dictionary closed")

// stagedEntry accumulates history observations for one word until they are
// flushed into the binary dictionary.
type stagedEntry struct {
	count int
	valid bool
	prevs map[string]int
}

// managedDict is one member dictionary of a group. Every method runs on the
// member's task queue, so no field needs a lock.
type managedDict struct {
	typ      Type
	locale   string
	path     string
	state    State
	dict     *format.Dictionary
	engine   *dynamic.Engine
	scorer   *search.Scorer
	searchP  search.Params
	dynOpts  dynamic.Options
	capacity int

	// observations staged in memory until the next reload or flush
	staging *patricia.Trie
	staged  int

	dirty    bool
	external bool

	log *log.Logger
}

func newManagedDict(typ Type, locale, path string, searchP search.Params,
	dynOpts dynamic.Options, capacity int, logger *log.Logger) *managedDict {
	return &managedDict{
		typ:      typ,
		locale:   locale,
		path:     path,
		searchP:  searchP,
		dynOpts:  dynOpts,
		capacity: capacity,
		staging:  patricia.NewTrie(),
		log:      logger,
	}
}

// ensureReady drives the state machine toward Ready, loading or reloading
// as needed. Closed is terminal.
func (m *managedDict) ensureReady() error {
	if m.state == StateClosed {
		return errClosed
	}
	if m.state == StateUnloaded {
		m.state = StateLoading
		m.open()
		m.state = StateReady
	}
	if m.state == StateReady && (m.dirty || m.external) {
		m.state = StateStale
	}
	if m.state == StateStale {
		m.state = StateReloading
		if m.external {
			// an external party replaced the file; reopen, then replay
			// anything learned since
			m.open()
			m.external = false
		}
		m.applyStaging()
		m.state = StateReady
	}
	m.syncEngineDict()
	return nil
}

// syncEngineDict re-points the read path at the engine's dictionary.
// Compaction rebuilds the dictionary wholesale and swaps it inside the
// engine, so after any mutation the engine's copy is the live one.
func (m *managedDict) syncEngineDict() {
	if m.engine == nil || m.engine.Dict() == m.dict {
		return
	}
	m.dict = m.engine.Dict()
	m.scorer = search.NewScorer(m.dict, m.searchP)
}

// open loads the on-disk dictionary, falling back to a fresh empty one on
// any header or decode failure. A bad magic or unsupported version deletes
// the file outright; corruption keeps the bytes for post-mortem but serves
// empty content.
func (m *managedDict) open() {
	d, err := format.Load(m.path)
	switch {
	case err == nil:
	case errors.Is(err, format.ErrBadMagic) || errors.Is(err, format.ErrUnsupportedVersion):
		m.log.Warnf("%s dictionary at %s unreadable (%v), recreating", m.typ, m.path, err)
		if rmErr := os.RemoveAll(m.path); rmErr != nil {
			m.log.Errorf("removing %s: %v", m.path, rmErr)
		}
		d = format.New(format.DynamicOptions(), m.locale)
		m.dirty = true
	case errors.Is(err, os.ErrNotExist):
		d = format.New(format.DynamicOptions(), m.locale)
	default:
		m.log.Errorf("loading %s dictionary at %s: %v, serving empty", m.typ, m.path, err)
		d = format.New(format.DynamicOptions(), m.locale)
		m.dirty = true
	}

	m.dict = d
	m.engine = nil
	if d.Options().SupportsDynamicUpdate {
		eng, err := dynamic.NewEngine(d, m.dynOpts)
		if err != nil {
			m.log.Errorf("engine for %s: %v", m.path, err)
		} else {
			m.engine = eng
		}
	}
	m.scorer = search.NewScorer(d, m.searchP)
}

// query runs one suggestion lookup. Failures yield no suggestions, never an
// error.
func (m *managedDict) query(c *search.Composer, max int) []search.Suggestion {
	if err := m.ensureReady(); err != nil {
		return nil
	}
	return m.scorer.GetSuggestions(c, max)
}

// learn stages one committed-word observation. The staging trie drains into
// the engine on the next reload, or immediately once it reaches capacity.
func (m *managedDict) learn(word string, prevWords []string, isValid bool) {
	if m.state == StateClosed {
		return
	}
	entry, _ := m.staging.Get(patricia.Prefix(word)).(*stagedEntry)
	if entry == nil {
		entry = &stagedEntry{prevs: make(map[string]int)}
		m.staging.Insert(patricia.Prefix(word), entry)
		m.staged++
	}
	entry.count++
	entry.valid = entry.valid || isValid
	if len(prevWords) > 0 {
		entry.prevs[prevWords[len(prevWords)-1]]++
	}

	m.dirty = true
	if m.state == StateReady {
		m.state = StateStale
	}
	if m.staged >= m.capacity {
		if err := m.ensureReady(); err != nil {
			m.log.Warnf("draining history for %s: %v", m.path, err)
		}
	}
}

// applyStaging replays staged observations into the dynamic engine and
// clears the trie.
func (m *managedDict) applyStaging() {
	if m.staged == 0 {
		m.dirty = false
		return
	}
	if m.engine == nil {
		m.log.Debugf("%s dictionary is read-only, dropping %d staged words", m.typ, m.staged)
		m.resetStaging()
		return
	}
	now := time.Now()
	// words first so that bigrams between two words of the same batch find
	// both ends present
	err := m.staging.Visit(func(prefix patricia.Prefix, item patricia.Item) error {
		entry := item.(*stagedEntry)
		word := string(prefix)
		for i := 0; i < entry.count; i++ {
			if err := m.engine.ObserveWord(word, entry.valid, now); err != nil {
				m.log.Warnf("observing %q: %v", word, err)
				break
			}
		}
		return nil
	})
	if err != nil {
		m.log.Warnf("draining staging trie: %v", err)
	}
	err = m.staging.Visit(func(prefix patricia.Prefix, item patricia.Item) error {
		entry := item.(*stagedEntry)
		word := string(prefix)
		for prev, n := range entry.prevs {
			// the engine's dictionary, not m.dict: an observation in the
			// first pass may have compacted mid-drain
			if _, err := m.engine.Dict().FindWordPosition(prev); err != nil {
				continue
			}
			for i := 0; i < n; i++ {
				if err := m.engine.ObserveBigram(prev, word, entry.valid, now); err != nil {
					m.log.Warnf("observing bigram %q %q: %v", prev, word, err)
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		m.log.Warnf("draining staging bigrams: %v", err)
	}
	m.resetStaging()
}

func (m *managedDict) resetStaging() {
	m.staging = patricia.NewTrie()
	m.staged = 0
	m.dirty = false
}

// forget removes word from both the staging trie and the engine. Space
// comes back at the next compaction.
func (m *managedDict) forget(word string) {
	if m.ensureReady() != nil {
		return
	}
	if m.staging.Delete(patricia.Prefix(word)) {
		m.staged--
	}
	if m.engine == nil {
		return
	}
	if err := m.engine.DeleteWord(word); err != nil && !errors.Is(err, format.ErrNotFound) {
		m.log.Warnf("forgetting %q: %v", word, err)
	}
}

// isValid reports whether word is stored here, either on disk or staged.
func (m *managedDict) isValid(word string) bool {
	if m.ensureReady() != nil {
		return false
	}
	n, err := m.dict.FindWordPosition(word)
	if err == nil && n.IsValidTerminal() {
		return true
	}
	if entry, _ := m.staging.Get(patricia.Prefix(word)).(*stagedEntry); entry != nil {
		return entry.valid
	}
	return false
}

// dump returns every live word with its frequency, staged content included.
func (m *managedDict) dump() map[string]int {
	if m.ensureReady() != nil {
		return nil
	}
	out := make(map[string]int)
	err := m.dict.Iterate(func(e format.WordEntry) bool {
		if e.Node.IsValidTerminal() {
			out[e.Word] = m.dict.FrequencyOf(&e.Node)
		}
		return true
	})
	if err != nil {
		m.log.Warnf("dumping %s: %v", m.path, err)
	}
	return out
}

// flush persists pending mutations, compacting first when the engine's
// policy asks for it.
func (m *managedDict) flush() {
	if m.ensureReady() != nil {
		return
	}
	if m.engine == nil {
		return
	}
	if err := m.engine.Flush(m.path); err != nil {
		m.log.Errorf("flushing %s: %v", m.path, err)
	}
	m.syncEngineDict()
}

// close flushes and retires the member.
func (m *managedDict) close() {
	if m.state == StateUnloaded || m.state == StateClosed {
		m.state = StateClosed
		return
	}
	m.flush()
	m.state = StateClosed
	m.dict = nil
	m.engine = nil
	m.scorer = nil
}
