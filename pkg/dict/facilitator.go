// Package dict orchestrates the dictionaries of the active locale: one main
// dictionary plus optional user, contacts, history, contextual and
// personalization members. Every member gets its own serial task queue, so
// mutations, reloads and compactions against one file never race, while
// different members answer queries in parallel.
package dict

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/sourcegraph/conc/pool"

	"github.com/bastiangx/lexidict/internal/exec"
	"github.com/bastiangx/lexidict/internal/logger"
	"github.com/bastiangx/lexidict/internal/utils"
	"github.com/bastiangx/lexidict/pkg/dynamic"
	"github.com/bastiangx/lexidict/pkg/search"
)

// Options configures a Facilitator.
type Options struct {
	// DataDir holds one subdirectory per locale, one dictionary per member
	// type inside it.
	DataDir string

	// QueryTimeout bounds how long a suggestion query waits for one busy
	// member before going on without it. Zero means 100ms.
	QueryTimeout time.Duration

	// HistoryCapacity is how many distinct staged words a learning member
	// holds before draining into its engine. Zero means 64.
	HistoryCapacity int

	Search  search.Params
	Dynamic dynamic.Options
}

func (o Options) withDefaults() Options {
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = 100 * time.Millisecond
	}
	if o.HistoryCapacity <= 0 {
		o.HistoryCapacity = 64
	}
	return o
}

// Group is the set of member dictionaries for one locale.
type Group struct {
	Locale  string
	members map[Type]*managedDict
	order   []Type
}

// Facilitator owns the active group and the task-queue registry behind it.
type Facilitator struct {
	opts Options
	reg  *exec.Registry

	mu    sync.RWMutex
	group *Group

	watcher   *fsnotify.Watcher
	watchDone chan struct{}

	log *log.Logger
}

// NewFacilitator builds a facilitator with no active locale. Call
// ResetDictionaries to load one.
func NewFacilitator(opts Options) (*Facilitator, error) {
	f := &Facilitator{
		opts: opts.withDefaults(),
		reg:  exec.NewRegistry(),
		log:  logger.New("dict"),
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		// dictionary replacement detection degrades to manual reloads
		f.log.Warnf("fsnotify unavailable: %v", err)
	} else {
		f.watcher = w
		f.watchDone = make(chan struct{})
		go f.watchLoop()
	}
	return f, nil
}

// Registry exposes the task queues, mainly for callers that need write
// timestamps.
func (f *Facilitator) Registry() *exec.Registry {
	return f.reg
}

// ResetDictionaries makes locale the active locale with the given member
// types. The new group is fully constructed before the old one is retired,
// so there is never a window with zero dictionaries.
func (f *Facilitator) ResetDictionaries(locale string, enabled []Type) {
	if len(enabled) == 0 {
		enabled = AllTypes
	}
	localeDir := filepath.Join(f.opts.DataDir, locale)
	if err := utils.EnsureDir(localeDir); err != nil {
		f.log.Errorf("creating %s: %v", localeDir, err)
	}

	g := &Group{Locale: locale, members: make(map[Type]*managedDict)}
	for _, t := range AllTypes {
		if !typeEnabled(t, enabled) {
			continue
		}
		path := filepath.Join(localeDir, t.String())
		g.members[t] = newManagedDict(t, locale, path,
			f.opts.Search, f.opts.Dynamic, f.opts.HistoryCapacity, logger.New("dict/"+t.String()))
		g.order = append(g.order, t)
	}

	f.mu.Lock()
	old := f.group
	f.group = g
	f.mu.Unlock()

	if f.watcher != nil {
		if err := f.watcher.Add(localeDir); err != nil {
			f.log.Warnf("watching %s: %v", localeDir, err)
		}
		// dynamic members are directories of sidecar files one level below
		// the locale dir; watches are not recursive, so each needs its own
		for _, t := range g.order {
			p := g.members[t].path
			if info, err := os.Stat(p); err == nil && info.IsDir() {
				if err := f.watcher.Add(p); err != nil {
					f.log.Warnf("watching %s: %v", p, err)
				}
			}
		}
		if old != nil && old.Locale != locale {
			_ = f.watcher.Remove(filepath.Join(f.opts.DataDir, old.Locale))
			for _, t := range old.order {
				_ = f.watcher.Remove(old.members[t].path)
			}
		}
	}
	if old != nil {
		f.retire(old)
	}
}

func typeEnabled(t Type, enabled []Type) bool {
	for _, e := range enabled {
		if e == t {
			return true
		}
	}
	return false
}

func (f *Facilitator) retire(g *Group) {
	for _, t := range g.order {
		m := g.members[t]
		f.reg.Execute(m.path, m.close)
	}
}

func (f *Facilitator) snapshot() []*managedDict {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.group == nil {
		return nil
	}
	out := make([]*managedDict, 0, len(f.group.order))
	for _, t := range f.group.order {
		out = append(out, f.group.members[t])
	}
	return out
}

// GetSuggestions fans the query out across the group, merges by score and
// collapses case-folded duplicates. A member that is busy or slow simply
// contributes nothing this round.
func (f *Facilitator) GetSuggestions(typed string, prevWords []string, limit int) []search.Suggestion {
	members := f.snapshot()
	if len(members) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = f.opts.Search.MaxResults
	}
	if limit <= 0 {
		limit = search.DefaultParams().MaxResults
	}
	composer := search.NewComposer(typed, prevWords)

	p := pool.NewWithResults[[]search.Suggestion]()
	for _, m := range members {
		m := m
		p.Go(func() []search.Suggestion {
			res, ok := f.reg.ExecuteSync(m.path, f.opts.QueryTimeout, func() any {
				return m.query(composer, limit)
			})
			if !ok || res == nil {
				return nil
			}
			return res.([]search.Suggestion)
		})
	}

	var merged []search.Suggestion
	for _, list := range p.Wait() {
		merged = append(merged, list...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	filter := utils.NewSuggestionFilter(strings.ToLower(typed))
	out := merged[:0]
	for _, s := range merged {
		if !filter.ShouldInclude(s.Word) {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

// AddToUserHistory records a committed word on every learning member.
// Fire-and-forget: failures are logged on the member's queue, never
// reported here.
func (f *Facilitator) AddToUserHistory(word string, prevWords []string, isValid bool) {
	if word == "" {
		return
	}
	for _, m := range f.snapshot() {
		if !m.typ.learnsHistory() {
			continue
		}
		m := m
		f.reg.Execute(m.path, func() {
			m.learn(word, prevWords, isValid)
		})
	}
}

// RemoveFromUserHistory unlearns word on every learning member.
// Fire-and-forget like AddToUserHistory.
func (f *Facilitator) RemoveFromUserHistory(word string) {
	if word == "" {
		return
	}
	for _, m := range f.snapshot() {
		if !m.typ.learnsHistory() {
			continue
		}
		m := m
		f.reg.Execute(m.path, func() {
			m.forget(word)
		})
	}
}

// Info reports the active locale and the lifecycle state of every member.
func (f *Facilitator) Info() (string, map[string]string) {
	f.mu.RLock()
	g := f.group
	f.mu.RUnlock()
	if g == nil {
		return "", nil
	}
	states := make(map[string]string, len(g.order))
	for _, t := range g.order {
		m := g.members[t]
		res, ok := f.reg.ExecuteSync(m.path, f.opts.QueryTimeout, func() any {
			return m.state.String()
		})
		if !ok {
			res = "busy"
		}
		states[t.String()] = res.(string)
	}
	return g.Locale, states
}

// IsValidWord reports whether any member stores word.
func (f *Facilitator) IsValidWord(word string) bool {
	if word == "" {
		return false
	}
	for _, m := range f.snapshot() {
		m := m
		res, ok := f.reg.ExecuteSync(m.path, f.opts.QueryTimeout, func() any {
			return m.isValid(word)
		})
		if ok && res == true {
			return true
		}
	}
	return false
}

// DumpAllWords lists every stored word with its frequency for one member
// type. Debug and test surface only.
func (f *Facilitator) DumpAllWords(t Type) map[string]int {
	f.mu.RLock()
	g := f.group
	f.mu.RUnlock()
	if g == nil {
		return nil
	}
	m, ok := g.members[t]
	if !ok {
		return nil
	}
	res, found := f.reg.ExecuteSync(m.path, 10*time.Second, func() any {
		return m.dump()
	})
	if !found || res == nil {
		return nil
	}
	return res.(map[string]int)
}

// Flush persists pending mutations on every member. Repeated calls coalesce
// per member while one is still pending. A flush that will compact marks the
// member's queue as running a large task, so concurrent ExecuteSync callers
// fail fast instead of stalling behind the rebuild.
func (f *Facilitator) Flush() {
	for _, m := range f.snapshot() {
		m := m
		f.reg.ExecuteSuperseding(m.path, "flush", func() {
			if m.ensureReady() != nil {
				return
			}
			if m.engine != nil && m.engine.NeedsGC() {
				f.reg.SetLargeTask(m.path, true)
				defer f.reg.SetLargeTask(m.path, false)
			}
			m.flush()
		})
	}
}

// Close retires the active group, drains every queue and releases the
// watcher.
func (f *Facilitator) Close() {
	if f.watcher != nil {
		_ = f.watcher.Close()
		<-f.watchDone
	}
	f.mu.Lock()
	g := f.group
	f.group = nil
	f.mu.Unlock()
	if g != nil {
		f.retire(g)
	}
	f.reg.Shutdown()
}

// watchLoop marks a member stale when an external party replaces its file,
// so the next access reopens it. A member's own flush also trips this; the
// resulting reopen is redundant but harmless.
func (f *Facilitator) watchLoop() {
	defer close(f.watchDone)
	for {
		select {
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				f.watchNewMemberDir(ev.Name)
			}
			f.markExternal(ev.Name)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.log.Warnf("watcher: %v", err)
		}
	}
}

// watchNewMemberDir picks up a member directory created after the group was
// installed, typically the first flush of a personalization member. Without
// this the sidecar files inside it would change unseen.
func (f *Facilitator) watchNewMemberDir(name string) {
	for _, m := range f.snapshot() {
		if name != m.path {
			continue
		}
		if info, err := os.Stat(name); err != nil || !info.IsDir() {
			return
		}
		if err := f.watcher.Add(name); err != nil {
			f.log.Warnf("watching %s: %v", name, err)
		}
		return
	}
}

func (f *Facilitator) markExternal(name string) {
	for _, m := range f.snapshot() {
		m := m
		if name != m.path && filepath.Dir(name) != m.path {
			continue
		}
		f.reg.Execute(m.path, func() {
			if m.state == StateClosed || m.state == StateUnloaded {
				return
			}
			m.external = true
			if m.state == StateReady {
				m.state = StateStale
			}
			m.log.Debugf("externally modified, reload on next access")
		})
	}
}
