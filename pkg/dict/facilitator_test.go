package dict

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastiangx/lexidict/pkg/dynamic"
	"github.com/bastiangx/lexidict/pkg/format"
)

func seedMain(t *testing.T, dataDir, locale string, words []format.WordSpec) {
	t.Helper()
	d, err := format.Build(format.StaticOptions(), locale, words)
	require.NoError(t, err)
	dir := filepath.Join(dataDir, locale)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, format.Save(d, filepath.Join(dir, "main")))
}

func newTestFacilitator(t *testing.T, dataDir string, enabled []Type) *Facilitator {
	t.Helper()
	f, err := NewFacilitator(Options{DataDir: dataDir, QueryTimeout: 2 * time.Second})
	require.NoError(t, err)
	f.ResetDictionaries("en", enabled)
	return f
}

// drain waits for all pending tasks on every member queue.
func drain(f *Facilitator) {
	for _, m := range f.snapshot() {
		f.reg.ExecuteSync(m.path, 5*time.Second, func() any { return nil })
	}
}

var mainWords = []format.WordSpec{
	{Word: "cat", Freq: 150},
	{Word: "cats", Freq: 90},
	{Word: "dog", Freq: 200},
}

func TestSuggestionsFromMain(t *testing.T) {
	dir := t.TempDir()
	seedMain(t, dir, "en", mainWords)
	f := newTestFacilitator(t, dir, []Type{TypeMain})
	defer f.Close()

	got := f.GetSuggestions("ca", nil, 10)
	require.Len(t, got, 3)
	assert.Equal(t, "cat", got[0].Word)
	assert.Equal(t, "cats", got[1].Word)
	// reachable only through a proximity match plus a dropped character
	assert.Equal(t, "dog", got[2].Word)

	assert.True(t, f.IsValidWord("cat"))
	assert.False(t, f.IsValidWord("zebra"))
}

func TestLearnedWordsBecomeValid(t *testing.T) {
	f := newTestFacilitator(t, t.TempDir(), []Type{TypeHistory})
	defer f.Close()

	f.AddToUserHistory("zephyr", nil, true)
	assert.True(t, f.IsValidWord("zephyr"))
	assert.False(t, f.IsValidWord("breeze"))
}

func TestLearnedWordSuggested(t *testing.T) {
	f := newTestFacilitator(t, t.TempDir(), []Type{TypeHistory})
	defer f.Close()

	f.AddToUserHistory("zephyr", nil, true)
	got := f.GetSuggestions("zep", nil, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "zephyr", got[0].Word)

	dump := f.DumpAllWords(TypeHistory)
	assert.Contains(t, dump, "zephyr")
}

func TestInvalidWordsNotSuggested(t *testing.T) {
	f := newTestFacilitator(t, t.TempDir(), []Type{TypeHistory})
	defer f.Close()

	// typed but never confirmed against any dictionary
	f.AddToUserHistory("teh", nil, false)
	drain(f)
	assert.Empty(t, f.GetSuggestions("te", nil, 10))
}

func TestLearnedBigramRanksFirst(t *testing.T) {
	f := newTestFacilitator(t, t.TempDir(), []Type{TypeHistory})
	defer f.Close()

	f.AddToUserHistory("good", nil, true)
	f.AddToUserHistory("morning", []string{"good"}, true)
	drain(f)

	got := f.GetSuggestions("", []string{"good"}, 10)
	require.NotEmpty(t, got)
	assert.Equal(t, "morning", got[0].Word)
}

func TestFlushPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	f := newTestFacilitator(t, dir, []Type{TypeHistory})
	f.AddToUserHistory("zephyr", nil, true)
	f.Flush()
	f.Close()

	f2 := newTestFacilitator(t, dir, []Type{TypeHistory})
	defer f2.Close()
	assert.True(t, f2.IsValidWord("zephyr"))
	assert.Contains(t, f2.DumpAllWords(TypeHistory), "zephyr")
}

// newCompactingFacilitator builds a facilitator whose history member compacts
// after almost every write.
func newCompactingFacilitator(t *testing.T, dataDir string) *Facilitator {
	t.Helper()
	f, err := NewFacilitator(Options{
		DataDir:      dataDir,
		QueryTimeout: 2 * time.Second,
		Dynamic:      dynamic.Options{GCEntryThreshold: 1},
	})
	require.NoError(t, err)
	f.ResetDictionaries("en", []Type{TypeHistory})
	return f
}

func TestLearnedWordsSurviveCompaction(t *testing.T) {
	f := newCompactingFacilitator(t, t.TempDir())
	defer f.Close()

	f.AddToUserHistory("alpha", nil, true)
	f.AddToUserHistory("beta", nil, true)
	drain(f)
	f.Flush()
	drain(f)

	// the flush compacted; learning after it must land in the rebuilt
	// dictionary, and reads must see it
	f.AddToUserHistory("delta", nil, true)
	assert.True(t, f.IsValidWord("delta"))
	assert.Contains(t, f.DumpAllWords(TypeHistory), "delta")
	assert.True(t, f.IsValidWord("alpha"))

	// the read path follows the engine's dictionary after the swap
	m := f.snapshot()[0]
	res, ok := f.reg.ExecuteSync(m.path, 2*time.Second, func() any {
		return m.engine.Dict() == m.dict
	})
	require.True(t, ok)
	assert.True(t, res.(bool))
}

func TestFlushCompactionReleasesQueries(t *testing.T) {
	f := newCompactingFacilitator(t, t.TempDir())
	defer f.Close()

	f.AddToUserHistory("alpha", nil, true)
	f.AddToUserHistory("beta", nil, true)
	drain(f)
	f.Flush()
	drain(f)

	// the flush ran as a large task; the flag must be clear afterwards so
	// synchronous queries go through again
	m := f.snapshot()[0]
	_, ok := f.reg.ExecuteSync(m.path, 2*time.Second, func() any { return nil })
	assert.True(t, ok)
	assert.True(t, f.IsValidWord("alpha"))
	assert.True(t, f.IsValidWord("beta"))
}

func TestWatcherCoversMemberDirs(t *testing.T) {
	dir := t.TempDir()
	histDir := filepath.Join(dir, "en", "history")
	require.NoError(t, os.MkdirAll(histDir, 0o755))

	f := newTestFacilitator(t, dir, []Type{TypeHistory})
	defer f.Close()
	if f.watcher == nil {
		t.Skip("fsnotify unavailable")
	}

	// the member stores its generations as sidecar files inside its own
	// directory; that directory needs a watch of its own
	assert.Contains(t, f.watcher.WatchList(), histDir)
}

func TestBadMagicRecreated(t *testing.T) {
	dir := t.TempDir()
	histPath := filepath.Join(dir, "en", "history")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "en"), 0o755))
	require.NoError(t, os.WriteFile(histPath, []byte("not a dictionary at all"), 0o644))

	f := newTestFacilitator(t, dir, []Type{TypeHistory})
	defer f.Close()

	// garbage header must not crash the load path, just start empty
	assert.False(t, f.IsValidWord("anything"))
	f.AddToUserHistory("fresh", nil, true)
	assert.True(t, f.IsValidWord("fresh"))
}

func TestLocaleSwitchKeepsContent(t *testing.T) {
	dir := t.TempDir()
	f := newTestFacilitator(t, dir, []Type{TypeHistory})
	defer f.Close()

	f.AddToUserHistory("zephyr", nil, true)
	drain(f)

	f.ResetDictionaries("fr", []Type{TypeHistory})
	assert.Empty(t, f.DumpAllWords(TypeHistory))
	assert.False(t, f.IsValidWord("zephyr"))

	// retiring the en group flushed it; switching back finds the word
	f.ResetDictionaries("en", []Type{TypeHistory})
	assert.True(t, f.IsValidWord("zephyr"))
}

func TestBusyDictionaryDegrades(t *testing.T) {
	dir := t.TempDir()
	seedMain(t, dir, "en", mainWords)
	f := newTestFacilitator(t, dir, []Type{TypeMain, TypeHistory})
	defer f.Close()

	histPath := filepath.Join(dir, "en", "history")
	f.reg.SetLargeTask(histPath, true)
	defer f.reg.SetLargeTask(histPath, false)

	// history is mid-compaction; main still answers
	got := f.GetSuggestions("ca", nil, 10)
	require.NotEmpty(t, got)
	assert.Equal(t, "cat", got[0].Word)
}

func TestDumpUnknownType(t *testing.T) {
	f := newTestFacilitator(t, t.TempDir(), []Type{TypeMain})
	defer f.Close()
	assert.Nil(t, f.DumpAllWords(TypeContacts))
}
