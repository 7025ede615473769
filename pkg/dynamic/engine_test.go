package dynamic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastiangx/lexidict/pkg/format"
)

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	d := format.New(format.DynamicOptions(), "en")
	e, err := NewEngine(d, opts)
	require.NoError(t, err)
	return e
}

func liveWords(t *testing.T, d *format.Dictionary) map[string]int {
	t.Helper()
	out := make(map[string]int)
	err := d.Iterate(func(e format.WordEntry) bool {
		if e.Node.Status == format.StatusLive && !e.Node.NotAWord {
			out[e.Word] = d.FrequencyOf(&e.Node)
		}
		return true
	})
	require.NoError(t, err)
	return out
}

func TestInsertIntoEmpty(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.InsertWord("hello", 42, WordProperty{}))

	n, err := e.Dict().FindWordPosition("hello")
	require.NoError(t, err)
	assert.True(t, n.IsValidTerminal())
	assert.Equal(t, 42, e.Dict().FrequencyOf(&n))
}

func TestInsertChildExtension(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.InsertWord("cat", 120, WordProperty{}))
	require.NoError(t, e.InsertWord("cats", 100, WordProperty{}))

	// the earlier word keeps its original frequency
	n, err := e.Dict().FindWordPosition("cat")
	require.NoError(t, err)
	assert.Equal(t, 120, e.Dict().FrequencyOf(&n))

	n, err = e.Dict().FindWordPosition("cats")
	require.NoError(t, err)
	assert.Equal(t, 100, e.Dict().FrequencyOf(&n))
}

func TestInsertPrefixSplit(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.InsertWord("cats", 100, WordProperty{}))
	require.NoError(t, e.InsertWord("cat", 120, WordProperty{}))

	assert.Equal(t, map[string]int{"cat": 120, "cats": 100}, liveWords(t, e.Dict()))
}

func TestInsertDivergenceSplit(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.InsertWord("cream", 50, WordProperty{}))
	require.NoError(t, e.InsertWord("coat", 60, WordProperty{}))
	require.NoError(t, e.InsertWord("crab", 70, WordProperty{}))

	assert.Equal(t, map[string]int{"cream": 50, "coat": 60, "crab": 70}, liveWords(t, e.Dict()))
}

func TestInsertIdempotent(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.InsertWord("word", 10, WordProperty{}))
	require.NoError(t, e.InsertWord("word", 30, WordProperty{}))

	// one live terminal, most recent frequency
	assert.Equal(t, map[string]int{"word": 30}, liveWords(t, e.Dict()))
}

func TestInsertManyWordsDeepSharedPrefixes(t *testing.T) {
	e := newTestEngine(t, Options{})
	words := map[string]int{
		"a": 1, "an": 2, "and": 3, "answer": 4, "ant": 5,
		"be": 10, "bee": 11, "been": 12, "beer": 13,
		"cart": 20, "carted": 21, "cartel": 22, "car": 23, "care": 24,
	}
	for w, f := range words {
		require.NoError(t, e.InsertWord(w, f, WordProperty{}), "insert %q", w)
	}
	assert.Equal(t, words, liveWords(t, e.Dict()))

	// parent chains stay intact after all the splits
	for w := range words {
		n, err := e.Dict().FindWordPosition(w)
		require.NoError(t, err)
		got, err := e.Dict().WordAt(n.Pos)
		require.NoError(t, err)
		assert.Equal(t, w, got)
	}
}

func TestMakeExistingGroupTerminal(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.InsertWord("car", 10, WordProperty{}))
	require.NoError(t, e.InsertWord("cart", 20, WordProperty{}))
	// "car" group now has children; re-inserting with different flags forces
	// the replacement path
	require.NoError(t, e.InsertWord("car", 15, WordProperty{NotAWord: true}))

	n, err := e.Dict().FindWordPosition("car")
	require.NoError(t, err)
	assert.True(t, n.NotAWord)
	assert.Equal(t, 15, e.Dict().FrequencyOf(&n))

	// child survived the move
	n, err = e.Dict().FindWordPosition("cart")
	require.NoError(t, err)
	assert.Equal(t, 20, e.Dict().FrequencyOf(&n))
	word, err := e.Dict().WordAt(n.Pos)
	require.NoError(t, err)
	assert.Equal(t, "cart", word)
}

func TestDeleteWord(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.InsertWord("keep", 10, WordProperty{}))
	require.NoError(t, e.InsertWord("drop", 20, WordProperty{}))

	require.NoError(t, e.DeleteWord("drop"))
	assert.Equal(t, map[string]int{"keep": 10}, liveWords(t, e.Dict()))

	// double delete reports not found
	assert.ErrorIs(t, e.DeleteWord("drop"), format.ErrNotFound)
	assert.ErrorIs(t, e.DeleteWord("never"), format.ErrNotFound)

	// deleted words can come back
	require.NoError(t, e.InsertWord("drop", 25, WordProperty{}))
	assert.Equal(t, map[string]int{"keep": 10, "drop": 25}, liveWords(t, e.Dict()))
}

func TestDeletePrefixKeepsChildren(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.InsertWord("cat", 120, WordProperty{}))
	require.NoError(t, e.InsertWord("cats", 100, WordProperty{}))

	require.NoError(t, e.DeleteWord("cat"))
	assert.Equal(t, map[string]int{"cats": 100}, liveWords(t, e.Dict()))
}

func TestBigrams(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.InsertWord("good", 150, WordProperty{}))
	require.NoError(t, e.InsertWord("morning", 90, WordProperty{}))
	require.NoError(t, e.AddBigram("good", "morning", 200))

	n, err := e.Dict().FindWordPosition("good")
	require.NoError(t, err)
	bigrams := e.Dict().BigramsOf(&n)
	require.Len(t, bigrams, 1)
	assert.Equal(t, 200, bigrams[0].Freq)

	pos := e.Dict().Tables.NodePos(bigrams[0].TargetID)
	word, err := e.Dict().WordAt(pos)
	require.NoError(t, err)
	assert.Equal(t, "morning", word)
}

func TestBigramSurvivesTargetMove(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.InsertWord("good", 150, WordProperty{}))
	require.NoError(t, e.InsertWord("morning", 90, WordProperty{}))
	require.NoError(t, e.AddBigram("good", "morning", 200))

	// splitting "morning" moves its terminal group
	require.NoError(t, e.InsertWord("morn", 40, WordProperty{}))

	n, err := e.Dict().FindWordPosition("good")
	require.NoError(t, err)
	bigrams := e.Dict().BigramsOf(&n)
	require.Len(t, bigrams, 1)

	pos := e.Dict().Tables.NodePos(bigrams[0].TargetID)
	word, err := e.Dict().WordAt(pos)
	require.NoError(t, err)
	assert.Equal(t, "morning", word)
}

func TestCompactDropsDeleted(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.InsertWord("keep", 10, WordProperty{}))
	require.NoError(t, e.InsertWord("drop", 20, WordProperty{}))
	require.NoError(t, e.AddBigram("keep", "drop", 99))
	require.NoError(t, e.DeleteWord("drop"))

	require.NoError(t, e.Compact())

	assert.Equal(t, map[string]int{"keep": 10}, liveWords(t, e.Dict()))
	_, err := e.Dict().FindWordPosition("drop")
	assert.ErrorIs(t, err, format.ErrNotFound)

	// the bigram pointing at the deleted word went with it
	n, err := e.Dict().FindWordPosition("keep")
	require.NoError(t, err)
	assert.Empty(t, e.Dict().BigramsOf(&n))
}

func TestCompactPreservesLogicalContent(t *testing.T) {
	e := newTestEngine(t, Options{})
	words := map[string]int{"alpha": 5, "alpine": 6, "beta": 7, "betray": 8}
	for w, f := range words {
		require.NoError(t, e.InsertWord(w, f, WordProperty{}))
	}
	require.NoError(t, e.AddBigram("alpha", "beta", 42))

	// churn produces slack
	require.NoError(t, e.InsertWord("alpha", 5, WordProperty{NotAWord: true}))
	require.NoError(t, e.InsertWord("alpha", 5, WordProperty{}))
	sizeBefore := e.Dict().Body.Len()

	require.NoError(t, e.Compact())

	assert.Equal(t, words, liveWords(t, e.Dict()))
	assert.Less(t, e.Dict().Body.Len(), sizeBefore, "slack reclaimed")

	n, err := e.Dict().FindWordPosition("alpha")
	require.NoError(t, err)
	bigrams := e.Dict().BigramsOf(&n)
	require.Len(t, bigrams, 1)
	assert.Equal(t, 42, bigrams[0].Freq)
}

func TestCompactThreshold(t *testing.T) {
	e := newTestEngine(t, Options{GCEntryThreshold: 4})
	for _, w := range []string{"one", "two", "three", "four"} {
		require.NoError(t, e.InsertWord(w, 10, WordProperty{}))
	}
	assert.False(t, e.NeedsGC())
	require.NoError(t, e.InsertWord("five", 10, WordProperty{}))
	assert.True(t, e.NeedsGC())

	count := e.Dict().Tables.TerminalCount()
	require.NoError(t, e.Compact())
	assert.LessOrEqual(t, e.Dict().Tables.TerminalCount(), count)
	assert.False(t, e.NeedsGC())
}

func TestInsertCompactsWhenOverThreshold(t *testing.T) {
	e := newTestEngine(t, Options{GCEntryThreshold: 2})
	for _, w := range []string{"one", "two", "three"} {
		require.NoError(t, e.InsertWord(w, 10, WordProperty{}))
	}
	assert.True(t, e.NeedsGC())

	// the next mutation compacts first instead of growing the body further
	require.NoError(t, e.InsertWord("four", 10, WordProperty{}))
	assert.False(t, e.NeedsGC())

	words := liveWords(t, e.Dict())
	for _, w := range []string{"one", "two", "three", "four"} {
		assert.Contains(t, words, w)
	}
}

func TestBusyRejectsMutations(t *testing.T) {
	e := newTestEngine(t, Options{})
	e.SetBusy(true)
	assert.ErrorIs(t, e.InsertWord("word", 10, WordProperty{}), ErrBusy)
	assert.ErrorIs(t, e.DeleteWord("word"), ErrBusy)
	e.SetBusy(false)
	assert.NoError(t, e.InsertWord("word", 10, WordProperty{}))
}

func TestObserveWordLearnsAndReinforces(t *testing.T) {
	e := newTestEngine(t, Options{})
	now := time.Now()

	require.NoError(t, e.ObserveWord("lexidict", true, now))
	n, err := e.Dict().FindWordPosition("lexidict")
	require.NoError(t, err)
	first := e.Dict().FrequencyOf(&n)
	assert.Greater(t, first, 0)

	for i := 0; i < 80; i++ {
		require.NoError(t, e.ObserveWord("lexidict", true, now))
	}
	n, err = e.Dict().FindWordPosition("lexidict")
	require.NoError(t, err)
	assert.Greater(t, e.Dict().FrequencyOf(&n), first, "reinforcement raises frequency")
}

func TestObserveInvalidWordDecaysOut(t *testing.T) {
	e := newTestEngine(t, Options{})
	now := time.Now()

	require.NoError(t, e.ObserveWord("teh", false, now))
	n, err := e.Dict().FindWordPosition("teh")
	require.NoError(t, err)
	assert.True(t, n.NotAWord, "unconfirmed words are not suggested")

	// a long quiet stretch, then a sweep: the word dies
	require.NoError(t, e.DecaySweep(now.Add(10000*time.Hour)))
	n, err = e.Dict().FindWordPosition("teh")
	require.NoError(t, err)
	assert.Equal(t, format.StatusDeleted, n.Status)

	require.NoError(t, e.Compact())
	_, err = e.Dict().FindWordPosition("teh")
	assert.ErrorIs(t, err, format.ErrNotFound)
}

func TestStaticDictionaryRejected(t *testing.T) {
	d := format.New(format.StaticOptions(), "en")
	_, err := NewEngine(d, Options{})
	assert.ErrorIs(t, err, format.ErrUnsupportedVersion)
}
