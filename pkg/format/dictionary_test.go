package format

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWords = []WordSpec{
	{Word: "cat", Freq: 120},
	{Word: "cats", Freq: 100},
	{Word: "car", Freq: 90},
	{Word: "dog", Freq: 80, Bigrams: []WordBigram{{Target: "cat", Freq: 200}}},
	{Word: "do", Freq: 60},
	{Word: "good", Freq: 150, Bigrams: []WordBigram{
		{Target: "dog", Freq: 180},
		{Target: "cat", Freq: 90},
	}},
	{Word: "goodbye", Freq: 40, Shortcuts: []Shortcut{{Target: "bye", Freq: 10}}},
}

func buildTestDict(t *testing.T, opts FormatOptions) *Dictionary {
	t.Helper()
	d, err := Build(opts, "en", testWords)
	require.NoError(t, err)
	return d
}

func dumpWords(t *testing.T, d *Dictionary) map[string]int {
	t.Helper()
	out := make(map[string]int)
	err := d.Iterate(func(e WordEntry) bool {
		if e.Node.Status == StatusLive {
			out[e.Word] = d.FrequencyOf(&e.Node)
		}
		return true
	})
	require.NoError(t, err)
	return out
}

func TestBuildAndFindBothGenerations(t *testing.T) {
	for _, opts := range []FormatOptions{StaticOptions(), DynamicOptions()} {
		d := buildTestDict(t, opts)

		for _, w := range testWords {
			n, err := d.FindWordPosition(w.Word)
			require.NoError(t, err, "version %d word %q", opts.Version, w.Word)
			assert.True(t, n.Terminal)
			assert.Equal(t, w.Freq, d.FrequencyOf(&n), "version %d word %q", opts.Version, w.Word)
		}

		_, err := d.FindWordPosition("ca")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = d.FindWordPosition("catsup")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = d.FindWordPosition("zebra")
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

func TestIterateListsEveryWord(t *testing.T) {
	for _, opts := range []FormatOptions{StaticOptions(), DynamicOptions()} {
		d := buildTestDict(t, opts)
		words := dumpWords(t, d)
		assert.Len(t, words, len(testWords))
		assert.Equal(t, 120, words["cat"])
		assert.Equal(t, 40, words["goodbye"])
	}
}

func TestIterateStopsEarly(t *testing.T) {
	for _, opts := range []FormatOptions{StaticOptions(), DynamicOptions()} {
		d := buildTestDict(t, opts)

		// a false return must end the whole walk, not just the current
		// subtree
		visits := 0
		err := d.Iterate(func(e WordEntry) bool {
			visits++
			return false
		})
		require.NoError(t, err)
		assert.Equal(t, 1, visits, "version %d", opts.Version)
	}
}

func TestBigramsResolve(t *testing.T) {
	for _, opts := range []FormatOptions{StaticOptions(), DynamicOptions()} {
		d := buildTestDict(t, opts)

		n, err := d.FindWordPosition("good")
		require.NoError(t, err)
		bigrams := d.BigramsOf(&n)
		require.Len(t, bigrams, 2, "version %d", opts.Version)

		targets := make(map[string]int)
		for _, bg := range bigrams {
			var word string
			if opts.Version == VersionDynamic {
				pos := d.Tables.NodePos(bg.TargetID)
				word, err = d.WordAt(pos)
			} else {
				word, err = wordAtStatic(d, bg.TargetPos)
			}
			require.NoError(t, err)
			targets[word] = bg.Freq
		}
		assert.Equal(t, 180, targets["dog"])
		assert.Equal(t, 90, targets["cat"])
	}
}

// wordAtStatic recovers a word by exhaustive iteration, since the static
// format stores no parent addresses.
func wordAtStatic(d *Dictionary, pos int) (string, error) {
	var found string
	err := d.Iterate(func(e WordEntry) bool {
		if e.Node.Pos == pos {
			found = e.Word
			return false
		}
		return true
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", ErrNotFound
	}
	return found, nil
}

func TestShortcutsRoundTrip(t *testing.T) {
	for _, opts := range []FormatOptions{StaticOptions(), DynamicOptions()} {
		d := buildTestDict(t, opts)
		n, err := d.FindWordPosition("goodbye")
		require.NoError(t, err)
		shortcuts := d.ShortcutsOf(&n)
		require.Len(t, shortcuts, 1)
		assert.Equal(t, "bye", shortcuts[0].Target)
		assert.Equal(t, 10, shortcuts[0].Freq)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, opts := range []FormatOptions{StaticOptions(), DynamicOptions()} {
		d := buildTestDict(t, opts)

		path := filepath.Join(t.TempDir(), "main")
		require.NoError(t, Save(d, path))

		loaded, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, d.Header.Attributes[AttrDictionaryID], loaded.Header.Attributes[AttrDictionaryID])
		assert.Equal(t, dumpWords(t, d), dumpWords(t, loaded))

		n, err := loaded.FindWordPosition("good")
		require.NoError(t, err)
		assert.Len(t, loaded.BigramsOf(&n), 2)
	}
}

func TestWordAtFollowsParentChain(t *testing.T) {
	d := buildTestDict(t, DynamicOptions())
	for _, w := range []string{"cat", "cats", "goodbye"} {
		n, err := d.FindWordPosition(w)
		require.NoError(t, err)
		word, err := d.WordAt(n.Pos)
		require.NoError(t, err)
		assert.Equal(t, w, word)
	}
}

func TestMultiByteCharacters(t *testing.T) {
	words := []WordSpec{
		{Word: "héllo", Freq: 50},
		{Word: "héllos", Freq: 30},
		{Word: "日本語", Freq: 70},
	}
	for _, opts := range []FormatOptions{StaticOptions(), DynamicOptions()} {
		d, err := Build(opts, "xx", words)
		require.NoError(t, err)
		for _, w := range words {
			n, err := d.FindWordPosition(w.Word)
			require.NoError(t, err)
			assert.Equal(t, w.Freq, d.FrequencyOf(&n))
		}
	}
}

func TestSparseTable(t *testing.T) {
	st := NewSparseTable()

	_, ok := st.Get(0)
	assert.False(t, ok)

	// spread across multiple blocks
	ids := []int{0, 1, 63, 64, 500, 12345}
	for _, id := range ids {
		st.Set(id, uint32(id*3))
	}
	for _, id := range ids {
		v, ok := st.Get(id)
		require.True(t, ok, "id %d", id)
		assert.Equal(t, uint32(id*3), v)
	}

	// neighbors within a touched block stay unset
	_, ok = st.Get(2)
	assert.False(t, ok)
	_, ok = st.Get(501)
	assert.False(t, ok)

	st.Unset(64)
	_, ok = st.Get(64)
	assert.False(t, ok)
}

func TestContentTablesTerminalAllocation(t *testing.T) {
	ct := NewContentTables(DynamicOptions())

	a := ct.AllocTerminal(10)
	b := ct.AllocTerminal(20)
	c := ct.AllocTerminal(30)
	assert.Equal(t, []int{0, 1, 2}, []int{a, b, c})
	assert.Equal(t, 3, ct.TerminalCount())
	assert.Equal(t, 20, ct.Frequency(b))

	// released ids are not handed out again until a rebuild
	ct.ReleaseTerminal(b)
	d := ct.AllocTerminal(40)
	assert.Equal(t, 3, d)
}

func TestContentTablesBigramUpdateInPlace(t *testing.T) {
	ct := NewContentTables(DynamicOptions())
	a := ct.AllocTerminal(10)
	b := ct.AllocTerminal(20)

	ct.AddBigram(a, b, 100, 1700000000, 1, 2)
	ct.AddBigram(a, b, 150, 1700000500, 2, 3)

	list := ct.Bigrams(a)
	require.Len(t, list, 1)
	assert.Equal(t, 150, list[0].Freq)
	assert.Equal(t, int64(1700000500), list[0].Timestamp)
	assert.Equal(t, 2, list[0].Level)
	assert.Equal(t, 3, list[0].Count)
}

func TestBuildEmpty(t *testing.T) {
	d, err := Build(DynamicOptions(), "en", nil)
	require.NoError(t, err)
	assert.Empty(t, dumpWords(t, d))

	_, err = d.FindWordPosition("anything")
	assert.ErrorIs(t, err, ErrNotFound)
}
