package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastiangx/lexidict/pkg/format"
)

func buildDict(t *testing.T, opts format.FormatOptions, words []format.WordSpec) *format.Dictionary {
	t.Helper()
	d, err := format.Build(opts, "en", words)
	require.NoError(t, err)
	return d
}

func searchWords(t *testing.T, s *Scorer, typed string, prev []string, max int) []string {
	t.Helper()
	out := s.GetSuggestions(NewComposer(typed, prev), max)
	words := make([]string, len(out))
	for i, sg := range out {
		words[i] = sg.Word
	}
	return words
}

var rankingWords = []format.WordSpec{
	{Word: "can", Freq: 180},
	{Word: "cat", Freq: 150},
	{Word: "cats", Freq: 90},
	{Word: "catalog", Freq: 60},
	{Word: "cap", Freq: 40},
	{Word: "dog", Freq: 200},
	{Word: "good", Freq: 170, Bigrams: []format.WordBigram{
		{Target: "morning", Freq: 220},
		{Target: "cat", Freq: 120},
	}},
	{Word: "morning", Freq: 30},
}

func TestUnigramRanking(t *testing.T) {
	for _, opts := range []format.FormatOptions{format.StaticOptions(), format.DynamicOptions()} {
		s := NewScorer(buildDict(t, opts, rankingWords), Params{})
		got := searchWords(t, s, "ca", nil, 10)
		assert.Equal(t, []string{"can", "cat", "cats", "cap", "catalog", "dog"}, got,
			"version %d", opts.Version)
	}
}

func TestExactWordExcluded(t *testing.T) {
	s := NewScorer(buildDict(t, format.DynamicOptions(), rankingWords), Params{})
	got := searchWords(t, s, "cat", nil, 10)
	assert.NotContains(t, got, "cat")
	assert.Contains(t, got, "cats")
	assert.Contains(t, got, "catalog")
}

func TestMaxResultsBound(t *testing.T) {
	s := NewScorer(buildDict(t, format.DynamicOptions(), rankingWords), Params{})
	got := searchWords(t, s, "ca", nil, 2)
	assert.Equal(t, []string{"can", "cat"}, got)
}

func TestBigramBeatsUnigram(t *testing.T) {
	// "morning" has a tiny unigram frequency but a strong bigram after
	// "good"; with that context it must outrank everything.
	s := NewScorer(buildDict(t, format.DynamicOptions(), rankingWords), Params{})
	got := searchWords(t, s, "mo", []string{"good"}, 10)
	require.NotEmpty(t, got)
	assert.Equal(t, "morning", got[0])
}

func TestBigramOnlyQuery(t *testing.T) {
	for _, opts := range []format.FormatOptions{format.StaticOptions(), format.DynamicOptions()} {
		s := NewScorer(buildDict(t, opts, rankingWords), Params{})

		// zero typed characters: the previous word's bigram list, ranked
		// by bigram frequency descending
		got := searchWords(t, s, "", []string{"good"}, 10)
		assert.Equal(t, []string{"morning", "cat"}, got, "version %d", opts.Version)

		// one typed character narrows the list
		got = searchWords(t, s, "c", []string{"good"}, 10)
		assert.Equal(t, []string{"cat"}, got, "version %d", opts.Version)
	}
}

func TestNoContextNoInput(t *testing.T) {
	s := NewScorer(buildDict(t, format.DynamicOptions(), rankingWords), Params{})
	assert.Empty(t, s.GetSuggestions(NewComposer("", nil), 10))
}

func TestProximityMatch(t *testing.T) {
	s := NewScorer(buildDict(t, format.DynamicOptions(), rankingWords), Params{})

	// "x" neighbors "c" on QWERTY, so "xa" still reaches the c-words but
	// an exact match of equal frequency would beat it
	got := searchWords(t, s, "xa", nil, 10)
	assert.Contains(t, got, "can")
	assert.Contains(t, got, "cat")
}

func TestInsertedCharTolerated(t *testing.T) {
	s := NewScorer(buildDict(t, format.DynamicOptions(), rankingWords), Params{})

	// a stray character in the middle is absorbed at a cost
	assert.Contains(t, searchWords(t, s, "caqt", nil, 10), "cat")

	// a stray trailing character is absorbed too
	got := searchWords(t, s, "catq", nil, 10)
	assert.Contains(t, got, "cat")
	assert.Contains(t, got, "cats")

	// one insertion per candidate; two stray characters match nothing
	assert.Empty(t, searchWords(t, s, "caqqt", nil, 10))
}

func TestNotAWordHiddenFromResults(t *testing.T) {
	words := append([]format.WordSpec{}, rankingWords...)
	words = append(words, format.WordSpec{Word: "cax", Freq: 255, NotAWord: true})
	s := NewScorer(buildDict(t, format.DynamicOptions(), words), Params{})
	assert.NotContains(t, searchWords(t, s, "ca", nil, 10), "cax")
}

func TestCapitalizationReplay(t *testing.T) {
	s := NewScorer(buildDict(t, format.DynamicOptions(), rankingWords), Params{})

	assert.Equal(t, []string{"Can", "Cat", "Cats", "Cap", "Catalog", "Dog"},
		searchWords(t, s, "Ca", nil, 10))

	assert.Equal(t, []string{"CAN", "CAT", "CATS", "CAP", "CATALOG", "DOG"},
		searchWords(t, s, "CA", nil, 10))
}

func TestOverlongInputRejected(t *testing.T) {
	s := NewScorer(buildDict(t, format.DynamicOptions(), rankingWords), Params{MaxInputLength: 4})
	assert.Empty(t, searchWords(t, s, "catal", nil, 10))
	assert.NotEmpty(t, searchWords(t, s, "cata", nil, 10))
}

func TestComposerCapsDetection(t *testing.T) {
	assert.Equal(t, CapsNone, NewComposer("cat", nil).Caps())
	assert.Equal(t, CapsFirst, NewComposer("Cat", nil).Caps())
	assert.Equal(t, CapsAll, NewComposer("CAT", nil).Caps())
	// mixed interior caps replay as a pattern
	c := NewComposer("cAt", nil)
	assert.Equal(t, CapsNone, c.Caps())
	assert.Equal(t, "cAts", c.ApplyCaps("cats"))
}

func TestProximityMapSymmetric(t *testing.T) {
	for r, near := range proximityMap {
		for _, n := range near {
			assert.Contains(t, NeighborsOf(n), r, "%c -> %c", r, n)
		}
	}
}
