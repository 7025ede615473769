package search

import (
	"strings"
	"unicode"
)

// CapsMode is the capitalization the caller wants reproduced on suggestions.
type CapsMode int

const (
	// CapsNone replays the typed pattern position by position.
	CapsNone CapsMode = iota
	// CapsFirst upcases the first letter of every suggestion.
	CapsFirst
	// CapsAll upcases every letter.
	CapsAll
)

// InputEvent is one typed character together with its physical neighbors on
// the key layout.
type InputEvent struct {
	Char      rune
	Neighbors []rune
}

// Composer is the caller-supplied state of the word being typed: the ordered
// input events, the detected capitalization, and the previously committed
// words for bigram context. It is read-only during a single lookup.
type Composer struct {
	typed     string
	events    []InputEvent
	prevWords []string
	caps      CapsMode
}

// NewComposer builds a composer from the typed fragment and the preceding
// committed words, most recent last.
func NewComposer(typed string, prevWords []string) *Composer {
	c := &Composer{
		typed:     typed,
		prevWords: prevWords,
		caps:      detectCaps(typed),
	}
	for _, r := range strings.ToLower(typed) {
		c.events = append(c.events, InputEvent{Char: r, Neighbors: NeighborsOf(r)})
	}
	return c
}

func detectCaps(typed string) CapsMode {
	letters := 0
	upper := 0
	firstUpper := false
	for i, r := range typed {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
			if i == 0 {
				firstUpper = true
			}
		}
	}
	switch {
	case letters > 1 && upper == letters:
		return CapsAll
	case firstUpper && upper == 1:
		return CapsFirst
	default:
		return CapsNone
	}
}

// Size returns the number of typed input events.
func (c *Composer) Size() int {
	return len(c.events)
}

// Event returns the i-th input event.
func (c *Composer) Event(i int) InputEvent {
	return c.events[i]
}

// Typed returns the raw typed fragment with its original casing.
func (c *Composer) Typed() string {
	return c.typed
}

// PrevWord returns the most recently committed word, or "".
func (c *Composer) PrevWord() string {
	if len(c.prevWords) == 0 {
		return ""
	}
	return c.prevWords[len(c.prevWords)-1]
}

// Caps returns the detected capitalization mode.
func (c *Composer) Caps() CapsMode {
	return c.caps
}

// ApplyCaps reproduces the caller's capitalization on a lowercase candidate.
func (c *Composer) ApplyCaps(word string) string {
	switch c.caps {
	case CapsAll:
		return strings.ToUpper(word)
	case CapsFirst:
		r := []rune(word)
		if len(r) > 0 {
			r[0] = unicode.ToUpper(r[0])
		}
		return string(r)
	default:
		// replay the typed pattern over the shared prefix
		typed := []rune(c.typed)
		out := []rune(word)
		for i := 0; i < len(out) && i < len(typed); i++ {
			if unicode.IsUpper(typed[i]) {
				out[i] = unicode.ToUpper(out[i])
			}
		}
		return string(out)
	}
}
