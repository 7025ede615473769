// Package search expands a binary trie dictionary into ranked word
// candidates for a partially typed word. Traversal is best-first over
// transient dicNode states with branch-and-bound pruning; a candidate's
// score combines its unigram frequency with a bigram bonus from the
// previously committed word.
package search

import (
	"container/heap"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/lexidict/internal/utils"
	"github.com/bastiangx/lexidict/pkg/format"
)

// Params tunes the traversal and the ranking. The multiplier bounds are
// carried over from the original tuning; treat them as configuration.
type Params struct {
	MaxResults     int
	MaxInputLength int
	MaxWordLength  int

	// CostProximity is charged when a typed character matched a neighbor
	// key instead of the stored character. CostCompletion is charged per
	// stored character beyond the typed input. CostInsertion is charged
	// when a typed character is written off as an accidental insertion;
	// at most one insertion is tolerated per candidate.
	CostProximity  int
	CostCompletion int
	CostInsertion  int

	// A stored bigram frequency of 0..255 maps linearly onto
	// [MultiplierMin, MultiplierMax] and scales the unigram score.
	MultiplierMin float64
	MultiplierMax float64
}

// DefaultParams returns the tuning used when a field is left zero.
func DefaultParams() Params {
	return Params{
		MaxResults:     16,
		MaxInputLength: 48,
		MaxWordLength:  48,
		CostProximity:  80,
		CostCompletion: 6,
		CostInsertion:  128,
		MultiplierMin:  1.2,
		MultiplierMax:  1.8,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.MaxResults <= 0 {
		p.MaxResults = d.MaxResults
	}
	if p.MaxInputLength <= 0 {
		p.MaxInputLength = d.MaxInputLength
	}
	if p.MaxWordLength <= 0 {
		p.MaxWordLength = d.MaxWordLength
	}
	if p.CostProximity <= 0 {
		p.CostProximity = d.CostProximity
	}
	if p.CostCompletion <= 0 {
		p.CostCompletion = d.CostCompletion
	}
	if p.CostInsertion <= 0 {
		p.CostInsertion = d.CostInsertion
	}
	if p.MultiplierMin <= 0 {
		p.MultiplierMin = d.MultiplierMin
	}
	if p.MultiplierMax <= p.MultiplierMin {
		p.MultiplierMax = p.MultiplierMin + (d.MultiplierMax - d.MultiplierMin)
	}
	return p
}

// Suggestion is one ranked candidate.
type Suggestion struct {
	Word  string
	Score int
}

// Scorer runs lookups against one dictionary. It keeps a scratch arena
// across calls and is not safe for concurrent use; each dictionary's task
// queue gives every search exclusive access.
type Scorer struct {
	dict  *format.Dictionary
	p     Params
	arena *arena
}

// NewScorer builds a scorer over d.
func NewScorer(d *format.Dictionary, p Params) *Scorer {
	return &Scorer{dict: d, p: p.withDefaults(), arena: newArena()}
}

// expansion steps per search, independent of input length
const maxExpansions = 4096

// GetSuggestions returns up to max ranked candidates for the composed input.
// It never fails: any internal decode problem yields fewer (or no)
// suggestions, not an error.
func (s *Scorer) GetSuggestions(c *Composer, max int) []Suggestion {
	if max <= 0 {
		max = s.p.MaxResults
	}
	if c.Size() > s.p.MaxInputLength {
		return nil
	}

	var out []Suggestion
	switch {
	case c.Size() <= 1 && c.PrevWord() != "":
		out = s.bigramOnly(c)
	case c.Size() == 0:
		return nil
	default:
		out = s.expand(c, s.bigramContext(c.PrevWord()), max)
	}
	return s.finalize(c, out, max)
}

// bigramContext resolves the previous word's bigram list into a lookup
// keyed the way the dictionary's generation addresses terminals.
type bigramContext struct {
	byID  map[int]int
	byPos map[int]int
}

func (s *Scorer) bigramContext(prev string) bigramContext {
	var bc bigramContext
	if prev == "" {
		return bc
	}
	n, err := s.dict.FindWordPosition(strings.ToLower(prev))
	if err != nil || !n.IsValidTerminal() {
		return bc
	}
	for _, bg := range s.dict.BigramsOf(&n) {
		if bg.TargetID >= 0 {
			if bc.byID == nil {
				bc.byID = make(map[int]int)
			}
			bc.byID[bg.TargetID] = bg.Freq
		} else if bg.TargetPos > 0 {
			if bc.byPos == nil {
				bc.byPos = make(map[int]int)
			}
			bc.byPos[bg.TargetPos] = bg.Freq
		}
	}
	return bc
}

func (bc bigramContext) lookup(n *format.PtNode) (int, bool) {
	if bc.byID != nil && n.TerminalID >= 0 {
		f, ok := bc.byID[n.TerminalID]
		return f, ok
	}
	if bc.byPos != nil {
		f, ok := bc.byPos[n.Pos]
		return f, ok
	}
	return 0, false
}

func (s *Scorer) score(unigram, bigramFreq int, hasBigram bool, cost int) int {
	mult := 1.0
	if hasBigram {
		mult = s.p.MultiplierMin +
			(s.p.MultiplierMax-s.p.MultiplierMin)*float64(bigramFreq)/255
	}
	return int(float64(unigram)*mult) - cost
}

// maxPossible bounds the score any descendant of a state can reach, for
// branch-and-bound pruning.
func (s *Scorer) maxPossible(cost int) int {
	return int(255*s.p.MultiplierMax) - cost
}

// expand is the best-first traversal from the root node array.
func (s *Scorer) expand(c *Composer, bc bigramContext, max int) []Suggestion {
	s.arena.reset()
	h := &nodeHeap{a: s.arena}
	heap.Init(h)
	heap.Push(h, s.arena.alloc(dicNode{childrenPos: 0}))

	var results []Suggestion
	worst := func() int {
		w := results[0].Score
		for _, r := range results[1:] {
			if r.Score < w {
				w = r.Score
			}
		}
		return w
	}

	for steps := 0; h.Len() > 0 && steps < maxExpansions; steps++ {
		st := *s.arena.at(heap.Pop(h).(int))
		if len(results) >= max && s.maxPossible(st.cost) <= worst() {
			continue
		}

		pos := st.childrenPos
		for {
			arr, err := s.dict.ReadNodeArray(pos)
			if err != nil {
				log.Debugf("search: node array at %d: %v", pos, err)
				break
			}
			for i := range arr.Nodes {
				n := &arr.Nodes[i]
				if n.Status == format.StatusMoved {
					continue
				}
				consumed, cost, skipped, ok := s.matchGroup(n.Chars, st.consumed, st.cost, st.skipped, c)
				if !ok {
					continue
				}
				child := dicNode{
					chars:       append(append([]rune{}, st.chars...), n.Chars...),
					cost:        cost,
					consumed:    consumed,
					skipped:     skipped,
					node:        *n,
					childrenPos: -1,
				}
				if n.Children != 0 {
					child.childrenPos = n.Children
				}

				emitCost, complete := cost, consumed == c.Size()
				if !complete && consumed == c.Size()-1 && !skipped {
					// the last typed event dangles past the word; treat it
					// as the one tolerated insertion
					emitCost, complete = cost+s.p.CostInsertion, true
				}
				if n.IsValidTerminal() && complete {
					bfreq, has := bc.lookup(n)
					sc := s.score(s.dict.FrequencyOf(n), bfreq, has, emitCost)
					if len(results) < max {
						results = append(results, Suggestion{Word: string(child.chars), Score: sc})
					} else if w := worst(); sc > w {
						for j := range results {
							if results[j].Score == w {
								results[j] = Suggestion{Word: string(child.chars), Score: sc}
								break
							}
						}
					}
				}

				if child.childrenPos >= 0 && len(child.chars) < s.p.MaxWordLength {
					if len(results) < max || s.maxPossible(cost) > worst() {
						heap.Push(h, s.arena.alloc(child))
					}
				}
			}
			pos = arr.Forward
			if pos == 0 {
				break
			}
		}
	}
	return results
}

// matchGroup consumes a group's characters against the remaining input.
// Characters within the input must match exactly or via key proximity;
// characters past the input are completion and only cost. A mismatch may
// drop one typed event as an accidental insertion, once per path.
func (s *Scorer) matchGroup(chars []rune, consumed, cost int, skipped bool, c *Composer) (int, int, bool, bool) {
	for _, r := range chars {
		for {
			if consumed >= c.Size() {
				cost += s.p.CostCompletion
				break
			}
			ev := c.Event(consumed)
			if r == ev.Char {
				consumed++
				break
			}
			if isNeighbor(ev, r) {
				cost += s.p.CostProximity
				consumed++
				break
			}
			if !skipped {
				// drop the typed event and retry the stored character
				cost += s.p.CostInsertion
				consumed++
				skipped = true
				continue
			}
			return 0, 0, false, false
		}
	}
	return consumed, cost, skipped, true
}

func isNeighbor(ev InputEvent, r rune) bool {
	for _, n := range ev.Neighbors {
		if n == r {
			return true
		}
	}
	return false
}

// bigramOnly answers a zero-or-one-character query straight from the
// previous word's bigram list, skipping trie traversal entirely.
func (s *Scorer) bigramOnly(c *Composer) []Suggestion {
	prev, err := s.dict.FindWordPosition(strings.ToLower(c.PrevWord()))
	if err != nil || !prev.IsValidTerminal() {
		return nil
	}
	bigrams := s.dict.BigramsOf(&prev)
	if len(bigrams) == 0 {
		return nil
	}

	// static targets carry raw positions; resolve their words in one pass
	var staticWords map[int]string
	if !s.dict.Options().SupportsDynamicUpdate {
		want := make(map[int]bool, len(bigrams))
		for _, bg := range bigrams {
			if bg.TargetPos > 0 {
				want[bg.TargetPos] = true
			}
		}
		staticWords = s.wordsAtPositions(want)
	}

	var out []Suggestion
	for _, bg := range bigrams {
		pos := bg.TargetPos
		if bg.TargetID >= 0 {
			pos = s.dict.Tables.NodePos(bg.TargetID)
		}
		if pos <= 0 {
			continue
		}
		n, err := s.dict.ResolveNode(pos)
		if err != nil || !n.IsValidTerminal() {
			continue
		}
		var word string
		if staticWords != nil {
			word = staticWords[pos]
		} else {
			word, err = s.dict.WordAt(n.Pos)
			if err != nil {
				log.Debugf("search: bigram target at %d: %v", n.Pos, err)
				continue
			}
		}
		if word == "" || !s.matchesFirstEvent(c, word) {
			continue
		}
		// the bigram frequency alone ranks this path; unigram strength of
		// the target does not reorder it
		out = append(out, Suggestion{
			Word:  word,
			Score: s.score(bg.Freq, bg.Freq, true, 0),
		})
	}
	return out
}

func (s *Scorer) matchesFirstEvent(c *Composer, word string) bool {
	if c.Size() == 0 {
		return true
	}
	ev := c.Event(0)
	first := []rune(word)[0]
	return first == ev.Char || isNeighbor(ev, first)
}

func (s *Scorer) wordsAtPositions(want map[int]bool) map[int]string {
	found := make(map[int]string, len(want))
	err := s.dict.Iterate(func(e format.WordEntry) bool {
		if want[e.Node.Pos] {
			found[e.Node.Pos] = e.Word
		}
		return len(found) < len(want)
	})
	if err != nil {
		log.Debugf("search: resolving bigram targets: %v", err)
	}
	return found
}

// finalize orders by score, collapses case-folded duplicates keeping the
// best variant, applies the caller's capitalization and truncates.
func (s *Scorer) finalize(c *Composer, list []Suggestion, max int) []Suggestion {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Score > list[j].Score
	})
	filter := utils.NewSuggestionFilter(strings.ToLower(c.Typed()))
	out := make([]Suggestion, 0, len(list))
	for _, sg := range list {
		if !filter.ShouldInclude(sg.Word) {
			continue
		}
		sg.Word = c.ApplyCaps(sg.Word)
		out = append(out, sg)
		if len(out) == max {
			break
		}
	}
	return out
}
