package format

import (
	"sort"
)

// WordBigram is a bigram expressed by surface form, used when building a
// dictionary from scratch (offline build, GC rewrite). The builder resolves
// targets to positions or terminal ids depending on the generation.
type WordBigram struct {
	Target    string
	Freq      int
	Timestamp int64
	Level     int
	Count     int
}

// WordSpec is one word with all its attributes, input to Build.
type WordSpec struct {
	Word        string
	Freq        int
	NotAWord    bool
	Blacklisted bool
	Bigrams     []WordBigram
	Shortcuts   []Shortcut

	// Decay metadata carried through GC for dynamic dictionaries.
	Level, Count int
	Timestamp    int64
}

type buildNode struct {
	chars       []rune
	terminal    bool
	spec        *WordSpec
	children    []*buildNode
	writtenPos  int
	terminalID  int
	bigramPatch []int // static: offsets of 3-byte bigram target fields
}

// Build creates a dictionary of the given generation holding exactly the
// given words. Words are laid out contiguously with no slack, which is what
// GC relies on to reclaim space.
func Build(opts FormatOptions, locale string, words []WordSpec) (*Dictionary, error) {
	root := &buildNode{}
	specs := make([]WordSpec, len(words))
	copy(specs, words)
	for i := range specs {
		if specs[i].Word == "" {
			continue
		}
		insertBuildNode(root, []rune(specs[i].Word), &specs[i])
	}

	d := New(opts, locale)
	// New seeded an empty root array; rebuild the body from nothing so the
	// real root lands at offset 0.
	d.Body = NewBuffer(nil)

	if len(root.children) == 0 {
		d.Body.AppendByte(0)
		d.Body.AppendUint24(0)
		return d, nil
	}

	byWord := make(map[string]*buildNode)
	collectTerminals(root, nil, byWord)

	if opts.Version == VersionDynamic {
		// allocate terminal ids up front so bigram targets resolve by id
		names := make([]string, 0, len(byWord))
		for w := range byWord {
			names = append(names, w)
		}
		sort.Strings(names)
		for _, w := range names {
			n := byWord[w]
			n.terminalID = d.Tables.AllocTerminal(n.spec.Freq)
			d.Tables.SetDecayEntry(n.terminalID, n.spec.Freq, n.spec.Level, n.spec.Count, n.spec.Timestamp)
		}
	}

	if err := writeBuildArray(d, root.children, 0); err != nil {
		return nil, err
	}

	// second pass: attach bigrams and shortcuts now that positions and ids
	// exist for every terminal
	for _, n := range byWord {
		if opts.Version == VersionDynamic {
			d.Tables.SetNodePos(n.terminalID, n.writtenPos)
			for _, s := range n.spec.Shortcuts {
				d.Tables.AddShortcut(n.terminalID, s.Target, s.Freq)
			}
			var list []Bigram
			for _, bg := range n.spec.Bigrams {
				target, ok := byWord[bg.Target]
				if !ok {
					continue
				}
				list = append(list, Bigram{
					TargetID:  target.terminalID,
					TargetPos: -1,
					Freq:      bg.Freq,
					Timestamp: bg.Timestamp,
					Level:     bg.Level,
					Count:     bg.Count,
				})
			}
			if len(list) > 0 {
				d.Tables.SetBigrams(n.terminalID, list)
				node, err := d.ReadNode(n.writtenPos)
				if err != nil {
					return nil, err
				}
				if err := d.SetAttributeFlags(&node, true, len(n.spec.Shortcuts) > 0); err != nil {
					return nil, err
				}
			} else if len(n.spec.Shortcuts) > 0 {
				node, err := d.ReadNode(n.writtenPos)
				if err != nil {
					return nil, err
				}
				if err := d.SetAttributeFlags(&node, false, true); err != nil {
					return nil, err
				}
			}
		} else {
			// static bigram targets were written as zero placeholders
			for i, bg := range n.spec.Bigrams {
				if i >= len(n.bigramPatch) {
					break
				}
				target, ok := byWord[bg.Target]
				if !ok {
					continue
				}
				if err := d.Body.PatchUint24(n.bigramPatch[i], target.writtenPos); err != nil {
					return nil, err
				}
			}
		}
	}

	return d, nil
}

func insertBuildNode(parent *buildNode, rest []rune, spec *WordSpec) {
	for _, child := range parent.children {
		k := commonPrefixLen(child.chars, rest)
		if k == 0 {
			continue
		}
		if k < len(child.chars) {
			// split the child into prefix + suffix
			suffix := &buildNode{
				chars:    child.chars[k:],
				terminal: child.terminal,
				spec:     child.spec,
				children: child.children,
			}
			child.chars = child.chars[:k]
			child.terminal = false
			child.spec = nil
			child.children = []*buildNode{suffix}
		}
		if k == len(rest) {
			child.terminal = true
			child.spec = spec
			return
		}
		insertBuildNode(child, rest[k:], spec)
		return
	}
	parent.children = append(parent.children, &buildNode{
		chars:    rest,
		terminal: true,
		spec:     spec,
	})
}

func collectTerminals(n *buildNode, prefix []rune, out map[string]*buildNode) {
	word := append(append([]rune{}, prefix...), n.chars...)
	if n.terminal {
		out[string(word)] = n
	}
	for _, c := range n.children {
		collectTerminals(c, word, out)
	}
}

func writeBuildArray(d *Dictionary, nodes []*buildNode, parentPos int) error {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].chars[0] < nodes[j].chars[0]
	})

	pts := make([]PtNode, len(nodes))
	for i, n := range nodes {
		pts[i] = PtNode{
			Chars:      n.chars,
			Terminal:   n.terminal,
			Parent:     parentPos,
			TerminalID: -1,
			Freq:       -1,
		}
		if n.terminal {
			pts[i].NotAWord = n.spec.NotAWord
			pts[i].Blacklisted = n.spec.Blacklisted
			if d.Options().Version == VersionDynamic {
				pts[i].TerminalID = n.terminalID
			} else {
				pts[i].Freq = n.spec.Freq
				pts[i].Shortcuts = n.spec.Shortcuts
				// zero placeholders, patched once every position is known
				for range n.spec.Bigrams {
					pts[i].Bigrams = append(pts[i].Bigrams, Bigram{TargetID: -1})
				}
			}
		}
	}

	arr := d.AppendNodeArray(pts)
	for i, n := range nodes {
		n.writtenPos = arr.Nodes[i].Pos
		n.bigramPatch = arr.Nodes[i].bigramFieldPos
	}
	for i, n := range nodes {
		if len(n.children) > 0 {
			childPos := d.Body.Len()
			if err := writeBuildArray(d, n.children, arr.Nodes[i].Pos); err != nil {
				return err
			}
			if err := d.PatchChildren(&arr.Nodes[i], childPos); err != nil {
				return err
			}
		}
	}
	return nil
}
