// Package format decodes and encodes the binary trie dictionary format.
//
// Two generations are supported behind one codec interface: the static
// single-file layout with inline frequencies, and the dynamic layout whose
// trie body stays append-only while frequencies, bigrams and shortcuts live
// in sparse per-terminal content tables. See the dynamic package for the
// mutation algorithms built on top of these primitives.
package format

// NodeArray is an ordered run of character groups sharing a parent,
// terminated by a forward link to a sibling continuation array or zero.
type NodeArray struct {
	Pos     int
	Nodes   []PtNode
	Forward int
	End     int // offset just past the forward link

	forwardFieldPos int
}

// Dictionary is one decoded dictionary: header, trie body and, for the
// dynamic generation, the content tables.
type Dictionary struct {
	Header *Header
	Body   *Buffer
	Tables *ContentTables

	codec nodeCodec
}

// New creates an empty dictionary of the given generation. The body holds a
// single zero-length root node array.
func New(opts FormatOptions, locale string) *Dictionary {
	d := &Dictionary{
		Header: NewHeader(opts, locale),
		Body:   NewBuffer(nil),
		codec:  codecFor(opts),
	}
	if opts.Version == VersionDynamic {
		d.Tables = NewContentTables(opts)
	}
	// root array: zero groups, no forward link
	d.Body.AppendByte(0)
	d.Body.AppendUint24(0)
	return d
}

// Options returns the dictionary's format options.
func (d *Dictionary) Options() FormatOptions {
	return d.Header.Options
}

// ReadNode decodes the character group at pos.
func (d *Dictionary) ReadNode(pos int) (PtNode, error) {
	return d.codec.readNode(d.Body, pos)
}

// ResolveNode decodes the group at pos, following moved redirections until it
// lands on the replacement.
func (d *Dictionary) ResolveNode(pos int) (PtNode, error) {
	for {
		n, err := d.ReadNode(pos)
		if err != nil {
			return n, err
		}
		if n.Status != StatusMoved {
			return n, nil
		}
		if n.Forward == 0 || n.Forward == pos {
			return n, ErrAddressOutOfRange
		}
		pos = n.Forward
	}
}

// ReadNodeArray decodes the node array starting at pos.
func (d *Dictionary) ReadNodeArray(pos int) (*NodeArray, error) {
	arr := &NodeArray{Pos: pos}
	count, consumed, err := d.readPtNodeCount(pos)
	if err != nil {
		return nil, err
	}
	p := pos + consumed
	for i := 0; i < count; i++ {
		n, err := d.codec.readNode(d.Body, p)
		if err != nil {
			return nil, err
		}
		p += n.Size
		arr.Nodes = append(arr.Nodes, n)
	}
	arr.forwardFieldPos = p
	arr.Forward, err = d.Body.ReadUint24(p)
	if err != nil {
		return nil, err
	}
	arr.End = p + 3
	return arr, nil
}

// AppendNodeArray appends a fresh node array holding the given groups and
// returns it. Node positions and patch offsets are filled in.
func (d *Dictionary) AppendNodeArray(nodes []PtNode) *NodeArray {
	arr := &NodeArray{Pos: d.Body.Len()}
	d.appendPtNodeCount(len(nodes))
	for i := range nodes {
		d.codec.appendNode(d.Body, &nodes[i])
	}
	arr.Nodes = nodes
	arr.forwardFieldPos = d.Body.AppendUint24(0)
	arr.End = d.Body.Len()
	return arr
}

// PatchForward points the array's forward link at pos.
func (d *Dictionary) PatchForward(arr *NodeArray, pos int) error {
	arr.Forward = pos
	return d.Body.PatchUint24(arr.forwardFieldPos, pos)
}

// PatchChildren points the group's children address at pos.
func (d *Dictionary) PatchChildren(n *PtNode, pos int) error {
	n.Children = pos
	return d.Body.PatchUint24(n.childrenFieldPos, pos)
}

// PatchParent points the group's parent address at parentPos. Dynamic
// generation only.
func (d *Dictionary) PatchParent(n *PtNode, parentPos int) error {
	n.Parent = parentPos
	rel := 0
	if parentPos != 0 {
		rel = parentPos - n.Pos
	}
	return d.Body.PatchInt24(n.parentFieldPos, rel)
}

// MarkMoved flag-patches the group as moved and repoints its parent field at
// the replacement, so stale references resolve through it.
func (d *Dictionary) MarkMoved(n *PtNode, forward int) error {
	flags, err := d.Body.Byte(n.Pos)
	if err != nil {
		return err
	}
	if err := d.Body.PatchByte(n.Pos, flags&^byte(flagStatusMask)|flagStatusMoved); err != nil {
		return err
	}
	n.Status = StatusMoved
	n.Forward = forward
	return d.Body.PatchInt24(n.parentFieldPos, forward-n.Pos)
}

// MarkDeleted flag-patches the group as deleted, leaving its bytes intact.
func (d *Dictionary) MarkDeleted(n *PtNode) error {
	flags, err := d.Body.Byte(n.Pos)
	if err != nil {
		return err
	}
	if err := d.Body.PatchByte(n.Pos, flags&^byte(flagStatusMask)|flagStatusDeleted); err != nil {
		return err
	}
	n.Status = StatusDeleted
	return nil
}

// SetAttributeFlags patches the has-bigrams / has-shortcuts wire flags after
// table content is attached to an existing terminal.
func (d *Dictionary) SetAttributeFlags(n *PtNode, bigrams, shortcuts bool) error {
	flags, err := d.Body.Byte(n.Pos)
	if err != nil {
		return err
	}
	if bigrams {
		flags |= flagHasBigrams
		n.flagsHaveBigrams = true
	}
	if shortcuts {
		flags |= flagHasShortcuts
		n.flagsHaveShortcuts = true
	}
	return d.Body.PatchByte(n.Pos, flags)
}

// FrequencyOf returns the unigram frequency of a terminal group for either
// generation.
func (d *Dictionary) FrequencyOf(n *PtNode) int {
	if !n.Terminal {
		return 0
	}
	if d.Tables != nil {
		return d.Tables.Frequency(n.TerminalID)
	}
	if n.Freq < 0 {
		return 0
	}
	return n.Freq
}

// BigramsOf returns the bigram list of a terminal group for either generation.
func (d *Dictionary) BigramsOf(n *PtNode) []Bigram {
	if !n.Terminal {
		return nil
	}
	if d.Tables != nil {
		return d.Tables.Bigrams(n.TerminalID)
	}
	return n.Bigrams
}

// ShortcutsOf returns the shortcut list of a terminal group.
func (d *Dictionary) ShortcutsOf(n *PtNode) []Shortcut {
	if !n.Terminal {
		return nil
	}
	if d.Tables != nil {
		return d.Tables.Shortcuts(n.TerminalID)
	}
	return n.Shortcuts
}

// SetInlineFrequency patches the inline frequency byte of a static-format
// terminal.
func (d *Dictionary) SetInlineFrequency(n *PtNode, freq int) error {
	if d.Tables != nil || !n.Terminal {
		return ErrUnsupportedVersion
	}
	n.Freq = clampByte(freq)
	return d.Body.PatchByte(n.freqFieldPos, byte(n.Freq))
}

// FindWordPosition walks node arrays from the root matching the longest
// common character prefix at each level. It returns the position of the
// terminal group for word, including moved-away or deleted terminals (the
// returned status tells the caller which); ErrNotFound if the path does not
// exist.
func (d *Dictionary) FindWordPosition(word string) (PtNode, error) {
	rest := []rune(word)
	if len(rest) == 0 {
		return PtNode{}, ErrNotFound
	}
	pos := 0
	for {
		arr, err := d.ReadNodeArray(pos)
		if err != nil {
			return PtNode{}, err
		}
		var matched *PtNode
		for i := range arr.Nodes {
			n := &arr.Nodes[i]
			if n.Status == StatusMoved {
				continue
			}
			if commonPrefixLen(n.Chars, rest) > 0 {
				matched = n
				break
			}
		}
		if matched == nil {
			if arr.Forward != 0 {
				pos = arr.Forward
				continue
			}
			return PtNode{}, ErrNotFound
		}
		k := commonPrefixLen(matched.Chars, rest)
		if k < len(matched.Chars) {
			// word diverges inside the group's characters
			return PtNode{}, ErrNotFound
		}
		if k == len(rest) {
			if !matched.Terminal {
				return PtNode{}, ErrNotFound
			}
			return *matched, nil
		}
		if matched.Children == 0 {
			return PtNode{}, ErrNotFound
		}
		rest = rest[k:]
		pos = matched.Children
	}
}

// WordAt reconstructs the word ending at the terminal group at pos by
// following parent addresses to the root. Dynamic generation only.
func (d *Dictionary) WordAt(pos int) (string, error) {
	if d.Options().Version != VersionDynamic {
		return "", ErrUnsupportedVersion
	}
	n, err := d.ResolveNode(pos)
	if err != nil {
		return "", err
	}
	var out []rune
	for hops := 0; ; hops++ {
		if hops > maxTrieDepth {
			return "", ErrAddressOutOfRange
		}
		out = append(append([]rune{}, n.Chars...), out...)
		if n.Parent == 0 {
			break
		}
		n, err = d.ResolveNode(n.Parent)
		if err != nil {
			return "", err
		}
	}
	return string(out), nil
}

const maxTrieDepth = 256

// WordEntry is one emitted word during full iteration.
type WordEntry struct {
	Word string
	Node PtNode
}

// Iterate visits every terminal in the trie depth-first, deleted ones
// included (the node status lets the caller filter). Moved groups are
// skipped; their replacements are visited through the array chain. The walk
// stops early when fn returns false.
func (d *Dictionary) Iterate(fn func(e WordEntry) bool) error {
	err := d.iterate(0, nil, fn, 0)
	if err == errStopIteration {
		return nil
	}
	return err
}

func (d *Dictionary) iterate(pos int, prefix []rune, fn func(e WordEntry) bool, depth int) error {
	if depth > maxTrieDepth {
		return ErrAddressOutOfRange
	}
	for {
		arr, err := d.ReadNodeArray(pos)
		if err != nil {
			return err
		}
		for i := range arr.Nodes {
			n := arr.Nodes[i]
			if n.Status == StatusMoved {
				continue
			}
			word := append(append([]rune{}, prefix...), n.Chars...)
			if n.Terminal {
				if !fn(WordEntry{Word: string(word), Node: n}) {
					return errStopIteration
				}
			}
			if n.Children != 0 {
				if err := d.iterate(n.Children, word, fn, depth+1); err != nil {
					return err
				}
			}
		}
		if arr.Forward == 0 {
			return nil
		}
		pos = arr.Forward
	}
}

func (d *Dictionary) readPtNodeCount(pos int) (count, consumed int, err error) {
	b0, err := d.Body.Byte(pos)
	if err != nil {
		return 0, 0, err
	}
	if b0 < 0x80 {
		return int(b0), 1, nil
	}
	b1, err := d.Body.Byte(pos + 1)
	if err != nil {
		return 0, 0, err
	}
	return int(b0&0x7F)<<8 | int(b1), 2, nil
}

func (d *Dictionary) appendPtNodeCount(count int) {
	if count < 0x80 {
		d.Body.AppendByte(byte(count))
		return
	}
	d.Body.AppendByte(byte(count>>8) | 0x80)
	d.Body.AppendByte(byte(count))
}

func commonPrefixLen(a, b []rune) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
