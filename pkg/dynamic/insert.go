package dynamic

import (
	"github.com/charmbracelet/log"

	"github.com/bastiangx/lexidict/pkg/format"
)

// insert walks the trie like a lookup and resolves the divergence point with
// one of four cases, each needing only appends plus address patches:
//
//  1. the word already ends at an existing group: update the frequency, or
//     append a replacement group and mark the old one moved when flags or
//     terminal-ness must change
//  2. the word is a strict prefix of a group's characters: split into prefix
//     (new terminal) and suffix
//  3. the word diverges inside a group's characters: split into the common
//     prefix with suffix and the new terminal as sibling children
//  4. the word extends past all existing content: append a fresh terminal
//     group and patch the link that should reach it
func (e *Engine) insert(rest []rune, freq int, prop WordProperty) error {
	d := e.dict
	arrPos := 0
	parentPos := 0

	for {
		arr, err := d.ReadNodeArray(arrPos)
		if err != nil {
			return err
		}

		var matched *format.PtNode
		for i := range arr.Nodes {
			n := &arr.Nodes[i]
			if n.Status == format.StatusMoved {
				continue
			}
			if commonLen(n.Chars, rest) > 0 {
				matched = n
				break
			}
		}

		if matched == nil {
			if arr.Forward != 0 {
				arrPos = arr.Forward
				continue
			}
			// case 4: nothing left to examine at this level
			return e.appendTerminalSibling(arr, rest, parentPos, freq, prop)
		}

		k := commonLen(matched.Chars, rest)
		switch {
		case k == len(matched.Chars) && k == len(rest):
			// case 1: word ends exactly at this group
			return e.updateTerminal(arr, matched, freq, prop)

		case k == len(matched.Chars):
			// full group match, word continues below
			if matched.Children != 0 {
				parentPos = matched.Pos
				arrPos = matched.Children
				rest = rest[k:]
				continue
			}
			// case 4: no children yet
			return e.appendChildTerminal(matched, rest[k:], freq, prop)

		default:
			// cases 2 and 3: the group's characters must be split
			return e.splitGroup(arr, matched, parentPos, k, rest, freq, prop)
		}
	}
}

// updateTerminal handles an exact hit. A live terminal with unchanged flags
// is a pure table update; anything else appends a replacement group and marks
// the old one moved.
func (e *Engine) updateTerminal(arr *format.NodeArray, n *format.PtNode, freq int, prop WordProperty) error {
	d := e.dict

	if n.Terminal && n.Status == format.StatusLive &&
		n.NotAWord == prop.NotAWord && n.Blacklisted == prop.Blacklisted {
		d.Tables.SetFrequency(n.TerminalID, freq)
		e.addShortcuts(n, prop)
		return nil
	}

	tid := n.TerminalID
	if !n.Terminal {
		tid = d.Tables.AllocTerminal(freq)
	} else {
		d.Tables.SetFrequency(tid, freq)
	}

	repl := format.PtNode{
		Chars:       n.Chars,
		Terminal:    true,
		NotAWord:    prop.NotAWord,
		Blacklisted: prop.Blacklisted,
		TerminalID:  tid,
		Freq:        -1,
		Parent:      n.Parent,
		Children:    n.Children,
	}
	newArr, err := e.appendLinkedArray(arr, []format.PtNode{repl})
	if err != nil {
		return err
	}
	newPos := newArr.Nodes[0].Pos

	if err := d.MarkMoved(n, newPos); err != nil {
		return err
	}
	d.Tables.SetNodePos(tid, newPos)
	if n.Children != 0 {
		if err := e.repatchParents(n.Children, newPos); err != nil {
			return err
		}
	}
	e.addShortcuts(&newArr.Nodes[0], prop)
	return nil
}

// appendTerminalSibling is case 4 at an exhausted level: a fresh array with
// the new terminal, linked from the level's last forward pointer.
func (e *Engine) appendTerminalSibling(lastArr *format.NodeArray, rest []rune, parentPos, freq int, prop WordProperty) error {
	node := e.newTerminalNode(rest, parentPos, freq, prop)
	newArr := e.dict.AppendNodeArray([]format.PtNode{node})
	e.dict.Tables.SetNodePos(node.TerminalID, newArr.Nodes[0].Pos)
	e.addShortcuts(&newArr.Nodes[0], prop)
	return e.dict.PatchForward(lastArr, newArr.Pos)
}

// appendChildTerminal is case 4 below a childless group.
func (e *Engine) appendChildTerminal(parent *format.PtNode, rest []rune, freq int, prop WordProperty) error {
	node := e.newTerminalNode(rest, parent.Pos, freq, prop)
	newArr := e.dict.AppendNodeArray([]format.PtNode{node})
	e.dict.Tables.SetNodePos(node.TerminalID, newArr.Nodes[0].Pos)
	e.addShortcuts(&newArr.Nodes[0], prop)
	return e.dict.PatchChildren(parent, newArr.Pos)
}

// splitGroup covers cases 2 and 3. The old group's characters are cut at k;
// a prefix group replaces the old one (via move) and the remainder continues
// as a suffix child, joined by the new word's terminal when the word diverges.
func (e *Engine) splitGroup(arr *format.NodeArray, n *format.PtNode, parentPos, k int, rest []rune, freq int, prop WordProperty) error {
	d := e.dict
	wordEndsAtPrefix := k == len(rest)

	prefix := format.PtNode{
		Chars:      append([]rune{}, n.Chars[:k]...),
		Parent:     parentPos,
		TerminalID: -1,
		Freq:       -1,
	}
	if wordEndsAtPrefix {
		prefix.Terminal = true
		prefix.NotAWord = prop.NotAWord
		prefix.Blacklisted = prop.Blacklisted
		prefix.TerminalID = d.Tables.AllocTerminal(freq)
	}
	prefixArr, err := e.appendLinkedArray(arr, []format.PtNode{prefix})
	if err != nil {
		return err
	}
	prefixNode := &prefixArr.Nodes[0]
	if wordEndsAtPrefix {
		d.Tables.SetNodePos(prefixNode.TerminalID, prefixNode.Pos)
		e.addShortcuts(prefixNode, prop)
	}

	suffix := format.PtNode{
		Chars:       append([]rune{}, n.Chars[k:]...),
		Terminal:    n.Terminal,
		NotAWord:    n.NotAWord,
		Blacklisted: n.Blacklisted,
		TerminalID:  n.TerminalID,
		Freq:        -1,
		Parent:      prefixNode.Pos,
		Children:    n.Children,
	}
	children := []format.PtNode{suffix}
	if !wordEndsAtPrefix {
		children = append(children, e.newTerminalNode(rest[k:], prefixNode.Pos, freq, prop))
	}
	childArr := d.AppendNodeArray(children)
	if err := d.PatchChildren(prefixNode, childArr.Pos); err != nil {
		return err
	}

	suffixPos := childArr.Nodes[0].Pos
	if suffix.Terminal {
		d.Tables.SetNodePos(suffix.TerminalID, suffixPos)
	}
	if !wordEndsAtPrefix {
		newNode := &childArr.Nodes[1]
		d.Tables.SetNodePos(newNode.TerminalID, newNode.Pos)
		e.addShortcuts(newNode, prop)
	}

	if err := d.MarkMoved(n, prefixNode.Pos); err != nil {
		return err
	}
	if n.Children != 0 {
		return e.repatchParents(n.Children, suffixPos)
	}
	return nil
}

func (e *Engine) newTerminalNode(chars []rune, parentPos, freq int, prop WordProperty) format.PtNode {
	tid := e.dict.Tables.AllocTerminal(freq)
	return format.PtNode{
		Chars:       append([]rune{}, chars...),
		Terminal:    true,
		NotAWord:    prop.NotAWord,
		Blacklisted: prop.Blacklisted,
		TerminalID:  tid,
		Freq:        -1,
		Parent:      parentPos,
	}
}

func (e *Engine) addShortcuts(n *format.PtNode, prop WordProperty) {
	if len(prop.Shortcuts) == 0 || n.TerminalID < 0 {
		return
	}
	for _, s := range prop.Shortcuts {
		e.dict.Tables.AddShortcut(n.TerminalID, s.Target, s.Freq)
	}
	if err := e.dict.SetAttributeFlags(n, false, true); err != nil {
		log.Warnf("patching shortcut flag for terminal %d: %v", n.TerminalID, err)
	}
}

// appendLinkedArray appends a fresh array holding nodes and links it from the
// tail of the level chain that contains from. The link patch happens last, so
// a crash before it only leaves unreachable slack.
func (e *Engine) appendLinkedArray(from *format.NodeArray, nodes []format.PtNode) (*format.NodeArray, error) {
	d := e.dict
	last := from
	for last.Forward != 0 {
		next, err := d.ReadNodeArray(last.Forward)
		if err != nil {
			return nil, err
		}
		last = next
	}
	newArr := d.AppendNodeArray(nodes)
	if err := d.PatchForward(last, newArr.Pos); err != nil {
		return nil, err
	}
	return newArr, nil
}

// repatchParents points the parent field of every group in the child level
// chain at newParentPos. Moved groups keep their forward pointer untouched.
func (e *Engine) repatchParents(childArrPos, newParentPos int) error {
	d := e.dict
	pos := childArrPos
	for pos != 0 {
		arr, err := d.ReadNodeArray(pos)
		if err != nil {
			return err
		}
		for i := range arr.Nodes {
			n := &arr.Nodes[i]
			if n.Status == format.StatusMoved {
				continue
			}
			if err := d.PatchParent(n, newParentPos); err != nil {
				return err
			}
		}
		pos = arr.Forward
	}
	return nil
}

func commonLen(a, b []rune) int {
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
