package format

// nodeCodec is the per-generation wire layout for one character group. The
// two generations share everything else; a runtime version tag picks the
// implementation.
type nodeCodec interface {
	readNode(b *Buffer, pos int) (PtNode, error)
	appendNode(b *Buffer, n *PtNode)
}

func codecFor(opts FormatOptions) nodeCodec {
	if opts.Version == VersionDynamic {
		return dynamicCodec{}
	}
	return staticCodec{}
}

// staticCodec: flags, chars, inline frequency for terminals, children
// address, then inline shortcut and bigram lists.
type staticCodec struct{}

func (staticCodec) readNode(b *Buffer, pos int) (PtNode, error) {
	n := PtNode{Pos: pos, TerminalID: -1, Freq: -1}
	flags, err := b.Byte(pos)
	if err != nil {
		return n, err
	}
	decodeFlags(&n, flags)
	p := pos + 1

	chars, consumed, err := readChars(b, p, flags&flagHasMultipleChars != 0)
	if err != nil {
		return n, err
	}
	n.Chars = chars
	p += consumed

	if n.Terminal {
		n.freqFieldPos = p
		f, err := b.Byte(p)
		if err != nil {
			return n, err
		}
		n.Freq = int(f)
		p++
	}

	n.childrenFieldPos = p
	n.Children, err = b.ReadUint24(p)
	if err != nil {
		return n, err
	}
	p += 3

	if n.flagsHaveShortcuts {
		count, err := b.Byte(p)
		if err != nil {
			return n, err
		}
		p++
		for i := 0; i < int(count); i++ {
			chars, consumed, err := readChars(b, p, true)
			if err != nil {
				return n, err
			}
			p += consumed
			f, err := b.Byte(p)
			if err != nil {
				return n, err
			}
			p++
			n.Shortcuts = append(n.Shortcuts, Shortcut{Target: string(chars), Freq: int(f)})
		}
	}

	if n.flagsHaveBigrams {
		count, err := b.Byte(p)
		if err != nil {
			return n, err
		}
		p++
		for i := 0; i < int(count); i++ {
			n.bigramFieldPos = append(n.bigramFieldPos, p)
			target, err := b.ReadUint24(p)
			if err != nil {
				return n, err
			}
			p += 3
			f, err := b.Byte(p)
			if err != nil {
				return n, err
			}
			p++
			n.Bigrams = append(n.Bigrams, Bigram{TargetPos: target, TargetID: -1, Freq: int(f)})
		}
	}

	n.Size = p - pos
	return n, nil
}

func (staticCodec) appendNode(b *Buffer, n *PtNode) {
	n.Pos = b.Len()
	b.AppendByte(n.encodeFlags())
	b.Append(encodeChars(n.Chars))
	if n.Terminal {
		n.freqFieldPos = b.AppendByte(byte(clampByte(n.Freq)))
	}
	n.childrenFieldPos = b.AppendUint24(n.Children)
	if len(n.Shortcuts) > 0 {
		b.AppendByte(byte(len(n.Shortcuts)))
		for _, s := range n.Shortcuts {
			enc := make([]byte, 0, len(s.Target)+1)
			for _, c := range s.Target {
				enc = appendChar(enc, c)
			}
			enc = append(enc, charTerminator)
			b.Append(enc)
			b.AppendByte(byte(clampByte(s.Freq)))
		}
	}
	if len(n.Bigrams) > 0 {
		b.AppendByte(byte(len(n.Bigrams)))
		for _, bg := range n.Bigrams {
			target := bg.TargetPos
			if target < 0 {
				target = 0
			}
			n.bigramFieldPos = append(n.bigramFieldPos, b.AppendUint24(target))
			b.AppendByte(byte(clampByte(bg.Freq)))
		}
	}
	n.Size = b.Len() - n.Pos
}

// dynamicCodec: flags, parent address, chars, terminal id for terminals,
// children address. The parent field doubles as the forward pointer once a
// group is marked moved. Attribute lists live in the content tables.
type dynamicCodec struct{}

func (dynamicCodec) readNode(b *Buffer, pos int) (PtNode, error) {
	n := PtNode{Pos: pos, TerminalID: -1, Freq: -1}
	flags, err := b.Byte(pos)
	if err != nil {
		return n, err
	}
	decodeFlags(&n, flags)
	p := pos + 1

	n.parentFieldPos = p
	rel, err := b.ReadInt24(p)
	if err != nil {
		return n, err
	}
	p += 3
	if rel != 0 {
		if n.Status == StatusMoved {
			n.Forward = pos + rel
		} else {
			n.Parent = pos + rel
		}
	}

	chars, consumed, err := readChars(b, p, flags&flagHasMultipleChars != 0)
	if err != nil {
		return n, err
	}
	n.Chars = chars
	p += consumed

	if n.Terminal {
		n.freqFieldPos = p
		n.TerminalID, err = b.ReadUint32(p)
		if err != nil {
			return n, err
		}
		p += 4
	}

	n.childrenFieldPos = p
	n.Children, err = b.ReadUint24(p)
	if err != nil {
		return n, err
	}
	p += 3

	n.Size = p - pos
	return n, nil
}

func (dynamicCodec) appendNode(b *Buffer, n *PtNode) {
	n.Pos = b.Len()
	b.AppendByte(n.encodeFlags())
	rel := 0
	if n.Parent != 0 {
		rel = n.Parent - n.Pos
	}
	n.parentFieldPos = b.AppendInt24(rel)
	b.Append(encodeChars(n.Chars))
	if n.Terminal {
		n.freqFieldPos = b.AppendUint32(n.TerminalID)
	}
	n.childrenFieldPos = b.AppendUint24(n.Children)
	n.Size = b.Len() - n.Pos
}

func decodeFlags(n *PtNode, flags byte) {
	switch flags & flagStatusMask {
	case flagStatusMoved:
		n.Status = StatusMoved
	case flagStatusDeleted:
		n.Status = StatusDeleted
	default:
		n.Status = StatusLive
	}
	n.Terminal = flags&flagIsTerminal != 0
	n.NotAWord = flags&flagIsNotAWord != 0
	n.Blacklisted = flags&flagIsBlacklisted != 0
	n.flagsHaveShortcuts = flags&flagHasShortcuts != 0
	n.flagsHaveBigrams = flags&flagHasBigrams != 0
}

func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
