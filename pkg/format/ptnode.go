package format

// Status is the decoded move/delete state of a character group. The wire
// format packs it into the top two flag bits; decoding expands it into an
// explicit variant so the update engine switches on it instead of masking.
type Status uint8

const (
	// StatusLive is a normal, reachable group.
	StatusLive Status = iota
	// StatusMoved marks a group superseded by a replacement elsewhere in the
	// buffer; Forward points at the replacement.
	StatusMoved
	// StatusDeleted marks a terminal removed from suggestion iteration. Its
	// bytes stay valid for address arithmetic until compaction.
	StatusDeleted
)

// PtNode flag bits.
const (
	flagStatusMask       = 0xC0
	flagStatusMoved      = 0x40
	flagStatusDeleted    = 0x80
	flagHasMultipleChars = 0x20
	flagIsTerminal       = 0x10
	flagHasShortcuts     = 0x08
	flagHasBigrams       = 0x04
	flagIsNotAWord       = 0x02
	flagIsBlacklisted    = 0x01
)

// Character encoding: code points in [0x20, 0xFF] take one byte; everything
// else takes three bytes big-endian (the high byte of any valid code point is
// below 0x20, so the forms cannot collide). Multi-char groups end with the
// terminator.
const charTerminator = 0x1F

// PtNode is one decoded character group, carrying the byte offsets needed for
// the fixed-width patches the dynamic update engine performs.
type PtNode struct {
	Pos  int // offset of the flags byte in the body
	Size int // bytes consumed by this group

	Status  Status
	Forward int // replacement position when Status == StatusMoved

	Chars       []rune
	Terminal    bool
	NotAWord    bool
	Blacklisted bool

	TerminalID int // dynamic format; -1 otherwise
	Freq       int // static format inline frequency; -1 otherwise
	Parent     int // dynamic format, absolute position of parent group; 0 = none
	Children   int // absolute position of child node array; 0 = none

	// Inline attribute lists (static format only; dynamic keeps these in
	// content tables keyed by TerminalID).
	Bigrams   []Bigram
	Shortcuts []Shortcut

	// Attribute flags as stored on the wire. The dynamic codec cannot infer
	// these from the inline lists because table content is read separately.
	flagsHaveBigrams   bool
	flagsHaveShortcuts bool

	parentFieldPos   int
	childrenFieldPos int
	freqFieldPos     int
	bigramFieldPos   []int // static: offsets of inline bigram target fields
}

// Bigram is one (previous word, next word) frequency entry. TargetPos is the
// target group position in the static format; TargetID is the target terminal
// id in the dynamic format. Decay metadata is present when the format stores
// timestamps.
type Bigram struct {
	TargetPos int
	TargetID  int
	Freq      int
	Timestamp int64
	Level     int
	Count     int
}

// Shortcut is one shortcut target (word plus frequency) attached to a terminal.
type Shortcut struct {
	Target string
	Freq   int
}

// HasBigrams reports whether the group carries bigram attributes.
func (n *PtNode) HasBigrams() bool {
	return len(n.Bigrams) > 0 || n.flagsHaveBigrams
}

// IsValidTerminal reports whether the group ends a live, suggestible word.
func (n *PtNode) IsValidTerminal() bool {
	return n.Terminal && n.Status == StatusLive && !n.NotAWord && !n.Blacklisted
}

func (n *PtNode) encodeFlags() byte {
	var f byte
	switch n.Status {
	case StatusMoved:
		f |= flagStatusMoved
	case StatusDeleted:
		f |= flagStatusDeleted
	}
	if len(n.Chars) > 1 {
		f |= flagHasMultipleChars
	}
	if n.Terminal {
		f |= flagIsTerminal
	}
	if len(n.Shortcuts) > 0 || n.flagsHaveShortcuts {
		f |= flagHasShortcuts
	}
	if n.HasBigrams() {
		f |= flagHasBigrams
	}
	if n.NotAWord {
		f |= flagIsNotAWord
	}
	if n.Blacklisted {
		f |= flagIsBlacklisted
	}
	return f
}

func appendChar(dst []byte, r rune) []byte {
	if r >= 0x20 && r <= 0xFF {
		return append(dst, byte(r))
	}
	return append(dst, byte(r>>16), byte(r>>8), byte(r))
}

func encodeChars(chars []rune) []byte {
	out := make([]byte, 0, len(chars)+1)
	for _, r := range chars {
		out = appendChar(out, r)
	}
	if len(chars) > 1 {
		out = append(out, charTerminator)
	}
	return out
}

// readChar decodes one code point at pos, returning the rune and bytes
// consumed. The terminator is returned as (charTerminator, 1).
func readChar(b *Buffer, pos int) (rune, int, error) {
	c, err := b.Byte(pos)
	if err != nil {
		return 0, 0, err
	}
	if c >= 0x20 || c == charTerminator {
		return rune(c), 1, nil
	}
	v, err := b.ReadUint24(pos)
	if err != nil {
		return 0, 0, err
	}
	return rune(v), 3, nil
}

func readChars(b *Buffer, pos int, multiple bool) ([]rune, int, error) {
	if !multiple {
		r, n, err := readChar(b, pos)
		if err != nil {
			return nil, 0, err
		}
		if r == charTerminator {
			return nil, 0, ErrTruncated
		}
		return []rune{r}, n, nil
	}
	var chars []rune
	consumed := 0
	for {
		r, n, err := readChar(b, pos+consumed)
		if err != nil {
			return nil, 0, err
		}
		consumed += n
		if r == charTerminator {
			return chars, consumed, nil
		}
		chars = append(chars, r)
	}
}
