package format

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/RoaringBitmap/roaring"
	"github.com/charmbracelet/log"
)

// Content table geometry. Tables are sparse: terminal ids are grouped into
// fixed-size blocks and a block is only materialized once one of its ids is
// written.
const (
	contentBlockSize = 64

	// MaxAttributesPerTerminal caps one terminal's bigram or shortcut list.
	// Entries beyond the cap are dropped with a logged warning, never an
	// error surfaced to the caller.
	MaxAttributesPerTerminal = 10000
)

// SparseTable maps a terminal id to one uint32 value using block-indexed
// storage: index[block] is the offset of the block's values, -1 if the block
// was never written.
type SparseTable struct {
	index  []int32
	values []uint32
}

// NewSparseTable returns an empty table.
func NewSparseTable() *SparseTable {
	return &SparseTable{}
}

// Get returns the value for id and whether it was ever set.
func (t *SparseTable) Get(id int) (uint32, bool) {
	block := id / contentBlockSize
	if block >= len(t.index) || t.index[block] < 0 {
		return 0, false
	}
	v := t.values[int(t.index[block])+id%contentBlockSize]
	if v == sparseUnset {
		return 0, false
	}
	return v, true
}

// Set stores the value for id, materializing its block on first touch.
func (t *SparseTable) Set(id int, v uint32) {
	block := id / contentBlockSize
	for block >= len(t.index) {
		t.index = append(t.index, -1)
	}
	if t.index[block] < 0 {
		t.index[block] = int32(len(t.values))
		for i := 0; i < contentBlockSize; i++ {
			t.values = append(t.values, sparseUnset)
		}
	}
	t.values[int(t.index[block])+id%contentBlockSize] = v
}

// Unset clears the value for id without releasing its block.
func (t *SparseTable) Unset(id int) {
	block := id / contentBlockSize
	if block >= len(t.index) || t.index[block] < 0 {
		return
	}
	t.values[int(t.index[block])+id%contentBlockSize] = sparseUnset
}

const sparseUnset = 0xFFFFFFFF

func (t *SparseTable) encode(w *bytes.Buffer) {
	binary.Write(w, binary.BigEndian, uint32(len(t.index)))
	for _, v := range t.index {
		binary.Write(w, binary.BigEndian, v)
	}
	binary.Write(w, binary.BigEndian, uint32(len(t.values)))
	for _, v := range t.values {
		binary.Write(w, binary.BigEndian, v)
	}
}

func decodeSparseTable(r *bytes.Reader) (*SparseTable, error) {
	var nIndex uint32
	if err := binary.Read(r, binary.BigEndian, &nIndex); err != nil {
		return nil, ErrTruncated
	}
	t := &SparseTable{index: make([]int32, nIndex)}
	for i := range t.index {
		if err := binary.Read(r, binary.BigEndian, &t.index[i]); err != nil {
			return nil, ErrTruncated
		}
	}
	var nValues uint32
	if err := binary.Read(r, binary.BigEndian, &nValues); err != nil {
		return nil, ErrTruncated
	}
	t.values = make([]uint32, nValues)
	for i := range t.values {
		if err := binary.Read(r, binary.BigEndian, &t.values[i]); err != nil {
			return nil, ErrTruncated
		}
	}
	return t, nil
}

// ContentTables is the auxiliary per-terminal content of a dynamic
// dictionary: frequency (with decay metadata), terminal-id to body address,
// bigram lists and shortcut lists. List heaps are append-only; updating a
// list writes a fresh copy at the tail and repoints the index entry.
type ContentTables struct {
	opts FormatOptions

	freq        *SparseTable // freq byte | level<<8 | count<<16
	timestamps  *SparseTable // last observation, unix seconds
	addr        *SparseTable // terminal id -> PtNode position
	bigramIdx   *SparseTable // terminal id -> offset+1 into bigramHeap
	shortcutIdx *SparseTable // terminal id -> offset+1 into shortcutHeap

	bigramHeap   []byte
	shortcutHeap []byte

	used *roaring.Bitmap // occupied terminal ids
}

// NewContentTables returns empty tables for a fresh dynamic dictionary.
func NewContentTables(opts FormatOptions) *ContentTables {
	return &ContentTables{
		opts:        opts,
		freq:        NewSparseTable(),
		timestamps:  NewSparseTable(),
		addr:        NewSparseTable(),
		bigramIdx:   NewSparseTable(),
		shortcutIdx: NewSparseTable(),
		used:        roaring.New(),
	}
}

// AllocTerminal reserves the next free terminal id and stores its initial
// frequency. Ids of compacted-away terminals are only reused after GC rebuilds
// the tables from scratch.
func (t *ContentTables) AllocTerminal(freq int) int {
	id := 0
	if !t.used.IsEmpty() {
		id = int(t.used.Maximum()) + 1
	}
	t.used.Add(uint32(id))
	t.freq.Set(id, uint32(clampByte(freq)))
	return id
}

// ReleaseTerminal drops all content for id. Used by GC only.
func (t *ContentTables) ReleaseTerminal(id int) {
	t.used.Remove(uint32(id))
	t.freq.Unset(id)
	t.timestamps.Unset(id)
	t.addr.Unset(id)
	t.bigramIdx.Unset(id)
	t.shortcutIdx.Unset(id)
}

// LiveTerminals returns the bitmap of occupied terminal ids.
func (t *ContentTables) LiveTerminals() *roaring.Bitmap {
	return t.used
}

// TerminalCount returns the number of live terminal ids.
func (t *ContentTables) TerminalCount() int {
	return int(t.used.GetCardinality())
}

// Frequency returns the stored one-byte frequency for id, 0 if unset.
func (t *ContentTables) Frequency(id int) int {
	v, ok := t.freq.Get(id)
	if !ok {
		return 0
	}
	return int(v & 0xFF)
}

// SetFrequency stores a one-byte frequency for id, preserving level and count.
func (t *ContentTables) SetFrequency(id, freq int) {
	v, _ := t.freq.Get(id)
	t.freq.Set(id, v&^uint32(0xFF)|uint32(clampByte(freq)))
}

// DecayEntry returns (freq, level, count, timestamp) for id.
func (t *ContentTables) DecayEntry(id int) (freq, level, count int, ts int64) {
	v, _ := t.freq.Get(id)
	freq = int(v & 0xFF)
	level = int(v >> 8 & 0xFF)
	count = int(v >> 16 & 0xFF)
	if t.opts.HasTimestamps {
		if s, ok := t.timestamps.Get(id); ok {
			ts = int64(s)
		}
	}
	return
}

// SetDecayEntry stores frequency plus decay metadata for id.
func (t *ContentTables) SetDecayEntry(id, freq, level, count int, ts int64) {
	t.freq.Set(id, uint32(clampByte(freq))|uint32(clampByte(level))<<8|uint32(clampByte(count))<<16)
	if t.opts.HasTimestamps {
		t.timestamps.Set(id, uint32(ts))
	}
}

// NodePos returns the body position of id's terminal group, 0 if unknown.
func (t *ContentTables) NodePos(id int) int {
	v, ok := t.addr.Get(id)
	if !ok {
		return 0
	}
	return int(v)
}

// SetNodePos records the body position of id's terminal group. Called on
// terminal creation and again whenever the update engine moves the group, so
// bigram targets stored by id stay resolvable across moves.
func (t *ContentTables) SetNodePos(id, pos int) {
	t.addr.Set(id, uint32(pos))
}

// Bigrams returns the decoded bigram list for id.
func (t *ContentTables) Bigrams(id int) []Bigram {
	off, ok := t.bigramIdx.Get(id)
	if !ok || off == 0 {
		return nil
	}
	return decodeBigramList(t.bigramHeap, int(off-1), t.opts.HasTimestamps)
}

// AddBigram appends or updates the (id -> target) bigram. The full list is
// rewritten at the heap tail; old bytes become slack until GC.
func (t *ContentTables) AddBigram(id, targetID, freq int, ts int64, level, count int) {
	list := t.Bigrams(id)
	updated := false
	for i := range list {
		if list[i].TargetID == targetID {
			list[i].Freq = freq
			list[i].Timestamp = ts
			list[i].Level = level
			list[i].Count = count
			updated = true
			break
		}
	}
	if !updated {
		if len(list) >= MaxAttributesPerTerminal {
			log.Warnf("bigram list for terminal %d is full (%d entries), dropping new target %d",
				id, len(list), targetID)
			return
		}
		list = append(list, Bigram{TargetID: targetID, Freq: freq, Timestamp: ts, Level: level, Count: count})
	}
	t.writeBigramList(id, list)
}

// SetBigrams replaces the whole bigram list for id.
func (t *ContentTables) SetBigrams(id int, list []Bigram) {
	if len(list) > MaxAttributesPerTerminal {
		log.Warnf("bigram list for terminal %d exceeds cap, truncating %d -> %d",
			id, len(list), MaxAttributesPerTerminal)
		list = list[:MaxAttributesPerTerminal]
	}
	t.writeBigramList(id, list)
}

func (t *ContentTables) writeBigramList(id int, list []Bigram) {
	if len(list) == 0 {
		t.bigramIdx.Set(id, 0)
		return
	}
	off := len(t.bigramHeap)
	t.bigramHeap = appendBigramList(t.bigramHeap, list, t.opts.HasTimestamps)
	t.bigramIdx.Set(id, uint32(off+1))
}

// Shortcuts returns the decoded shortcut list for id.
func (t *ContentTables) Shortcuts(id int) []Shortcut {
	off, ok := t.shortcutIdx.Get(id)
	if !ok || off == 0 {
		return nil
	}
	return decodeShortcutList(t.shortcutHeap, int(off-1))
}

// AddShortcut appends or updates a shortcut target for id.
func (t *ContentTables) AddShortcut(id int, target string, freq int) {
	list := t.Shortcuts(id)
	updated := false
	for i := range list {
		if list[i].Target == target {
			list[i].Freq = freq
			updated = true
			break
		}
	}
	if !updated {
		if len(list) >= MaxAttributesPerTerminal {
			log.Warnf("shortcut list for terminal %d is full (%d entries), dropping %q",
				id, len(list), target)
			return
		}
		list = append(list, Shortcut{Target: target, Freq: freq})
	}
	off := len(t.shortcutHeap)
	t.shortcutHeap = appendShortcutList(t.shortcutHeap, list)
	t.shortcutIdx.Set(id, uint32(off+1))
}

func appendBigramList(heap []byte, list []Bigram, ts bool) []byte {
	heap = append(heap, byte(len(list)>>8), byte(len(list)))
	for _, bg := range list {
		heap = append(heap, byte(bg.TargetID>>24), byte(bg.TargetID>>16), byte(bg.TargetID>>8), byte(bg.TargetID))
		heap = append(heap, byte(clampByte(bg.Freq)))
		if ts {
			heap = append(heap, byte(bg.Timestamp>>24), byte(bg.Timestamp>>16), byte(bg.Timestamp>>8), byte(bg.Timestamp))
			heap = append(heap, byte(clampByte(bg.Level)), byte(clampByte(bg.Count)))
		}
	}
	return heap
}

func decodeBigramList(heap []byte, off int, ts bool) []Bigram {
	if off+2 > len(heap) {
		return nil
	}
	count := int(heap[off])<<8 | int(heap[off+1])
	p := off + 2
	entry := 5
	if ts {
		entry += 6
	}
	if p+count*entry > len(heap) {
		return nil
	}
	list := make([]Bigram, 0, count)
	for i := 0; i < count; i++ {
		bg := Bigram{
			TargetPos: -1,
			TargetID:  int(heap[p])<<24 | int(heap[p+1])<<16 | int(heap[p+2])<<8 | int(heap[p+3]),
			Freq:      int(heap[p+4]),
		}
		p += 5
		if ts {
			bg.Timestamp = int64(heap[p])<<24 | int64(heap[p+1])<<16 | int64(heap[p+2])<<8 | int64(heap[p+3])
			bg.Level = int(heap[p+4])
			bg.Count = int(heap[p+5])
			p += 6
		}
		list = append(list, bg)
	}
	return list
}

func appendShortcutList(heap []byte, list []Shortcut) []byte {
	heap = append(heap, byte(len(list)>>8), byte(len(list)))
	for _, s := range list {
		heap = append(heap, byte(clampByte(s.Freq)))
		for _, c := range s.Target {
			heap = appendChar(heap, c)
		}
		heap = append(heap, charTerminator)
	}
	return heap
}

func decodeShortcutList(heap []byte, off int) []Shortcut {
	if off+2 > len(heap) {
		return nil
	}
	count := int(heap[off])<<8 | int(heap[off+1])
	p := off + 2
	b := NewBuffer(heap)
	list := make([]Shortcut, 0, count)
	for i := 0; i < count; i++ {
		if p >= len(heap) {
			return list
		}
		freq := int(heap[p])
		p++
		chars, consumed, err := readChars(b, p, true)
		if err != nil {
			return list
		}
		p += consumed
		list = append(list, Shortcut{Target: string(chars), Freq: freq})
	}
	return list
}

// Encode serializes one content concern to its sidecar file payload.
func (t *ContentTables) encodeFreq() []byte {
	var w bytes.Buffer
	t.freq.encode(&w)
	if t.opts.HasTimestamps {
		t.timestamps.encode(&w)
	}
	return w.Bytes()
}

func (t *ContentTables) encodeAddr() []byte {
	var w bytes.Buffer
	t.addr.encode(&w)
	bm, err := t.used.ToBytes()
	if err != nil {
		log.Errorf("serializing terminal bitmap: %v", err)
		bm = nil
	}
	binary.Write(&w, binary.BigEndian, uint32(len(bm)))
	w.Write(bm)
	return w.Bytes()
}

func (t *ContentTables) encodeBigrams() []byte {
	var w bytes.Buffer
	t.bigramIdx.encode(&w)
	binary.Write(&w, binary.BigEndian, uint32(len(t.bigramHeap)))
	w.Write(t.bigramHeap)
	return w.Bytes()
}

func (t *ContentTables) encodeShortcuts() []byte {
	var w bytes.Buffer
	t.shortcutIdx.encode(&w)
	binary.Write(&w, binary.BigEndian, uint32(len(t.shortcutHeap)))
	w.Write(t.shortcutHeap)
	return w.Bytes()
}

func (t *ContentTables) decodeFreq(data []byte) error {
	r := bytes.NewReader(data)
	ft, err := decodeSparseTable(r)
	if err != nil {
		return err
	}
	t.freq = ft
	if t.opts.HasTimestamps {
		ts, err := decodeSparseTable(r)
		if err != nil {
			return err
		}
		t.timestamps = ts
	}
	return nil
}

func (t *ContentTables) decodeAddr(data []byte) error {
	r := bytes.NewReader(data)
	at, err := decodeSparseTable(r)
	if err != nil {
		return err
	}
	t.addr = at
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return ErrTruncated
	}
	bm := make([]byte, n)
	if _, err := io.ReadFull(r, bm); err != nil {
		return ErrTruncated
	}
	t.used = roaring.New()
	if n > 0 {
		if err := t.used.UnmarshalBinary(bm); err != nil {
			return ErrTruncated
		}
	}
	return nil
}

func (t *ContentTables) decodeBigrams(data []byte) error {
	r := bytes.NewReader(data)
	it, err := decodeSparseTable(r)
	if err != nil {
		return err
	}
	t.bigramIdx = it
	heap, err := readLenPrefixed(r)
	if err != nil {
		return err
	}
	t.bigramHeap = heap
	return nil
}

func (t *ContentTables) decodeShortcuts(data []byte) error {
	r := bytes.NewReader(data)
	it, err := decodeSparseTable(r)
	if err != nil {
		return err
	}
	t.shortcutIdx = it
	heap, err := readLenPrefixed(r)
	if err != nil {
		return err
	}
	t.shortcutHeap = heap
	return nil
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, ErrTruncated
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, ErrTruncated
	}
	return out, nil
}
