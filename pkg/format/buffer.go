package format

// Buffer is a growable byte region holding the trie body. Existing bytes are
// only ever flag-patched or address-patched; new material is appended at the
// tail. All multi-byte fields are big-endian.
type Buffer struct {
	data []byte
}

// NewBuffer wraps existing bytes, typically a freshly read trie body.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Len returns the current number of bytes in the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Bytes returns the underlying byte slice. The slice is invalidated by the
// next append.
func (b *Buffer) Bytes() []byte {
	return b.data
}

func (b *Buffer) check(pos, n int) error {
	if pos < 0 || pos+n > len(b.data) {
		return ErrAddressOutOfRange
	}
	return nil
}

// Byte reads the single byte at pos.
func (b *Buffer) Byte(pos int) (byte, error) {
	if err := b.check(pos, 1); err != nil {
		return 0, err
	}
	return b.data[pos], nil
}

// ReadUint16 reads a 2-byte unsigned value at pos.
func (b *Buffer) ReadUint16(pos int) (int, error) {
	if err := b.check(pos, 2); err != nil {
		return 0, err
	}
	return int(b.data[pos])<<8 | int(b.data[pos+1]), nil
}

// ReadUint24 reads a 3-byte unsigned value at pos.
func (b *Buffer) ReadUint24(pos int) (int, error) {
	if err := b.check(pos, 3); err != nil {
		return 0, err
	}
	return int(b.data[pos])<<16 | int(b.data[pos+1])<<8 | int(b.data[pos+2]), nil
}

// ReadInt24 reads a 3-byte signed value at pos.
func (b *Buffer) ReadInt24(pos int) (int, error) {
	v, err := b.ReadUint24(pos)
	if err != nil {
		return 0, err
	}
	if v&0x800000 != 0 {
		v -= 0x1000000
	}
	return v, nil
}

// ReadUint32 reads a 4-byte unsigned value at pos.
func (b *Buffer) ReadUint32(pos int) (int, error) {
	if err := b.check(pos, 4); err != nil {
		return 0, err
	}
	return int(b.data[pos])<<24 | int(b.data[pos+1])<<16 | int(b.data[pos+2])<<8 | int(b.data[pos+3]), nil
}

// Append appends raw bytes and returns their starting position.
func (b *Buffer) Append(bs []byte) int {
	pos := len(b.data)
	b.data = append(b.data, bs...)
	return pos
}

// AppendByte appends one byte and returns its position.
func (b *Buffer) AppendByte(v byte) int {
	pos := len(b.data)
	b.data = append(b.data, v)
	return pos
}

// AppendUint16 appends a 2-byte value and returns its position.
func (b *Buffer) AppendUint16(v int) int {
	pos := len(b.data)
	b.data = append(b.data, byte(v>>8), byte(v))
	return pos
}

// AppendUint24 appends a 3-byte value and returns its position.
func (b *Buffer) AppendUint24(v int) int {
	pos := len(b.data)
	b.data = append(b.data, byte(v>>16), byte(v>>8), byte(v))
	return pos
}

// AppendInt24 appends a 3-byte signed value and returns its position.
func (b *Buffer) AppendInt24(v int) int {
	return b.AppendUint24(v & 0xFFFFFF)
}

// AppendUint32 appends a 4-byte value and returns its position.
func (b *Buffer) AppendUint32(v int) int {
	pos := len(b.data)
	b.data = append(b.data, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	return pos
}

// PatchByte overwrites the single byte at pos.
func (b *Buffer) PatchByte(pos int, v byte) error {
	if err := b.check(pos, 1); err != nil {
		return err
	}
	b.data[pos] = v
	return nil
}

// PatchUint24 overwrites the 3-byte value at pos. This is the only fixed-width
// address mutation the format permits on existing bytes.
func (b *Buffer) PatchUint24(pos, v int) error {
	if err := b.check(pos, 3); err != nil {
		return err
	}
	b.data[pos] = byte(v >> 16)
	b.data[pos+1] = byte(v >> 8)
	b.data[pos+2] = byte(v)
	return nil
}

// PatchInt24 overwrites the 3-byte signed value at pos.
func (b *Buffer) PatchInt24(pos, v int) error {
	return b.PatchUint24(pos, v&0xFFFFFF)
}
