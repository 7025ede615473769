package format

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Well-known attribute keys stored in the header's key/value block.
const (
	AttrDictionaryID = "dictionary"
	AttrLocale       = "locale"
	AttrDate         = "date"
	AttrDescription  = "description"
)

// Header is the decoded file header: magic, format options and the
// string-keyed attribute map.
type Header struct {
	Magic      uint32
	Options    FormatOptions
	Attributes map[string]string
}

// NewHeader builds a header for a freshly created dictionary, stamping a
// random dictionary id and the creation time.
func NewHeader(opts FormatOptions, locale string) *Header {
	return &Header{
		Magic:   MagicNumber,
		Options: opts,
		Attributes: map[string]string{
			AttrDictionaryID: uuid.NewString(),
			AttrLocale:       locale,
			AttrDate:         time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// ReadHeader decodes a header from the start of data. It returns the header
// and the total header size in bytes, which is where the trie body begins.
// Either accepted magic value decodes; anything else is ErrBadMagic.
func ReadHeader(data []byte) (*Header, int, error) {
	if len(data) < 4 {
		return nil, 0, ErrTruncated
	}
	magic := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	if magic != MagicNumber && magic != MagicNumberLegacy {
		return nil, 0, ErrBadMagic
	}
	if len(data) < 12 {
		return nil, 0, ErrTruncated
	}
	version := int(data[4])<<8 | int(data[5])
	if version != VersionStatic && version != VersionDynamic {
		return nil, 0, ErrUnsupportedVersion
	}
	flags := uint16(data[6])<<8 | uint16(data[7])
	size := int(data[8])<<24 | int(data[9])<<16 | int(data[10])<<8 | int(data[11])
	if size < 12 || size > len(data) {
		return nil, 0, ErrTruncated
	}

	attrs := make(map[string]string)
	rest := data[12:size]
	for len(rest) > 0 {
		key, n, ok := readCString(rest)
		if !ok {
			return nil, 0, ErrTruncated
		}
		rest = rest[n:]
		val, n, ok := readCString(rest)
		if !ok {
			return nil, 0, ErrTruncated
		}
		rest = rest[n:]
		attrs[key] = val
	}

	return &Header{
		Magic:      magic,
		Options:    optionsFromHeader(version, flags),
		Attributes: attrs,
	}, size, nil
}

// Encode serializes the header. Attributes are written in sorted key order so
// encoding is deterministic for the round-trip property.
func (h *Header) Encode() []byte {
	keys := make([]string, 0, len(h.Attributes))
	for k := range h.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	size := 12
	for _, k := range keys {
		size += len(k) + 1 + len(h.Attributes[k]) + 1
	}

	out := make([]byte, 0, size)
	out = append(out,
		byte(h.Magic>>24), byte(h.Magic>>16), byte(h.Magic>>8), byte(h.Magic),
		byte(h.Options.Version>>8), byte(h.Options.Version))
	flags := h.Options.flags()
	out = append(out, byte(flags>>8), byte(flags))
	out = append(out, byte(size>>24), byte(size>>16), byte(size>>8), byte(size))
	for _, k := range keys {
		out = append(out, k...)
		out = append(out, 0)
		out = append(out, h.Attributes[k]...)
		out = append(out, 0)
	}
	return out
}

// Locale returns the locale attribute, empty if absent.
func (h *Header) Locale() string {
	return h.Attributes[AttrLocale]
}

func readCString(data []byte) (string, int, bool) {
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), i + 1, true
		}
	}
	return "", 0, false
}
