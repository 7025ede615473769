package format

import "errors"

// Decode and update failures surfaced by the codec. Callers upstream
// (the facilitator) translate these into rebuild-or-serve-empty policy
// instead of propagating them to the interactive path.
var (
	// ErrBadMagic means the leading four bytes match neither accepted magic value.
	ErrBadMagic = errors.New("format: bad magic number")

	// ErrUnsupportedVersion means the header version is not a known generation.
	ErrUnsupportedVersion = errors.New("format: unsupported format version")

	// ErrTruncated means the buffer ended before an expected field.
	ErrTruncated = errors.New("format: truncated read")

	// ErrAddressOutOfRange means a followed or patched address falls outside the buffer.
	ErrAddressOutOfRange = errors.New("format: address out of range")

	// ErrTooManyAttributes means a bigram or shortcut list exceeded the per-terminal cap.
	ErrTooManyAttributes = errors.New("format: too many attributes for terminal")

	// ErrNotFound means the requested word has no terminal in the trie.
	ErrNotFound = errors.New("format: word not found")
)

// errStopIteration unwinds a walk when the visitor returns false. It never
// escapes Iterate.
var errStopIteration = errors.New("format: stop iteration")
