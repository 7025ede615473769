package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := NewHeader(DynamicOptions(), "en_US")
	h.Attributes[AttrDescription] = "unit test dictionary"

	encoded := h.Encode()
	decoded, size, err := ReadHeader(encoded)
	require.NoError(t, err)

	assert.Equal(t, len(encoded), size)
	assert.Equal(t, MagicNumber, decoded.Magic)
	assert.Equal(t, VersionDynamic, decoded.Options.Version)
	assert.True(t, decoded.Options.SupportsDynamicUpdate)
	assert.True(t, decoded.Options.HasTimestamps)
	assert.Equal(t, "en_US", decoded.Locale())
	assert.Equal(t, h.Attributes[AttrDictionaryID], decoded.Attributes[AttrDictionaryID])
	assert.Equal(t, "unit test dictionary", decoded.Attributes[AttrDescription])
}

func TestHeaderLegacyMagicAccepted(t *testing.T) {
	h := NewHeader(StaticOptions(), "en")
	h.Magic = MagicNumberLegacy

	decoded, _, err := ReadHeader(h.Encode())
	require.NoError(t, err)
	assert.Equal(t, MagicNumberLegacy, decoded.Magic)
	assert.Equal(t, VersionStatic, decoded.Options.Version)
}

func TestHeaderBadMagic(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0, 2, 0, 0, 0, 0, 0, 12}
	_, _, err := ReadHeader(data)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestHeaderTruncated(t *testing.T) {
	h := NewHeader(StaticOptions(), "en")
	encoded := h.Encode()

	for _, cut := range []int{0, 3, 7, 11, len(encoded) - 1} {
		_, _, err := ReadHeader(encoded[:cut])
		assert.ErrorIs(t, err, ErrTruncated, "cut at %d byte(s)", cut)
	}
}

func TestHeaderUnsupportedVersion(t *testing.T) {
	h := NewHeader(StaticOptions(), "en")
	encoded := h.Encode()
	encoded[5] = 99

	_, _, err := ReadHeader(encoded)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}
