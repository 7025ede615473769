package format

// Accepted header magic values. The legacy value is preserved so dictionaries
// written by older releases keep loading.
const (
	MagicNumber       uint32 = 0x9BC13AFE
	MagicNumberLegacy uint32 = 0x000078B1
)

// Format generations. VersionStatic is the single-file layout with inline
// frequencies; VersionDynamic adds parent addresses and moves frequencies,
// bigrams and shortcuts into sparse per-terminal content tables so the trie
// body can stay append-only under mutation.
const (
	VersionStatic  = 2
	VersionDynamic = 4
)

// Header option flag bits.
const (
	headerFlagDynamicUpdate uint16 = 0x0001
	headerFlagTimestamps    uint16 = 0x0002
)

// FormatOptions governs address layout, flag layout and whether separate
// content files exist for one dictionary.
type FormatOptions struct {
	Version               int
	SupportsDynamicUpdate bool
	HasTimestamps         bool
}

// StaticOptions returns the options for a generation-A dictionary.
func StaticOptions() FormatOptions {
	return FormatOptions{Version: VersionStatic}
}

// DynamicOptions returns the options for a generation-B dictionary with
// per-bigram decay timestamps enabled.
func DynamicOptions() FormatOptions {
	return FormatOptions{
		Version:               VersionDynamic,
		SupportsDynamicUpdate: true,
		HasTimestamps:         true,
	}
}

func (o FormatOptions) flags() uint16 {
	var f uint16
	if o.SupportsDynamicUpdate {
		f |= headerFlagDynamicUpdate
	}
	if o.HasTimestamps {
		f |= headerFlagTimestamps
	}
	return f
}

func optionsFromHeader(version int, flags uint16) FormatOptions {
	return FormatOptions{
		Version:               version,
		SupportsDynamicUpdate: flags&headerFlagDynamicUpdate != 0,
		HasTimestamps:         flags&headerFlagTimestamps != 0,
	}
}
