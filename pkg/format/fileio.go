package format

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/lexidict/internal/utils"
)

// Sidecar suffixes for the dynamic generation. The trie body carries the
// header; each content concern gets its own file so frequency, bigram and
// shortcut data update independently of the body.
const (
	trieSuffix     = ".trie"
	freqSuffix     = ".freq"
	addrSuffix     = ".tat"
	bigramSuffix   = ".bigrams"
	shortcutSuffix = ".shortcuts"
)

// Save writes the dictionary to path. Static dictionaries are one file;
// dynamic dictionaries are a directory of body plus sidecars. Every file is
// written to a temporary name and renamed into place, so a reader in another
// process never sees a half-written dictionary.
func Save(d *Dictionary, path string) error {
	body := append(d.Header.Encode(), d.Body.Bytes()...)

	if d.Options().Version != VersionDynamic {
		return utils.AtomicReplace(path, body)
	}

	if err := utils.EnsureDir(path); err != nil {
		return fmt.Errorf("creating dictionary directory %s: %w", path, err)
	}
	base := filepath.Join(path, filepath.Base(path))
	files := map[string][]byte{
		base + trieSuffix:     body,
		base + freqSuffix:     d.Tables.encodeFreq(),
		base + addrSuffix:     d.Tables.encodeAddr(),
		base + bigramSuffix:   d.Tables.encodeBigrams(),
		base + shortcutSuffix: d.Tables.encodeShortcuts(),
	}
	for name, data := range files {
		if err := utils.AtomicReplace(name, data); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a dictionary from path, a file (static) or a directory
// (dynamic). Header errors (ErrBadMagic, ErrUnsupportedVersion) pass through
// so the facilitator can apply its recreate policy.
func Load(path string) (*Dictionary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	bodyPath := path
	if info.IsDir() {
		bodyPath = filepath.Join(path, filepath.Base(path)+trieSuffix)
	}
	raw, err := os.ReadFile(bodyPath)
	if err != nil {
		return nil, err
	}

	header, size, err := ReadHeader(raw)
	if err != nil {
		return nil, err
	}

	d := &Dictionary{
		Header: header,
		Body:   NewBuffer(raw[size:]),
		codec:  codecFor(header.Options),
	}

	if header.Options.Version == VersionDynamic {
		d.Tables = NewContentTables(header.Options)
		base := filepath.Join(path, filepath.Base(path))
		sidecars := []struct {
			name   string
			decode func([]byte) error
		}{
			{base + freqSuffix, d.Tables.decodeFreq},
			{base + addrSuffix, d.Tables.decodeAddr},
			{base + bigramSuffix, d.Tables.decodeBigrams},
			{base + shortcutSuffix, d.Tables.decodeShortcuts},
		}
		for _, sc := range sidecars {
			data, err := os.ReadFile(sc.name)
			if err != nil {
				return nil, fmt.Errorf("reading content file %s: %w", sc.name, err)
			}
			if err := sc.decode(data); err != nil {
				return nil, fmt.Errorf("decoding content file %s: %w", sc.name, err)
			}
		}
	}

	log.Debugf("loaded dictionary %s (version %d, %d body bytes)",
		path, header.Options.Version, d.Body.Len())
	return d, nil
}
