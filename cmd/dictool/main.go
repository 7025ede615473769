// Copyright 2026 The LexiDict Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements dictool, the offline dictionary tool.

dictool builds binary trie dictionaries from word frequency lists, dumps
existing dictionaries back to text and runs compaction on dictionaries that
have accumulated slack.

# Usage

Build a dictionary from a frequency list:

	dictool build -in words.txt -out data/en/main -locale en

The input is one entry per line, word first, frequency second, separated by
whitespace. Frequencies are clamped to 0..255. Use -dynamic to emit the
updatable generation instead of the static one.

Dump a dictionary:

	dictool dump -in data/en/main

Compact a dynamic dictionary in place:

	dictool gc -in data/en/history
*/
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bastiangx/lexidict/pkg/dynamic"
	"github.com/bastiangx/lexidict/pkg/format"
	"github.com/charmbracelet/log"
)

func main() {
	log.SetReportTimestamp(false)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "build":
		err = runBuild(os.Args[2:])
	case "dump":
		err = runDump(os.Args[2:])
	case "gc":
		err = runGC(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: dictool <build|dump|gc> [flags]")
	fmt.Fprintln(os.Stderr, "run dictool <command> -h for command flags")
}

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	in := fs.String("in", "", "Input frequency list (word freq per line)")
	out := fs.String("out", "", "Output dictionary path")
	locale := fs.String("locale", "en", "Locale recorded in the header")
	dyn := fs.Bool("dynamic", false, "Emit the updatable generation")
	fs.Parse(args)

	if *in == "" || *out == "" {
		return fmt.Errorf("build: -in and -out are required")
	}

	words, err := readWordList(*in)
	if err != nil {
		return err
	}
	log.Infof("read %d words from %s", len(words), *in)

	opts := format.StaticOptions()
	if *dyn {
		opts = format.DynamicOptions()
	}
	d, err := format.Build(opts, *locale, words)
	if err != nil {
		return err
	}
	if err := format.Save(d, *out); err != nil {
		return err
	}
	log.Infof("wrote %s (%d bytes)", *out, d.Body.Len())
	return nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	in := fs.String("in", "", "Dictionary path")
	all := fs.Bool("all", false, "Include deleted and not-a-word entries")
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("dump: -in is required")
	}
	d, err := format.Load(*in)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	return d.Iterate(func(e format.WordEntry) bool {
		if !*all && !e.Node.IsValidTerminal() {
			return true
		}
		fmt.Fprintf(w, "%s\t%d\n", e.Word, d.FrequencyOf(&e.Node))
		return true
	})
}

func runGC(args []string) error {
	fs := flag.NewFlagSet("gc", flag.ExitOnError)
	in := fs.String("in", "", "Dictionary path")
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("gc: -in is required")
	}
	d, err := format.Load(*in)
	if err != nil {
		return err
	}
	before := d.Body.Len()

	engine, err := dynamic.NewEngine(d, dynamic.Options{})
	if err != nil {
		return err
	}
	if err := engine.Compact(); err != nil {
		return err
	}
	if err := engine.Flush(*in); err != nil {
		return err
	}
	after := engine.Dict().Body.Len()
	log.Infof("compacted %s: %d -> %d bytes", *in, before, after)
	return nil
}

// readWordList parses a frequency list, one word per line. Duplicate words
// keep the highest frequency seen. Output is sorted by word so builds are
// reproducible.
func readWordList(path string) ([]format.WordSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	freqs := make(map[string]int)
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		word := fields[0]
		freq := 1
		if len(fields) > 1 {
			freq, err = strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: bad frequency %q", path, line, fields[1])
			}
		}
		if freq < 0 {
			freq = 0
		}
		if freq > 255 {
			freq = 255
		}
		if freq > freqs[word] || freqs[word] == 0 {
			freqs[word] = freq
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	words := make([]format.WordSpec, 0, len(freqs))
	for word, freq := range freqs {
		words = append(words, format.WordSpec{Word: word, Freq: freq})
	}
	sort.Slice(words, func(i, j int) bool { return words[i].Word < words[j].Word })
	return words, nil
}
