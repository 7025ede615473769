// Package cli handles cmd line input and suggestions for DBG and testing various features
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bastiangx/lexidict/internal/utils"
	"github.com/bastiangx/lexidict/pkg/dict"
	"github.com/charmbracelet/log"
)

// InputHandler processes user input from stdin, providing
// suggestions. It accepts many flags to control behavior such as
// minimum and maximum prefix length, suggestion limits, and filtering options.
//
// A line of input is split on whitespace: the last token is the prefix
// being completed, any earlier tokens are treated as preceding words so
// next-word predictions can be exercised interactively. A line ending in
// a space queries next-word predictions with an empty prefix.
type InputHandler struct {
	facilitator     *dict.Facilitator
	minPrefixLength int
	maxPrefixLength int
	suggestLimit    int
	requestCount    int
	noFilter        bool
}

// NewInputHandler handles initialization of the InputHandler with basic parameters
func NewInputHandler(f *dict.Facilitator, minLength, maxLength, limit int, noFilter bool) *InputHandler {
	return &InputHandler{
		facilitator:     f,
		minPrefixLength: minLength,
		maxPrefixLength: maxLength,
		suggestLimit:    limit,
		noFilter:        noFilter,
	}
}

// Start begins the interface loop.
// It continuously prompts for input, reads a line from stdin,
// and passes the trimmed input to the handleInput() for processing.
// Loop terminates if an error occurs while reading from stdin
func (h *InputHandler) Start() error {
	log.Print("LexiDict CLI [BETA]")
	reader := bufio.NewReader(os.Stdin)
	log.Print("type something and press Enter to see the suggestions (Ctrl+C to exit):")
	log.Print("use `+word` to learn a word, `-word` to forget one")

	for {
		log.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		h.handleInput(line)
	}
}

// handleInput processes a single line to generate suggestions.
// It validates the prefix's length and content, then asks the facilitator
// for suggestions. Results are formatted and printed to the log.
// Also periodically flushes learned words back to disk.
func (h *InputHandler) handleInput(line string) {
	h.requestCount++
	if h.requestCount%50 == 0 {
		h.facilitator.Flush()
	}

	if word, ok := strings.CutPrefix(line, "+"); ok {
		word = strings.TrimSpace(word)
		h.facilitator.AddToUserHistory(word, nil, true)
		log.Printf("Learning '%s'", word)
		return
	}
	if word, ok := strings.CutPrefix(line, "-"); ok {
		word = strings.TrimSpace(word)
		h.facilitator.RemoveFromUserHistory(word)
		log.Printf("Forgetting '%s'", word)
		return
	}

	prefix, prevWords := splitQuery(line)

	if prefix != "" && len(prefix) < h.minPrefixLength {
		log.Errorf("Prefix too short: %s", prefix)
		return
	}

	if len(prefix) > h.maxPrefixLength {
		log.Errorf("Prefix too long: %s", prefix)
		return
	}

	// input filtering by default (unless --no-filter flag is used)
	if !h.noFilter {
		if prefix != "" && !utils.IsValidInput(prefix) {
			log.Info("No results found for prefix: '%s'", prefix)
			return
		}
	} else {
		log.Debug("Input filtering disabled - indexed all entries")
	}

	start := time.Now()

	log.Debug("Processing request for", "prefix", prefix, "context", prevWords)

	suggestions := h.facilitator.GetSuggestions(prefix, prevWords, h.suggestLimit)

	elapsed := time.Since(start)
	log.Debugf("Took [ %v ] for prefix '%s'", elapsed, prefix)

	if len(suggestions) == 0 {
		log.Warnf("No suggestions found for prefix: '%s'", prefix)
		return
	}

	log.Printf("Found %d suggestions for prefix '%s':", len(suggestions), prefix)
	for i, s := range suggestions {
		fmtScore := utils.FormatWithCommas(s.Score)
		clWord := fmt.Sprintf("\033[38;5;75m%s\033[0m", s.Word)
		log.Printf("%2d. %-40s (score: %8s)", i+1, clWord, fmtScore)
	}
}

// splitQuery separates a raw input line into the prefix under the cursor
// and the words preceding it. A trailing space means the prefix is empty
// and every token is context.
func splitQuery(line string) (prefix string, prevWords []string) {
	trailing := strings.HasSuffix(line, " ")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	if trailing {
		return "", fields
	}
	return fields[len(fields)-1], fields[:len(fields)-1]
}
