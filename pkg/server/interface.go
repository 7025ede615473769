/*
Package server implements msgpack IPC for the dictionary engine.

The server speaks a request/response protocol over stdin/stdout. Each
request is one msgpack map with an "id" and an "op" field; the response
carries the same id. Binary msgpack keeps messages small and parsing cheap
compared to JSON on the interactive typing path.

Suggestion requests carry the typed prefix and the preceding words:

	{"id": "req_001", "op": "suggest", "p": "ame", "ctx": ["the"], "l": 24}

and are answered with ranked candidates plus timing info:

	{"id": "req_001", "s": [{"w": "amenity", "r": 1}, {"w": "america", "r": 2}], "c": 2, "t": 1}

Mutating ops ("learn", "unlearn", "flush") are acknowledged immediately;
the work itself runs on the owning dictionary's task queue and failures are
logged, never returned. "dump" and "info" exist for debugging and tests.

# Ops

  - suggest: prefix completion with optional previous-word context
  - learn:   record a committed word into user history
  - unlearn: remove a word from user history
  - flush:   persist pending mutations
  - dump:    list every stored word of one dictionary type
  - info:    active locale and per-dictionary lifecycle states
  - health:  liveness probe
*/
package server

// Request is the envelope every client message decodes into; which fields
// matter depends on the op.
type Request struct {
	ID        string   `msgpack:"id"`
	Op        string   `msgpack:"op"`
	Prefix    string   `msgpack:"p,omitempty"`
	PrevWords []string `msgpack:"ctx,omitempty"`
	Limit     int      `msgpack:"l,omitempty"`
	Word      string   `msgpack:"w,omitempty"`
	Valid     *bool    `msgpack:"valid,omitempty"`
	Dict      string   `msgpack:"dict,omitempty"`
}

// ResponseSuggestion is one ranked candidate.
type ResponseSuggestion struct {
	Word string `msgpack:"w"`
	Rank uint16 `msgpack:"r"`
}

// SuggestResponse answers a suggest op.
type SuggestResponse struct {
	ID          string               `msgpack:"id"`
	Suggestions []ResponseSuggestion `msgpack:"s"`
	Count       int                  `msgpack:"c"`
	TimeTaken   int64                `msgpack:"t"`
}

// StatusResponse acknowledges mutating ops and reports protocol errors.
type StatusResponse struct {
	ID     string `msgpack:"id"`
	Status string `msgpack:"status"`
	Error  string `msgpack:"error,omitempty"`
}

// DumpResponse answers a dump op.
type DumpResponse struct {
	ID    string         `msgpack:"id"`
	Words map[string]int `msgpack:"words"`
	Count int            `msgpack:"c"`
}

// InfoResponse answers an info op.
type InfoResponse struct {
	ID           string            `msgpack:"id"`
	Locale       string            `msgpack:"locale"`
	Dictionaries map[string]string `msgpack:"dicts"`
}
