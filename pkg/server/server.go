package server

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bastiangx/lexidict/pkg/config"
	"github.com/bastiangx/lexidict/pkg/dict"
)

// Server handles the IPC for dictionary queries and mutations.
type Server struct {
	facilitator *dict.Facilitator
	cfg         *config.Config
	dec         *msgpack.Decoder
	enc         *msgpack.Encoder
}

// NewServer creates a server over stdin/stdout.
func NewServer(f *dict.Facilitator, cfg *config.Config) *Server {
	return NewServerWithIO(f, cfg, os.Stdin, os.Stdout)
}

// NewServerWithIO creates a server over the given streams, used by tests.
func NewServerWithIO(f *dict.Facilitator, cfg *config.Config, r io.Reader, w io.Writer) *Server {
	return &Server{
		facilitator: f,
		cfg:         cfg,
		dec:         msgpack.NewDecoder(r),
		enc:         msgpack.NewEncoder(w),
	}
}

// Start processes requests until the input stream closes.
func (s *Server) Start() error {
	log.Debug("Starting server.")
	s.send(StatusResponse{Status: "ready"})

	for {
		var req Request
		if err := s.dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			log.Errorf("Decoding request: %v", err)
			s.send(StatusResponse{Status: "error", Error: "invalid msgpack request"})
			continue
		}
		s.handleRequest(req)
	}
}

func (s *Server) handleRequest(req Request) {
	switch req.Op {
	case "suggest":
		s.handleSuggest(req)
	case "learn":
		s.handleLearn(req)
	case "unlearn":
		s.handleUnlearn(req)
	case "flush":
		s.facilitator.Flush()
		s.send(StatusResponse{ID: req.ID, Status: "ok"})
	case "dump":
		s.handleDump(req)
	case "info":
		locale, states := s.facilitator.Info()
		s.send(InfoResponse{ID: req.ID, Locale: locale, Dictionaries: states})
	case "health":
		s.send(StatusResponse{ID: req.ID, Status: "ok"})
	default:
		s.send(StatusResponse{ID: req.ID, Status: "error",
			Error: fmt.Sprintf("unknown op: %s", req.Op)})
	}
}

func (s *Server) handleSuggest(req Request) {
	prefix := req.Prefix
	if len(prefix) < s.cfg.Server.MinPrefix && len(req.PrevWords) == 0 {
		s.send(StatusResponse{ID: req.ID, Status: "error", Error: "prefix too short"})
		return
	}
	if len(prefix) > s.cfg.Server.MaxPrefix {
		s.send(StatusResponse{ID: req.ID, Status: "error", Error: "prefix too long"})
		return
	}
	limit := req.Limit
	if limit < 1 || limit > s.cfg.Server.MaxLimit {
		limit = s.cfg.Server.MaxLimit
	}

	start := time.Now()
	suggestions := s.facilitator.GetSuggestions(prefix, req.PrevWords, limit)
	elapsed := time.Since(start)

	out := make([]ResponseSuggestion, len(suggestions))
	for i, sg := range suggestions {
		out[i] = ResponseSuggestion{Word: sg.Word, Rank: uint16(i + 1)}
	}
	s.send(SuggestResponse{
		ID:          req.ID,
		Suggestions: out,
		Count:       len(out),
		TimeTaken:   elapsed.Milliseconds(),
	})
}

func (s *Server) handleLearn(req Request) {
	if req.Word == "" {
		s.send(StatusResponse{ID: req.ID, Status: "error", Error: "missing word"})
		return
	}
	valid := true
	if req.Valid != nil {
		valid = *req.Valid
	}
	s.facilitator.AddToUserHistory(req.Word, req.PrevWords, valid)
	s.send(StatusResponse{ID: req.ID, Status: "ok"})
}

func (s *Server) handleUnlearn(req Request) {
	if req.Word == "" {
		s.send(StatusResponse{ID: req.ID, Status: "error", Error: "missing word"})
		return
	}
	s.facilitator.RemoveFromUserHistory(req.Word)
	s.send(StatusResponse{ID: req.ID, Status: "ok"})
}

func (s *Server) handleDump(req Request) {
	t, ok := typeByName(req.Dict)
	if !ok {
		s.send(StatusResponse{ID: req.ID, Status: "error",
			Error: fmt.Sprintf("unknown dictionary: %s", req.Dict)})
		return
	}
	words := s.facilitator.DumpAllWords(t)
	s.send(DumpResponse{ID: req.ID, Words: words, Count: len(words)})
}

func typeByName(name string) (dict.Type, bool) {
	for _, t := range dict.AllTypes {
		if t.String() == name {
			return t, true
		}
	}
	return 0, false
}

func (s *Server) send(response interface{}) {
	if err := s.enc.Encode(response); err != nil {
		log.Errorf("Encoding response: %v", err)
	}
}
