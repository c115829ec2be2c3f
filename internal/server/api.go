package server

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/termdock/termdock"
)

type apiTerminalInfo struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	State    string   `json:"state"`
	Index    int      `json:"index"`
	Cmd      []string `json:"cmd"`
	Windows  int      `json:"windows"`
	Proc     int      `json:"proc"`
	Consumer int      `json:"consumer"`
}

type createTerminalRequest struct {
	Cmd       []string          `json:"cmd"`
	Cwd       string            `json:"cwd"`
	Env       map[string]string `json:"env"`
	Autoclose bool              `json:"autoclose"`
}

type sendRequest struct {
	Lines []string `json:"lines"`
}

type openRequest struct {
	Force bool `json:"force"`
}

type killResponse struct {
	ConfirmToken string `json:"confirmToken"`
	ExpiresAtMs  int64  `json:"expiresAtMs"`
	Prompt       string `json:"prompt"`
}

type killConfirmRequest struct {
	ConfirmToken string `json:"confirmToken"`
}

type resizeRequest struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

type historyChunk struct {
	Sequence    int64  `json:"sequence"`
	DataBase64  string `json:"data"`
	TimestampMs int64  `json:"timestampMs"`
}

func (s *Server) terminalInfo(id string, t *termdock.Terminal) apiTerminalInfo {
	index, _ := t.Index()
	return apiTerminalInfo{
		ID:       id,
		Title:    t.Title(),
		State:    t.State().String(),
		Index:    index,
		Cmd:      t.Config().Cmd,
		Windows:  len(t.Windows()),
		Proc:     int(t.Proc()),
		Consumer: int(t.Consumer()),
	}
}

func (s *Server) handleTerminals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		terms := s.manager.Terminals()

		s.mu.RLock()
		out := make([]apiTerminalInfo, 0, len(terms))
		for _, t := range terms {
			id, ok := s.idByTerm[t]
			if !ok {
				continue
			}
			index, _ := t.Index()
			out = append(out, apiTerminalInfo{
				ID:       id,
				Title:    t.Title(),
				State:    t.State().String(),
				Index:    index,
				Cmd:      t.Config().Cmd,
				Windows:  len(t.Windows()),
				Proc:     int(t.Proc()),
				Consumer: int(t.Consumer()),
			})
		}
		s.mu.RUnlock()

		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var req createTerminalRequest
		if r.Body != nil {
			if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
				http.Error(w, "invalid payload", http.StatusBadRequest)
				return
			}
		}

		t := s.manager.NewTerminal(termdock.Config{
			Cmd:       req.Cmd,
			Cwd:       req.Cwd,
			Env:       req.Env,
			Autoclose: req.Autoclose,
		})

		// Open rather than bare Spawn: each terminal needs its own fresh
		// consumer, and only surface creation produces one.
		if err := t.Open(nil, false); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.metrics.Spawned.Inc(1)

		s.mu.RLock()
		id := s.idByTerm[t]
		s.mu.RUnlock()

		writeJSON(w, http.StatusCreated, s.terminalInfo(id, t))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTerminalByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/terminals/")
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		http.NotFound(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id := parts[0]
	action := strings.Join(parts[1:], "/")

	t, ok := s.lookup(id)
	if !ok {
		http.Error(w, "terminal not found", http.StatusNotFound)
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, s.terminalInfo(id, t))

	case "open":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req openRequest
		if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if err := t.Open(nil, req.Force); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case "close":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := t.Close(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case "toggle":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := t.Toggle(nil, false); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case "send":
		s.handleSend(w, r, id, t)

	case "kill":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		token, expires := s.issueKillToken(id)
		writeJSON(w, http.StatusAccepted, killResponse{
			ConfirmToken: token,
			ExpiresAtMs:  expires.UnixMilli(),
			Prompt:       "Kill terminal \"" + t.Title() + "\"? Confirm within " + s.killTTL.String() + ".",
		})

	case "kill/confirm":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req killConfirmRequest
		if err := readJSON(r, &req); err != nil || strings.TrimSpace(req.ConfirmToken) == "" {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if !s.consumeKillToken(id, req.ConfirmToken) {
			http.Error(w, "invalid or expired confirmation token", http.StatusForbidden)
			return
		}
		if err := t.Kill(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.metrics.Killed.Inc(1)
		w.WriteHeader(http.StatusNoContent)

	case "resize":
		s.handleResize(w, r, t)

	case "history":
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		fromSeq, err := parseIntQuery(r.URL.Query(), "fromSeq", 0)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		chunks := t.History(fromSeq)
		out := make([]historyChunk, 0, len(chunks))
		for _, chunk := range chunks {
			out = append(out, historyChunk{
				Sequence:    chunk.Seq,
				DataBase64:  base64.StdEncoding.EncodeToString(chunk.Data),
				TimestampMs: chunk.Timestamp,
			})
		}
		writeJSON(w, http.StatusOK, out)

	case "clear":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		t.ClearHistory()
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "unknown action: "+action, http.StatusNotFound)
	}
}

type adoptRequest struct {
	Consumer int `json:"consumer"`
}

// handleAdopt claims an externally-opened process-backed consumer, the HTTP
// face of Manager.AdoptConsumer.
func (s *Server) handleAdopt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req adoptRequest
	if err := readJSON(r, &req); err != nil || req.Consumer <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	t, err := s.manager.AdoptConsumer(termdock.ConsumerHandle(req.Consumer))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.metrics.Adopted.Inc(1)

	s.mu.RLock()
	id := s.idByTerm[t]
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, s.terminalInfo(id, t))
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request, id string, t *termdock.Terminal) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req sendRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	size := 0
	for _, l := range req.Lines {
		size += len(l) + 1
	}
	if size > maxInputBytes {
		http.Error(w, "input too large", http.StatusRequestEntityTooLarge)
		return
	}
	if !s.inputLimiter.Allow(clientKey(r, id), size, time.Now()) {
		http.Error(w, "input rate exceeded", http.StatusTooManyRequests)
		return
	}

	if err := t.Send(req.Lines...); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, termdock.ErrNotAttached) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	s.metrics.InputBytes.Mark(int64(size))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request, t *termdock.Terminal) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.resizer == nil {
		http.Error(w, "backend does not support resize", http.StatusNotImplemented)
		return
	}
	var req resizeRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if !validateDims(req.Cols, req.Rows) {
		http.Error(w, "invalid cols/rows", http.StatusBadRequest)
		return
	}
	if t.Proc() <= 0 {
		http.Error(w, termdock.ErrNotAttached.Error(), http.StatusConflict)
		return
	}
	if err := s.resizer.Resize(t.Proc(), req.Cols, req.Rows); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
