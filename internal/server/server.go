package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/termdock/termdock"
)

// Resizer is the optional geometry interface a process backend may offer.
// termdock.PTYBackend implements it; fakes used in tests do not have to.
type Resizer interface {
	Resize(proc termdock.ProcHandle, cols, rows int) error
}

// Options wires a Server to its backends.
type Options struct {
	Config  Config
	Process termdock.ProcessBackend
	Display *termdock.VirtualDisplay
	Logger  termdock.Logger
}

// Server exposes a terminal manager over HTTP and WebSocket. Terminals get
// stable UUID identifiers for their attached lifetime; once a terminal
// detaches its id is retired with it, matching the registry's attached-only
// contract.
type Server struct {
	manager *termdock.Manager
	display *termdock.VirtualDisplay
	resizer Resizer
	logger  termdock.Logger
	metrics *Metrics

	mu       sync.RWMutex
	byID     map[string]*termdock.Terminal
	idByTerm map[*termdock.Terminal]string
	idByProc map[termdock.ProcHandle]string

	killMu     sync.Mutex
	killTokens map[string]killToken

	wsMu         sync.RWMutex
	wsByTerminal map[string]map[*wsClient]struct{}

	inputLimiter *byteRateLimiter
	killTTL      time.Duration
	now          func() time.Time
}

type killToken struct {
	terminalID string
	expires    time.Time
}

// New creates a server over the given backends. The display's closing hook
// is claimed by the manager; kill confirmation happens at the HTTP layer via
// tokens, so the manager itself never prompts.
func New(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = termdock.NopLogger{}
	}
	display := opts.Display
	if display == nil {
		display = termdock.NewVirtualDisplay(logger)
	}
	cfg := opts.Config

	s := &Server{
		display:      display,
		logger:       logger,
		metrics:      NewMetrics(),
		byID:         make(map[string]*termdock.Terminal),
		idByTerm:     make(map[*termdock.Terminal]string),
		idByProc:     make(map[termdock.ProcHandle]string),
		killTokens:   make(map[string]killToken),
		wsByTerminal: make(map[string]map[*wsClient]struct{}),
		inputLimiter: newByteRateLimiter(cfg.InputRatePerSec, cfg.InputBurst),
		killTTL:      cfg.KillTokenTTL,
		now:          time.Now,
	}
	if s.killTTL <= 0 {
		s.killTTL = 30 * time.Second
	}
	if r, ok := opts.Process.(Resizer); ok {
		s.resizer = r
	}

	mgr, err := termdock.NewManager(termdock.ManagerOptions{
		Process:   opts.Process,
		Display:   display,
		Logger:    logger,
		Confirmer: termdock.StaticConfirmer(true),
		Handler:   s,
		Defaults: termdock.Config{
			HistoryChunks: cfg.HistoryChunks,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create manager: %w", err)
	}
	s.manager = mgr
	display.SetClosingHook(mgr.ConsumerClosing)
	return s, nil
}

// Handler returns the HTTP handler serving the REST API, the WebSocket event
// stream and the metrics snapshot.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/terminals", s.handleTerminals)
	mux.HandleFunc("/api/terminals/", s.handleTerminalByID)
	mux.HandleFunc("/api/adopt", s.handleAdopt)
	mux.HandleFunc("/api/metrics", s.metrics.handler)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Close tears down every terminal and disconnects all clients.
func (s *Server) Close() {
	s.manager.Shutdown()

	s.wsMu.Lock()
	clients := s.wsByTerminal
	s.wsByTerminal = make(map[string]map[*wsClient]struct{})
	s.wsMu.Unlock()

	for _, set := range clients {
		for client := range set {
			_ = client.conn.Close(websocket.StatusNormalClosure, "server shutting down")
		}
	}
}

// lookup resolves a terminal id under the read lock.
func (s *Server) lookup(id string) (*termdock.Terminal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	return t, ok
}

// --- termdock.EventHandler implementation ---

// OnTerminalRegistered assigns the terminal its public id. Spawned and
// adopted terminals both arrive here.
func (s *Server) OnTerminalRegistered(t *termdock.Terminal) {
	id := uuid.NewString()

	s.mu.Lock()
	s.byID[id] = t
	s.idByTerm[t] = id
	s.idByProc[t.Proc()] = id
	s.mu.Unlock()

	s.logger.Info("Terminal registered", "id", id, "proc", int(t.Proc()))
}

func (s *Server) OnTerminalOutput(proc termdock.ProcHandle, stream termdock.Stream, data []byte, seq int64) {
	s.metrics.OutputBytes.Mark(int64(len(data)))

	id, ok := s.idForProc(proc)
	if !ok {
		return
	}
	payload, err := json.Marshal(wsEvent{
		Type:        "output",
		TerminalID:  id,
		DataBase64:  base64.StdEncoding.EncodeToString(data),
		Stream:      stream.String(),
		Sequence:    seq,
		TimestampMs: s.now().UnixMilli(),
	})
	if err != nil {
		return
	}
	s.broadcast(id, payload)
}

func (s *Server) OnTerminalExited(proc termdock.ProcHandle, exitCode int) {
	s.metrics.Exited.Inc(1)

	id, ok := s.idForProc(proc)
	if !ok {
		return
	}
	payload, err := json.Marshal(wsEvent{
		Type:        "exit",
		TerminalID:  id,
		ExitCode:    &exitCode,
		TimestampMs: s.now().UnixMilli(),
	})
	if err == nil {
		s.broadcast(id, payload)
	}
}

// OnTerminalDetached retires the terminal's id and drops its websocket
// clients so they stop waiting for a terminal that no longer exists.
func (s *Server) OnTerminalDetached(proc termdock.ProcHandle) {
	s.metrics.Detached.Inc(1)

	s.mu.Lock()
	id, ok := s.idByProc[proc]
	if ok {
		t := s.byID[id]
		delete(s.byID, id)
		delete(s.idByTerm, t)
		delete(s.idByProc, proc)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.wsMu.Lock()
	clients := s.wsByTerminal[id]
	delete(s.wsByTerminal, id)
	s.wsMu.Unlock()

	for client := range clients {
		_ = client.conn.Close(websocket.StatusNormalClosure, "terminal detached")
	}
}

func (s *Server) OnTerminalTitle(proc termdock.ProcHandle, title string) {
	id, ok := s.idForProc(proc)
	if !ok {
		return
	}
	payload, err := json.Marshal(wsEvent{
		Type:        "title",
		TerminalID:  id,
		Title:       title,
		TimestampMs: s.now().UnixMilli(),
	})
	if err == nil {
		s.broadcast(id, payload)
	}
}

func (s *Server) OnTerminalError(proc termdock.ProcHandle, err error) {
	id, ok := s.idForProc(proc)
	if !ok {
		return
	}
	payload, marshalErr := json.Marshal(wsEvent{
		Type:        "error",
		TerminalID:  id,
		Error:       err.Error(),
		TimestampMs: s.now().UnixMilli(),
	})
	if marshalErr == nil {
		s.broadcast(id, payload)
	}
}

func (s *Server) idForProc(proc termdock.ProcHandle) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.idByProc[proc]
	return id, ok
}

// --- kill confirmation tokens ---

// issueKillToken mints a single-use confirmation token for the terminal.
func (s *Server) issueKillToken(terminalID string) (string, time.Time) {
	token := uuid.NewString()
	expires := s.now().Add(s.killTTL)

	s.killMu.Lock()
	s.pruneTokensLocked()
	s.killTokens[token] = killToken{terminalID: terminalID, expires: expires}
	s.killMu.Unlock()

	return token, expires
}

// consumeKillToken validates and retires a token. A token is good for one
// confirmation of one terminal within its TTL.
func (s *Server) consumeKillToken(terminalID, token string) bool {
	s.killMu.Lock()
	defer s.killMu.Unlock()

	kt, ok := s.killTokens[token]
	if !ok {
		return false
	}
	delete(s.killTokens, token)
	return kt.terminalID == terminalID && s.now().Before(kt.expires)
}

func (s *Server) pruneTokensLocked() {
	now := s.now()
	for token, kt := range s.killTokens {
		if now.After(kt.expires) {
			delete(s.killTokens, token)
		}
	}
}

// --- API helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func parseIntQuery(q map[string][]string, key string, def int64) (int64, error) {
	val := ""
	if raw := q[key]; len(raw) > 0 {
		val = raw[0]
	}
	if strings.TrimSpace(val) == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
