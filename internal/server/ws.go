package server

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
)

type wsClient struct {
	conn       *websocket.Conn
	terminalID string
	send       chan []byte
}

// wsEvent is one server-to-client event. Output data travels base64-encoded
// since terminal streams are arbitrary bytes.
type wsEvent struct {
	Type        string `json:"type"`
	TerminalID  string `json:"terminalId"`
	DataBase64  string `json:"data,omitempty"`
	Stream      string `json:"stream,omitempty"`
	Sequence    int64  `json:"sequence,omitempty"`
	TimestampMs int64  `json:"timestampMs,omitempty"`
	Title       string `json:"title,omitempty"`
	ExitCode    *int   `json:"exitCode,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	terminalID := r.URL.Query().Get("terminalId")
	if terminalID == "" {
		http.Error(w, "missing terminalId", http.StatusBadRequest)
		return
	}
	if _, ok := s.lookup(terminalID); !ok {
		http.Error(w, "terminal not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "closed")

	client := &wsClient{
		conn:       conn,
		terminalID: terminalID,
		send:       make(chan []byte, 64),
	}

	s.registerWS(client)
	defer s.unregisterWS(client)

	ctx := r.Context()
	go client.writeLoop(ctx)

	// Clients only listen; reading detects the close.
	for {
		_, _, err := conn.Read(ctx)
		if err != nil {
			return
		}
	}
}

func (c *wsClient) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

func (s *Server) registerWS(client *wsClient) {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()

	set := s.wsByTerminal[client.terminalID]
	if set == nil {
		set = make(map[*wsClient]struct{})
		s.wsByTerminal[client.terminalID] = set
	}
	set[client] = struct{}{}
}

func (s *Server) unregisterWS(client *wsClient) {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()

	set := s.wsByTerminal[client.terminalID]
	if set == nil {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(s.wsByTerminal, client.terminalID)
	}
}

func (s *Server) broadcast(terminalID string, payload []byte) {
	s.wsMu.RLock()
	set := s.wsByTerminal[terminalID]
	if len(set) == 0 {
		s.wsMu.RUnlock()
		return
	}

	clients := make([]*wsClient, 0, len(set))
	for client := range set {
		clients = append(clients, client)
	}
	s.wsMu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- payload:
		default:
			// Slow consumer: close and let the read loop unregister it.
			_ = client.conn.Close(websocket.StatusPolicyViolation, "slow consumer")
		}
	}
}
