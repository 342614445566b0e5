// Command aslan-serve runs a WebSocket server that streams ASLAN parse
// events back to a client as input is fed in, one parser per connection.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/jayfoss/go-aslan/aslan"
)

type rpcRequest struct {
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     any       `json:"id"`
	Result any       `json:"result,omitempty"`
	Error  *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server upgrades HTTP connections to WebSocket and runs one ASLAN parser
// session per connection.
type Server struct {
	settings ServerSettings
	upgrader websocket.Upgrader
}

// NewServer builds a Server from the given settings.
func NewServer(settings ServerSettings) *Server {
	return &Server{
		settings: settings,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}
	sessionID := ulid.Make().String()
	session := newSession(sessionID, s.settings, conn)
	log.Printf("session %s: connected", sessionID)
	session.run()
	log.Printf("session %s: closed", sessionID)
}

type session struct {
	id       string
	conn     *websocket.Conn
	writeMu  sync.Mutex
	limiter  *rate.Limiter
	parser   *aslan.Parser
}

func newSession(id string, settings ServerSettings, conn *websocket.Conn) *session {
	parser, err := aslan.New(settings.parserOptions()...)
	if err != nil {
		// aslan.New rejects an empty prefix or default field name; settings
		// are not validated at startup, so such settings fall back to a
		// parser built from the defaults.
		parser, _ = aslan.New()
	}

	s := &session{
		id:      id,
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(settings.FeedRatePerSecond), settings.FeedBurst),
		parser:  parser,
	}

	parser.AddContentListener(s.pushEvent("content"))
	parser.AddEndListener(s.pushEvent("end"))
	parser.AddEndDataListener(func(ev *aslan.EndDataEvent) {
		s.push("end_data", ev)
	})
	return s
}

func (s *session) pushEvent(kind string) aslan.ContentListener {
	return func(ev *aslan.ContentEvent) {
		s.push(kind, ev)
	}
}

func (s *session) push(method string, params any) {
	msg, err := json.Marshal(map[string]any{"method": method, "params": params})
	if err != nil {
		return
	}
	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.TextMessage, msg)
	s.writeMu.Unlock()
}

func (s *session) run() {
	defer s.conn.Close()
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var req rpcRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}
		resp := s.handleRPC(req)
		data, _ := json.Marshal(resp)
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.TextMessage, data)
		s.writeMu.Unlock()
	}
}

func (s *session) handleRPC(req rpcRequest) rpcResponse {
	switch req.Method {
	case "feed":
		return s.rpcFeed(req)
	case "close":
		s.parser.Close()
		return rpcResponse{ID: req.ID, Result: s.parser.Result()}
	case "result":
		return rpcResponse{ID: req.ID, Result: s.parser.Result()}
	case "reset":
		s.parser.Reset()
		return rpcResponse{ID: req.ID, Result: map[string]string{"status": "reset"}}
	default:
		return rpcResponse{ID: req.ID, Error: &rpcError{Code: -32601, Message: fmt.Sprintf("unknown method: %s", req.Method)}}
	}
}

func (s *session) rpcFeed(req rpcRequest) rpcResponse {
	var p struct {
		Chunk string `json:"chunk"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return rpcResponse{ID: req.ID, Error: &rpcError{Code: -32602, Message: err.Error()}}
	}
	if !s.limiter.AllowN(time.Now(), len(p.Chunk)) {
		return rpcResponse{ID: req.ID, Error: &rpcError{Code: -32000, Message: "feed rate exceeded"}}
	}
	s.parser.Feed(p.Chunk)
	return rpcResponse{ID: req.ID, Result: map[string]string{"status": "ok"}}
}
