package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/haasonsaas/buildli/api/rpc"
	"github.com/haasonsaas/buildli/internal/query"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Local tool; the bearer token already gates the endpoint.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFrame is one message on the streaming query socket
type wsFrame struct {
	Type       string               `json:"type"` // chunk, done, error
	Content    string               `json:"content,omitempty"`
	References []*rpc.CodeReference `json:"references,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// handleQueryWS streams a query answer over a WebSocket. The client sends
// one JSON request, receives chunk frames, and a final done frame with
// references.
func (s *Server) handleQueryWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req queryHTTPRequest
	if err := conn.ReadJSON(&req); err != nil {
		conn.WriteJSON(wsFrame{Type: "error", Error: "invalid request"})
		return
	}
	if req.Question == "" {
		conn.WriteJSON(wsFrame{Type: "error", Error: "question is required"})
		return
	}

	var writeErr error
	answer, err := s.opts.Engine.QueryStream(r.Context(), req.Question, req.TopK,
		query.Filters{Repos: req.Repos, Languages: req.Languages},
		func(chunk string) {
			if writeErr == nil {
				writeErr = conn.WriteJSON(wsFrame{Type: "chunk", Content: chunk})
			}
		})
	if err != nil {
		conn.WriteJSON(wsFrame{Type: "error", Error: err.Error()})
		return
	}
	if writeErr != nil {
		s.log.Warn("websocket write failed", "error", writeErr)
		return
	}

	conn.WriteJSON(wsFrame{Type: "done", References: toWireRefs(answer.References)})
}
