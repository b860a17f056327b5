package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/danielterwiel/stepvis/executor"
	"github.com/danielterwiel/stepvis/step"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsEvent is one message to the client. Exactly one payload field is set,
// selected by Type: "step", "console", "result", or "error".
type wsEvent struct {
	Type    string             `json:"type"`
	Step    *step.Step         `json:"step,omitempty"`
	Console *step.ConsoleEntry `json:"console,omitempty"`
	Result  *executor.Result   `json:"result,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// handleExecuteWS runs one request per connection, streaming each captured
// step and console entry as it happens and closing with the final result.
// Observers fire on this goroutine while Execute blocks, so writes never
// interleave.
func (s *Server) handleExecuteWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var req executor.Request
	if err := conn.ReadJSON(&req); err != nil {
		s.wsWrite(conn, wsEvent{Type: "error", Error: "invalid request: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		s.wsWrite(conn, wsEvent{Type: "error", Error: "source required"})
		return
	}

	res := s.runner.Execute(r.Context(), req,
		executor.WithStepObserver(func(st step.Step) {
			s.wsWrite(conn, wsEvent{Type: "step", Step: &st})
		}),
		executor.WithConsoleObserver(func(entry step.ConsoleEntry) {
			s.wsWrite(conn, wsEvent{Type: "console", Console: &entry})
		}),
	)
	s.metrics.RecordResult(res)

	s.wsWrite(conn, wsEvent{Type: "result", Result: &res})
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) wsWrite(conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("websocket marshal failed", zap.Error(err))
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.log.Debug("websocket write failed", zap.Error(err))
	}
}
