package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sprite-ai/auditor/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 16,
	WriteBufferSize: 1024 * 16,
	CheckOrigin: func(r *http.Request) bool {
		return true // editor webviews connect from arbitrary origins
	},
}

// WebSocket message types from client.
const (
	wsMsgWatch     = "watch"
	wsMsgUnwatch   = "unwatch"
	wsMsgMark      = "mark"
	wsMsgTransform = "transform"
)

// WebSocket message types to client.
const (
	wsMsgReviewState = "review_state"
	wsMsgError       = "error"
)

// wsMessage is the envelope for WebSocket messages in both directions.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// wsSession is one connected client and the files it watches.
type wsSession struct {
	srv  *Server
	conn *websocket.Conn
	ctx  context.Context

	writeMu sync.Mutex

	mu      sync.Mutex
	watched map[string]bool
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	session := &wsSession{srv: s, conn: conn, ctx: r.Context(), watched: map[string]bool{}}

	events, unsubscribe := s.svc.Subscribe(64)
	defer unsubscribe()
	go session.forward(events)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read", "error", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			session.sendError("invalid message format")
			continue
		}

		switch msg.Type {
		case wsMsgWatch:
			session.handleWatch(msg.Data)
		case wsMsgUnwatch:
			session.handleUnwatch(msg.Data)
		case wsMsgMark:
			session.handleMark(msg.Data)
		case wsMsgTransform:
			session.handleTransform(msg.Data)
		default:
			session.sendError("unknown message type: " + msg.Type)
		}
	}
}

// forward pushes the state of watched files as they change. It returns
// when the subscription is closed.
func (ws *wsSession) forward(events <-chan service.Event) {
	for ev := range events {
		if !ws.isWatched(ev.File) {
			continue
		}
		if ev.Kind != service.EventUpdate && ev.Kind != service.EventTransform {
			continue
		}
		ws.sendState(ev.File)
	}
}

func (ws *wsSession) isWatched(file string) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.watched[file]
}

// decodeFile reads a {"file_name": ...} payload and normalizes the name.
func (ws *wsSession) decodeFile(data json.RawMessage, msgType string) (string, bool) {
	var req fileRequest
	if err := json.Unmarshal(data, &req); err != nil || validate.Struct(req) != nil {
		ws.sendError("invalid " + msgType + " data")
		return "", false
	}
	file := ws.srv.svc.Normalize(req.FileName)
	if file == "" {
		ws.sendError("invalid " + msgType + " data")
		return "", false
	}
	return file, true
}

func (ws *wsSession) handleWatch(data json.RawMessage) {
	file, ok := ws.decodeFile(data, wsMsgWatch)
	if !ok {
		return
	}
	ws.mu.Lock()
	ws.watched[file] = true
	ws.mu.Unlock()
	ws.sendState(file)
}

func (ws *wsSession) handleUnwatch(data json.RawMessage) {
	file, ok := ws.decodeFile(data, wsMsgUnwatch)
	if !ok {
		return
	}
	ws.mu.Lock()
	delete(ws.watched, file)
	ws.mu.Unlock()
}

func (ws *wsSession) handleMark(data json.RawMessage) {
	var req updateReviewRequest
	if err := json.Unmarshal(data, &req); err != nil || validate.Struct(req) != nil {
		ws.sendError("invalid mark data")
		return
	}
	u, err := req.update()
	if err != nil {
		ws.sendError(err.Error())
		return
	}
	fs, err := ws.srv.svc.UpdateReviewState(ws.ctx, u)
	if err != nil {
		ws.sendError(err.Error())
		return
	}
	ws.send(wsMsgReviewState, toReviewState(ws.srv.svc.Normalize(u.File), fs))
}

func (ws *wsSession) handleTransform(data json.RawMessage) {
	file, ok := ws.decodeFile(data, wsMsgTransform)
	if !ok {
		return
	}
	fs, _, err := ws.srv.svc.TransformReviewState(ws.ctx, file)
	if err != nil {
		ws.sendError(err.Error())
		return
	}
	ws.send(wsMsgReviewState, toReviewState(file, fs))
}

func (ws *wsSession) sendState(file string) {
	fs, _, err := ws.srv.svc.ReviewState(ws.ctx, file)
	if err != nil {
		ws.sendError(err.Error())
		return
	}
	ws.send(wsMsgReviewState, toReviewState(file, fs))
}

func (ws *wsSession) send(msgType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		ws.srv.log.Error("ws marshal", "error", err)
		return
	}
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	if err := ws.conn.WriteJSON(wsMessage{Type: msgType, Data: raw}); err != nil {
		ws.srv.log.Debug("ws write", "error", err)
	}
}

func (ws *wsSession) sendError(errMsg string) {
	ws.send(wsMsgError, map[string]string{"message": errMsg})
}
