package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/vzahanych/barcode-scanner/internal/service"
)

const (
	socketWriteTimeout   = 5 * time.Second
	socketCommandTimeout = 5 * time.Second
)

// The REST API is open to any origin, so the socket is too
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// socketCommand is sent by the client: activate, deactivate, torch or status
type socketCommand struct {
	Action string `json:"action"`
}

// socketMessage is sent to the client. Replies are typed "reply.<action>",
// bus events keep their event type.
type socketMessage struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
	At    time.Time   `json:"at"`
}

// handleSocket lets one client drive the scanner and receive scan events over
// a single WebSocket
func (s *Server) handleSocket(c *gin.Context) {
	if !s.requireScanner(c) {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already answered the request
		s.LogDebug("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var events <-chan service.Event
	if bus := s.GetEventBus(); bus != nil {
		ch := bus.SubscribeAll()
		defer bus.Unsubscribe(ch)
		events = ch
	}

	replies := make(chan socketMessage, 8)
	readerDone := make(chan struct{})
	writerDone := make(chan struct{})
	defer close(writerDone)

	go s.readCommands(conn, replies, readerDone, writerDone)

	for {
		var msg socketMessage
		select {
		case msg = <-replies:
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !streamable(ev.Type) {
				continue
			}
			msg = socketMessage{Type: string(ev.Type), Data: ev.Data, At: ev.Timestamp}
		case <-readerDone:
			return
		}

		conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			s.LogDebug("WebSocket write failed", "error", err)
			return
		}
	}
}

// readCommands owns the read side of conn. gorilla/websocket allows one
// reader and one writer, so replies go back through the writer loop.
func (s *Server) readCommands(conn *websocket.Conn, replies chan<- socketMessage, done chan<- struct{}, writerDone <-chan struct{}) {
	defer close(done)

	for {
		var cmd socketCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.LogDebug("WebSocket closed", "error", err)
			}
			return
		}

		select {
		case replies <- s.runCommand(cmd):
		case <-writerDone:
			return
		}
	}
}

func (s *Server) runCommand(cmd socketCommand) socketMessage {
	reply := socketMessage{Type: "reply." + cmd.Action}

	switch cmd.Action {
	case "activate":
		id, err := s.scanner.Activate(nil, nil)
		if err != nil {
			reply.Error = err.Error()
			break
		}
		reply.Data = gin.H{"session_id": id}
	case "deactivate":
		s.scanner.Deactivate()
		reply.Data = s.scanner.Snapshot()
	case "torch":
		ctx, cancel := context.WithTimeout(context.Background(), socketCommandTimeout)
		engaged, err := s.scanner.ToggleTorch(ctx)
		cancel()
		if err != nil {
			reply.Error = err.Error()
			break
		}
		reply.Data = gin.H{"engaged": engaged}
	case "status":
		reply.Data = s.scanner.Snapshot()
	default:
		reply.Type = "error"
		reply.Error = fmt.Sprintf("unknown action %q", cmd.Action)
	}

	reply.At = time.Now()
	return reply
}
