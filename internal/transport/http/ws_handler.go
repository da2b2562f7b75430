package http

import (
	"encoding/json"
	"log"
	"net/http"

	"cybersensei-service/internal/app"

	"github.com/gorilla/websocket"
)

// WSHandler streams scoreboard snapshots to connected clients.
type WSHandler struct {
	board    *app.Scoreboard
	upgrader websocket.Upgrader
}

func NewWSHandler(board *app.Scoreboard) *WSHandler {
	return &WSHandler{
		board: board,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServeBoard upgrades the connection and pushes a snapshot immediately, then
// again after every XP award, until the client disconnects.
func (h *WSHandler) ServeBoard(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.board.Subscribe(r.Context())
	if err != nil {
		log.Printf("ws subscribe failed: %v", err)
		return
	}
	defer cancel()

	// Reader pump: clients send nothing, but reading is how we notice the
	// connection closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case board, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(board)
			if err != nil {
				log.Printf("ws marshal board: %v", err)
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "leaderboard", Payload: payload}); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
