package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/najoast/snakepit/protocol"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// watchMessage is sent to watch clients.
type watchMessage struct {
	Type     string             `json:"type"`
	Snapshot *protocol.Snapshot `json:"snapshot,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// voteMessage is read from watch clients.
type voteMessage struct {
	Direction *int `json:"direction"`
}

type watchConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *watchConn) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(value)
}

func (c *watchConn) close(code int, text string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}

// handleWatch streams a snapshot every time the match version changes and
// accepts {"direction": n} votes on the same socket.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "match")
	playerID := chi.URLParam(r, "player")

	// reject unknown matches and players before upgrading
	first, err := s.svc.GetStatus(r.Context(), &protocol.GetStatusRequest{MatchID: matchID, PlayerID: playerID})
	if err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ws := &watchConn{conn: conn}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.readVotes(ctx, cancel, ws, matchID, playerID)
	s.streamSnapshots(ctx, ws, matchID, playerID, first.Snapshot)
}

func (s *Server) streamSnapshots(ctx context.Context, ws *watchConn, matchID, playerID string, snap *protocol.Snapshot) {
	if err := ws.writeJSON(watchMessage{Type: "snapshot", Snapshot: snap}); err != nil {
		return
	}
	if snap.Over() {
		ws.close(websocket.CloseNormalClosure, "match over")
		return
	}
	last := snap.Version

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		resp, err := s.svc.GetStatus(ctx, &protocol.GetStatusRequest{MatchID: matchID, PlayerID: playerID})
		if err != nil {
			ws.writeJSON(watchMessage{Type: "error", Error: errorMessage(err)})
			ws.close(websocket.CloseGoingAway, "match unavailable")
			return
		}
		if resp.Snapshot.Version == last {
			continue
		}
		last = resp.Snapshot.Version

		if err := ws.writeJSON(watchMessage{Type: "snapshot", Snapshot: resp.Snapshot}); err != nil {
			return
		}
		if resp.Snapshot.Over() {
			ws.close(websocket.CloseNormalClosure, "match over")
			return
		}
	}
}

// readVotes forwards direction votes until the client goes away.
func (s *Server) readVotes(ctx context.Context, cancel context.CancelFunc, ws *watchConn, matchID, playerID string) {
	defer cancel()

	for {
		_, payload, err := ws.conn.ReadMessage()
		if err != nil {
			return
		}

		var vote voteMessage
		if err := json.Unmarshal(payload, &vote); err != nil || vote.Direction == nil {
			ws.writeJSON(watchMessage{Type: "error", Error: directionHelp})
			continue
		}

		_, err = s.svc.SubmitDirection(ctx, &protocol.SubmitDirectionRequest{
			MatchID:   matchID,
			PlayerID:  playerID,
			Direction: *vote.Direction,
		})
		if err != nil {
			ws.writeJSON(watchMessage{Type: "error", Error: errorMessage(err)})
		}
	}
}
