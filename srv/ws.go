package srv

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 30 * time.Second
	// Per-connection outbound queue size; overflow closes the connection.
	sendQueueSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is one WebSocket connection. It is bound to at most one player
// identity, which in turn belongs to at most one room. The outbound
// queue is bounded: a writer that cannot keep up is treated as dead and
// grace-period semantics take over.
type client struct {
	srv  *Server
	conn *websocket.Conn

	sendCh    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once

	limiter *ConnectionRateLimiter

	// Bound after the first meaningful action; only the readLoop
	// goroutine mutates these.
	playerID string
	room     *Room
	inLobby  bool
}

// send queues an outbound frame without blocking. A full queue closes
// the connection.
func (c *client) send(data []byte) {
	select {
	case <-c.closeCh:
	case c.sendCh <- data:
	default:
		slog.Warn("send queue full, closing slow connection", "player", c.playerID)
		c.closeAsync()
	}
}

// closeAsync signals the write pump to stop. Safe to call repeatedly.
func (c *client) closeAsync() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
	})
}

// writePump owns all writes to the socket: queued frames plus protocol
// pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-c.closeCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.closeAsync()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.closeAsync()
				return
			}
		}
	}
}

func (c *client) sendErr(message string) {
	c.send(mustMarshal(outError{Type: "error", Message: message}))
}

// readLoop reads frames in arrival order and dispatches them. On exit
// the disconnect semantics propagate to the room and the lobby.
func (c *client) readLoop() {
	defer func() {
		c.closeAsync()
		c.conn.Close()
		c.srv.lobby.Unsubscribe(c)
		if c.room != nil && c.playerID != "" {
			c.room.HandleDisconnect(c.playerID, c)
		}
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read", "player", c.playerID, "error", err)
			}
			return
		}

		msg, _, err := c.decodeAndLimit(data)
		if err != nil {
			var unknown unknownTypeError
			switch {
			case errors.As(err, &unknown):
				slog.Warn("dropping unknown message type", "type", unknown.t, "player", c.playerID)
				continue
			case errors.Is(err, errMalformed):
				// Transport failure: close and let grace semantics apply.
				slog.Warn("malformed frame, closing connection", "player", c.playerID, "error", err)
				c.closeAsync()
				return
			default:
				c.sendErr(err.Error())
				continue
			}
		}
		if msg == nil {
			// Rate limited; the limiter decided whether to disconnect.
			select {
			case <-c.closeCh:
				return
			default:
				continue
			}
		}

		c.dispatch(msg)
	}
}

// decodeAndLimit validates the frame and applies the per-type rate
// limits. A nil message with nil error means the frame was throttled.
func (c *client) decodeAndLimit(data []byte) (inbound, string, error) {
	msg, msgType, err := decodeInbound(data)
	if err != nil {
		return nil, msgType, err
	}

	allowed, disconnect := c.limiter.Allow(msgType)
	if !allowed {
		if disconnect {
			slog.Warn("rate limit exceeded, disconnecting", "player", c.playerID, "type", msgType)
			c.sendErr("rate limit exceeded, closing connection")
			c.closeAsync()
			return nil, msgType, nil
		}
		c.sendErr("too many requests, slow down")
		return nil, msgType, nil
	}
	return msg, msgType, nil
}

// dispatch routes one validated message. There is one case per inbound
// type; the compiler does not check the switch for completeness, so a
// type without a case falls to the default branch, which logs an error
// instead of dropping the message silently.
func (c *client) dispatch(msg inbound) {
	switch m := msg.(type) {
	case CreateRoomMsg:
		c.handleCreateRoom(m)
	case CreateDailyChallengeMsg:
		c.handleCreateDailyChallenge(m)
	case JoinRoomMsg:
		c.handleJoinRoom(m)
	case SetGameModeMsg:
		c.roomCall(func(r *Room) error { return r.HandleSetGameMode(c.playerID, m.Mode) })
	case SetWordModeMsg:
		c.roomCall(func(r *Room) error { return r.HandleSetWordMode(c.playerID, m.Mode) })
	case SetHardModeMsg:
		c.roomCall(func(r *Room) error { return r.HandleSetHardMode(c.playerID, m.Enabled) })
	case SetRoomVisibilityMsg:
		c.roomCall(func(r *Room) error { return r.HandleSetVisibility(c.playerID, m.Visibility) })
	case SetReadyMsg:
		c.roomCall(func(r *Room) error { return r.HandleSetReady(c.playerID, m.Ready) })
	case StartGameMsg:
		c.roomCall(func(r *Room) error { return r.HandleStartGame(c.playerID) })
	case GuessMsg:
		c.roomCall(func(r *Room) error { return r.HandleGuess(c.playerID, m.Word, m.Forced) })
	case SubmitWordMsg:
		c.roomCall(func(r *Room) error { return r.HandleSubmitWord(c.playerID, m.Word) })
	case PlayAgainMsg:
		c.roomCall(func(r *Room) error { return r.HandlePlayAgain(c.playerID) })
	case LeaveRoomMsg:
		c.handleLeaveRoom()
	case RejoinMsg:
		c.handleRejoin(m)
	case SubscribeLobbyMsg:
		c.handleSubscribeLobby()
	case UnsubscribeLobbyMsg:
		c.srv.lobby.Unsubscribe(c)
		c.inLobby = false
	case PingMsg:
		c.send(mustMarshal(outPong{Type: "pong"}))
	default:
		slog.Error("inbound message with no dispatch case", "message", msg)
	}
}

// roomCall runs a handler against the client's current room, reporting
// rule violations back as error messages.
func (c *client) roomCall(fn func(*Room) error) {
	if c.room == nil {
		c.sendErr("not in a room")
		return
	}
	if err := fn(c.room); err != nil {
		c.sendErr(err.Error())
	}
}

func (c *client) handleCreateRoom(m CreateRoomMsg) {
	if c.room != nil {
		c.sendErr("already in a room")
		return
	}
	room, player, err := c.srv.manager.CreateRoom(c, m.PlayerName, m.PlayerEmail, m.TestWordSeed)
	if err != nil {
		c.sendErr(err.Error())
		return
	}
	c.bind(room, player)
}

func (c *client) handleCreateDailyChallenge(m CreateDailyChallengeMsg) {
	if c.room != nil {
		c.sendErr("already in a room")
		return
	}
	room, player, err := c.srv.manager.CreateDailyChallenge(c, m.PlayerName, m.PlayerEmail, m.DailyNumber, m.Solo)
	if err != nil {
		c.sendErr(err.Error())
		return
	}
	c.bind(room, player)
}

func (c *client) handleJoinRoom(m JoinRoomMsg) {
	if c.room != nil {
		c.sendErr("already in a room")
		return
	}
	room, player, err := c.srv.manager.JoinRoom(c, m.RoomCode, m.PlayerName, m.PlayerEmail)
	if err != nil {
		c.sendErr(err.Error())
		return
	}
	c.bind(room, player)
}

func (c *client) handleRejoin(m RejoinMsg) {
	if c.room != nil {
		c.sendErr("already in a room")
		return
	}
	room, err := c.srv.manager.Rejoin(c, m.RoomCode, m.PlayerID)
	if err != nil {
		c.send(mustMarshal(outRejoinFailed{Type: "rejoinFailed", Reason: err.Error()}))
		return
	}
	c.room = room
	c.playerID = m.PlayerID
	c.srv.lobby.Unsubscribe(c)
	c.inLobby = false
}

func (c *client) handleLeaveRoom() {
	if c.room == nil {
		c.sendErr("not in a room")
		return
	}
	c.room.HandleLeave(c.playerID)
	c.room = nil
	c.playerID = ""
}

func (c *client) handleSubscribeLobby() {
	if c.room != nil {
		c.sendErr("cannot subscribe to the lobby while in a room")
		return
	}
	c.inLobby = true
	c.srv.lobby.Subscribe(c)
}

// bind records the room/player association after a successful create or
// join, and drops any lobby subscription.
func (c *client) bind(room *Room, player *Player) {
	c.room = room
	c.playerID = player.ID
	c.srv.lobby.Unsubscribe(c)
	c.inLobby = false
}

// HandleWS upgrades the HTTP request and runs the connection until it
// closes.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade", "error", err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c := &client{
		srv:     s,
		conn:    conn,
		sendCh:  make(chan []byte, sendQueueSize),
		closeCh: make(chan struct{}),
		limiter: NewConnectionRateLimiter(),
	}
	go c.writePump()
	c.readLoop()
}
