package srv

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"wordclash.exe.dev/words"
)

const (
	// codeAlphabet omits O/0/I/1 so codes survive being read aloud.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
	// codeRetries bounds collision retries during code generation.
	codeRetries = 32

	// soloStartDelay gives the client time to bind to the roomCreated
	// response before countdown ticks arrive.
	soloStartDelay = 150 * time.Millisecond

	// precheckTimeout bounds the daily-challenge completion lookup.
	precheckTimeout = 5 * time.Second

	// roomSweepInterval is how often the backstop sweeper looks for
	// rooms that somehow ended up empty without being destroyed.
	roomSweepInterval = 1 * time.Minute
)

// RoomManager owns every room, the player-id counter, and the
// player-to-room index. Cross-room operations take the manager lock for
// the lookup only, then hand off to the target room.
type RoomManager struct {
	mu         sync.RWMutex
	srv        *Server
	rooms      map[string]*Room
	playerRoom map[string]string // player id -> room code
	nextPlayer int

	done chan struct{}
}

// NewRoomManager creates an empty manager. The server back-reference is
// set by NewServer.
func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:      make(map[string]*Room),
		playerRoom: make(map[string]string),
		done:       make(chan struct{}),
	}
}

// newPlayerID issues the next opaque player id.
func (rm *RoomManager) newPlayerID() string {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.nextPlayer++
	return fmt.Sprintf("p%d", rm.nextPlayer)
}

// generateCode samples a fresh room code, retrying on collision.
func (rm *RoomManager) generateCode() (string, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	for range codeRetries {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
		}
		code := string(b)
		if _, taken := rm.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique room code")
}

// GetRoom returns a room by code, nil when absent.
func (rm *RoomManager) GetRoom(code string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[strings.ToUpper(code)]
}

// PlayerRoom returns the room currently holding the player, nil if none.
func (rm *RoomManager) PlayerRoom(playerID string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	code, ok := rm.playerRoom[playerID]
	if !ok {
		return nil
	}
	return rm.rooms[code]
}

// snapshotRooms copies the current room pointers. Callers lock each room
// afterwards; the manager lock is never held across a room lock.
func (rm *RoomManager) snapshotRooms() []*Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	list := make([]*Room, 0, len(rm.rooms))
	for _, r := range rm.rooms {
		list = append(list, r)
	}
	return list
}

func (rm *RoomManager) trackPlayer(playerID, code string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if existing, ok := rm.playerRoom[playerID]; ok {
		return fmt.Errorf("already in room %s", existing)
	}
	rm.playerRoom[playerID] = code
	return nil
}

func (rm *RoomManager) untrackPlayer(playerID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.playerRoom, playerID)
}

func (rm *RoomManager) removeRoom(code string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.rooms, code)
}

// CreateRoom makes a new waiting room with the creator as host and binds
// the connection to the new player identity.
func (rm *RoomManager) CreateRoom(c *client, name, email, testSeed string) (*Room, *Player, error) {
	return rm.createRoomWith(c, name, email, testSeed, nil)
}

func (rm *RoomManager) createRoomWith(c *client, name, email, testSeed string, configure func(*Room)) (*Room, *Player, error) {
	code, err := rm.generateCode()
	if err != nil {
		return nil, nil, err
	}

	room := newRoom(rm.srv, code)
	room.testWordSeed = testSeed
	if configure != nil {
		configure(room)
	}

	rm.mu.Lock()
	rm.rooms[code] = room
	rm.mu.Unlock()

	player := &Player{
		ID:    rm.newPlayerID(),
		Name:  name,
		Email: email,
	}
	if err := rm.trackPlayer(player.ID, code); err != nil {
		rm.removeRoom(code)
		return nil, nil, err
	}

	// The creator learns their code and id before any room traffic.
	c.send(mustMarshal(outRoomCreated{Type: "roomCreated", RoomCode: code, PlayerID: player.ID}))

	if err := room.AddPlayer(player, c); err != nil {
		rm.untrackPlayer(player.ID)
		rm.removeRoom(code)
		return nil, nil, err
	}

	slog.Info("room created", "room", code, "host", player.ID)
	return room, player, nil
}

// CreateDailyChallenge creates a private daily-challenge room after the
// policy checks: verified email, in-range number, and no recorded
// completion. The precheck fails closed on adapter errors.
func (rm *RoomManager) CreateDailyChallenge(c *client, name, email string, daily int, solo bool) (*Room, *Player, error) {
	if email == "" {
		return nil, nil, fmt.Errorf("daily challenges require a verified email")
	}
	current := words.CurrentDaily(time.Now())
	if daily < 1 || daily > current {
		return nil, nil, fmt.Errorf("daily number %d is out of range (1-%d)", daily, current)
	}

	ctx, cancel := context.WithTimeout(context.Background(), precheckTimeout)
	defer cancel()
	completed, err := rm.srv.persister.HasCompletedDailyChallenge(ctx, email, daily)
	if err != nil {
		// Fail closed: an unanswerable precheck must not grant a second
		// attempt.
		slog.Error("daily completion precheck failed", "email", email, "daily", daily, "error", err)
		return nil, nil, fmt.Errorf("could not verify daily challenge eligibility, try again later")
	}
	if completed {
		return nil, nil, fmt.Errorf("daily challenge #%d already completed for this account", daily)
	}

	room, player, err := rm.createRoomWith(c, name, email, "", func(r *Room) {
		r.wordMode = WordDaily
		r.visibility = VisibilityPrivate
		r.dailyChallenge = true
		r.dailyNumber = daily
		r.solo = solo
	})
	if err != nil {
		return nil, nil, err
	}

	if solo {
		// Short delay so the client sees roomCreated before the first
		// countdown tick.
		time.AfterFunc(soloStartDelay, func() {
			room.mu.Lock()
			defer room.mu.Unlock()
			if room.destroyed || room.state != StateWaiting || room.countdownActive {
				return
			}
			room.startCountdownLocked()
		})
	}

	return room, player, nil
}

// JoinRoom binds a new player identity to an existing waiting room.
func (rm *RoomManager) JoinRoom(c *client, code, name, email string) (*Room, *Player, error) {
	room := rm.GetRoom(code)
	if room == nil {
		return nil, nil, fmt.Errorf("room %s not found", strings.ToUpper(code))
	}

	player := &Player{
		ID:    rm.newPlayerID(),
		Name:  name,
		Email: email,
	}
	if err := rm.trackPlayer(player.ID, room.Code); err != nil {
		return nil, nil, err
	}
	if err := room.AddPlayer(player, c); err != nil {
		rm.untrackPlayer(player.ID)
		return nil, nil, err
	}
	return room, player, nil
}

// Rejoin re-binds a connection to a disconnected player.
func (rm *RoomManager) Rejoin(c *client, code, playerID string) (*Room, error) {
	room := rm.GetRoom(code)
	if room == nil {
		return nil, fmt.Errorf("room %s not found", strings.ToUpper(code))
	}
	if err := room.HandleRejoin(playerID, c); err != nil {
		return nil, err
	}
	return room, nil
}

// StartSweeper runs the backstop cleanup loop until Stop is called.
// Event-driven destruction handles the normal paths; the sweeper only
// reaps rooms a bug left behind empty.
func (rm *RoomManager) StartSweeper() {
	go func() {
		ticker := time.NewTicker(roomSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-rm.done:
				return
			case <-ticker.C:
				for _, room := range rm.snapshotRooms() {
					room.mu.Lock()
					if !room.destroyed && len(room.players) == 0 {
						slog.Warn("sweeping empty room", "room", room.Code)
						room.destroyLocked()
					}
					room.mu.Unlock()
				}
			}
		}
	}()
}

// Stop halts the sweeper.
func (rm *RoomManager) Stop() {
	close(rm.done)
}

// Shutdown cancels all room timers and closes every room player's
// connection with a normal-close frame.
func (rm *RoomManager) Shutdown() {
	for _, room := range rm.snapshotRooms() {
		room.mu.Lock()
		for _, p := range room.players {
			if p.conn != nil {
				p.conn.closeAsync()
			}
		}
		room.destroyLocked()
		room.mu.Unlock()
	}
}
