package srv

import (
	"log/slog"
	"sync"
)

// Lobby broadcasts the joinable public-room listing to subscribed
// connections. Every change rebroadcasts the full list; rebuilds are
// coalesced through a single notify slot so a burst of room events
// produces one refresh.
type Lobby struct {
	mu   sync.Mutex
	srv  *Server
	subs map[*client]struct{}

	notify chan struct{}
	done   chan struct{}
}

// NewLobby creates the lobby service. The server back-reference is set
// by NewServer.
func NewLobby() *Lobby {
	return &Lobby{
		subs:   make(map[*client]struct{}),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Run processes change notifications until Stop. Rebuilding the list
// locks rooms one at a time, never under a room or manager lock held by
// the notifier.
func (l *Lobby) Run() {
	for {
		select {
		case <-l.done:
			return
		case <-l.notify:
			l.broadcast(l.buildList())
		}
	}
}

// Stop ends the Run loop.
func (l *Lobby) Stop() {
	close(l.done)
}

// Changed schedules a rebroadcast. Safe to call from any goroutine,
// including under room locks.
func (l *Lobby) Changed() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Subscribe adds a connection and immediately sends it the current list.
func (l *Lobby) Subscribe(c *client) {
	l.mu.Lock()
	l.subs[c] = struct{}{}
	n := len(l.subs)
	l.mu.Unlock()

	c.send(mustMarshal(outPublicRoomsList{Type: "publicRoomsList", Rooms: l.buildList()}))
	slog.Debug("lobby subscriber added", "subscribers", n)
}

// Unsubscribe removes a connection; called on explicit request and on
// connection close.
func (l *Lobby) Unsubscribe(c *client) {
	l.mu.Lock()
	delete(l.subs, c)
	l.mu.Unlock()
}

func (l *Lobby) buildList() []LobbyRoom {
	rooms := l.srv.manager.snapshotRooms()
	list := make([]LobbyRoom, 0, len(rooms))
	for _, r := range rooms {
		if info, ok := r.LobbyInfo(); ok {
			list = append(list, info)
		}
	}
	return list
}

func (l *Lobby) broadcast(list []LobbyRoom) {
	data := mustMarshal(outPublicRoomsList{Type: "publicRoomsList", Rooms: list})
	l.mu.Lock()
	defer l.mu.Unlock()
	for c := range l.subs {
		c.send(data)
	}
}
