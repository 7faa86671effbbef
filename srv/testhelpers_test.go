package srv

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"wordclash.exe.dev/db"
)

// testConfig returns a config with short timers suitable for tests.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CountdownSeconds = 1
	cfg.SelectionTimeout = 150 * time.Millisecond
	cfg.GracePeriod = 100 * time.Millisecond
	cfg.ForcedWordLog = ""
	cfg.TestMode = true
	return cfg
}

// fakeStore is an in-memory ResultStore capturing writes.
type fakeStore struct {
	mu           sync.Mutex
	saved        []db.GameRecord
	dailies      []db.DailyCompletion
	completed    map[string]bool
	failPrecheck bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{completed: make(map[string]bool)}
}

func (f *fakeStore) SaveGameResult(_ context.Context, rec db.GameRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, rec)
	return fmt.Sprintf("game-%d", len(f.saved)), nil
}

func (f *fakeStore) SaveDailyCompletion(_ context.Context, c db.DailyCompletion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dailies = append(f.dailies, c)
	f.completed[fmt.Sprintf("%s#%d", c.Email, c.DailyNumber)] = true
	return nil
}

func (f *fakeStore) HasCompletedDailyChallenge(_ context.Context, email string, daily int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPrecheck {
		return false, fmt.Errorf("store unavailable")
	}
	return f.completed[fmt.Sprintf("%s#%d", email, daily)], nil
}

func (f *fakeStore) LoadGameResult(_ context.Context, id string) (*db.GameRecord, error) {
	return nil, fmt.Errorf("not found: %s", id)
}

func (f *fakeStore) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

// newTestServer builds a server with no network attached.
func newTestServer(t *testing.T, store ResultStore) *Server {
	t.Helper()
	s := NewServer(testConfig(), store)
	go s.lobby.Run()
	t.Cleanup(s.lobby.Stop)
	return s
}

// newTestClient builds a client without a socket; frames pile up in the
// send queue for inspection.
func newTestClient(s *Server) *client {
	return &client{
		srv:     s,
		sendCh:  make(chan []byte, 1024),
		closeCh: make(chan struct{}),
		limiter: NewConnectionRateLimiter(),
	}
}

// frames drains and decodes everything queued on the client.
func frames(t *testing.T, c *client) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		select {
		case data := <-c.sendCh:
			var m map[string]any
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatalf("undecodable frame %q: %v", data, err)
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

// lastOfType returns the most recent queued frame of the given type.
func lastOfType(t *testing.T, c *client, msgType string) map[string]any {
	t.Helper()
	var found map[string]any
	for _, m := range frames(t, c) {
		if m["type"] == msgType {
			found = m
		}
	}
	return found
}

// drain discards everything queued on the clients.
func drain(t *testing.T, clients ...*client) {
	t.Helper()
	for _, c := range clients {
		frames(t, c)
	}
}

// startPlaying drives a room from waiting straight into playing,
// bypassing the countdown wait.
func startPlaying(t *testing.T, r *Room) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wordMode == WordSabotage {
		r.enterSelectingLocked()
		return
	}
	r.enterPlayingLocked()
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// roomState reads the FSM state under the room lock.
func roomState(r *Room) RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}
