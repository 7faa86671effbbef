package srv

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{6}$`)

func TestCreateRoomIssuesCodeAndHost(t *testing.T) {
	s := newTestServer(t, newFakeStore())
	c := newTestClient(s)

	room, host, err := s.manager.CreateRoom(c, "Alice", "alice@example.com", "")
	require.NoError(t, err)

	assert.Regexp(t, codePattern, room.Code)
	assert.True(t, host.Host)
	assert.True(t, host.Ready, "host is implicitly ready")
	assert.Equal(t, StateWaiting, roomState(room))
	assert.Same(t, room, s.manager.PlayerRoom(host.ID))

	created := lastOfType(t, c, "roomCreated")
	require.NotNil(t, created)
	assert.Equal(t, room.Code, created["roomCode"])
	assert.Equal(t, host.ID, created["playerId"])
}

func TestJoinRoomNotifiesOthers(t *testing.T) {
	s := newTestServer(t, newFakeStore())
	c1, c2 := newTestClient(s), newTestClient(s)

	room, host, err := s.manager.CreateRoom(c1, "Alice", "", "")
	require.NoError(t, err)
	drain(t, c1)

	joined, guest, err := s.manager.JoinRoom(c2, room.Code, "Bob", "")
	require.NoError(t, err)
	assert.Same(t, room, joined)
	assert.False(t, guest.Host)
	assert.False(t, guest.Ready)

	notif := lastOfType(t, c1, "playerJoined")
	require.NotNil(t, notif, "host should hear about the join")

	// Each player id maps to exactly one room.
	assert.Same(t, room, s.manager.PlayerRoom(host.ID))
	assert.Same(t, room, s.manager.PlayerRoom(guest.ID))
}

func TestJoinRoomGuards(t *testing.T) {
	s := newTestServer(t, newFakeStore())
	c1 := newTestClient(s)
	room, _, err := s.manager.CreateRoom(c1, "Alice", "", "")
	require.NoError(t, err)

	// Fill to capacity.
	for i := 0; i < MaxPlayers-1; i++ {
		_, _, err := s.manager.JoinRoom(newTestClient(s), room.Code, "P", "")
		require.NoError(t, err)
	}
	_, _, err = s.manager.JoinRoom(newTestClient(s), room.Code, "Late", "")
	assert.ErrorContains(t, err, "full")

	_, _, err = s.manager.JoinRoom(newTestClient(s), "ZZZZZZ", "Lost", "")
	assert.ErrorContains(t, err, "not found")
}

func TestJoinRejectedOnceGameRuns(t *testing.T) {
	s := newTestServer(t, newFakeStore())
	c1, c2 := newTestClient(s), newTestClient(s)
	room, _, err := s.manager.CreateRoom(c1, "Alice", "", "")
	require.NoError(t, err)
	_, _, err = s.manager.JoinRoom(c2, room.Code, "Bob", "")
	require.NoError(t, err)

	startPlaying(t, room)
	_, _, err = s.manager.JoinRoom(newTestClient(s), room.Code, "Late", "")
	assert.ErrorContains(t, err, "in progress")
}

func TestStartGameReadyGate(t *testing.T) {
	s := newTestServer(t, newFakeStore())
	c1, c2 := newTestClient(s), newTestClient(s)
	room, host, err := s.manager.CreateRoom(c1, "Alice", "", "")
	require.NoError(t, err)
	_, guest, err := s.manager.JoinRoom(c2, room.Code, "Bob", "")
	require.NoError(t, err)

	// Guest not ready: the gate holds.
	err = room.HandleStartGame(host.ID)
	assert.ErrorContains(t, err, "ready")
	assert.Equal(t, StateWaiting, roomState(room))

	// Non-host cannot start.
	require.NoError(t, room.HandleSetReady(guest.ID, true))
	err = room.HandleStartGame(guest.ID)
	assert.ErrorContains(t, err, "host")

	// All ready, host starts: the countdown runs and the game begins.
	require.NoError(t, room.HandleStartGame(host.ID))
	room.mu.Lock()
	active := room.countdownActive
	room.mu.Unlock()
	assert.True(t, active)

	waitFor(t, 3*time.Second, func() bool { return roomState(room) == StatePlaying }, "countdown to finish")
}

func TestStartGameNeedsTwoPlayersUnlessSolo(t *testing.T) {
	s := newTestServer(t, newFakeStore())
	room, host, err := s.manager.CreateRoom(newTestClient(s), "Alice", "", "")
	require.NoError(t, err)

	err = room.HandleStartGame(host.ID)
	assert.ErrorContains(t, err, "2 players")

	room.mu.Lock()
	room.solo = true
	room.mu.Unlock()
	assert.NoError(t, room.HandleStartGame(host.ID))
}

// Two-player random game with a seeded word: host wins in one, guest
// burns all six guesses, finish order is host then guest.
func TestHostWinsInOneGuestExhaustsGuesses(t *testing.T) {
	s := newTestServer(t, newFakeStore())
	c1, c2 := newTestClient(s), newTestClient(s)
	room, host, err := s.manager.CreateRoom(c1, "Alice", "", "CRANE")
	require.NoError(t, err)
	_, guest, err := s.manager.JoinRoom(c2, room.Code, "Bob", "")
	require.NoError(t, err)

	startPlaying(t, room)
	drain(t, c1, c2)

	require.NoError(t, room.HandleGuess(host.ID, "crane", false))

	res := lastOfType(t, c1, "guessResult")
	require.NotNil(t, res)
	assert.Equal(t, true, res["won"])
	for _, lr := range res["result"].([]any) {
		assert.Equal(t, "correct", lr)
	}

	// Guest sees colors only, no letters.
	opp := lastOfType(t, c2, "opponentGuess")
	require.NotNil(t, opp)
	assert.Nil(t, opp["word"])

	misses := []string{"ABOUT", "ABOVE", "ACTOR", "ACUTE", "ADMIT", "ADOPT"}
	for _, w := range misses {
		require.NoError(t, room.HandleGuess(guest.ID, w, false))
	}

	assert.Equal(t, StateFinished, roomState(room))
	ended := lastOfType(t, c1, "gameEnded")
	require.NotNil(t, ended)
	assert.Equal(t, "CRANE", ended["targetWord"])

	results := ended["results"].([]any)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	second := results[1].(map[string]any)
	assert.Equal(t, host.ID, first["playerId"])
	assert.Equal(t, float64(1), first["position"])
	assert.Equal(t, true, first["won"])
	assert.Equal(t, guest.ID, second["playerId"])
	assert.Equal(t, float64(2), second["position"])
	assert.Equal(t, false, second["won"])
}

// A hard-mode violation answers with a specific reason and never burns a
// guess slot.
func TestHardModeViolationConsumesNoSlot(t *testing.T) {
	s := newTestServer(t, newFakeStore())
	c1, c2 := newTestClient(s), newTestClient(s)
	room, host, err := s.manager.CreateRoom(c1, "Alice", "", "CRANE")
	require.NoError(t, err)
	_, _, err = s.manager.JoinRoom(c2, room.Code, "Bob", "")
	require.NoError(t, err)
	require.NoError(t, room.HandleSetHardMode(host.ID, true))

	startPlaying(t, room)
	drain(t, c1, c2)

	require.NoError(t, room.HandleGuess(host.ID, "TRACE", false))
	require.NoError(t, room.HandleGuess(host.ID, "BRAKE", false))

	violation := lastOfType(t, c1, "hardModeViolation")
	require.NotNil(t, violation)
	assert.Contains(t, violation["reason"], "C")

	room.mu.Lock()
	guesses := len(room.players[host.ID].Guesses)
	room.mu.Unlock()
	assert.Equal(t, 1, guesses, "rejected guess must not consume a slot")
}

func TestGuessPipelineRejections(t *testing.T) {
	s := newTestServer(t, newFakeStore())
	c1, c2 := newTestClient(s), newTestClient(s)
	room, host, err := s.manager.CreateRoom(c1, "Alice", "", "CRANE")
	require.NoError(t, err)
	_, guest, err := s.manager.JoinRoom(c2, room.Code, "Bob", "")
	require.NoError(t, err)

	// Guessing before the game starts is a rule error.
	err = room.HandleGuess(host.ID, "CRANE", false)
	assert.ErrorContains(t, err, "not in progress")

	startPlaying(t, room)

	err = room.HandleGuess(host.ID, "ZZZZZ", false)
	assert.ErrorContains(t, err, "not in the word list")

	err = room.HandleGuess(host.ID, "ab1de", false)
	assert.ErrorContains(t, err, "letters")

	// A finished player gets no further guesses.
	require.NoError(t, room.HandleGuess(guest.ID, "CRANE", false))
	err = room.HandleGuess(guest.ID, "ABOUT", false)
	assert.ErrorContains(t, err, "finished")
}

func TestCompetitiveScoringOnWin(t *testing.T) {
	s := newTestServer(t, newFakeStore())
	c1, c2 := newTestClient(s), newTestClient(s)
	room, host, err := s.manager.CreateRoom(c1, "Alice", "", "CRANE")
	require.NoError(t, err)
	_, guest, err := s.manager.JoinRoom(c2, room.Code, "Bob", "")
	require.NoError(t, err)
	require.NoError(t, room.HandleSetGameMode(host.ID, ModeCompetitive))

	startPlaying(t, room)

	require.NoError(t, room.HandleGuess(host.ID, "CRANE", false))
	room.mu.Lock()
	hostScore := room.players[host.ID].Score
	guestID := guest.ID
	room.mu.Unlock()
	// 1 guess, near-instant: 600 base plus ~60 bonus.
	assert.GreaterOrEqual(t, hostScore, 650)
	assert.LessOrEqual(t, hostScore, 660)

	misses := []string{"ABOUT", "ABOVE", "ACTOR", "ACUTE", "ADMIT", "ADOPT"}
	for _, w := range misses {
		require.NoError(t, room.HandleGuess(guestID, w, false))
	}
	room.mu.Lock()
	guestScore := room.players[guestID].Score
	room.mu.Unlock()
	assert.Zero(t, guestScore, "losing players score zero")
}

func TestPlayAgainResetsGameState(t *testing.T) {
	s := newTestServer(t, newFakeStore())
	c1, c2 := newTestClient(s), newTestClient(s)
	room, host, err := s.manager.CreateRoom(c1, "Alice", "", "CRANE")
	require.NoError(t, err)
	_, guest, err := s.manager.JoinRoom(c2, room.Code, "Bob", "")
	require.NoError(t, err)

	startPlaying(t, room)
	require.NoError(t, room.HandleGuess(host.ID, "CRANE", false))
	require.NoError(t, room.HandleGuess(guest.ID, "CRANE", false))
	require.Equal(t, StateFinished, roomState(room))

	// Only the host may restart.
	err = room.HandlePlayAgain(guest.ID)
	assert.ErrorContains(t, err, "host")

	require.NoError(t, room.HandlePlayAgain(host.ID))
	assert.Equal(t, StateWaiting, roomState(room))

	room.mu.Lock()
	defer room.mu.Unlock()
	assert.Empty(t, room.sharedTarget)
	assert.Nil(t, room.targets)
	assert.True(t, room.startedAt.IsZero())
	for _, p := range room.players {
		assert.Empty(t, p.Guesses)
		assert.Empty(t, p.Results)
		assert.False(t, p.Finished)
		assert.False(t, p.Won)
		assert.Zero(t, p.Score)
		assert.Equal(t, p.Host, p.Ready, "only the host stays ready")
	}
}

func TestHostLeavingReassignsHost(t *testing.T) {
	s := newTestServer(t, newFakeStore())
	c1, c2 := newTestClient(s), newTestClient(s)
	room, host, err := s.manager.CreateRoom(c1, "Alice", "", "")
	require.NoError(t, err)
	_, guest, err := s.manager.JoinRoom(c2, room.Code, "Bob", "")
	require.NoError(t, err)
	drain(t, c1, c2)

	room.HandleLeave(host.ID)

	became := lastOfType(t, c2, "becameCreator")
	require.NotNil(t, became)
	assert.Equal(t, guest.ID, became["playerId"])

	room.mu.Lock()
	defer room.mu.Unlock()
	assert.Equal(t, guest.ID, room.creatorID)
	assert.True(t, room.players[guest.ID].Host)
	assert.Nil(t, s.manager.PlayerRoom(host.ID))
}

func TestLastPlayerLeavingDestroysRoom(t *testing.T) {
	s := newTestServer(t, newFakeStore())
	room, host, err := s.manager.CreateRoom(newTestClient(s), "Alice", "", "")
	require.NoError(t, err)

	room.HandleLeave(host.ID)
	assert.Nil(t, s.manager.GetRoom(room.Code))
	assert.Nil(t, s.manager.PlayerRoom(host.ID))
}

func TestGeneratedCodesAreDistinct(t *testing.T) {
	s := newTestServer(t, newFakeStore())
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		room, _, err := s.manager.CreateRoom(newTestClient(s), "P", "", "")
		require.NoError(t, err)
		assert.False(t, seen[room.Code], "duplicate active code %s", room.Code)
		seen[room.Code] = true
	}
}

func TestGameResultPersisted(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(t, store)
	c1, c2 := newTestClient(s), newTestClient(s)
	room, host, err := s.manager.CreateRoom(c1, "Alice", "alice@example.com", "CRANE")
	require.NoError(t, err)
	_, guest, err := s.manager.JoinRoom(c2, room.Code, "Bob", "")
	require.NoError(t, err)

	startPlaying(t, room)
	require.NoError(t, room.HandleGuess(host.ID, "CRANE", false))
	require.NoError(t, room.HandleGuess(guest.ID, "CRANE", false))

	waitFor(t, 2*time.Second, func() bool { return store.savedCount() == 1 }, "async result write")

	store.mu.Lock()
	defer store.mu.Unlock()
	rec := store.saved[0]
	assert.Equal(t, room.Code, rec.RoomCode)
	assert.Equal(t, "CRANE", rec.TargetWord)
	require.Len(t, rec.Players, 2)
	assert.Equal(t, 1, rec.Players[0].Position)
	assert.Equal(t, 2, rec.Players[1].Position)
}
