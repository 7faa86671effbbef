package srv

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerangeNeverAssignsSelf(t *testing.T) {
	for n := 2; n <= 4; n++ {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("p%d", i+1)
		}
		for trial := 0; trial < 200; trial++ {
			assignment := derange(ids)
			require.Len(t, assignment, n)
			seen := make(map[string]bool)
			for picker, target := range assignment {
				assert.NotEqual(t, picker, target, "picker assigned to themself")
				assert.False(t, seen[target], "target %s picked twice", target)
				seen[target] = true
			}
		}
	}
}

func TestDerangeTwoPlayersIsSwap(t *testing.T) {
	assignment := derange([]string{"a", "b"})
	assert.Equal(t, "b", assignment["a"])
	assert.Equal(t, "a", assignment["b"])
}

func sabotageRoom(t *testing.T) (*Server, *Room, *Player, *Player, *client, *client) {
	t.Helper()
	s := newTestServer(t, newFakeStore())
	c1, c2 := newTestClient(s), newTestClient(s)
	room, host, err := s.manager.CreateRoom(c1, "Alice", "", "")
	require.NoError(t, err)
	_, guest, err := s.manager.JoinRoom(c2, room.Code, "Bob", "")
	require.NoError(t, err)
	require.NoError(t, room.HandleSetWordMode(host.ID, WordSabotage))
	return s, room, host, guest, c1, c2
}

// Both pickers submit; each plays against the word picked for them and
// the results reveal per-player targets.
func TestSabotageFullRound(t *testing.T) {
	_, room, host, guest, c1, c2 := sabotageRoom(t)

	startPlaying(t, room) // sabotage: enters selecting
	require.Equal(t, StateSelecting, roomState(room))

	started := lastOfType(t, c1, "selectionPhaseStarted")
	require.NotNil(t, started)
	assert.Equal(t, guest.ID, started["targetId"], "two players always swap")

	require.NoError(t, room.HandleSubmitWord(host.ID, "grape"))
	require.NoError(t, room.HandleSubmitWord(guest.ID, "crane"))

	require.Equal(t, StatePlaying, roomState(room))
	room.mu.Lock()
	assert.Equal(t, "GRAPE", room.targets[guest.ID])
	assert.Equal(t, "CRANE", room.targets[host.ID])
	room.mu.Unlock()

	drain(t, c1, c2)
	require.NoError(t, room.HandleGuess(host.ID, "CRANE", false))
	require.NoError(t, room.HandleGuess(guest.ID, "GRAPE", false))

	require.Equal(t, StateFinished, roomState(room))
	ended := lastOfType(t, c1, "gameEnded")
	require.NotNil(t, ended)
	// No shared word to reveal; each entry carries its own.
	assert.Empty(t, ended["targetWord"])
	for _, raw := range ended["results"].([]any) {
		entry := raw.(map[string]any)
		switch entry["playerId"] {
		case host.ID:
			assert.Equal(t, "CRANE", entry["targetWord"])
			assert.Equal(t, true, entry["won"])
		case guest.ID:
			assert.Equal(t, "GRAPE", entry["targetWord"])
			assert.Equal(t, true, entry["won"])
		}
	}
}

func TestSabotageSubmitValidation(t *testing.T) {
	_, room, host, _, c1, _ := sabotageRoom(t)
	startPlaying(t, room)
	drain(t, c1)

	// Too short.
	require.NoError(t, room.HandleSubmitWord(host.ID, "cat"))
	v := lastOfType(t, c1, "wordValidation")
	require.NotNil(t, v)
	assert.Equal(t, false, v["valid"])

	// In the guess dictionary but not answer-eligible.
	require.NoError(t, room.HandleSubmitWord(host.ID, "ABACK"))
	v = lastOfType(t, c1, "wordValidation")
	require.NotNil(t, v)
	assert.Equal(t, false, v["valid"])

	// Valid pick is echoed back.
	require.NoError(t, room.HandleSubmitWord(host.ID, "GRAPE"))
	sub := lastOfType(t, c1, "wordSubmitted")
	require.NotNil(t, sub)
	assert.Equal(t, "GRAPE", sub["word"])

	// Still selecting: the other picker has not submitted.
	assert.Equal(t, StateSelecting, roomState(room))
}

// Last valid submission wins until the phase ends.
func TestSabotageResubmission(t *testing.T) {
	_, room, host, guest, _, _ := sabotageRoom(t)
	startPlaying(t, room)

	require.NoError(t, room.HandleSubmitWord(host.ID, "GRAPE"))
	require.NoError(t, room.HandleSubmitWord(host.ID, "APPLE"))
	require.NoError(t, room.HandleSubmitWord(guest.ID, "CRANE"))

	room.mu.Lock()
	defer room.mu.Unlock()
	assert.Equal(t, "APPLE", room.targets[guest.ID])
}

// Only one picker submits; the deadline auto-assigns the other target
// and the game starts.
func TestSelectionTimeoutAutoAssign(t *testing.T) {
	_, room, host, guest, c1, _ := sabotageRoom(t)
	startPlaying(t, room)

	require.NoError(t, room.HandleSubmitWord(host.ID, "GRAPE"))

	waitFor(t, 2*time.Second, func() bool { return roomState(room) == StatePlaying }, "selection deadline")

	timeout := lastOfType(t, c1, "selectionTimeout")
	require.NotNil(t, timeout)

	room.mu.Lock()
	defer room.mu.Unlock()
	// The submitted pick survived; the missing one was filled in.
	assert.Equal(t, "GRAPE", room.targets[guest.ID])
	auto := room.targets[host.ID]
	assert.Len(t, auto, WordLength)
	assert.NotEmpty(t, auto)
}

func TestSubmitWordOutsideSelectionPhase(t *testing.T) {
	s := newTestServer(t, newFakeStore())
	room, host, err := s.manager.CreateRoom(newTestClient(s), "Alice", "", "")
	require.NoError(t, err)

	err = room.HandleSubmitWord(host.ID, "GRAPE")
	assert.ErrorContains(t, err, "no word selection")
}
