package srv

import (
	"fmt"
	"log/slog"
	"time"
)

// HandleRejoin re-binds a returning connection to its player. Accepted
// while the player is still present (the grace timer has not removed
// them); a connection that is still live for the same player is evicted
// first, which keeps page refreshes clean.
func (r *Room) HandleRejoin(playerID string, c *client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed {
		return fmt.Errorf("room %s no longer exists", r.Code)
	}
	p, ok := r.players[playerID]
	if !ok {
		return fmt.Errorf("player is no longer part of room %s", r.Code)
	}

	if p.conn != nil {
		old := p.conn
		old.send(mustMarshal(outReplacedByNewConnection{Type: "replacedByNewConnection"}))
		old.closeAsync()
		slog.Info("stale connection replaced", "room", r.Code, "player", playerID)
	}
	if p.grace != nil {
		p.grace.Cancel()
		p.grace = nil
	}

	p.conn = c
	p.Connected = true
	p.DisconnectedAt = time.Time{}

	r.broadcastExceptLocked(playerID, mustMarshal(outPlayerReconnected{
		Type:     "playerReconnected",
		PlayerID: p.ID,
		Name:     p.Name,
	}))

	r.sendResumeLocked(p)
	slog.Info("player rejoined", "room", r.Code, "player", playerID, "state", r.state)
	r.srv.lobby.Changed()
	return nil
}

// sendResumeLocked replies with the state-resume message matching the
// current FSM state.
func (r *Room) sendResumeLocked(p *Player) {
	snap := r.snapshotLocked()

	switch r.state {
	case StateWaiting:
		r.unicastLocked(p.ID, mustMarshal(outRejoinWaiting{Type: "rejoinWaiting", Room: snap}))

	case StateSelecting:
		targetID := r.picks[p.ID]
		target := r.players[targetID]
		msg := outRejoinSelecting{
			Type:       "rejoinSelecting",
			Room:       snap,
			DeadlineMs: r.selectionDeadline.UnixMilli(),
		}
		if target != nil {
			msg.TargetID = target.ID
			msg.TargetName = target.Name
		}
		if a, ok := r.assignments[targetID]; ok && a.PickerID == p.ID {
			msg.SubmittedWord = a.Word
		}
		r.unicastLocked(p.ID, mustMarshal(msg))

	case StatePlaying:
		results := make([][]LetterResult, len(p.Results))
		for i, row := range p.Results {
			results[i] = append([]LetterResult(nil), row...)
		}
		r.unicastLocked(p.ID, mustMarshal(outRejoinGame{
			Type:          "rejoinGame",
			Room:          snap,
			Guesses:       append([]string(nil), p.Guesses...),
			Results:       results,
			Finished:      p.Finished,
			Won:           p.Won,
			GameElapsedMs: time.Since(r.startedAt).Milliseconds(),
			Opponents:     r.opponentProgressLocked(p.ID),
		}))

	case StateFinished:
		r.unicastLocked(p.ID, mustMarshal(outRejoinResults{
			Type:       "rejoinResults",
			Room:       snap,
			TargetWord: r.sharedTarget,
			Results:    r.lastResultsLocked(),
		}))
	}
}

// lastResultsLocked rebuilds the finished-game summary for a late
// rejoiner from the players still in the room, ordered by sortResults.
// After a forfeit it differs from the gameEnded broadcast: the forfeit
// winner is not pinned first nor marked won unless they solved their
// word, and the player whose departure caused the forfeit is not listed.
func (r *Room) lastResultsLocked() []ResultEntry {
	entries := make([]ResultEntry, 0, len(r.players))
	for _, id := range r.order {
		p := r.players[id]
		entries = append(entries, ResultEntry{
			PlayerID:     p.ID,
			Name:         p.Name,
			TargetWord:   r.targets[p.ID],
			Guesses:      append([]string(nil), p.Guesses...),
			GuessCount:   len(p.Guesses),
			Won:          p.Won,
			FinishTimeMs: p.FinishTimeMs,
			Score:        p.Score,
		})
	}
	sortResults(entries)
	return entries
}
