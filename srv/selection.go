package srv

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"wordclash.exe.dev/words"
)

// derange returns a permutation of ids with no fixed point, uniform over
// all derangements. Two ids always swap; larger sets use rejection
// sampling, which terminates fast (at least a third of permutations of
// 3 or 4 elements are derangements).
func derange(ids []string) map[string]string {
	n := len(ids)
	assignment := make(map[string]string, n)
	if n == 2 {
		assignment[ids[0]] = ids[1]
		assignment[ids[1]] = ids[0]
		return assignment
	}

	perm := make([]int, n)
	for {
		for i := range perm {
			perm[i] = i
		}
		rand.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		fixed := false
		for i, v := range perm {
			if i == v {
				fixed = true
				break
			}
		}
		if !fixed {
			break
		}
	}
	for i, v := range perm {
		assignment[ids[i]] = ids[v]
	}
	return assignment
}

// enterSelectingLocked starts the sabotage selection phase: every player
// is assigned someone else's word to pick, and a deadline is set after
// which unsubmitted picks are auto-assigned.
func (r *Room) enterSelectingLocked() {
	r.state = StateSelecting
	r.assignments = make(map[string]WordAssignment)
	r.picks = derange(r.order)
	r.selectionDeadline = time.Now().Add(r.srv.cfg.SelectionTimeout)

	deadlineMs := r.selectionDeadline.UnixMilli()
	for pickerID, targetID := range r.picks {
		target := r.players[targetID]
		r.unicastLocked(pickerID, mustMarshal(outSelectionPhaseStarted{
			Type:       "selectionPhaseStarted",
			TargetID:   target.ID,
			TargetName: target.Name,
			DeadlineMs: deadlineMs,
		}))
	}

	r.selectionTimer = NewOneShot(r.srv.cfg.SelectionTimeout, r.selectionDeadlineFired)
	slog.Info("selection phase started", "room", r.Code, "players", len(r.picks))
	r.srv.lobby.Changed()
}

// HandleSubmitWord validates and stores a sabotage pick. Resubmission is
// allowed until the deadline; the last valid submission wins. Invalid
// words answer with a validation error and leave any prior pick intact.
func (r *Room) HandleSubmitWord(playerID, raw string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateSelecting {
		return fmt.Errorf("no word selection in progress")
	}
	p, ok := r.players[playerID]
	if !ok {
		return fmt.Errorf("not in this room")
	}
	targetID, ok := r.picks[playerID]
	if !ok {
		return fmt.Errorf("no selection target assigned")
	}

	word, err := NormalizeGuess(raw)
	if err != nil {
		r.unicastLocked(playerID, mustMarshal(outWordValidation{
			Type: "wordValidation", Word: raw, Valid: false, Reason: err.Error(),
		}))
		return nil
	}
	if !words.IsAnswer(word) {
		r.unicastLocked(playerID, mustMarshal(outWordValidation{
			Type: "wordValidation", Word: word, Valid: false,
			Reason: fmt.Sprintf("%s cannot be used as a target word", word),
		}))
		return nil
	}

	_, resubmit := r.assignments[targetID]
	r.assignments[targetID] = WordAssignment{
		PickerID:    p.ID,
		PickerName:  p.Name,
		Word:        word,
		SubmittedAt: time.Now(),
	}

	r.unicastLocked(playerID, mustMarshal(outWordValidation{Type: "wordValidation", Word: word, Valid: true}))
	r.unicastLocked(playerID, mustMarshal(outWordSubmitted{Type: "wordSubmitted", Word: word}))
	r.broadcastLocked(mustMarshal(outSelectionProgress{
		Type:      "selectionProgress",
		Submitted: len(r.assignments),
		Total:     len(r.picks),
	}))

	if !resubmit && len(r.assignments) == len(r.picks) {
		r.broadcastLocked(mustMarshal(outAllWordsSubmitted{Type: "allWordsSubmitted"}))
		r.endSelectionLocked()
	}
	return nil
}

// selectionDeadlineFired is the one-shot deadline callback: any picker
// who never submitted gets a uniformly chosen word forced on their
// target.
func (r *Room) selectionDeadlineFired() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed || r.state != StateSelecting {
		return
	}

	var autoPicked []string
	for pickerID, targetID := range r.picks {
		if _, ok := r.assignments[targetID]; ok {
			continue
		}
		picker := r.players[pickerID]
		pickerName := ""
		if picker != nil {
			pickerName = picker.Name
		}
		word := words.Random()
		r.assignments[targetID] = WordAssignment{
			PickerID:    pickerID,
			PickerName:  pickerName,
			Word:        word,
			SubmittedAt: time.Now(),
		}
		autoPicked = append(autoPicked, targetID)
		slog.Info("selection timed out, word auto-assigned",
			"room", r.Code, "picker", pickerID, "target", targetID)
	}

	if len(autoPicked) > 0 {
		r.broadcastLocked(mustMarshal(outSelectionTimeout{
			Type:       "selectionTimeout",
			AutoPicked: autoPicked,
		}))
	}
	r.endSelectionLocked()
}

func (r *Room) endSelectionLocked() {
	if r.selectionTimer != nil {
		r.selectionTimer.Cancel()
		r.selectionTimer = nil
	}
	r.enterPlayingLocked()
}
