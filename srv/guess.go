package srv

import (
	"fmt"
	"log/slog"
	"time"

	"wordclash.exe.dev/words"
)

// HandleGuess runs the server-authoritative guess pipeline. Validation
// and rule errors are returned to the caller for unicast and never touch
// room state, except a hard-mode violation, which is answered directly
// with a hardModeViolation message and a nil error; an accepted guess is
// appended, scored, echoed in full to the guesser and broadcast
// color-only to everyone else.
func (r *Room) HandleGuess(playerID, raw string, forced bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StatePlaying {
		return fmt.Errorf("game is not in progress")
	}
	p, ok := r.players[playerID]
	if !ok {
		return fmt.Errorf("not in this room")
	}
	if p.Finished {
		return fmt.Errorf("you have already finished")
	}

	word, err := NormalizeGuess(raw)
	if err != nil {
		return err
	}

	if !words.IsValidGuess(word) {
		if !forced {
			return fmt.Errorf("%s is not in the word list", word)
		}
		// User-forced guess: bypass the dictionary and record the word
		// for later curation.
		go r.srv.forcedWords.Append(ForcedWordEntry{
			Timestamp:   time.Now().UTC(),
			Word:        word,
			PlayerName:  p.Name,
			PlayerEmail: p.Email,
			RoomCode:    r.Code,
		})
		slog.Info("forced guess admitted", "room", r.Code, "player", playerID, "word", word)
	}

	if r.hardMode && len(p.Guesses) >= 1 {
		if err := CheckHardMode(p.Guesses, p.Results, word); err != nil {
			r.unicastLocked(playerID, mustMarshal(outHardModeViolation{
				Type:   "hardModeViolation",
				Word:   word,
				Reason: err.Error(),
			}))
			return nil // already answered with the specific reason
		}
	}

	target := r.targets[playerID]
	result := ScoreGuess(word, target)
	p.Guesses = append(p.Guesses, word)
	p.Results = append(p.Results, result)

	won := IsWinningResult(result)
	if won || len(p.Guesses) >= MaxGuesses {
		p.Finished = true
		p.Won = won
		p.FinishTimeMs = time.Since(r.startedAt).Milliseconds()
		if won && r.gameMode == ModeCompetitive {
			p.Score = ComputeScore(len(p.Guesses), time.Duration(p.FinishTimeMs)*time.Millisecond)
		}
	}

	r.unicastLocked(playerID, mustMarshal(outGuessResult{
		Type:       "guessResult",
		Word:       word,
		Result:     result,
		GuessCount: len(p.Guesses),
		Finished:   p.Finished,
		Won:        p.Won,
		Forced:     forced,
	}))

	// Everyone else sees colors only: opponent boards stay secret in
	// sabotage and the letters stay hidden everywhere else.
	r.broadcastExceptLocked(playerID, mustMarshal(outOpponentGuess{
		Type:       "opponentGuess",
		PlayerID:   p.ID,
		Name:       p.Name,
		Result:     result,
		GuessCount: len(p.Guesses),
		Finished:   p.Finished,
		Won:        p.Won,
	}))

	r.checkAllFinishedLocked()
	return nil
}

// opponentProgressLocked builds the color-only boards of everyone except
// the given player, for the rejoinGame resume payload.
func (r *Room) opponentProgressLocked(exceptID string) []PlayerProgress {
	progress := make([]PlayerProgress, 0, len(r.order))
	for _, id := range r.order {
		if id == exceptID {
			continue
		}
		p := r.players[id]
		results := make([][]LetterResult, len(p.Results))
		for i, row := range p.Results {
			results[i] = append([]LetterResult(nil), row...)
		}
		progress = append(progress, PlayerProgress{
			PlayerID:   p.ID,
			Name:       p.Name,
			Results:    results,
			GuessCount: len(p.Guesses),
			Finished:   p.Finished,
			Won:        p.Won,
		})
	}
	return progress
}
