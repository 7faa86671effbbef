package srv

import (
	"fmt"
	"math"
	"strings"
	"time"

	"wordclash.exe.dev/words"
)

const (
	// MaxGuesses is the number of guesses each player gets per game.
	MaxGuesses = 6
	// WordLength is the fixed guess/target length.
	WordLength = words.Length
)

// LetterResult is the per-position outcome of scoring one guess letter.
type LetterResult string

const (
	LetterCorrect LetterResult = "correct"
	LetterPresent LetterResult = "present"
	LetterAbsent  LetterResult = "absent"
)

// NormalizeGuess uppercases a raw guess and checks its shape. It does not
// consult the dictionary.
func NormalizeGuess(raw string) (string, error) {
	w := strings.ToUpper(strings.TrimSpace(raw))
	if len(w) != WordLength {
		return "", fmt.Errorf("word must be exactly %d letters", WordLength)
	}
	for _, c := range w {
		if c < 'A' || c > 'Z' {
			return "", fmt.Errorf("word must contain only letters")
		}
	}
	return w, nil
}

// ScoreGuess colors a guess against a target with the two-pass algorithm.
// First pass locks exact matches and consumes those target positions;
// second pass matches remaining guess letters against unconsumed target
// letters, so a letter guessed more times than it appears in the target
// comes back absent for the surplus.
func ScoreGuess(guess, target string) []LetterResult {
	result := make([]LetterResult, WordLength)
	var consumed [WordLength]bool

	for i := 0; i < WordLength; i++ {
		if guess[i] == target[i] {
			result[i] = LetterCorrect
			consumed[i] = true
		}
	}

	for i := 0; i < WordLength; i++ {
		if result[i] == LetterCorrect {
			continue
		}
		result[i] = LetterAbsent
		for j := 0; j < WordLength; j++ {
			if !consumed[j] && target[j] == guess[i] {
				result[i] = LetterPresent
				consumed[j] = true
				break
			}
		}
	}
	return result
}

// IsWinningResult reports whether every position scored correct.
func IsWinningResult(result []LetterResult) bool {
	for _, r := range result {
		if r != LetterCorrect {
			return false
		}
	}
	return len(result) == WordLength
}

var ordinals = [WordLength]string{"1st", "2nd", "3rd", "4th", "5th"}

// CheckHardMode validates a guess against the hard-mode rule: every
// previously revealed green must stay in place and every previously
// revealed yellow letter must appear somewhere in the guess. The
// constraint is derived entirely from the player's prior results, no
// extra state is kept. A nil error means the guess is admissible.
func CheckHardMode(prevGuesses []string, prevResults [][]LetterResult, guess string) error {
	required := make(map[byte]bool)

	for g, res := range prevResults {
		if g >= len(prevGuesses) {
			break
		}
		prev := prevGuesses[g]
		for i, r := range res {
			switch r {
			case LetterCorrect:
				if guess[i] != prev[i] {
					return fmt.Errorf("%s letter must be %c", ordinals[i], prev[i])
				}
			case LetterPresent:
				required[prev[i]] = true
			}
		}
	}

	for letter := range required {
		if !strings.ContainsRune(guess, rune(letter)) {
			return fmt.Errorf("guess must contain %c", letter)
		}
	}
	return nil
}

// ComputeScore scores a winning guess in competitive mode: fewer guesses
// dominate, with up to 60 bonus points for solving under a minute.
// Losing players score zero and never reach here.
func ComputeScore(guessCount int, solveTime time.Duration) int {
	base := (MaxGuesses + 1 - guessCount) * 100
	bonusMs := 60_000 - solveTime.Milliseconds()
	if bonusMs < 0 {
		bonusMs = 0
	}
	return base + int(math.Round(float64(bonusMs)/1000))
}
