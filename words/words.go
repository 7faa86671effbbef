// Package words holds the immutable word lists and the daily-word
// derivation. Both lists are loaded once at init and never mutated, so
// concurrent reads need no locking.
package words

import (
	"bufio"
	"embed"
	"fmt"
	"math/rand/v2"
	"strings"
)

//go:embed answers.txt extra_guesses.txt
var listFS embed.FS

// Length is the fixed word length for all games.
const Length = 5

var (
	answers   []string
	answerSet map[string]struct{}
	guessSet  map[string]struct{}
)

func init() {
	answers = mustLoad("answers.txt")
	answerSet = make(map[string]struct{}, len(answers))
	for _, w := range answers {
		answerSet[w] = struct{}{}
	}

	extra := mustLoad("extra_guesses.txt")
	guessSet = make(map[string]struct{}, len(answers)+len(extra))
	for _, w := range answers {
		guessSet[w] = struct{}{}
	}
	for _, w := range extra {
		guessSet[w] = struct{}{}
	}
}

func mustLoad(name string) []string {
	f, err := listFS.Open(name)
	if err != nil {
		panic(fmt.Sprintf("words: opening %s: %v", name, err))
	}
	defer f.Close()

	var list []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := strings.ToUpper(strings.TrimSpace(sc.Text()))
		if w == "" {
			continue
		}
		if len(w) != Length {
			panic(fmt.Sprintf("words: %s: bad entry %q", name, w))
		}
		list = append(list, w)
	}
	if err := sc.Err(); err != nil {
		panic(fmt.Sprintf("words: reading %s: %v", name, err))
	}
	return list
}

// AnswerCount returns the size of the answer-eligible list.
func AnswerCount() int {
	return len(answers)
}

// IsAnswer reports whether w (uppercase) is answer-eligible. Sabotage
// picks and target words must pass this check.
func IsAnswer(w string) bool {
	_, ok := answerSet[w]
	return ok
}

// IsValidGuess reports whether w (uppercase) is in the broader guess
// dictionary.
func IsValidGuess(w string) bool {
	_, ok := guessSet[w]
	return ok
}

// Random returns a uniformly sampled answer-eligible word.
func Random() string {
	return answers[rand.IntN(len(answers))]
}

// Daily returns the answer word for daily challenge n. The index is a
// deterministic mix of n so consecutive days do not walk the list in
// alphabetical order.
func Daily(n int) string {
	// Knuth multiplicative hash keeps the walk deterministic but scattered.
	idx := (uint64(n) * 2654435761) % uint64(len(answers))
	return answers[idx]
}
