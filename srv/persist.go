package srv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"wordclash.exe.dev/db"
)

// ResultStore is what the rooms need from storage. db.Store implements
// it; tests substitute a fake.
type ResultStore interface {
	SaveGameResult(ctx context.Context, rec db.GameRecord) (string, error)
	SaveDailyCompletion(ctx context.Context, c db.DailyCompletion) error
	HasCompletedDailyChallenge(ctx context.Context, email string, daily int) (bool, error)
	LoadGameResult(ctx context.Context, id string) (*db.GameRecord, error)
}

const persistTimeout = 10 * time.Second

// dailyWrite marks a game record as a daily challenge so completions get
// recorded alongside the result.
type dailyWrite struct {
	number int
}

// Persister is the write-through sink in front of the store: writes are
// asynchronous and best-effort, failures are logged and discarded so
// gameplay never stalls on storage.
type Persister struct {
	store ResultStore
}

// NewPersister wraps a store. A nil store disables persistence: writes
// are dropped with a log line and the daily precheck fails closed.
func NewPersister(store ResultStore) *Persister {
	return &Persister{store: store}
}

// SaveAsync writes a finished game in the background. onSaved receives
// the issued game id on success.
func (ps *Persister) SaveAsync(rec db.GameRecord, daily *dailyWrite, onSaved func(gameID string)) {
	if ps.store == nil {
		slog.Warn("persistence disabled, discarding game result", "room", rec.RoomCode)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		id, err := ps.store.SaveGameResult(ctx, rec)
		if err != nil {
			slog.Error("saving game result", "room", rec.RoomCode, "error", err)
			return
		}
		if onSaved != nil {
			onSaved(id)
		}
		slog.Info("game result saved", "room", rec.RoomCode, "gameId", id)

		if daily == nil {
			return
		}
		for _, p := range rec.Players {
			if p.Email == "" {
				continue
			}
			err := ps.store.SaveDailyCompletion(ctx, db.DailyCompletion{
				Email:       p.Email,
				DailyNumber: daily.number,
				Guesses:     p.Guesses,
				GuessCount:  p.GuessCount,
				Won:         p.Won,
				SolveTimeMs: p.FinishTimeMs,
			})
			if err != nil {
				slog.Error("saving daily completion", "email", p.Email, "daily", daily.number, "error", err)
			}
		}
	}()
}

// HasCompletedDailyChallenge is the synchronous precheck behind the
// one-attempt-per-daily rule. Errors propagate so callers can fail
// closed.
func (ps *Persister) HasCompletedDailyChallenge(ctx context.Context, email string, daily int) (bool, error) {
	if ps.store == nil {
		return false, fmt.Errorf("persistence disabled")
	}
	return ps.store.HasCompletedDailyChallenge(ctx, email, daily)
}

// ForcedWordEntry is one line of the forced-word review log.
type ForcedWordEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Word        string    `json:"word"`
	PlayerName  string    `json:"playerName"`
	PlayerEmail string    `json:"-"`
	RoomCode    string    `json:"roomCode"`
}

// MarshalJSON writes the email as null when the player had none.
func (e ForcedWordEntry) MarshalJSON() ([]byte, error) {
	type alias ForcedWordEntry
	var email *string
	if e.PlayerEmail != "" {
		email = &e.PlayerEmail
	}
	return json.Marshal(struct {
		alias
		PlayerEmail *string `json:"playerEmail"`
	}{alias(e), email})
}

// ForcedWordLog appends user-forced dictionary misses to a
// newline-delimited JSON file for later curation. Appends are serialized
// by the mutex; nothing in the server reads the file back.
type ForcedWordLog struct {
	mu   sync.Mutex
	path string
}

// NewForcedWordLog points the log at a file path. An empty path disables
// logging.
func NewForcedWordLog(path string) *ForcedWordLog {
	return &ForcedWordLog{path: path}
}

// Append writes one entry. Failures are logged and dropped; losing a
// review entry must not affect gameplay.
func (fl *ForcedWordLog) Append(in ForcedWordEntry) {
	if fl.path == "" {
		return
	}
	line, err := json.Marshal(in)
	if err != nil {
		slog.Error("marshalling forced word entry", "error", err)
		return
	}
	line = append(line, '\n')

	fl.mu.Lock()
	defer fl.mu.Unlock()
	f, err := os.OpenFile(fl.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("opening forced word log", "path", fl.path, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		slog.Error("appending forced word", "path", fl.path, "error", err)
	}
}
