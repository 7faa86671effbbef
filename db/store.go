package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PlayerResult is one player's row in a finished game.
type PlayerResult struct {
	PlayerID     string   `json:"playerId"`
	Name         string   `json:"name"`
	Email        string   `json:"email,omitempty"`
	TargetWord   string   `json:"targetWord"`
	Guesses      []string `json:"guesses"`
	GuessCount   int      `json:"guessCount"`
	Won          bool     `json:"won"`
	FinishTimeMs int64    `json:"finishTimeMs"`
	Score        int      `json:"score"`
	Position     int      `json:"position"`
}

// GameRecord is a finished game as handed over by the room on entry to
// the finished state. Players are already sorted by finish position.
type GameRecord struct {
	RoomCode   string         `json:"roomCode"`
	TargetWord string         `json:"targetWord"`
	GameMode   string         `json:"gameMode"`
	WordMode   string         `json:"wordMode"`
	HardMode   bool           `json:"hardMode"`
	StartedAt  time.Time      `json:"startedAt"`
	Players    []PlayerResult `json:"players"`
}

// DailyCompletion records one authenticated player's daily-challenge run.
type DailyCompletion struct {
	Email       string
	DailyNumber int
	Guesses     []string
	GuessCount  int
	Won         bool
	SolveTimeMs int64
}

// Store runs the persistence queries against an opened database.
type Store struct {
	db *sql.DB
}

// NewStore wraps an opened database handle.
func NewStore(wdb *sql.DB) *Store {
	return &Store{db: wdb}
}

// SaveGameResult inserts the game and its per-player rows in one
// transaction and returns the generated game id.
func (s *Store) SaveGameResult(ctx context.Context, rec GameRecord) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx for room %s: %w", rec.RoomCode, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO game_results (id, room_code, target_word, game_mode, word_mode, hard_mode, started_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.RoomCode, rec.TargetWord, rec.GameMode, rec.WordMode, rec.HardMode,
		rec.StartedAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting game result for room %s: %w", rec.RoomCode, err)
	}

	for _, p := range rec.Players {
		guessesJSON, _ := json.Marshal(p.Guesses)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO game_result_players
			 (game_id, player_id, player_name, player_email, target_word, guesses_json, guess_count, won, finish_time_ms, score, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, p.PlayerID, p.Name, nullable(p.Email), p.TargetWord,
			string(guessesJSON), p.GuessCount, p.Won, p.FinishTimeMs, p.Score, p.Position,
		)
		if err != nil {
			return "", fmt.Errorf("inserting player result %s for room %s: %w", p.PlayerID, rec.RoomCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit game result for room %s: %w", rec.RoomCode, err)
	}
	return id, nil
}

// SaveDailyCompletion records a daily-challenge run. A second completion
// for the same (email, daily) pair is ignored: the first attempt is the
// one that counts.
func (s *Store) SaveDailyCompletion(ctx context.Context, c DailyCompletion) error {
	guessesJSON, _ := json.Marshal(c.Guesses)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_completions (email, daily_number, guesses_json, guess_count, won, solve_time_ms, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (email, daily_number) DO NOTHING`,
		c.Email, c.DailyNumber, string(guessesJSON), c.GuessCount, c.Won, c.SolveTimeMs, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving daily completion %q #%d: %w", c.Email, c.DailyNumber, err)
	}
	return nil
}

// HasCompletedDailyChallenge reports whether the email already has a
// recorded completion for the daily number. Callers must fail closed on
// error to preserve the one-attempt rule.
func (s *Store) HasCompletedDailyChallenge(ctx context.Context, email string, daily int) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM daily_completions WHERE email = ? AND daily_number = ?`,
		email, daily,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying daily completion %q #%d: %w", email, daily, err)
	}
	return n > 0, nil
}

// LoadGameResult fetches a persisted game with its player rows.
func (s *Store) LoadGameResult(ctx context.Context, id string) (*GameRecord, error) {
	var rec GameRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT room_code, target_word, game_mode, word_mode, hard_mode, started_at
		 FROM game_results WHERE id = ?`, id,
	).Scan(&rec.RoomCode, &rec.TargetWord, &rec.GameMode, &rec.WordMode, &rec.HardMode, &rec.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("loading game result %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT player_id, player_name, COALESCE(player_email, ''), target_word, guesses_json, guess_count, won, finish_time_ms, score, position
		 FROM game_result_players WHERE game_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("loading player results %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p PlayerResult
		var guessesJSON string
		if err := rows.Scan(&p.PlayerID, &p.Name, &p.Email, &p.TargetWord, &guessesJSON,
			&p.GuessCount, &p.Won, &p.FinishTimeMs, &p.Score, &p.Position); err != nil {
			return nil, fmt.Errorf("scanning player result: %w", err)
		}
		json.Unmarshal([]byte(guessesJSON), &p.Guesses)
		rec.Players = append(rec.Players, p)
	}
	return &rec, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
