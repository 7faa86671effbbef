package srv

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"wordclash.exe.dev/db"
	"wordclash.exe.dev/words"
)

// MaxPlayers is the room capacity.
const MaxPlayers = 4

// Player is one participant of a room. The room owns it exclusively; the
// connection is held by handle and may outlive or die before the player.
type Player struct {
	ID    string
	Name  string
	Email string
	Host  bool
	Ready bool

	conn           *client
	Connected      bool
	DisconnectedAt time.Time
	grace          *OneShot

	Guesses      []string
	Results      [][]LetterResult
	Finished     bool
	Won          bool
	FinishTimeMs int64
	Score        int
}

// resetGame clears all game-local fields on the way back to waiting.
func (p *Player) resetGame() {
	p.Guesses = nil
	p.Results = nil
	p.Finished = false
	p.Won = false
	p.FinishTimeMs = 0
	p.Score = 0
}

// WordAssignment is a sabotage pick: the word a picker chose for their
// target.
type WordAssignment struct {
	PickerID    string
	PickerName  string
	Word        string
	SubmittedAt time.Time
}

// Room is a single game instance. Every mutation (inbound messages,
// timer callbacks, disconnect events) runs under mu, so no two
// operations observe partial state.
type Room struct {
	mu  sync.Mutex
	srv *Server

	Code      string
	players   map[string]*Player
	order     []string // join order
	state     RoomState
	creatorID string

	gameMode   GameMode
	wordMode   WordMode
	hardMode   bool
	visibility Visibility
	solo       bool

	dailyChallenge bool
	dailyNumber    int

	testWordSeed string

	countdownActive bool
	countdown       *Countdown
	ticker          *TickLoop

	startedAt    time.Time
	sharedTarget string
	targets      map[string]string // player id -> that player's target word

	// Sabotage selection sub-state.
	assignments       map[string]WordAssignment // target id -> assignment
	picks             map[string]string         // picker id -> target id
	selectionDeadline time.Time
	selectionTimer    *OneShot

	gameID    string
	destroyed bool
}

func newRoom(s *Server, code string) *Room {
	return &Room{
		srv:        s,
		Code:       code,
		players:    make(map[string]*Player),
		state:      StateWaiting,
		gameMode:   ModeCasual,
		wordMode:   WordRandom,
		visibility: VisibilityPublic,
	}
}

// --- locked helpers -------------------------------------------------

func (r *Room) broadcastLocked(data []byte) {
	for _, id := range r.order {
		p := r.players[id]
		if p != nil && p.conn != nil {
			p.conn.send(data)
		}
	}
}

func (r *Room) broadcastExceptLocked(exceptID string, data []byte) {
	for _, id := range r.order {
		if id == exceptID {
			continue
		}
		p := r.players[id]
		if p != nil && p.conn != nil {
			p.conn.send(data)
		}
	}
}

func (r *Room) unicastLocked(playerID string, data []byte) {
	if p := r.players[playerID]; p != nil && p.conn != nil {
		p.conn.send(data)
	}
}

func (r *Room) connectedCountLocked() int {
	n := 0
	for _, p := range r.players {
		if p.Connected {
			n++
		}
	}
	return n
}

func (r *Room) allReadyLocked() bool {
	for _, p := range r.players {
		if !p.Ready {
			return false
		}
	}
	return true
}

func (r *Room) readyCountLocked() int {
	n := 0
	for _, p := range r.players {
		if p.Ready {
			n++
		}
	}
	return n
}

func (r *Room) playerInfosLocked() []PlayerInfo {
	infos := make([]PlayerInfo, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		infos = append(infos, PlayerInfo{
			ID:        p.ID,
			Name:      p.Name,
			Host:      p.Host,
			Ready:     p.Ready,
			Connected: p.Connected,
		})
	}
	return infos
}

func (r *Room) snapshotLocked() RoomSnapshot {
	return RoomSnapshot{
		RoomCode:       r.Code,
		State:          r.state,
		Players:        r.playerInfosLocked(),
		GameMode:       r.gameMode,
		WordMode:       r.wordMode,
		HardMode:       r.hardMode,
		Visibility:     r.visibility,
		Solo:           r.solo,
		DailyChallenge: r.dailyChallenge,
		DailyNumber:    r.dailyNumber,
	}
}

func (r *Room) notifyReadyStatusLocked() {
	msg := mustMarshal(outAllPlayersReadyStatus{
		Type:       "allPlayersReadyStatus",
		AllReady:   r.allReadyLocked(),
		ReadyCount: r.readyCountLocked(),
		Total:      len(r.players),
	})
	r.unicastLocked(r.creatorID, msg)
}

// LobbyInfo returns the lobby listing row, or false when the room is not
// joinable from the lobby.
func (r *Room) LobbyInfo() (LobbyRoom, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed || r.visibility != VisibilityPublic || r.state != StateWaiting ||
		r.countdownActive || r.solo || len(r.players) >= MaxPlayers {
		return LobbyRoom{}, false
	}
	host := r.players[r.creatorID]
	hostName := ""
	if host != nil {
		hostName = host.Name
	}
	info := LobbyRoom{
		RoomCode:    r.Code,
		HostName:    hostName,
		PlayerCount: len(r.players),
		Capacity:    MaxPlayers,
		GameMode:    r.gameMode,
		WordMode:    r.wordMode,
	}
	if r.dailyChallenge {
		info.DailyNumber = r.dailyNumber
	}
	return info, true
}

// --- joining and leaving --------------------------------------------

// AddPlayer places a new player in the room. The first player becomes
// host (and is implicitly ready); later joins require the room to still
// be waiting with a free seat.
func (r *Room) AddPlayer(p *Player, c *client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed {
		return fmt.Errorf("room %s no longer exists", r.Code)
	}
	if len(r.players) > 0 {
		if r.state != StateWaiting || r.countdownActive {
			return fmt.Errorf("game already in progress")
		}
		if len(r.players) >= MaxPlayers {
			return fmt.Errorf("room is full (max %d players)", MaxPlayers)
		}
	}

	p.conn = c
	p.Connected = true
	if len(r.players) == 0 {
		p.Host = true
		p.Ready = true
		r.creatorID = p.ID
	}
	r.players[p.ID] = p
	r.order = append(r.order, p.ID)

	c.send(mustMarshal(outRoomJoined{Type: "roomJoined", PlayerID: p.ID, Room: r.snapshotLocked()}))
	r.broadcastExceptLocked(p.ID, mustMarshal(outPlayerJoined{
		Type: "playerJoined",
		Player: PlayerInfo{
			ID: p.ID, Name: p.Name, Host: p.Host, Ready: p.Ready, Connected: true,
		},
	}))
	r.notifyReadyStatusLocked()

	slog.Info("player joined", "room", r.Code, "player", p.ID, "name", p.Name)
	r.srv.lobby.Changed()
	return nil
}

// HandleLeave removes a player who left voluntarily.
func (r *Room) HandleLeave(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removePlayerLocked(playerID)
}

// removePlayerLocked takes a player out of the room on voluntary leave
// and on grace expiry. It handles host reassignment, the forfeit path and
// room destruction.
func (r *Room) removePlayerLocked(playerID string) {
	p, ok := r.players[playerID]
	if !ok {
		return
	}
	if p.grace != nil {
		p.grace.Cancel()
		p.grace = nil
	}
	delete(r.players, playerID)
	for i, id := range r.order {
		if id == playerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.srv.manager.untrackPlayer(playerID)

	r.broadcastLocked(mustMarshal(outPlayerLeft{Type: "playerLeft", PlayerID: p.ID, Name: p.Name}))
	slog.Info("player left", "room", r.Code, "player", p.ID)

	if len(r.players) == 0 {
		r.destroyLocked()
		return
	}

	if playerID == r.creatorID {
		if !r.reassignHostLocked() {
			// Host gone and nobody connected to take over.
			r.destroyLocked()
			return
		}
	}

	switch r.state {
	case StateWaiting:
		if r.countdownActive && !r.solo && r.connectedCountLocked() < 2 {
			r.cancelCountdownLocked()
		}
		r.notifyReadyStatusLocked()
	case StateSelecting, StatePlaying:
		r.checkForfeitLocked(p)
		if r.state == StatePlaying {
			r.checkAllFinishedLocked()
		}
	}

	r.srv.lobby.Changed()
}

// reassignHostLocked promotes the first connected player in join order.
// Returns false when no connected player remains.
func (r *Room) reassignHostLocked() bool {
	for _, id := range r.order {
		p := r.players[id]
		if p != nil && p.Connected {
			p.Host = true
			p.Ready = true
			r.creatorID = p.ID
			r.broadcastLocked(mustMarshal(outBecameCreator{Type: "becameCreator", PlayerID: p.ID, Name: p.Name}))
			slog.Info("host reassigned", "room", r.Code, "player", p.ID)
			return true
		}
	}
	return false
}

func (r *Room) destroyLocked() {
	if r.destroyed {
		return
	}
	r.destroyed = true
	if r.countdown != nil {
		r.countdown.Stop()
	}
	if r.ticker != nil {
		r.ticker.Stop()
	}
	if r.selectionTimer != nil {
		r.selectionTimer.Cancel()
	}
	for _, p := range r.players {
		if p.grace != nil {
			p.grace.Cancel()
		}
		r.srv.manager.untrackPlayer(p.ID)
	}
	r.players = make(map[string]*Player)
	r.order = nil
	r.srv.manager.removeRoom(r.Code)
	r.srv.lobby.Changed()
	slog.Info("room destroyed", "room", r.Code)
}

// --- configuration ---------------------------------------------------

func (r *Room) requireHostLocked(playerID string) error {
	if playerID != r.creatorID {
		return fmt.Errorf("only the host can do that")
	}
	return nil
}

func (r *Room) requireConfigurableLocked() error {
	if r.state != StateWaiting {
		return fmt.Errorf("game already in progress")
	}
	if r.countdownActive {
		return fmt.Errorf("countdown already running")
	}
	return nil
}

// HandleSetGameMode switches casual/competitive. Host only, waiting only.
func (r *Room) HandleSetGameMode(playerID string, mode GameMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireHostLocked(playerID); err != nil {
		return err
	}
	if err := r.requireConfigurableLocked(); err != nil {
		return err
	}
	r.gameMode = mode
	r.broadcastLocked(mustMarshal(outGameModeChanged{Type: "gameModeChanged", Mode: mode}))
	r.srv.lobby.Changed()
	return nil
}

// HandleSetWordMode switches daily/random/sabotage. Host only, waiting only.
func (r *Room) HandleSetWordMode(playerID string, mode WordMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireHostLocked(playerID); err != nil {
		return err
	}
	if err := r.requireConfigurableLocked(); err != nil {
		return err
	}
	if r.dailyChallenge {
		return fmt.Errorf("daily challenge rooms cannot change word mode")
	}
	r.wordMode = mode
	r.broadcastLocked(mustMarshal(outWordModeChanged{Type: "wordModeChanged", Mode: mode}))
	r.srv.lobby.Changed()
	return nil
}

// HandleSetHardMode toggles hard mode. Host only, waiting only.
func (r *Room) HandleSetHardMode(playerID string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireHostLocked(playerID); err != nil {
		return err
	}
	if err := r.requireConfigurableLocked(); err != nil {
		return err
	}
	r.hardMode = enabled
	r.broadcastLocked(mustMarshal(outHardModeChanged{Type: "hardModeChanged", Enabled: enabled}))
	return nil
}

// HandleSetVisibility toggles lobby visibility. Host only, waiting only.
// Daily challenge rooms stay private.
func (r *Room) HandleSetVisibility(playerID string, v Visibility) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireHostLocked(playerID); err != nil {
		return err
	}
	if err := r.requireConfigurableLocked(); err != nil {
		return err
	}
	if r.dailyChallenge && v == VisibilityPublic {
		return fmt.Errorf("daily challenge rooms are always private")
	}
	r.visibility = v
	r.broadcastLocked(mustMarshal(outRoomVisibilityChanged{Type: "roomVisibilityChanged", Visibility: v}))
	r.srv.lobby.Changed()
	return nil
}

// HandleSetReady toggles a non-host player's ready flag. Ignored during
// the countdown.
func (r *Room) HandleSetReady(playerID string, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok {
		return fmt.Errorf("not in this room")
	}
	if r.state != StateWaiting || r.countdownActive {
		return nil // ready toggles are ignored once the countdown runs
	}
	if p.Host {
		return nil
	}
	p.Ready = ready
	r.broadcastLocked(mustMarshal(outPlayerReadyChanged{Type: "playerReadyChanged", PlayerID: p.ID, Ready: ready}))
	r.notifyReadyStatusLocked()
	return nil
}

// --- starting --------------------------------------------------------

// HandleStartGame begins the pre-game countdown. Host only; every player
// must be ready and the two-player minimum met unless the room is solo.
func (r *Room) HandleStartGame(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireHostLocked(playerID); err != nil {
		return err
	}
	if r.state != StateWaiting {
		return fmt.Errorf("game already in progress")
	}
	if r.countdownActive {
		return fmt.Errorf("countdown already running")
	}
	if !r.allReadyLocked() {
		return fmt.Errorf("not all players are ready")
	}
	if !r.solo && len(r.players) < 2 {
		return fmt.Errorf("need at least 2 players")
	}
	r.startCountdownLocked()
	return nil
}

func (r *Room) startCountdownLocked() {
	r.countdownActive = true
	r.countdown = NewCountdown(r.srv.cfg.CountdownSeconds,
		func(left int) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.destroyed || !r.countdownActive {
				return
			}
			r.broadcastLocked(mustMarshal(outCountdown{Type: "countdown", Seconds: left}))
		},
		func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.destroyed || !r.countdownActive {
				return
			}
			r.countdownActive = false
			r.countdown = nil
			r.broadcastLocked(mustMarshal(outCountdown{Type: "countdown", Seconds: 0}))
			if r.wordMode == WordSabotage {
				r.enterSelectingLocked()
			} else {
				r.enterPlayingLocked()
			}
		},
	)
	r.srv.lobby.Changed()
}

func (r *Room) cancelCountdownLocked() {
	if r.countdown != nil {
		r.countdown.Stop()
		r.countdown = nil
	}
	r.countdownActive = false
	slog.Info("countdown cancelled", "room", r.Code)
}

// pickTargetsLocked resolves every player's target word at the moment the
// game starts.
func (r *Room) pickTargetsLocked() {
	r.targets = make(map[string]string, len(r.players))

	switch r.wordMode {
	case WordDaily:
		n := r.dailyNumber
		if n == 0 {
			n = words.CurrentDaily(time.Now())
			r.dailyNumber = n
		}
		r.sharedTarget = words.Daily(n)
	case WordRandom:
		r.sharedTarget = words.Random()
	case WordSabotage:
		// Per-player targets were filled by the selection phase.
		for targetID, a := range r.assignments {
			r.targets[targetID] = a.Word
		}
	}

	if r.wordMode != WordSabotage {
		for id := range r.players {
			r.targets[id] = r.sharedTarget
		}
	}

	if r.srv.cfg.TestMode && r.testWordSeed != "" {
		if seed, err := NormalizeGuess(r.testWordSeed); err == nil {
			r.sharedTarget = seed
			for id := range r.targets {
				r.targets[id] = seed
			}
			slog.Info("test word seed applied", "room", r.Code)
		}
	}
}

func (r *Room) enterPlayingLocked() {
	r.pickTargetsLocked()
	r.state = StatePlaying
	r.startedAt = time.Now()

	r.broadcastLocked(mustMarshal(outGameStarted{
		Type:      "gameStarted",
		GameMode:  r.gameMode,
		WordMode:  r.wordMode,
		HardMode:  r.hardMode,
		StartedAt: r.startedAt.UnixMilli(),
	}))

	r.ticker = NewTickLoop(r.tickSync)
	slog.Info("game started", "room", r.Code, "wordMode", r.wordMode, "players", len(r.players))
	r.srv.lobby.Changed()
}

// tickSync is the once-per-second broadcast while the room is playing.
func (r *Room) tickSync() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed || r.state != StatePlaying {
		return
	}
	elapsed := time.Since(r.startedAt).Milliseconds()
	perPlayer := make(map[string]int64, len(r.players))
	for id, p := range r.players {
		if p.Finished {
			perPlayer[id] = p.FinishTimeMs
		} else {
			perPlayer[id] = elapsed
		}
	}
	r.broadcastLocked(mustMarshal(outTimerSync{
		Type:          "timerSync",
		GameElapsedMs: elapsed,
		Players:       perPlayer,
	}))
}

// --- finishing -------------------------------------------------------

// checkAllFinishedLocked moves the room to finished once every player,
// connected or not, has a finished board. A disconnected player's game
// is preserved while their grace runs, so the room waits for them.
func (r *Room) checkAllFinishedLocked() {
	if r.state != StatePlaying {
		return
	}
	for _, p := range r.players {
		if !p.Finished {
			return
		}
	}
	r.finishGameLocked("", nil)
}

// checkForfeitLocked ends the game when a removal leaves only one
// connected player in a non-solo room mid-game. The departed player is
// recorded with their partial progress.
func (r *Room) checkForfeitLocked(departed *Player) {
	if r.solo || (r.state != StatePlaying && r.state != StateSelecting) {
		return
	}
	if r.connectedCountLocked() != 1 {
		return
	}
	var winnerID string
	for id, p := range r.players {
		if p.Connected {
			winnerID = id
			break
		}
	}
	slog.Info("game forfeited to last connected player", "room", r.Code, "winner", winnerID)
	r.finishGameLocked(winnerID, departed)
}

// finishGameLocked transitions to finished, builds and broadcasts the
// result summary, and hands the record to the persistence adapter. A
// non-empty forfeitWinnerID pins that player to first place; departed
// carries a just-removed player whose partial progress still belongs in
// the record.
func (r *Room) finishGameLocked(forfeitWinnerID string, departed *Player) {
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
	if r.selectionTimer != nil {
		r.selectionTimer.Cancel()
		r.selectionTimer = nil
	}
	r.state = StateFinished

	participants := make([]*Player, 0, len(r.players)+1)
	for _, id := range r.order {
		participants = append(participants, r.players[id])
	}
	if departed != nil {
		participants = append(participants, departed)
	}

	entries := make([]ResultEntry, 0, len(participants))
	emails := make(map[string]string, len(participants))
	for _, p := range participants {
		e := ResultEntry{
			PlayerID:     p.ID,
			Name:         p.Name,
			TargetWord:   r.targets[p.ID],
			Guesses:      append([]string(nil), p.Guesses...),
			GuessCount:   len(p.Guesses),
			Won:          p.Won,
			FinishTimeMs: p.FinishTimeMs,
			Score:        p.Score,
		}
		if p.ID == forfeitWinnerID {
			e.Won = true
		}
		entries = append(entries, e)
		emails[p.ID] = p.Email
	}

	sortResultsPinned(entries, forfeitWinnerID)

	reveal := r.sharedTarget // empty for sabotage: targets are per-entry
	r.broadcastLocked(mustMarshal(outGameEnded{
		Type:       "gameEnded",
		TargetWord: reveal,
		Results:    entries,
	}))
	slog.Info("game ended", "room", r.Code, "players", len(entries))

	r.persistResultLocked(entries, emails)
}

func (r *Room) persistResultLocked(entries []ResultEntry, emails map[string]string) {
	rec := db.GameRecord{
		RoomCode:   r.Code,
		TargetWord: r.sharedTarget,
		GameMode:   string(r.gameMode),
		WordMode:   string(r.wordMode),
		HardMode:   r.hardMode,
		StartedAt:  r.startedAt,
	}
	for _, e := range entries {
		email := emails[e.PlayerID]
		rec.Players = append(rec.Players, db.PlayerResult{
			PlayerID:     e.PlayerID,
			Name:         e.Name,
			Email:        email,
			TargetWord:   e.TargetWord,
			Guesses:      e.Guesses,
			GuessCount:   e.GuessCount,
			Won:          e.Won,
			FinishTimeMs: e.FinishTimeMs,
			Score:        e.Score,
			Position:     e.Position,
		})
	}

	var daily *dailyWrite
	if r.dailyChallenge {
		daily = &dailyWrite{number: r.dailyNumber}
	}

	r.srv.persister.SaveAsync(rec, daily, func(gameID string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.gameID = gameID
	})
}

// sortResults orders entries by (won desc, guesses asc, time asc) and
// assigns finish positions.
func sortResults(entries []ResultEntry) {
	sortResultsPinned(entries, "")
}

// sortResultsPinned is sortResults with an optional forfeit winner pinned
// to first place.
func sortResultsPinned(entries []ResultEntry, pinnedID string) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if pinnedID != "" {
			if a.PlayerID == pinnedID {
				return true
			}
			if b.PlayerID == pinnedID {
				return false
			}
		}
		if a.Won != b.Won {
			return a.Won
		}
		if a.GuessCount != b.GuessCount {
			return a.GuessCount < b.GuessCount
		}
		return a.FinishTimeMs < b.FinishTimeMs
	})
	for i := range entries {
		entries[i].Position = i + 1
	}
}

// HandlePlayAgain returns a finished room to waiting. Host only.
func (r *Room) HandlePlayAgain(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireHostLocked(playerID); err != nil {
		return err
	}
	if r.state != StateFinished {
		return fmt.Errorf("game is not finished")
	}

	for _, p := range r.players {
		p.resetGame()
		p.Ready = p.Host
	}
	r.state = StateWaiting
	r.sharedTarget = ""
	r.targets = nil
	r.startedAt = time.Time{}
	r.assignments = nil
	r.picks = nil
	r.selectionDeadline = time.Time{}
	r.gameID = ""

	r.broadcastLocked(mustMarshal(outReturnedToLobby{Type: "returnedToLobby", Room: r.snapshotLocked()}))
	slog.Info("room returned to waiting", "room", r.Code)
	r.srv.lobby.Changed()
	return nil
}

// --- disconnect / grace ----------------------------------------------

// HandleDisconnect is invoked by the router when a player's connection
// dies. The player stays in the room for the grace period; game state is
// untouched.
func (r *Room) HandleDisconnect(playerID string, c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok || r.destroyed {
		return
	}
	if p.conn != c {
		// A newer connection already owns this player.
		return
	}

	p.conn = nil
	p.Connected = false
	p.DisconnectedAt = time.Now()
	if r.state == StateWaiting && !p.Host {
		p.Ready = false
	}

	grace := r.srv.cfg.GracePeriod
	p.grace = NewOneShot(grace, func() { r.graceExpired(playerID) })

	r.broadcastLocked(mustMarshal(outPlayerDisconnected{
		Type:     "playerDisconnected",
		PlayerID: p.ID,
		Name:     p.Name,
		GraceMs:  grace.Milliseconds(),
	}))
	if r.state == StateWaiting {
		if r.countdownActive && !r.solo && r.connectedCountLocked() < 2 {
			r.cancelCountdownLocked()
		}
		r.notifyReadyStatusLocked()
	}
	slog.Info("player disconnected, grace started", "room", r.Code, "player", playerID, "grace", grace)
	r.srv.lobby.Changed()
}

func (r *Room) graceExpired(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok || r.destroyed || p.Connected {
		return
	}
	slog.Info("grace period expired, removing player", "room", r.Code, "player", playerID)
	r.removePlayerLocked(playerID)
}
