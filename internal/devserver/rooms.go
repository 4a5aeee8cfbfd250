package devserver

import (
	"strings"
	"sync"
	"time"
)

// Game statuses as reported to clients. The server owns all transitions;
// clients only request them.
const (
	statusWaiting = "waiting"
	statusReady   = "ready"
	statusDrawing = "drawing"
	statusReview  = "review"
	statusSuccess = "success"
)

type chatMessage struct {
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type submission struct {
	Image       string `json:"image"`
	Submitter   string `json:"submitter"`
	SubmittedAt int64  `json:"submitted_at"`
}

type humanGuess struct {
	Player    string `json:"player"`
	Text      string `json:"text"`
	Correct   bool   `json:"correct"`
	Timestamp int64  `json:"timestamp"`
}

type room struct {
	mu sync.Mutex

	id          string
	players     []string
	owner       string
	status      string
	ready       map[string]bool
	drawer      string
	round       int
	targetWord  string
	clue        string
	submission  *submission
	aiGuess     map[string]any
	history     []map[string]any
	guessStatus map[string]bool
	guesses     []humanGuess
	chat        []chatMessage
	modelConfig map[string]any
	preview     string
}

type roomRegistry struct {
	mu    sync.Mutex
	rooms map[string]*room
	clock func() time.Time
}

func newRoomRegistry(clock func() time.Time) *roomRegistry {
	return &roomRegistry{
		rooms: make(map[string]*room),
		clock: clock,
	}
}

// fetch returns the room, creating it on first touch. The first player to
// touch a room becomes its owner.
func (r *roomRegistry) fetch(roomID, identity string) *room {
	r.mu.Lock()
	current, ok := r.rooms[roomID]
	if !ok {
		current = &room{
			id:          roomID,
			status:      statusWaiting,
			ready:       map[string]bool{},
			guessStatus: map[string]bool{},
			modelConfig: map[string]any{},
		}
		r.rooms[roomID] = current
	}
	r.mu.Unlock()

	current.mu.Lock()
	current.join(identity)
	current.mu.Unlock()
	return current
}

// join is called with the room lock held.
func (rm *room) join(identity string) {
	if identity == "" {
		return
	}
	for _, player := range rm.players {
		if player == identity {
			return
		}
	}
	rm.players = append(rm.players, identity)
	if rm.owner == "" {
		rm.owner = identity
	}
}

func (rm *room) leave(identity string) {
	remaining := rm.players[:0]
	for _, player := range rm.players {
		if player != identity {
			remaining = append(remaining, player)
		}
	}
	rm.players = remaining
	delete(rm.ready, identity)
	delete(rm.guessStatus, identity)
	if rm.owner == identity {
		rm.owner = ""
		if len(rm.players) > 0 {
			rm.owner = rm.players[0]
		}
	}
}

func (rm *room) allReady() bool {
	if len(rm.players) == 0 {
		return false
	}
	for _, player := range rm.players {
		if !rm.ready[player] {
			return false
		}
	}
	return true
}

// finishRound appends the completed round to history and moves the room to
// its terminal status for the round. Called with the room lock held.
func (rm *room) finishRound(success bool) {
	entry := map[string]any{
		"round":       rm.round,
		"target_word": rm.targetWord,
		"drawer":      rm.drawer,
		"success":     success,
		"guesses":     rm.guesses,
	}
	if rm.submission != nil {
		entry["submitted_at"] = rm.submission.SubmittedAt
	}
	if rm.aiGuess != nil {
		entry["guess"] = rm.aiGuess
	}
	correct := make([]string, 0)
	for _, guess := range rm.guesses {
		if guess.Correct {
			correct = append(correct, guess.Player)
		}
	}
	if len(correct) > 0 {
		entry["correct_guessers"] = correct
	}
	rm.history = append(rm.history, entry)
	if success {
		rm.status = statusSuccess
	} else {
		rm.status = statusReview
	}
}

// resetRound clears per-round state back to waiting. Called with the room
// lock held.
func (rm *room) resetRound() {
	rm.status = statusWaiting
	rm.ready = map[string]bool{}
	rm.guessStatus = map[string]bool{}
	rm.guesses = nil
	rm.submission = nil
	rm.aiGuess = nil
	rm.targetWord = ""
	rm.clue = ""
	rm.preview = ""
}

// summary renders the room-endpoint payload. Called with the room lock held.
func (rm *room) summary() map[string]any {
	snapshots := map[string]any{}
	for _, player := range rm.players {
		snapshots[player] = map[string]any{
			"username": player,
			"ready":    rm.ready[player],
			"guessed":  rm.guessStatus[player],
		}
	}
	return map[string]any{
		"players":          append([]string{}, rm.players...),
		"owner":            nullableString(rm.owner),
		"status":           rm.status,
		"ready_status":     copyBoolMap(rm.ready),
		"current_drawer":   nullableString(rm.drawer),
		"current_round":    rm.round,
		"player_snapshots": snapshots,
	}
}

// drawingState renders the drawing-endpoint payload, a superset of summary.
// Called with the room lock held.
func (rm *room) drawingState() map[string]any {
	state := rm.summary()
	state["target_word"] = nullableString(rm.targetWord)
	state["clue"] = nullableString(rm.clue)
	state["guess_status"] = copyBoolMap(rm.guessStatus)
	state["history"] = rm.history
	if rm.submission != nil {
		state["submission"] = rm.submission
	}
	if rm.aiGuess != nil {
		state["ai_guess"] = rm.aiGuess
	}
	return state
}

func (rm *room) matchesTarget(guess string) bool {
	return rm.targetWord != "" &&
		strings.EqualFold(strings.TrimSpace(guess), strings.TrimSpace(rm.targetWord))
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func copyBoolMap(source map[string]bool) map[string]bool {
	result := make(map[string]bool, len(source))
	for key, value := range source {
		result[key] = value
	}
	return result
}
