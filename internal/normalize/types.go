package normalize

// GuessResult captures one AI evaluation of a submitted drawing. Every field
// except Alternatives is nullable because the backend omits whichever side of
// the guess/error pair did not apply; both are preserved when both arrive.
type GuessResult struct {
	BestGuess    *string
	Alternatives []string
	Matched      *bool
	MatchedWith  *string
	Rationale    *string
	Error        *string
}

// HumanGuess records a single player guess against the active drawing.
type HumanGuess struct {
	Player    string
	Text      string
	Correct   bool
	Timestamp int64
}

// HistoryEntry is one completed round as reported by the backend. Entries are
// append-only on the server; the client never mutates them locally.
type HistoryEntry struct {
	Round           int
	TargetWord      *string
	Drawer          *string
	SubmittedAt     int64
	Guess           *GuessResult
	Success         bool
	HumanGuesses    []HumanGuess
	CorrectGuessers []string
}

// PlayerSnapshot is the per-player slice of room state keyed by identity.
type PlayerSnapshot struct {
	Identity string
	Ready    bool
	Score    int
	Guessed  bool
}

// ChatMessage is one transcript entry, server-ordered.
type ChatMessage struct {
	Identity  string
	Text      string
	Timestamp int64
}

// Submission is an in-progress drawing upload attached to the drawing state.
type Submission struct {
	Image       string
	Submitter   string
	SubmittedAt int64
}

// RoomSummary is the lightweight room record returned by the room endpoint.
type RoomSummary struct {
	Players       []string
	Owner         *string
	Status        string
	ReadyStatus   map[string]bool
	CurrentDrawer *string
	CurrentRound  int
	Snapshots     map[string]PlayerSnapshot
}

// DrawingState is the superset record returned by the drawing-state endpoint.
// Shared fields intentionally mirror RoomSummary so the merged view can let
// drawing-state values shadow the room summary once a round is running.
type DrawingState struct {
	Players       []string
	Owner         *string
	Status        string
	ReadyStatus   map[string]bool
	CurrentDrawer *string
	CurrentRound  int
	Snapshots     map[string]PlayerSnapshot
	TargetWord    *string
	Clue          *string
	Submission    *Submission
	AIGuess       *GuessResult
	History       []HistoryEntry
	GuessStatus   map[string]bool
}

// StatusWaiting is the defaulted game status when the backend omits one.
const StatusWaiting = "waiting"
