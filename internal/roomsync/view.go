package roomsync

import (
	"time"

	"github.com/Liyulingyue/DrawSomethingAIPlatform-sub000/internal/normalize"
)

// RoomView is the merged, derived view handed to consumers. It has no
// identity of its own: every successful refresh rebuilds it wholesale from
// the three sub-resources, so it can never drift into a partially-updated
// state. Drawing-state fields shadow room-summary fields because the drawing
// endpoint is the fresher, more specific source once a round is running.
type RoomView struct {
	Players       []string
	Owner         *string
	Status        string
	ReadyStatus   map[string]bool
	CurrentDrawer *string
	CurrentRound  int
	Snapshots     map[string]normalize.PlayerSnapshot

	TargetWord  *string
	Clue        *string
	Submission  *normalize.Submission
	AIGuess     *normalize.GuessResult
	History     []normalize.HistoryEntry
	GuessStatus map[string]bool

	Chat          []normalize.ChatMessage
	LastRefreshAt time.Time
}

// mergeView recomputes the combined view. When both sub-resources are
// present the drawing state wins on shared fields, except that an empty
// drawing-side readiness map falls back to the room summary's.
func mergeView(room *normalize.RoomSummary, drawing *normalize.DrawingState, chat []normalize.ChatMessage, refreshedAt time.Time) RoomView {
	view := RoomView{
		Status:        normalize.StatusWaiting,
		Players:       []string{},
		ReadyStatus:   map[string]bool{},
		Snapshots:     map[string]normalize.PlayerSnapshot{},
		GuessStatus:   map[string]bool{},
		History:       []normalize.HistoryEntry{},
		Chat:          chat,
		LastRefreshAt: refreshedAt,
	}

	if room != nil {
		view.Players = room.Players
		view.Owner = room.Owner
		view.Status = room.Status
		view.ReadyStatus = room.ReadyStatus
		view.CurrentDrawer = room.CurrentDrawer
		view.CurrentRound = room.CurrentRound
		view.Snapshots = room.Snapshots
	}

	if drawing != nil {
		view.Players = drawing.Players
		view.Owner = drawing.Owner
		view.Status = drawing.Status
		view.CurrentDrawer = drawing.CurrentDrawer
		view.CurrentRound = drawing.CurrentRound
		view.Snapshots = drawing.Snapshots
		view.TargetWord = drawing.TargetWord
		view.Clue = drawing.Clue
		view.Submission = drawing.Submission
		view.AIGuess = drawing.AIGuess
		view.History = drawing.History
		view.GuessStatus = drawing.GuessStatus

		if len(drawing.ReadyStatus) > 0 || room == nil {
			view.ReadyStatus = drawing.ReadyStatus
		}
	}

	return view
}

// cloneView deep-copies the view so consumers can never reach back into
// engine-owned state through a shared map or slice.
func cloneView(view RoomView) RoomView {
	copied := view
	copied.Players = append([]string(nil), view.Players...)
	copied.ReadyStatus = cloneBoolMap(view.ReadyStatus)
	copied.GuessStatus = cloneBoolMap(view.GuessStatus)
	copied.Owner = cloneString(view.Owner)
	copied.CurrentDrawer = cloneString(view.CurrentDrawer)
	copied.TargetWord = cloneString(view.TargetWord)
	copied.Clue = cloneString(view.Clue)

	copied.Snapshots = make(map[string]normalize.PlayerSnapshot, len(view.Snapshots))
	for key, snapshot := range view.Snapshots {
		copied.Snapshots[key] = snapshot
	}

	if view.Submission != nil {
		submission := *view.Submission
		copied.Submission = &submission
	}
	copied.AIGuess = cloneGuess(view.AIGuess)

	copied.History = make([]normalize.HistoryEntry, len(view.History))
	for index, entry := range view.History {
		cloned := entry
		cloned.TargetWord = cloneString(entry.TargetWord)
		cloned.Drawer = cloneString(entry.Drawer)
		cloned.Guess = cloneGuess(entry.Guess)
		cloned.HumanGuesses = append([]normalize.HumanGuess(nil), entry.HumanGuesses...)
		cloned.CorrectGuessers = append([]string(nil), entry.CorrectGuessers...)
		copied.History[index] = cloned
	}

	copied.Chat = append([]normalize.ChatMessage(nil), view.Chat...)
	return copied
}

func cloneGuess(guess *normalize.GuessResult) *normalize.GuessResult {
	if guess == nil {
		return nil
	}
	cloned := normalize.GuessResult{
		BestGuess:    cloneString(guess.BestGuess),
		Alternatives: append([]string(nil), guess.Alternatives...),
		MatchedWith:  cloneString(guess.MatchedWith),
		Rationale:    cloneString(guess.Rationale),
		Error:        cloneString(guess.Error),
	}
	if guess.Matched != nil {
		matched := *guess.Matched
		cloned.Matched = &matched
	}
	return &cloned
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func cloneBoolMap(source map[string]bool) map[string]bool {
	result := make(map[string]bool, len(source))
	for key, value := range source {
		result[key] = value
	}
	return result
}
