package normalize

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, payload string) any {
	t.Helper()
	var value any
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		t.Fatalf("failed to decode fixture: %v", err)
	}
	return value
}

func TestGuessResultFromRejectsNonObjects(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{name: "nil", raw: nil},
		{name: "string", raw: "cat"},
		{name: "number", raw: float64(42)},
		{name: "list", raw: []any{"cat"}},
		{name: "bool", raw: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := GuessResultFrom(tt.raw); result != nil {
				t.Fatalf("expected nil for %s input, got %#v", tt.name, result)
			}
		})
	}
}

func TestGuessResultFromCoercesFields(t *testing.T) {
	raw := decode(t, `{
		"best_guess": 42,
		"alternatives": ["cat", 7, null, ""],
		"matched": "yes",
		"matched_with": null,
		"rationale": "looks feline",
		"error": "model overloaded"
	}`)

	result := GuessResultFrom(raw)
	if result == nil {
		t.Fatalf("expected a result")
	}
	if result.BestGuess == nil || *result.BestGuess != "42" {
		t.Fatalf("expected stringified best guess, got %#v", result.BestGuess)
	}
	if len(result.Alternatives) != 2 || result.Alternatives[0] != "cat" || result.Alternatives[1] != "7" {
		t.Fatalf("unexpected alternatives %#v", result.Alternatives)
	}
	if result.Matched != nil {
		t.Fatalf("mistyped matched flag should stay unknown, got %#v", result.Matched)
	}
	if result.MatchedWith != nil {
		t.Fatalf("null matched_with should map to nil")
	}
	if result.Error == nil || *result.Error != "model overloaded" {
		t.Fatalf("unexpected error field %#v", result.Error)
	}
}

func TestGuessResultFromKeepsGuessAndErrorTogether(t *testing.T) {
	raw := decode(t, `{"best_guess": "cat", "error": "partial failure"}`)
	result := GuessResultFrom(raw)
	if result.BestGuess == nil || *result.BestGuess != "cat" {
		t.Fatalf("best guess should survive alongside error")
	}
	if result.Error == nil || *result.Error != "partial failure" {
		t.Fatalf("error should survive alongside best guess")
	}
}

func TestGuessResultFromWrapsScalarAlternatives(t *testing.T) {
	raw := decode(t, `{"alternatives": "dog"}`)
	result := GuessResultFrom(raw)
	if len(result.Alternatives) != 1 || result.Alternatives[0] != "dog" {
		t.Fatalf("scalar alternatives should wrap into one-element list, got %#v", result.Alternatives)
	}
}

func TestEntrySuccessPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{
			name:    "explicit-success-wins-over-matched",
			payload: `{"round": 1, "success": false, "guess": {"matched": true}}`,
			want:    false,
		},
		{
			name:    "derived-from-matched-when-absent",
			payload: `{"round": 1, "guess": {"matched": true}}`,
			want:    true,
		},
		{
			name:    "matched-false-derives-false",
			payload: `{"round": 1, "guess": {"matched": false}}`,
			want:    false,
		},
		{
			name:    "absent-both-defaults-false",
			payload: `{"round": 1}`,
			want:    false,
		},
		{
			name:    "mistyped-success-falls-back-to-matched",
			payload: `{"round": 1, "success": "yes", "guess": {"matched": true}}`,
			want:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := HistoryEntryFrom(decode(t, tt.payload))
			if !ok {
				t.Fatalf("entry should pass shape validation")
			}
			if entry.Success != tt.want {
				t.Fatalf("success = %v, want %v", entry.Success, tt.want)
			}
		})
	}
}

func TestHistoryFromDropsMalformedEntries(t *testing.T) {
	raw := decode(t, `[
		{"round": 1, "target_word": "apple", "drawer": "alice"},
		{"round": 0, "target_word": "dropped"},
		{"round": -3},
		"not an object",
		null,
		{"round": "2", "target_word": "pear"}
	]`)

	history := HistoryFrom(raw)
	if len(history) != 2 {
		t.Fatalf("expected 2 surviving entries, got %d", len(history))
	}
	if history[0].Round != 1 || history[1].Round != 2 {
		t.Fatalf("unexpected rounds %d, %d", history[0].Round, history[1].Round)
	}
	if history[0].TargetWord == nil || *history[0].TargetWord != "apple" {
		t.Fatalf("unexpected target word %#v", history[0].TargetWord)
	}
}

func TestHistoryFromNonListInput(t *testing.T) {
	for _, raw := range []any{nil, "history", map[string]any{"round": 1}} {
		history := HistoryFrom(raw)
		if history == nil || len(history) != 0 {
			t.Fatalf("non-list input should produce empty list, got %#v", history)
		}
	}
}

func TestHistoryEntryHumanGuesses(t *testing.T) {
	raw := decode(t, `{
		"round": 3,
		"guesses": [
			{"player": "bob", "text": "dog", "correct": false, "timestamp": 1700000001},
			{"text": "anonymous guess"},
			{"player": "carol", "text": "cat", "correct": true, "timestamp": "1700000002"}
		],
		"correct_guessers": ["carol"]
	}`)

	entry, ok := HistoryEntryFrom(raw)
	if !ok {
		t.Fatalf("entry should pass shape validation")
	}
	if len(entry.HumanGuesses) != 2 {
		t.Fatalf("guess without player should be dropped, got %d", len(entry.HumanGuesses))
	}
	if entry.HumanGuesses[1].Timestamp != 1700000002 {
		t.Fatalf("string timestamp should parse, got %d", entry.HumanGuesses[1].Timestamp)
	}
	if len(entry.CorrectGuessers) != 1 || entry.CorrectGuessers[0] != "carol" {
		t.Fatalf("unexpected correct guessers %#v", entry.CorrectGuessers)
	}
}

func TestPlayerSnapshotsFromObjectShape(t *testing.T) {
	raw := decode(t, `{
		"alice": {"username": "alice", "ready": true, "score": 3},
		"bob": {"ready": false},
		"": {"ready": true}
	}`)

	snapshots := PlayerSnapshotsFrom(raw)
	if len(snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snapshots))
	}
	if !snapshots["alice"].Ready || snapshots["alice"].Score != 3 {
		t.Fatalf("unexpected alice snapshot %#v", snapshots["alice"])
	}
	// bob's element has no identity of its own; the map key fills in
	if snapshots["bob"].Identity != "bob" {
		t.Fatalf("map key should backfill identity, got %#v", snapshots["bob"])
	}
}

func TestPlayerSnapshotsFromListShape(t *testing.T) {
	raw := decode(t, `[
		{"username": "alice", "ready": true},
		{"score": 9},
		"junk"
	]`)

	snapshots := PlayerSnapshotsFrom(raw)
	if len(snapshots) != 1 {
		t.Fatalf("elements without identity should drop, got %d", len(snapshots))
	}
	if _, ok := snapshots["alice"]; !ok {
		t.Fatalf("expected alice snapshot, got %#v", snapshots)
	}
}

func TestChatMessagesFromDropsAnonymous(t *testing.T) {
	raw := decode(t, `[
		{"username": "alice", "text": "hi", "timestamp": 1700000000},
		{"text": "no sender"},
		{"username": "bob", "message": "legacy key", "timestamp": 1700000001},
		42
	]`)

	messages := ChatMessagesFrom(raw)
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[1].Text != "legacy key" {
		t.Fatalf("legacy message key should be honored, got %q", messages[1].Text)
	}
}

func TestRoomSummaryFromDefaults(t *testing.T) {
	summary := RoomSummaryFrom(decode(t, `{}`))
	if summary == nil {
		t.Fatalf("empty object should normalize, not vanish")
	}
	if summary.Status != StatusWaiting {
		t.Fatalf("missing status should default to waiting, got %q", summary.Status)
	}
	if summary.Players == nil || len(summary.Players) != 0 {
		t.Fatalf("players should default to empty list, got %#v", summary.Players)
	}
	if summary.Owner != nil {
		t.Fatalf("missing owner should be nil")
	}
	if summary.ReadyStatus == nil {
		t.Fatalf("ready status should default to empty map")
	}
}

func TestRoomSummaryFromNonObject(t *testing.T) {
	if summary := RoomSummaryFrom("not a room"); summary != nil {
		t.Fatalf("non-object input should yield nil, got %#v", summary)
	}
}

func TestDrawingStateFromFullPayload(t *testing.T) {
	raw := decode(t, `{
		"players": ["alice", "bob"],
		"owner": "alice",
		"status": "drawing",
		"ready_status": {"alice": true, "bob": false},
		"current_drawer": "bob",
		"current_round": 2,
		"target_word": "apple",
		"clue": "a fruit",
		"submission": {"image": "data:image/png;base64,xyz", "submitter": "bob", "submitted_at": 1700000100},
		"ai_guess": {"best_guess": "apple", "matched": true},
		"history": [{"round": 1, "target_word": "pear", "success": true}],
		"guess_status": {"alice": true}
	}`)

	state := DrawingStateFrom(raw)
	if state == nil {
		t.Fatalf("expected a drawing state")
	}
	if state.Status != "drawing" {
		t.Fatalf("unexpected status %q", state.Status)
	}
	if state.TargetWord == nil || *state.TargetWord != "apple" {
		t.Fatalf("unexpected target word %#v", state.TargetWord)
	}
	if state.Submission == nil || state.Submission.Submitter != "bob" {
		t.Fatalf("unexpected submission %#v", state.Submission)
	}
	if state.AIGuess == nil || state.AIGuess.Matched == nil || !*state.AIGuess.Matched {
		t.Fatalf("unexpected ai guess %#v", state.AIGuess)
	}
	if len(state.History) != 1 || !state.History[0].Success {
		t.Fatalf("unexpected history %#v", state.History)
	}
}

func TestDrawingStateFromNeverPanicsOnGarbage(t *testing.T) {
	payloads := []string{
		`null`,
		`[]`,
		`"garbage"`,
		`{"players": {"not": "a list"}, "history": {"also": "wrong"}, "ready_status": [1,2,3]}`,
		`{"submission": "flat", "ai_guess": [], "current_round": {}}`,
	}
	for _, payload := range payloads {
		state := DrawingStateFrom(decode(t, payload))
		if payload == `null` || payload == `[]` || payload == `"garbage"` {
			if state != nil {
				t.Fatalf("non-object %s should yield nil", payload)
			}
			continue
		}
		if state == nil {
			t.Fatalf("object payload should normalize: %s", payload)
		}
		if state.Players == nil || state.History == nil || state.ReadyStatus == nil {
			t.Fatalf("collections should default to empty, got %#v", state)
		}
	}
}

func TestStringListCoercions(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want []string
	}{
		{name: "nil", raw: nil, want: []string{}},
		{name: "scalar-wraps", raw: "solo", want: []string{"solo"}},
		{name: "number-scalar", raw: float64(5), want: []string{"5"}},
		{name: "object", raw: map[string]any{"a": 1}, want: []string{}},
		{name: "mixed-list", raw: []any{"a", float64(1.5), nil, "", true}, want: []string{"a", "1.5", "true"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stringList(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("got %#v, want %#v", got, tt.want)
			}
			for index := range got {
				if got[index] != tt.want[index] {
					t.Fatalf("got %#v, want %#v", got, tt.want)
				}
			}
		})
	}
}
