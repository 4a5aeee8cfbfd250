// Package normalize converts raw, partially-shaped backend payloads into the
// strongly-typed records the sync engine works with. Every function in this
// package is total: malformed or missing input degrades to documented
// defaults, never to a panic or a half-filled record. This is the single
// place that absorbs backend schema drift.
package normalize

import "strings"

// GuessResultFrom normalizes one AI guess payload. Non-object input yields
// nil. When the backend sends both a best guess and an error both are kept;
// the caller decides which to show.
func GuessResultFrom(raw any) *GuessResult {
	obj := asObject(raw)
	if obj == nil {
		return nil
	}

	bestGuessRaw, _ := firstPresent(obj, "best_guess", "bestGuess", "guess")
	matchedWithRaw, _ := firstPresent(obj, "matched_with", "matchedWith")
	alternativesRaw, _ := firstPresent(obj, "alternatives", "alternative_guesses")
	rationaleRaw, _ := firstPresent(obj, "rationale", "reason")

	return &GuessResult{
		BestGuess:    stringOrNil(bestGuessRaw),
		Alternatives: stringList(alternativesRaw),
		Matched:      boolOrNil(obj["matched"]),
		MatchedWith:  stringOrNil(matchedWithRaw),
		Rationale:    stringOrNil(rationaleRaw),
		Error:        stringOrNil(obj["error"]),
	}
}

// EntrySuccess resolves the success flag for a round. An explicit boolean
// "success" always wins; when absent it is derived from "matched" being
// exactly true. Anything else is false. This is the one documented precedence
// rule for the historically inconsistent success/matched pair.
func EntrySuccess(obj map[string]any) bool {
	if explicit, ok := obj["success"].(bool); ok {
		return explicit
	}
	guessObj := asObject(obj["guess"])
	if guessObj == nil {
		guessObj = asObject(obj["ai_guess"])
	}
	if guessObj != nil {
		if matched, ok := guessObj["matched"].(bool); ok {
			return matched
		}
	}
	if matched, ok := obj["matched"].(bool); ok {
		return matched
	}
	return false
}

// HistoryEntryFrom normalizes a single round record. The second return value
// reports whether the element passed minimum-shape validation (a positive
// round number); callers drop failing elements instead of aborting.
func HistoryEntryFrom(raw any) (HistoryEntry, bool) {
	obj := asObject(raw)
	if obj == nil {
		return HistoryEntry{}, false
	}

	round := intOrDefault(obj["round"], 0)
	if round <= 0 {
		return HistoryEntry{}, false
	}

	guessRaw, _ := firstPresent(obj, "guess", "ai_guess")
	targetRaw, _ := firstPresent(obj, "target_word", "word")
	submittedRaw, _ := firstPresent(obj, "submitted_at", "timestamp")
	guessersRaw, _ := firstPresent(obj, "correct_guessers", "correct_players")

	return HistoryEntry{
		Round:           round,
		TargetWord:      stringOrNil(targetRaw),
		Drawer:          stringOrNil(obj["drawer"]),
		SubmittedAt:     timestampOrZero(submittedRaw),
		Guess:           GuessResultFrom(guessRaw),
		Success:         EntrySuccess(obj),
		HumanGuesses:    humanGuessesFrom(obj["guesses"]),
		CorrectGuessers: stringList(guessersRaw),
	}, true
}

// HistoryFrom normalizes the round history list, silently dropping elements
// that fail minimum-shape validation.
func HistoryFrom(raw any) []HistoryEntry {
	list := asList(raw)
	result := make([]HistoryEntry, 0, len(list))
	for _, element := range list {
		entry, ok := HistoryEntryFrom(element)
		if !ok {
			continue
		}
		result = append(result, entry)
	}
	return result
}

func humanGuessesFrom(raw any) []HumanGuess {
	list := asList(raw)
	result := make([]HumanGuess, 0, len(list))
	for _, element := range list {
		obj := asObject(element)
		if obj == nil {
			continue
		}
		playerRaw, _ := firstPresent(obj, "player", "username")
		player := strings.TrimSpace(stringOrEmpty(playerRaw))
		if player == "" {
			continue
		}
		textRaw, _ := firstPresent(obj, "text", "guess")
		result = append(result, HumanGuess{
			Player:    player,
			Text:      stringOrEmpty(textRaw),
			Correct:   boolOrDefault(obj["correct"], false),
			Timestamp: timestampOrZero(obj["timestamp"]),
		})
	}
	return result
}

// PlayerSnapshotFrom normalizes one per-player snapshot. Elements without an
// identity fail minimum-shape validation and are dropped by the caller.
func PlayerSnapshotFrom(raw any) (PlayerSnapshot, bool) {
	obj := asObject(raw)
	if obj == nil {
		return PlayerSnapshot{}, false
	}
	identityRaw, _ := firstPresent(obj, "username", "identity", "name")
	identity := strings.TrimSpace(stringOrEmpty(identityRaw))
	if identity == "" {
		return PlayerSnapshot{}, false
	}
	return PlayerSnapshot{
		Identity: identity,
		Ready:    boolOrDefault(obj["ready"], false),
		Score:    intOrDefault(obj["score"], 0),
		Guessed:  boolOrDefault(obj["guessed"], false),
	}, true
}

// PlayerSnapshotsFrom normalizes the identity -> snapshot map. Both object
// and list shapes are accepted since the backend has shipped both.
func PlayerSnapshotsFrom(raw any) map[string]PlayerSnapshot {
	result := map[string]PlayerSnapshot{}
	if obj := asObject(raw); obj != nil {
		for key, element := range obj {
			snapshot, ok := PlayerSnapshotFrom(element)
			if !ok {
				// fall back to the map key as identity when the element
				// itself carries none
				inner := asObject(element)
				if inner == nil || strings.TrimSpace(key) == "" {
					continue
				}
				snapshot = PlayerSnapshot{
					Identity: key,
					Ready:    boolOrDefault(inner["ready"], false),
					Score:    intOrDefault(inner["score"], 0),
					Guessed:  boolOrDefault(inner["guessed"], false),
				}
			}
			result[snapshot.Identity] = snapshot
		}
		return result
	}
	for _, element := range asList(raw) {
		snapshot, ok := PlayerSnapshotFrom(element)
		if !ok {
			continue
		}
		result[snapshot.Identity] = snapshot
	}
	return result
}

// ChatMessagesFrom normalizes the transcript, dropping entries without an
// identity. Server ordering is preserved.
func ChatMessagesFrom(raw any) []ChatMessage {
	list := asList(raw)
	result := make([]ChatMessage, 0, len(list))
	for _, element := range list {
		obj := asObject(element)
		if obj == nil {
			continue
		}
		identityRaw, _ := firstPresent(obj, "username", "identity", "player")
		identity := strings.TrimSpace(stringOrEmpty(identityRaw))
		if identity == "" {
			continue
		}
		textRaw, _ := firstPresent(obj, "text", "message")
		result = append(result, ChatMessage{
			Identity:  identity,
			Text:      stringOrEmpty(textRaw),
			Timestamp: timestampOrZero(obj["timestamp"]),
		})
	}
	return result
}

// RoomSummaryFrom normalizes the room endpoint payload. Non-object input
// yields nil so the engine can keep its previous copy.
func RoomSummaryFrom(raw any) *RoomSummary {
	obj := asObject(raw)
	if obj == nil {
		return nil
	}
	readyRaw, _ := firstPresent(obj, "ready_status", "readyStatus")
	drawerRaw, _ := firstPresent(obj, "current_drawer", "drawer")
	roundRaw, _ := firstPresent(obj, "current_round", "round")
	snapshotsRaw, _ := firstPresent(obj, "player_snapshots", "players_info")

	return &RoomSummary{
		Players:       stringList(obj["players"]),
		Owner:         stringOrNil(obj["owner"]),
		Status:        statusFrom(obj["status"]),
		ReadyStatus:   boolMap(readyRaw),
		CurrentDrawer: stringOrNil(drawerRaw),
		CurrentRound:  intOrDefault(roundRaw, 0),
		Snapshots:     PlayerSnapshotsFrom(snapshotsRaw),
	}
}

// DrawingStateFrom normalizes the drawing endpoint payload, a superset of the
// room summary.
func DrawingStateFrom(raw any) *DrawingState {
	obj := asObject(raw)
	if obj == nil {
		return nil
	}
	readyRaw, _ := firstPresent(obj, "ready_status", "readyStatus")
	drawerRaw, _ := firstPresent(obj, "current_drawer", "drawer")
	roundRaw, _ := firstPresent(obj, "current_round", "round")
	snapshotsRaw, _ := firstPresent(obj, "player_snapshots", "players_info")
	targetRaw, _ := firstPresent(obj, "target_word", "word")
	guessRaw, _ := firstPresent(obj, "ai_guess", "guess_result")
	guessStatusRaw, _ := firstPresent(obj, "guess_status", "guessStatus")

	return &DrawingState{
		Players:       stringList(obj["players"]),
		Owner:         stringOrNil(obj["owner"]),
		Status:        statusFrom(obj["status"]),
		ReadyStatus:   boolMap(readyRaw),
		CurrentDrawer: stringOrNil(drawerRaw),
		CurrentRound:  intOrDefault(roundRaw, 0),
		Snapshots:     PlayerSnapshotsFrom(snapshotsRaw),
		TargetWord:    stringOrNil(targetRaw),
		Clue:          stringOrNil(obj["clue"]),
		Submission:    submissionFrom(obj["submission"]),
		AIGuess:       GuessResultFrom(guessRaw),
		History:       HistoryFrom(obj["history"]),
		GuessStatus:   boolMap(guessStatusRaw),
	}
}

func submissionFrom(raw any) *Submission {
	obj := asObject(raw)
	if obj == nil {
		return nil
	}
	imageRaw, _ := firstPresent(obj, "image", "data")
	image := stringOrEmpty(imageRaw)
	if image == "" {
		return nil
	}
	submitterRaw, _ := firstPresent(obj, "submitter", "username")
	submittedRaw, _ := firstPresent(obj, "submitted_at", "timestamp")
	return &Submission{
		Image:       image,
		Submitter:   stringOrEmpty(submitterRaw),
		SubmittedAt: timestampOrZero(submittedRaw),
	}
}

func statusFrom(raw any) string {
	status := strings.TrimSpace(stringOrEmpty(raw))
	if status == "" {
		return StatusWaiting
	}
	return status
}
