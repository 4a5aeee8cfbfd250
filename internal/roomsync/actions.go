package roomsync

import (
	"context"

	"github.com/Liyulingyue/DrawSomethingAIPlatform-sub000/internal/gameapi"
	"github.com/Liyulingyue/DrawSomethingAIPlatform-sub000/internal/normalize"
)

// Action names one mutating operation. Each action owns an exclusive lock in
// the session's lock map; the lock is held strictly between invocation and
// settlement and cleared on every exit path.
type Action string

const (
	ActionSetReady       Action = "set_ready"
	ActionConfigureRound Action = "configure_round"
	ActionSelectDrawer   Action = "select_drawer"
	ActionStartRound     Action = "start_round"
	ActionResetRound     Action = "reset_round"
	ActionSubmitDrawing  Action = "submit_drawing"
	ActionSendMessage    Action = "send_message"
	ActionLeaveRoom      Action = "leave_room"
	ActionGuess          Action = "guess"
	ActionSkipGuess      Action = "skip_guess"
	ActionAIGuess        Action = "ai_guess"
	ActionSetModelConfig Action = "set_model_config"
	ActionSyncPreview    Action = "sync_preview"
)

// Locked reports whether the given action's exclusive lock is currently
// held. UI code uses this to disable the triggering control.
func (s *Session) Locked(action Action) bool {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	return s.locks[action]
}

// Locks returns a copy of the full lock map.
func (s *Session) Locks() map[Action]bool {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	result := make(map[Action]bool, len(s.locks))
	for action, held := range s.locks {
		result[action] = held
	}
	return result
}

func (s *Session) acquire(action Action) bool {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if s.locks[action] {
		return false
	}
	s.locks[action] = true
	return true
}

func (s *Session) release(action Action) {
	s.lockMu.Lock()
	delete(s.locks, action)
	s.lockMu.Unlock()
}

// runAction applies the uniform action contract: precondition short-circuit,
// exclusive lock, mutation, notification, then exactly one refresh whether
// the mutation succeeded or failed. The lock release and the refresh are
// deferred so they run on every exit path.
func (s *Session) runAction(ctx context.Context, action Action, successMessage string, call func(ctx context.Context) (gameapi.Envelope, error)) error {
	identity := s.Identity()
	if identity == "" {
		s.notifier.Notify(LevelWarning, "no identity resolved, please log in first")
		return ErrMissingIdentity
	}
	if s.roomID == "" {
		s.notifier.Notify(LevelWarning, "no room joined")
		return ErrMissingRoom
	}

	if !s.acquire(action) {
		return ErrActionInFlight
	}
	defer s.release(action)
	defer s.RefreshNow(ctx)

	envelope, err := call(ctx)
	if err != nil {
		s.logError("roomsync.action."+string(action), "request_failed", err)
		s.notifier.Notify(LevelError, failureMessage(action, err.Error()))
		return err
	}
	if !envelope.Success {
		message := envelope.Message
		if message == "" {
			message = failureMessage(action, "request rejected")
		}
		s.notifier.Notify(LevelError, message)
		return &gameapi.APIError{Message: envelope.Message}
	}

	message := envelope.Message
	if message == "" {
		message = successMessage
	}
	s.notifier.Notify(LevelSuccess, message)
	return nil
}

func failureMessage(action Action, detail string) string {
	return string(action) + " failed: " + detail
}

// SetReady toggles the caller's readiness flag.
func (s *Session) SetReady(ctx context.Context, ready bool) error {
	return s.runAction(ctx, ActionSetReady, "ready status updated", func(ctx context.Context) (gameapi.Envelope, error) {
		return s.client.SetReady(ctx, s.roomID, s.Identity(), ready)
	})
}

// ConfigureRound sets the target word and optional clue for the next round.
func (s *Session) ConfigureRound(ctx context.Context, targetWord, clue string) error {
	return s.runAction(ctx, ActionConfigureRound, "round configured", func(ctx context.Context) (gameapi.Envelope, error) {
		return s.client.ConfigureRound(ctx, s.roomID, s.Identity(), targetWord, clue)
	})
}

// SelectDrawer assigns the drawer for the next round.
func (s *Session) SelectDrawer(ctx context.Context, drawer string) error {
	return s.runAction(ctx, ActionSelectDrawer, "drawer selected", func(ctx context.Context) (gameapi.Envelope, error) {
		return s.client.SelectDrawer(ctx, s.roomID, s.Identity(), drawer)
	})
}

// StartRound requests the round start from the server.
func (s *Session) StartRound(ctx context.Context) error {
	return s.runAction(ctx, ActionStartRound, "round started", func(ctx context.Context) (gameapi.Envelope, error) {
		return s.client.StartRound(ctx, s.roomID, s.Identity())
	})
}

// ResetRound requests a host-triggered reset.
func (s *Session) ResetRound(ctx context.Context) error {
	return s.runAction(ctx, ActionResetRound, "round reset", func(ctx context.Context) (gameapi.Envelope, error) {
		return s.client.ResetRound(ctx, s.roomID, s.Identity())
	})
}

// SubmitDrawing uploads the finished drawing for the active round.
func (s *Session) SubmitDrawing(ctx context.Context, image string) error {
	return s.runAction(ctx, ActionSubmitDrawing, "drawing submitted", func(ctx context.Context) (gameapi.Envelope, error) {
		return s.client.SubmitDrawing(ctx, s.roomID, s.Identity(), image)
	})
}

// SendMessage appends a chat message. The returned transcript, when present,
// is applied immediately so the sender sees their own message before the
// next poll.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	return s.runAction(ctx, ActionSendMessage, "message sent", func(ctx context.Context) (gameapi.Envelope, error) {
		response, err := s.client.SendMessage(ctx, s.roomID, s.Identity(), text)
		if err != nil {
			return gameapi.Envelope{}, err
		}
		if response.Success && response.Messages != nil {
			s.applyChat(normalize.ChatMessagesFrom(response.Messages))
		}
		return response.Envelope, nil
	})
}

// LeaveRoom removes the caller from the room and stops polling.
func (s *Session) LeaveRoom(ctx context.Context) error {
	err := s.runAction(ctx, ActionLeaveRoom, "left room", func(ctx context.Context) (gameapi.Envelope, error) {
		return s.client.LeaveRoom(ctx, s.roomID, s.Identity())
	})
	if err == nil {
		s.Stop()
	}
	return err
}

// Guess submits a human guess and returns the server's verdict.
func (s *Session) Guess(ctx context.Context, text string) (gameapi.GuessResponse, error) {
	var response gameapi.GuessResponse
	err := s.runAction(ctx, ActionGuess, "guess submitted", func(ctx context.Context) (gameapi.Envelope, error) {
		var callErr error
		response, callErr = s.client.Guess(ctx, s.roomID, s.Identity(), text)
		return response.Envelope, callErr
	})
	return response, err
}

// SkipGuess withdraws the caller from guessing this round.
func (s *Session) SkipGuess(ctx context.Context) error {
	return s.runAction(ctx, ActionSkipGuess, "guess skipped", func(ctx context.Context) (gameapi.Envelope, error) {
		return s.client.SkipGuess(ctx, s.roomID, s.Identity())
	})
}

// RequestAIGuess asks the backend to run the AI guess over the current
// drawing, or over the provided image when non-empty.
func (s *Session) RequestAIGuess(ctx context.Context, image string) error {
	return s.runAction(ctx, ActionAIGuess, "AI guess requested", func(ctx context.Context) (gameapi.Envelope, error) {
		return s.client.RequestAIGuess(ctx, s.roomID, s.Identity(), image)
	})
}

// SetModelConfig updates the AI model configuration for the room.
func (s *Session) SetModelConfig(ctx context.Context, config map[string]any) error {
	return s.runAction(ctx, ActionSetModelConfig, "model config updated", func(ctx context.Context) (gameapi.Envelope, error) {
		return s.client.SetModelConfig(ctx, s.roomID, s.Identity(), config)
	})
}

// SyncPreview pushes the drawer's in-progress canvas to the server.
func (s *Session) SyncPreview(ctx context.Context, image string) error {
	return s.runAction(ctx, ActionSyncPreview, "preview synced", func(ctx context.Context) (gameapi.Envelope, error) {
		return s.client.SyncPreview(ctx, s.roomID, s.Identity(), image)
	})
}

func (s *Session) applyChat(messages []normalize.ChatMessage) {
	if s.closed() {
		return
	}
	s.mu.Lock()
	s.lastChat = messages
	s.view = mergeView(s.lastRoom, s.lastDrawing, s.lastChat, s.clock())
	s.mu.Unlock()
}
