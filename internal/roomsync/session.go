// Package roomsync keeps a client's view of a shared, server-authoritative
// game room consistent over a lossy, poll-based transport. A Session fetches
// the three room sub-resources concurrently, normalizes them, and replaces
// its merged view wholesale each cycle; mutating actions run under exclusive
// per-action locks and always trigger exactly one follow-up refresh.
//
// Staleness of up to one poll interval is an accepted property of the
// transport, not a defect: there is no push channel.
package roomsync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Liyulingyue/DrawSomethingAIPlatform-sub000/internal/gameapi"
	"github.com/Liyulingyue/DrawSomethingAIPlatform-sub000/internal/normalize"
)

const defaultPollInterval = 4 * time.Second

var noOpLogger = zap.NewNop()

// GameClient is the slice of the backend client the session depends on.
type GameClient interface {
	FetchRoom(ctx context.Context, roomID string) (any, error)
	FetchDrawingState(ctx context.Context, roomID string) (any, error)
	FetchChatMessages(ctx context.Context, roomID string) (any, error)

	SetReady(ctx context.Context, roomID, identity string, ready bool) (gameapi.Envelope, error)
	ConfigureRound(ctx context.Context, roomID, identity, targetWord, clue string) (gameapi.Envelope, error)
	SelectDrawer(ctx context.Context, roomID, identity, drawer string) (gameapi.Envelope, error)
	StartRound(ctx context.Context, roomID, identity string) (gameapi.Envelope, error)
	ResetRound(ctx context.Context, roomID, identity string) (gameapi.Envelope, error)
	SubmitDrawing(ctx context.Context, roomID, identity, image string) (gameapi.Envelope, error)
	SendMessage(ctx context.Context, roomID, identity, text string) (gameapi.MessageResponse, error)
	LeaveRoom(ctx context.Context, roomID, identity string) (gameapi.Envelope, error)
	Guess(ctx context.Context, roomID, identity, text string) (gameapi.GuessResponse, error)
	SkipGuess(ctx context.Context, roomID, identity string) (gameapi.Envelope, error)
	RequestAIGuess(ctx context.Context, roomID, identity, image string) (gameapi.Envelope, error)
	SetModelConfig(ctx context.Context, roomID, identity string, config map[string]any) (gameapi.Envelope, error)
	SyncPreview(ctx context.Context, roomID, identity, image string) (gameapi.Envelope, error)
}

// IdentityResolver produces the player identity when none was configured,
// typically via the backend's auto-login endpoint.
type IdentityResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// SessionConfig wires a Session's dependencies. Identity may be empty when a
// Resolver is provided; PollInterval defaults to four seconds.
type SessionConfig struct {
	Client       GameClient
	RoomID       string
	Identity     string
	Resolver     IdentityResolver
	PollInterval time.Duration
	Clock        func() time.Time
	Notifier     Notifier
	Logger       *zap.Logger
}

// Session owns the polling lifecycle and merged view for one room.
type Session struct {
	client   GameClient
	roomID   string
	resolver IdentityResolver
	interval time.Duration
	clock    func() time.Time
	notifier Notifier
	logger   *zap.Logger

	mu          sync.RWMutex
	identity    string
	lastRoom    *normalize.RoomSummary
	lastDrawing *normalize.DrawingState
	lastChat    []normalize.ChatMessage
	view        RoomView
	failing     map[string]bool

	lockMu sync.Mutex
	locks  map[Action]bool

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool
	done        chan struct{}
	loopDone    chan struct{}
}

// NewSession validates configuration and constructs a Session. The session
// does nothing until Start; actions may also be used without polling when
// the caller manages refreshes itself.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Client == nil {
		return nil, newSessionError(opSessionNew, "missing_client", errMissingClient)
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &Session{
		client:   cfg.Client,
		roomID:   cfg.RoomID,
		resolver: cfg.Resolver,
		interval: interval,
		clock:    clock,
		notifier: notifier,
		logger:   logger,
		identity: cfg.Identity,
		lastChat: []normalize.ChatMessage{},
		view:     mergeView(nil, nil, []normalize.ChatMessage{}, time.Time{}),
		failing:  map[string]bool{},
		locks:    map[Action]bool{},
	}, nil
}

// Start resolves the identity if needed, performs the initial refresh and
// begins polling. Identity-resolution failure is fatal: no polling begins.
// Initial refresh failure is not fatal; the next tick retries.
func (s *Session) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	if s.stopped {
		s.lifecycleMu.Unlock()
		return newSessionError(opSessionStart, "session_closed", ErrSessionClosed)
	}
	if s.started {
		s.lifecycleMu.Unlock()
		return nil
	}
	s.lifecycleMu.Unlock()

	// identity resolution may hit the network, so it runs outside the
	// lifecycle lock
	if s.Identity() == "" {
		if s.resolver == nil {
			return newSessionError(opSessionStart, "missing_identity", ErrMissingIdentity)
		}
		identity, err := s.resolver.Resolve(ctx)
		if err != nil {
			s.logError(opSessionStart, "identity_resolution_failed", err)
			return newSessionError(opSessionStart, "identity_resolution_failed", err)
		}
		s.mu.Lock()
		s.identity = identity
		s.mu.Unlock()
	}

	if s.roomID == "" {
		return newSessionError(opSessionStart, "missing_room", ErrMissingRoom)
	}

	s.lifecycleMu.Lock()
	if s.stopped {
		s.lifecycleMu.Unlock()
		return newSessionError(opSessionStart, "session_closed", ErrSessionClosed)
	}
	if s.started {
		s.lifecycleMu.Unlock()
		return nil
	}
	s.started = true
	s.done = make(chan struct{})
	s.loopDone = make(chan struct{})
	done := s.done
	s.lifecycleMu.Unlock()

	s.refresh(ctx)

	go s.pollLoop(ctx, done)

	s.logger.Info("room sync started",
		zap.String("room_id", s.roomID),
		zap.String("identity", s.Identity()),
		zap.Duration("interval", s.interval))
	return nil
}

// Stop halts polling. It is idempotent and safe to call before Start or
// concurrently from multiple goroutines; in-flight work observes the closed
// session and discards its result instead of writing to a torn-down view.
func (s *Session) Stop() {
	s.lifecycleMu.Lock()
	if s.stopped {
		s.lifecycleMu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	done := s.done
	loopDone := s.loopDone
	s.lifecycleMu.Unlock()

	if !started {
		return
	}
	close(done)
	<-loopDone
	s.logger.Info("room sync stopped", zap.String("room_id", s.roomID))
}

// RefreshNow forces an immediate refresh outside the polling cadence, e.g.
// right after an action settles.
func (s *Session) RefreshNow(ctx context.Context) {
	if s.closed() {
		return
	}
	s.refresh(ctx)
}

// View returns a deep-copied snapshot of the merged view.
func (s *Session) View() RoomView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneView(s.view)
}

// Identity returns the resolved player identity, empty before resolution.
func (s *Session) Identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// RoomID returns the room this session synchronizes.
func (s *Session) RoomID() string {
	return s.roomID
}

func (s *Session) pollLoop(ctx context.Context, done <-chan struct{}) {
	defer close(s.loopDone)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

type fetchOutcome struct {
	raw any
	err error
}

// refresh fetches the three sub-resources concurrently, waits for all of
// them to settle, then applies whatever succeeded in one atomic view swap. A
// failed sub-resource keeps its last good value; its failure is surfaced
// once per outage, not once per tick.
func (s *Session) refresh(ctx context.Context) {
	roomID := s.roomID

	var room, drawing, chat fetchOutcome
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		room.raw, room.err = s.client.FetchRoom(ctx, roomID)
	}()
	go func() {
		defer wg.Done()
		drawing.raw, drawing.err = s.client.FetchDrawingState(ctx, roomID)
	}()
	go func() {
		defer wg.Done()
		chat.raw, chat.err = s.client.FetchChatMessages(ctx, roomID)
	}()
	wg.Wait()

	if s.closed() || ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	if room.err == nil {
		s.lastRoom = normalize.RoomSummaryFrom(room.raw)
	}
	if drawing.err == nil {
		s.lastDrawing = normalize.DrawingStateFrom(drawing.raw)
	}
	if chat.err == nil {
		s.lastChat = normalize.ChatMessagesFrom(chat.raw)
	}
	s.view = mergeView(s.lastRoom, s.lastDrawing, s.lastChat, s.clock())
	s.mu.Unlock()

	s.reportFetch("room", room.err)
	s.reportFetch("drawing state", drawing.err)
	s.reportFetch("chat", chat.err)
}

// reportFetch notifies on a sub-resource failure only when it is newly
// appearing, so a prolonged outage does not spam a notification every tick.
func (s *Session) reportFetch(resource string, err error) {
	s.mu.Lock()
	wasFailing := s.failing[resource]
	s.failing[resource] = err != nil
	s.mu.Unlock()

	if err == nil {
		return
	}
	s.logError(opRefresh, "fetch_failed", err, zap.String("resource", resource))
	if !wasFailing {
		s.notifier.Notify(LevelError, "failed to refresh "+resource+": "+err.Error())
	}
}

func (s *Session) closed() bool {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	return s.stopped
}

func (s *Session) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("room sync error", attrs...)
}
