// Package devserver is an in-memory stand-in for the game backend. It
// implements the same HTTP surface the sync engine polls and mutates, so the
// client can be developed and integration-tested without the real platform.
// Rooms live only as long as the process.
package devserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Liyulingyue/DrawSomethingAIPlatform-sub000/internal/auth"
)

const identityContextKey = "drawsync_identity"

var (
	errMissingTokenIssuer = errors.New("token issuer dependency required")
)

// Dependencies wires the dev server's collaborators.
type Dependencies struct {
	Tokens *auth.TokenIssuer
	Clock  func() time.Time
	Logger *zap.Logger
}

// NewHTTPHandler builds the gin handler exposing the full endpoint surface.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Tokens == nil {
		return nil, errMissingTokenIssuer
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens: deps.Tokens,
		rooms:  newRoomRegistry(clock),
		clock:  clock,
		logger: logger,
	}

	router.POST("/api/user/auto-login", handler.handleAutoLogin)

	protected := router.Group("/api")
	protected.Use(handler.authorizeRequest)
	protected.GET("/rooms/:roomID", handler.handleFetchRoom)
	protected.GET("/rooms/:roomID/drawing", handler.handleFetchDrawing)
	protected.GET("/rooms/:roomID/messages", handler.handleFetchMessages)
	protected.POST("/rooms/:roomID/ready", handler.handleSetReady)
	protected.POST("/rooms/:roomID/round", handler.handleConfigureRound)
	protected.POST("/rooms/:roomID/drawer", handler.handleSelectDrawer)
	protected.POST("/rooms/:roomID/start", handler.handleStartRound)
	protected.POST("/rooms/:roomID/reset", handler.handleResetRound)
	protected.POST("/rooms/:roomID/submit", handler.handleSubmitDrawing)
	protected.POST("/rooms/:roomID/messages", handler.handleSendMessage)
	protected.POST("/rooms/:roomID/leave", handler.handleLeaveRoom)
	protected.POST("/rooms/:roomID/guess", handler.handleGuess)
	protected.POST("/rooms/:roomID/guess/skip", handler.handleSkipGuess)
	protected.POST("/rooms/:roomID/ai-guess", handler.handleAIGuess)
	protected.POST("/rooms/:roomID/model-config", handler.handleSetModelConfig)
	protected.POST("/rooms/:roomID/preview", handler.handleSyncPreview)
	protected.POST("/sketch/generate", handler.handleGenerateSketch)

	return router, nil
}

type httpHandler struct {
	tokens *auth.TokenIssuer
	rooms  *roomRegistry
	clock  func() time.Time
	logger *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		h.rejectUnauthorized(c, "missing bearer token")
		return
	}
	identity, err := h.tokens.ValidateToken(strings.TrimPrefix(header, prefix))
	if err != nil {
		h.logger.Warn("session token rejected", zap.Error(err))
		h.rejectUnauthorized(c, "invalid session token")
		return
	}
	c.Set(identityContextKey, identity)
	c.Next()
}

func (h *httpHandler) rejectUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"message": message,
	})
}

func (h *httpHandler) identity(c *gin.Context) string {
	value, _ := c.Get(identityContextKey)
	identity, _ := value.(string)
	return identity
}

func respondOK(c *gin.Context, message string, extra gin.H) {
	payload := gin.H{"success": true, "message": message}
	for key, value := range extra {
		payload[key] = value
	}
	c.JSON(http.StatusOK, payload)
}

func respondRejected(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "message": message})
}
