package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"monopolis-server/auth"
	"monopolis-server/config"
	"monopolis-server/game"
	"monopolis-server/roomerrors"
	"monopolis-server/rooms"
	"monopolis-server/storage"
)

const bearerPrefix = "Bearer "

// Handler holds dependencies for API handlers.
type Handler struct {
	Config       *config.Config
	Rooms        *rooms.Manager
	HistoryStore storage.HistoryStore
	// Verifier guards room creation. Nil leaves it open.
	Verifier *auth.Verifier
}

// NewHandler creates a new API handler with the given dependencies.
// historyStore and verifier may be nil.
func NewHandler(cfg *config.Config, rm *rooms.Manager, historyStore storage.HistoryStore, verifier *auth.Verifier) *Handler {
	return &Handler{
		Config:       cfg,
		Rooms:        rm,
		HistoryStore: historyStore,
		Verifier:     verifier,
	}
}

// CORS sets CORS headers and answers preflight requests.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequireToken rejects requests without a valid bearer token when a
// verifier is configured.
func (h *Handler) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.Verifier == nil {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		claims, err := h.Verifier.Verify(strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("userID", auth.UserIDFromClaims(claims))
		c.Next()
	}
}

// Health reports liveness and the number of live rooms.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": h.Rooms.Len()})
}

// CreateRoomRequest is the lobby hand-off: the finalized seat order.
type CreateRoomRequest struct {
	RoomID  string            `json:"roomId"`
	Players []game.PlayerInfo `json:"players"`
}

// CreateRoomResponse echoes the room with its id and deck seed.
type CreateRoomResponse struct {
	RoomID  string            `json:"roomId"`
	Seed    int64             `json:"seed"`
	Players []game.PlayerInfo `json:"players"`
}

// CreateRoom starts a room for a finalized lobby.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	room, err := h.Rooms.Create(c.Request.Context(), req.RoomID, req.Players)
	if err != nil {
		c.JSON(createStatus(err), gin.H{"error": err.Error()})
		return
	}
	slog.Info("room created over http", "tag", "api", "room", room.ID, "by", c.GetString("userID"))
	c.JSON(http.StatusCreated, CreateRoomResponse{RoomID: room.ID, Seed: room.Seed, Players: req.Players})
}

func createStatus(err error) int {
	switch {
	case errors.Is(err, roomerrors.ErrRoomExists):
		return http.StatusConflict
	case errors.Is(err, game.ErrNoPlayers),
		errors.Is(err, game.ErrTooManyPlayers),
		errors.Is(err, game.ErrDuplicatePlayer),
		errors.Is(err, game.ErrEmptyPlayerID),
		errors.Is(err, roomerrors.ErrNameTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetRoom returns the live state of a room.
func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.Rooms.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	view, err := room.View(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// Turns returns the persisted turn history of a room.
func (h *Handler) Turns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = 100
	}
	offset, _ := strconv.Atoi(c.Query("offset"))
	if offset < 0 {
		offset = 0
	}

	list := []storage.TurnRecord{}
	if h.HistoryStore != nil {
		var err error
		list, err = h.HistoryStore.ListTurns(c.Request.Context(), c.Param("id"), limit, offset)
		if err != nil {
			slog.Error("list turns failed", "tag", "api", "room", c.Param("id"), "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load turns"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"turns": list})
}
