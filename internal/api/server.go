package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"roomlink/internal/gateway"
	"roomlink/internal/presence"
	"roomlink/pkg/interfaces"
	"roomlink/pkg/types"
)

// Registry is the part of the presence registry the admin API reads and
// broadcasts through.
type Registry interface {
	GetOnlineUsers(roomID string) []string
	BroadcastToRoom(msg any, roomID string) presence.BroadcastResult
	Rooms() []presence.RoomOccupancy
	Stats() presence.Stats
}

// Profiles is the external profile service.
type Profiles interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	Nickname(ctx context.Context, userID string) (string, error)
	UserInfo(ctx context.Context, userID string) (*gateway.UserInfo, error)
	UpdateProfile(ctx context.Context, p *gateway.Profile) error
}

// TokenIssuer mints room tokens.
type TokenIssuer interface {
	Issue(userID, nickname, roomID string) (string, error)
}

// Dependencies are the collaborators of the API server. Journal, Profiles
// and Metrics may be nil; the endpoints that need them answer 503.
type Dependencies struct {
	Registry       Registry
	Journal        interfaces.EventJournal
	Profiles       Profiles
	Tokens         TokenIssuer
	Metrics        http.Handler
	AllowedOrigins []string
	Logger         *slog.Logger
}

// ARCHITECTURAL DISCOVERY: HTTP API layer serves as pure interface between external clients and internal components
// No presence logic lives here, only HTTP handling and JSON serialization
type Server struct {
	registry Registry
	journal  interfaces.EventJournal
	profiles Profiles
	tokens   TokenIssuer
	metrics  http.Handler
	logger   *slog.Logger
	router   *http.ServeMux
	handler  http.Handler
	started  time.Time
}

// NewServer builds the admin API and its routes
func NewServer(deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		registry: deps.Registry,
		journal:  deps.Journal,
		profiles: deps.Profiles,
		tokens:   deps.Tokens,
		metrics:  deps.Metrics,
		logger:   logger,
		router:   http.NewServeMux(),
		started:  time.Now(),
	}
	s.setupRoutes()

	// FUNCTIONAL DISCOVERY: The chat front-end is served from another origin, so every
	// admin route answers CORS preflights
	s.handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         86400,
	}).Handler(s.router)
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("GET /api/v0/chat/rooms", s.jsonHandler(s.listRooms))
	s.router.Handle("GET /api/v0/chat/rooms/{room_id}/status", s.jsonHandler(s.roomStatus))
	s.router.Handle("GET /api/v0/chat/rooms/{room_id}/events", s.jsonHandler(s.roomEvents))
	s.router.Handle("POST /api/v0/notify_session_end", s.jsonHandler(s.notifySessionEnd))
	s.router.Handle("GET /api/v0/create_token", s.jsonHandler(s.createToken))
	s.router.Handle("GET /api/v0/check_user", s.jsonHandler(s.checkUser))
	s.router.Handle("GET /api/v0/user_info", s.jsonHandler(s.userInfo))
	s.router.Handle("POST /api/v0/register", s.jsonHandler(s.register))
	s.router.Handle("GET /health", s.jsonHandler(s.healthCheck))
	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Response types for JSON serialization
type RoomStatusResponse struct {
	RoomID      string   `json:"room_id"`
	UserCount   int      `json:"user_count"`
	OnlineUsers []string `json:"online_users"`
}

type RoomsResponse struct {
	Rooms []presence.RoomOccupancy `json:"rooms"`
}

type RoomEventsResponse struct {
	RoomID string                 `json:"room_id"`
	Events []*types.PresenceEvent `json:"events"`
}

type NotifySessionEndRequest struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason"`
}

type NotifySessionEndResponse struct {
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Delivered []string `json:"delivered"`
	Reaped    []string `json:"reaped"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type CheckUserResponse struct {
	UserExists bool `json:"user_exists"`
}

type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Uptime    string         `json:"uptime"`
	Database  string         `json:"database"`
	Presence  presence.Stats `json:"presence"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// GET /api/v0/chat/rooms/{room_id}/status
func (s *Server) roomStatus(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")
	if !types.IsValidRoomID(roomID) {
		s.sendError(w, types.ErrInvalidRoomID.Error(), http.StatusBadRequest)
		return
	}

	users := s.registry.GetOnlineUsers(roomID)
	s.sendJSON(w, http.StatusOK, RoomStatusResponse{
		RoomID:      roomID,
		UserCount:   len(users),
		OnlineUsers: users,
	})
}

// GET /api/v0/chat/rooms
func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, RoomsResponse{Rooms: s.registry.Rooms()})
}

// GET /api/v0/chat/rooms/{room_id}/events?limit=N
func (s *Server) roomEvents(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")
	if !types.IsValidRoomID(roomID) {
		s.sendError(w, types.ErrInvalidRoomID.Error(), http.StatusBadRequest)
		return
	}
	if s.journal == nil {
		s.sendError(w, "presence journal is not configured", http.StatusServiceUnavailable)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.sendError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := s.journal.ListRoomEvents(r.Context(), roomID, limit)
	if err != nil {
		s.logger.Error("failed to list room events", "room_id", roomID, "error", err)
		s.sendError(w, "Failed to list room events", http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, http.StatusOK, RoomEventsResponse{RoomID: roomID, Events: events})
}

// POST /api/v0/notify_session_end
func (s *Server) notifySessionEnd(w http.ResponseWriter, r *http.Request) {
	var req NotifySessionEndRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.RoomID == "" {
		s.sendError(w, "room_id is required", http.StatusBadRequest)
		return
	}

	msg := presence.NewSessionEnded(req.Reason)
	users := s.registry.GetOnlineUsers(req.RoomID)
	result := s.registry.BroadcastToRoom(msg, req.RoomID)

	s.logger.Info("session end notification sent",
		"room_id", req.RoomID, "reason", msg.Reason, "users", users,
		"delivered", len(result.Delivered), "reaped", len(result.Reaped))

	s.recordSessionEnd(r.Context(), req.RoomID, msg.Reason)

	s.sendJSON(w, http.StatusOK, NotifySessionEndResponse{
		Status:    "success",
		Message:   "Session end notification sent",
		Delivered: result.Delivered,
		Reaped:    result.Reaped,
	})
}

// recordSessionEnd journals the notification; failures are logged only.
func (s *Server) recordSessionEnd(ctx context.Context, roomID, reason string) {
	if s.journal == nil {
		return
	}
	event := &types.PresenceEvent{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Kind:      types.EventSessionEnded,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.journal.RecordEvent(ctx, event); err != nil {
		s.logger.Error("failed to journal session end", "room_id", roomID, "error", err)
	}
}

// GET /api/v0/create_token?user_id=&room_id=
func (s *Server) createToken(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	roomID := r.URL.Query().Get("room_id")
	if userID == "" || roomID == "" {
		s.sendError(w, "user_id and room_id are required", http.StatusBadRequest)
		return
	}
	if !types.IsValidRoomID(roomID) {
		s.sendError(w, types.ErrInvalidRoomID.Error(), http.StatusBadRequest)
		return
	}
	if !s.requireProfiles(w) {
		return
	}

	exists, err := s.profiles.UserExists(r.Context(), userID)
	if err != nil {
		s.sendGatewayError(w, "check user", err)
		return
	}
	if !exists {
		s.sendError(w, "user not found", http.StatusNotFound)
		return
	}

	nickname, err := s.profiles.Nickname(r.Context(), userID)
	if err != nil {
		s.sendGatewayError(w, "fetch nickname", err)
		return
	}
	if !types.IsValidDisplayName(nickname) {
		s.sendError(w, types.ErrInvalidDisplayName.Error(), http.StatusUnprocessableEntity)
		return
	}

	tok, err := s.tokens.Issue(userID, nickname, roomID)
	if err != nil {
		s.logger.Error("failed to issue token", "user_id", userID, "room_id", roomID, "error", err)
		s.sendError(w, "Error creating token", http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, http.StatusOK, TokenResponse{Token: tok})
}

// GET /api/v0/check_user?user_id=
func (s *Server) checkUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.sendError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if !s.requireProfiles(w) {
		return
	}

	exists, err := s.profiles.UserExists(r.Context(), userID)
	if err != nil {
		s.sendGatewayError(w, "check user", err)
		return
	}
	s.sendJSON(w, http.StatusOK, CheckUserResponse{UserExists: exists})
}

// GET /api/v0/user_info?user_id=
func (s *Server) userInfo(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if _, err := strconv.ParseInt(userID, 10, 64); err != nil {
		s.sendError(w, "user_id must be an integer", http.StatusBadRequest)
		return
	}
	if !s.requireProfiles(w) {
		return
	}

	info, err := s.profiles.UserInfo(r.Context(), userID)
	if err != nil {
		s.sendGatewayError(w, "fetch user info", err)
		return
	}
	s.sendJSON(w, http.StatusOK, info)
}

// POST /api/v0/register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var profile gateway.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if profile.UserID <= 0 {
		s.sendError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if !s.requireProfiles(w) {
		return
	}

	if err := s.profiles.UpdateProfile(r.Context(), &profile); err != nil {
		s.sendGatewayError(w, "update profile", err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// GET /health
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "disabled"
	if s.journal != nil {
		dbStatus = "healthy"
		if err := s.journal.HealthCheck(ctx); err != nil {
			status = "unhealthy"
			dbStatus = fmt.Sprintf("error: %v", err)
		}
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	s.sendJSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Database:  dbStatus,
		Presence:  s.registry.Stats(),
	})
}

func (s *Server) requireProfiles(w http.ResponseWriter) bool {
	if s.profiles == nil {
		s.sendError(w, "profile gateway is not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// sendGatewayError passes upstream status codes through and maps transport
// failures to 502.
func (s *Server) sendGatewayError(w http.ResponseWriter, op string, err error) {
	var statusErr *gateway.StatusError
	if errors.As(err, &statusErr) {
		s.sendError(w, statusErr.Body, statusErr.StatusCode)
		return
	}
	s.logger.Error("profile gateway request failed", "op", op, "error", err)
	s.sendError(w, "profile gateway unavailable", http.StatusBadGateway)
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v any) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// FUNCTIONAL DISCOVERY: Consistent error response format
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	if strings.TrimSpace(message) == "" {
		message = http.StatusText(code)
	}
	s.sendJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// jsonHandler sets the JSON content type on every API response
func (s *Server) jsonHandler(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
