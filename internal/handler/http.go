package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/medprep-backend/internal/auth"
	"github.com/medprep-backend/internal/domain"
	"github.com/medprep-backend/internal/service"
	"github.com/medprep-backend/internal/websocket"
)

// StatsCounter exposes the row counts shown on the admin stats endpoint.
type StatsCounter interface {
	CountUsers(ctx context.Context) (int64, error)
	CountVideos(ctx context.Context) (int64, error)
	CountWatchRecords(ctx context.Context) (int64, error)
	CountChatMessages(ctx context.Context) (int64, error)
}

// Handler provides HTTP handlers for the learning platform API
type Handler struct {
	auth        *service.AuthService
	catalog     *service.CatalogService
	progress    *service.ProgressService
	leaderboard *service.LeaderboardService
	chat        *service.ChatService
	tokens      auth.TokenService
	counts      StatsCounter
	hub         *websocket.Hub
	logger      *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	authSvc *service.AuthService,
	catalog *service.CatalogService,
	progress *service.ProgressService,
	leaderboard *service.LeaderboardService,
	chat *service.ChatService,
	tokens auth.TokenService,
	counts StatsCounter,
	hub *websocket.Hub,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		auth:        authSvc,
		catalog:     catalog,
		progress:    progress,
		leaderboard: leaderboard,
		chat:        chat,
		tokens:      tokens,
		counts:      counts,
		hub:         hub,
		logger:      logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)
			r.Post("/logout", h.Logout)
		})

		// Public catalog, published videos only
		r.Get("/videos", h.ListVideos)
		r.Get("/videos/{videoID}", h.GetVideo)

		// Public leaderboard
		r.Get("/leaderboard", h.GetLeaderboard)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(h.tokens))

			r.Get("/me", h.Me)
			r.Get("/progress", h.GetProgress)
			r.Post("/progress/watched", h.MarkWatched)
			r.Get("/leaderboard/rank", h.GetRank)
			r.Get("/chat/messages", h.ListChatMessages)
			r.Post("/chat/messages", h.PostChatMessage)

			// Admin console
			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireAdmin)

				r.Get("/videos", h.AdminListVideos)
				r.Post("/videos", h.AdminCreateVideo)
				r.Put("/videos/{videoID}", h.AdminUpdateVideo)
				r.Delete("/videos/{videoID}", h.AdminDeleteVideo)
				r.Delete("/chat/messages", h.AdminPruneChat)
				r.Get("/stats", h.AdminStats)
			})
		})
	})

	return r
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeServiceError maps domain errors to status codes
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrInvalidCredentials):
		h.writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, domain.ErrSessionExpired):
		h.writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, domain.ErrForbidden):
		h.writeError(w, http.StatusForbidden, err)
	case errors.Is(err, domain.ErrConflict):
		h.writeError(w, http.StatusConflict, err)
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	default:
		h.logger.Error(op, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// authResponse pairs a profile with freshly issued tokens
type authResponse struct {
	User   domain.User      `json:"user"`
	Tokens domain.TokenPair `json:"tokens"`
}

// Register handles account creation
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	user, tokens, err := h.auth.Register(r.Context(), req, r.UserAgent())
	if err != nil {
		h.writeServiceError(w, err, "failed to register user")
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    authResponse{User: user, Tokens: tokens},
	})
}

// Login handles authentication by email or username
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	user, tokens, err := h.auth.Login(r.Context(), req, r.UserAgent())
	if err != nil {
		h.writeServiceError(w, err, "failed to login user")
		return
	}

	h.writeSuccess(w, authResponse{User: user, Tokens: tokens})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a refresh token and issues a new pair
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	tokens, err := h.auth.Refresh(r.Context(), req.RefreshToken, r.UserAgent())
	if err != nil {
		h.writeServiceError(w, err, "failed to refresh session")
		return
	}

	h.writeSuccess(w, tokens)
}

// Logout revokes the presented refresh token
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		h.writeServiceError(w, err, "failed to logout")
		return
	}

	h.writeSuccess(w, map[string]string{"status": "logged_out"})
}

// Me returns the authenticated user's profile
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, domain.ErrInvalidCredentials)
		return
	}

	user, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "failed to load profile")
		return
	}

	h.writeSuccess(w, user)
}

// ListVideos returns the published catalog, optionally filtered by category
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.catalog.List(r.Context(), r.URL.Query().Get("category"), false)
	if err != nil {
		h.writeServiceError(w, err, "failed to list videos")
		return
	}

	h.writeSuccess(w, videos)
}

// GetVideo returns a single published video
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	if _, err := uuid.Parse(videoID); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	video, err := h.catalog.Get(r.Context(), videoID, false)
	if err != nil {
		h.writeServiceError(w, err, "failed to get video")
		return
	}

	h.writeSuccess(w, video)
}

// progressResponse is a user's progress with derived level info
type progressResponse struct {
	domain.Progress
	Level         int                  `json:"level"`
	LevelProgress domain.LevelProgress `json:"level_progress"`
}

func toProgressResponse(p domain.Progress) progressResponse {
	return progressResponse{
		Progress:      p,
		Level:         domain.Level(p.XP),
		LevelProgress: domain.XPToNextLevel(p.XP),
	}
}

// GetProgress returns the authenticated user's progress and level
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	h.writeSuccess(w, toProgressResponse(h.progress.GetProgress(r.Context(), userID)))
}

type markWatchedRequest struct {
	VideoID string `json:"video_id"`
}

// MarkWatched records a video completion for the authenticated user
func (h *Handler) MarkWatched(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req markWatchedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if _, err := uuid.Parse(req.VideoID); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if _, err := h.catalog.Get(r.Context(), req.VideoID, false); err != nil {
		h.writeServiceError(w, err, "failed to resolve video")
		return
	}

	p := h.progress.MarkVideoWatched(r.Context(), req.VideoID, userID)
	h.writeSuccess(w, toProgressResponse(p))
}

// GetLeaderboard returns the top of the leaderboard
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.leaderboard.Top(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to load leaderboard")
		return
	}

	h.writeSuccess(w, entries)
}

// GetRank returns the authenticated user's leaderboard position
func (h *Handler) GetRank(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	entry, err := h.leaderboard.Rank(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "failed to get rank")
		return
	}

	h.writeSuccess(w, entry)
}

// ListChatMessages returns recent chat history, oldest first
func (h *Handler) ListChatMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chat.Recent(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list chat messages")
		return
	}

	h.writeSuccess(w, messages)
}

// PostChatMessage posts to the chat wall as the authenticated user
func (h *Handler) PostChatMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req domain.PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	msg, err := h.chat.Post(r.Context(), userID, req.Body)
	if err != nil {
		h.writeServiceError(w, err, "failed to post chat message")
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    msg,
	})
}

// AdminListVideos returns the full catalog, unpublished included
func (h *Handler) AdminListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.catalog.List(r.Context(), r.URL.Query().Get("category"), true)
	if err != nil {
		h.writeServiceError(w, err, "failed to list videos")
		return
	}

	h.writeSuccess(w, videos)
}

// AdminCreateVideo creates a catalog entry
func (h *Handler) AdminCreateVideo(w http.ResponseWriter, r *http.Request) {
	var req domain.UpsertVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	video, err := h.catalog.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "failed to create video")
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    video,
	})
}

// AdminUpdateVideo updates a catalog entry
func (h *Handler) AdminUpdateVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	if _, err := uuid.Parse(videoID); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var req domain.UpsertVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	video, err := h.catalog.Update(r.Context(), videoID, req)
	if err != nil {
		h.writeServiceError(w, err, "failed to update video")
		return
	}

	h.writeSuccess(w, video)
}

// AdminDeleteVideo removes a catalog entry
func (h *Handler) AdminDeleteVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	if _, err := uuid.Parse(videoID); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.catalog.Delete(r.Context(), videoID); err != nil {
		h.writeServiceError(w, err, "failed to delete video")
		return
	}

	h.writeSuccess(w, map[string]string{"status": "deleted"})
}

// AdminPruneChat deletes chat messages older than the given duration
func (h *Handler) AdminPruneChat(w http.ResponseWriter, r *http.Request) {
	var olderThan time.Duration
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
			return
		}
		olderThan = d
	}

	removed, err := h.chat.Prune(r.Context(), olderThan)
	if err != nil {
		h.writeServiceError(w, err, "failed to prune chat")
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"status":  "pruned",
		"removed": removed,
	})
}

// AdminStats returns platform-wide counters
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := map[string]interface{}{
		"websocket_connections": h.hub.GetTotalConnections(),
	}

	if n, err := h.counts.CountUsers(ctx); err == nil {
		stats["users"] = n
	}
	if n, err := h.counts.CountVideos(ctx); err == nil {
		stats["videos"] = n
	}
	if n, err := h.counts.CountWatchRecords(ctx); err == nil {
		stats["watch_records"] = n
	}
	if n, err := h.counts.CountChatMessages(ctx); err == nil {
		stats["chat_messages"] = n
	}

	h.writeSuccess(w, stats)
}
