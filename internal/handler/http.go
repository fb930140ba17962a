package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gamechanger/internal/bgg"
	"github.com/gamechanger/internal/domain"
	"github.com/gamechanger/internal/ranking"
	"github.com/gamechanger/internal/service"
	gsync "github.com/gamechanger/internal/sync"
	"github.com/gamechanger/internal/websocket"
)

// Searcher runs free-text boardgame searches against the external API.
type Searcher interface {
	Search(ctx context.Context, query string) ([]bgg.SearchResult, error)
}

// SyncTrigger starts a sync run on demand.
type SyncTrigger interface {
	RunOnce(ctx context.Context) (gsync.Summary, error)
}

// Pinger reports backing-store connectivity for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler provides HTTP handlers for the play tracking API
type Handler struct {
	service  *service.StandingsService
	searcher Searcher
	syncer   SyncTrigger
	pinger   Pinger
	hub      *websocket.Hub
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	service *service.StandingsService,
	searcher Searcher,
	syncer SyncTrigger,
	pinger Pinger,
	hub *websocket.Hub,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		service:  service,
		searcher: searcher,
		syncer:   syncer,
		pinger:   pinger,
		hub:      hub,
		logger:   logger,
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
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)

			r.Route("/{eventName}", func(r chi.Router) {
				r.Get("/games", h.GetEventGames)
				r.Get("/standings", h.GetEventStandings)
				r.Get("/rankings", h.GetEventRankings)
			})
		})

		r.Get("/players/{playerName}/stats", h.GetPlayerStats)

		r.Route("/boardgames", func(r chi.Router) {
			r.Get("/", h.ListBoardgames)
			r.Get("/ranking", h.GetBoardgameRanking)
			r.Get("/{bggID}", h.GetBoardgame)
		})

		r.Get("/search", h.SearchBoardgames)
		r.Post("/sync", h.TriggerSync)

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
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

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, err)
			return
		}
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// ListEvents returns all configured events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.service.ListEvents(r.Context()))
}

// queryMode parses the mode query parameter, defaulting to the default mode.
func queryMode(r *http.Request) (ranking.Mode, error) {
	return ranking.ParseMode(r.URL.Query().Get("mode"))
}

// GetEventGames returns the ranked games of an event
func (h *Handler) GetEventGames(w http.ResponseWriter, r *http.Request) {
	eventName := chi.URLParam(r, "eventName")
	if eventName == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	mode, err := queryMode(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	games, err := h.service.EventGames(r.Context(), eventName, mode)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get event games", "event", eventName, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, games)
}

// GetEventStandings returns the standings table of an event
func (h *Handler) GetEventStandings(w http.ResponseWriter, r *http.Request) {
	eventName := chi.URLParam(r, "eventName")
	if eventName == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	mode, err := queryMode(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	top := 0
	if topStr := r.URL.Query().Get("top"); topStr != "" {
		if t, err := strconv.Atoi(topStr); err == nil && t > 0 {
			top = t
		}
	}

	standings, err := h.service.EventStandings(r.Context(), eventName, mode, top)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get standings", "event", eventName, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, standings)
}

// GetEventRankings returns the games and standings of all modes for an event
func (h *Handler) GetEventRankings(w http.ResponseWriter, r *http.Request) {
	eventName := chi.URLParam(r, "eventName")
	if eventName == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	rankings, err := h.service.EventRankings(r.Context(), eventName)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get event rankings", "event", eventName, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, rankings)
}

// GetPlayerStats returns a player's statistics across all games
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	playerName := chi.URLParam(r, "playerName")
	if playerName == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	stats, err := h.service.GetPlayerStats(r.Context(), playerName)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get player stats", "player", playerName, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, stats)
}

// ListBoardgames returns all stored boardgames
func (h *Handler) ListBoardgames(w http.ResponseWriter, r *http.Request) {
	boardgames, err := h.service.ListBoardgames(r.Context())
	if err != nil {
		h.logger.Error("failed to list boardgames", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, boardgames)
}

// GetBoardgameRanking returns boardgames ordered by play count
func (h *Handler) GetBoardgameRanking(w http.ResponseWriter, r *http.Request) {
	rankings, err := h.service.GetBoardgameRanking(r.Context())
	if err != nil {
		h.logger.Error("failed to get boardgame ranking", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, rankings)
}

// GetBoardgame returns one boardgame with its games and player ranking
func (h *Handler) GetBoardgame(w http.ResponseWriter, r *http.Request) {
	bggID, err := strconv.Atoi(chi.URLParam(r, "bggID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	boardgame, err := h.service.GetBoardgameDetail(r.Context(), bggID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get boardgame", "bgg_id", bggID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, boardgame)
}

// SearchBoardgames proxies a free-text search to the external API
func (h *Handler) SearchBoardgames(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	results, err := h.searcher.Search(r.Context(), query)
	if err != nil {
		h.logger.Error("boardgame search failed", "query", query, "error", err)
		h.writeError(w, http.StatusBadGateway, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, results)
}

// TriggerSync starts a sync run in the background
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		h.writeError(w, http.StatusServiceUnavailable, domain.ErrInternalError)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := h.syncer.RunOnce(ctx); err != nil {
			h.logger.Error("manual sync failed", "error", err)
		}
	}()

	h.writeJSON(w, http.StatusAccepted, APIResponse{
		Success: true,
		Data:    map[string]string{"status": "sync started"},
	})
}
