// Package handler provides the HTTP surface around the quiz
// coordinator: room-code generation and validation, question fetch,
// REST variants of the answer/score commands, and the websocket
// upgrade endpoint.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quizroom/internal/config"
	"github.com/quizroom/internal/domain"
	"github.com/quizroom/internal/questions"
	"github.com/quizroom/internal/session"
	"github.com/quizroom/internal/ws"
)

// LeaderboardReader serves leaderboard reads from a warm mirror so
// they stay off the session store mutex.
type LeaderboardReader interface {
	Top(ctx context.Context, roomCode string, n int) ([]domain.LeaderboardEntry, error)
}

// Handler provides HTTP handlers for the quiz API
type Handler struct {
	store      *session.Store
	questions  *questions.Source
	dispatcher *ws.Dispatcher
	boards     LeaderboardReader
	cfg        *config.QuizConfig
	logger     *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(store *session.Store, src *questions.Source, dispatcher *ws.Dispatcher, cfg *config.QuizConfig, logger *slog.Logger) *Handler {
	return &Handler{
		store:      store,
		questions:  src,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
	}
}

// SetLeaderboardReader attaches a mirror for leaderboard reads. When
// unset, or when the mirror has nothing for a room, reads come from
// the session store.
func (h *Handler) SetLeaderboardReader(r LeaderboardReader) {
	h.boards = r
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
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
		r.Route("/rooms", func(r chi.Router) {
			r.Get("/code", h.GenerateRoomCode)
			r.Get("/{code}/valid", h.ValidateRoomCode)
			r.Get("/{code}/leaderboard", h.GetLeaderboard)
		})

		r.Get("/questions/{qid}", h.GetQuestion)

		r.Route("/quiz", func(r chi.Router) {
			r.Get("/timer", h.GetTimer)
			r.Post("/answers", h.SubmitAnswer)
			r.Post("/scores", h.SetScores)
		})

		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data any) {
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

// HandleWebSocket upgrades the connection and hands it to the
// dispatcher.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws.ServeWS(h.dispatcher, h.logger, w, r)
}

// GetWebSocketStats returns live room and connection counts.
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	rooms, conns := h.dispatcher.Stats()
	h.writeSuccess(w, map[string]int{
		"rooms":       rooms,
		"connections": conns,
	})
}

// HealthCheck reports process liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadyCheck reports readiness to serve traffic.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// GenerateRoomCode mints a fresh room code in the canonical format.
// The room itself is only created when the first participant
// validates into it.
func (h *Handler) GenerateRoomCode(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"code": domain.NewRoomCode()})
}

// ValidateRoomCode format-checks a room code.
func (h *Handler) ValidateRoomCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !domain.ValidRoomCode(code) {
		h.writeError(w, http.StatusBadRequest, domain.ErrBadRoomCode)
		return
	}
	h.writeSuccess(w, map[string]any{
		"valid":   true,
		"message": "Room code is valid.",
	})
}

// GetLeaderboard returns a room's live standings.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !h.store.RoomExists(code) {
		h.writeError(w, http.StatusNotFound, domain.ErrRoomNotFound)
		return
	}

	limit := h.cfg.LeaderboardLimit
	if h.boards != nil {
		entries, err := h.boards.Top(r.Context(), code, limit)
		if err != nil {
			h.logger.Warn("leaderboard mirror read failed, falling back", "room", code, "error", err)
		} else if len(entries) > 0 {
			h.writeSuccess(w, entries)
			return
		}
	}

	entries := h.store.Leaderboard(code)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	h.writeSuccess(w, entries)
}

// GetQuestion returns a sanitized question by id.
func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	qid, err := strconv.Atoi(chi.URLParam(r, "qid"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	q, ok := h.questions.Find(qid)
	if !ok {
		h.writeError(w, http.StatusNotFound, domain.ErrQuestionNotFound)
		return
	}

	h.writeSuccess(w, map[string]any{
		"question":       q.Sanitized(),
		"totalQuestions": h.questions.Total(),
	})
}

// GetTimer reports the per-question time budget in seconds.
func (h *Handler) GetTimer(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]float64{"timer": h.cfg.QuestionTime.Seconds()})
}

// SubmitAnswerRequest is the REST form of the submit-answer command.
type SubmitAnswerRequest struct {
	QID    int    `json:"qid"`
	Answer string `json:"answer"`
}

// SubmitAnswer checks an answer against a question.
func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	q, ok := h.questions.Find(req.QID)
	if !ok || req.Answer == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	isCorrect := req.Answer == q.CorrectAnswer
	message := "Wrong!"
	if isCorrect {
		message = "Correct!"
	}
	h.writeSuccess(w, map[string]any{
		"questionId":     q.ID,
		"correctAnswer":  q.CorrectAnswer,
		"selectedAnswer": req.Answer,
		"isCorrect":      isCorrect,
		"message":        message,
	})
}

// SetScoresRequest is the REST form of the set-scores command.
type SetScoresRequest struct {
	RoomCode   string  `json:"roomCode"`
	PlayerName string  `json:"playerName"`
	TimeTaken  float64 `json:"timeTaken"`
	IsCorrect  bool    `json:"isCorrect"`
}

// SetScores records an answer result through the same ledger path as
// the websocket command, so the room sees the leaderboard update
// either way.
func (h *Handler) SetScores(w http.ResponseWriter, r *http.Request) {
	var req SetScoresRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if req.RoomCode == "" || req.PlayerName == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.store.RecordAnswer(req.RoomCode, req.PlayerName, req.IsCorrect, req.TimeTaken); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	message := "Answer is Wrong."
	if req.IsCorrect {
		message = "Score updated successfully"
	}
	h.writeSuccess(w, map[string]string{"message": message})
}
