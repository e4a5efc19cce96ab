package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quizroom/internal/config"
	"github.com/quizroom/internal/domain"
	"github.com/quizroom/internal/questions"
	"github.com/quizroom/internal/session"
	"github.com/quizroom/internal/ws"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T) (*Handler, *session.Store) {
	t.Helper()
	src, err := questions.Default()
	if err != nil {
		t.Fatalf("loading questions: %v", err)
	}
	logger := testLogger()
	cfg := config.DefaultConfig()
	store := session.New(src, cfg.Quiz.ResetGrace, logger)
	dispatcher := ws.NewDispatcher(store, src, logger)
	return NewHandler(store, src, dispatcher, &cfg.Quiz, logger), store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func TestHealthAndReady(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestGenerateRoomCode(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()

	rec, resp := doJSON(t, router, "GET", "/api/v1/rooms/code", nil)
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("generate = %d success=%v", rec.Code, resp.Success)
	}
	data := resp.Data.(map[string]any)
	code, _ := data["code"].(string)
	if !domain.ValidRoomCode(code) {
		t.Errorf("generated code %q is not in XXXX-XXXX format", code)
	}
}

func TestValidateRoomCode(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()

	rec, resp := doJSON(t, router, "GET", "/api/v1/rooms/1234-5678/valid", nil)
	if rec.Code != http.StatusOK || !resp.Success {
		t.Errorf("well-formed code = %d success=%v", rec.Code, resp.Success)
	}

	rec, resp = doJSON(t, router, "GET", "/api/v1/rooms/abcd-efgh/valid", nil)
	if rec.Code != http.StatusBadRequest || resp.Success {
		t.Errorf("malformed code = %d success=%v, want 400 failure", rec.Code, resp.Success)
	}
}

func TestGetLeaderboard(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Router()

	rec, _ := doJSON(t, router, "GET", "/api/v1/rooms/1234-5678/leaderboard", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("leaderboard for unknown room = %d, want 404", rec.Code)
	}

	if err := store.Register("1234-5678", "Alice", domain.RolePlayer); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := store.RecordAnswer("1234-5678", "Alice", true, 2); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	rec, resp := doJSON(t, router, "GET", "/api/v1/rooms/1234-5678/leaderboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard = %d, want 200", rec.Code)
	}
	entries := resp.Data.([]any)
	if len(entries) != 1 {
		t.Fatalf("leaderboard has %d entries, want 1", len(entries))
	}
	first := entries[0].(map[string]any)
	if first["name"] != "Alice" || first["score"] != float64(8) {
		t.Errorf("leaderboard entry = %v, want Alice with score 8", first)
	}
}

type fakeBoards struct {
	entries []domain.LeaderboardEntry
	err     error
}

func (f *fakeBoards) Top(_ context.Context, _ string, _ int) ([]domain.LeaderboardEntry, error) {
	return f.entries, f.err
}

func TestGetLeaderboardPrefersMirror(t *testing.T) {
	h, store := newTestHandler(t)
	if err := store.Register("1234-5678", "Alice", domain.RolePlayer); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := store.RecordAnswer("1234-5678", "Alice", true, 2); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	h.SetLeaderboardReader(&fakeBoards{entries: []domain.LeaderboardEntry{{Name: "Mirrored", Score: 42}}})
	router := h.Router()

	_, resp := doJSON(t, router, "GET", "/api/v1/rooms/1234-5678/leaderboard", nil)
	entries := resp.Data.([]any)
	if len(entries) != 1 || entries[0].(map[string]any)["name"] != "Mirrored" {
		t.Errorf("mirror-backed leaderboard = %v", entries)
	}

	// A failing mirror falls back to the session store.
	h.SetLeaderboardReader(&fakeBoards{err: context.DeadlineExceeded})
	_, resp = doJSON(t, router, "GET", "/api/v1/rooms/1234-5678/leaderboard", nil)
	entries = resp.Data.([]any)
	if len(entries) != 1 || entries[0].(map[string]any)["name"] != "Alice" {
		t.Errorf("fallback leaderboard = %v", entries)
	}
}

func TestGetQuestion(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()

	rec, resp := doJSON(t, router, "GET", "/api/v1/questions/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("question 1 = %d, want 200", rec.Code)
	}
	data := resp.Data.(map[string]any)
	q := data["question"].(map[string]any)
	if _, leaked := q["correctAnswer"]; leaked {
		t.Error("question payload leaked correctAnswer")
	}
	if data["totalQuestions"] != float64(5) {
		t.Errorf("totalQuestions = %v, want 5", data["totalQuestions"])
	}

	rec, _ = doJSON(t, router, "GET", "/api/v1/questions/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("question 999 = %d, want 404", rec.Code)
	}

	rec, _ = doJSON(t, router, "GET", "/api/v1/questions/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric qid = %d, want 400", rec.Code)
	}
}

func TestGetTimer(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()

	_, resp := doJSON(t, router, "GET", "/api/v1/quiz/timer", nil)
	data := resp.Data.(map[string]any)
	if data["timer"] != float64(10) {
		t.Errorf("timer = %v, want 10", data["timer"])
	}
}

func TestSubmitAnswer(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()

	rec, resp := doJSON(t, router, "POST", "/api/v1/quiz/answers", SubmitAnswerRequest{QID: 1, Answer: "c"})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit answer = %d, want 200", rec.Code)
	}
	data := resp.Data.(map[string]any)
	if data["isCorrect"] != true || data["message"] != "Correct!" {
		t.Errorf("correct answer result = %v", data)
	}

	_, resp = doJSON(t, router, "POST", "/api/v1/quiz/answers", SubmitAnswerRequest{QID: 1, Answer: "a"})
	data = resp.Data.(map[string]any)
	if data["isCorrect"] != false || data["message"] != "Wrong!" {
		t.Errorf("wrong answer result = %v", data)
	}

	rec, _ = doJSON(t, router, "POST", "/api/v1/quiz/answers", SubmitAnswerRequest{QID: 999, Answer: "a"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown question = %d, want 400", rec.Code)
	}
}

func TestSetScores(t *testing.T) {
	h, store := newTestHandler(t)
	router := h.Router()

	rec, _ := doJSON(t, router, "POST", "/api/v1/quiz/scores", SetScoresRequest{
		RoomCode: "1234-5678", PlayerName: "Alice", TimeTaken: 2, IsCorrect: true,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("scores for unknown room = %d, want 404", rec.Code)
	}

	if err := store.Register("1234-5678", "Alice", domain.RolePlayer); err != nil {
		t.Fatalf("Register: %v", err)
	}
	rec, resp := doJSON(t, router, "POST", "/api/v1/quiz/scores", SetScoresRequest{
		RoomCode: "1234-5678", PlayerName: "Alice", TimeTaken: 2, IsCorrect: true,
	})
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("scores = %d success=%v", rec.Code, resp.Success)
	}

	lb := store.Leaderboard("1234-5678")
	if len(lb) != 1 || lb[0].Score != 8 {
		t.Errorf("leaderboard after REST score = %v, want Alice with 8", lb)
	}

	rec, _ = doJSON(t, router, "POST", "/api/v1/quiz/scores", SetScoresRequest{PlayerName: "Alice"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing room code = %d, want 400", rec.Code)
	}
}

func TestWebSocketStats(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()

	_, resp := doJSON(t, router, "GET", "/api/v1/ws/stats", nil)
	data := resp.Data.(map[string]any)
	if data["rooms"] != float64(0) || data["connections"] != float64(0) {
		t.Errorf("fresh stats = %v, want zeros", data)
	}
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()

	req := httptest.NewRequest("OPTIONS", "/api/v1/rooms/code", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("preflight = %d, want 200", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin header")
	}
}
