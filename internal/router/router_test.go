package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"lingua-backend/internal/handlers"
	"lingua-backend/internal/middleware"
)

func newTestRouter() http.Handler {
	return New(middleware.NewJWTAuth("secret"), Handlers{
		Sources:     &handlers.SourceHandler{},
		Flashcards:  &handlers.FlashcardHandler{},
		Learning:    &handlers.LearningHandler{},
		Preferences: &handlers.PreferencesHandler{},
		Jobs:        &handlers.JobHandler{},
		WebSocket: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		},
	}, "http://localhost:5173")
}

func TestRouter_Health(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected a request id on every response")
	}
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/sources/text"},
		{http.MethodGet, "/api/v1/flashcards/decks"},
		{http.MethodPost, "/api/v1/flashcards/generate"},
		{http.MethodPost, "/api/v1/learning/decks/6a1f0e1c-1111-4c4c-9999-000000000000/pass"},
		{http.MethodGet, "/api/v1/learning/decks/6a1f0e1c-1111-4c4c-9999-000000000000"},
		{http.MethodPut, "/api/v1/user/preferences"},
		{http.MethodGet, "/api/v1/jobs/6a1f0e1c-1111-4c4c-9999-000000000000"},
	}

	r := newTestRouter()
	for _, tc := range routes {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rr.Code)
			}
		})
	}
}

func TestRouter_WebSocketIsPublic(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil))

	if rr.Code != http.StatusTeapot {
		t.Errorf("expected the websocket handler to run without JWT middleware, got %d", rr.Code)
	}
}
