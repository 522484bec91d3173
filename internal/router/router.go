package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"lingua-backend/internal/handlers"
	"lingua-backend/internal/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Sources     *handlers.SourceHandler
	Flashcards  *handlers.FlashcardHandler
	Learning    *handlers.LearningHandler
	Preferences *handlers.PreferencesHandler
	Jobs        *handlers.JobHandler
	WebSocket   http.HandlerFunc
}

func New(jwtAuth *middleware.JWTAuth, h Handlers, frontendURL string) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Generation calls Gemini; 10 req/min per user
	generateLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── WebSocket (token in query) ────
		r.Get("/ws", h.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			// ──── Source Routes ────
			r.Route("/sources", func(r chi.Router) {
				r.Post("/text", h.Sources.CreateText)
				r.Post("/url", h.Sources.CreateURL)
				r.Post("/youtube", h.Sources.CreateYouTube)
				r.Post("/upload", h.Sources.Upload)
				r.Get("/{id}", h.Sources.GetSource)
			})

			// ──── Flashcard Routes ────
			r.Route("/flashcards", func(r chi.Router) {
				r.With(generateLimiter.Middleware).Post("/generate", h.Flashcards.Generate)
				r.Get("/shared/{code}", h.Flashcards.GetSharedDeck)

				r.Route("/decks", func(r chi.Router) {
					r.Get("/", h.Flashcards.ListDecks)
					r.Get("/{id}", h.Flashcards.GetDeck)
					r.Get("/{id}/stats", h.Flashcards.GetDeckStats)
					r.Delete("/{id}", h.Flashcards.DeleteDeck)
				})
			})

			// ──── Learning Session Routes ────
			r.Route("/learning/decks/{id}", func(r chi.Router) {
				r.Get("/", h.Learning.State)
				r.Post("/start", h.Learning.Start)
				r.Post("/pass", h.Learning.Pass)
				r.Post("/fail", h.Learning.Fail)
				r.Post("/reset", h.Learning.Reset)
			})

			// ──── User Routes ────
			r.Route("/user", func(r chi.Router) {
				r.Get("/preferences", h.Preferences.Get)
				r.Put("/preferences", h.Preferences.Update)
			})

			// ──── Job Routes ────
			r.Get("/jobs/{id}", h.Jobs.GetJob)
		})
	})

	return r
}
