package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/opencourt/tournament-engine/handlers"
)

func SetupRoutes(
	tournamentHandler *handlers.TournamentHandler,
	participantHandler *handlers.ParticipantHandler,
	matchHandler *handlers.MatchHandler,
) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Post("/", tournamentHandler.CreateHandler)
		r.Get("/", tournamentHandler.ListHandler)

		r.Route("/{tournamentID}", func(r chi.Router) {
			r.Get("/", tournamentHandler.GetByIDHandler)
			r.Post("/publish", tournamentHandler.PublishHandler)
			r.Post("/close-registration", tournamentHandler.CloseRegistrationHandler)
			r.Post("/start", tournamentHandler.StartHandler)
			r.Post("/cancel", tournamentHandler.CancelHandler)

			r.Route("/participants", func(r chi.Router) {
				r.Post("/", participantHandler.RegisterHandler)
				r.Get("/", participantHandler.ListHandler)
				r.Delete("/{userID}", participantHandler.WithdrawHandler)
			})

			r.Get("/matches", matchHandler.ListByTournamentHandler)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", matchHandler.GetByIDHandler)
		r.Post("/{matchID}/result", matchHandler.SubmitResultHandler)
	})

	return router
}
