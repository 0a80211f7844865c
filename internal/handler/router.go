package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/skatespot-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware игрового сервиса skatespot.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/game", func(r chi.Router) {
			r.Post("/start-session", h.StartSession)
			r.Post("/submit-score", h.SubmitScore)
			r.Post("/claim-daily", h.ClaimDaily)
			r.Get("/leaderboard", h.GetLeaderboard)
			r.Get("/rewards", h.GetRewards)
			r.Post("/claim-reward", h.ClaimReward)
		})

		r.Route("/duels", func(r chi.Router) {
			r.Post("/", h.CreateDuel)
			r.Post("/accept", h.AcceptDuel)
			r.Post("/reject", h.RejectDuel)
			r.Post("/penalize", h.PenalizeDuel)
			r.Get("/pending", h.GetPendingDuels)
			r.Get("/{id}", h.GetDuel)
		})

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/stats", h.GetUserStats)
			r.Get("/transactions", h.GetUserTransactions)
			r.Get("/claims", h.GetUserClaims)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
