/*
PURPOSE: Router assembly for the HTTP API.

ROUTES:
  POST   /api/tenants/{tenantID}/autoapply/run
  GET    /api/tenants/{tenantID}/autoapply/runs
  GET    /api/tenants/{tenantID}/recurrings
  POST   /api/tenants/{tenantID}/recurrings
  GET    /api/tenants/{tenantID}/recurrings/{recurringID}
  PATCH  /api/tenants/{tenantID}/recurrings/{recurringID}
  DELETE /api/tenants/{tenantID}/recurrings/{recurringID}
  POST   /api/tenants/{tenantID}/recurrings/{recurringID}/execute
  POST   /api/tenants/{tenantID}/recurrings/{recurringID}/reactivate
  GET    /api/tenants/{tenantID}/accounts
  POST   /api/tenants/{tenantID}/accounts
  GET    /api/tenants/{tenantID}/accounts/{accountID}
  GET    /api/tenants/{tenantID}/transactions
  GET    /health
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires the handler into a chi router with the standard
// middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/tenants/{tenantID}", func(r chi.Router) {
		r.Route("/autoapply", func(r chi.Router) {
			r.Post("/run", h.RunAutoApply)
			r.Get("/runs", h.ListRuns)
		})

		r.Route("/recurrings", func(r chi.Router) {
			r.Get("/", h.ListRecurrings)
			r.Post("/", h.CreateRecurring)
			r.Route("/{recurringID}", func(r chi.Router) {
				r.Get("/", h.GetRecurring)
				r.Patch("/", h.UpdateRecurring)
				r.Delete("/", h.DeleteRecurring)
				r.Post("/execute", h.ExecuteRecurring)
				r.Post("/reactivate", h.ReactivateRecurring)
			})
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{accountID}", h.GetAccount)
		})

		r.Get("/transactions", h.ListTransactions)
	})

	return r
}
