/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the web and mobile frontends

ROUTE GROUPS:
  /api/tables/*         Rate table (current, reload, built-in)
  /api/calculate        Stateless calculation
  /api/missions/*       Saved missions, import/export, reports
  /api/scenarios/*      Demo data
  /healthz              Liveness and rate table source
  /                     Endpoint index

SECURITY NOTE:
  No authentication middleware. All endpoints are public; put the server
  behind a gateway when missions must stay private.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. An empty
// allowedOrigins list allows every origin.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Rate table routes
		r.Route("/tables", func(r chi.Router) {
			r.Get("/", h.GetRateTable)
			r.Post("/reload", h.ReloadRateTable)
			r.Get("/default", h.GetDefaultRateTable)
		})

		r.Post("/calculate", h.Calculate)

		// Mission routes
		r.Route("/missions", func(r chi.Router) {
			r.Get("/", h.ListMissions)
			r.Post("/", h.SaveMission)
			r.Delete("/", h.ClearMissions)
			r.Get("/export", h.ExportMissions)
			r.Post("/import", h.ImportMission)
			r.Post("/report", h.DraftReport)
			r.Get("/{id}", h.GetMission)
			r.Delete("/{id}", h.DeleteMission)
			r.Get("/{id}/export", h.ExportMission)
			r.Get("/{id}/report", h.MissionReport)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ClearMissions)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(indexPage))
	})

	return r
}

// Health reports liveness and where the rate table came from.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.Rates.Status()
	status := http.StatusOK
	if _, err := h.Rates.Current(); err != nil {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":       http.StatusText(status),
		"rates_source": string(st.Source),
	})
}

const indexPage = `<!DOCTYPE html>
<html lang="pt-BR">
<head><meta charset="utf-8"><title>Cadrimil</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Cadrimil - Cálculo de Diárias Militares</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/tables">/api/tables</a> - Tabela de diárias em uso</li>
<li><a href="/api/missions">/api/missions</a> - Missões salvas</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Cenários de demonstração</li>
<li>POST /api/calculate - Calcular períodos</li>
</ul>
</body>
</html>`
