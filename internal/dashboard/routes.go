package dashboard

import (
	"net/http"
)

type route struct {
	Name    string
	Method  string
	Path    string
	Handler http.HandlerFunc
}

func (s *Server) routes() []route {
	return []route{
		// ---------- page ----------
		{Name: "page", Method: http.MethodGet, Path: "/", Handler: s.handlePage},
		{Name: "hedge_form", Method: http.MethodPost, Path: "/hedge", Handler: s.handleHedgeForm},
		{Name: "holdings_form", Method: http.MethodPost, Path: "/holdings", Handler: s.handleHoldingsForm},

		// ---------- api v1 ----------
		{Name: "api_hedge", Method: http.MethodGet, Path: "/api/v1/hedge", Handler: s.handleHedgeAPI},
		{Name: "api_holdings", Method: http.MethodPost, Path: "/api/v1/holdings", Handler: s.handleHoldingsAPI},

		// ---------- ops ----------
		{Name: "healthz", Method: http.MethodGet, Path: "/healthz", Handler: s.handleHealth},
	}
}

func (s *Server) setupRoutes() {
	s.router.Use(requestIDMiddleware)
	s.router.Use(s.observeMiddleware)

	for _, r := range s.routes() {
		s.router.HandleFunc(r.Path, r.Handler).Methods(r.Method).Name(r.Name)
	}
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet).Name("metrics")

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
}
