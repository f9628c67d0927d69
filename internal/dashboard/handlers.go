package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"hedgedash/internal/auth"
	"hedgedash/internal/hedge"
	"hedgedash/internal/logger"
	"hedgedash/internal/types"
)

const (
	msgBusy        = "already in progress"
	msgUnavailable = "Market data unavailable, try again shortly."
)

// statusFor maps service errors to an HTTP status and a user-facing message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, hedge.ErrInvalidNotional):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrEmptyPassword):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrBadPassword):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, auth.ErrNoDigest):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timed out"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request canceled"
	default:
		return http.StatusBadGateway, err.Error()
	}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageData{})
}

func (s *Server) handleHedgeForm(w http.ResponseWriter, r *http.Request) {
	input := r.PostFormValue("notional")
	data := pageData{Notional: input}

	release, ok := guard(&s.hedgeBusy)
	if !ok {
		data.HedgeError = msgBusy
		s.render(w, r, http.StatusConflict, data)
		return
	}
	defer release()

	table, err := s.computeHedge(r.Context(), input)
	if err != nil {
		status, msg := statusFor(err)
		data.HedgeError = msg
		s.render(w, r, status, data)
		return
	}
	data.setHedge(table)
	s.render(w, r, http.StatusOK, data)
}

func (s *Server) handleHoldingsForm(w http.ResponseWriter, r *http.Request) {
	var data pageData

	release, ok := guard(&s.navBusy)
	if !ok {
		data.NavError = msgBusy
		s.render(w, r, http.StatusConflict, data)
		return
	}
	defer release()

	summary, err := s.nav.Refresh(r.Context(), r.PostFormValue("password"))
	if err != nil {
		status, msg := statusFor(err)
		data.NavError = msg
		s.render(w, r, status, data)
		return
	}
	data.setNav(summary)
	s.render(w, r, http.StatusOK, data)
}

type hedgeResponse struct {
	*types.HedgeTable
	Notice string `json:"notice,omitempty"`
}

func (s *Server) handleHedgeAPI(w http.ResponseWriter, r *http.Request) {
	release, ok := guard(&s.hedgeBusy)
	if !ok {
		writeJSONError(w, http.StatusConflict, msgBusy)
		return
	}
	defer release()

	table, err := s.computeHedge(r.Context(), r.URL.Query().Get("notional"))
	if err != nil {
		status, msg := statusFor(err)
		writeJSONError(w, status, msg)
		return
	}
	resp := hedgeResponse{HedgeTable: table}
	if len(table.Rows) == 0 {
		resp.Notice = msgUnavailable
	}
	writeJSON(w, http.StatusOK, resp)
}

type holdingsRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleHoldingsAPI(w http.ResponseWriter, r *http.Request) {
	var req holdingsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	release, ok := guard(&s.navBusy)
	if !ok {
		writeJSONError(w, http.StatusConflict, msgBusy)
		return
	}
	defer release()

	summary, err := s.nav.Refresh(r.Context(), req.Password)
	if err != nil {
		status, msg := statusFor(err)
		writeJSONError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) computeHedge(ctx context.Context, input string) (*types.HedgeTable, error) {
	notional, err := hedge.ParseNotional(input)
	if err != nil {
		return nil, err
	}
	return s.hedge.Compute(ctx, notional)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.ErrorWithErr(context.Background(), "Failed to encode response", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
