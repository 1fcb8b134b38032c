package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/dashboard"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/features"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/prediction"
)

// UsagePoint is one bar of the weekly usage chart.
type UsagePoint struct {
	Day string  `json:"day"`
	KWH float64 `json:"kwh"`
}

// weeklyUsage is the sample series shown until usage history is recorded.
var weeklyUsage = []UsagePoint{
	{Day: "Mon", KWH: 2.1},
	{Day: "Tue", KWH: 1.8},
	{Day: "Wed", KWH: 3.5},
	{Day: "Thu", KWH: 4.2},
	{Day: "Fri", KWH: 3.8},
	{Day: "Sat", KWH: 5.1},
	{Day: "Sun", KWH: 3.2},
}

type dashboardResponse struct {
	dashboard.View
	Greeting    string       `json:"greeting"`
	WeeklyUsage []UsagePoint `json:"weeklyUsage"`
}

func (s *Server) dashboardResponse(ctx context.Context, name string, c *dashboard.Controller) dashboardResponse {
	return dashboardResponse{
		View:        c.View(ctx),
		Greeting:    name,
		WeeklyUsage: weeklyUsage,
	}
}

func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	user := s.getUser(r)
	c := s.dashboards.User(user.ID)
	writeJSON(w, s.dashboardResponse(r.Context(), user.Name, c))
}

func (s *Server) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	user := s.getUser(r)
	var fields map[string]string
	if err := decodeBody(w, r, &fields); err != nil {
		writeJSONError(w, "invalid form", http.StatusBadRequest)
		return
	}

	c := s.dashboards.User(user.ID)
	if err := c.SetFields(fields); err != nil {
		if errors.Is(err, dashboard.ErrClosed) {
			writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.dashboardResponse(r.Context(), user.Name, c))
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	user := s.getUser(r)
	var req struct {
		Fields map[string]string `json:"fields"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}

	c := s.dashboards.User(user.ID)
	if len(req.Fields) > 0 {
		if err := c.SetFields(req.Fields); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	// a client going away must not abandon a running calculation
	ctx := context.WithoutCancel(r.Context())
	_, err := c.Calculate(ctx)
	var (
		verr *features.ValidationError
		perr *prediction.PredictionError
	)
	switch {
	case err == nil:
	case errors.Is(err, dashboard.ErrBusy), errors.Is(err, dashboard.ErrClosed):
		writeJSONError(w, err.Error(), http.StatusConflict)
		return
	case errors.As(err, &verr):
		writeJSONError(w, dashboard.UserMessage(err), http.StatusUnprocessableEntity)
		return
	case errors.As(err, &perr):
		writeJSONError(w, perr.UserMessage(), http.StatusBadGateway)
		return
	default:
		log.Ctx(ctx).ErrorContext(ctx, "calculation failed", slog.Any("error", err))
		writeJSONError(w, prediction.UserMessage, http.StatusBadGateway)
		return
	}
	writeJSON(w, s.dashboardResponse(ctx, user.Name, c))
}
