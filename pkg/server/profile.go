package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/account"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/storage"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

// BreakdownItem is one slice of the consumption breakdown chart.
type BreakdownItem struct {
	Name    string `json:"name"`
	Percent int    `json:"percent"`
}

// consumptionBreakdown is the sample split shown on the profile.
var consumptionBreakdown = []BreakdownItem{
	{Name: "Climate", Percent: 45},
	{Name: "Lighting", Percent: 20},
	{Name: "Appliances", Percent: 25},
	{Name: "Entertainment", Percent: 10},
}

type profileResponse struct {
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Initials    string            `json:"initials"`
	MemberSince time.Time         `json:"memberSince"`
	Preferences types.Preferences `json:"preferences"`
	Breakdown   []BreakdownItem   `json:"breakdown"`
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	prefs, err := storage.PreferencesFor(s.storage, user.ID).GetPreferences(ctx)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to get preferences, using defaults", slog.Any("error", err))
		prefs = types.DefaultPreferences()
	}
	writeJSON(w, profileResponse{
		Name:        user.Name,
		Email:       user.Email,
		Initials:    account.Initials(user.Name),
		MemberSince: user.CreatedAt,
		Preferences: prefs,
		Breakdown:   consumptionBreakdown,
	})
}
