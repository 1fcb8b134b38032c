package server

import (
	"log/slog"
	"net/http"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/notify"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/storage"
)

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	user := s.getUser(r)
	prefs, err := storage.PreferencesFor(s.storage, user.ID).GetPreferences(r.Context())
	if err != nil {
		log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to get preferences", slog.Any("error", err))
		writeJSONError(w, "failed to get preferences", http.StatusInternalServerError)
		return
	}
	writeJSON(w, prefs)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	store := storage.PreferencesFor(s.storage, user.ID)

	// start from what is stored so partial updates keep the other value
	prefs, err := store.GetPreferences(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get preferences", slog.Any("error", err))
		writeJSONError(w, "failed to get preferences", http.StatusInternalServerError)
		return
	}
	if err := decodeBody(w, r, &prefs); err != nil {
		writeJSONError(w, "invalid preferences", http.StatusBadRequest)
		return
	}
	if err := prefs.Validate(); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := store.SetPreferences(ctx, prefs); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save preferences", slog.Any("error", err))
		writeJSONError(w, "failed to save preferences", http.StatusInternalServerError)
		return
	}

	log.Ctx(ctx).InfoContext(
		ctx,
		"preferences updated",
		slog.Float64("tariffPerKWH", prefs.TariffPerKWH),
		slog.Float64("co2Factor", prefs.CO2Factor),
	)
	s.publish(ctx, user.ID, notify.New(notify.LevelSuccess, "Preferences saved", "Your tariff and CO2 factor were updated"))
	writeJSON(w, prefs)
}
