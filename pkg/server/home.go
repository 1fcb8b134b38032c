package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/home"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

// loadHome returns the stored home of userID or a fresh default one.
func (s *Server) loadHome(ctx context.Context, userID string) (types.Home, error) {
	h, ok, err := s.storage.GetHome(ctx, userID)
	if err != nil {
		return types.Home{}, err
	}
	if !ok {
		log.Ctx(ctx).DebugContext(ctx, "no stored home, using defaults")
		return home.Default(), nil
	}
	return h, nil
}

// updateHome loads, modifies and saves the home of userID.
func (s *Server) updateHome(ctx context.Context, userID string, fn func(*types.Home) error) (types.Home, error) {
	s.homeMu.Lock()
	defer s.homeMu.Unlock()

	h, err := s.loadHome(ctx, userID)
	if err != nil {
		return types.Home{}, fmt.Errorf("failed to load home: %w", err)
	}
	if err := fn(&h); err != nil {
		return types.Home{}, err
	}
	if err := s.storage.SetHome(ctx, userID, h); err != nil {
		return types.Home{}, fmt.Errorf("failed to save home: %w", err)
	}
	return h, nil
}

// writeHomeError maps home errors onto status codes.
func writeHomeError(ctx context.Context, w http.ResponseWriter, err error, internal string) {
	if errors.Is(err, home.ErrNotFound) {
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	var invalid *invalidInputError
	if errors.As(err, &invalid) {
		writeJSONError(w, invalid.Error(), http.StatusBadRequest)
		return
	}
	log.Ctx(ctx).ErrorContext(ctx, internal, slog.Any("error", err))
	writeJSONError(w, internal, http.StatusInternalServerError)
}

// invalidInputError marks an error caused by the request.
type invalidInputError struct {
	err error
}

func (e *invalidInputError) Error() string { return e.err.Error() }
func (e *invalidInputError) Unwrap() error { return e.err }

type devicesResponse struct {
	Devices []types.Device   `json:"devices"`
	Stats   home.DeviceStats `json:"stats"`
	Rooms   []string         `json:"rooms"`
	Filter  home.Filter      `json:"filter"`
}

func newDevicesResponse(h types.Home, f home.Filter) devicesResponse {
	return devicesResponse{
		Devices: home.FilterDevices(h.Devices, f),
		Stats:   home.DevicesStats(h.Devices),
		Rooms:   home.DeviceRooms(h.Devices),
		Filter:  f,
	}
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	filter, err := home.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h, err := s.loadHome(r.Context(), s.getUser(r).ID)
	if err != nil {
		writeHomeError(r.Context(), w, err, "failed to load home")
		return
	}
	writeJSON(w, newDevicesResponse(h, filter))
}

func (s *Server) handleToggleDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string `json:"id"`
		Filter string `json:"filter"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.ID == "" {
		writeJSONError(w, "device id required", http.StatusBadRequest)
		return
	}
	filter, err := home.ParseFilter(req.Filter)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var toggled types.Device
	h, err := s.updateHome(r.Context(), s.getUser(r).ID, func(h *types.Home) error {
		var err error
		toggled, err = home.ToggleDevice(h, req.ID)
		return err
	})
	if err != nil {
		writeHomeError(r.Context(), w, err, "failed to toggle device")
		return
	}
	log.Ctx(r.Context()).InfoContext(
		r.Context(),
		"device toggled",
		slog.String("deviceID", toggled.ID),
		slog.Bool("status", toggled.Status),
	)
	writeJSON(w, newDevicesResponse(h, filter))
}

type roomsResponse struct {
	Rooms   []types.Room       `json:"rooms"`
	Stats   home.RoomStats     `json:"stats"`
	Presets map[string]float64 `json:"presets"`
	MinTemp float64            `json:"minTemp"`
	MaxTemp float64            `json:"maxTemp"`
	Step    float64            `json:"step"`
}

func newRoomsResponse(h types.Home) roomsResponse {
	presets := make(map[string]float64, 3)
	for _, p := range []home.Preset{home.PresetComfort, home.PresetNight, home.PresetEco} {
		t, _ := home.PresetTemp(p)
		presets[string(p)] = t
	}
	return roomsResponse{
		Rooms:   h.Rooms,
		Stats:   home.RoomsStats(h.Rooms),
		Presets: presets,
		MinTemp: home.MinTargetTemp,
		MaxTemp: home.MaxTargetTemp,
		Step:    home.TargetTempStep,
	}
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	h, err := s.loadHome(r.Context(), s.getUser(r).ID)
	if err != nil {
		writeHomeError(r.Context(), w, err, "failed to load home")
		return
	}
	writeJSON(w, newRoomsResponse(h))
}

func (s *Server) handleSetRoomTarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID         string   `json:"id"`
		TargetTemp *float64 `json:"targetTemp"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.ID == "" || req.TargetTemp == nil {
		writeJSONError(w, "room id and targetTemp required", http.StatusBadRequest)
		return
	}
	if err := home.ValidateTarget(*req.TargetTemp); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	h, err := s.updateHome(r.Context(), s.getUser(r).ID, func(h *types.Home) error {
		_, err := home.SetRoomTarget(h, req.ID, *req.TargetTemp)
		return err
	})
	if err != nil {
		writeHomeError(r.Context(), w, err, "failed to set room target")
		return
	}
	writeJSON(w, newRoomsResponse(h))
}

func (s *Server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preset string `json:"preset"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.Preset == "" {
		writeJSONError(w, "preset required", http.StatusBadRequest)
		return
	}

	h, err := s.updateHome(r.Context(), s.getUser(r).ID, func(h *types.Home) error {
		if err := home.ApplyPreset(h, home.Preset(req.Preset)); err != nil {
			return &invalidInputError{err: err}
		}
		return nil
	})
	if err != nil {
		writeHomeError(r.Context(), w, err, "failed to apply preset")
		return
	}
	writeJSON(w, newRoomsResponse(h))
}
