package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sensorbus-core/internal/bus"
	"github.com/nerrad567/sensorbus-core/internal/catalogue"
	"github.com/nerrad567/sensorbus-core/internal/onewire"
)

// defaultScanReason tags scans triggered over HTTP.
const defaultScanReason = "api"

// ScanRequestBody is the optional JSON body of POST /sensors/scan.
type ScanRequestBody struct {
	Reason string `json:"reason,omitempty"`
}

// handleBusSnapshot returns the registry endpoint and group tables.
func (s *Server) handleBusSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Snapshot())
}

// handleBusMetrics returns the registry delivery counters.
func (s *Server) handleBusMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Metrics())
}

// handleListSensors returns every catalogued sensor.
func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := s.sensors.List(r.Context())
	if err != nil {
		s.logger.Error("listing sensors", "error", err)
		writeInternalError(w, "failed to list sensors")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sensors": sensors, "count": len(sensors)})
}

// handleGetSensor returns one sensor by ROM, e.g. /sensors/28-0316a2794dff.
func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	rom, err := onewire.ParseROM(chi.URLParam(r, "rom"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	sensor, err := s.sensors.Get(r.Context(), rom.String())
	if errors.Is(err, catalogue.ErrSensorNotFound) {
		writeNotFound(w, "sensor not found")
		return
	}
	if err != nil {
		s.logger.Error("getting sensor", "rom", rom.String(), "error", err)
		writeInternalError(w, "failed to get sensor")
		return
	}
	writeJSON(w, http.StatusOK, sensor)
}

// handleScan asks every poller on the control group for an immediate scan.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var body ScanRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if body.Reason == "" {
		body.Reason = defaultScanReason
	}

	err := s.ep.SendName(s.groups.Control, bus.ScanRequest{Reason: body.Reason})
	switch {
	case errors.Is(err, bus.ErrUnknownGroup):
		writeUnavailable(w, "no poller is listening for scan requests")
		return
	case errors.Is(err, bus.ErrNotConnected):
		writeUnavailable(w, "bus endpoint not connected")
		return
	case err != nil:
		s.logger.Error("sending scan request", "error", err)
		writeInternalError(w, "failed to send scan request")
		return
	}

	s.logger.Info("scan requested", "reason", body.Reason, "request_id", r.Context().Value(ctxKeyRequestID))
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "scan requested", "reason": body.Reason})
}
