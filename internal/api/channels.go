package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-iobridge/internal/audit"
	"github.com/nerrad567/gray-logic-iobridge/internal/channel"
)

// setOutputRequest is the body of PUT /outputs/{deviceID}/{index}.
type setOutputRequest struct {
	State *bool `json:"state" validate:"required"`
	Force bool  `json:"force"`
}

// defaultsRequest is the body of PUT /outputs/{deviceID}/defaults.
// An empty pattern clears the device's defaults.
type defaultsRequest struct {
	Pattern *string `json:"pattern" validate:"required"`
}

// handleListChannels returns the live channels, optionally filtered by
// device_id and type (input or output).
func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	typ := r.URL.Query().Get("type")
	if typ != "" {
		if _, err := channel.ParseDirection(typ); err != nil {
			writeBadRequest(w, "type must be input or output")
			return
		}
	}

	all := s.registry.Channels()
	channels := make([]channel.Channel, 0, len(all))
	for _, ch := range all {
		if deviceID != "" && ch.DeviceID != deviceID {
			continue
		}
		if typ != "" && ch.Type != typ {
			continue
		}
		channels = append(channels, ch)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"channels": channels,
		"count":    len(channels),
	})
}

// handleSetOutput drives one output. The request id becomes the correlation
// id of the resulting state notification.
func (s *Server) handleSetOutput(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeBadRequest(w, "index must be a non-negative integer")
		return
	}

	var req setOutputRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	requestID := requestIDFrom(r.Context())
	changed, err := s.registry.SetOutputState(r.Context(), deviceID, index, *req.State, requestID, req.Force)
	s.recordAudit(r, audit.Entry{
		Action:   audit.ActionSetOutput,
		DeviceID: deviceID,
		Channel:  audit.IntPtr(index),
		Outcome:  audit.OutcomeOf(err),
		Details:  map[string]any{"state": *req.State, "force": req.Force, "changed": changed},
	})
	switch {
	case errors.Is(err, channel.ErrNotFound):
		writeNotFound(w, "output not attached")
		return
	case errors.Is(err, channel.ErrAdapter):
		s.logger.Warn("setting output failed",
			"device_id", deviceID,
			"channel", index,
			"request_id", requestID,
			"error", err,
		)
		writeBadGateway(w, err.Error())
		return
	case err != nil:
		s.logger.Error("setting output failed", "device_id", deviceID, "channel", index, "error", err)
		writeInternalError(w, "failed to set output")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":  deviceID,
		"channel":    index,
		"state":      *req.State,
		"changed":    changed,
		"request_id": requestID,
	})
}

// handleSetDefaults replaces a device's default output pattern.
func (s *Server) handleSetDefaults(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	var req defaultsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	requestID := requestIDFrom(r.Context())
	pattern := *req.Pattern
	policies := s.registry.SetDefaultOutputStates(r.Context(), deviceID, pattern, requestID)
	s.recordAudit(r, audit.Entry{
		Action:   audit.ActionSetDefaults,
		DeviceID: deviceID,
		Outcome:  audit.OutcomeOK,
		Details:  map[string]any{"pattern": pattern},
	})
	names := make([]string, len(policies))
	for i, p := range policies {
		names[i] = p.String()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":  deviceID,
		"pattern":    pattern,
		"defaults":   names,
		"request_id": requestID,
	})
}

// handleResync re-emits every known channel state. Notifications are
// delivered asynchronously, so the response is 202.
func (s *Server) handleResync(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r.Context())
	emitted := s.registry.GetStates(requestID)
	s.recordAudit(r, audit.Entry{
		Action:  audit.ActionResync,
		Outcome: audit.OutcomeOK,
		Details: map[string]any{"emitted": emitted},
	})
	writeJSON(w, http.StatusAccepted, map[string]any{
		"emitted":    emitted,
		"request_id": requestID,
	})
}
