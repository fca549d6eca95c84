package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/greenmobilitypass/tripdetect/internal/activity"
	"github.com/greenmobilitypass/tripdetect/internal/api/models"
	"github.com/greenmobilitypass/tripdetect/internal/api/response"
	"github.com/greenmobilitypass/tripdetect/internal/controller"
	"github.com/greenmobilitypass/tripdetect/internal/location"
)

// IngestHandler handles the sensor ingest endpoints. The host platform
// pushes raw activity transitions and GPS fixes here; normalization and
// filtering happen in the adapters.
type IngestHandler struct {
	controller *controller.Controller
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(ctl *controller.Controller) *IngestHandler {
	return &IngestHandler{controller: ctl}
}

// IngestActivity handles POST /v1/ingest/activity.
func (h *IngestHandler) IngestActivity(w http.ResponseWriter, r *http.Request) {
	var input models.ActivityIngest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	err := h.controller.IngestActivity(activity.RawTransition{
		Activity:             input.Activity,
		Transition:           input.Transition,
		ElapsedRealtimeNanos: input.ElapsedRealtimeNanos,
		Confidence:           input.Confidence,
	})
	if errors.Is(err, controller.ErrNotRunning) {
		response.Conflict(w, r, "detection is not running")
		return
	}

	// Malformed transitions are dropped by the adapter, not rejected here:
	// the sensor feed is fire-and-forget for the host.
	response.JSON(w, r, http.StatusAccepted, nil)
}

// IngestLocation handles POST /v1/ingest/location.
func (h *IngestHandler) IngestLocation(w http.ResponseWriter, r *http.Request) {
	var input models.LocationIngest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	err := h.controller.IngestFix(location.RawFix{
		Lat:             input.Lat,
		Lon:             input.Lon,
		AccuracyMeters:  input.AccuracyMeters,
		TimestampMillis: input.TimestampMillis,
	})
	if errors.Is(err, controller.ErrNotRunning) {
		response.Conflict(w, r, "detection is not running")
		return
	}

	response.JSON(w, r, http.StatusAccepted, nil)
}
