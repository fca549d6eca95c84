package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/greenmobilitypass/tripdetect/internal/api/models"
	"github.com/greenmobilitypass/tripdetect/internal/api/response"
	"github.com/greenmobilitypass/tripdetect/internal/controller"
	"github.com/greenmobilitypass/tripdetect/internal/journey"
)

// DetectionHandler handles the detection lifecycle and debug endpoints.
type DetectionHandler struct {
	controller *controller.Controller
	perms      controller.PermissionChecker
}

// NewDetectionHandler creates a new DetectionHandler.
func NewDetectionHandler(ctl *controller.Controller, perms controller.PermissionChecker) *DetectionHandler {
	return &DetectionHandler{controller: ctl, perms: perms}
}

// Status handles GET /v1/detection - current pipeline status.
func (h *DetectionHandler) Status(w http.ResponseWriter, r *http.Request) {
	pending := 0
	if h.controller.IsRunning() {
		if n, err := h.controller.PendingCount(r.Context()); err == nil {
			pending = n
		}
	}

	response.JSON(w, r, http.StatusOK, models.DetectionStatus{
		Running:       h.controller.IsRunning(),
		Degraded:      h.controller.Degraded(),
		State:         h.controller.State().String(),
		DebugMode:     h.controller.DebugMode(),
		PendingCount:  pending,
		UnsavedCount:  h.controller.UnsavedCount(),
		DroppedEvents: h.controller.Hub().Dropped(),
		Time:          models.Timestamp(time.Now()),
	})
}

// Start handles POST /v1/detection/start.
func (h *DetectionHandler) Start(w http.ResponseWriter, r *http.Request) {
	err := h.controller.Start(r.Context())
	switch {
	case err == nil:
		h.Status(w, r)
	case errors.Is(err, controller.ErrAlreadyRunning):
		response.Conflict(w, r, "detection is already running")
	case errors.Is(err, controller.ErrPermissionDenied):
		response.Forbidden(w, r, err.Error())
	default:
		response.InternalError(w, r, "failed to start detection")
	}
}

// Stop handles POST /v1/detection/stop.
func (h *DetectionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	err := h.controller.Stop(r.Context())
	switch {
	case err == nil:
		h.Status(w, r)
	case errors.Is(err, controller.ErrNotRunning):
		response.Conflict(w, r, "detection is not running")
	default:
		response.InternalError(w, r, "failed to stop detection")
	}
}

// SetDebugMode handles PUT /v1/detection/debug.
func (h *DetectionHandler) SetDebugMode(w http.ResponseWriter, r *http.Request) {
	var input models.DebugModeRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	h.controller.SetDebugMode(input.Enabled)
	h.Status(w, r)
}

// SimulateTrip handles POST /v1/detection/simulate - inject a synthetic
// completed trip through the persistence and notification path.
func (h *DetectionHandler) SimulateTrip(w http.ResponseWriter, r *http.Request) {
	var input models.SimulateTripRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	j, err := h.controller.SimulateTrip(
		r.Context(),
		journey.TransportType(input.TransportType),
		time.Duration(input.DurationMinutes)*time.Minute,
	)
	switch {
	case err == nil:
		response.Created(w, r, "/v1/journeys/"+j.ID, models.JourneyFromDomain(j))
	case errors.Is(err, controller.ErrNotRunning):
		response.Conflict(w, r, "detection is not running")
	default:
		response.BadRequest(w, r, err.Error(), nil)
	}
}

// Permissions handles GET /v1/detection/permissions.
func (h *DetectionHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.perms.Check(r.Context())
	if err != nil {
		response.InternalError(w, r, "failed to check permissions")
		return
	}

	response.JSON(w, r, http.StatusOK, models.PermissionsStatus{
		Location:            perms.Location,
		ActivityRecognition: perms.ActivityRecognition,
		Notifications:       perms.Notifications,
		DetectionGranted:    perms.DetectionGranted(),
	})
}
