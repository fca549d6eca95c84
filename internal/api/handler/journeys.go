// Package handler provides HTTP handlers for the trip detection API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/greenmobilitypass/tripdetect/internal/api/models"
	"github.com/greenmobilitypass/tripdetect/internal/api/response"
	"github.com/greenmobilitypass/tripdetect/internal/journey"
)

// JourneysHandler handles the journey review endpoints.
type JourneysHandler struct {
	service *journey.Service
}

// NewJourneysHandler creates a new JourneysHandler.
func NewJourneysHandler(service *journey.Service) *JourneysHandler {
	return &JourneysHandler{service: service}
}

// ListJourneys handles GET /v1/journeys - list stored journeys, newest
// departure first. ?status=pending narrows to journeys awaiting review.
func (h *JourneysHandler) ListJourneys(w http.ResponseWriter, r *http.Request) {
	var (
		journeys []*journey.LocalJourney
		err      error
	)

	switch status := r.URL.Query().Get("status"); status {
	case "":
		journeys, err = h.service.List(r.Context())
	case string(journey.StatusPending):
		journeys, err = h.service.ListPending(r.Context())
	default:
		response.BadRequest(w, r, "unknown status filter", []models.FieldError{
			{Field: "status", Message: "must be empty or \"pending\""},
		})
		return
	}
	if err != nil {
		response.InternalError(w, r, "failed to list journeys")
		return
	}

	response.JSON(w, r, http.StatusOK, models.JourneyListFromDomain(journeys))
}

// CreateJourney handles POST /v1/journeys - store a manually entered journey.
func (h *JourneysHandler) CreateJourney(w http.ResponseWriter, r *http.Request) {
	var input models.JourneyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	created, err := h.service.CreateManual(r.Context(), journey.CreateInput{
		TimeDeparture:  input.TimeDeparture.Time(),
		TimeArrival:    input.TimeArrival.Time(),
		DistanceKm:     input.DistanceKm,
		TransportType:  journey.TransportType(input.TransportType),
		PlaceDeparture: input.PlaceDeparture,
		PlaceArrival:   input.PlaceArrival,
	})
	if err != nil {
		writeJourneyError(w, r, err)
		return
	}

	response.Created(w, r, "/v1/journeys/"+created.ID, models.JourneyFromDomain(created))
}

// GetJourney handles GET /v1/journeys/{journeyId}.
func (h *JourneysHandler) GetJourney(w http.ResponseWriter, r *http.Request) {
	journeyID := chi.URLParam(r, "journeyId")

	j, err := h.service.Get(r.Context(), journeyID)
	if err != nil {
		writeJourneyError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.JourneyFromDomain(j))
}

// UpdateJourney handles PATCH /v1/journeys/{journeyId} - apply review
// corrections. Absent fields are left unchanged.
func (h *JourneysHandler) UpdateJourney(w http.ResponseWriter, r *http.Request) {
	journeyID := chi.URLParam(r, "journeyId")

	var input models.JourneyUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	fields := journey.UpdateFields{
		DistanceKm:     input.DistanceKm,
		PlaceDeparture: input.PlaceDeparture,
		PlaceArrival:   input.PlaceArrival,
	}
	if input.TransportType != nil {
		transport := journey.TransportType(*input.TransportType)
		fields.TransportType = &transport
	}

	updated, err := h.service.Update(r.Context(), journeyID, fields)
	if err != nil {
		writeJourneyError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.JourneyFromDomain(updated))
}

// MarkJourneySent handles POST /v1/journeys/{journeyId}/sent - record
// backend acceptance. Idempotent: repeating the call succeeds.
func (h *JourneysHandler) MarkJourneySent(w http.ResponseWriter, r *http.Request) {
	journeyID := chi.URLParam(r, "journeyId")

	if err := h.service.MarkSent(r.Context(), journeyID); err != nil {
		writeJourneyError(w, r, err)
		return
	}

	j, err := h.service.Get(r.Context(), journeyID)
	if err != nil {
		writeJourneyError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.JourneyFromDomain(j))
}

// DeleteJourney handles DELETE /v1/journeys/{journeyId}.
func (h *JourneysHandler) DeleteJourney(w http.ResponseWriter, r *http.Request) {
	journeyID := chi.URLParam(r, "journeyId")

	if err := h.service.Delete(r.Context(), journeyID); err != nil {
		writeJourneyError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// writeJourneyError maps journey service errors onto problem responses.
func writeJourneyError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *journey.ValidationError
	switch {
	case errors.Is(err, journey.ErrJourneyNotFound):
		response.NotFound(w, r, "journey not found")
	case errors.As(err, &validationErr):
		fieldErrors := make([]models.FieldError, 0, len(validationErr.Errors))
		for _, fe := range validationErr.Errors {
			fieldErrors = append(fieldErrors, models.FieldError{Field: fe.Field, Message: fe.Message})
		}
		response.BadRequest(w, r, "journey validation failed", fieldErrors)
	default:
		response.InternalError(w, r, "journey operation failed")
	}
}
