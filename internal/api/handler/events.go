package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/greenmobilitypass/tripdetect/internal/api/models"
	"github.com/greenmobilitypass/tripdetect/internal/api/response"
	"github.com/greenmobilitypass/tripdetect/internal/controller"
)

// EventsHandler streams detection events over Server-Sent Events. Trip and
// state events always flow; diagnostic events only arrive while debug mode
// is enabled.
type EventsHandler struct {
	controller *controller.Controller
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(ctl *controller.Controller) *EventsHandler {
	return &EventsHandler{controller: ctl}
}

type stateChangeEvent struct {
	From   string           `json:"from"`
	To     string           `json:"to"`
	Reason string           `json:"reason"`
	At     models.Timestamp `json:"at"`
}

type diagnosticEvent struct {
	Kind   string           `json:"kind"`
	Detail string           `json:"detail"`
	At     models.Timestamp `json:"at"`
}

// Stream handles GET /v1/events - an SSE stream of detection events. The
// stream stays open until the client disconnects.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalError(w, r, "streaming not supported")
		return
	}

	hub := h.controller.Hub()
	trips, cancelTrips := hub.SubscribeTrips(16)
	defer cancelTrips()
	states, cancelStates := hub.SubscribeStates(16)
	defer cancelStates()
	diags, cancelDiags := hub.SubscribeDiagnostics(64)
	defer cancelDiags()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case j := <-trips:
			writeEvent(w, "trip", models.JourneyFromDomain(&j))
		case change := <-states:
			writeEvent(w, "state", stateChangeEvent{
				From:   change.From.String(),
				To:     change.To.String(),
				Reason: change.Reason,
				At:     models.Timestamp(change.At),
			})
		case d := <-diags:
			writeEvent(w, "diagnostic", diagnosticEvent{
				Kind:   d.Kind,
				Detail: d.Detail,
				At:     models.Timestamp(d.At),
			})
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
