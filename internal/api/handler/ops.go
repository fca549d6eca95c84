package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/greenmobilitypass/tripdetect/internal/api/models"
	"github.com/greenmobilitypass/tripdetect/internal/api/response"
	"github.com/greenmobilitypass/tripdetect/internal/controller"
)

// ReadyChecker reports whether a dependency is ready to serve.
type ReadyChecker func(ctx context.Context) error

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version    string
	buildTime  string
	controller *controller.Controller
	storeReady ReadyChecker
}

// NewOpsHandler creates a new OpsHandler. storeReady may be nil for an
// in-memory store.
func NewOpsHandler(version, buildTime string, ctl *controller.Controller, storeReady ReadyChecker) *OpsHandler {
	return &OpsHandler{
		version:    version,
		buildTime:  buildTime,
		controller: ctl,
		storeReady: storeReady,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. Fails while
// the journey store is unreachable.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.storeReady != nil {
		if err := h.storeReady(r.Context()); err != nil {
			response.JSON(w, r, http.StatusServiceUnavailable, models.Health{
				Status: models.HealthStatusFail,
				Time:   models.Timestamp(time.Now()),
				Details: map[string]interface{}{
					"store": err.Error(),
				},
			})
			return
		}
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status - subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	storeStatus := models.HealthStatusOK
	var storeDetail *string
	if h.storeReady != nil {
		if err := h.storeReady(r.Context()); err != nil {
			storeStatus = models.HealthStatusFail
			msg := err.Error()
			storeDetail = &msg
		}
	}

	engineStatus := models.HealthStatusOK
	if !h.controller.IsRunning() {
		engineStatus = models.HealthStatusDegraded
	}
	if h.controller.UnsavedCount() > 0 {
		engineStatus = models.HealthStatusDegraded
	}

	overall := models.HealthStatusOK
	if storeStatus != models.HealthStatusOK {
		overall = models.HealthStatusFail
	} else if engineStatus != models.HealthStatusOK {
		overall = models.HealthStatusDegraded
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status: overall,
		Time:   models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{
			{Name: "journey-store", Status: storeStatus, Detail: storeDetail},
			{Name: "detection-engine", Status: engineStatus},
		},
	})
}
