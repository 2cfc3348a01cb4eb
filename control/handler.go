package control

import (
	"net/http"

	"github.com/gin-gonic/gin"
	emulator "github.com/synaptecltd/sensorsim"
	"github.com/synaptecltd/sensorsim/anomaly"
	"go.uber.org/zap"
)

type handler struct {
	ctrl   *anomaly.Controller
	fleet  *emulator.Fleet
	logger *zap.Logger
}

type enableRequest struct {
	Rate *float64 `json:"rate" binding:"omitempty,gte=0,lte=1"`
}

type forceRequest struct {
	SensorID string `json:"sensor_id" binding:"required"`
	Category string `json:"category"` // looked up from the fleet when empty
	Type     string `json:"type" binding:"required"`
	Duration int    `json:"duration" binding:"gte=0"` // ticks, 0 draws from the catalog
}

func (h *handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.Status())
}

func (h *handler) enable(c *gin.Context) {
	var req enableRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	rate := anomaly.DefaultRate
	if req.Rate != nil {
		rate = *req.Rate
	}
	h.ctrl.Enable(rate)

	enabled, rate := h.ctrl.Enabled()
	c.JSON(http.StatusOK, gin.H{"enabled": enabled, "rate": rate})
}

func (h *handler) disable(c *gin.Context) {
	h.ctrl.Disable()
	enabled, rate := h.ctrl.Enabled()
	c.JSON(http.StatusOK, gin.H{"enabled": enabled, "rate": rate})
}

func (h *handler) force(c *gin.Context) {
	var req forceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Category == "" {
		category, ok := h.categoryOf(req.SensorID)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "category required for unknown sensor"})
			return
		}
		req.Category = category
	}

	if !h.ctrl.ForceInject(req.SensorID, req.Category, req.Type, req.Duration) {
		c.JSON(http.StatusNotFound, gin.H{"injected": false, "error": "unknown category or anomaly type"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"injected": true})
}

func (h *handler) categoryOf(sensorID string) (string, bool) {
	if h.fleet == nil {
		return "", false
	}
	for _, u := range h.fleet.Units() {
		if u.ID == sensorID {
			return string(u.Category), true
		}
	}
	return "", false
}

func (h *handler) clear(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cleared": h.ctrl.ClearAll()})
}

func (h *handler) sensors(c *gin.Context) {
	if h.fleet == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no fleet"})
		return
	}
	snapshot := h.fleet.Snapshot()
	c.JSON(http.StatusOK, gin.H{"count": len(snapshot), "sensors": snapshot})
}
