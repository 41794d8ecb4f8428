package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/adaptive/internal/adaptive"
	"github.com/GriffinCanCode/adaptive/internal/infrastructure/resilience"
)

// Version is reported by the root and health endpoints
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	registry   *Registry
	logger     *zap.Logger
	instanceID string
	started    time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(registry *Registry, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		registry:   registry,
		logger:     logger,
		instanceID: uuid.NewString(),
		started:    time.Now(),
	}
}

// ExecutorSummary is one entry of the executor listing
type ExecutorSummary struct {
	Name         string `json:"name"`
	Mode         string `json:"mode"`
	Baseline     string `json:"baseline"`
	Strategies   int    `json:"strategies"`
	Validated    int    `json:"validated"`
	OpenCircuits int    `json:"open_circuits"`
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Adaptive Execution Service",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"instance_id": h.instanceID,
		"version":     Version,
		"uptime":      time.Since(h.started).Round(time.Second).String(),
		"executors":   h.registry.Len(),
	})
}

// ListExecutors summarises every registered executor
func (h *Handlers) ListExecutors(c *gin.Context) {
	executors := h.registry.List()
	out := make([]ExecutorSummary, 0, len(executors))
	for _, e := range executors {
		out = append(out, summarize(e.GetStats()))
	}
	c.JSON(http.StatusOK, gin.H{
		"executors": out,
		"count":     len(out),
	})
}

// GetExecutor returns the full stats of one executor
func (h *Handlers) GetExecutor(c *gin.Context) {
	e, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, e.GetStats())
}

// SetMode switches the learning mode of one executor
func (h *Handlers) SetMode(c *gin.Context) {
	e, ok := h.lookup(c)
	if !ok {
		return
	}

	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, err := adaptive.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	previous, err := e.SetMode(mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"executor": e.Name(),
		"previous": previous.String(),
		"mode":     mode.String(),
	})
}

// Persist saves the learned strategies of one executor
func (h *Handlers) Persist(c *gin.Context) {
	e, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := e.Persist(c.Request.Context()); err != nil {
		h.logger.Error("Persist failed", zap.String("executor", e.Name()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"executor": e.Name(), "persisted": true})
}

func (h *Handlers) lookup(c *gin.Context) (Inspectable, bool) {
	name := c.Param("name")
	e, ok := h.registry.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "executor not found: " + name})
		return nil, false
	}
	return e, true
}

func summarize(s adaptive.Stats) ExecutorSummary {
	sum := ExecutorSummary{
		Name:       s.Executor,
		Mode:       s.Mode,
		Baseline:   s.Baseline,
		Strategies: len(s.Strategies),
	}
	for _, st := range s.Strategies {
		if st.Validated {
			sum.Validated++
		}
		if st.Breaker == resilience.StateOpen.String() {
			sum.OpenCircuits++
		}
	}
	return sum
}
