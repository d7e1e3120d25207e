package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/tpa/backend/internal/domain/shared/strategy"
)

// MethodLister lists the registered method strategies
type MethodLister interface {
	ListMethodStrategies() []strategy.MethodStrategy
}

// MethodHandler lists the supported transfer-pricing methods
type MethodHandler struct {
	BaseHandler
	registry MethodLister
}

// NewMethodHandler creates a new MethodHandler
func NewMethodHandler(registry MethodLister) *MethodHandler {
	return &MethodHandler{registry: registry}
}

// MethodResponse describes one supported transfer-pricing method
type MethodResponse struct {
	Method      string `json:"method" example:"TNMM ROS"`
	KPI         string `json:"kpi" example:"Return on Sales"`
	Strategy    string `json:"strategy" example:"tnmm_ros"`
	Description string `json:"description"`
}

// List godoc
// @ID           listTPAMethods
// @Summary      List transfer-pricing methods
// @Description  Returns every registered method with the KPI it measures
// @Tags         tpa
// @Produce      json
// @Success      200 {object} APIResponse[[]MethodResponse]
// @Router       /tpa/methods [get]
func (h *MethodHandler) List(c *gin.Context) {
	strategies := h.registry.ListMethodStrategies()
	out := make([]MethodResponse, 0, len(strategies))
	for _, s := range strategies {
		out = append(out, MethodResponse{
			Method:      s.Method().String(),
			KPI:         s.Method().KPI().String(),
			Strategy:    s.Name(),
			Description: s.Description(),
		})
	}
	h.Success(c, out)
}
