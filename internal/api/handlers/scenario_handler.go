package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/service"
)

type ScenarioHandler struct {
	service *service.ScenarioService
}

func NewScenarioHandler(service *service.ScenarioService) *ScenarioHandler {
	return &ScenarioHandler{service: service}
}

func (h *ScenarioHandler) CreateScenario(c *gin.Context) {
	var in domain.SnapshotInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	sc, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sc)
}

func (h *ScenarioHandler) ListScenarios(c *gin.Context) {
	scenarios, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": scenarios})
}

func (h *ScenarioHandler) GetScenario(c *gin.Context) {
	sc, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h *ScenarioHandler) ReplaceScenario(c *gin.Context) {
	var in domain.SnapshotInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	sc, err := h.service.Replace(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h *ScenarioHandler) DeleteScenario(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ScenarioHandler) AddProduct(c *gin.Context) {
	var in domain.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	p, err := h.service.AddProduct(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *ScenarioHandler) UpdateProduct(c *gin.Context) {
	var in domain.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	p, err := h.service.UpdateProduct(c.Request.Context(), c.Param("id"), c.Param("productId"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ScenarioHandler) RemoveProduct(c *gin.Context) {
	if err := h.service.RemoveProduct(c.Request.Context(), c.Param("id"), c.Param("productId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type capacityRequest struct {
	Capacity *float64 `json:"capacity" binding:"required"`
}

func (h *ScenarioHandler) UpdateCapacity(c *gin.Context) {
	var req capacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	r, err := h.service.UpdateCapacity(c.Request.Context(), c.Param("id"), c.Param("resourceId"), *req.Capacity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *ScenarioHandler) AddConstraint(c *gin.Context) {
	var in domain.ConstraintInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	cc, err := h.service.AddConstraint(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cc)
}

func (h *ScenarioHandler) RemoveConstraint(c *gin.Context) {
	if err := h.service.RemoveConstraint(c.Request.Context(), c.Param("id"), c.Param("constraintId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ScenarioHandler) ClearConstraints(c *gin.Context) {
	if err := h.service.ClearConstraints(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
