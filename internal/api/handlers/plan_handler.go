package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/service"
)

type PlanHandler struct {
	service *service.PlanService
}

func NewPlanHandler(service *service.PlanService) *PlanHandler {
	return &PlanHandler{service: service}
}

func (h *PlanHandler) PrecheckScenario(c *gin.Context) {
	res, err := h.service.PrecheckScenario(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(resultStatus(res), res)
}

func (h *PlanHandler) SolveScenario(c *gin.Context) {
	run, res, err := h.service.SolveScenario(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{"result": res}
	if run != nil {
		body["run_id"] = run.ID
	}
	c.JSON(resultStatus(res), body)
}

func (h *PlanHandler) PrecheckSnapshot(c *gin.Context) {
	var in domain.SnapshotInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.service.PrecheckSnapshot(in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(resultStatus(res), res)
}

func (h *PlanHandler) SolveSnapshot(c *gin.Context) {
	var in domain.SnapshotInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.service.SolveSnapshot(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(resultStatus(res), res)
}

func (h *PlanHandler) ClearCache(c *gin.Context) {
	if err := h.service.ClearCache(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PlanHandler) ListRuns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	runs, err := h.service.ListRuns(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runs})
}

func (h *PlanHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("runId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *PlanHandler) ExportRun(c *gin.Context) {
	runID := c.Param("runId")
	data, err := h.service.ExportRun(c.Request.Context(), runID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="plan-`+runID+`.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}
