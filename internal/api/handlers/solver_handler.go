package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/mixplan/backend-go/internal/solver"
)

// SolverHandler exposes the local engine so other planner instances can use it as their
// remote engine.
type SolverHandler struct {
	adapter  *solver.Adapter
	defaults solver.Options
}

func NewSolverHandler(adapter *solver.Adapter, defaults solver.Options) *SolverHandler {
	return &SolverHandler{adapter: adapter, defaults: defaults}
}

func (h *SolverHandler) Submit(c *gin.Context) {
	var req solver.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.Program.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := req.Options
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = h.defaults.TimeLimit
	}

	out, err := h.adapter.Submit(c.Request.Context(), req.Program, opts)
	if err != nil {
		log.Error().Err(err).Str("program", req.Program.Name).Msg("solver submission failed")
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
