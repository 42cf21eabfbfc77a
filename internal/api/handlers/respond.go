package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
	"github.com/andresuchdata/mixplan/backend-go/internal/planner"
	"github.com/andresuchdata/mixplan/backend-go/internal/repository"
	"github.com/andresuchdata/mixplan/backend-go/internal/service"
	"github.com/andresuchdata/mixplan/backend-go/internal/solver"
)

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "problems": verr.Problems})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDuplicateName):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoPlan):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, solver.ErrTimeLimitRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// resultStatus is the HTTP status of a planning result. Business outcomes such as an overloaded
// resource or an infeasible model are answers, not request failures.
func resultStatus(res *planner.Result) int {
	switch res.Outcome {
	case planner.OutcomeInvalid:
		return http.StatusUnprocessableEntity
	case planner.OutcomeBusy:
		return http.StatusConflict
	case planner.OutcomeUndefined:
		return http.StatusServiceUnavailable
	case planner.OutcomeFatal:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
}
