package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/appforge/internal/logging"
	"github.com/randalmurphal/appforge/internal/orchestrator"
	"github.com/randalmurphal/appforge/internal/runner"
)

func (s *Server) startRun(c *gin.Context) {
	var req orchestrator.TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, fmt.Sprintf("%s: %v", ErrInvalidJSON, err))
		return
	}

	ack, err := s.service.Trigger(c.Request.Context(), req)
	if err != nil {
		s.runError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

func (s *Server) resumeRun(c *gin.Context) {
	ack, err := s.service.Resume(c.Request.Context(), c.Param("runID"))
	if err != nil {
		s.runError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

func (s *Server) getRun(c *gin.Context) {
	runID := c.Param("runID")
	info, ok := s.service.Run(runID)
	if !ok {
		abort(c, http.StatusNotFound, fmt.Sprintf("%s: %s", ErrRunNotTracked, runID))
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) listInterrupted(c *gin.Context) {
	runs, err := s.service.Interrupted(c.Request.Context())
	if err != nil {
		s.runError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

func (s *Server) runError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidMode),
		errors.Is(err, orchestrator.ErrInstructionRequired),
		errors.Is(err, orchestrator.ErrFlowIDRequired):
		abort(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, orchestrator.ErrRunNotFound):
		abort(c, http.StatusNotFound, err.Error())
	case errors.Is(err, orchestrator.ErrRunActive),
		errors.Is(err, orchestrator.ErrRunFinished),
		errors.Is(err, orchestrator.ErrResumeDisabled):
		abort(c, http.StatusConflict, err.Error())
	case errors.Is(err, runner.ErrShuttingDown):
		abort(c, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("run request failed",
			slog.String("path", c.FullPath()),
			logging.Error(err))
		abort(c, http.StatusInternalServerError,
			fmt.Sprintf("%s: %v", ErrStartRun, err))
	}
}
