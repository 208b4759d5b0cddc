package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/appforge/internal/logging"
)

func (s *Server) getProject(c *gin.Context) {
	s.writeProject(c, c.Param("flowID"))
}

func (s *Server) getPreview(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		abort(c, http.StatusBadRequest, "query parameter id is required")
		return
	}
	s.writeProject(c, id)
}

func (s *Server) writeProject(c *gin.Context, flowID string) {
	project, err := s.service.Query(c.Request.Context(), flowID)
	if err != nil {
		s.logger.Error("project query failed",
			logging.FlowID(flowID),
			logging.Error(err))
		abort(c, http.StatusInternalServerError,
			fmt.Sprintf("%s: %v", ErrGetProject, err))
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) getHistory(c *gin.Context) {
	flowID := c.Param("flowID")
	entries, err := s.service.History(c.Request.Context(), flowID)
	if err != nil {
		s.logger.Error("history query failed",
			logging.FlowID(flowID),
			logging.Error(err))
		abort(c, http.StatusInternalServerError,
			fmt.Sprintf("%s: %v", ErrGetHistory, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project_id": flowID,
		"entries":    entries,
		"count":      len(entries),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.Lock()
	sockets := len(s.sockets)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"service":     "appforge",
		"active_runs": s.service.ActiveRuns(),
		"websockets":  sockets,
	})
}
