package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kitaverein/recon-backend/internal/api/dto"
	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

func (s *Server) listWarnings(c *gin.Context) {
	status := c.Query("status")
	switch status {
	case "", string(storage.WarningOpen), string(storage.WarningDismissed), string(storage.WarningResolved):
	default:
		c.JSON(http.StatusBadRequest, dto.ValidationError("unknown status filter: "+status))
		return
	}

	warnings, err := s.service.ListWarnings(storage.WarningStatus(status))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"warnings": warnings})
}

func (s *Server) dismissWarning(c *gin.Context) {
	var req dto.WarningUpdateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
			return
		}
	}

	if err := s.service.DismissWarning(c.Param("id"), req.Note); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(storage.WarningDismissed)})
}

func (s *Server) resolveWarning(c *gin.Context) {
	var req dto.WarningUpdateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
			return
		}
	}

	reminder, err := s.service.ResolveWarning(c.Param("id"), req.Note)
	if err != nil {
		s.writeError(c, err)
		return
	}

	response := gin.H{"status": string(storage.WarningResolved)}
	if reminder != nil {
		response["reminder_fee"] = reminder
	}
	c.JSON(http.StatusOK, response)
}
