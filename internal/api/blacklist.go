package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kitaverein/recon-backend/internal/api/dto"
)

func (s *Server) listBlacklist(c *gin.Context) {
	entries, err := s.service.ListBlacklist()
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"blacklist": entries})
}

func (s *Server) removeFromBlacklist(c *gin.Context) {
	iban := c.Param("iban")
	if iban == "" {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("iban parameter is required"))
		return
	}

	if err := s.service.RemoveFromBlacklist(iban); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": iban})
}
