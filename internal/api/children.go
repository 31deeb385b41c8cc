package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kitaverein/recon-backend/internal/api/dto"
)

func (s *Server) getFee(c *gin.Context) {
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}

	fee, err := s.repo.GetExpectation(id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	allocations, err := s.repo.ListAllocationsByExpectation(id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"fee": fee, "allocations": allocations})
}

func (s *Server) listChildFees(c *gin.Context) {
	childID, ok := s.pathID(c, "id")
	if !ok {
		return
	}

	fees, err := s.repo.ListExpectationsByChild(childID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"fees": fees})
}

func (s *Server) listChildIBANs(c *gin.Context) {
	childID, ok := s.pathID(c, "id")
	if !ok {
		return
	}

	entries, err := s.service.ListTrustedIBANs(childID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ibans": entries})
}

func (s *Server) childSuggestions(c *gin.Context) {
	childID, ok := s.pathID(c, "id")
	if !ok {
		return
	}

	reports, err := s.service.SuggestionsForChild(childID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"suggestions": reports})
}

func (s *Server) removeChildIBAN(c *gin.Context) {
	childID, ok := s.pathID(c, "id")
	if !ok {
		return
	}

	iban := c.Param("iban")
	if iban == "" {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("iban parameter is required"))
		return
	}

	if err := s.service.RemoveTrustedIBAN(iban, childID); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": iban})
}
