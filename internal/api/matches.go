package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kitaverein/recon-backend/internal/api/dto"
	"github.com/kitaverein/recon-backend/internal/application/recon"
	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

func (s *Server) confirmMatches(c *gin.Context) {
	var req dto.ConfirmMatchesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	pairs := make([]recon.ConfirmPair, 0, len(req.Pairs))
	for _, pair := range req.Pairs {
		pairs = append(pairs, recon.ConfirmPair{
			TransactionID: pair.TransactionID,
			ExpectationID: pair.ExpectationID,
		})
	}

	report, err := s.service.ConfirmMatches(pairs)
	if err != nil {
		s.writeError(c, err)
		return
	}

	// Pairs can fail individually without failing the batch; 207 signals
	// a mixed outcome.
	status := http.StatusOK
	if len(report.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, report)
}

func (s *Server) createMatch(c *gin.Context) {
	var req dto.ConfirmPairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	report, err := s.service.ManualMatch(req.TransactionID, req.ExpectationID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) allocate(c *gin.Context) {
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}

	var req dto.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	splits := make([]storage.AllocationSplit, 0, len(req.Splits))
	for _, split := range req.Splits {
		splits = append(splits, storage.AllocationSplit{
			ExpectationID: split.ExpectationID,
			AmountCents:   split.AmountCents,
		})
	}

	result, err := s.service.Allocate(id, splits, storage.ReasonManual, req.AllowOverpayment)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"created":         result.Created,
		"already_existed": result.AlreadyExisted,
		"transaction":     dto.FromTransaction(result.Transaction),
	})
}

func (s *Server) rescan(c *gin.Context) {
	report, err := s.service.Rescan()
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
