package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kitaverein/recon-backend/internal/api/dto"
	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

func (s *Server) listTransactions(c *gin.Context) {
	params := dto.DefaultTransactionListParams()
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil && limit > 0 {
		params.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && offset >= 0 {
		params.Offset = offset
	}
	params.State = c.Query("state")
	params.Search = c.Query("search")
	params.OrderBy = c.DefaultQuery("order_by", "booked_on")
	params.OrderDesc = c.DefaultQuery("order", "desc") != "asc"
	params.IncludeIgnored = c.Query("include_ignored") == "true"

	switch params.State {
	case "", string(storage.StateUnmatched), string(storage.StateMatched), string(storage.StatePartiallyMatched):
	default:
		c.JSON(http.StatusBadRequest, dto.ValidationError("unknown state filter: "+params.State))
		return
	}

	result, err := s.repo.ListTransactions(storage.TransactionFilters{
		State:          storage.MatchState(params.State),
		Search:         params.Search,
		Limit:          params.Limit,
		Offset:         params.Offset,
		OrderBy:        params.OrderBy,
		OrderDesc:      params.OrderDesc,
		IncludeIgnored: params.IncludeIgnored,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	response := dto.TransactionListResponse{
		Transactions: make([]dto.TransactionResponse, 0, len(result.Transactions)),
		TotalCount:   result.TotalCount,
		Limit:        result.Limit,
		Offset:       result.Offset,
	}
	for _, tx := range result.Transactions {
		response.Transactions = append(response.Transactions, dto.FromTransaction(tx))
	}

	c.JSON(http.StatusOK, response)
}

func (s *Server) getTransaction(c *gin.Context) {
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}

	tx, err := s.repo.GetTransaction(id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	allocations, err := s.repo.ListAllocations(id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TransactionDetailResponse{
		Transaction: dto.FromTransaction(tx),
		Allocations: allocations,
	})
}

func (s *Server) transactionSuggestions(c *gin.Context) {
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}

	report, err := s.service.SuggestionsForTransaction(id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) unmatch(c *gin.Context) {
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}

	var req dto.UnmatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
			return
		}
	}

	result, err := s.service.Unmatch(id, req.DeleteTransaction)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.UnmatchResponse{
		AllocationsRemoved: result.AllocationsRemoved,
		TransactionDeleted: result.TransactionDeleted,
	})
}

func (s *Server) dismiss(c *gin.Context) {
	id, ok := s.pathID(c, "id")
	if !ok {
		return
	}

	report, err := s.service.DismissTransaction(id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// pathID parses a numeric path parameter, writing the 400 itself on failure
func (s *Server) pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid "+name+" parameter"))
		return 0, false
	}
	return id, true
}
