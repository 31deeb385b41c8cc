package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kitaverein/recon-backend/internal/api/dto"
)

// importStatement accepts a multipart upload with the statement file under
// the "file" field and an optional "imported_by" field.
func (s *Server) importStatement(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("multipart field 'file' is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("could not open uploaded file"))
		return
	}
	defer func() { _ = file.Close() }()

	importedBy := c.PostForm("imported_by")

	report, err := s.service.ImportStatement(fileHeader.Filename, importedBy, file)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, report)
}

func (s *Server) listBatches(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 {
		limit = 20
	}

	batches, err := s.service.ListBatches(limit)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

func (s *Server) getBatch(c *gin.Context) {
	batch, err := s.service.GetBatch(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}
