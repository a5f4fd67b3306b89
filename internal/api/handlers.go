package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fintrack/billmatch-backend/internal/api/dto"
	"github.com/fintrack/billmatch-backend/internal/application/service"
	"github.com/fintrack/billmatch-backend/internal/domain/ledger"
	"github.com/fintrack/billmatch-backend/internal/infrastructure/storage"
)

// health handles GET /health.
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// runClear handles POST /api/clear - runs one clearing cycle.
// A cycle already in flight for the user answers 409; the caller retries
// on its next cycle.
func (s *Server) runClear(c *gin.Context) {
	var req dto.ClearRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid request body"))
			return
		}
	}

	cycle, err := s.service.RunCycle(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, service.ErrGenerationInFlight) {
			c.JSON(http.StatusConflict, dto.ConflictError("clearing cycle already running"))
			return
		}
		s.logger.Error("clearing cycle failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusOK, cycle)
}

// listBills handles GET /api/bills. ?unpaid=true restricts to unpaid.
func (s *Server) listBills(c *gin.Context) {
	unpaidOnly := c.Query("unpaid") == "true"

	bills, err := s.service.Bills(unpaidOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.BillListResponse{Bills: make([]dto.Bill, 0, len(bills)), Count: len(bills)}
	for _, bill := range bills {
		response.Bills = append(response.Bills, dto.FromBill(bill))
	}
	c.JSON(http.StatusOK, response)
}

// createBill handles POST /api/bills.
func (s *Server) createBill(c *gin.Context) {
	var req dto.Bill
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	bill, err := req.ToLedger()
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	if err := s.service.CreateBill(&bill); err != nil {
		if errors.Is(err, ledger.ErrInvalidRecord) {
			c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusCreated, dto.FromBill(&bill))
}

// deleteBill handles DELETE /api/bills/:id. Deleting an unpaid recurring
// instance records the period's skip marker before removal.
func (s *Server) deleteBill(c *gin.Context) {
	id := c.Param("id")

	if err := s.service.DeleteBill(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.NotFoundError("bill"))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.Status(http.StatusNoContent)
}

// listTemplates handles GET /api/templates.
func (s *Server) listTemplates(c *gin.Context) {
	tpls, err := s.service.Templates()
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.TemplateListResponse{Templates: make([]dto.Template, 0, len(tpls)), Count: len(tpls)}
	for _, tpl := range tpls {
		response.Templates = append(response.Templates, dto.FromTemplate(tpl))
	}
	c.JSON(http.StatusOK, response)
}

// createTemplate handles POST /api/templates. The first bill instance is
// generated immediately, due at the template's next occurrence.
func (s *Server) createTemplate(c *gin.Context) {
	var req dto.Template
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	tpl, err := req.ToLedger()
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	first, err := s.service.CreateTemplate(&tpl)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidRecord) {
			c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusCreated, dto.CreateTemplateResponse{
		Template:  dto.FromTemplate(&tpl),
		FirstBill: dto.FromBill(first),
	})
}

// deleteTemplate handles DELETE /api/templates/:id - cascades to unpaid
// instances, paid ones stay as history.
func (s *Server) deleteTemplate(c *gin.Context) {
	id := c.Param("id")

	if err := s.service.DeleteTemplate(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.NotFoundError("template"))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.Status(http.StatusNoContent)
}

// ingestTransactions handles POST /api/transactions.
func (s *Server) ingestTransactions(c *gin.Context) {
	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	txs := make([]ledger.Transaction, 0, len(req.Transactions))
	for _, t := range req.Transactions {
		tx, err := t.ToLedger()
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
			return
		}
		txs = append(txs, tx)
	}

	accepted, err := s.service.IngestTransactions(txs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusOK, dto.IngestResponse{Accepted: accepted})
}

// previewMatch handles POST /api/match/preview - scores one pair without
// touching storage.
func (s *Server) previewMatch(c *gin.Context) {
	var req dto.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	tx, err := req.Transaction.ToLedger()
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}
	bill, err := req.Bill.ToLedger()
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	c.JSON(http.StatusOK, s.service.PreviewMatch(tx, bill))
}

// listRuns handles GET /api/runs - recent clearing cycles, newest first.
func (s *Server) listRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := s.service.Runs(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// getStats handles GET /api/stats.
func (s *Server) getStats(c *gin.Context) {
	stats, err := s.service.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusOK, stats)
}
