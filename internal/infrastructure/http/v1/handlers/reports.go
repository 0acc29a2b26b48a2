package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/reports"
	"stockledger/internal/infrastructure/export"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// ReportsHandler handles HTTP requests for reports.
type ReportsHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, service *reports.Service) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Alerts handles GET /stock/alerts.
func (h *ReportsHandler) Alerts(c *gin.Context) {
	warehouseID, err := dto.ParseOptionalID("warehouseId", c.Query("warehouseId"))
	if err != nil {
		h.Error(c, err)
		return
	}

	filter := reports.AlertFilter{WarehouseID: warehouseID}
	for _, t := range dto.SplitList(c.Query("types")) {
		filter.Types = append(filter.Types, reports.AlertType(t))
	}

	report, err := h.service.Alerts(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// BalanceSheet handles GET /stock/balance-sheet.
// format=xlsx streams a workbook instead of JSON.
func (h *ReportsHandler) BalanceSheet(c *gin.Context) {
	var (
		filter reports.BalanceSheetFilter
		err    error
	)
	if filter.WarehouseIDs, err = dto.ParseIDList("warehouseIds", c.Query("warehouseIds")); err != nil {
		h.Error(c, err)
		return
	}
	if filter.ProductIDs, err = dto.ParseIDList("productIds", c.Query("productIds")); err != nil {
		h.Error(c, err)
		return
	}
	filter.ExcludeZero = c.DefaultQuery("excludeZero", "true") == "true"

	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "xlsx" {
		h.Error(c, apperror.NewValidation("unsupported format").
			WithDetail("field", "format").
			WithDetail("value", format))
		return
	}

	sheet, err := h.service.BalanceSheet(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	if format == "json" {
		h.OK(c, sheet)
		return
	}

	f, err := export.BalanceSheet(sheet)
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	defer f.Close()

	c.Header("Content-Type", export.XLSXContentType)
	c.Header("Content-Disposition", "attachment; filename=\""+export.BalanceSheetFilename(sheet)+"\"")
	c.Header("Content-Transfer-Encoding", "binary")
	if err := f.Write(c.Writer); err != nil {
		h.Error(c, apperror.NewInternal(err))
	}
}

// Turnover handles GET /stock/turnover?from=&to=.
func (h *ReportsHandler) Turnover(c *gin.Context) {
	from, err := dto.ParseOptionalDate("from", c.Query("from"), false)
	if err != nil {
		h.Error(c, err)
		return
	}
	to, err := dto.ParseOptionalDate("to", c.Query("to"), true)
	if err != nil {
		h.Error(c, err)
		return
	}

	now := time.Now()
	filter := reports.TurnoverFilter{
		FromDate:    now.AddDate(0, -1, 0),
		ToDate:      now,
		IncludeZero: c.Query("includeZero") == "true",
	}
	if from != nil {
		filter.FromDate = *from
	}
	if to != nil {
		filter.ToDate = *to
	}
	if filter.WarehouseIDs, err = dto.ParseIDList("warehouseIds", c.Query("warehouseIds")); err != nil {
		h.Error(c, err)
		return
	}
	if filter.ProductIDs, err = dto.ParseIDList("productIds", c.Query("productIds")); err != nil {
		h.Error(c, err)
		return
	}

	report, err := h.service.Turnover(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}
