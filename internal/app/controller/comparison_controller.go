package controller

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hargapangan/pangan-monitor/internal/app/service"
	apperrors "github.com/hargapangan/pangan-monitor/internal/errors"
	"github.com/hargapangan/pangan-monitor/internal/middleware"
	"github.com/hargapangan/pangan-monitor/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ComparisonController comparison, export and trend endpoints
type ComparisonController struct {
	comparisonService service.ComparisonService
	trendService      service.TrendService
}

func NewComparisonController(comparisonService service.ComparisonService, trendService service.TrendService) *ComparisonController {
	return &ComparisonController{
		comparisonService: comparisonService,
		trendService:      trendService,
	}
}

// Compare national vs. market prices
// GET /api/v1/market-prices/compare?commodity_id=&date=&start_date=&end_date=
func (ctrl *ComparisonController) Compare(c *gin.Context) {
	result, ok := ctrl.compare(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Results,
		"summary": result.Summary,
		"meta": gin.H{
			"start_date":       result.StartDate,
			"end_date":         result.EndDate,
			"dropped_national": result.DroppedNational,
			"dropped_market":   result.DroppedMarket,
		},
	})
}

// ExportCompare the same comparison as an XLSX workbook
// GET /api/v1/market-prices/compare/export
func (ctrl *ComparisonController) ExportCompare(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	comparison, ok := ctrl.compare(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.WriteComparisonXLSX(&buf, report.ComparisonExport{
		Comparison: comparison.Comparison,
		StartDate:  comparison.StartDate,
		EndDate:    comparison.EndDate,
	}); err != nil {
		log.Error("Failed to build comparison workbook", err)
		apperrors.RespondWithServiceError(c, err, "export comparison")
		return
	}

	filename := fmt.Sprintf("perbandingan-harga-%s_%s.xlsx", comparison.StartDate, comparison.EndDate)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// GetTrends national vs. market chart series
// GET /api/v1/market-prices/trends?commodity_id=&days=
func (ctrl *ComparisonController) GetTrends(c *gin.Context) {
	commodityID, ok := queryUint(c, "commodity_id")
	if !ok {
		return
	}
	days, ok := queryInt(c, "days")
	if !ok {
		return
	}

	sess, _ := middleware.GetSession(c)
	trend, err := ctrl.trendService.GetTrend(c.Request.Context(), sess, commodityID, days)
	if err != nil {
		apperrors.RespondWithServiceError(c, err, "price trend")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    trend,
	})
}

func (ctrl *ComparisonController) compare(c *gin.Context) (*service.ComparisonReport, bool) {
	commodityID, ok := queryUint(c, "commodity_id")
	if !ok {
		return nil, false
	}

	sess, _ := middleware.GetSession(c)
	result, err := ctrl.comparisonService.Compare(c.Request.Context(), sess, service.CompareQuery{
		CommodityID: commodityID,
		Date:        c.Query("date"),
		StartDate:   c.Query("start_date"),
		EndDate:     c.Query("end_date"),
	})
	if err != nil {
		apperrors.RespondWithServiceError(c, err, "compare prices")
		return nil, false
	}
	return result, true
}
