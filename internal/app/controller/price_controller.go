package controller

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hargapangan/pangan-monitor/internal/app/service"
	apperrors "github.com/hargapangan/pangan-monitor/internal/errors"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/middleware"
)

// MaxImageSize upper bound of a market price photo
const MaxImageSize = 5 * 1024 * 1024

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// PriceController national and market price endpoints
type PriceController struct {
	priceService service.PriceService
}

func NewPriceController(priceService service.PriceService) *PriceController {
	return &PriceController{
		priceService: priceService,
	}
}

// MarketPriceRequest market submission body; also accepted as multipart form fields
type MarketPriceRequest struct {
	CommodityID    uint    `json:"commodity_id" form:"commodity_id"`
	CommodityName  string  `json:"commodity_name" form:"commodity_name"`
	Unit           string  `json:"unit" form:"unit"`
	Category       string  `json:"category" form:"category"`
	Price          float64 `json:"price" form:"price"`
	Date           string  `json:"date" form:"date"`
	MarketName     string  `json:"market_name" form:"market_name"`
	MarketLocation string  `json:"market_location" form:"market_location"`
	Quality        string  `json:"quality" form:"quality"`
	Notes          string  `json:"notes" form:"notes"`
}

// GetCurrentPrices national prices
// GET /api/v1/prices/current?category=&page=&limit=
func (ctrl *PriceController) GetCurrentPrices(c *gin.Context) {
	page, ok := queryInt(c, "page")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	sess, _ := middleware.GetSession(c)
	list, err := ctrl.priceService.GetCurrentPrices(c.Request.Context(), sess, service.CurrentPricesQuery{
		Category: c.Query("category"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		apperrors.RespondWithServiceError(c, err, "price")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       list.Records,
		"dropped":    list.Dropped,
		"pagination": list.Pagination,
	})
}

// ListMarketPrices market submissions
// GET /api/v1/market-prices?commodity_id=&market_name=&start_date=&end_date=&page=&limit=
func (ctrl *PriceController) ListMarketPrices(c *gin.Context) {
	commodityID, ok := queryUint(c, "commodity_id")
	if !ok {
		return
	}
	page, ok := queryInt(c, "page")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	sess, _ := middleware.GetSession(c)
	list, err := ctrl.priceService.ListMarketPrices(c.Request.Context(), sess, hargaapi.MarketPricesQuery{
		CommodityID: commodityID,
		MarketName:  c.Query("market_name"),
		StartDate:   c.Query("start_date"),
		EndDate:     c.Query("end_date"),
		Page:        page,
		Limit:       limit,
	})
	if err != nil {
		apperrors.RespondWithServiceError(c, err, "market price")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       list.Records,
		"dropped":    list.Dropped,
		"pagination": list.Pagination,
	})
}

// CreateMarketPrice submits a market price
// POST /api/v1/market-prices (JSON, or multipart with an optional image)
func (ctrl *PriceController) CreateMarketPrice(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	in, ok := bindMarketPrice(c)
	if !ok {
		return
	}

	sess, _ := middleware.GetSession(c)
	record, err := ctrl.priceService.CreateMarketPrice(c.Request.Context(), sess, in)
	if err != nil {
		apperrors.RespondWithServiceError(c, err, "create market price")
		return
	}

	log.Info("Market price submitted", map[string]interface{}{
		"commodity_id": record.Commodity.ID,
		"market_name":  record.MarketName,
	})

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Harga pasar berhasil disimpan",
		"data":    record,
	})
}

// UpdateMarketPrice replaces a market submission
// PUT /api/v1/market-prices/:id
func (ctrl *PriceController) UpdateMarketPrice(c *gin.Context) {
	id, ok := paramID(c, "ID harga pasar tidak valid")
	if !ok {
		return
	}

	in, ok := bindMarketPrice(c)
	if !ok {
		return
	}

	sess, _ := middleware.GetSession(c)
	record, err := ctrl.priceService.UpdateMarketPrice(c.Request.Context(), sess, id, in)
	if err != nil {
		apperrors.RespondWithServiceError(c, err, "update market price")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Harga pasar berhasil diperbarui",
		"data":    record,
	})
}

// DeleteMarketPrice deletes a market submission; commodity_id names the room to refresh
// DELETE /api/v1/market-prices/:id?commodity_id=
func (ctrl *PriceController) DeleteMarketPrice(c *gin.Context) {
	id, ok := paramID(c, "ID harga pasar tidak valid")
	if !ok {
		return
	}
	commodityID, ok := queryUint(c, "commodity_id")
	if !ok {
		return
	}

	sess, _ := middleware.GetSession(c)
	if err := ctrl.priceService.DeleteMarketPrice(c.Request.Context(), sess, id, commodityID); err != nil {
		apperrors.RespondWithServiceError(c, err, "delete market price")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Harga pasar berhasil dihapus",
	})
}

func bindMarketPrice(c *gin.Context) (service.MarketPriceInput, bool) {
	var req MarketPriceRequest
	multipartForm := strings.HasPrefix(c.ContentType(), "multipart/form-data")

	var err error
	if multipartForm {
		err = c.ShouldBind(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Data yang dimasukkan tidak valid")
		return service.MarketPriceInput{}, false
	}

	in := service.MarketPriceInput{MarketPriceRequest: hargaapi.MarketPriceRequest{
		CommodityID:    req.CommodityID,
		CommodityName:  strings.TrimSpace(req.CommodityName),
		Unit:           req.Unit,
		Category:       req.Category,
		Price:          req.Price,
		Date:           strings.TrimSpace(req.Date),
		MarketName:     strings.TrimSpace(req.MarketName),
		MarketLocation: strings.TrimSpace(req.MarketLocation),
		Quality:        req.Quality,
		Notes:          req.Notes,
	}}

	if multipartForm {
		header, err := c.FormFile("image")
		if err == nil {
			file, ok := openUpload(c, header, MaxImageSize, allowedImageTypes)
			if !ok {
				return service.MarketPriceInput{}, false
			}
			in.Image = file
		}
	}
	return in, true
}

// openUpload checks an uploaded part and opens it for forwarding
func openUpload(c *gin.Context, header *multipart.FileHeader, maxSize int64, allowedTypes []string) (*hargaapi.File, bool) {
	if header.Size > maxSize {
		apperrors.BadRequest(c, apperrors.UploadFileTooLarge, "Ukuran file maksimal "+strconv.FormatInt(maxSize/(1024*1024), 10)+"MB")
		return nil, false
	}

	contentType := header.Header.Get("Content-Type")
	allowed := false
	for _, t := range allowedTypes {
		if contentType == t {
			allowed = true
			break
		}
	}
	if !allowed {
		apperrors.BadRequest(c, apperrors.UploadInvalidFileType, "Jenis file tidak didukung")
		return nil, false
	}

	file, err := header.Open()
	if err != nil {
		apperrors.RespondWithError(c, http.StatusBadRequest, apperrors.UploadFailed, "Gagal membaca file")
		return nil, false
	}
	// parts this small are held in memory by the multipart reader
	return &hargaapi.File{Name: header.Filename, ContentType: contentType, Reader: file}, true
}
