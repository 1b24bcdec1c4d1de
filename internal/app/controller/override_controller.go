package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hargapangan/pangan-monitor/internal/app/model"
	"github.com/hargapangan/pangan-monitor/internal/app/repository"
	"github.com/hargapangan/pangan-monitor/internal/app/service"
	apperrors "github.com/hargapangan/pangan-monitor/internal/errors"
	"github.com/hargapangan/pangan-monitor/internal/middleware"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/hargapangan/pangan-monitor/internal/storage"
)

// OverrideController manual price override endpoints
type OverrideController struct {
	overrideService service.OverrideService
}

func NewOverrideController(overrideService service.OverrideService) *OverrideController {
	return &OverrideController{
		overrideService: overrideService,
	}
}

// PreviewOverrideRequest proposed price to classify
type PreviewOverrideRequest struct {
	CommodityID   uint     `json:"commodity_id"`
	OverridePrice float64  `json:"override_price"`
	CurrentPrice  *float64 `json:"current_price"`
}

// SubmitOverrideRequest override body; also accepted as multipart form fields
type SubmitOverrideRequest struct {
	CommodityID   uint     `json:"commodity_id" form:"commodity_id"`
	OverridePrice float64  `json:"override_price" form:"override_price"`
	CurrentPrice  *float64 `json:"current_price" form:"current_price"`
	Reason        string   `json:"reason" form:"reason"`
	SourceInfo    string   `json:"source_info" form:"source_info"`
	Date          string   `json:"date" form:"date"`
	EvidenceKey   string   `json:"evidence_key" form:"evidence_key"`
}

// PresignEvidenceRequest evidence file to upload directly to storage
type PresignEvidenceRequest struct {
	CommodityID uint   `json:"commodity_id" binding:"required"`
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	Size        int64  `json:"size" binding:"required,gt=0"`
}

// Preview classifies a proposed override without submitting it
// POST /api/v1/overrides/preview
func (ctrl *OverrideController) Preview(c *gin.Context) {
	var req PreviewOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Data yang dimasukkan tidak valid")
		return
	}

	sess, _ := middleware.GetSession(c)
	eval, err := ctrl.overrideService.Preview(c.Request.Context(), sess, req.CommodityID, req.OverridePrice, req.CurrentPrice)
	if err != nil {
		apperrors.RespondWithServiceError(c, err, "override preview")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    eval,
	})
}

// Submit forwards an override to the price backend
// POST /api/v1/overrides (JSON, or multipart with an optional evidence file)
func (ctrl *OverrideController) Submit(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req SubmitOverrideRequest
	multipartForm := strings.HasPrefix(c.ContentType(), "multipart/form-data")
	var err error
	if multipartForm {
		err = c.ShouldBind(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Data yang dimasukkan tidak valid")
		return
	}

	userID, _ := middleware.GetUserID(c)
	in := service.OverrideSubmitInput{
		OverrideInput: reconcile.OverrideInput{
			CommodityID:   req.CommodityID,
			OverridePrice: req.OverridePrice,
			Reason:        req.Reason,
			SourceInfo:    req.SourceInfo,
			Date:          strings.TrimSpace(req.Date),
		},
		UserID:       userID,
		CurrentPrice: req.CurrentPrice,
		EvidenceKey:  strings.TrimSpace(req.EvidenceKey),
	}

	if multipartForm {
		if header, err := c.FormFile("evidence"); err == nil {
			file, ok := openUpload(c, header, storage.MaxEvidenceSize, storage.AllowedEvidenceTypes)
			if !ok {
				return
			}
			in.Evidence = file
		}
	}

	sess, _ := middleware.GetSession(c)
	outcome, err := ctrl.overrideService.Submit(c.Request.Context(), sess, in)
	if err != nil {
		if errors.Is(err, service.ErrInvalidEvidenceType) {
			apperrors.BadRequest(c, apperrors.UploadInvalidFileType, "Jenis file bukti tidak didukung")
			return
		}
		apperrors.RespondWithServiceError(c, err, "submit override")
		return
	}

	log.Info("Override submitted", map[string]interface{}{
		"submission_id": outcome.Submission.ID,
		"commodity_id":  outcome.Submission.CommodityID,
		"tier":          outcome.Evaluation.Tier,
	})

	message := outcome.Message
	if message == "" {
		message = "Override berhasil diajukan"
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": message,
		"data":    outcome,
	})
}

// History lists audited overrides; non-admins only see their own
// GET /api/v1/overrides?commodity_id=&status=&page=&page_size=
func (ctrl *OverrideController) History(c *gin.Context) {
	commodityID, ok := queryUint(c, "commodity_id")
	if !ok {
		return
	}
	page, ok := queryInt(c, "page")
	if !ok {
		return
	}
	pageSize, ok := queryInt(c, "page_size")
	if !ok {
		return
	}

	filter := repository.OverrideFilter{
		CommodityID: commodityID,
		Status:      model.OverrideStatus(c.Query("status")),
		Page:        page,
		PageSize:    pageSize,
	}
	if role, _ := middleware.GetUserRole(c); role != "admin" {
		filter.UserID, _ = middleware.GetUserID(c)
	}

	submissions, total, err := ctrl.overrideService.History(filter)
	if err != nil {
		apperrors.RespondWithServiceError(c, err, "override history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    submissions,
		"total":   total,
	})
}

// PresignEvidence issues an upload URL for an evidence file
// POST /api/v1/overrides/evidence/presigned-url
func (ctrl *OverrideController) PresignEvidence(c *gin.Context) {
	var req PresignEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Data yang dimasukkan tidak valid")
		return
	}

	presigned, err := ctrl.overrideService.PresignEvidence(c.Request.Context(), req.CommodityID, req.Filename, req.ContentType, req.Size)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEvidenceTooLarge):
			apperrors.BadRequest(c, apperrors.UploadFileTooLarge, "Ukuran file bukti maksimal 5MB")
		case errors.Is(err, service.ErrInvalidEvidenceType):
			apperrors.BadRequest(c, apperrors.UploadInvalidFileType, "Jenis file bukti tidak didukung")
		case errors.Is(err, service.ErrEvidenceStorageDisabled):
			apperrors.RespondWithError(c, http.StatusServiceUnavailable, apperrors.InternalConfigError, "Penyimpanan bukti belum dikonfigurasi")
		default:
			apperrors.RespondWithServiceError(c, err, "upload evidence")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    presigned,
	})
}
