package controller

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hargapangan/pangan-monitor/internal/app/model"
	"github.com/hargapangan/pangan-monitor/internal/app/service"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/hargapangan/pangan-monitor/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupOverrideControllerTest(svc *stubOverrideService, role string) *gin.Engine {
	ctrl := NewOverrideController(svc)
	router := newTestRouter("42", role)
	router.POST("/overrides/preview", ctrl.Preview)
	router.POST("/overrides", ctrl.Submit)
	router.GET("/overrides", ctrl.History)
	router.POST("/overrides/evidence/presigned-url", ctrl.PresignEvidence)
	return router
}

func postJSON(router *gin.Engine, url string, payload interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestOverrideController_Preview(t *testing.T) {
	current := 10000.0
	svc := &stubOverrideService{eval: &reconcile.OverrideEvaluation{
		ProposedPrice:    16000,
		CurrentPrice:     &current,
		DeviationPercent: 60,
		Tier:             reconcile.TierRequiresAdmin,
		HasBaseline:      true,
	}}
	router := setupOverrideControllerTest(svc, "user")

	w := postJSON(router, "/overrides/preview", PreviewOverrideRequest{CommodityID: 1, OverridePrice: 16000})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tier":"requires-admin-approval"`)
}

func TestOverrideController_Submit(t *testing.T) {
	outcome := &service.OverrideOutcome{
		Submission: &model.OverrideSubmission{ID: 3, CommodityID: 1, Status: model.OverrideForwarded},
		Evaluation: reconcile.OverrideEvaluation{Tier: reconcile.TierAutoApproved},
		Message:    "Override berhasil diajukan",
	}

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{name: "forwarded", wantStatus: http.StatusCreated, wantMessage: "Override berhasil diajukan"},
		{
			name:        "backend rejection keeps its text",
			err:         &hargaapi.RejectedError{StatusCode: 409, Message: "Override untuk tanggal ini sudah ada"},
			wantStatus:  http.StatusConflict,
			wantMessage: "Override untuk tanggal ini sudah ada",
		},
		{
			name:       "validation",
			err:        reconcile.FieldErrors{"reason": "reason must be at least 10 characters"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubOverrideService{outcome: outcome, err: tt.err}
			router := setupOverrideControllerTest(svc, "user")

			w := postJSON(router, "/overrides", SubmitOverrideRequest{
				CommodityID:   1,
				OverridePrice: 12000,
				Reason:        "Harga di lapangan naik",
				SourceInfo:    "Survei",
			})
			assert.Equal(t, tt.wantStatus, w.Code)
			require.Len(t, svc.submitted, 1)
			assert.Equal(t, "42", svc.submitted[0].UserID)

			if tt.wantMessage != "" {
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.wantMessage, body["message"])
			}
		})
	}
}

func TestOverrideController_Submit_MultipartEvidence(t *testing.T) {
	svc := &stubOverrideService{outcome: &service.OverrideOutcome{
		Submission: &model.OverrideSubmission{ID: 1, CommodityID: 1},
	}}
	router := setupOverrideControllerTest(svc, "user")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("commodity_id", "1"))
	require.NoError(t, mw.WriteField("override_price", "12000"))
	require.NoError(t, mw.WriteField("reason", "Harga di lapangan naik"))
	require.NoError(t, mw.WriteField("source_info", "Survei"))
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="evidence"; filename="bukti.pdf"`)
	h.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/overrides", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, svc.submitted, 1)
	assert.Equal(t, 12000.0, svc.submitted[0].OverridePrice)
	require.NotNil(t, svc.submitted[0].Evidence)
	assert.Equal(t, "application/pdf", svc.submitted[0].Evidence.ContentType)
	assert.Equal(t, []byte("%PDF-1.4"), svc.evidence)
	// default message when the backend sent none
	assert.Contains(t, w.Body.String(), "Override berhasil diajukan")
}

func TestOverrideController_History(t *testing.T) {
	svc := &stubOverrideService{history: []model.OverrideSubmission{{ID: 1, UserID: "42"}}}

	router := setupOverrideControllerTest(svc, "user")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/overrides?commodity_id=1&status=rejected", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", svc.filter.UserID)
	assert.Equal(t, uint(1), svc.filter.CommodityID)
	assert.Equal(t, model.OverrideRejected, svc.filter.Status)

	router = setupOverrideControllerTest(svc, "admin")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/overrides", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", svc.filter.UserID)
}

func TestOverrideController_PresignEvidence(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "issued", wantStatus: http.StatusOK},
		{name: "too large", err: service.ErrEvidenceTooLarge, wantStatus: http.StatusBadRequest, wantCode: "UPLOAD_FILE_TOO_LARGE"},
		{name: "bad type", err: service.ErrInvalidEvidenceType, wantStatus: http.StatusBadRequest, wantCode: "UPLOAD_INVALID_FILE_TYPE"},
		{name: "disabled", err: service.ErrEvidenceStorageDisabled, wantStatus: http.StatusServiceUnavailable, wantCode: "INTERNAL_CONFIG_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubOverrideService{
				presigned: &storage.PresignedURLResponse{Key: "evidence/1/2025-03-10/a.pdf", ExpiresAt: time.Now()},
				err:       tt.err,
			}
			router := setupOverrideControllerTest(svc, "user")

			w := postJSON(router, "/overrides/evidence/presigned-url", PresignEvidenceRequest{
				CommodityID: 1,
				Filename:    "bukti.pdf",
				ContentType: "application/pdf",
				Size:        1024,
			})
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Contains(t, w.Body.String(), tt.wantCode)
			}
		})
	}

	router := setupOverrideControllerTest(&stubOverrideService{}, "user")
	w := postJSON(router, "/overrides/evidence/presigned-url", map[string]interface{}{"filename": "a.pdf"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
