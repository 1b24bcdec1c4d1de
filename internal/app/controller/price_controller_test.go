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
	"github.com/hargapangan/pangan-monitor/internal/app/service"
	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPriceControllerTest(svc *stubPriceService) *gin.Engine {
	ctrl := NewPriceController(svc)
	router := newTestRouter("42", "user")
	router.GET("/prices/current", ctrl.GetCurrentPrices)
	router.GET("/market-prices", ctrl.ListMarketPrices)
	router.POST("/market-prices", ctrl.CreateMarketPrice)
	router.PUT("/market-prices/:id", ctrl.UpdateMarketPrice)
	router.DELETE("/market-prices/:id", ctrl.DeleteMarketPrice)
	return router
}

func sampleRecord() *reconcile.PriceRecord {
	return &reconcile.PriceRecord{
		ID:         5,
		Commodity:  reconcile.Commodity{ID: 1, Name: "Beras Medium", Unit: "kg", Category: reconcile.CategoryBeras},
		Price:      13000,
		Date:       time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Source:     reconcile.SourceMarketSubmission,
		MarketName: "Pasar Minggu",
	}
}

func TestPriceController_GetCurrentPrices(t *testing.T) {
	svc := &stubPriceService{list: &service.PriceList{Records: []reconcile.PriceRecord{*sampleRecord()}, Dropped: 2}}
	router := setupPriceControllerTest(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/prices/current?category=beras", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["dropped"])
	assert.Len(t, body["data"], 1)
	assert.Equal(t, "upstream-token", svc.session.Token)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/prices/current?page=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPriceController_CreateMarketPrice(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "created", wantStatus: http.StatusCreated},
		{
			name:       "field errors",
			err:        reconcile.FieldErrors{"market_name": "market name is required"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_INVALID_INPUT",
		},
		{
			name:       "backend rejection",
			err:        &hargaapi.RejectedError{StatusCode: 422, Message: "Komoditas tidak dikenal"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "UPSTREAM_REJECTED",
		},
		{
			name:       "backend down",
			err:        hargaapi.ErrNetwork,
			wantStatus: http.StatusBadGateway,
			wantCode:   "UPSTREAM_UNAVAILABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubPriceService{record: sampleRecord(), err: tt.err}
			router := setupPriceControllerTest(svc)

			body, _ := json.Marshal(MarketPriceRequest{
				CommodityID: 1,
				Price:       13000,
				Date:        "2025-03-10",
				MarketName:  "  Pasar Minggu ",
			})
			req := httptest.NewRequest(http.MethodPost, "/market-prices", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			require.Len(t, svc.created, 1)
			assert.Equal(t, "Pasar Minggu", svc.created[0].MarketName)

			if tt.wantCode != "" {
				var resp map[string]interface{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantCode, resp["error"])
			}
		})
	}
}

func marketPriceForm(t *testing.T, contentType string) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("commodity_id", "1"))
	require.NoError(t, mw.WriteField("price", "13000"))
	require.NoError(t, mw.WriteField("date", "2025-03-10"))
	require.NoError(t, mw.WriteField("market_name", "Pasar Minggu"))

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="foto.jpg"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestPriceController_CreateMarketPrice_Multipart(t *testing.T) {
	svc := &stubPriceService{record: sampleRecord()}
	router := setupPriceControllerTest(svc)

	body, contentType := marketPriceForm(t, "image/jpeg")
	req := httptest.NewRequest(http.MethodPost, "/market-prices", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, svc.created, 1)
	assert.Equal(t, uint(1), svc.created[0].CommodityID)
	assert.Equal(t, 13000.0, svc.created[0].Price)
	require.NotNil(t, svc.created[0].Image)
	assert.Equal(t, "foto.jpg", svc.created[0].Image.Name)
	assert.Equal(t, []byte("jpeg-bytes"), svc.image)

	body, contentType = marketPriceForm(t, "image/gif")
	req = httptest.NewRequest(http.MethodPost, "/market-prices", body)
	req.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "UPLOAD_INVALID_FILE_TYPE")
	assert.Len(t, svc.created, 1)
}

func TestPriceController_DeleteMarketPrice(t *testing.T) {
	svc := &stubPriceService{}
	router := setupPriceControllerTest(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/market-prices/7?commodity_id=3", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [][2]uint{{7, 3}}, svc.deleted)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/market-prices/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.err = hargaapi.ErrNotFound
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/market-prices/8", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
