package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souqline/fulfillment-service/internal/clients"
	"github.com/souqline/fulfillment-service/internal/config"
	"github.com/souqline/fulfillment-service/internal/events"
	"github.com/souqline/fulfillment-service/internal/models"
	"github.com/souqline/fulfillment-service/internal/optical"
	"github.com/souqline/fulfillment-service/internal/repository"
	"github.com/souqline/fulfillment-service/internal/service"
)

type staticClassifier struct {
	verdict clients.Verdict
	err     error
}

func (s staticClassifier) Classify(ctx context.Context, frame []byte) (clients.Verdict, error) {
	return s.verdict, s.err
}

func newTestRouter(classifier service.FrameClassifier) (*gin.Engine, *repository.MemoryLedger) {
	gin.SetMode(gin.TestMode)

	ledger := repository.NewMemoryLedger()
	cfg := &config.Config{}
	engine := service.NewAuthEngine(ledger, nil, events.NoopPublisher{}, cfg)
	pipeline := service.NewScanPipeline(optical.NewDecoder(), classifier, engine)
	h := NewHandlers(engine, pipeline, cfg)

	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/api/v1/orders", h.ListVendorOrders)
	r.GET("/api/v1/orders/:id", h.GetOrder)
	r.GET("/api/v1/orders/:id/qr", h.OrderQRImage)
	r.POST("/api/v1/orders/:id/accept", h.AcceptOrder)
	r.POST("/api/v1/orders/:id/reject", h.RejectOrder)
	r.POST("/api/v1/orders/:id/complete", h.CompleteOrder)
	r.POST("/api/v1/scan", h.Scan)
	return r, ledger
}

func seedPendingOrder(ledger *repository.MemoryLedger, id string) {
	ledger.PutOrder(&models.Order{
		ID:       id,
		BuyerID:  "buyer-1",
		VendorID: "vendor-1",
		Items: []models.OrderItem{
			{ProductID: "P1", Title: "Widget", Quantity: 2, Price: 10.0},
		},
		Status:    models.OrderStatusPending,
		OrderDate: time.Now(),
	})
	ledger.PutProduct(&models.Product{ID: "P1", Title: "Widget", Stock: 5})
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(staticClassifier{verdict: clients.VerdictIntact})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "fulfillment-service", resp["service"])
}

func TestAcceptRequiresConfirmation(t *testing.T) {
	r, ledger := newTestRouter(staticClassifier{verdict: clients.VerdictIntact})
	seedPendingOrder(ledger, "O1")

	w := postJSON(r, "/api/v1/orders/O1/accept", `{}`)

	require.Equal(t, http.StatusConflict, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "confirmation_required", resp["status"])

	order, err := ledger.GetOrder(context.Background(), "O1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status, "order mutated without confirmation")
}

func TestAcceptOrder(t *testing.T) {
	r, ledger := newTestRouter(staticClassifier{verdict: clients.VerdictIntact})
	seedPendingOrder(ledger, "O1")

	w := postJSON(r, "/api/v1/orders/O1/accept", `{"confirm": true}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, string(models.OrderStatusAccepted), resp["status"])
	assert.Equal(t, "/api/v1/orders/O1/qr", resp["qr_url"])

	order, err := ledger.GetOrder(context.Background(), "O1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAccepted, order.Status)
}

func TestAcceptUnknownOrder(t *testing.T) {
	r, _ := newTestRouter(staticClassifier{verdict: clients.VerdictIntact})

	w := postJSON(r, "/api/v1/orders/missing/accept", `{"confirm": true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRejectOrder(t *testing.T) {
	r, ledger := newTestRouter(staticClassifier{verdict: clients.VerdictIntact})
	seedPendingOrder(ledger, "O2")

	w := postJSON(r, "/api/v1/orders/O2/reject", `{"confirm": true}`)
	require.Equal(t, http.StatusOK, w.Code)

	_, err := ledger.GetOrder(context.Background(), "O2")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// Accepting the rejected order now fails.
	w = postJSON(r, "/api/v1/orders/O2/accept", `{"confirm": true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderQRImage(t *testing.T) {
	r, ledger := newTestRouter(staticClassifier{verdict: clients.VerdictIntact})
	seedPendingOrder(ledger, "O1")

	require.Equal(t, http.StatusOK, postJSON(r, "/api/v1/orders/O1/accept", `{"confirm": true}`).Code)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/O1/qr", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")))
}

func scanFrame(t *testing.T, r *gin.Engine, frame []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "snapshot.png")
	require.NoError(t, err)
	_, err = fw.Write(frame)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)
	return w
}

func TestScanAuthenticatesStoredQR(t *testing.T) {
	r, ledger := newTestRouter(staticClassifier{verdict: clients.VerdictIntact})
	seedPendingOrder(ledger, "O1")

	require.Equal(t, http.StatusOK, postJSON(r, "/api/v1/orders/O1/accept", `{"confirm": true}`).Code)

	secret, err := ledger.GetSecret(context.Background(), "O1")
	require.NoError(t, err)

	w := scanFrame(t, r, secret.QRImage)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody(t, w)
	assert.Equal(t, string(service.OutcomeAuthenticated), resp["outcome"])
	order := resp["order"].(map[string]interface{})
	assert.Equal(t, "O1", order["id"])
	assert.InDelta(t, 20.0, order["total_price"].(float64), 0.001)
}

func TestScanDamagedPackage(t *testing.T) {
	r, ledger := newTestRouter(staticClassifier{verdict: clients.VerdictDamaged})
	seedPendingOrder(ledger, "O1")

	require.Equal(t, http.StatusOK, postJSON(r, "/api/v1/orders/O1/accept", `{"confirm": true}`).Code)

	secret, err := ledger.GetSecret(context.Background(), "O1")
	require.NoError(t, err)

	w := scanFrame(t, r, secret.QRImage)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody(t, w)
	assert.Equal(t, string(service.OutcomeDamaged), resp["outcome"])
	assert.Nil(t, resp["order"])
}

func TestScanRejectsMissingFile(t *testing.T) {
	r, _ := newTestRouter(staticClassifier{verdict: clients.VerdictIntact})

	w := postJSON(r, "/api/v1/scan", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompleteOrder(t *testing.T) {
	r, ledger := newTestRouter(staticClassifier{verdict: clients.VerdictIntact})
	seedPendingOrder(ledger, "O1")

	require.Equal(t, http.StatusOK, postJSON(r, "/api/v1/orders/O1/accept", `{"confirm": true}`).Code)

	secret, err := ledger.GetSecret(context.Background(), "O1")
	require.NoError(t, err)

	w := postJSON(r, "/api/v1/orders/O1/complete", `{"secret_key": "`+secret.SecretKey+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody(t, w)
	assert.Equal(t, string(models.OrderStatusCompleted), resp["status"])

	product, err := ledger.GetProduct(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, 3, product.Stock)

	// A second completion is refused and stock stays put.
	w = postJSON(r, "/api/v1/orders/O1/complete", `{"secret_key": "`+secret.SecretKey+`"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	product, err = ledger.GetProduct(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, 3, product.Stock)
}

func TestCompleteWithWrongKey(t *testing.T) {
	r, ledger := newTestRouter(staticClassifier{verdict: clients.VerdictIntact})
	seedPendingOrder(ledger, "O1")

	require.Equal(t, http.StatusOK, postJSON(r, "/api/v1/orders/O1/accept", `{"confirm": true}`).Code)

	w := postJSON(r, "/api/v1/orders/O1/complete", `{"secret_key": "wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListVendorOrders(t *testing.T) {
	r, ledger := newTestRouter(staticClassifier{verdict: clients.VerdictIntact})
	seedPendingOrder(ledger, "O1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders?vendor_id=vendor-1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, float64(1), resp["count"])
}

func TestListVendorOrdersRequiresVendorID(t *testing.T) {
	r, _ := newTestRouter(staticClassifier{verdict: clients.VerdictIntact})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
