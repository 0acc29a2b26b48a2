package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"stockledger/internal/app/apptest"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/infrastructure/export"
	"stockledger/internal/infrastructure/http/v1/middleware"
	"stockledger/internal/infrastructure/observability"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	env    *apptest.Env
	router *gin.Engine
}

func newTestServer(t *testing.T, opts ...func(*RouterConfig)) *testServer {
	t.Helper()
	env := apptest.New(t)
	cfg := RouterConfig{
		Services:           env.Services,
		Idempotency:        env.Repos.Idempotency,
		IdempotencyEnabled: true,
		Metrics:            observability.NewMetrics(),
		Development:        true,
		Version:            "test",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	router, err := NewRouter(cfg)
	require.NoError(t, err)
	return &testServer{env: env, router: router}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorBody {
	t.Helper()
	var body middleware.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

type balanceBody struct {
	Quantity     types.Quantity `json:"quantity"`
	ReservedQty  types.Quantity `json:"reservedQty"`
	AvailableQty types.Quantity `json:"availableQty"`
	AvgCostPrice types.Money    `json:"avgCostPrice"`
}

type movementBody struct {
	Movement struct {
		ID         id.ID          `json:"id"`
		StockAfter types.Quantity `json:"stockAfter"`
	} `json:"movement"`
	UpdatedStock balanceBody `json:"updatedStock"`
	Replayed     bool        `json:"replayed"`
}

func receipt(productID, warehouseID id.ID, qty string) map[string]any {
	return map[string]any{
		"movementType": "goods_receipt",
		"productId":    productID,
		"warehouseId":  warehouseID,
		"quantity":     qty,
		"unitCost":     "12.50",
	}
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))

	rec = s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/api/v1/products", nil)

	rec := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `stockledger_http_requests_total{code="200",method="GET",route="/api/v1/products"} 1`)
}

func TestRecordMovement(t *testing.T) {
	s := newTestServer(t)
	p := s.env.Product(t, "TILE-1")
	w := s.env.Warehouse(t, "WH-1")

	rec := s.do(t, http.MethodPost, "/api/v1/movements", receipt(p, w, "10"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[movementBody](t, rec)
	assert.Equal(t, types.Qty(10), res.UpdatedStock.Quantity)
	assert.Equal(t, types.Qty(10), res.UpdatedStock.AvailableQty)
	assert.True(t, types.MustMoney("12.5").Equal(res.UpdatedStock.AvgCostPrice))
	assert.Equal(t, types.Qty(10), res.Movement.StockAfter)

	rec = s.do(t, http.MethodGet, "/api/v1/stock/"+p.String()+"/"+w.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	single := decode[balanceBody](t, rec)
	assert.Equal(t, types.Qty(10), single.Quantity)
	assert.Equal(t, types.Qty(10), single.AvailableQty)

	rec = s.do(t, http.MethodGet, "/api/v1/stock?warehouseId="+w.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[struct {
		Items      []balanceBody `json:"items"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, types.Qty(10), list.Items[0].AvailableQty)
	assert.Equal(t, int64(1), list.Pagination.Total)

	rec = s.do(t, http.MethodGet, "/api/v1/movements?productId="+p.String()+"&type=goods_receipt", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	movements := decode[struct {
		Items []struct {
			ID id.ID `json:"id"`
		} `json:"items"`
	}](t, rec)
	require.Len(t, movements.Items, 1)
	assert.Equal(t, res.Movement.ID, movements.Items[0].ID)

	rec = s.do(t, http.MethodPost, "/api/v1/movements", map[string]any{
		"movementType": "reservation",
		"productId":    p,
		"warehouseId":  w,
		"quantity":     "4",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reserved := decode[movementBody](t, rec).UpdatedStock
	assert.Equal(t, types.Qty(10), reserved.Quantity)
	assert.Equal(t, types.Qty(4), reserved.ReservedQty)
	assert.Equal(t, types.Qty(6), reserved.AvailableQty)
}

func TestRecordMovement_Validation(t *testing.T) {
	s := newTestServer(t)
	p := s.env.Product(t, "TILE-1")
	w := s.env.Warehouse(t, "WH-1")

	body := receipt(p, w, "10")
	body["movementType"] = "teleport"
	rec := s.do(t, http.MethodPost, "/api/v1/movements", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", errBody.Error)
	assert.Equal(t, http.StatusBadRequest, errBody.Status)

	rec = s.do(t, http.MethodPost, "/api/v1/movements", `{"movementType":"goods_receipt"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/stock/not-a-uuid/"+w.String(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordMovement_InsufficientStock(t *testing.T) {
	s := newTestServer(t)
	p := s.env.Product(t, "TILE-1")
	w := s.env.Warehouse(t, "WH-1")
	s.env.Receive(t, p, w, 3, "10")

	rec := s.do(t, http.MethodPost, "/api/v1/movements", map[string]any{
		"movementType": "goods_issue",
		"productId":    p,
		"warehouseId":  w,
		"quantity":     5,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decodeError(t, rec)
	assert.Equal(t, "INSUFFICIENT_STOCK", errBody.Error)
	assert.EqualValues(t, 3, errBody.Details["available"])
	assert.EqualValues(t, 5, errBody.Details["requested"])

	assert.Equal(t, types.Qty(3), s.env.Balance(t, p, w).Quantity)
}

func TestIdempotencyReplay(t *testing.T) {
	s := newTestServer(t)
	p := s.env.Product(t, "TILE-1")
	w := s.env.Warehouse(t, "WH-1")

	first := s.do(t, http.MethodPost, "/api/v1/movements", receipt(p, w, "10"), middleware.HeaderIdempotencyKey, "grn-42")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := s.do(t, http.MethodPost, "/api/v1/movements", receipt(p, w, "10"), middleware.HeaderIdempotencyKey, "grn-42")
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	assert.Equal(t, types.Qty(10), s.env.Balance(t, p, w).Quantity)

	mismatch := s.do(t, http.MethodPost, "/api/v1/movements", receipt(p, w, "11"), middleware.HeaderIdempotencyKey, "grn-42")
	assert.Equal(t, http.StatusConflict, mismatch.Code, mismatch.Body.String())
}

func TestMovementKeyReplay_WithoutHTTPStore(t *testing.T) {
	s := newTestServer(t, func(cfg *RouterConfig) { cfg.IdempotencyEnabled = false })
	p := s.env.Product(t, "TILE-1")
	w := s.env.Warehouse(t, "WH-1")

	first := s.do(t, http.MethodPost, "/api/v1/movements", receipt(p, w, "10"), middleware.HeaderIdempotencyKey, "grn-43")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := s.do(t, http.MethodPost, "/api/v1/movements", receipt(p, w, "10"), middleware.HeaderIdempotencyKey, "grn-43")
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())
	res := decode[movementBody](t, second)
	assert.True(t, res.Replayed)
	assert.Equal(t, decode[movementBody](t, first).Movement.ID, res.Movement.ID)

	assert.Equal(t, types.Qty(10), s.env.Balance(t, p, w).Quantity)
}

type productBody struct {
	ID       id.ID  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
	Category string `json:"category"`
}

func TestProductCRUD(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/products", map[string]any{
		"code":     "TILE-100",
		"name":     "Porcelain 60x60",
		"category": "flooring",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[productBody](t, rec)
	assert.Equal(t, 1, created.Version)
	path := "/api/v1/products/" + created.ID.String()

	rec = s.do(t, http.MethodGet, "/api/v1/products/by-code/TILE-100", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, created.ID, decode[productBody](t, rec).ID)

	update := map[string]any{
		"name":     "Porcelain 60x60 Matt",
		"category": "flooring",
		"version":  1,
	}
	rec = s.do(t, http.MethodPut, path, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[productBody](t, rec)
	assert.Equal(t, "Porcelain 60x60 Matt", updated.Name)
	assert.Equal(t, 2, updated.Version)

	rec = s.do(t, http.MethodPut, path, update)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONCURRENT_MODIFICATION", decodeError(t, rec).Error)

	delete(update, "version")
	rec = s.do(t, http.MethodPut, path, update)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/products?search=porcelain", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[struct {
		Items []productBody `json:"items"`
	}](t, rec).Items, 1)

	rec = s.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGoodsReceiptFlow(t *testing.T) {
	s := newTestServer(t)
	p := s.env.Product(t, "TILE-1")
	w := s.env.Warehouse(t, "WH-1")

	rec := s.do(t, http.MethodPost, "/api/v1/grn", map[string]any{
		"warehouseId": w,
		"items": []map[string]any{
			{"productId": p, "quantity": 5, "unitCost": "10"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decode[struct {
		ID     id.ID  `json:"id"`
		Status string `json:"status"`
	}](t, rec)
	assert.Equal(t, "draft", doc.Status)

	rec = s.do(t, http.MethodPut, "/api/v1/grn", map[string]any{"id": doc.ID, "action": "explode"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Error)

	rec = s.do(t, http.MethodPut, "/api/v1/grn", map[string]any{"id": doc.ID, "action": "receive"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "received", decode[struct {
		Status string `json:"status"`
	}](t, rec).Status)
	assert.Equal(t, types.Qty(5), s.env.Balance(t, p, w).Quantity)

	rec = s.do(t, http.MethodGet, "/api/v1/grn?id="+doc.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/grn?id="+doc.ID.String(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestBinLocations(t *testing.T) {
	s := newTestServer(t)
	w := s.env.Warehouse(t, "WH-1")

	rec := s.do(t, http.MethodPost, "/api/v1/bin-locations", map[string]any{
		"bulkCreate":     true,
		"warehouseId":    w,
		"zones":          []string{"A"},
		"racksPerZone":   1,
		"shelvesPerRack": 2,
		"binsPerShelf":   2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 4, decode[struct {
		Count int `json:"count"`
	}](t, rec).Count)

	rec = s.do(t, http.MethodGet, "/api/v1/bin-locations?warehouseId="+w.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[struct {
		Items []struct {
			ID   id.ID  `json:"id"`
			Code string `json:"code"`
		} `json:"items"`
	}](t, rec)
	require.Len(t, list.Items, 4)

	rec = s.do(t, http.MethodGet, "/api/v1/bin-locations?hierarchy=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[struct {
		Warehouses []struct {
			WarehouseID id.ID `json:"warehouseId"`
		} `json:"warehouses"`
	}](t, rec).Warehouses, 1)

	rec = s.do(t, http.MethodPut, "/api/v1/bin-locations", map[string]any{
		"id":     list.Items[0].ID,
		"action": "block",
		"reason": "racking repair",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "blocked", decode[struct {
		Status string `json:"status"`
	}](t, rec).Status)

	rec = s.do(t, http.MethodPut, "/api/v1/bin-locations", map[string]any{"action": "teleport"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/bin-locations", map[string]any{"action": "block"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *RouterConfig) { cfg.RateLimitPerMinute = 2 })

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodGet, "/api/v1/warehouses", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/v1/warehouses", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, middleware.CodeRateLimited, decodeError(t, rec).Error)

	// Probes are outside the limited group.
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil).Code)
}

func TestBalanceSheetExport(t *testing.T) {
	s := newTestServer(t)
	p := s.env.Product(t, "TILE-1")
	w := s.env.Warehouse(t, "WH-1")
	s.env.Receive(t, p, w, 4, "25")

	rec := s.do(t, http.MethodGet, "/api/v1/stock/balance-sheet", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sheet := decode[struct {
		Rows          []struct{}     `json:"rows"`
		TotalQuantity types.Quantity `json:"totalQuantity"`
	}](t, rec)
	assert.Len(t, sheet.Rows, 1)
	assert.Equal(t, types.Qty(4), sheet.TotalQuantity)

	rec = s.do(t, http.MethodGet, "/api/v1/stock/balance-sheet?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.XLSXContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "balance-sheet-")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.BalanceSheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rec = s.do(t, http.MethodGet, "/api/v1/stock/balance-sheet?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStockAlerts(t *testing.T) {
	s := newTestServer(t)
	p := s.env.Product(t, "TILE-1")
	w := s.env.Warehouse(t, "WH-1")
	s.env.Receive(t, p, w, 1, "10")
	s.do(t, http.MethodPost, "/api/v1/movements", map[string]any{
		"movementType": "goods_issue",
		"productId":    p,
		"warehouseId":  w,
		"quantity":     1,
	})

	rec := s.do(t, http.MethodGet, "/api/v1/stock/alerts?types=out_of_stock", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[struct {
		Alerts []struct {
			Type     string `json:"type"`
			Severity string `json:"severity"`
		} `json:"alerts"`
	}](t, rec)
	require.Len(t, report.Alerts, 1)
	assert.Equal(t, "out_of_stock", report.Alerts[0].Type)
	assert.Equal(t, "critical", report.Alerts[0].Severity)
}

func TestPanicBecomesInternalError(t *testing.T) {
	s := newTestServer(t)
	s.router.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := s.do(t, http.MethodGet, "/boom", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", body.Error)
	assert.Equal(t, "Internal server error", body.Detail)
	assert.NotContains(t, rec.Body.String(), "boom")
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
}

func TestCycleCountFlow(t *testing.T) {
	s := newTestServer(t)
	p := s.env.Product(t, "TILE-1")
	w := s.env.Warehouse(t, "WH-1")
	s.env.Receive(t, p, w, 10, "4")

	rec := s.do(t, http.MethodPost, "/api/v1/cycle-counts", map[string]any{"warehouseId": w})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decode[struct {
		ID id.ID `json:"id"`
	}](t, rec)

	type countBody struct {
		Status string `json:"status"`
		Items  []struct {
			Applied bool `json:"applied"`
		} `json:"items"`
	}
	steps := []map[string]any{
		{"action": "start"},
		{"action": "record_counts", "countedItems": []map[string]any{{"productId": p, "countedQuantity": 7}}},
		{"action": "submit_for_approval"},
		{"action": "approve"},
		{"action": "apply_adjustments"},
	}
	want := []string{"in_progress", "in_progress", "pending_approval", "approved", "completed"}

	var last countBody
	for i, step := range steps {
		step["id"] = doc.ID
		rec = s.do(t, http.MethodPut, "/api/v1/cycle-counts", step)
		require.Equal(t, http.StatusOK, rec.Code, "%s: %s", step["action"], rec.Body.String())
		last = decode[countBody](t, rec)
		assert.Equal(t, want[i], last.Status, step["action"])
	}

	require.Len(t, last.Items, 1)
	assert.True(t, last.Items[0].Applied)
	assert.Equal(t, types.Qty(7), s.env.Balance(t, p, w).Quantity)

	rec = s.do(t, http.MethodPut, "/api/v1/cycle-counts", map[string]any{"id": doc.ID, "action": "cancel"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_STATUS", decodeError(t, rec).Error)
}
