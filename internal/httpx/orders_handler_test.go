package httpx

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ariefcatur/go-plants-commerce.git/internal/checkout"
	"github.com/ariefcatur/go-plants-commerce.git/internal/midtrans"
	"github.com/ariefcatur/go-plants-commerce.git/internal/orders"
	"github.com/ariefcatur/go-plants-commerce.git/internal/reconcile"
)

const serverKey = "SB-Mid-server-test"

type fakeGateway struct {
	createErr error
}

func (g *fakeGateway) CreateTransaction(ctx context.Context, orderRef string, grossAmount int64) (midtrans.SnapTransaction, error) {
	if g.createErr != nil {
		return midtrans.SnapTransaction{}, g.createErr
	}
	return midtrans.SnapTransaction{Token: "tok-123", RedirectURL: "https://snap.example/pay/tok-123"}, nil
}

func (g *fakeGateway) VerifyTransaction(ctx context.Context, orderRef string) midtrans.ProbeResult {
	return midtrans.ProbeResult{}
}

func (g *fakeGateway) CancelTransaction(ctx context.Context, orderRef string) midtrans.ProbeResult {
	return midtrans.ProbeResult{Known: true, Status: midtrans.TransactionStatus{TransactionStatus: "cancel"}}
}

type fakeCheckoutStore struct {
	created   int
	cancelled int
}

func (s *fakeCheckoutStore) CreateOrderTx(ctx context.Context, in orders.NewOrder) (string, []orders.ProductSnapshot, error) {
	s.created++
	return "row-1", nil, nil
}

func (s *fakeCheckoutStore) UpdateCancelled(ctx context.Context, orderRef string) error {
	s.cancelled++
	return nil
}

// minimal reconcile store: one pending order, one product
type fakeReconcileStore struct {
	order   *orders.Order
	item    *orders.OrderItem
	stock   map[int64]int
	calls   int
	withErr error
}

func (f *fakeReconcileStore) WithOrder(ctx context.Context, orderRef string, fn orders.ReconcileFn) error {
	f.calls++
	if f.withErr != nil {
		return f.withErr
	}
	if f.order == nil || f.order.OrderRef != orderRef {
		return orders.ErrOrderNotFound
	}
	return fn(ctx, &fakeReconcileTx{f}, f.order, f.item)
}

type fakeReconcileTx struct{ s *fakeReconcileStore }

func (t *fakeReconcileTx) UpdateOrder(ctx context.Context, st orders.Status, ps orders.PaymentStatus, vaNumber *string) error {
	t.s.order.OrderStatus = st
	t.s.order.PaymentStatus = ps
	t.s.order.VANumber = vaNumber
	return nil
}

func (t *fakeReconcileTx) ProductStock(ctx context.Context, productID int64) (int, bool, error) {
	qty, ok := t.s.stock[productID]
	return qty, ok, nil
}

func (t *fakeReconcileTx) DecrementStock(ctx context.Context, productID int64, qty int) error {
	left := t.s.stock[productID] - qty
	if left < 0 {
		left = 0
	}
	t.s.stock[productID] = left
	return nil
}

func (t *fakeReconcileTx) DeleteCartRow(ctx context.Context, userID, productID int64) error {
	return nil
}

func (t *fakeReconcileTx) MarkProcessed(ctx context.Context, transactionStatus string) (bool, error) {
	return true, nil
}

func newTestHandler(gw *fakeGateway, rstore *fakeReconcileStore) (*OrdersHandler, *fakeCheckoutStore) {
	cstore := &fakeCheckoutStore{}
	h := &OrdersHandler{
		Checkout:  &checkout.Service{Gateway: gw, Store: cstore},
		Engine:    &reconcile.Service{Store: rstore},
		ServerKey: serverKey,
	}
	return h, cstore
}

func newReconcileStore() *fakeReconcileStore {
	return &fakeReconcileStore{
		order: &orders.Order{
			ID:          "row-1",
			UserID:      2,
			OrderRef:    "PLNT-X7K2M-9QF4A",
			OrderStatus: orders.StatusPending,
		},
		item: &orders.OrderItem{
			ID:           "item-1",
			OrderID:      "row-1",
			OrderProduct: []orders.ProductSnapshot{{ProductID: 101, Quantity: 3, Price: 50000, ProductName: "Monstera"}},
		},
		stock: map[int64]int{101: 10},
	}
}

func doJSON(t *testing.T, h *OrdersHandler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter()
	h.Register(router)

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func signature(orderID, statusCode, grossAmount string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func notifBody(orderID, status, sig string) map[string]any {
	return map[string]any{
		"order_id":           orderID,
		"transaction_status": status,
		"gross_amount":       "150000.00",
		"va_numbers":         []map[string]string{{"bank": "bca", "va_number": "1234567890"}},
		"signature_key":      sig,
		"status_code":        "200",
	}
}

func TestNotificationInvalidSignature(t *testing.T) {
	rstore := newReconcileStore()
	h, _ := newTestHandler(&fakeGateway{}, rstore)

	body := notifBody("PLNT-X7K2M-9QF4A", "settlement", "deadbeef")
	rec := doJSON(t, h, http.MethodPost, "/order/notification", body)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["message"] != "Invalid signature key" {
		t.Fatalf("message = %q", resp["message"])
	}
	// the engine must not even be reached
	if rstore.calls != 0 {
		t.Fatal("no state may be touched on a bad signature")
	}
	if rstore.order.OrderStatus != orders.StatusPending || rstore.stock[101] != 10 {
		t.Fatal("order/product mutated despite bad signature")
	}
}

func TestNotificationSettlement(t *testing.T) {
	rstore := newReconcileStore()
	h, _ := newTestHandler(&fakeGateway{}, rstore)

	sig := signature("PLNT-X7K2M-9QF4A", "200", "150000.00")
	rec := doJSON(t, h, http.MethodPost, "/order/notification", notifBody("PLNT-X7K2M-9QF4A", "settlement", sig))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["message"] != "Order and product quantity updated successfully" {
		t.Fatalf("message = %q", resp["message"])
	}
	if rstore.order.OrderStatus != orders.StatusCompleted || rstore.stock[101] != 7 {
		t.Fatalf("order=%s stock=%d", rstore.order.OrderStatus, rstore.stock[101])
	}
}

func TestNotificationEngineFailure(t *testing.T) {
	rstore := newReconcileStore()
	rstore.withErr = errors.New("connection reset")
	h, _ := newTestHandler(&fakeGateway{}, rstore)

	sig := signature("PLNT-X7K2M-9QF4A", "200", "150000.00")
	rec := doJSON(t, h, http.MethodPost, "/order/notification", notifBody("PLNT-X7K2M-9QF4A", "settlement", sig))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["message"] != "Failed to process payment callback" {
		t.Fatalf("message = %q", resp["message"])
	}
}

func TestCreateOrderEndpoint(t *testing.T) {
	h, cstore := newTestHandler(&fakeGateway{}, newReconcileStore())

	body := map[string]any{
		"userId":      2,
		"totalAmount": 150000,
		"orderItems":  []map[string]any{{"productId": 101, "quantity": 3}},
		"addressName": "Rumah",
		"isBuyNow":    false,
	}
	rec := doJSON(t, h, http.MethodPost, "/order/transactions", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	var resp CreateOrderResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Result.Token != "tok-123" || resp.Result.OrderID == "" {
		t.Fatalf("unexpected result: %+v", resp.Result)
	}
	if cstore.created != 1 {
		t.Fatalf("created = %d, want 1", cstore.created)
	}
}

func TestCreateOrderEndpointGatewayFailure(t *testing.T) {
	gw := &fakeGateway{createErr: &midtrans.GatewayError{Op: "POST /transactions", StatusCode: 502}}
	h, cstore := newTestHandler(gw, newReconcileStore())

	body := map[string]any{
		"userId":      2,
		"totalAmount": 150000,
		"orderItems":  []map[string]any{{"productId": 101, "quantity": 3}},
	}
	rec := doJSON(t, h, http.MethodPost, "/order/transactions", body)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if cstore.created != 0 {
		t.Fatal("no order may be persisted when the gateway call fails")
	}
}

func TestCreateOrderEndpointValidation(t *testing.T) {
	h, _ := newTestHandler(&fakeGateway{}, newReconcileStore())

	rec := doJSON(t, h, http.MethodPost, "/order/transactions", map[string]any{"userId": 2})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCancelOrderEndpoint(t *testing.T) {
	h, cstore := newTestHandler(&fakeGateway{}, newReconcileStore())

	rec := doJSON(t, h, http.MethodPost, "/order/cancel", map[string]string{"orderId": "PLNT-X7K2M-9QF4A"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["message"] != "successfully cancel" {
		t.Fatalf("message = %q", resp["message"])
	}
	if cstore.cancelled != 1 {
		t.Fatalf("cancelled = %d, want 1", cstore.cancelled)
	}
}

func TestVerifyOrderEndpointUnknown(t *testing.T) {
	h, _ := newTestHandler(&fakeGateway{}, newReconcileStore())

	rec := doJSON(t, h, http.MethodPost, "/order/verify/PLNT-X7K2M-9QF4A", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["message"] != "transaction status unknown" {
		t.Fatalf("message = %q", resp["message"])
	}
}
