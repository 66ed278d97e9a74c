package httpx

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-plants-commerce.git/internal/checkout"
	"github.com/ariefcatur/go-plants-commerce.git/internal/midtrans"
	"github.com/ariefcatur/go-plants-commerce.git/internal/orders"
	"github.com/ariefcatur/go-plants-commerce.git/internal/reconcile"
	"github.com/go-chi/chi/v5"
)

type OrdersHandler struct {
	Checkout *checkout.Service
	Engine   *reconcile.Service
	Repo     *orders.Repo
	// ServerKey verifies webhook signatures before the engine runs.
	ServerKey string
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Route("/order", func(r chi.Router) {
		r.Post("/transactions", h.createOrder)
		r.Post("/notification", h.paymentNotification)
		r.Post("/cancel", h.cancelOrder)
		r.Post("/verify/{orderId}", h.verifyOrder)
		r.Get("/findAll", h.listOrders)
		r.Get("/findId/{id}", h.orderDetail)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type CreateOrderReq struct {
	UserID      int64              `json:"userId"`
	TotalAmount int64              `json:"totalAmount"`
	OrderItems  []orders.ItemInput `json:"orderItems"`
	AddressName string             `json:"addressName"`
	IsBuyNow    bool               `json:"isBuyNow"`
}

type CreateOrderResp struct {
	Message string            `json:"message"`
	Result  CreateOrderResult `json:"result"`
}

type CreateOrderResult struct {
	OrderID     string `json:"order_id"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}
	if req.UserID == 0 || req.TotalAmount <= 0 || len(req.OrderItems) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	res, err := h.Checkout.CreateOrder(ctx, checkout.CreateOrderInput{
		UserID:      req.UserID,
		TotalAmount: req.TotalAmount,
		AddressName: req.AddressName,
		IsBuyNow:    req.IsBuyNow,
		Items:       req.OrderItems,
	})
	if err != nil {
		log.Printf("create order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to create order"})
		return
	}

	writeJSON(w, http.StatusCreated, CreateOrderResp{
		Message: "create order success",
		Result: CreateOrderResult{
			OrderID:     res.OrderRef,
			Token:       res.Token,
			RedirectURL: res.RedirectURL,
		},
	})
}

// paymentNotification is the gateway webhook. Signature first, always: a bad
// signature is rejected before any state is touched.
func (h *OrdersHandler) paymentNotification(w http.ResponseWriter, r *http.Request) {
	var n reconcile.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Invalid signature key"})
		return
	}

	if !midtrans.VerifySignature(n.SignatureKey, n.OrderID, n.StatusCode, n.GrossAmount, h.ServerKey) {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Invalid signature key"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res := h.Engine.Handle(ctx, n)
	if !res.Success {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to process payment callback"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": res.Message})
}

type CancelOrderReq struct {
	OrderID string `json:"orderId"`
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	if err := h.Checkout.CancelOrder(ctx, req.OrderID); err != nil {
		log.Printf("cancel order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to cancel order"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "successfully cancel"})
}

func (h *OrdersHandler) verifyOrder(w http.ResponseWriter, r *http.Request) {
	orderRef := chi.URLParam(r, "orderId")
	if orderRef == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "missing orderId"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	// tri-state: unknown tetap unknown, jangan dipaksa jadi sukses/gagal
	probe := h.Checkout.VerifyOrder(ctx, orderRef)
	if !probe.Known {
		writeJSON(w, http.StatusOK, map[string]string{"message": "transaction status unknown"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "success", "result": probe.Status})
}

type orderResp struct {
	ID            string                   `json:"id"`
	UserID        int64                    `json:"userId"`
	AddressName   string                   `json:"addressName"`
	OrderDate     time.Time                `json:"orderDate"`
	OrderID       string                   `json:"orderId"`
	OrderStatus   orders.Status            `json:"orderStatus"`
	PaymentStatus orders.PaymentStatus     `json:"paymentStatus"`
	PaymentID     string                   `json:"paymentId"`
	TotalAmount   int64                    `json:"totalAmount"`
	VANumber      *string                  `json:"vaNumber"`
	OrderProduct  []orders.ProductSnapshot `json:"orderProduct"`
	IsBuyNow      bool                     `json:"isBuyNow"`
}

func toOrderResp(ow orders.OrderWithItems) orderResp {
	return orderResp{
		ID:            ow.Order.ID,
		UserID:        ow.Order.UserID,
		AddressName:   ow.Order.AddressName,
		OrderDate:     ow.Order.OrderDate,
		OrderID:       ow.Order.OrderRef,
		OrderStatus:   ow.Order.OrderStatus,
		PaymentStatus: ow.Order.PaymentStatus,
		PaymentID:     ow.Order.PaymentID,
		TotalAmount:   ow.Order.TotalAmount,
		VANumber:      ow.Order.VANumber,
		OrderProduct:  ow.Item.OrderProduct,
		IsBuyNow:      ow.Item.IsBuyNow,
	}
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "missing userId"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Repo.ListFinalized(ctx, userID)
	if err != nil {
		log.Printf("list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to list orders"})
		return
	}
	data := make([]orderResp, 0, len(list))
	for _, ow := range list {
		data = append(data, toOrderResp(ow))
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "success", "data": data})
}

func (h *OrdersHandler) orderDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ow, err := h.Repo.GetByID(ctx, id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Order not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "success", "data": toOrderResp(*ow)})
}
