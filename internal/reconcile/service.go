// Package reconcile applies verified gateway notifications to order,
// inventory, and cart state.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	kafkax "github.com/ariefcatur/go-plants-commerce.git/internal/kafka"
	"github.com/ariefcatur/go-plants-commerce.git/internal/orders"
	"github.com/ariefcatur/go-plants-commerce.git/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Notification is the webhook body as sent by the gateway. The signature
// must be verified by the caller before Handle is invoked.
type Notification struct {
	OrderID           string          `json:"order_id"`
	TransactionStatus string          `json:"transaction_status"`
	GrossAmount       string          `json:"gross_amount"`
	VANumbers         json.RawMessage `json:"va_numbers"`
	SignatureKey      string          `json:"signature_key"`
	StatusCode        string          `json:"status_code"`
}

// Result is the structured outcome of one notification. Success=false means
// reconciliation could not be applied; storage faults never escape Handle.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Service struct {
	Store       orders.ReconcileStore
	Redis       *redis.Client // optional dedup fast path + status cache
	Producer    *kafkax.Producer
	ServiceName string
}

// Handle runs the status mapping and its side effects inside one storage
// transaction with the order row locked. Settlement side effects (cart
// cleanup, stock decrement) run exactly once per (order, status) thanks to
// the processed-notification ledger; the redis dedup key only short-circuits
// obvious redeliveries.
func (s *Service) Handle(ctx context.Context, n Notification) Result {
	dkey := fmt.Sprintf(redisx.KeyDedupNotification, s.ServiceName, n.OrderID, n.TransactionStatus)
	if s.Redis != nil {
		if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
			return Result{Success: true, Message: "notification already processed"}
		}
	}

	var res Result
	var finalized *orders.OrderFinalizedPayload

	err := s.Store.WithOrder(ctx, n.OrderID, func(ctx context.Context, tx orders.ReconcileTx, o *orders.Order, item *orders.OrderItem) error {
		st, ps := orders.MapTransactionStatus(n.TransactionStatus)

		// finalized orders never move again; a late "pending" after a
		// settlement must not reopen the order
		if !orders.CanTransition(o.OrderStatus, st) {
			res = Result{Success: true, Message: "order already finalized"}
			return nil
		}

		va := vaString(n.VANumbers)
		if err := tx.UpdateOrder(ctx, st, ps, va); err != nil {
			return err
		}

		// stock sufficiency guard: shortage flips the order to
		// rejected/refund and stops, no decrement, no cart cleanup
		for _, it := range item.OrderProduct {
			qty, ok, err := tx.ProductStock(ctx, it.ProductID)
			if err != nil {
				return err
			}
			if !ok || qty < it.Quantity {
				if err := tx.UpdateOrder(ctx, orders.StatusRejected, orders.PaymentRefund, va); err != nil {
					return err
				}
				name := it.ProductName
				if !ok {
					name = "Product"
				}
				res = Result{Success: false, Message: fmt.Sprintf("%s quantity is not in stock", name)}
				finalized = &orders.OrderFinalizedPayload{
					OrderRef:      o.OrderRef,
					OrderStatus:   string(orders.StatusRejected),
					PaymentStatus: string(orders.PaymentRefund),
					Reason:        res.Message,
				}
				return nil
			}
		}

		if st == orders.StatusCompleted {
			first, err := tx.MarkProcessed(ctx, n.TransactionStatus)
			if err != nil {
				return err
			}
			if !first {
				// redelivered settlement: status already set, stock already
				// decremented once
				res = Result{Success: true, Message: "notification already processed"}
				return nil
			}

			if !item.IsBuyNow {
				for _, it := range item.OrderProduct {
					if err := tx.DeleteCartRow(ctx, o.UserID, it.ProductID); err != nil {
						return err
					}
				}
			}

			// an order may list the same product more than once: sum first,
			// decrement once per product
			need := map[int64]int{}
			for _, it := range item.OrderProduct {
				need[it.ProductID] += it.Quantity
			}
			for pid, qty := range need {
				if err := tx.DecrementStock(ctx, pid, qty); err != nil {
					return err
				}
			}
		}

		res = Result{Success: true, Message: "Order and product quantity updated successfully"}
		if st.Finalized() {
			finalized = &orders.OrderFinalizedPayload{
				OrderRef:      o.OrderRef,
				OrderStatus:   string(st),
				PaymentStatus: string(ps),
			}
		}
		return nil
	})

	if errors.Is(err, orders.ErrOrderNotFound) {
		return Result{Success: false, Message: "Order not found"}
	}
	if err != nil {
		log.Printf("reconcile order %s: %v", n.OrderID, err)
		return Result{Success: false, Message: "Failed to update order status and product quantity"}
	}

	if s.Redis != nil {
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
		if finalized != nil {
			skey := fmt.Sprintf(redisx.KeyOrderStatus, n.OrderID)
			_ = s.Redis.Set(ctx, skey, string(kafkax.MustMarshal(map[string]string{
				"status":         finalized.OrderStatus,
				"payment_status": finalized.PaymentStatus,
			})), redisx.TTLStatusCache).Err()
		}
	}

	if finalized != nil && s.Producer != nil {
		s.publishFinalized(*finalized)
	}
	return res
}

func (s *Service) publishFinalized(p orders.OrderFinalizedPayload) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderFinalized,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: p.OrderRef,
		Payload:       kafkax.MustMarshal(p),
	}
	s.Producer.Publish(orders.PartitionKey(p.OrderRef), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderFinalized)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// vaString keeps the gateway's va_numbers payload opaque: stored verbatim,
// nil when absent or JSON null.
func vaString(raw json.RawMessage) *string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil
	}
	return &s
}
