// Package checkout coordinates order creation and cancellation against the
// payment gateway and the order repository.
package checkout

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"time"

	kafkax "github.com/ariefcatur/go-plants-commerce.git/internal/kafka"
	"github.com/ariefcatur/go-plants-commerce.git/internal/midtrans"
	"github.com/ariefcatur/go-plants-commerce.git/internal/orders"
	"github.com/ariefcatur/go-plants-commerce.git/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type Gateway interface {
	CreateTransaction(ctx context.Context, orderRef string, grossAmount int64) (midtrans.SnapTransaction, error)
	VerifyTransaction(ctx context.Context, orderRef string) midtrans.ProbeResult
	CancelTransaction(ctx context.Context, orderRef string) midtrans.ProbeResult
}

type Store interface {
	CreateOrderTx(ctx context.Context, in orders.NewOrder) (orderID string, snapshot []orders.ProductSnapshot, err error)
	UpdateCancelled(ctx context.Context, orderRef string) error
}

type Service struct {
	Gateway           Gateway
	Store             Store
	Redis             *redis.Client    // optional status cache
	ProducerCreated   *kafkax.Producer // publish order.created
	ProducerFinalized *kafkax.Producer // publish order.finalized (cancellations)
	ServiceName       string
}

type CreateOrderInput struct {
	UserID      int64
	TotalAmount int64
	AddressName string
	IsBuyNow    bool
	Items       []orders.ItemInput
}

type CreateOrderResult struct {
	OrderRef    string
	Token       string
	RedirectURL string
}

// CreateOrder registers a payment session with the gateway first, then
// persists the pending order and its snapshot in one transaction (the same
// transaction also purges the user's abandoned channel-less orders). If the
// gateway call fails nothing is persisted.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error) {
	ref := newOrderRef()

	snap, err := s.Gateway.CreateTransaction(ctx, ref, in.TotalAmount)
	if err != nil {
		return CreateOrderResult{}, fmt.Errorf("create transaction: %w", err)
	}

	_, snapshot, err := s.Store.CreateOrderTx(ctx, orders.NewOrder{
		UserID:      in.UserID,
		AddressName: in.AddressName,
		OrderRef:    ref,
		PaymentID:   snap.Token,
		TotalAmount: in.TotalAmount,
		IsBuyNow:    in.IsBuyNow,
		Items:       in.Items,
	})
	if err != nil {
		return CreateOrderResult{}, fmt.Errorf("persist order: %w", err)
	}

	if s.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, ref)
		_ = s.Redis.Set(ctx, key, `{"status":"pending","payment_status":"pending"}`, redisx.TTLStatusCache).Err()
	}
	if s.ProducerCreated != nil {
		s.publishCreated(orders.OrderCreatedPayload{
			OrderRef:    ref,
			UserID:      in.UserID,
			Items:       snapshot,
			TotalAmount: in.TotalAmount,
			IsBuyNow:    in.IsBuyNow,
		})
	}

	return CreateOrderResult{OrderRef: ref, Token: snap.Token, RedirectURL: snap.RedirectURL}, nil
}

// CancelOrder asks the gateway to cancel, then flips the order to
// cancelled/cancelled regardless. An unconfirmed gateway cancellation is
// logged and tolerated; best effort, not two-phase commit.
func (s *Service) CancelOrder(ctx context.Context, orderRef string) error {
	probe := s.Gateway.CancelTransaction(ctx, orderRef)
	if !probe.Known {
		log.Printf("cancel order %s: gateway cancellation unconfirmed", orderRef)
	}

	if err := s.Store.UpdateCancelled(ctx, orderRef); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderRef, err)
	}

	if s.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderRef)
		_ = s.Redis.Set(ctx, key, `{"status":"cancelled","payment_status":"cancelled"}`, redisx.TTLStatusCache).Err()
	}
	if s.ProducerFinalized != nil {
		s.publishFinalized(orders.OrderFinalizedPayload{
			OrderRef:      orderRef,
			OrderStatus:   string(orders.StatusCancelled),
			PaymentStatus: string(orders.PaymentCancelled),
		})
	}
	return nil
}

// VerifyOrder is a passthrough status probe; Unknown stays Unknown.
func (s *Service) VerifyOrder(ctx context.Context, orderRef string) midtrans.ProbeResult {
	return s.Gateway.VerifyTransaction(ctx, orderRef)
}

func (s *Service) publishCreated(p orders.OrderCreatedPayload) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: p.OrderRef,
		Payload:       kafkax.MustMarshal(p),
	}
	s.ProducerCreated.Publish(orders.PartitionKey(p.OrderRef), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
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
	s.ProducerFinalized.Publish(orders.PartitionKey(p.OrderRef), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderFinalized)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

const refAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newOrderRef builds a human-inspectable gateway correlation id,
// e.g. PLNT-X7K2M-9QF4A. Collisions are practically impossible; the unique
// index on order_ref backs that up.
func newOrderRef() string {
	return fmt.Sprintf("PLNT-%s-%s", randomString(5), randomString(5))
}

func randomString(n int) string {
	max := big.NewInt(int64(len(refAlphabet)))
	b := make([]byte, n)
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = refAlphabet[v.Int64()]
	}
	return string(b)
}
