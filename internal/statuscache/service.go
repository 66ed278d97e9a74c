// Package statuscache keeps the redis order-status cache in sync with
// order.finalized events so status reads stay off the database.
package statuscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	kafkax "github.com/ariefcatur/go-plants-commerce.git/internal/kafka"
	"github.com/ariefcatur/go-plants-commerce.git/internal/orders"
	"github.com/ariefcatur/go-plants-commerce.git/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleOrderFinalized dipasang sebagai handler consumer.
func (s *Service) HandleOrderFinalized(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderFinalized {
		return nil // ignore
	}

	// dedup via event_id
	dkey := fmt.Sprintf(redisx.KeyDedupEvent, s.ServiceName, env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderFinalizedPayload](env.Payload)
	if err != nil {
		return err
	}

	skey := fmt.Sprintf(redisx.KeyOrderStatus, p.OrderRef)
	body := kafkax.MustMarshal(map[string]string{
		"status":         p.OrderStatus,
		"payment_status": p.PaymentStatus,
	})
	if err := s.Redis.Set(ctx, skey, string(body), redisx.TTLStatusCache).Err(); err != nil {
		return err
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	log.Printf("order %s finalized: %s/%s", p.OrderRef, p.OrderStatus, p.PaymentStatus)
	return nil
}
