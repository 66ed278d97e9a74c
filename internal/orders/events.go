package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderFinalized = "OrderFinalized"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "plants-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order ref
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderRef    string            `json:"order_id"`
	UserID      int64             `json:"user_id"`
	Items       []ProductSnapshot `json:"items"`
	TotalAmount int64             `json:"total_amount"`
	IsBuyNow    bool              `json:"is_buy_now"`
}

type OrderFinalizedPayload struct {
	OrderRef      string `json:"order_id"`
	OrderStatus   string `json:"order_status"`   // completed | cancelled | expire | rejected
	PaymentStatus string `json:"payment_status"` // paid | cancelled | expire | refund
	Reason        string `json:"reason,omitempty"`
}
