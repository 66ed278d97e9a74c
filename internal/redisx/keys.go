package redisx

import "time"

const (
	// Cache status order: order_status:{order_ref} -> {"status":"...","payment_status":"..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup webhook notification: dedup:{service}:{order_ref}:{transaction_status}
	// Fast path only; the processed_notifications ledger is the durable guard.
	KeyDedupNotification = "dedup:%s:%s:%s"

	// Dedup event processing di consumer: dedup:{service}:{event_id}
	KeyDedupEvent = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
