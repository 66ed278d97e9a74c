package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expire"
	StatusRejected  Status = "rejected"
	StatusNone      Status = "none"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentExpired   PaymentStatus = "expire"
	PaymentRefund    PaymentStatus = "refund"
	PaymentNone      PaymentStatus = "none"
)

// MapTransactionStatus maps a gateway transaction_status to the order and
// payment status pair. Closed mapping; anything unrecognized is none/none.
func MapTransactionStatus(transactionStatus string) (Status, PaymentStatus) {
	switch transactionStatus {
	case "settlement":
		return StatusCompleted, PaymentPaid
	case "pending":
		return StatusPending, PaymentPending
	case "expire":
		return StatusExpired, PaymentExpired
	default:
		return StatusNone, PaymentNone
	}
}

// Finalized reports whether s is terminal. Finalized orders never go back
// to pending.
func (s Status) Finalized() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired, StatusRejected:
		return true
	}
	return false
}

var anyNext = map[Status]bool{
	StatusPending:   true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusExpired:   true,
	StatusRejected:  true,
	StatusNone:      true,
}

var validNext = map[Status]map[Status]bool{
	StatusPending:   anyNext,
	StatusNone:      anyNext,
	StatusCompleted: {},
	StatusCancelled: {},
	StatusExpired:   {},
	StatusRejected:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
