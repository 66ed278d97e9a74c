package orders

import "time"

type Product struct {
	ID        int64
	Title     string
	Price     int64
	Quantity  int // available stock, floors at zero
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductSnapshot is a line item frozen at order-creation time, decoupled
// from live Product data.
type ProductSnapshot struct {
	ProductID   int64  `json:"productId"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
	ProductName string `json:"productName"`
}

type Order struct {
	ID          string // internal row id (uuid)
	UserID      int64
	AddressName string
	OrderDate   time.Time
	// OrderRef is the gateway correlation id (order_id on the wire),
	// human-inspectable, globally unique.
	OrderRef      string
	OrderStatus   Status
	PaymentStatus PaymentStatus
	PaymentID     string // gateway transaction token
	TotalAmount   int64  // smallest currency unit
	// VANumber is the payment-channel detail from the gateway, opaque here.
	// NULL until the first notification arrives; a pending order with a NULL
	// VANumber is an abandoned checkout ("channel-less").
	VANumber  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem is one-to-one with Order, created once and immutable after.
type OrderItem struct {
	ID           string
	OrderID      string
	OrderProduct []ProductSnapshot
	IsBuyNow     bool // true = direct purchase bypassing the cart
}

type Cart struct {
	ID        int64
	UserID    int64
	ProductID int64
	Quantity  int
}

type ItemInput struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}
