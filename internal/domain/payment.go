package domain

import "time"

// PaymentStatusApproved is the only gateway status that confirms a payment.
const PaymentStatusApproved = "approved"

// Payment is one transaction reported by the payment gateway.
type Payment struct {
	ID        string    `json:"id"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// PendingPayment records a payment the customer is expected to make.
type PendingPayment struct {
	Reference   string    `json:"reference"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	ProductRef  string    `json:"product_ref,omitempty"`
	Method      string    `json:"method,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Payment methods recorded on sales.
const (
	PaymentMethodLink     = "payment_link"
	PaymentMethodTransfer = "transfer"
)

// PaymentItem is what a payment link charges for.
type PaymentItem struct {
	Reference string
	Title     string
	Amount    float64
	Quantity  int
}

// Payer identifies who a payment link is issued to.
type Payer struct {
	ID   string
	Name string
}

// SaleItem is one line of a Sale.
type SaleItem struct {
	ProductRef string  `json:"product_ref"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
}

// SaleInput is what the orchestrator asks the backend to record.
type SaleInput struct {
	CustomerRef   string
	Items         []SaleItem
	Total         float64
	PaymentMethod string
}

// Sale is a recorded transaction. The core never mutates it after creation.
type Sale struct {
	ID            string     `json:"id"`
	CustomerRef   string     `json:"customer_ref"`
	Items         []SaleItem `json:"items"`
	Total         float64    `json:"total"`
	PaymentMethod string     `json:"payment_method"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
}

// SaleStatusCompleted is the status the backends assign to new sales.
const SaleStatusCompleted = "completed"

// PendingPurchase is the product a customer said they want to buy, kept in
// conversation context until the sale is recorded.
type PendingPurchase struct {
	ProductRef string  `json:"product_ref"`
	Name       string  `json:"name"`
	UnitPrice  float64 `json:"unit_price"`
}
