package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is a POS sale. Status moves completed -> voided or
// completed -> refunded; points accrual happens after completion and is
// reversed on refund.
type Transaction struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	TransactionCode string     `json:"transaction_code" db:"transaction_code"`
	CustomerID      *uuid.UUID `json:"customer_id" db:"customer_id"`
	UserID          uuid.UUID  `json:"user_id" db:"user_id"`

	Subtotal       float64 `json:"subtotal" db:"subtotal"`
	DiscountAmount float64 `json:"discount_amount" db:"discount_amount"`
	TaxAmount      float64 `json:"tax_amount" db:"tax_amount"`
	TotalAmount    float64 `json:"total_amount" db:"total_amount"`

	PaymentMethod  string  `json:"payment_method" db:"payment_method"` // cash, card, gcash, maya
	AmountReceived float64 `json:"amount_received" db:"amount_received"`
	ChangeAmount   float64 `json:"change_amount" db:"change_amount"`

	Status string  `json:"status" db:"status"` // completed, voided, refunded
	Notes  *string `json:"notes" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	Items []TransactionItem `json:"items,omitempty" db:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func (Transaction) CreateTableSQL() string {
	return `
	CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		transaction_code TEXT UNIQUE NOT NULL,
		customer_id UUID REFERENCES customers(id) ON DELETE SET NULL,
		user_id UUID NOT NULL REFERENCES users(id),
		subtotal NUMERIC(12,2) NOT NULL,
		discount_amount NUMERIC(12,2) DEFAULT 0,
		tax_amount NUMERIC(12,2) DEFAULT 0,
		total_amount NUMERIC(12,2) NOT NULL,
		payment_method TEXT NOT NULL,
		amount_received NUMERIC(12,2) NOT NULL,
		change_amount NUMERIC(12,2) DEFAULT 0,
		status TEXT DEFAULT 'completed' CHECK (status IN ('completed', 'voided', 'refunded')),
		notes TEXT,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_code ON transactions(transaction_code);
	CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions(customer_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
	`
}

// TransactionItem is one sale line. Product name/sku are snapshots taken
// at sale time. A line with unit_price <= 0 and subtotal <= 0 on a
// points-costed product is treated as a redeemed-reward line by the
// refund coordinator.
type TransactionItem struct {
	ID            uuid.UUID `json:"id" db:"id"`
	TransactionID uuid.UUID `json:"transaction_id" db:"transaction_id"`
	ProductID     uuid.UUID `json:"product_id" db:"product_id"`

	ProductName string `json:"product_name" db:"product_name"`
	ProductSKU  string `json:"product_sku" db:"product_sku"`

	UnitPrice       float64 `json:"unit_price" db:"unit_price"`
	Quantity        int64   `json:"quantity" db:"quantity"`
	DiscountPercent float64 `json:"discount_percent" db:"discount_percent"`
	Subtotal        float64 `json:"subtotal" db:"subtotal"`
}

func (TransactionItem) TableName() string {
	return "transaction_items"
}

func (TransactionItem) CreateTableSQL() string {
	return `
	CREATE TABLE IF NOT EXISTS transaction_items (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		transaction_id UUID NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
		product_id UUID NOT NULL REFERENCES products(id),
		product_name TEXT NOT NULL,
		product_sku TEXT NOT NULL,
		unit_price NUMERIC(10,2) NOT NULL,
		quantity BIGINT NOT NULL DEFAULT 1,
		discount_percent NUMERIC(5,2) DEFAULT 0,
		subtotal NUMERIC(12,2) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transaction_items_transaction ON transaction_items(transaction_id);
	`
}
