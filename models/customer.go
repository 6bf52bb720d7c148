package models

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID      uuid.UUID `json:"id" db:"id"`
	Name    string    `json:"name" db:"name"`
	Email   *string   `json:"email" db:"email"`
	Phone   *string   `json:"phone" db:"phone"`
	Address *string   `json:"address" db:"address"`

	// Denormalized mirror of the loyalty member's current balance.
	// Updated best-effort whenever points move.
	LoyaltyPoints  int64     `json:"loyalty_points" db:"loyalty_points"`
	TotalPurchases float64   `json:"total_purchases" db:"total_purchases"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

func (Customer) TableName() string {
	return "customers"
}

func (Customer) CreateTableSQL() string {
	return `
	CREATE TABLE IF NOT EXISTS customers (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		email TEXT UNIQUE,
		phone TEXT UNIQUE,
		address TEXT,
		loyalty_points BIGINT DEFAULT 0,
		total_purchases NUMERIC(12,2) DEFAULT 0,
		is_active BOOLEAN DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_customers_email ON customers(email);
	CREATE INDEX IF NOT EXISTS idx_customers_phone ON customers(phone);
	`
}
