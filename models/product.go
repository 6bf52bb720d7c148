package models

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID          uuid.UUID `json:"id" db:"id"`
	SKU         string    `json:"sku" db:"sku"`
	Barcode     *string   `json:"barcode" db:"barcode"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description" db:"description"`

	CostPrice    float64 `json:"cost_price" db:"cost_price"`
	SellingPrice float64 `json:"selling_price" db:"selling_price"`

	// Products with a positive points cost are redeemable rewards.
	// Stock is shared with the regular sales inventory.
	PointsCost int64 `json:"points_cost" db:"points_cost"`

	StockQuantity     int64   `json:"stock_quantity" db:"stock_quantity"`
	LowStockThreshold int64   `json:"low_stock_threshold" db:"low_stock_threshold"`
	Unit              string  `json:"unit" db:"unit"`
	Category          *string `json:"category" db:"category"`

	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

func (Product) CreateTableSQL() string {
	return `
	CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		sku TEXT UNIQUE NOT NULL,
		barcode TEXT UNIQUE,
		name TEXT NOT NULL,
		description TEXT,
		cost_price NUMERIC(10,2) NOT NULL DEFAULT 0,
		selling_price NUMERIC(10,2) NOT NULL,
		points_cost BIGINT NOT NULL DEFAULT 0,
		stock_quantity BIGINT NOT NULL DEFAULT 0,
		low_stock_threshold BIGINT DEFAULT 10,
		unit TEXT DEFAULT 'pcs',
		category TEXT,
		is_active BOOLEAN DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_products_barcode ON products(barcode);
	CREATE INDEX IF NOT EXISTS idx_products_points_cost ON products(points_cost) WHERE points_cost > 0;
	`
}
