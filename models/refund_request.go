package models

import (
	"time"

	"github.com/google/uuid"
)

// RefundRequest tracks the cashier-request / supervisor-approval
// workflow. An instant supervisor refund is recorded as an
// already-approved request.
type RefundRequest struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	TransactionID uuid.UUID  `json:"transaction_id" db:"transaction_id"`
	RequestedBy   uuid.UUID  `json:"requested_by" db:"requested_by"`
	Status        string     `json:"status" db:"status"` // pending, approved, rejected
	Reason        *string    `json:"reason" db:"reason"`
	ApprovedBy    *uuid.UUID `json:"approved_by" db:"approved_by"`
	ApprovedAt    *time.Time `json:"approved_at" db:"approved_at"`
	RejectedBy    *uuid.UUID `json:"rejected_by" db:"rejected_by"`
	RejectedAt    *time.Time `json:"rejected_at" db:"rejected_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

func (RefundRequest) TableName() string {
	return "refund_requests"
}

func (RefundRequest) CreateTableSQL() string {
	return `
	CREATE TABLE IF NOT EXISTS refund_requests (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		transaction_id UUID NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
		requested_by UUID NOT NULL REFERENCES users(id),
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
		reason TEXT,
		approved_by UUID REFERENCES users(id),
		approved_at TIMESTAMP WITH TIME ZONE,
		rejected_by UUID REFERENCES users(id),
		rejected_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_refund_requests_transaction ON refund_requests(transaction_id);
	CREATE INDEX IF NOT EXISTS idx_refund_requests_status ON refund_requests(status);
	`
}
