package services

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"vcspos-server/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrMemberNotFound     = errors.New("member not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrNotRedeemable      = errors.New("product is not redeemable")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInsufficientPoints = errors.New("insufficient points balance")
	ErrRedemptionDisabled = errors.New("points redemption is currently disabled")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
)

// CalculateEarnedPoints computes the points awarded for a sale total:
// floor(total / pesosPerPoint) scaled by the member's tier multiplier,
// floored again. Non-positive rates fall back to the default rate.
func CalculateEarnedPoints(total, pesosPerPoint, multiplier float64) int64 {
	if pesosPerPoint <= 0 {
		pesosPerPoint = DefaultPesosPerPoint
	}
	if multiplier <= 0 {
		multiplier = 1
	}
	base := math.Floor(total / pesosPerPoint)
	if base <= 0 {
		return 0
	}
	return int64(math.Floor(base * multiplier))
}

// ReplayCurrentBalance folds ledger entries in creation order from 0.
// The result must equal the member's current_points (property held by
// every coordinator writing balance and ledger row atomically).
func ReplayCurrentBalance(entries []models.LoyaltyTransaction) int64 {
	var balance int64
	for _, e := range entries {
		balance += e.Points
	}
	return balance
}

// ReplayLifetime folds only the entry types that touch lifetime_points:
// positive accrual types raise it, refund reversals lower it (floored
// at 0, matching the coordinator).
func ReplayLifetime(entries []models.LoyaltyTransaction) int64 {
	var lifetime int64
	for _, e := range entries {
		switch e.TransactionType {
		case models.PointsEarn, models.PointsBonus, models.PointsAdjust:
			if e.Points > 0 {
				lifetime += e.Points
			}
		case models.PointsRefund:
			lifetime += e.Points
			if lifetime < 0 {
				lifetime = 0
			}
		}
	}
	return lifetime
}

// ValidateRedemption checks the redemption preconditions in order,
// returning the first specific failure. Both the staff and the
// member-app entry points share this so their rejections match.
func ValidateRedemption(productActive bool, pointsCost, stock, quantity, memberPoints int64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !productActive {
		return ErrProductNotFound
	}
	if pointsCost <= 0 {
		return ErrNotRedeemable
	}
	if stock < quantity {
		return ErrInsufficientStock
	}
	if memberPoints < pointsCost*quantity {
		return ErrInsufficientPoints
	}
	return nil
}

// memberBalances is the locked snapshot of one member row.
type memberBalances struct {
	ID             uuid.UUID
	CustomerID     uuid.UUID
	CurrentPoints  int64
	LifetimePoints int64
	TierID         *uuid.UUID
}

// lockMember loads a member's balance columns under FOR UPDATE so
// concurrent accrual/redemption against the same member serialize.
func lockMember(tx *sql.Tx, memberID uuid.UUID) (*memberBalances, error) {
	var m memberBalances
	err := tx.QueryRow(`
		SELECT id, customer_id, current_points, lifetime_points, tier_id
		FROM loyalty_members WHERE id = $1 FOR UPDATE`, memberID).
		Scan(&m.ID, &m.CustomerID, &m.CurrentPoints, &m.LifetimePoints, &m.TierID)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock member: %w", err)
	}
	return &m, nil
}

func lockMemberByCustomer(tx *sql.Tx, customerID uuid.UUID) (*memberBalances, error) {
	var m memberBalances
	err := tx.QueryRow(`
		SELECT id, customer_id, current_points, lifetime_points, tier_id
		FROM loyalty_members WHERE customer_id = $1 FOR UPDATE`, customerID).
		Scan(&m.ID, &m.CustomerID, &m.CurrentPoints, &m.LifetimePoints, &m.TierID)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock member: %w", err)
	}
	return &m, nil
}

// LedgerAppend describes one entry to append to the points ledger.
type LedgerAppend struct {
	SaleID        *uuid.UUID
	Type          string
	Points        int64
	Description   string
	ReferenceCode string
	ActorID       *uuid.UUID
}

// appendLedger writes one immutable ledger row and the matching member
// balance update in the caller's transaction. The caller must hold the
// member row lock and have validated sufficiency for negative deltas.
// Returns the balance after the append.
func appendLedger(tx *sql.Tx, m *memberBalances, e LedgerAppend) (int64, error) {
	balanceAfter := m.CurrentPoints + e.Points
	lifetime := m.LifetimePoints
	switch e.Type {
	case models.PointsEarn, models.PointsBonus, models.PointsAdjust:
		if e.Points > 0 {
			lifetime += e.Points
		}
	}

	_, err := tx.Exec(`
		INSERT INTO loyalty_transactions
			(member_id, transaction_id, transaction_type, points, balance_after, description, reference_code, adjusted_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, e.SaleID, e.Type, e.Points, balanceAfter, e.Description, e.ReferenceCode, e.ActorID)
	if err != nil {
		return 0, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE loyalty_members
		SET current_points = $1, lifetime_points = $2, updated_at = now()
		WHERE id = $3`, balanceAfter, lifetime, m.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to update member balance: %w", err)
	}

	// Keep the denormalized mirror on the customer row in step.
	_, _ = tx.Exec(`UPDATE customers SET loyalty_points = $1, updated_at = now() WHERE id = $2`,
		balanceAfter, m.CustomerID)

	m.CurrentPoints = balanceAfter
	m.LifetimePoints = lifetime
	return balanceAfter, nil
}

// reresolveTier recomputes the member's tier from lifetime points and
// updates the reference when it changed. Runs in the same transaction
// as the balance mutation that triggered it.
func reresolveTier(tx *sql.Tx, m *memberBalances) error {
	tiers, err := LoadActiveTiers(tx)
	if err != nil {
		return err
	}
	tier := ResolveTier(tiers, m.LifetimePoints)
	if tier == nil {
		return nil
	}
	if m.TierID != nil && *m.TierID == tier.ID {
		return nil
	}
	if _, err := tx.Exec(`UPDATE loyalty_members SET tier_id = $1, updated_at = now() WHERE id = $2`, tier.ID, m.ID); err != nil {
		return fmt.Errorf("failed to update member tier: %w", err)
	}
	m.TierID = &tier.ID
	return nil
}

// AwardPointsForSale is the sale accrual coordinator. It runs after the
// sale has committed and is best-effort: callers log the returned error
// and leave the sale completed. A sale without a linked customer, or a
// customer without a membership, is a silent no-op.
func AwardPointsForSale(db *sql.DB, saleID uuid.UUID) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin accrual transaction: %w", err)
	}
	defer tx.Rollback()

	var saleCode string
	var totalAmount float64
	var customerID *uuid.UUID
	err = tx.QueryRow(`
		SELECT transaction_code, total_amount, customer_id
		FROM transactions WHERE id = $1 AND status = 'completed'`, saleID).
		Scan(&saleCode, &totalAmount, &customerID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load sale: %w", err)
	}
	if customerID == nil {
		return 0, nil
	}

	member, err := lockMemberByCustomer(tx, *customerID)
	if err == ErrMemberNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	minPurchase := GetSettingNumber(tx, "min_purchase_for_points", 0)
	if totalAmount < minPurchase {
		return 0, nil
	}

	multiplier := 1.0
	if member.TierID != nil {
		if err := tx.QueryRow(`SELECT points_multiplier FROM loyalty_tiers WHERE id = $1`, *member.TierID).
			Scan(&multiplier); err != nil && err != sql.ErrNoRows {
			return 0, fmt.Errorf("failed to load tier multiplier: %w", err)
		}
	}

	awarded := CalculateEarnedPoints(totalAmount, PesosPerPoint(tx), multiplier)
	if awarded <= 0 {
		return 0, nil
	}

	_, err = appendLedger(tx, member, LedgerAppend{
		SaleID:        &saleID,
		Type:          models.PointsEarn,
		Points:        awarded,
		Description:   fmt.Sprintf("Earned %d points for purchase %s", awarded, saleCode),
		ReferenceCode: saleCode,
	})
	if err != nil {
		return 0, err
	}

	if err := reresolveTier(tx, member); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit accrual: %w", err)
	}

	pointsEarnedTotal.Add(float64(awarded))
	log.Info().
		Str("member_id", member.ID.String()).
		Str("sale", saleCode).
		Int64("points", awarded).
		Msg("points accrued")
	return awarded, nil
}

// RedemptionResult reports the outcome of a reward redemption.
type RedemptionResult struct {
	ReferenceCode   string `json:"reference_code"`
	PointsSpent     int64  `json:"points_spent"`
	RemainingPoints int64  `json:"remaining_points"`
	Quantity        int64  `json:"quantity"`
	ProductID       string `json:"product_id"`
	ProductName     string `json:"product_name"`
	StockQuantity   int64  `json:"stock_quantity"`
}

// RedeemProduct spends points against reward-eligible inventory. Stock
// is consumed at redemption time, not at a later checkout: redeemed
// items may be finalized as a zero-price checkout line that skips the
// stock decrement. Staff and member-app redemptions both come through
// here so the ledger shape is uniform for refund reversal.
func RedeemProduct(db *sql.DB, memberID, productID uuid.UUID, quantity int64, actorID *uuid.UUID) (*RedemptionResult, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin redemption transaction: %w", err)
	}
	defer tx.Rollback()

	if !GetSettingBool(tx, "allow_points_redemption", true) {
		return nil, ErrRedemptionDisabled
	}

	// Product first, member second; the checkout path locks in the same
	// order to avoid deadlocks on the shared stock rows.
	var productName string
	var productActive bool
	var pointsCost, stock int64
	err = tx.QueryRow(`
		SELECT name, is_active, points_cost, stock_quantity
		FROM products WHERE id = $1 FOR UPDATE`, productID).
		Scan(&productName, &productActive, &pointsCost, &stock)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	member, err := lockMember(tx, memberID)
	if err != nil {
		return nil, err
	}

	if err := ValidateRedemption(productActive, pointsCost, stock, quantity, member.CurrentPoints); err != nil {
		return nil, err
	}

	pointsNeeded := pointsCost * quantity

	_, err = tx.Exec(`UPDATE products SET stock_quantity = stock_quantity - $1, updated_at = now() WHERE id = $2`,
		quantity, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrement stock: %w", err)
	}

	ref := "RWP-" + time.Now().Format("20060102150405")
	balanceAfter, err := appendLedger(tx, member, LedgerAppend{
		Type:          models.PointsRedeemProduct,
		Points:        -pointsNeeded,
		Description:   fmt.Sprintf("Redeemed %dx %s", quantity, productName),
		ReferenceCode: ref,
		ActorID:       actorID,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit redemption: %w", err)
	}

	pointsRedeemedTotal.Add(float64(pointsNeeded))
	log.Info().
		Str("member_id", memberID.String()).
		Str("product", productName).
		Int64("points", pointsNeeded).
		Str("ref", ref).
		Msg("reward redeemed")

	return &RedemptionResult{
		ReferenceCode:   ref,
		PointsSpent:     pointsNeeded,
		RemainingPoints: balanceAfter,
		Quantity:        quantity,
		ProductID:       productID.String(),
		ProductName:     productName,
		StockQuantity:   stock - quantity,
	}, nil
}
