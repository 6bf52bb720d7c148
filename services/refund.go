package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"vcspos-server/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrSaleNotFound        = errors.New("sale not found")
	ErrSaleAlreadyRefunded = errors.New("sale has already been refunded")
	ErrSaleVoided          = errors.New("voided sales cannot be refunded")
	ErrSaleNotCompleted    = errors.New("only completed sales can be refunded")
)

// IsRedeemedRewardLine reports whether a sale line represents a
// previously redeemed reward rather than a paid item. Redeemed rewards
// enter checkout at zero price with their stock already consumed, so a
// free line on a points-costed product is the only marker we have.
func IsRedeemedRewardLine(unitPrice, subtotal float64, pointsCost int64) bool {
	return unitPrice <= 0 && subtotal <= 0 && pointsCost > 0
}

// ParseMemberCardHint scans a refund reason for a "Member card: <value>"
// line left by the cashier and returns the trimmed value. Used to
// restore reward points on sales that were never linked to a customer.
func ParseMemberCardHint(reason string) string {
	for _, line := range strings.Split(reason, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		if strings.HasPrefix(lower, "member card:") {
			return strings.TrimSpace(trimmed[len("member card:"):])
		}
	}
	return ""
}

type refundLine struct {
	productID uuid.UUID
	unitPrice float64
	quantity  int64
	subtotal  float64
}

// RefundOutcome summarizes what a processed refund reversed.
type RefundOutcome struct {
	SaleCode        string `json:"sale_code"`
	PointsReversed  int64  `json:"points_reversed"`
	PointsRestored  int64  `json:"points_restored"`
	ItemsRestocked  int64  `json:"items_restocked"`
	MemberID        string `json:"member_id,omitempty"`
	RewardsMemberID string `json:"rewards_member_id,omitempty"`
}

// ProcessRefund flips a completed sale to refunded, restores stock for
// every line, reverses any points earned from the sale and restores
// points spent on reward lines. All of it runs in the caller's
// transaction so a failure partway leaves the sale untouched.
//
// Both reversal steps are idempotent: a refund ledger row keyed to the
// sale and member marks the work as done, so retrying an approved
// refund never double-credits.
func ProcessRefund(tx *sql.Tx, saleID uuid.UUID, actorID uuid.UUID, reason string) (*RefundOutcome, error) {
	var sale models.Transaction
	err := tx.QueryRow(`
		SELECT id, transaction_code, customer_id, total_amount, status
		FROM transactions WHERE id = $1 FOR UPDATE`, saleID).
		Scan(&sale.ID, &sale.TransactionCode, &sale.CustomerID, &sale.TotalAmount, &sale.Status)
	if err == sql.ErrNoRows {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sale: %w", err)
	}

	switch sale.Status {
	case "refunded":
		return nil, ErrSaleAlreadyRefunded
	case "voided":
		return nil, ErrSaleVoided
	case "completed":
	default:
		return nil, ErrSaleNotCompleted
	}

	outcome := &RefundOutcome{SaleCode: sale.TransactionCode}

	// Restore inventory for every line, reward lines included: their
	// stock was consumed at redemption time and the item is coming back.
	rows, err := tx.Query(`
		SELECT product_id, unit_price, quantity, subtotal
		FROM transaction_items WHERE transaction_id = $1`, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sale items: %w", err)
	}
	var lines []refundLine
	for rows.Next() {
		var l refundLine
		if err := rows.Scan(&l.productID, &l.unitPrice, &l.quantity, &l.subtotal); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sale item: %w", err)
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sale items: %w", err)
	}

	for _, l := range lines {
		if _, err := tx.Exec(`UPDATE products SET stock_quantity = stock_quantity + $1, updated_at = now() WHERE id = $2`,
			l.quantity, l.productID); err != nil {
			return nil, fmt.Errorf("failed to restore stock: %w", err)
		}
		outcome.ItemsRestocked += l.quantity
	}

	if _, err := tx.Exec(`UPDATE transactions SET status = 'refunded', updated_at = now() WHERE id = $1`, saleID); err != nil {
		return nil, fmt.Errorf("failed to mark sale refunded: %w", err)
	}

	// Step A: reverse the earn recorded for this sale, if any.
	if sale.CustomerID != nil {
		member, err := lockMemberByCustomer(tx, *sale.CustomerID)
		if err != nil && err != ErrMemberNotFound {
			return nil, err
		}
		if member != nil {
			reversed, err := reverseEarnedPoints(tx, member, saleID, sale.TransactionCode, actorID)
			if err != nil {
				return nil, err
			}
			outcome.PointsReversed = reversed
			outcome.MemberID = member.ID.String()
		}
	}

	// Step B: restore points spent on redeemed reward lines.
	restored, rewardsMember, err := restoreRedeemedRewardPoints(tx, &sale, lines, reason, actorID)
	if err != nil {
		return nil, err
	}
	outcome.PointsRestored = restored
	if rewardsMember != nil {
		outcome.RewardsMemberID = rewardsMember.String()
	}

	if outcome.PointsReversed > 0 {
		pointsReversedTotal.Add(float64(outcome.PointsReversed))
	}

	log.Info().
		Str("sale", sale.TransactionCode).
		Int64("points_reversed", outcome.PointsReversed).
		Int64("points_restored", outcome.PointsRestored).
		Msg("refund processed")
	return outcome, nil
}

// ReverseSalePoints undoes the earn recorded for a sale without
// touching stock or status. The void path uses it; the refund path
// runs the same reversal as part of ProcessRefund.
func ReverseSalePoints(tx *sql.Tx, saleID uuid.UUID, actorID uuid.UUID) (int64, error) {
	var saleCode string
	var customerID *uuid.UUID
	err := tx.QueryRow(`SELECT transaction_code, customer_id FROM transactions WHERE id = $1`, saleID).
		Scan(&saleCode, &customerID)
	if err == sql.ErrNoRows || customerID == nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load sale: %w", err)
	}
	member, err := lockMemberByCustomer(tx, *customerID)
	if err == ErrMemberNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	reversed, err := reverseEarnedPoints(tx, member, saleID, saleCode, actorID)
	if err != nil {
		return 0, err
	}
	if reversed > 0 {
		pointsReversedTotal.Add(float64(reversed))
	}
	return reversed, nil
}

// reverseEarnedPoints deducts the points a member earned from the
// refunded sale. Deltas are floored so neither balance goes negative
// when the member has already spent part of the earn.
func reverseEarnedPoints(tx *sql.Tx, member *memberBalances, saleID uuid.UUID, saleCode string, actorID uuid.UUID) (int64, error) {
	var done int
	err := tx.QueryRow(`
		SELECT COUNT(*) FROM loyalty_transactions
		WHERE transaction_id = $1 AND member_id = $2 AND transaction_type = $3`,
		saleID, member.ID, models.PointsRefund).Scan(&done)
	if err != nil {
		return 0, fmt.Errorf("failed to check refund ledger: %w", err)
	}
	if done > 0 {
		return 0, nil
	}

	var earned int64
	err = tx.QueryRow(`
		SELECT points FROM loyalty_transactions
		WHERE transaction_id = $1 AND member_id = $2 AND transaction_type = $3
		ORDER BY id DESC LIMIT 1`,
		saleID, member.ID, models.PointsEarn).Scan(&earned)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load earn entry: %w", err)
	}
	if earned <= 0 {
		return 0, nil
	}

	deduct := earned
	if deduct > member.CurrentPoints {
		deduct = member.CurrentPoints
	}
	lifetimeDeduct := earned
	if lifetimeDeduct > member.LifetimePoints {
		lifetimeDeduct = member.LifetimePoints
	}

	actor := actorID
	if _, err := appendLedger(tx, member, LedgerAppend{
		SaleID:        &saleID,
		Type:          models.PointsRefund,
		Points:        -deduct,
		Description:   fmt.Sprintf("Reversed %d points for refunded sale %s", earned, saleCode),
		ReferenceCode: saleCode,
		ActorID:       &actor,
	}); err != nil {
		return 0, err
	}

	// appendLedger only raises lifetime on accrual types; apply the
	// floored lifetime reversal here.
	newLifetime := member.LifetimePoints - lifetimeDeduct
	if _, err := tx.Exec(`UPDATE loyalty_members SET lifetime_points = $1, updated_at = now() WHERE id = $2`,
		newLifetime, member.ID); err != nil {
		return 0, fmt.Errorf("failed to reverse lifetime points: %w", err)
	}
	member.LifetimePoints = newLifetime

	if err := reresolveTier(tx, member); err != nil {
		return 0, err
	}
	return deduct, nil
}

// restoreRedeemedRewardPoints credits back the points spent on reward
// lines in the refunded sale. The member is found through the sale's
// customer link, or failing that through a card hint in the reason.
func restoreRedeemedRewardPoints(tx *sql.Tx, sale *models.Transaction, lines []refundLine, reason string, actorID uuid.UUID) (int64, *uuid.UUID, error) {
	var totalPoints int64
	var descriptions []string
	for _, l := range lines {
		if l.unitPrice > 0 || l.subtotal > 0 {
			continue
		}
		var pointsCost int64
		var name string
		err := tx.QueryRow(`SELECT points_cost, name FROM products WHERE id = $1`, l.productID).Scan(&pointsCost, &name)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return 0, nil, fmt.Errorf("failed to load reward product: %w", err)
		}
		if !IsRedeemedRewardLine(l.unitPrice, l.subtotal, pointsCost) {
			continue
		}
		totalPoints += pointsCost * l.quantity
		descriptions = append(descriptions, fmt.Sprintf("%dx %s", l.quantity, name))
	}
	if totalPoints <= 0 {
		return 0, nil, nil
	}

	member, err := resolveRewardsMember(tx, sale, reason)
	if err != nil {
		return 0, nil, err
	}
	if member == nil {
		log.Warn().
			Str("sale", sale.TransactionCode).
			Int64("points", totalPoints).
			Msg("reward lines refunded but no member could be resolved; points not restored")
		return 0, nil, nil
	}

	var done int
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM loyalty_transactions
		WHERE transaction_id = $1 AND member_id = $2 AND transaction_type = $3`,
		sale.ID, member.ID, models.PointsRefundRedeemProduct).Scan(&done)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to check reward restore ledger: %w", err)
	}
	if done > 0 {
		return 0, nil, nil
	}

	actor := actorID
	if _, err := appendLedger(tx, member, LedgerAppend{
		SaleID:        &sale.ID,
		Type:          models.PointsRefundRedeemProduct,
		Points:        totalPoints,
		Description:   fmt.Sprintf("Restored %d points for refunded rewards (%s) on %s", totalPoints, strings.Join(descriptions, ", "), sale.TransactionCode),
		ReferenceCode: sale.TransactionCode,
		ActorID:       &actor,
	}); err != nil {
		return 0, nil, err
	}
	return totalPoints, &member.ID, nil
}

// resolveRewardsMember finds the member whose reward points should be
// restored: the sale's linked customer when present, otherwise the
// "Member card:" hint in the refund reason matched against card
// barcodes first and member numbers second.
func resolveRewardsMember(tx *sql.Tx, sale *models.Transaction, reason string) (*memberBalances, error) {
	if sale.CustomerID != nil {
		member, err := lockMemberByCustomer(tx, *sale.CustomerID)
		if err == ErrMemberNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return member, nil
	}

	hint := ParseMemberCardHint(reason)
	if hint == "" {
		return nil, nil
	}

	var memberID uuid.UUID
	err := tx.QueryRow(`SELECT id FROM loyalty_members WHERE card_barcode = $1`, hint).Scan(&memberID)
	if err == sql.ErrNoRows {
		err = tx.QueryRow(`SELECT id FROM loyalty_members WHERE member_number = $1`, strings.ToUpper(hint)).Scan(&memberID)
	}
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve member from card hint: %w", err)
	}
	return lockMember(tx, memberID)
}
